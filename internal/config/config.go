package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Folders  FoldersConfig  `mapstructure:"folders"`
	Gmail    GmailConfig    `mapstructure:"gmail"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Email    EmailConfig    `mapstructure:"email"`
	Invoice  InvoiceConfig  `mapstructure:"invoice"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Approval ApprovalConfig `mapstructure:"approval"`
	History  HistoryConfig  `mapstructure:"history"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds the HTTP status API configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// FoldersConfig holds filesystem locations
type FoldersConfig struct {
	Watch     string        `mapstructure:"watch"`
	Archive   string        `mapstructure:"archive"`
	Temp      string        `mapstructure:"temp"`
	StateFile string        `mapstructure:"state_file"`
	Debounce  time.Duration `mapstructure:"debounce"`
}

// GmailConfig holds Gmail API configuration
type GmailConfig struct {
	CredentialsFile string        `mapstructure:"credentials_file"`
	TokenFile       string        `mapstructure:"token_file"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// EmailConfig holds the addresses the workflow corresponds with
type EmailConfig struct {
	From          string `mapstructure:"from"`
	Manager       string `mapstructure:"manager"`
	InvoicingDept string `mapstructure:"invoicing_dept"`
	Accountant    string `mapstructure:"accountant"`
	CompanyName   string `mapstructure:"company_name"`
}

// InvoiceConfig holds billing parameters
type InvoiceConfig struct {
	HourlyRate int    `mapstructure:"hourly_rate"`
	Currency   string `mapstructure:"currency"`
}

// OpenAIConfig holds the classifier LLM configuration
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ApprovalConfig holds approval-detection tuning
type ApprovalConfig struct {
	// Keywords is a comma-separated, case-insensitive list; any hit accepts
	// the email as an approval without consulting the classifier.
	Keywords            string  `mapstructure:"keywords"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

// HistoryConfig holds the transition audit log configuration
type HistoryConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// KeywordList parses the configured approval keywords into a lower-cased list
func (a ApprovalConfig) KeywordList() []string {
	var keywords []string
	for _, kw := range strings.Split(a.Keywords, ",") {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

// Load loads configuration from file and environment variables.
// A local .env file, when present, is loaded first so that secrets can be
// kept out of the YAML file.
func Load(configPath string) (*Config, error) {
	cfg, err := LoadUnvalidated(configPath)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadUnvalidated loads configuration without requiring credentials. The
// status and reset tools only need filesystem paths and must work without a
// fully provisioned environment.
func LoadUnvalidated(configPath string) (*Config, error) {
	_ = gotenv.Load()

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	// The config file is optional; defaults plus environment cover a minimal setup
	if err := viper.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8090)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Folder defaults
	viper.SetDefault("folders.watch", "data/incoming")
	viper.SetDefault("folders.archive", "data/archive")
	viper.SetDefault("folders.temp", "data/temp")
	viper.SetDefault("folders.state_file", "data/state.json")
	viper.SetDefault("folders.debounce", 2*time.Second)

	// Gmail defaults
	viper.SetDefault("gmail.credentials_file", "config/credentials.json")
	viper.SetDefault("gmail.token_file", "config/token.json")
	viper.SetDefault("gmail.poll_interval", 60*time.Second)

	// Email defaults
	viper.SetDefault("email.company_name", "YourCompany inc.")

	// Invoice defaults
	viper.SetDefault("invoice.hourly_rate", 10)
	viper.SetDefault("invoice.currency", "EUR")

	// OpenAI defaults
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.temperature", 0.1)
	viper.SetDefault("openai.timeout", 30*time.Second)

	// Approval detection defaults (English + Slovak)
	viper.SetDefault("approval.keywords", "approved,schvalene,schvalujem,suhlasim,ok,v poriadku")
	viper.SetDefault("approval.confidence_threshold", 0.7)

	// History defaults
	viper.SetDefault("history.database_path", "data/history.db")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "console")
}

func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	viper.BindEnv("telegram.chat_id", "TELEGRAM_CHAT_ID")
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("email.from", "FROM_EMAIL")
	viper.BindEnv("email.manager", "MANAGER_EMAIL")
	viper.BindEnv("email.invoicing_dept", "INVOICING_DEPT_EMAIL")
	viper.BindEnv("email.accountant", "ACCOUNTANT_EMAIL")
	viper.BindEnv("invoice.hourly_rate", "HOURLY_RATE")
}

// Validate checks that required configuration is present
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required")
	}
	if c.Email.Manager == "" {
		return fmt.Errorf("email.manager is required")
	}
	if c.Email.Accountant == "" {
		return fmt.Errorf("email.accountant is required")
	}
	if c.Invoice.HourlyRate <= 0 {
		return fmt.Errorf("invoice.hourly_rate must be positive")
	}
	if c.Approval.ConfidenceThreshold < 0 || c.Approval.ConfidenceThreshold > 1 {
		return fmt.Errorf("approval.confidence_threshold must be between 0 and 1")
	}
	return nil
}
