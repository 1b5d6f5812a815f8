package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jkralik/invoiceflow/internal/ai"
	"github.com/jkralik/invoiceflow/internal/archive"
	"github.com/jkralik/invoiceflow/internal/config"
	"github.com/jkralik/invoiceflow/internal/gmail"
	"github.com/jkralik/invoiceflow/internal/history"
	"github.com/jkralik/invoiceflow/internal/httpapi"
	"github.com/jkralik/invoiceflow/internal/pdf"
	"github.com/jkralik/invoiceflow/internal/persistence"
	"github.com/jkralik/invoiceflow/internal/telegram"
	"github.com/jkralik/invoiceflow/internal/timesheet"
	"github.com/jkralik/invoiceflow/internal/watcher"
	"github.com/jkralik/invoiceflow/internal/workflow"
	"github.com/jkralik/invoiceflow/pkg/database"
	"github.com/jkralik/invoiceflow/pkg/utils"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting invoice workflow service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, dir := range []string{cfg.Folders.Watch, cfg.Folders.Archive, cfg.Folders.Temp} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Fatal("Failed to create directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	// Transition audit log; the JSON snapshot stays the source of truth
	db, err := database.New(cfg.History.DatabasePath, logger)
	if err != nil {
		logger.Fatal("Failed to open history database", zap.Error(err))
	}
	defer db.Close()

	recorder, err := history.NewRecorder(db, logger)
	if err != nil {
		logger.Fatal("Failed to initialize transition history", zap.Error(err))
	}

	store := persistence.NewStore(cfg.Folders.StateFile, logger)

	gmailSvc, err := gmail.NewService(ctx, cfg.Gmail.CredentialsFile, cfg.Gmail.TokenFile)
	if err != nil {
		logger.Fatal("Failed to initialize Gmail client", zap.Error(err))
	}
	sender := gmail.NewSender(gmailSvc, cfg.Email.From, logger)

	coordinator := workflow.New(workflow.Settings{
		ManagerEmail:        cfg.Email.Manager,
		InvoicingDeptEmail:  cfg.Email.InvoicingDept,
		AccountantEmail:     cfg.Email.Accountant,
		CompanyName:         cfg.Email.CompanyName,
		HourlyRate:          cfg.Invoice.HourlyRate,
		Currency:            cfg.Invoice.Currency,
		TempDir:             cfg.Folders.Temp,
		ConfidenceThreshold: cfg.Approval.ConfidenceThreshold,
	}, workflow.Deps{
		Store:      store,
		History:    recorder,
		Email:      sender,
		Parser:     timesheet.NewParser(logger),
		Keywords:   ai.NewKeywordMatcher(cfg.Approval.KeywordList()),
		Classifier: ai.NewClassifier(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Temperature, cfg.OpenAI.Timeout, logger),
		Renderer:   pdf.NewRenderer(pdf.DefaultRenderTimeout, logger),
		Merger:     pdf.NewMerger(logger),
		Archiver:   archive.NewArchiver(cfg.Folders.Archive, cfg.Folders.Temp, logger),
		Logger:     logger,
	})

	// The bot pushes events into the coordinator and the coordinator
	// notifies through the bot
	bot, err := telegram.NewBot(cfg.Telegram.BotToken, cfg.Telegram.ChatID, coordinator, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Telegram bot", zap.Error(err))
	}
	coordinator.SetNotifier(bot)

	folderWatcher, err := watcher.New(cfg.Folders.Watch, cfg.Folders.Debounce, coordinator, logger)
	if err != nil {
		logger.Fatal("Failed to initialize folder watcher", zap.Error(err))
	}

	poller := gmail.NewPoller(gmailSvc, coordinator, pollerState{coordinator},
		cfg.Email.From, cfg.Folders.Temp, cfg.Gmail.PollInterval, logger)

	httpServer := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, coordinator, recorder, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return coordinator.Run(ctx) })
	g.Go(func() error { return bot.Run(ctx) })
	g.Go(func() error { return folderWatcher.Run(ctx) })
	g.Go(func() error { return poller.Run(ctx) })
	g.Go(func() error { return httpServer.Start(ctx) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Service exited with error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Service stopped")
}

// pollerState narrows the coordinator snapshot to what the poller needs
type pollerState struct {
	c *workflow.Coordinator
}

func (p pollerState) Snapshot() gmail.StateView {
	d := p.c.Snapshot()
	return gmail.StateView{
		State:              d.State,
		ManagerThreadID:    d.ManagerThreadID,
		AccountantThreadID: d.AccountantThreadID,
	}
}
