package timesheet

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/jkralik/invoiceflow/internal/domain/model"
)

// ErrParse is returned when no extractable text or no recognizable
// hour/period pattern is found in a timesheet
var ErrParse = errors.New("timesheet parse failed")

// Hour values outside this window are treated as noise, not totals.
const (
	minSaneHours = 1
	maxSaneHours = 500
)

var totalHourPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)Total[:\s]+(\d+)\s*h`),
	regexp.MustCompile(`(?im)Total\s+Hours[:\s]+(\d+)`),
	regexp.MustCompile(`(?im)Logged[:\s]+(\d+)\s*h`),
	regexp.MustCompile(`(?im)Sum[:\s]+(\d+)\s*h`),
	regexp.MustCompile(`(?im)(\d+)\s*h\s+total`),
	regexp.MustCompile(`(?im)\b(\d{2,3})\s*h?\s*$`),
}

var hourValuePattern = regexp.MustCompile(`(?i)\b(\d{2,3})\s*h\b`)

var dateRangePatterns = []*regexp.Regexp{
	// "01/Jan/26 - 31/Jan/26" (Jira export format)
	regexp.MustCompile(`(\d{1,2}/[A-Za-z]{3}/\d{2})\s*[-–—]\s*(\d{1,2}/[A-Za-z]{3}/\d{2})`),
	// "01 Jan 2026 - 31 Jan 2026"
	regexp.MustCompile(`(\d{1,2}\s+[A-Za-z]{3}\s+\d{4})\s*[-–—]\s*(\d{1,2}\s+[A-Za-z]{3}\s+\d{4})`),
	// "2026-01-01 - 2026-01-31"
	regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\s*[-–—]\s*(\d{4}-\d{2}-\d{2})`),
}

var monthNumbers = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// Parser extracts billing data from Jira timesheet PDFs
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a new timesheet parser
func NewParser(logger *zap.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse extracts timesheet information from a PDF file
func (p *Parser) Parse(path string) (*model.TimesheetInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("timesheet PDF not found: %w", err)
	}

	text, err := extractText(path)
	if err != nil {
		return nil, err
	}

	info, err := ParseText(text)
	if err != nil {
		return nil, err
	}

	p.logger.Info("Parsed timesheet",
		zap.String("path", path),
		zap.Int("total_hours", info.TotalHours),
		zap.Int("month", info.Month),
		zap.Int("year", info.Year))

	return info, nil
}

// ParseText extracts timesheet information from already-extracted text
func ParseText(text string) (*model.TimesheetInfo, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: no text could be extracted", ErrParse)
	}

	totalHours, err := extractTotalHours(text)
	if err != nil {
		return nil, err
	}

	dateRange, err := extractDateRange(text)
	if err != nil {
		return nil, err
	}

	month, year, err := parseMonthYear(dateRange)
	if err != nil {
		return nil, err
	}

	return &model.TimesheetInfo{
		TotalHours: totalHours,
		DateRange:  dateRange,
		Month:      month,
		Year:       year,
	}, nil
}

func extractText(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("%w: failed to open PDF: %v", ErrParse, err)
	}
	defer doc.Close()

	var parts []string
	for pageNum := 0; pageNum < doc.NumPage(); pageNum++ {
		pageText, err := doc.Text(pageNum)
		if err != nil {
			continue
		}
		if pageText != "" {
			parts = append(parts, pageText)
		}
	}

	return strings.Join(parts, "\n"), nil
}

func extractTotalHours(text string) (int, error) {
	for _, pattern := range totalHourPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			hours, err := strconv.Atoi(m[1])
			if err == nil && hours >= minSaneHours && hours <= maxSaneHours {
				return hours, nil
			}
		}
	}

	// Fallback: the total is likely the largest standalone hour value
	maxHours := 0
	for _, m := range hourValuePattern.FindAllStringSubmatch(text, -1) {
		hours, err := strconv.Atoi(m[1])
		if err == nil && hours >= minSaneHours && hours <= maxSaneHours && hours > maxHours {
			maxHours = hours
		}
	}
	if maxHours > 0 {
		return maxHours, nil
	}

	return 0, fmt.Errorf("%w: could not extract total hours", ErrParse)
}

func extractDateRange(text string) (string, error) {
	for _, pattern := range dateRangePatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			return fmt.Sprintf("%s - %s", m[1], m[2]), nil
		}
	}
	return "", fmt.Errorf("%w: could not extract date range", ErrParse)
}

var monthNamePattern = regexp.MustCompile(`[A-Za-z]{3,}`)
var yearPattern = regexp.MustCompile(`/(\d{2})(?:\s|$|-)|(\d{4})`)

func parseMonthYear(dateRange string) (int, int, error) {
	monthStr := monthNamePattern.FindString(dateRange)
	if monthStr == "" {
		// ISO ranges carry no month name
		if iso := regexp.MustCompile(`(\d{4})-(\d{2})-\d{2}`).FindStringSubmatch(dateRange); iso != nil {
			year, _ := strconv.Atoi(iso[1])
			month, _ := strconv.Atoi(iso[2])
			if month >= 1 && month <= 12 {
				return month, year, nil
			}
		}
		return 0, 0, fmt.Errorf("%w: could not extract month from date range %q", ErrParse, dateRange)
	}

	month, ok := monthNumbers[strings.ToLower(monthStr)[:3]]
	if !ok {
		return 0, 0, fmt.Errorf("%w: unknown month %q", ErrParse, monthStr)
	}

	m := yearPattern.FindStringSubmatch(dateRange)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: could not extract year from date range %q", ErrParse, dateRange)
	}

	yearStr := m[1]
	if yearStr == "" {
		yearStr = m[2]
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: invalid year %q", ErrParse, yearStr)
	}
	if year < 100 {
		year += 2000
	}

	return month, year, nil
}
