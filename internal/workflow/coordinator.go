package workflow

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jkralik/invoiceflow/internal/domain/event"
	"github.com/jkralik/invoiceflow/internal/domain/model"
	domainwf "github.com/jkralik/invoiceflow/internal/domain/workflow"
	"github.com/jkralik/invoiceflow/pkg/utils"
)

// DefaultReminderCheckInterval is how often the waiting timeout is evaluated
const DefaultReminderCheckInterval = time.Minute

const eventQueueSize = 128

// Settings carries the coordinator's business parameters
type Settings struct {
	ManagerEmail        string
	InvoicingDeptEmail  string
	AccountantEmail     string
	CompanyName         string
	HourlyRate          int
	Currency            string
	TempDir             string
	ConfidenceThreshold float64
	// ReminderCheckInterval defaults to DefaultReminderCheckInterval when zero
	ReminderCheckInterval time.Duration
}

// Deps groups the coordinator's collaborators
type Deps struct {
	Store      Store
	History    HistoryRecorder
	Notifier   Notifier
	Email      EmailSender
	Parser     TimesheetParser
	Keywords   KeywordMatcher
	Classifier ApprovalClassifier
	Renderer   Renderer
	Merger     Merger
	Archiver   Archiver
	Logger     *zap.Logger
}

// Coordinator owns the workflow aggregate and processes all events strictly
// one at a time. Producers push events through Enqueue; nothing else mutates
// the aggregate. Every mutation is persisted before the next event runs, and
// a failed handler reloads the last persisted snapshot so partial mutations
// never survive.
type Coordinator struct {
	settings Settings
	deps     Deps
	logger   *zap.Logger

	events chan event.Event
	now    func() time.Time

	mu   sync.Mutex
	data *model.WorkflowData
}

// New creates a coordinator and loads the persisted aggregate
func New(settings Settings, deps Deps) *Coordinator {
	if settings.ReminderCheckInterval <= 0 {
		settings.ReminderCheckInterval = DefaultReminderCheckInterval
	}
	return &Coordinator{
		settings: settings,
		deps:     deps,
		logger:   deps.Logger,
		events:   make(chan event.Event, eventQueueSize),
		now:      time.Now,
		data:     deps.Store.Load(),
	}
}

// SetNotifier installs the chat surface. The bot and the coordinator
// reference each other (events in, notifications out), so the notifier is
// attached after construction; it must be set before Run.
func (c *Coordinator) SetNotifier(n Notifier) {
	c.deps.Notifier = n
}

// Enqueue queues an event for processing
func (c *Coordinator) Enqueue(evt event.Event) {
	c.events <- evt
}

// Snapshot returns a copy of the current aggregate
func (c *Coordinator) Snapshot() model.WorkflowData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data.Clone()
}

// Run drains the event queue until the context is cancelled
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("Workflow coordinator started",
		zap.String("state", c.Snapshot().State.String()))

	ticker := time.NewTicker(c.settings.ReminderCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Workflow coordinator stopped")
			return ctx.Err()
		case evt := <-c.events:
			c.process(ctx, evt)
		case <-ticker.C:
			c.checkWaitingTimeout()
		}
	}
}

// process dispatches one event under the lock. Handler errors are contained
// here: log, tell the operator, restore the last persisted snapshot, keep
// going.
func (c *Coordinator) process(ctx context.Context, evt event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Info("Processing event",
		zap.String("kind", evt.Kind().String()),
		zap.String("correlation_id", evt.CorrelationID()),
		zap.String("state", c.data.State.String()))

	var err error
	switch e := evt.(type) {
	case event.NewTimesheet:
		err = c.handleNewTimesheet(ctx, e.Path)
	case event.ApprovalResult:
		err = c.handleApprovalResult(ctx, e)
	case event.EmailReceived:
		err = c.handleEmailReceived(ctx, e.Email)
	case event.ManualReset:
		err = c.handleManualReset()
	default:
		c.logger.Warn("Unknown event kind dropped", zap.String("kind", evt.Kind().String()))
	}

	if err != nil {
		c.logger.Error("Event handler failed",
			zap.String("kind", evt.Kind().String()),
			zap.String("correlation_id", evt.CorrelationID()),
			zap.Error(err))
		c.deps.Notifier.SendError(fmt.Sprintf("processing %s event", evt.Kind()), err)
		c.data = c.deps.Store.Load()
	}
}

// transition fires the trigger against the current state, persists the new
// state, and records it in the audit log.
func (c *Coordinator) transition(ctx context.Context, trigger domainwf.Trigger, detail string) error {
	machine := BuildInvoiceStateMachine(c.data.State)
	if err := machine.Fire(ctx, trigger); err != nil {
		return err
	}

	from := c.data.State
	c.data.State = machine.State()
	if err := c.deps.Store.Save(c.data); err != nil {
		return err
	}

	c.logger.Info("State transition",
		zap.String("from", from.String()),
		zap.String("to", c.data.State.String()),
		zap.String("trigger", trigger.String()))
	c.recordHistory(from, c.data.State, trigger, detail)

	return nil
}

// reset clears the aggregate back to IDLE regardless of the current state
func (c *Coordinator) reset(trigger domainwf.Trigger, detail string) error {
	from := c.data.State
	c.data.Reset()
	if err := c.deps.Store.Save(c.data); err != nil {
		return err
	}
	c.recordHistory(from, c.data.State, trigger, detail)
	return nil
}

func (c *Coordinator) recordHistory(from, to domainwf.State, trigger domainwf.Trigger, detail string) {
	if c.deps.History == nil {
		return
	}
	if err := c.deps.History.Record(from, to, trigger, detail); err != nil {
		c.logger.Warn("Failed to record transition history", zap.Error(err))
	}
}

func (c *Coordinator) handleNewTimesheet(ctx context.Context, path string) error {
	if c.data.State != domainwf.StateIdle {
		c.logger.Warn("Ignoring new timesheet, workflow already in progress",
			zap.String("path", path),
			zap.String("state", c.data.State.String()))
		c.deps.Notifier.SendMessage(fmt.Sprintf(
			"⚠️ New timesheet detected but workflow already in progress.\nCurrent state: %s", c.data.State))
		return nil
	}

	info, err := c.deps.Parser.Parse(path)
	if err != nil {
		return fmt.Errorf("failed to parse timesheet %s: %w", path, err)
	}
	c.logger.Info("Parsed timesheet",
		zap.Int("total_hours", info.TotalHours),
		zap.Int("month", info.Month),
		zap.Int("year", info.Year))

	c.data.TimesheetPath = path
	c.data.TimesheetInfo = info
	if err := c.transition(ctx, domainwf.TriggerTimesheetParsed, path); err != nil {
		return err
	}

	msgID, err := c.deps.Notifier.PromptTimesheet(*info, c.amount(info.TotalHours))
	if err != nil {
		return fmt.Errorf("failed to prompt for approval: %w", err)
	}
	c.data.TelegramMessageID = msgID
	return c.deps.Store.Save(c.data)
}

func (c *Coordinator) handleApprovalResult(ctx context.Context, e event.ApprovalResult) error {
	switch e.Action {
	case event.ActionApprove:
		switch c.data.State {
		case domainwf.StatePendingApproval:
			c.resolvePrompt("✅ Approved")
			return c.sendInitialEmails(ctx)
		case domainwf.StateAllDocsReady:
			c.resolvePrompt("✅ Approved, sending final email")
			return c.sendFinalEmail(ctx)
		default:
			c.logger.Warn("Approval ignored in current state",
				zap.String("state", c.data.State.String()))
			return nil
		}

	case event.ActionCancel:
		if c.data.State == domainwf.StateIdle {
			return nil
		}
		c.resolvePrompt("❌ Cancelled")
		return c.cancelWorkflow()

	case event.ActionEdit:
		return c.applyEditedHours(e.EditedHours)

	default:
		c.logger.Warn("Unknown approval action", zap.String("action", e.Action.String()))
		return nil
	}
}

// applyEditedHours replaces the parsed hour count with the operator's value.
// Out-of-range values are rejected and the decision prompt stays active.
func (c *Coordinator) applyEditedHours(hours int) error {
	if c.data.State != domainwf.StatePendingApproval || c.data.TimesheetInfo == nil {
		c.logger.Warn("Hour edit ignored in current state",
			zap.String("state", c.data.State.String()))
		return nil
	}

	if err := utils.ValidateHours(hours); err != nil {
		c.deps.Notifier.SendMessage(fmt.Sprintf("⚠️ %v", err))
		return nil
	}

	c.data.TimesheetInfo.TotalHours = hours
	if err := c.deps.Store.Save(c.data); err != nil {
		return err
	}

	c.deps.Notifier.SendMessage(fmt.Sprintf(
		"✏️ Hours updated to %d (%s). Use the buttons above to continue.",
		hours, c.amount(hours)))
	return nil
}

func (c *Coordinator) sendInitialEmails(ctx context.Context) error {
	info := c.data.TimesheetInfo
	if info == nil || c.data.TimesheetPath == "" {
		return fmt.Errorf("missing timesheet data")
	}

	c.deps.Notifier.SendMessage("📧 Sending emails...")

	// The manager thread id is persisted as soon as the first email goes
	// out, so a retry after an accountant-send failure resumes here
	// instead of opening a second manager thread.
	if c.data.ManagerThreadID == "" {
		subject := fmt.Sprintf("%s faktura %02d/%d", c.settings.CompanyName, info.Month, info.Year)
		body := "Ahoj, v prilohe worklog na schvalenie"

		_, threadID, err := c.deps.Email.Send(ctx,
			c.settings.ManagerEmail, c.settings.InvoicingDeptEmail,
			subject, body, c.data.TimesheetPath)
		if err != nil {
			return fmt.Errorf("failed to send manager email: %w", err)
		}
		c.data.ManagerThreadID = threadID
		if err := c.deps.Store.Save(c.data); err != nil {
			return fmt.Errorf("failed to persist manager thread: %w", err)
		}
	}

	total := info.TotalHours * c.settings.HourlyRate
	accSubject := fmt.Sprintf("%s - podklady ku vystaveniu faktur %02d/%d",
		c.settings.CompanyName, info.Month, info.Year)
	accBody := fmt.Sprintf(
		"za %s prosim takto:\n%d*%d=%d bez DPH\n\n"+
			"navrh soft. arch. pre nav. aplikaciu - %dh\n"+
			"testovanie navigacnej apl. pocas jazdy - %dh",
		info.MonthName(), info.TotalHours, c.settings.HourlyRate, total,
		info.ArchHours(), info.TestHours())

	_, accThreadID, err := c.deps.Email.Send(ctx,
		c.settings.AccountantEmail, "", accSubject, accBody, "")
	if err != nil {
		return fmt.Errorf("failed to send accountant email: %w", err)
	}
	c.data.AccountantThreadID = accThreadID

	now := c.now()
	c.data.WaitingSince = &now
	c.data.LastReminderDay = 0
	if err := c.transition(ctx, domainwf.TriggerApprove, "emails sent"); err != nil {
		return err
	}

	c.deps.Notifier.SendMessage(fmt.Sprintf(
		"✅ Emails sent!\n• Manager: %s\n• Accountant: %s\n\nWaiting for approval and invoice...",
		c.settings.ManagerEmail, c.settings.AccountantEmail))
	return nil
}

func (c *Coordinator) handleEmailReceived(ctx context.Context, email model.EmailInfo) error {
	if c.data.State != domainwf.StateWaitingDocs {
		c.logger.Debug("Ignoring email outside WAITING_DOCS",
			zap.String("state", c.data.State.String()))
		return nil
	}

	// Route by thread id first; the FROM address is a fallback since
	// aliases make it unreliable
	switch {
	case c.data.ManagerThreadID != "" && email.ThreadID == c.data.ManagerThreadID:
		return c.checkApprovalEmail(ctx, email)
	case c.data.AccountantThreadID != "" && email.ThreadID == c.data.AccountantThreadID:
		return c.checkInvoiceEmail(ctx, email)
	case strings.EqualFold(email.From, c.settings.ManagerEmail):
		return c.checkApprovalEmail(ctx, email)
	case strings.EqualFold(email.From, c.settings.AccountantEmail):
		return c.checkInvoiceEmail(ctx, email)
	default:
		return nil
	}
}

// checkApprovalEmail runs the two-tier approval detection: keyword list
// first, classifier second. A low-confidence verdict escalates to the
// operator without flipping any flag.
func (c *Coordinator) checkApprovalEmail(ctx context.Context, email model.EmailInfo) error {
	approved := c.deps.Keywords.Matches(email.BodyText)

	if !approved {
		isApproval, confidence := c.deps.Classifier.ClassifyApproval(ctx, email.BodyText)
		if confidence < c.settings.ConfidenceThreshold {
			c.deps.Notifier.SendMessage(fmt.Sprintf(
				"❓ Received email from manager but couldn't confirm approval.\nSubject: %s\nPlease check manually.",
				email.Subject))
			return nil
		}
		approved = isApproval
	}

	if !approved {
		return nil
	}

	c.data.ApprovalReceived = true
	c.data.ApprovalEmailHTML = formatEmailAsHTML(email)
	if err := c.deps.Store.Save(c.data); err != nil {
		return err
	}
	c.deps.Notifier.SendMessage("✅ Manager approval received!")

	return c.checkAllDocsReady(ctx)
}

// checkInvoiceEmail looks for a PDF attachment on the accountant thread and
// binds the newest downloaded invoice file to the aggregate.
func (c *Coordinator) checkInvoiceEmail(ctx context.Context, email model.EmailInfo) error {
	if !email.HasPDFAttachment() {
		return nil
	}

	invoicePath, err := newestInvoiceFile(c.settings.TempDir)
	if err != nil {
		return err
	}
	if invoicePath == "" {
		c.logger.Warn("Invoice email seen but no downloaded invoice file found",
			zap.String("temp_dir", c.settings.TempDir))
		return nil
	}

	c.data.InvoicePDFPath = invoicePath
	c.data.InvoiceReceived = true
	if err := c.deps.Store.Save(c.data); err != nil {
		return err
	}
	c.deps.Notifier.SendMessage("✅ Invoice received from accountant!")

	return c.checkAllDocsReady(ctx)
}

func (c *Coordinator) checkAllDocsReady(ctx context.Context) error {
	if !c.data.ApprovalReceived || !c.data.InvoiceReceived {
		return nil
	}

	if err := c.transition(ctx, domainwf.TriggerDocsReady, ""); err != nil {
		return err
	}

	details := fmt.Sprintf(
		"📄 Documents ready:\n• Invoice: %s\n• Timesheet: %s\n• Approval: ✓",
		c.data.InvoicePDFPath, c.data.TimesheetPath)
	msgID, err := c.deps.Notifier.PromptDocsReady(details)
	if err != nil {
		return fmt.Errorf("failed to prompt for final approval: %w", err)
	}
	c.data.TelegramMessageID = msgID
	return c.deps.Store.Save(c.data)
}

// sendFinalEmail renders the approval email to PDF, merges
// invoice+timesheet+approval, replies on the manager thread, archives the
// artifacts and completes the workflow.
func (c *Coordinator) sendFinalEmail(ctx context.Context) error {
	if c.data.InvoicePDFPath == "" || c.data.TimesheetPath == "" ||
		c.data.ApprovalEmailHTML == "" || c.data.ManagerThreadID == "" {
		return fmt.Errorf("missing documents for final email")
	}

	c.deps.Notifier.SendMessage("📝 Preparing final document...")

	approvalPDF := filepath.Join(c.settings.TempDir, "approval.pdf")
	if err := c.deps.Renderer.RenderHTML(ctx, c.data.ApprovalEmailHTML, approvalPDF); err != nil {
		return fmt.Errorf("failed to render approval email: %w", err)
	}

	info := c.data.TimesheetInfo
	mergedPath := filepath.Join(c.settings.TempDir,
		fmt.Sprintf("merged_%02d_%d.pdf", info.Month, info.Year))
	err := c.deps.Merger.Merge(
		[]string{c.data.InvoicePDFPath, c.data.TimesheetPath, approvalPDF},
		mergedPath)
	if err != nil {
		return fmt.Errorf("failed to merge documents: %w", err)
	}

	if _, err := c.deps.Email.Reply(ctx, c.data.ManagerThreadID, "V prilohe.", mergedPath); err != nil {
		return fmt.Errorf("failed to send final email: %w", err)
	}
	c.deps.Notifier.SendMessage("✅ Final email sent!")

	archiveDir, err := c.deps.Archiver.ArchiveCompleted(info.Year, info.Month, map[string]string{
		"timesheet.pdf": c.data.TimesheetPath,
		"invoice.pdf":   c.data.InvoicePDFPath,
		"merged.pdf":    mergedPath,
	})
	if err != nil {
		return fmt.Errorf("failed to archive documents: %w", err)
	}

	if err := c.transition(ctx, domainwf.TriggerComplete, archiveDir); err != nil {
		return err
	}

	c.deps.Notifier.SendMessage(fmt.Sprintf(
		"🎉 Workflow complete!\nFiles archived to %s", archiveDir))

	// COMPLETE is transient: clear the aggregate for the next month
	return c.reset(domainwf.TriggerReset, "completed")
}

func (c *Coordinator) cancelWorkflow() error {
	dir, err := c.deps.Archiver.ArchiveCancelled(c.now(),
		[]string{c.data.TimesheetPath, c.data.InvoicePDFPath})
	if err != nil {
		return fmt.Errorf("failed to archive cancelled workflow: %w", err)
	}

	c.deps.Notifier.SendMessage(fmt.Sprintf("❌ Workflow cancelled. Files moved to %s", dir))
	return c.reset(domainwf.TriggerCancel, dir)
}

func (c *Coordinator) handleManualReset() error {
	if err := c.deps.Archiver.CleanTemp(); err != nil {
		c.logger.Warn("Failed to clean temp directory", zap.Error(err))
	}
	if err := c.reset(domainwf.TriggerReset, "manual"); err != nil {
		return err
	}
	c.deps.Notifier.SendMessage("🔄 Workflow reset.")
	return nil
}

// checkWaitingTimeout fires overdue reminders while WAITING_DOCS
func (c *Coordinator) checkWaitingTimeout() {
	c.mu.Lock()
	defer c.mu.Unlock()

	day, due := reminderDue(c.data.State, c.data.WaitingSince, c.data.LastReminderDay, c.now())
	if !due {
		return
	}

	c.deps.Notifier.SendMessage(fmt.Sprintf(
		"⏰ Still waiting for documents (day %d).\n• Approval: %s\n• Invoice: %s",
		day, checkmark(c.data.ApprovalReceived), checkmark(c.data.InvoiceReceived)))

	c.data.LastReminderDay = day
	if err := c.deps.Store.Save(c.data); err != nil {
		c.logger.Error("Failed to persist reminder day", zap.Error(err))
		c.data = c.deps.Store.Load()
	}
}

func (c *Coordinator) resolvePrompt(text string) {
	if c.data.TelegramMessageID != 0 {
		c.deps.Notifier.ResolvePrompt(c.data.TelegramMessageID, text)
	}
}

func (c *Coordinator) amount(hours int) string {
	return fmt.Sprintf("%d %s", hours*c.settings.HourlyRate, c.settings.Currency)
}

func checkmark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

// newestInvoiceFile returns the most recently modified invoice_*.pdf in dir,
// or "" when none exists
func newestInvoiceFile(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "invoice_*.pdf"))
	if err != nil {
		return "", fmt.Errorf("failed to scan temp directory: %w", err)
	}

	var newest string
	var newestMod time.Time
	for _, path := range matches {
		fi, err := os.Stat(path)
		if err != nil {
			continue
		}
		if newest == "" || fi.ModTime().After(newestMod) {
			newest = path
			newestMod = fi.ModTime()
		}
	}
	return newest, nil
}

// formatEmailAsHTML renders an inbound email as a standalone HTML document
// with a Gmail-style header block, for the approval snapshot PDF.
func formatEmailAsHTML(email model.EmailInfo) string {
	body := email.BodyHTML
	if body == "" {
		body = "<pre>" + html.EscapeString(email.BodyText) + "</pre>"
	}

	ccRow := ""
	if len(email.Cc) > 0 {
		ccRow = fmt.Sprintf(
			`<div class="header-row"><span class="header-label">Cc:</span><span class="header-value">%s</span></div>`,
			html.EscapeString(strings.Join(email.Cc, ", ")))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .email-header { background: #f5f5f5; padding: 15px; border-radius: 5px; margin-bottom: 20px; }
        .email-header h2 { margin: 0 0 15px 0; color: #333; }
        .header-row { margin: 5px 0; font-size: 14px; }
        .header-label { color: #666; display: inline-block; width: 50px; }
        .header-value { color: #333; }
        .email-body { padding: 15px; line-height: 1.5; }
    </style>
</head>
<body>
    <div class="email-header">
        <h2>%s</h2>
        <div class="header-row">
            <span class="header-label">From:</span>
            <span class="header-value">%s</span>
        </div>
        <div class="header-row">
            <span class="header-label">To:</span>
            <span class="header-value">%s</span>
        </div>
        %s
    </div>
    <div class="email-body">
        %s
    </div>
</body>
</html>`,
		html.EscapeString(email.Subject),
		html.EscapeString(email.From),
		html.EscapeString(strings.Join(email.To, ", ")),
		ccRow,
		body)
}
