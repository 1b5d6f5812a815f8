package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jkralik/invoiceflow/internal/domain/event"
	"github.com/jkralik/invoiceflow/internal/domain/model"
	domainwf "github.com/jkralik/invoiceflow/internal/domain/workflow"
	"github.com/jkralik/invoiceflow/internal/persistence"
)

type fakeNotifier struct {
	messages []string
	errors   []string
	prompts  []string
	nextID   int
}

func (f *fakeNotifier) SendMessage(text string) { f.messages = append(f.messages, text) }
func (f *fakeNotifier) SendError(context string, err error) {
	f.errors = append(f.errors, context+": "+err.Error())
}
func (f *fakeNotifier) PromptTimesheet(info model.TimesheetInfo, amount string) (int, error) {
	f.prompts = append(f.prompts, fmt.Sprintf("timesheet %dh %s", info.TotalHours, amount))
	f.nextID++
	return f.nextID, nil
}
func (f *fakeNotifier) PromptDocsReady(details string) (int, error) {
	f.prompts = append(f.prompts, details)
	f.nextID++
	return f.nextID, nil
}
func (f *fakeNotifier) ResolvePrompt(messageID int, text string) {}

func (f *fakeNotifier) lastMessage() string {
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

type sentEmail struct {
	to, cc, subject, body, attachment string
}

type fakeEmail struct {
	sends    []sentEmail
	replies  []sentEmail
	fail     error
	failCall int // 1-based Send call to fail; 0 fails every call while fail is set
	calls    int
}

func (f *fakeEmail) Send(ctx context.Context, to, cc, subject, body, attachmentPath string) (string, string, error) {
	f.calls++
	if f.fail != nil && (f.failCall == 0 || f.calls == f.failCall) {
		return "", "", f.fail
	}
	f.sends = append(f.sends, sentEmail{to, cc, subject, body, attachmentPath})
	return fmt.Sprintf("msg-%d", len(f.sends)), fmt.Sprintf("thread-%d", len(f.sends)), nil
}

func (f *fakeEmail) Reply(ctx context.Context, threadID, body, attachmentPath string) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	f.replies = append(f.replies, sentEmail{to: threadID, body: body, attachment: attachmentPath})
	return "reply-1", nil
}

type fakeParser struct {
	info *model.TimesheetInfo
	err  error
	n    int
}

func (f *fakeParser) Parse(path string) (*model.TimesheetInfo, error) {
	f.n++
	if f.err != nil {
		return nil, f.err
	}
	info := *f.info
	return &info, nil
}

type fakeKeywords struct{ hit bool }

func (f fakeKeywords) Matches(body string) bool { return f.hit }

type fakeClassifier struct {
	approval   bool
	confidence float64
}

func (f fakeClassifier) ClassifyApproval(ctx context.Context, body string) (bool, float64) {
	return f.approval, f.confidence
}

type fakeRenderer struct{ rendered []string }

func (f *fakeRenderer) RenderHTML(ctx context.Context, html, outPath string) error {
	f.rendered = append(f.rendered, outPath)
	return os.WriteFile(outPath, []byte("%PDF-approval"), 0644)
}

type fakeMerger struct{ merged [][]string }

func (f *fakeMerger) Merge(inPaths []string, outPath string) error {
	f.merged = append(f.merged, inPaths)
	return os.WriteFile(outPath, []byte("%PDF-merged"), 0644)
}

type fakeArchiver struct {
	completed []map[string]string
	cancelled [][]string
	cleaned   int
}

func (f *fakeArchiver) ArchiveCompleted(year, month int, files map[string]string) (string, error) {
	f.completed = append(f.completed, files)
	return fmt.Sprintf("data/archive/%04d-%02d", year, month), nil
}

func (f *fakeArchiver) ArchiveCancelled(now time.Time, paths []string) (string, error) {
	f.cancelled = append(f.cancelled, paths)
	return "data/archive/cancelled/x", nil
}

func (f *fakeArchiver) CleanTemp() error {
	f.cleaned++
	return nil
}

type fixture struct {
	c        *Coordinator
	notifier *fakeNotifier
	email    *fakeEmail
	parser   *fakeParser
	renderer *fakeRenderer
	merger   *fakeMerger
	archiver *fakeArchiver
	store    *persistence.Store
	tempDir  string
}

func newFixture(t *testing.T, keywords fakeKeywords, classifier fakeClassifier) *fixture {
	t.Helper()

	tempDir := t.TempDir()
	f := &fixture{
		notifier: &fakeNotifier{},
		email:    &fakeEmail{},
		parser: &fakeParser{info: &model.TimesheetInfo{
			TotalHours: 160,
			DateRange:  "01/Jan/26 - 31/Jan/26",
			Month:      1,
			Year:       2026,
		}},
		renderer: &fakeRenderer{},
		merger:   &fakeMerger{},
		archiver: &fakeArchiver{},
		store:    persistence.NewStore(filepath.Join(tempDir, "state.json"), zap.NewNop()),
		tempDir:  tempDir,
	}

	f.c = New(Settings{
		ManagerEmail:        "manager@example.com",
		InvoicingDeptEmail:  "invoicing@example.com",
		AccountantEmail:     "accountant@example.com",
		CompanyName:         "YourCompany inc.",
		HourlyRate:          10,
		Currency:            "EUR",
		TempDir:             tempDir,
		ConfidenceThreshold: 0.7,
	}, Deps{
		Store:      f.store,
		Notifier:   f.notifier,
		Email:      f.email,
		Parser:     f.parser,
		Keywords:   keywords,
		Classifier: classifier,
		Renderer:   f.renderer,
		Merger:     f.merger,
		Archiver:   f.archiver,
		Logger:     zap.NewNop(),
	})
	return f
}

func (f *fixture) state() domainwf.State { return f.c.Snapshot().State }

// runToWaitingDocs walks a fresh fixture through timesheet detection and the
// initial approval so emails are out and both threads are known.
func (f *fixture) runToWaitingDocs(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	f.c.process(ctx, event.NewNewTimesheet("data/incoming/jan.pdf"))
	require.Equal(t, domainwf.StatePendingApproval, f.state())

	f.c.process(ctx, event.NewApprovalResult(event.ActionApprove, 0))
	require.Equal(t, domainwf.StateWaitingDocs, f.state())
}

func managerEmail(f *fixture, body string) model.EmailInfo {
	return model.EmailInfo{
		MessageID: "in-1",
		ThreadID:  f.c.Snapshot().ManagerThreadID,
		From:      "manager@example.com",
		Subject:   "Re: YourCompany inc. faktura 01/2026",
		BodyText:  body,
	}
}

func accountantEmail(f *fixture) model.EmailInfo {
	return model.EmailInfo{
		MessageID:   "in-2",
		ThreadID:    f.c.Snapshot().AccountantThreadID,
		From:        "accountant@example.com",
		Subject:     "Re: podklady",
		BodyText:    "V prilohe faktura.",
		Attachments: []string{"faktura_2026_01.pdf"},
	}
}

func TestCoordinator_HappyPath(t *testing.T) {
	f := newFixture(t, fakeKeywords{hit: true}, fakeClassifier{})
	ctx := context.Background()

	f.runToWaitingDocs(t)

	// Initial emails: manager with timesheet attached, accountant with the
	// billing breakdown
	require.Len(t, f.email.sends, 2)
	mgr, acc := f.email.sends[0], f.email.sends[1]
	assert.Equal(t, "manager@example.com", mgr.to)
	assert.Equal(t, "invoicing@example.com", mgr.cc)
	assert.Equal(t, "YourCompany inc. faktura 01/2026", mgr.subject)
	assert.Equal(t, "data/incoming/jan.pdf", mgr.attachment)
	assert.Equal(t, "accountant@example.com", acc.to)
	assert.Contains(t, acc.subject, "podklady ku vystaveniu faktur 01/2026")
	assert.Contains(t, acc.body, "160*10=1600 bez DPH")
	assert.Contains(t, acc.body, "144h")
	assert.Contains(t, acc.body, "16h")

	snap := f.c.Snapshot()
	assert.NotEmpty(t, snap.ManagerThreadID)
	assert.NotEmpty(t, snap.AccountantThreadID)
	assert.NotNil(t, snap.WaitingSince)

	// Manager approval via keyword
	f.c.process(ctx, event.NewEmailReceived(managerEmail(f, "schvalene, vdaka")))
	snap = f.c.Snapshot()
	assert.True(t, snap.ApprovalReceived)
	assert.Contains(t, snap.ApprovalEmailHTML, "Re: YourCompany inc. faktura 01/2026")

	// Invoice from accountant; the poller has already downloaded it
	invoicePath := filepath.Join(f.tempDir, "invoice_in-2.pdf")
	require.NoError(t, os.WriteFile(invoicePath, []byte("%PDF-invoice"), 0644))

	f.c.process(ctx, event.NewEmailReceived(accountantEmail(f)))
	snap = f.c.Snapshot()
	assert.True(t, snap.InvoiceReceived)
	assert.Equal(t, invoicePath, snap.InvoicePDFPath)
	assert.Equal(t, domainwf.StateAllDocsReady, snap.State)

	// Final approval: render, merge in invoice/timesheet/approval order,
	// reply on the manager thread, archive, reset
	f.c.process(ctx, event.NewApprovalResult(event.ActionApprove, 0))

	require.Len(t, f.merger.merged, 1)
	assert.Equal(t, []string{
		invoicePath,
		"data/incoming/jan.pdf",
		filepath.Join(f.tempDir, "approval.pdf"),
	}, f.merger.merged[0])

	require.Len(t, f.email.replies, 1)
	assert.Equal(t, "V prilohe.", f.email.replies[0].body)

	require.Len(t, f.archiver.completed, 1)
	assert.Equal(t, domainwf.StateIdle, f.state())
	assert.Equal(t, *model.NewWorkflowData(), f.c.Snapshot())

	// And the reset survives a restart
	assert.Equal(t, domainwf.StateIdle, f.store.Load().State)
}

func TestCoordinator_DuplicateTimesheetIsNoOp(t *testing.T) {
	f := newFixture(t, fakeKeywords{}, fakeClassifier{})
	ctx := context.Background()

	f.c.process(ctx, event.NewNewTimesheet("data/incoming/jan.pdf"))
	require.Equal(t, domainwf.StatePendingApproval, f.state())

	f.c.process(ctx, event.NewNewTimesheet("data/incoming/jan-v2.pdf"))
	assert.Equal(t, domainwf.StatePendingApproval, f.state())
	assert.Equal(t, 1, f.parser.n)
	assert.Contains(t, f.notifier.lastMessage(), "already in progress")
	assert.Equal(t, "data/incoming/jan.pdf", f.c.Snapshot().TimesheetPath)
}

func TestCoordinator_ParseFailureKeepsIdle(t *testing.T) {
	f := newFixture(t, fakeKeywords{}, fakeClassifier{})
	f.parser.err = fmt.Errorf("no text layer")

	f.c.process(context.Background(), event.NewNewTimesheet("data/incoming/scan.pdf"))

	assert.Equal(t, domainwf.StateIdle, f.state())
	require.Len(t, f.notifier.errors, 1)
	assert.Contains(t, f.notifier.errors[0], "no text layer")
}

func TestCoordinator_ApprovalDetection(t *testing.T) {
	tests := []struct {
		name         string
		keywords     fakeKeywords
		classifier   fakeClassifier
		wantApproved bool
		wantManual   bool
	}{
		{"keyword hit skips classifier", fakeKeywords{hit: true}, fakeClassifier{}, true, false},
		{"classifier confident approval", fakeKeywords{}, fakeClassifier{approval: true, confidence: 0.92}, true, false},
		{"classifier confident rejection", fakeKeywords{}, fakeClassifier{approval: false, confidence: 0.9}, false, false},
		{"low confidence escalates", fakeKeywords{}, fakeClassifier{approval: true, confidence: 0.5}, false, true},
		{"threshold boundary passes", fakeKeywords{}, fakeClassifier{approval: true, confidence: 0.7}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.keywords, tt.classifier)
			f.runToWaitingDocs(t)

			f.c.process(context.Background(), event.NewEmailReceived(managerEmail(f, "dakujem za zaslanie")))

			assert.Equal(t, tt.wantApproved, f.c.Snapshot().ApprovalReceived)
			if tt.wantManual {
				assert.Contains(t, f.notifier.lastMessage(), "check manually")
			}
		})
	}
}

func TestCoordinator_EmailsOutsideWaitingDocsIgnored(t *testing.T) {
	f := newFixture(t, fakeKeywords{hit: true}, fakeClassifier{})

	f.c.process(context.Background(), event.NewEmailReceived(model.EmailInfo{
		From:     "manager@example.com",
		BodyText: "schvalene",
	}))

	assert.False(t, f.c.Snapshot().ApprovalReceived)
	assert.Equal(t, domainwf.StateIdle, f.state())
}

func TestCoordinator_InvoiceWithoutPDFAttachmentIgnored(t *testing.T) {
	f := newFixture(t, fakeKeywords{}, fakeClassifier{})
	f.runToWaitingDocs(t)

	email := accountantEmail(f)
	email.Attachments = []string{"notes.txt"}
	f.c.process(context.Background(), event.NewEmailReceived(email))

	assert.False(t, f.c.Snapshot().InvoiceReceived)
}

func TestCoordinator_NewestInvoiceFileWins(t *testing.T) {
	f := newFixture(t, fakeKeywords{}, fakeClassifier{})
	f.runToWaitingDocs(t)

	older := filepath.Join(f.tempDir, "invoice_old.pdf")
	newer := filepath.Join(f.tempDir, "invoice_new.pdf")
	require.NoError(t, os.WriteFile(older, []byte("%PDF-1"), 0644))
	require.NoError(t, os.WriteFile(newer, []byte("%PDF-2"), 0644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	f.c.process(context.Background(), event.NewEmailReceived(accountantEmail(f)))

	assert.Equal(t, newer, f.c.Snapshot().InvoicePDFPath)
}

func TestCoordinator_EditHours(t *testing.T) {
	f := newFixture(t, fakeKeywords{}, fakeClassifier{})
	ctx := context.Background()

	f.c.process(ctx, event.NewNewTimesheet("data/incoming/jan.pdf"))

	tests := []struct {
		hours int
		want  int
	}{
		{0, 160},
		{301, 160},
		{-5, 160},
		{180, 180},
		{1, 1},
		{300, 300},
	}

	for _, tt := range tests {
		f.c.process(ctx, event.NewApprovalResult(event.ActionEdit, tt.hours))
		assert.Equal(t, tt.want, f.c.Snapshot().TimesheetInfo.TotalHours, "edit to %d", tt.hours)
	}

	// Prompt stays active; approval still goes through with the edited hours
	f.c.process(ctx, event.NewApprovalResult(event.ActionApprove, 0))
	require.Equal(t, domainwf.StateWaitingDocs, f.state())
	assert.Contains(t, f.email.sends[1].body, "300*10=3000 bez DPH")
}

func TestCoordinator_CancelArchivesPartials(t *testing.T) {
	f := newFixture(t, fakeKeywords{}, fakeClassifier{})
	f.runToWaitingDocs(t)

	f.c.process(context.Background(), event.NewApprovalResult(event.ActionCancel, 0))

	require.Len(t, f.archiver.cancelled, 1)
	assert.Equal(t, []string{"data/incoming/jan.pdf", ""}, f.archiver.cancelled[0])
	assert.Equal(t, domainwf.StateIdle, f.state())
	assert.Equal(t, *model.NewWorkflowData(), f.c.Snapshot())
}

func TestCoordinator_CancelWhileIdleIsNoOp(t *testing.T) {
	f := newFixture(t, fakeKeywords{}, fakeClassifier{})

	f.c.process(context.Background(), event.NewApprovalResult(event.ActionCancel, 0))

	assert.Empty(t, f.archiver.cancelled)
	assert.Equal(t, domainwf.StateIdle, f.state())
}

func TestCoordinator_ManualResetClearsTemp(t *testing.T) {
	f := newFixture(t, fakeKeywords{}, fakeClassifier{})
	f.runToWaitingDocs(t)

	f.c.process(context.Background(), event.NewManualReset())

	assert.Equal(t, 1, f.archiver.cleaned)
	assert.Equal(t, domainwf.StateIdle, f.state())
}

func TestCoordinator_FailedSendReloadsSnapshot(t *testing.T) {
	f := newFixture(t, fakeKeywords{}, fakeClassifier{})
	ctx := context.Background()

	f.c.process(ctx, event.NewNewTimesheet("data/incoming/jan.pdf"))
	require.Equal(t, domainwf.StatePendingApproval, f.state())

	f.email.fail = fmt.Errorf("smtp unreachable")
	f.c.process(ctx, event.NewApprovalResult(event.ActionApprove, 0))

	// The aggregate is back at the last persisted snapshot: still pending,
	// no thread ids, no waiting clock
	snap := f.c.Snapshot()
	assert.Equal(t, domainwf.StatePendingApproval, snap.State)
	assert.Empty(t, snap.ManagerThreadID)
	assert.Nil(t, snap.WaitingSince)
	require.Len(t, f.notifier.errors, 1)

	// A retry after the outage succeeds
	f.email.fail = nil
	f.c.process(ctx, event.NewApprovalResult(event.ActionApprove, 0))
	assert.Equal(t, domainwf.StateWaitingDocs, f.state())
}

func TestCoordinator_RetryResumesFromAccountantEmail(t *testing.T) {
	f := newFixture(t, fakeKeywords{}, fakeClassifier{})
	ctx := context.Background()

	f.c.process(ctx, event.NewNewTimesheet("data/incoming/jan.pdf"))
	require.Equal(t, domainwf.StatePendingApproval, f.state())

	// The manager email goes out, the accountant one does not
	f.email.fail = fmt.Errorf("smtp unreachable")
	f.email.failCall = 2
	f.c.process(ctx, event.NewApprovalResult(event.ActionApprove, 0))

	snap := f.c.Snapshot()
	assert.Equal(t, domainwf.StatePendingApproval, snap.State)
	assert.Equal(t, "thread-1", snap.ManagerThreadID)
	assert.Empty(t, snap.AccountantThreadID)
	require.Len(t, f.email.sends, 1)
	require.Len(t, f.notifier.errors, 1)

	// The retry skips the manager email so no second thread is opened
	f.email.fail = nil
	f.c.process(ctx, event.NewApprovalResult(event.ActionApprove, 0))

	snap = f.c.Snapshot()
	assert.Equal(t, domainwf.StateWaitingDocs, snap.State)
	assert.Equal(t, "thread-1", snap.ManagerThreadID)
	assert.Equal(t, "thread-2", snap.AccountantThreadID)
	require.Len(t, f.email.sends, 2)
	assert.Equal(t, f.c.settings.ManagerEmail, f.email.sends[0].to)
	assert.Equal(t, f.c.settings.AccountantEmail, f.email.sends[1].to)
}

func TestCoordinator_RestartRecoversState(t *testing.T) {
	f := newFixture(t, fakeKeywords{hit: true}, fakeClassifier{})
	f.runToWaitingDocs(t)
	f.c.process(context.Background(), event.NewEmailReceived(managerEmail(f, "ok")))

	restarted := New(f.c.settings, f.c.deps)
	snap := restarted.Snapshot()
	assert.Equal(t, domainwf.StateWaitingDocs, snap.State)
	assert.True(t, snap.ApprovalReceived)
	assert.Equal(t, f.c.Snapshot().ManagerThreadID, snap.ManagerThreadID)
}

func TestCoordinator_ReminderFiresAndPersists(t *testing.T) {
	f := newFixture(t, fakeKeywords{hit: true}, fakeClassifier{})
	f.runToWaitingDocs(t)

	now := time.Now()
	f.c.now = func() time.Time { return now.AddDate(0, 0, 8) }

	f.c.checkWaitingTimeout()
	assert.Contains(t, f.notifier.lastMessage(), "day 8")
	assert.Equal(t, 8, f.c.Snapshot().LastReminderDay)
	assert.Equal(t, 8, f.store.Load().LastReminderDay)

	// Same day again: nothing new
	before := len(f.notifier.messages)
	f.c.checkWaitingTimeout()
	assert.Len(t, f.notifier.messages, before)

	// Day 14 starts the daily cadence
	f.c.now = func() time.Time { return now.AddDate(0, 0, 14) }
	f.c.checkWaitingTimeout()
	assert.Contains(t, f.notifier.lastMessage(), "day 14")
	assert.Equal(t, 14, f.c.Snapshot().LastReminderDay)
}
