package workflow

import (
	"context"
	"time"

	"github.com/jkralik/invoiceflow/internal/domain/model"
	domainwf "github.com/jkralik/invoiceflow/internal/domain/workflow"
)

// Notifier is the chat surface the coordinator reports progress through.
// Plain notifications are fire-and-forget; prompts return a message id so the
// coordinator can resolve them in place.
type Notifier interface {
	SendMessage(text string)
	SendError(context string, err error)
	PromptTimesheet(info model.TimesheetInfo, amount string) (int, error)
	PromptDocsReady(details string) (int, error)
	ResolvePrompt(messageID int, text string)
}

// EmailSender sends and replies to workflow emails
type EmailSender interface {
	Send(ctx context.Context, to, cc, subject, body, attachmentPath string) (messageID, threadID string, err error)
	Reply(ctx context.Context, threadID, body, attachmentPath string) (messageID string, err error)
}

// TimesheetParser extracts billing fields from a timesheet PDF
type TimesheetParser interface {
	Parse(path string) (*model.TimesheetInfo, error)
}

// KeywordMatcher is the cheap first tier of approval detection
type KeywordMatcher interface {
	Matches(body string) bool
}

// ApprovalClassifier is the LLM fallback tier of approval detection
type ApprovalClassifier interface {
	ClassifyApproval(ctx context.Context, body string) (bool, float64)
}

// Renderer turns an HTML document into a PDF file
type Renderer interface {
	RenderHTML(ctx context.Context, html, outPath string) error
}

// Merger concatenates PDFs in order
type Merger interface {
	Merge(inPaths []string, outPath string) error
}

// Archiver moves artifacts out of the working directories
type Archiver interface {
	ArchiveCompleted(year, month int, files map[string]string) (string, error)
	ArchiveCancelled(now time.Time, paths []string) (string, error)
	CleanTemp() error
}

// Store persists the workflow aggregate
type Store interface {
	Load() *model.WorkflowData
	Save(data *model.WorkflowData) error
}

// HistoryRecorder appends to the transition audit log. Recording is
// best-effort; the coordinator logs failures and moves on.
type HistoryRecorder interface {
	Record(from, to domainwf.State, trigger domainwf.Trigger, detail string) error
}
