package gmail

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/jkralik/invoiceflow/internal/domain/event"
	domainwf "github.com/jkralik/invoiceflow/internal/domain/workflow"
)

// Sink receives events produced by the poller
type Sink interface {
	Enqueue(evt event.Event)
}

// StateView is the read-only slice of workflow state the poller needs to
// decide which threads to watch.
type StateView struct {
	State              domainwf.State
	ManagerThreadID    string
	AccountantThreadID string
}

// StateProvider exposes a consistent snapshot of the current workflow state
type StateProvider interface {
	Snapshot() StateView
}

// Poller periodically checks the two outbound email threads for replies while
// the workflow is waiting for documents. New messages from other parties are
// turned into EmailReceived events; PDF attachments on the accountant thread
// are saved to the temp directory first so the coordinator can pick the file
// up by path.
type Poller struct {
	svc      *gmailapi.Service
	sink     Sink
	state    StateProvider
	own      string
	tempDir  string
	interval time.Duration
	logger   *zap.Logger

	seen map[string]bool
}

// NewPoller creates a poller; own is the workflow's sending address, used to
// skip its own messages on the threads.
func NewPoller(svc *gmailapi.Service, sink Sink, state StateProvider, own, tempDir string, interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		svc:      svc,
		sink:     sink,
		state:    state,
		own:      strings.ToLower(own),
		tempDir:  tempDir,
		interval: interval,
		logger:   logger,
		seen:     make(map[string]bool),
	}
}

// Run polls until the context is cancelled
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("Email poller started", zap.Duration("interval", p.interval))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Email poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	view := p.state.Snapshot()
	if view.State != domainwf.StateWaitingDocs {
		return
	}

	for _, threadID := range []string{view.ManagerThreadID, view.AccountantThreadID} {
		if threadID == "" {
			continue
		}
		if err := p.pollThread(ctx, threadID); err != nil {
			p.logger.Warn("Thread poll failed",
				zap.String("thread_id", threadID),
				zap.Error(err))
		}
	}
}

func (p *Poller) pollThread(ctx context.Context, threadID string) error {
	thread, err := p.svc.Users.Threads.Get("me", threadID).Format("full").Context(ctx).Do()
	if err != nil {
		return err
	}

	for _, msg := range thread.Messages {
		if p.seen[msg.Id] {
			continue
		}
		p.seen[msg.Id] = true

		info := parseMessage(msg)
		if info.From == p.own {
			continue
		}

		p.downloadPDFAttachments(ctx, msg)

		p.logger.Info("New email on tracked thread",
			zap.String("thread_id", threadID),
			zap.String("from", info.From),
			zap.String("subject", info.Subject))

		p.sink.Enqueue(event.NewEmailReceived(info))
	}

	return nil
}

// downloadPDFAttachments saves each PDF attachment on the message into the
// temp directory as invoice_<messageID>.pdf so the newest-matching-file rule
// in the coordinator can find it.
func (p *Poller) downloadPDFAttachments(ctx context.Context, msg *gmailapi.Message) {
	if msg.Payload == nil {
		return
	}

	var walk func(part *gmailapi.MessagePart)
	walk = func(part *gmailapi.MessagePart) {
		if part == nil {
			return
		}
		if part.Filename != "" &&
			strings.HasSuffix(strings.ToLower(part.Filename), ".pdf") &&
			part.Body != nil && part.Body.AttachmentId != "" {
			p.saveAttachment(ctx, msg.Id, part.Body.AttachmentId)
		}
		for _, child := range part.Parts {
			walk(child)
		}
	}
	walk(msg.Payload)
}

func (p *Poller) saveAttachment(ctx context.Context, messageID, attachmentID string) {
	att, err := p.svc.Users.Messages.Attachments.Get("me", messageID, attachmentID).Context(ctx).Do()
	if err != nil {
		p.logger.Warn("Failed to fetch attachment",
			zap.String("message_id", messageID),
			zap.Error(err))
		return
	}

	data, err := decodeBase64URL(att.Data)
	if err != nil {
		p.logger.Warn("Failed to decode attachment",
			zap.String("message_id", messageID),
			zap.Error(err))
		return
	}

	if err := os.MkdirAll(p.tempDir, 0755); err != nil {
		p.logger.Warn("Failed to create temp directory", zap.Error(err))
		return
	}

	path := filepath.Join(p.tempDir, "invoice_"+messageID+".pdf")
	if err := os.WriteFile(path, data, 0644); err != nil {
		p.logger.Warn("Failed to write attachment", zap.String("path", path), zap.Error(err))
		return
	}

	p.logger.Info("Attachment saved", zap.String("path", path))
}
