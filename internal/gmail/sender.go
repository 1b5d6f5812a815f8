package gmail

import (
	"context"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"
)

// Sender sends and replies to workflow emails through the Gmail API.
// Transient API failures are retried with exponential backoff.
type Sender struct {
	svc    *gmailapi.Service
	from   string
	logger *zap.Logger
}

// NewSender creates a sender authenticated as the given address
func NewSender(svc *gmailapi.Service, from string, logger *zap.Logger) *Sender {
	return &Sender{svc: svc, from: from, logger: logger}
}

// Send sends a new message and returns its message and thread ids
func (s *Sender) Send(ctx context.Context, to, cc, subject, body, attachmentPath string) (messageID, threadID string, err error) {
	raw, err := draft{
		From:           s.from,
		To:             to,
		Cc:             cc,
		Subject:        subject,
		Body:           body,
		AttachmentPath: attachmentPath,
	}.encode()
	if err != nil {
		return "", "", err
	}

	sent, err := s.send(ctx, &gmailapi.Message{Raw: raw})
	if err != nil {
		return "", "", fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	s.logger.Info("Email sent",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("thread_id", sent.ThreadId))

	return sent.Id, sent.ThreadId, nil
}

// Reply sends a message into an existing thread, threading it under the last
// message so that mail clients keep the conversation together.
func (s *Sender) Reply(ctx context.Context, threadID, body, attachmentPath string) (messageID string, err error) {
	thread, err := s.svc.Users.Threads.Get("me", threadID).Format("metadata").
		MetadataHeaders("Subject", "Message-ID", "References").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to fetch thread %s: %w", threadID, err)
	}
	if len(thread.Messages) == 0 {
		return "", fmt.Errorf("thread %s has no messages", threadID)
	}

	last := thread.Messages[len(thread.Messages)-1]
	lastMsgID := header(last, "Message-ID")
	references := header(last, "References")
	if lastMsgID != "" {
		references = strings.TrimSpace(references + " " + lastMsgID)
	}

	subject := header(last, "Subject")
	if subject != "" && !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	// Reply to everyone on the last message except ourselves
	to := replyRecipients(last, s.from)

	raw, err := draft{
		From:           s.from,
		To:             to,
		Subject:        subject,
		Body:           body,
		AttachmentPath: attachmentPath,
		InReplyTo:      lastMsgID,
		References:     references,
	}.encode()
	if err != nil {
		return "", err
	}

	sent, err := s.send(ctx, &gmailapi.Message{Raw: raw, ThreadId: threadID})
	if err != nil {
		return "", fmt.Errorf("failed to reply on thread %s: %w", threadID, err)
	}

	s.logger.Info("Reply sent", zap.String("thread_id", threadID))

	return sent.Id, nil
}

func (s *Sender) send(ctx context.Context, msg *gmailapi.Message) (*gmailapi.Message, error) {
	var sent *gmailapi.Message

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)

	err := backoff.Retry(func() error {
		var err error
		sent, err = s.svc.Users.Messages.Send("me", msg).Context(ctx).Do()
		if err != nil {
			s.logger.Warn("Gmail send attempt failed", zap.Error(err))
		}
		return err
	}, policy)
	if err != nil {
		return nil, err
	}

	return sent, nil
}

// replyRecipients collects From/To addresses of the message, excluding own
func replyRecipients(msg *gmailapi.Message, own string) string {
	own = strings.ToLower(own)
	seen := map[string]bool{own: true}
	var out []string

	add := func(values []string) {
		for _, addr := range values {
			if !seen[addr] {
				seen[addr] = true
				out = append(out, addr)
			}
		}
	}

	add(extractAddresses(header(msg, "From")))
	add(extractAddresses(header(msg, "To")))

	return strings.Join(out, ", ")
}
