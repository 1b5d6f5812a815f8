package model

import "strings"

// EmailInfo describes a received email as seen by the coordinator.
// Attachments lists filenames only; PDF attachments are materialized to the
// temp directory by the poller before the event reaches the coordinator.
type EmailInfo struct {
	MessageID   string   `json:"message_id"`
	ThreadID    string   `json:"thread_id"`
	From        string   `json:"from"`
	To          []string `json:"to"`
	Cc          []string `json:"cc"`
	Subject     string   `json:"subject"`
	BodyText    string   `json:"body_text"`
	BodyHTML    string   `json:"body_html"`
	Attachments []string `json:"attachments"`
}

// HasPDFAttachment reports whether any attachment has a .pdf extension
func (e EmailInfo) HasPDFAttachment() bool {
	for _, name := range e.Attachments {
		if strings.HasSuffix(strings.ToLower(name), ".pdf") {
			return true
		}
	}
	return false
}
