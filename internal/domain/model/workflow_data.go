package model

import (
	"time"

	domainwf "github.com/jkralik/invoiceflow/internal/domain/workflow"
)

// WorkflowData is the single persisted aggregate describing the one active
// (or idle) workflow instance. It is mutated only by the coordinator inside
// its serialized event-processing section and persisted after every mutation.
type WorkflowData struct {
	State domainwf.State `json:"state"`

	// Timesheet data
	TimesheetPath string         `json:"timesheet_path,omitempty"`
	TimesheetInfo *TimesheetInfo `json:"timesheet_info,omitempty"`

	// Document tracking; both flip false->true only while WAITING_DOCS
	ApprovalReceived bool `json:"approval_received"`
	InvoiceReceived  bool `json:"invoice_received"`

	// Email thread ids for the two outbound conversations; set once per instance
	ManagerThreadID    string `json:"manager_thread_id,omitempty"`
	AccountantThreadID string `json:"accountant_thread_id,omitempty"`

	// Artifacts captured from inbound replies
	InvoicePDFPath    string `json:"invoice_pdf_path,omitempty"`
	ApprovalEmailHTML string `json:"approval_email_html,omitempty"`

	// Reminder tracking
	WaitingSince    *time.Time `json:"waiting_since,omitempty"`
	LastReminderDay int        `json:"last_reminder_day,omitempty"`

	// Last interactive prompt, needed to edit it in place
	TelegramMessageID int `json:"telegram_message_id,omitempty"`
}

// NewWorkflowData returns the default idle record
func NewWorkflowData() *WorkflowData {
	return &WorkflowData{State: domainwf.StateIdle}
}

// Reset returns every field to its initial value and the state to IDLE.
// Used on cancellation and on successful completion; idempotent.
func (d *WorkflowData) Reset() {
	*d = WorkflowData{State: domainwf.StateIdle}
}

// Clone returns a copy safe to hand outside the coordinator's lock
func (d *WorkflowData) Clone() WorkflowData {
	c := *d
	if d.TimesheetInfo != nil {
		info := *d.TimesheetInfo
		c.TimesheetInfo = &info
	}
	if d.WaitingSince != nil {
		ts := *d.WaitingSince
		c.WaitingSince = &ts
	}
	return c
}
