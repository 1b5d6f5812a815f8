package event

import (
	"github.com/google/uuid"

	"github.com/jkralik/invoiceflow/internal/domain/model"
)

// Event is the closed set of events the coordinator consumes. Producers
// (folder watcher, email poller, chat front end) only ever construct these
// variants and push them into the coordinator's queue.
type Event interface {
	Kind() Kind
	CorrelationID() string

	isEvent()
}

type base struct {
	correlationID string
}

func newBase() base {
	return base{correlationID: uuid.NewString()}
}

func (b base) CorrelationID() string { return b.correlationID }
func (b base) isEvent()              {}

// NewTimesheet signals a new timesheet PDF in the watch folder
type NewTimesheet struct {
	base
	Path string
}

// NewNewTimesheet creates a NewTimesheet event
func NewNewTimesheet(path string) NewTimesheet {
	return NewTimesheet{base: newBase(), Path: path}
}

func (NewTimesheet) Kind() Kind { return KindNewTimesheet }

// ApprovalResult carries a user decision from the chat front end
type ApprovalResult struct {
	base
	Action Action
	// EditedHours is set only when Action == ActionEdit
	EditedHours int
}

// NewApprovalResult creates an ApprovalResult event
func NewApprovalResult(action Action, editedHours int) ApprovalResult {
	return ApprovalResult{base: newBase(), Action: action, EditedHours: editedHours}
}

func (ApprovalResult) Kind() Kind { return KindApprovalResult }

// EmailReceived signals an inbound email on one of the tracked threads
type EmailReceived struct {
	base
	Email model.EmailInfo
}

// NewEmailReceived creates an EmailReceived event
func NewEmailReceived(email model.EmailInfo) EmailReceived {
	return EmailReceived{base: newBase(), Email: email}
}

func (EmailReceived) Kind() Kind { return KindEmailReceived }

// ManualReset is the operator-initiated reset trigger
type ManualReset struct {
	base
}

// NewManualReset creates a ManualReset event
func NewManualReset() ManualReset {
	return ManualReset{base: newBase()}
}

func (ManualReset) Kind() Kind { return KindManualReset }
