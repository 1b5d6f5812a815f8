package workflow

import (
	domainwf "github.com/jkralik/invoiceflow/internal/domain/workflow"
)

// BuildInvoiceStateMachine returns a state machine for the invoicing
// lifecycle, positioned at initial. Cancel and reset lead back to IDLE from
// every state, which makes reset idempotent.
func BuildInvoiceStateMachine(initial domainwf.State) domainwf.StateMachine {
	b := domainwf.NewBuilder()

	b.Configure(domainwf.StateIdle).
		Permit(domainwf.TriggerTimesheetParsed, domainwf.StatePendingApproval).
		Permit(domainwf.TriggerReset, domainwf.StateIdle)

	b.Configure(domainwf.StatePendingApproval).
		Permit(domainwf.TriggerApprove, domainwf.StateWaitingDocs).
		Permit(domainwf.TriggerCancel, domainwf.StateIdle).
		Permit(domainwf.TriggerReset, domainwf.StateIdle)

	b.Configure(domainwf.StateWaitingDocs).
		Permit(domainwf.TriggerDocsReady, domainwf.StateAllDocsReady).
		Permit(domainwf.TriggerCancel, domainwf.StateIdle).
		Permit(domainwf.TriggerReset, domainwf.StateIdle)

	b.Configure(domainwf.StateAllDocsReady).
		Permit(domainwf.TriggerComplete, domainwf.StateComplete).
		Permit(domainwf.TriggerCancel, domainwf.StateIdle).
		Permit(domainwf.TriggerReset, domainwf.StateIdle)

	b.Configure(domainwf.StateComplete).
		Permit(domainwf.TriggerReset, domainwf.StateIdle)

	return b.Build(initial)
}
