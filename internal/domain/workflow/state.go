package workflow

// State represents a workflow state in the invoicing lifecycle
type State string

const (
	StateIdle            State = "IDLE"
	StatePendingApproval State = "PENDING_INIT_APPROVAL"
	StateWaitingDocs     State = "WAITING_DOCS"
	StateAllDocsReady    State = "ALL_DOCS_READY"
	StateComplete        State = "COMPLETE"
)

var validStates = map[State]bool{
	StateIdle:            true,
	StatePendingApproval: true,
	StateWaitingDocs:     true,
	StateAllDocsReady:    true,
	StateComplete:        true,
}

// COMPLETE is transient: the coordinator resets to IDLE immediately after
// reaching it, so IDLE is the only resting terminal.
var terminalStates = map[State]bool{
	StateComplete: true,
}

// IsTerminal returns true if the state ends the current workflow instance
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
