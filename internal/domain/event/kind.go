package event

// Kind identifies the type of a coordinator event
type Kind string

const (
	KindNewTimesheet   Kind = "new_timesheet"
	KindApprovalResult Kind = "approval_result"
	KindEmailReceived  Kind = "email_received"
	KindManualReset    Kind = "manual_reset"
)

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}

// Action is the decision reported by the chat front end
type Action string

const (
	ActionApprove Action = "approve"
	ActionEdit    Action = "edit"
	ActionCancel  Action = "cancel"
)

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}
