package workflow

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerTimesheetParsed Trigger = "TIMESHEET_PARSED"
	TriggerApprove         Trigger = "APPROVE"
	TriggerCancel          Trigger = "CANCEL"
	TriggerDocsReady       Trigger = "DOCS_READY"
	TriggerComplete        Trigger = "COMPLETE"
	TriggerReset           Trigger = "RESET"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
