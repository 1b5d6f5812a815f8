package workflow

import (
	"time"

	domainwf "github.com/jkralik/invoiceflow/internal/domain/workflow"
)

const (
	firstReminderDay = 7
	dailyReminderDay = 14
)

// reminderDue decides whether a waiting reminder should fire now.
//
// A single reminder fires once the wait reaches 7 days; it fires late rather
// than never if the check was down over the boundary, but only while the wait
// is still under 14 days. From day 14 on a reminder fires once per elapsed
// day. lastReminderDay is the persisted day number of the last reminder sent,
// zero if none, which keeps reminders from double-firing across restarts.
func reminderDue(state domainwf.State, waitingSince *time.Time, lastReminderDay int, now time.Time) (day int, due bool) {
	if state != domainwf.StateWaitingDocs || waitingSince == nil {
		return 0, false
	}

	day = int(now.Sub(*waitingSince).Hours() / 24)
	if day < firstReminderDay {
		return day, false
	}

	if day >= dailyReminderDay {
		return day, day > lastReminderDay
	}

	return day, lastReminderDay == 0
}
