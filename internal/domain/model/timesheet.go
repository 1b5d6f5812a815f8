package model

// Fixed split of logged hours across the two invoice lines: testing is
// billed at a flat 16 hours, the rest goes to architecture work.
const testHoursFixed = 16

var slovakMonths = []string{
	"januar", "februar", "marec", "april", "maj", "jun",
	"jul", "august", "september", "oktober", "november", "december",
}

// TimesheetInfo holds the fields extracted from a timesheet PDF
type TimesheetInfo struct {
	TotalHours int    `json:"total_hours"`
	DateRange  string `json:"date_range"`
	Month      int    `json:"month"`
	Year       int    `json:"year"`
}

// ArchHours returns the hours billed on the architecture line
func (t TimesheetInfo) ArchHours() int {
	if t.TotalHours < testHoursFixed {
		return 0
	}
	return t.TotalHours - testHoursFixed
}

// TestHours returns the hours billed on the testing line
func (t TimesheetInfo) TestHours() int {
	return testHoursFixed
}

// MonthName returns the Slovak month name used in accountant emails
func (t TimesheetInfo) MonthName() string {
	if t.Month < 1 || t.Month > 12 {
		return ""
	}
	return slovakMonths[t.Month-1]
}
