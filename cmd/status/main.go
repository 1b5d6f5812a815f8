// Command status prints the persisted workflow state and recent transition
// history without mutating anything.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jkralik/invoiceflow/internal/config"
	"github.com/jkralik/invoiceflow/internal/history"
	"github.com/jkralik/invoiceflow/internal/persistence"
	"github.com/jkralik/invoiceflow/pkg/database"
)

func main() {
	cfg, err := config.LoadUnvalidated("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := zap.NewNop()

	store := persistence.NewStore(cfg.Folders.StateFile, logger)
	data := store.Load()

	fmt.Printf("State:             %s\n", data.State)
	if data.TimesheetPath != "" {
		fmt.Printf("Timesheet:         %s\n", data.TimesheetPath)
	}
	if data.TimesheetInfo != nil {
		fmt.Printf("Hours:             %d (%02d/%d, %s)\n",
			data.TimesheetInfo.TotalHours,
			data.TimesheetInfo.Month,
			data.TimesheetInfo.Year,
			data.TimesheetInfo.DateRange)
	}
	fmt.Printf("Approval received: %v\n", data.ApprovalReceived)
	fmt.Printf("Invoice received:  %v\n", data.InvoiceReceived)
	if data.WaitingSince != nil {
		fmt.Printf("Waiting since:     %s\n", data.WaitingSince.Format("2006-01-02 15:04"))
	}
	if data.LastReminderDay > 0 {
		fmt.Printf("Last reminder:     day %d\n", data.LastReminderDay)
	}

	printHistory(cfg.History.DatabasePath, logger)
}

// printHistory is best-effort: a missing database just means no history yet
func printHistory(path string, logger *zap.Logger) {
	if _, err := os.Stat(path); err != nil {
		return
	}

	db, err := database.New(path, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history database: %v\n", err)
		return
	}
	defer db.Close()

	recorder, err := history.NewRecorder(db, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read history: %v\n", err)
		return
	}

	entries, err := recorder.Recent(10)
	if err != nil || len(entries) == 0 {
		return
	}

	fmt.Println("\nRecent transitions:")
	for _, e := range entries {
		fmt.Printf("  %s  %s -> %s (%s)\n",
			e.CreatedAt.Format("2006-01-02 15:04"),
			e.PreviousState, e.NewState, e.Trigger)
	}
}
