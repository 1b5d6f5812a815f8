// Command reset clears the persisted workflow record and temp artifacts,
// returning the service to a clean IDLE state on next start.
package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jkralik/invoiceflow/internal/archive"
	"github.com/jkralik/invoiceflow/internal/config"
	"github.com/jkralik/invoiceflow/internal/domain/model"
	"github.com/jkralik/invoiceflow/internal/persistence"
)

func main() {
	cfg, err := config.LoadUnvalidated("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := zap.NewNop()

	store := persistence.NewStore(cfg.Folders.StateFile, logger)
	previous := store.Load()

	if err := store.Save(model.NewWorkflowData()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to reset state: %v\n", err)
		os.Exit(1)
	}

	archiver := archive.NewArchiver(cfg.Folders.Archive, cfg.Folders.Temp, logger)
	if err := archiver.CleanTemp(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to clean temp directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Workflow reset (was %s).\n", previous.State)
}
