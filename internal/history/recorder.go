package history

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	domainwf "github.com/jkralik/invoiceflow/internal/domain/workflow"
	"github.com/jkralik/invoiceflow/pkg/database"
)

const schema = `
	CREATE TABLE IF NOT EXISTS workflow_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		previous_state TEXT NOT NULL,
		new_state TEXT NOT NULL,
		trigger_name TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
`

// Entry is one recorded state transition
type Entry struct {
	ID            int64
	PreviousState string
	NewState      string
	Trigger       string
	Detail        string
	CreatedAt     time.Time
}

// Recorder keeps an append-only audit trail of state transitions.
// The JSON snapshot remains the sole source of truth; recording failures are
// logged by the caller and never block the workflow.
type Recorder struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRecorder creates the recorder and its table
func NewRecorder(db *database.DB, logger *zap.Logger) (*Recorder, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create history table: %w", err)
	}
	return &Recorder{db: db, logger: logger}, nil
}

// Record appends one transition
func (r *Recorder) Record(from, to domainwf.State, trigger domainwf.Trigger, detail string) error {
	return r.db.WithTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO workflow_history (previous_state, new_state, trigger_name, detail) VALUES (?, ?, ?, ?)`,
			from.String(), to.String(), trigger.String(), detail,
		)
		if err != nil {
			return fmt.Errorf("failed to insert history entry: %w", err)
		}
		return nil
	})
}

// Recent returns the latest n transitions, newest first
func (r *Recorder) Recent(n int) ([]Entry, error) {
	rows, err := r.db.Query(
		`SELECT id, previous_state, new_state, trigger_name, detail, created_at
		 FROM workflow_history ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.PreviousState, &e.NewState, &e.Trigger, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
