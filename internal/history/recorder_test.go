package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainwf "github.com/jkralik/invoiceflow/internal/domain/workflow"
	"github.com/jkralik/invoiceflow/pkg/database"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "history.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r, err := NewRecorder(db, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestRecorder_RecordAndRecent(t *testing.T) {
	r := newTestRecorder(t)

	require.NoError(t, r.Record(domainwf.StateIdle, domainwf.StatePendingApproval,
		domainwf.TriggerTimesheetParsed, "data/incoming/jan.pdf"))
	require.NoError(t, r.Record(domainwf.StatePendingApproval, domainwf.StateWaitingDocs,
		domainwf.TriggerApprove, "emails sent"))

	entries, err := r.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first
	assert.Equal(t, "WAITING_DOCS", entries[0].NewState)
	assert.Equal(t, "APPROVE", entries[0].Trigger)
	assert.Equal(t, "IDLE", entries[1].PreviousState)
	assert.Equal(t, "data/incoming/jan.pdf", entries[1].Detail)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestRecorder_RecentLimit(t *testing.T) {
	r := newTestRecorder(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Record(domainwf.StateIdle, domainwf.StateIdle, domainwf.TriggerReset, ""))
	}

	entries, err := r.Recent(3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestRecorder_RecentEmpty(t *testing.T) {
	r := newTestRecorder(t)

	entries, err := r.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
