package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jkralik/invoiceflow/internal/domain/model"
	domainwf "github.com/jkralik/invoiceflow/internal/domain/workflow"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "state", "state.json"), zap.NewNop())
}

func TestStore_LoadMissingFileReturnsFreshDefault(t *testing.T) {
	s := newTestStore(t)
	data := s.Load()
	require.NotNil(t, data)
	assert.Equal(t, domainwf.StateIdle, data.State)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	now := time.Date(2026, 1, 20, 8, 30, 0, 0, time.UTC)
	data := &model.WorkflowData{
		State:         domainwf.StateWaitingDocs,
		TimesheetPath: "data/incoming/jan.pdf",
		TimesheetInfo: &model.TimesheetInfo{
			TotalHours: 176,
			DateRange:  "01/Jan/26 - 31/Jan/26",
			Month:      1,
			Year:       2026,
		},
		ApprovalReceived:   true,
		ManagerThreadID:    "m-thread",
		AccountantThreadID: "a-thread",
		WaitingSince:       &now,
		LastReminderDay:    7,
		TelegramMessageID:  17,
	}

	require.NoError(t, s.Save(data))

	got := s.Load()
	assert.Equal(t, data, got)
}

func TestStore_LoadMalformedFileReturnsFreshDefault(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0755))
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0644))

	data := s.Load()
	require.NotNil(t, data)
	assert.Equal(t, domainwf.StateIdle, data.State)
}

func TestStore_SaveOverwritesPrevious(t *testing.T) {
	s := newTestStore(t)

	first := model.NewWorkflowData()
	first.State = domainwf.StatePendingApproval
	require.NoError(t, s.Save(first))

	second := model.NewWorkflowData()
	require.NoError(t, s.Save(second))

	assert.Equal(t, domainwf.StateIdle, s.Load().State)
}
