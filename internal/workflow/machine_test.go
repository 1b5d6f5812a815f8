package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainwf "github.com/jkralik/invoiceflow/internal/domain/workflow"
)

func TestBuildInvoiceStateMachine_TransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		from    domainwf.State
		trigger domainwf.Trigger
		to      domainwf.State
		allowed bool
	}{
		{"idle accepts timesheet", domainwf.StateIdle, domainwf.TriggerTimesheetParsed, domainwf.StatePendingApproval, true},
		{"idle reset is idempotent", domainwf.StateIdle, domainwf.TriggerReset, domainwf.StateIdle, true},
		{"idle cannot approve", domainwf.StateIdle, domainwf.TriggerApprove, "", false},
		{"pending approve", domainwf.StatePendingApproval, domainwf.TriggerApprove, domainwf.StateWaitingDocs, true},
		{"pending cancel", domainwf.StatePendingApproval, domainwf.TriggerCancel, domainwf.StateIdle, true},
		{"pending cannot complete", domainwf.StatePendingApproval, domainwf.TriggerComplete, "", false},
		{"waiting docs ready", domainwf.StateWaitingDocs, domainwf.TriggerDocsReady, domainwf.StateAllDocsReady, true},
		{"waiting cancel", domainwf.StateWaitingDocs, domainwf.TriggerCancel, domainwf.StateIdle, true},
		{"waiting cannot re-parse", domainwf.StateWaitingDocs, domainwf.TriggerTimesheetParsed, "", false},
		{"ready complete", domainwf.StateAllDocsReady, domainwf.TriggerComplete, domainwf.StateComplete, true},
		{"ready cancel", domainwf.StateAllDocsReady, domainwf.TriggerCancel, domainwf.StateIdle, true},
		{"complete reset", domainwf.StateComplete, domainwf.TriggerReset, domainwf.StateIdle, true},
		{"complete cannot approve", domainwf.StateComplete, domainwf.TriggerApprove, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := BuildInvoiceStateMachine(tt.from)
			err := m.Fire(context.Background(), tt.trigger)

			if !tt.allowed {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domainwf.ErrInvalidTransition))
				assert.Equal(t, tt.from, m.State())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, m.State())
		})
	}
}

func TestBuildInvoiceStateMachine_ResetFromEveryState(t *testing.T) {
	states := []domainwf.State{
		domainwf.StateIdle,
		domainwf.StatePendingApproval,
		domainwf.StateWaitingDocs,
		domainwf.StateAllDocsReady,
		domainwf.StateComplete,
	}

	for _, s := range states {
		m := BuildInvoiceStateMachine(s)
		require.NoError(t, m.Fire(context.Background(), domainwf.TriggerReset), "from %s", s)
		assert.Equal(t, domainwf.StateIdle, m.State())
	}
}
