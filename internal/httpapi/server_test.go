package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jkralik/invoiceflow/internal/domain/model"
	domainwf "github.com/jkralik/invoiceflow/internal/domain/workflow"
	"github.com/jkralik/invoiceflow/internal/history"
)

type fakeStatus struct {
	data model.WorkflowData
}

func (f fakeStatus) Snapshot() model.WorkflowData { return f.data }

type fakeHistory struct {
	entries []history.Entry
	err     error
}

func (f fakeHistory) Recent(n int) ([]history.Entry, error) { return f.entries, f.err }

func newTestServer(status StatusProvider, hist HistoryReader) *Server {
	return NewServer(ServerConfig{Host: "127.0.0.1", Port: 0}, status, hist, zap.NewNop())
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(fakeStatus{}, nil)

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(fakeStatus{data: model.WorkflowData{
		State:            domainwf.StateWaitingDocs,
		ApprovalReceived: true,
	}}, nil)

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var got model.WorkflowData
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, domainwf.StateWaitingDocs, got.State)
	assert.True(t, got.ApprovalReceived)
	assert.False(t, got.InvoiceReceived)
}

func TestHistoryEndpoint(t *testing.T) {
	s := newTestServer(fakeStatus{}, fakeHistory{entries: []history.Entry{
		{ID: 2, PreviousState: "IDLE", NewState: "PENDING_INIT_APPROVAL", Trigger: "TIMESHEET_PARSED", CreatedAt: time.Now()},
	}})

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "PENDING_INIT_APPROVAL")
}

func TestHistoryEndpoint_NoRecorder(t *testing.T) {
	s := newTestServer(fakeStatus{}, nil)

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
}
