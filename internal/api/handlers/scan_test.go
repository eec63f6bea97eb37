package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/ports"
	"github.com/anstrom/portsweep/internal/results"
	"github.com/anstrom/portsweep/internal/runs"
	"github.com/anstrom/portsweep/internal/scanning"
	"github.com/anstrom/portsweep/internal/target"
)

// gatedScanner reports port 22 open and every other port closed. With a
// gate it reports the first port, then waits for the gate or cancellation.
type gatedScanner struct {
	gate     chan struct{}
	calls    atomic.Int32
	lastConf atomic.Pointer[scanning.ScanConfig]
}

func (g *gatedScanner) Scan(ctx context.Context, t target.ScanTarget, spec ports.Spec, cfg scanning.ScanConfig,
	onResult func(scanning.PortResult)) error {
	g.calls.Add(1)
	g.lastConf.Store(&cfg)

	for i, p := range spec {
		if i == 1 && g.gate != nil {
			select {
			case <-g.gate:
			case <-ctx.Done():
				return apperrors.ErrScanCanceled(t.Host, ctx.Err())
			}
		}
		status := scanning.StatusClosed
		if p == 22 {
			status = scanning.StatusOpen
		}
		onResult(scanning.PortResult{Port: p, Status: status, Elapsed: time.Millisecond, Service: "svc"})
	}
	return nil
}

func testResolver() *target.Resolver {
	return target.NewResolver(
		target.WithLogger(logging.NewDiscard()),
		target.WithLookup(target.LookupFunc(func(context.Context, string, string) ([]netip.Addr, error) {
			return []netip.Addr{netip.MustParseAddr("192.0.2.10")}, nil
		})),
	)
}

func newTestManager(s runs.Scanner) *runs.Manager {
	return runs.NewManager(testResolver(), s, runs.WithLogger(logging.NewDiscard()))
}

func newScanRouter(m RunManager) *mux.Router {
	h := NewScanHandler(m, scanning.DefaultConfig(), logging.NewDiscard())
	ws := NewWebSocketHandler(m, logging.NewDiscard())

	router := mux.NewRouter()
	router.HandleFunc("/api/v1/scans", h.CreateScan).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/scans", h.ListScans).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/scans/{id}", h.GetScan).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/scans/{id}", h.CancelScan).Methods(http.MethodDelete)
	router.HandleFunc("/api/v1/scans/{id}/report", h.GetReport).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/scans/{id}/stream", ws.StreamScan).Methods(http.MethodGet)
	return router
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func startScan(t *testing.T, router http.Handler, body string) uuid.UUID {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/v1/scans", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	return decode[ScanCreatedResponse](t, rec).ID
}

func waitFor(t *testing.T, m *runs.Manager, id uuid.UUID) *results.ScanRun {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	run, err := m.Wait(ctx, id)
	require.NoError(t, err)
	return run
}

func TestCreateScan(t *testing.T) {
	scanner := &gatedScanner{}
	m := newTestManager(scanner)
	router := newScanRouter(m)

	rec := do(t, router, http.MethodPost, "/api/v1/scans", `{"host":"127.0.0.1","ports":"22,80"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	created := decode[ScanCreatedResponse](t, rec)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, results.StateRunning, created.State)
	assert.Equal(t, "/api/v1/scans/"+created.ID.String(), rec.Header().Get("Location"))
	assert.Equal(t, "/api/v1/scans/"+created.ID.String()+"/stream", created.Links["stream"])

	run := waitFor(t, m, created.ID)
	assert.Equal(t, results.StateCompleted, run.State)
	assert.Equal(t, 1, run.Summary.Open)
	assert.Equal(t, 1, run.Summary.Closed)
	assert.Equal(t, scanning.DefaultConfig(), *scanner.lastConf.Load())
}

func TestCreateScanAppliesOverrides(t *testing.T) {
	scanner := &gatedScanner{}
	m := newTestManager(scanner)
	router := newScanRouter(m)

	id := startScan(t, router, `{"host":"127.0.0.1","ports":"22","concurrency":8,"timeout_ms":250,"rate_limit":100}`)
	waitFor(t, m, id)

	cfg := scanner.lastConf.Load()
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
	assert.InDelta(t, 100.0, cfg.RateLimit, 0)
}

func TestCreateScanRejectsInvalidRequests(t *testing.T) {
	scanner := &gatedScanner{}
	router := newScanRouter(newTestManager(scanner))

	tests := []struct {
		name string
		body string
		code apperrors.ErrorCode
	}{
		{"empty body", "", apperrors.CodeValidation},
		{"malformed json", `{"host":`, apperrors.CodeValidation},
		{"unknown field", `{"host":"127.0.0.1","verbose":true}`, apperrors.CodeValidation},
		{"missing host", `{"ports":"80"}`, apperrors.CodeValidation},
		{"concurrency too high", `{"host":"127.0.0.1","concurrency":20000}`, apperrors.CodeValidation},
		{"negative rate", `{"host":"127.0.0.1","rate_limit":-1}`, apperrors.CodeValidation},
		{"bad host", `{"host":"bad..host"}`, apperrors.CodeTargetInvalid},
		{"bad ports", `{"host":"127.0.0.1","ports":"80,abc"}`, apperrors.CodePortSpecInvalid},
		{"port out of range", `{"host":"127.0.0.1","ports":"70000"}`, apperrors.CodePortSpecInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/api/v1/scans", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, string(tt.code), decode[ErrorResponse](t, rec).Code)
		})
	}

	assert.Zero(t, scanner.calls.Load(), "rejected requests must not reach the scanner")
}

func TestCreateScanValidationMessageUsesJSONNames(t *testing.T) {
	router := newScanRouter(newTestManager(&gatedScanner{}))

	rec := do(t, router, http.MethodPost, "/api/v1/scans", `{"host":"127.0.0.1","timeout_ms":900000}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Message, "timeout_ms failed max=600000")
}

func TestGetScan(t *testing.T) {
	m := newTestManager(&gatedScanner{})
	router := newScanRouter(m)

	id := startScan(t, router, `{"host":"127.0.0.1","ports":"22,80,443"}`)
	waitFor(t, m, id)

	rec := do(t, router, http.MethodGet, "/api/v1/scans/"+id.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[ScanResponse](t, rec)
	assert.Equal(t, id.String(), got.ID)
	assert.Equal(t, "127.0.0.1", got.Host)
	assert.Equal(t, results.StateCompleted, got.State)
	assert.Equal(t, "22,80,443", got.Ports)
	assert.Equal(t, results.Progress{Completed: 3, Total: 3}, got.Progress)
	assert.InDelta(t, 100.0, got.PercentComplete, 0)
	require.Len(t, got.Results, 3)
	assert.Equal(t, uint16(22), got.Results[0].Port)
	assert.Equal(t, scanning.StatusOpen, got.Results[0].Status)
}

func TestGetScanErrors(t *testing.T) {
	router := newScanRouter(newTestManager(&gatedScanner{}))

	rec := do(t, router, http.MethodGet, "/api/v1/scans/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/scans/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(apperrors.CodeNotFound), decode[ErrorResponse](t, rec).Code)
}

func TestListScans(t *testing.T) {
	m := newTestManager(&gatedScanner{})
	router := newScanRouter(m)

	var ids []uuid.UUID
	for range 3 {
		id := startScan(t, router, `{"host":"127.0.0.1","ports":"22"}`)
		waitFor(t, m, id)
		ids = append(ids, id)
	}

	rec := do(t, router, http.MethodGet, "/api/v1/scans?page=1&page_size=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Data       []ScanSummaryResponse `json:"data"`
		Pagination struct {
			TotalItems int `json:"total_items"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 3, page.Pagination.TotalItems)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	require.Len(t, page.Data, 2)
	assert.NotNil(t, page.Data[0].FinishedAt)
	assert.Equal(t, 1, page.Data[0].Summary.Open)

	rec = do(t, router, http.MethodGet, "/api/v1/scans?state=cancelled", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Empty(t, page.Data)

	rec = do(t, router, http.MethodGet, "/api/v1/scans?state=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/scans?page=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelScanKeepsPartialResults(t *testing.T) {
	scanner := &gatedScanner{gate: make(chan struct{})}
	m := newTestManager(scanner)
	router := newScanRouter(m)

	id := startScan(t, router, `{"host":"127.0.0.1","ports":"22,80,443"}`)
	require.Eventually(t, func() bool {
		run, err := m.Get(id)
		return err == nil && run.Progress.Completed == 1
	}, 5*time.Second, time.Millisecond)

	rec := do(t, router, http.MethodDelete, "/api/v1/scans/"+id.String(), "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	run := waitFor(t, m, id)
	assert.Equal(t, results.StateCancelled, run.State)
	assert.True(t, run.Partial)
	require.Len(t, run.Results, 1)
	assert.Equal(t, uint16(22), run.Results[0].Port)

	// cancelling a finished run is a no-op
	rec = do(t, router, http.MethodDelete, "/api/v1/scans/"+id.String(), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, results.StateCancelled, decode[ScanSummaryResponse](t, rec).State)

	rec = do(t, router, http.MethodDelete, "/api/v1/scans/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetReport(t *testing.T) {
	m := newTestManager(&gatedScanner{})
	router := newScanRouter(m)

	id := startScan(t, router, `{"host":"127.0.0.1","ports":"22,80"}`)
	waitFor(t, m, id)

	rec := do(t, router, http.MethodGet, "/api/v1/scans/"+id.String()+"/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Port Scan Results for 127.0.0.1")
	assert.Contains(t, rec.Body.String(), "Summary: 1 open, 1 closed, 0 timeout, 0 error")

	rec = do(t, router, http.MethodGet, "/api/v1/scans/"+id.String()+"/report?format=json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var record map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, "127.0.0.1", record["host"])

	rec = do(t, router, http.MethodGet, "/api/v1/scans/"+id.String()+"/report?format=table", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/v1/scans/"+uuid.NewString()+"/report", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
