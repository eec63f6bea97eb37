package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics_HTTPHandlerServes(t *testing.T) {
	pm := NewPrometheusMetrics()
	pm.RunStarted()

	rr := httptest.NewRecorder()
	pm.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "portsweep_scan_active_runs 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestPrometheusMetrics_AttemptLifecycle(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.AttemptStarted()
	pm.AttemptStarted()
	assert.InDelta(t, 2, testutil.ToFloat64(pm.inFlight), 0)

	pm.AttemptFinished("open", 3*time.Millisecond)
	pm.AttemptFinished("closed", time.Millisecond)

	assert.InDelta(t, 0, testutil.ToFloat64(pm.inFlight), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pm.portsTotal.WithLabelValues("open")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pm.portsTotal.WithLabelValues("closed")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(pm.connectLatency))
}

func TestPrometheusMetrics_RunLifecycle(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.RunStarted()
	pm.RunFinished("completed", 2*time.Second)
	pm.RunStarted()
	pm.RunFinished("cancelled", time.Second)
	pm.EngineFault("EMFILE")

	assert.InDelta(t, 0, testutil.ToFloat64(pm.activeRuns), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(pm.runsTotal))
	assert.InDelta(t, 1, testutil.ToFloat64(pm.engineFaults.WithLabelValues("EMFILE")), 0)

	expected := `
# HELP portsweep_scan_runs_total Total number of scan runs by final state
# TYPE portsweep_scan_runs_total counter
portsweep_scan_runs_total{state="cancelled"} 1
portsweep_scan_runs_total{state="completed"} 1
`
	require.NoError(t, testutil.CollectAndCompare(pm.runsTotal, strings.NewReader(expected)))
}

func TestPrometheusMetrics_HTTPRequests(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.ObserveHTTPRequest(http.MethodGet, "/api/v1/scans", http.StatusOK, 5*time.Millisecond)
	pm.ObserveHTTPRequest(http.MethodPost, "/api/v1/scans", http.StatusBadRequest, time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(pm.httpRequests.WithLabelValues("POST", "/api/v1/scans", "400")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(pm.httpDuration))
}

func TestGlobalMetricsIsSingleton(t *testing.T) {
	assert.Same(t, GetGlobalMetrics(), GetGlobalMetrics())
	assert.Positive(t, GetGlobalMetrics().GetUptime())
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = Noop{}
	assert.NotPanics(t, func() {
		r.AttemptStarted()
		r.AttemptFinished("open", time.Millisecond)
		r.EngineFault("ENFILE")
		r.RunStarted()
		r.RunFinished("completed", time.Second)
	})
}
