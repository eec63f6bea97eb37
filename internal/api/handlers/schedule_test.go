package handlers

import (
	"context"
	"net/http"
	"net/netip"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portsweep/internal/config"
	apperrors "github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/ports"
	"github.com/anstrom/portsweep/internal/results"
	"github.com/anstrom/portsweep/internal/runs"
	"github.com/anstrom/portsweep/internal/scanning"
	"github.com/anstrom/portsweep/internal/scheduler"
	"github.com/anstrom/portsweep/internal/target"
)

type blockingExecutor struct {
	release chan struct{}
}

func (b *blockingExecutor) Execute(_ context.Context, req runs.Request,
	_ func(scanning.PortResult)) (*results.ScanRun, error) {
	<-b.release
	agg := results.New(uuid.New(), target.ScanTarget{Host: req.Host, Addr: netip.MustParseAddr("127.0.0.1")},
		ports.Spec{}, *req.Config)
	return agg.Finalize(nil)
}

func newScheduleRouter(t *testing.T) (*mux.Router, *scheduler.Scheduler, *blockingExecutor) {
	t.Helper()
	exec := &blockingExecutor{release: make(chan struct{})}
	s := scheduler.NewScheduler(exec, scheduler.WithLogger(logging.NewDiscard()))
	require.NoError(t, s.Load([]config.ScheduleConfig{
		{Name: "nightly", Cron: "0 2 * * *", Host: "127.0.0.1", Ports: "22,80"},
		{Name: "hourly", Cron: "@hourly", Host: "192.0.2.1"},
	}))
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)

	h := NewScheduleHandler(s, logging.NewDiscard())
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/schedules", h.ListSchedules).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/schedules/{name}", h.GetSchedule).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/schedules/{name}/run", h.TriggerSchedule).Methods(http.MethodPost)
	return router, s, exec
}

func TestListSchedules(t *testing.T) {
	router, _, _ := newScheduleRouter(t)

	rec := do(t, router, http.MethodGet, "/api/v1/schedules", "")
	require.Equal(t, http.StatusOK, rec.Code)

	jobs := decode[[]scheduler.JobInfo](t, rec)
	require.Len(t, jobs, 2)
	assert.Equal(t, "hourly", jobs[0].Name)
	assert.Equal(t, "nightly", jobs[1].Name)
	assert.Equal(t, "22,80", jobs[1].Ports)
	assert.False(t, jobs[1].NextRun.IsZero())
}

func TestGetSchedule(t *testing.T) {
	router, _, _ := newScheduleRouter(t)

	rec := do(t, router, http.MethodGet, "/api/v1/schedules/nightly", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0 2 * * *", decode[scheduler.JobInfo](t, rec).Cron)

	rec = do(t, router, http.MethodGet, "/api/v1/schedules/weekly", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(apperrors.CodeNotFound), decode[ErrorResponse](t, rec).Code)
}

func TestTriggerSchedule(t *testing.T) {
	router, s, exec := newScheduleRouter(t)

	rec := do(t, router, http.MethodPost, "/api/v1/schedules/nightly/run", "")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.True(t, decode[TriggerResponse](t, rec).Started)

	rec = do(t, router, http.MethodPost, "/api/v1/schedules/nightly/run", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, decode[TriggerResponse](t, rec).Started)

	close(exec.release)
	require.Eventually(t, func() bool {
		for _, j := range s.Jobs() {
			if j.Name == "nightly" {
				return !j.Running && j.LastState == results.StateCompleted
			}
		}
		return false
	}, 5*time.Second, time.Millisecond)

	rec = do(t, router, http.MethodPost, "/api/v1/schedules/weekly/run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
