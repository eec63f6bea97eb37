// Package handlers provides HTTP request handlers for the portsweep API.
// This file implements health check, status and version endpoints.
package handlers

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/anstrom/portsweep/internal/logging"
)

// Status constants.
const (
	StatusHealthy       = "healthy"
	StatusDegraded      = "degraded"
	StatusNotConfigured = "not configured"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ActivityReporter reports how many scans are in flight.
type ActivityReporter interface {
	Active() int
}

// SchedulerStatus reports whether the scheduler loop is running.
type SchedulerStatus interface {
	Running() bool
}

// HealthHandler handles health check and status endpoints.
type HealthHandler struct {
	build     BuildInfo
	runs      ActivityReporter
	scheduler SchedulerStatus
	logger    *logging.Logger
	startTime time.Time
}

// NewHealthHandler creates a new health handler. scheduler may be nil.
func NewHealthHandler(build BuildInfo, runs ActivityReporter, scheduler SchedulerStatus,
	logger *logging.Logger,
) *HealthHandler {
	return &HealthHandler{
		build:     build,
		runs:      runs,
		scheduler: scheduler,
		logger:    logger.WithFields("handler", "health"),
		startTime: time.Now(),
	}
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Uptime     string            `json:"uptime"`
	ActiveRuns int               `json:"active_runs"`
	Checks     map[string]string `json:"checks"`
}

// StatusResponse represents a detailed status response.
type StatusResponse struct {
	Service   ServiceInfo    `json:"service"`
	System    SystemInfo     `json:"system"`
	Health    HealthResponse `json:"health"`
	Timestamp time.Time      `json:"timestamp"`
}

// ServiceInfo contains service-related information.
type ServiceInfo struct {
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	StartTime time.Time `json:"start_time"`
	Uptime    string    `json:"uptime"`
	PID       int       `json:"pid"`
}

// SystemInfo contains system-related information.
type SystemInfo struct {
	OS           string     `json:"os"`
	Architecture string     `json:"architecture"`
	CPUs         int        `json:"cpus"`
	GoVersion    string     `json:"go_version"`
	Memory       MemoryInfo `json:"memory"`
	Goroutines   int        `json:"goroutines"`
}

// MemoryInfo contains memory usage information.
type MemoryInfo struct {
	Allocated   uint64 `json:"allocated_bytes"`
	System      uint64 `json:"system_bytes"`
	GCCycles    uint32 `json:"gc_cycles"`
	HeapObjects uint64 `json:"heap_objects"`
}

// VersionResponse represents version information.
type VersionResponse struct {
	Version   string    `json:"version"`
	Commit    string    `json:"commit"`
	BuildTime string    `json:"build_time"`
	GoVersion string    `json:"go_version"`
	Timestamp time.Time `json:"timestamp"`
}

// Health performs a basic health check.
//
//	@Summary		Health check
//	@Description	Reports service health and the number of active scans
//	@Tags			System
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Health check requested", "remote_addr", r.RemoteAddr)
	writeJSON(w, r, http.StatusOK, h.health())
}

// Liveness answers as long as the process serves requests.
//
//	@Summary		Liveness probe
//	@Tags			System
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Router			/liveness [get]
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Status provides detailed system status information.
//
//	@Summary		Service status
//	@Tags			System
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		ApiKeyAuth
//	@Router			/status [get]
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	h.logger.Debug("Status check requested", "remote_addr", r.RemoteAddr)

	writeJSON(w, r, http.StatusOK, StatusResponse{
		Service: ServiceInfo{
			Name:      "portsweep",
			Version:   h.build.Version,
			StartTime: h.startTime,
			Uptime:    time.Since(h.startTime).Round(time.Second).String(),
			PID:       os.Getpid(),
		},
		System:    systemInfo(),
		Health:    h.health(),
		Timestamp: time.Now().UTC(),
	})
}

// Version provides version information.
//
//	@Summary		Version
//	@Tags			System
//	@Produce		json
//	@Success		200	{object}	VersionResponse
//	@Router			/version [get]
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, VersionResponse{
		Version:   h.build.Version,
		Commit:    h.build.Commit,
		BuildTime: h.build.BuildTime,
		GoVersion: runtime.Version(),
		Timestamp: time.Now().UTC(),
	})
}

func (h *HealthHandler) health() HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    map[string]string{"scan_manager": "ok"},
	}
	if h.runs != nil {
		resp.ActiveRuns = h.runs.Active()
	}

	switch {
	case h.scheduler == nil:
		resp.Checks["scheduler"] = StatusNotConfigured
	case h.scheduler.Running():
		resp.Checks["scheduler"] = "ok"
	default:
		resp.Checks["scheduler"] = "stopped"
		resp.Status = StatusDegraded
	}
	return resp
}

func systemInfo() SystemInfo {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return SystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		CPUs:         runtime.NumCPU(),
		GoVersion:    runtime.Version(),
		Memory: MemoryInfo{
			Allocated:   mem.Alloc,
			System:      mem.Sys,
			GCCycles:    mem.NumGC,
			HeapObjects: mem.HeapObjects,
		},
		Goroutines: runtime.NumGoroutine(),
	}
}
