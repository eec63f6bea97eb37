// Package handlers provides HTTP request handlers for the portsweep API.
// This file implements the scheduled scan endpoints.
package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/anstrom/portsweep/internal/api/middleware"
	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/scheduler"
)

// JobScheduler is the part of *scheduler.Scheduler the API uses.
type JobScheduler interface {
	Jobs() []scheduler.JobInfo
	Trigger(name string) (bool, error)
	Running() bool
}

// ScheduleHandler handles schedule-related API endpoints.
type ScheduleHandler struct {
	scheduler JobScheduler
	logger    *logging.Logger
}

// NewScheduleHandler creates a new schedule handler.
func NewScheduleHandler(s JobScheduler, logger *logging.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		scheduler: s,
		logger:    logger.WithFields("handler", "schedule"),
	}
}

// TriggerResponse reports the outcome of a manual trigger.
type TriggerResponse struct {
	Name    string `json:"name"`
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// ListSchedules handles GET /api/v1/schedules.
//
//	@Summary		List schedules
//	@Description	Lists configured recurring scans with their next and last run
//	@Tags			Schedules
//	@Produce		json
//	@Success		200	{array}	scheduler.JobInfo
//	@Security		ApiKeyAuth
//	@Router			/schedules [get]
func (h *ScheduleHandler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.scheduler.Jobs())
}

// GetSchedule handles GET /api/v1/schedules/{name}.
//
//	@Summary		Get a schedule
//	@Tags			Schedules
//	@Produce		json
//	@Param			name	path		string	true	"Schedule name"
//	@Success		200		{object}	scheduler.JobInfo
//	@Failure		404		{object}	ErrorResponse
//	@Security		ApiKeyAuth
//	@Router			/schedules/{name} [get]
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	for _, job := range h.scheduler.Jobs() {
		if job.Name == name {
			writeJSON(w, r, http.StatusOK, job)
			return
		}
	}
	writeAppError(w, r, errors.ErrNotFound("schedule", name))
}

// TriggerSchedule handles POST /api/v1/schedules/{name}/run.
//
//	@Summary		Run a schedule now
//	@Description	Starts the scheduled scan immediately; skipped when it is already running
//	@Tags			Schedules
//	@Produce		json
//	@Param			name	path		string	true	"Schedule name"
//	@Success		202		{object}	TriggerResponse
//	@Success		409		{object}	TriggerResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		ApiKeyAuth
//	@Router			/schedules/{name}/run [post]
func (h *ScheduleHandler) TriggerSchedule(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	started, err := h.scheduler.Trigger(name)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	if !started {
		writeJSON(w, r, http.StatusConflict, TriggerResponse{
			Name:    name,
			Message: "previous run still in progress",
		})
		return
	}

	h.logger.Info("Schedule triggered", "request_id", middleware.GetRequestID(r), "schedule", name)
	writeJSON(w, r, http.StatusAccepted, TriggerResponse{
		Name:    name,
		Started: true,
		Message: "scan started",
	})
}
