// Package handlers provides HTTP request handlers for the portsweep API.
// This file implements the scan endpoints: start, list, inspect, cancel and
// report.
package handlers

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/portsweep/internal/api/middleware"
	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/report"
	"github.com/anstrom/portsweep/internal/results"
	"github.com/anstrom/portsweep/internal/runs"
	"github.com/anstrom/portsweep/internal/scanning"
)

// RunManager is the part of *runs.Manager the API uses.
type RunManager interface {
	Start(ctx context.Context, req runs.Request) (uuid.UUID, error)
	Get(id uuid.UUID) (*results.ScanRun, error)
	List() []*results.ScanRun
	Active() int
	Cancel(id uuid.UUID) error
	Subscribe(id uuid.UUID) (<-chan scanning.PortResult, func(), error)
}

// ScanHandler handles scan-related API endpoints.
type ScanHandler struct {
	manager  RunManager
	defaults scanning.ScanConfig
	logger   *logging.Logger
}

// NewScanHandler creates a new scan handler. defaults fills the tuning
// fields a request leaves out.
func NewScanHandler(manager RunManager, defaults scanning.ScanConfig, logger *logging.Logger) *ScanHandler {
	return &ScanHandler{
		manager:  manager,
		defaults: defaults,
		logger:   logger.WithFields("handler", "scan"),
	}
}

// ScanRequest represents a scan creation request.
type ScanRequest struct {
	Host        string  `json:"host" validate:"required,max=255"`
	Ports       string  `json:"ports,omitempty" validate:"max=4096"`
	Concurrency int     `json:"concurrency,omitempty" validate:"omitempty,min=1,max=10000"`
	TimeoutMS   int     `json:"timeout_ms,omitempty" validate:"omitempty,min=1,max=600000"`
	RateLimit   float64 `json:"rate_limit,omitempty" validate:"gte=0"`
}

// ScanCreatedResponse is returned when a scan is accepted.
type ScanCreatedResponse struct {
	ID    uuid.UUID         `json:"id"`
	State results.State     `json:"state"`
	Links map[string]string `json:"links"`
}

// ScanSummaryResponse is one entry of the scan list.
type ScanSummaryResponse struct {
	ID         uuid.UUID        `json:"id"`
	Host       string           `json:"host"`
	Address    string           `json:"address"`
	State      results.State    `json:"state"`
	Partial    bool             `json:"partial"`
	Progress   results.Progress `json:"progress"`
	Summary    results.Summary  `json:"summary"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// ScanResponse is the full view of a run.
type ScanResponse struct {
	report.Record
	Progress        results.Progress    `json:"progress"`
	PercentComplete float64             `json:"percent_complete"`
	Config          scanning.ScanConfig `json:"config"`
	Ports           string              `json:"ports"`
}

func (req *ScanRequest) toRunRequest(defaults scanning.ScanConfig) runs.Request {
	out := runs.Request{Host: req.Host, Ports: req.Ports}
	if req.Concurrency == 0 && req.TimeoutMS == 0 && req.RateLimit == 0 {
		return out
	}

	cfg := defaults
	if req.Concurrency > 0 {
		cfg.Concurrency = req.Concurrency
	}
	if req.TimeoutMS > 0 {
		cfg.Timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	if req.RateLimit > 0 {
		cfg.RateLimit = req.RateLimit
	}
	out.Config = &cfg
	return out
}

// CreateScan handles POST /api/v1/scans.
//
//	@Summary		Start a scan
//	@Description	Validates the request, resolves the host and starts a background TCP connect scan
//	@Tags			Scans
//	@Accept			json
//	@Produce		json
//	@Param			scan	body		ScanRequest	true	"Scan request"
//	@Success		202		{object}	ScanCreatedResponse
//	@Failure		400		{object}	ErrorResponse
//	@Security		ApiKeyAuth
//	@Router			/scans [post]
func (h *ScanHandler) CreateScan(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)

	var req ScanRequest
	if err := parseJSON(w, r, &req); err != nil {
		writeAppError(w, r, err)
		return
	}

	id, err := h.manager.Start(r.Context(), req.toRunRequest(h.defaults))
	if err != nil {
		h.logger.Warn("Scan rejected", "request_id", requestID, "host", req.Host, "error", err)
		writeAppError(w, r, err)
		return
	}

	h.logger.Info("Scan started", "request_id", requestID, "scan_id", id, "host", req.Host)

	base := "/api/v1/scans/" + id.String()
	w.Header().Set("Location", base)
	writeJSON(w, r, http.StatusAccepted, ScanCreatedResponse{
		ID:    id,
		State: results.StateRunning,
		Links: map[string]string{
			"self":   base,
			"stream": base + "/stream",
			"report": base + "/report",
		},
	})
}

// ListScans handles GET /api/v1/scans.
//
//	@Summary		List scans
//	@Description	Lists stored scan runs, newest first
//	@Tags			Scans
//	@Produce		json
//	@Param			page		query		int		false	"Page number"
//	@Param			page_size	query		int		false	"Page size"
//	@Param			state		query		string	false	"Filter by state"
//	@Success		200			{object}	PaginatedResponse
//	@Failure		400			{object}	ErrorResponse
//	@Security		ApiKeyAuth
//	@Router			/scans [get]
func (h *ScanHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	params, err := getPaginationParams(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	state := results.State(r.URL.Query().Get("state"))
	if state != "" && !state.Valid() {
		writeAppError(w, r, errors.NewScanError(errors.CodeValidation, "invalid state filter: "+string(state)))
		return
	}

	all := h.manager.List()
	summaries := make([]ScanSummaryResponse, 0, len(all))
	for _, run := range all {
		if state != "" && run.State != state {
			continue
		}
		summaries = append(summaries, toSummary(run))
	}

	writePaginatedResponse(w, r, paginate(summaries, params), params, len(summaries))
}

// GetScan handles GET /api/v1/scans/{id}.
//
//	@Summary		Get a scan
//	@Description	Returns a snapshot of a run including progress and results so far
//	@Tags			Scans
//	@Produce		json
//	@Param			id	path		string	true	"Scan ID"
//	@Success		200	{object}	ScanResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		ApiKeyAuth
//	@Router			/scans/{id} [get]
func (h *ScanHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, r, http.StatusOK, toResponse(run))
}

// CancelScan handles DELETE /api/v1/scans/{id}.
//
//	@Summary		Cancel a scan
//	@Description	Requests cancellation; results gathered so far are kept
//	@Tags			Scans
//	@Produce		json
//	@Param			id	path		string	true	"Scan ID"
//	@Success		200	{object}	ScanSummaryResponse	"Run had already finished"
//	@Success		202	{object}	ScanSummaryResponse
//	@Failure		404	{object}	ErrorResponse
//	@Security		ApiKeyAuth
//	@Router			/scans/{id} [delete]
func (h *ScanHandler) CancelScan(w http.ResponseWriter, r *http.Request) {
	id, err := extractUUIDFromPath(r)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	current, err := h.manager.Get(id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if current.State.Terminal() {
		writeJSON(w, r, http.StatusOK, toSummary(current))
		return
	}

	if err := h.manager.Cancel(id); err != nil {
		writeAppError(w, r, err)
		return
	}
	h.logger.Info("Scan cancellation requested", "request_id", middleware.GetRequestID(r), "scan_id", id)

	run, err := h.manager.Get(id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusAccepted, toSummary(run))
}

// GetReport handles GET /api/v1/scans/{id}/report.
//
//	@Summary		Scan report
//	@Description	Renders the run as plain text or JSON
//	@Tags			Scans
//	@Produce		plain
//	@Produce		json
//	@Param			id		path		string	true	"Scan ID"
//	@Param			format	query		string	false	"text or json"	Enums(text, json)
//	@Success		200		{string}	string
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Security		ApiKeyAuth
//	@Router			/scans/{id}/report [get]
func (h *ScanHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil || format == report.FormatTable {
		writeAppError(w, r, errors.NewScanError(errors.CodeValidation, "format must be text or json"))
		return
	}

	run, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, run, format, false); err != nil {
		writeAppError(w, r, err)
		return
	}

	if format == report.FormatJSON {
		w.Header().Set("Content-Type", "application/json")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *ScanHandler) lookup(w http.ResponseWriter, r *http.Request) (*results.ScanRun, bool) {
	id, err := extractUUIDFromPath(r)
	if err != nil {
		writeAppError(w, r, err)
		return nil, false
	}
	run, err := h.manager.Get(id)
	if err != nil {
		writeAppError(w, r, err)
		return nil, false
	}
	return run, true
}

func toSummary(run *results.ScanRun) ScanSummaryResponse {
	s := ScanSummaryResponse{
		ID:        run.ID,
		Host:      run.Target.Host,
		Address:   run.Target.Addr.String(),
		State:     run.State,
		Partial:   run.Partial,
		Progress:  run.Progress,
		Summary:   run.Summary,
		StartedAt: run.StartedAt,
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt
		s.FinishedAt = &finished
	}
	return s
}

func toResponse(run *results.ScanRun) ScanResponse {
	return ScanResponse{
		Record:          report.NewRecord(run),
		Progress:        run.Progress,
		PercentComplete: run.Progress.Percent(),
		Config:          run.Config,
		Ports:           run.Ports.String(),
	}
}
