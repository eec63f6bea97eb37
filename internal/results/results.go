// Package results collects per-port outcomes into a ScanRun, the single
// artifact every consumer of a scan reads.
package results

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/ports"
	"github.com/anstrom/portsweep/internal/scanning"
	"github.com/anstrom/portsweep/internal/target"
)

// State is the lifecycle state of a run.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Terminal reports whether no further results will be added.
func (s State) Terminal() bool {
	return s != StateRunning
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateRunning, StateCompleted, StateCancelled, StateFailed:
		return true
	}
	return false
}

var (
	// ErrDuplicateResult is returned when a port is reported twice.
	ErrDuplicateResult = errors.NewScanError(errors.CodeDuplicateResult, "port already has a result")
	// ErrUnexpectedPort is returned for ports outside the run's spec.
	ErrUnexpectedPort = errors.NewScanError(errors.CodeValidation, "port is not part of the scan")
	// ErrFinalized is returned when adding to a finalized run.
	ErrFinalized = errors.NewScanError(errors.CodeValidation, "scan run already finalized")
	// ErrIncomplete is returned when completing a run that lacks results.
	ErrIncomplete = errors.NewScanError(errors.CodeIncompleteResults, "scan run has ports without results")
)

// Summary counts results per status.
type Summary struct {
	Total   int `json:"total"`
	Open    int `json:"open"`
	Closed  int `json:"closed"`
	Timeout int `json:"timeout"`
	Error   int `json:"error"`
}

// Summarize counts results per status.
func Summarize(results []scanning.PortResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case scanning.StatusOpen:
			s.Open++
		case scanning.StatusClosed:
			s.Closed++
		case scanning.StatusTimeout:
			s.Timeout++
		default:
			s.Error++
		}
	}
	return s
}

// Progress reports how many ports have a result.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Percent returns completion in the range 0-100.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Completed) * 100 / float64(p.Total)
}

// ScanRun is a scan together with everything learned so far.
type ScanRun struct {
	ID         uuid.UUID             `json:"id"`
	Target     target.ScanTarget     `json:"target"`
	Ports      ports.Spec            `json:"-"`
	Config     scanning.ScanConfig   `json:"config"`
	State      State                 `json:"state"`
	Partial    bool                  `json:"partial"`
	Results    []scanning.PortResult `json:"results"`
	Summary    Summary               `json:"summary"`
	Progress   Progress              `json:"progress"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at,omitzero"`
	Error      string                `json:"error,omitempty"`
}

// Duration returns the run's elapsed time, up to now for running scans.
func (r *ScanRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Aggregator accumulates results for one run. It is safe for concurrent use.
type Aggregator struct {
	mu        sync.Mutex
	id        uuid.UUID
	target    target.ScanTarget
	spec      ports.Spec
	config    scanning.ScanConfig
	startedAt time.Time
	results   map[uint16]scanning.PortResult
	final     *ScanRun
}

// New creates an aggregator for a run that starts now.
func New(id uuid.UUID, t target.ScanTarget, spec ports.Spec, cfg scanning.ScanConfig) *Aggregator {
	return &Aggregator{
		id:        id,
		target:    t,
		spec:      spec,
		config:    cfg,
		startedAt: time.Now().UTC(),
		results:   make(map[uint16]scanning.PortResult, len(spec)),
	}
}

// ID returns the run identifier.
func (a *Aggregator) ID() uuid.UUID {
	return a.id
}

// Add records the result for one port.
func (a *Aggregator) Add(r scanning.PortResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.final != nil {
		return fmt.Errorf("port %d: %w", r.Port, ErrFinalized)
	}
	if !a.spec.Contains(r.Port) {
		return fmt.Errorf("port %d: %w", r.Port, ErrUnexpectedPort)
	}
	if _, exists := a.results[r.Port]; exists {
		return fmt.Errorf("port %d: %w", r.Port, ErrDuplicateResult)
	}
	a.results[r.Port] = r
	return nil
}

// Progress returns the current completion count.
func (a *Aggregator) Progress() Progress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Progress{Completed: len(a.results), Total: len(a.spec)}
}

// Snapshot returns a copy of the run with results sorted by port. Once the
// run is finalized the final run is returned.
func (a *Aggregator) Snapshot() *ScanRun {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.final != nil {
		return a.final.clone()
	}
	return a.build(StateRunning)
}

// Finalize closes the run. A nil cause requires every port to have a
// result. A cancellation cause marks the run cancelled; any other cause marks
// it failed. Finalize is idempotent: later calls return the first outcome.
func (a *Aggregator) Finalize(cause error) (*ScanRun, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.final != nil {
		return a.final.clone(), nil
	}

	var run *ScanRun
	switch {
	case cause == nil:
		if len(a.results) < len(a.spec) {
			return nil, fmt.Errorf("%d of %d ports: %w", len(a.results), len(a.spec), ErrIncomplete)
		}
		run = a.build(StateCompleted)
	case isCancellation(cause):
		run = a.build(StateCancelled)
	default:
		run = a.build(StateFailed)
		run.Error = cause.Error()
	}

	run.Partial = len(a.results) < len(a.spec)
	run.FinishedAt = time.Now().UTC()
	a.final = run
	return run.clone(), nil
}

func isCancellation(err error) bool {
	return errors.IsCode(err, errors.CodeCanceled) ||
		stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, context.DeadlineExceeded)
}

// build must be called with a.mu held.
func (a *Aggregator) build(state State) *ScanRun {
	list := make([]scanning.PortResult, 0, len(a.results))
	for _, r := range a.results {
		list = append(list, r)
	}
	slices.SortFunc(list, func(x, y scanning.PortResult) int { return int(x.Port) - int(y.Port) })

	return &ScanRun{
		ID:        a.id,
		Target:    a.target,
		Ports:     a.spec,
		Config:    a.config,
		State:     state,
		Results:   list,
		Summary:   Summarize(list),
		Progress:  Progress{Completed: len(list), Total: len(a.spec)},
		StartedAt: a.startedAt,
	}
}

func (r *ScanRun) clone() *ScanRun {
	c := *r
	c.Results = slices.Clone(r.Results)
	return &c
}
