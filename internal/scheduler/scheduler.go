// Package scheduler runs recurring port scans on cron schedules. Each tick
// executes the job through the run manager; a tick that fires while the
// previous run of the same job is still in progress is skipped.
package scheduler

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/anstrom/portsweep/internal/config"
	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/results"
	"github.com/anstrom/portsweep/internal/runs"
	"github.com/anstrom/portsweep/internal/scanning"
)

// Executor runs a scan to completion. *runs.Manager implements it.
type Executor interface {
	Execute(ctx context.Context, req runs.Request, onResult func(scanning.PortResult)) (*results.ScanRun, error)
}

// Scheduler manages scheduled scan jobs.
type Scheduler struct {
	exec     Executor
	cron     *cron.Cron
	logger   *logging.Logger
	defaults scanning.ScanConfig
	jobs     map[string]*ScheduledJob
	mu       sync.RWMutex
	running  bool
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// ScheduledJob is a registered job and its bookkeeping.
type ScheduledJob struct {
	Config    config.ScheduleConfig
	CronID    cron.EntryID
	LastRun   time.Time
	LastRunID uuid.UUID
	LastState results.State
	Running   bool
	Skipped   int
}

// JobInfo is a read-only view of a job for listings.
type JobInfo struct {
	Name      string        `json:"name"`
	Cron      string        `json:"cron"`
	Host      string        `json:"host"`
	Ports     string        `json:"ports,omitempty"`
	NextRun   time.Time     `json:"next_run,omitzero"`
	LastRun   time.Time     `json:"last_run,omitzero"`
	LastRunID string        `json:"last_run_id,omitempty"`
	LastState results.State `json:"last_state,omitempty"`
	Running   bool          `json:"running"`
	Skipped   int           `json:"skipped"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaultConfig sets the scan settings used where a job leaves
// concurrency or timeout unset.
func WithDefaultConfig(cfg scanning.ScanConfig) Option {
	return func(s *Scheduler) { s.defaults = cfg }
}

// WithLocation sets the time zone cron expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.cron = cron.New(cron.WithLocation(loc)) }
}

// NewScheduler creates a new job scheduler.
func NewScheduler(exec Executor, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		exec:     exec,
		cron:     cron.New(),
		logger:   logging.Default(),
		defaults: scanning.DefaultConfig(),
		jobs:     make(map[string]*ScheduledJob),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load registers every schedule in cfgs. It stops at the first invalid one.
func (s *Scheduler) Load(cfgs []config.ScheduleConfig) error {
	for _, c := range cfgs {
		if err := s.AddJob(c); err != nil {
			return err
		}
	}
	return nil
}

// AddJob registers a scan job under its unique name.
func (s *Scheduler) AddJob(c config.ScheduleConfig) error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.NewScanError(errors.CodeValidation, "schedule name is required")
	}
	if strings.TrimSpace(c.Host) == "" {
		return errors.NewScanError(errors.CodeValidation, fmt.Sprintf("schedule %q: host is required", c.Name))
	}

	// Validate cron expression using standard 5-field format
	if _, err := cron.ParseStandard(c.Cron); err != nil {
		return errors.WrapScanError(errors.CodeValidation, fmt.Sprintf("schedule %q: invalid cron expression", c.Name), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[c.Name]; exists {
		return errors.NewScanError(errors.CodeValidation, fmt.Sprintf("schedule %q already exists", c.Name))
	}

	name := c.Name
	cronID, err := s.cron.AddFunc(c.Cron, func() { s.execute(name) })
	if err != nil {
		return errors.WrapScanError(errors.CodeValidation, fmt.Sprintf("schedule %q: failed to add cron job", c.Name), err)
	}

	s.jobs[name] = &ScheduledJob{Config: c, CronID: cronID}
	s.logger.InfoScheduler("added scan job", "job", name, "cron", c.Cron, "host", c.Host)
	return nil
}

// RemoveJob unregisters a job. A run already in progress is not interrupted.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[name]
	if !ok {
		return errors.ErrNotFound("schedule", name)
	}
	s.cron.Remove(job.CronID)
	delete(s.jobs, name)
	s.logger.InfoScheduler("removed scan job", "job", name)
	return nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	s.cron.Start()
	s.running = true

	s.logger.InfoScheduler("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop halts future ticks, cancels running jobs and waits for them to
// return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.cancel()
		s.wg.Wait()
		return
	}
	s.running = false
	s.mu.Unlock()

	cronCtx := s.cron.Stop()
	s.cancel()
	<-cronCtx.Done()
	s.wg.Wait()

	s.logger.InfoScheduler("scheduler stopped")
}

// Jobs lists the registered jobs ordered by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for name, job := range s.jobs {
		info := JobInfo{
			Name:      name,
			Cron:      job.Config.Cron,
			Host:      job.Config.Host,
			Ports:     job.Config.Ports,
			NextRun:   s.cron.Entry(job.CronID).Next,
			LastRun:   job.LastRun,
			LastState: job.LastState,
			Running:   job.Running,
			Skipped:   job.Skipped,
		}
		if job.LastRunID != uuid.Nil {
			info.LastRunID = job.LastRunID.String()
		}
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b JobInfo) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// RunNow executes the named job immediately in the calling goroutine. It
// returns false when the job is already running and the call was skipped.
func (s *Scheduler) RunNow(name string) (bool, error) {
	s.mu.RLock()
	_, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return false, errors.ErrNotFound("schedule", name)
	}
	return s.execute(name), nil
}

// Trigger starts the named job in the background. It returns false when the
// job is already running.
func (s *Scheduler) Trigger(name string) (bool, error) {
	s.mu.RLock()
	_, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return false, errors.ErrNotFound("schedule", name)
	}

	job, ok := s.prepareJobExecution(name)
	if !ok {
		return false, nil
	}
	go s.runJob(name, job)
	return true, nil
}

// Running reports whether the cron loop is started.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) execute(name string) bool {
	job, ok := s.prepareJobExecution(name)
	if !ok {
		return false
	}
	s.runJob(name, job)
	return true
}

func (s *Scheduler) runJob(name string, job *ScheduledJob) {
	defer s.wg.Done()

	req := s.request(job.Config)
	logger := s.logger.WithFields("job", name, "host", req.Host)
	logger.InfoScheduler("running scheduled scan")

	run, err := s.exec.Execute(s.ctx, req, nil)

	var state results.State
	var id uuid.UUID
	if run != nil {
		state = run.State
		id = run.ID
	}
	switch {
	case run == nil:
		logger.ErrorScheduler("scheduled scan rejected", err)
		state = results.StateFailed
	case err != nil:
		logger.Warn("scheduled scan ended early", "component", "scheduler", "scan_id", id, "state", state, "error", err)
	default:
		logger.InfoScheduler("scheduled scan finished", "scan_id", id, "open", run.Summary.Open, "duration", run.Duration())
	}

	s.cleanupJobExecution(name, id, state)
}

// prepareJobExecution marks the job running, or reports false when it
// already is.
func (s *Scheduler) prepareJobExecution(name string) (*ScheduledJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[name]
	if !ok {
		return nil, false
	}
	if job.Running {
		job.Skipped++
		s.logger.Warn("skipping scan job, previous run still in progress", "job", name, "skipped", job.Skipped)
		return nil, false
	}
	job.Running = true
	job.LastRun = time.Now()
	s.wg.Add(1)
	snapshot := *job
	return &snapshot, true
}

func (s *Scheduler) cleanupJobExecution(name string, id uuid.UUID, state results.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[name]; ok {
		job.Running = false
		job.LastRunID = id
		job.LastState = state
	}
}

func (s *Scheduler) request(c config.ScheduleConfig) runs.Request {
	cfg := s.defaults
	if c.Concurrency > 0 {
		cfg.Concurrency = c.Concurrency
	}
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	return runs.Request{Host: c.Host, Ports: c.Ports, Config: &cfg}
}
