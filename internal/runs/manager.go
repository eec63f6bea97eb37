// Package runs orchestrates scans end to end: it validates requests, resolves
// targets, drives the engine and keeps recent runs in a bounded in-memory
// store for the API, the scheduler and the CLI.
package runs

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/metrics"
	"github.com/anstrom/portsweep/internal/ports"
	"github.com/anstrom/portsweep/internal/results"
	"github.com/anstrom/portsweep/internal/scanning"
	"github.com/anstrom/portsweep/internal/target"
)

const (
	defaultHistory        = 100
	defaultConcurrentRuns = 4
	maxSubscriberBuffer   = 4096
)

// Resolver turns a host string into a scan target.
type Resolver interface {
	Resolve(ctx context.Context, host string) (target.ScanTarget, error)
}

// Scanner runs a single scan. *scanning.Engine implements it.
type Scanner interface {
	Scan(ctx context.Context, t target.ScanTarget, spec ports.Spec, cfg scanning.ScanConfig,
		onResult func(scanning.PortResult)) error
}

// Request describes a scan to run.
type Request struct {
	Host  string
	Ports string
	// Config overrides the manager defaults when set.
	Config *scanning.ScanConfig
}

// Prepared is a fully validated request.
type Prepared struct {
	Target target.ScanTarget
	Ports  ports.Spec
	Config scanning.ScanConfig
}

// Manager owns the lifecycle of scan runs.
type Manager struct {
	resolver Resolver
	scanner  Scanner
	recorder metrics.Recorder
	logger   *logging.Logger

	defaultPorts  string
	defaultConfig scanning.ScanConfig
	maxRuns       int
	history       int

	slots *scanning.Limiter
	store *lru.Cache[uuid.UUID, *entry]

	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithLogger sets the manager logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithDefaultPorts sets the port spec used when a request has none.
func WithDefaultPorts(spec string) Option {
	return func(m *Manager) { m.defaultPorts = spec }
}

// WithDefaultConfig sets the scan config used when a request has none.
func WithDefaultConfig(cfg scanning.ScanConfig) Option {
	return func(m *Manager) { m.defaultConfig = cfg }
}

// WithMaxConcurrentRuns bounds how many runs scan at once, whether started
// with Start or Execute.
func WithMaxConcurrentRuns(n int) Option {
	return func(m *Manager) { m.maxRuns = n }
}

// WithHistory bounds how many runs are kept in memory.
func WithHistory(n int) Option {
	return func(m *Manager) { m.history = n }
}

// NewManager creates a run manager.
func NewManager(resolver Resolver, scanner Scanner, opts ...Option) *Manager {
	m := &Manager{
		resolver:      resolver,
		scanner:       scanner,
		recorder:      metrics.Noop{},
		logger:        logging.Default(),
		defaultPorts:  ports.PresetWellKnown,
		defaultConfig: scanning.DefaultConfig(),
		maxRuns:       defaultConcurrentRuns,
		history:       defaultHistory,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.history <= 0 {
		m.history = defaultHistory
	}
	m.logger = m.logger.WithComponent("runs")
	m.slots = scanning.NewLimiter(m.maxRuns)
	m.baseCtx, m.cancelAll = context.WithCancel(context.Background())

	// Only fails for a non-positive size, which is excluded above.
	m.store, _ = lru.NewWithEvict[uuid.UUID, *entry](m.history, func(id uuid.UUID, e *entry) {
		if !e.finished() {
			m.logger.Warn("evicting unfinished run", "scan_id", id.String())
			e.cancel()
		}
	})
	return m
}

// Prepare validates a request without dispatching anything. Every request
// error surfaces here: configuration, port spec, then target resolution.
func (m *Manager) Prepare(ctx context.Context, req Request) (Prepared, error) {
	cfg := m.defaultConfig
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := cfg.Validate(); err != nil {
		return Prepared{}, err
	}

	portSpec := req.Ports
	if portSpec == "" {
		portSpec = m.defaultPorts
	}
	spec, err := ports.Parse(portSpec)
	if err != nil {
		return Prepared{}, err
	}

	t, err := m.resolver.Resolve(ctx, req.Host)
	if err != nil {
		return Prepared{}, err
	}

	return Prepared{Target: t, Ports: spec, Config: cfg}, nil
}

// Start validates req and runs it in the background. The returned ID can be
// used with Get, Wait, Cancel and Subscribe. Runs beyond the concurrency
// bound wait for a slot in state running with no results.
func (m *Manager) Start(ctx context.Context, req Request) (uuid.UUID, error) {
	p, err := m.Prepare(ctx, req)
	if err != nil {
		return uuid.Nil, err
	}

	runCtx, cancel := context.WithCancel(m.baseCtx)
	e := m.register(p, cancel)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		if err := m.acquireSlot(runCtx, e); err != nil {
			m.finish(e, errors.ErrScanCanceled(p.Target.Host, err))
			return
		}
		defer m.slots.Release()

		_, _ = m.run(runCtx, e, p, nil)
	}()

	return e.agg.ID(), nil
}

// Execute validates req and runs it in the calling goroutine, waiting for a
// run slot first when all are taken. The final run is returned even when the
// scan was cancelled or failed, together with the scan error.
func (m *Manager) Execute(ctx context.Context, req Request, onResult func(scanning.PortResult)) (*results.ScanRun, error) {
	p, err := m.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e := m.register(p, cancel)
	if err := m.acquireSlot(runCtx, e); err != nil {
		cause := errors.ErrScanCanceled(p.Target.Host, err)
		return m.finish(e, cause), cause
	}
	defer m.slots.Release()

	return m.run(runCtx, e, p, onResult)
}

// acquireSlot takes a run slot, waiting while every slot is busy.
func (m *Manager) acquireSlot(ctx context.Context, e *entry) error {
	if m.slots.TryAcquire() {
		return nil
	}
	m.logger.Info("scan run queued, all slots busy",
		"scan_id", e.agg.ID().String(), "max_concurrent_runs", m.slots.Capacity())
	return m.slots.Acquire(ctx)
}

func (m *Manager) register(p Prepared, cancel context.CancelFunc) *entry {
	e := newEntry(results.New(uuid.New(), p.Target, p.Ports, p.Config), cancel, len(p.Ports))
	m.store.Add(e.agg.ID(), e)
	m.recorder.RunStarted()
	return e
}

func (m *Manager) run(ctx context.Context, e *entry, p Prepared, onResult func(scanning.PortResult)) (*results.ScanRun, error) {
	logger := m.logger.WithScanID(e.agg.ID().String()).WithTarget(p.Target.String())
	logger.Info("scan run started", "ports", p.Ports.Len())

	err := m.scanner.Scan(ctx, p.Target, p.Ports, p.Config, func(r scanning.PortResult) {
		if addErr := e.agg.Add(r); addErr != nil {
			logger.WithError(addErr).Warn("discarding result", "port", r.Port)
			return
		}
		e.publish(r)
		if onResult != nil {
			onResult(r)
		}
	})

	run := m.finish(e, err)
	if dropped := e.droppedResults(); dropped > 0 {
		logger.Warn("slow subscribers missed live results", "dropped", dropped)
	}
	logger.Info("scan run finished", "state", run.State, "partial", run.Partial,
		"open", run.Summary.Open, "duration", run.Duration())
	return run, err
}

func (m *Manager) finish(e *entry, cause error) *results.ScanRun {
	run, err := e.agg.Finalize(cause)
	if err != nil {
		// The scanner reported success without a result for every port.
		run, _ = e.agg.Finalize(err)
	}
	e.close()
	m.recorder.RunFinished(string(run.State), run.Duration())
	return run
}

func (m *Manager) lookup(id uuid.UUID) (*entry, error) {
	e, ok := m.store.Peek(id)
	if !ok {
		return nil, errors.ErrNotFound("scan", id.String())
	}
	return e, nil
}

// Get returns a snapshot of a run.
func (m *Manager) Get(id uuid.UUID) (*results.ScanRun, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.agg.Snapshot(), nil
}

// List returns snapshots of all stored runs, newest first.
func (m *Manager) List() []*results.ScanRun {
	entries := m.store.Values()
	runs := make([]*results.ScanRun, 0, len(entries))
	for _, e := range entries {
		runs = append(runs, e.agg.Snapshot())
	}
	slices.SortStableFunc(runs, func(a, b *results.ScanRun) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return runs
}

// Active returns the number of runs that have not finished.
func (m *Manager) Active() int {
	n := 0
	for _, e := range m.store.Values() {
		if !e.finished() {
			n++
		}
	}
	return n
}

// Cancel requests cancellation of a run. Cancelling a finished run is a no-op.
func (m *Manager) Cancel(id uuid.UUID) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.cancel()
	return nil
}

// Wait blocks until the run finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id uuid.UUID) (*results.ScanRun, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-e.done:
		return e.agg.Snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Subscribe returns a channel of live results for a run. The channel is
// closed when the run finishes; for finished runs it is already closed. A
// subscriber that falls behind loses results but can read the final run
// with Get. The returned function unsubscribes.
func (m *Manager) Subscribe(id uuid.UUID) (<-chan scanning.PortResult, func(), error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	ch, unsubscribe := e.subscribe()
	return ch, unsubscribe, nil
}

// Shutdown cancels every background run and waits for them to finish.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancelAll()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// entry is a stored run plus its live subscribers.
type entry struct {
	agg    *results.Aggregator
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	closed  bool
	subs    map[int]chan scanning.PortResult
	nextSub int
	bufSize int
	dropped int
}

func newEntry(agg *results.Aggregator, cancel context.CancelFunc, size int) *entry {
	if size > maxSubscriberBuffer {
		size = maxSubscriberBuffer
	}
	return &entry{
		agg:     agg,
		cancel:  cancel,
		done:    make(chan struct{}),
		subs:    make(map[int]chan scanning.PortResult),
		bufSize: size,
	}
}

func (e *entry) finished() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

func (e *entry) subscribe() (<-chan scanning.PortResult, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan scanning.PortResult, e.bufSize)
	if e.closed {
		close(ch)
		return ch, func() {}
	}

	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if sub, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(sub)
			}
		})
	}
}

func (e *entry) publish(r scanning.PortResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ch := range e.subs {
		select {
		case ch <- r:
		default:
			e.dropped++
		}
	}
}

func (e *entry) droppedResults() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

func (e *entry) close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	close(e.done)
}
