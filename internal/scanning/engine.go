package scanning

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/metrics"
	"github.com/anstrom/portsweep/internal/ports"
	"github.com/anstrom/portsweep/internal/services"
	"github.com/anstrom/portsweep/internal/target"
)

// Dialer opens TCP connections. *net.Dialer implements it.
// Implementations must return promptly once ctx is done.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Engine runs bounded-concurrency TCP connect scans.
type Engine struct {
	dialer   Dialer
	recorder metrics.Recorder
	logger   *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDialer replaces the default net.Dialer.
func WithDialer(d Dialer) Option {
	return func(e *Engine) { e.dialer = d }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a scan engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		dialer:   &net.Dialer{},
		recorder: metrics.Noop{},
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.WithComponent("engine")
	return e
}

// fault records the first resource exhaustion seen during a scan.
type fault struct {
	once sync.Once
	err  error
	kind string
}

func (f *fault) set(err error, kind string, stop context.CancelFunc) {
	f.once.Do(func() {
		f.err = err
		f.kind = kind
		stop()
	})
}

// Scan probes every port in spec on t and calls onResult once per completed
// attempt, from a single goroutine, in completion order.
//
// At most cfg.Concurrency attempts are in flight at any time. When ctx is
// done no new attempts start, attempts already in flight finish within their
// own timeout, and onResult is not called again; Scan then returns a
// CANCELED error. Resource exhaustion (EMFILE, ENFILE, ENOBUFS, ENOMEM) stops
// dispatching in the same way and returns an ENGINE_FAULT error. Per-port
// timeouts and failures are results, not errors.
func (e *Engine) Scan(
	ctx context.Context,
	t target.ScanTarget,
	spec ports.Spec,
	cfg ScanConfig,
	onResult func(PortResult),
) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !t.Addr.IsValid() {
		return errors.ErrInvalidTarget(t.Host, "target has not been resolved")
	}
	if len(spec) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return errors.ErrScanCanceled(t.Host, err)
	}
	if onResult == nil {
		onResult = func(PortResult) {}
	}

	logger := e.logger.WithTarget(t.String())
	e.logger.InfoScan("scan started", t.String(), "ports", len(spec), "concurrency", cfg.Concurrency, "timeout", cfg.Timeout)
	start := time.Now()

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()

	limiter := NewLimiter(cfg.Concurrency)
	var pace *rate.Limiter
	if cfg.RateLimit > 0 {
		pace = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	results := make(chan PortResult, cfg.Concurrency)
	var delivered atomic.Int64
	deliveryDone := make(chan struct{})
	go func() {
		defer close(deliveryDone)
		for r := range results {
			if ctx.Err() != nil {
				continue
			}
			onResult(r)
			delivered.Add(1)
		}
	}()

	var (
		wg     sync.WaitGroup
		failed fault
	)
	for _, port := range spec {
		if pace != nil {
			if err := waitTurn(dispatchCtx, pace); err != nil {
				break
			}
		}
		if err := limiter.Acquire(dispatchCtx); err != nil {
			break
		}

		wg.Add(1)
		go func(port uint16) {
			defer wg.Done()
			defer limiter.Release()

			res, faultKind := e.attempt(ctx, t, port, cfg.Timeout)
			if faultKind != "" {
				logger.Error("resource exhaustion, stopping dispatch", "port", port, "error", res.Detail)
				failed.set(stderrors.New(res.Detail), faultKind, stopDispatch)
			}
			results <- res
		}(port)
	}

	wg.Wait()
	close(results)
	<-deliveryDone

	done := int(delivered.Load())
	elapsed := time.Since(start)

	if failed.err != nil {
		e.recorder.EngineFault(failed.kind)
		e.logger.ErrorScan("scan aborted by engine fault", t.String(), failed.err,
			"kind", failed.kind, "completed", done, "total", len(spec))
		return errors.ErrEngineFault(t.Host, failed.err).WithContext("kind", failed.kind)
	}
	if done < len(spec) {
		if err := ctx.Err(); err != nil {
			logger.Info("scan canceled", "completed", done, "total", len(spec), "duration", elapsed)
			return errors.ErrScanCanceled(t.Host, err)
		}
		// Only a fault or cancellation stops dispatch early.
		return errors.ErrEngineFault(t.Host,
			fmt.Errorf("dispatch stopped after %d of %d ports", done, len(spec)))
	}

	logger.Info("scan finished", "ports", len(spec), "duration", elapsed, "peak_in_flight", limiter.Peak())
	return nil
}

// waitTurn blocks until pace allows the next dispatch or ctx is done. Unlike
// rate.Limiter.Wait it does not fail early when the wait would outlast the
// ctx deadline; a deadline only ends the wait once it has passed.
func waitTurn(ctx context.Context, pace *rate.Limiter) error {
	r := pace.Reserve()
	delay := r.Delay()
	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// attempt performs one connect. The dial context is detached from the scan
// context so cancellation never cuts an attempt short; only the timeout does.
func (e *Engine) attempt(ctx context.Context, t target.ScanTarget, port uint16, timeout time.Duration) (PortResult, string) {
	e.recorder.AttemptStarted()

	dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	started := time.Now()
	conn, err := e.dialer.DialContext(dialCtx, "tcp", t.Dial(port))
	elapsed := time.Since(started)

	res := PortResult{
		Port:    port,
		Service: services.Describe(port),
		Elapsed: elapsed,
	}

	var faultKind string
	if err == nil {
		_ = conn.Close()
		res.Status = StatusOpen
	} else {
		res.Status, faultKind = classify(err)
		switch res.Status {
		case StatusTimeout:
			res.Elapsed = timeout
		case StatusError:
			res.Detail = err.Error()
		}
	}

	e.recorder.AttemptFinished(string(res.Status), res.Elapsed)
	e.logger.Debug("attempt finished", "port", port, "status", res.Status, "elapsed", res.Elapsed)
	return res, faultKind
}

var faultErrnos = map[syscall.Errno]string{
	syscall.EMFILE:  "EMFILE",
	syscall.ENFILE:  "ENFILE",
	syscall.ENOBUFS: "ENOBUFS",
	syscall.ENOMEM:  "ENOMEM",
}

var closedErrnos = []syscall.Errno{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.EHOSTUNREACH,
	syscall.ENETUNREACH,
}

// classify maps a dial error to a port status. The second value names the
// errno when the error means the local host has run out of resources.
func classify(err error) (Status, string) {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout, ""
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return StatusTimeout, ""
	}

	var errno syscall.Errno
	if stderrors.As(err, &errno) {
		if kind, ok := faultErrnos[errno]; ok {
			return StatusError, kind
		}
		for _, c := range closedErrnos {
			if errno == c {
				return StatusClosed, ""
			}
		}
	}
	return StatusError, ""
}
