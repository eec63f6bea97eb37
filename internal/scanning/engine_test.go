package scanning

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	apperrors "github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/mocks"
	"github.com/anstrom/portsweep/internal/ports"
	"github.com/anstrom/portsweep/internal/target"
)

type dialFunc func(ctx context.Context, network, address string) (net.Conn, error)

func (f dialFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return f(ctx, network, address)
}

func refused(string) error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
}

func portOf(t *testing.T, address string) uint16 {
	t.Helper()
	ap, err := netip.ParseAddrPort(address)
	require.NoError(t, err)
	return ap.Port()
}

var loopback = target.ScanTarget{Host: "127.0.0.1", Addr: netip.MustParseAddr("127.0.0.1")}

func newTestEngine(opts ...Option) *Engine {
	return NewEngine(append([]Option{WithLogger(logging.NewDiscard())}, opts...)...)
}

func rangeSpec(low, high uint16) ports.Spec {
	s := make(ports.Spec, 0, int(high-low)+1)
	for p := int(low); p <= int(high); p++ {
		s = append(s, uint16(p))
	}
	return s
}

// collector gathers results and fails the test on concurrent callbacks.
type collector struct {
	t       *testing.T
	mu      sync.Mutex
	active  atomic.Int32
	results map[uint16]PortResult
	order   []uint16
}

func newCollector(t *testing.T) *collector {
	return &collector{t: t, results: make(map[uint16]PortResult)}
}

func (c *collector) add(r PortResult) {
	if c.active.Add(1) != 1 {
		c.t.Error("onResult invoked concurrently")
	}
	defer c.active.Add(-1)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.results[r.Port]; dup {
		c.t.Errorf("port %d reported twice", r.Port)
	}
	c.results[r.Port] = r
	c.order = append(c.order, r.Port)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.results)
}

func TestScan_RealListeners(t *testing.T) {
	open, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer open.Close()
	go func() {
		for {
			conn, err := open.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	gone, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closedPort := portOf(t, gone.Addr().String())
	require.NoError(t, gone.Close())

	openPort := portOf(t, open.Addr().String())
	spec, err := ports.Parse(fmt.Sprintf("%d,%d", openPort, closedPort))
	require.NoError(t, err)

	c := newCollector(t)
	err = newTestEngine().Scan(context.Background(), loopback, spec, ScanConfig{Concurrency: 2, Timeout: 2 * time.Second}, c.add)
	require.NoError(t, err)

	require.Equal(t, 2, c.len())
	assert.Equal(t, StatusOpen, c.results[openPort].Status)
	assert.Equal(t, StatusClosed, c.results[closedPort].Status)
	assert.Less(t, c.results[openPort].Elapsed, 2*time.Second)
}

func TestScan_ServiceNames(t *testing.T) {
	d := dialFunc(func(_ context.Context, _, address string) (net.Conn, error) {
		return nil, refused(address)
	})

	c := newCollector(t)
	err := newTestEngine(WithDialer(d)).Scan(context.Background(), loopback, ports.Spec{22, 80, 31337},
		ScanConfig{Concurrency: 3, Timeout: time.Second}, c.add)
	require.NoError(t, err)

	assert.Equal(t, "SSH", c.results[22].Service)
	assert.Equal(t, "HTTP", c.results[80].Service)
	assert.Equal(t, "Unknown", c.results[31337].Service)
}

func TestScan_TimeoutsAreBoundedByConfig(t *testing.T) {
	blocking := dialFunc(func(ctx context.Context, _, _ string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	const timeout = 100 * time.Millisecond
	spec := rangeSpec(1, 200)
	c := newCollector(t)

	start := time.Now()
	err := newTestEngine(WithDialer(blocking)).Scan(context.Background(), loopback, spec,
		ScanConfig{Concurrency: 100, Timeout: timeout}, c.add)
	wall := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, len(spec), c.len())
	for _, r := range c.results {
		assert.Equal(t, StatusTimeout, r.Status)
		assert.Equal(t, timeout, r.Elapsed)
	}
	// two waves of 100 attempts, each bounded by the timeout
	assert.Less(t, wall, 2*time.Second)
}

func TestScan_ConcurrencyLimitIsNeverExceeded(t *testing.T) {
	const limit = 20
	var current, peak atomic.Int32

	d := dialFunc(func(_ context.Context, _, address string) (net.Conn, error) {
		n := current.Add(1)
		defer current.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		return nil, refused(address)
	})

	spec := rangeSpec(1000, 1499)
	c := newCollector(t)
	err := newTestEngine(WithDialer(d)).Scan(context.Background(), loopback, spec,
		ScanConfig{Concurrency: limit, Timeout: time.Second}, c.add)
	require.NoError(t, err)

	assert.Equal(t, len(spec), c.len())
	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Greater(t, peak.Load(), int32(1), "attempts should overlap")
	for _, p := range spec {
		assert.Equal(t, StatusClosed, c.results[p].Status)
	}
}

func TestScan_CancellationStopsCallbacks(t *testing.T) {
	var dials atomic.Int32
	d := dialFunc(func(_ context.Context, _, address string) (net.Conn, error) {
		dials.Add(1)
		time.Sleep(time.Millisecond)
		return nil, refused(address)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	spec := rangeSpec(1, 1000)
	var delivered atomic.Int32
	err := newTestEngine(WithDialer(d)).Scan(ctx, loopback, spec, ScanConfig{Concurrency: 4, Timeout: time.Second},
		func(PortResult) {
			if delivered.Add(1) == 3 {
				cancel()
			}
		})

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeCanceled), "got %v", err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(3), delivered.Load())
	assert.Less(t, dials.Load(), int32(len(spec)))
}

func TestScan_CanceledBeforeStart(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := mocks.NewMockDialer(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestEngine(WithDialer(dialer)).Scan(ctx, loopback, ports.Spec{80}, DefaultConfig(), nil)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeCanceled))
}

func TestScan_EmptySpec(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := mocks.NewMockDialer(ctrl)

	called := false
	err := newTestEngine(WithDialer(dialer)).Scan(context.Background(), loopback, ports.Spec{}, DefaultConfig(),
		func(PortResult) { called = true })

	require.NoError(t, err)
	assert.False(t, called)
}

func TestScan_InvalidInputsDialNothing(t *testing.T) {
	tests := []struct {
		name string
		tgt  target.ScanTarget
		cfg  ScanConfig
		code apperrors.ErrorCode
	}{
		{"zero concurrency", loopback, ScanConfig{Concurrency: 0, Timeout: time.Second}, apperrors.CodeValidation},
		{"too much concurrency", loopback, ScanConfig{Concurrency: MaxConcurrency + 1, Timeout: time.Second}, apperrors.CodeValidation},
		{"zero timeout", loopback, ScanConfig{Concurrency: 1}, apperrors.CodeValidation},
		{"negative rate", loopback, ScanConfig{Concurrency: 1, Timeout: time.Second, RateLimit: -1}, apperrors.CodeValidation},
		{"unresolved target", target.ScanTarget{Host: "example.com"}, DefaultConfig(), apperrors.CodeTargetInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			dialer := mocks.NewMockDialer(ctrl)

			err := newTestEngine(WithDialer(dialer)).Scan(context.Background(), tt.tgt, ports.Spec{80, 443}, tt.cfg, nil)
			require.Error(t, err)
			assert.True(t, apperrors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestScan_OpenConnectionsAreClosed(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := mocks.NewMockDialer(ctrl)

	server, client := net.Pipe()
	defer server.Close()

	dialer.EXPECT().
		DialContext(gomock.Any(), "tcp", "127.0.0.1:8080").
		Return(client, nil)

	c := newCollector(t)
	err := newTestEngine(WithDialer(dialer)).Scan(context.Background(), loopback, ports.Spec{8080}, DefaultConfig(), c.add)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, c.results[8080].Status)

	// The engine must have closed its end.
	_ = server.SetReadDeadline(time.Now().Add(time.Second))
	_, readErr := server.Read(make([]byte, 1))
	assert.Error(t, readErr)
}

func TestScan_ResourceExhaustionIsEngineFault(t *testing.T) {
	ctrl := gomock.NewController(t)
	recorder := mocks.NewMockRecorder(ctrl)
	recorder.EXPECT().AttemptStarted().AnyTimes()
	recorder.EXPECT().AttemptFinished(gomock.Any(), gomock.Any()).AnyTimes()
	recorder.EXPECT().EngineFault("EMFILE").Times(1)

	d := dialFunc(func(_ context.Context, _, address string) (net.Conn, error) {
		ap, _ := netip.ParseAddrPort(address)
		if ap.Port() == 5 {
			return nil, &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("socket", syscall.EMFILE)}
		}
		return nil, refused(address)
	})

	spec := rangeSpec(1, 100)
	c := newCollector(t)
	err := newTestEngine(WithDialer(d), WithRecorder(recorder)).Scan(context.Background(), loopback, spec,
		ScanConfig{Concurrency: 1, Timeout: time.Second}, c.add)

	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeEngineFault), "got %v", err)
	require.Contains(t, c.results, uint16(5))
	assert.Equal(t, StatusError, c.results[5].Status)
	assert.NotEmpty(t, c.results[5].Detail)
	assert.Less(t, c.len(), len(spec))
}

func TestScan_RecorderSeesEveryAttempt(t *testing.T) {
	ctrl := gomock.NewController(t)
	recorder := mocks.NewMockRecorder(ctrl)

	spec := rangeSpec(10, 19)
	recorder.EXPECT().AttemptStarted().Times(len(spec))
	recorder.EXPECT().AttemptFinished(string(StatusClosed), gomock.Any()).Times(len(spec))

	d := dialFunc(func(_ context.Context, _, address string) (net.Conn, error) {
		return nil, refused(address)
	})

	err := newTestEngine(WithDialer(d), WithRecorder(recorder)).Scan(context.Background(), loopback, spec,
		ScanConfig{Concurrency: 3, Timeout: time.Second}, nil)
	require.NoError(t, err)
}

func TestScan_RateLimit(t *testing.T) {
	d := dialFunc(func(_ context.Context, _, address string) (net.Conn, error) {
		return nil, refused(address)
	})

	start := time.Now()
	err := newTestEngine(WithDialer(d)).Scan(context.Background(), loopback, rangeSpec(1, 10),
		ScanConfig{Concurrency: 10, Timeout: time.Second, RateLimit: 50}, nil)
	require.NoError(t, err)

	// burst of one, then 20ms between attempts
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestScan_RateLimitWithDeadline(t *testing.T) {
	d := dialFunc(func(_ context.Context, _, address string) (net.Conn, error) {
		return nil, refused(address)
	})

	t.Run("deadline far enough", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		c := newCollector(t)
		err := newTestEngine(WithDialer(d)).Scan(ctx, loopback, rangeSpec(1, 5),
			ScanConfig{Concurrency: 1, Timeout: time.Second, RateLimit: 20}, c.add)
		require.NoError(t, err)
		assert.Equal(t, 5, c.len())
	})

	t.Run("next turn after the deadline", func(t *testing.T) {
		// turns at 0, 500ms and 1s; the fourth would start after the deadline
		ctx, cancel := context.WithTimeout(context.Background(), 1200*time.Millisecond)
		defer cancel()

		c := newCollector(t)
		err := newTestEngine(WithDialer(d)).Scan(ctx, loopback, rangeSpec(1, 5),
			ScanConfig{Concurrency: 1, Timeout: time.Second, RateLimit: 2}, c.add)

		require.Error(t, err)
		assert.Error(t, ctx.Err(), "scan stopped before the deadline passed")
		assert.True(t, apperrors.IsCode(err, apperrors.CodeCanceled), "got %v", err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
		assert.Equal(t, 3, c.len())
	})
}

func TestClassify(t *testing.T) {
	sysErr := func(errno syscall.Errno) error {
		return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", errno)}
	}

	tests := []struct {
		name   string
		err    error
		status Status
		fault  string
	}{
		{"refused", sysErr(syscall.ECONNREFUSED), StatusClosed, ""},
		{"reset", sysErr(syscall.ECONNRESET), StatusClosed, ""},
		{"host unreachable", sysErr(syscall.EHOSTUNREACH), StatusClosed, ""},
		{"network unreachable", sysErr(syscall.ENETUNREACH), StatusClosed, ""},
		{"deadline", context.DeadlineExceeded, StatusTimeout, ""},
		{"wrapped deadline", fmt.Errorf("dial: %w", context.DeadlineExceeded), StatusTimeout, ""},
		{"too many open files", sysErr(syscall.EMFILE), StatusError, "EMFILE"},
		{"file table full", sysErr(syscall.ENFILE), StatusError, "ENFILE"},
		{"no buffers", sysErr(syscall.ENOBUFS), StatusError, "ENOBUFS"},
		{"no memory", sysErr(syscall.ENOMEM), StatusError, "ENOMEM"},
		{"permission", sysErr(syscall.EACCES), StatusError, ""},
		{"opaque", errors.New("boom"), StatusError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, fault := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.fault, fault)
		})
	}
}

func TestScanConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, ScanConfig{Concurrency: 1, Timeout: time.Nanosecond}.Validate())
	assert.NoError(t, ScanConfig{Concurrency: MaxConcurrency, Timeout: time.Second, RateLimit: 1000}.Validate())

	err := ScanConfig{Concurrency: 0, Timeout: time.Second}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrency must be between 1 and 10000")

	err = ScanConfig{Concurrency: 1, Timeout: -time.Second}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout must be positive")
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range Statuses {
		assert.True(t, s.Valid())
	}
	assert.False(t, Status("filtered").Valid())
}
