// Package metrics provides Prometheus-based metrics collection for portsweep.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace for all portsweep metrics
	namespace = "portsweep"

	// Subsystems
	subsystemScan = "scan"
	subsystemAPI  = "api"
)

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Run metrics
	runsTotal    *prometheus.CounterVec
	scanDuration prometheus.Histogram
	activeRuns   prometheus.Gauge

	// Engine metrics
	portsTotal     *prometheus.CounterVec
	connectLatency *prometheus.HistogramVec
	inFlight       prometheus.Gauge
	engineFaults   *prometheus.CounterVec

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	startTime time.Time
	registry  *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initScanMetrics()
	pm.initAPIMetrics()
	pm.registerMetrics()

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

// initScanMetrics initializes scan-related metrics
func (pm *PrometheusMetrics) initScanMetrics() {
	pm.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "runs_total",
			Help:      "Total number of scan runs by final state",
		},
		[]string{"state"},
	)

	pm.scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of scan runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0},
		},
	)

	pm.activeRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "active_runs",
			Help:      "Number of currently running scans",
		},
	)

	pm.portsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "ports_total",
			Help:      "Total number of ports probed by result status",
		},
		[]string{"status"},
	)

	pm.connectLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "connect_latency_seconds",
			Help:      "Latency of TCP connection attempts by result status",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"status"},
	)

	pm.inFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "attempts_in_flight",
			Help:      "Number of connection attempts currently in flight",
		},
	)

	pm.engineFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "engine_faults_total",
			Help:      "Total number of scans stopped by a resource fault",
		},
		[]string{"kind"},
	)
}

// initAPIMetrics initializes API-related metrics
func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"method", "route"},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.runsTotal,
		pm.scanDuration,
		pm.activeRuns,
		pm.portsTotal,
		pm.connectLatency,
		pm.inFlight,
		pm.engineFaults,
		pm.httpRequests,
		pm.httpDuration,
	)
}

// GetRegistry returns the Prometheus registry for HTTP handler
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// Handler returns an HTTP handler exposing the private registry.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{Registry: pm.registry})
}

// AttemptStarted tracks a dispatched connection attempt
func (pm *PrometheusMetrics) AttemptStarted() {
	pm.inFlight.Inc()
}

// AttemptFinished records the outcome of a connection attempt
func (pm *PrometheusMetrics) AttemptFinished(status string, elapsed time.Duration) {
	pm.inFlight.Dec()
	pm.portsTotal.WithLabelValues(status).Inc()
	pm.connectLatency.WithLabelValues(status).Observe(elapsed.Seconds())
}

// EngineFault increments the engine fault counter
func (pm *PrometheusMetrics) EngineFault(kind string) {
	pm.engineFaults.WithLabelValues(kind).Inc()
}

// RunStarted tracks a newly started run
func (pm *PrometheusMetrics) RunStarted() {
	pm.activeRuns.Inc()
}

// RunFinished records a run's final state and duration
func (pm *PrometheusMetrics) RunFinished(state string, duration time.Duration) {
	pm.activeRuns.Dec()
	pm.runsTotal.WithLabelValues(state).Inc()
	pm.scanDuration.Observe(duration.Seconds())
}

// ObserveHTTPRequest records one served API request
func (pm *PrometheusMetrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	pm.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	pm.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// GetUptime returns the time since the metrics instance was created
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// Global instance for easy access
var (
	globalMetrics *PrometheusMetrics
	metricsOnce   sync.Once
)

// GetGlobalMetrics returns the global Prometheus metrics instance
func GetGlobalMetrics() *PrometheusMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewPrometheusMetrics()
	})
	return globalMetrics
}
