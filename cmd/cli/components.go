package cli

import (
	"time"

	"github.com/anstrom/portsweep/internal/config"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/metrics"
	"github.com/anstrom/portsweep/internal/runs"
	"github.com/anstrom/portsweep/internal/scanning"
	"github.com/anstrom/portsweep/internal/target"
)

const dnsQueryTimeout = 5 * time.Second

// scanDefaults returns the scan settings from the configuration.
func scanDefaults(cfg *config.Config) scanning.ScanConfig {
	return scanning.ScanConfig{
		Concurrency: cfg.Scanning.Concurrency,
		Timeout:     cfg.Scanning.Timeout,
		RateLimit:   cfg.Scanning.RateLimit,
	}
}

// newResolver builds the host resolver. A configured nameserver is queried
// directly; otherwise the system resolver is used.
func newResolver(cfg *config.Config, logger *logging.Logger) *target.Resolver {
	opts := []target.Option{
		target.WithLogger(logger),
		target.WithCache(cfg.Resolver.CacheSize, cfg.Resolver.CacheTTL),
	}
	if cfg.Resolver.Nameserver != "" {
		opts = append(opts, target.WithLookup(target.NewDNSLookup(cfg.Resolver.Nameserver, dnsQueryTimeout)))
	}
	return target.NewResolver(opts...)
}

// newManager wires resolver, engine and run store together.
func newManager(cfg *config.Config, logger *logging.Logger, recorder metrics.Recorder) *runs.Manager {
	engine := scanning.NewEngine(
		scanning.WithLogger(logger),
		scanning.WithRecorder(recorder),
	)
	return runs.NewManager(newResolver(cfg, logger), engine,
		runs.WithLogger(logger),
		runs.WithRecorder(recorder),
		runs.WithDefaultPorts(cfg.Scanning.DefaultPorts),
		runs.WithDefaultConfig(scanDefaults(cfg)),
		runs.WithMaxConcurrentRuns(cfg.Scanning.MaxConcurrentRuns),
		runs.WithHistory(cfg.Scanning.RunHistory),
	)
}
