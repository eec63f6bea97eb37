package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/anstrom/portsweep/internal/api"
	"github.com/anstrom/portsweep/internal/api/handlers"
	"github.com/anstrom/portsweep/internal/config"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/metrics"
	"github.com/anstrom/portsweep/internal/scheduler"
)

const runShutdownTimeout = 30 * time.Second

var (
	serveHost string
	servePort int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and scheduled scans",
	Long: `Start the portsweep HTTP API. Scans are submitted to /api/v1/scans, run in
the background and can be polled, cancelled, streamed over a WebSocket, or
fetched as a report. Schedules listed in the configuration file run on their
cron expressions while the server is up.

The server stops gracefully on SIGINT or SIGTERM: running scans are cancelled
and keep the results gathered so far.`,
	Example: `  portsweep serve
  portsweep serve --config /etc/portsweep/config.yaml
  portsweep serve --host 0.0.0.0 --port 9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Address to listen on (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cmd.Flags().Changed("host") {
		cfg.API.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.API.Port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logging.Default())
}

// serve runs the API server and scheduler until ctx is done or one of them
// fails, then drains running scans.
func serve(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	var (
		pm       *metrics.PrometheusMetrics
		recorder metrics.Recorder = metrics.Noop{}
	)
	if cfg.Metrics.Enabled {
		pm = metrics.NewPrometheusMetrics()
		recorder = pm
	}

	manager := newManager(cfg, logger, recorder)

	sched := scheduler.NewScheduler(manager,
		scheduler.WithLogger(logger.WithComponent("scheduler")),
		scheduler.WithDefaultConfig(scanDefaults(cfg)),
	)
	if err := sched.Load(cfg.Schedules); err != nil {
		return fmt.Errorf("loading schedules: %w", err)
	}

	deps := api.Dependencies{
		Runs:    manager,
		Metrics: pm,
		Build:   handlers.BuildInfo{Version: version, Commit: commit, BuildTime: buildTime},
		Logger:  logger,
	}
	if len(cfg.Schedules) > 0 {
		deps.Scheduler = sched
	}

	server, err := api.New(cfg, deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", "active_runs", manager.Active())
		sched.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), runShutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("waiting for running scans: %w", err)
		}
		return nil
	})

	logger.Info("portsweep server started",
		"address", cfg.GetAPIAddress(),
		"schedules", len(cfg.Schedules),
		"metrics", cfg.Metrics.Enabled,
		"auth", cfg.API.AuthEnabled)

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("portsweep server stopped")
	return nil
}
