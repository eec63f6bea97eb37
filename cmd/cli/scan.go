package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/metrics"
	"github.com/anstrom/portsweep/internal/report"
	"github.com/anstrom/portsweep/internal/results"
	"github.com/anstrom/portsweep/internal/runs"
	"github.com/anstrom/portsweep/internal/scanning"
)

const outputFilePerm = 0644

var (
	scanPorts       string
	scanConcurrency int
	scanTimeout     time.Duration
	scanRate        float64
	scanFormat      string
	scanOutput      string
	scanStream      bool
	scanNoColor     bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <host>",
	Short: "Scan a host for open TCP ports",
	Long: `Scan a single host, given as an IPv4 or IPv6 address or a domain name, for
reachable TCP ports. The host is resolved once before any connection is made.

Ports are given as a comma-separated list of ports and ranges, or one of the
presets well-known or common (the ports of the built-in service table) and
full or all (1-65535). Press Ctrl-C to stop a scan early; the ports scanned so far are
still reported.`,
	Example: `  portsweep scan 192.168.1.10
  portsweep scan example.com --ports 22,80,443,8000-8100
  portsweep scan ::1 --ports full --concurrency 2000 --timeout 300ms
  portsweep scan 10.0.0.5 --ports common --format json --output scan.json
  portsweep scan 10.0.0.5 --stream --rate 200`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanPorts, "ports", "p", "", "Ports to scan (default from config: well-known)")
	scanCmd.Flags().IntVarP(&scanConcurrency, "concurrency", "c", 0, "Maximum simultaneous connection attempts")
	scanCmd.Flags().DurationVarP(&scanTimeout, "timeout", "t", 0, "Per-port connect timeout")
	scanCmd.Flags().Float64Var(&scanRate, "rate", 0, "Connection attempts per second, 0 for unlimited")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "text", "Report format: text, json or table")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "", "Write the report to a file instead of stdout")
	scanCmd.Flags().BoolVar(&scanStream, "stream", false, "Print each port result as it arrives")
	scanCmd.Flags().BoolVar(&scanNoColor, "no-color", false, "Disable colored status output")

	scanCmd.Flags().Lookup("ports").Usage = "Port specification: '80,443', '1-1024', 'common' or 'full'"
}

// scanRequest builds the run request from the config and the flags that were
// explicitly set.
func scanRequest(cmd *cobra.Command, host string, defaults scanning.ScanConfig) runs.Request {
	cfg := defaults
	flags := cmd.Flags()
	if flags.Changed("concurrency") {
		cfg.Concurrency = scanConcurrency
	}
	if flags.Changed("timeout") {
		cfg.Timeout = scanTimeout
	}
	if flags.Changed("rate") {
		cfg.RateLimit = scanRate
	}
	return runs.Request{Host: host, Ports: scanPorts, Config: &cfg}
}

func runScan(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(scanFormat)
	if err != nil {
		return errors.NewScanError(errors.CodeValidation, err.Error())
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.Default()
	manager := newManager(cfg, logger, metrics.Noop{})
	req := scanRequest(cmd, args[0], scanDefaults(cfg))

	out := cmd.OutOrStdout()
	colorize := !scanNoColor && !color.NoColor && out == os.Stdout

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var onResult func(scanning.PortResult)
	if scanStream {
		live := cmd.ErrOrStderr()
		if scanOutput == "" && format == report.FormatText {
			live = out
		}
		onResult = func(r scanning.PortResult) {
			_ = report.WriteResultLine(live, r, colorize && live == os.Stdout)
		}
	}

	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Scanning %s (concurrency %d, timeout %s)\n",
			req.Host, req.Config.Concurrency, req.Config.Timeout)
	}

	run, scanErr := manager.Execute(ctx, req, onResult)
	if run == nil {
		// Rejected before any connection was attempted.
		return scanErr
	}

	if scanStream && format == report.FormatText && scanOutput == "" {
		// Results were already printed; only the summary is missing.
		s := run.Summary
		fmt.Fprintf(out, "\nSummary: %d open, %d closed, %d timeout, %d error\n", s.Open, s.Closed, s.Timeout, s.Error)
	} else if err := writeReport(out, run, format, colorize); err != nil {
		return err
	}

	if run.State == results.StateCancelled {
		fmt.Fprintf(cmd.ErrOrStderr(), "Scan interrupted after %d of %d ports\n",
			run.Progress.Completed, run.Progress.Total)
	}
	return scanErr
}

// writeReport writes run to scanOutput, or to out when no file is set.
func writeReport(out io.Writer, run *results.ScanRun, format report.Format, colorize bool) error {
	if scanOutput == "" {
		return report.Write(out, run, format, colorize)
	}

	f, err := os.OpenFile(scanOutput, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, outputFilePerm)
	if err != nil {
		return fmt.Errorf("opening output file: %w", err)
	}
	if err := report.Write(f, run, format, false); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	fmt.Fprintf(out, "Report written to %s\n", scanOutput)
	return nil
}
