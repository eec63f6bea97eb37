package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/anstrom/portsweep/internal/config"
	"github.com/anstrom/portsweep/internal/errors"
	"github.com/anstrom/portsweep/internal/logging"
	"github.com/anstrom/portsweep/internal/metrics"
	"github.com/anstrom/portsweep/internal/report"
	"github.com/anstrom/portsweep/internal/scheduler"
)

const (
	maxHostDisplay  = 30 // max host length before truncation
	maxPortsDisplay = 20 // max port spec length before truncation
	timeDisplay     = "2006-01-02 15:04"
)

// scheduleCmd represents the schedule command.
var scheduleCmd = &cobra.Command{
	Use:     "schedule",
	Aliases: []string{"schedules"},
	Short:   "Inspect and run scheduled scans",
	Long: `Inspect the recurring scans configured under 'schedules:' in the
configuration file. They run automatically while 'portsweep serve' is up.`,
	Example: `  portsweep schedule list
  portsweep schedule show nightly-web
  portsweep schedule run nightly-web --format table`,
}

// scheduleListCmd represents the schedule list command.
var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all scheduled scans",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return displaySchedules(cmd.OutOrStdout(), cfg.Schedules, time.Now())
	},
}

// scheduleShowCmd represents the schedule show command.
var scheduleShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show details of a scheduled scan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		sc, err := findSchedule(cfg.Schedules, args[0])
		if err != nil {
			return err
		}
		return displayScheduleDetails(cmd.OutOrStdout(), sc, scanDefaults(cfg).Timeout, time.Now())
	},
}

// scheduleRunCmd runs a scheduled scan once in the foreground.
var scheduleRunCmd = &cobra.Command{
	Use:   "run <name>",
	Short: "Run a scheduled scan now",
	Long: `Run a configured scheduled scan once, immediately, with the same settings
the scheduler would use, and print its report.`,
	Args: cobra.ExactArgs(1),
	RunE: runScheduleNow,
}

var scheduleFormat string

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleShowCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)

	scheduleRunCmd.Flags().StringVarP(&scheduleFormat, "format", "f", "text", "Report format: text, json or table")
}

func runScheduleNow(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(scheduleFormat)
	if err != nil {
		return errors.NewScanError(errors.CodeValidation, err.Error())
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	sc, err := findSchedule(cfg.Schedules, args[0])
	if err != nil {
		return err
	}

	logger := logging.Default()
	manager := newManager(cfg, logger, metrics.Noop{})
	sched := scheduler.NewScheduler(manager,
		scheduler.WithLogger(logger.WithComponent("scheduler")),
		scheduler.WithDefaultConfig(scanDefaults(cfg)),
	)
	if err := sched.AddJob(sc); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		sched.Stop()
	}()

	if _, err := sched.RunNow(sc.Name); err != nil {
		return err
	}

	jobs := sched.Jobs()
	if len(jobs) == 0 || jobs[0].LastRunID == "" {
		return errors.NewScanError(errors.CodeValidation, fmt.Sprintf("schedule %q was rejected, see the log", sc.Name))
	}
	id, err := uuid.Parse(jobs[0].LastRunID)
	if err != nil {
		return err
	}
	run, err := manager.Wait(context.Background(), id)
	if err != nil {
		return err
	}
	return report.Write(cmd.OutOrStdout(), run, format, false)
}

func findSchedule(schedules []config.ScheduleConfig, name string) (config.ScheduleConfig, error) {
	for _, s := range schedules {
		if s.Name == name {
			return s, nil
		}
	}
	return config.ScheduleConfig{}, errors.ErrNotFound("schedule", name)
}

// nextRunTime returns the next activation of a standard cron expression
// after now, or the zero time for an invalid expression.
func nextRunTime(expr string, now time.Time) time.Time {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(now)
}

func displaySchedules(w io.Writer, schedules []config.ScheduleConfig, now time.Time) error {
	if len(schedules) == 0 {
		fmt.Fprintln(w, "No scheduled scans configured.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("Name", "Cron", "Host", "Ports", "Next Run")
	for _, s := range schedules {
		next := "invalid"
		if t := nextRunTime(s.Cron, now); !t.IsZero() {
			next = t.Format(timeDisplay)
		}
		_ = table.Append([]string{
			s.Name,
			s.Cron,
			truncateString(s.Host, maxHostDisplay),
			truncateString(displayPorts(s.Ports), maxPortsDisplay),
			next,
		})
	}
	return table.Render()
}

func displayScheduleDetails(w io.Writer, s config.ScheduleConfig, defaultTimeout time.Duration, now time.Time) error {
	concurrency := "default"
	if s.Concurrency > 0 {
		concurrency = strconv.Itoa(s.Concurrency)
	}
	timeout := defaultTimeout
	if s.Timeout > 0 {
		timeout = s.Timeout
	}

	fmt.Fprintf(w, "Name:        %s\n", s.Name)
	fmt.Fprintf(w, "Cron:        %s\n", s.Cron)
	fmt.Fprintf(w, "Host:        %s\n", s.Host)
	fmt.Fprintf(w, "Ports:       %s\n", displayPorts(s.Ports))
	fmt.Fprintf(w, "Concurrency: %s\n", concurrency)
	fmt.Fprintf(w, "Timeout:     %s\n", timeout)
	if next := nextRunTime(s.Cron, now); !next.IsZero() {
		fmt.Fprintf(w, "Next Run:    %s\n", next.Format(timeDisplay))
	}
	return nil
}

func displayPorts(spec string) string {
	if spec == "" {
		return "default"
	}
	return spec
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
