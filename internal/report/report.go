// Package report renders finished or in-progress scan runs as plain text,
// JSON records and terminal tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/anstrom/portsweep/internal/results"
	"github.com/anstrom/portsweep/internal/scanning"
)

// Format names an output format.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatTable:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want text, json or table)", s)
	}
}

const dateLayout = "2006-01-02 15:04:05"

// Write renders run in format f.
func Write(w io.Writer, run *results.ScanRun, f Format, colorize bool) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, run)
	case FormatTable:
		return WriteTable(w, run, colorize)
	default:
		return WriteText(w, run)
	}
}

// FormatLatency renders d as whole milliseconds below one second and as
// seconds with one decimal otherwise.
func FormatLatency(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// WriteText writes a header followed by one line per port.
func WriteText(w io.Writer, run *results.ScanRun) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Port Scan Results for %s\n", run.Target.String())
	fmt.Fprintf(&b, "Scan Date: %s\n", run.StartedAt.Local().Format(dateLayout))
	fmt.Fprintf(&b, "Total Ports Scanned: %d\n", len(run.Results))
	if run.State != results.StateCompleted {
		fmt.Fprintf(&b, "State: %s", run.State)
		if run.Partial {
			fmt.Fprintf(&b, " (partial, %d of %d ports)", run.Progress.Completed, run.Progress.Total)
		}
		b.WriteString("\n")
	}
	if run.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", run.Error)
	}
	b.WriteString(strings.Repeat("-", 50))
	b.WriteString("\n\n")

	for _, r := range run.Results {
		fmt.Fprintf(&b, "Port %5d (%-15s): %-8s (%s)", r.Port, r.Service, r.Status, FormatLatency(r.Elapsed))
		if r.Detail != "" {
			fmt.Fprintf(&b, " %s", r.Detail)
		}
		b.WriteString("\n")
	}

	s := run.Summary
	fmt.Fprintf(&b, "\nSummary: %d open, %d closed, %d timeout, %d error\n", s.Open, s.Closed, s.Timeout, s.Error)

	_, err := io.WriteString(w, b.String())
	return err
}

// Record is the structured form of a scan run.
type Record struct {
	ID         string          `json:"id"`
	Host       string          `json:"host"`
	Address    string          `json:"address"`
	ScanDate   time.Time       `json:"scan_date"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	State      results.State   `json:"state"`
	Partial    bool            `json:"partial"`
	TotalPorts int             `json:"total_ports"`
	Requested  int             `json:"requested_ports"`
	Summary    results.Summary `json:"summary"`
	Results    []ResultRecord  `json:"results"`
	Error      string          `json:"error,omitempty"`
}

// ResultRecord is the structured form of one port result.
type ResultRecord struct {
	Port      uint16          `json:"port"`
	Status    scanning.Status `json:"status"`
	LatencyMS float64         `json:"latency_ms"`
	Service   string          `json:"service"`
	Error     string          `json:"error,omitempty"`
}

// NewResultRecord converts a port result.
func NewResultRecord(r scanning.PortResult) ResultRecord {
	return ResultRecord{
		Port:      r.Port,
		Status:    r.Status,
		LatencyMS: math.Round(float64(r.Elapsed.Microseconds())) / 1000,
		Service:   r.Service,
		Error:     r.Detail,
	}
}

// NewRecord converts a scan run.
func NewRecord(run *results.ScanRun) Record {
	rec := Record{
		ID:         run.ID.String(),
		Host:       run.Target.Host,
		Address:    run.Target.Addr.String(),
		ScanDate:   run.StartedAt,
		State:      run.State,
		Partial:    run.Partial,
		TotalPorts: len(run.Results),
		Requested:  run.Progress.Total,
		Summary:    run.Summary,
		Results:    make([]ResultRecord, 0, len(run.Results)),
		Error:      run.Error,
	}
	if !run.FinishedAt.IsZero() {
		finished := run.FinishedAt
		rec.FinishedAt = &finished
	}
	for _, r := range run.Results {
		rec.Results = append(rec.Results, NewResultRecord(r))
	}
	return rec
}

// WriteJSON writes run as an indented JSON record.
func WriteJSON(w io.Writer, run *results.ScanRun) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewRecord(run))
}

var statusColors = map[scanning.Status]color.Attribute{
	scanning.StatusOpen:    color.FgGreen,
	scanning.StatusClosed:  color.FgHiBlack,
	scanning.StatusTimeout: color.FgYellow,
	scanning.StatusError:   color.FgRed,
}

// StatusString returns the status, colored when colorize is set.
func StatusString(s scanning.Status, colorize bool) string {
	attr, ok := statusColors[s]
	if !colorize || !ok {
		return string(s)
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(string(s))
}

// WriteTable writes run as a table with one row per port.
func WriteTable(w io.Writer, run *results.ScanRun, colorize bool) error {
	fmt.Fprintf(w, "%s  %s  %d ports  %s\n",
		run.Target.String(), run.StartedAt.Local().Format(dateLayout), len(run.Results), run.State)

	table := tablewriter.NewWriter(w)
	table.Header("Port", "Status", "Latency", "Service")
	for _, r := range run.Results {
		_ = table.Append([]string{
			fmt.Sprintf("%d", r.Port),
			StatusString(r.Status, colorize),
			FormatLatency(r.Elapsed),
			r.Service,
		})
	}
	if err := table.Render(); err != nil {
		return err
	}

	s := run.Summary
	_, err := fmt.Fprintf(w, "%d open, %d closed, %d timeout, %d error\n", s.Open, s.Closed, s.Timeout, s.Error)
	return err
}

// WriteResultLine writes a single live result in text report form.
func WriteResultLine(w io.Writer, r scanning.PortResult, colorize bool) error {
	_, err := fmt.Fprintf(w, "Port %5d (%-15s): %s (%s)\n",
		r.Port, r.Service, padStatus(r.Status, colorize), FormatLatency(r.Elapsed))
	return err
}

func padStatus(s scanning.Status, colorize bool) string {
	pad := 8 - len(s)
	if pad < 0 {
		pad = 0
	}
	return StatusString(s, colorize) + strings.Repeat(" ", pad)
}
