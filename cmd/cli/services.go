package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/portsweep/internal/ports"
	"github.com/anstrom/portsweep/internal/services"
)

var (
	servicesJSON bool
	portsList    bool
)

// servicesCmd prints the port to service name table.
var servicesCmd = &cobra.Command{
	Use:     "services",
	Aliases: []string{"svc"},
	Short:   "List the well-known port to service name table",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeServices(cmd.OutOrStdout(), servicesJSON)
	},
}

// portsCmd expands a port specification.
var portsCmd = &cobra.Command{
	Use:   "ports <spec>",
	Short: "Expand and validate a port specification",
	Long: `Expand a port specification the way 'portsweep scan --ports' does and print
its canonical compact form and size. Invalid specifications are rejected as a
whole.`,
	Example: `  portsweep ports 443,80,22-25
  portsweep ports common --list`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writePorts(cmd.OutOrStdout(), args[0], portsList)
	},
}

func init() {
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(portsCmd)

	servicesCmd.Flags().BoolVar(&servicesJSON, "json", false, "Output as JSON")
	portsCmd.Flags().BoolVar(&portsList, "list", false, "Print every port with its service name")
}

func writeServices(w io.Writer, asJSON bool) error {
	entries := services.All()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Port", "Service")
	for _, e := range entries {
		_ = table.Append([]string{strconv.Itoa(int(e.Port)), e.Name})
	}
	return table.Render()
}

func writePorts(w io.Writer, spec string, list bool) error {
	parsed, err := ports.Parse(spec)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s (%d ports)\n", parsed.String(), parsed.Len())
	if !list {
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("Port", "Service")
	for _, p := range parsed {
		_ = table.Append([]string{strconv.Itoa(int(p)), services.Describe(p)})
	}
	return table.Render()
}
