package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/scanhub/scanhub/internal/compare"
)

var compareJSON bool

// compareCmd diffs the results of two completed scans.
var compareCmd = &cobra.Command{
	Use:   "compare <scan-a> <scan-b>",
	Short: "Compare the results of two completed scans",
	Long: `Compare two completed scans and report what changed per target:
ports that opened or closed, service version changes, and OS detection
changes. Scan A is the baseline; a port open in B but not A counts as
added.`,
	Example: `  scanhub compare 6f1c... 9a2e...
  scanhub compare 6f1c... 9a2e... --json`,
	Args: cobra.ExactArgs(2),
	Run:  runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().BoolVar(&compareJSON, "json", false, "Print the diff as JSON")
}

func runCompare(_ *cobra.Command, args []string) {
	idA := parseScanID(args[0])
	idB := parseScanID(args[1])

	withEngine(func(ctx context.Context, eng *engine) error {
		report, err := eng.svc.Compare(ctx, idA, idB)
		if err != nil {
			return err
		}

		if compareJSON {
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Scan A: %s (%s, %s)\n", report.ScanA.Name, report.ScanA.Type,
			report.ScanA.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Printf("Scan B: %s (%s, %s)\n\n", report.ScanB.Name, report.ScanB.Type,
			report.ScanB.CreatedAt.Format("2006-01-02 15:04"))

		displayDiff(&report.Diff)
		return nil
	})
}

func displayDiff(diff *compare.Diff) {
	if len(diff.OnlyInA) > 0 {
		fmt.Printf("Targets only in scan A: %d\n", len(diff.OnlyInA))
		for _, id := range diff.OnlyInA {
			fmt.Printf("  %s\n", id)
		}
	}
	if len(diff.OnlyInB) > 0 {
		fmt.Printf("Targets only in scan B: %d\n", len(diff.OnlyInB))
		for _, id := range diff.OnlyInB {
			fmt.Printf("  %s\n", id)
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Endpoint", "Ports Added", "Ports Removed", "OS Change", "Service Changes")

	changed := 0
	for i := range diff.Targets {
		td := &diff.Targets[i]
		if len(td.PortsAdded) == 0 && len(td.PortsRemoved) == 0 &&
			!td.OSChanged && len(td.ServiceChanges) == 0 {
			continue
		}
		changed++

		osChange := "-"
		if td.OSChanged {
			osChange = fmt.Sprintf("%s -> %s", orDash(td.OSBefore), orDash(td.OSAfter))
		}

		_ = table.Append([]string{
			td.EndpointID.String(),
			formatPorts(td.PortsAdded),
			formatPorts(td.PortsRemoved),
			osChange,
			formatServiceChanges(td.ServiceChanges),
		})
	}

	if changed == 0 {
		fmt.Println("No changes between the two scans.")
		return
	}
	_ = table.Render()
}

func formatServiceChanges(changes []compare.ServiceChange) string {
	if len(changes) == 0 {
		return "-"
	}
	out := ""
	for i, c := range changes {
		if i > 0 {
			out += "; "
		}
		sign := "+"
		if c.Change == compare.ChangeRemoved {
			sign = "-"
		}
		out += sign + c.Service
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
