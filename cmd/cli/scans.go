package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/scanhub/scanhub/internal/store"
)

var (
	scansOwner  string
	scansStatus string
	scansType   string
	scansLimit  int
	scansOffset int
)

var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "Manage stored scans",
}

var scansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scans for an owner, newest first",
	Run:   runScansList,
}

var scansGetCmd = &cobra.Command{
	Use:   "get <scan-id>",
	Short: "Show a scan with its targets and results",
	Args:  cobra.ExactArgs(1),
	Run:   runScansGet,
}

var scansStopCmd = &cobra.Command{
	Use:   "stop <scan-id>",
	Short: "Stop a running scan",
	Args:  cobra.ExactArgs(1),
	Run:   runScansStop,
}

var scansDeleteCmd = &cobra.Command{
	Use:   "delete <scan-id>",
	Short: "Delete a scan with its targets and results",
	Args:  cobra.ExactArgs(1),
	Run:   runScansDelete,
}

func init() {
	rootCmd.AddCommand(scansCmd)
	scansCmd.AddCommand(scansListCmd, scansGetCmd, scansStopCmd, scansDeleteCmd)

	scansListCmd.Flags().StringVar(&scansOwner, "owner", "", "Owner ID to list scans for")
	scansListCmd.Flags().StringVar(&scansStatus, "status", "", "Filter by status: pending, running, completed, failed, stopped")
	scansListCmd.Flags().StringVar(&scansType, "type", "", "Filter by scan type")
	scansListCmd.Flags().IntVar(&scansLimit, "limit", 0, "Maximum number of scans to return (0 = all)")
	scansListCmd.Flags().IntVar(&scansOffset, "offset", 0, "Number of scans to skip")
	_ = scansListCmd.MarkFlagRequired("owner")
}

func withEngine(fn func(ctx context.Context, eng *engine) error) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer eng.close()

	if err := fn(ctx, eng); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseScanID(raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid scan ID '%s'\n", raw)
		os.Exit(1)
	}
	return id
}

func runScansList(_ *cobra.Command, _ []string) {
	owner := parseScanID(scansOwner)

	withEngine(func(ctx context.Context, eng *engine) error {
		scans, err := eng.svc.List(ctx, owner, store.ScanFilter{
			Status: store.ScanStatus(scansStatus),
			Type:   scansType,
			Limit:  scansLimit,
			Offset: scansOffset,
		})
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("ID", "Name", "Type", "Status", "Created")
		for i := range scans {
			s := &scans[i]
			_ = table.Append([]string{
				s.ID.String(),
				s.Name,
				s.Type,
				string(s.Status),
				s.CreatedAt.Format("2006-01-02 15:04"),
			})
		}
		return table.Render()
	})
}

func runScansGet(_ *cobra.Command, args []string) {
	id := parseScanID(args[0])

	withEngine(func(ctx context.Context, eng *engine) error {
		detail, err := eng.svc.Get(ctx, id)
		if err != nil {
			return err
		}

		s := detail.Scan
		fmt.Printf("Scan:    %s\n", s.ID)
		fmt.Printf("Name:    %s\n", s.Name)
		fmt.Printf("Type:    %s\n", s.Type)
		fmt.Printf("Status:  %s\n", s.Status)
		fmt.Printf("Created: %s\n", s.CreatedAt.Format(time.RFC3339))
		if s.StartedAt != nil {
			fmt.Printf("Started: %s\n", s.StartedAt.Format(time.RFC3339))
		}
		if s.CompletedAt != nil {
			fmt.Printf("Ended:   %s\n", s.CompletedAt.Format(time.RFC3339))
		}
		fmt.Printf("Targets: %d\n\n", len(detail.Targets))

		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Endpoint", "Open Ports", "OS", "Vulns")
		for i := range detail.Results {
			r := &detail.Results[i]
			osName := "-"
			if r.OSDetection != nil {
				osName = *r.OSDetection
			}
			_ = table.Append([]string{
				r.EndpointID.String(),
				strconv.Itoa(r.OpenPorts),
				osName,
				strconv.Itoa(r.Vulnerabilities),
			})
		}
		return table.Render()
	})
}

func runScansStop(_ *cobra.Command, args []string) {
	id := parseScanID(args[0])

	withEngine(func(ctx context.Context, eng *engine) error {
		if err := eng.svc.Stop(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Scan %s stopped\n", id)
		return nil
	})
}

func runScansDelete(_ *cobra.Command, args []string) {
	id := parseScanID(args[0])

	withEngine(func(ctx context.Context, eng *engine) error {
		if err := eng.svc.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Scan %s deleted\n", id)
		return nil
	})
}
