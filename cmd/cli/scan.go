package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/scanhub/scanhub/internal/normalize"
	"github.com/scanhub/scanhub/internal/params"
	"github.com/scanhub/scanhub/internal/service"
	"github.com/scanhub/scanhub/internal/store"
)

var (
	scanTargets   string
	scanName      string
	scanType      string
	scanPorts     string
	scanSpeed     string
	scanIntensity string
	scanTimeout   int
	scanWait      time.Duration
	scanJSON      bool
)

// scanCmd runs a one-shot scan against the given targets and waits for
// the results.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a scan against one or more targets",
	Long: `Create and run a scan against specific targets, wait for it to
finish, and print the normalized results.

Targets can be IP literals or hostnames. Each target is registered as an
endpoint if needed, then scanned concurrently.`,
	Example: `  scanhub scan --targets 192.168.1.10 --ports 22,80,443
  scanhub scan --targets "web01.example.com,web02.example.com" --type os-detection
  scanhub scan --targets 10.0.0.5 --type vulnerability-scan --speed slow`,
	Run: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanTargets, "targets", "", "Comma-separated list of targets to scan")
	scanCmd.Flags().StringVar(&scanName, "name", "", "Scan name (defaults to a timestamped name)")
	scanCmd.Flags().StringVar(&scanType, "type", string(params.TypePortScan),
		"Scan type: port-scan, os-detection, vulnerability-scan")
	scanCmd.Flags().StringVar(&scanPorts, "ports", "", "Port specification, e.g. '80,443' or '1-1000'")
	scanCmd.Flags().StringVar(&scanSpeed, "speed", "", "Timing: slow, normal, fast (port and OS scans)")
	scanCmd.Flags().StringVar(&scanIntensity, "intensity", "", "Intensity: light, medium, aggressive (vulnerability scans)")
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Per-probe timeout in seconds (30-3600)")
	scanCmd.Flags().DurationVar(&scanWait, "wait", 15*time.Minute, "How long to wait for the scan to finish")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print raw results as JSON")

	_ = scanCmd.MarkFlagRequired("targets")
}

func runScan(cmd *cobra.Command, _ []string) {
	targets := splitTargets(scanTargets)
	if len(targets) == 0 {
		fmt.Fprintf(os.Stderr, "Error: no valid targets found in '%s'\n", scanTargets)
		os.Exit(1)
	}
	if !params.ValidType(params.ScanType(scanType)) {
		fmt.Fprintf(os.Stderr, "Error: invalid scan type '%s'\n", scanType)
		fmt.Fprintf(os.Stderr, "Valid types: port-scan, os-detection, vulnerability-scan\n")
		os.Exit(1)
	}

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

	owner := uuid.New()
	endpointIDs := make([]uuid.UUID, 0, len(targets))
	addressByEndpoint := make(map[uuid.UUID]string, len(targets))
	for _, target := range targets {
		ep := &store.Endpoint{
			OwnerID: owner,
			Name:    target,
			Address: target,
			Type:    endpointType(target),
			Active:  true,
		}
		if err := eng.store.CreateEndpoint(ctx, ep); err != nil {
			fmt.Fprintf(os.Stderr, "Error registering endpoint %s: %v\n", target, err)
			os.Exit(1)
		}
		endpointIDs = append(endpointIDs, ep.ID)
		addressByEndpoint[ep.ID] = target
	}

	name := scanName
	if name == "" {
		name = fmt.Sprintf("cli scan %s", time.Now().Format("2006-01-02 15:04:05"))
	}

	scan, err := eng.svc.Create(ctx, service.CreateRequest{
		OwnerID:     owner,
		Name:        name,
		Type:        scanType,
		Parameters:  scanParameters(),
		EndpointIDs: endpointIDs,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating scan: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Scan %s started (%d targets)\n", scan.ID, len(targets))

	status, err := waitForScan(ctx, eng.store, scan.ID, scanWait)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	detail, err := eng.svc.Get(ctx, scan.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading results: %v\n", err)
		os.Exit(1)
	}

	if scanJSON {
		printResultsJSON(detail)
	} else {
		displayScanResults(status, detail, addressByEndpoint)
	}

	if status != store.StatusCompleted {
		os.Exit(1)
	}
}

// scanParameters collects only the flags the user actually set so that
// defaulting stays in one place.
func scanParameters() map[string]interface{} {
	p := map[string]interface{}{}
	if scanPorts != "" {
		p["ports"] = scanPorts
	}
	if scanSpeed != "" {
		p["speed"] = scanSpeed
	}
	if scanIntensity != "" {
		p["intensity"] = scanIntensity
	}
	if scanTimeout != 0 {
		p["timeout"] = scanTimeout
	}
	return p
}

func splitTargets(raw string) []string {
	var targets []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			targets = append(targets, part)
		}
	}
	return targets
}

func displayScanResults(status store.ScanStatus, detail *service.ScanDetail,
	addresses map[uuid.UUID]string) {
	fmt.Printf("\nScan finished with status: %s\n", status)
	fmt.Printf("Targets: %d, results: %d\n\n", len(detail.Targets), len(detail.Results))

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Target", "Open Ports", "Services", "OS", "Vulns")

	results := append([]store.ScanResult(nil), detail.Results...)
	sort.Slice(results, func(i, j int) bool {
		return addresses[results[i].EndpointID] < addresses[results[j].EndpointID]
	})

	for i := range results {
		r := &results[i]
		summary := parseSummary(r)

		osName := "-"
		if r.OSDetection != nil {
			osName = *r.OSDetection
		}

		_ = table.Append([]string{
			addresses[r.EndpointID],
			formatPorts(summary.OpenPorts),
			formatServices(summary.Services),
			osName,
			strconv.Itoa(r.Vulnerabilities),
		})
	}

	_ = table.Render()
}

func parseSummary(r *store.ScanResult) normalize.Summary {
	var result normalize.Result
	if err := json.Unmarshal([]byte(r.RawResults), &result); err != nil {
		return normalize.Summary{}
	}
	return result.Summary
}

func formatPorts(ports []int) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func formatServices(services []normalize.Service) string {
	if len(services) == 0 {
		return "-"
	}
	parts := make([]string, len(services))
	for i, s := range services {
		parts[i] = fmt.Sprintf("%d/%s %s %s", s.Port, s.Name, s.Product, s.Version)
	}
	return strings.Join(parts, "; ")
}

func printResultsJSON(detail *service.ScanDetail) {
	data, err := json.MarshalIndent(detail, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
