// Package command composes the nmap argument list for a scan. Building is
// pure and deterministic: the same scan type and normalized parameters
// always produce the same ordered argument slice, so stored scans can be
// audited and reproduced exactly.
package command

import (
	"fmt"

	"github.com/scanhub/scanhub/internal/params"
)

// Build maps (scan type, normalized parameters) to the ordered nmap
// argument list. Parameters must already be normalized; Build trusts that
// every field it reads is present.
func Build(scanType params.ScanType, p params.Normalized) []string {
	args := []string{
		"-n",  // no reverse DNS
		"-Pn", // skip host discovery, treat all hosts as up
		"-sS", // SYN scan
		"--max-rtt-timeout", fmt.Sprintf("%ds", p.Timeout),
	}

	switch scanType {
	case params.TypePortScan:
		args = append(args, "-p", p.Ports)
		args = append(args, "-sV", "--version-intensity", "5")
		args = append(args, timingTemplate(p.Speed))

	case params.TypeOSDetection:
		args = append(args, "-O", "--osscan-guess")
		args = append(args, "-sV", "--version-intensity", "5")
		args = append(args, "-p", p.Ports)

	case params.TypeVulnerabilityScan:
		args = append(args, "--script=vuln")
		args = append(args, timingTemplate(p.Intensity))
		args = append(args, "-sV", "--version-intensity", "5")
	}

	return args
}

// timingTemplate maps a speed or intensity level to an nmap -T template.
// Both enums share the same three-level mapping.
func timingTemplate(level string) string {
	switch level {
	case params.SpeedSlow, params.IntensityLight:
		return "-T2"
	case params.SpeedFast, params.IntensityAggressive:
		return "-T4"
	default:
		return "-T3"
	}
}
