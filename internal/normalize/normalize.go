// Package normalize converts raw nmap output for one target into the
// standardized summary/details structure persisted on scan results.
package normalize

import (
	"sort"

	"github.com/Ullaakut/nmap/v3"

	"github.com/scanhub/scanhub/internal/params"
)

// Service describes one identified service on an open port. An entry is
// emitted only when both product and version are known.
type Service struct {
	Port    int    `json:"port"`
	Name    string `json:"name"`
	Product string `json:"product"`
	Version string `json:"version"`
}

// OSGuess is the single best-ranked OS match for a target.
type OSGuess struct {
	Name     string `json:"name"`
	Accuracy int    `json:"accuracy"`
	Type     string `json:"type"`
}

// Vulnerability is one script finding. Output is the tool's raw text and
// is passed through untouched; consumers must not assume structure beyond
// the name/output pair.
type Vulnerability struct {
	Name   string `json:"name"`
	Output string `json:"output"`
}

// Summary is the standardized view over one target's scan output.
type Summary struct {
	OpenPorts       []int           `json:"open_ports"`
	DetectedOS      *OSGuess        `json:"detected_os"`
	Services        []Service       `json:"services"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

// Result pairs the summary with the per-host raw passthrough.
type Result struct {
	Summary Summary              `json:"summary"`
	Details map[string]nmap.Host `json:"details"`
}

// OpenPortCount returns the derived open-port counter stored on the
// persisted result.
func (r Result) OpenPortCount() int {
	return len(r.Summary.OpenPorts)
}

// VulnerabilityCount returns the number of script findings.
func (r Result) VulnerabilityCount() int {
	return len(r.Summary.Vulnerabilities)
}

// Normalize converts one target's raw nmap run into a Result. Open ports
// are those the tool reports as state "open". For os-detection only the
// top-ranked OS match is surfaced. For vulnerability-scan every script
// finding becomes one entry keyed by script name.
func Normalize(run *nmap.Run, scanType params.ScanType) Result {
	result := Result{
		Summary: Summary{
			OpenPorts:       []int{},
			Services:        []Service{},
			Vulnerabilities: []Vulnerability{},
		},
		Details: make(map[string]nmap.Host),
	}

	if run == nil {
		return result
	}

	for i := range run.Hosts {
		host := &run.Hosts[i]
		result.Details[hostKey(host)] = *host

		for j := range host.Ports {
			port := &host.Ports[j]
			if port.State.State != "open" {
				continue
			}

			result.Summary.OpenPorts = append(result.Summary.OpenPorts, int(port.ID))

			if port.Service.Product != "" && port.Service.Version != "" {
				result.Summary.Services = append(result.Summary.Services, Service{
					Port:    int(port.ID),
					Name:    serviceName(port.Service.Name),
					Product: port.Service.Product,
					Version: port.Service.Version,
				})
			}

			if scanType == params.TypeVulnerabilityScan {
				for _, script := range port.Scripts {
					result.Summary.Vulnerabilities = append(result.Summary.Vulnerabilities, Vulnerability{
						Name:   script.ID,
						Output: script.Output,
					})
				}
			}
		}

		if scanType == params.TypeVulnerabilityScan {
			for _, script := range host.HostScripts {
				result.Summary.Vulnerabilities = append(result.Summary.Vulnerabilities, Vulnerability{
					Name:   script.ID,
					Output: script.Output,
				})
			}
		}

		if scanType == params.TypeOSDetection && result.Summary.DetectedOS == nil {
			result.Summary.DetectedOS = bestOSMatch(host)
		}
	}

	sort.Ints(result.Summary.OpenPorts)
	sort.Slice(result.Summary.Services, func(i, j int) bool {
		return result.Summary.Services[i].Port < result.Summary.Services[j].Port
	})

	return result
}

// bestOSMatch returns the first match in nmap's ranked list, or nil when
// fingerprinting produced nothing.
func bestOSMatch(host *nmap.Host) *OSGuess {
	if len(host.OS.Matches) == 0 {
		return nil
	}

	best := host.OS.Matches[0]
	guess := &OSGuess{
		Name:     best.Name,
		Accuracy: best.Accuracy,
		Type:     "unknown",
	}
	if guess.Name == "" {
		guess.Name = "unknown"
	}
	if len(best.Classes) > 0 && best.Classes[0].Type != "" {
		guess.Type = best.Classes[0].Type
	}
	return guess
}

func serviceName(name string) string {
	if name == "" {
		return "unknown"
	}
	return name
}

func hostKey(host *nmap.Host) string {
	if len(host.Addresses) > 0 {
		return host.Addresses[0].Addr
	}
	return "unknown"
}
