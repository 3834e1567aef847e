// Package compare computes the structural diff between two completed
// scans' persisted results. It is a pure read-side query: neither scan is
// mutated, and output ordering is stable so diffs are comparable.
package compare

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/scanhub/scanhub/internal/normalize"
	"github.com/scanhub/scanhub/internal/store"
)

// Change direction tags for service-list changes.
const (
	ChangeAdded   = "added"
	ChangeRemoved = "removed"
)

// ServiceChange is one entry of the service-list symmetric difference.
// Service is the stable string form "port/name product version".
type ServiceChange struct {
	Service string `json:"service"`
	Change  string `json:"change"`
}

// TargetDiff is the per-endpoint comparison for a target present in both
// scans' result sets.
type TargetDiff struct {
	EndpointID     uuid.UUID       `json:"endpoint_id"`
	PortsAdded     []int           `json:"ports_added"`
	PortsRemoved   []int           `json:"ports_removed"`
	OSChanged      bool            `json:"os_changed"`
	OSBefore       string          `json:"os_before,omitempty"`
	OSAfter        string          `json:"os_after,omitempty"`
	ServiceChanges []ServiceChange `json:"service_changes"`
}

// Diff is the full comparison of two scans. Targets present in only one
// result set are listed separately and contribute nothing to per-field
// diffing.
type Diff struct {
	Targets []TargetDiff `json:"targets"`
	OnlyInA []uuid.UUID  `json:"only_in_a"`
	OnlyInB []uuid.UUID  `json:"only_in_b"`
}

// Scans diffs two completed scans' result sets, keyed by endpoint.
// resultsA is the baseline; ports in B but not A count as added.
func Scans(resultsA, resultsB []store.ScanResult) Diff {
	byEndpointA := indexByEndpoint(resultsA)
	byEndpointB := indexByEndpoint(resultsB)

	diff := Diff{
		Targets: []TargetDiff{},
		OnlyInA: []uuid.UUID{},
		OnlyInB: []uuid.UUID{},
	}

	for id := range byEndpointA {
		if _, shared := byEndpointB[id]; !shared {
			diff.OnlyInA = append(diff.OnlyInA, id)
		}
	}
	for id := range byEndpointB {
		if _, shared := byEndpointA[id]; !shared {
			diff.OnlyInB = append(diff.OnlyInB, id)
		}
	}

	for id, a := range byEndpointA {
		b, shared := byEndpointB[id]
		if !shared {
			continue
		}
		diff.Targets = append(diff.Targets, diffTarget(id, a, b))
	}

	sortUUIDs(diff.OnlyInA)
	sortUUIDs(diff.OnlyInB)
	sort.Slice(diff.Targets, func(i, j int) bool {
		return diff.Targets[i].EndpointID.String() < diff.Targets[j].EndpointID.String()
	})

	return diff
}

func diffTarget(id uuid.UUID, a, b store.ScanResult) TargetDiff {
	summaryA := parseSummary(a)
	summaryB := parseSummary(b)

	td := TargetDiff{
		EndpointID:     id,
		PortsAdded:     setDifference(summaryB.OpenPorts, summaryA.OpenPorts),
		PortsRemoved:   setDifference(summaryA.OpenPorts, summaryB.OpenPorts),
		ServiceChanges: []ServiceChange{},
		OSBefore:       osLabel(a),
		OSAfter:        osLabel(b),
	}
	td.OSChanged = td.OSBefore != td.OSAfter

	servicesA := serviceSet(summaryA.Services)
	servicesB := serviceSet(summaryB.Services)
	for s := range servicesB {
		if !servicesA[s] {
			td.ServiceChanges = append(td.ServiceChanges, ServiceChange{Service: s, Change: ChangeAdded})
		}
	}
	for s := range servicesA {
		if !servicesB[s] {
			td.ServiceChanges = append(td.ServiceChanges, ServiceChange{Service: s, Change: ChangeRemoved})
		}
	}
	sort.Slice(td.ServiceChanges, func(i, j int) bool {
		if td.ServiceChanges[i].Service != td.ServiceChanges[j].Service {
			return td.ServiceChanges[i].Service < td.ServiceChanges[j].Service
		}
		return td.ServiceChanges[i].Change < td.ServiceChanges[j].Change
	})

	return td
}

// parseSummary extracts the normalized summary from a persisted result.
// Malformed raw payloads degrade to an empty summary rather than failing
// the whole comparison.
func parseSummary(r store.ScanResult) normalize.Summary {
	var parsed normalize.Result
	if len(r.RawResults) == 0 {
		return parsed.Summary
	}
	if err := json.Unmarshal([]byte(r.RawResults), &parsed); err != nil {
		return normalize.Summary{}
	}
	return parsed.Summary
}

func osLabel(r store.ScanResult) string {
	if r.OSDetection == nil {
		return ""
	}
	return *r.OSDetection
}

func indexByEndpoint(results []store.ScanResult) map[uuid.UUID]store.ScanResult {
	indexed := make(map[uuid.UUID]store.ScanResult, len(results))
	for _, r := range results {
		indexed[r.EndpointID] = r
	}
	return indexed
}

// setDifference returns the sorted elements of a that are not in b.
func setDifference(a, b []int) []int {
	inB := make(map[int]bool, len(b))
	for _, v := range b {
		inB[v] = true
	}

	out := []int{}
	seen := make(map[int]bool, len(a))
	for _, v := range a {
		if !inB[v] && !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	sort.Ints(out)
	return out
}

func serviceSet(services []normalize.Service) map[string]bool {
	set := make(map[string]bool, len(services))
	for _, s := range services {
		set[serviceString(s)] = true
	}
	return set
}

func serviceString(s normalize.Service) string {
	return fmt.Sprintf("%d/%s %s %s", s.Port, s.Name, s.Product, s.Version)
}

func sortUUIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
}
