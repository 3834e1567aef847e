package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scanhub/scanhub/internal/errors"
)

// Memory is an in-memory Store used by tests and one-shot CLI runs where
// no database is configured. Safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	scans     map[uuid.UUID]*Scan
	targets   map[uuid.UUID][]ScanTarget
	results   map[uuid.UUID][]ScanResult
	endpoints map[uuid.UUID]*Endpoint
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		scans:     make(map[uuid.UUID]*Scan),
		targets:   make(map[uuid.UUID][]ScanTarget),
		results:   make(map[uuid.UUID][]ScanResult),
		endpoints: make(map[uuid.UUID]*Endpoint),
	}
}

// CreateScan stores a new scan.
func (m *Memory) CreateScan(_ context.Context, scan *Scan) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if scan.ID == uuid.Nil {
		scan.ID = uuid.New()
	}
	if scan.Status == "" {
		scan.Status = StatusPending
	}
	if scan.CreatedAt.IsZero() {
		scan.CreatedAt = time.Now()
	}
	if _, exists := m.scans[scan.ID]; exists {
		return errors.NewDatabaseError(errors.CodeConflict, "Resource already exists")
	}

	copied := *scan
	m.scans[scan.ID] = &copied
	return nil
}

// GetScan returns a copy of the stored scan.
func (m *Memory) GetScan(_ context.Context, id uuid.UUID) (*Scan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scan, ok := m.scans[id]
	if !ok {
		return nil, errors.NewNotFoundError("scan")
	}
	copied := *scan
	return &copied, nil
}

// ListScans returns an owner's scans newest first, narrowed by the filter.
func (m *Memory) ListScans(_ context.Context, ownerID uuid.UUID, filter ScanFilter) ([]Scan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var scans []Scan
	for _, scan := range m.scans {
		if scan.OwnerID != ownerID {
			continue
		}
		if filter.Status != "" && scan.Status != filter.Status {
			continue
		}
		if filter.Type != "" && scan.Type != filter.Type {
			continue
		}
		scans = append(scans, *scan)
	}
	sort.Slice(scans, func(i, j int) bool {
		return scans[i].CreatedAt.After(scans[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(scans) {
			return nil, nil
		}
		scans = scans[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(scans) {
		scans = scans[:filter.Limit]
	}
	return scans, nil
}

// UpdateScanStatus performs a compare-and-set status transition.
func (m *Memory) UpdateScanStatus(_ context.Context, id uuid.UUID, from, to ScanStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scan, ok := m.scans[id]
	if !ok {
		return errors.NewNotFoundError("scan")
	}
	if scan.Status != from {
		return errors.NewLifecycleError(
			fmt.Sprintf("scan is not in status %q", from))
	}

	scan.Status = to
	now := time.Now()
	switch {
	case to == StatusRunning:
		if scan.StartedAt == nil {
			scan.StartedAt = &now
		}
	case to.Terminal():
		if scan.CompletedAt == nil {
			scan.CompletedAt = &now
		}
	}
	return nil
}

// DeleteScan removes a scan and its targets and results.
func (m *Memory) DeleteScan(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.scans[id]; !ok {
		return errors.NewNotFoundError("scan")
	}
	delete(m.scans, id)
	delete(m.targets, id)
	delete(m.results, id)
	return nil
}

// CreateTargets stores the fixed target set for a scan.
func (m *Memory) CreateTargets(_ context.Context, targets []ScanTarget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range targets {
		if targets[i].ID == uuid.Nil {
			targets[i].ID = uuid.New()
		}
		m.targets[targets[i].ScanID] = append(m.targets[targets[i].ScanID], targets[i])
	}
	return nil
}

// GetTargets returns all targets for a scan.
func (m *Memory) GetTargets(_ context.Context, scanID uuid.UUID) ([]ScanTarget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	targets := make([]ScanTarget, len(m.targets[scanID]))
	copy(targets, m.targets[scanID])
	return targets, nil
}

// CreateResult stores one target's result row.
func (m *Memory) CreateResult(_ context.Context, result *ScanResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	m.results[result.ScanID] = append(m.results[result.ScanID], *result)
	return nil
}

// GetResults returns all results for a scan.
func (m *Memory) GetResults(_ context.Context, scanID uuid.UUID) ([]ScanResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]ScanResult, len(m.results[scanID]))
	copy(results, m.results[scanID])
	return results, nil
}

// CreateEndpoint stores an endpoint.
func (m *Memory) CreateEndpoint(_ context.Context, endpoint *Endpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if endpoint.ID == uuid.Nil {
		endpoint.ID = uuid.New()
	}
	if endpoint.Type == "" {
		endpoint.Type = EndpointTypeIP
	}
	if endpoint.CreatedAt.IsZero() {
		endpoint.CreatedAt = time.Now()
	}

	copied := *endpoint
	m.endpoints[endpoint.ID] = &copied
	return nil
}

// GetEndpoint returns a copy of the stored endpoint.
func (m *Memory) GetEndpoint(_ context.Context, id uuid.UUID) (*Endpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	endpoint, ok := m.endpoints[id]
	if !ok {
		return nil, errors.NewNotFoundError("endpoint")
	}
	copied := *endpoint
	return &copied, nil
}
