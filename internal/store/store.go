// Package store provides persistence for scans, targets, results, and
// endpoints. A PostgreSQL implementation backs production; an in-memory
// implementation backs tests and one-shot CLI runs.
package store

import (
	"context"

	"github.com/google/uuid"
)

// Store is the storage collaborator consumed by the orchestrator and the
// service facade. Implementations must guarantee that UpdateScanStatus is
// atomic: a transition only succeeds when the scan is still in the expected
// prior status, so concurrent readers never observe a torn state.
type Store interface {
	CreateScan(ctx context.Context, scan *Scan) error
	GetScan(ctx context.Context, id uuid.UUID) (*Scan, error)

	// ListScans returns an owner's scans newest first, narrowed by the
	// filter.
	ListScans(ctx context.Context, ownerID uuid.UUID, filter ScanFilter) ([]Scan, error)

	// UpdateScanStatus transitions a scan from one status to another with
	// compare-and-set semantics. Entering running sets startedAt; entering
	// a terminal status sets completedAt. Timestamps are set at most once
	// and only forward. A scan not in the expected status yields a
	// LifecycleError.
	UpdateScanStatus(ctx context.Context, id uuid.UUID, from, to ScanStatus) error

	// DeleteScan removes a scan together with its targets and results.
	DeleteScan(ctx context.Context, id uuid.UUID) error

	CreateTargets(ctx context.Context, targets []ScanTarget) error
	GetTargets(ctx context.Context, scanID uuid.UUID) ([]ScanTarget, error)

	CreateResult(ctx context.Context, result *ScanResult) error
	GetResults(ctx context.Context, scanID uuid.UUID) ([]ScanResult, error)

	CreateEndpoint(ctx context.Context, endpoint *Endpoint) error
	GetEndpoint(ctx context.Context, id uuid.UUID) (*Endpoint, error)
}

// ScanFilter narrows ListScans. Zero values mean no constraint; a Limit
// of 0 means unbounded.
type ScanFilter struct {
	Status ScanStatus
	Type   string
	Offset int
	Limit  int
}
