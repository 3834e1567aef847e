// Package service is the produced interface of the scan engine: create,
// inspect, stop, delete, and compare scans. Validation and lifecycle
// errors surface synchronously; execution itself is fire-and-forget.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/scanhub/scanhub/internal/compare"
	"github.com/scanhub/scanhub/internal/errors"
	"github.com/scanhub/scanhub/internal/logging"
	"github.com/scanhub/scanhub/internal/orchestrator"
	"github.com/scanhub/scanhub/internal/params"
	"github.com/scanhub/scanhub/internal/store"
)

// CreateRequest describes a new scan.
type CreateRequest struct {
	OwnerID     uuid.UUID              `json:"owner_id" validate:"required"`
	Name        string                 `json:"name" validate:"required,max=255"`
	Type        string                 `json:"type" validate:"required,oneof=port-scan os-detection vulnerability-scan"`
	Parameters  map[string]interface{} `json:"parameters"`
	EndpointIDs []uuid.UUID            `json:"endpoint_ids" validate:"required,min=1,unique"`
	ScheduledAt *time.Time             `json:"scheduled_at"`
}

// ScanDetail is a scan with its targets and any results so far.
type ScanDetail struct {
	Scan    store.Scan        `json:"scan"`
	Targets []store.ScanTarget `json:"targets"`
	Results []store.ScanResult `json:"results"`
}

// Service wires the storage collaborator and the orchestrator behind the
// operations consumed by CRUD and report layers.
type Service struct {
	store    store.Store
	orch     *orchestrator.Orchestrator
	validate *validator.Validate
}

// New creates the service facade.
func New(st store.Store, orch *orchestrator.Orchestrator) *Service {
	return &Service{
		store:    st,
		orch:     orch,
		validate: validator.New(),
	}
}

// Create validates the request, persists a pending scan with its fixed
// target set, and dispatches execution in the background. The caller gets
// the pending scan immediately and polls for status changes.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*store.Scan, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}

	// Every referenced endpoint must exist before any state is created.
	for _, id := range req.EndpointIDs {
		if _, err := s.store.GetEndpoint(ctx, id); err != nil {
			return nil, err
		}
	}

	normalized := params.Normalize(params.ScanType(req.Type), req.Parameters)
	rawParams, err := json.Marshal(normalized)
	if err != nil {
		return nil, errors.WrapScanError(errors.CodeValidation, "parameters are not encodable", err)
	}

	scan := &store.Scan{
		OwnerID:     req.OwnerID,
		Name:        req.Name,
		Type:        req.Type,
		Parameters:  store.JSONB(rawParams),
		Status:      store.StatusPending,
		ScheduledAt: req.ScheduledAt,
	}
	if err := s.store.CreateScan(ctx, scan); err != nil {
		return nil, err
	}

	targets := make([]store.ScanTarget, 0, len(req.EndpointIDs))
	for _, id := range req.EndpointIDs {
		targets = append(targets, store.ScanTarget{ScanID: scan.ID, EndpointID: id})
	}
	if err := s.store.CreateTargets(ctx, targets); err != nil {
		return nil, err
	}

	logging.InfoScan("Scan created", scan.ID.String(),
		"scan_type", scan.Type,
		"targets", len(targets))

	// Fire and forget: the run outlives the request context.
	go func() {
		if err := s.orch.Run(context.Background(), scan.ID); err != nil {
			logging.ErrorScan("Scan run returned error", scan.ID.String(), err)
		}
	}()

	return scan, nil
}

// Get returns a scan with its targets and any results so far.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ScanDetail, error) {
	scan, err := s.store.GetScan(ctx, id)
	if err != nil {
		return nil, err
	}
	targets, err := s.store.GetTargets(ctx, id)
	if err != nil {
		return nil, err
	}
	results, err := s.store.GetResults(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ScanDetail{Scan: *scan, Targets: targets, Results: results}, nil
}

// List returns an owner's scans newest first, optionally filtered by
// status and type with offset/limit pagination.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID, filter store.ScanFilter) ([]store.Scan, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, errors.NewValidationError(
			fmt.Sprintf("unknown scan status %q", filter.Status))
	}
	return s.store.ListScans(ctx, ownerID, filter)
}

// Stop requests a running scan be stopped. Stopping a scan in any other
// status is an illegal transition.
func (s *Service) Stop(ctx context.Context, id uuid.UUID) error {
	return s.orch.Stop(ctx, id)
}

// Delete removes a scan with its targets and results. A running scan
// cannot be deleted; that would orphan its in-flight execution.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	scan, err := s.store.GetScan(ctx, id)
	if err != nil {
		return err
	}
	if scan.Status == store.StatusRunning {
		return errors.NewLifecycleError("cannot delete a running scan")
	}
	return s.store.DeleteScan(ctx, id)
}

// CompareReport pairs the per-target diff with both scans' metadata so a
// report consumer does not need extra lookups.
type CompareReport struct {
	ScanA store.Scan   `json:"scan_a"`
	ScanB store.Scan   `json:"scan_b"`
	Diff  compare.Diff `json:"diff"`
}

// Compare diffs two completed scans' results. Both scans must exist and
// be in status completed.
func (s *Service) Compare(ctx context.Context, idA, idB uuid.UUID) (*CompareReport, error) {
	scanA, err := s.store.GetScan(ctx, idA)
	if err != nil {
		return nil, err
	}
	scanB, err := s.store.GetScan(ctx, idB)
	if err != nil {
		return nil, err
	}
	if scanA.Status != store.StatusCompleted || scanB.Status != store.StatusCompleted {
		return nil, errors.NewValidationError("both scans must be completed to compare")
	}

	resultsA, err := s.store.GetResults(ctx, idA)
	if err != nil {
		return nil, err
	}
	resultsB, err := s.store.GetResults(ctx, idB)
	if err != nil {
		return nil, err
	}

	return &CompareReport{
		ScanA: *scanA,
		ScanB: *scanB,
		Diff:  compare.Scans(resultsA, resultsB),
	}, nil
}
