// Package orchestrator owns the scan lifecycle state machine. It resolves
// targets, fans per-target executions out to a bounded worker pool,
// contains individual execution failures, persists results, and drives
// every scan to exactly one terminal status.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scanhub/scanhub/internal/command"
	"github.com/scanhub/scanhub/internal/directory"
	"github.com/scanhub/scanhub/internal/errors"
	"github.com/scanhub/scanhub/internal/executor"
	"github.com/scanhub/scanhub/internal/logging"
	"github.com/scanhub/scanhub/internal/metrics"
	"github.com/scanhub/scanhub/internal/normalize"
	"github.com/scanhub/scanhub/internal/params"
	"github.com/scanhub/scanhub/internal/store"
	"github.com/scanhub/scanhub/internal/workers"
)

// Orchestrator drives scans through pending -> running -> terminal.
type Orchestrator struct {
	store    store.Store
	executor executor.Executor
	resolver directory.Resolver
	pool     *workers.Pool

	mu      sync.Mutex
	stopped map[uuid.UUID]chan struct{}
}

// New creates an orchestrator. The pool must already be started.
func New(st store.Store, exec executor.Executor, resolver directory.Resolver, pool *workers.Pool) *Orchestrator {
	return &Orchestrator{
		store:    st,
		executor: exec,
		resolver: resolver,
		pool:     pool,
		stopped:  make(map[uuid.UUID]chan struct{}),
	}
}

type resolvedTarget struct {
	endpointID uuid.UUID
	address    string
}

// Run executes one scan end to end and blocks until it reaches a terminal
// status. Callers dispatch it on a goroutine; the scan record is the only
// channel back to them. An unexpected fault mid-run drives the scan to
// failed rather than leaving it dangling in running.
func (o *Orchestrator) Run(ctx context.Context, scanID uuid.UUID) error {
	scan, err := o.store.GetScan(ctx, scanID)
	if err != nil {
		return err
	}

	if err := o.store.UpdateScanStatus(ctx, scanID, store.StatusPending, store.StatusRunning); err != nil {
		return err
	}

	stopCh := o.registerStop(scanID)
	defer o.unregisterStop(scanID)

	metrics.GetGlobalMetrics().IncActiveScans()
	start := time.Now()
	defer func() {
		metrics.GetGlobalMetrics().DecActiveScans()
		metrics.GetGlobalMetrics().RecordScanDuration(scan.Type, time.Since(start))
		metrics.RecordScanDuration(scan.Type, time.Since(start))
	}()

	defer func() {
		if r := recover(); r != nil {
			logging.ErrorScan("Scan run panicked", scanID.String(),
				fmt.Errorf("panic: %v", r))
			o.finish(ctx, scan, store.StatusFailed)
		}
	}()

	scanType := params.ScanType(scan.Type)
	var normalized params.Normalized
	if len(scan.Parameters) > 0 {
		if err := json.Unmarshal([]byte(scan.Parameters), &normalized); err != nil {
			logging.ErrorScan("Scan parameters are unreadable", scanID.String(), err)
			o.finish(ctx, scan, store.StatusFailed)
			return nil
		}
	}
	args := command.Build(scanType, normalized)

	targets, err := o.store.GetTargets(ctx, scanID)
	if err != nil {
		logging.ErrorScan("Failed to load scan targets", scanID.String(), err)
		o.finish(ctx, scan, store.StatusFailed)
		return nil
	}

	resolved := o.resolveTargets(ctx, scanID, targets)
	if len(resolved) == 0 {
		logging.InfoScan("No resolvable targets, failing scan", scanID.String(),
			"target_count", len(targets))
		o.finish(ctx, scan, store.StatusFailed)
		return nil
	}

	logging.InfoScan("Scan running", scanID.String(),
		"scan_type", scan.Type,
		"targets", len(resolved))

	var wg sync.WaitGroup
dispatch:
	for _, rt := range resolved {
		select {
		case <-stopCh:
			// Cooperative stop: skip targets not yet dispatched. In-flight
			// executions finish and their results are kept.
			logging.InfoScan("Stop requested, skipping remaining targets", scanID.String())
			break dispatch
		default:
		}

		rt := rt
		wg.Add(1)
		job := workers.NewTargetJob(
			fmt.Sprintf("%s/%s", scanID, rt.endpointID),
			scan.Type,
			func(jobCtx context.Context) error {
				defer wg.Done()
				return o.runTarget(jobCtx, scan, scanType, args, rt)
			},
		)
		if err := o.pool.Submit(job); err != nil {
			// Queue saturated or pool gone: attempt the target inline so
			// it still counts as attempted.
			logging.Warn("Pool submission failed, running target inline",
				"scan_id", scanID.String(), "error", err)
			_ = job.Execute(ctx)
		}
	}
	wg.Wait()

	select {
	case <-stopCh:
		// Stop already moved the scan to stopped; nothing left to do.
		logging.InfoScan("Scan stopped", scanID.String())
		metrics.IncrementScanTotal(scan.Type, string(store.StatusStopped))
		metrics.GetGlobalMetrics().IncrementScansTotal(scan.Type, string(store.StatusStopped))
	default:
		o.finish(ctx, scan, store.StatusCompleted)
	}
	return nil
}

// Stop transitions a running scan to stopped. Any other current status is
// an illegal transition. Already-dispatched target executions are allowed
// to finish; only future dispatch is skipped.
func (o *Orchestrator) Stop(ctx context.Context, scanID uuid.UUID) error {
	if err := o.store.UpdateScanStatus(ctx, scanID, store.StatusRunning, store.StatusStopped); err != nil {
		return err
	}

	o.mu.Lock()
	if ch, ok := o.stopped[scanID]; ok {
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
	o.mu.Unlock()

	logging.InfoScan("Stop accepted", scanID.String())
	return nil
}

// runTarget executes one target and persists its result. Execution errors
// are contained here: they are logged and counted, and the only externally
// observable effect is the missing result row.
func (o *Orchestrator) runTarget(ctx context.Context, scan *store.Scan,
	scanType params.ScanType, args []string, rt resolvedTarget) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewExecutionError(rt.address, "target execution panicked",
				fmt.Errorf("panic: %v", r))
			logging.ErrorTarget("Target execution panicked", rt.address, err,
				"scan_id", scan.ID.String())
		}
	}()

	start := time.Now()
	run, err := o.executor.Execute(ctx, rt.address, args)
	duration := time.Since(start)
	metrics.RecordTargetDuration(scan.Type, rt.address, duration)
	metrics.GetGlobalMetrics().RecordTargetDuration(scan.Type, duration)

	if err != nil {
		logging.ErrorTarget("Target execution failed", rt.address, err,
			"scan_id", scan.ID.String())
		metrics.IncrementTargetErrors(scan.Type, rt.address, string(errors.GetCode(err)))
		metrics.GetGlobalMetrics().IncrementTargetErrors(scan.Type, string(errors.GetCode(err)))
		metrics.IncrementTargetTotal(scan.Type, "failed")
		metrics.GetGlobalMetrics().IncrementTargetsTotal(scan.Type, "failed")
		return err
	}

	result := normalize.Normalize(run, scanType)
	raw, err := json.Marshal(result)
	if err != nil {
		logging.ErrorTarget("Failed to encode result", rt.address, err,
			"scan_id", scan.ID.String())
		return err
	}

	row := &store.ScanResult{
		ScanID:          scan.ID,
		EndpointID:      rt.endpointID,
		RawResults:      store.JSONB(raw),
		OpenPorts:       result.OpenPortCount(),
		Vulnerabilities: result.VulnerabilityCount(),
	}
	if result.Summary.DetectedOS != nil {
		row.OSDetection = &result.Summary.DetectedOS.Name
	}

	if err := o.store.CreateResult(ctx, row); err != nil {
		logging.ErrorTarget("Failed to persist result", rt.address, err,
			"scan_id", scan.ID.String())
		return err
	}

	metrics.IncrementTargetTotal(scan.Type, "completed")
	metrics.GetGlobalMetrics().IncrementTargetsTotal(scan.Type, "completed")
	metrics.GetGlobalMetrics().IncrementPortsOpen(scan.Type, result.OpenPortCount())
	logging.InfoScan("Target completed", scan.ID.String(),
		"target", rt.address,
		"open_ports", result.OpenPortCount())
	return nil
}

// resolveTargets maps the scan's target set to scannable addresses.
// Unresolvable endpoints are logged and dropped.
func (o *Orchestrator) resolveTargets(ctx context.Context, scanID uuid.UUID,
	targets []store.ScanTarget) []resolvedTarget {
	resolved := make([]resolvedTarget, 0, len(targets))
	for _, t := range targets {
		address, err := o.resolver.Resolve(ctx, t.EndpointID)
		if err != nil {
			logging.ErrorScan("Target endpoint did not resolve", scanID.String(), err,
				"endpoint_id", t.EndpointID.String())
			continue
		}
		resolved = append(resolved, resolvedTarget{
			endpointID: t.EndpointID,
			address:    address,
		})
	}
	return resolved
}

// finish moves a scan from running to the given terminal status. Losing
// the transition race (a concurrent Stop) is not an error.
func (o *Orchestrator) finish(ctx context.Context, scan *store.Scan, to store.ScanStatus) {
	if err := o.store.UpdateScanStatus(ctx, scan.ID, store.StatusRunning, to); err != nil {
		if errors.IsLifecycle(err) {
			return
		}
		logging.ErrorScan("Failed to finish scan", scan.ID.String(), err,
			"status", string(to))
		return
	}
	metrics.IncrementScanTotal(scan.Type, string(to))
	metrics.GetGlobalMetrics().IncrementScansTotal(scan.Type, string(to))
	logging.InfoScan("Scan finished", scan.ID.String(), "status", string(to))
}

func (o *Orchestrator) registerStop(scanID uuid.UUID) chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	ch := make(chan struct{})
	o.stopped[scanID] = ch
	return ch
}

func (o *Orchestrator) unregisterStop(scanID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.stopped, scanID)
}
