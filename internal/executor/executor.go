// Package executor invokes the external nmap binary for a single target
// and returns its raw structured output. Ordinary tool failures become
// typed execution errors; a missing binary at startup is a fatal
// configuration error, not a per-scan failure.
package executor

import (
	"context"
	"os/exec"

	"github.com/Ullaakut/nmap/v3"

	"github.com/scanhub/scanhub/internal/errors"
	"github.com/scanhub/scanhub/internal/logging"
)

// Executor runs the scan capability against exactly one target address.
// The orchestrator depends on this interface so tests can substitute a
// fake without a live nmap install.
type Executor interface {
	Execute(ctx context.Context, address string, args []string) (*nmap.Run, error)
}

// Nmap is the production Executor backed by the nmap binary.
type Nmap struct {
	binaryPath string
}

// NewNmap verifies the nmap binary is invocable and returns an executor
// bound to it. binaryPath may be empty, in which case PATH is searched.
// An unavailable binary is a FatalInitError: the process cannot scan and
// should not pretend otherwise.
func NewNmap(binaryPath string) (*Nmap, error) {
	path := binaryPath
	if path == "" {
		path = "nmap"
	}

	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, errors.NewFatalInitError("nmap binary not available", err)
	}

	logging.Info("Scan capability initialized", "binary", resolved)
	return &Nmap{binaryPath: resolved}, nil
}

// Execute runs nmap against one target with the prepared argument list.
// The call blocks until the tool finishes or ctx is canceled; callers run
// it on a worker, never on a coordination path. Tool failures of any kind
// surface as an ExecutionError carrying the target and cause.
func (e *Nmap) Execute(ctx context.Context, address string, args []string) (*nmap.Run, error) {
	scanner, err := nmap.NewScanner(ctx,
		nmap.WithTargets(address),
		nmap.WithBinaryPath(e.binaryPath),
		nmap.WithCustomArguments(args...),
	)
	if err != nil {
		return nil, errors.NewExecutionError(address, "failed to create scanner", err)
	}

	run, warnings, err := scanner.Run()
	if err != nil {
		return nil, errors.NewExecutionError(address, "scan execution failed", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		logging.Warn("Scan completed with warnings",
			"target", address, "warnings", *warnings)
	}
	if run == nil {
		return nil, errors.NewExecutionError(address, "scan produced no output", nil)
	}

	return run, nil
}
