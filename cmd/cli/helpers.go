package cli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/scanhub/scanhub/internal/config"
	"github.com/scanhub/scanhub/internal/directory"
	"github.com/scanhub/scanhub/internal/executor"
	"github.com/scanhub/scanhub/internal/orchestrator"
	"github.com/scanhub/scanhub/internal/service"
	"github.com/scanhub/scanhub/internal/store"
	"github.com/scanhub/scanhub/internal/workers"
)

// engine bundles the service facade with the resources behind it so
// commands can tear everything down when they finish.
type engine struct {
	svc   *service.Service
	store store.Store
	pool  *workers.Pool
	close func()
}

func loadConfig() (*config.Config, error) {
	path := viper.ConfigFileUsed()
	if path == "" {
		path = "config.yaml"
	}
	return config.Load(path)
}

// buildEngine connects the database and assembles the scan engine stack.
func buildEngine(ctx context.Context, cfg *config.Config) (*engine, error) {
	db, err := store.Connect(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	exec, err := executor.NewNmap(cfg.Scanning.NmapPath)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	pool := workers.New(workers.Config{
		Size:            cfg.Scanning.WorkerPoolSize,
		QueueSize:       cfg.Scanning.QueueSize,
		ShutdownTimeout: cfg.Scanning.ShutdownTimeout,
	})
	pool.Start()

	var opts []directory.Option
	if cfg.Scanning.DNSServer != "" {
		opts = append(opts, directory.WithDNSServer(cfg.Scanning.DNSServer))
	}
	resolver := directory.New(db, opts...)

	orch := orchestrator.New(db, exec, resolver, pool)
	svc := service.New(db, orch)

	return &engine{
		svc:   svc,
		store: db,
		pool:  pool,
		close: func() {
			_ = pool.Shutdown()
			_ = db.Close()
		},
	}, nil
}

// endpointType infers the endpoint type from a target string.
func endpointType(target string) string {
	if net.ParseIP(target) != nil {
		return store.EndpointTypeIP
	}
	return store.EndpointTypeHostname
}

// waitForScan polls until the scan reaches a terminal status or the
// timeout elapses.
func waitForScan(ctx context.Context, st store.Store, scanID uuid.UUID, timeout time.Duration) (store.ScanStatus, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()

	for {
		scan, err := st.GetScan(ctx, scanID)
		if err != nil {
			return "", err
		}
		if scan.Status.Terminal() {
			return scan.Status, nil
		}

		select {
		case <-ctx.Done():
			return scan.Status, ctx.Err()
		case <-deadline.C:
			return scan.Status, fmt.Errorf("scan did not finish within %s", timeout)
		case <-tick.C:
		}
	}
}
