package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/scanhub/scanhub/internal/errors"
	"github.com/scanhub/scanhub/internal/logging"
	"github.com/scanhub/scanhub/internal/metrics"
)

const (
	defaultPostgresPort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5
	defaultConnMaxIdleTime = 5
)

// Config holds database configuration.
type Config struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	Database        string        `yaml:"database" json:"database"`
	Username        string        `yaml:"username" json:"username"`
	Password        string        `yaml:"password" json:"password"`
	SSLMode         string        `yaml:"ssl_mode" json:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

// DefaultConfig returns the default database configuration. Database name,
// username, and password must be explicitly configured.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            defaultPostgresPort,
		SSLMode:         "disable",
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime * time.Minute,
		ConnMaxIdleTime: defaultConnMaxIdleTime * time.Minute,
	}
}

// sanitizeDBError converts raw database errors into sanitized errors that
// don't expose SQL details or credentials to callers. The original error is
// preserved in the Cause field for internal debugging.
func sanitizeDBError(operation string, err error) error {
	if err == nil {
		return nil
	}

	if err == sql.ErrNoRows {
		return errors.NewDatabaseError(errors.CodeNotFound, "Resource not found")
	}

	if pqErr, ok := err.(*pq.Error); ok {
		var dbErr *errors.DatabaseError
		switch pqErr.Code {
		case "23505": // unique_violation
			dbErr = errors.NewDatabaseError(errors.CodeConflict, "Resource already exists")
		case "23503": // foreign_key_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Referenced resource does not exist")
		case "23502": // not_null_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Required field is missing")
		case "23514": // check_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Data validation failed")
		case "57014": // query_canceled
			dbErr = errors.NewDatabaseError(errors.CodeCanceled, "Database operation was canceled")
		case "57P01": // admin_shutdown
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseConnection, "Database connection lost")
		case "08000", "08003", "08006": // connection errors
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseConnection, "Database connection error")
		default:
			msg := fmt.Sprintf("Database operation failed: %s", operation)
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseQuery, msg)
		}
		dbErr.Operation = operation
		dbErr.Cause = err
		return dbErr
	}

	dbErr := errors.WrapDatabaseError(errors.CodeDatabaseQuery,
		fmt.Sprintf("Database operation failed: %s", operation), err)
	dbErr.Operation = operation
	return dbErr
}

// Postgres implements Store on top of PostgreSQL via sqlx.
type Postgres struct {
	db *sqlx.DB
}

// Connect establishes a PostgreSQL connection and returns a Store backed
// by it. Returned errors are sanitized so they never leak the DSN.
func Connect(ctx context.Context, config *Config) (*Postgres, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		config.Host, config.Port, config.Database,
		config.Username, config.Password, config.SSLMode,
	)

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, errors.ErrDatabaseConnection(err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.ErrorStore("Failed to close database connection after ping failure", closeErr)
		}
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseConnection,
			"Failed to verify database connection", err)
	}

	logging.InfoStore("Connected to database",
		"host", config.Host, "port", config.Port, "database", config.Database)
	return &Postgres{db: db}, nil
}

// NewPostgres wraps an existing connection. Used by tests with sqlmock.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// Close closes the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// CreateScan inserts a new scan row.
func (p *Postgres) CreateScan(ctx context.Context, scan *Scan) error {
	timer := metrics.NewTimer(metrics.MetricDatabaseDuration, metrics.Labels{metrics.LabelOperation: "create_scan"})
	defer timer.Stop()

	if scan.ID == uuid.Nil {
		scan.ID = uuid.New()
	}
	if scan.Status == "" {
		scan.Status = StatusPending
	}

	query := `
		INSERT INTO scans (id, owner_id, name, type, parameters, status, scheduled_at)
		VALUES (:id, :owner_id, :name, :type, :parameters, :status, :scheduled_at)
		RETURNING created_at`

	rows, err := p.db.NamedQueryContext(ctx, query, scan)
	if err != nil {
		return sanitizeDBError("create scan", err)
	}
	defer func() { _ = rows.Close() }()

	if rows.Next() {
		if err := rows.Scan(&scan.CreatedAt); err != nil {
			return sanitizeDBError("scan created scan", err)
		}
	}
	return nil
}

// GetScan fetches one scan by ID.
func (p *Postgres) GetScan(ctx context.Context, id uuid.UUID) (*Scan, error) {
	var scan Scan
	query := `SELECT * FROM scans WHERE id = $1`

	if err := p.db.GetContext(ctx, &scan, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("scan")
		}
		return nil, sanitizeDBError("get scan", err)
	}
	return &scan, nil
}

// ListScans returns an owner's scans newest first, narrowed by the filter.
func (p *Postgres) ListScans(ctx context.Context, ownerID uuid.UUID, filter ScanFilter) ([]Scan, error) {
	query := `SELECT * FROM scans WHERE owner_id = $1`
	args := []interface{}{ownerID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(` AND type = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	var scans []Scan
	if err := p.db.SelectContext(ctx, &scans, query, args...); err != nil {
		return nil, sanitizeDBError("list scans", err)
	}
	return scans, nil
}

// UpdateScanStatus performs a compare-and-set status transition. The WHERE
// clause on the prior status makes concurrent transitions race-safe: the
// loser matches zero rows and gets a LifecycleError.
func (p *Postgres) UpdateScanStatus(ctx context.Context, id uuid.UUID, from, to ScanStatus) error {
	timer := metrics.NewTimer(metrics.MetricDatabaseDuration, metrics.Labels{metrics.LabelOperation: "update_scan_status"})
	defer timer.Stop()

	query := `UPDATE scans SET status = $1`
	switch {
	case to == StatusRunning:
		query += `, started_at = NOW()`
	case to.Terminal():
		query += `, completed_at = NOW()`
	}
	query += ` WHERE id = $2 AND status = $3`

	result, err := p.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return sanitizeDBError("update scan status", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return sanitizeDBError("get rows affected", err)
	}
	if affected == 0 {
		return errors.NewLifecycleError(
			fmt.Sprintf("scan is not in status %q", from))
	}
	return nil
}

// DeleteScan removes a scan and cascades to its targets and results.
func (p *Postgres) DeleteScan(ctx context.Context, id uuid.UUID) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return sanitizeDBError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM scan_results WHERE scan_id = $1`, id); err != nil {
		return sanitizeDBError("delete scan results", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM scan_targets WHERE scan_id = $1`, id); err != nil {
		return sanitizeDBError("delete scan targets", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM scans WHERE id = $1`, id)
	if err != nil {
		return sanitizeDBError("delete scan", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return sanitizeDBError("get rows affected", err)
	}
	if affected == 0 {
		return errors.NewNotFoundError("scan")
	}

	if err := tx.Commit(); err != nil {
		return sanitizeDBError("commit transaction", err)
	}
	return nil
}

// CreateTargets inserts the fixed target set for a scan.
func (p *Postgres) CreateTargets(ctx context.Context, targets []ScanTarget) error {
	if len(targets) == 0 {
		return nil
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return sanitizeDBError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO scan_targets (id, scan_id, endpoint_id)
		VALUES (:id, :scan_id, :endpoint_id)`

	for i := range targets {
		if targets[i].ID == uuid.Nil {
			targets[i].ID = uuid.New()
		}
		if _, err := tx.NamedExecContext(ctx, query, targets[i]); err != nil {
			return sanitizeDBError("create scan target", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return sanitizeDBError("commit transaction", err)
	}
	return nil
}

// GetTargets returns all targets for a scan.
func (p *Postgres) GetTargets(ctx context.Context, scanID uuid.UUID) ([]ScanTarget, error) {
	var targets []ScanTarget
	query := `SELECT * FROM scan_targets WHERE scan_id = $1`

	if err := p.db.SelectContext(ctx, &targets, query, scanID); err != nil {
		return nil, sanitizeDBError("get scan targets", err)
	}
	return targets, nil
}

// CreateResult inserts one target's result row.
func (p *Postgres) CreateResult(ctx context.Context, result *ScanResult) error {
	timer := metrics.NewTimer(metrics.MetricDatabaseDuration, metrics.Labels{metrics.LabelOperation: "create_result"})
	defer timer.Stop()

	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}

	query := `
		INSERT INTO scan_results (id, scan_id, endpoint_id, raw_results, open_ports, vulnerabilities, os_detection)
		VALUES (:id, :scan_id, :endpoint_id, :raw_results, :open_ports, :vulnerabilities, :os_detection)
		RETURNING created_at`

	rows, err := p.db.NamedQueryContext(ctx, query, result)
	if err != nil {
		return sanitizeDBError("create scan result", err)
	}
	defer func() { _ = rows.Close() }()

	if rows.Next() {
		if err := rows.Scan(&result.CreatedAt); err != nil {
			return sanitizeDBError("scan created scan result", err)
		}
	}
	return nil
}

// GetResults returns all results for a scan.
func (p *Postgres) GetResults(ctx context.Context, scanID uuid.UUID) ([]ScanResult, error) {
	var results []ScanResult
	query := `SELECT * FROM scan_results WHERE scan_id = $1 ORDER BY created_at`

	if err := p.db.SelectContext(ctx, &results, query, scanID); err != nil {
		return nil, sanitizeDBError("get scan results", err)
	}
	return results, nil
}

// CreateEndpoint inserts an endpoint.
func (p *Postgres) CreateEndpoint(ctx context.Context, endpoint *Endpoint) error {
	if endpoint.ID == uuid.Nil {
		endpoint.ID = uuid.New()
	}
	if endpoint.Type == "" {
		endpoint.Type = EndpointTypeIP
	}

	query := `
		INSERT INTO endpoints (id, owner_id, name, address, type, is_active)
		VALUES (:id, :owner_id, :name, :address, :type, :is_active)
		RETURNING created_at`

	rows, err := p.db.NamedQueryContext(ctx, query, endpoint)
	if err != nil {
		return sanitizeDBError("create endpoint", err)
	}
	defer func() { _ = rows.Close() }()

	if rows.Next() {
		if err := rows.Scan(&endpoint.CreatedAt); err != nil {
			return sanitizeDBError("scan created endpoint", err)
		}
	}
	return nil
}

// GetEndpoint fetches one endpoint by ID.
func (p *Postgres) GetEndpoint(ctx context.Context, id uuid.UUID) (*Endpoint, error) {
	var endpoint Endpoint
	query := `SELECT * FROM endpoints WHERE id = $1`

	if err := p.db.GetContext(ctx, &endpoint, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("endpoint")
		}
		return nil, sanitizeDBError("get endpoint", err)
	}
	return &endpoint, nil
}
