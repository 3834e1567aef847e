package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScanStatus is the lifecycle state of a scan.
type ScanStatus string

const (
	StatusPending   ScanStatus = "pending"
	StatusRunning   ScanStatus = "running"
	StatusCompleted ScanStatus = "completed"
	StatusFailed    ScanStatus = "failed"
	StatusStopped   ScanStatus = "stopped"
)

// Terminal reports whether no further transition can leave this status.
func (s ScanStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known statuses.
func (s ScanStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusStopped:
		return true
	default:
		return false
	}
}

// JSONB wraps json.RawMessage for PostgreSQL JSONB columns.
type JSONB json.RawMessage

// Scan implements sql.Scanner for PostgreSQL JSONB type.
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = JSONB(v)
		return nil
	case string:
		*j = JSONB([]byte(v))
		return nil
	default:
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}
}

// Value implements driver.Valuer for PostgreSQL JSONB type.
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// String returns the JSON string.
func (j JSONB) String() string {
	return string(j)
}

// MarshalJSON implements json.Marshaler.
func (j JSONB) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSONB) UnmarshalJSON(data []byte) error {
	*j = JSONB(data)
	return nil
}

// Scan is one execution run against a fixed set of targets. Parameters are
// the normalized set the run actually executed with and are immutable once
// execution starts. Status and timestamps are mutated only through the
// compare-and-set UpdateScanStatus.
type Scan struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	OwnerID     uuid.UUID  `db:"owner_id" json:"owner_id"`
	Name        string     `db:"name" json:"name"`
	Type        string     `db:"type" json:"type"`
	Parameters  JSONB      `db:"parameters" json:"parameters"`
	Status      ScanStatus `db:"status" json:"status"`
	ScheduledAt *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// ScanTarget binds one endpoint to a scan. The set is fixed at scan
// creation and immutable thereafter.
type ScanTarget struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ScanID     uuid.UUID `db:"scan_id" json:"scan_id"`
	EndpointID uuid.UUID `db:"endpoint_id" json:"endpoint_id"`
}

// ScanResult holds one target's normalized output. A target that failed
// execution produces no row at all, never an empty one. Rows are created
// once and never updated.
type ScanResult struct {
	ID              uuid.UUID `db:"id" json:"id"`
	ScanID          uuid.UUID `db:"scan_id" json:"scan_id"`
	EndpointID      uuid.UUID `db:"endpoint_id" json:"endpoint_id"`
	RawResults      JSONB     `db:"raw_results" json:"raw_results"`
	OpenPorts       int       `db:"open_ports" json:"open_ports"`
	Vulnerabilities int       `db:"vulnerabilities" json:"vulnerabilities"`
	OSDetection     *string   `db:"os_detection" json:"os_detection,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Endpoint is a scannable asset owned by a user. Address holds either an
// IP literal or a hostname depending on Type.
type Endpoint struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OwnerID   uuid.UUID `db:"owner_id" json:"owner_id"`
	Name      string    `db:"name" json:"name"`
	Address   string    `db:"address" json:"address"`
	Type      string    `db:"type" json:"type"`
	Active    bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Endpoint address types.
const (
	EndpointTypeIP       = "ip"
	EndpointTypeHostname = "hostname"
)
