package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanhub/scanhub/internal/errors"
)

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return NewPostgres(sqlx.NewDb(mockDB, "sqlmock")), mock
}

func TestCreateScanInserts(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO scans").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	scan := &Scan{
		OwnerID:    uuid.New(),
		Name:       "nightly",
		Type:       "port-scan",
		Parameters: JSONB(`{"ports":"1-1000","speed":"normal","timeout":300}`),
	}
	err := st.CreateScan(context.Background(), scan)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, scan.ID)
	assert.Equal(t, StatusPending, scan.Status)
	assert.False(t, scan.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetScanNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT \\* FROM scans WHERE id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := st.GetScan(context.Background(), id)
	assert.True(t, errors.IsNotFound(err))
}

func TestListScansAppliesFilter(t *testing.T) {
	st, mock := newMockStore(t)
	owner := uuid.New()

	mock.ExpectQuery("SELECT \\* FROM scans WHERE owner_id = \\$1 AND status = \\$2 "+
		"ORDER BY created_at DESC LIMIT \\$3 OFFSET \\$4").
		WithArgs(owner, StatusCompleted, 10, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name", "type", "status", "created_at"}).
			AddRow(uuid.New(), owner, "nightly", "port-scan", StatusCompleted, time.Now()))

	scans, err := st.ListScans(context.Background(), owner,
		ScanFilter{Status: StatusCompleted, Limit: 10, Offset: 20})
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "nightly", scans[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateScanStatusCAS(t *testing.T) {
	st, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE scans SET status").
		WithArgs(StatusRunning, id, StatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := st.UpdateScanStatus(context.Background(), id, StatusPending, StatusRunning)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateScanStatusLosesRace(t *testing.T) {
	st, mock := newMockStore(t)
	id := uuid.New()

	// Another writer already moved the scan out of running: zero rows match.
	mock.ExpectExec("UPDATE scans SET status").
		WithArgs(StatusStopped, id, StatusRunning).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.UpdateScanStatus(context.Background(), id, StatusRunning, StatusStopped)
	assert.True(t, errors.IsLifecycle(err))
}

func TestDeleteScanCascades(t *testing.T) {
	st, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM scan_results").WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM scan_targets").WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM scans").WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := st.DeleteScan(context.Background(), id)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteScanMissing(t *testing.T) {
	st, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM scan_results").WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM scan_targets").WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM scans").WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := st.DeleteScan(context.Background(), id)
	assert.True(t, errors.IsNotFound(err))
}

func TestCreateResultInserts(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO scan_results").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	osName := "Linux 5.15 - 6.1"
	result := &ScanResult{
		ScanID:      uuid.New(),
		EndpointID:  uuid.New(),
		RawResults:  JSONB(`{"summary":{"open_ports":[22,80]}}`),
		OpenPorts:   2,
		OSDetection: &osName,
	}
	err := st.CreateResult(context.Background(), result)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
