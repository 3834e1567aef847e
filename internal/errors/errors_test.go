package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanErrorFormatting(t *testing.T) {
	err := NewExecutionError("192.0.2.10", "scanner exited non-zero", fmt.Errorf("exit status 1"))
	assert.Contains(t, err.Error(), "EXECUTION")
	assert.Contains(t, err.Error(), "192.0.2.10")

	plain := NewValidationError("unknown scan type")
	assert.Equal(t, "[VALIDATION] unknown scan type", plain.Error())
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("exit status 1")
	err := NewExecutionError("192.0.2.10", "scanner exited non-zero", cause)
	assert.Equal(t, cause, err.Unwrap())

	dbErr := WrapDatabaseError(CodeDatabaseQuery, "query failed", cause)
	assert.Equal(t, cause, dbErr.Unwrap())
}

func TestCodeClassification(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"validation", NewValidationError("bad"), IsValidation},
		{"not found", NewNotFoundError("scan"), IsNotFound},
		{"lifecycle", NewLifecycleError("cannot stop"), IsLifecycle},
		{"execution", NewExecutionError("h", "failed", nil), IsExecution},
		{"fatal init", NewFatalInitError("nmap missing", nil), IsFatalInit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
		})
	}
}

func TestCodeClassificationWrapped(t *testing.T) {
	inner := NewLifecycleError("cannot delete a running scan")
	wrapped := fmt.Errorf("delete scan: %w", inner)
	assert.True(t, IsLifecycle(wrapped))
	assert.Equal(t, CodeLifecycle, GetCode(wrapped))
}

func TestGetCodeUnknown(t *testing.T) {
	assert.Equal(t, CodeUnknown, GetCode(fmt.Errorf("plain error")))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(NewFatalInitError("nmap missing", nil)))
	assert.True(t, IsFatal(ErrDatabaseConnection(fmt.Errorf("refused"))))
	assert.False(t, IsFatal(NewExecutionError("h", "failed", nil)))
}

func TestWithContext(t *testing.T) {
	err := NewScanError(CodeExecution, "failed").WithContext("scan_id", "abc")
	assert.Equal(t, "abc", err.Context["scan_id"])
}
