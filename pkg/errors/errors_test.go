package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := New(CodeInvalidConstraints, "bad constraints")
	assert.Equal(t, "[INVALID_CONSTRAINTS] bad constraints", err.Error())

	wrapped := Wrap(CodeDatabaseError, "save failed", fmt.Errorf("connection refused"))
	assert.Equal(t, "[DATABASE_ERROR] save failed: connection refused", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner")
	err := Wrap(CodeInternal, "outer", inner)
	assert.Equal(t, inner, errors.Unwrap(err))
}

func TestAppError_Is(t *testing.T) {
	err := Wrap(CodeCancelled, "cancelled by user", nil)
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.False(t, errors.Is(err, ErrNotFound))

	assert.True(t, IsCancelled(err))
	assert.False(t, IsNotFound(err))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, CodeTimeBudgetExhausted, GetErrorCode(ErrTimeBudgetExhausted))
	assert.Equal(t, CodeUnknown, GetErrorCode(fmt.Errorf("plain error")))

	// Wrapped AppError is still discoverable through the chain.
	chained := fmt.Errorf("context: %w", ErrDataInconsistency)
	assert.Equal(t, CodeDataInconsistency, GetErrorCode(chained))
}

func TestGetErrorMessage(t *testing.T) {
	assert.Equal(t, "demand cannot be satisfied", GetErrorMessage(ErrInfeasibleDemand))
	assert.Equal(t, "plain", GetErrorMessage(fmt.Errorf("plain")))
	assert.Equal(t, "", GetErrorMessage(nil))
}
