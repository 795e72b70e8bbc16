package persistence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlowError_WrapsSentinel(t *testing.T) {
	err := NewFlowError("GetByID", "flow-1", ErrFlowNotFound)

	assert.ErrorIs(t, err, ErrFlowNotFound)
	assert.Contains(t, err.Error(), "GetByID")
	assert.Contains(t, err.Error(), "flow-1")
}

func TestCaseError_WrapsSentinel(t *testing.T) {
	err := NewCaseError("Commit", "case-1", ErrCaseNotFound)

	assert.ErrorIs(t, err, ErrCaseNotFound)
	assert.Contains(t, err.Error(), "case-1")
}

func TestCaseError_Unwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := NewCaseError("GetByID", "case-2", inner)

	assert.Equal(t, inner, errors.Unwrap(err))
}
