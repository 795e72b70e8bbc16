package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all backends should use.
var (
	// ErrFlowNotFound indicates a flow definition was not found by id.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrStepNotFound indicates a step definition was not found by id.
	ErrStepNotFound = errors.New("step not found")

	// ErrFieldNotFound indicates a field definition was not found by id.
	ErrFieldNotFound = errors.New("field not found")

	// ErrSnapshotNotFound indicates no snapshot exists for the requested
	// (step id, version) pair.
	ErrSnapshotNotFound = errors.New("step snapshot not found")

	// ErrCaseNotFound indicates a case was not found by id.
	ErrCaseNotFound = errors.New("case not found")

	// ErrCaseStepNotFound indicates a case step was not found by id.
	ErrCaseStepNotFound = errors.New("case step not found")

	// ErrSnapshotExists indicates an append collided with an existing
	// (step id, version) snapshot. Snapshots are immutable; the arena
	// rejects overwrites.
	ErrSnapshotExists = errors.New("step snapshot already exists")
)

// FlowError wraps flow-related storage errors with operation context.
type FlowError struct {
	Op     string // operation being performed (e.g. "GetByID", "Save")
	FlowID string
	Err    error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s operation failed for flow %s: %v", e.Op, e.FlowID, e.Err)
}

func (e *FlowError) Unwrap() error { return e.Err }

// NewFlowError creates a flow storage error with context.
func NewFlowError(op, flowID string, err error) *FlowError {
	return &FlowError{Op: op, FlowID: flowID, Err: err}
}

// CaseError wraps case-related storage errors with operation context.
type CaseError struct {
	Op     string
	CaseID string
	Err    error
}

func (e *CaseError) Error() string {
	return fmt.Sprintf("%s operation failed for case %s: %v", e.Op, e.CaseID, e.Err)
}

func (e *CaseError) Unwrap() error { return e.Err }

// NewCaseError creates a case storage error with context.
func NewCaseError(op, caseID string, err error) *CaseError {
	return &CaseError{Op: op, CaseID: caseID, Err: err}
}
