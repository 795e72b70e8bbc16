// Package models defines the core domain models for flow-based case intake.
package models

import "time"

// FlowStatus represents the lifecycle state of a flow definition.
type FlowStatus string

const (
	FlowStatusActive   FlowStatus = "active"
	FlowStatusInactive FlowStatus = "inactive"
)

// Flow is a versioned definition of an ordered sequence of steps. Flows
// flagged as initial act as case entry points.
type Flow struct {
	ID               string             `json:"id"`
	Title            string             `json:"title"                  validate:"required,min=3"`
	Description      string             `json:"description,omitempty"`
	Status           FlowStatus         `json:"status"`
	Initial          bool               `json:"initial"`
	Version          int                `json:"version"`
	Steps            []*Step            `json:"steps"`
	ResolutionStates []*ResolutionState `json:"resolution_states,omitempty"`
	CreatedBy        string             `json:"created_by"`
	UpdatedBy        string             `json:"updated_by,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// ResolutionState names a terminal outcome a finished case can carry.
type ResolutionState struct {
	ID      string `json:"id"`
	FlowID  string `json:"flow_id"`
	Title   string `json:"title"   validate:"required"`
	Default bool   `json:"default"`
	Active  bool   `json:"active"`
}

// StepByID returns the step with the given id, searching active and
// soft-deleted steps alike so historical references stay resolvable.
func (f *Flow) StepByID(stepID string) *Step {
	for _, step := range f.Steps {
		if step.ID == stepID {
			return step
		}
	}

	return nil
}

// ActiveSteps returns the flow's steps that have not been soft-deleted,
// in order.
func (f *Flow) ActiveSteps() []*Step {
	steps := make([]*Step, 0, len(f.Steps))

	for _, step := range f.Steps {
		if step.Active {
			steps = append(steps, step)
		}
	}

	return steps
}

// EntryStep returns the first active step of the flow, the step a new case
// starts on. Returns nil when the flow has no active steps.
func (f *Flow) EntryStep() *Step {
	for _, step := range f.Steps {
		if step.Active {
			return step
		}
	}

	return nil
}

// DefaultResolutionState returns the flow's default resolution state id, or
// empty when none is marked default.
func (f *Flow) DefaultResolutionState() string {
	for _, rs := range f.ResolutionStates {
		if rs.Default && rs.Active {
			return rs.ID
		}
	}

	return ""
}
