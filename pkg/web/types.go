// Package web provides the HTTP handlers for the case and flow API.
package web

import "github.com/urbanite/caseflow/pkg/validation"

// FieldValue is one submitted field value in a create or submit request.
type FieldValue struct {
	FieldID string `json:"field_id" validate:"required"`
	Value   any    `json:"value"`
}

// CreateCaseRequest starts a new case on an initial flow's step.
type CreateCaseRequest struct {
	FlowID string       `json:"flow_id" validate:"required"`
	StepID string       `json:"step_id" validate:"required"`
	Fields []FieldValue `json:"fields"`
}

// SubmitStepRequest appends a step submission to an existing case. A zero
// step_version resolves to the step's current version.
type SubmitStepRequest struct {
	StepID      string       `json:"step_id" validate:"required"`
	StepVersion int          `json:"step_version"`
	Fields      []FieldValue `json:"fields"`
}

// FinishCaseRequest finishes a case with a resolution state.
type FinishCaseRequest struct {
	ResolutionStateID string `json:"resolution_state_id" validate:"required"`
}

// TransferCaseRequest moves a case into another flow.
type TransferCaseRequest struct {
	FlowID string `json:"flow_id" validate:"required"`
}

// UpdateCaseStepRequest reassigns responsibility on a case step. Absent
// fields keep their current value.
type UpdateCaseStepRequest struct {
	ResponsibleUserID  *string `json:"responsible_user_id,omitempty"`
	ResponsibleGroupID *string `json:"responsible_group_id,omitempty"`
}

func submittedValues(fields []FieldValue) []validation.SubmittedValue {
	values := make([]validation.SubmittedValue, 0, len(fields))
	for _, field := range fields {
		values = append(values, validation.SubmittedValue{FieldID: field.FieldID, Value: field.Value})
	}

	return values
}
