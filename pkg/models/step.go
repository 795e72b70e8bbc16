package models

import "time"

// StepKind distinguishes steps that collect field values directly from steps
// that delegate to a nested flow.
type StepKind string

const (
	StepKindForm    StepKind = "form"
	StepKindSubflow StepKind = "subflow"
)

// Step is one unit of work in a flow. A form step owns fields and triggers;
// a subflow step references a child flow pinned to a version.
type Step struct {
	ID          string    `json:"id"`
	FlowID      string    `json:"flow_id"`
	Title       string    `json:"title"       validate:"required"`
	Description string    `json:"description,omitempty"`
	Kind        StepKind  `json:"kind"        validate:"required,oneof=form subflow"`
	Order       int       `json:"order"`
	Active      bool      `json:"active"`
	Version     int       `json:"version"`

	// Subflow steps only.
	ChildFlowID      string `json:"child_flow_id,omitempty"`
	ChildFlowVersion int    `json:"child_flow_version,omitempty"`

	Fields   []*Field   `json:"fields,omitempty"`
	Triggers []*Trigger `json:"triggers,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FieldByID returns the step's field with the given id, including
// soft-deleted fields.
func (s *Step) FieldByID(fieldID string) *Field {
	for _, field := range s.Fields {
		if field.ID == fieldID {
			return field
		}
	}

	return nil
}

// ActiveFields returns the step's fields that have not been soft-deleted,
// in order.
func (s *Step) ActiveFields() []*Field {
	fields := make([]*Field, 0, len(s.Fields))

	for _, field := range s.Fields {
		if field.Active {
			fields = append(fields, field)
		}
	}

	return fields
}

// ActiveTriggers returns the step's triggers that have not been
// soft-deleted, preserving definition order.
func (s *Step) ActiveTriggers() []*Trigger {
	triggers := make([]*Trigger, 0, len(s.Triggers))

	for _, trigger := range s.Triggers {
		if trigger.Active {
			triggers = append(triggers, trigger)
		}
	}

	return triggers
}
