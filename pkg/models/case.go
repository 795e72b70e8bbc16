package models

import (
	"slices"
	"time"
)

// CaseStatus represents the lifecycle state of a case.
type CaseStatus string

const (
	CaseStatusActive   CaseStatus = "active"
	CaseStatusPending  CaseStatus = "pending"
	CaseStatusFinished CaseStatus = "finished"
	CaseStatusTransfer CaseStatus = "transfer"
	CaseStatusInactive CaseStatus = "inactive"
)

// Case is one live execution of a flow. It pins the flow version it was
// created against; later definition edits never change its behavior.
type Case struct {
	ID                 string      `json:"id"`
	InitialFlowID      string      `json:"initial_flow_id"`
	FlowVersion        int         `json:"flow_version"`
	Status             CaseStatus  `json:"status"`
	ResponsibleUserID  string      `json:"responsible_user_id,omitempty"`
	ResponsibleGroupID string      `json:"responsible_group_id,omitempty"`
	DisabledStepIDs    []string    `json:"disabled_steps"`
	ResolutionStateID  string      `json:"resolution_state_id,omitempty"`
	OriginalCaseID     string      `json:"original_case_id,omitempty"`
	CaseSteps          []*CaseStep `json:"case_steps,omitempty"`
	CreatedBy          string      `json:"created_by"`
	UpdatedBy          string      `json:"updated_by,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// CaseStep records one execution of a step against a case, pinned to the
// step version that was current at submission time.
type CaseStep struct {
	ID                 string           `json:"id"`
	CaseID             string           `json:"case_id"`
	StepID             string           `json:"step_id"`
	StepVersion        int              `json:"step_version"`
	FiredTriggerIDs    []string         `json:"fired_trigger_ids,omitempty"`
	ResponsibleUserID  string           `json:"responsible_user_id,omitempty"`
	ResponsibleGroupID string           `json:"responsible_group_id,omitempty"`
	Fields             []*CaseStepField `json:"fields"`
	CreatedBy          string           `json:"created_by"`
	UpdatedBy          string           `json:"updated_by,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// CaseStepField holds the coerced value submitted for one field.
type CaseStepField struct {
	FieldID string `json:"field_id"`
	Value   any    `json:"value"`
}

// Terminal reports whether the case accepts no further step submissions.
// Inactive cases are excluded: they are rejected earlier as not found.
func (c *Case) Terminal() bool {
	return c.Status == CaseStatusFinished || c.Status == CaseStatusTransfer
}

// StepDisabled reports whether stepID has been disabled on this case.
func (c *Case) StepDisabled(stepID string) bool {
	return slices.Contains(c.DisabledStepIDs, stepID)
}

// DisableStep adds stepID to the disabled set. Returns false when the step
// was already disabled, keeping repeated trigger firings idempotent.
func (c *Case) DisableStep(stepID string) bool {
	if c.StepDisabled(stepID) {
		return false
	}

	c.DisabledStepIDs = append(c.DisabledStepIDs, stepID)

	return true
}

// CurrentStep returns the most recently created case step whose step has not
// been disabled, or nil when every executed step is disabled.
func (c *Case) CurrentStep() *CaseStep {
	for i := len(c.CaseSteps) - 1; i >= 0; i-- {
		if !c.StepDisabled(c.CaseSteps[i].StepID) {
			return c.CaseSteps[i]
		}
	}

	return nil
}

// StepExecution returns the latest case step recorded for stepID, or nil.
func (c *Case) StepExecution(stepID string) *CaseStep {
	for i := len(c.CaseSteps) - 1; i >= 0; i-- {
		if c.CaseSteps[i].StepID == stepID {
			return c.CaseSteps[i]
		}
	}

	return nil
}

// CaseStepByID returns the case step with the given id, or nil.
func (c *Case) CaseStepByID(caseStepID string) *CaseStep {
	for _, cs := range c.CaseSteps {
		if cs.ID == caseStepID {
			return cs
		}
	}

	return nil
}

// FieldValue returns the value recorded for fieldID, with ok reporting
// whether the field was part of the submission.
func (cs *CaseStep) FieldValue(fieldID string) (any, bool) {
	for _, f := range cs.Fields {
		if f.FieldID == fieldID {
			return f.Value, true
		}
	}

	return nil, false
}
