package models

import "time"

// LogAction tags one kind of state-changing action in the case audit log.
type LogAction string

const (
	LogCaseCreated    LogAction = "create_case"
	LogStepUpdated    LogAction = "update_step"
	LogCaseStepUpdate LogAction = "update_case_step"
	LogDisableSteps   LogAction = "disable_steps"
	LogFinishFlow     LogAction = "finish_flow"
	LogTransferFlow   LogAction = "transfer_flow"
	LogFinishedCase   LogAction = "finished_case"
	LogDeleteCase     LogAction = "delete_case"
	LogRestoredCase   LogAction = "restored_case"
)

// LogEntry is one immutable audit record. Entries are append-only; nothing
// in the engine updates or deletes them.
type LogEntry struct {
	ID            string    `json:"id"`
	Action        LogAction `json:"action"`
	UserID        string    `json:"user_id,omitempty"`
	FlowID        string    `json:"flow_id,omitempty"`
	FlowVersion   int       `json:"flow_version,omitempty"`
	StepID        string    `json:"step_id,omitempty"`
	CaseID        string    `json:"case_id"`
	BeforeUserID  string    `json:"before_user_id,omitempty"`
	AfterUserID   string    `json:"after_user_id,omitempty"`
	BeforeGroupID string    `json:"before_group_id,omitempty"`
	AfterGroupID  string    `json:"after_group_id,omitempty"`
	NewFlowID     string    `json:"new_flow_id,omitempty"`
	ChildCaseID   string    `json:"child_case_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
