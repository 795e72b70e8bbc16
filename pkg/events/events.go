// Package events defines the event types emitted on case lifecycle changes.
package events

import (
	"time"
)

type EventType string

// Topic is the stream all case lifecycle events are published to.
const Topic = "caseflow.cases"

const EventTypeMetadataKey = "event_type"

const (
	CaseCreatedEvent     EventType = "case.created"
	CaseStepSubmitted    EventType = "case.step.submitted"
	CaseStepUpdated      EventType = "case.step.updated"
	CaseStepsDisabled    EventType = "case.steps.disabled"
	CaseFinishedEvent    EventType = "case.finished"
	CaseTransferredEvent EventType = "case.transferred"
	CaseDeletedEvent     EventType = "case.deleted"
	CaseRestoredEvent    EventType = "case.restored"
)

// Event is implemented by every case lifecycle event.
type Event interface {
	GetType() EventType
}

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	CaseID    string         `json:"case_id"`
	FlowID    string         `json:"flow_id,omitempty"`
	ActorID   string         `json:"actor_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type CaseCreated struct {
	BaseEvent

	CaseStepID string `json:"case_step_id"`
	StepID     string `json:"step_id"`
}

func (e CaseCreated) GetType() EventType {
	return CaseCreatedEvent
}

type StepSubmitted struct {
	BaseEvent

	CaseStepID      string   `json:"case_step_id"`
	StepID          string   `json:"step_id"`
	StepVersion     int      `json:"step_version"`
	FiredTriggerIDs []string `json:"fired_trigger_ids,omitempty"`
}

func (e StepSubmitted) GetType() EventType {
	return CaseStepSubmitted
}

type StepUpdated struct {
	BaseEvent

	CaseStepID string `json:"case_step_id"`
	StepID     string `json:"step_id"`
}

func (e StepUpdated) GetType() EventType {
	return CaseStepUpdated
}

type StepsDisabled struct {
	BaseEvent

	StepIDs []string `json:"step_ids"`
}

func (e StepsDisabled) GetType() EventType {
	return CaseStepsDisabled
}

type CaseFinished struct {
	BaseEvent

	ResolutionStateID string `json:"resolution_state_id,omitempty"`
}

func (e CaseFinished) GetType() EventType {
	return CaseFinishedEvent
}

type CaseTransferred struct {
	BaseEvent

	NewCaseID    string `json:"new_case_id"`
	TargetFlowID string `json:"target_flow_id"`
}

func (e CaseTransferred) GetType() EventType {
	return CaseTransferredEvent
}

type CaseDeleted struct {
	BaseEvent
}

func (e CaseDeleted) GetType() EventType {
	return CaseDeletedEvent
}

type CaseRestored struct {
	BaseEvent
}

func (e CaseRestored) GetType() EventType {
	return CaseRestoredEvent
}
