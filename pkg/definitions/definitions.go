// Package definitions manages the lifecycle of flow definitions: creation,
// editing, soft deletion and per-step version snapshots for immutable case
// execution.
package definitions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/urbanite/caseflow/pkg/models"
	"github.com/urbanite/caseflow/pkg/persistence"
)

var (
	// ErrFlowInactive indicates an operation that needs a live flow hit a
	// soft-deleted one.
	ErrFlowInactive = errors.New("flow is not active")

	// ErrFlowHasNoSteps indicates a flow cannot be bound because it has no
	// active steps to execute.
	ErrFlowHasNoSteps = errors.New("flow has no active steps")

	// ErrTriggerNotFound indicates a trigger definition was not found by id.
	ErrTriggerNotFound = errors.New("trigger not found")

	// ErrSubflowCycle indicates a subflow step chain references a flow that
	// is already on the expansion path.
	ErrSubflowCycle = errors.New("subflow reference cycle")
)

// Service owns flow definition mutations. Every structural change to a step
// or its fields/triggers bumps the step version and appends an immutable
// snapshot, so cases bound to earlier versions keep their behavior.
type Service struct {
	persistence persistence.Persistence
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewService creates a definition service on top of the given storage backend.
func NewService(p persistence.Persistence, logger *slog.Logger) *Service {
	return &Service{
		persistence: p,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger.With("module", "definitions"),
	}
}

// CreateFlow stores a new flow definition. Missing ids are assigned, every
// element starts active, and each step is snapshotted at version 1.
func (s *Service) CreateFlow(ctx context.Context, flow *models.Flow, actorID string) (*models.Flow, error) {
	now := time.Now()

	if flow.ID == "" {
		flow.ID = uuid.New().String()
	}

	if flow.Status == "" {
		flow.Status = models.FlowStatusActive
	}

	flow.Version = 1
	flow.CreatedBy = actorID
	flow.UpdatedBy = actorID
	flow.CreatedAt = now
	flow.UpdatedAt = now

	for i, step := range flow.Steps {
		s.prepareStep(flow, step, i, now)
	}

	for _, rs := range flow.ResolutionStates {
		if rs.ID == "" {
			rs.ID = uuid.New().String()
		}

		rs.FlowID = flow.ID
		rs.Active = true
	}

	if err := s.validate.Struct(flow); err != nil {
		return nil, fmt.Errorf("invalid flow definition: %w", err)
	}

	if err := s.persistence.Flows().Save(ctx, flow); err != nil {
		return nil, fmt.Errorf("failed to save flow: %w", err)
	}

	for _, step := range flow.Steps {
		if err := s.appendSnapshot(ctx, step, now); err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "flow created", "flow_id", flow.ID, "steps", len(flow.Steps))

	return flow, nil
}

// ListFlows returns every stored flow definition, soft-deleted ones included.
func (s *Service) ListFlows(ctx context.Context) ([]*models.Flow, error) {
	return s.persistence.Flows().GetAll(ctx)
}

// GetFlow returns the live flow definition with the given id.
func (s *Service) GetFlow(ctx context.Context, flowID string) (*models.Flow, error) {
	return s.persistence.Flows().GetByID(ctx, flowID)
}

// FlowUpdate carries a partial cosmetic update of a flow. Nil fields keep
// their current value.
type FlowUpdate struct {
	Title       *string
	Description *string
	Initial     *bool
}

// UpdateFlow applies a cosmetic flow update. Cosmetic edits never bump
// versions and never snapshot.
func (s *Service) UpdateFlow(ctx context.Context, flowID string, update FlowUpdate, actorID string) (*models.Flow, error) {
	flow, err := s.persistence.Flows().GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		flow.Title = *update.Title
	}

	if update.Description != nil {
		flow.Description = *update.Description
	}

	if update.Initial != nil {
		flow.Initial = *update.Initial
	}

	flow.UpdatedBy = actorID
	flow.UpdatedAt = time.Now()

	if err := s.validate.Struct(flow); err != nil {
		return nil, fmt.Errorf("invalid flow definition: %w", err)
	}

	if err := s.persistence.Flows().Save(ctx, flow); err != nil {
		return nil, err
	}

	return flow, nil
}

// DeactivateFlow soft-deletes a flow definition. Cases already bound to its
// steps keep resolving against their snapshots.
func (s *Service) DeactivateFlow(ctx context.Context, flowID string, actorID string) error {
	flow, err := s.persistence.Flows().GetByID(ctx, flowID)
	if err != nil {
		return err
	}

	flow.Status = models.FlowStatusInactive
	flow.UpdatedBy = actorID
	flow.UpdatedAt = time.Now()

	return s.persistence.Flows().Save(ctx, flow)
}

// AddStep appends a step to a flow and snapshots it at version 1.
func (s *Service) AddStep(ctx context.Context, flowID string, step *models.Step, actorID string) (*models.Step, error) {
	flow, err := s.activeFlow(ctx, flowID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s.prepareStep(flow, step, len(flow.Steps), now)
	flow.Steps = append(flow.Steps, step)
	flow.Version++
	flow.UpdatedBy = actorID
	flow.UpdatedAt = now

	if err := s.validate.Struct(step); err != nil {
		return nil, fmt.Errorf("invalid step definition: %w", err)
	}

	if err := s.persistence.Flows().Save(ctx, flow); err != nil {
		return nil, err
	}

	if err := s.appendSnapshot(ctx, step, now); err != nil {
		return nil, err
	}

	return step, nil
}

// StepUpdate carries a partial step update. Title and description are
// cosmetic; order and child flow references are structural.
type StepUpdate struct {
	Title            *string
	Description      *string
	Order            *int
	ChildFlowID      *string
	ChildFlowVersion *int
}

// UpdateStep applies a step update, versioning the step only when the update
// touches structure.
func (s *Service) UpdateStep(ctx context.Context, flowID, stepID string, update StepUpdate, actorID string) (*models.Step, error) {
	flow, step, err := s.flowStep(ctx, flowID, stepID)
	if err != nil {
		return nil, err
	}

	structural := false

	if update.Title != nil {
		step.Title = *update.Title
	}

	if update.Description != nil {
		step.Description = *update.Description
	}

	if update.Order != nil && *update.Order != step.Order {
		step.Order = *update.Order
		structural = true
	}

	if update.ChildFlowID != nil && *update.ChildFlowID != step.ChildFlowID {
		step.ChildFlowID = *update.ChildFlowID
		structural = true
	}

	if update.ChildFlowVersion != nil && *update.ChildFlowVersion != step.ChildFlowVersion {
		step.ChildFlowVersion = *update.ChildFlowVersion
		structural = true
	}

	return step, s.finishStepEdit(ctx, flow, step, structural, actorID)
}

// RemoveStep soft-deletes a step. The deactivation is itself a structural
// change: the step versions one last time with Active=false, so the arena
// records when it left service.
func (s *Service) RemoveStep(ctx context.Context, flowID, stepID string, actorID string) error {
	flow, step, err := s.flowStep(ctx, flowID, stepID)
	if err != nil {
		return err
	}

	if !step.Active {
		return nil
	}

	step.Active = false

	return s.finishStepEdit(ctx, flow, step, true, actorID)
}

// AddField appends a field to a form step. Structural.
func (s *Service) AddField(ctx context.Context, flowID, stepID string, field *models.Field, actorID string) (*models.Field, error) {
	flow, step, err := s.flowStep(ctx, flowID, stepID)
	if err != nil {
		return nil, err
	}

	if field.ID == "" {
		field.ID = uuid.New().String()
	}

	field.StepID = step.ID
	field.Order = len(step.Fields)
	field.Active = true

	if err := s.validate.Struct(field); err != nil {
		return nil, fmt.Errorf("invalid field definition: %w", err)
	}

	step.Fields = append(step.Fields, field)

	return field, s.finishStepEdit(ctx, flow, step, true, actorID)
}

// FieldUpdate carries a partial field update. Only the title is cosmetic;
// everything else changes what values the field accepts and is structural.
type FieldUpdate struct {
	Title         *string
	Type          *models.FieldType
	Requirements  *models.Requirements
	Values        map[string]string
	Multiple      *bool
	Filter        []string
	CategoryID    *string
	OriginFieldID *string
}

// UpdateField applies a field update, versioning the owning step only when
// the update touches structure.
func (s *Service) UpdateField(ctx context.Context, flowID, stepID, fieldID string, update FieldUpdate, actorID string) (*models.Field, error) {
	flow, step, err := s.flowStep(ctx, flowID, stepID)
	if err != nil {
		return nil, err
	}

	field := step.FieldByID(fieldID)
	if field == nil {
		return nil, persistence.ErrFieldNotFound
	}

	structural := false

	if update.Title != nil {
		field.Title = *update.Title
	}

	if update.Type != nil && *update.Type != field.Type {
		field.Type = *update.Type
		structural = true
	}

	if update.Requirements != nil {
		field.Requirements = *update.Requirements
		structural = true
	}

	if update.Values != nil {
		field.Values = update.Values
		structural = true
	}

	if update.Multiple != nil && *update.Multiple != field.Multiple {
		field.Multiple = *update.Multiple
		structural = true
	}

	if update.Filter != nil {
		field.Filter = update.Filter
		structural = true
	}

	if update.CategoryID != nil && *update.CategoryID != field.CategoryID {
		field.CategoryID = *update.CategoryID
		structural = true
	}

	if update.OriginFieldID != nil && *update.OriginFieldID != field.OriginFieldID {
		field.OriginFieldID = *update.OriginFieldID
		structural = true
	}

	if err := s.validate.Struct(field); err != nil {
		return nil, fmt.Errorf("invalid field definition: %w", err)
	}

	return field, s.finishStepEdit(ctx, flow, step, structural, actorID)
}

// RemoveField soft-deletes a field. Structural.
func (s *Service) RemoveField(ctx context.Context, flowID, stepID, fieldID string, actorID string) error {
	flow, step, err := s.flowStep(ctx, flowID, stepID)
	if err != nil {
		return err
	}

	field := step.FieldByID(fieldID)
	if field == nil {
		return persistence.ErrFieldNotFound
	}

	if !field.Active {
		return nil
	}

	field.Active = false

	return s.finishStepEdit(ctx, flow, step, true, actorID)
}

// AddTrigger appends a trigger to a step. Structural.
func (s *Service) AddTrigger(ctx context.Context, flowID, stepID string, trigger *models.Trigger, actorID string) (*models.Trigger, error) {
	flow, step, err := s.flowStep(ctx, flowID, stepID)
	if err != nil {
		return nil, err
	}

	if trigger.ID == "" {
		trigger.ID = uuid.New().String()
	}

	trigger.StepID = step.ID
	trigger.Order = len(step.Triggers)
	trigger.Active = true

	for _, cond := range trigger.Conditions {
		if cond.ID == "" {
			cond.ID = uuid.New().String()
		}

		cond.Active = true
	}

	if _, err := trigger.Action(); err != nil {
		return nil, err
	}

	if err := s.validate.Struct(trigger); err != nil {
		return nil, fmt.Errorf("invalid trigger definition: %w", err)
	}

	step.Triggers = append(step.Triggers, trigger)

	return trigger, s.finishStepEdit(ctx, flow, step, true, actorID)
}

// TriggerUpdate carries a partial trigger update. Title and description are
// cosmetic; conditions, action and order are structural.
type TriggerUpdate struct {
	Title        *string
	Description  *string
	Conditions   []*models.TriggerCondition
	ActionType   *string
	ActionValues []string
	Order        *int
}

// UpdateTrigger applies a trigger update, versioning the owning step only
// when the update touches structure.
func (s *Service) UpdateTrigger(ctx context.Context, flowID, stepID, triggerID string, update TriggerUpdate, actorID string) (*models.Trigger, error) {
	flow, step, err := s.flowStep(ctx, flowID, stepID)
	if err != nil {
		return nil, err
	}

	trigger := triggerByID(step, triggerID)
	if trigger == nil {
		return nil, ErrTriggerNotFound
	}

	structural := false

	if update.Title != nil {
		trigger.Title = *update.Title
	}

	if update.Description != nil {
		trigger.Description = *update.Description
	}

	if update.Conditions != nil {
		for _, cond := range update.Conditions {
			if cond.ID == "" {
				cond.ID = uuid.New().String()
			}

			cond.Active = true
		}

		trigger.Conditions = update.Conditions
		structural = true
	}

	if update.ActionType != nil && *update.ActionType != trigger.ActionType {
		trigger.ActionType = *update.ActionType
		structural = true
	}

	if update.ActionValues != nil {
		trigger.ActionValues = update.ActionValues
		structural = true
	}

	if update.Order != nil && *update.Order != trigger.Order {
		trigger.Order = *update.Order
		structural = true
	}

	if _, err := trigger.Action(); err != nil {
		return nil, err
	}

	if err := s.validate.Struct(trigger); err != nil {
		return nil, fmt.Errorf("invalid trigger definition: %w", err)
	}

	return trigger, s.finishStepEdit(ctx, flow, step, structural, actorID)
}

// RemoveTrigger soft-deletes a trigger. Structural.
func (s *Service) RemoveTrigger(ctx context.Context, flowID, stepID, triggerID string, actorID string) error {
	flow, step, err := s.flowStep(ctx, flowID, stepID)
	if err != nil {
		return err
	}

	trigger := triggerByID(step, triggerID)
	if trigger == nil {
		return ErrTriggerNotFound
	}

	if !trigger.Active {
		return nil
	}

	trigger.Active = false

	return s.finishStepEdit(ctx, flow, step, true, actorID)
}

// Snapshot returns the immutable snapshot of a step at the given version.
func (s *Service) Snapshot(ctx context.Context, stepID string, version int) (*models.StepSnapshot, error) {
	return s.persistence.Snapshots().Get(ctx, stepID, version)
}

// BindNewCase resolves a flow for case creation: the live flow plus the
// ordered step snapshots a new case executes against, subflow steps expanded
// into their child flow's steps. The returned snapshots are what the case
// pins; later definition edits do not affect them.
func (s *Service) BindNewCase(ctx context.Context, flowID string) (*models.Flow, []*models.StepSnapshot, error) {
	flow, err := s.activeFlow(ctx, flowID)
	if err != nil {
		return nil, nil, err
	}

	visited := map[string]bool{flow.ID: true}

	script, err := s.expandSteps(ctx, flow, visited)
	if err != nil {
		return nil, nil, err
	}

	if len(script) == 0 {
		return nil, nil, ErrFlowHasNoSteps
	}

	return flow, script, nil
}

// expandSteps walks a flow's active steps in order, resolving each form step
// to its current snapshot and recursing into subflow steps.
func (s *Service) expandSteps(ctx context.Context, flow *models.Flow, visited map[string]bool) ([]*models.StepSnapshot, error) {
	steps := flow.ActiveSteps()
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

	script := make([]*models.StepSnapshot, 0, len(steps))

	for _, step := range steps {
		if step.Kind == models.StepKindSubflow {
			if visited[step.ChildFlowID] {
				return nil, fmt.Errorf("%w: flow %s", ErrSubflowCycle, step.ChildFlowID)
			}

			child, err := s.activeFlow(ctx, step.ChildFlowID)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve subflow of step %s: %w", step.ID, err)
			}

			visited[child.ID] = true

			expanded, err := s.expandSteps(ctx, child, visited)
			if err != nil {
				return nil, err
			}

			script = append(script, expanded...)

			continue
		}

		snapshot, err := s.persistence.Snapshots().Get(ctx, step.ID, step.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve snapshot for step %s: %w", step.ID, err)
		}

		script = append(script, snapshot)
	}

	return script, nil
}

// finishStepEdit persists a step edit. Structural edits bump the step and
// flow versions and append a snapshot; cosmetic edits only save the flow.
func (s *Service) finishStepEdit(ctx context.Context, flow *models.Flow, step *models.Step, structural bool, actorID string) error {
	now := time.Now()
	step.UpdatedAt = now
	flow.UpdatedBy = actorID
	flow.UpdatedAt = now

	if structural {
		step.Version++
		flow.Version++
	}

	if err := s.persistence.Flows().Save(ctx, flow); err != nil {
		return err
	}

	if !structural {
		return nil
	}

	s.logger.InfoContext(ctx, "step versioned",
		"flow_id", flow.ID, "step_id", step.ID, "version", step.Version)

	return s.appendSnapshot(ctx, step, now)
}

func (s *Service) prepareStep(flow *models.Flow, step *models.Step, order int, now time.Time) {
	if step.ID == "" {
		step.ID = uuid.New().String()
	}

	step.FlowID = flow.ID
	step.Order = order
	step.Active = true
	step.Version = 1
	step.CreatedAt = now
	step.UpdatedAt = now

	if step.Kind == "" {
		step.Kind = models.StepKindForm
	}

	for i, field := range step.Fields {
		if field.ID == "" {
			field.ID = uuid.New().String()
		}

		field.StepID = step.ID
		field.Order = i
		field.Active = true
	}

	for i, trigger := range step.Triggers {
		if trigger.ID == "" {
			trigger.ID = uuid.New().String()
		}

		trigger.StepID = step.ID
		trigger.Order = i
		trigger.Active = true

		for _, cond := range trigger.Conditions {
			if cond.ID == "" {
				cond.ID = uuid.New().String()
			}

			cond.Active = true
		}
	}
}

func (s *Service) appendSnapshot(ctx context.Context, step *models.Step, now time.Time) error {
	copied, err := cloneStep(step)
	if err != nil {
		return err
	}

	snapshot := &models.StepSnapshot{
		StepID:  step.ID,
		Version: step.Version,
		Step:    copied,
		TakenAt: now,
	}

	if err := s.persistence.Snapshots().Append(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to snapshot step %s@%d: %w", step.ID, step.Version, err)
	}

	return nil
}

func (s *Service) flowStep(ctx context.Context, flowID, stepID string) (*models.Flow, *models.Step, error) {
	flow, err := s.activeFlow(ctx, flowID)
	if err != nil {
		return nil, nil, err
	}

	step := flow.StepByID(stepID)
	if step == nil {
		return nil, nil, persistence.ErrStepNotFound
	}

	return flow, step, nil
}

func (s *Service) activeFlow(ctx context.Context, flowID string) (*models.Flow, error) {
	flow, err := s.persistence.Flows().GetByID(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if flow.Status != models.FlowStatusActive {
		return nil, fmt.Errorf("%w: %s", ErrFlowInactive, flowID)
	}

	return flow, nil
}

func triggerByID(step *models.Step, triggerID string) *models.Trigger {
	for _, trigger := range step.Triggers {
		if trigger.ID == triggerID {
			return trigger
		}
	}

	return nil
}

// cloneStep deep-copies a step subtree through its JSON form so snapshots
// never alias the live definition.
func cloneStep(step *models.Step) (*models.Step, error) {
	data, err := json.Marshal(step)
	if err != nil {
		return nil, fmt.Errorf("failed to clone step %s: %w", step.ID, err)
	}

	var copied models.Step
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, fmt.Errorf("failed to clone step %s: %w", step.ID, err)
	}

	return &copied, nil
}
