// Package cases implements the case state machine: creation, step
// submission, trigger evaluation, action execution, finish, transfer, soft
// delete and restore, with an append-only audit trail for every transition.
package cases

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/urbanite/caseflow/pkg/authz"
	"github.com/urbanite/caseflow/pkg/definitions"
	"github.com/urbanite/caseflow/pkg/eventbus"
	"github.com/urbanite/caseflow/pkg/events"
	"github.com/urbanite/caseflow/pkg/locks"
	"github.com/urbanite/caseflow/pkg/models"
	"github.com/urbanite/caseflow/pkg/persistence"
	"github.com/urbanite/caseflow/pkg/validation"
)

// Service orchestrates every case-mutating operation. Each operation runs
// under the per-case lock and commits its writes as one mutation, so a
// case's status, disabled steps and audit trail are never observed
// half-updated.
type Service struct {
	persistence persistence.Persistence
	definitions *definitions.Service
	validator   *validation.Validator
	authorizer  authz.Authorizer
	executor    *Executor
	locker      locks.Locker
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewService wires the case state machine. The publisher may be nil when the
// service runs without an event bus.
func NewService(
	p persistence.Persistence,
	defs *definitions.Service,
	validator *validation.Validator,
	authorizer authz.Authorizer,
	locker locks.Locker,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		persistence: p,
		definitions: defs,
		validator:   validator,
		authorizer:  authorizer,
		executor:    NewExecutor(defs),
		locker:      locker,
		publisher:   publisher,
		logger:      logger.With("module", "cases"),
	}
}

// CreateResult is the outcome of creating a case: the case itself plus the
// child case and notice produced when a trigger fired transfer or finish.
type CreateResult struct {
	Case   *models.Case
	Child  *models.Case
	Notice string
}

// Create starts a new case on an initial flow's step, runs the submitted
// values through validation, persists the first case step and executes any
// triggers that match.
func (s *Service) Create(ctx context.Context, flowID, stepID string, submitted []validation.SubmittedValue, actor models.Actor) (*CreateResult, error) {
	flow, script, err := s.definitions.BindNewCase(ctx, flowID)
	if err != nil {
		return nil, err
	}

	if !flow.Initial {
		return nil, ErrNotInitialFlow
	}

	snapshot := snapshotFor(script, stepID)
	if snapshot == nil {
		return nil, persistence.ErrStepNotFound
	}

	if !s.authorizer.CanExecuteStep(ctx, actor, stepID) {
		return nil, ErrPermissionDenied
	}

	fields, err := s.validator.Validate(ctx, snapshot.Step, submitted)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	kase := &models.Case{
		ID:            uuid.New().String(),
		InitialFlowID: flow.ID,
		FlowVersion:   flow.Version,
		Status:        models.CaseStatusActive,
		CreatedBy:     actor.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	caseStep := &models.CaseStep{
		ID:          uuid.New().String(),
		CaseID:      kase.ID,
		StepID:      snapshot.StepID,
		StepVersion: snapshot.Version,
		Fields:      fields,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	kase.CaseSteps = append(kase.CaseSteps, caseStep)

	mut := persistence.CaseMutation{
		Entries: []*models.LogEntry{{
			ID:          uuid.New().String(),
			Action:      models.LogCaseCreated,
			UserID:      actor.UserID,
			FlowID:      flow.ID,
			FlowVersion: flow.Version,
			StepID:      snapshot.StepID,
			CaseID:      kase.ID,
			CreatedAt:   now,
		}},
	}

	child, notice, err := s.runTriggers(ctx, snapshot.Step, caseStep, kase, flow.ID, actor, &mut, now)
	if err != nil {
		return nil, err
	}

	mut.Cases = append(mut.Cases, kase)

	if err := s.persistence.Cases().Commit(ctx, mut); err != nil {
		return nil, err
	}

	s.publish(ctx, events.CaseCreated{
		BaseEvent:  s.baseEvent(events.CaseCreatedEvent, kase, actor, now),
		CaseStepID: caseStep.ID,
		StepID:     caseStep.StepID,
	})
	s.publishOutcome(ctx, kase, child, actor, now)

	return &CreateResult{Case: kase, Child: child, Notice: notice}, nil
}

// SubmitResult is the outcome of submitting a step to an existing case.
type SubmitResult struct {
	Case   *models.Case
	Child  *models.Case
	Notice string
}

// SubmitStep appends a new case step to an existing case via the same
// validate, persist, evaluate, execute pipeline as Create. stepVersion 0
// resolves to the step's current version.
func (s *Service) SubmitStep(ctx context.Context, caseID, stepID string, stepVersion int, submitted []validation.SubmittedValue, actor models.Actor) (*SubmitResult, error) {
	release, err := s.locker.Acquire(ctx, caseID)
	if err != nil {
		return nil, err
	}
	defer release()

	kase, err := s.submittableCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if kase.StepDisabled(stepID) {
		return nil, ErrStepDisabled
	}

	if !s.authorizer.CanExecuteStep(ctx, actor, stepID) {
		return nil, ErrPermissionDenied
	}

	snapshot, err := s.resolveSnapshot(ctx, kase, stepID, stepVersion)
	if err != nil {
		return nil, err
	}

	fields, err := s.validator.Validate(ctx, snapshot.Step, submitted)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	caseStep := &models.CaseStep{
		ID:          uuid.New().String(),
		CaseID:      kase.ID,
		StepID:      snapshot.StepID,
		StepVersion: snapshot.Version,
		Fields:      fields,
		CreatedBy:   actor.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	kase.CaseSteps = append(kase.CaseSteps, caseStep)
	kase.UpdatedBy = actor.UserID
	kase.UpdatedAt = now

	mut := persistence.CaseMutation{
		Entries: []*models.LogEntry{{
			ID:        uuid.New().String(),
			Action:    models.LogStepUpdated,
			UserID:    actor.UserID,
			FlowID:    kase.InitialFlowID,
			StepID:    snapshot.StepID,
			CaseID:    kase.ID,
			CreatedAt: now,
		}},
	}

	child, notice, err := s.runTriggers(ctx, snapshot.Step, caseStep, kase, kase.InitialFlowID, actor, &mut, now)
	if err != nil {
		return nil, err
	}

	mut.Cases = append(mut.Cases, kase)

	if err := s.persistence.Cases().Commit(ctx, mut); err != nil {
		return nil, err
	}

	s.publish(ctx, events.StepSubmitted{
		BaseEvent:       s.baseEvent(events.CaseStepSubmitted, kase, actor, now),
		CaseStepID:      caseStep.ID,
		StepID:          caseStep.StepID,
		StepVersion:     caseStep.StepVersion,
		FiredTriggerIDs: caseStep.FiredTriggerIDs,
	})
	s.publishOutcome(ctx, kase, child, actor, now)

	return &SubmitResult{Case: kase, Child: child, Notice: notice}, nil
}

// ResponsibleUpdate reassigns responsibility on a case step. Nil fields keep
// their current value.
type ResponsibleUpdate struct {
	UserID  *string
	GroupID *string
}

// UpdateCaseStep reassigns the responsible user or group of a case step,
// auditing the before and after values.
func (s *Service) UpdateCaseStep(ctx context.Context, caseID, caseStepID string, update ResponsibleUpdate, actor models.Actor) (*models.Case, error) {
	release, err := s.locker.Acquire(ctx, caseID)
	if err != nil {
		return nil, err
	}
	defer release()

	kase, err := s.persistence.Cases().GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if !s.authorizer.CanUpdateCase(ctx, actor, kase) {
		return nil, ErrPermissionDenied
	}

	caseStep := kase.CaseStepByID(caseStepID)
	if caseStep == nil {
		return nil, persistence.ErrCaseStepNotFound
	}

	now := time.Now()
	entry := &models.LogEntry{
		ID:            uuid.New().String(),
		Action:        models.LogCaseStepUpdate,
		UserID:        actor.UserID,
		FlowID:        kase.InitialFlowID,
		StepID:        caseStep.StepID,
		CaseID:        kase.ID,
		BeforeUserID:  caseStep.ResponsibleUserID,
		BeforeGroupID: caseStep.ResponsibleGroupID,
		CreatedAt:     now,
	}

	if update.UserID != nil {
		caseStep.ResponsibleUserID = *update.UserID
	}

	if update.GroupID != nil {
		caseStep.ResponsibleGroupID = *update.GroupID
	}

	entry.AfterUserID = caseStep.ResponsibleUserID
	entry.AfterGroupID = caseStep.ResponsibleGroupID

	caseStep.UpdatedBy = actor.UserID
	caseStep.UpdatedAt = now
	kase.UpdatedBy = actor.UserID
	kase.UpdatedAt = now

	mut := persistence.CaseMutation{Cases: []*models.Case{kase}, Entries: []*models.LogEntry{entry}}
	if err := s.persistence.Cases().Commit(ctx, mut); err != nil {
		return nil, err
	}

	s.publish(ctx, events.StepUpdated{
		BaseEvent:  s.baseEvent(events.CaseStepUpdated, kase, actor, now),
		CaseStepID: caseStep.ID,
		StepID:     caseStep.StepID,
	})

	return kase, nil
}

// Finish transitions a case to finished with the given resolution state.
// Finishing an already finished case succeeds without changing state and
// returns a notice.
func (s *Service) Finish(ctx context.Context, caseID, resolutionStateID string, actor models.Actor) (*models.Case, string, error) {
	release, err := s.locker.Acquire(ctx, caseID)
	if err != nil {
		return nil, "", err
	}
	defer release()

	kase, err := s.persistence.Cases().GetByID(ctx, caseID)
	if err != nil {
		return nil, "", err
	}

	if !s.authorizer.CanUpdateCase(ctx, actor, kase) {
		return nil, "", ErrPermissionDenied
	}

	if kase.Terminal() {
		return kase, NoticeAlreadyFinished, nil
	}

	now := time.Now()
	kase.Status = models.CaseStatusFinished
	kase.ResolutionStateID = resolutionStateID
	kase.UpdatedBy = actor.UserID
	kase.UpdatedAt = now

	mut := persistence.CaseMutation{
		Cases: []*models.Case{kase},
		Entries: []*models.LogEntry{{
			ID:        uuid.New().String(),
			Action:    models.LogFinishedCase,
			UserID:    actor.UserID,
			FlowID:    kase.InitialFlowID,
			CaseID:    kase.ID,
			CreatedAt: now,
		}},
	}

	if err := s.persistence.Cases().Commit(ctx, mut); err != nil {
		return nil, "", err
	}

	s.publish(ctx, events.CaseFinished{
		BaseEvent:         s.baseEvent(events.CaseFinishedEvent, kase, actor, now),
		ResolutionStateID: resolutionStateID,
	})

	return kase, "", nil
}

// Transfer moves a case into another flow, spawning the child case that
// becomes the operation's primary result.
func (s *Service) Transfer(ctx context.Context, caseID, targetFlowID string, actor models.Actor) (*models.Case, error) {
	release, err := s.locker.Acquire(ctx, caseID)
	if err != nil {
		return nil, err
	}
	defer release()

	kase, err := s.persistence.Cases().GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if !s.authorizer.CanUpdateCase(ctx, actor, kase) {
		return nil, ErrPermissionDenied
	}

	if kase.Terminal() {
		return nil, ErrCaseFinished
	}

	now := time.Now()
	mut := persistence.CaseMutation{}

	child, _, err := s.executor.Apply(ctx, models.TransferFlow{TargetFlowID: targetFlowID}, kase,
		origin{FlowID: kase.InitialFlowID}, actor, &mut, now)
	if err != nil {
		return nil, err
	}

	mut.Cases = append(mut.Cases, kase)

	if err := s.persistence.Cases().Commit(ctx, mut); err != nil {
		return nil, err
	}

	s.publish(ctx, events.CaseTransferred{
		BaseEvent:    s.baseEvent(events.CaseTransferredEvent, kase, actor, now),
		NewCaseID:    child.ID,
		TargetFlowID: targetFlowID,
	})

	return child, nil
}

// SoftDelete deactivates a case. The case disappears from submission paths
// but stays restorable.
func (s *Service) SoftDelete(ctx context.Context, caseID string, actor models.Actor) (*models.Case, error) {
	release, err := s.locker.Acquire(ctx, caseID)
	if err != nil {
		return nil, err
	}
	defer release()

	kase, err := s.persistence.Cases().GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if !s.authorizer.CanDeleteCase(ctx, actor, kase) {
		return nil, ErrPermissionDenied
	}

	if kase.Terminal() {
		return nil, ErrCaseFinished
	}

	if kase.Status == models.CaseStatusInactive {
		return nil, persistence.NewCaseError("SoftDelete", caseID, persistence.ErrCaseNotFound)
	}

	now := time.Now()
	kase.Status = models.CaseStatusInactive
	kase.UpdatedBy = actor.UserID
	kase.UpdatedAt = now

	mut := persistence.CaseMutation{
		Cases: []*models.Case{kase},
		Entries: []*models.LogEntry{{
			ID:        uuid.New().String(),
			Action:    models.LogDeleteCase,
			UserID:    actor.UserID,
			FlowID:    kase.InitialFlowID,
			CaseID:    kase.ID,
			CreatedAt: now,
		}},
	}

	if err := s.persistence.Cases().Commit(ctx, mut); err != nil {
		return nil, err
	}

	s.publish(ctx, events.CaseDeleted{BaseEvent: s.baseEvent(events.CaseDeletedEvent, kase, actor, now)})

	return kase, nil
}

// Restore brings an inactive case back to active. Restoring a case in any
// other status fails.
func (s *Service) Restore(ctx context.Context, caseID string, actor models.Actor) (*models.Case, error) {
	release, err := s.locker.Acquire(ctx, caseID)
	if err != nil {
		return nil, err
	}
	defer release()

	kase, err := s.persistence.Cases().GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if !s.authorizer.CanRestoreCase(ctx, actor, kase) {
		return nil, ErrPermissionDenied
	}

	if kase.Status != models.CaseStatusInactive {
		return nil, ErrCaseNotRestorable
	}

	now := time.Now()
	kase.Status = models.CaseStatusActive
	kase.UpdatedBy = actor.UserID
	kase.UpdatedAt = now

	mut := persistence.CaseMutation{
		Cases: []*models.Case{kase},
		Entries: []*models.LogEntry{{
			ID:        uuid.New().String(),
			Action:    models.LogRestoredCase,
			UserID:    actor.UserID,
			FlowID:    kase.InitialFlowID,
			CaseID:    kase.ID,
			CreatedAt: now,
		}},
	}

	if err := s.persistence.Cases().Commit(ctx, mut); err != nil {
		return nil, err
	}

	s.publish(ctx, events.CaseRestored{BaseEvent: s.baseEvent(events.CaseRestoredEvent, kase, actor, now)})

	return kase, nil
}

// List returns the cases matching the filters that the actor may see,
// paginated after the visibility filter so pages stay dense.
func (s *Service) List(ctx context.Context, opts persistence.ListCasesOptions, actor models.Actor) ([]*models.Case, error) {
	page, perPage := opts.Page, opts.PerPage
	opts.Page, opts.PerPage = 0, 0

	matched, err := s.persistence.Cases().List(ctx, opts)
	if err != nil {
		return nil, err
	}

	visible := make([]*models.Case, 0, len(matched))

	for _, kase := range matched {
		if s.authorizer.CanViewCase(ctx, actor, kase) {
			visible = append(visible, kase)
		}
	}

	return paginate(visible, page, perPage), nil
}

// Get returns a case with its audit trail. Visibility follows the same rule
// as List.
func (s *Service) Get(ctx context.Context, caseID string, actor models.Actor) (*models.Case, []*models.LogEntry, error) {
	kase, err := s.persistence.Cases().GetByID(ctx, caseID)
	if err != nil {
		return nil, nil, err
	}

	if !s.authorizer.CanViewCase(ctx, actor, kase) {
		return nil, nil, ErrPermissionDenied
	}

	entries, err := s.persistence.Logs().ListByCase(ctx, caseID)
	if err != nil {
		return nil, nil, err
	}

	return kase, entries, nil
}

// runTriggers evaluates the step's triggers against the persisted values and
// applies every match in definition order, recording fired trigger ids on
// the case step.
func (s *Service) runTriggers(ctx context.Context, step *models.Step, caseStep *models.CaseStep, kase *models.Case, flowID string, actor models.Actor, mut *persistence.CaseMutation, now time.Time) (*models.Case, string, error) {
	var (
		child  *models.Case
		notice string
	)

	for _, trigger := range EvaluateTriggers(step, caseStep.Fields) {
		action, err := trigger.Action()
		if err != nil {
			return nil, "", err
		}

		caseStep.FiredTriggerIDs = append(caseStep.FiredTriggerIDs, trigger.ID)

		spawned, actionNotice, err := s.executor.Apply(ctx, action, kase,
			origin{FlowID: flowID, StepID: step.ID}, actor, mut, now)
		if err != nil {
			return nil, "", err
		}

		if spawned != nil {
			child = spawned
		}

		if actionNotice != "" {
			notice = actionNotice
		}
	}

	return child, notice, nil
}

// submittableCase loads a case for submission. Inactive cases are reported
// as not found; terminal ones reject submissions.
func (s *Service) submittableCase(ctx context.Context, caseID string) (*models.Case, error) {
	kase, err := s.persistence.Cases().GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if kase.Status == models.CaseStatusInactive {
		return nil, persistence.NewCaseError("SubmitStep", caseID, persistence.ErrCaseNotFound)
	}

	if kase.Terminal() {
		return nil, ErrCaseFinished
	}

	return kase, nil
}

// resolveSnapshot returns the snapshot a submission executes against.
// Version 0 resolves to the live step's current version.
func (s *Service) resolveSnapshot(ctx context.Context, kase *models.Case, stepID string, version int) (*models.StepSnapshot, error) {
	if version > 0 {
		return s.persistence.Snapshots().Get(ctx, stepID, version)
	}

	_, script, err := s.definitions.BindNewCase(ctx, kase.InitialFlowID)
	if err != nil {
		return nil, err
	}

	snapshot := snapshotFor(script, stepID)
	if snapshot == nil {
		return nil, persistence.ErrStepNotFound
	}

	return snapshot, nil
}

func (s *Service) baseEvent(eventType events.EventType, kase *models.Case, actor models.Actor, now time.Time) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: now,
		CaseID:    kase.ID,
		FlowID:    kase.InitialFlowID,
		ActorID:   actor.UserID,
	}
}

// publishOutcome emits the terminal event a trigger produced during a
// submission, if any.
func (s *Service) publishOutcome(ctx context.Context, kase *models.Case, child *models.Case, actor models.Actor, now time.Time) {
	switch {
	case child != nil:
		s.publish(ctx, events.CaseTransferred{
			BaseEvent:    s.baseEvent(events.CaseTransferredEvent, kase, actor, now),
			NewCaseID:    child.ID,
			TargetFlowID: child.InitialFlowID,
		})
	case kase.Status == models.CaseStatusFinished:
		s.publish(ctx, events.CaseFinished{
			BaseEvent:         s.baseEvent(events.CaseFinishedEvent, kase, actor, now),
			ResolutionStateID: kase.ResolutionStateID,
		})
	}
}

// publish emits a lifecycle event. Publish failures are logged, never
// surfaced: the mutation is already committed.
func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func snapshotFor(script []*models.StepSnapshot, stepID string) *models.StepSnapshot {
	for _, snapshot := range script {
		if snapshot.StepID == stepID {
			return snapshot
		}
	}

	return nil
}

func paginate(cases []*models.Case, page, perPage int) []*models.Case {
	if perPage <= 0 {
		return cases
	}

	if page < 1 {
		page = 1
	}

	start := (page - 1) * perPage
	if start >= len(cases) {
		return []*models.Case{}
	}

	end := min(start+perPage, len(cases))

	return cases[start:end]
}

// IsNotFound reports whether err is any of the not-found sentinels, letting
// callers map storage misses to one error kind.
func IsNotFound(err error) bool {
	return errors.Is(err, persistence.ErrCaseNotFound) ||
		errors.Is(err, persistence.ErrFlowNotFound) ||
		errors.Is(err, persistence.ErrStepNotFound) ||
		errors.Is(err, persistence.ErrCaseStepNotFound) ||
		errors.Is(err, persistence.ErrSnapshotNotFound)
}
