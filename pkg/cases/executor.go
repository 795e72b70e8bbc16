package cases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/urbanite/caseflow/pkg/definitions"
	"github.com/urbanite/caseflow/pkg/models"
	"github.com/urbanite/caseflow/pkg/persistence"
)

// Executor applies case actions, either fired by triggers or requested
// directly by a user. Every application mutates the case in memory and
// appends its audit entries to the pending mutation; nothing is persisted
// here, so a failing action aborts the whole operation before commit.
type Executor struct {
	definitions *definitions.Service
}

// NewExecutor creates an action executor resolving transfer targets through
// the definition service.
func NewExecutor(defs *definitions.Service) *Executor {
	return &Executor{definitions: defs}
}

// origin names the flow and step a fired action came from, recorded on its
// audit entries.
type origin struct {
	FlowID string
	StepID string
}

// Apply runs one action against the case. Transfer returns the spawned
// child case; finish on an already terminal case returns a notice instead
// of changing state.
func (e *Executor) Apply(ctx context.Context, action models.CaseAction, kase *models.Case, from origin, actor models.Actor, mut *persistence.CaseMutation, now time.Time) (*models.Case, string, error) {
	switch act := action.(type) {
	case models.DisableSteps:
		e.applyDisableSteps(act, kase, from, actor, mut, now)

		return nil, "", nil
	case models.FinishFlow:
		notice := e.applyFinishFlow(act, kase, from, actor, mut, now)

		return nil, notice, nil
	case models.TransferFlow:
		return e.applyTransferFlow(ctx, act, kase, from, actor, mut, now)
	default:
		return nil, "", fmt.Errorf("%w: %q", models.ErrUnknownActionType, action.ActionType())
	}
}

func (e *Executor) applyDisableSteps(act models.DisableSteps, kase *models.Case, from origin, actor models.Actor, mut *persistence.CaseMutation, now time.Time) {
	for _, stepID := range act.StepIDs {
		kase.DisableStep(stepID)
	}

	mut.Entries = append(mut.Entries, &models.LogEntry{
		ID:        uuid.New().String(),
		Action:    models.LogDisableSteps,
		UserID:    actor.UserID,
		FlowID:    from.FlowID,
		StepID:    from.StepID,
		CaseID:    kase.ID,
		CreatedAt: now,
	})
}

// applyFinishFlow finishes the case. Firing twice is idempotent: the second
// application keeps the first resolution and reports a notice.
func (e *Executor) applyFinishFlow(act models.FinishFlow, kase *models.Case, from origin, actor models.Actor, mut *persistence.CaseMutation, now time.Time) string {
	if kase.Terminal() {
		return NoticeAlreadyFinished
	}

	kase.Status = models.CaseStatusFinished
	kase.ResolutionStateID = act.ResolutionStateID
	kase.UpdatedBy = actor.UserID
	kase.UpdatedAt = now

	mut.Entries = append(mut.Entries, &models.LogEntry{
		ID:        uuid.New().String(),
		Action:    models.LogFinishFlow,
		UserID:    actor.UserID,
		FlowID:    from.FlowID,
		StepID:    from.StepID,
		CaseID:    kase.ID,
		CreatedAt: now,
	})

	return ""
}

// applyTransferFlow spawns exactly one child case on the target flow's entry
// point and marks the source case transferred. A source case that is already
// terminal is left untouched.
func (e *Executor) applyTransferFlow(ctx context.Context, act models.TransferFlow, kase *models.Case, from origin, actor models.Actor, mut *persistence.CaseMutation, now time.Time) (*models.Case, string, error) {
	if kase.Terminal() {
		return nil, NoticeAlreadyFinished, nil
	}

	target, _, err := e.definitions.BindNewCase(ctx, act.TargetFlowID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to bind transfer target flow %s: %w", act.TargetFlowID, err)
	}

	child := &models.Case{
		ID:             uuid.New().String(),
		InitialFlowID:  target.ID,
		FlowVersion:    target.Version,
		Status:         models.CaseStatusActive,
		OriginalCaseID: kase.ID,
		CreatedBy:      actor.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	kase.Status = models.CaseStatusTransfer
	kase.UpdatedBy = actor.UserID
	kase.UpdatedAt = now

	mut.Cases = append(mut.Cases, child)
	mut.Entries = append(mut.Entries,
		&models.LogEntry{
			ID:          uuid.New().String(),
			Action:      models.LogTransferFlow,
			UserID:      actor.UserID,
			FlowID:      from.FlowID,
			StepID:      from.StepID,
			CaseID:      kase.ID,
			NewFlowID:   target.ID,
			ChildCaseID: child.ID,
			CreatedAt:   now,
		},
		&models.LogEntry{
			ID:        uuid.New().String(),
			Action:    models.LogCaseCreated,
			UserID:    actor.UserID,
			FlowID:    target.ID,
			CaseID:    child.ID,
			CreatedAt: now,
		},
	)

	return child, "", nil
}
