// Package authz defines the authorization decisions the engine consumes.
// Policy evaluation itself is an external collaborator; the engine only
// asks yes/no questions and fails closed.
package authz

import (
	"context"

	"github.com/urbanite/caseflow/pkg/models"
)

// Authorizer answers capability questions about an actor. Every decision is
// a pure function of the actor and the resource.
type Authorizer interface {
	CanExecuteStep(ctx context.Context, actor models.Actor, stepID string) bool
	CanViewStep(ctx context.Context, actor models.Actor, stepID string) bool
	CanUpdateCase(ctx context.Context, actor models.Actor, kase *models.Case) bool
	CanDeleteCase(ctx context.Context, actor models.Actor, kase *models.Case) bool
	CanRestoreCase(ctx context.Context, actor models.Actor, kase *models.Case) bool
	CanViewCase(ctx context.Context, actor models.Actor, kase *models.Case) bool
}

// GroupPermissions is a capability table keyed by group id, the shape the
// surrounding platform stores on user groups.
type GroupPermissions struct {
	// ExecutableSteps lists step ids each group may execute (and view).
	ExecutableSteps map[string][]string

	// ManageCases marks groups that may update, delete and restore cases.
	ManageCases map[string]bool
}

// GroupAuthorizer decides capabilities from group permission tables.
type GroupAuthorizer struct {
	perms GroupPermissions
}

// NewGroupAuthorizer creates an authorizer over a group permission table.
func NewGroupAuthorizer(perms GroupPermissions) *GroupAuthorizer {
	return &GroupAuthorizer{perms: perms}
}

func (a *GroupAuthorizer) CanExecuteStep(_ context.Context, actor models.Actor, stepID string) bool {
	for _, groupID := range actor.GroupIDs {
		for _, allowed := range a.perms.ExecutableSteps[groupID] {
			if allowed == stepID {
				return true
			}
		}
	}

	return false
}

func (a *GroupAuthorizer) CanViewStep(ctx context.Context, actor models.Actor, stepID string) bool {
	return a.CanExecuteStep(ctx, actor, stepID)
}

func (a *GroupAuthorizer) CanUpdateCase(_ context.Context, actor models.Actor, _ *models.Case) bool {
	return a.managesCases(actor)
}

func (a *GroupAuthorizer) CanDeleteCase(_ context.Context, actor models.Actor, _ *models.Case) bool {
	return a.managesCases(actor)
}

func (a *GroupAuthorizer) CanRestoreCase(_ context.Context, actor models.Actor, _ *models.Case) bool {
	return a.managesCases(actor)
}

// CanViewCase allows viewing when the actor manages cases, created the
// case, or is responsible for any of its steps directly or via a group.
func (a *GroupAuthorizer) CanViewCase(_ context.Context, actor models.Actor, kase *models.Case) bool {
	if a.managesCases(actor) || kase.CreatedBy == actor.UserID {
		return true
	}

	for _, cs := range kase.CaseSteps {
		if cs.ResponsibleUserID == actor.UserID {
			return true
		}

		if cs.ResponsibleGroupID != "" && actor.InGroup(cs.ResponsibleGroupID) {
			return true
		}
	}

	return false
}

func (a *GroupAuthorizer) managesCases(actor models.Actor) bool {
	for _, groupID := range actor.GroupIDs {
		if a.perms.ManageCases[groupID] {
			return true
		}
	}

	return false
}

// AllowAll grants every capability. Intended for tests and trusted internal
// callers that enforce policy upstream.
type AllowAll struct{}

func (AllowAll) CanExecuteStep(context.Context, models.Actor, string) bool       { return true }
func (AllowAll) CanViewStep(context.Context, models.Actor, string) bool          { return true }
func (AllowAll) CanUpdateCase(context.Context, models.Actor, *models.Case) bool  { return true }
func (AllowAll) CanDeleteCase(context.Context, models.Actor, *models.Case) bool  { return true }
func (AllowAll) CanRestoreCase(context.Context, models.Actor, *models.Case) bool { return true }
func (AllowAll) CanViewCase(context.Context, models.Actor, *models.Case) bool    { return true }
