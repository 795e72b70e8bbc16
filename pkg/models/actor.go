package models

import "slices"

// Actor identifies who is performing an operation. Authorization decisions
// are pure functions of (Actor, resource) supplied by the caller's
// authorizer; the engine never consults ambient state.
type Actor struct {
	UserID   string   `json:"user_id" validate:"required"`
	GroupIDs []string `json:"group_ids,omitempty"`
}

// InGroup reports whether the actor belongs to groupID.
func (a Actor) InGroup(groupID string) bool {
	return slices.Contains(a.GroupIDs, groupID)
}
