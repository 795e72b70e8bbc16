package models

import "time"

// StepSnapshot is an immutable copy of a step subtree (fields and triggers
// included) taken when a structural change is recorded. Cases bind to a
// (step id, version) pair and resolve against snapshots, so later edits to
// the live definition never change the behavior of cases in progress.
type StepSnapshot struct {
	StepID  string    `json:"step_id"`
	Version int       `json:"version"`
	Step    *Step     `json:"step"`
	TakenAt time.Time `json:"taken_at"`
}
