// Package persistence provides the data storage abstraction layer for flow
// definitions, step snapshots, cases and the audit log.
package persistence

import (
	"context"

	"github.com/urbanite/caseflow/pkg/models"
)

// Persistence aggregates the repositories of one storage backend.
type Persistence interface {
	Flows() FlowRepository
	Snapshots() SnapshotRepository
	Cases() CaseRepository
	Logs() LogRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// FlowRepository stores live (mutable) flow definitions. Deletion is soft:
// definitions are deactivated via Save, never removed.
type FlowRepository interface {
	GetAll(ctx context.Context) ([]*models.Flow, error)
	GetByID(ctx context.Context, id string) (*models.Flow, error)
	Save(ctx context.Context, flow *models.Flow) error
}

// SnapshotRepository is the append-only arena of immutable step snapshots.
// A snapshot, once appended, is never modified or deleted.
type SnapshotRepository interface {
	Append(ctx context.Context, snapshot *models.StepSnapshot) error
	Get(ctx context.Context, stepID string, version int) (*models.StepSnapshot, error)
}

// ListCasesOptions filters and paginates case listing. Zero-valued filters
// are ignored.
type ListCasesOptions struct {
	InitialFlowID      string
	StepID             string
	ResponsibleUserID  string
	ResponsibleGroupID string
	CreatedByID        string
	UpdatedByID        string
	Statuses           []models.CaseStatus
	Page               int
	PerPage            int
}

// CaseMutation groups every write of one case-mutating operation. Backends
// commit the whole mutation atomically so no reader observes a case with
// its audit entries half-written.
type CaseMutation struct {
	Cases   []*models.Case
	Entries []*models.LogEntry
}

// CaseRepository stores case instances and commits case mutations.
type CaseRepository interface {
	GetByID(ctx context.Context, id string) (*models.Case, error)
	List(ctx context.Context, opts ListCasesOptions) ([]*models.Case, error)
	Commit(ctx context.Context, mutation CaseMutation) error
}

// LogRepository reads the append-only audit log. Writes happen only through
// CaseRepository.Commit.
type LogRepository interface {
	ListByCase(ctx context.Context, caseID string) ([]*models.LogEntry, error)
}
