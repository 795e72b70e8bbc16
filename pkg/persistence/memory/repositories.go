package memory

import (
	"context"
	"slices"

	"github.com/urbanite/caseflow/pkg/models"
	"github.com/urbanite/caseflow/pkg/persistence"
)

// FlowRepository stores flow definitions in memory.
type FlowRepository struct {
	p *Persistence
}

func (r *FlowRepository) GetAll(_ context.Context) ([]*models.Flow, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	flows := make([]*models.Flow, 0, len(r.p.flows))
	for _, flow := range r.p.flows {
		flows = append(flows, clone(flow))
	}

	slices.SortFunc(flows, func(a, b *models.Flow) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return flows, nil
}

func (r *FlowRepository) GetByID(_ context.Context, id string) (*models.Flow, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	flow, ok := r.p.flows[id]
	if !ok {
		return nil, persistence.NewFlowError("GetByID", id, persistence.ErrFlowNotFound)
	}

	return clone(flow), nil
}

func (r *FlowRepository) Save(_ context.Context, flow *models.Flow) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	r.p.flows[flow.ID] = clone(flow)

	return nil
}

// SnapshotRepository stores immutable step snapshots in memory.
type SnapshotRepository struct {
	p *Persistence
}

func (r *SnapshotRepository) Append(_ context.Context, snapshot *models.StepSnapshot) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	key := snapshotKey(snapshot.StepID, snapshot.Version)
	if _, ok := r.p.snapshots[key]; ok {
		return persistence.ErrSnapshotExists
	}

	r.p.snapshots[key] = clone(snapshot)

	return nil
}

func (r *SnapshotRepository) Get(_ context.Context, stepID string, version int) (*models.StepSnapshot, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	snapshot, ok := r.p.snapshots[snapshotKey(stepID, version)]
	if !ok {
		return nil, persistence.ErrSnapshotNotFound
	}

	return clone(snapshot), nil
}

// CaseRepository stores cases in memory.
type CaseRepository struct {
	p *Persistence
}

func (r *CaseRepository) GetByID(_ context.Context, id string) (*models.Case, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	kase, ok := r.p.cases[id]
	if !ok {
		return nil, persistence.NewCaseError("GetByID", id, persistence.ErrCaseNotFound)
	}

	return clone(kase), nil
}

func (r *CaseRepository) List(_ context.Context, opts persistence.ListCasesOptions) ([]*models.Case, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	matched := make([]*models.Case, 0, len(r.p.caseOrder))

	for _, id := range r.p.caseOrder {
		kase := r.p.cases[id]
		if caseMatches(kase, opts) {
			matched = append(matched, clone(kase))
		}
	}

	return paginate(matched, opts.Page, opts.PerPage), nil
}

// Commit applies every write of one case mutation under the store lock, so
// a concurrent reader sees either all of it or none of it.
func (r *CaseRepository) Commit(_ context.Context, mutation persistence.CaseMutation) error {
	r.p.mu.Lock()
	defer r.p.mu.Unlock()

	for _, kase := range mutation.Cases {
		if _, ok := r.p.cases[kase.ID]; !ok {
			r.p.caseOrder = append(r.p.caseOrder, kase.ID)
		}

		r.p.cases[kase.ID] = clone(kase)
	}

	for _, entry := range mutation.Entries {
		r.p.logs[entry.CaseID] = append(r.p.logs[entry.CaseID], clone(entry))
	}

	return nil
}

// LogRepository reads audit entries from memory.
type LogRepository struct {
	p *Persistence
}

func (r *LogRepository) ListByCase(_ context.Context, caseID string) ([]*models.LogEntry, error) {
	r.p.mu.RLock()
	defer r.p.mu.RUnlock()

	entries := make([]*models.LogEntry, 0, len(r.p.logs[caseID]))
	for _, entry := range r.p.logs[caseID] {
		entries = append(entries, clone(entry))
	}

	return entries, nil
}

func caseMatches(kase *models.Case, opts persistence.ListCasesOptions) bool {
	if opts.InitialFlowID != "" && kase.InitialFlowID != opts.InitialFlowID {
		return false
	}

	if opts.StepID != "" && kase.StepExecution(opts.StepID) == nil {
		return false
	}

	if opts.ResponsibleUserID != "" && !caseStepMatch(kase, func(cs *models.CaseStep) bool {
		return cs.ResponsibleUserID == opts.ResponsibleUserID
	}) {
		return false
	}

	if opts.ResponsibleGroupID != "" && !caseStepMatch(kase, func(cs *models.CaseStep) bool {
		return cs.ResponsibleGroupID == opts.ResponsibleGroupID
	}) {
		return false
	}

	if opts.CreatedByID != "" && kase.CreatedBy != opts.CreatedByID {
		return false
	}

	if opts.UpdatedByID != "" && kase.UpdatedBy != opts.UpdatedByID {
		return false
	}

	if len(opts.Statuses) > 0 && !slices.Contains(opts.Statuses, kase.Status) {
		return false
	}

	return true
}

func caseStepMatch(kase *models.Case, match func(*models.CaseStep) bool) bool {
	return slices.ContainsFunc(kase.CaseSteps, match)
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
