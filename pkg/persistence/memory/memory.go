// Package memory provides an in-memory persistence implementation used by
// tests and local development. All repositories share one lock, which makes
// every CaseRepository.Commit atomic with respect to concurrent readers.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/urbanite/caseflow/pkg/models"
	"github.com/urbanite/caseflow/pkg/persistence"
)

// Persistence implements persistence.Persistence backed by process memory.
type Persistence struct {
	mu        sync.RWMutex
	flows     map[string]*models.Flow
	snapshots map[string]*models.StepSnapshot // keyed by stepID@version
	cases     map[string]*models.Case
	caseOrder []string
	logs      map[string][]*models.LogEntry // keyed by case id

	flowRepo     *FlowRepository
	snapshotRepo *SnapshotRepository
	caseRepo     *CaseRepository
	logRepo      *LogRepository
}

// NewPersistence creates an empty in-memory persistence layer.
func NewPersistence() *Persistence {
	p := &Persistence{
		flows:     make(map[string]*models.Flow),
		snapshots: make(map[string]*models.StepSnapshot),
		cases:     make(map[string]*models.Case),
		logs:      make(map[string][]*models.LogEntry),
	}

	p.flowRepo = &FlowRepository{p: p}
	p.snapshotRepo = &SnapshotRepository{p: p}
	p.caseRepo = &CaseRepository{p: p}
	p.logRepo = &LogRepository{p: p}

	return p
}

func (p *Persistence) Flows() persistence.FlowRepository         { return p.flowRepo }
func (p *Persistence) Snapshots() persistence.SnapshotRepository { return p.snapshotRepo }
func (p *Persistence) Cases() persistence.CaseRepository         { return p.caseRepo }
func (p *Persistence) Logs() persistence.LogRepository           { return p.logRepo }

// HealthCheck always succeeds for the in-memory backend.
func (p *Persistence) HealthCheck(_ context.Context) error { return nil }

// Close discards nothing; memory is released with the process.
func (p *Persistence) Close(_ context.Context) error { return nil }

func snapshotKey(stepID string, version int) string {
	return fmt.Sprintf("%s@%d", stepID, version)
}

// clone deep-copies a value through JSON so callers never alias stored
// state. The domain models are all JSON round-trippable.
func clone[T any](v T) T {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("memory persistence: marshal: %v", err))
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(fmt.Sprintf("memory persistence: unmarshal: %v", err))
	}

	return out
}
