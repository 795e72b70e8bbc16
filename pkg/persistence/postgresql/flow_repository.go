package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/urbanite/caseflow/pkg/models"
	"github.com/urbanite/caseflow/pkg/persistence"
)

// FlowRepository handles flow definition database operations. The whole
// definition subtree is stored as one JSONB document; relational columns
// exist only for filtering.
type FlowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewFlowRepository creates a new flow repository.
func NewFlowRepository(db *sql.DB, logger *slog.Logger) *FlowRepository {
	return &FlowRepository{db: db, logger: logger}
}

func (r *FlowRepository) GetAll(ctx context.Context) ([]*models.Flow, error) {
	query := `
		SELECT document
		FROM flows
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	flows := make([]*models.Flow, 0)

	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}

		var flow models.Flow
		if err := json.Unmarshal(document, &flow); err != nil {
			return nil, fmt.Errorf("failed to decode flow document: %w", err)
		}

		flows = append(flows, &flow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flows: %w", err)
	}

	return flows, nil
}

func (r *FlowRepository) GetByID(ctx context.Context, id string) (*models.Flow, error) {
	query := `
		SELECT document
		FROM flows
		WHERE id = $1
	`

	var document []byte

	err := r.db.QueryRowContext(ctx, query, id).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewFlowError("GetByID", id, persistence.ErrFlowNotFound)
		}

		return nil, persistence.NewFlowError("GetByID", id, err)
	}

	var flow models.Flow
	if err := json.Unmarshal(document, &flow); err != nil {
		return nil, persistence.NewFlowError("GetByID", id, err)
	}

	return &flow, nil
}

// Save upserts a flow definition document.
func (r *FlowRepository) Save(ctx context.Context, flow *models.Flow) error {
	now := time.Now().UTC()

	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}

	flow.UpdatedAt = now

	document, err := json.Marshal(flow)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	query := `
		INSERT INTO flows (id, title, status, initial, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			status = EXCLUDED.status,
			initial = EXCLUDED.initial,
			document = EXCLUDED.document,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		flow.ID, flow.Title, flow.Status, flow.Initial, document, flow.CreatedAt, flow.UpdatedAt)
	if err != nil {
		return persistence.NewFlowError("Save", flow.ID, err)
	}

	return nil
}

// SnapshotRepository handles the append-only step snapshot arena.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new snapshot repository.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Append inserts a snapshot. Existing (step id, version) rows are never
// overwritten.
func (r *SnapshotRepository) Append(ctx context.Context, snapshot *models.StepSnapshot) error {
	step, err := json.Marshal(snapshot.Step)
	if err != nil {
		return fmt.Errorf("failed to encode step snapshot: %w", err)
	}

	query := `
		INSERT INTO step_snapshots (step_id, version, step, taken_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (step_id, version) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, snapshot.StepID, snapshot.Version, step, snapshot.TakenAt)
	if err != nil {
		return fmt.Errorf("failed to append step snapshot: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check snapshot append: %w", err)
	}

	if affected == 0 {
		return persistence.ErrSnapshotExists
	}

	return nil
}

func (r *SnapshotRepository) Get(ctx context.Context, stepID string, version int) (*models.StepSnapshot, error) {
	query := `
		SELECT step, taken_at
		FROM step_snapshots
		WHERE step_id = $1 AND version = $2
	`

	var (
		raw     []byte
		takenAt time.Time
	)

	err := r.db.QueryRowContext(ctx, query, stepID, version).Scan(&raw, &takenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrSnapshotNotFound
		}

		return nil, fmt.Errorf("failed to query step snapshot: %w", err)
	}

	var step models.Step
	if err := json.Unmarshal(raw, &step); err != nil {
		return nil, fmt.Errorf("failed to decode step snapshot: %w", err)
	}

	return &models.StepSnapshot{StepID: stepID, Version: version, Step: &step, TakenAt: takenAt}, nil
}
