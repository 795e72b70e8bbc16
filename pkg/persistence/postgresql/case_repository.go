package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/urbanite/caseflow/pkg/models"
	"github.com/urbanite/caseflow/pkg/persistence"
)

// CaseRepository handles case database operations. Case steps and the
// disabled step set travel with the case row as JSONB, so one row update
// moves the whole aggregate.
type CaseRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewCaseRepository creates a new case repository.
func NewCaseRepository(db *sql.DB, logger *slog.Logger) *CaseRepository {
	return &CaseRepository{db: db, logger: logger}
}

const caseColumns = `
	id
  , initial_flow_id
  , flow_version
  , status
  , responsible_user_id
  , responsible_group_id
  , disabled_steps
  , resolution_state_id
  , original_case_id
  , case_steps
  , created_by
  , updated_by
  , created_at
  , updated_at
`

func (r *CaseRepository) GetByID(ctx context.Context, id string) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`

	kase, err := scanCase(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewCaseError("GetByID", id, persistence.ErrCaseNotFound)
		}

		return nil, persistence.NewCaseError("GetByID", id, err)
	}

	return kase, nil
}

func (r *CaseRepository) List(ctx context.Context, opts persistence.ListCasesOptions) ([]*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases`
	where, args := listFilters(opts)
	query += where + ` ORDER BY created_at ASC`

	if opts.PerPage > 0 {
		page := max(opts.Page, 1)
		query += ` LIMIT ` + strconv.Itoa(opts.PerPage) +
			` OFFSET ` + strconv.Itoa((page-1)*opts.PerPage)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	cases := make([]*models.Case, 0)

	for rows.Next() {
		kase, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}

		cases = append(cases, kase)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cases: %w", err)
	}

	return cases, nil
}

// Commit writes every case and audit entry of one mutation in a single
// transaction.
func (r *CaseRepository) Commit(ctx context.Context, mutation persistence.CaseMutation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin case transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	for _, kase := range mutation.Cases {
		if err := upsertCase(ctx, tx, kase); err != nil {
			return err
		}
	}

	for _, entry := range mutation.Entries {
		if err := insertLogEntry(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit case mutation: %w", err)
	}

	return nil
}

func upsertCase(ctx context.Context, tx *sql.Tx, kase *models.Case) error {
	now := time.Now().UTC()

	if kase.CreatedAt.IsZero() {
		kase.CreatedAt = now
	}

	kase.UpdatedAt = now

	disabled, err := json.Marshal(kase.DisabledStepIDs)
	if err != nil {
		return persistence.NewCaseError("Commit", kase.ID, err)
	}

	steps, err := json.Marshal(kase.CaseSteps)
	if err != nil {
		return persistence.NewCaseError("Commit", kase.ID, err)
	}

	query := `
		INSERT INTO cases (` + caseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			responsible_user_id = EXCLUDED.responsible_user_id,
			responsible_group_id = EXCLUDED.responsible_group_id,
			disabled_steps = EXCLUDED.disabled_steps,
			resolution_state_id = EXCLUDED.resolution_state_id,
			case_steps = EXCLUDED.case_steps,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, query,
		kase.ID, kase.InitialFlowID, kase.FlowVersion, kase.Status,
		nullable(kase.ResponsibleUserID), nullable(kase.ResponsibleGroupID),
		disabled, nullable(kase.ResolutionStateID), nullable(kase.OriginalCaseID),
		steps, kase.CreatedBy, nullable(kase.UpdatedBy), kase.CreatedAt, kase.UpdatedAt)
	if err != nil {
		return persistence.NewCaseError("Commit", kase.ID, err)
	}

	return nil
}

func insertLogEntry(ctx context.Context, tx *sql.Tx, entry *models.LogEntry) error {
	query := `
		INSERT INTO case_log_entries (
			id, case_id, action, user_id, flow_id, flow_version, step_id,
			before_user_id, after_user_id, before_group_id, after_group_id,
			new_flow_id, child_case_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := tx.ExecContext(ctx, query,
		entry.ID, entry.CaseID, entry.Action, nullable(entry.UserID),
		nullable(entry.FlowID), entry.FlowVersion, nullable(entry.StepID),
		nullable(entry.BeforeUserID), nullable(entry.AfterUserID),
		nullable(entry.BeforeGroupID), nullable(entry.AfterGroupID),
		nullable(entry.NewFlowID), nullable(entry.ChildCaseID), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert log entry for case %s: %w", entry.CaseID, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*models.Case, error) {
	var (
		kase              models.Case
		respUser          sql.NullString
		respGroup         sql.NullString
		resolutionState   sql.NullString
		originalCase      sql.NullString
		updatedBy         sql.NullString
		disabledStepsJSON []byte
		caseStepsJSON     []byte
	)

	err := row.Scan(
		&kase.ID, &kase.InitialFlowID, &kase.FlowVersion, &kase.Status,
		&respUser, &respGroup, &disabledStepsJSON, &resolutionState,
		&originalCase, &caseStepsJSON, &kase.CreatedBy, &updatedBy,
		&kase.CreatedAt, &kase.UpdatedAt)
	if err != nil {
		return nil, err
	}

	kase.ResponsibleUserID = respUser.String
	kase.ResponsibleGroupID = respGroup.String
	kase.ResolutionStateID = resolutionState.String
	kase.OriginalCaseID = originalCase.String
	kase.UpdatedBy = updatedBy.String

	if err := json.Unmarshal(disabledStepsJSON, &kase.DisabledStepIDs); err != nil {
		return nil, fmt.Errorf("failed to decode disabled steps: %w", err)
	}

	if err := json.Unmarshal(caseStepsJSON, &kase.CaseSteps); err != nil {
		return nil, fmt.Errorf("failed to decode case steps: %w", err)
	}

	return &kase, nil
}

func listFilters(opts persistence.ListCasesOptions) (string, []any) {
	clauses := make([]string, 0, 6)
	args := make([]any, 0, 6)

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if opts.InitialFlowID != "" {
		add("initial_flow_id = $%d", opts.InitialFlowID)
	}

	if opts.StepID != "" {
		add(`case_steps @> jsonb_build_array(jsonb_build_object('step_id', $%d::text))`, opts.StepID)
	}

	if opts.ResponsibleUserID != "" {
		add(`case_steps @> jsonb_build_array(jsonb_build_object('responsible_user_id', $%d::text))`, opts.ResponsibleUserID)
	}

	if opts.ResponsibleGroupID != "" {
		add(`case_steps @> jsonb_build_array(jsonb_build_object('responsible_group_id', $%d::text))`, opts.ResponsibleGroupID)
	}

	if opts.CreatedByID != "" {
		add("created_by = $%d", opts.CreatedByID)
	}

	if opts.UpdatedByID != "" {
		add("updated_by = $%d", opts.UpdatedByID)
	}

	if len(opts.Statuses) > 0 {
		placeholders := ""

		for i, status := range opts.Statuses {
			if i > 0 {
				placeholders += ", "
			}

			args = append(args, string(status))
			placeholders += "$" + strconv.Itoa(len(args))
		}

		clauses = append(clauses, "status IN ("+placeholders+")")
	}

	if len(clauses) == 0 {
		return "", args
	}

	where := " WHERE " + clauses[0]
	for _, clause := range clauses[1:] {
		where += " AND " + clause
	}

	return where, args
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
