package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/urbanite/caseflow/pkg/models"
)

// LogRepository reads the append-only audit log.
type LogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLogRepository creates a new log repository.
func NewLogRepository(db *sql.DB, logger *slog.Logger) *LogRepository {
	return &LogRepository{db: db, logger: logger}
}

func (r *LogRepository) ListByCase(ctx context.Context, caseID string) ([]*models.LogEntry, error) {
	query := `
		SELECT
			id
		  , case_id
		  , action
		  , user_id
		  , flow_id
		  , flow_version
		  , step_id
		  , before_user_id
		  , after_user_id
		  , before_group_id
		  , after_group_id
		  , new_flow_id
		  , child_case_id
		  , created_at
		FROM case_log_entries
		WHERE case_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.LogEntry, 0)

	for rows.Next() {
		var (
			entry       models.LogEntry
			userID      sql.NullString
			flowID      sql.NullString
			flowVersion sql.NullInt64
			stepID      sql.NullString
			beforeUser  sql.NullString
			afterUser   sql.NullString
			beforeGroup sql.NullString
			afterGroup  sql.NullString
			newFlowID   sql.NullString
			childCaseID sql.NullString
		)

		err := rows.Scan(&entry.ID, &entry.CaseID, &entry.Action, &userID,
			&flowID, &flowVersion, &stepID, &beforeUser, &afterUser,
			&beforeGroup, &afterGroup, &newFlowID, &childCaseID, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}

		entry.UserID = userID.String
		entry.FlowID = flowID.String
		entry.FlowVersion = int(flowVersion.Int64)
		entry.StepID = stepID.String
		entry.BeforeUserID = beforeUser.String
		entry.AfterUserID = afterUser.String
		entry.BeforeGroupID = beforeGroup.String
		entry.AfterGroupID = afterGroup.String
		entry.NewFlowID = newFlowID.String
		entry.ChildCaseID = childCaseID.String

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log entries: %w", err)
	}

	return entries, nil
}
