// Package postgresql provides the PostgreSQL persistence implementation for
// flow definitions, step snapshots, cases and the audit log.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/urbanite/caseflow/pkg/persistence"
	"github.com/urbanite/caseflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	flowRepo     *FlowRepository
	snapshotRepo *SnapshotRepository
	caseRepo     *CaseRepository
	logRepo      *LogRepository
}

// NewPersistence connects to PostgreSQL and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrator := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrator.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	p := &Persistence{db: database, logger: logger}
	p.flowRepo = NewFlowRepository(database, logger)
	p.snapshotRepo = NewSnapshotRepository(database)
	p.caseRepo = NewCaseRepository(database, logger)
	p.logRepo = NewLogRepository(database, logger)

	return p, nil
}

func (p *Persistence) Flows() persistence.FlowRepository         { return p.flowRepo }
func (p *Persistence) Snapshots() persistence.SnapshotRepository { return p.snapshotRepo }
func (p *Persistence) Cases() persistence.CaseRepository         { return p.caseRepo }
func (p *Persistence) Logs() persistence.LogRepository           { return p.logRepo }

// HealthCheck verifies the database connection is alive.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	return p.db.Close()
}
