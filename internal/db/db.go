// Package db provides the report job store, backed by PostgreSQL or SQLite.
package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/report-renderer/internal/types"
)

//go:embed schema/postgres.sql
var postgresSchema string

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
	opts storeOptions
}

var _ JobStore = (*DB)(nil)

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string, opts ...Option) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool, opts: newStoreOptions(opts)}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping verifies the pool can reach the server
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Migrate creates the report_jobs table and its indexes if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(postgresSchema) {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func pgPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// CreateJob inserts a new pending job and returns its ID
func (db *DB) CreateJob(ctx context.Context, params types.ReportParams) (string, error) {
	now := db.opts.now()
	id, err := NewJobID(now)
	if err != nil {
		return "", persistenceErr("create job", "id generation failed", err)
	}

	cols, err := paramColumns(params)
	if err != nil {
		return "", persistenceErr("create job", "invalid parameters", err)
	}
	query, args := buildInsert(id, cols, types.JobStatusPending, now, pgPlaceholder)

	if _, err := db.pool.Exec(ctx, query, args...); err != nil {
		return "", persistenceErr("create job", "insert failed", err)
	}
	return id, nil
}

// GetJob retrieves a job by ID. Read failures are logged and reported as absent.
func (db *DB) GetJob(ctx context.Context, id string) (*types.Job, bool) {
	var row jobRow
	var createdAt, updatedAt time.Time

	err := db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM report_jobs WHERE id = $1`,
		id,
	).Scan(append(row.targets(), &createdAt, &updatedAt)...)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			db.opts.logger.Warn("failed to read job", "job_id", id, "error", err)
		}
		return nil, false
	}

	job, err := row.toJob(createdAt, updatedAt)
	if err != nil {
		db.opts.logger.Warn("failed to decode job", "job_id", id, "error", err)
		return nil, false
	}
	return job, true
}

// UpdateJob writes the set fields of update plus updated_at
func (db *DB) UpdateJob(ctx context.Context, id string, update types.JobUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	cols, err := updateColumns(update)
	if err != nil {
		return persistenceErr("update job", "invalid update", err)
	}
	query, args := buildUpdate(cols, db.opts.now(), id, pgPlaceholder)

	result, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return persistenceErr("update job", "update failed", err)
	}
	if result.RowsAffected() == 0 {
		db.opts.logger.Debug("update matched no job", "job_id", id)
	}
	return nil
}

// CleanupOldJobs deletes jobs older than maxAgeHours and returns how many were removed
func (db *DB) CleanupOldJobs(ctx context.Context, maxAgeHours int) int64 {
	cutoff := cleanupCutoff(db.opts.now(), maxAgeHours)

	result, err := db.pool.Exec(ctx, `DELETE FROM report_jobs WHERE created_at < $1`, cutoff)
	if err != nil {
		db.opts.logger.Error("failed to clean up old jobs", "cutoff", cutoff, "error", err)
		return 0
	}
	return result.RowsAffected()
}
