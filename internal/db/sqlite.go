package db

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jonathan/report-renderer/internal/types"
)

//go:embed schema/sqlite.sql
var sqliteSchema string

// SQLiteDB is a job store on a local SQLite file. Timestamps are stored as unix milliseconds.
type SQLiteDB struct {
	db   *sql.DB
	opts storeOptions
}

var _ JobStore = (*SQLiteDB)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteDB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between pooled connections.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	store := &SQLiteDB{db: conn, opts: newStoreOptions(opts)}
	if err := store.Migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database handle
func (s *SQLiteDB) Close() {
	if err := s.db.Close(); err != nil {
		s.opts.logger.Warn("failed to close sqlite database", "error", err)
	}
}

// Ping verifies the database is reachable
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the report_jobs table and its indexes if they do not exist
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(sqliteSchema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func sqlitePlaceholder(int) string {
	return "?"
}

// CreateJob inserts a new pending job and returns its ID
func (s *SQLiteDB) CreateJob(ctx context.Context, params types.ReportParams) (string, error) {
	now := s.opts.now()
	id, err := NewJobID(now)
	if err != nil {
		return "", persistenceErr("create job", "id generation failed", err)
	}

	cols, err := paramColumns(params)
	if err != nil {
		return "", persistenceErr("create job", "invalid parameters", err)
	}
	query, args := buildInsert(id, cols, types.JobStatusPending, now.UnixMilli(), sqlitePlaceholder)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", persistenceErr("create job", "insert failed", err)
	}
	return id, nil
}

// GetJob retrieves a job by ID. Read failures are logged and reported as absent.
func (s *SQLiteDB) GetJob(ctx context.Context, id string) (*types.Job, bool) {
	var row jobRow
	var createdMs, updatedMs int64

	err := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM report_jobs WHERE id = ?`,
		id,
	).Scan(append(row.targets(), &createdMs, &updatedMs)...)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.opts.logger.Warn("failed to read job", "job_id", id, "error", err)
		}
		return nil, false
	}

	job, err := row.toJob(time.UnixMilli(createdMs), time.UnixMilli(updatedMs))
	if err != nil {
		s.opts.logger.Warn("failed to decode job", "job_id", id, "error", err)
		return nil, false
	}
	return job, true
}

// UpdateJob writes the set fields of update plus updated_at
func (s *SQLiteDB) UpdateJob(ctx context.Context, id string, update types.JobUpdate) error {
	if update.IsEmpty() {
		return nil
	}
	cols, err := updateColumns(update)
	if err != nil {
		return persistenceErr("update job", "invalid update", err)
	}
	query, args := buildUpdate(cols, s.opts.now().UnixMilli(), id, sqlitePlaceholder)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistenceErr("update job", "update failed", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		s.opts.logger.Debug("update matched no job", "job_id", id)
	}
	return nil
}

// CleanupOldJobs deletes jobs older than maxAgeHours and returns how many were removed
func (s *SQLiteDB) CleanupOldJobs(ctx context.Context, maxAgeHours int) int64 {
	cutoff := cleanupCutoff(s.opts.now(), maxAgeHours)

	result, err := s.db.ExecContext(ctx, `DELETE FROM report_jobs WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		s.opts.logger.Error("failed to clean up old jobs", "cutoff", cutoff, "error", err)
		return 0
	}
	n, err := result.RowsAffected()
	if err != nil {
		s.opts.logger.Warn("failed to count cleaned jobs", "error", err)
		return 0
	}
	return n
}
