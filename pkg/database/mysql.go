package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dev/bravebird/page-capture/pkg/models"

	_ "github.com/go-sql-driver/mysql"
)

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

const schema = `
	CREATE TABLE IF NOT EXISTS capture_runs (
		id            VARCHAR(36)   NOT NULL PRIMARY KEY,
		target_url    VARCHAR(2048) NOT NULL,
		output_path   VARCHAR(1024) NOT NULL DEFAULT '',
		status        VARCHAR(16)   NOT NULL,
		error_kind    VARCHAR(32)   NOT NULL DEFAULT '',
		error_message TEXT,
		duration_ms   BIGINT        NOT NULL DEFAULT 0,
		created_at    DATETIME(3)   NOT NULL,
		started_at    DATETIME(3)   NULL,
		completed_at  DATETIME(3)   NULL,
		INDEX idx_capture_runs_created (created_at)
	)
`

// EnsureSchema creates the capture_runs table if it does not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// ==================== Capture Runs ====================

const runColumns = `id, target_url, output_path, status, error_kind, COALESCE(error_message, ''),
		       duration_ms, created_at, started_at, completed_at`

// CreateCaptureRun inserts a new run record
func (db *DB) CreateCaptureRun(ctx context.Context, run *models.CaptureRun) error {
	query := `
		INSERT INTO capture_runs (id, target_url, output_path, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	_, err := db.conn.ExecContext(ctx, query,
		run.ID,
		run.TargetURL,
		run.OutputPath,
		run.Status,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetCaptureRun retrieves a run by ID. It returns nil when no run matches.
func (db *DB) GetCaptureRun(ctx context.Context, id string) (*models.CaptureRun, error) {
	query := `SELECT ` + runColumns + ` FROM capture_runs WHERE id = ?`

	run, err := scanRun(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListCaptureRuns retrieves the most recent runs, newest first
func (db *DB) ListCaptureRuns(ctx context.Context, limit int) ([]models.CaptureRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + runColumns + ` FROM capture_runs ORDER BY created_at DESC LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []models.CaptureRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// UpdateCaptureRunStatus updates the status of a run
func (db *DB) UpdateCaptureRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error {
	query := `
		UPDATE capture_runs
		SET status = ?, error_message = ?,
		    started_at = CASE WHEN ? = 'running' AND started_at IS NULL THEN NOW(3) ELSE started_at END,
		    completed_at = CASE WHEN ? IN ('success', 'failed') THEN NOW(3) ELSE completed_at END
		WHERE id = ?
	`

	_, err := db.conn.ExecContext(ctx, query, status, errorMsg, status, status, id)
	return err
}

// CompleteCaptureRun stores the final result of a run
func (db *DB) CompleteCaptureRun(ctx context.Context, result models.CaptureResult) error {
	query := `
		UPDATE capture_runs
		SET status = ?, error_kind = ?, error_message = ?,
		    target_url = COALESCE(NULLIF(?, ''), target_url),
		    output_path = COALESCE(NULLIF(?, ''), output_path),
		    duration_ms = ?, completed_at = NOW(3)
		WHERE id = ?
	`

	errorKind := string(result.Kind)
	if result.Kind == models.KindSuccess {
		errorKind = ""
	}

	_, err := db.conn.ExecContext(ctx, query,
		result.Status,
		errorKind,
		result.ErrorMessage,
		result.TargetURL,
		result.ArtifactPath,
		result.Duration,
		result.RunID,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.CaptureRun, error) {
	var run models.CaptureRun
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&run.ID,
		&run.TargetURL,
		&run.OutputPath,
		&run.Status,
		&run.ErrorKind,
		&run.ErrorMessage,
		&run.Duration,
		&run.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}
