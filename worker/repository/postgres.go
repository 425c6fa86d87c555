package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"imageConverter/internal/jobs"
)

// DB is the subset of pgxpool.Pool the archive needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS conversion_jobs (
	id                 TEXT PRIMARY KEY,
	status             TEXT NOT NULL,
	original_name      TEXT NOT NULL,
	original_size      BIGINT NOT NULL,
	thumbnail_size     INTEGER,
	full_size_size     INTEGER,
	processing_time_ms BIGINT,
	has_gps            BOOLEAN NOT NULL DEFAULT FALSE,
	has_timestamp      BOOLEAN NOT NULL DEFAULT FALSE,
	error_message      TEXT,
	created_at         TIMESTAMPTZ NOT NULL,
	completed_at       TIMESTAMPTZ NOT NULL
)`

const upsertOutcome = `
INSERT INTO conversion_jobs (
	id, status, original_name, original_size, thumbnail_size, full_size_size,
	processing_time_ms, has_gps, has_timestamp, error_message, created_at, completed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	thumbnail_size = EXCLUDED.thumbnail_size,
	full_size_size = EXCLUDED.full_size_size,
	processing_time_ms = EXCLUDED.processing_time_ms,
	has_gps = EXCLUDED.has_gps,
	has_timestamp = EXCLUDED.has_timestamp,
	error_message = EXCLUDED.error_message,
	completed_at = EXCLUDED.completed_at`

const selectOutcomes = `
SELECT id, status, original_name, original_size, thumbnail_size, full_size_size,
	processing_time_ms, has_gps, has_timestamp, error_message, created_at, completed_at
FROM conversion_jobs`

var ErrNotTerminal = errors.New("job is not in a terminal state")

// PostgresArchive keeps a reporting copy of finished jobs. It never stores
// image bytes and is not consulted by the pipeline.
type PostgresArchive struct {
	db DB
}

func NewPostgresArchive(db DB) *PostgresArchive {
	return &PostgresArchive{db: db}
}

func (a *PostgresArchive) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create conversion_jobs table: %w", err)
	}
	return nil
}

func (a *PostgresArchive) SaveOutcome(ctx context.Context, job *jobs.Job) error {
	if !job.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrNotTerminal, job.ID, job.Status)
	}

	var (
		thumbSize, fullSize  *int
		hasGPS, hasTimestamp bool
		errorMessage         *string
	)
	if r := job.Results; r != nil {
		thumbSize = &r.Thumbnail.Size
		fullSize = &r.FullSize.Size
		hasGPS = r.PreservedMetadata.HasGPS
		hasTimestamp = r.PreservedMetadata.HasTimestamp
	}
	if job.Error != "" {
		errorMessage = &job.Error
	}

	_, err := a.db.Exec(ctx, upsertOutcome,
		job.ID,
		string(job.Status),
		job.OriginalName,
		job.OriginalSize,
		thumbSize,
		fullSize,
		job.ProcessingTime,
		hasGPS,
		hasTimestamp,
		errorMessage,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive job %s: %w", job.ID, err)
	}
	return nil
}

// Outcome is one archived row.
type Outcome struct {
	ID               string      `json:"id"`
	Status           jobs.Status `json:"status"`
	OriginalName     string      `json:"originalName"`
	OriginalSize     int64       `json:"originalSize"`
	ThumbnailSize    *int        `json:"thumbnailSize,omitempty"`
	FullSizeSize     *int        `json:"fullSizeSize,omitempty"`
	ProcessingTimeMs *int64      `json:"processingTime,omitempty"`
	HasGPS           bool        `json:"hasGPS"`
	HasTimestamp     bool        `json:"hasTimestamp"`
	Error            *string     `json:"error,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	CompletedAt      time.Time   `json:"completedAt"`
}

// ListOutcomes returns the most recently finished jobs first. An empty status
// matches both terminal states.
func (a *PostgresArchive) ListOutcomes(ctx context.Context, status jobs.Status, limit int) ([]Outcome, error) {
	if limit <= 0 {
		limit = 50
	}

	query := selectOutcomes
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += fmt.Sprintf(` ORDER BY completed_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := a.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}

	outcomes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Outcome, error) {
		var o Outcome
		var status string
		err := row.Scan(
			&o.ID, &status, &o.OriginalName, &o.OriginalSize, &o.ThumbnailSize, &o.FullSizeSize,
			&o.ProcessingTimeMs, &o.HasGPS, &o.HasTimestamp, &o.Error, &o.CreatedAt, &o.CompletedAt,
		)
		o.Status = jobs.Status(status)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read outcomes: %w", err)
	}
	return outcomes, nil
}
