// Package postgres provides the durable JobStore backend.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/minhvt/imagedit-be/internal/domain"
	"github.com/minhvt/imagedit-be/internal/storage"
)

const uniqueViolationCode = "23505"

// Store persists job records in a PostgreSQL table
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Postgres-backed job store
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the jobs table if it does not exist yet
func (s *Store) EnsureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS jobs (
			id             TEXT PRIMARY KEY,
			original_image TEXT NOT NULL,
			edited_image   TEXT NOT NULL DEFAULT '',
			prompt         TEXT NOT NULL,
			status         TEXT NOT NULL,
			progress       INTEGER NOT NULL DEFAULT 0,
			error_message  TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL,
			updated_at     TIMESTAMPTZ NOT NULL
		)
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure jobs schema: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	query := `
		INSERT INTO jobs (
			id, original_image, edited_image, prompt,
			status, progress, error_message, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.OriginalImage,
		job.EditedImage,
		job.Prompt,
		job.Status,
		job.Progress,
		job.ErrorMessage,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
			return nil, domain.ErrJobExists
		}
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	out := *job
	return &out, nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Job, error) {
	query := `
		SELECT id, original_image, edited_image, prompt,
		       status, progress, error_message, created_at, updated_at
		FROM jobs
		WHERE id = $1
	`

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Job, error) {
	// id DESC is an arbitrary but stable tie break within a timestamp
	query := `
		SELECT id, original_image, edited_image, prompt,
		       status, progress, error_message, created_at, updated_at
		FROM jobs
		ORDER BY created_at DESC, id DESC
	`

	jobs := []domain.Job{}
	if err := s.db.SelectContext(ctx, &jobs, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

func (s *Store) Update(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	query := `
		UPDATE jobs
		SET original_image = $2,
		    edited_image = $3,
		    prompt = $4,
		    status = $5,
		    progress = $6,
		    error_message = $7,
		    updated_at = $8
		WHERE id = $1
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.OriginalImage,
		job.EditedImage,
		job.Prompt,
		job.Status,
		job.Progress,
		job.ErrorMessage,
		job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Absent id: matches the store contract's silent no-op
		s.logger.Warn("Job update matched no rows",
			slog.String("job_id", job.ID),
		)
	}

	out := *job
	return &out, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	query := `DELETE FROM jobs WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

var _ storage.JobStore = (*Store)(nil)
