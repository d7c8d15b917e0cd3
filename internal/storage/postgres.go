package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/vod/internal/config"
	"github.com/your-org/vod/internal/models"
)

// PostgresStore is the durable job ledger. Detection results themselves live
// in Redis; this table answers "what jobs exist and how did they end".
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the jobs table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id               TEXT PRIMARY KEY,
			source_file_name TEXT NOT NULL,
			model_id         TEXT NOT NULL DEFAULT '',
			status           TEXT NOT NULL,
			frame_count      INT NOT NULL DEFAULT 0,
			output_key       TEXT NOT NULL DEFAULT '',
			error_message    TEXT NOT NULL DEFAULT '',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			completed_at     TIMESTAMPTZ
		)`)
	if err != nil {
		return fmt.Errorf("ensure jobs schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	job.Status = models.JobStatusQueued
	err := s.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, source_file_name, model_id, status) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		job.ID, job.SourceFileName, job.ModelID, job.Status,
	).Scan(&job.CreatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkProcessing(ctx context.Context, id string) error {
	return s.updateStatus(ctx, id,
		`UPDATE jobs SET status = $1 WHERE id = $2`,
		models.JobStatusProcessing, id)
}

func (s *PostgresStore) MarkCompleted(ctx context.Context, id string, frameCount int, outputKey string) error {
	return s.updateStatus(ctx, id,
		`UPDATE jobs SET status = $1, frame_count = $2, output_key = $3, completed_at = $4 WHERE id = $5`,
		models.JobStatusCompleted, frameCount, outputKey, time.Now().UTC(), id)
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	return s.updateStatus(ctx, id,
		`UPDATE jobs SET status = $1, error_message = $2, completed_at = $3 WHERE id = $4`,
		models.JobStatusFailed, errMsg, time.Now().UTC(), id)
}

func (s *PostgresStore) updateStatus(ctx context.Context, id, query string, args ...interface{}) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	j := &models.Job{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, source_file_name, model_id, status, frame_count, output_key, error_message, created_at, completed_at
		 FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.SourceFileName, &j.ModelID, &j.Status, &j.FrameCount,
		&j.OutputKey, &j.ErrorMessage, &j.CreatedAt, &j.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, source_file_name, model_id, status, frame_count, output_key, error_message, created_at, completed_at
		 FROM jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.ID, &j.SourceFileName, &j.ModelID, &j.Status, &j.FrameCount,
			&j.OutputKey, &j.ErrorMessage, &j.CreatedAt, &j.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (s *PostgresStore) DeleteJob(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}
