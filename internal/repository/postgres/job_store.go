package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeni5888/mayalens/internal/domain"
	"github.com/jeni5888/mayalens/internal/repository"
)

// Ensure pgJobStore implements repository.JobStore.
var _ repository.JobStore = (*pgJobStore)(nil)

type pgJobStore struct {
	pool *pgxpool.Pool
}

// NewJobStore creates a new PostgreSQL-backed job store.
func NewJobStore(pool *pgxpool.Pool) repository.JobStore {
	return &pgJobStore{pool: pool}
}

const jobColumns = `job_id, owner_id, product_id, prompt, style, format, state,
	       attempt, max_attempts, cancel_requested,
	       result_bucket, result_key, result_url, result_content_type,
	       error_code, error_message, retry_of, next_attempt_at,
	       created_at, updated_at`

func (s *pgJobStore) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO generation_jobs (job_id, owner_id, product_id, prompt, style, format, state,
		                             attempt, max_attempts, retry_of, next_attempt_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	now := time.Now().UTC()
	nextAt := job.NextAttemptAt
	if nextAt.IsZero() {
		nextAt = now
	}
	_, err := s.pool.Exec(ctx, query,
		job.ID, job.OwnerID, job.ProductID, job.Prompt, job.Style, job.Format,
		job.State, job.Attempt, job.MaxAttempts, job.RetryOf, nextAt, now, now,
	)
	if err != nil {
		return fmt.Errorf("postgres: create job: %w", err)
	}
	job.NextAttemptAt = nextAt
	job.CreatedAt = now
	job.UpdatedAt = now
	return nil
}

func (s *pgJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE job_id = $1`

	job, err := scanJob(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("postgres: get job by id: %w", err)
	}
	return job, nil
}

// Transition is the CAS at the heart of the engine: the WHERE clause pins
// the expected current state, so of any number of racing workers exactly
// one sees a row updated and the rest get ErrStateConflict.
func (s *pgJobStore) Transition(ctx context.Context, id uuid.UUID, from, to domain.JobState, patch repository.Patch) (*domain.Job, error) {
	if !from.CanTransition(to) {
		return nil, domain.ErrInvalidTransition
	}

	query := `
		UPDATE generation_jobs
		SET state = $3,
		    updated_at = now(),
		    attempt = attempt + CASE WHEN $4 THEN 1 ELSE 0 END,
		    next_attempt_at = COALESCE($5, next_attempt_at),
		    result_bucket = COALESCE($6, result_bucket),
		    result_key = COALESCE($7, result_key),
		    result_url = COALESCE($8, result_url),
		    result_content_type = COALESCE($9, result_content_type),
		    error_code = COALESCE($10, error_code),
		    error_message = COALESCE($11, error_message)
		WHERE job_id = $1 AND state = $2
		RETURNING ` + jobColumns

	var (
		resultBucket, resultKey, resultURL, resultCT *string
		errorCode, errorMessage                      *string
	)
	if patch.ResultAsset != nil {
		resultBucket = &patch.ResultAsset.Bucket
		resultKey = &patch.ResultAsset.Key
		resultURL = &patch.ResultAsset.URL
		resultCT = &patch.ResultAsset.ContentType
	}
	if patch.ErrorCause != nil {
		code := string(patch.ErrorCause.Code)
		errorCode = &code
		errorMessage = &patch.ErrorCause.Message
	}

	job, err := scanJob(s.pool.QueryRow(ctx, query,
		id, from, to, patch.IncrementAttempt, patch.NextAttemptAt,
		resultBucket, resultKey, resultURL, resultCT,
		errorCode, errorMessage,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Zero rows means the CAS lost: either the job is gone or its
			// state moved on. Look it up once to tell the two apart.
			if _, getErr := s.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, domain.ErrStateConflict
		}
		return nil, fmt.Errorf("postgres: transition job: %w", err)
	}
	return job, nil
}

func (s *pgJobStore) List(ctx context.Context, ownerID uuid.UUID, filter repository.ListFilter, page repository.Page) (*domain.JobPage, error) {
	where := `WHERE owner_id = $1`
	args := []any{ownerID}
	if filter.State != nil {
		where += ` AND state = $2`
		args = append(args, *filter.State)
	}

	var total int
	countQuery := `SELECT count(*) FROM generation_jobs ` + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("postgres: count jobs: %w", err)
	}

	query := fmt.Sprintf(`SELECT `+jobColumns+` FROM generation_jobs %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Offset())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*domain.Job, 0, page.Limit)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list jobs: %w", err)
	}

	return &domain.JobPage{Jobs: jobs, Total: total, Page: page.Page, Limit: page.Limit}, nil
}

func (s *pgJobStore) DuePending(ctx context.Context, limit int) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs
		WHERE state = 'PENDING' AND next_attempt_at <= now()
		ORDER BY created_at ASC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: due pending: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: due pending: %w", err)
	}
	return jobs, nil
}

func (s *pgJobStore) RequestCancel(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE generation_jobs
		SET cancel_requested = TRUE, updated_at = now()
		WHERE job_id = $1 AND state = 'RUNNING'`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: request cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return domain.ErrStateConflict
	}
	return nil
}

func (s *pgJobStore) ReclaimStale(ctx context.Context, lease time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-lease)

	// Stale RUNNING jobs below the attempt cap go back to PENDING so the
	// generation cost of a crashed worker is retried, not silently lost.
	requeue := `UPDATE generation_jobs
		SET state = 'PENDING', next_attempt_at = now(), updated_at = now()
		WHERE state = 'RUNNING' AND updated_at < $1 AND attempt < max_attempts`
	tag, err := s.pool.Exec(ctx, requeue, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: reclaim stale: %w", err)
	}
	touched := int(tag.RowsAffected())

	exhaust := `UPDATE generation_jobs
		SET state = 'FAILED', updated_at = now(),
		    error_code = 'RETRIES_EXHAUSTED',
		    error_message = 'worker lease expired with no attempts remaining'
		WHERE state = 'RUNNING' AND updated_at < $1 AND attempt >= max_attempts`
	tag, err = s.pool.Exec(ctx, exhaust, cutoff)
	if err != nil {
		return touched, fmt.Errorf("postgres: reclaim stale: %w", err)
	}
	return touched + int(tag.RowsAffected()), nil
}

func (s *pgJobStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM generation_jobs WHERE job_id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job                                          domain.Job
		resultBucket, resultKey, resultURL, resultCT *string
		errorCode, errorMessage                      *string
	)
	err := row.Scan(
		&job.ID, &job.OwnerID, &job.ProductID, &job.Prompt, &job.Style, &job.Format,
		&job.State, &job.Attempt, &job.MaxAttempts, &job.CancelRequested,
		&resultBucket, &resultKey, &resultURL, &resultCT,
		&errorCode, &errorMessage, &job.RetryOf, &job.NextAttemptAt,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if resultKey != nil {
		job.ResultAsset = &domain.AssetRef{
			Bucket:      deref(resultBucket),
			Key:         *resultKey,
			URL:         deref(resultURL),
			ContentType: deref(resultCT),
		}
	}
	if errorCode != nil {
		job.ErrorCause = &domain.ErrorCause{
			Code:    domain.FailureCode(*errorCode),
			Message: deref(errorMessage),
		}
	}
	return &job, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
