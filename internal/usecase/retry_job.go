package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeni5888/mayalens/internal/domain"
	"github.com/jeni5888/mayalens/internal/events"
	"github.com/jeni5888/mayalens/internal/metrics"
	"github.com/jeni5888/mayalens/internal/repository"
)

// RetryJobUsecase re-runs a FAILED job by creating a fresh job that
// references the old one. The failed record stays untouched: terminal
// states are never reopened, which preserves the audit history.
type RetryJobUsecase struct {
	store       repository.JobStore
	events      events.Publisher
	maxAttempts int
	logger      *zap.Logger
}

// NewRetryJobUsecase creates a new RetryJobUsecase.
func NewRetryJobUsecase(store repository.JobStore, ev events.Publisher, maxAttempts int, logger *zap.Logger) *RetryJobUsecase {
	return &RetryJobUsecase{store: store, events: ev, maxAttempts: maxAttempts, logger: logger}
}

// Execute creates a new PENDING job with the failed job's parameters.
func (uc *RetryJobUsecase) Execute(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.SubmitResponse, error) {
	job, err := uc.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(job.OwnerID) {
		return nil, domain.ErrForbidden
	}
	if job.State != domain.StateFailed {
		return nil, domain.ErrNotRetryable
	}

	newID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}

	retryOf := job.ID
	fresh := &domain.Job{
		ID:            newID,
		OwnerID:       job.OwnerID,
		ProductID:     job.ProductID,
		Prompt:        job.Prompt,
		Style:         job.Style,
		Format:        job.Format,
		State:         domain.StatePending,
		MaxAttempts:   uc.maxAttempts,
		RetryOf:       &retryOf,
		NextAttemptAt: time.Now().UTC(),
	}

	if err := uc.store.Create(ctx, fresh); err != nil {
		uc.logger.Error("Failed to create retry job", zap.Error(err), zap.String("retry_of", id.String()))
		return nil, fmt.Errorf("create retry job: %w", err)
	}

	if uc.events != nil {
		if err := uc.events.Publish(ctx, events.JobSubmitted, fresh); err != nil {
			metrics.EventPublishFailures.Inc()
			uc.logger.Warn("Failed to publish submission event", zap.Error(err), zap.String("job_id", newID.String()))
		}
	}

	metrics.JobsSubmitted.WithLabelValues(string(fresh.Style)).Inc()
	uc.logger.Info("Failed job retried as new job",
		zap.String("job_id", newID.String()),
		zap.String("retry_of", id.String()),
	)

	return &domain.SubmitResponse{JobID: newID, State: domain.StatePending}, nil
}
