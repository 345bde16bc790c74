package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeni5888/mayalens/internal/domain"
	"github.com/jeni5888/mayalens/internal/events"
	"github.com/jeni5888/mayalens/internal/metrics"
	"github.com/jeni5888/mayalens/internal/repository"
)

// CancelJobUsecase stops a job that has not finished. A PENDING job fails
// immediately with cause CANCELLED; a RUNNING job gets its cancel flag set
// and the worker honors it before the next retry (at-least-once semantics:
// an in-flight provider call is never interrupted). Terminal jobs cannot be
// cancelled.
type CancelJobUsecase struct {
	store  repository.JobStore
	events events.Publisher
	logger *zap.Logger
}

// NewCancelJobUsecase creates a new CancelJobUsecase.
func NewCancelJobUsecase(store repository.JobStore, ev events.Publisher, logger *zap.Logger) *CancelJobUsecase {
	return &CancelJobUsecase{store: store, events: ev, logger: logger}
}

// Execute cancels the job and returns its record after the cancel took
// effect. Fails with domain.ErrStateConflict when the job is already
// terminal.
func (uc *CancelJobUsecase) Execute(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.Job, error) {
	job, err := uc.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(job.OwnerID) {
		return nil, domain.ErrForbidden
	}

	if job.State == domain.StatePending {
		cancelled, err := uc.store.Transition(ctx, id, domain.StatePending, domain.StateFailed,
			repository.Patch{ErrorCause: &domain.ErrorCause{Code: domain.CodeCancelled, Message: "cancelled by owner"}})
		if err == nil {
			uc.emitTerminal(ctx, cancelled)
			uc.logger.Info("Pending job cancelled", zap.String("job_id", id.String()))
			return cancelled, nil
		}
		if !errors.Is(err, domain.ErrStateConflict) {
			return nil, err
		}
		// A worker claimed the job between our read and the CAS; fall
		// through to the RUNNING path.
	}

	if err := uc.store.RequestCancel(ctx, id); err != nil {
		return nil, err
	}
	uc.logger.Info("Cancel requested for running job", zap.String("job_id", id.String()))
	return uc.store.GetByID(ctx, id)
}

// emitTerminal publishes the lifecycle event for a job that just reached a
// terminal state. Best-effort, like every event publish.
func (uc *CancelJobUsecase) emitTerminal(ctx context.Context, job *domain.Job) {
	if uc.events == nil {
		return
	}
	event, ok := events.TerminalEvent(job.State)
	if !ok {
		return
	}
	if err := uc.events.Publish(ctx, event, job); err != nil {
		metrics.EventPublishFailures.Inc()
		uc.logger.Warn("Failed to publish job event",
			zap.String("event", string(event)),
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
}
