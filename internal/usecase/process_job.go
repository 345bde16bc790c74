package usecase

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeni5888/mayalens/internal/domain"
	"github.com/jeni5888/mayalens/internal/events"
	"github.com/jeni5888/mayalens/internal/generation"
	"github.com/jeni5888/mayalens/internal/metrics"
	"github.com/jeni5888/mayalens/internal/repository"
	"github.com/jeni5888/mayalens/internal/results"
)

// Outcome describes what one processing attempt did with a job.
type Outcome string

const (
	// OutcomeSkipped means another worker claimed the job first, or it is gone.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeCompleted means the job reached COMPLETED.
	OutcomeCompleted Outcome = "completed"
	// OutcomeRequeued means a transient failure put the job back to PENDING.
	OutcomeRequeued Outcome = "requeued"
	// OutcomeFailed means the job reached FAILED.
	OutcomeFailed Outcome = "failed"
)

// ProcessJobUsecase runs one attempt of a generation job: CAS claim →
// provider call → asset publish → terminal transition. All state changes go
// through the job store's transitions so the state machine stays centrally
// enforced.
type ProcessJobUsecase struct {
	store       repository.JobStore
	client      generation.Client
	publisher   *results.Publisher
	events      events.Publisher
	backoffBase time.Duration
	backoffCap  time.Duration
	logger      *zap.Logger
}

// NewProcessJobUsecase creates a new ProcessJobUsecase.
func NewProcessJobUsecase(
	store repository.JobStore,
	client generation.Client,
	publisher *results.Publisher,
	ev events.Publisher,
	backoffBase, backoffCap time.Duration,
	logger *zap.Logger,
) *ProcessJobUsecase {
	return &ProcessJobUsecase{
		store:       store,
		client:      client,
		publisher:   publisher,
		events:      ev,
		backoffBase: backoffBase,
		backoffCap:  backoffCap,
		logger:      logger,
	}
}

// Execute processes a single dispatched job id.
func (uc *ProcessJobUsecase) Execute(ctx context.Context, jobID uuid.UUID) (Outcome, error) {
	// Claim via CAS. Losing the race is routine, not an error: the
	// dispatcher may hand the same PENDING job to two cycles, and exactly
	// one claim wins.
	job, err := uc.store.Transition(ctx, jobID, domain.StatePending, domain.StateRunning,
		repository.Patch{IncrementAttempt: true})
	if err != nil {
		if errors.Is(err, domain.ErrStateConflict) || errors.Is(err, domain.ErrJobNotFound) {
			return OutcomeSkipped, nil
		}
		return OutcomeSkipped, err
	}

	uc.logger.Info("Processing job",
		zap.String("job_id", job.ID.String()),
		zap.String("style", string(job.Style)),
		zap.Int("attempt", job.Attempt),
	)

	if job.CancelRequested {
		return uc.fail(ctx, job, domain.CodeCancelled, "cancelled by owner")
	}

	start := time.Now()
	asset, err := uc.client.Generate(ctx, generation.Request{
		JobID:  job.ID.String(),
		Prompt: job.Prompt,
		Style:  job.Style,
		Format: job.Format,
	})
	metrics.GenerationDuration.WithLabelValues(string(job.Style)).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, domain.ErrProviderPermanent) {
			// Requests the provider rejects can never succeed; retrying
			// them only burns attempts and money.
			return uc.fail(ctx, job, domain.CodeProviderRejected, causeMessage(err))
		}
		return uc.retryOrFail(ctx, job, domain.CodeRetriesExhausted, err)
	}

	// Store the asset before the COMPLETED transition: a crash in between
	// leaves the job RUNNING and the lease reclaim retries it, instead of
	// silently losing the result.
	ref, err := uc.publisher.Publish(ctx, job, asset)
	if err != nil {
		return uc.retryOrFail(ctx, job, domain.CodeStorageFailure, err)
	}

	completed, err := uc.store.Transition(ctx, job.ID, domain.StateRunning, domain.StateCompleted,
		repository.Patch{ResultAsset: ref})
	if err != nil {
		uc.logger.Error("Failed to complete job", zap.Error(err), zap.String("job_id", job.ID.String()))
		return OutcomeSkipped, err
	}

	uc.emit(ctx, events.JobCompleted, completed)

	uc.logger.Info("Job completed",
		zap.String("job_id", job.ID.String()),
		zap.Int("attempt", completed.Attempt),
		zap.String("asset_key", ref.Key),
	)
	return OutcomeCompleted, nil
}

// retryOrFail applies the retry policy after a transient failure: requeue
// with exponential backoff while attempts remain, otherwise fail with the
// given cause. The cancel flag is honored between attempts — an in-flight
// provider call cannot be interrupted, only prevented from retrying.
func (uc *ProcessJobUsecase) retryOrFail(ctx context.Context, job *domain.Job, code domain.FailureCode, cause error) (Outcome, error) {
	fresh, err := uc.store.GetByID(ctx, job.ID)
	if err == nil && fresh.CancelRequested {
		return uc.fail(ctx, job, domain.CodeCancelled, "cancelled by owner")
	}

	if job.Attempt >= job.MaxAttempts {
		return uc.fail(ctx, job, code, causeMessage(cause))
	}

	next := time.Now().UTC().Add(uc.backoff(job.Attempt))
	if _, err := uc.store.Transition(ctx, job.ID, domain.StateRunning, domain.StatePending,
		repository.Patch{NextAttemptAt: &next}); err != nil {
		uc.logger.Error("Failed to requeue job", zap.Error(err), zap.String("job_id", job.ID.String()))
		return OutcomeSkipped, err
	}

	uc.logger.Warn("Attempt failed, requeued",
		zap.String("job_id", job.ID.String()),
		zap.Int("attempt", job.Attempt),
		zap.Time("next_attempt_at", next),
		zap.Error(cause),
	)
	return OutcomeRequeued, nil
}

func (uc *ProcessJobUsecase) fail(ctx context.Context, job *domain.Job, code domain.FailureCode, msg string) (Outcome, error) {
	failed, err := uc.store.Transition(ctx, job.ID, domain.StateRunning, domain.StateFailed,
		repository.Patch{ErrorCause: &domain.ErrorCause{Code: code, Message: msg}})
	if err != nil {
		uc.logger.Error("Failed to mark job failed", zap.Error(err), zap.String("job_id", job.ID.String()))
		return OutcomeSkipped, err
	}

	uc.emit(ctx, events.JobFailed, failed)

	uc.logger.Warn("Job failed",
		zap.String("job_id", job.ID.String()),
		zap.String("code", string(code)),
		zap.Int("attempt", failed.Attempt),
	)
	return OutcomeFailed, nil
}

func (uc *ProcessJobUsecase) emit(ctx context.Context, event events.Event, job *domain.Job) {
	if uc.events == nil {
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

// backoff returns base × 2^attempt, capped.
func (uc *ProcessJobUsecase) backoff(attempt int) time.Duration {
	d := time.Duration(math.Min(
		float64(uc.backoffBase)*math.Pow(2, float64(attempt)),
		float64(uc.backoffCap),
	))
	if d < uc.backoffBase {
		d = uc.backoffBase
	}
	return d
}

func causeMessage(err error) string {
	if err == nil {
		return "unknown failure"
	}
	return err.Error()
}
