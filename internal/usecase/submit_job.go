package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeni5888/mayalens/internal/domain"
	"github.com/jeni5888/mayalens/internal/events"
	"github.com/jeni5888/mayalens/internal/metrics"
	"github.com/jeni5888/mayalens/internal/repository"
)

const maxPromptLength = 4000

// SubmitJobUsecase validates a generation request, enforces the product
// ownership rule once at creation, and enqueues the job as PENDING.
type SubmitJobUsecase struct {
	store       repository.JobStore
	products    repository.ProductStore
	idempotency repository.IdempotencyStore
	events      events.Publisher
	maxAttempts int
	logger      *zap.Logger
}

// NewSubmitJobUsecase creates a new SubmitJobUsecase.
func NewSubmitJobUsecase(
	store repository.JobStore,
	products repository.ProductStore,
	idempotency repository.IdempotencyStore,
	ev events.Publisher,
	maxAttempts int,
	logger *zap.Logger,
) *SubmitJobUsecase {
	return &SubmitJobUsecase{
		store:       store,
		products:    products,
		idempotency: idempotency,
		events:      ev,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Execute validates the submission and creates a PENDING job. A repeated
// Idempotency-Key returns the originally created job instead of a new one.
func (uc *SubmitJobUsecase) Execute(ctx context.Context, caller domain.Caller, req *domain.SubmitRequest, idempotencyKey string) (*domain.SubmitResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, domain.ErrEmptyPrompt
	}
	if len(req.Prompt) > maxPromptLength {
		return nil, domain.ErrPromptTooLong
	}
	if !req.Style.IsValid() {
		return nil, domain.ErrInvalidStyle
	}
	format := req.Format
	if format == "" {
		format = domain.FormatPNG
	}
	if !format.IsValid() {
		return nil, domain.ErrInvalidFormat
	}

	// The ownership rule is enforced exactly once, here. Products are not
	// expected to change owners afterwards.
	if req.ProductID != nil {
		product, err := uc.products.GetByID(ctx, *req.ProductID)
		if err != nil {
			return nil, err
		}
		if product.OwnerID != caller.ID {
			return nil, domain.ErrForbidden
		}
	}

	if idempotencyKey != "" {
		if jobID, found, err := uc.idempotency.Lookup(ctx, caller.ID, idempotencyKey); err != nil {
			uc.logger.Warn("Idempotency lookup failed, proceeding without dedup", zap.Error(err))
		} else if found {
			existing, err := uc.store.GetByID(ctx, jobID)
			if err == nil {
				return &domain.SubmitResponse{JobID: existing.ID, State: existing.State}, nil
			}
		}
	}

	// UUIDv7 keeps ids time-ordered, which the oldest-first dispatch
	// query benefits from.
	jobID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate UUIDv7: %w", err)
	}

	job := &domain.Job{
		ID:            jobID,
		OwnerID:       caller.ID,
		ProductID:     req.ProductID,
		Prompt:        req.Prompt,
		Style:         req.Style,
		Format:        format,
		State:         domain.StatePending,
		MaxAttempts:   uc.maxAttempts,
		NextAttemptAt: time.Now().UTC(),
	}

	if err := uc.store.Create(ctx, job); err != nil {
		uc.logger.Error("Failed to create job", zap.Error(err), zap.String("job_id", jobID.String()))
		return nil, fmt.Errorf("create job: %w", err)
	}

	if idempotencyKey != "" {
		if err := uc.idempotency.Remember(ctx, caller.ID, idempotencyKey, jobID); err != nil {
			uc.logger.Warn("Failed to record idempotency key", zap.Error(err), zap.String("job_id", jobID.String()))
		}
	}

	if uc.events != nil {
		if err := uc.events.Publish(ctx, events.JobSubmitted, job); err != nil {
			metrics.EventPublishFailures.Inc()
			uc.logger.Warn("Failed to publish submission event", zap.Error(err), zap.String("job_id", jobID.String()))
		}
	}

	metrics.JobsSubmitted.WithLabelValues(string(job.Style)).Inc()
	uc.logger.Info("Job submitted",
		zap.String("job_id", jobID.String()),
		zap.String("owner_id", caller.ID.String()),
		zap.String("style", string(job.Style)),
	)

	return &domain.SubmitResponse{JobID: jobID, State: domain.StatePending}, nil
}
