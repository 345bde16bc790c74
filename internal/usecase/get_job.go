package usecase

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeni5888/mayalens/internal/domain"
	"github.com/jeni5888/mayalens/internal/repository"
)

// GetJobUsecase fetches a single job for an authorized caller.
type GetJobUsecase struct {
	store  repository.JobStore
	logger *zap.Logger
}

// NewGetJobUsecase creates a new GetJobUsecase.
func NewGetJobUsecase(store repository.JobStore, logger *zap.Logger) *GetJobUsecase {
	return &GetJobUsecase{store: store, logger: logger}
}

// Execute retrieves a job by id, enforcing ownership.
func (uc *GetJobUsecase) Execute(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.Job, error) {
	job, err := uc.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(job.OwnerID) {
		return nil, domain.ErrForbidden
	}
	return job, nil
}
