package usecase

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeni5888/mayalens/internal/domain"
	"github.com/jeni5888/mayalens/internal/repository"
	"github.com/jeni5888/mayalens/internal/storage"
)

// PurgeJobUsecase deletes a terminal job record together with its stored
// asset. Jobs are never deleted automatically; purging is an explicit
// caller request.
type PurgeJobUsecase struct {
	store  repository.JobStore
	assets storage.ObjectStore
	logger *zap.Logger
}

// NewPurgeJobUsecase creates a new PurgeJobUsecase.
func NewPurgeJobUsecase(store repository.JobStore, assets storage.ObjectStore, logger *zap.Logger) *PurgeJobUsecase {
	return &PurgeJobUsecase{store: store, assets: assets, logger: logger}
}

// Execute removes the job and its asset. Fails with domain.ErrNotPurgeable
// while the job is still pending or running.
func (uc *PurgeJobUsecase) Execute(ctx context.Context, caller domain.Caller, id uuid.UUID) error {
	job, err := uc.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !caller.CanAccess(job.OwnerID) {
		return domain.ErrForbidden
	}
	if !job.State.IsTerminal() {
		return domain.ErrNotPurgeable
	}

	// Delete the asset first: if it fails the record survives and the
	// purge can be repeated.
	if job.ResultAsset != nil && uc.assets != nil {
		if err := uc.assets.Delete(ctx, job.ResultAsset.Key); err != nil {
			uc.logger.Error("Failed to delete stored asset", zap.Error(err), zap.String("job_id", id.String()))
			return err
		}
	}

	if err := uc.store.Delete(ctx, id); err != nil {
		return err
	}
	uc.logger.Info("Job purged", zap.String("job_id", id.String()))
	return nil
}
