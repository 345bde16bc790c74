package results

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jeni5888/mayalens/internal/domain"
	"github.com/jeni5888/mayalens/internal/generation"
	"github.com/jeni5888/mayalens/internal/metrics"
	"github.com/jeni5888/mayalens/internal/storage"
)

const (
	defaultAttempts = 3
	defaultDelay    = 500 * time.Millisecond
)

// Publisher persists generated assets to object storage. The storage key is
// derived from the job id, so a retried publish overwrites rather than
// duplicates.
type Publisher struct {
	store    storage.ObjectStore
	attempts int
	delay    time.Duration
	logger   *zap.Logger
}

// NewPublisher creates a result publisher with its own bounded retry.
func NewPublisher(store storage.ObjectStore, logger *zap.Logger) *Publisher {
	return &Publisher{
		store:    store,
		attempts: defaultAttempts,
		delay:    defaultDelay,
		logger:   logger,
	}
}

// AssetKey returns the storage key for a job's result.
func AssetKey(job *domain.Job) string {
	return "jobs/" + job.ID.String() + job.Format.Extension()
}

// Publish uploads the asset and returns a stable reference. It fails with
// domain.ErrStorageUnavailable once its bounded retry is exhausted; the
// caller decides whether the job's generation cost is retried.
func (p *Publisher) Publish(ctx context.Context, job *domain.Job, asset *generation.Asset) (*domain.AssetRef, error) {
	key := AssetKey(job)

	var lastErr error
	for i := 0; i < p.attempts; i++ {
		if i > 0 {
			metrics.StorageRetries.Inc()
			select {
			case <-time.After(p.delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, ctx.Err())
			}
		}

		url, err := p.store.Put(ctx, key, asset.Data, asset.ContentType)
		if err == nil {
			return &domain.AssetRef{
				Bucket:      p.store.Bucket(),
				Key:         key,
				URL:         url,
				ContentType: asset.ContentType,
			}, nil
		}
		lastErr = err
		p.logger.Warn("Asset upload failed",
			zap.String("job_id", job.ID.String()),
			zap.Int("upload_attempt", i+1),
			zap.Error(err),
		)
	}

	return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, lastErr)
}

// Discard removes a job's stored asset, if any. Used by the purge path.
func (p *Publisher) Discard(ctx context.Context, job *domain.Job) error {
	if job.ResultAsset == nil {
		return nil
	}
	return p.store.Delete(ctx, job.ResultAsset.Key)
}
