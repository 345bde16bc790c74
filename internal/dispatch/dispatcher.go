package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeni5888/mayalens/internal/repository"
)

// Dispatcher polls the job store for due PENDING jobs, oldest first, and
// feeds them to the worker pool's channel. It also reclaims RUNNING jobs
// whose worker lease expired. The dispatcher itself never claims anything:
// handing the same job id to two cycles is harmless because the workers'
// CAS claim lets exactly one win.
type Dispatcher struct {
	store        repository.JobStore
	jobs         chan<- uuid.UUID
	pollInterval time.Duration
	batchSize    int
	runningLease time.Duration
	logger       *zap.Logger
}

// New creates a dispatcher.
func New(store repository.JobStore, jobs chan<- uuid.UUID, pollInterval time.Duration, batchSize int, runningLease time.Duration, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:        store,
		jobs:         jobs,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		runningLease: runningLease,
		logger:       logger,
	}
}

// Run blocks until the context is cancelled, dispatching one batch per
// poll interval.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("Dispatcher started",
		zap.Duration("poll_interval", d.pollInterval),
		zap.Int("batch_size", d.batchSize),
	)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Dispatcher stopping")
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick runs one dispatch cycle: reclaim stale leases, then enqueue due
// PENDING jobs.
func (d *Dispatcher) Tick(ctx context.Context) {
	if reclaimed, err := d.store.ReclaimStale(ctx, d.runningLease); err != nil {
		d.logger.Error("Stale job reclaim failed", zap.Error(err))
	} else if reclaimed > 0 {
		d.logger.Warn("Reclaimed stale running jobs", zap.Int("count", reclaimed))
	}

	due, err := d.store.DuePending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("Pending job poll failed", zap.Error(err))
		return
	}

	for _, job := range due {
		select {
		case d.jobs <- job.ID:
		case <-ctx.Done():
			return
		}
	}

	if len(due) > 0 {
		d.logger.Debug("Dispatched jobs", zap.Int("count", len(due)))
	}
}
