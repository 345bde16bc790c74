package pool

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeni5888/mayalens/internal/metrics"
	"github.com/jeni5888/mayalens/internal/usecase"
)

// WorkerPool manages a fixed-size pool of goroutines that process jobs.
// The pool size directly caps concurrent outbound calls to the generation
// provider.
type WorkerPool struct {
	size      int
	jobs      <-chan uuid.UUID
	processUC *usecase.ProcessJobUsecase
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewWorkerPool creates a new fixed-size worker pool.
func NewWorkerPool(size int, jobs <-chan uuid.UUID, processUC *usecase.ProcessJobUsecase, logger *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:      size,
		jobs:      jobs,
		processUC: processUC,
		logger:    logger,
	}
}

// Start launches all worker goroutines. Call Stop to wait for them to finish.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop waits for all workers to finish their current jobs and exit.
func (p *WorkerPool) Stop() {
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Worker panic recovered",
				zap.Int("worker_id", id),
				zap.Any("panic", r),
			)
		}
	}()

	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case jobID, ok := <-p.jobs:
			if !ok {
				p.logger.Debug("Job channel closed", zap.Int("worker_id", id))
				return
			}

			metrics.WorkersActive.Inc()
			outcome, err := p.processUC.Execute(ctx, jobID)
			metrics.WorkersActive.Dec()

			if err != nil {
				// The job may be left RUNNING; the dispatcher's lease
				// reclaim will pick it up again.
				p.logger.Error("Job processing error",
					zap.Int("worker_id", id),
					zap.String("job_id", jobID.String()),
					zap.Error(err),
				)
				metrics.JobsProcessed.WithLabelValues("error").Inc()
				continue
			}

			metrics.JobsProcessed.WithLabelValues(string(outcome)).Inc()
		}
	}
}
