package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jeni5888/mayalens/internal/domain"
)

// Patch carries the fields a state transition may set alongside the state
// itself. Nil fields are left untouched.
type Patch struct {
	// IncrementAttempt bumps the attempt counter atomically as part of the
	// transition. Used by the PENDING → RUNNING claim so two dispatch
	// cycles can never double-count.
	IncrementAttempt bool

	NextAttemptAt *time.Time
	ResultAsset   *domain.AssetRef
	ErrorCause    *domain.ErrorCause
}

// ListFilter narrows a job listing.
type ListFilter struct {
	State *domain.JobState
}

// Page selects a slice of a listing. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// JobStore is the durable record of each generation request and the sole
// arbiter of state transitions. Implementations must be safe for concurrent
// use; Transition must be atomic compare-and-swap on the job's state, which
// is the only concurrency guard preventing two workers from claiming the
// same job.
type JobStore interface {
	// Create inserts a new job in state PENDING.
	Create(ctx context.Context, job *domain.Job) error

	// GetByID retrieves a job by its UUID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// Transition atomically moves a job from one state to another, applying
	// the patch and bumping updated_at. It fails with
	// domain.ErrInvalidTransition when the edge is not allowed and with
	// domain.ErrStateConflict when the job's current state is not `from`.
	Transition(ctx context.Context, id uuid.UUID, from, to domain.JobState, patch Patch) (*domain.Job, error)

	// List returns one page of an owner's jobs, newest first.
	List(ctx context.Context, ownerID uuid.UUID, filter ListFilter, page Page) (*domain.JobPage, error)

	// DuePending returns up to limit PENDING jobs whose next_attempt_at has
	// passed, oldest first, for the dispatcher.
	DuePending(ctx context.Context, limit int) ([]*domain.Job, error)

	// RequestCancel sets the cancellation flag on a RUNNING job. The worker
	// checks the flag between retry attempts.
	RequestCancel(ctx context.Context, id uuid.UUID) error

	// ReclaimStale requeues RUNNING jobs untouched for longer than the
	// lease (crashed or partitioned worker) back to PENDING, or fails them
	// with RETRIES_EXHAUSTED if they are already at the attempt cap.
	// Returns the number of jobs touched.
	ReclaimStale(ctx context.Context, lease time.Duration) (int, error)

	// Delete removes a job record. Asset cleanup is the caller's concern.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProductStore resolves the product a job references, for the ownership
// check performed once at submission time.
type ProductStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
}

// IdempotencyStore dedupes double-submits keyed by the caller-supplied
// Idempotency-Key header.
type IdempotencyStore interface {
	// Lookup returns the job id previously recorded for the key, if any.
	Lookup(ctx context.Context, ownerID uuid.UUID, key string) (uuid.UUID, bool, error)

	// Remember records the key → job id mapping with a TTL. First writer
	// wins; replays return the recorded id via Lookup.
	Remember(ctx context.Context, ownerID uuid.UUID, key string, jobID uuid.UUID) error
}
