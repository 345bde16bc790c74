package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeni5888/mayalens/internal/domain"
	"github.com/jeni5888/mayalens/internal/repository"
)

// ---- JobStore mock ----

var _ repository.JobStore = (*JobStore)(nil)

// JobStore is an in-memory mock of repository.JobStore with real
// compare-and-swap semantics, so concurrency tests exercise the same
// claim behavior the postgres store provides.
type JobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*domain.Job

	// Hook functions for injecting errors.
	CreateFunc     func(ctx context.Context, job *domain.Job) error
	GetByIDFunc    func(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	TransitionFunc func(ctx context.Context, id uuid.UUID, from, to domain.JobState, patch repository.Patch) (*domain.Job, error)

	// Recorded transitions for assertions.
	Transitions []TransitionCall
}

// TransitionCall records one Transition invocation.
type TransitionCall struct {
	ID   uuid.UUID
	From domain.JobState
	To   domain.JobState
}

// NewJobStore creates a new in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (m *JobStore) Create(ctx context.Context, job *domain.Job) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, job)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if job.NextAttemptAt.IsZero() {
		job.NextAttemptAt = now
	}
	job.CreatedAt = now
	job.UpdatedAt = now
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *JobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *JobStore) Transition(ctx context.Context, id uuid.UUID, from, to domain.JobState, patch repository.Patch) (*domain.Job, error) {
	if m.TransitionFunc != nil {
		return m.TransitionFunc(ctx, id, from, to, patch)
	}
	if !from.CanTransition(to) {
		return nil, domain.ErrInvalidTransition
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Transitions = append(m.Transitions, TransitionCall{ID: id, From: from, To: to})
	job, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if job.State != from {
		return nil, domain.ErrStateConflict
	}
	job.State = to
	job.UpdatedAt = time.Now().UTC()
	if patch.IncrementAttempt {
		job.Attempt++
	}
	if patch.NextAttemptAt != nil {
		job.NextAttemptAt = *patch.NextAttemptAt
	}
	if patch.ResultAsset != nil {
		ref := *patch.ResultAsset
		job.ResultAsset = &ref
	}
	if patch.ErrorCause != nil {
		cause := *patch.ErrorCause
		job.ErrorCause = &cause
	}
	cp := *job
	return &cp, nil
}

func (m *JobStore) List(ctx context.Context, ownerID uuid.UUID, filter repository.ListFilter, page repository.Page) (*domain.JobPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []*domain.Job
	for _, job := range m.jobs {
		if job.OwnerID != ownerID {
			continue
		}
		if filter.State != nil && job.State != *filter.State {
			continue
		}
		cp := *job
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	start := page.Offset()
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return &domain.JobPage{Jobs: matched[start:end], Total: total, Page: page.Page, Limit: page.Limit}, nil
}

func (m *JobStore) DuePending(ctx context.Context, limit int) ([]*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var due []*domain.Job
	for _, job := range m.jobs {
		if job.State == domain.StatePending && !job.NextAttemptAt.After(now) {
			cp := *job
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].CreatedAt.Before(due[j].CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *JobStore) RequestCancel(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if job.State != domain.StateRunning {
		return domain.ErrStateConflict
	}
	job.CancelRequested = true
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *JobStore) ReclaimStale(ctx context.Context, lease time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-lease)
	touched := 0
	for _, job := range m.jobs {
		if job.State != domain.StateRunning || !job.UpdatedAt.Before(cutoff) {
			continue
		}
		if job.Attempt < job.MaxAttempts {
			job.State = domain.StatePending
			job.NextAttemptAt = time.Now().UTC()
		} else {
			job.State = domain.StateFailed
			job.ErrorCause = &domain.ErrorCause{
				Code:    domain.CodeRetriesExhausted,
				Message: "worker lease expired with no attempts remaining",
			}
		}
		job.UpdatedAt = time.Now().UTC()
		touched++
	}
	return touched, nil
}

func (m *JobStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[id]; !ok {
		return domain.ErrJobNotFound
	}
	delete(m.jobs, id)
	return nil
}

// Put seeds a job directly, bypassing Create (for test setup).
func (m *JobStore) Put(job *domain.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.jobs[job.ID] = &cp
}

// ---- ProductStore mock ----

var _ repository.ProductStore = (*ProductStore)(nil)

// ProductStore is an in-memory mock of repository.ProductStore.
type ProductStore struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product

	GetByIDFunc func(ctx context.Context, id uuid.UUID) (*domain.Product, error)
}

// NewProductStore creates a new in-memory product store.
func NewProductStore() *ProductStore {
	return &ProductStore{products: make(map[uuid.UUID]*domain.Product)}
}

// Put seeds a product.
func (m *ProductStore) Put(p *domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.products[p.ID] = &cp
}

func (m *ProductStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

// ---- IdempotencyStore mock ----

var _ repository.IdempotencyStore = (*IdempotencyStore)(nil)

// IdempotencyStore is an in-memory mock of repository.IdempotencyStore.
type IdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]uuid.UUID

	LookupFunc   func(ctx context.Context, ownerID uuid.UUID, key string) (uuid.UUID, bool, error)
	RememberFunc func(ctx context.Context, ownerID uuid.UUID, key string, jobID uuid.UUID) error
}

// NewIdempotencyStore creates a new in-memory idempotency store.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{keys: make(map[string]uuid.UUID)}
}

func (m *IdempotencyStore) Lookup(ctx context.Context, ownerID uuid.UUID, key string) (uuid.UUID, bool, error) {
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, ownerID, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.keys[ownerID.String()+":"+key]
	return id, ok, nil
}

func (m *IdempotencyStore) Remember(ctx context.Context, ownerID uuid.UUID, key string, jobID uuid.UUID) error {
	if m.RememberFunc != nil {
		return m.RememberFunc(ctx, ownerID, key, jobID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := ownerID.String() + ":" + key
	if _, exists := m.keys[k]; !exists {
		m.keys[k] = jobID
	}
	return nil
}
