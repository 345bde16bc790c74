package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeni5888/mayalens/internal/domain"
	mockev "github.com/jeni5888/mayalens/internal/events/mock"
	"github.com/jeni5888/mayalens/internal/generation"
	mockgen "github.com/jeni5888/mayalens/internal/generation/mock"
	mockrepo "github.com/jeni5888/mayalens/internal/repository/mock"
	"github.com/jeni5888/mayalens/internal/results"
	mockstore "github.com/jeni5888/mayalens/internal/storage/mock"
)

type processFixture struct {
	store  *mockrepo.JobStore
	client *mockgen.Client
	assets *mockstore.ObjectStore
	events *mockev.Publisher
	uc     *ProcessJobUsecase
}

func newProcessFixture() *processFixture {
	f := &processFixture{
		store:  mockrepo.NewJobStore(),
		client: &mockgen.Client{},
		assets: mockstore.NewObjectStore(),
		events: mockev.NewPublisher(),
	}
	logger := zap.NewNop()
	f.uc = NewProcessJobUsecase(
		f.store,
		f.client,
		results.NewPublisher(f.assets, logger),
		f.events,
		10*time.Millisecond,
		80*time.Millisecond,
		logger,
	)
	return f
}

func (f *processFixture) seedPending(maxAttempts int) *domain.Job {
	id, _ := uuid.NewV7()
	job := &domain.Job{
		ID:            id,
		OwnerID:       uuid.New(),
		Prompt:        "white sneaker on a marble table",
		Style:         domain.StyleStudio,
		Format:        domain.FormatPNG,
		State:         domain.StatePending,
		MaxAttempts:   maxAttempts,
		NextAttemptAt: time.Now().UTC(),
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	f.store.Put(job)
	return job
}

func TestProcessJob_SuccessFirstAttempt(t *testing.T) {
	f := newProcessFixture()
	job := f.seedPending(3)

	outcome, err := f.uc.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeCompleted {
		t.Fatalf("expected completed, got %s", outcome)
	}

	got, _ := f.store.GetByID(context.Background(), job.ID)
	if got.State != domain.StateCompleted {
		t.Errorf("expected COMPLETED, got %s", got.State)
	}
	if got.Attempt != 1 {
		t.Errorf("expected attempt 1, got %d", got.Attempt)
	}
	if got.ResultAsset == nil || got.ResultAsset.Key != results.AssetKey(got) {
		t.Errorf("expected result asset at %s, got %+v", results.AssetKey(got), got.ResultAsset)
	}
	if !f.assets.Has(results.AssetKey(got)) {
		t.Error("expected asset stored in object store")
	}

	evs := f.events.Events()
	if len(evs) != 1 || evs[0].Event != "job.completed" {
		t.Errorf("expected one job.completed event, got %+v", evs)
	}
}

func TestProcessJob_TransientTwiceThenSuccess(t *testing.T) {
	f := newProcessFixture()
	job := f.seedPending(3)

	var calls int
	f.client.GenerateFn = func(ctx context.Context, req generation.Request) (*generation.Asset, error) {
		calls++
		if calls <= 2 {
			return nil, fmt.Errorf("%w: connection reset", domain.ErrProviderTransient)
		}
		return &generation.Asset{Data: []byte("img"), ContentType: "image/png"}, nil
	}

	for i, want := range []Outcome{OutcomeRequeued, OutcomeRequeued, OutcomeCompleted} {
		outcome, err := f.uc.Execute(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("attempt %d: unexpected error: %v", i+1, err)
		}
		if outcome != want {
			t.Fatalf("attempt %d: expected %s, got %s", i+1, want, outcome)
		}
	}

	got, _ := f.store.GetByID(context.Background(), job.ID)
	if got.State != domain.StateCompleted {
		t.Errorf("expected COMPLETED, got %s", got.State)
	}
	if got.Attempt != 3 {
		t.Errorf("expected attempt 3, got %d", got.Attempt)
	}
}

func TestProcessJob_TransientExhaustsAttempts(t *testing.T) {
	f := newProcessFixture()
	job := f.seedPending(2)

	f.client.GenerateFn = func(ctx context.Context, req generation.Request) (*generation.Asset, error) {
		return nil, fmt.Errorf("%w: 503 from provider", domain.ErrProviderTransient)
	}

	if outcome, _ := f.uc.Execute(context.Background(), job.ID); outcome != OutcomeRequeued {
		t.Fatalf("expected requeued, got %s", outcome)
	}
	outcome, err := f.uc.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}

	got, _ := f.store.GetByID(context.Background(), job.ID)
	if got.State != domain.StateFailed {
		t.Errorf("expected FAILED, got %s", got.State)
	}
	if got.Attempt != got.MaxAttempts {
		t.Errorf("attempt %d must equal max attempts %d", got.Attempt, got.MaxAttempts)
	}
	if got.ErrorCause == nil || got.ErrorCause.Code != domain.CodeRetriesExhausted {
		t.Errorf("expected cause RETRIES_EXHAUSTED, got %+v", got.ErrorCause)
	}
}

func TestProcessJob_PermanentFailsImmediately(t *testing.T) {
	f := newProcessFixture()
	job := f.seedPending(3)

	f.client.GenerateFn = func(ctx context.Context, req generation.Request) (*generation.Asset, error) {
		return nil, fmt.Errorf("%w: prompt violates content policy", domain.ErrProviderPermanent)
	}

	outcome, err := f.uc.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}

	got, _ := f.store.GetByID(context.Background(), job.ID)
	if got.Attempt != 1 {
		t.Errorf("permanent rejection must not retry, attempt=%d", got.Attempt)
	}
	if got.ErrorCause == nil || got.ErrorCause.Code != domain.CodeProviderRejected {
		t.Errorf("expected cause PROVIDER_REJECTED, got %+v", got.ErrorCause)
	}
}

func TestProcessJob_ClaimRace(t *testing.T) {
	f := newProcessFixture()
	job := f.seedPending(3)

	f.client.GenerateFn = func(ctx context.Context, req generation.Request) (*generation.Asset, error) {
		time.Sleep(50 * time.Millisecond)
		return &generation.Asset{Data: []byte("img"), ContentType: "image/png"}, nil
	}

	outcomes := make([]Outcome, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := f.uc.Execute(context.Background(), job.ID)
			if err != nil {
				t.Errorf("worker %d: unexpected error: %v", i, err)
			}
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	completed, skipped := 0, 0
	for _, o := range outcomes {
		switch o {
		case OutcomeCompleted:
			completed++
		case OutcomeSkipped:
			skipped++
		}
	}
	if completed != 1 || skipped != 1 {
		t.Errorf("expected exactly one winner and one skip, got %v", outcomes)
	}

	got, _ := f.store.GetByID(context.Background(), job.ID)
	if got.Attempt != 1 {
		t.Errorf("losing claim must not burn an attempt, attempt=%d", got.Attempt)
	}
	if len(f.client.GenerateCalls) != 1 {
		t.Errorf("expected exactly one provider call, got %d", len(f.client.GenerateCalls))
	}
}

func TestProcessJob_StorageFailureExhaustsAttempts(t *testing.T) {
	f := newProcessFixture()
	job := f.seedPending(1)

	f.assets.PutFn = func(ctx context.Context, key string, data []byte, contentType string) (string, error) {
		return "", errors.New("bucket unavailable")
	}

	outcome, err := f.uc.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}

	got, _ := f.store.GetByID(context.Background(), job.ID)
	if got.ErrorCause == nil || got.ErrorCause.Code != domain.CodeStorageFailure {
		t.Errorf("expected cause STORAGE_FAILURE, got %+v", got.ErrorCause)
	}
}

func TestProcessJob_StorageFailureRequeuesWhileAttemptsRemain(t *testing.T) {
	f := newProcessFixture()
	job := f.seedPending(3)

	f.assets.PutFn = func(ctx context.Context, key string, data []byte, contentType string) (string, error) {
		return "", errors.New("bucket unavailable")
	}

	outcome, err := f.uc.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeRequeued {
		t.Fatalf("expected requeued, got %s", outcome)
	}

	got, _ := f.store.GetByID(context.Background(), job.ID)
	if got.State != domain.StatePending {
		t.Errorf("expected PENDING, got %s", got.State)
	}
}

func TestProcessJob_CancelFlagHonoredAfterClaim(t *testing.T) {
	f := newProcessFixture()
	job := f.seedPending(3)
	job.CancelRequested = true
	f.store.Put(job)

	outcome, err := f.uc.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}

	got, _ := f.store.GetByID(context.Background(), job.ID)
	if got.ErrorCause == nil || got.ErrorCause.Code != domain.CodeCancelled {
		t.Errorf("expected cause CANCELLED, got %+v", got.ErrorCause)
	}
	if len(f.client.GenerateCalls) != 0 {
		t.Error("cancelled job must not reach the provider")
	}
}

func TestProcessJob_CancelDuringAttemptStopsRetry(t *testing.T) {
	f := newProcessFixture()
	job := f.seedPending(3)

	// The cancel arrives mid-attempt; the in-flight attempt still fails
	// transiently but the retry must not happen.
	f.client.GenerateFn = func(ctx context.Context, req generation.Request) (*generation.Asset, error) {
		if err := f.store.RequestCancel(ctx, job.ID); err != nil {
			t.Errorf("request cancel: %v", err)
		}
		return nil, fmt.Errorf("%w: timeout", domain.ErrProviderTransient)
	}

	outcome, err := f.uc.Execute(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", outcome)
	}

	got, _ := f.store.GetByID(context.Background(), job.ID)
	if got.ErrorCause == nil || got.ErrorCause.Code != domain.CodeCancelled {
		t.Errorf("expected cause CANCELLED, got %+v", got.ErrorCause)
	}
	if got.Attempt != 1 {
		t.Errorf("expected no further attempts after cancel, attempt=%d", got.Attempt)
	}
}

func TestProcessJob_BackoffDoublesAndCaps(t *testing.T) {
	f := newProcessFixture()

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 10 * time.Millisecond},
		{1, 20 * time.Millisecond},
		{2, 40 * time.Millisecond},
		{3, 80 * time.Millisecond},
		{4, 80 * time.Millisecond}, // capped
		{10, 80 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := f.uc.backoff(tc.attempt); got != tc.want {
			t.Errorf("backoff(%d): expected %s, got %s", tc.attempt, tc.want, got)
		}
	}
}

func TestProcessJob_MissingJobSkips(t *testing.T) {
	f := newProcessFixture()

	outcome, err := f.uc.Execute(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Errorf("expected skipped, got %s", outcome)
	}
}
