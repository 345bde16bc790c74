package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeni5888/mayalens/internal/domain"
	mockev "github.com/jeni5888/mayalens/internal/events/mock"
	mockrepo "github.com/jeni5888/mayalens/internal/repository/mock"
	mockstore "github.com/jeni5888/mayalens/internal/storage/mock"
	"github.com/jeni5888/mayalens/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
	store  *mockrepo.JobStore
	assets *mockstore.ObjectStore
	events *mockev.Publisher
}

func setupTestRouter() *testEnv {
	store := mockrepo.NewJobStore()
	products := mockrepo.NewProductStore()
	assets := mockstore.NewObjectStore()
	pub := mockev.NewPublisher()
	logger := zap.NewNop()

	handler := NewJobHandler(
		usecase.NewSubmitJobUsecase(store, products, mockrepo.NewIdempotencyStore(), pub, 3, logger),
		usecase.NewGetJobUsecase(store, logger),
		usecase.NewListJobsUsecase(store, logger),
		usecase.NewCancelJobUsecase(store, pub, logger),
		usecase.NewRetryJobUsecase(store, pub, 3, logger),
		usecase.NewPurgeJobUsecase(store, assets, logger),
		logger,
	)

	router := NewRouter(RouterDeps{
		Jobs:            handler,
		Health:          NewHealthHandler(nil, nil, logger),
		Stream:          NewWebSocketHandler(usecase.NewGetJobUsecase(store, logger), logger),
		Logger:          logger,
		RateLimitPerMin: 1000,
		MaxBodyBytes:    1 << 20,
	})

	return &testEnv{router: router, store: store, assets: assets, events: pub}
}

func (e *testEnv) do(t *testing.T, method, path string, caller *domain.Caller, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		req.Header.Set("X-User-ID", caller.ID.String())
		req.Header.Set("X-User-Role", string(caller.Role))
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seedJob(owner uuid.UUID, state domain.JobState) *domain.Job {
	id, _ := uuid.NewV7()
	job := &domain.Job{
		ID:            id,
		OwnerID:       owner,
		Prompt:        "white sneaker on a marble table",
		Style:         domain.StyleStudio,
		Format:        domain.FormatPNG,
		State:         state,
		MaxAttempts:   3,
		NextAttemptAt: time.Now().UTC(),
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	e.store.Put(job)
	return job
}

func TestSubmitHandler_Success(t *testing.T) {
	env := setupTestRouter()
	caller := domain.Caller{ID: uuid.New(), Role: domain.RoleUser}

	w := env.do(t, http.MethodPost, "/api/v1/jobs", &caller, map[string]any{
		"prompt": "white sneaker on a marble table",
		"style":  "studio",
	})

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp domain.SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.State != domain.StatePending {
		t.Errorf("expected state PENDING, got %s", resp.State)
	}
	if len(env.events.Events()) != 1 {
		t.Errorf("expected 1 published event, got %d", len(env.events.Events()))
	}
}

func TestSubmitHandler_MissingIdentity(t *testing.T) {
	env := setupTestRouter()

	w := env.do(t, http.MethodPost, "/api/v1/jobs", nil, map[string]any{
		"prompt": "a mug",
		"style":  "studio",
	})

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitHandler_InvalidStyle(t *testing.T) {
	env := setupTestRouter()
	caller := domain.Caller{ID: uuid.New(), Role: domain.RoleUser}

	w := env.do(t, http.MethodPost, "/api/v1/jobs", &caller, map[string]any{
		"prompt": "a mug",
		"style":  "vaporwave",
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSubmitHandler_EmptyBody(t *testing.T) {
	env := setupTestRouter()
	caller := domain.Caller{ID: uuid.New(), Role: domain.RoleUser}

	w := env.do(t, http.MethodPost, "/api/v1/jobs", &caller, map[string]any{})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetHandler_OwnerAndStranger(t *testing.T) {
	env := setupTestRouter()
	owner := uuid.New()
	job := env.seedJob(owner, domain.StateCompleted)

	w := env.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID.String(), &domain.Caller{ID: owner, Role: domain.RoleUser}, nil)
	if w.Code != http.StatusOK {
		t.Errorf("owner read: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID.String(), &domain.Caller{ID: uuid.New(), Role: domain.RoleUser}, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("stranger read: expected 403, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID.String(), &domain.Caller{ID: uuid.New(), Role: domain.RoleAdmin}, nil)
	if w.Code != http.StatusOK {
		t.Errorf("admin read: expected 200, got %d", w.Code)
	}
}

func TestGetHandler_NotFoundAndBadID(t *testing.T) {
	env := setupTestRouter()
	caller := domain.Caller{ID: uuid.New(), Role: domain.RoleUser}

	w := env.do(t, http.MethodGet, "/api/v1/jobs/"+uuid.NewString(), &caller, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/jobs/not-a-uuid", &caller, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestListHandler_FiltersByState(t *testing.T) {
	env := setupTestRouter()
	owner := uuid.New()
	env.seedJob(owner, domain.StatePending)
	env.seedJob(owner, domain.StateFailed)

	w := env.do(t, http.MethodGet, "/api/v1/jobs?state=FAILED", &domain.Caller{ID: owner, Role: domain.RoleUser}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var page domain.JobPage
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to unmarshal page: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("expected 1 failed job, got %d", page.Total)
	}

	w = env.do(t, http.MethodGet, "/api/v1/jobs?state=SLEEPING", &domain.Caller{ID: owner, Role: domain.RoleUser}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bogus state, got %d", w.Code)
	}
}

func TestCancelHandler_Pending(t *testing.T) {
	env := setupTestRouter()
	owner := uuid.New()
	job := env.seedJob(owner, domain.StatePending)

	w := env.do(t, http.MethodDelete, "/api/v1/jobs/"+job.ID.String(), &domain.Caller{ID: owner, Role: domain.RoleUser}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var got domain.Job
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal job: %v", err)
	}
	if got.State != domain.StateFailed || got.ErrorCause == nil || got.ErrorCause.Code != domain.CodeCancelled {
		t.Errorf("expected FAILED/CANCELLED, got %s %+v", got.State, got.ErrorCause)
	}
}

func TestCancelHandler_TerminalConflicts(t *testing.T) {
	env := setupTestRouter()
	owner := uuid.New()
	job := env.seedJob(owner, domain.StateCompleted)

	w := env.do(t, http.MethodDelete, "/api/v1/jobs/"+job.ID.String(), &domain.Caller{ID: owner, Role: domain.RoleUser}, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCancelHandler_PurgeTerminal(t *testing.T) {
	env := setupTestRouter()
	owner := uuid.New()
	job := env.seedJob(owner, domain.StateCompleted)

	w := env.do(t, http.MethodDelete, "/api/v1/jobs/"+job.ID.String()+"?purge=true", &domain.Caller{ID: owner, Role: domain.RoleUser}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID.String(), &domain.Caller{ID: owner, Role: domain.RoleUser}, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after purge, got %d", w.Code)
	}
}

func TestCancelHandler_PurgeRunningConflicts(t *testing.T) {
	env := setupTestRouter()
	owner := uuid.New()
	job := env.seedJob(owner, domain.StateRunning)

	w := env.do(t, http.MethodDelete, "/api/v1/jobs/"+job.ID.String()+"?purge=true", &domain.Caller{ID: owner, Role: domain.RoleUser}, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRetryHandler_Failed(t *testing.T) {
	env := setupTestRouter()
	owner := uuid.New()
	job := env.seedJob(owner, domain.StateFailed)

	w := env.do(t, http.MethodPost, "/api/v1/jobs/"+job.ID.String()+"/retry", &domain.Caller{ID: owner, Role: domain.RoleUser}, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp domain.SubmitResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.JobID == job.ID {
		t.Error("retry must return a new job id")
	}
}

func TestRetryHandler_CompletedConflicts(t *testing.T) {
	env := setupTestRouter()
	owner := uuid.New()
	job := env.seedJob(owner, domain.StateCompleted)

	w := env.do(t, http.MethodPost, "/api/v1/jobs/"+job.ID.String()+"/retry", &domain.Caller{ID: owner, Role: domain.RoleUser}, nil)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHealthHandler_OK(t *testing.T) {
	env := setupTestRouter()

	w := env.do(t, http.MethodGet, "/api/v1/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}
