package usecase

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeni5888/mayalens/internal/domain"
	"github.com/jeni5888/mayalens/internal/repository"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// ListJobsUsecase returns a caller's jobs, newest first.
type ListJobsUsecase struct {
	store  repository.JobStore
	logger *zap.Logger
}

// NewListJobsUsecase creates a new ListJobsUsecase.
func NewListJobsUsecase(store repository.JobStore, logger *zap.Logger) *ListJobsUsecase {
	return &ListJobsUsecase{store: store, logger: logger}
}

// ListQuery narrows and pages a listing. OwnerID is honored only for
// admin callers; everyone else sees their own jobs.
type ListQuery struct {
	State   *domain.JobState
	OwnerID *uuid.UUID
	Page    int
	Limit   int
}

// Execute lists jobs for the caller.
func (uc *ListJobsUsecase) Execute(ctx context.Context, caller domain.Caller, q ListQuery) (*domain.JobPage, error) {
	owner := caller.ID
	if q.OwnerID != nil {
		if caller.Role != domain.RoleAdmin {
			return nil, domain.ErrForbidden
		}
		owner = *q.OwnerID
	}

	page := repository.Page{Page: q.Page, Limit: q.Limit}
	if page.Page < 1 {
		page.Page = 1
	}
	if page.Limit < 1 {
		page.Limit = defaultPageLimit
	}
	if page.Limit > maxPageLimit {
		page.Limit = maxPageLimit
	}

	return uc.store.List(ctx, owner, repository.ListFilter{State: q.State}, page)
}
