package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeni5888/mayalens/internal/delivery/http/middleware"
	"github.com/jeni5888/mayalens/internal/domain"
	"github.com/jeni5888/mayalens/internal/usecase"
)

const idempotencyKeyHeader = "Idempotency-Key"

// JobHandler handles HTTP requests for generation jobs.
type JobHandler struct {
	submitUC *usecase.SubmitJobUsecase
	getUC    *usecase.GetJobUsecase
	listUC   *usecase.ListJobsUsecase
	cancelUC *usecase.CancelJobUsecase
	retryUC  *usecase.RetryJobUsecase
	purgeUC  *usecase.PurgeJobUsecase
	logger   *zap.Logger
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(
	submitUC *usecase.SubmitJobUsecase,
	getUC *usecase.GetJobUsecase,
	listUC *usecase.ListJobsUsecase,
	cancelUC *usecase.CancelJobUsecase,
	retryUC *usecase.RetryJobUsecase,
	purgeUC *usecase.PurgeJobUsecase,
	logger *zap.Logger,
) *JobHandler {
	return &JobHandler{
		submitUC: submitUC,
		getUC:    getUC,
		listUC:   listUC,
		cancelUC: cancelUC,
		retryUC:  retryUC,
		purgeUC:  purgeUC,
		logger:   logger,
	}
}

// Submit handles POST /api/v1/jobs
func (h *JobHandler) Submit(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing caller identity"})
		return
	}

	var req domain.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	resp, err := h.submitUC.Execute(c.Request.Context(), caller, &req, c.GetHeader(idempotencyKeyHeader))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyPrompt),
			errors.Is(err, domain.ErrPromptTooLong),
			errors.Is(err, domain.ErrInvalidStyle),
			errors.Is(err, domain.ErrInvalidFormat):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrProductNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Submit job failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

// GetByID handles GET /api/v1/jobs/:id
func (h *JobHandler) GetByID(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing caller identity"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return
	}

	job, err := h.getUC.Execute(c.Request.Context(), caller, id)
	if err != nil {
		h.renderJobError(c, err, id)
		return
	}

	c.JSON(http.StatusOK, job)
}

// List handles GET /api/v1/jobs
func (h *JobHandler) List(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing caller identity"})
		return
	}

	q := usecase.ListQuery{}
	if raw := c.Query("state"); raw != "" {
		state := domain.JobState(raw)
		if !state.IsTerminal() && state != domain.StatePending && state != domain.StateRunning {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid state filter"})
			return
		}
		q.State = &state
	}
	if raw := c.Query("owner_id"); raw != "" {
		owner, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid owner_id format"})
			return
		}
		q.OwnerID = &owner
	}
	q.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	q.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))

	page, err := h.listUC.Execute(c.Request.Context(), caller, q)
	if err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("List jobs failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, page)
}

// Cancel handles DELETE /api/v1/jobs/:id. With ?purge=true a terminal
// job's record and stored asset are removed instead.
func (h *JobHandler) Cancel(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing caller identity"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return
	}

	if c.Query("purge") == "true" {
		if err := h.purgeUC.Execute(c.Request.Context(), caller, id); err != nil {
			if errors.Is(err, domain.ErrNotPurgeable) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			h.renderJobError(c, err, id)
			return
		}
		c.JSON(http.StatusOK, gin.H{"job_id": id, "purged": true})
		return
	}

	job, err := h.cancelUC.Execute(c.Request.Context(), caller, id)
	if err != nil {
		if errors.Is(err, domain.ErrStateConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Job already finished"})
			return
		}
		h.renderJobError(c, err, id)
		return
	}

	c.JSON(http.StatusOK, job)
}

// Retry handles POST /api/v1/jobs/:id/retry
func (h *JobHandler) Retry(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing caller identity"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID format"})
		return
	}

	resp, err := h.retryUC.Execute(c.Request.Context(), caller, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotRetryable) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.renderJobError(c, err, id)
		return
	}

	c.JSON(http.StatusAccepted, resp)
}

func (h *JobHandler) renderJobError(c *gin.Context, err error, id uuid.UUID) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Job request failed", zap.Error(err), zap.String("job_id", id.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
