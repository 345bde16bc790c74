package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobState represents the lifecycle state of a generation job.
type JobState string

const (
	StatePending   JobState = "PENDING"
	StateRunning   JobState = "RUNNING"
	StateCompleted JobState = "COMPLETED"
	StateFailed    JobState = "FAILED"
)

// IsTerminal returns true if the state represents a final state.
func (s JobState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether the edge from s to next is a legal
// state-machine transition. RUNNING → PENDING is the retry loop edge;
// PENDING → FAILED covers cancellation before a worker claims the job.
func (s JobState) CanTransition(next JobState) bool {
	switch s {
	case StatePending:
		return next == StateRunning || next == StateFailed
	case StateRunning:
		return next == StatePending || next == StateCompleted || next == StateFailed
	}
	return false
}

// FailureCode is a machine-readable reason for a FAILED job.
type FailureCode string

const (
	CodeRetriesExhausted FailureCode = "RETRIES_EXHAUSTED"
	CodeProviderRejected FailureCode = "PROVIDER_REJECTED"
	CodeStorageFailure   FailureCode = "STORAGE_FAILURE"
	CodeCancelled        FailureCode = "CANCELLED"
)

// ErrorCause records why a job failed: a stable code for UI branching plus
// a human-readable message.
type ErrorCause struct {
	Code    FailureCode `json:"code"`
	Message string      `json:"message"`
}

// Style represents a supported marketing image style.
type Style string

const (
	StyleStudio    Style = "studio"
	StyleLifestyle Style = "lifestyle"
	StyleMinimal   Style = "minimal"
	StyleFestive   Style = "festive"
)

// IsValid checks if the style is supported.
func (s Style) IsValid() bool {
	return s == StyleStudio || s == StyleLifestyle || s == StyleMinimal || s == StyleFestive
}

// Format represents a supported output image format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// IsValid checks if the format is supported.
func (f Format) IsValid() bool {
	return f == FormatPNG || f == FormatJPEG || f == FormatWebP
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}

// Extension returns the file extension (with dot) for the format.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatWebP:
		return ".webp"
	default:
		return ".png"
	}
}

// AssetRef points to a stored generation result.
type AssetRef struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
}

// Job represents one request to turn a product photo into a styled
// marketing image, throughout its lifecycle. Prompt, style, format and the
// owning references are immutable after creation; only the scheduler and
// the result publisher move the state forward.
type Job struct {
	ID              uuid.UUID   `json:"job_id"`
	OwnerID         uuid.UUID   `json:"owner_id"`
	ProductID       *uuid.UUID  `json:"product_id,omitempty"`
	Prompt          string      `json:"prompt"`
	Style           Style       `json:"style"`
	Format          Format      `json:"format"`
	State           JobState    `json:"state"`
	Attempt         int         `json:"attempt"`
	MaxAttempts     int         `json:"max_attempts"`
	CancelRequested bool        `json:"cancel_requested,omitempty"`
	ResultAsset     *AssetRef   `json:"result_asset,omitempty"`
	ErrorCause      *ErrorCause `json:"error_cause,omitempty"`
	RetryOf         *uuid.UUID  `json:"retry_of,omitempty"`
	NextAttemptAt   time.Time   `json:"next_attempt_at"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Product is the subject of a generation job. Only the fields the engine
// needs for the ownership check at submission time.
type Product struct {
	ID      uuid.UUID `json:"product_id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Name    string    `json:"name"`
}

// Role is the caller's authorization level, supplied by the upstream
// authentication gateway.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Caller identifies the authenticated principal behind a request.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

// CanAccess is the single authorization check used by every job route:
// owners see their own jobs, admins see everything.
func (c Caller) CanAccess(ownerID uuid.UUID) bool {
	return c.Role == RoleAdmin || c.ID == ownerID
}

// SubmitRequest represents an incoming generation request from the API.
type SubmitRequest struct {
	ProductID *uuid.UUID `json:"product_id,omitempty"`
	Prompt    string     `json:"prompt" binding:"required"`
	Style     Style      `json:"style" binding:"required"`
	Format    Format     `json:"format"`
}

// SubmitResponse is returned after a successful submission.
type SubmitResponse struct {
	JobID uuid.UUID `json:"job_id"`
	State JobState  `json:"state"`
}

// JobPage is one page of a job listing.
type JobPage struct {
	Jobs  []*Job `json:"jobs"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}
