package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrProductNotFound is returned when a referenced product does not exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrStateConflict is returned when a compare-and-swap transition finds
	// the job in a different state than expected. Workers racing for the
	// same job observe this and move on; the cancel endpoint surfaces it as
	// a 409 for already-terminal jobs.
	ErrStateConflict = errors.New("job state conflict")

	// ErrInvalidTransition is returned when a transition is requested along
	// an edge the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrForbidden is returned when the caller does not own the resource
	// and is not privileged.
	ErrForbidden = errors.New("caller does not own this resource")

	// ErrEmptyPrompt is returned when the prompt is empty.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrPromptTooLong is returned when the prompt exceeds the size limit.
	ErrPromptTooLong = errors.New("prompt exceeds maximum length (4000 characters)")

	// ErrInvalidStyle is returned when an unsupported style is submitted.
	ErrInvalidStyle = errors.New("invalid or unsupported style")

	// ErrInvalidFormat is returned when an unsupported output format is submitted.
	ErrInvalidFormat = errors.New("invalid or unsupported output format")

	// ErrNotRetryable is returned when a retry is requested for a job that
	// has not failed. Terminal records are never reopened; a retry creates
	// a new job referencing the old one.
	ErrNotRetryable = errors.New("only failed jobs can be retried")

	// ErrNotPurgeable is returned when a purge is requested for a job that
	// is still pending or running.
	ErrNotPurgeable = errors.New("only terminal jobs can be purged")

	// ErrProviderTransient marks a generation failure worth retrying:
	// timeouts, connection errors, provider 429/5xx.
	ErrProviderTransient = errors.New("transient provider error")

	// ErrProviderPermanent marks a generation failure that can never
	// succeed, e.g. a prompt rejected by the provider's policy filters.
	ErrProviderPermanent = errors.New("permanent provider error")

	// ErrStorageUnavailable is returned when the asset upload cannot
	// complete after the publisher's own bounded retry.
	ErrStorageUnavailable = errors.New("asset storage unavailable")
)
