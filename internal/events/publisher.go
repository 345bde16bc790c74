package events

import (
	"context"

	"github.com/jeni5888/mayalens/internal/domain"
)

// Event names double as AMQP routing keys.
type Event string

const (
	JobSubmitted Event = "job.submitted"
	JobCompleted Event = "job.completed"
	JobFailed    Event = "job.failed"
)

// TerminalEvent maps a terminal job state to its event.
func TerminalEvent(state domain.JobState) (Event, bool) {
	switch state {
	case domain.StateCompleted:
		return JobCompleted, true
	case domain.StateFailed:
		return JobFailed, true
	}
	return "", false
}

// Publisher emits job lifecycle events for downstream consumers (webhooks,
// analytics). Publishing is best-effort: a broker outage must never fail
// the job pipeline itself.
type Publisher interface {
	Publish(ctx context.Context, event Event, job *domain.Job) error
	Close() error
}
