package mock

import (
	"context"
	"sync"

	"github.com/jeni5888/mayalens/internal/domain"
	"github.com/jeni5888/mayalens/internal/events"
)

var _ events.Publisher = (*Publisher)(nil)

// Publisher is a mock event publisher for testing.
type Publisher struct {
	mu        sync.Mutex
	PublishFn func(ctx context.Context, event events.Event, job *domain.Job) error

	Published []PublishedEvent
}

// PublishedEvent records one Publish invocation.
type PublishedEvent struct {
	Event events.Event
	Job   *domain.Job
}

// NewPublisher creates a new mock publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

func (m *Publisher) Publish(ctx context.Context, event events.Event, job *domain.Job) error {
	if m.PublishFn != nil {
		return m.PublishFn(ctx, event, job)
	}
	m.mu.Lock()
	m.Published = append(m.Published, PublishedEvent{Event: event, Job: job})
	m.mu.Unlock()
	return nil
}

func (m *Publisher) Close() error {
	return nil
}

// Events returns the events published so far (for test assertions).
func (m *Publisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedEvent, len(m.Published))
	copy(out, m.Published)
	return out
}
