package mock

import (
	"context"
	"sync"

	"github.com/jeni5888/mayalens/internal/generation"
)

var _ generation.Client = (*Client)(nil)

// Client is a test double for generation.Client.
type Client struct {
	mu sync.Mutex

	GenerateFn func(ctx context.Context, req generation.Request) (*generation.Asset, error)

	GenerateCalls []generation.Request
}

func (m *Client) Generate(ctx context.Context, req generation.Request) (*generation.Asset, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, req)
	m.mu.Unlock()
	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, req)
	}
	return &generation.Asset{
		Data:        []byte("fake-image-bytes"),
		ContentType: "image/png",
		Width:       1024,
		Height:      1024,
	}, nil
}
