package notion

import (
	"context"
	"sync"
)

// Handle owns the process-wide Client. It is created once at service start
// and passed to the components that talk to Notion; the Client itself is
// built on first use so that a missing token surfaces on the call that needs
// it rather than at startup. A failed build is not cached.
type Handle struct {
	config Config

	mu     sync.Mutex
	client *Client
}

func NewHandle(config Config) *Handle {
	return &Handle{config: config}
}

// Client returns the shared client, building it on first use.
func (h *Handle) Client() (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client != nil {
		return h.client, nil
	}
	client, err := NewClient(h.config)
	if err != nil {
		return nil, err
	}
	h.client = client
	return client, nil
}

func (h *Handle) QueryDatabase(ctx context.Context, databaseID string, query DatabaseQuery) ([]Page, error) {
	client, err := h.Client()
	if err != nil {
		return nil, err
	}
	return client.QueryDatabase(ctx, databaseID, query)
}

func (h *Handle) QueryDatabasePage(ctx context.Context, databaseID string, query DatabaseQuery) ([]Page, string, error) {
	client, err := h.Client()
	if err != nil {
		return nil, "", err
	}
	return client.QueryDatabasePage(ctx, databaseID, query)
}

func (h *Handle) RetrievePage(ctx context.Context, pageID string) (Page, error) {
	client, err := h.Client()
	if err != nil {
		return Page{}, err
	}
	return client.RetrievePage(ctx, pageID)
}

func (h *Handle) CreatePage(ctx context.Context, databaseID string, properties Properties) (Page, error) {
	client, err := h.Client()
	if err != nil {
		return Page{}, err
	}
	return client.CreatePage(ctx, databaseID, properties)
}

func (h *Handle) UpdatePage(ctx context.Context, pageID string, properties Properties) (Page, error) {
	client, err := h.Client()
	if err != nil {
		return Page{}, err
	}
	return client.UpdatePage(ctx, pageID, properties)
}

func (h *Handle) ListUsers(ctx context.Context) ([]User, error) {
	client, err := h.Client()
	if err != nil {
		return nil, err
	}
	return client.ListUsers(ctx)
}
