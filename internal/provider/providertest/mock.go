// Package providertest provides test doubles for provider.Adapter.
package providertest

import (
	"context"
	"slices"
	"sync"

	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/provider"
)

// MockAdapter is a configurable provider.Adapter. ReplyFunc controls the
// outcome; when nil every call answers Reply. Windows records the window of
// every call. Safe for concurrent use.
type MockAdapter struct {
	Backend   string
	Reply     string
	ReplyFunc func(ctx context.Context, window []conversation.Turn) (string, error)

	mu      sync.Mutex
	windows [][]conversation.Turn
}

var _ provider.Adapter = (*MockAdapter)(nil)

// Name implements provider.Adapter.
func (m *MockAdapter) Name() string {
	if m.Backend == "" {
		return "mock"
	}
	return m.Backend
}

// GenerateReply implements provider.Adapter.
func (m *MockAdapter) GenerateReply(ctx context.Context, window []conversation.Turn) (string, error) {
	m.mu.Lock()
	m.windows = append(m.windows, slices.Clone(window))
	m.mu.Unlock()

	if m.ReplyFunc != nil {
		return m.ReplyFunc(ctx, window)
	}
	return m.Reply, nil
}

// Calls returns the number of GenerateReply calls so far.
func (m *MockAdapter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// Window returns the window passed to the i-th call.
func (m *MockAdapter) Window(i int) []conversation.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.windows[i]
}

// Fail returns a ReplyFunc that always fails with err.
func Fail(err error) func(context.Context, []conversation.Turn) (string, error) {
	return func(context.Context, []conversation.Turn) (string, error) {
		return "", err
	}
}
