package platform

import (
	"context"
	"sync"
)

// MockClient is a configurable Client for tests. Unset functions
// succeed with zero values.
type MockClient struct {
	ProbeFunc          func(ctx context.Context, creds Credentials) error
	ListWatchlistsFunc func(ctx context.Context, creds Credentials) ([]Watchlist, error)
	RefreshFunc        func(ctx context.Context, creds Credentials) (bool, error)

	mu           sync.Mutex
	ProbeCalls   int
	ListCalls    int
	RefreshCalls int
}

// Probe calls ProbeFunc if set.
func (m *MockClient) Probe(ctx context.Context, creds Credentials) error {
	m.mu.Lock()
	m.ProbeCalls++
	m.mu.Unlock()

	if m.ProbeFunc != nil {
		return m.ProbeFunc(ctx, creds)
	}
	return nil
}

// ListWatchlists calls ListWatchlistsFunc if set.
func (m *MockClient) ListWatchlists(ctx context.Context, creds Credentials) ([]Watchlist, error) {
	m.mu.Lock()
	m.ListCalls++
	m.mu.Unlock()

	if m.ListWatchlistsFunc != nil {
		return m.ListWatchlistsFunc(ctx, creds)
	}
	return nil, nil
}

// Refresh calls RefreshFunc if set.
func (m *MockClient) Refresh(ctx context.Context, creds Credentials) (bool, error) {
	m.mu.Lock()
	m.RefreshCalls++
	m.mu.Unlock()

	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, creds)
	}
	return true, nil
}
