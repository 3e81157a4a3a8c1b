// Package platform defines the external trading platforms and the
// client capability used to probe, list, and refresh sessions against
// them, plus a cookie-authenticated HTTP implementation.
package platform

import (
	"context"
	"fmt"
)

// Platform identifies one of the integrated external services.
type Platform string

const (
	// MarketInOut is the ASP-based screener platform.
	MarketInOut Platform = "marketinout"
	// TradingView is the charting platform.
	TradingView Platform = "tradingview"
	// Unknown tags errors that cannot be attributed to a platform.
	Unknown Platform = "unknown"
)

// Parse maps a stored platform name to a Platform, defaulting to Unknown.
func Parse(name string) Platform {
	switch Platform(name) {
	case MarketInOut, TradingView:
		return Platform(name)
	default:
		return Unknown
	}
}

// Credentials is the session material a client needs to act on a
// platform: the primary session token plus any captured cookies.
type Credentials struct {
	SessionID string
	Cookies   map[string]string
}

// Watchlist is one watchlist visible to the session's user.
type Watchlist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client is the per-platform capability consumed by the health monitor
// and the validator. Implementations perform real HTTP calls and must
// honor ctx cancellation; failures surface as *HTTPError when an HTTP
// status is known, plain errors otherwise.
type Client interface {
	// Probe performs a lightweight liveness check of the session.
	Probe(ctx context.Context, creds Credentials) error

	// ListWatchlists fetches the watchlists visible to the session.
	ListWatchlists(ctx context.Context, creds Credentials) ([]Watchlist, error)

	// Refresh attempts to renew the session in place. Returns false when
	// the platform offers no refresh for this session.
	Refresh(ctx context.Context, creds Credentials) (bool, error)
}

// HTTPError is a platform failure carrying an HTTP status, allowing the
// error engine to classify it without string matching alone.
type HTTPError struct {
	Status  int
	URL     string
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("platform: http %d from %s", e.Status, e.URL)
	}
	return fmt.Sprintf("platform: http %d from %s: %s", e.Status, e.URL, e.Message)
}

// Registry maps platforms to their clients. It is populated once at
// startup and read-only afterwards.
type Registry struct {
	clients map[Platform]Client
}

// NewRegistry creates an empty client registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[Platform]Client)}
}

// Register binds a client to a platform, replacing any previous binding.
func (r *Registry) Register(p Platform, c Client) {
	r.clients[p] = c
}

// Client returns the client for a platform, or an error when none is
// registered.
func (r *Registry) Client(p Platform) (Client, error) {
	c, ok := r.clients[p]
	if !ok {
		return nil, fmt.Errorf("platform: no client registered for %q", p)
	}
	return c, nil
}

// Platforms returns all platforms with a registered client.
func (r *Registry) Platforms() []Platform {
	platforms := make([]Platform, 0, len(r.clients))
	for p := range r.clients {
		platforms = append(platforms, p)
	}
	return platforms
}
