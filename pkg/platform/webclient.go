package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Endpoints describes the URLs a WebClient talks to on one platform.
type Endpoints struct {
	// Probe is fetched for lightweight health checks.
	Probe string

	// Watchlists returns the account's watchlists as JSON
	// ([{"id": ..., "name": ...}, ...] or {"watchlists": [...]}).
	Watchlists string

	// Refresh is fetched to extend the session's lifetime. Empty means
	// the platform has no keepalive endpoint and Refresh reports false.
	Refresh string
}

// WebClient implements Client over plain HTTP using the captured
// session cookies. Authentication state is judged by status code only;
// platforms that soft-fail with a login page behind a 200 need a
// smarter client.
type WebClient struct {
	platform  Platform
	endpoints Endpoints
	httpc     *http.Client
}

const defaultWebTimeout = 30 * time.Second

// NewWebClient creates a cookie-authenticated client for a platform.
// httpc may be nil, selecting a default client with a 30s timeout.
func NewWebClient(p Platform, endpoints Endpoints, httpc *http.Client) *WebClient {
	if httpc == nil {
		httpc = &http.Client{
			Timeout: defaultWebTimeout,
			// Login redirects must surface as auth failures, not be followed
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &WebClient{platform: p, endpoints: endpoints, httpc: httpc}
}

// NewMarketInOutClient creates a client for marketinout.com.
func NewMarketInOutClient(httpc *http.Client) *WebClient {
	return NewWebClient(MarketInOut, Endpoints{
		Probe:      "https://www.marketinout.com/wl/watch_list.php?mode=api",
		Watchlists: "https://www.marketinout.com/wl/api/watch_lists",
		Refresh:    "https://www.marketinout.com/wl/watch_list.php?mode=api",
	}, httpc)
}

// NewTradingViewClient creates a client for tradingview.com.
func NewTradingViewClient(httpc *http.Client) *WebClient {
	return NewWebClient(TradingView, Endpoints{
		Probe:      "https://www.tradingview.com/api/v1/symbols_list/all/",
		Watchlists: "https://www.tradingview.com/api/v1/symbols_list/all/",
	}, httpc)
}

func (c *WebClient) get(ctx context.Context, url string, creds Credentials) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("platform: build request: %w", err)
	}

	for name, value := range creds.Cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 || isLoginRedirect(resp) {
		defer resp.Body.Close()
		status := resp.StatusCode
		if isLoginRedirect(resp) {
			status = http.StatusUnauthorized
		}
		return nil, &HTTPError{
			Status:  status,
			URL:     url,
			Message: resp.Status,
		}
	}

	return resp, nil
}

// isLoginRedirect recognizes a redirect toward a login page as an
// authentication failure.
func isLoginRedirect(resp *http.Response) bool {
	return resp.StatusCode >= 300 && resp.StatusCode < 400
}

// Probe fetches the probe endpoint and reports reachability.
func (c *WebClient) Probe(ctx context.Context, creds Credentials) error {
	resp, err := c.get(ctx, c.endpoints.Probe, creds)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return nil
}

// ListWatchlists fetches and decodes the watchlists endpoint. Both a
// bare array and a {"watchlists": [...]} wrapper are accepted.
func (c *WebClient) ListWatchlists(ctx context.Context, creds Credentials) ([]Watchlist, error) {
	resp, err := c.get(ctx, c.endpoints.Watchlists, creds)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("platform: read watchlists: %w", err)
	}

	var lists []Watchlist
	if err := json.Unmarshal(data, &lists); err == nil {
		return lists, nil
	}

	var wrapped struct {
		Watchlists []Watchlist `json:"watchlists"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("platform: decode %s watchlists: %w", c.platform, err)
	}
	return wrapped.Watchlists, nil
}

// Refresh hits the keepalive endpoint if the platform has one.
func (c *WebClient) Refresh(ctx context.Context, creds Credentials) (bool, error) {
	if c.endpoints.Refresh == "" {
		return false, nil
	}

	resp, err := c.get(ctx, c.endpoints.Refresh, creds)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return true, nil
}
