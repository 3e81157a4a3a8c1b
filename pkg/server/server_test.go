package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbridge/watchsync/pkg/config"
	"github.com/finbridge/watchsync/pkg/health"
	"github.com/finbridge/watchsync/pkg/kvs"
	"github.com/finbridge/watchsync/pkg/logging"
	"github.com/finbridge/watchsync/pkg/platform"
	"github.com/finbridge/watchsync/pkg/sessionerrors"
	"github.com/finbridge/watchsync/pkg/sessionstore"
	"github.com/finbridge/watchsync/pkg/validator"
)

type testServer struct {
	server  *Server
	store   *sessionstore.Store
	monitor *health.Monitor
	mio     *platform.MockClient
	tv      *platform.MockClient
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	backend := kvs.NewMemoryStore(kvs.MemoryConfig{CleanupInterval: time.Hour})
	t.Cleanup(func() { backend.Close() })

	logger := logging.NewTestLogger()
	store := sessionstore.New(backend, logger)
	t.Cleanup(store.Close)

	registry := platform.NewRegistry()
	mio := &platform.MockClient{
		ListWatchlistsFunc: func(ctx context.Context, creds platform.Credentials) ([]platform.Watchlist, error) {
			return []platform.Watchlist{{ID: "1", Name: "Tech"}}, nil
		},
	}
	tv := &platform.MockClient{}
	registry.Register(platform.MarketInOut, mio)
	registry.Register(platform.TradingView, tv)

	monitor := health.NewMonitor(store, registry, health.Config{Interval: time.Hour}, logger)
	t.Cleanup(monitor.Close)

	errlog := sessionerrors.NewLog(64, logger, nil)
	val := validator.New(store, monitor, registry, errlog, validator.Config{}, logger)

	cfg := &config.Config{}
	cfg.Service.Name = "watchsync"
	cfg.Admin.Host = "127.0.0.1"
	cfg.Admin.Port = 0

	return &testServer{
		server:  New(cfg, store, val, monitor, errlog, logger),
		store:   store,
		monitor: monitor,
		mio:     mio,
		tv:      tv,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into))
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestIngestWithSetCookieHeader(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/sessions", map[string]interface{}{
		"platform":        "marketinout",
		"setCookieHeader": "ASPSESSIONIDABCDEF=xyz123; path=/; HttpOnly, theme=dark; path=/",
		"userEmail":       "trader@example.com",
		"userPassword":    "hunter2",
		"extractedFrom":   "https://www.marketinout.com/home",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ingestResponse
	decode(t, rec, &resp)
	assert.Equal(t, "marketinout", resp.Platform)
	assert.Equal(t, sessionstore.DeterministicID("trader@example.com", "hunter2", platform.MarketInOut), resp.InternalID)
	assert.Empty(t, resp.Warnings)

	record, err := ts.store.Get(context.Background(), resp.InternalID, platform.MarketInOut)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "ASPSESSIONIDABCDEF=xyz123", record.SessionID)
	assert.Equal(t, "xyz123", record.Extra["ASPSESSIONIDABCDEF"])
	assert.Equal(t, "dark", record.Extra["theme"])
}

func TestIngestExplicitSessionID(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/sessions", map[string]interface{}{
		"platform":  "tradingview",
		"sessionId": "tv-session-token",
		"userEmail": "trader@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ingestResponse
	decode(t, rec, &resp)

	record, err := ts.store.Get(context.Background(), resp.InternalID, platform.TradingView)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "tv-session-token", record.SessionID)
}

func TestIngestRejectsUnknownPlatform(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/sessions", map[string]interface{}{
		"platform":  "robinhood",
		"sessionId": "tok",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestRejectsMissingSessionID(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/sessions", map[string]interface{}{
		"platform":        "marketinout",
		"setCookieHeader": "theme=dark; path=/",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestDeduplicates(t *testing.T) {
	ts := newTestServer(t)

	payload := map[string]interface{}{
		"platform":  "marketinout",
		"sessionId": "ASPSESSIONIDABC=xyz",
		"userEmail": "trader@example.com",
	}

	var first ingestResponse
	decode(t, ts.do(t, http.MethodPost, "/api/sessions", payload), &first)
	var second ingestResponse
	decode(t, ts.do(t, http.MethodPost, "/api/sessions", payload), &second)

	assert.Equal(t, first.InternalID, second.InternalID)

	stats, err := ts.store.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalSessions)
}

func TestSessionDataEndpoint(t *testing.T) {
	ts := newTestServer(t)

	require.NoError(t, ts.store.Save(context.Background(), "sid-1", platform.MarketInOut, &sessionstore.Record{
		SessionID:   "tok",
		ExtractedAt: time.Now(),
	}))

	rec := ts.do(t, http.MethodGet, "/api/sessions/sid-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data validator.SessionData
	decode(t, rec, &data)
	assert.True(t, data.SessionExists)
	assert.Equal(t, health.StatusHealthy, data.OverallStatus)
}

func TestSessionDataMissingBundle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/sessions/sid-none", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data validator.SessionData
	decode(t, rec, &data)
	assert.False(t, data.SessionExists)
	assert.Equal(t, health.StatusExpired, data.OverallStatus)
}

func TestValidateAllEndpoint(t *testing.T) {
	ts := newTestServer(t)

	require.NoError(t, ts.store.Save(context.Background(), "sid-1", platform.MarketInOut, &sessionstore.Record{
		SessionID:   "tok",
		ExtractedAt: time.Now(),
	}))

	rec := ts.do(t, http.MethodPost, "/api/sessions/sid-1/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result validator.MultiResult
	decode(t, rec, &result)
	assert.Equal(t, 1, result.Summary.Valid)
}

func TestValidateAllMissingBundleIsUnauthorized(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/sessions/sid-none/validate", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp errorResponse
	decode(t, rec, &resp)
	require.NotNil(t, resp.SessionErr)
	assert.Equal(t, sessionerrors.TypeSessionExpired, resp.SessionErr.Type)
}

func TestWatchlistsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	require.NoError(t, ts.store.Save(context.Background(), "sid-1", platform.MarketInOut, &sessionstore.Record{
		SessionID:   "tok",
		ExtractedAt: time.Now(),
	}))

	rec := ts.do(t, http.MethodGet, "/api/sessions/sid-1/watchlists", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Watchlists []platform.Watchlist `json:"watchlists"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Watchlists, 1)
	assert.Equal(t, "Tech", resp.Watchlists[0].Name)
}

func TestRefreshEndpoint(t *testing.T) {
	ts := newTestServer(t)

	require.NoError(t, ts.store.Save(context.Background(), "sid-1", platform.MarketInOut, &sessionstore.Record{
		SessionID:   "tok",
		ExtractedAt: time.Now(),
	}))

	rec := ts.do(t, http.MethodPost, "/api/sessions/sid-1/platforms/marketinout/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result validator.RefreshResult
	decode(t, rec, &result)
	assert.True(t, result.RefreshSuccess)
	assert.True(t, result.MonitoringActive)
}

func TestMonitoringEndpoints(t *testing.T) {
	ts := newTestServer(t)

	require.NoError(t, ts.store.Save(context.Background(), "sid-1", platform.TradingView, &sessionstore.Record{
		SessionID:   "tok",
		ExtractedAt: time.Now(),
	}))

	rec := ts.do(t, http.MethodPost, "/api/sessions/sid-1/platforms/tradingview/monitor", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ts.monitor.IsMonitoring("sid-1", platform.TradingView))

	rec = ts.do(t, http.MethodDelete, "/api/sessions/sid-1/platforms/tradingview/monitor", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, ts.monitor.IsMonitoring("sid-1", platform.TradingView))
}

func TestDeleteSessionEndpoint(t *testing.T) {
	ts := newTestServer(t)

	require.NoError(t, ts.store.Save(context.Background(), "sid-1", platform.MarketInOut, &sessionstore.Record{
		SessionID:   "tok",
		ExtractedAt: time.Now(),
	}))
	ts.monitor.StartMonitoring("sid-1", platform.MarketInOut)

	rec := ts.do(t, http.MethodDelete, "/api/sessions/sid-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	bundle, err := ts.store.GetBundle(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.Nil(t, bundle)
	assert.False(t, ts.monitor.IsMonitoring("sid-1", platform.MarketInOut))
}

func TestStatsEndpoints(t *testing.T) {
	ts := newTestServer(t)

	require.NoError(t, ts.store.Save(context.Background(), "sid-1", platform.MarketInOut, &sessionstore.Record{
		SessionID:   "tok",
		ExtractedAt: time.Now(),
	}))

	rec := ts.do(t, http.MethodGet, "/api/stats/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessStats sessionstore.Stats
	decode(t, rec, &sessStats)
	assert.Equal(t, 1, sessStats.TotalSessions)

	rec = ts.do(t, http.MethodGet, "/api/stats/errors", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/stats/monitoring", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var monStats health.MonitoringStats
	decode(t, rec, &monStats)
	assert.False(t, monStats.IsGlobalMonitoringActive)
}

func TestRecentErrorsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	// Provoke one logged error
	ts.do(t, http.MethodPost, "/api/sessions/sid-none/validate", nil)

	rec := ts.do(t, http.MethodGet, "/api/errors/recent?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Errors []sessionerrors.Entry `json:"errors"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, sessionerrors.TypeSessionExpired, resp.Errors[0].Error.Type)
}

func TestRecentErrorsRejectsBadLimit(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/errors/recent?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
