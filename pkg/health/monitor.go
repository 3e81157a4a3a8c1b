// Package health tracks live session health per (internal id, platform)
// pair, combining on-demand checks with periodic background monitoring.
// The cache is in-memory only and rebuilt on demand after a restart.
package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/finbridge/watchsync/pkg/logging"
	"github.com/finbridge/watchsync/pkg/platform"
	"github.com/finbridge/watchsync/pkg/sessionstore"
)

// Status is the health state of one session on one platform.
type Status string

const (
	StatusUnknown  Status = "unknown"
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusExpired  Status = "expired"
)

// expireThreshold is how many consecutive probe failures flip a session
// from degraded to expired. An explicit auth failure expires it
// immediately regardless of count.
const expireThreshold = 3

// Health is the tracked state for one (internal id, platform) pair.
type Health struct {
	Status              Status    `json:"status"`
	LastSuccessfulCheck time.Time `json:"lastSuccessfulCheck,omitempty"`
	LastChecked         time.Time `json:"lastChecked,omitempty"`
	LastError           string    `json:"lastError,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
}

type pairKey struct {
	internalID string
	platform   platform.Platform
}

// Config tunes the monitor.
type Config struct {
	// Interval between periodic background checks. Default: 5 minutes.
	Interval time.Duration `yaml:"interval"`

	// CheckTimeout bounds each probe call. Default: 15 seconds.
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.CheckTimeout <= 0 {
		c.CheckTimeout = 15 * time.Second
	}
}

// Monitor owns the health cache. It is constructed once and injected
// into consumers; the cache must only be mutated through its methods so
// the state machine stays sound.
type Monitor struct {
	store    *sessionstore.Store
	registry *platform.Registry
	cfg      Config
	logger   logging.Logger

	mu       sync.RWMutex
	statuses map[pairKey]*Health
	watchers map[pairKey]chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

// NewMonitor creates a health monitor over the session store and the
// platform client registry.
func NewMonitor(store *sessionstore.Store, registry *platform.Registry, cfg Config, logger logging.Logger) *Monitor {
	cfg.applyDefaults()
	return &Monitor{
		store:    store,
		registry: registry,
		cfg:      cfg,
		logger:   logger.WithModule("health"),
		statuses: make(map[pairKey]*Health),
		watchers: make(map[pairKey]chan struct{}),
	}
}

// Check probes the platform for the session and updates the cached
// health. It returns the resulting status; the error reports what the
// probe failed with, if anything.
func (m *Monitor) Check(ctx context.Context, internalID string, p platform.Platform) (Status, error) {
	probeErr := m.probe(ctx, internalID, p)
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey{internalID, p}
	h, ok := m.statuses[key]
	if !ok {
		h = &Health{Status: StatusUnknown}
		m.statuses[key] = h
	}
	h.LastChecked = now

	if probeErr == nil {
		h.Status = StatusHealthy
		h.ConsecutiveFailures = 0
		h.LastSuccessfulCheck = now
		h.LastError = ""
		return h.Status, nil
	}

	h.ConsecutiveFailures++
	h.LastError = probeErr.Error()

	switch {
	case isAuthFailure(probeErr):
		h.Status = StatusExpired
	case h.ConsecutiveFailures >= expireThreshold:
		h.Status = StatusExpired
	default:
		h.Status = StatusDegraded
	}

	m.logger.Debug("health check failed",
		"id", internalID, "platform", p,
		"status", h.Status, "failures", h.ConsecutiveFailures)

	return h.Status, probeErr
}

// probe runs the platform client's lightweight check with a bounded
// timeout. A missing session record is treated as an auth failure.
func (m *Monitor) probe(ctx context.Context, internalID string, p platform.Platform) error {
	client, err := m.registry.Client(p)
	if err != nil {
		return err
	}

	record, err := m.store.Get(ctx, internalID, p)
	if err != nil {
		return err
	}
	if record == nil {
		return &platform.HTTPError{Status: 401, Message: "no session record stored"}
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.CheckTimeout)
	defer cancel()

	return client.Probe(probeCtx, record.Credentials())
}

// isAuthFailure recognizes explicit authentication failures that expire
// a session regardless of the consecutive-failure count.
func isAuthFailure(err error) bool {
	var httpErr *platform.HTTPError
	return errors.As(err, &httpErr) && (httpErr.Status == 401 || httpErr.Status == 403)
}

// Get returns a copy of the cached health for a pair, or nil when the
// pair has never been checked. It never triggers a network call.
func (m *Monitor) Get(internalID string, p platform.Platform) *Health {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.statuses[pairKey{internalID, p}]
	if !ok {
		return nil
	}

	copied := *h
	return &copied
}

// Forget drops the cached health for a pair, returning it to unknown.
func (m *Monitor) Forget(internalID string, p platform.Platform) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, pairKey{internalID, p})
}

// StartMonitoring begins periodic background checks for a pair.
// Idempotent: starting an already-monitored pair does not schedule a
// second watcher.
func (m *Monitor) StartMonitoring(internalID string, p platform.Platform) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	key := pairKey{internalID, p}
	if _, running := m.watchers[key]; running {
		return
	}

	stop := make(chan struct{})
	m.watchers[key] = stop
	m.wg.Add(1)

	go m.watch(internalID, p, stop)

	m.logger.Info("started session monitoring", "id", internalID, "platform", p)
}

func (m *Monitor) watch(internalID string, p platform.Platform, stop chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.Check(context.Background(), internalID, p); err != nil {
				m.logger.Warn("periodic health check failed",
					"id", internalID, "platform", p, "error", err)
			}
		case <-stop:
			return
		}
	}
}

// StopMonitoring stops the periodic checks for one pair. Other pairs
// are unaffected. Stopping an unmonitored pair is a no-op.
func (m *Monitor) StopMonitoring(internalID string, p platform.Platform) {
	m.mu.Lock()
	key := pairKey{internalID, p}
	stop, running := m.watchers[key]
	if running {
		delete(m.watchers, key)
	}
	m.mu.Unlock()

	if running {
		close(stop)
		m.logger.Info("stopped session monitoring", "id", internalID, "platform", p)
	}
}

// IsMonitoring reports whether a pair has an active background watcher.
func (m *Monitor) IsMonitoring(internalID string, p platform.Platform) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, running := m.watchers[pairKey{internalID, p}]
	return running
}

// MonitoringStats summarizes monitor activity.
type MonitoringStats struct {
	IsGlobalMonitoringActive bool `json:"isGlobalMonitoringActive"`
	ActivePairs              int  `json:"activePairs"`
	TrackedPairs             int  `json:"trackedPairs"`
}

// GetMonitoringStats returns current monitor activity.
func (m *Monitor) GetMonitoringStats() MonitoringStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MonitoringStats{
		IsGlobalMonitoringActive: len(m.watchers) > 0,
		ActivePairs:              len(m.watchers),
		TrackedPairs:             len(m.statuses),
	}
}

// Close stops all background watchers and waits for them to exit.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for key, stop := range m.watchers {
		close(stop)
		delete(m.watchers, key)
	}
	m.mu.Unlock()

	m.wg.Wait()
}
