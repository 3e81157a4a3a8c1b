// Package validator composes the session store, health monitor, error
// engine, and platform clients to answer "is this session usable" and
// drive auto-recovery. It never lets a raw, untyped error escape to its
// callers: every failure crossing this boundary is a SessionError.
package validator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/finbridge/watchsync/pkg/health"
	"github.com/finbridge/watchsync/pkg/logging"
	"github.com/finbridge/watchsync/pkg/platform"
	"github.com/finbridge/watchsync/pkg/sessionerrors"
	"github.com/finbridge/watchsync/pkg/sessionstore"
)

// Config tunes the validator.
type Config struct {
	// PlatformTimeout bounds each outbound platform call.
	// Default: 30 seconds.
	PlatformTimeout time.Duration `yaml:"platform_timeout"`
}

func (c *Config) applyDefaults() {
	if c.PlatformTimeout <= 0 {
		c.PlatformTimeout = 30 * time.Second
	}
}

// Validator is the highest-level session lifecycle service.
type Validator struct {
	store    *sessionstore.Store
	monitor  *health.Monitor
	registry *platform.Registry
	errlog   *sessionerrors.Log
	cfg      Config
	logger   logging.Logger
}

// New creates a Validator over its collaborators.
func New(store *sessionstore.Store, monitor *health.Monitor, registry *platform.Registry, errlog *sessionerrors.Log, cfg Config, logger logging.Logger) *Validator {
	cfg.applyDefaults()
	return &Validator{
		store:    store,
		monitor:  monitor,
		registry: registry,
		errlog:   errlog,
		cfg:      cfg,
		logger:   logger.WithModule("validator"),
	}
}

// PlatformHealth is one platform's view in a health-aware read.
type PlatformHealth struct {
	Platform  platform.Platform `json:"platform"`
	Status    health.Status     `json:"status"`
	LastError string            `json:"lastError,omitempty"`
}

// SessionData is the health-aware session summary consumed by the
// dashboard.
type SessionData struct {
	SessionExists   bool             `json:"sessionExists"`
	Platforms       []PlatformHealth `json:"platforms"`
	OverallStatus   health.Status    `json:"overallStatus"`
	Recommendations []string         `json:"recommendations"`
	CanAutoRecover  bool             `json:"canAutoRecover"`
	Timestamp       time.Time        `json:"timestamp"`
}

// GetHealthAwareSessionData reads the bundle and cross-references the
// cached health per platform, without triggering any network calls.
// Pairs never checked report unknown; unknown does not degrade the
// overall status because absence of evidence is not failure. A missing
// bundle reports overall expired with a re-authentication
// recommendation.
func (v *Validator) GetHealthAwareSessionData(ctx context.Context, internalID string) (*SessionData, error) {
	const operation = "getHealthAwareSessionData"

	bundle, err := v.store.GetBundle(ctx, internalID)
	if err != nil {
		return nil, v.raise(err, platform.Unknown, operation)
	}

	data := &SessionData{Timestamp: time.Now()}
	if bundle == nil {
		data.OverallStatus = health.StatusExpired
		expired := sessionerrors.NewSessionExpired(platform.Unknown, operation, "")
		data.Recommendations = stepDescriptions(expired.RecoverySteps)
		return data, nil
	}

	data.SessionExists = true
	data.OverallStatus = health.StatusHealthy

	seen := make(map[string]bool)
	for _, p := range sortedPlatforms(bundle) {
		h := v.monitor.Get(internalID, p)

		ph := PlatformHealth{Platform: p, Status: health.StatusUnknown}
		if h != nil {
			ph.Status = h.Status
			ph.LastError = h.LastError
		}
		data.Platforms = append(data.Platforms, ph)

		var platformErr *sessionerrors.SessionError
		switch ph.Status {
		case health.StatusExpired:
			data.OverallStatus = health.StatusExpired
			platformErr = sessionerrors.NewSessionExpired(p, operation, "")
		case health.StatusDegraded:
			if data.OverallStatus != health.StatusExpired {
				data.OverallStatus = health.StatusDegraded
			}
			platformErr = sessionerrors.Parse(errors.New(ph.LastError), p, operation)
		}

		if platformErr != nil {
			if platformErr.CanAutoRecover() {
				data.CanAutoRecover = true
			}
			for _, desc := range stepDescriptions(platformErr.RecoverySteps) {
				if !seen[desc] {
					seen[desc] = true
					data.Recommendations = append(data.Recommendations, desc)
				}
			}
		}
	}

	return data, nil
}

// ValidateAndCleanupMarketInOut validates the MarketInOut session by
// fetching its watchlists. An empty or failed result deletes the whole
// bundle (fail-closed: an unusable session is removed, not left stale)
// and surfaces the parsed error.
func (v *Validator) ValidateAndCleanupMarketInOut(ctx context.Context, internalID string) ([]platform.Watchlist, error) {
	const operation = "validateAndCleanupMarketinoutSession"

	record, err := v.store.Get(ctx, internalID, platform.MarketInOut)
	if err != nil {
		return nil, v.raise(err, platform.MarketInOut, operation)
	}
	if record == nil {
		return nil, v.raiseTyped(sessionerrors.NewSessionExpired(platform.MarketInOut, operation, ""))
	}

	client, err := v.registry.Client(platform.MarketInOut)
	if err != nil {
		return nil, v.raise(err, platform.MarketInOut, operation)
	}

	callCtx, cancel := context.WithTimeout(ctx, v.cfg.PlatformTimeout)
	defer cancel()

	watchlists, err := client.ListWatchlists(callCtx, record.Credentials())
	if err == nil && len(watchlists) > 0 {
		return watchlists, nil
	}

	// Unusable session: remove it before reporting
	v.monitor.StopMonitoring(internalID, platform.MarketInOut)
	if delErr := v.store.DeleteBundle(ctx, internalID); delErr != nil {
		v.logger.Error("failed to delete stale session bundle", "id", internalID, "error", delErr)
	}

	if err == nil {
		err = sessionerrors.NewSessionExpired(platform.MarketInOut, operation, record.SessionID)
	}
	return nil, v.raise(err, platform.MarketInOut, operation)
}

// Outcome is one platform's validation result.
type Outcome struct {
	Valid  bool          `json:"valid"`
	Status health.Status `json:"status"`
}

// Summary aggregates a multi-platform validation.
type Summary struct {
	Valid           int      `json:"valid"`
	Invalid         int      `json:"invalid"`
	CanAutoRecover  bool     `json:"canAutoRecover"`
	RecoveryActions []string `json:"recoveryActions"`
}

// MultiResult is the outcome of validating every platform in a bundle.
type MultiResult struct {
	Results map[platform.Platform]Outcome                     `json:"results"`
	Errors  map[platform.Platform]*sessionerrors.SessionError `json:"errors"`
	Summary Summary                                           `json:"summary"`
}

// ValidateAndMonitorAll validates every platform present in the bundle
// concurrently. Checks run independently: one platform's failure never
// cancels another's, and the summary is computed only after all
// outcomes have settled. A missing or empty bundle raises
// SESSION_EXPIRED tagged with the unknown platform.
func (v *Validator) ValidateAndMonitorAll(ctx context.Context, internalID string) (*MultiResult, error) {
	const operation = "validateAndMonitorAllPlatforms"

	bundle, err := v.store.GetBundle(ctx, internalID)
	if err != nil {
		return nil, v.raise(err, platform.Unknown, operation)
	}
	if bundle == nil {
		return nil, v.raiseTyped(sessionerrors.NewSessionExpired(platform.Unknown, operation, ""))
	}

	result := &MultiResult{
		Results: make(map[platform.Platform]Outcome, len(bundle)),
		Errors:  make(map[platform.Platform]*sessionerrors.SessionError),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for p := range bundle {
		wg.Add(1)
		go func(p platform.Platform) {
			defer wg.Done()

			status, checkErr := v.monitor.Check(ctx, internalID, p)

			mu.Lock()
			defer mu.Unlock()
			result.Results[p] = Outcome{Valid: checkErr == nil, Status: status}
			if checkErr != nil {
				result.Errors[p] = sessionerrors.Parse(checkErr, p, operation)
			}
		}(p)
	}
	wg.Wait()

	v.summarize(result)

	for p, sessErr := range result.Errors {
		v.errlog.LogError(sessErr, map[string]string{"internalId": internalID, "platform": string(p)})
	}

	return result, nil
}

// summarize fills in the aggregate view. Recovery actions are the
// deduplicated union of all failing platforms' step descriptions, in a
// deterministic platform order.
func (v *Validator) summarize(result *MultiResult) {
	for _, outcome := range result.Results {
		if outcome.Valid {
			result.Summary.Valid++
		} else {
			result.Summary.Invalid++
		}
	}

	platforms := make([]platform.Platform, 0, len(result.Errors))
	for p := range result.Errors {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })

	seen := make(map[string]bool)
	for _, p := range platforms {
		sessErr := result.Errors[p]
		if sessErr.CanAutoRecover() {
			result.Summary.CanAutoRecover = true
		}
		for _, desc := range stepDescriptions(sessErr.RecoverySteps) {
			if !seen[desc] {
				seen[desc] = true
				result.Summary.RecoveryActions = append(result.Summary.RecoveryActions, desc)
			}
		}
	}
}

// ValidationResult reports a single-platform validation.
type ValidationResult struct {
	IsValid           bool                        `json:"isValid"`
	Error             *sessionerrors.SessionError `json:"error,omitempty"`
	MonitoringStarted bool                        `json:"monitoringStarted"`
}

// ValidateAndStartMonitoring checks one platform's session and starts
// background monitoring on success. On failure monitoring for the pair
// is stopped: there is no point polling a known-dead session.
func (v *Validator) ValidateAndStartMonitoring(ctx context.Context, internalID string, p platform.Platform) *ValidationResult {
	const operation = "validateAndStartMonitoring"

	_, err := v.monitor.Check(ctx, internalID, p)
	if err != nil {
		v.monitor.StopMonitoring(internalID, p)
		sessErr := sessionerrors.Parse(err, p, operation)
		v.errlog.LogError(sessErr, map[string]string{"internalId": internalID})
		return &ValidationResult{Error: sessErr}
	}

	v.monitor.StartMonitoring(internalID, p)
	return &ValidationResult{IsValid: true, MonitoringStarted: true}
}

// RefreshResult reports a refresh attempt. RefreshSuccess and the
// post-refresh health are separate facts: a refresh that succeeded but
// whose verification probe failed still reports RefreshSuccess true.
type RefreshResult struct {
	RefreshSuccess   bool           `json:"refreshSuccess"`
	HealthStatus     *health.Health `json:"healthStatus,omitempty"`
	MonitoringActive bool           `json:"monitoringActive"`
}

// RefreshWithHealthCheck asks the platform client to refresh the
// session, then re-establishes health with one immediate check and
// (re)starts monitoring.
func (v *Validator) RefreshWithHealthCheck(ctx context.Context, internalID string, p platform.Platform) (*RefreshResult, error) {
	const operation = "refreshSessionWithHealthCheck"

	record, err := v.store.Get(ctx, internalID, p)
	if err != nil {
		return nil, v.raise(err, p, operation)
	}
	if record == nil {
		return nil, v.raiseTyped(sessionerrors.NewSessionExpired(p, operation, ""))
	}

	client, err := v.registry.Client(p)
	if err != nil {
		return nil, v.raise(err, p, operation)
	}

	callCtx, cancel := context.WithTimeout(ctx, v.cfg.PlatformTimeout)
	defer cancel()

	refreshed, err := client.Refresh(callCtx, record.Credentials())
	if err != nil {
		return &RefreshResult{}, v.raise(err, p, operation)
	}
	if !refreshed {
		return &RefreshResult{}, v.raiseTyped(sessionerrors.NewGeneric(p, operation, "platform declined to refresh the session"))
	}

	result := &RefreshResult{RefreshSuccess: true}

	if _, checkErr := v.monitor.Check(ctx, internalID, p); checkErr != nil {
		// Refresh succeeded; the verification probe is reported separately.
		v.logger.Warn("post-refresh health check failed", "id", internalID, "platform", p, "error", checkErr)
	}
	result.HealthStatus = v.monitor.Get(internalID, p)

	v.monitor.StartMonitoring(internalID, p)
	result.MonitoringActive = v.monitor.IsMonitoring(internalID, p)

	return result, nil
}

// raise normalizes an error, logs it, and returns it as the typed error
// this boundary exposes.
func (v *Validator) raise(err error, p platform.Platform, operation string) error {
	return v.raiseTyped(sessionerrors.Parse(err, p, operation))
}

func (v *Validator) raiseTyped(sessErr *sessionerrors.SessionError) error {
	v.errlog.LogError(sessErr, nil)
	return sessErr
}

func stepDescriptions(steps []sessionerrors.RecoveryStep) []string {
	out := make([]string, 0, len(steps))
	for _, step := range steps {
		out = append(out, step.Description)
	}
	return out
}

func sortedPlatforms(bundle sessionstore.Bundle) []platform.Platform {
	platforms := make([]platform.Platform, 0, len(bundle))
	for p := range bundle {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}
