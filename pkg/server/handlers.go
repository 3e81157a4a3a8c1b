package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/finbridge/watchsync/pkg/cookieparse"
	"github.com/finbridge/watchsync/pkg/platform"
	"github.com/finbridge/watchsync/pkg/sessionerrors"
	"github.com/finbridge/watchsync/pkg/sessionstore"
)

// handleHealthz handles the liveness check endpoint
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error      string                      `json:"error"`
	SessionErr *sessionerrors.SessionError `json:"sessionError,omitempty"`
}

// writeError maps a failure to a response. A typed SessionError carries
// its user message and recovery plan to the client; anything else is an
// internal error.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var sessErr *sessionerrors.SessionError
	if errors.As(err, &sessErr) {
		status := http.StatusBadGateway
		switch sessErr.Type {
		case sessionerrors.TypeSessionExpired, sessionerrors.TypeInvalidCredentials:
			status = http.StatusUnauthorized
		case sessionerrors.TypePermissionDenied:
			status = http.StatusForbidden
		case sessionerrors.TypeAPIRateLimited:
			status = http.StatusTooManyRequests
		case sessionerrors.TypeDataFormatError:
			status = http.StatusUnprocessableEntity
		}
		s.writeJSON(w, status, errorResponse{Error: sessErr.UserMessage, SessionErr: sessErr})
		return
	}

	s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

// ingestRequest is the payload the browser extension posts after
// harvesting cookies from a platform tab. Either a raw Set-Cookie
// header or an explicit session id must be present.
type ingestRequest struct {
	Platform        string            `json:"platform"`
	SetCookieHeader string            `json:"setCookieHeader,omitempty"`
	SessionID       string            `json:"sessionId,omitempty"`
	UserEmail       string            `json:"userEmail,omitempty"`
	UserPassword    string            `json:"userPassword,omitempty"`
	ExtractedFrom   string            `json:"extractedFrom,omitempty"`
	Cookies         map[string]string `json:"cookies,omitempty"`
}

type ingestResponse struct {
	InternalID string   `json:"internalId"`
	Platform   string   `json:"platform"`
	Warnings   []string `json:"warnings,omitempty"`
}

// handleIngest accepts a captured session from the extension, derives
// the session token from the Set-Cookie header when no explicit id is
// given, and stores the record deduplicated.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	p := platform.Parse(req.Platform)
	if p == platform.Unknown {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown platform: " + req.Platform})
		return
	}

	sessionID := req.SessionID
	extra := req.Cookies
	var warnings []string

	if req.SetCookieHeader != "" {
		parsed := cookieparse.ParseSetCookieHeader(req.SetCookieHeader)
		warnings = parsed.Errors

		if extra == nil {
			extra = make(map[string]string, len(parsed.Cookies))
		}
		for _, c := range parsed.Cookies {
			extra[c.Name] = c.Value
		}

		if sessionID == "" {
			candidates := cookieparse.ExtractASPSession(extra)
			if key, value, ok := cookieparse.PrimaryASPSession(candidates); ok {
				sessionID = key + "=" + value
			}
		}
	}

	if sessionID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no session id found in payload"})
		return
	}

	record := &sessionstore.Record{
		SessionID:     sessionID,
		UserEmail:     req.UserEmail,
		UserPassword:  req.UserPassword,
		ExtractedAt:   time.Now(),
		ExtractedFrom: req.ExtractedFrom,
		Source:        sessionstore.SourceBrowserExtension,
		Extra:         extra,
	}

	candidateID := sessionstore.DeterministicID(req.UserEmail, req.UserPassword, p)
	internalID, err := s.store.SaveWithDedup(r.Context(), candidateID, p, record)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, ingestResponse{
		InternalID: internalID,
		Platform:   string(p),
		Warnings:   warnings,
	})
}

// handleSessionData returns the health-aware session view
func (s *Server) handleSessionData(w http.ResponseWriter, r *http.Request) {
	data, err := s.validator.GetHealthAwareSessionData(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

// handleDeleteSession removes a bundle and stops its monitoring
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	bundle, err := s.store.GetBundle(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	for p := range bundle {
		s.monitor.StopMonitoring(id, p)
		s.monitor.Forget(id, p)
	}

	if err := s.store.DeleteBundle(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleValidateAll runs the concurrent all-platform validation
func (s *Server) handleValidateAll(w http.ResponseWriter, r *http.Request) {
	result, err := s.validator.ValidateAndMonitorAll(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleWatchlists validates the MarketInOut session by listing its
// watchlists, removing the bundle if the session proves unusable
func (s *Server) handleWatchlists(w http.ResponseWriter, r *http.Request) {
	watchlists, err := s.validator.ValidateAndCleanupMarketInOut(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"watchlists": watchlists})
}

func (s *Server) urlPlatform(w http.ResponseWriter, r *http.Request) (platform.Platform, bool) {
	p := platform.Parse(chi.URLParam(r, "platform"))
	if p == platform.Unknown {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown platform: " + chi.URLParam(r, "platform")})
		return p, false
	}
	return p, true
}

// handleRefresh refreshes one platform's session and re-checks health
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	p, ok := s.urlPlatform(w, r)
	if !ok {
		return
	}

	result, err := s.validator.RefreshWithHealthCheck(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// handleStartMonitoring validates a pair and starts its background
// monitoring
func (s *Server) handleStartMonitoring(w http.ResponseWriter, r *http.Request) {
	p, ok := s.urlPlatform(w, r)
	if !ok {
		return
	}

	result := s.validator.ValidateAndStartMonitoring(r.Context(), chi.URLParam(r, "id"), p)
	status := http.StatusOK
	if !result.IsValid {
		status = http.StatusUnauthorized
	}
	s.writeJSON(w, status, result)
}

// handleStopMonitoring stops background monitoring for one pair
func (s *Server) handleStopMonitoring(w http.ResponseWriter, r *http.Request) {
	p, ok := s.urlPlatform(w, r)
	if !ok {
		return
	}

	s.monitor.StopMonitoring(chi.URLParam(r, "id"), p)
	w.WriteHeader(http.StatusNoContent)
}

// handleSessionStats returns stored session counts
func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// handleErrorStats returns error log aggregates
func (s *Server) handleErrorStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.errlog.ErrorStats())
}

// handleMonitoringStats returns monitor activity
func (s *Server) handleMonitoringStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitor.GetMonitoringStats())
}

// handleRecentErrors returns the newest error log entries
func (s *Server) handleRecentErrors(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	entries := s.errlog.Recent(limit)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"errors": entries})
}
