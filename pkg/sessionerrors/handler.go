package sessionerrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/finbridge/watchsync/pkg/platform"
)

// NewSessionExpired builds a SESSION_EXPIRED error for a platform and
// operation. sessionID, when known, is recorded in the context data.
func NewSessionExpired(p platform.Platform, operation, sessionID string) *SessionError {
	ctx := Context{Operation: operation, Timestamp: time.Now()}
	if sessionID != "" {
		ctx.AdditionalData = map[string]string{"sessionId": sessionID}
	}

	return &SessionError{
		Type:             TypeSessionExpired,
		Severity:         SeverityError,
		Platform:         p,
		UserMessage:      userMessage(TypeSessionExpired),
		TechnicalMessage: fmt.Sprintf("session expired on %s during %s", p, operation),
		Context:          ctx,
		RecoverySteps:    recoveryPlan(TypeSessionExpired),
	}
}

// NewNetworkError builds a NETWORK_ERROR from an underlying cause.
// A nil cause is normalized to a placeholder so the technical message
// is always populated.
func NewNetworkError(p platform.Platform, operation string, cause error, url string) *SessionError {
	if cause == nil {
		cause = errors.New("unknown network failure")
	}

	return &SessionError{
		Type:             TypeNetworkError,
		Severity:         SeverityError,
		Platform:         p,
		UserMessage:      userMessage(TypeNetworkError),
		TechnicalMessage: cause.Error(),
		Context: Context{
			Operation:  operation,
			Timestamp:  time.Now(),
			RequestURL: url,
		},
		RecoverySteps: recoveryPlan(TypeNetworkError),
	}
}

// NewGeneric builds an OPERATION_FAILED error with a custom technical
// message.
func NewGeneric(p platform.Platform, operation, message string) *SessionError {
	return &SessionError{
		Type:             TypeOperationFailed,
		Severity:         SeverityError,
		Platform:         p,
		UserMessage:      userMessage(TypeOperationFailed),
		TechnicalMessage: message,
		Context:          Context{Operation: operation, Timestamp: time.Now()},
		RecoverySteps:    recoveryPlan(TypeOperationFailed),
	}
}

// Parse is the single normalization entry point for arbitrary failures.
// It inspects the error chain and returns a SessionError attributed to
// the call site currently handling it: even an error that already is a
// SessionError is rebuilt so platform and operation reflect this
// caller, not the one that originally failed.
func Parse(err error, p platform.Platform, operation string) *SessionError {
	if err == nil {
		return NewGeneric(p, operation, "unknown failure")
	}

	// Already typed: keep classification and messages, re-attribute context.
	var sessErr *SessionError
	if errors.As(err, &sessErr) {
		rebuilt := *sessErr
		rebuilt.Platform = p
		rebuilt.Context.Operation = operation
		rebuilt.Context.Timestamp = time.Now()
		rebuilt.RecoverySteps = recoveryPlan(rebuilt.Type)
		return &rebuilt
	}

	// HTTP-status-bearing failures classify by status and message.
	var httpErr *platform.HTTPError
	if errors.As(err, &httpErr) {
		t, _ := CategorizeHTTP(httpErr.Status, httpErr.Message)
		return &SessionError{
			Type:             t,
			Severity:         SeverityError,
			Platform:         p,
			UserMessage:      userMessage(t),
			TechnicalMessage: httpErr.Error(),
			Context: Context{
				Operation:  operation,
				Timestamp:  time.Now(),
				HTTPStatus: httpErr.Status,
				RequestURL: httpErr.URL,
			},
			RecoverySteps: recoveryPlan(t),
		}
	}

	// Timeouts and transport failures are network errors.
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return NewNetworkError(p, operation, err, "")
	}

	// Fall back to keyword classification of the message.
	t, _ := CategorizeHTTP(0, err.Error())
	return &SessionError{
		Type:             t,
		Severity:         SeverityError,
		Platform:         p,
		UserMessage:      userMessage(t),
		TechnicalMessage: err.Error(),
		Context:          Context{Operation: operation, Timestamp: time.Now()},
		RecoverySteps:    recoveryPlan(t),
	}
}

// CategorizeHTTP classifies an HTTP status and message into an error
// type and reports whether it is a session-level failure (one the UI
// shows as a "re-authenticate" banner rather than an operation toast).
// A status of 0 classifies on keywords alone.
func CategorizeHTTP(status int, message string) (Type, bool) {
	lower := strings.ToLower(message)

	switch {
	case status == 401 || status == 403:
		if containsAny(lower, "credential", "password", "login failed") {
			return TypeInvalidCredentials, true
		}
		return TypeSessionExpired, true
	case status == 429 || containsAny(lower, "rate limit", "too many requests"):
		return TypeAPIRateLimited, false
	case status == 400 || status == 422 || containsAny(lower, "format", "parse", "expected", "malformed"):
		return TypeDataFormatError, false
	case status >= 500:
		return TypePlatformUnavailable, false
	case containsAny(lower, "permission", "forbidden", "not allowed"):
		return TypePermissionDenied, false
	case containsAny(lower, "session expired", "not logged in", "must log in", "unauthorized", "please log in"):
		return TypeSessionExpired, true
	case containsAny(lower, "invalid credential", "wrong password"):
		return TypeInvalidCredentials, true
	default:
		return TypeOperationFailed, false
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
