// Package sessionerrors defines the typed error taxonomy and recovery
// plans surfaced to the dashboard, plus the classification and logging
// machinery that normalizes arbitrary failures into them.
package sessionerrors

import (
	"time"

	"github.com/finbridge/watchsync/pkg/platform"
)

// Type classifies a session failure.
type Type string

const (
	TypeSessionExpired      Type = "SESSION_EXPIRED"
	TypeInvalidCredentials  Type = "INVALID_CREDENTIALS"
	TypeNetworkError        Type = "NETWORK_ERROR"
	TypeAPIRateLimited      Type = "API_RATE_LIMITED"
	TypeDataFormatError     Type = "DATA_FORMAT_ERROR"
	TypePlatformUnavailable Type = "PLATFORM_UNAVAILABLE"
	TypePermissionDenied    Type = "PERMISSION_DENIED"
	TypeOperationFailed     Type = "OPERATION_FAILED"
	TypeUnknown             Type = "UNKNOWN_ERROR"
)

// Severity grades a failure independently of its type; the same type
// can be a warning in one context and an error in another.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Action is a machine-usable remediation kind.
type Action string

const (
	ActionRetry             Action = "retry"
	ActionWaitAndRetry      Action = "wait_and_retry"
	ActionRefreshSession    Action = "refresh_session"
	ActionReAuthenticate    Action = "re_authenticate"
	ActionClearCache        Action = "clear_cache"
	ActionCheckNetwork      Action = "check_network"
	ActionUpdateCredentials Action = "update_credentials"
	ActionContactSupport    Action = "contact_support"
)

// RecoveryStep is one prioritized remediation attached to an error.
// Steps are ordered by Priority ascending; the first automated step is
// the one the UI may trigger without user confirmation.
type RecoveryStep struct {
	Action        Action `json:"action"`
	Description   string `json:"description"`
	Priority      int    `json:"priority"`
	Automated     bool   `json:"automated"`
	EstimatedTime string `json:"estimatedTime"`
}

// Context records where and when a failure happened.
type Context struct {
	Operation      string            `json:"operation"`
	Timestamp      time.Time         `json:"timestamp"`
	HTTPStatus     int               `json:"httpStatus,omitempty"`
	RequestURL     string            `json:"requestUrl,omitempty"`
	AdditionalData map[string]string `json:"additionalData,omitempty"`
}

// SessionError is the typed error surfaced by every component in this
// core. It is immutable once constructed; re-attribution to a new call
// site goes through Parse, which builds a fresh instance.
type SessionError struct {
	Type             Type              `json:"type"`
	Severity         Severity          `json:"severity"`
	Platform         platform.Platform `json:"platform"`
	UserMessage      string            `json:"userMessage"`
	TechnicalMessage string            `json:"technicalMessage"`
	Context          Context           `json:"context"`
	RecoverySteps    []RecoveryStep    `json:"recoverySteps"`
}

// Error implements the error interface with the technical message.
func (e *SessionError) Error() string {
	return string(e.Type) + ": " + e.TechnicalMessage
}

// FirstAutomatedStep returns the highest-priority automated recovery
// step, or nil if every step needs the user.
func (e *SessionError) FirstAutomatedStep() *RecoveryStep {
	for i := range e.RecoverySteps {
		if e.RecoverySteps[i].Automated {
			return &e.RecoverySteps[i]
		}
	}
	return nil
}

// CanAutoRecover reports whether any recovery step is automated.
func (e *SessionError) CanAutoRecover() bool {
	return e.FirstAutomatedStep() != nil
}
