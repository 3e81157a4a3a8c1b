// Package sessionstore persists per-platform session records captured
// by the browser extension, grouped into bundles under an internal
// session id, and keeps them deduplicated.
package sessionstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/finbridge/watchsync/pkg/platform"
)

// SourceBrowserExtension is the provenance tag for records captured by
// the extension.
const SourceBrowserExtension = "browser-extension"

// idPrefix marks deterministic internal session ids.
const idPrefix = "sid-"

// ErrEmptySessionID rejects records without a primary session token.
var ErrEmptySessionID = errors.New("sessionstore: record has empty sessionId")

// Record is one platform's captured session state. Extra carries
// platform-specific string fields such as the raw cookie name/value
// pairs; everything the dedup logic relies on is a fixed field.
type Record struct {
	SessionID     string            `json:"sessionId"`
	UserEmail     string            `json:"userEmail,omitempty"`
	UserPassword  string            `json:"userPassword,omitempty"`
	ExtractedAt   time.Time         `json:"extractedAt"`
	ExtractedFrom string            `json:"extractedFrom,omitempty"`
	Source        string            `json:"source,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// Validate checks the stored-record invariant.
func (r *Record) Validate() error {
	if r.SessionID == "" {
		return ErrEmptySessionID
	}
	return nil
}

// Credentials converts the record into the material a platform client
// needs.
func (r *Record) Credentials() platform.Credentials {
	return platform.Credentials{
		SessionID: r.SessionID,
		Cookies:   r.Extra,
	}
}

// sameCapture is the duplicate-equivalence relation: two records refer
// to the same underlying login when session id and user email both
// match, including the case where both emails are absent.
func (r *Record) sameCapture(other *Record) bool {
	return r.SessionID == other.SessionID && r.UserEmail == other.UserEmail
}

// Bundle maps platform name to that platform's session record for one
// internal session id. At most one record per platform.
type Bundle map[platform.Platform]*Record

// Partial is a partial record for merges. Nil fields are left untouched
// so an update cannot accidentally blank out existing data; a non-nil
// Extra is merged key by key.
type Partial struct {
	SessionID     *string
	UserEmail     *string
	UserPassword  *string
	ExtractedAt   *time.Time
	ExtractedFrom *string
	Source        *string
	Extra         map[string]string
}

func (p *Partial) applyTo(r *Record) {
	if p.SessionID != nil {
		r.SessionID = *p.SessionID
	}
	if p.UserEmail != nil {
		r.UserEmail = *p.UserEmail
	}
	if p.UserPassword != nil {
		r.UserPassword = *p.UserPassword
	}
	if p.ExtractedAt != nil {
		r.ExtractedAt = *p.ExtractedAt
	}
	if p.ExtractedFrom != nil {
		r.ExtractedFrom = *p.ExtractedFrom
	}
	if p.Source != nil {
		r.Source = *p.Source
	}
	if len(p.Extra) > 0 {
		if r.Extra == nil {
			r.Extra = make(map[string]string, len(p.Extra))
		}
		for k, v := range p.Extra {
			r.Extra[k] = v
		}
	}
}

// DeterministicID derives a stable internal session id from the user's
// identity on a platform. Identical inputs always produce the same id,
// which is what lets re-captured sessions collapse into one bundle
// without a lookup. The digest is SHA-256 over the NUL-joined inputs,
// rendered as the "sid-" prefix plus 64 hex characters.
func DeterministicID(userEmail, userPassword string, p platform.Platform) string {
	h := sha256.New()
	h.Write([]byte(userEmail))
	h.Write([]byte{0})
	h.Write([]byte(userPassword))
	h.Write([]byte{0})
	h.Write([]byte(p))
	return idPrefix + hex.EncodeToString(h.Sum(nil))
}
