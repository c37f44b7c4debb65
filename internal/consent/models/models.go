package models

import "time"

// Timestamps are persisted as RFC 3339 strings rather than time.Time so a
// record with a mangled timestamp still loads; validity evaluation treats it
// as an invalid-consent condition instead of a decode failure.
const TimeLayout = time.RFC3339

// Record captures a user's current grant status for the image-upload action.
// At most one record exists per user; re-consent replaces the record as a
// whole, it never merges fields.
type Record struct {
	UserID        string          `json:"user_id"`
	ConsentedAt   string          `json:"consented_at"`
	PolicyVersion string          `json:"tos_version"`
	Revoked       bool            `json:"revoked"`
	RevokedAt     *string         `json:"revoked_at"`
	LastRequest   *RequestContext `json:"last_request,omitempty"`
}

// ConsentedTime parses the grant timestamp. The boolean is false when the
// stored value is absent or unparsable.
func (r *Record) ConsentedTime() (time.Time, bool) {
	if r == nil || r.ConsentedAt == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(TimeLayout, r.ConsentedAt)
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}

// Clone returns a deep copy so callers never hold live references into the
// store document.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.RevokedAt != nil {
		revokedAt := *r.RevokedAt
		out.RevokedAt = &revokedAt
	}
	if r.LastRequest != nil {
		lastRequest := *r.LastRequest
		out.LastRequest = &lastRequest
	}
	return &out
}

// RequestContext records where a consent request surfaced. It exists for
// audit and debugging; validity evaluation never reads it.
type RequestContext struct {
	ServerID    string `json:"server_id,omitempty"`
	ChannelID   string `json:"channel_id,omitempty"`
	MessageID   string `json:"message_id,omitempty"`
	Source      string `json:"source,omitempty"`
	RequestedAt string `json:"requested_at,omitempty"`
}

// Reason explains why a consent check failed. The vocabulary is fixed and
// ordered: the most specific reason wins when several apply.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonNoConsent           Reason = "no_consent"
	ReasonRevoked             Reason = "revoked"
	ReasonPolicyChanged       Reason = "policy_changed"
	ReasonTimestampUnreadable Reason = "timestamp_unreadable"
	ReasonExpired             Reason = "expired"
)

// CheckResult is the outcome of a consent validity evaluation.
type CheckResult struct {
	OK            bool
	Reason        Reason
	Record        *Record
	PolicyVersion string
}
