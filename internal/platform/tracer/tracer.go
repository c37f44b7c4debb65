// Package tracer provides a lightweight tracing abstraction for the consent core.
//
// The consent and acquisition packages emit spans through this interface so
// they stay decoupled from any specific tracing backend.
//
// Implementations:
//   - NoopTracer: for tests (zero overhead)
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span represents an active trace span.
// Spans track the execution of a single operation and can record errors and events.
type Span interface {
	// End completes the span, recording err if non-nil.
	End(err error)
	// AddEvent records a point-in-time event on the span.
	AddEvent(name string, attrs ...Attribute)
	// SetAttributes adds attributes to the span after creation.
	SetAttributes(attrs ...Attribute)
}

// Tracer starts spans for consent operations.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans and events.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashUserID returns a truncated SHA-256 hash of the user ID for safe use in
// trace attributes. This allows correlation of traces without exposing the
// raw identifier.
func HashUserID(userID string) string {
	if userID == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(hash[:8])
}

// Span names used by the consent core.
const (
	SpanConsentCheck  = "consent.check"
	SpanConsentGrant  = "consent.grant"
	SpanConsentRevoke = "consent.revoke"
	SpanConsentDelete = "consent.delete"
	SpanAcquisition   = "consent.acquisition"
)

// Attribute keys used by the consent core.
const (
	AttrUserHash      = "user_hash"
	AttrCheckReason   = "check.reason"
	AttrPolicyVersion = "policy.version"
	AttrSurface       = "acquisition.surface"
	AttrOutcome       = "acquisition.outcome"
)
