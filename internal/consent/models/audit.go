package models

// Audit actions recorded by the consent core. The vocabulary is fixed so the
// trail stays queryable across releases.
const (
	AuditActionConsentGranted        = "consent_granted"
	AuditActionConsentRevoked        = "consent_revoked"
	AuditActionConsentDeleted        = "consent_deleted"
	AuditActionConsentRequested      = "consent_requested"
	AuditActionConsentRequestDenied  = "consent_request_denied"
	AuditActionConsentRequestTimeout = "consent_request_timeout"
)

// AuditEntry is one element of the append-only audit trail. Entries are
// ordered by insertion and trimmed to a bounded history on every save.
type AuditEntry struct {
	EntryID   string         `json:"entry_id"`
	Timestamp string         `json:"timestamp"`
	Action    string         `json:"action"`
	ActorID   string         `json:"actor_user_id,omitempty"`
	TargetID  string         `json:"target_user_id,omitempty"`
	ServerID  string         `json:"server_id,omitempty"`
	ChannelID string         `json:"channel_id,omitempty"`
	MessageID string         `json:"message_id,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}
