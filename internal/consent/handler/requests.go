package handler

import "memebot/internal/consent/models"

// GrantRequest is the admin payload for recording a user's consent.
type GrantRequest struct {
	UserID    string `json:"user_id"    validate:"required,notblank,numeric,max=32"`
	ServerID  string `json:"server_id"  validate:"omitempty,numeric,max=32"`
	ChannelID string `json:"channel_id" validate:"omitempty,numeric,max=32"`
	MessageID string `json:"message_id" validate:"omitempty,numeric,max=32"`
	Source    string `json:"source"     validate:"omitempty,max=64"`
}

// ListResponse carries consent holder ids in numeric order.
type ListResponse struct {
	UserIDs []string `json:"user_ids"`
	Count   int      `json:"count"`
}

// CheckResponse reports the outcome of a consent validity check.
type CheckResponse struct {
	OK            bool           `json:"ok"`
	Reason        string         `json:"reason,omitempty"`
	PolicyVersion string         `json:"policy_version"`
	Record        *models.Record `json:"record,omitempty"`
}

// RevokeResponse reports whether a revocation found a record to mark.
type RevokeResponse struct {
	Revoked bool `json:"revoked"`
}

// DeleteResponse reports the outcome of a record deletion.
type DeleteResponse struct {
	Deleted    bool `json:"deleted"`
	PurgeAudit bool `json:"purge_audit"`
}

// AuditResponse carries audit entries oldest first.
type AuditResponse struct {
	Entries []models.AuditEntry `json:"entries"`
	Count   int                 `json:"count"`
}
