// Package handler exposes the operator surface for consent administration.
// All routes are mounted behind the admin token middleware; the acting
// operator is identified by the X-Admin-Actor-ID header for audit purposes.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"memebot/internal/consent/models"
	"memebot/internal/platform/middleware"
	respond "memebot/internal/transport/http/json"
	"memebot/internal/transport/http/shared"
	dErrors "memebot/pkg/domain-errors"
	s "memebot/pkg/string"
	"memebot/pkg/validation"
)

// Service defines the consent operations the admin surface depends on.
type Service interface {
	Check(ctx context.Context, userID string) *models.CheckResult
	Grant(ctx context.Context, userID string, reqCtx *models.RequestContext) (*models.Record, error)
	Revoke(ctx context.Context, userID string) (bool, error)
	Delete(ctx context.Context, userID, actorID string, purgeAudit bool) (bool, error)
	Record(ctx context.Context, userID string) *models.Record
	ListUserIDs(ctx context.Context) []string
	SearchUserIDs(ctx context.Context, query string, limit int) []string
	AuditLog(ctx context.Context, targetID string, limit int) []models.AuditEntry
}

// Handler handles consent administration endpoints.
type Handler struct {
	logger  *slog.Logger
	consent Service
}

// New creates a new consent admin Handler.
func New(consent Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		consent: consent,
	}
}

// Register registers the admin routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/admin/consents", h.handleListConsents)
	r.Post("/admin/consents", h.handleGrantConsent)
	r.Get("/admin/consents/{userID}", h.handleGetConsent)
	r.Get("/admin/consents/{userID}/check", h.handleCheckConsent)
	r.Post("/admin/consents/{userID}/revoke", h.handleRevokeConsent)
	r.Delete("/admin/consents/{userID}", h.handleDeleteConsent)
	r.Get("/admin/audit", h.handleGetAudit)
}

// handleListConsents lists consent holders, optionally filtered by an id
// substring via the q query parameter.
func (h *Handler) handleListConsents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query().Get("q")
	var userIDs []string
	if query != "" {
		userIDs = h.consent.SearchUserIDs(ctx, query, queryLimit(r, 25))
	} else {
		userIDs = h.consent.ListUserIDs(ctx)
	}

	respond.WriteJSON(w, http.StatusOK, &ListResponse{
		UserIDs: userIDs,
		Count:   len(userIDs),
	})
}

func (h *Handler) handleGrantConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var grantReq GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&grantReq); err != nil {
		h.logger.WarnContext(ctx, "failed to decode grant consent request",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	s.TrimStrings(&grantReq.UserID, &grantReq.ServerID, &grantReq.ChannelID, &grantReq.MessageID, &grantReq.Source)
	if err := validation.Validate(&grantReq); err != nil {
		h.logger.WarnContext(ctx, "invalid grant consent request",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	var reqCtx *models.RequestContext
	if grantReq.ServerID != "" || grantReq.ChannelID != "" || grantReq.MessageID != "" || grantReq.Source != "" {
		reqCtx = &models.RequestContext{
			ServerID:  grantReq.ServerID,
			ChannelID: grantReq.ChannelID,
			MessageID: grantReq.MessageID,
			Source:    grantReq.Source,
		}
	}

	record, err := h.consent.Grant(ctx, grantReq.UserID, reqCtx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to grant consent",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	respond.WriteJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleGetConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	record := h.consent.Record(ctx, userID)
	if record == nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no consent record for user"))
		return
	}
	respond.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleCheckConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	result := h.consent.Check(ctx, userID)
	respond.WriteJSON(w, http.StatusOK, &CheckResponse{
		OK:            result.OK,
		Reason:        string(result.Reason),
		PolicyVersion: result.PolicyVersion,
		Record:        result.Record,
	})
}

func (h *Handler) handleRevokeConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	userID := chi.URLParam(r, "userID")

	revoked, err := h.consent.Revoke(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to revoke consent",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}
	if !revoked {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no consent record for user"))
		return
	}
	respond.WriteJSON(w, http.StatusOK, &RevokeResponse{Revoked: true})
}

// handleDeleteConsent removes the record; with purge_audit=true it also
// erases the user's audit trail.
func (h *Handler) handleDeleteConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	userID := chi.URLParam(r, "userID")
	purgeAudit := r.URL.Query().Get("purge_audit") == "true"

	actorID := middleware.GetAdminActorID(ctx)
	if actorID == "" {
		actorID = "admin"
	}

	deleted, err := h.consent.Delete(ctx, userID, actorID, purgeAudit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to delete consent record",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}
	if !deleted {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no consent record for user"))
		return
	}
	respond.WriteJSON(w, http.StatusOK, &DeleteResponse{Deleted: true, PurgeAudit: purgeAudit})
}

func (h *Handler) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries := h.consent.AuditLog(ctx, r.URL.Query().Get("target_id"), queryLimit(r, 50))
	respond.WriteJSON(w, http.StatusOK, &AuditResponse{
		Entries: entries,
		Count:   len(entries),
	})
}

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return fallback
	}
	return limit
}
