// Package service implements consent lifecycle rules: validity evaluation,
// granting, revocation, deletion, and the audit trail. Every mutation is a
// full load→mutate→save cycle under one process-wide mutex, so concurrent
// callers are serialized and a reader never observes a half-applied change.
package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"memebot/internal/consent/metrics"
	"memebot/internal/consent/models"
	"memebot/internal/consent/store"
	"memebot/internal/platform/tracer"
	pkgerrors "memebot/pkg/domain-errors"
)

// PolicySource resolves the live policy fingerprint. Stored records carry
// the fingerprint in force at grant time; a mismatch forces re-consent.
type PolicySource interface {
	Version() string
}

const (
	defaultRenewDays   = 14
	defaultSearchLimit = 25
	defaultAuditLimit  = 50
)

type Option func(*Service)

// Service owns the consent document and the mutex that serializes access to
// it. Construct one instance at startup and share it by reference.
type Service struct {
	mu      sync.Mutex
	store   *store.FileStore
	policy  PolicySource
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	renew   time.Duration
}

func NewService(fileStore *store.FileStore, policy PolicySource, logger *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		store:  fileStore,
		policy: policy,
		logger: logger,
		tracer: tracer.NewNoop(),
		renew:  defaultRenewDays * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer sets the tracer used for span emission.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithRenewDays configures the renewal window: grants older than this many
// days are reported as expired. Non-positive values keep the default.
func WithRenewDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.renew = time.Duration(days) * 24 * time.Hour
		}
	}
}

// RenewDays returns the renewal window in whole days, for prompt text.
func (s *Service) RenewDays() int {
	return int(s.renew / (24 * time.Hour))
}

// Check evaluates whether the user currently holds a valid consent. It never
// fails: storage problems degrade to "no consent". Evaluation order matters:
// revocation and policy changes take precedence over expiry so the caller
// always sees the most specific reason.
func (s *Service) Check(ctx context.Context, userID string) *models.CheckResult {
	policyVersion := s.policy.Version()

	_, span := s.tracer.Start(ctx, tracer.SpanConsentCheck,
		tracer.String(tracer.AttrUserHash, tracer.HashUserID(userID)),
		tracer.String(tracer.AttrPolicyVersion, policyVersion),
	)

	result := func() *models.CheckResult {
		s.mu.Lock()
		defer s.mu.Unlock()

		doc := s.load("check")
		record, ok := doc.Users[userID]
		if !ok {
			return &models.CheckResult{Reason: models.ReasonNoConsent, PolicyVersion: policyVersion}
		}
		record = record.Clone()

		if record.Revoked {
			return &models.CheckResult{Reason: models.ReasonRevoked, Record: record, PolicyVersion: policyVersion}
		}
		if record.PolicyVersion != policyVersion {
			return &models.CheckResult{Reason: models.ReasonPolicyChanged, Record: record, PolicyVersion: policyVersion}
		}
		consentedAt, parsed := record.ConsentedTime()
		if !parsed {
			return &models.CheckResult{Reason: models.ReasonTimestampUnreadable, Record: record, PolicyVersion: policyVersion}
		}
		if time.Now().UTC().Sub(consentedAt) > s.renew {
			return &models.CheckResult{Reason: models.ReasonExpired, Record: record, PolicyVersion: policyVersion}
		}
		return &models.CheckResult{OK: true, Record: record, PolicyVersion: policyVersion}
	}()

	span.SetAttributes(tracer.String(tracer.AttrCheckReason, string(result.Reason)))
	span.End(nil)

	if s.metrics != nil {
		if result.OK {
			s.metrics.IncrementCheckPassed()
		} else {
			s.metrics.IncrementCheckFailed(string(result.Reason))
		}
	}
	return result
}

// Grant records consent for the user, replacing any prior record as a whole.
// The record carries a fresh timestamp and the live policy fingerprint.
func (s *Service) Grant(ctx context.Context, userID string, reqCtx *models.RequestContext) (*models.Record, error) {
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeBadRequest, "user id required")
	}

	policyVersion := s.policy.Version()
	now := time.Now().UTC().Format(models.TimeLayout)

	_, span := s.tracer.Start(ctx, tracer.SpanConsentGrant,
		tracer.String(tracer.AttrUserHash, tracer.HashUserID(userID)),
		tracer.String(tracer.AttrPolicyVersion, policyVersion),
	)

	if reqCtx != nil {
		clone := *reqCtx
		clone.RequestedAt = now
		reqCtx = &clone
	}
	record := &models.Record{
		UserID:        userID,
		ConsentedAt:   now,
		PolicyVersion: policyVersion,
		LastRequest:   reqCtx,
	}

	err := s.withDocument("grant", func(doc *store.Document) {
		doc.Users[userID] = record
	})
	span.End(err)
	if err != nil {
		return nil, err
	}

	extra := map[string]any{"tos_version": policyVersion}
	if reqCtx != nil && reqCtx.Source != "" {
		extra["source"] = reqCtx.Source
	}
	s.logEvent(ctx, models.AuditActionConsentGranted, userID, userID, reqCtx, extra)

	if s.metrics != nil {
		s.metrics.IncrementGranted()
	}
	return record.Clone(), nil
}

// Revoke marks the user's consent as revoked. It reports false when no
// record exists. Revoking an already revoked record succeeds again; the
// record simply stays revoked.
func (s *Service) Revoke(ctx context.Context, userID string) (bool, error) {
	_, span := s.tracer.Start(ctx, tracer.SpanConsentRevoke,
		tracer.String(tracer.AttrUserHash, tracer.HashUserID(userID)),
	)

	found := false
	err := s.withDocument("revoke", func(doc *store.Document) {
		record, ok := doc.Users[userID]
		if !ok {
			return
		}
		found = true
		revokedAt := time.Now().UTC().Format(models.TimeLayout)
		record.Revoked = true
		record.RevokedAt = &revokedAt
	})
	span.End(err)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	s.logEvent(ctx, models.AuditActionConsentRevoked, userID, userID, nil, nil)
	if s.metrics != nil {
		s.metrics.IncrementRevoked()
	}
	return true, nil
}

// Delete removes the user's record entirely. With purgeAudit set it also
// redacts every audit entry targeting the user, an irreversible erasure
// path distinct from ordinary revocation.
func (s *Service) Delete(ctx context.Context, userID, actorID string, purgeAudit bool) (bool, error) {
	_, span := s.tracer.Start(ctx, tracer.SpanConsentDelete,
		tracer.String(tracer.AttrUserHash, tracer.HashUserID(userID)),
		tracer.Bool("purge_audit", purgeAudit),
	)

	found := false
	err := s.withDocument("delete", func(doc *store.Document) {
		if _, ok := doc.Users[userID]; !ok {
			return
		}
		found = true
		delete(doc.Users, userID)
		if purgeAudit {
			kept := doc.AuditLog[:0]
			for _, entry := range doc.AuditLog {
				if entry.TargetID != userID {
					kept = append(kept, entry)
				}
			}
			doc.AuditLog = kept
		}
	})
	span.End(err)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	s.logEvent(ctx, models.AuditActionConsentDeleted, actorID, userID, nil, map[string]any{
		"purge_audit": purgeAudit,
	})
	if s.metrics != nil {
		s.metrics.IncrementDeleted()
	}
	return true, nil
}

// Record returns a copy of the user's consent record, or nil when absent.
func (s *Service) Record(_ context.Context, userID string) *models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load("record")
	return doc.Users[userID].Clone()
}

// ListUserIDs returns all user ids with a consent record in numeric order.
// Non-numeric ids are excluded.
func (s *Service) ListUserIDs(_ context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load("list")

	ids := make([]string, 0, len(doc.Users))
	for userID := range doc.Users {
		if isDigits(userID) {
			ids = append(ids, userID)
		}
	}
	// Ids are arbitrary-length digit strings; (length, lexicographic) order
	// is numeric order without risking integer overflow.
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) < len(ids[j])
		}
		return ids[i] < ids[j]
	})
	return ids
}

// SearchUserIDs returns up to limit user ids containing the query substring,
// in numeric order. An empty query matches nothing.
func (s *Service) SearchUserIDs(ctx context.Context, query string, limit int) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}
	}
	if limit < 1 {
		limit = defaultSearchLimit
	}

	hits := []string{}
	for _, userID := range s.ListUserIDs(ctx) {
		if strings.Contains(userID, query) {
			hits = append(hits, userID)
		}
		if len(hits) == limit {
			break
		}
	}
	return hits
}

// AllRecords returns a copy of every consent record keyed by user id.
func (s *Service) AllRecords(_ context.Context) map[string]*models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load("all_records")

	out := make(map[string]*models.Record, len(doc.Users))
	for userID, record := range doc.Users {
		out[userID] = record.Clone()
	}
	return out
}

// AuditLog returns the most recent limit audit entries, optionally filtered
// by target user id, oldest first.
func (s *Service) AuditLog(_ context.Context, targetID string, limit int) []models.AuditEntry {
	if limit < 1 {
		limit = defaultAuditLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.load("audit_log")

	entries := doc.AuditLog
	if targetID != "" {
		filtered := make([]models.AuditEntry, 0, len(entries))
		for _, entry := range entries {
			if entry.TargetID == targetID {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return append([]models.AuditEntry{}, entries...)
}

// LogEvent appends an entry to the audit trail in its own lock-guarded
// load→mutate→save cycle and returns the entry.
func (s *Service) LogEvent(ctx context.Context, action, actorID, targetID string, reqCtx *models.RequestContext, extra map[string]any) (models.AuditEntry, error) {
	entry := models.AuditEntry{
		EntryID:   uuid.New().String(),
		Timestamp: time.Now().UTC().Format(models.TimeLayout),
		Action:    action,
		ActorID:   actorID,
		TargetID:  targetID,
		Extra:     extra,
	}
	if reqCtx != nil {
		entry.ServerID = reqCtx.ServerID
		entry.ChannelID = reqCtx.ChannelID
		entry.MessageID = reqCtx.MessageID
	}

	err := s.withDocument("log_event", func(doc *store.Document) {
		doc.AuditLog = append(doc.AuditLog, entry)
	})
	if err != nil {
		return models.AuditEntry{}, err
	}
	return entry, nil
}

// logEvent records an audit entry as a side effect of a state change. A
// failed append must not undo the mutation it describes, so the error is
// logged and swallowed.
func (s *Service) logEvent(ctx context.Context, action, actorID, targetID string, reqCtx *models.RequestContext, extra map[string]any) {
	if _, err := s.LogEvent(ctx, action, actorID, targetID, reqCtx, extra); err != nil {
		s.logger.ErrorContext(ctx, "failed to append audit entry",
			"action", action,
			"target_user_id", targetID,
			"error", err,
		)
	}
}

// withDocument runs one serialized load→mutate→save cycle.
func (s *Service) withDocument(operation string, mutate func(doc *store.Document)) error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.load(operation)
	mutate(doc)
	if err := s.store.Save(doc); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementSaveFailure()
		}
		s.logger.Error("failed to save consent document",
			"operation", operation,
			"path", s.store.Path(),
			"error", err,
		)
		return pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to persist consent state")
	}

	if s.metrics != nil {
		s.metrics.ObserveStoreLatency(operation, time.Since(start).Seconds())
	}
	return nil
}

// load must be called with the mutex held.
func (s *Service) load(operation string) *store.Document {
	doc, status := s.store.Load()
	if s.metrics != nil {
		s.metrics.ObserveLoad(string(status))
	}
	if status == store.LoadRepaired {
		s.logger.Warn("consent document repaired on load",
			"operation", operation,
			"path", s.store.Path(),
		)
	}
	return doc
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
