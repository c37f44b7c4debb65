package acquisition

import (
	"context"
	"log/slog"
	"time"

	"memebot/internal/acquisition/metrics"
	"memebot/internal/consent/models"
	"memebot/internal/platform/tracer"
)

const (
	// SurfacePassive marks prompts raised mid-interaction.
	SurfacePassive = "passive"
	// SurfaceExplicit marks prompts the user opened on purpose.
	SurfaceExplicit = "explicit"
)

// Prompt carries everything a UI adapter needs to render a consent prompt.
type Prompt struct {
	UserID        string
	PolicyURL     string
	RenewDays     int
	ConfirmPhrase string
	Timeout       time.Duration
	// Ephemeral prompts are visible only to the prompted user.
	Ephemeral bool
}

// Prompter renders consent prompts on some chat surface. Present must wire
// the session to the surface's event handlers so user choices reach it.
// Finalize updates the rendered prompt after resolution and is best effort.
type Prompter interface {
	Present(ctx context.Context, prompt Prompt, session *Session) error
	Finalize(ctx context.Context, prompt Prompt, granted bool) error
}

// ConsentService is the slice of the consent service the requester needs.
type ConsentService interface {
	Grant(ctx context.Context, userID string, reqCtx *models.RequestContext) (*models.Record, error)
	LogEvent(ctx context.Context, action, actorID, targetID string, reqCtx *models.RequestContext, extra map[string]any) (models.AuditEntry, error)
	RenewDays() int
}

type Option func(*Requester)

// Requester drives consent prompts end to end: present, wait for the
// session to resolve, persist a grant, and record the audit trail.
type Requester struct {
	logger   *slog.Logger
	consent  ConsentService
	prompter Prompter
	metrics  *metrics.Metrics
	tracer   tracer.Tracer

	policyURL       string
	passiveTimeout  time.Duration
	explicitTimeout time.Duration
}

func NewRequester(consent ConsentService, prompter Prompter, logger *slog.Logger, opts ...Option) *Requester {
	r := &Requester{
		logger:          logger,
		consent:         consent,
		prompter:        prompter,
		tracer:          tracer.NewNoop(),
		passiveTimeout:  DefaultPassiveTimeout,
		explicitTimeout: DefaultExplicitTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithMetrics sets the metrics instance for the requester.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Requester) {
		r.metrics = m
	}
}

// WithTracer sets the tracer used for span emission.
func WithTracer(t tracer.Tracer) Option {
	return func(r *Requester) {
		if t != nil {
			r.tracer = t
		}
	}
}

// WithPolicyURL sets the public policy link shown in prompts.
func WithPolicyURL(url string) Option {
	return func(r *Requester) {
		r.policyURL = url
	}
}

// WithTimeouts overrides the prompt deadlines. Non-positive values keep the
// defaults.
func WithTimeouts(passive, explicit time.Duration) Option {
	return func(r *Requester) {
		if passive > 0 {
			r.passiveTimeout = passive
		}
		if explicit > 0 {
			r.explicitTimeout = explicit
		}
	}
}

// Request runs a passive consent prompt and reports whether consent was
// granted. It blocks until the prompt resolves or times out.
func (r *Requester) Request(ctx context.Context, userID string, reqCtx *models.RequestContext) (bool, error) {
	return r.run(ctx, SurfacePassive, r.passiveTimeout, false, userID, reqCtx)
}

// RequestEphemeral runs an explicit, user-initiated prompt with the longer
// deadline, rendered only to the prompted user.
func (r *Requester) RequestEphemeral(ctx context.Context, userID string, reqCtx *models.RequestContext) (bool, error) {
	return r.run(ctx, SurfaceExplicit, r.explicitTimeout, true, userID, reqCtx)
}

func (r *Requester) run(ctx context.Context, surface string, timeout time.Duration, ephemeral bool, userID string, reqCtx *models.RequestContext) (bool, error) {
	ctx, span := r.tracer.Start(ctx, tracer.SpanAcquisition,
		tracer.String(tracer.AttrUserHash, tracer.HashUserID(userID)),
		tracer.String(tracer.AttrSurface, surface),
	)

	prompt := Prompt{
		UserID:        userID,
		PolicyURL:     r.policyURL,
		RenewDays:     r.consent.RenewDays(),
		ConfirmPhrase: ConfirmPhrase,
		Timeout:       timeout,
		Ephemeral:     ephemeral,
	}
	session := NewSession(userID, timeout)
	start := time.Now()

	if err := r.prompter.Present(ctx, prompt, session); err != nil {
		// A prompt that never rendered cannot collect consent; treat the
		// flow as not granted rather than failing the caller.
		r.logger.WarnContext(ctx, "failed to present consent prompt",
			"user_hash", tracer.HashUserID(userID),
			"surface", surface,
			"error", err,
		)
		r.observe(surface, "present_failed")
		span.SetAttributes(tracer.String(tracer.AttrOutcome, "present_failed"))
		span.End(err)
		return false, nil
	}

	r.logEvent(ctx, models.AuditActionConsentRequested, userID, reqCtx, map[string]any{"surface": surface})

	granted, denyReason := session.Wait(ctx)
	if r.metrics != nil {
		r.metrics.ObserveDuration(surface, time.Since(start).Seconds())
	}

	outcome := "granted"
	if granted {
		if _, err := r.consent.Grant(ctx, userID, reqCtx); err != nil {
			r.finalize(ctx, prompt, false)
			span.SetAttributes(tracer.String(tracer.AttrOutcome, "grant_failed"))
			span.End(err)
			r.observe(surface, "grant_failed")
			return false, err
		}
	} else {
		outcome = string(denyReason)
		action := models.AuditActionConsentRequestDenied
		if denyReason == DenyTimeout {
			action = models.AuditActionConsentRequestTimeout
		}
		r.logEvent(ctx, action, userID, reqCtx, map[string]any{"surface": surface})
	}

	r.finalize(ctx, prompt, granted)
	r.observe(surface, outcome)
	span.SetAttributes(tracer.String(tracer.AttrOutcome, outcome))
	span.End(nil)
	return granted, nil
}

// finalize updates the rendered prompt. The consent decision is already
// persisted at this point, so a UI failure is only logged.
func (r *Requester) finalize(ctx context.Context, prompt Prompt, granted bool) {
	if err := r.prompter.Finalize(ctx, prompt, granted); err != nil {
		r.logger.DebugContext(ctx, "failed to finalize consent prompt",
			"user_hash", tracer.HashUserID(prompt.UserID),
			"error", err,
		)
	}
}

func (r *Requester) logEvent(ctx context.Context, action, userID string, reqCtx *models.RequestContext, extra map[string]any) {
	if _, err := r.consent.LogEvent(ctx, action, userID, userID, reqCtx, extra); err != nil {
		r.logger.ErrorContext(ctx, "failed to record prompt audit entry",
			"action", action,
			"error", err,
		)
	}
}

func (r *Requester) observe(surface, outcome string) {
	if r.metrics != nil {
		r.metrics.IncrementOutcome(surface, outcome)
	}
}
