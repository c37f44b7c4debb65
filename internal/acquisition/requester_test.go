package acquisition

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"memebot/internal/consent/models"
)

type consentMock struct {
	mock.Mock
}

func (m *consentMock) Grant(ctx context.Context, userID string, reqCtx *models.RequestContext) (*models.Record, error) {
	args := m.Called(ctx, userID, reqCtx)
	if record := args.Get(0); record != nil {
		return record.(*models.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *consentMock) LogEvent(ctx context.Context, action, actorID, targetID string, reqCtx *models.RequestContext, extra map[string]any) (models.AuditEntry, error) {
	args := m.Called(ctx, action, actorID, targetID, reqCtx, extra)
	return args.Get(0).(models.AuditEntry), args.Error(1)
}

func (m *consentMock) RenewDays() int {
	return 14
}

// fakePrompter drives the session from a goroutine the way a chat surface
// event handler would.
type fakePrompter struct {
	script      func(session *Session)
	presentErr  error
	finalizeErr error

	mu            sync.Mutex
	presented     []Prompt
	finalized     []bool
	finalizedWith []Prompt
}

func (p *fakePrompter) Present(_ context.Context, prompt Prompt, session *Session) error {
	p.mu.Lock()
	p.presented = append(p.presented, prompt)
	p.mu.Unlock()
	if p.presentErr != nil {
		return p.presentErr
	}
	if p.script != nil {
		go p.script(session)
	}
	return nil
}

func (p *fakePrompter) Finalize(_ context.Context, prompt Prompt, granted bool) error {
	p.mu.Lock()
	p.finalized = append(p.finalized, granted)
	p.finalizedWith = append(p.finalizedWith, prompt)
	p.mu.Unlock()
	return p.finalizeErr
}

func (p *fakePrompter) finalizedOutcomes() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool{}, p.finalized...)
}

func newTestRequester(t *testing.T, prompter *fakePrompter) (*Requester, *consentMock) {
	t.Helper()
	consent := &consentMock{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	requester := NewRequester(consent, prompter, logger,
		WithPolicyURL("https://example.test/privacy"),
		WithTimeouts(200*time.Millisecond, 400*time.Millisecond),
	)
	return requester, consent
}

func TestRequesterAcceptFlowGrants(t *testing.T) {
	prompter := &fakePrompter{script: func(session *Session) {
		require.NoError(t, session.HandleChoice(owner, true))
		require.NoError(t, session.HandleConfirmText(owner, ConfirmPhrase))
	}}
	requester, consent := newTestRequester(t, prompter)

	reqCtx := &models.RequestContext{ServerID: "42", Source: "meme_command"}
	consent.On("LogEvent", mock.Anything, models.AuditActionConsentRequested, owner, owner, reqCtx, mock.Anything).
		Return(models.AuditEntry{}, nil)
	consent.On("Grant", mock.Anything, owner, reqCtx).
		Return(&models.Record{UserID: owner}, nil)

	granted, err := requester.Request(context.Background(), owner, reqCtx)
	require.NoError(t, err)
	assert.True(t, granted)

	consent.AssertExpectations(t)
	assert.Equal(t, []bool{true}, prompter.finalizedOutcomes())

	require.Len(t, prompter.presented, 1)
	prompt := prompter.presented[0]
	assert.Equal(t, "https://example.test/privacy", prompt.PolicyURL)
	assert.Equal(t, 14, prompt.RenewDays)
	assert.Equal(t, ConfirmPhrase, prompt.ConfirmPhrase)
	assert.False(t, prompt.Ephemeral)
}

func TestRequesterDeclineFlow(t *testing.T) {
	prompter := &fakePrompter{script: func(session *Session) {
		require.NoError(t, session.HandleChoice(owner, false))
	}}
	requester, consent := newTestRequester(t, prompter)

	consent.On("LogEvent", mock.Anything, models.AuditActionConsentRequested, owner, owner, mock.Anything, mock.Anything).
		Return(models.AuditEntry{}, nil)
	consent.On("LogEvent", mock.Anything, models.AuditActionConsentRequestDenied, owner, owner, mock.Anything, mock.Anything).
		Return(models.AuditEntry{}, nil)

	granted, err := requester.Request(context.Background(), owner, nil)
	require.NoError(t, err)
	assert.False(t, granted)

	consent.AssertExpectations(t)
	consent.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, []bool{false}, prompter.finalizedOutcomes())
}

func TestRequesterTimeoutDenies(t *testing.T) {
	prompter := &fakePrompter{}
	requester, consent := newTestRequester(t, prompter)

	consent.On("LogEvent", mock.Anything, models.AuditActionConsentRequested, owner, owner, mock.Anything, mock.Anything).
		Return(models.AuditEntry{}, nil)
	consent.On("LogEvent", mock.Anything, models.AuditActionConsentRequestTimeout, owner, owner, mock.Anything, mock.Anything).
		Return(models.AuditEntry{}, nil)

	granted, err := requester.Request(context.Background(), owner, nil)
	require.NoError(t, err)
	assert.False(t, granted)

	consent.AssertExpectations(t)
}

func TestRequesterPresentFailureYieldsNoConsent(t *testing.T) {
	prompter := &fakePrompter{presentErr: errors.New("channel unavailable")}
	requester, consent := newTestRequester(t, prompter)

	granted, err := requester.Request(context.Background(), owner, nil)
	require.NoError(t, err)
	assert.False(t, granted)

	consent.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything, mock.Anything)
	consent.AssertNotCalled(t, "LogEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, prompter.finalizedOutcomes())
}

func TestRequesterGrantFailurePropagates(t *testing.T) {
	prompter := &fakePrompter{script: func(session *Session) {
		require.NoError(t, session.HandleChoice(owner, true))
		require.NoError(t, session.HandleConfirmText(owner, ConfirmPhrase))
	}}
	requester, consent := newTestRequester(t, prompter)

	consent.On("LogEvent", mock.Anything, models.AuditActionConsentRequested, owner, owner, mock.Anything, mock.Anything).
		Return(models.AuditEntry{}, nil)
	consent.On("Grant", mock.Anything, owner, mock.Anything).
		Return(nil, errors.New("disk full"))

	granted, err := requester.Request(context.Background(), owner, nil)
	require.Error(t, err)
	assert.False(t, granted)

	// The prompt is still cleaned up, marked as not granted.
	assert.Equal(t, []bool{false}, prompter.finalizedOutcomes())
}

func TestRequesterFinalizeErrorIsSwallowed(t *testing.T) {
	prompter := &fakePrompter{
		script: func(session *Session) {
			require.NoError(t, session.HandleChoice(owner, true))
			require.NoError(t, session.HandleConfirmText(owner, ConfirmPhrase))
		},
		finalizeErr: errors.New("message deleted"),
	}
	requester, consent := newTestRequester(t, prompter)

	consent.On("LogEvent", mock.Anything, models.AuditActionConsentRequested, owner, owner, mock.Anything, mock.Anything).
		Return(models.AuditEntry{}, nil)
	consent.On("Grant", mock.Anything, owner, mock.Anything).
		Return(&models.Record{UserID: owner}, nil)

	granted, err := requester.Request(context.Background(), owner, nil)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestRequestEphemeralUsesExplicitSurface(t *testing.T) {
	prompter := &fakePrompter{script: func(session *Session) {
		require.NoError(t, session.HandleChoice(owner, false))
	}}
	requester, consent := newTestRequester(t, prompter)

	expectSurface := func(surface string) any {
		return mock.MatchedBy(func(extra map[string]any) bool {
			return extra["surface"] == surface
		})
	}
	consent.On("LogEvent", mock.Anything, models.AuditActionConsentRequested, owner, owner, mock.Anything, expectSurface(SurfaceExplicit)).
		Return(models.AuditEntry{}, nil)
	consent.On("LogEvent", mock.Anything, models.AuditActionConsentRequestDenied, owner, owner, mock.Anything, expectSurface(SurfaceExplicit)).
		Return(models.AuditEntry{}, nil)

	granted, err := requester.RequestEphemeral(context.Background(), owner, nil)
	require.NoError(t, err)
	assert.False(t, granted)

	consent.AssertExpectations(t)
	require.Len(t, prompter.presented, 1)
	assert.True(t, prompter.presented[0].Ephemeral)
	assert.Equal(t, 400*time.Millisecond, prompter.presented[0].Timeout)
}
