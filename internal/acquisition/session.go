// Package acquisition runs interactive consent prompts. A session tracks one
// prompt shown to one user and resolves exactly once: accepted, declined, or
// timed out. Acceptance is two-step: the user picks accept, then types the
// confirmation phrase before the deadline.
package acquisition

import (
	"context"
	"strings"
	"sync"
	"time"

	dErrors "memebot/pkg/domain-errors"
)

// ConfirmPhrase is the exact text a user must type to complete acceptance.
const ConfirmPhrase = "I AGREE"

const (
	// DefaultPassiveTimeout bounds prompts raised in the middle of another
	// interaction, where the user did not ask to see them.
	DefaultPassiveTimeout = 20 * time.Second
	// DefaultExplicitTimeout bounds prompts the user opened deliberately.
	DefaultExplicitTimeout = 60 * time.Second
)

type State string

const (
	StatePending    State = "pending"
	StateConfirming State = "confirming"
	StateGranted    State = "granted"
	StateDenied     State = "denied"
)

// DenyReason explains how a session ended without a grant.
type DenyReason string

const (
	DenyDeclined DenyReason = "declined"
	DenyTimeout  DenyReason = "timeout"
)

// Session is the state machine for one consent prompt. All methods are safe
// for concurrent use; UI event handlers and the timeout timer race freely
// and the first resolution wins.
type Session struct {
	ownerID string

	mu      sync.Mutex
	state   State
	reason  DenyReason
	timer   *time.Timer
	done    chan struct{}
	granted bool
}

// NewSession creates a session owned by ownerID and arms the timeout. A
// session that is never resolved by the user denies itself when the timer
// fires.
func NewSession(ownerID string, timeout time.Duration) *Session {
	s := &Session{
		ownerID: ownerID,
		state:   StatePending,
		done:    make(chan struct{}),
	}
	s.timer = time.AfterFunc(timeout, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.resolveLocked(false, DenyTimeout)
	})
	return s
}

// HandleChoice processes an accept or decline press. Accept moves the
// session into the confirmation step; decline resolves it as denied.
func (s *Session) HandleChoice(userID string, accept bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActorLocked(userID); err != nil {
		return err
	}
	if s.state != StatePending {
		return dErrors.New(dErrors.CodeConflict, "consent prompt already answered")
	}

	if !accept {
		s.resolveLocked(false, DenyDeclined)
		return nil
	}
	s.state = StateConfirming
	return nil
}

// HandleConfirmText processes typed text during the confirmation step.
// Matching text resolves the session as granted. Non-matching text leaves
// the session open so the user can retry until the deadline.
func (s *Session) HandleConfirmText(userID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActorLocked(userID); err != nil {
		return err
	}
	if s.state != StateConfirming {
		return dErrors.New(dErrors.CodeConflict, "consent prompt is not awaiting confirmation")
	}

	// Informed consent requires the exact phrase; only surrounding
	// whitespace is forgiven.
	if strings.TrimSpace(text) != ConfirmPhrase {
		return dErrors.New(dErrors.CodeValidation, "confirmation text does not match")
	}
	s.resolveLocked(true, "")
	return nil
}

// Wait blocks until the session resolves or ctx is cancelled. Cancellation
// denies the session with a timeout reason so it cannot resolve later.
func (s *Session) Wait(ctx context.Context) (granted bool, reason DenyReason) {
	select {
	case <-s.done:
	case <-ctx.Done():
		s.mu.Lock()
		s.resolveLocked(false, DenyTimeout)
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.granted, s.reason
}

// State reports the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OwnerID returns the user the prompt belongs to.
func (s *Session) OwnerID() string {
	return s.ownerID
}

func (s *Session) checkActorLocked(userID string) error {
	if userID != s.ownerID {
		return dErrors.New(dErrors.CodeForbidden, "consent prompt belongs to another user")
	}
	return nil
}

// resolveLocked finalizes the session once; later calls are no-ops. Callers
// must hold the mutex.
func (s *Session) resolveLocked(granted bool, reason DenyReason) {
	if s.state == StateGranted || s.state == StateDenied {
		return
	}
	s.granted = granted
	s.reason = reason
	if granted {
		s.state = StateGranted
	} else {
		s.state = StateDenied
	}
	s.timer.Stop()
	close(s.done)
}
