// Package session holds the process-wide authentication state and mediates
// every transition between Loading, Authenticated and Unauthenticated.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/florianilch/smartrade/internal/credentials"
	"github.com/florianilch/smartrade/internal/tokenstore"
)

var (
	// ErrSessionExpired is returned when a held session no longer survives storage validation.
	ErrSessionExpired = errors.New("session expired")
	// ErrNotAuthenticated is returned when a credential is requested without a session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Session is the single source of truth for authentication state.
// Create one per process and pass it to every consumer.
type Session struct {
	store tokenstore.Store

	mu          sync.RWMutex
	state       State
	subscribers map[uint64]func(State)
	nextID      uint64
}

// New creates a Session in the Loading state.
func New(store tokenstore.Store) (*Session, error) {
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}

	return &Session{
		store:       store,
		state:       loading(),
		subscribers: make(map[uint64]func(State)),
	}, nil
}

// Initialize restores the session from storage. It blocks on storage I/O and
// is meant to run on its own goroutine at startup; until it returns the state
// stays Loading. A transition that happened meanwhile (e.g. a completed login)
// is kept.
func (s *Session) Initialize(ctx context.Context) {
	slog.DebugContext(ctx, "restoring session from storage")

	next := unauthenticated()
	if rec, ok := s.store.Load(ctx); ok {
		next = authenticated(rec.Tokens, rec.ExpiresAt)
	}

	if !s.transitionIf(StatusLoading, next) {
		slog.DebugContext(ctx, "session changed during restore, keeping current state")
		return
	}

	slog.InfoContext(ctx, "session restored", "status", next.Status.String())
}

// Login persists tokens and marks the session authenticated. An invalid
// bundle is rejected before any write. If persisting fails the state is left
// unchanged.
func (s *Session) Login(ctx context.Context, tokens credentials.TokenBundle) error {
	if err := tokens.Validate(); err != nil {
		return err
	}

	rec, err := s.store.Persist(ctx, tokens)
	if err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}

	s.transition(authenticated(rec.Tokens, rec.ExpiresAt))
	slog.InfoContext(ctx, "logged in", "user_id", tokens.UserID)
	return nil
}

// Logout clears storage and marks the session unauthenticated. The state
// change happens even if clearing fails; the clear error is returned for
// reporting.
func (s *Session) Logout(ctx context.Context) error {
	clearErr := s.store.Clear(ctx)

	s.transition(unauthenticated())

	if clearErr != nil {
		slog.WarnContext(ctx, "logged out, stored session not fully cleared", "error", clearErr)
		return fmt.Errorf("clearing stored session: %w", clearErr)
	}
	slog.InfoContext(ctx, "logged out")
	return nil
}

// RefreshIfNeeded re-validates a held session against storage. If storage no
// longer yields a record (expired, cleared or corrupt) the session is logged
// out and ErrSessionExpired is returned. When the store can report read
// failures and the medium is unreachable, the error is returned and the
// session is kept. No token exchange is attempted.
func (s *Session) RefreshIfNeeded(ctx context.Context) error {
	if !s.IsAuthenticated() {
		return nil
	}

	if v, ok := s.store.(tokenstore.Verifier); ok {
		_, found, err := v.Verify(ctx)
		if err != nil {
			slog.WarnContext(ctx, "session check failed, keeping session", "error", err)
			return fmt.Errorf("checking stored session: %w", err)
		}
		if found {
			return nil
		}
	} else if _, found := s.store.Load(ctx); found {
		return nil
	}

	if err := s.Logout(ctx); err != nil {
		return errors.Join(ErrSessionExpired, err)
	}
	return ErrSessionExpired
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// IsAuthenticated reports whether the session holds tokens.
func (s *Session) IsAuthenticated() bool {
	return s.State().IsAuthenticated()
}

// IsLoading reports whether the session is still being restored.
func (s *Session) IsLoading() bool {
	return s.State().IsLoading()
}

// CurrentTokens returns the held tokens, if any.
func (s *Session) CurrentTokens() (credentials.TokenBundle, bool) {
	st := s.State()
	if !st.IsAuthenticated() {
		return credentials.TokenBundle{}, false
	}
	return st.Tokens, true
}

// AuthorizationHeader returns "Bearer <jwt>" for the held session.
func (s *Session) AuthorizationHeader() (string, bool) {
	tokens, ok := s.CurrentTokens()
	if !ok {
		return "", false
	}
	return tokens.AuthorizationHeader(), true
}

// Subscribe registers fn to be called after every transition with the new
// state. Callbacks run synchronously on the goroutine that caused the
// transition, outside the state lock. The returned func unregisters fn.
func (s *Session) Subscribe(fn func(State)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) transition(next State) {
	s.mu.Lock()
	s.state = next
	subs := s.snapshotSubscribersLocked()
	s.mu.Unlock()

	notify(subs, next)
}

// transitionIf applies next only while the current status is from.
func (s *Session) transitionIf(from Status, next State) bool {
	s.mu.Lock()
	if s.state.Status != from {
		s.mu.Unlock()
		return false
	}
	s.state = next
	subs := s.snapshotSubscribersLocked()
	s.mu.Unlock()

	notify(subs, next)
	return true
}

func (s *Session) snapshotSubscribersLocked() []func(State) {
	subs := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(State), st State) {
	for _, fn := range subs {
		fn(st)
	}
}
