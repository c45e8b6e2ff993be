// Package loginflow turns a submitted login form into an authenticated session.
package loginflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/florianilch/smartrade/internal/broker"
	"github.com/florianilch/smartrade/internal/credentials"
	"github.com/florianilch/smartrade/internal/tokenstore"
)

var (
	// ErrLoginInProgress is returned while an earlier submission is outstanding.
	ErrLoginInProgress = errors.New("login already in progress")
	// ErrTooManyAttempts is returned when the attempt budget is exhausted.
	ErrTooManyAttempts = errors.New("too many login attempts")
)

// Authenticator exchanges credentials for tokens.
type Authenticator interface {
	Login(ctx context.Context, creds broker.Credentials) (credentials.TokenBundle, error)
}

// SessionLogin stores tokens as the current session.
type SessionLogin interface {
	Login(ctx context.Context, tokens credentials.TokenBundle) error
}

// Option configures a Flow.
type Option func(*Flow)

// WithAttemptLimit allows at most attempts submissions per window that reach
// the broker. Non-positive values disable limiting.
func WithAttemptLimit(attempts int, window time.Duration) Option {
	return func(f *Flow) {
		if attempts <= 0 || window <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Every(window/time.Duration(attempts)), attempts)
	}
}

// Flow runs login submissions one at a time.
type Flow struct {
	auth    Authenticator
	session SessionLogin
	limiter *rate.Limiter

	inFlight atomic.Bool
}

// New creates a Flow.
func New(auth Authenticator, sess SessionLogin, opts ...Option) (*Flow, error) {
	if auth == nil {
		return nil, fmt.Errorf("missing authenticator")
	}
	if sess == nil {
		return nil, fmt.Errorf("missing session")
	}

	f := &Flow{auth: auth, session: sess}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// InFlight reports whether a submission is outstanding. Views use it to
// disable re-submission.
func (f *Flow) InFlight() bool {
	return f.inFlight.Load()
}

// Submit validates creds, authenticates with the broker and stores the
// resulting tokens in the session. Only one submission runs at a time; a
// concurrent call fails with ErrLoginInProgress. Use UserMessage to present
// the returned error.
func (f *Flow) Submit(ctx context.Context, creds broker.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	if !f.inFlight.CompareAndSwap(false, true) {
		return ErrLoginInProgress
	}
	defer f.inFlight.Store(false)

	if f.limiter != nil && !f.limiter.Allow() {
		return ErrTooManyAttempts
	}

	attempt := uuid.NewString()
	logger := slog.With("attempt_id", attempt, "client_code", creds.ClientCode)
	logger.InfoContext(ctx, "login attempt started")

	tokens, err := f.auth.Login(ctx, creds)
	if err != nil {
		logger.WarnContext(ctx, "login failed", "error", err)
		return err
	}

	if err := f.session.Login(ctx, tokens); err != nil {
		logger.ErrorContext(ctx, "failed to store session", "error", err)
		return err
	}

	logger.InfoContext(ctx, "login succeeded")
	return nil
}

// User-facing messages. Broker messages are never shown.
const (
	MessageInvalidCredentials = "Invalid credentials"
	MessageLoginFailed        = "Login failed"
	MessageSaveFailed         = "Failed to save session"
	MessageInProgress         = "Login already in progress"
	MessageTooManyAttempts    = "Too many login attempts, try again later"
)

// UserMessage maps a Submit error to a sanitized message for display.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, broker.ErrValidation), errors.Is(err, broker.ErrRejected):
		return MessageInvalidCredentials
	case errors.Is(err, ErrLoginInProgress):
		return MessageInProgress
	case errors.Is(err, ErrTooManyAttempts):
		return MessageTooManyAttempts
	case errors.Is(err, tokenstore.ErrStorageUnavailable), errors.Is(err, tokenstore.ErrSerialization):
		return MessageSaveFailed
	default:
		return MessageLoginFailed
	}
}
