package session

import (
	"time"

	"github.com/florianilch/smartrade/internal/credentials"
)

// Status tags the variant held by State.
type Status int

const (
	// StatusLoading is the initial status until storage has been consulted.
	StatusLoading Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot of the session. Tokens and ExpiresAt are set
// only when Status is StatusAuthenticated.
type State struct {
	Status    Status
	Tokens    credentials.TokenBundle
	ExpiresAt time.Time
}

func loading() State {
	return State{Status: StatusLoading}
}

func unauthenticated() State {
	return State{Status: StatusUnauthenticated}
}

func authenticated(tokens credentials.TokenBundle, expiresAt time.Time) State {
	return State{Status: StatusAuthenticated, Tokens: tokens, ExpiresAt: expiresAt}
}

// IsAuthenticated reports whether the snapshot holds tokens.
func (s State) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated
}

// IsLoading reports whether the session is still being restored.
func (s State) IsLoading() bool {
	return s.Status == StatusLoading
}
