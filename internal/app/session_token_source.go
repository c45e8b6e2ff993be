package app

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/florianilch/smartrade/internal/session"
)

// SessionTokenSource exposes the session JWT as an oauth2.TokenSource so
// broker calls can go through oauth2.Transport. Every Token call re-validates
// the session against storage; there is no refresh-token exchange.
type SessionTokenSource struct {
	session *session.Session
}

// Compile-time check to ensure SessionTokenSource implements oauth2.TokenSource
var _ oauth2.TokenSource = (*SessionTokenSource)(nil)

// NewSessionTokenSource creates a SessionTokenSource.
func NewSessionTokenSource(s *session.Session) (*SessionTokenSource, error) {
	if s == nil {
		return nil, fmt.Errorf("missing session")
	}
	return &SessionTokenSource{session: s}, nil
}

// Token returns the session JWT as a Bearer token expiring with the session.
func (ts *SessionTokenSource) Token() (*oauth2.Token, error) {
	// oauth2.TokenSource.Token() has no context parameter (legacy interface limitation)
	ctx := context.Background()

	if err := ts.session.RefreshIfNeeded(ctx); err != nil {
		return nil, err
	}

	st := ts.session.State()
	if !st.IsAuthenticated() {
		return nil, session.ErrNotAuthenticated
	}

	return &oauth2.Token{
		AccessToken:  st.Tokens.JWTToken,
		TokenType:    "Bearer",
		RefreshToken: st.Tokens.RefreshToken,
		Expiry:       st.ExpiresAt,
	}, nil
}
