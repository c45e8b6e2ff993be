// Package credentials defines the session token bundle issued by the broker.
package credentials

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidBundle is returned when a bundle is missing one of its fields.
var ErrInvalidBundle = errors.New("invalid token bundle")

// TokenBundle holds the credentials issued by the broker for one login.
// The JSON layout is the persisted record format and must stay stable.
type TokenBundle struct {
	JWTToken     string `json:"jwt_token"`
	RefreshToken string `json:"refresh_token"`
	FeedToken    string `json:"feed_token"`
	UserID       string `json:"user_id"`
}

// Validate reports ErrInvalidBundle if any field is empty.
func (b TokenBundle) Validate() error {
	var missing []string
	if b.JWTToken == "" {
		missing = append(missing, "jwt_token")
	}
	if b.RefreshToken == "" {
		missing = append(missing, "refresh_token")
	}
	if b.FeedToken == "" {
		missing = append(missing, "feed_token")
	}
	if b.UserID == "" {
		missing = append(missing, "user_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: empty %v", ErrInvalidBundle, missing)
	}
	return nil
}

// Valid is shorthand for Validate() == nil.
func (b TokenBundle) Valid() bool {
	return b.Validate() == nil
}

// AuthorizationHeader returns the bearer value for the Authorization header.
func (b TokenBundle) AuthorizationHeader() string {
	return "Bearer " + b.JWTToken
}

// JWTExpiry returns the exp claim of the JWT without verifying its signature.
// The broker's signing key is not available to the client, so the value is
// informational only. ok is false if the token is not a JWT or has no exp.
func (b TokenBundle) JWTExpiry() (expiry time.Time, ok bool) {
	token, _, err := jwt.NewParser().ParseUnverified(b.JWTToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
