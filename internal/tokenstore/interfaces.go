package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/florianilch/smartrade/internal/credentials"
)

var (
	// ErrStorageUnavailable is returned when the medium cannot be reached or written.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrSerialization is returned when a bundle cannot be encoded.
	ErrSerialization = errors.New("token serialization failed")
)

// DefaultTTL is the validity window of a persisted bundle.
const DefaultTTL = 24 * time.Hour

// Record is a persisted bundle and the moment it stops being valid.
type Record struct {
	Tokens    credentials.TokenBundle
	ExpiresAt time.Time
}

// Store persists a single TokenBundle and its expiry marker.
type Store interface {
	// Persist writes the bundle and an expiry marker of now + TTL.
	// The pair is either fully visible to Load or not at all.
	Persist(ctx context.Context, tokens credentials.TokenBundle) (Record, error)

	// Load returns the persisted record if one exists and has not expired.
	// Expired or corrupt records are removed and reported as absent. A
	// bundle without its marker is reported as absent and left in place.
	// Read failures are logged and also reported as absent.
	Load(ctx context.Context) (Record, bool)

	// Clear removes both records. Clearing an empty store succeeds.
	Clear(ctx context.Context) error

	// Available probes whether the medium can be used on this host.
	Available(ctx context.Context) error
}

// Verifier is implemented by stores that can tell an absent record from an
// unreachable medium. Verify behaves like Load but returns read failures as
// errors wrapping ErrStorageUnavailable, leaving the records untouched.
type Verifier interface {
	Verify(ctx context.Context) (Record, bool, error)
}

// Option configures a Store.
type Option func(*options)

type options struct {
	now func() time.Time
	ttl time.Duration
}

// WithClock overrides the time source used for expiry markers.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
