package tokenstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by a Backend when a key holds no value.
	ErrNotFound = errors.New("not found")
	// ErrCorrupt is returned by a Backend when a value exists but must not be
	// used. Stores discard the record.
	ErrCorrupt = errors.New("unusable record")
)

// Record keys used by key-value media.
const (
	KeyTokens = "angel_trading_auth_tokens"
	KeyExpiry = "angel_trading_auth_expiry"
)

// Backend is a string-keyed persistent key-value medium.
type Backend interface {
	// Get returns the value stored under key, ErrNotFound or ErrCorrupt.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error
	// Ping reports whether the medium is reachable.
	Ping(ctx context.Context) error
}

// KVStore is a Store on a key-value Backend. The expiry marker is kept in
// epoch milliseconds.
type KVStore struct {
	pairStore
}

// Compile-time checks to ensure KVStore implements Store and Verifier
var (
	_ Store    = (*KVStore)(nil)
	_ Verifier = (*KVStore)(nil)
)

// NewKVStore creates a KVStore on backend. name identifies the medium in logs.
func NewKVStore(name string, backend Backend, opts ...Option) (*KVStore, error) {
	if backend == nil {
		return nil, errors.New("backend cannot be nil")
	}
	if name == "" {
		name = "kv"
	}

	return &KVStore{pairStore{
		name:      name,
		backend:   backend,
		bundleKey: KeyTokens,
		expiryKey: KeyExpiry,
		unit:      markerMillis,
		opts:      newOptions(opts),
	}}, nil
}
