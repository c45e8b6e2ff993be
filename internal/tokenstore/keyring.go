package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// probeKey is looked up by Ping; it is never written.
const probeKey = "availability_probe"

// KeyringBackend stores records in the OS-native credential store
// (macOS Keychain, Windows Credential Manager, Linux Secret Service).
// Each key becomes one credential entry under the service name.
type KeyringBackend struct {
	service string
}

// Compile-time check to ensure KeyringBackend implements Backend
var _ Backend = (*KeyringBackend)(nil)

// NewKeyringBackend creates a KeyringBackend for the given service name.
func NewKeyringBackend(service string) (*KeyringBackend, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}

	return &KeyringBackend{service: service}, nil
}

// Get returns the value from the system keyring.
func (k *KeyringBackend) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	value, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set writes the value to the system keyring, overwriting any existing value.
func (k *KeyringBackend) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return keyring.Set(k.service, key, value)
}

// Delete removes the entry. A missing entry is not an error.
func (k *KeyringBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := keyring.Delete(k.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

// Ping looks up a key that is never written. A not-found answer means the
// keyring service responded.
func (k *KeyringBackend) Ping(ctx context.Context) error {
	_, err := k.Get(ctx, probeKey)
	if err == nil || errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
