package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/florianilch/smartrade/internal/credentials"
)

// markerUnit is the resolution of the persisted expiry timestamp.
type markerUnit int

const (
	markerSeconds markerUnit = iota
	markerMillis
)

func (u markerUnit) encode(t time.Time) string {
	if u == markerMillis {
		return strconv.FormatInt(t.UnixMilli(), 10)
	}
	return strconv.FormatInt(t.Unix(), 10)
}

// decode accepts integer or fractional timestamps; key-value media written by
// other clients may carry a floating point millisecond value.
func (u markerUnit) decode(raw string) (time.Time, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return time.Time{}, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", raw)
	}
	if u == markerMillis {
		return time.UnixMilli(int64(v)), nil
	}
	return time.Unix(int64(v), 0), nil
}

func (u markerUnit) truncate(t time.Time) time.Time {
	if u == markerMillis {
		return time.UnixMilli(t.UnixMilli())
	}
	return time.Unix(t.Unix(), 0)
}

// pairStore implements Store on top of any Backend by keeping the bundle and
// its expiry marker in two records.
type pairStore struct {
	name      string
	backend   Backend
	bundleKey string
	expiryKey string
	unit      markerUnit
	opts      options
}

func (s *pairStore) Persist(ctx context.Context, tokens credentials.TokenBundle) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if err := tokens.Validate(); err != nil {
		return Record{}, err
	}

	data, err := json.Marshal(tokens)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	expiresAt := s.unit.truncate(s.opts.now().Add(s.opts.ttl))

	if err := s.backend.Set(ctx, s.bundleKey, string(data)); err != nil {
		return Record{}, fmt.Errorf("%w: writing tokens: %w", ErrStorageUnavailable, err)
	}

	if err := s.backend.Set(ctx, s.expiryKey, s.unit.encode(expiresAt)); err != nil {
		// A bundle without its marker must not outlive this call
		if clearErr := s.Clear(ctx); clearErr != nil {
			slog.WarnContext(ctx, "rollback after failed expiry write incomplete", "medium", s.name, "error", clearErr)
		}
		return Record{}, fmt.Errorf("%w: writing expiry: %w", ErrStorageUnavailable, err)
	}

	slog.InfoContext(ctx, "session tokens stored", "medium", s.name, "expires_at", expiresAt)
	return Record{Tokens: tokens, ExpiresAt: expiresAt}, nil
}

func (s *pairStore) Load(ctx context.Context) (Record, bool) {
	rec, ok, err := s.Verify(ctx)
	if err != nil {
		slog.WarnContext(ctx, "reading stored session failed", "medium", s.name, "error", err)
		return Record{}, false
	}
	return rec, ok
}

func (s *pairStore) Verify(ctx context.Context) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	rawExpiry, err := s.backend.Get(ctx, s.expiryKey)
	switch {
	case errors.Is(err, ErrNotFound):
		// A bundle without its marker may be a Persist in progress; leave it
		return Record{}, false, nil
	case errors.Is(err, ErrCorrupt):
		s.discard(ctx, "unusable expiry marker", err)
		return Record{}, false, nil
	case err != nil:
		return Record{}, false, fmt.Errorf("%w: reading expiry: %w", ErrStorageUnavailable, err)
	}

	expiresAt, err := s.unit.decode(rawExpiry)
	if err != nil {
		s.discard(ctx, "unparsable expiry marker", err)
		return Record{}, false, nil
	}

	if s.opts.now().After(expiresAt) {
		s.discard(ctx, "tokens expired", nil)
		return Record{}, false, nil
	}

	rawTokens, err := s.backend.Get(ctx, s.bundleKey)
	switch {
	case errors.Is(err, ErrNotFound):
		s.discard(ctx, "expiry marker without tokens", nil)
		return Record{}, false, nil
	case errors.Is(err, ErrCorrupt):
		s.discard(ctx, "unusable tokens", err)
		return Record{}, false, nil
	case err != nil:
		return Record{}, false, fmt.Errorf("%w: reading tokens: %w", ErrStorageUnavailable, err)
	}

	var tokens credentials.TokenBundle
	if err := json.Unmarshal([]byte(rawTokens), &tokens); err != nil {
		s.discard(ctx, "corrupt tokens", err)
		return Record{}, false, nil
	}
	if err := tokens.Validate(); err != nil {
		s.discard(ctx, "incomplete tokens", err)
		return Record{}, false, nil
	}

	slog.DebugContext(ctx, "loaded stored session", "medium", s.name, "user_id", tokens.UserID)
	return Record{Tokens: tokens, ExpiresAt: expiresAt}, true, nil
}

func (s *pairStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var errs []error
	if err := s.backend.Delete(ctx, s.bundleKey); err != nil && !errors.Is(err, ErrNotFound) {
		errs = append(errs, fmt.Errorf("removing tokens: %w", err))
	}
	if err := s.backend.Delete(ctx, s.expiryKey); err != nil && !errors.Is(err, ErrNotFound) {
		errs = append(errs, fmt.Errorf("removing expiry: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, errors.Join(errs...))
	}
	return nil
}

func (s *pairStore) Available(ctx context.Context) error {
	if err := s.backend.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, s.name, err)
	}
	return nil
}

func (s *pairStore) String() string {
	return s.name
}

// discard removes both records after Load found them unusable.
func (s *pairStore) discard(ctx context.Context, reason string, cause error) {
	attrs := []any{"medium", s.name, "reason", reason}
	if cause != nil {
		attrs = append(attrs, "error", cause)
	}
	slog.InfoContext(ctx, "discarding stored session", attrs...)

	if err := s.Clear(ctx); err != nil {
		slog.WarnContext(ctx, "clearing stored session failed", "medium", s.name, "error", err)
	}
}
