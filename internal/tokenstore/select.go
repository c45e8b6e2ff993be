package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Select returns the first candidate whose medium is available on this host.
// It is the single place where the storage medium is decided.
func Select(ctx context.Context, candidates ...Store) (Store, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no storage candidates", ErrStorageUnavailable)
	}

	var errs []error
	for _, candidate := range candidates {
		err := candidate.Available(ctx)
		if err == nil {
			slog.DebugContext(ctx, "token storage selected", "medium", fmt.Sprint(candidate))
			return candidate, nil
		}
		slog.DebugContext(ctx, "token storage unavailable", "medium", fmt.Sprint(candidate), "error", err)
		errs = append(errs, err)
	}

	return nil, errors.Join(errs...)
}
