package accounts

import (
	"context"
	"errors"
)

const defaultGetOrCreateAttempts = 5

// GetOrCreateOptions describes a lookup keyed by K that falls back to
// creating a V. Create reports whether this call inserted the value; a
// concurrent insert that won the race comes back with created=false.
type GetOrCreateOptions[K comparable, V any] struct {
	Lookup      func(ctx context.Context, key K) (V, error)
	Create      func(ctx context.Context, key K) (V, bool, error)
	After       func(ctx context.Context, value V, created bool) error
	NotFound    error
	Retryable   func(err error) bool
	MaxAttempts int
}

// GetOrCreate returns the value for key, creating it when Lookup reports
// NotFound. Create errors accepted by Retryable are retried up to
// MaxAttempts times. After runs once on the final value.
func GetOrCreate[K comparable, V any](ctx context.Context, key K, opts GetOrCreateOptions[K, V]) (V, bool, error) {
	var zero V

	value, err := opts.Lookup(ctx, key)
	switch {
	case err == nil:
		return finishGetOrCreate(ctx, value, false, opts.After)
	case opts.NotFound == nil || !errors.Is(err, opts.NotFound):
		return zero, false, err
	}

	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = defaultGetOrCreateAttempts
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, false, err
		}

		value, created, err := opts.Create(ctx, key)
		if err == nil {
			return finishGetOrCreate(ctx, value, created, opts.After)
		}
		if opts.Retryable == nil || !opts.Retryable(err) {
			return zero, false, err
		}
		lastErr = err
	}

	return zero, false, lastErr
}

func finishGetOrCreate[V any](ctx context.Context, value V, created bool, after func(context.Context, V, bool) error) (V, bool, error) {
	if after != nil {
		if err := after(ctx, value, created); err != nil {
			var zero V
			return zero, false, err
		}
	}
	return value, created, nil
}
