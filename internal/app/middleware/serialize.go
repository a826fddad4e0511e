package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/policies"
)

// ScopeResolver returns the property a command must be serialized on, or ""
// when the command needs no lock.
type ScopeResolver func(ctx context.Context, cmd commands.Command) (string, error)

// DirectScope resolves commands implementing commands.PropertyScoped.
func DirectScope(_ context.Context, cmd commands.Command) (string, error) {
	if scoped, ok := cmd.(commands.PropertyScoped); ok {
		return scoped.PropertyScope(), nil
	}
	return "", nil
}

// Serialize runs commands touching the same property one at a time.
// Lock attempts failing with ErrLockUnavailable are retried after each backoff step.
func Serialize(locker policies.PropertyLocker, resolve ScopeResolver, backoff []time.Duration) CommandMiddleware {
	if locker == nil {
		panic("middleware: property locker required")
	}
	if resolve == nil {
		resolve = DirectScope
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			scope, err := resolve(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if scope == "" {
				return next.Dispatch(ctx, cmd)
			}
			unlock, err := acquire(ctx, locker, "property:"+scope, backoff)
			if err != nil {
				return nil, err
			}
			defer unlock()
			return next.Dispatch(ctx, cmd)
		})
	}
}

func acquire(ctx context.Context, locker policies.PropertyLocker, key string, backoff []time.Duration) (func(), error) {
	for attempt := 0; ; attempt++ {
		unlock, err := locker.Lock(ctx, key)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, policies.ErrLockUnavailable) || attempt >= len(backoff) {
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if err := sleep(ctx, backoff[attempt]); err != nil {
			return nil, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
