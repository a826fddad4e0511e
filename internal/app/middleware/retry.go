package middleware

import (
	"context"
	"errors"
	"time"

	"rentme-reservations/internal/app/commands"
)

// RetryOn matches errors wrapping any of targets.
func RetryOn(targets ...error) func(error) bool {
	return func(err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// Retry re-dispatches a command whose transaction lost an optimistic race.
// It must wrap Transaction so each attempt runs in a fresh unit of work.
func Retry(backoff []time.Duration, retryable func(error) bool) CommandMiddleware {
	if retryable == nil {
		panic("middleware: retry predicate required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			for attempt := 0; ; attempt++ {
				res, err := next.Dispatch(ctx, cmd)
				if err == nil || !retryable(err) || attempt >= len(backoff) {
					return res, err
				}
				if sleepErr := sleep(ctx, backoff[attempt]); sleepErr != nil {
					return nil, errors.Join(err, sleepErr)
				}
			}
		})
	}
}
