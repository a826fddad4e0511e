package middleware

import (
	"context"

	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/outbox"
)

// OutboxWake nudges the outbox relay after a command committed so events
// leave without waiting for the next poll.
func OutboxWake(waker outbox.Waker) CommandMiddleware {
	if waker == nil {
		panic("middleware: outbox waker required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			waker.Wake()
			return res, nil
		})
	}
}
