package commands

import (
	"context"
	"errors"
	"fmt"
)

// Command is a write intent. Key picks the handler and names the command in
// logs and idempotency records.
type Command interface {
	Key() string
}

// PropertyScoped commands change the calendar of a single property and must
// not run concurrently with other commands on it.
type PropertyScoped interface {
	Command
	PropertyScope() string
}

type Handler[C Command, R any] interface {
	Handle(ctx context.Context, cmd C) (R, error)
}

type HandlerFunc[C Command, R any] func(ctx context.Context, cmd C) (R, error)

func (f HandlerFunc[C, R]) Handle(ctx context.Context, cmd C) (R, error) {
	return f(ctx, cmd)
}

type Bus interface {
	Dispatch(ctx context.Context, cmd Command) (any, error)
}

var (
	ErrHandlerNotFound = errors.New("commands: handler not found")
	ErrInvalidCommand  = errors.New("commands: invalid command for handler")
	ErrResultType      = errors.New("commands: result type mismatch")
	ErrNilBus          = errors.New("commands: nil bus")
)

// ResultTypeError reports a handler result the caller did not expect, which
// means a registration and a call site disagree.
type ResultTypeError struct {
	Key  string
	Want string
	Got  string
}

func (e *ResultTypeError) Error() string {
	return fmt.Sprintf("%s: %s returned %s, caller wants %s", ErrResultType, e.Key, e.Got, e.Want)
}

func (e *ResultTypeError) Unwrap() error { return ErrResultType }

// Dispatch sends cmd through bus and asserts the result type. A nil result
// yields the zero R, which is how handlers without output answer.
func Dispatch[C Command, R any](ctx context.Context, bus Bus, cmd C) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Dispatch(ctx, cmd)
	if err != nil || res == nil {
		return zero, err
	}
	value, ok := res.(R)
	if !ok {
		return zero, &ResultTypeError{Key: cmd.Key(), Want: fmt.Sprintf("%T", zero), Got: fmt.Sprintf("%T", res)}
	}
	return value, nil
}
