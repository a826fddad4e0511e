package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type renameCommand struct{ Name string }

func (renameCommand) Key() string { return "test.rename" }

func TestDispatchReportsResultMismatch(t *testing.T) {
	bus := NewInMemoryBus()
	RegisterHandler[renameCommand, string](bus, HandlerFunc[renameCommand, string](func(_ context.Context, cmd renameCommand) (string, error) {
		return cmd.Name, nil
	}))

	got, err := Dispatch[renameCommand, string](context.Background(), bus, renameCommand{Name: "villa"})
	require.NoError(t, err)
	assert.Equal(t, "villa", got)

	_, err = Dispatch[renameCommand, int](context.Background(), bus, renameCommand{Name: "villa"})
	require.ErrorIs(t, err, ErrResultType)
	var mismatch *ResultTypeError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, ResultTypeError{Key: "test.rename", Want: "int", Got: "string"}, *mismatch)
}

func TestDispatchWithoutHandlerOrBus(t *testing.T) {
	_, err := Dispatch[renameCommand, string](context.Background(), NewInMemoryBus(), renameCommand{})
	assert.ErrorIs(t, err, ErrHandlerNotFound)

	_, err = Dispatch[renameCommand, string](context.Background(), nil, renameCommand{})
	assert.ErrorIs(t, err, ErrNilBus)
}
