package middleware

import (
	"context"
	"errors"

	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/saga"
	"rentme-reservations/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// Transaction runs the handler inside a unit of work. Side effects registered
// in the saga log are compensated when the unit does not commit.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			unit, err := factory.Begin(ctx, opts)
			if err != nil {
				return nil, err
			}
			execCtx, log := saga.WithLog(uow.Enter(ctx, unit))
			finished := false
			defer func() {
				if !finished {
					_ = unit.Rollback(execCtx)
				}
			}()

			res, err := next.Dispatch(execCtx, cmd)
			if err == nil {
				err = unit.Commit(execCtx)
			}
			if err != nil {
				_ = unit.Rollback(execCtx)
				finished = true
				if compErr := log.Compensate(context.WithoutCancel(ctx)); compErr != nil {
					return nil, errors.Join(err, compErr)
				}
				return nil, err
			}
			finished = true
			log.Forget()
			return res, nil
		})
	}
}
