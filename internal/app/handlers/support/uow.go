package support

import (
	"context"
	"time"

	"rentme-reservations/internal/app/outbox"
	"rentme-reservations/internal/app/uow"
	domainavailability "rentme-reservations/internal/domain/availability"
	domainbooking "rentme-reservations/internal/domain/booking"
	"rentme-reservations/internal/domain/shared/events"
)

// BeginReadOnlyUnit reuses the unit in ctx or opens a read-only one.
// The returned cleanup is nil when the unit was reused.
func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	unit, ok := uow.FromContext(ctx)
	if ok {
		return unit, ctx, nil, nil
	}
	if factory == nil {
		return nil, ctx, nil, uow.ErrUnitOfWorkMissing
	}
	newUnit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, err
	}
	execCtx := uow.Enter(ctx, newUnit)
	cleanup := func() {
		_ = newUnit.Rollback(execCtx)
	}
	return newUnit, execCtx, cleanup, nil
}

// RequireUnit returns the unit opened by the transaction middleware.
func RequireUnit(ctx context.Context) (uow.UnitOfWork, error) {
	unit, ok := uow.FromContext(ctx)
	if !ok {
		return nil, uow.ErrUnitOfWorkMissing
	}
	return unit, nil
}

// Resolver builds an availability resolver reading through unit.
func Resolver(unit uow.UnitOfWork) domainavailability.Resolver {
	return domainavailability.NewResolver(unit.Windows(), domainbooking.Reservations(unit.Bookings()))
}

// Flush moves pending events of the aggregates into the unit's outbox.
func Flush(ctx context.Context, unit uow.UnitOfWork, encoder outbox.EventEncoder, aggregates ...events.Recorder) error {
	return outbox.RecordDomainEvents(ctx, unit.Outbox(), encoder, events.Drain(aggregates...))
}

// Clock returns now or time.Now when now is nil.
func Clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now().UTC()
}
