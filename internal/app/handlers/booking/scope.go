package booking

import (
	"context"

	"rentme-reservations/internal/app/commands"
	handlersupport "rentme-reservations/internal/app/handlers/support"
	"rentme-reservations/internal/app/middleware"
	"rentme-reservations/internal/app/uow"
	domainbooking "rentme-reservations/internal/domain/booking"
)

// ScopeResolver locks booking commands on the property of the booking they touch.
func ScopeResolver(factory uow.UoWFactory) middleware.ScopeResolver {
	return func(ctx context.Context, cmd commands.Command) (string, error) {
		scoped, ok := cmd.(BookingScoped)
		if !ok {
			return middleware.DirectScope(ctx, cmd)
		}
		unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, factory)
		if err != nil {
			return "", err
		}
		if cleanup != nil {
			defer cleanup()
		}
		b, err := unit.Bookings().ByID(execCtx, domainbooking.ID(scoped.BookingRef()))
		if err != nil {
			return "", err
		}
		return string(b.PropertyID), nil
	}
}
