package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentme-reservations/internal/app/dto"
	handlersupport "rentme-reservations/internal/app/handlers/support"
	"rentme-reservations/internal/app/queries"
	"rentme-reservations/internal/app/uow"
	domainbooking "rentme-reservations/internal/domain/booking"
	domainproperty "rentme-reservations/internal/domain/property"
	"rentme-reservations/internal/domain/shared/daterange"
)

const (
	isAvailableKey = "availability.is_available"
	listWindowsKey = "availability.list_windows"
)

// IsPropertyAvailableQuery is a hint for renters; CreateBooking re-checks under lock.
type IsPropertyAvailableQuery struct {
	PropertyID string    `validate:"required,max=64"`
	CheckIn    time.Time `validate:"required"`
	CheckOut   time.Time `validate:"required"`
}

func (q IsPropertyAvailableQuery) Key() string { return isAvailableKey }

type IsPropertyAvailableHandler struct {
	UoWFactory uow.UoWFactory
	Now        func() time.Time
}

func (h *IsPropertyAvailableHandler) Handle(ctx context.Context, q IsPropertyAvailableQuery) (dto.Availability, error) {
	dr, err := daterange.New(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.Availability{}, domainbooking.InvalidRange(err)
	}
	if err := dr.ValidateNotPast(handlersupport.Clock(h.Now)); err != nil {
		return dto.Availability{}, domainbooking.InvalidRange(err)
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Availability{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	prop, err := loadProperty(execCtx, unit, q.PropertyID)
	if err != nil {
		return dto.Availability{}, err
	}
	conflicts, err := handlersupport.Resolver(unit).Conflicts(execCtx, prop.ID, dr, "")
	if err != nil {
		return dto.Availability{}, err
	}
	return dto.Availability{
		PropertyID: string(prop.ID),
		CheckIn:    dr.CheckIn,
		CheckOut:   dr.CheckOut,
		Available:  len(conflicts) == 0,
		Conflicts:  dto.MapConflicts(conflicts),
	}, nil
}

type ListWindowsQuery struct {
	PropertyID string `validate:"required,max=64"`
}

func (q ListWindowsQuery) Key() string { return listWindowsKey }

type ListWindowsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListWindowsHandler) Handle(ctx context.Context, q ListWindowsQuery) (dto.WindowCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.WindowCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	prop, err := loadProperty(execCtx, unit, q.PropertyID)
	if err != nil {
		return dto.WindowCollection{}, err
	}
	windows, err := unit.Windows().ListByProperty(execCtx, prop.ID)
	if err != nil {
		return dto.WindowCollection{}, err
	}
	return dto.MapWindows(windows), nil
}

func loadProperty(ctx context.Context, unit uow.UnitOfWork, id string) (*domainproperty.Property, error) {
	prop, err := unit.Properties().ByID(ctx, domainproperty.PropertyID(id))
	if err != nil {
		if errors.Is(err, domainproperty.ErrNotFound) {
			return nil, fmt.Errorf("%w: property %s", domainbooking.ErrNotFound, id)
		}
		return nil, err
	}
	return prop, nil
}

var (
	_ queries.Handler[IsPropertyAvailableQuery, dto.Availability] = (*IsPropertyAvailableHandler)(nil)
	_ queries.Handler[ListWindowsQuery, dto.WindowCollection]     = (*ListWindowsHandler)(nil)
)
