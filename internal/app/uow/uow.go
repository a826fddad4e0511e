package uow

import (
	"context"

	"rentme-reservations/internal/app/outbox"
	domainavailability "rentme-reservations/internal/domain/availability"
	domainbooking "rentme-reservations/internal/domain/booking"
	domainproperty "rentme-reservations/internal/domain/property"
)

// UnitOfWork coordinates repositories inside a transaction boundary.
// Writes become visible to other units only after Commit.
type UnitOfWork interface {
	Properties() domainproperty.Repository
	Bookings() domainbooking.Repository
	Windows() domainavailability.WindowRepository
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}
