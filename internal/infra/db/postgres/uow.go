package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"gorm.io/gorm"

	appoutbox "rentme-reservations/internal/app/outbox"
	"rentme-reservations/internal/app/uow"
	domainavailability "rentme-reservations/internal/domain/availability"
	domainbooking "rentme-reservations/internal/domain/booking"
	domainproperty "rentme-reservations/internal/domain/property"
)

var (
	ErrReadOnlyUnit = errors.New("postgres: write in read-only unit of work")
	ErrUnitClosed   = errors.New("postgres: unit of work already finished")
)

// Factory starts one database transaction per unit of work.
type Factory struct {
	DB *gorm.DB
}

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	tx := f.DB.WithContext(ctx).Begin(&sql.TxOptions{ReadOnly: opts.ReadOnly})
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &Unit{tx: tx, readOnly: opts.ReadOnly}, nil
}

type Unit struct {
	tx       *gorm.DB
	readOnly bool

	mu   sync.Mutex
	done bool
}

func (u *Unit) Properties() domainproperty.Repository {
	return propertyRepo{u: u}
}

func (u *Unit) Bookings() domainbooking.Repository {
	return bookingRepo{u: u}
}

func (u *Unit) Windows() domainavailability.WindowRepository {
	return windowRepo{u: u}
}

func (u *Unit) Outbox() appoutbox.Outbox {
	return unitOutbox{u: u}
}

func (u *Unit) Commit(context.Context) error {
	if err := u.finish(); err != nil {
		return err
	}
	return u.tx.Commit().Error
}

func (u *Unit) Rollback(context.Context) error {
	if u.finish() != nil {
		return nil
	}
	return u.tx.Rollback().Error
}

func (u *Unit) finish() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	return nil
}

func (u *Unit) db(ctx context.Context) *gorm.DB {
	return u.tx.WithContext(ctx)
}

func (u *Unit) writable() error {
	if u.readOnly {
		return ErrReadOnlyUnit
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	return nil
}

var _ uow.UoWFactory = Factory{}
