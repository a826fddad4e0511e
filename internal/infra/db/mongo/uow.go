package mongo

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"

	appoutbox "rentme-reservations/internal/app/outbox"
	"rentme-reservations/internal/app/uow"
	domainavailability "rentme-reservations/internal/domain/availability"
	domainbooking "rentme-reservations/internal/domain/booking"
	domainproperty "rentme-reservations/internal/domain/property"
)

var (
	ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")
	ErrReadOnlyUnit            = errors.New("mongo: write in read-only unit of work")
	ErrUnitClosed              = errors.New("mongo: unit of work already finished")
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
// Transactions need a replica set; read-only units run on a plain session.
type Factory struct {
	DB *mongo.Database
}

// Begin starts a MongoDB session/transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	if !opts.ReadOnly {
		txnOpts := options.Transaction().SetReadConcern(readconcern.Snapshot()).SetWriteConcern(f.DB.WriteConcern())
		if err := session.StartTransaction(txnOpts); err != nil {
			session.EndSession(ctx)
			return nil, err
		}
	}
	return &Unit{db: f.DB, session: session, readOnly: opts.ReadOnly}, nil
}

type Unit struct {
	db       *mongo.Database
	session  mongo.Session
	readOnly bool

	mu   sync.Mutex
	done bool
}

func (u *Unit) Properties() domainproperty.Repository {
	return propertyRepo{u: u, col: u.db.Collection(colProperties)}
}

func (u *Unit) Bookings() domainbooking.Repository {
	return bookingRepo{u: u, col: u.db.Collection(colBookings)}
}

func (u *Unit) Windows() domainavailability.WindowRepository {
	return windowRepo{u: u, col: u.db.Collection(colWindows)}
}

func (u *Unit) Outbox() appoutbox.Outbox {
	return unitOutbox{u: u, col: u.db.Collection(colOutbox)}
}

func (u *Unit) Commit(ctx context.Context) error {
	if err := u.finish(); err != nil {
		return err
	}
	defer u.session.EndSession(ctx)
	if u.readOnly {
		return nil
	}
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.finish() != nil {
		return nil
	}
	defer u.session.EndSession(ctx)
	if u.readOnly {
		return nil
	}
	return u.session.AbortTransaction(ctx)
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

// InjectContext binds ctx to the unit's session so operations join its transaction.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
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
