package memory

import (
	"context"
	"errors"
	"sync"

	appoutbox "rentme-reservations/internal/app/outbox"
	"rentme-reservations/internal/app/uow"
	domainavailability "rentme-reservations/internal/domain/availability"
	domainbooking "rentme-reservations/internal/domain/booking"
	domainproperty "rentme-reservations/internal/domain/property"
)

var ErrUnitClosed = errors.New("memory: unit of work already finished")

// Store keeps committed state for every repository. Units stage their writes
// and apply them in one step on Commit.
type Store struct {
	mu         sync.RWMutex
	properties map[domainproperty.PropertyID]*domainproperty.Property
	bookings   map[domainbooking.ID]*domainbooking.Booking
	windows    map[domainavailability.WindowID]*domainavailability.Window
	outbox     *outboxLog
}

func NewStore() *Store {
	return &Store{
		properties: make(map[domainproperty.PropertyID]*domainproperty.Property),
		bookings:   make(map[domainbooking.ID]*domainbooking.Booking),
		windows:    make(map[domainavailability.WindowID]*domainavailability.Window),
		outbox:     newOutboxLog(),
	}
}

// Begin implements uow.UoWFactory.
func (s *Store) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &unit{
		store:      s,
		readOnly:   opts.ReadOnly,
		properties: make(map[domainproperty.PropertyID]*domainproperty.Property),
		bookings:   make(map[domainbooking.ID]stagedBooking),
		windows:    make(map[domainavailability.WindowID]*domainavailability.Window),
		deleted:    make(map[domainavailability.WindowID]struct{}),
	}, nil
}

// Outbox exposes the relay side of the outbox log.
func (s *Store) Outbox() *OutboxStore {
	return &OutboxStore{log: s.outbox}
}

type stagedBooking struct {
	booking *domainbooking.Booking
	// base is the committed version the unit first read; zero for inserts.
	base int64
}

type unit struct {
	store    *Store
	readOnly bool

	mu         sync.Mutex
	done       bool
	properties map[domainproperty.PropertyID]*domainproperty.Property
	bookings   map[domainbooking.ID]stagedBooking
	windows    map[domainavailability.WindowID]*domainavailability.Window
	deleted    map[domainavailability.WindowID]struct{}
	records    []appoutbox.EventRecord
}

func (u *unit) Properties() domainproperty.Repository        { return propertyRepo{u: u} }
func (u *unit) Bookings() domainbooking.Repository           { return bookingRepo{u: u} }
func (u *unit) Windows() domainavailability.WindowRepository { return windowRepo{u: u} }
func (u *unit) Outbox() appoutbox.Outbox                     { return unitOutbox{u: u} }

func (u *unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	u.done = true
	if u.readOnly {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s := u.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, staged := range u.bookings {
		var current int64
		if stored, ok := s.bookings[id]; ok {
			current = stored.Version
		}
		if current != staged.base {
			return domainbooking.ErrConcurrentUpdate
		}
	}
	for id, p := range u.properties {
		s.properties[id] = p
	}
	for id, staged := range u.bookings {
		s.bookings[id] = staged.booking
	}
	for id := range u.deleted {
		delete(s.windows, id)
	}
	for id, w := range u.windows {
		s.windows[id] = w
	}
	s.outbox.append(u.records...)
	return nil
}

// Rollback discards staged writes. It is safe to call more than once.
func (u *unit) Rollback(context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.done = true
	u.properties = nil
	u.bookings = nil
	u.windows = nil
	u.deleted = nil
	u.records = nil
	return nil
}

func (u *unit) writable() error {
	if u.done {
		return ErrUnitClosed
	}
	if u.readOnly {
		return errors.New("memory: write in read-only unit")
	}
	return nil
}

var _ uow.UoWFactory = (*Store)(nil)
