package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "rentme-reservations/internal/app/outbox"
	"rentme-reservations/internal/app/uow"
	domainavailability "rentme-reservations/internal/domain/availability"
	domainbooking "rentme-reservations/internal/domain/booking"
	"rentme-reservations/internal/domain/shared/daterange"
	"rentme-reservations/internal/domain/shared/money"
)

func stay(from, to int) daterange.DateRange {
	return daterange.Must(time.Date(2026, 3, from, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, to, 0, 0, 0, 0, time.UTC))
}

func newBooking(id string, status domainbooking.Status, r daterange.DateRange) *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:         domainbooking.ID(id),
		PropertyID: "prop-1",
		RenterID:   "renter-1",
		OwnerID:    "owner-1",
		Range:      r,
		Status:     status,
		CreatedAt:  r.CheckIn,
	}
}

func begin(t *testing.T, s *Store) uow.UnitOfWork {
	t.Helper()
	u, err := s.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	return u
}

func TestWritesAreInvisibleUntilCommit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	writer := begin(t, s)
	require.NoError(t, writer.Bookings().Save(ctx, newBooking("b1", domainbooking.StatusConfirmed, stay(1, 4))))

	reader := begin(t, s)
	_, err := reader.Bookings().ByID(ctx, "b1")
	assert.ErrorIs(t, err, domainbooking.ErrNotFound)
	got, err := writer.Bookings().ByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)

	require.NoError(t, writer.Commit(ctx))
	overlapping, err := reader.Bookings().ListOverlapping(ctx, "prop-1", stay(3, 5), domainbooking.StatusConfirmed)
	require.NoError(t, err)
	assert.Len(t, overlapping, 1)
}

func TestRollbackDiscardsEverything(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	u := begin(t, s)
	require.NoError(t, u.Bookings().Save(ctx, newBooking("b1", domainbooking.StatusPending, stay(1, 4))))
	require.NoError(t, u.Outbox().Add(ctx, appoutbox.EventRecord{ID: "e1", Name: "booking.requested"}))
	require.NoError(t, u.Rollback(ctx))
	require.NoError(t, u.Rollback(ctx))

	assert.ErrorIs(t, u.Commit(ctx), ErrUnitClosed)
	_, err := begin(t, s).Bookings().ByID(ctx, "b1")
	assert.ErrorIs(t, err, domainbooking.ErrNotFound)
	assert.Empty(t, s.Outbox().Records())
}

func TestStaleVersionsAreRejected(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seed := begin(t, s)
	require.NoError(t, seed.Bookings().Save(ctx, newBooking("b1", domainbooking.StatusPending, stay(1, 4))))
	require.NoError(t, seed.Commit(ctx))

	first, second := begin(t, s), begin(t, s)
	a, err := first.Bookings().ByID(ctx, "b1")
	require.NoError(t, err)
	b, err := second.Bookings().ByID(ctx, "b1")
	require.NoError(t, err)

	a.Status = domainbooking.StatusConfirmed
	require.NoError(t, first.Bookings().Save(ctx, a))
	b.Status = domainbooking.StatusCanceled
	require.NoError(t, second.Bookings().Save(ctx, b))

	require.NoError(t, first.Commit(ctx))
	assert.ErrorIs(t, second.Commit(ctx), domainbooking.ErrConcurrentUpdate)

	third := begin(t, s)
	stale := newBooking("b1", domainbooking.StatusCanceled, stay(1, 4))
	stale.Version = 1
	assert.ErrorIs(t, third.Bookings().Save(ctx, stale), domainbooking.ErrConcurrentUpdate)

	stored, err := third.Bookings().ByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusConfirmed, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func TestListingQueries(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	u := begin(t, s)
	for _, b := range []*domainbooking.Booking{
		newBooking("b1", domainbooking.StatusConfirmed, stay(1, 3)),
		newBooking("b2", domainbooking.StatusConfirmed, stay(5, 8)),
		newBooking("b3", domainbooking.StatusPending, stay(2, 6)),
		newBooking("b4", domainbooking.StatusCompleted, stay(1, 2)),
	} {
		require.NoError(t, u.Bookings().Save(ctx, b))
	}
	require.NoError(t, u.Commit(ctx))

	r := begin(t, s).Bookings()
	due, err := r.ListConfirmedEndedBefore(ctx, stay(1, 4).CheckOut, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, domainbooking.ID("b1"), due[0].ID)

	owned, err := r.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, owned, 4)
	assert.Equal(t, domainbooking.ID("b2"), owned[0].ID, "newest first")

	pending, err := r.ListOverlapping(ctx, "prop-1", stay(1, 9), domainbooking.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestWindowsStageDeletes(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	u := begin(t, s)
	w := &domainavailability.Window{ID: "w1", PropertyID: "prop-1", Range: stay(1, 5)}
	require.NoError(t, u.Windows().Save(ctx, w))
	require.NoError(t, u.Commit(ctx))

	del := begin(t, s)
	require.NoError(t, del.Windows().Delete(ctx, "w1"))
	_, err := del.Windows().ByID(ctx, "w1")
	assert.ErrorIs(t, err, domainavailability.ErrWindowNotFound)
	still, err := begin(t, s).Windows().ListOverlapping(ctx, "prop-1", stay(2, 3))
	require.NoError(t, err)
	assert.Len(t, still, 1)

	require.NoError(t, del.Commit(ctx))
	gone, err := begin(t, s).Windows().ListByProperty(ctx, "prop-1")
	require.NoError(t, err)
	assert.Empty(t, gone)
}

func TestReadOnlyUnitRejectsWrites(t *testing.T) {
	s := NewStore()
	u, err := s.Begin(context.Background(), uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	assert.Error(t, u.Bookings().Save(context.Background(), newBooking("b1", domainbooking.StatusPending, stay(1, 2))))
}

func TestOutboxClaimAndRetry(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	u := begin(t, s)
	require.NoError(t, u.Outbox().Add(ctx, appoutbox.EventRecord{ID: "e1", Name: "booking.requested"}))
	require.NoError(t, u.Commit(ctx))

	relay := s.Outbox()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	claimed, err := relay.Claim(ctx, "w1", now)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "e1", claimed.ID)

	again, err := relay.Claim(ctx, "w2", now)
	require.NoError(t, err)
	assert.Nil(t, again, "claimed records are leased")

	require.NoError(t, relay.MarkFailed(ctx, "e1", now.Add(time.Minute), "broker down"))
	none, err := relay.Claim(ctx, "w1", now.Add(30*time.Second))
	require.NoError(t, err)
	assert.Nil(t, none)

	retry, err := relay.Claim(ctx, "w1", now.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, retry)
	assert.Equal(t, 1, retry.Attempts)

	require.NoError(t, relay.MarkSent(ctx, "e1", now))
	assert.Equal(t, 0, relay.Pending())
}

func TestLockerSerializesPerKey(t *testing.T) {
	l := NewLocker()
	unlock, err := l.Lock(context.Background(), "property:p1")
	require.NoError(t, err)

	other, err := l.Lock(context.Background(), "property:p2")
	require.NoError(t, err)
	other()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "property:p1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	again, err := l.Lock(context.Background(), "property:p1")
	require.NoError(t, err)
	again()
}

func TestLockerDropsIdleKeys(t *testing.T) {
	l := NewLocker()
	for _, key := range []string{"property:p1", "property:p2", "property:p3"} {
		unlock, err := l.Lock(context.Background(), key)
		require.NoError(t, err)
		unlock()
	}
	assert.Equal(t, 0, l.keys())

	held, err := l.Lock(context.Background(), "property:p1")
	require.NoError(t, err)
	waited := make(chan struct{})
	go func() {
		defer close(waited)
		unlock, err := l.Lock(context.Background(), "property:p1")
		if assert.NoError(t, err) {
			unlock()
		}
	}()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Lock(ctx, "property:p1")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, l.keys())

	held()
	<-waited
	assert.Equal(t, 0, l.keys())
}

func TestPaymentsGatewayChargesPerAttempt(t *testing.T) {
	g := NewPaymentsGateway()
	ctx := context.Background()
	total := money.Must(300000, "RUB")

	first, err := g.Capture(ctx, "booking-bk-1", "a1", total)
	require.NoError(t, err)
	replayed, err := g.Capture(ctx, "booking-bk-1", "a1", total)
	require.NoError(t, err)
	assert.Equal(t, first, replayed)
	assert.Equal(t, int64(300000), g.Net("booking-bk-1"))

	require.NoError(t, g.Refund(ctx, "booking-bk-1", first, total))
	assert.ErrorIs(t, g.Refund(ctx, "booking-bk-1", first, money.Must(1, "RUB")), ErrPaymentDeclined)
	assert.Equal(t, int64(0), g.Net("booking-bk-1"))

	second, err := g.Capture(ctx, "booking-bk-1", "a2", total)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, int64(300000), g.Net("booking-bk-1"))
	assert.ErrorIs(t, g.Refund(ctx, "booking-bk-2", second, total), ErrPaymentDeclined)
}
