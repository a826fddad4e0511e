package booking_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentme-reservations/internal/app/access"
	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/dto"
	availabilityapp "rentme-reservations/internal/app/handlers/availability"
	bookingapp "rentme-reservations/internal/app/handlers/booking"
	propertyapp "rentme-reservations/internal/app/handlers/property"
	"rentme-reservations/internal/app/middleware"
	"rentme-reservations/internal/app/policies"
	"rentme-reservations/internal/app/queries"
	"rentme-reservations/internal/app/service"
	"rentme-reservations/internal/app/uow"
	domainbooking "rentme-reservations/internal/domain/booking"
	"rentme-reservations/internal/domain/cancellation"
	"rentme-reservations/internal/domain/pricing"
	"rentme-reservations/internal/infra/storage/memory"
	"rentme-reservations/internal/infra/validation"
)

const (
	propertyID = "prop-1"
	ownerID    = "owner-1"
	renterID   = "renter-1"
)

type harness struct {
	t        *testing.T
	store    *memory.Store
	payments *memory.PaymentsGateway
	app      service.Application
	now      time.Time
	seq      atomic.Int64
}

func newHarness(t *testing.T, tier cancellation.Tier) *harness {
	t.Helper()
	return newHarnessWith(t, tier, func(s *memory.Store) uow.UoWFactory { return s })
}

func newHarnessWith(t *testing.T, tier cancellation.Tier, factory func(*memory.Store) uow.UoWFactory) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		store:    memory.NewStore(),
		payments: memory.NewPaymentsGateway(),
		now:      time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
	calc, err := pricing.NewCalculator(1500)
	require.NoError(t, err)
	app, err := service.New(service.Deps{
		UoW:         factory(h.store),
		Locker:      memory.NewLocker(),
		Idempotency: memory.NewIdempotencyStore(),
		Payments:    h.payments,
		Pricing:     policies.CommissionPricing{Calculator: calc},
		Engine:      cancellation.NewEngine(cancellation.OwnerPenalty{FixedFee: 5000, Rate: 1000}),
		Validator:   validation.New(),
		IdemTTL:     time.Hour,
		TxBackoff:   []time.Duration{0, 0, 0},
		Now:         func() time.Time { return h.now },
		NewID:       func() string { return fmt.Sprintf("bk-%d", h.seq.Add(1)) },
	})
	require.NoError(t, err)
	h.app = app
	h.syncProperty(tier)
	return h
}

func (h *harness) syncProperty(tier cancellation.Tier) {
	_, err := commands.Dispatch[propertyapp.SyncPropertyCommand, dto.Property](h.system(), h.app.Commands, propertyapp.SyncPropertyCommand{
		PropertyID:       propertyID,
		OwnerID:          ownerID,
		DailyRate:        100000,
		Currency:         "RUB",
		MaxGuests:        4,
		CancellationTier: string(tier),
		UpdatedAt:        h.now,
	})
	require.NoError(h.t, err)
}

func (h *harness) as(userID string, roles ...access.Role) context.Context {
	return access.WithPrincipal(context.Background(), access.Principal{UserID: userID, Roles: roles})
}

func (h *harness) system() context.Context {
	return access.WithPrincipal(context.Background(), access.System())
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func (h *harness) create(renter string, checkIn, checkOut time.Time) (*dto.Booking, error) {
	return commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](h.as(renter, access.RoleRenter), h.app.Commands, bookingapp.CreateBookingCommand{
		PropertyID: propertyID,
		RenterID:   renter,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		TeamSize:   2,
	})
}

func (h *harness) mustCreate(renter string, checkIn, checkOut time.Time) *dto.Booking {
	b, err := h.create(renter, checkIn, checkOut)
	require.NoError(h.t, err)
	return b
}

func (h *harness) approve(id string) (*dto.Booking, error) {
	return commands.Dispatch[bookingapp.ApproveBookingCommand, *dto.Booking](h.as(ownerID, access.RoleOwner), h.app.Commands, bookingapp.ApproveBookingCommand{
		BookingID: id,
		OwnerID:   ownerID,
	})
}

func (h *harness) cancel(cmd bookingapp.CancelBookingCommand, role access.Role) (*dto.Booking, error) {
	return commands.Dispatch[bookingapp.CancelBookingCommand, *dto.Booking](h.as(cmd.ActorID, role), h.app.Commands, cmd)
}

func (h *harness) complete(id string) (*dto.Booking, error) {
	return commands.Dispatch[bookingapp.CompleteBookingCommand, *dto.Booking](h.system(), h.app.Commands, bookingapp.CompleteBookingCommand{BookingID: id})
}

func (h *harness) get(id string) dto.Booking {
	b, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](h.system(), h.app.Queries, bookingapp.GetBookingQuery{BookingID: id, ViewerID: "system"})
	require.NoError(h.t, err)
	return b
}

func (h *harness) available(checkIn, checkOut time.Time) dto.Availability {
	out, err := queries.Ask[availabilityapp.IsPropertyAvailableQuery, dto.Availability](context.Background(), h.app.Queries, availabilityapp.IsPropertyAvailableQuery{
		PropertyID: propertyID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
	})
	require.NoError(h.t, err)
	return out
}

func (h *harness) events(name string) int {
	n := 0
	for _, rec := range h.store.Outbox().Records() {
		if rec.Name == name {
			n++
		}
	}
	return n
}

func TestCreateBookingQuotesTotalCommissionAndPayout(t *testing.T) {
	h := newHarness(t, cancellation.Moderate)

	b := h.mustCreate(renterID, day(2026, 3, 1), day(2026, 3, 4))

	assert.Equal(t, string(domainbooking.StatusPending), b.Status)
	assert.Equal(t, string(domainbooking.PaymentUnpaid), b.PaymentStatus)
	assert.Equal(t, 3, b.Price.Nights)
	assert.Equal(t, int64(300000), b.Price.Total.Amount)
	assert.Equal(t, int64(45000), b.Price.Commission.Amount)
	assert.Equal(t, int64(255000), b.Price.OwnerPayout.Amount)
	assert.Equal(t, ownerID, b.OwnerID)
	assert.Equal(t, 1, h.events("booking.requested"))
}

func TestCreateRejectsRequestOverlappingConfirmedBooking(t *testing.T) {
	h := newHarness(t, cancellation.Moderate)
	first := h.mustCreate(renterID, day(2027, 1, 6), day(2027, 1, 8))
	_, err := h.approve(first.ID)
	require.NoError(t, err)

	avail := h.available(day(2027, 1, 5), day(2027, 1, 7))
	assert.False(t, avail.Available)
	require.Len(t, avail.Conflicts, 1)
	assert.Equal(t, first.ID, avail.Conflicts[0].ID)

	_, err = h.create("renter-2", day(2027, 1, 5), day(2027, 1, 7))
	require.ErrorIs(t, err, domainbooking.ErrConflict)
	assert.Contains(t, err.Error(), "these dates are no longer available")

	assert.True(t, h.available(day(2027, 1, 8), day(2027, 1, 10)).Available, "check-out day is free")
}

func TestCreateRejectsMalformedRequests(t *testing.T) {
	h := newHarness(t, cancellation.Moderate)

	_, err := h.create(renterID, day(2026, 3, 4), day(2026, 3, 4))
	assert.ErrorIs(t, err, domainbooking.ErrInvalidDateRange)

	_, err = h.create(renterID, day(2026, 1, 10), day(2026, 1, 12))
	assert.ErrorIs(t, err, domainbooking.ErrInvalidDateRange)

	_, err = commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](h.as(renterID, access.RoleRenter), h.app.Commands, bookingapp.CreateBookingCommand{
		PropertyID: "missing",
		RenterID:   renterID,
		CheckIn:    day(2026, 3, 1),
		CheckOut:   day(2026, 3, 2),
		TeamSize:   1,
	})
	assert.ErrorIs(t, err, domainbooking.ErrNotFound)

	_, err = commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](h.as(renterID, access.RoleRenter), h.app.Commands, bookingapp.CreateBookingCommand{
		PropertyID: propertyID,
		RenterID:   renterID,
		CheckIn:    day(2026, 3, 1),
		CheckOut:   day(2026, 3, 2),
		TeamSize:   9,
	})
	assert.ErrorIs(t, err, domainbooking.ErrValidation)

	var verr *middleware.ValidationError
	_, err = commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](h.as(renterID, access.RoleRenter), h.app.Commands, bookingapp.CreateBookingCommand{
		RenterID: renterID,
		CheckIn:  day(2026, 3, 1),
		CheckOut: day(2026, 3, 2),
	})
	require.ErrorAs(t, err, &verr)
}

func TestPendingRequestsMayOverlapUntilOneIsConfirmed(t *testing.T) {
	h := newHarness(t, cancellation.Moderate)
	first := h.mustCreate(renterID, day(2026, 5, 1), day(2026, 5, 5))
	second := h.mustCreate("renter-2", day(2026, 5, 3), day(2026, 5, 7))
	unrelated := h.mustCreate("renter-3", day(2026, 5, 10), day(2026, 5, 12))

	confirmed, err := h.approve(first.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusConfirmed), confirmed.Status)
	assert.Equal(t, string(domainbooking.PaymentPaid), confirmed.PaymentStatus)
	require.NotNil(t, confirmed.PayoutEligibleAt)
	assert.Equal(t, day(2026, 5, 2), *confirmed.PayoutEligibleAt)

	loser := h.get(second.ID)
	assert.Equal(t, string(domainbooking.StatusCanceled), loser.Status)
	assert.Equal(t, first.ID, loser.SupersededBy)
	require.NotNil(t, loser.Cancellation)
	assert.Equal(t, domainbooking.ReasonSuperseded, loser.Cancellation.Reason)
	assert.Equal(t, string(domainbooking.StatusPending), h.get(unrelated.ID).Status)

	_, err = h.approve(second.ID)
	assert.ErrorIs(t, err, domainbooking.ErrConflict)

	capture, ok := h.payments.Captured("booking-" + first.ID)
	require.True(t, ok)
	assert.Equal(t, int64(400000), capture.Amount.Amount)
	_, ok = h.payments.Captured("booking-" + second.ID)
	assert.False(t, ok)
	assert.Equal(t, 1, h.events("booking.superseded"))
}

func TestApproveWithFailedCaptureChangesNothing(t *testing.T) {
	h := newHarness(t, cancellation.Moderate)
	b := h.mustCreate(renterID, day(2026, 3, 1), day(2026, 3, 4))
	h.payments.FailCapture("booking-"+b.ID, true)

	_, err := h.approve(b.ID)

	require.ErrorIs(t, err, domainbooking.ErrPaymentFailure)
	got := h.get(b.ID)
	assert.Equal(t, string(domainbooking.StatusPending), got.Status)
	assert.Equal(t, string(domainbooking.PaymentUnpaid), got.PaymentStatus)
	assert.Equal(t, 0, h.events("booking.confirmed"))

	h.payments.FailCapture("booking-"+b.ID, false)
	confirmed, err := h.approve(b.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusConfirmed), confirmed.Status)
}

// lostCommits fails the next commits of write units with a concurrent update.
type lostCommits struct {
	*memory.Store
	remaining atomic.Int32
}

func (f *lostCommits) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	unit, err := f.Store.Begin(ctx, opts)
	if err != nil || opts.ReadOnly {
		return unit, err
	}
	return lostCommitUnit{UnitOfWork: unit, factory: f}, nil
}

type lostCommitUnit struct {
	uow.UnitOfWork
	factory *lostCommits
}

func (u lostCommitUnit) Commit(ctx context.Context) error {
	if u.factory.remaining.Add(-1) >= 0 {
		_ = u.UnitOfWork.Rollback(ctx)
		return domainbooking.ErrConcurrentUpdate
	}
	return u.UnitOfWork.Commit(ctx)
}

func TestApproveRetriedAfterLostCommitKeepsExactlyOneCharge(t *testing.T) {
	flaky := &lostCommits{}
	h := newHarnessWith(t, cancellation.Moderate, func(s *memory.Store) uow.UoWFactory {
		flaky.Store = s
		return flaky
	})
	b := h.mustCreate(renterID, day(2026, 3, 1), day(2026, 3, 4))
	flaky.remaining.Store(1)

	confirmed, err := h.approve(b.ID)

	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.PaymentPaid), confirmed.PaymentStatus)
	assert.Equal(t, confirmed.Price.Total.Amount, h.payments.Net("booking-"+b.ID))
	capture, ok := h.payments.Captured("booking-" + b.ID)
	require.True(t, ok)
	assert.True(t, capture.Refunded.IsZero())

	canceled, err := h.cancel(bookingapp.CancelBookingCommand{BookingID: b.ID, ActorID: ownerID, ActorRole: "OWNER"}, access.RoleOwner)
	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.PaymentRefunded), canceled.PaymentStatus)
	assert.Equal(t, int64(0), h.payments.Net("booking-"+b.ID))
}

func TestConcurrentApprovalsConfirmAtMostOne(t *testing.T) {
	h := newHarness(t, cancellation.Moderate)
	var ids []string
	for i := 0; i < 6; i++ {
		b := h.mustCreate(fmt.Sprintf("renter-%d", i), day(2026, 6, 1+i), day(2026, 6, 10))
		ids = append(ids, b.ID)
	}

	var (
		wg        sync.WaitGroup
		confirmed atomic.Int64
		conflicts atomic.Int64
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.approve(id)
			switch {
			case err == nil:
				confirmed.Add(1)
			case errors.Is(err, domainbooking.ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error for %s: %v", id, err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, int64(1), confirmed.Load())
	assert.Equal(t, int64(len(ids)-1), conflicts.Load())

	list, err := queries.Ask[bookingapp.ListOwnerBookingsQuery, dto.BookingCollection](h.as(ownerID, access.RoleOwner), h.app.Queries, bookingapp.ListOwnerBookingsQuery{
		OwnerID: ownerID,
		Status:  string(domainbooking.StatusConfirmed),
	})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)
}

func TestRenterCancellationFourDaysOutUnderModerateRefundsHalf(t *testing.T) {
	h := newHarness(t, cancellation.Moderate)
	b := h.mustCreate(renterID, day(2026, 4, 10), day(2026, 4, 13))
	_, err := h.approve(b.ID)
	require.NoError(t, err)

	h.now = day(2026, 4, 6)
	preview, err := queries.Ask[bookingapp.PreviewCancellationQuery, dto.CancellationQuote](h.as(renterID, access.RoleRenter), h.app.Queries, bookingapp.PreviewCancellationQuery{
		BookingID: b.ID,
		ActorID:   renterID,
	})
	require.NoError(t, err)
	assert.Equal(t, 50, preview.RefundPercent)
	assert.False(t, preview.CommissionRefunded)

	canceled, err := h.cancel(bookingapp.CancelBookingCommand{BookingID: b.ID, ActorID: renterID, Reason: "plans changed"}, access.RoleRenter)

	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusCanceled), canceled.Status)
	assert.Equal(t, string(domainbooking.PaymentPartiallyRefunded), canceled.PaymentStatus)
	require.NotNil(t, canceled.Cancellation)
	assert.Equal(t, 50, canceled.Cancellation.RefundPercent)
	assert.Equal(t, int64(150000), canceled.Cancellation.Refund.Amount)
	assert.Equal(t, int64(45000), canceled.Cancellation.RetainedCommission.Amount)
	capture, ok := h.payments.Captured("booking-" + b.ID)
	require.True(t, ok)
	assert.Equal(t, int64(150000), capture.Refunded.Amount)
	assert.True(t, h.available(day(2026, 4, 10), day(2026, 4, 13)).Available)
}

func TestOwnerCancellationRefundsEverythingAndChargesPenalty(t *testing.T) {
	h := newHarness(t, cancellation.Strict)
	b := h.mustCreate(renterID, day(2026, 3, 1), day(2026, 3, 4))
	_, err := h.approve(b.ID)
	require.NoError(t, err)
	h.now = day(2026, 2, 28)

	canceled, err := h.cancel(bookingapp.CancelBookingCommand{BookingID: b.ID, ActorID: ownerID, ActorRole: "OWNER"}, access.RoleOwner)

	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.PaymentRefunded), canceled.PaymentStatus)
	assert.Equal(t, 100, canceled.Cancellation.RefundPercent)
	assert.Equal(t, int64(300000), canceled.Cancellation.Refund.Amount)
	assert.Equal(t, int64(30000), canceled.Cancellation.OwnerPenalty.Amount)
}

func TestCancelPendingRequestMovesNoMoney(t *testing.T) {
	h := newHarness(t, cancellation.Flexible)
	b := h.mustCreate(renterID, day(2026, 3, 1), day(2026, 3, 4))

	canceled, err := h.cancel(bookingapp.CancelBookingCommand{BookingID: b.ID, ActorID: renterID}, access.RoleRenter)

	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.PaymentUnpaid), canceled.PaymentStatus)
	assert.Equal(t, int64(0), canceled.Cancellation.Refund.Amount)
}

func TestCancelWithLowerRefundThanExpectedKeepsBooking(t *testing.T) {
	h := newHarness(t, cancellation.Moderate)
	b := h.mustCreate(renterID, day(2026, 4, 10), day(2026, 4, 13))
	_, err := h.approve(b.ID)
	require.NoError(t, err)
	h.now = day(2026, 4, 6)
	expected := 100

	_, err = h.cancel(bookingapp.CancelBookingCommand{BookingID: b.ID, ActorID: renterID, ExpectedRefundPercent: &expected}, access.RoleRenter)

	require.ErrorIs(t, err, domainbooking.ErrPolicyViolation)
	var mismatch *domainbooking.RefundMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 50, mismatch.Decision.RefundPercent)
	assert.Equal(t, string(domainbooking.StatusConfirmed), h.get(b.ID).Status)
}

func TestCancelRefundFailureLeavesBookingConfirmed(t *testing.T) {
	h := newHarness(t, cancellation.Flexible)
	b := h.mustCreate(renterID, day(2026, 3, 1), day(2026, 3, 4))
	_, err := h.approve(b.ID)
	require.NoError(t, err)
	h.payments.FailRefund("booking-"+b.ID, true)

	_, err = h.cancel(bookingapp.CancelBookingCommand{BookingID: b.ID, ActorID: renterID}, access.RoleRenter)

	require.ErrorIs(t, err, domainbooking.ErrPaymentFailure)
	got := h.get(b.ID)
	assert.Equal(t, string(domainbooking.StatusConfirmed), got.Status)
	assert.Equal(t, string(domainbooking.PaymentPaid), got.PaymentStatus)
	assert.Equal(t, 0, h.events("booking.canceled"))
}

func TestCompleteTwiceEmitsOnePayoutEvent(t *testing.T) {
	h := newHarness(t, cancellation.Moderate)
	b := h.mustCreate(renterID, day(2026, 3, 1), day(2026, 3, 4))
	_, err := h.approve(b.ID)
	require.NoError(t, err)

	h.now = day(2026, 3, 2)
	_, err = h.complete(b.ID)
	require.ErrorIs(t, err, domainbooking.ErrPolicyViolation)

	h.now = day(2026, 3, 4).Add(time.Hour)
	first, err := h.complete(b.ID)
	require.NoError(t, err)
	second, err := h.complete(b.ID)
	require.NoError(t, err)

	assert.Equal(t, string(domainbooking.StatusCompleted), first.Status)
	assert.Equal(t, first.CompletedAt, second.CompletedAt)
	assert.Equal(t, 1, h.events("booking.completed"))

	_, err = h.cancel(bookingapp.CancelBookingCommand{BookingID: b.ID, ActorID: renterID}, access.RoleRenter)
	require.ErrorIs(t, err, domainbooking.ErrPolicyViolation)
	assert.Contains(t, err.Error(), "cannot cancel a completed booking")
}

type failingBus struct {
	next   commands.Bus
	failID string
}

func (b failingBus) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	if c, ok := cmd.(bookingapp.CompleteBookingCommand); ok && c.BookingID == b.failID {
		return nil, errors.New("storage unavailable")
	}
	return b.next.Dispatch(ctx, cmd)
}

func TestSweepCompletesDueBookingsAndSkipsFailures(t *testing.T) {
	h := newHarness(t, cancellation.Moderate)
	var due []string
	for i := 0; i < 3; i++ {
		b := h.mustCreate(fmt.Sprintf("renter-%d", i), day(2026, 3, 1+3*i), day(2026, 3, 3+3*i))
		_, err := h.approve(b.ID)
		require.NoError(t, err)
		due = append(due, b.ID)
	}
	future := h.mustCreate(renterID, day(2026, 5, 1), day(2026, 5, 3))
	_, err := h.approve(future.ID)
	require.NoError(t, err)

	h.now = day(2026, 4, 1)
	sweeper := *h.app.Sweeper
	sweeper.Commands = failingBus{next: h.app.Commands, failID: due[1]}
	report, err := sweeper.Run(context.Background(), h.now)

	require.NoError(t, err)
	assert.Equal(t, 3, report.Checked)
	assert.Equal(t, 2, report.Completed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, string(domainbooking.StatusCompleted), h.get(due[0]).Status)
	assert.Equal(t, string(domainbooking.StatusConfirmed), h.get(due[1]).Status)
	assert.Equal(t, string(domainbooking.StatusCompleted), h.get(due[2]).Status)
	assert.Equal(t, string(domainbooking.StatusConfirmed), h.get(future.ID).Status)

	report, err = h.app.Sweeper.Run(context.Background(), h.now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 3, h.events("booking.completed"))
}

func TestRepeatedApprovalReplaysFirstResult(t *testing.T) {
	h := newHarness(t, cancellation.Moderate)
	b := h.mustCreate(renterID, day(2026, 3, 1), day(2026, 3, 4))

	first, err := h.approve(b.ID)
	require.NoError(t, err)
	second, err := h.approve(b.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Version, second.Version)
	assert.Equal(t, 1, h.events("booking.confirmed"))
}

func TestCreateWithClientKeyIsDeduplicated(t *testing.T) {
	h := newHarness(t, cancellation.Moderate)
	cmd := bookingapp.CreateBookingCommand{
		PropertyID:      propertyID,
		RenterID:        renterID,
		CheckIn:         day(2026, 3, 1),
		CheckOut:        day(2026, 3, 4),
		TeamSize:        1,
		IdempotencyKeyV: "req-42",
	}
	ctx := h.as(renterID, access.RoleRenter)

	first, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](ctx, h.app.Commands, cmd)
	require.NoError(t, err)
	second, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](ctx, h.app.Commands, cmd)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	cmd.IdempotencyKeyV = ""
	third, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](ctx, h.app.Commands, cmd)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	list, err := queries.Ask[bookingapp.ListRenterBookingsQuery, dto.BookingCollection](ctx, h.app.Queries, bookingapp.ListRenterBookingsQuery{RenterID: renterID})
	require.NoError(t, err)
	assert.Len(t, list.Items, 2)
}

func TestDeclineCancelsPendingRequest(t *testing.T) {
	h := newHarness(t, cancellation.Moderate)
	b := h.mustCreate(renterID, day(2026, 3, 1), day(2026, 3, 4))

	declined, err := commands.Dispatch[bookingapp.DeclineBookingCommand, *dto.Booking](h.as(ownerID, access.RoleOwner), h.app.Commands, bookingapp.DeclineBookingCommand{
		BookingID: b.ID,
		OwnerID:   ownerID,
	})

	require.NoError(t, err)
	assert.Equal(t, string(domainbooking.StatusCanceled), declined.Status)
	assert.Equal(t, 1, h.events("booking.declined"))

	_, err = h.approve(b.ID)
	assert.ErrorIs(t, err, domainbooking.ErrPolicyViolation)
}

func TestCallersCannotActForOthersOrSeeForeignBookings(t *testing.T) {
	h := newHarness(t, cancellation.Moderate)
	b := h.mustCreate(renterID, day(2026, 3, 1), day(2026, 3, 4))

	_, err := commands.Dispatch[bookingapp.ApproveBookingCommand, *dto.Booking](h.as(renterID, access.RoleRenter), h.app.Commands, bookingapp.ApproveBookingCommand{
		BookingID: b.ID,
		OwnerID:   renterID,
	})
	assert.ErrorIs(t, err, middleware.ErrForbidden)

	_, err = commands.Dispatch[bookingapp.ApproveBookingCommand, *dto.Booking](h.as("owner-2", access.RoleOwner), h.app.Commands, bookingapp.ApproveBookingCommand{
		BookingID: b.ID,
		OwnerID:   "owner-2",
	})
	assert.ErrorIs(t, err, domainbooking.ErrNotOwned)

	_, err = queries.Ask[bookingapp.GetBookingQuery, dto.Booking](h.as("renter-9", access.RoleRenter), h.app.Queries, bookingapp.GetBookingQuery{
		BookingID: b.ID,
		ViewerID:  "renter-9",
	})
	assert.ErrorIs(t, err, domainbooking.ErrNotFound)

	_, err = h.create("", day(2026, 3, 1), day(2026, 3, 4))
	assert.Error(t, err)
	_, err = commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](context.Background(), h.app.Commands, bookingapp.CreateBookingCommand{
		PropertyID: propertyID,
		RenterID:   renterID,
		CheckIn:    day(2026, 3, 1),
		CheckOut:   day(2026, 3, 4),
		TeamSize:   1,
	})
	assert.ErrorIs(t, err, access.ErrUnauthenticated)
}
