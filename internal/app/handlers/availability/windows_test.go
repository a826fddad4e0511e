package availability_test

import (
	"context"
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
	"rentme-reservations/internal/app/policies"
	"rentme-reservations/internal/app/queries"
	"rentme-reservations/internal/app/service"
	domainavailability "rentme-reservations/internal/domain/availability"
	domainbooking "rentme-reservations/internal/domain/booking"
	"rentme-reservations/internal/domain/pricing"
	"rentme-reservations/internal/infra/storage/memory"
	"rentme-reservations/internal/infra/validation"
)

var now = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func day(m time.Month, d int) time.Time {
	return time.Date(2026, m, d, 0, 0, 0, 0, time.UTC)
}

func owner() context.Context {
	return access.WithPrincipal(context.Background(), access.Principal{UserID: "owner-1", Roles: []access.Role{access.RoleOwner}})
}

func newApp(t *testing.T) (service.Application, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	app, err := service.New(service.Deps{
		UoW:       store,
		Locker:    memory.NewLocker(),
		Payments:  memory.NewPaymentsGateway(),
		Pricing:   policies.CommissionPricing{Calculator: pricing.Calculator{CommissionRate: 1000}},
		Validator: validation.New(),
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)
	_, err = commands.Dispatch[propertyapp.SyncPropertyCommand, dto.Property](access.WithPrincipal(context.Background(), access.System()), app.Commands, propertyapp.SyncPropertyCommand{
		PropertyID: "prop-1",
		OwnerID:    "owner-1",
		DailyRate:  5000,
		Currency:   "EUR",
		UpdatedAt:  now,
	})
	require.NoError(t, err)
	return app, store
}

func block(app service.Application, ownerID string, checkIn, checkOut time.Time) (*dto.Window, error) {
	ctx := access.WithPrincipal(context.Background(), access.Principal{UserID: ownerID, Roles: []access.Role{access.RoleOwner}})
	return commands.Dispatch[availabilityapp.BlockDatesCommand, *dto.Window](ctx, app.Commands, availabilityapp.BlockDatesCommand{
		PropertyID: "prop-1",
		OwnerID:    ownerID,
		CheckIn:    checkIn,
		CheckOut:   checkOut,
		Reason:     "maintenance",
	})
}

func isAvailable(t *testing.T, app service.Application, checkIn, checkOut time.Time) dto.Availability {
	t.Helper()
	out, err := queries.Ask[availabilityapp.IsPropertyAvailableQuery, dto.Availability](context.Background(), app.Queries, availabilityapp.IsPropertyAvailableQuery{
		PropertyID: "prop-1",
		CheckIn:    checkIn,
		CheckOut:   checkOut,
	})
	require.NoError(t, err)
	return out
}

func TestBlockedWindowRejectsBookingsUntilReleased(t *testing.T) {
	app, store := newApp(t)

	window, err := block(app, "owner-1", day(3, 10), day(3, 15))
	require.NoError(t, err)
	overlapping, err := block(app, "owner-1", day(3, 12), day(3, 20))
	require.NoError(t, err, "windows may overlap each other")

	avail := isAvailable(t, app, day(3, 14), day(3, 16))
	assert.False(t, avail.Available)
	assert.Len(t, avail.Conflicts, 2)
	assert.Equal(t, string(domainavailability.ConflictWindow), avail.Conflicts[0].Kind)

	renter := access.WithPrincipal(context.Background(), access.Principal{UserID: "renter-1", Roles: []access.Role{access.RoleRenter}})
	_, err = commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](renter, app.Commands, bookingapp.CreateBookingCommand{
		PropertyID: "prop-1",
		RenterID:   "renter-1",
		CheckIn:    day(3, 9),
		CheckOut:   day(3, 11),
		TeamSize:   1,
	})
	assert.ErrorIs(t, err, domainbooking.ErrConflict)

	for _, id := range []string{window.ID, overlapping.ID} {
		_, err = commands.Dispatch[availabilityapp.UnblockDatesCommand, *dto.Window](owner(), app.Commands, availabilityapp.UnblockDatesCommand{
			PropertyID: "prop-1",
			OwnerID:    "owner-1",
			WindowID:   id,
		})
		require.NoError(t, err)
	}
	assert.True(t, isAvailable(t, app, day(3, 9), day(3, 21)).Available)

	list, err := queries.Ask[availabilityapp.ListWindowsQuery, dto.WindowCollection](context.Background(), app.Queries, availabilityapp.ListWindowsQuery{PropertyID: "prop-1"})
	require.NoError(t, err)
	assert.Empty(t, list.Items)

	names := map[string]int{}
	for _, rec := range store.Outbox().Records() {
		names[rec.Name]++
	}
	assert.Equal(t, 2, names["availability.dates_blocked"])
	assert.Equal(t, 2, names["availability.dates_released"])
}

func TestBlockDatesRejectsConfirmedOverlapAndForeignOwners(t *testing.T) {
	app, _ := newApp(t)
	renter := access.WithPrincipal(context.Background(), access.Principal{UserID: "renter-1", Roles: []access.Role{access.RoleRenter}})
	b, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](renter, app.Commands, bookingapp.CreateBookingCommand{
		PropertyID: "prop-1",
		RenterID:   "renter-1",
		CheckIn:    day(4, 1),
		CheckOut:   day(4, 5),
		TeamSize:   1,
	})
	require.NoError(t, err)

	_, err = block(app, "owner-1", day(4, 3), day(4, 8))
	require.NoError(t, err, "pending requests do not block windows")

	_, err = commands.Dispatch[bookingapp.ApproveBookingCommand, *dto.Booking](owner(), app.Commands, bookingapp.ApproveBookingCommand{BookingID: b.ID, OwnerID: "owner-1"})
	require.ErrorIs(t, err, domainbooking.ErrConflict)

	_, err = block(app, "owner-2", day(5, 1), day(5, 3))
	assert.ErrorIs(t, err, domainavailability.ErrNotOwner)

	_, err = block(app, "owner-1", day(1, 1), day(1, 3))
	assert.ErrorIs(t, err, domainbooking.ErrInvalidDateRange)
}

func TestBlockDatesOverConfirmedBookingConflicts(t *testing.T) {
	app, _ := newApp(t)
	renter := access.WithPrincipal(context.Background(), access.Principal{UserID: "renter-1", Roles: []access.Role{access.RoleRenter}})
	b, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](renter, app.Commands, bookingapp.CreateBookingCommand{
		PropertyID: "prop-1",
		RenterID:   "renter-1",
		CheckIn:    day(4, 1),
		CheckOut:   day(4, 5),
		TeamSize:   1,
	})
	require.NoError(t, err)
	_, err = commands.Dispatch[bookingapp.ApproveBookingCommand, *dto.Booking](owner(), app.Commands, bookingapp.ApproveBookingCommand{BookingID: b.ID, OwnerID: "owner-1"})
	require.NoError(t, err)

	_, err = block(app, "owner-1", day(4, 4), day(4, 6))

	var conflict *domainbooking.ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, b.ID, conflict.Conflicts[0].ID)
}

func TestUnblockUnknownWindow(t *testing.T) {
	app, _ := newApp(t)

	_, err := commands.Dispatch[availabilityapp.UnblockDatesCommand, *dto.Window](owner(), app.Commands, availabilityapp.UnblockDatesCommand{
		PropertyID: "prop-1",
		OwnerID:    "owner-1",
		WindowID:   "nope",
	})
	assert.ErrorIs(t, err, domainavailability.ErrWindowNotFound)
}
