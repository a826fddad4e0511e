package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/dto"
	handlersupport "rentme-reservations/internal/app/handlers/support"
	"rentme-reservations/internal/app/outbox"
	"rentme-reservations/internal/app/policies"
	domainbooking "rentme-reservations/internal/domain/booking"
	domainproperty "rentme-reservations/internal/domain/property"
	"rentme-reservations/internal/domain/shared/daterange"
)

type CreateBookingHandler struct {
	Pricing policies.PricingPort
	Encoder outbox.EventEncoder
	NewID   func() string
	Now     func() time.Time
	Logger  *slog.Logger
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	unit, err := handlersupport.RequireUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := handlersupport.Clock(h.Now)

	dr, err := daterange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, domainbooking.InvalidRange(err)
	}
	if err := dr.ValidateNotPast(now); err != nil {
		return nil, domainbooking.InvalidRange(err)
	}

	prop, err := loadProperty(ctx, unit.Properties(), cmd.PropertyID)
	if err != nil {
		return nil, err
	}
	if !prop.AcceptsTeam(cmd.TeamSize) {
		return nil, fmt.Errorf("%w: team size %d outside 1..%d", domainbooking.ErrValidation, cmd.TeamSize, prop.MaxGuests)
	}

	conflicts, err := handlersupport.Resolver(unit).Conflicts(ctx, prop.ID, dr, "")
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, &domainbooking.ConflictError{Range: dr, Conflicts: conflicts}
	}

	quote, err := h.Pricing.Quote(ctx, prop, dr)
	if err != nil {
		return nil, err
	}

	id := strings.TrimSpace(cmd.BookingID)
	if id == "" {
		id = h.newID()
	}
	b, err := domainbooking.Create(domainbooking.CreateParams{
		ID:       domainbooking.ID(id),
		Property: prop,
		RenterID: cmd.RenterID,
		Range:    dr,
		TeamSize: cmd.TeamSize,
		Notes:    cmd.Notes,
		Price:    quote,
		Now:      now,
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := handlersupport.Flush(ctx, unit, h.Encoder, b); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking requested", "booking_id", b.ID, "property_id", b.PropertyID, "renter_id", b.RenterID, "range", dr.String(), "total", b.Price.Total.String())
	}
	out := dto.MapBooking(b)
	return &out, nil
}

func (h *CreateBookingHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

func loadProperty(ctx context.Context, repo domainproperty.Repository, id string) (*domainproperty.Property, error) {
	prop, err := repo.ByID(ctx, domainproperty.PropertyID(id))
	if err != nil {
		if errors.Is(err, domainproperty.ErrNotFound) {
			return nil, fmt.Errorf("%w: property %s", domainbooking.ErrNotFound, id)
		}
		return nil, err
	}
	return prop, nil
}

var _ commands.Handler[CreateBookingCommand, *dto.Booking] = (*CreateBookingHandler)(nil)
