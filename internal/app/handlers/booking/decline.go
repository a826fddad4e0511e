package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/dto"
	handlersupport "rentme-reservations/internal/app/handlers/support"
	"rentme-reservations/internal/app/outbox"
	domainbooking "rentme-reservations/internal/domain/booking"
)

const defaultDeclineReason = "owner-declined"

type DeclineBookingHandler struct {
	Encoder outbox.EventEncoder
	Now     func() time.Time
	Logger  *slog.Logger
}

func (h *DeclineBookingHandler) Handle(ctx context.Context, cmd DeclineBookingCommand) (*dto.Booking, error) {
	unit, err := handlersupport.RequireUnit(ctx)
	if err != nil {
		return nil, err
	}
	b, err := unit.Bookings().ByID(ctx, domainbooking.ID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	if b.OwnerID != cmd.OwnerID {
		return nil, domainbooking.ErrNotOwned
	}

	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		reason = defaultDeclineReason
	}
	if err := b.Decline(cmd.OwnerID, reason, handlersupport.Clock(h.Now)); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := handlersupport.Flush(ctx, unit, h.Encoder, b); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking declined", "booking_id", b.ID, "owner_id", cmd.OwnerID, "reason", reason)
	}
	out := dto.MapBooking(b)
	return &out, nil
}

var _ commands.Handler[DeclineBookingCommand, *dto.Booking] = (*DeclineBookingHandler)(nil)
