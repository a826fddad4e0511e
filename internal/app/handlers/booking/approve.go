package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/dto"
	handlersupport "rentme-reservations/internal/app/handlers/support"
	"rentme-reservations/internal/app/outbox"
	"rentme-reservations/internal/app/policies"
	"rentme-reservations/internal/app/saga"
	domainbooking "rentme-reservations/internal/domain/booking"
	"rentme-reservations/internal/domain/shared/events"
)

// ApproveBookingHandler confirms a pending request. The first confirmation
// wins: overlapping pending requests are superseded in the same unit of work.
type ApproveBookingHandler struct {
	Payments policies.PaymentsPort
	Encoder  outbox.EventEncoder
	// Attempt names each capture try; a retried transaction charges under a new one.
	Attempt func() string
	Now     func() time.Time
	Logger  *slog.Logger
}

func (h *ApproveBookingHandler) Handle(ctx context.Context, cmd ApproveBookingCommand) (*dto.Booking, error) {
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
	if b.Status == domainbooking.StatusConfirmed {
		out := dto.MapBooking(b)
		return &out, nil
	}
	conflicts, err := handlersupport.Resolver(unit).Conflicts(ctx, b.PropertyID, b.Range, string(b.ID))
	if err != nil {
		return nil, err
	}
	// A request superseded by a confirmed booking reports the lost dates, not its own state.
	if b.SupersededBy != "" && len(conflicts) > 0 {
		return nil, &domainbooking.ConflictError{Range: b.Range, Conflicts: conflicts}
	}
	if !b.Status.Can(domainbooking.ActionApprove) {
		return nil, &domainbooking.TransitionError{From: b.Status, Action: domainbooking.ActionApprove}
	}
	if len(conflicts) > 0 {
		return nil, &domainbooking.ConflictError{Range: b.Range, Conflicts: conflicts}
	}

	captureID, err := h.capture(ctx, b)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("booking capture failed", "booking_id", b.ID, "error", err)
		}
		return nil, fmt.Errorf("%w: %w", domainbooking.ErrPaymentFailure, err)
	}

	now := handlersupport.Clock(h.Now)
	if err := b.Approve(captureID, now); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}

	pending, err := unit.Bookings().ListOverlapping(ctx, b.PropertyID, b.Range, domainbooking.StatusPending)
	if err != nil {
		return nil, err
	}
	touched := []events.Recorder{b}
	for _, other := range pending {
		if other.ID == b.ID || !other.Range.Overlaps(b.Range) {
			continue
		}
		if err := other.Supersede(b.ID, now); err != nil {
			return nil, err
		}
		if err := unit.Bookings().Save(ctx, other); err != nil {
			return nil, err
		}
		touched = append(touched, other)
		if h.Logger != nil {
			h.Logger.Info("booking superseded", "booking_id", other.ID, "superseded_by", b.ID)
		}
	}
	if err := handlersupport.Flush(ctx, unit, h.Encoder, touched...); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking confirmed", "booking_id", b.ID, "property_id", b.PropertyID, "owner_id", b.OwnerID, "capture_id", captureID, "superseded", len(touched)-1)
	}
	out := dto.MapBooking(b)
	return &out, nil
}

// capture takes the total from the renter and registers a refund of that
// capture in case the confirmation does not commit.
func (h *ApproveBookingHandler) capture(ctx context.Context, b *domainbooking.Booking) (string, error) {
	var captureID string
	attempt := h.attempt()
	step := saga.StepFunc{
		StepName: "capture " + string(b.ID) + " attempt " + attempt,
		Do: func(ctx context.Context) error {
			id, err := h.Payments.Capture(ctx, b.PaymentRef, attempt, b.Price.Total)
			captureID = id
			return err
		},
		Undo: func(ctx context.Context) error {
			return h.Payments.Refund(ctx, b.PaymentRef, captureID, b.Price.Total)
		},
	}
	if err := saga.Run(ctx, step); err != nil {
		return "", err
	}
	return captureID, nil
}

func (h *ApproveBookingHandler) attempt() string {
	if h.Attempt != nil {
		return h.Attempt()
	}
	return uuid.NewString()
}

var _ commands.Handler[ApproveBookingCommand, *dto.Booking] = (*ApproveBookingHandler)(nil)
