package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/dto"
	handlersupport "rentme-reservations/internal/app/handlers/support"
	"rentme-reservations/internal/app/outbox"
	"rentme-reservations/internal/app/policies"
	domainbooking "rentme-reservations/internal/domain/booking"
	"rentme-reservations/internal/domain/cancellation"
)

type CancelBookingHandler struct {
	Engine   *cancellation.Engine
	Payments policies.PaymentsPort
	Encoder  outbox.EventEncoder
	Now      func() time.Time
	Logger   *slog.Logger
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*dto.Booking, error) {
	unit, err := handlersupport.RequireUnit(ctx)
	if err != nil {
		return nil, err
	}
	b, err := unit.Bookings().ByID(ctx, domainbooking.ID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	actor, err := resolveActor(b, cmd.ActorID, cmd.ActorRole)
	if err != nil {
		return nil, err
	}
	if !b.Status.Can(domainbooking.ActionCancel) {
		return nil, &domainbooking.TransitionError{From: b.Status, Action: domainbooking.ActionCancel}
	}

	now := handlersupport.Clock(h.Now)
	decision, err := h.Engine.Decide(b.CancellationInput(actor, now))
	if err != nil {
		return nil, err
	}
	if cmd.ExpectedRefundPercent != nil && decision.RefundPercent < *cmd.ExpectedRefundPercent {
		return nil, &domainbooking.RefundMismatchError{ExpectedPercent: *cmd.ExpectedRefundPercent, Decision: decision}
	}

	if b.PaymentStatus == domainbooking.PaymentPaid && decision.Refund.IsPositive() {
		if err := h.Payments.Refund(ctx, b.PaymentRef, b.CaptureID, decision.Refund); err != nil {
			if h.Logger != nil {
				h.Logger.Warn("booking refund failed", "booking_id", b.ID, "refund", decision.Refund.String(), "error", err)
			}
			return nil, fmt.Errorf("%w: %w", domainbooking.ErrPaymentFailure, err)
		}
	}

	if err := b.Cancel(cmd.ActorID, cmd.Reason, decision, now); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, b); err != nil {
		return nil, err
	}
	if err := handlersupport.Flush(ctx, unit, h.Encoder, b); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking canceled",
			"booking_id", b.ID,
			"actor", actor,
			"refund_percent", decision.RefundPercent,
			"refund", decision.Refund.String(),
			"owner_penalty", decision.OwnerPenalty.String(),
			"payment_status", b.PaymentStatus,
		)
	}
	out := dto.MapBooking(b)
	return &out, nil
}

// resolveActor maps the caller onto the booking's renter or owner side.
func resolveActor(b *domainbooking.Booking, actorID, role string) (cancellation.Actor, error) {
	actor, ok := b.ActorFor(actorID)
	if !ok {
		return "", domainbooking.ErrNotOwned
	}
	if role == "" {
		return actor, nil
	}
	claimed, err := cancellation.ParseActor(role)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domainbooking.ErrValidation, err)
	}
	if claimed != actor {
		return "", domainbooking.ErrNotOwned
	}
	return actor, nil
}

var _ commands.Handler[CancelBookingCommand, *dto.Booking] = (*CancelBookingHandler)(nil)
