package booking

import (
	"context"
	"log/slog"
	"time"

	"rentme-reservations/internal/app/access"
	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/dto"
	handlersupport "rentme-reservations/internal/app/handlers/support"
	"rentme-reservations/internal/app/outbox"
	"rentme-reservations/internal/app/uow"
	domainbooking "rentme-reservations/internal/domain/booking"
)

type CompleteBookingHandler struct {
	Encoder outbox.EventEncoder
	Now     func() time.Time
	Logger  *slog.Logger
}

// Handle completes a finished stay. Completing an already completed booking
// succeeds without emitting another payout event.
func (h *CompleteBookingHandler) Handle(ctx context.Context, cmd CompleteBookingCommand) (*dto.Booking, error) {
	unit, err := handlersupport.RequireUnit(ctx)
	if err != nil {
		return nil, err
	}
	b, err := unit.Bookings().ByID(ctx, domainbooking.ID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	done, err := b.Complete(handlersupport.Clock(h.Now))
	if err != nil {
		return nil, err
	}
	if done {
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return nil, err
		}
		if err := handlersupport.Flush(ctx, unit, h.Encoder, b); err != nil {
			return nil, err
		}
		if h.Logger != nil {
			h.Logger.Info("booking completed", "booking_id", b.ID, "owner_id", b.OwnerID, "owner_payout", b.Price.OwnerPayout.String())
		}
	}
	out := dto.MapBooking(b)
	return &out, nil
}

const defaultSweepBatch = 200

type SweepReport struct {
	Checked   int
	Completed int
	Failed    int
}

// CompletionSweeper completes confirmed bookings whose check-out has passed.
type CompletionSweeper struct {
	UoWFactory uow.UoWFactory
	Commands   commands.Bus
	BatchSize  int
	Logger     *slog.Logger
}

// Run dispatches CompleteBooking for every due booking; a failing booking is
// logged and skipped.
func (s *CompletionSweeper) Run(ctx context.Context, now time.Time) (SweepReport, error) {
	batch := s.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatch
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, s.UoWFactory)
	if err != nil {
		return SweepReport{}, err
	}
	due, err := unit.Bookings().ListConfirmedEndedBefore(execCtx, now.UTC(), batch)
	if cleanup != nil {
		cleanup()
	}
	if err != nil {
		return SweepReport{}, err
	}

	report := SweepReport{Checked: len(due)}
	sysCtx := access.WithPrincipal(ctx, access.System())
	for _, b := range due {
		_, err := commands.Dispatch[CompleteBookingCommand, *dto.Booking](sysCtx, s.Commands, CompleteBookingCommand{BookingID: string(b.ID)})
		if err != nil {
			report.Failed++
			if s.Logger != nil {
				s.Logger.Error("booking completion failed", "booking_id", b.ID, "error", err)
			}
			continue
		}
		report.Completed++
	}
	if s.Logger != nil && report.Checked > 0 {
		s.Logger.Info("completion sweep finished", "checked", report.Checked, "completed", report.Completed, "failed", report.Failed)
	}
	return report, nil
}

var _ commands.Handler[CompleteBookingCommand, *dto.Booking] = (*CompleteBookingHandler)(nil)
