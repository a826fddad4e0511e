// Package service assembles the command and query buses of the reservation core.
package service

import (
	"errors"
	"log/slog"
	"time"

	"rentme-reservations/internal/app/access"
	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/dto"
	availabilityapp "rentme-reservations/internal/app/handlers/availability"
	bookingapp "rentme-reservations/internal/app/handlers/booking"
	propertyapp "rentme-reservations/internal/app/handlers/property"
	"rentme-reservations/internal/app/middleware"
	"rentme-reservations/internal/app/outbox"
	"rentme-reservations/internal/app/policies"
	"rentme-reservations/internal/app/queries"
	"rentme-reservations/internal/app/uow"
	domainbooking "rentme-reservations/internal/domain/booking"
	"rentme-reservations/internal/domain/cancellation"
)

var ErrMissingDependency = errors.New("service: missing dependency")

type Deps struct {
	UoW         uow.UoWFactory
	Locker      policies.PropertyLocker
	Idempotency middleware.IdempotencyStore
	Payments    policies.PaymentsPort
	Pricing     policies.PricingPort
	Engine      *cancellation.Engine
	Validator   middleware.Validator
	Waker       outbox.Waker
	Encoder     outbox.EventEncoder
	Logger      *slog.Logger

	IdemTTL     time.Duration
	LockBackoff []time.Duration
	TxBackoff   []time.Duration
	SweepBatch  int

	Now   func() time.Time
	NewID func() string
}

type Application struct {
	Commands commands.Bus
	Queries  queries.Bus
	Sweeper  *bookingapp.CompletionSweeper
}

func New(d Deps) (Application, error) {
	if d.UoW == nil || d.Locker == nil || d.Payments == nil || d.Pricing == nil {
		return Application{}, ErrMissingDependency
	}
	if d.Engine == nil {
		d.Engine = cancellation.NewEngine(cancellation.OwnerPenalty{})
	}
	if d.Encoder == nil {
		d.Encoder = outbox.JSONEventEncoder{}
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler[bookingapp.CreateBookingCommand, *dto.Booking](commandBus, &bookingapp.CreateBookingHandler{
		Pricing: d.Pricing,
		Encoder: d.Encoder,
		NewID:   d.NewID,
		Now:     d.Now,
		Logger:  d.Logger,
	})
	commands.RegisterHandler[bookingapp.ApproveBookingCommand, *dto.Booking](commandBus, &bookingapp.ApproveBookingHandler{
		Payments: d.Payments,
		Encoder:  d.Encoder,
		Now:      d.Now,
		Logger:   d.Logger,
	})
	commands.RegisterHandler[bookingapp.DeclineBookingCommand, *dto.Booking](commandBus, &bookingapp.DeclineBookingHandler{
		Encoder: d.Encoder,
		Now:     d.Now,
		Logger:  d.Logger,
	})
	commands.RegisterHandler[bookingapp.CancelBookingCommand, *dto.Booking](commandBus, &bookingapp.CancelBookingHandler{
		Engine:   d.Engine,
		Payments: d.Payments,
		Encoder:  d.Encoder,
		Now:      d.Now,
		Logger:   d.Logger,
	})
	commands.RegisterHandler[bookingapp.CompleteBookingCommand, *dto.Booking](commandBus, &bookingapp.CompleteBookingHandler{
		Encoder: d.Encoder,
		Now:     d.Now,
		Logger:  d.Logger,
	})
	commands.RegisterHandler[availabilityapp.BlockDatesCommand, *dto.Window](commandBus, &availabilityapp.BlockDatesHandler{
		Encoder: d.Encoder,
		NewID:   d.NewID,
		Now:     d.Now,
		Logger:  d.Logger,
	})
	commands.RegisterHandler[availabilityapp.UnblockDatesCommand, *dto.Window](commandBus, &availabilityapp.UnblockDatesHandler{
		Encoder: d.Encoder,
		Now:     d.Now,
		Logger:  d.Logger,
	})
	commands.RegisterHandler[propertyapp.SyncPropertyCommand, dto.Property](commandBus, &propertyapp.SyncPropertyHandler{Logger: d.Logger})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[bookingapp.GetBookingQuery, dto.Booking](queryBus, &bookingapp.GetBookingHandler{UoWFactory: d.UoW})
	queries.RegisterHandler[bookingapp.ListRenterBookingsQuery, dto.BookingCollection](queryBus, &bookingapp.ListRenterBookingsHandler{UoWFactory: d.UoW})
	queries.RegisterHandler[bookingapp.ListOwnerBookingsQuery, dto.BookingCollection](queryBus, &bookingapp.ListOwnerBookingsHandler{UoWFactory: d.UoW})
	queries.RegisterHandler[bookingapp.PreviewCancellationQuery, dto.CancellationQuote](queryBus, &bookingapp.PreviewCancellationHandler{UoWFactory: d.UoW, Engine: d.Engine, Now: d.Now})
	queries.RegisterHandler[availabilityapp.IsPropertyAvailableQuery, dto.Availability](queryBus, &availabilityapp.IsPropertyAvailableHandler{UoWFactory: d.UoW, Now: d.Now})
	queries.RegisterHandler[availabilityapp.ListWindowsQuery, dto.WindowCollection](queryBus, &availabilityapp.ListWindowsHandler{UoWFactory: d.UoW})

	stack := middleware.Stack{
		Validator:   d.Validator,
		Authorizer:  access.Authorizer{},
		Logger:      d.Logger,
		Waker:       d.Waker,
		Locker:      d.Locker,
		Scope:       bookingapp.ScopeResolver(d.UoW),
		LockBackoff: d.LockBackoff,
		Idempotency: d.Idempotency,
		IdemTTL:     d.IdemTTL,
		Retryable:   middleware.RetryOn(domainbooking.ErrConcurrentUpdate),
		TxBackoff:   d.TxBackoff,
		UoW:         d.UoW,
		Now:         d.Now,
	}
	cmds := stack.Commands(commandBus)
	return Application{
		Commands: cmds,
		Queries:  stack.Queries(queryBus),
		Sweeper: &bookingapp.CompletionSweeper{
			UoWFactory: d.UoW,
			Commands:   cmds,
			BatchSize:  d.SweepBatch,
			Logger:     d.Logger,
		},
	}, nil
}
