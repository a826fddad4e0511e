package booking

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"rentme-reservations/internal/app/access"
	"rentme-reservations/internal/app/dto"
	handlersupport "rentme-reservations/internal/app/handlers/support"
	"rentme-reservations/internal/app/queries"
	"rentme-reservations/internal/app/uow"
	domainbooking "rentme-reservations/internal/domain/booking"
	"rentme-reservations/internal/domain/cancellation"
)

const (
	getBookingKey          = "booking.get"
	listRenterBookingsKey  = "booking.list_renter"
	listOwnerBookingsKey   = "booking.list_owner"
	previewCancellationKey = "booking.preview_cancellation"
	allStatusesFilterValue = "ALL"
)

type GetBookingQuery struct {
	BookingID string `validate:"required,max=64"`
	ViewerID  string `validate:"required,max=64"`
}

func (q GetBookingQuery) Key() string          { return getBookingKey }
func (q GetBookingQuery) Roles() []access.Role { return nil }
func (q GetBookingQuery) Actor() string        { return q.ViewerID }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

// Handle hides bookings the viewer is not part of behind ErrNotFound.
func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Booking{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Bookings().ByID(execCtx, domainbooking.ID(q.BookingID))
	if err != nil {
		return dto.Booking{}, err
	}
	if !viewerAllowed(ctx, b, q.ViewerID) {
		return dto.Booking{}, domainbooking.ErrNotFound
	}
	return dto.MapBooking(b), nil
}

type ListRenterBookingsQuery struct {
	RenterID string `validate:"required,max=64"`
}

func (q ListRenterBookingsQuery) Key() string          { return listRenterBookingsKey }
func (q ListRenterBookingsQuery) Roles() []access.Role { return []access.Role{access.RoleRenter} }
func (q ListRenterBookingsQuery) Actor() string        { return q.RenterID }

type ListRenterBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListRenterBookingsHandler) Handle(ctx context.Context, q ListRenterBookingsQuery) (dto.BookingCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, err := unit.Bookings().ListByRenter(execCtx, q.RenterID)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	sortNewestFirst(items)
	if h.Logger != nil {
		h.Logger.Debug("renter bookings listed", "renter_id", q.RenterID, "count", len(items))
	}
	return dto.MapBookings(items), nil
}

type ListOwnerBookingsQuery struct {
	OwnerID string `validate:"required,max=64"`
	// Status filters by lifecycle state; empty or ALL lists everything.
	Status string `validate:"omitempty,max=16"`
}

func (q ListOwnerBookingsQuery) Key() string          { return listOwnerBookingsKey }
func (q ListOwnerBookingsQuery) Roles() []access.Role { return []access.Role{access.RoleOwner} }
func (q ListOwnerBookingsQuery) Actor() string        { return q.OwnerID }

type ListOwnerBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListOwnerBookingsHandler) Handle(ctx context.Context, q ListOwnerBookingsQuery) (dto.BookingCollection, error) {
	var statuses []domainbooking.Status
	filter := strings.ToUpper(strings.TrimSpace(q.Status))
	if filter != "" && filter != allStatusesFilterValue {
		status, err := domainbooking.ParseStatus(filter)
		if err != nil {
			return dto.BookingCollection{}, err
		}
		statuses = append(statuses, status)
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, err := unit.Bookings().ListByOwner(execCtx, q.OwnerID, statuses...)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	sortNewestFirst(items)
	if h.Logger != nil {
		h.Logger.Debug("owner bookings listed", "owner_id", q.OwnerID, "status", filter, "count", len(items))
	}
	return dto.MapBookings(items), nil
}

type PreviewCancellationQuery struct {
	BookingID string `validate:"required,max=64"`
	ActorID   string `validate:"required,max=64"`
	ActorRole string `validate:"omitempty,oneof=RENTER OWNER renter owner"`
}

func (q PreviewCancellationQuery) Key() string { return previewCancellationKey }
func (q PreviewCancellationQuery) Roles() []access.Role {
	return []access.Role{access.RoleRenter, access.RoleOwner}
}
func (q PreviewCancellationQuery) Actor() string { return q.ActorID }

// PreviewCancellationHandler computes the cancellation terms without changing anything.
type PreviewCancellationHandler struct {
	UoWFactory uow.UoWFactory
	Engine     *cancellation.Engine
	Now        func() time.Time
}

func (h *PreviewCancellationHandler) Handle(ctx context.Context, q PreviewCancellationQuery) (dto.CancellationQuote, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.CancellationQuote{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	b, err := unit.Bookings().ByID(execCtx, domainbooking.ID(q.BookingID))
	if err != nil {
		return dto.CancellationQuote{}, err
	}
	actor, err := resolveActor(b, q.ActorID, q.ActorRole)
	if err != nil {
		return dto.CancellationQuote{}, err
	}
	if !b.Status.Can(domainbooking.ActionCancel) {
		return dto.CancellationQuote{}, &domainbooking.TransitionError{From: b.Status, Action: domainbooking.ActionCancel}
	}
	decision, err := h.Engine.Decide(b.CancellationInput(actor, handlersupport.Clock(h.Now)))
	if err != nil {
		return dto.CancellationQuote{}, err
	}
	return dto.MapDecision(string(b.ID), decision), nil
}

func viewerAllowed(ctx context.Context, b *domainbooking.Booking, viewerID string) bool {
	if p, ok := access.FromContext(ctx); ok && p.Has(access.RoleSystem) {
		return true
	}
	return b.Involves(viewerID)
}

func sortNewestFirst(items []*domainbooking.Booking) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

var (
	_ queries.Handler[GetBookingQuery, dto.Booking]                    = (*GetBookingHandler)(nil)
	_ queries.Handler[ListRenterBookingsQuery, dto.BookingCollection]  = (*ListRenterBookingsHandler)(nil)
	_ queries.Handler[ListOwnerBookingsQuery, dto.BookingCollection]   = (*ListOwnerBookingsHandler)(nil)
	_ queries.Handler[PreviewCancellationQuery, dto.CancellationQuote] = (*PreviewCancellationHandler)(nil)
)
