package availability

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentme-reservations/internal/app/access"
	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/dto"
	handlersupport "rentme-reservations/internal/app/handlers/support"
	"rentme-reservations/internal/app/outbox"
	domainavailability "rentme-reservations/internal/domain/availability"
	domainbooking "rentme-reservations/internal/domain/booking"
	"rentme-reservations/internal/domain/shared/daterange"
)

const (
	blockDatesKey   = "availability.block_dates"
	unblockDatesKey = "availability.unblock_dates"
)

type BlockDatesCommand struct {
	WindowID   string    `validate:"omitempty,max=64"`
	PropertyID string    `validate:"required,max=64"`
	OwnerID    string    `validate:"required,max=64"`
	CheckIn    time.Time `validate:"required"`
	CheckOut   time.Time `validate:"required"`
	Reason     string    `validate:"max=500"`
}

func (c BlockDatesCommand) Key() string           { return blockDatesKey }
func (c BlockDatesCommand) PropertyScope() string { return c.PropertyID }
func (c BlockDatesCommand) Roles() []access.Role  { return []access.Role{access.RoleOwner} }
func (c BlockDatesCommand) Actor() string         { return c.OwnerID }

// BlockDatesHandler adds an unavailability window. Windows may overlap each
// other but never a confirmed booking.
type BlockDatesHandler struct {
	Encoder outbox.EventEncoder
	NewID   func() string
	Now     func() time.Time
	Logger  *slog.Logger
}

func (h *BlockDatesHandler) Handle(ctx context.Context, cmd BlockDatesCommand) (*dto.Window, error) {
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
	prop, err := loadProperty(ctx, unit, cmd.PropertyID)
	if err != nil {
		return nil, err
	}
	if !prop.OwnedBy(cmd.OwnerID) {
		return nil, domainavailability.ErrNotOwner
	}

	reservations, err := domainbooking.Reservations(unit.Bookings()).ConfirmedOverlapping(ctx, prop.ID, dr)
	if err != nil {
		return nil, err
	}
	if len(reservations) > 0 {
		conflicts := make([]domainavailability.Conflict, 0, len(reservations))
		for _, r := range reservations {
			conflicts = append(conflicts, domainavailability.Conflict{Kind: domainavailability.ConflictBooking, ID: r.BookingID, Range: r.Range})
		}
		return nil, &domainbooking.ConflictError{Range: dr, Conflicts: conflicts}
	}

	id := strings.TrimSpace(cmd.WindowID)
	if id == "" {
		id = h.newID()
	}
	window, err := domainavailability.NewWindow(domainavailability.WindowID(id), prop.ID, dr, cmd.Reason, cmd.OwnerID, now)
	if err != nil {
		return nil, err
	}
	if err := unit.Windows().Save(ctx, window); err != nil {
		return nil, err
	}
	if err := handlersupport.Flush(ctx, unit, h.Encoder, window); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("dates blocked", "window_id", window.ID, "property_id", prop.ID, "range", dr.String())
	}
	out := dto.MapWindow(window)
	return &out, nil
}

func (h *BlockDatesHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

type UnblockDatesCommand struct {
	PropertyID string `validate:"required,max=64"`
	OwnerID    string `validate:"required,max=64"`
	WindowID   string `validate:"required,max=64"`
}

func (c UnblockDatesCommand) Key() string           { return unblockDatesKey }
func (c UnblockDatesCommand) PropertyScope() string { return c.PropertyID }
func (c UnblockDatesCommand) Roles() []access.Role  { return []access.Role{access.RoleOwner} }
func (c UnblockDatesCommand) Actor() string         { return c.OwnerID }

type UnblockDatesHandler struct {
	Encoder outbox.EventEncoder
	Now     func() time.Time
	Logger  *slog.Logger
}

func (h *UnblockDatesHandler) Handle(ctx context.Context, cmd UnblockDatesCommand) (*dto.Window, error) {
	unit, err := handlersupport.RequireUnit(ctx)
	if err != nil {
		return nil, err
	}
	prop, err := loadProperty(ctx, unit, cmd.PropertyID)
	if err != nil {
		return nil, err
	}
	if !prop.OwnedBy(cmd.OwnerID) {
		return nil, domainavailability.ErrNotOwner
	}
	window, err := unit.Windows().ByID(ctx, domainavailability.WindowID(cmd.WindowID))
	if err != nil {
		return nil, err
	}
	if window.PropertyID != prop.ID {
		return nil, domainavailability.ErrWindowNotFound
	}
	window.Release(cmd.OwnerID, handlersupport.Clock(h.Now))
	if err := unit.Windows().Delete(ctx, window.ID); err != nil {
		return nil, err
	}
	if err := handlersupport.Flush(ctx, unit, h.Encoder, window); err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("dates unblocked", "window_id", window.ID, "property_id", prop.ID)
	}
	out := dto.MapWindow(window)
	return &out, nil
}

var (
	_ commands.Handler[BlockDatesCommand, *dto.Window]   = (*BlockDatesHandler)(nil)
	_ commands.Handler[UnblockDatesCommand, *dto.Window] = (*UnblockDatesHandler)(nil)
)
