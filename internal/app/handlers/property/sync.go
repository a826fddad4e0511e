package property

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rentme-reservations/internal/app/access"
	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/dto"
	handlersupport "rentme-reservations/internal/app/handlers/support"
	domainproperty "rentme-reservations/internal/domain/property"
	"rentme-reservations/internal/domain/shared/money"
)

const syncPropertyKey = "property.sync"

// SyncPropertyCommand carries a listing snapshot published by the listings service.
type SyncPropertyCommand struct {
	PropertyID       string    `validate:"required,max=64"`
	OwnerID          string    `validate:"required,max=64"`
	DailyRate        int64     `validate:"gt=0"`
	Currency         string    `validate:"required,len=3"`
	PriceType        string    `validate:"omitempty,oneof=DAILY FLAT daily flat"`
	MaxGuests        int       `validate:"gte=0"`
	CancellationTier string    `validate:"omitempty,max=16"`
	UpdatedAt        time.Time `validate:"required"`
}

func (c SyncPropertyCommand) Key() string           { return syncPropertyKey }
func (c SyncPropertyCommand) PropertyScope() string { return c.PropertyID }
func (c SyncPropertyCommand) Roles() []access.Role  { return []access.Role{access.RoleSystem} }
func (c SyncPropertyCommand) Actor() string         { return "" }

// SyncPropertyHandler upserts the property projection. Snapshots older than
// the stored one are ignored so out-of-order deliveries cannot roll it back.
type SyncPropertyHandler struct {
	Logger *slog.Logger
}

func (h *SyncPropertyHandler) Handle(ctx context.Context, cmd SyncPropertyCommand) (dto.Property, error) {
	unit, err := handlersupport.RequireUnit(ctx)
	if err != nil {
		return dto.Property{}, err
	}
	rate, err := money.New(cmd.DailyRate, cmd.Currency)
	if err != nil {
		return dto.Property{}, err
	}
	next, err := domainproperty.New(domainproperty.Params{
		ID:               domainproperty.PropertyID(cmd.PropertyID),
		OwnerID:          cmd.OwnerID,
		DailyRate:        rate,
		PriceType:        cmd.PriceType,
		MaxGuests:        cmd.MaxGuests,
		CancellationTier: cmd.CancellationTier,
		UpdatedAt:        cmd.UpdatedAt,
	})
	if err != nil {
		return dto.Property{}, err
	}

	current, err := unit.Properties().ByID(ctx, next.ID)
	switch {
	case errors.Is(err, domainproperty.ErrNotFound):
	case err != nil:
		return dto.Property{}, err
	default:
		if !current.OlderThan(next) {
			if h.Logger != nil {
				h.Logger.Debug("stale property snapshot ignored", "property_id", next.ID, "updated_at", next.UpdatedAt)
			}
			return dto.MapProperty(current, false), nil
		}
		next.Version = current.Version
	}

	if err := unit.Properties().Save(ctx, next); err != nil {
		return dto.Property{}, err
	}
	if h.Logger != nil {
		h.Logger.Info("property synced", "property_id", next.ID, "owner_id", next.OwnerID)
	}
	return dto.MapProperty(next, true), nil
}

var _ commands.Handler[SyncPropertyCommand, dto.Property] = (*SyncPropertyHandler)(nil)
