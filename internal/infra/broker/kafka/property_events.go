package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"rentme-reservations/internal/app/access"
	"rentme-reservations/internal/app/commands"
	"rentme-reservations/internal/app/dto"
	propertyapp "rentme-reservations/internal/app/handlers/property"
	"rentme-reservations/internal/app/middleware"
	"rentme-reservations/internal/app/policies"
	"rentme-reservations/internal/domain/cancellation"
	domainproperty "rentme-reservations/internal/domain/property"
	"rentme-reservations/internal/domain/shared/money"
)

const PropertyUpsertedType = "property.upserted.v1"

// CloudEvent is the envelope of messages on the property stream.
type CloudEvent struct {
	SpecVersion string          `json:"specversion"`
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Source      string          `json:"source"`
	Time        time.Time       `json:"time"`
	Data        json.RawMessage `json:"data"`
}

// PropertyEventHandler projects listing snapshots into the property store.
type PropertyEventHandler struct {
	Commands commands.Bus
	Inbox    policies.Inbox
	Currency string
	Now      func() time.Time
	Logger   *slog.Logger
}

func (h *PropertyEventHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var evt CloudEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		h.warn("malformed property event skipped", "offset", msg.Offset, "error", err)
		return nil
	}
	if evt.Type != PropertyUpsertedType {
		if h.Logger != nil {
			h.Logger.Debug("ignoring property event", "type", evt.Type)
		}
		return nil
	}
	var snapshot propertyapp.Snapshot
	if err := json.Unmarshal(evt.Data, &snapshot); err != nil {
		h.warn("malformed property snapshot skipped", "event_id", evt.ID, "error", err)
		return nil
	}
	if snapshot.UpdatedAt.IsZero() {
		snapshot.UpdatedAt = evt.Time
	}

	if evt.ID != "" && h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, evt.ID)
		if err != nil {
			return fmt.Errorf("inbox: %w", err)
		}
		if seen {
			return nil
		}
	}

	ctx = access.WithPrincipal(ctx, access.System())
	_, err := commands.Dispatch[propertyapp.SyncPropertyCommand, dto.Property](ctx, h.Commands, snapshot.Command(h.Currency, h.now()))
	if rejected(err) {
		h.warn("invalid property snapshot skipped", "event_id", evt.ID, "property_id", snapshot.PropertyID, "error", err)
		return nil
	}
	if err != nil {
		if evt.ID != "" && h.Inbox != nil {
			if ferr := h.Inbox.Forget(ctx, evt.ID); ferr != nil {
				err = errors.Join(err, ferr)
			}
		}
		return err
	}
	return nil
}

// rejected reports errors caused by the snapshot itself; retrying cannot fix them.
func rejected(err error) bool {
	if err == nil {
		return false
	}
	var verr *middleware.ValidationError
	if errors.As(err, &verr) {
		return true
	}
	for _, target := range []error{
		domainproperty.ErrOwnerRequired,
		domainproperty.ErrDailyRate,
		domainproperty.ErrMaxGuests,
		domainproperty.ErrUnknownPriceType,
		money.ErrInvalidCurrency,
		cancellation.ErrUnknownTier,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (h *PropertyEventHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *PropertyEventHandler) warn(msg string, args ...any) {
	if h.Logger != nil {
		h.Logger.Warn(msg, args...)
	}
}

var _ MessageHandler = (*PropertyEventHandler)(nil)
