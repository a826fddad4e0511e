package property

import "time"

// Snapshot is the wire form of a listing as published on the property
// stream and stored in fixture files.
type Snapshot struct {
	PropertyID       string    `json:"property_id"`
	OwnerID          string    `json:"owner_id"`
	DailyRate        int64     `json:"daily_rate"`
	Currency         string    `json:"currency"`
	PriceType        string    `json:"price_type,omitempty"`
	MaxGuests        int       `json:"max_guests,omitempty"`
	CancellationTier string    `json:"cancellation_tier,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Command converts the snapshot, filling the currency and timestamp when absent.
func (s Snapshot) Command(defaultCurrency string, now time.Time) SyncPropertyCommand {
	currency := s.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	updatedAt := s.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	return SyncPropertyCommand{
		PropertyID:       s.PropertyID,
		OwnerID:          s.OwnerID,
		DailyRate:        s.DailyRate,
		Currency:         currency,
		PriceType:        s.PriceType,
		MaxGuests:        s.MaxGuests,
		CancellationTier: s.CancellationTier,
		UpdatedAt:        updatedAt.UTC(),
	}
}
