package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	domainavailability "rentme-reservations/internal/domain/availability"
	domainbooking "rentme-reservations/internal/domain/booking"
	"rentme-reservations/internal/domain/cancellation"
	"rentme-reservations/internal/domain/pricing"
	domainproperty "rentme-reservations/internal/domain/property"
	"rentme-reservations/internal/domain/shared/daterange"
	"rentme-reservations/internal/domain/shared/money"
)

// PropertyModel is the GORM model for the property projection.
type PropertyModel struct {
	ID               string    `gorm:"primaryKey;size:64"`
	OwnerID          string    `gorm:"not null;size:64;index"`
	DailyRate        int64     `gorm:"not null"`
	Currency         string    `gorm:"not null;size:3"`
	PriceType        string    `gorm:"not null;size:16"`
	MaxGuests        int       `gorm:"not null"`
	CancellationTier string    `gorm:"not null;size:16"`
	UpdatedAt        time.Time `gorm:"not null;autoUpdateTime:false"`
	Version          int64     `gorm:"not null"`
}

func (PropertyModel) TableName() string {
	return "properties"
}

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID               string          `gorm:"primaryKey;size:64"`
	PropertyID       string          `gorm:"not null;size:64;index:idx_bookings_property_range,priority:1"`
	RenterID         string          `gorm:"not null;size:64;index"`
	OwnerID          string          `gorm:"not null;size:64;index"`
	CheckIn          time.Time       `gorm:"not null;index:idx_bookings_property_range,priority:2"`
	CheckOut         time.Time       `gorm:"not null;index"`
	Status           string          `gorm:"not null;size:16;index"`
	PaymentStatus    string          `gorm:"not null;size:24"`
	Price            json.RawMessage `gorm:"type:jsonb;not null"`
	TeamSize         int             `gorm:"not null"`
	Notes            string          `gorm:"size:2000"`
	CancellationTier string          `gorm:"not null;size:16"`
	PaymentRef       string          `gorm:"not null;size:128"`
	CaptureID        string          `gorm:"size:128"`
	Cancellation     json.RawMessage `gorm:"type:jsonb"`
	SupersededBy     string          `gorm:"size:64"`
	PayoutEligibleAt *time.Time
	ConfirmedAt      *time.Time
	CompletedAt      *time.Time
	CreatedAt        time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt        time.Time `gorm:"not null;autoUpdateTime:false"`
	Version          int64     `gorm:"not null"`
}

func (BookingModel) TableName() string {
	return "bookings"
}

// WindowModel is the GORM model for owner unavailability windows.
type WindowModel struct {
	ID         string    `gorm:"primaryKey;size:64"`
	PropertyID string    `gorm:"not null;size:64;index"`
	CheckIn    time.Time `gorm:"not null"`
	CheckOut   time.Time `gorm:"not null"`
	Reason     string    `gorm:"size:500"`
	CreatedBy  string    `gorm:"not null;size:64"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime:false"`
}

func (WindowModel) TableName() string {
	return "unavailability_windows"
}

type moneyJSON struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func toMoneyJSON(m money.Money) moneyJSON {
	return moneyJSON{Amount: m.Amount, Currency: m.Currency}
}

func (j moneyJSON) toMoney() money.Money {
	return money.Money{Amount: j.Amount, Currency: j.Currency}
}

type priceJSON struct {
	Nights         int       `json:"nights"`
	DailyRate      moneyJSON `json:"daily_rate"`
	PriceType      string    `json:"price_type"`
	Total          moneyJSON `json:"total"`
	CommissionRate int64     `json:"commission_rate_bp"`
	Commission     moneyJSON `json:"commission"`
	OwnerPayout    moneyJSON `json:"owner_payout"`
}

type cancellationJSON struct {
	Actor              string    `json:"actor"`
	ActorID            string    `json:"actor_id"`
	Reason             string    `json:"reason,omitempty"`
	RefundPercent      int       `json:"refund_percent"`
	Refund             moneyJSON `json:"refund"`
	RetainedCommission moneyJSON `json:"retained_commission"`
	RetainedByOwner    moneyJSON `json:"retained_by_owner"`
	OwnerPenalty       moneyJSON `json:"owner_penalty"`
	At                 time.Time `json:"at"`
}

func toPropertyModel(p *domainproperty.Property) PropertyModel {
	return PropertyModel{
		ID:               string(p.ID),
		OwnerID:          p.OwnerID,
		DailyRate:        p.DailyRate.Amount,
		Currency:         p.DailyRate.Currency,
		PriceType:        string(p.PriceType),
		MaxGuests:        p.MaxGuests,
		CancellationTier: string(p.CancellationTier),
		UpdatedAt:        p.UpdatedAt,
		Version:          p.Version,
	}
}

func toDomainProperty(m *PropertyModel) *domainproperty.Property {
	return &domainproperty.Property{
		ID:               domainproperty.PropertyID(m.ID),
		OwnerID:          m.OwnerID,
		DailyRate:        money.Money{Amount: m.DailyRate, Currency: m.Currency},
		PriceType:        domainproperty.PriceType(m.PriceType),
		MaxGuests:        m.MaxGuests,
		CancellationTier: cancellation.Tier(m.CancellationTier),
		UpdatedAt:        m.UpdatedAt.UTC(),
		Version:          m.Version,
	}
}

func toBookingModel(b *domainbooking.Booking) (*BookingModel, error) {
	price, err := json.Marshal(priceJSON{
		Nights:         b.Price.Nights,
		DailyRate:      toMoneyJSON(b.Price.DailyRate),
		PriceType:      string(b.Price.PriceType),
		Total:          toMoneyJSON(b.Price.Total),
		CommissionRate: int64(b.Price.CommissionRate),
		Commission:     toMoneyJSON(b.Price.Commission),
		OwnerPayout:    toMoneyJSON(b.Price.OwnerPayout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal price: %w", err)
	}
	model := &BookingModel{
		ID:               string(b.ID),
		PropertyID:       string(b.PropertyID),
		RenterID:         b.RenterID,
		OwnerID:          b.OwnerID,
		CheckIn:          b.Range.CheckIn,
		CheckOut:         b.Range.CheckOut,
		Status:           string(b.Status),
		PaymentStatus:    string(b.PaymentStatus),
		Price:            price,
		TeamSize:         b.TeamSize,
		Notes:            b.Notes,
		CancellationTier: string(b.CancellationTier),
		PaymentRef:       b.PaymentRef,
		CaptureID:        b.CaptureID,
		SupersededBy:     string(b.SupersededBy),
		PayoutEligibleAt: timePtr(b.PayoutEligibleAt),
		ConfirmedAt:      timePtr(b.ConfirmedAt),
		CompletedAt:      timePtr(b.CompletedAt),
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
		Version:          b.Version,
	}
	if c := b.Cancellation; c != nil {
		model.Cancellation, err = json.Marshal(cancellationJSON{
			Actor:              string(c.Actor),
			ActorID:            c.ActorID,
			Reason:             c.Reason,
			RefundPercent:      c.RefundPercent,
			Refund:             toMoneyJSON(c.Refund),
			RetainedCommission: toMoneyJSON(c.RetainedCommission),
			RetainedByOwner:    toMoneyJSON(c.RetainedByOwner),
			OwnerPenalty:       toMoneyJSON(c.OwnerPenalty),
			At:                 c.At,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal cancellation: %w", err)
		}
	}
	return model, nil
}

func toDomainBooking(m *BookingModel) (*domainbooking.Booking, error) {
	var price priceJSON
	if err := json.Unmarshal(m.Price, &price); err != nil {
		return nil, fmt.Errorf("failed to unmarshal price: %w", err)
	}
	b := &domainbooking.Booking{
		ID:            domainbooking.ID(m.ID),
		PropertyID:    domainproperty.PropertyID(m.PropertyID),
		RenterID:      m.RenterID,
		OwnerID:       m.OwnerID,
		Range:         daterange.DateRange{CheckIn: m.CheckIn.UTC(), CheckOut: m.CheckOut.UTC()},
		Status:        domainbooking.Status(m.Status),
		PaymentStatus: domainbooking.PaymentStatus(m.PaymentStatus),
		Price: pricing.PriceBreakdown{
			Nights:         price.Nights,
			DailyRate:      price.DailyRate.toMoney(),
			PriceType:      domainproperty.PriceType(price.PriceType),
			Total:          price.Total.toMoney(),
			CommissionRate: money.BasisPoints(price.CommissionRate),
			Commission:     price.Commission.toMoney(),
			OwnerPayout:    price.OwnerPayout.toMoney(),
		},
		TeamSize:         m.TeamSize,
		Notes:            m.Notes,
		CancellationTier: cancellation.Tier(m.CancellationTier),
		PaymentRef:       m.PaymentRef,
		CaptureID:        m.CaptureID,
		SupersededBy:     domainbooking.ID(m.SupersededBy),
		PayoutEligibleAt: timeValue(m.PayoutEligibleAt),
		ConfirmedAt:      timeValue(m.ConfirmedAt),
		CompletedAt:      timeValue(m.CompletedAt),
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
		Version:          m.Version,
	}
	if len(m.Cancellation) > 0 && string(m.Cancellation) != "null" {
		var c cancellationJSON
		if err := json.Unmarshal(m.Cancellation, &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cancellation: %w", err)
		}
		b.Cancellation = &domainbooking.Cancellation{
			Actor:              cancellation.Actor(c.Actor),
			ActorID:            c.ActorID,
			Reason:             c.Reason,
			RefundPercent:      c.RefundPercent,
			Refund:             c.Refund.toMoney(),
			RetainedCommission: c.RetainedCommission.toMoney(),
			RetainedByOwner:    c.RetainedByOwner.toMoney(),
			OwnerPenalty:       c.OwnerPenalty.toMoney(),
			At:                 c.At.UTC(),
		}
	}
	return b, nil
}

func toWindowModel(w *domainavailability.Window) WindowModel {
	return WindowModel{
		ID:         string(w.ID),
		PropertyID: string(w.PropertyID),
		CheckIn:    w.Range.CheckIn,
		CheckOut:   w.Range.CheckOut,
		Reason:     w.Reason,
		CreatedBy:  w.CreatedBy,
		CreatedAt:  w.CreatedAt,
	}
}

func toDomainWindow(m *WindowModel) *domainavailability.Window {
	return &domainavailability.Window{
		ID:         domainavailability.WindowID(m.ID),
		PropertyID: domainproperty.PropertyID(m.PropertyID),
		Range:      daterange.DateRange{CheckIn: m.CheckIn.UTC(), CheckOut: m.CheckOut.UTC()},
		Reason:     m.Reason,
		CreatedBy:  m.CreatedBy,
		CreatedAt:  m.CreatedAt.UTC(),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
