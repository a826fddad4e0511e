package mongo

import (
	"time"

	domainavailability "rentme-reservations/internal/domain/availability"
	domainbooking "rentme-reservations/internal/domain/booking"
	"rentme-reservations/internal/domain/cancellation"
	"rentme-reservations/internal/domain/pricing"
	domainproperty "rentme-reservations/internal/domain/property"
	"rentme-reservations/internal/domain/shared/daterange"
	"rentme-reservations/internal/domain/shared/money"
)

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func newMoneyDocument(m money.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func (d moneyDocument) toMoney() money.Money {
	return money.Money{Amount: d.Amount, Currency: d.Currency}
}

type rangeDocument struct {
	CheckIn  time.Time `bson:"check_in"`
	CheckOut time.Time `bson:"check_out"`
}

func newRangeDocument(dr daterange.DateRange) rangeDocument {
	return rangeDocument{CheckIn: dr.CheckIn, CheckOut: dr.CheckOut}
}

func (d rangeDocument) toRange() daterange.DateRange {
	return daterange.DateRange{CheckIn: d.CheckIn.UTC(), CheckOut: d.CheckOut.UTC()}
}

type propertyDocument struct {
	ID               string        `bson:"_id"`
	OwnerID          string        `bson:"owner_id"`
	DailyRate        moneyDocument `bson:"daily_rate"`
	PriceType        string        `bson:"price_type"`
	MaxGuests        int           `bson:"max_guests"`
	CancellationTier string        `bson:"cancellation_tier"`
	UpdatedAt        time.Time     `bson:"updated_at"`
	Version          int64         `bson:"version"`
}

func newPropertyDocument(p *domainproperty.Property) propertyDocument {
	return propertyDocument{
		ID:               string(p.ID),
		OwnerID:          p.OwnerID,
		DailyRate:        newMoneyDocument(p.DailyRate),
		PriceType:        string(p.PriceType),
		MaxGuests:        p.MaxGuests,
		CancellationTier: string(p.CancellationTier),
		UpdatedAt:        p.UpdatedAt,
		Version:          p.Version,
	}
}

func (d propertyDocument) toAggregate() *domainproperty.Property {
	return &domainproperty.Property{
		ID:               domainproperty.PropertyID(d.ID),
		OwnerID:          d.OwnerID,
		DailyRate:        d.DailyRate.toMoney(),
		PriceType:        domainproperty.PriceType(d.PriceType),
		MaxGuests:        d.MaxGuests,
		CancellationTier: cancellation.Tier(d.CancellationTier),
		UpdatedAt:        d.UpdatedAt.UTC(),
		Version:          d.Version,
	}
}

type priceDocument struct {
	Nights         int           `bson:"nights"`
	DailyRate      moneyDocument `bson:"daily_rate"`
	PriceType      string        `bson:"price_type"`
	Total          moneyDocument `bson:"total"`
	CommissionRate int64         `bson:"commission_rate_bp"`
	Commission     moneyDocument `bson:"commission"`
	OwnerPayout    moneyDocument `bson:"owner_payout"`
}

type cancellationDocument struct {
	Actor              string        `bson:"actor"`
	ActorID            string        `bson:"actor_id"`
	Reason             string        `bson:"reason"`
	RefundPercent      int           `bson:"refund_percent"`
	Refund             moneyDocument `bson:"refund"`
	RetainedCommission moneyDocument `bson:"retained_commission"`
	RetainedByOwner    moneyDocument `bson:"retained_by_owner"`
	OwnerPenalty       moneyDocument `bson:"owner_penalty"`
	At                 time.Time     `bson:"at"`
}

type bookingDocument struct {
	ID               string                `bson:"_id"`
	PropertyID       string                `bson:"property_id"`
	RenterID         string                `bson:"renter_id"`
	OwnerID          string                `bson:"owner_id"`
	Range            rangeDocument         `bson:"range"`
	Status           string                `bson:"status"`
	PaymentStatus    string                `bson:"payment_status"`
	Price            priceDocument         `bson:"price"`
	TeamSize         int                   `bson:"team_size"`
	Notes            string                `bson:"notes,omitempty"`
	CancellationTier string                `bson:"cancellation_tier"`
	PaymentRef       string                `bson:"payment_ref"`
	CaptureID        string                `bson:"capture_id,omitempty"`
	Cancellation     *cancellationDocument `bson:"cancellation,omitempty"`
	SupersededBy     string                `bson:"superseded_by,omitempty"`
	PayoutEligibleAt time.Time             `bson:"payout_eligible_at,omitempty"`
	ConfirmedAt      time.Time             `bson:"confirmed_at,omitempty"`
	CompletedAt      time.Time             `bson:"completed_at,omitempty"`
	CreatedAt        time.Time             `bson:"created_at"`
	UpdatedAt        time.Time             `bson:"updated_at"`
	Version          int64                 `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	doc := bookingDocument{
		ID:            string(b.ID),
		PropertyID:    string(b.PropertyID),
		RenterID:      b.RenterID,
		OwnerID:       b.OwnerID,
		Range:         newRangeDocument(b.Range),
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		Price: priceDocument{
			Nights:         b.Price.Nights,
			DailyRate:      newMoneyDocument(b.Price.DailyRate),
			PriceType:      string(b.Price.PriceType),
			Total:          newMoneyDocument(b.Price.Total),
			CommissionRate: int64(b.Price.CommissionRate),
			Commission:     newMoneyDocument(b.Price.Commission),
			OwnerPayout:    newMoneyDocument(b.Price.OwnerPayout),
		},
		TeamSize:         b.TeamSize,
		Notes:            b.Notes,
		CancellationTier: string(b.CancellationTier),
		PaymentRef:       b.PaymentRef,
		CaptureID:        b.CaptureID,
		SupersededBy:     string(b.SupersededBy),
		PayoutEligibleAt: b.PayoutEligibleAt,
		ConfirmedAt:      b.ConfirmedAt,
		CompletedAt:      b.CompletedAt,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
		Version:          b.Version,
	}
	if c := b.Cancellation; c != nil {
		doc.Cancellation = &cancellationDocument{
			Actor:              string(c.Actor),
			ActorID:            c.ActorID,
			Reason:             c.Reason,
			RefundPercent:      c.RefundPercent,
			Refund:             newMoneyDocument(c.Refund),
			RetainedCommission: newMoneyDocument(c.RetainedCommission),
			RetainedByOwner:    newMoneyDocument(c.RetainedByOwner),
			OwnerPenalty:       newMoneyDocument(c.OwnerPenalty),
			At:                 c.At,
		}
	}
	return doc
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	b := &domainbooking.Booking{
		ID:            domainbooking.ID(d.ID),
		PropertyID:    domainproperty.PropertyID(d.PropertyID),
		RenterID:      d.RenterID,
		OwnerID:       d.OwnerID,
		Range:         d.Range.toRange(),
		Status:        domainbooking.Status(d.Status),
		PaymentStatus: domainbooking.PaymentStatus(d.PaymentStatus),
		Price: pricing.PriceBreakdown{
			Nights:         d.Price.Nights,
			DailyRate:      d.Price.DailyRate.toMoney(),
			PriceType:      domainproperty.PriceType(d.Price.PriceType),
			Total:          d.Price.Total.toMoney(),
			CommissionRate: money.BasisPoints(d.Price.CommissionRate),
			Commission:     d.Price.Commission.toMoney(),
			OwnerPayout:    d.Price.OwnerPayout.toMoney(),
		},
		TeamSize:         d.TeamSize,
		Notes:            d.Notes,
		CancellationTier: cancellation.Tier(d.CancellationTier),
		PaymentRef:       d.PaymentRef,
		CaptureID:        d.CaptureID,
		SupersededBy:     domainbooking.ID(d.SupersededBy),
		PayoutEligibleAt: utcOrZero(d.PayoutEligibleAt),
		ConfirmedAt:      utcOrZero(d.ConfirmedAt),
		CompletedAt:      utcOrZero(d.CompletedAt),
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
		Version:          d.Version,
	}
	if c := d.Cancellation; c != nil {
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
	return b
}

type windowDocument struct {
	ID         string        `bson:"_id"`
	PropertyID string        `bson:"property_id"`
	Range      rangeDocument `bson:"range"`
	Reason     string        `bson:"reason,omitempty"`
	CreatedBy  string        `bson:"created_by"`
	CreatedAt  time.Time     `bson:"created_at"`
}

func newWindowDocument(w *domainavailability.Window) windowDocument {
	return windowDocument{
		ID:         string(w.ID),
		PropertyID: string(w.PropertyID),
		Range:      newRangeDocument(w.Range),
		Reason:     w.Reason,
		CreatedBy:  w.CreatedBy,
		CreatedAt:  w.CreatedAt,
	}
}

func (d windowDocument) toAggregate() *domainavailability.Window {
	return &domainavailability.Window{
		ID:         domainavailability.WindowID(d.ID),
		PropertyID: domainproperty.PropertyID(d.PropertyID),
		Range:      d.Range.toRange(),
		Reason:     d.Reason,
		CreatedBy:  d.CreatedBy,
		CreatedAt:  d.CreatedAt.UTC(),
	}
}

// utcOrZero keeps unset timestamps at the zero value.
func utcOrZero(t time.Time) time.Time {
	if t.IsZero() || t.Unix() == 0 {
		return time.Time{}
	}
	return t.UTC()
}
