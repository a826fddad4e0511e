package dto

import (
	"time"

	domainbooking "rentme-reservations/internal/domain/booking"
	"rentme-reservations/internal/domain/cancellation"
	"rentme-reservations/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{Amount: value.Amount, Currency: value.Currency}
}

type PriceDTO struct {
	Nights           int      `json:"nights"`
	PriceType        string   `json:"price_type"`
	DailyRate        MoneyDTO `json:"daily_rate"`
	Total            MoneyDTO `json:"total"`
	CommissionRateBP int64    `json:"commission_rate_bp"`
	Commission       MoneyDTO `json:"commission"`
	OwnerPayout      MoneyDTO `json:"owner_payout"`
}

type CancellationDTO struct {
	Actor              string    `json:"actor"`
	ActorID            string    `json:"actor_id"`
	Reason             string    `json:"reason,omitempty"`
	RefundPercent      int       `json:"refund_percent"`
	Refund             MoneyDTO  `json:"refund"`
	RetainedCommission MoneyDTO  `json:"retained_commission"`
	RetainedByOwner    MoneyDTO  `json:"retained_by_owner"`
	OwnerPenalty       MoneyDTO  `json:"owner_penalty"`
	At                 time.Time `json:"at"`
}

type Booking struct {
	ID               string           `json:"id"`
	PropertyID       string           `json:"property_id"`
	RenterID         string           `json:"renter_id"`
	OwnerID          string           `json:"owner_id"`
	CheckIn          time.Time        `json:"check_in"`
	CheckOut         time.Time        `json:"check_out"`
	Status           string           `json:"status"`
	PaymentStatus    string           `json:"payment_status"`
	Price            PriceDTO         `json:"price"`
	TeamSize         int              `json:"team_size"`
	Notes            string           `json:"notes,omitempty"`
	CancellationTier string           `json:"cancellation_tier"`
	Cancellation     *CancellationDTO `json:"cancellation,omitempty"`
	SupersededBy     string           `json:"superseded_by,omitempty"`
	PayoutEligibleAt *time.Time       `json:"payout_eligible_at,omitempty"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	Version          int64            `json:"version"`
}

type BookingCollection struct {
	Items []Booking `json:"items"`
}

func MapBooking(b *domainbooking.Booking) Booking {
	out := Booking{
		ID:            string(b.ID),
		PropertyID:    string(b.PropertyID),
		RenterID:      b.RenterID,
		OwnerID:       b.OwnerID,
		CheckIn:       b.Range.CheckIn,
		CheckOut:      b.Range.CheckOut,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		Price: PriceDTO{
			Nights:           b.Price.Nights,
			PriceType:        string(b.Price.PriceType),
			DailyRate:        MapMoney(b.Price.DailyRate),
			Total:            MapMoney(b.Price.Total),
			CommissionRateBP: int64(b.Price.CommissionRate),
			Commission:       MapMoney(b.Price.Commission),
			OwnerPayout:      MapMoney(b.Price.OwnerPayout),
		},
		TeamSize:         b.TeamSize,
		Notes:            b.Notes,
		CancellationTier: string(b.CancellationTier),
		SupersededBy:     string(b.SupersededBy),
		PayoutEligibleAt: optionalTime(b.PayoutEligibleAt),
		CompletedAt:      optionalTime(b.CompletedAt),
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
		Version:          b.Version,
	}
	if c := b.Cancellation; c != nil {
		out.Cancellation = &CancellationDTO{
			Actor:              string(c.Actor),
			ActorID:            c.ActorID,
			Reason:             c.Reason,
			RefundPercent:      c.RefundPercent,
			Refund:             MapMoney(c.Refund),
			RetainedCommission: MapMoney(c.RetainedCommission),
			RetainedByOwner:    MapMoney(c.RetainedByOwner),
			OwnerPenalty:       MapMoney(c.OwnerPenalty),
			At:                 c.At,
		}
	}
	return out
}

func MapBookings(items []*domainbooking.Booking) BookingCollection {
	out := BookingCollection{Items: make([]Booking, 0, len(items))}
	for _, b := range items {
		out.Items = append(out.Items, MapBooking(b))
	}
	return out
}

// CancellationQuote previews what a cancellation would return right now.
type CancellationQuote struct {
	BookingID          string   `json:"booking_id"`
	Tier               string   `json:"tier"`
	Actor              string   `json:"actor"`
	LeadTimeHours      float64  `json:"lead_time_hours"`
	RefundPercent      int      `json:"refund_percent"`
	Refund             MoneyDTO `json:"refund"`
	CommissionRefunded bool     `json:"commission_refunded"`
	RetainedCommission MoneyDTO `json:"retained_commission"`
	RetainedByOwner    MoneyDTO `json:"retained_by_owner"`
	OwnerPenalty       MoneyDTO `json:"owner_penalty"`
	Paid               bool     `json:"paid"`
}

func MapDecision(bookingID string, d cancellation.Decision) CancellationQuote {
	return CancellationQuote{
		BookingID:          bookingID,
		Tier:               string(d.Tier),
		Actor:              string(d.Actor),
		LeadTimeHours:      d.LeadTime.Hours(),
		RefundPercent:      d.RefundPercent,
		Refund:             MapMoney(d.Refund),
		CommissionRefunded: d.CommissionRefunded,
		RetainedCommission: MapMoney(d.RetainedCommission),
		RetainedByOwner:    MapMoney(d.RetainedByOwner),
		OwnerPenalty:       MapMoney(d.OwnerPenalty),
		Paid:               d.Paid,
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
