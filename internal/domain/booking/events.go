package booking

import (
	"time"

	"rentme-reservations/internal/domain/shared/daterange"
	"rentme-reservations/internal/domain/shared/money"
)

type Requested struct {
	BookingID  string              `json:"booking_id"`
	PropertyID string              `json:"property_id"`
	RenterID   string              `json:"renter_id"`
	OwnerID    string              `json:"owner_id"`
	Range      daterange.DateRange `json:"range"`
	Total      money.Money         `json:"total"`
	At         time.Time           `json:"at"`
}

func (e Requested) EventName() string     { return "booking.requested" }
func (e Requested) AggregateID() string   { return e.BookingID }
func (e Requested) OccurredAt() time.Time { return e.At }

type Confirmed struct {
	BookingID        string              `json:"booking_id"`
	PropertyID       string              `json:"property_id"`
	RenterID         string              `json:"renter_id"`
	OwnerID          string              `json:"owner_id"`
	Range            daterange.DateRange `json:"range"`
	Total            money.Money         `json:"total"`
	CaptureID        string              `json:"capture_id"`
	PayoutEligibleAt time.Time           `json:"payout_eligible_at"`
	At               time.Time           `json:"at"`
}

func (e Confirmed) EventName() string     { return "booking.confirmed" }
func (e Confirmed) AggregateID() string   { return e.BookingID }
func (e Confirmed) OccurredAt() time.Time { return e.At }

type Declined struct {
	BookingID  string    `json:"booking_id"`
	PropertyID string    `json:"property_id"`
	RenterID   string    `json:"renter_id"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

func (e Declined) EventName() string     { return "booking.declined" }
func (e Declined) AggregateID() string   { return e.BookingID }
func (e Declined) OccurredAt() time.Time { return e.At }

type Superseded struct {
	BookingID    string    `json:"booking_id"`
	PropertyID   string    `json:"property_id"`
	RenterID     string    `json:"renter_id"`
	SupersededBy string    `json:"superseded_by"`
	At           time.Time `json:"at"`
}

func (e Superseded) EventName() string     { return "booking.superseded" }
func (e Superseded) AggregateID() string   { return e.BookingID }
func (e Superseded) OccurredAt() time.Time { return e.At }

type Canceled struct {
	BookingID          string      `json:"booking_id"`
	PropertyID         string      `json:"property_id"`
	RenterID           string      `json:"renter_id"`
	OwnerID            string      `json:"owner_id"`
	Actor              string      `json:"actor"`
	Reason             string      `json:"reason,omitempty"`
	RefundPercent      int         `json:"refund_percent"`
	Refund             money.Money `json:"refund"`
	RetainedCommission money.Money `json:"retained_commission"`
	OwnerPenalty       money.Money `json:"owner_penalty"`
	PaymentStatus      string      `json:"payment_status"`
	At                 time.Time   `json:"at"`
}

func (e Canceled) EventName() string     { return "booking.canceled" }
func (e Canceled) AggregateID() string   { return e.BookingID }
func (e Canceled) OccurredAt() time.Time { return e.At }

// Completed doubles as the payout trigger for the owner's share.
type Completed struct {
	BookingID   string      `json:"booking_id"`
	PropertyID  string      `json:"property_id"`
	OwnerID     string      `json:"owner_id"`
	OwnerPayout money.Money `json:"owner_payout"`
	Commission  money.Money `json:"commission"`
	At          time.Time   `json:"at"`
}

func (e Completed) EventName() string     { return "booking.completed" }
func (e Completed) AggregateID() string   { return e.BookingID }
func (e Completed) OccurredAt() time.Time { return e.At }

func RequestedEvent(b *Booking, at time.Time) Requested {
	return Requested{
		BookingID:  string(b.ID),
		PropertyID: string(b.PropertyID),
		RenterID:   b.RenterID,
		OwnerID:    b.OwnerID,
		Range:      b.Range,
		Total:      b.Price.Total,
		At:         at.UTC(),
	}
}

func ConfirmedEvent(b *Booking, at time.Time) Confirmed {
	return Confirmed{
		BookingID:        string(b.ID),
		PropertyID:       string(b.PropertyID),
		RenterID:         b.RenterID,
		OwnerID:          b.OwnerID,
		Range:            b.Range,
		Total:            b.Price.Total,
		CaptureID:        b.CaptureID,
		PayoutEligibleAt: b.PayoutEligibleAt,
		At:               at.UTC(),
	}
}

func DeclinedEvent(b *Booking, at time.Time) Declined {
	ev := Declined{BookingID: string(b.ID), PropertyID: string(b.PropertyID), RenterID: b.RenterID, At: at.UTC()}
	if b.Cancellation != nil {
		ev.Reason = b.Cancellation.Reason
	}
	return ev
}

func SupersededEvent(b *Booking, at time.Time) Superseded {
	return Superseded{
		BookingID:    string(b.ID),
		PropertyID:   string(b.PropertyID),
		RenterID:     b.RenterID,
		SupersededBy: string(b.SupersededBy),
		At:           at.UTC(),
	}
}

func CanceledEvent(b *Booking, at time.Time) Canceled {
	ev := Canceled{
		BookingID:     string(b.ID),
		PropertyID:    string(b.PropertyID),
		RenterID:      b.RenterID,
		OwnerID:       b.OwnerID,
		PaymentStatus: string(b.PaymentStatus),
		At:            at.UTC(),
	}
	if c := b.Cancellation; c != nil {
		ev.Actor = string(c.Actor)
		ev.Reason = c.Reason
		ev.RefundPercent = c.RefundPercent
		ev.Refund = c.Refund
		ev.RetainedCommission = c.RetainedCommission
		ev.OwnerPenalty = c.OwnerPenalty
	}
	return ev
}

func CompletedEvent(b *Booking, at time.Time) Completed {
	return Completed{
		BookingID:   string(b.ID),
		PropertyID:  string(b.PropertyID),
		OwnerID:     b.OwnerID,
		OwnerPayout: b.Price.OwnerPayout,
		Commission:  b.Price.Commission,
		At:          at.UTC(),
	}
}
