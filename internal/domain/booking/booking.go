package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rentme-reservations/internal/domain/cancellation"
	"rentme-reservations/internal/domain/pricing"
	"rentme-reservations/internal/domain/property"
	"rentme-reservations/internal/domain/shared/daterange"
	"rentme-reservations/internal/domain/shared/events"
	"rentme-reservations/internal/domain/shared/money"
)

type ID string

// ReasonSuperseded marks pending requests canceled because another booking was confirmed.
const ReasonSuperseded = "superseded"

// PayoutDelay is how long after check-in the owner payout becomes eligible.
const PayoutDelay = 24 * time.Hour

const maxNotesLength = 2000

// Cancellation records who canceled a booking and how the money was split.
type Cancellation struct {
	Actor              cancellation.Actor
	ActorID            string
	Reason             string
	RefundPercent      int
	Refund             money.Money
	RetainedCommission money.Money
	RetainedByOwner    money.Money
	OwnerPenalty       money.Money
	At                 time.Time
}

type Booking struct {
	ID               ID
	PropertyID       property.PropertyID
	RenterID         string
	OwnerID          string
	Range            daterange.DateRange
	Status           Status
	PaymentStatus    PaymentStatus
	Price            pricing.PriceBreakdown
	TeamSize         int
	Notes            string
	CancellationTier cancellation.Tier
	PaymentRef       string
	CaptureID        string
	Cancellation     *Cancellation
	SupersededBy     ID
	PayoutEligibleAt time.Time
	ConfirmedAt      time.Time
	CompletedAt      time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
	// Version is the stored version the aggregate was loaded at; zero means new.
	Version int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Booking, error)
	// Save inserts a new booking or updates one whose stored version equals b.Version,
	// then increments b.Version. A stale version yields ErrConcurrentUpdate.
	Save(ctx context.Context, b *Booking) error
	ListOverlapping(ctx context.Context, propertyID property.PropertyID, r daterange.DateRange, statuses ...Status) ([]*Booking, error)
	ListByRenter(ctx context.Context, renterID string) ([]*Booking, error)
	ListByOwner(ctx context.Context, ownerID string, statuses ...Status) ([]*Booking, error)
	ListConfirmedEndedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Booking, error)
}

type CreateParams struct {
	ID       ID
	Property *property.Property
	RenterID string
	Range    daterange.DateRange
	TeamSize int
	Notes    string
	Price    pricing.PriceBreakdown
	Now      time.Time
}

// Create builds a PENDING, UNPAID booking request.
func Create(params CreateParams) (*Booking, error) {
	if params.Property == nil {
		return nil, property.ErrNotFound
	}
	if err := params.Range.Validate(); err != nil {
		return nil, InvalidRange(err)
	}
	renterID := strings.TrimSpace(params.RenterID)
	if renterID == "" {
		return nil, fmt.Errorf("%w: renter id is required", ErrValidation)
	}
	if params.Property.OwnedBy(renterID) {
		return nil, fmt.Errorf("%w: owners cannot book their own property", ErrValidation)
	}
	if !params.Property.AcceptsTeam(params.TeamSize) {
		return nil, fmt.Errorf("%w: team size %d outside 1..%d", ErrValidation, params.TeamSize, params.Property.MaxGuests)
	}
	notes := strings.TrimSpace(params.Notes)
	if len(notes) > maxNotesLength {
		return nil, fmt.Errorf("%w: notes exceed %d characters", ErrValidation, maxNotesLength)
	}
	if err := params.Price.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	now := params.Now.UTC()
	b := &Booking{
		ID:               params.ID,
		PropertyID:       params.Property.ID,
		RenterID:         renterID,
		OwnerID:          params.Property.OwnerID,
		Range:            params.Range,
		Status:           StatusPending,
		PaymentStatus:    PaymentUnpaid,
		Price:            params.Price,
		TeamSize:         params.TeamSize,
		Notes:            notes,
		CancellationTier: params.Property.CancellationTier,
		PaymentRef:       "booking-" + string(params.ID),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	b.Record(RequestedEvent(b, now))
	return b, nil
}

func (b *Booking) transition(action Action, now time.Time) error {
	next, err := b.Status.Next(action)
	if err != nil {
		return err
	}
	b.Status = next
	b.UpdatedAt = now.UTC()
	return nil
}

// Approve confirms the booking after the total was captured.
func (b *Booking) Approve(captureID string, now time.Time) error {
	if err := b.transition(ActionApprove, now); err != nil {
		return err
	}
	b.PaymentStatus = PaymentPaid
	b.CaptureID = captureID
	b.ConfirmedAt = now.UTC()
	b.PayoutEligibleAt = b.Range.CheckIn.Add(PayoutDelay)
	b.Record(ConfirmedEvent(b, now))
	return nil
}

// Decline is the owner's refusal of a pending request. Nothing was captured.
func (b *Booking) Decline(ownerID, reason string, now time.Time) error {
	if err := b.transition(ActionDecline, now); err != nil {
		return err
	}
	b.Cancellation = b.uncharged(cancellation.ActorOwner, ownerID, reason, now)
	b.Record(DeclinedEvent(b, now))
	return nil
}

// Supersede cancels a pending request that overlaps the confirmed booking winner.
func (b *Booking) Supersede(winner ID, now time.Time) error {
	if err := b.transition(ActionSupersede, now); err != nil {
		return err
	}
	b.SupersededBy = winner
	b.Cancellation = b.uncharged(cancellation.ActorOwner, b.OwnerID, ReasonSuperseded, now)
	b.Record(SupersededEvent(b, now))
	return nil
}

// Cancel applies a cancellation decision computed for this booking.
func (b *Booking) Cancel(actorID, reason string, decision cancellation.Decision, now time.Time) error {
	if err := b.transition(ActionCancel, now); err != nil {
		return err
	}
	b.Cancellation = &Cancellation{
		Actor:              decision.Actor,
		ActorID:            actorID,
		Reason:             strings.TrimSpace(reason),
		RefundPercent:      decision.RefundPercent,
		Refund:             decision.Refund,
		RetainedCommission: decision.RetainedCommission,
		RetainedByOwner:    decision.RetainedByOwner,
		OwnerPenalty:       decision.OwnerPenalty,
		At:                 now.UTC(),
	}
	if b.PaymentStatus == PaymentPaid {
		switch {
		case decision.Refund.Amount >= b.Price.Total.Amount:
			b.PaymentStatus = PaymentRefunded
		case decision.Refund.IsPositive():
			b.PaymentStatus = PaymentPartiallyRefunded
		}
	}
	b.Record(CanceledEvent(b, now))
	return nil
}

// Complete finishes a confirmed stay whose check-out has passed. It returns
// false without error when the booking is already completed.
func (b *Booking) Complete(now time.Time) (bool, error) {
	if b.Status == StatusCompleted {
		return false, nil
	}
	if !b.Status.Can(ActionComplete) {
		return false, &TransitionError{From: b.Status, Action: ActionComplete}
	}
	if !b.Range.Ended(now) {
		return false, fmt.Errorf("%w: stay ends on %s", ErrPolicyViolation, b.Range.CheckOut.Format(time.DateOnly))
	}
	if err := b.transition(ActionComplete, now); err != nil {
		return false, err
	}
	b.CompletedAt = now.UTC()
	b.Record(CompletedEvent(b, now))
	return true, nil
}

// CancellationInput prepares the engine input for a cancellation at the given instant.
func (b *Booking) CancellationInput(actor cancellation.Actor, at time.Time) cancellation.Input {
	return cancellation.Input{
		Tier:       b.CancellationTier,
		Actor:      actor,
		CheckIn:    b.Range.CheckIn,
		CancelAt:   at,
		Total:      b.Price.Total,
		Commission: b.Price.Commission,
		Paid:       b.PaymentStatus == PaymentPaid,
	}
}

// ActorFor resolves which side of the booking userID is on.
func (b *Booking) ActorFor(userID string) (cancellation.Actor, bool) {
	switch strings.TrimSpace(userID) {
	case "":
		return "", false
	case b.RenterID:
		return cancellation.ActorRenter, true
	case b.OwnerID:
		return cancellation.ActorOwner, true
	default:
		return "", false
	}
}

func (b *Booking) Involves(userID string) bool {
	_, ok := b.ActorFor(userID)
	return ok
}

func (b *Booking) uncharged(actor cancellation.Actor, actorID, reason string, now time.Time) *Cancellation {
	zero := money.Zero(b.Price.Total.Currency)
	return &Cancellation{
		Actor:              actor,
		ActorID:            actorID,
		Reason:             strings.TrimSpace(reason),
		Refund:             zero,
		RetainedCommission: zero,
		RetainedByOwner:    zero,
		OwnerPenalty:       zero,
		At:                 now.UTC(),
	}
}
