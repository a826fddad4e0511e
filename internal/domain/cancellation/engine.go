package cancellation

import (
	"errors"
	"time"

	"rentme-reservations/internal/domain/shared/money"
)

// OwnerPenalty is charged to an owner who cancels: max(FixedFee, total*Rate).
type OwnerPenalty struct {
	FixedFee int64
	Rate     money.BasisPoints
}

type Engine struct {
	Policies map[Tier]Policy
	Penalty  OwnerPenalty
}

func NewEngine(penalty OwnerPenalty) *Engine {
	return &Engine{Policies: DefaultPolicies(), Penalty: penalty}
}

type Input struct {
	Tier       Tier
	Actor      Actor
	CheckIn    time.Time
	CancelAt   time.Time
	Total      money.Money
	Commission money.Money
	// Paid is false when nothing has been captured yet; amounts are then zero.
	Paid bool
}

// Decision is the outcome of a cancellation. For paid bookings
// Refund + RetainedCommission + RetainedByOwner always equals the total.
type Decision struct {
	Tier               Tier
	Actor              Actor
	LeadTime           time.Duration
	RefundPercent      int
	Refund             money.Money
	CommissionRefunded bool
	RetainedCommission money.Money
	RetainedByOwner    money.Money
	OwnerPenalty       money.Money
	Paid               bool
}

// FullRefund reports whether the renter gets everything back.
func (d Decision) FullRefund() bool {
	return d.RefundPercent == 100
}

func (e *Engine) Decide(in Input) (Decision, error) {
	if in.Actor != ActorRenter && in.Actor != ActorOwner {
		return Decision{}, ErrUnknownActor
	}
	if in.Commission.Amount < 0 || in.Commission.Amount > in.Total.Amount {
		return Decision{}, errors.New("cancellation: commission must be within total")
	}
	zero := money.Zero(in.Total.Currency)
	decision := Decision{
		Tier:               in.Tier,
		Actor:              in.Actor,
		LeadTime:           in.CheckIn.Sub(in.CancelAt),
		Refund:             zero,
		RetainedCommission: zero,
		RetainedByOwner:    zero,
		OwnerPenalty:       zero,
		Paid:               in.Paid,
	}

	if in.Actor == ActorOwner {
		decision.RefundPercent = 100
		decision.CommissionRefunded = true
		if in.Paid {
			decision.Refund = in.Total
			decision.OwnerPenalty = e.penaltyFor(in.Total)
		}
		return decision, nil
	}

	policy, err := e.policy(in.Tier)
	if err != nil {
		return Decision{}, err
	}
	decision.RefundPercent = policy.RefundPercent(decision.LeadTime)
	decision.CommissionRefunded = decision.FullRefund()
	if !in.Paid {
		return decision, nil
	}

	if decision.FullRefund() {
		decision.Refund = in.Total
		return decision, nil
	}
	// The service fee stays with the platform; the refund comes out of the owner's share.
	ownerShare, err := in.Total.Sub(in.Commission)
	if err != nil {
		return Decision{}, err
	}
	refund := money.Min(in.Total.ApplyRate(money.Percent(decision.RefundPercent)), ownerShare)
	retainedByOwner, err := ownerShare.Sub(refund)
	if err != nil {
		return Decision{}, err
	}
	decision.Refund = refund
	decision.RetainedCommission = in.Commission
	decision.RetainedByOwner = retainedByOwner
	return decision, nil
}

func (e *Engine) policy(tier Tier) (Policy, error) {
	policies := e.Policies
	if policies == nil {
		policies = defaultPolicies
	}
	if tier == "" {
		tier = DefaultTier
	}
	policy, ok := policies[tier]
	if !ok {
		return Policy{}, ErrUnknownTier
	}
	return policy, nil
}

func (e *Engine) penaltyFor(total money.Money) money.Money {
	byRate := total.ApplyRate(e.Penalty.Rate)
	fixed := money.Money{Amount: e.Penalty.FixedFee, Currency: total.Currency}
	return money.Max(fixed, byRate)
}
