package cancellation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrUnknownTier   = errors.New("cancellation: unknown policy tier")
	ErrUnknownActor  = errors.New("cancellation: unknown actor role")
	ErrInvalidPolicy = errors.New("cancellation: invalid policy rules")
)

// Tier names a cancellation policy chosen by the property owner.
type Tier string

const (
	Flexible Tier = "FLEXIBLE"
	Moderate Tier = "MODERATE"
	Strict   Tier = "STRICT"
)

// DefaultTier applies when a property does not declare one.
const DefaultTier = Moderate

func ParseTier(raw string) (Tier, error) {
	switch Tier(strings.ToUpper(strings.TrimSpace(raw))) {
	case "":
		return DefaultTier, nil
	case Flexible:
		return Flexible, nil
	case Moderate:
		return Moderate, nil
	case Strict:
		return Strict, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTier, raw)
	}
}

// Actor is the party initiating a cancellation.
type Actor string

const (
	ActorRenter Actor = "RENTER"
	ActorOwner  Actor = "OWNER"
)

func ParseActor(raw string) (Actor, error) {
	switch Actor(strings.ToUpper(strings.TrimSpace(raw))) {
	case ActorRenter:
		return ActorRenter, nil
	case ActorOwner:
		return ActorOwner, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownActor, raw)
	}
}

// Rule grants RefundPercent when the lead time is at least MinLeadTime.
type Rule struct {
	MinLeadTime   time.Duration
	RefundPercent int
}

// Policy holds rules ordered from the most generous threshold down.
type Policy struct {
	Tier  Tier
	Rules []Rule
}

func (p Policy) Validate() error {
	if len(p.Rules) == 0 {
		return fmt.Errorf("%w: tier %s has no rules", ErrInvalidPolicy, p.Tier)
	}
	for i, rule := range p.Rules {
		if rule.RefundPercent < 0 || rule.RefundPercent > 100 {
			return fmt.Errorf("%w: refund percent %d out of range", ErrInvalidPolicy, rule.RefundPercent)
		}
		if i == 0 {
			continue
		}
		prev := p.Rules[i-1]
		if rule.MinLeadTime >= prev.MinLeadTime || rule.RefundPercent > prev.RefundPercent {
			return fmt.Errorf("%w: tier %s rules must be ordered most generous first", ErrInvalidPolicy, p.Tier)
		}
	}
	return nil
}

// RefundPercent returns the percent of the first rule whose threshold the lead time reaches.
func (p Policy) RefundPercent(lead time.Duration) int {
	for _, rule := range p.Rules {
		if lead >= rule.MinLeadTime {
			return rule.RefundPercent
		}
	}
	return 0
}

const day = 24 * time.Hour

var defaultPolicies = map[Tier]Policy{
	Flexible: {Tier: Flexible, Rules: []Rule{
		{MinLeadTime: 48 * time.Hour, RefundPercent: 100},
		{MinLeadTime: 24 * time.Hour, RefundPercent: 50},
	}},
	Moderate: {Tier: Moderate, Rules: []Rule{
		{MinLeadTime: 5 * day, RefundPercent: 100},
		{MinLeadTime: 2 * day, RefundPercent: 50},
	}},
	Strict: {Tier: Strict, Rules: []Rule{
		{MinLeadTime: 14 * day, RefundPercent: 100},
		{MinLeadTime: 7 * day, RefundPercent: 50},
	}},
}

// DefaultPolicies returns a copy of the built-in tier table.
func DefaultPolicies() map[Tier]Policy {
	out := make(map[Tier]Policy, len(defaultPolicies))
	for tier, policy := range defaultPolicies {
		rules := append([]Rule(nil), policy.Rules...)
		sort.SliceStable(rules, func(i, j int) bool { return rules[i].MinLeadTime > rules[j].MinLeadTime })
		out[tier] = Policy{Tier: tier, Rules: rules}
	}
	return out
}
