package policies

import (
	"context"

	domainpricing "rentme-reservations/internal/domain/pricing"
	domainproperty "rentme-reservations/internal/domain/property"
	domainrange "rentme-reservations/internal/domain/shared/daterange"
)

type PricingPort interface {
	Quote(ctx context.Context, p *domainproperty.Property, dr domainrange.DateRange) (domainpricing.PriceBreakdown, error)
}

// CommissionPricing quotes with a fixed platform commission.
type CommissionPricing struct {
	Calculator domainpricing.Calculator
}

func (c CommissionPricing) Quote(_ context.Context, p *domainproperty.Property, dr domainrange.DateRange) (domainpricing.PriceBreakdown, error) {
	return c.Calculator.QuoteFor(p, dr)
}
