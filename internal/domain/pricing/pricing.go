package pricing

import (
	"errors"

	"rentme-reservations/internal/domain/property"
	"rentme-reservations/internal/domain/shared/daterange"
	"rentme-reservations/internal/domain/shared/money"
)

var (
	ErrCurrencyUnset   = errors.New("pricing: currency must be defined")
	ErrRateNotPositive = errors.New("pricing: daily rate must be positive")
	ErrUnbalanced      = errors.New("pricing: commission and payout do not sum to total")
)

// PriceBreakdown is the quoted price of a stay and its platform/owner split.
type PriceBreakdown struct {
	Nights         int
	DailyRate      money.Money
	PriceType      property.PriceType
	Total          money.Money
	CommissionRate money.BasisPoints
	Commission     money.Money
	OwnerPayout    money.Money
}

func (p PriceBreakdown) Validate() error {
	if p.Total.Currency == "" {
		return ErrCurrencyUnset
	}
	sum, err := p.Commission.Add(p.OwnerPayout)
	if err != nil {
		return err
	}
	if sum.Amount != p.Total.Amount {
		return ErrUnbalanced
	}
	return nil
}

// Calculator applies the platform commission to daily-rate quotes.
type Calculator struct {
	CommissionRate money.BasisPoints
}

func NewCalculator(rate money.BasisPoints) (Calculator, error) {
	if err := rate.Validate(); err != nil {
		return Calculator{}, err
	}
	return Calculator{CommissionRate: rate}, nil
}

func (c Calculator) Quote(rate money.Money, priceType property.PriceType, dr daterange.DateRange) (PriceBreakdown, error) {
	if rate.Currency == "" {
		return PriceBreakdown{}, ErrCurrencyUnset
	}
	if rate.Amount <= 0 {
		return PriceBreakdown{}, ErrRateNotPositive
	}
	nights := dr.Nights()
	if nights < 1 {
		nights = 1
	}
	total := rate.Multiply(int64(nights))
	if priceType == property.PriceFlat {
		total = rate
	}
	commission, payout, err := Split(total, c.CommissionRate)
	if err != nil {
		return PriceBreakdown{}, err
	}
	return PriceBreakdown{
		Nights:         nights,
		DailyRate:      rate,
		PriceType:      priceType,
		Total:          total,
		CommissionRate: c.CommissionRate,
		Commission:     commission,
		OwnerPayout:    payout,
	}, nil
}

// QuoteFor prices a stay at the given property.
func (c Calculator) QuoteFor(p *property.Property, dr daterange.DateRange) (PriceBreakdown, error) {
	return c.Quote(p.DailyRate, p.PriceType, dr)
}

// Split rounds the commission and leaves the remainder to the owner so both parts sum to total.
func Split(total money.Money, rate money.BasisPoints) (commission money.Money, payout money.Money, err error) {
	if err := rate.Validate(); err != nil {
		return money.Money{}, money.Money{}, err
	}
	commission = total.ApplyRate(rate)
	payout, err = total.Sub(commission)
	if err != nil {
		return money.Money{}, money.Money{}, err
	}
	return commission, payout, nil
}
