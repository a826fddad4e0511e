package money

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCurrency  = errors.New("money: invalid currency code")
	ErrCurrencyMismatch = errors.New("money: currency mismatch")
	ErrInvalidRate      = errors.New("money: rate must be between 0 and 10000 basis points")
)

// Money keeps amounts in integer minor units to avoid floating point issues.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// New constructs a Money value validating minimal invariants.
func New(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	currency = strings.ToUpper(currency)
	return Money{Amount: amount, Currency: currency}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns an empty amount in the given currency.
func Zero(currency string) Money {
	return Money{Currency: strings.ToUpper(currency)}
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub subtracts other from the receiver.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Neg returns the negated amount preserving currency.
func (m Money) Neg() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// Multiply multiplies the amount by the provided factor.
func (m Money) Multiply(times int64) Money {
	return Money{Amount: m.Amount * times, Currency: m.Currency}
}

// ApplyRate returns m scaled by rate, rounding half away from zero.
func (m Money) ApplyRate(rate BasisPoints) Money {
	product := m.Amount * int64(rate)
	half := int64(basisPointsScale / 2)
	if product < 0 {
		return Money{Amount: -((-product + half) / basisPointsScale), Currency: m.Currency}
	}
	return Money{Amount: (product + half) / basisPointsScale, Currency: m.Currency}
}

// Min returns the smaller of two amounts; currencies are assumed equal.
func Min(a, b Money) Money {
	if b.Amount < a.Amount {
		return b
	}
	return a
}

// Max returns the larger of two amounts; currencies are assumed equal.
func Max(a, b Money) Money {
	if b.Amount > a.Amount {
		return b
	}
	return a
}

// IsZero returns true if the amount equals zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) IsPositive() bool {
	return m.Amount > 0
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Amount, m.Currency)
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}

const basisPointsScale = 10000

// BasisPoints expresses a rate in hundredths of a percent: 1500 == 15%.
type BasisPoints int64

// Percent converts a whole percentage to basis points.
func Percent(p int) BasisPoints {
	return BasisPoints(int64(p) * 100)
}

// RateFromFraction converts a fraction such as 0.15 to basis points.
func RateFromFraction(f float64) (BasisPoints, error) {
	bp := BasisPoints(f*basisPointsScale + 0.5)
	if err := bp.Validate(); err != nil {
		return 0, err
	}
	return bp, nil
}

func (b BasisPoints) Validate() error {
	if b < 0 || b > basisPointsScale {
		return ErrInvalidRate
	}
	return nil
}

// Fraction returns the rate as a float for display only.
func (b BasisPoints) Fraction() float64 {
	return float64(b) / basisPointsScale
}
