package property

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentme-reservations/internal/domain/cancellation"
	"rentme-reservations/internal/domain/shared/money"
)

var (
	ErrNotFound         = errors.New("property: not found")
	ErrOwnerRequired    = errors.New("property: owner id is required")
	ErrDailyRate        = errors.New("property: daily rate must be positive")
	ErrMaxGuests        = errors.New("property: max guests must be non-negative")
	ErrUnknownPriceType = errors.New("property: unknown price type")
)

type PropertyID string

// PriceType selects how the daily rate turns into a booking total.
type PriceType string

const (
	PriceDaily PriceType = "DAILY"
	PriceFlat  PriceType = "FLAT"
)

func ParsePriceType(raw string) (PriceType, error) {
	switch PriceType(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", PriceDaily:
		return PriceDaily, nil
	case PriceFlat:
		return PriceFlat, nil
	default:
		return "", ErrUnknownPriceType
	}
}

// Property is the read-only projection of a listing owned by the listings service.
type Property struct {
	ID               PropertyID
	OwnerID          string
	DailyRate        money.Money
	PriceType        PriceType
	MaxGuests        int
	CancellationTier cancellation.Tier
	UpdatedAt        time.Time
	Version          int64
}

type Repository interface {
	ByID(ctx context.Context, id PropertyID) (*Property, error)
	Save(ctx context.Context, p *Property) error
}

type Params struct {
	ID               PropertyID
	OwnerID          string
	DailyRate        money.Money
	PriceType        string
	MaxGuests        int
	CancellationTier string
	UpdatedAt        time.Time
}

func New(params Params) (*Property, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("property: id is required")
	}
	if strings.TrimSpace(params.OwnerID) == "" {
		return nil, ErrOwnerRequired
	}
	if params.DailyRate.Amount <= 0 {
		return nil, ErrDailyRate
	}
	if params.DailyRate.Currency == "" {
		return nil, money.ErrInvalidCurrency
	}
	if params.MaxGuests < 0 {
		return nil, ErrMaxGuests
	}
	priceType, err := ParsePriceType(params.PriceType)
	if err != nil {
		return nil, err
	}
	tier, err := cancellation.ParseTier(params.CancellationTier)
	if err != nil {
		return nil, err
	}
	return &Property{
		ID:               params.ID,
		OwnerID:          strings.TrimSpace(params.OwnerID),
		DailyRate:        params.DailyRate,
		PriceType:        priceType,
		MaxGuests:        params.MaxGuests,
		CancellationTier: tier,
		UpdatedAt:        params.UpdatedAt.UTC(),
	}, nil
}

// AcceptsTeam reports whether a group of the given size fits; zero MaxGuests means unlimited.
func (p *Property) AcceptsTeam(size int) bool {
	if size <= 0 {
		return false
	}
	return p.MaxGuests == 0 || size <= p.MaxGuests
}

func (p *Property) OwnedBy(ownerID string) bool {
	return p.OwnerID != "" && p.OwnerID == strings.TrimSpace(ownerID)
}

// OlderThan reports whether next is at least as recent as the receiver.
func (p *Property) OlderThan(next *Property) bool {
	return !next.UpdatedAt.Before(p.UpdatedAt)
}
