package dto

import (
	"time"

	domainavailability "rentme-reservations/internal/domain/availability"
	domainproperty "rentme-reservations/internal/domain/property"
)

type Conflict struct {
	Kind     string    `json:"kind"`
	ID       string    `json:"id"`
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
}

type Availability struct {
	PropertyID string     `json:"property_id"`
	CheckIn    time.Time  `json:"check_in"`
	CheckOut   time.Time  `json:"check_out"`
	Available  bool       `json:"available"`
	Conflicts  []Conflict `json:"conflicts,omitempty"`
}

func MapConflicts(items []domainavailability.Conflict) []Conflict {
	if len(items) == 0 {
		return nil
	}
	out := make([]Conflict, 0, len(items))
	for _, c := range items {
		out = append(out, Conflict{Kind: string(c.Kind), ID: c.ID, CheckIn: c.Range.CheckIn, CheckOut: c.Range.CheckOut})
	}
	return out
}

type Window struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	CheckIn    time.Time `json:"check_in"`
	CheckOut   time.Time `json:"check_out"`
	Reason     string    `json:"reason,omitempty"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

type WindowCollection struct {
	Items []Window `json:"items"`
}

func MapWindow(w *domainavailability.Window) Window {
	return Window{
		ID:         string(w.ID),
		PropertyID: string(w.PropertyID),
		CheckIn:    w.Range.CheckIn,
		CheckOut:   w.Range.CheckOut,
		Reason:     w.Reason,
		CreatedBy:  w.CreatedBy,
		CreatedAt:  w.CreatedAt,
	}
}

func MapWindows(items []*domainavailability.Window) WindowCollection {
	out := WindowCollection{Items: make([]Window, 0, len(items))}
	for _, w := range items {
		out.Items = append(out.Items, MapWindow(w))
	}
	return out
}

type Property struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	DailyRate        MoneyDTO  `json:"daily_rate"`
	PriceType        string    `json:"price_type"`
	MaxGuests        int       `json:"max_guests"`
	CancellationTier string    `json:"cancellation_tier"`
	UpdatedAt        time.Time `json:"updated_at"`
	Applied          bool      `json:"applied"`
}

func MapProperty(p *domainproperty.Property, applied bool) Property {
	return Property{
		ID:               string(p.ID),
		OwnerID:          p.OwnerID,
		DailyRate:        MapMoney(p.DailyRate),
		PriceType:        string(p.PriceType),
		MaxGuests:        p.MaxGuests,
		CancellationTier: string(p.CancellationTier),
		UpdatedAt:        p.UpdatedAt,
		Applied:          applied,
	}
}
