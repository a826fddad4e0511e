package availability

import (
	"context"
	"sort"

	"rentme-reservations/internal/domain/property"
	"rentme-reservations/internal/domain/shared/daterange"
)

// ConflictKind tells what kind of item blocks a range.
type ConflictKind string

const (
	ConflictBooking ConflictKind = "BOOKING"
	ConflictWindow  ConflictKind = "WINDOW"
)

type Conflict struct {
	Kind  ConflictKind        `json:"kind"`
	ID    string              `json:"id"`
	Range daterange.DateRange `json:"range"`
}

// Reservation is a confirmed stay as seen by the resolver.
type Reservation struct {
	BookingID string
	Range     daterange.DateRange
}

// ReservationSource lists confirmed reservations of a property overlapping a range.
type ReservationSource interface {
	ConfirmedOverlapping(ctx context.Context, propertyID property.PropertyID, r daterange.DateRange) ([]Reservation, error)
}

// Resolver answers whether a range is free. Pending requests never block; only
// confirmed reservations and unavailability windows do.
type Resolver struct {
	Windows      WindowRepository
	Reservations ReservationSource
}

func NewResolver(windows WindowRepository, reservations ReservationSource) Resolver {
	return Resolver{Windows: windows, Reservations: reservations}
}

func (r Resolver) IsAvailable(ctx context.Context, propertyID property.PropertyID, dr daterange.DateRange, excludeBookingID string) (bool, error) {
	conflicts, err := r.Conflicts(ctx, propertyID, dr, excludeBookingID)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// Conflicts returns every confirmed reservation and window overlapping dr,
// ordered by start date.
func (r Resolver) Conflicts(ctx context.Context, propertyID property.PropertyID, dr daterange.DateRange, excludeBookingID string) ([]Conflict, error) {
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	var out []Conflict
	if r.Reservations != nil {
		reservations, err := r.Reservations.ConfirmedOverlapping(ctx, propertyID, dr)
		if err != nil {
			return nil, err
		}
		for _, res := range reservations {
			if res.BookingID == excludeBookingID || !res.Range.Overlaps(dr) {
				continue
			}
			out = append(out, Conflict{Kind: ConflictBooking, ID: res.BookingID, Range: res.Range})
		}
	}
	if r.Windows != nil {
		windows, err := r.Windows.ListOverlapping(ctx, propertyID, dr)
		if err != nil {
			return nil, err
		}
		for _, w := range windows {
			if !w.Range.Overlaps(dr) {
				continue
			}
			out = append(out, Conflict{Kind: ConflictWindow, ID: string(w.ID), Range: w.Range})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Range.CheckIn.Before(out[j].Range.CheckIn) })
	return out, nil
}
