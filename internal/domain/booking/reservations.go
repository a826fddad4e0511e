package booking

import (
	"context"

	"rentme-reservations/internal/domain/availability"
	"rentme-reservations/internal/domain/property"
	"rentme-reservations/internal/domain/shared/daterange"
)

// Reservations exposes confirmed bookings to the availability resolver.
func Reservations(repo Repository) availability.ReservationSource {
	return reservationSource{repo: repo}
}

type reservationSource struct {
	repo Repository
}

func (s reservationSource) ConfirmedOverlapping(ctx context.Context, propertyID property.PropertyID, r daterange.DateRange) ([]availability.Reservation, error) {
	items, err := s.repo.ListOverlapping(ctx, propertyID, r, StatusConfirmed)
	if err != nil {
		return nil, err
	}
	out := make([]availability.Reservation, 0, len(items))
	for _, b := range items {
		out = append(out, availability.Reservation{BookingID: string(b.ID), Range: b.Range})
	}
	return out, nil
}
