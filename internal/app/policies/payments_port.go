package policies

import (
	"context"

	"rentme-reservations/internal/domain/shared/money"
)

// PaymentsPort moves renter money. Reference identifies the booking on the
// provider side. Attempt tells charges of one reference apart: repeating an
// attempt replays its capture, a new attempt is a new charge. Refunds name the
// capture they return money from.
type PaymentsPort interface {
	Capture(ctx context.Context, reference, attempt string, amount money.Money) (string, error)
	Refund(ctx context.Context, reference, captureID string, amount money.Money) error
}
