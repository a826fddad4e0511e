package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainbooking "rentme-reservations/internal/domain/booking"
	"rentme-reservations/internal/domain/cancellation"
	"rentme-reservations/internal/domain/pricing"
	domainproperty "rentme-reservations/internal/domain/property"
	"rentme-reservations/internal/domain/shared/daterange"
	"rentme-reservations/internal/domain/shared/money"
)

func ownerCanceledBooking(t *testing.T) *domainbooking.Booking {
	t.Helper()
	dr := daterange.Must(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC))
	price, err := pricing.Calculator{CommissionRate: 1500}.Quote(money.Must(100000, "RUB"), domainproperty.PriceDaily, dr)
	require.NoError(t, err)
	at := time.Date(2026, 4, 20, 8, 0, 0, 0, time.UTC)
	return &domainbooking.Booking{
		ID:               "bk-7",
		PropertyID:       "prop-1",
		RenterID:         "renter-1",
		OwnerID:          "owner-1",
		Range:            dr,
		Status:           domainbooking.StatusCanceled,
		PaymentStatus:    domainbooking.PaymentRefunded,
		Price:            price,
		TeamSize:         3,
		CancellationTier: cancellation.Strict,
		PaymentRef:       "booking-bk-7",
		CaptureID:        "cap_7",
		Cancellation: &domainbooking.Cancellation{
			Actor:              cancellation.ActorOwner,
			ActorID:            "owner-1",
			Reason:             "double booked elsewhere",
			RefundPercent:      100,
			Refund:             money.Must(200000, "RUB"),
			RetainedCommission: money.Zero("RUB"),
			RetainedByOwner:    money.Zero("RUB"),
			OwnerPenalty:       money.Must(20000, "RUB"),
			At:                 at,
		},
		ConfirmedAt: at.Add(-time.Hour),
		CreatedAt:   at.Add(-2 * time.Hour),
		UpdatedAt:   at,
		Version:     2,
	}
}

func TestBookingModelRoundTrip(t *testing.T) {
	original := ownerCanceledBooking(t)

	model, err := toBookingModel(original)
	require.NoError(t, err)
	assert.Nil(t, model.CompletedAt)
	require.NotNil(t, model.ConfirmedAt)

	restored, err := toDomainBooking(model)
	require.NoError(t, err)
	assert.Equal(t, original.Price, restored.Price)
	assert.Equal(t, original.Cancellation, restored.Cancellation)
	assert.Equal(t, original.Range, restored.Range)
	assert.True(t, restored.CompletedAt.IsZero())
	assert.Equal(t, original.ConfirmedAt, restored.ConfirmedAt)
}

func TestBookingModelWithoutCancellation(t *testing.T) {
	b := ownerCanceledBooking(t)
	b.Cancellation = nil

	model, err := toBookingModel(b)
	require.NoError(t, err)
	assert.Empty(t, model.Cancellation)

	restored, err := toDomainBooking(model)
	require.NoError(t, err)
	assert.Nil(t, restored.Cancellation)
}

func TestCorruptPriceIsReported(t *testing.T) {
	_, err := toDomainBooking(&BookingModel{ID: "bk-1", Price: []byte("{")})
	assert.ErrorContains(t, err, "price")
}
