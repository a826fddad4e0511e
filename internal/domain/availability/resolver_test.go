package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentme-reservations/internal/domain/property"
	"rentme-reservations/internal/domain/shared/daterange"
)

type windowsStub struct {
	items []*Window
}

func (s *windowsStub) ByID(_ context.Context, id WindowID) (*Window, error) {
	for _, w := range s.items {
		if w.ID == id {
			return w, nil
		}
	}
	return nil, ErrWindowNotFound
}

func (s *windowsStub) ListByProperty(_ context.Context, propertyID property.PropertyID) ([]*Window, error) {
	var out []*Window
	for _, w := range s.items {
		if w.PropertyID == propertyID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *windowsStub) ListOverlapping(ctx context.Context, propertyID property.PropertyID, r daterange.DateRange) ([]*Window, error) {
	all, _ := s.ListByProperty(ctx, propertyID)
	var out []*Window
	for _, w := range all {
		if w.Range.Overlaps(r) {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *windowsStub) Save(_ context.Context, w *Window) error {
	s.items = append(s.items, w)
	return nil
}

func (s *windowsStub) Delete(context.Context, WindowID) error { return nil }

type reservationsStub struct {
	items []Reservation
	err   error
}

func (s reservationsStub) ConfirmedOverlapping(_ context.Context, _ property.PropertyID, r daterange.DateRange) ([]Reservation, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []Reservation
	for _, res := range s.items {
		if res.Range.Overlaps(r) {
			out = append(out, res)
		}
	}
	return out, nil
}

func jan(from, to int) daterange.DateRange {
	return daterange.Must(
		time.Date(2027, 1, from, 0, 0, 0, 0, time.UTC),
		time.Date(2027, 1, to, 0, 0, 0, 0, time.UTC),
	)
}

func TestConfirmedReservationBlocksOverlap(t *testing.T) {
	resolver := NewResolver(&windowsStub{}, reservationsStub{items: []Reservation{{BookingID: "b1", Range: jan(5, 7)}}})
	ctx := context.Background()

	ok, err := resolver.IsAvailable(ctx, "p1", jan(6, 8), "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = resolver.IsAvailable(ctx, "p1", jan(7, 9), "")
	require.NoError(t, err)
	assert.True(t, ok, "adjacent ranges never conflict")

	ok, err = resolver.IsAvailable(ctx, "p1", jan(6, 8), "b1")
	require.NoError(t, err)
	assert.True(t, ok, "excluded booking is ignored")
}

func TestWindowsAlwaysBlock(t *testing.T) {
	now := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	w, err := NewWindow("w1", "p1", jan(10, 12), "repairs", "owner-1", now)
	require.NoError(t, err)
	resolver := NewResolver(&windowsStub{items: []*Window{w}}, reservationsStub{})

	conflicts, err := resolver.Conflicts(context.Background(), "p1", jan(11, 15), "w1")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictWindow, conflicts[0].Kind)
	assert.Equal(t, "w1", conflicts[0].ID)

	ok, err := resolver.IsAvailable(context.Background(), "p2", jan(11, 15), "")
	require.NoError(t, err)
	assert.True(t, ok, "windows of other properties are irrelevant")
}

func TestConflictsAreOrderedByStart(t *testing.T) {
	now := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	w, err := NewWindow("w1", "p1", jan(3, 5), "", "owner-1", now)
	require.NoError(t, err)
	resolver := NewResolver(&windowsStub{items: []*Window{w}}, reservationsStub{items: []Reservation{{BookingID: "b2", Range: jan(8, 10)}, {BookingID: "b1", Range: jan(1, 4)}}})

	conflicts, err := resolver.Conflicts(context.Background(), "p1", jan(1, 20), "")
	require.NoError(t, err)
	require.Len(t, conflicts, 3)
	assert.Equal(t, []string{"b1", "w1", "b2"}, []string{conflicts[0].ID, conflicts[1].ID, conflicts[2].ID})
}

func TestResolverPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	resolver := NewResolver(&windowsStub{}, reservationsStub{err: boom})

	_, err := resolver.IsAvailable(context.Background(), "p1", jan(1, 2), "")
	assert.ErrorIs(t, err, boom)

	_, err = resolver.Conflicts(context.Background(), "p1", daterange.DateRange{}, "")
	assert.ErrorIs(t, err, daterange.ErrInvalidRange)
}

func TestNewWindowRecordsEvent(t *testing.T) {
	now := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	w, err := NewWindow("w1", "p1", jan(3, 5), " renovation ", "owner-1", now)
	require.NoError(t, err)
	assert.Equal(t, "renovation", w.Reason)

	w.Release("owner-1", now)
	evs := w.PendingEvents()
	require.Len(t, evs, 2)
	assert.Equal(t, "availability.dates_blocked", evs[0].EventName())
	assert.Equal(t, "availability.dates_released", evs[1].EventName())

	_, err = NewWindow("w2", "p1", jan(3, 5), "", "", now)
	assert.ErrorIs(t, err, ErrCreatorRequired)
}
