package availability

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentme-reservations/internal/domain/property"
	"rentme-reservations/internal/domain/shared/daterange"
	"rentme-reservations/internal/domain/shared/events"
)

var (
	ErrWindowNotFound  = errors.New("availability: window not found")
	ErrCreatorRequired = errors.New("availability: window creator is required")
	ErrNotOwner        = errors.New("availability: property not owned by caller")
)

type WindowID string

// Window is an owner-declared span during which a property cannot be booked.
// Windows always block and may overlap each other.
type Window struct {
	ID         WindowID
	PropertyID property.PropertyID
	Range      daterange.DateRange
	Reason     string
	CreatedBy  string
	CreatedAt  time.Time
	events.EventRecorder
}

type WindowRepository interface {
	ByID(ctx context.Context, id WindowID) (*Window, error)
	ListByProperty(ctx context.Context, propertyID property.PropertyID) ([]*Window, error)
	ListOverlapping(ctx context.Context, propertyID property.PropertyID, r daterange.DateRange) ([]*Window, error)
	Save(ctx context.Context, w *Window) error
	Delete(ctx context.Context, id WindowID) error
}

func NewWindow(id WindowID, propertyID property.PropertyID, r daterange.DateRange, reason, createdBy string, now time.Time) (*Window, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(createdBy) == "" {
		return nil, ErrCreatorRequired
	}
	w := &Window{
		ID:         id,
		PropertyID: propertyID,
		Range:      r,
		Reason:     strings.TrimSpace(reason),
		CreatedBy:  createdBy,
		CreatedAt:  now.UTC(),
	}
	w.Record(DatesBlockedEvent(w, now))
	return w, nil
}

// Release records the removal of the window; the caller deletes it from storage.
func (w *Window) Release(by string, now time.Time) {
	w.Record(DatesReleasedEvent(w, by, now))
}
