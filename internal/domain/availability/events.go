package availability

import (
	"time"

	"rentme-reservations/internal/domain/shared/daterange"
)

type DatesBlocked struct {
	WindowID   string              `json:"window_id"`
	PropertyID string              `json:"property_id"`
	Range      daterange.DateRange `json:"range"`
	Reason     string              `json:"reason,omitempty"`
	By         string              `json:"by"`
	At         time.Time           `json:"at"`
}

func (e DatesBlocked) EventName() string     { return "availability.dates_blocked" }
func (e DatesBlocked) AggregateID() string   { return e.PropertyID }
func (e DatesBlocked) OccurredAt() time.Time { return e.At }

type DatesReleased struct {
	WindowID   string              `json:"window_id"`
	PropertyID string              `json:"property_id"`
	Range      daterange.DateRange `json:"range"`
	By         string              `json:"by"`
	At         time.Time           `json:"at"`
}

func (e DatesReleased) EventName() string     { return "availability.dates_released" }
func (e DatesReleased) AggregateID() string   { return e.PropertyID }
func (e DatesReleased) OccurredAt() time.Time { return e.At }

func DatesBlockedEvent(w *Window, at time.Time) DatesBlocked {
	return DatesBlocked{
		WindowID:   string(w.ID),
		PropertyID: string(w.PropertyID),
		Range:      w.Range,
		Reason:     w.Reason,
		By:         w.CreatedBy,
		At:         at.UTC(),
	}
}

func DatesReleasedEvent(w *Window, by string, at time.Time) DatesReleased {
	return DatesReleased{
		WindowID:   string(w.ID),
		PropertyID: string(w.PropertyID),
		Range:      w.Range,
		By:         by,
		At:         at.UTC(),
	}
}
