package events

import "time"

type EventID string

type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(event DomainEvent) {
	if event == nil {
		return
	}
	r.pending = append(r.pending, event)
}

func (r *EventRecorder) PendingEvents() []DomainEvent {
	out := make([]DomainEvent, len(r.pending))
	copy(out, r.pending)
	return out
}

func (r *EventRecorder) ClearEvents() {
	r.pending = nil
}

// Recorder is implemented by aggregates embedding EventRecorder.
type Recorder interface {
	PendingEvents() []DomainEvent
	ClearEvents()
}

// Drain returns the pending events of every aggregate and clears them.
func Drain(aggregates ...Recorder) []DomainEvent {
	var out []DomainEvent
	for _, agg := range aggregates {
		if agg == nil {
			continue
		}
		out = append(out, agg.PendingEvents()...)
		agg.ClearEvents()
	}
	return out
}
