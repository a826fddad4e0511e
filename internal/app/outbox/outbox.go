package outbox

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentme-reservations/internal/domain/shared/events"
)

// EventRecord is a serialized domain event waiting in the outbox.
type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

// Stream is the event family a record belongs to, e.g. "booking" for "booking.confirmed".
func (r EventRecord) Stream() string {
	if idx := strings.IndexByte(r.Name, '.'); idx > 0 {
		return r.Name[:idx]
	}
	return r.Name
}

// Outbox stores records in the same transaction as the state change producing them.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
}

// Claimed is a record leased to one relay worker until it is marked.
type Claimed struct {
	EventRecord
	Attempts int
}

// RelayStore is the publishing side of the outbox. Claim returns nil when
// nothing is due.
type RelayStore interface {
	Claim(ctx context.Context, workerID string, now time.Time) (*Claimed, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, next time.Time, reason string) error
}

// Waker is implemented by relays that can be nudged to publish right away.
type Waker interface {
	Wake()
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

type JSONEventEncoder struct {
	IDGenerator func() string
	Source      string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	headers := map[string]string{}
	if e.Source != "" {
		headers["source"] = e.Source
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt().UTC(),
		Aggregate:  ev.AggregateID(),
		Headers:    headers,
	}, nil
}

func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
