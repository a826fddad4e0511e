package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "rentme-reservations/internal/app/outbox"
	"rentme-reservations/internal/app/policies"
	"rentme-reservations/internal/app/uow"
	"rentme-reservations/internal/infra/storage/memory"
)

type recordingPublisher struct {
	mu   sync.Mutex
	sent []policies.Message
	fail int
}

func (p *recordingPublisher) Publish(_ context.Context, msg policies.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail > 0 {
		p.fail--
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *recordingPublisher) messages() []policies.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]policies.Message(nil), p.sent...)
}

func seed(t *testing.T, s *memory.Store, records ...appoutbox.EventRecord) {
	t.Helper()
	ctx := context.Background()
	u, err := s.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, u.Outbox().Add(ctx, rec))
	}
	require.NoError(t, u.Commit(ctx))
}

func TestDrainPublishesCloudEvents(t *testing.T) {
	store := memory.NewStore()
	seed(t, store,
		appoutbox.EventRecord{ID: "e1", Name: "booking.confirmed", Aggregate: "bk-1", Payload: []byte(`{"booking_id":"bk-1"}`), OccurredAt: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)},
		appoutbox.EventRecord{ID: "e2", Name: "availability.blocked", Aggregate: "win-1", Payload: []byte(`{}`), Headers: map[string]string{"source": "app://test"}},
	)
	pub := &recordingPublisher{}
	w := &Worker{Store: store.Outbox(), Publisher: pub, TopicPrefix: "dev."}

	sent, err := w.Drain(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Zero(t, store.Outbox().Pending())

	msgs := pub.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "dev.booking.events.v1", msgs[0].Topic)
	assert.Equal(t, "bk-1", msgs[0].Key)
	assert.Equal(t, "application/cloudevents+json", msgs[0].Headers["content-type"])
	assert.Equal(t, "dev.availability.events.v1", msgs[1].Topic)

	var evt map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Value, &evt))
	assert.Equal(t, "1.0", evt["specversion"])
	assert.Equal(t, "booking.confirmed.v1", evt["type"])
	assert.Equal(t, "e1", evt["id"])
	assert.Equal(t, map[string]any{"booking_id": "bk-1"}, evt["data"])

	require.NoError(t, json.Unmarshal(msgs[1].Value, &evt))
	assert.Equal(t, "app://test", evt["source"])
}

func TestFailedPublishIsRetriedAfterBackoff(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, appoutbox.EventRecord{ID: "e1", Name: "booking.cancelled", Payload: []byte(`{}`)})
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	pub := &recordingPublisher{fail: 1}
	w := &Worker{
		Store:     store.Outbox(),
		Publisher: pub,
		Backoff:   []time.Duration{time.Minute},
		Now:       func() time.Time { return now },
	}

	sent, err := w.Drain(context.Background(), "w1")
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Equal(t, 1, store.Outbox().Pending())

	sent, err = w.Drain(context.Background(), "w1")
	require.NoError(t, err)
	assert.Zero(t, sent, "not due before backoff elapses")

	now = now.Add(time.Minute)
	sent, err = w.Drain(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Zero(t, store.Outbox().Pending())
}

func TestMalformedPayloadIsMarkedFailed(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, appoutbox.EventRecord{ID: "e1", Name: "booking.requested", Payload: []byte(`not json`)})
	pub := &recordingPublisher{}
	w := &Worker{Store: store.Outbox(), Publisher: pub}

	sent, err := w.Drain(context.Background(), "w1")
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, pub.messages())
}

func TestRunDrainsOnWake(t *testing.T) {
	store := memory.NewStore()
	pub := &recordingPublisher{}
	w := &Worker{Store: store.Outbox(), Publisher: pub, Interval: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	seed(t, store, appoutbox.EventRecord{ID: "e1", Name: "booking.completed", Payload: []byte(`{}`)})
	w.Wake()

	require.Eventually(t, func() bool { return len(pub.messages()) == 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunRequiresDependencies(t *testing.T) {
	assert.ErrorIs(t, (&Worker{}).Run(context.Background()), ErrWorkerNotConfigured)
}
