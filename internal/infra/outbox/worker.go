package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	appoutbox "rentme-reservations/internal/app/outbox"
	"rentme-reservations/internal/app/policies"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

// Worker relays committed outbox records to the publisher as CloudEvents.
// Failed records are retried with backoff, so delivery is at least once.
type Worker struct {
	Store       appoutbox.RelayStore
	Publisher   policies.Publisher
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	// Batch bounds how many records one tick drains.
	Batch  int
	Now    func() time.Time
	Logger *slog.Logger

	wakeOnce sync.Once
	wake     chan struct{}
}

// Wake asks the worker to drain now instead of waiting for the next tick.
func (w *Worker) Wake() {
	select {
	case w.wakeCh() <- struct{}{}:
	default:
	}
}

func (w *Worker) wakeCh() chan struct{} {
	w.wakeOnce.Do(func() { w.wake = make(chan struct{}, 1) })
	return w.wake
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Publisher == nil {
		return ErrWorkerNotConfigured
	}
	id := w.workerID()
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-w.wakeCh():
		}
		if _, err := w.Drain(ctx, id); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if w.Logger != nil {
				w.Logger.Error("outbox drain failed", "worker_id", id, "error", err)
			}
		}
	}
}

// Drain publishes due records until none are left or the batch is exhausted.
// It returns how many were sent.
func (w *Worker) Drain(ctx context.Context, workerID string) (int, error) {
	sent := 0
	for i := 0; i < w.batch(); i++ {
		ok, published, err := w.processOnce(ctx, workerID)
		if err != nil {
			return sent, err
		}
		if !ok {
			return sent, nil
		}
		if published {
			sent++
		}
	}
	return sent, nil
}

func (w *Worker) processOnce(ctx context.Context, workerID string) (claimed bool, published bool, err error) {
	rec, err := w.Store.Claim(ctx, workerID, w.now())
	if err != nil || rec == nil {
		return false, false, err
	}
	msg, err := w.message(rec.EventRecord)
	if err == nil {
		err = w.Publisher.Publish(ctx, msg)
	}
	if err != nil {
		if w.Logger != nil {
			w.Logger.Warn("outbox publish failed", "event_id", rec.ID, "event", rec.Name, "attempts", rec.Attempts+1, "error", err)
		}
		return true, false, w.Store.MarkFailed(ctx, rec.ID, w.nextRetry(rec.Attempts), err.Error())
	}
	return true, true, w.Store.MarkSent(ctx, rec.ID, w.now())
}

func (w *Worker) message(rec appoutbox.EventRecord) (policies.Message, error) {
	payload, headers, err := w.formatPayload(rec)
	if err != nil {
		return policies.Message{}, err
	}
	return policies.Message{Topic: w.topicFor(rec), Key: rec.Aggregate, Value: payload, Headers: headers}, nil
}

func (w *Worker) formatPayload(rec appoutbox.EventRecord) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(rec.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              rec.ID,
		"type":            rec.Name + ".v1",
		"source":          w.source(rec),
		"subject":         rec.Aggregate,
		"time":            rec.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := rec.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"ce-type":      rec.Name + ".v1",
		"ce-id":        rec.ID,
	}
	for k, v := range rec.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

func (w *Worker) topicFor(rec appoutbox.EventRecord) string {
	topic := rec.Stream() + ".events.v1"
	if w.TopicPrefix != "" {
		topic = w.TopicPrefix + topic
	}
	return topic
}

func (w *Worker) workerID() string {
	if w.ID != "" {
		return w.ID
	}
	return "relay-" + uuid.NewString()
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) batch() int {
	if w.Batch <= 0 {
		return 100
	}
	return w.Batch
}

func (w *Worker) now() time.Time {
	if w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return w.now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return w.now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return w.now().Add(5 * time.Second)
}

func (w *Worker) source(rec appoutbox.EventRecord) string {
	if src := strings.TrimSpace(rec.Headers["source"]); src != "" {
		return src
	}
	if w.Source != "" {
		return w.Source
	}
	return "app://rentme-reservations"
}

var _ appoutbox.Waker = (*Worker)(nil)
