package outbox

import (
	"context"
	"log/slog"

	"rentme-reservations/internal/app/policies"
)

// LogPublisher writes messages to the log. It stands in for a broker when
// none is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, msg policies.Message) error {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "event published", "topic", msg.Topic, "key", msg.Key, "type", msg.Headers["ce-type"], "bytes", len(msg.Value))
	return nil
}

var _ policies.Publisher = LogPublisher{}
