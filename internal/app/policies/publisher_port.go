package policies

import "context"

// Message is an event ready to leave the service.
type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Publisher delivers outbox messages to the notification sink.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}
