package policies

import "context"

// Inbox remembers consumed message ids so redelivered messages are skipped.
// Seen records the id and reports whether it was already present; Forget
// removes it again when handling failed and the message should be retried.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}
