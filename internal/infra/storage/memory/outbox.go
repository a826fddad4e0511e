package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	appoutbox "rentme-reservations/internal/app/outbox"
)

const claimLease = 30 * time.Second

type outboxState string

const (
	outboxNew     outboxState = "NEW"
	outboxClaimed outboxState = "CLAIMED"
	outboxSent    outboxState = "SENT"
	outboxFailed  outboxState = "FAILED"
)

type outboxEntry struct {
	record    appoutbox.EventRecord
	state     outboxState
	attempts  int
	nextAt    time.Time
	claimedBy string
	claimedAt time.Time
	lastError string
}

type outboxLog struct {
	mu      sync.Mutex
	entries []*outboxEntry
	index   map[string]*outboxEntry
}

func newOutboxLog() *outboxLog {
	return &outboxLog{index: make(map[string]*outboxEntry)}
}

func (l *outboxLog) append(records ...appoutbox.EventRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range records {
		entry := &outboxEntry{record: rec, state: outboxNew}
		l.entries = append(l.entries, entry)
		l.index[rec.ID] = entry
	}
}

// OutboxStore lets a relay worker drain records committed through memory units.
type OutboxStore struct {
	log *outboxLog
}

func (s *OutboxStore) Claim(_ context.Context, workerID string, now time.Time) (*appoutbox.Claimed, error) {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	for _, entry := range s.log.entries {
		due := false
		switch entry.state {
		case outboxNew:
			due = true
		case outboxFailed:
			due = !entry.nextAt.After(now)
		case outboxClaimed:
			due = now.Sub(entry.claimedAt) >= claimLease
		}
		if !due {
			continue
		}
		entry.state = outboxClaimed
		entry.claimedBy = workerID
		entry.claimedAt = now
		return &appoutbox.Claimed{EventRecord: entry.record, Attempts: entry.attempts}, nil
	}
	return nil, nil
}

func (s *OutboxStore) MarkSent(_ context.Context, id string, _ time.Time) error {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	entry, ok := s.log.index[id]
	if !ok {
		return fmt.Errorf("memory: outbox record %s not found", id)
	}
	entry.state = outboxSent
	return nil
}

func (s *OutboxStore) MarkFailed(_ context.Context, id string, next time.Time, reason string) error {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	entry, ok := s.log.index[id]
	if !ok {
		return fmt.Errorf("memory: outbox record %s not found", id)
	}
	entry.state = outboxFailed
	entry.attempts++
	entry.nextAt = next
	entry.lastError = reason
	return nil
}

// Records returns every committed record in commit order.
func (s *OutboxStore) Records() []appoutbox.EventRecord {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(s.log.entries))
	for _, entry := range s.log.entries {
		out = append(out, entry.record)
	}
	return out
}

// Pending counts records not yet published.
func (s *OutboxStore) Pending() int {
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	n := 0
	for _, entry := range s.log.entries {
		if entry.state != outboxSent {
			n++
		}
	}
	return n
}

var _ appoutbox.RelayStore = (*OutboxStore)(nil)
