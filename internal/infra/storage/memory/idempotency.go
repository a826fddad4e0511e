package memory

import (
	"context"
	"sync"
	"time"

	"rentme-reservations/internal/app/middleware"
)

// IdempotencyStore keeps replayable results. Expiry is judged by the
// middleware; Purge drops records that expired before a given instant.
type IdempotencyStore struct {
	mu      sync.Mutex
	records map[string]middleware.IdempotencyRecord
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{records: make(map[string]middleware.IdempotencyRecord)}
}

func (s *IdempotencyStore) Get(_ context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok, nil
}

func (s *IdempotencyStore) Save(_ context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Key] = rec
	return nil
}

func (s *IdempotencyStore) Purge(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, rec := range s.records {
		if !rec.ExpiresAt.IsZero() && rec.ExpiresAt.Before(before) {
			delete(s.records, key)
			n++
		}
	}
	return n, nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
