package mongo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentme-reservations/internal/app/policies"
)

// Locker leases one document per key in property_locks. A lease outlives a
// crashed holder by at most TTL; the expires_at TTL index cleans leftovers.
type Locker struct {
	col    *mongo.Collection
	ttl    time.Duration
	owner  string
	logger *slog.Logger
}

func NewLocker(db *mongo.Database, ttl time.Duration, logger *slog.Logger) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Locker{col: db.Collection(colLocks), ttl: ttl, owner: uuid.NewString(), logger: logger}
}

// Lock fails fast with ErrLockUnavailable when another holder owns a live lease.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := l.owner + ":" + uuid.NewString()
	now := time.Now().UTC()
	filter := bson.M{"_id": key, "expires_at": bson.M{"$lte": now}}
	update := bson.M{"$set": bson.M{"holder": token, "acquired_at": now, "expires_at": now.Add(l.ttl)}}
	_, err := l.col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, policies.ErrLockUnavailable
		}
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if _, err := l.col.DeleteOne(ctx, bson.M{"_id": key, "holder": token}); err != nil && !errors.Is(err, context.Canceled) && l.logger != nil {
			l.logger.Warn("property lock release failed", "key", key, "error", err)
		}
	}, nil
}

var _ policies.PropertyLocker = (*Locker)(nil)
