//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"rentme-reservations/internal/app/middleware"
	appoutbox "rentme-reservations/internal/app/outbox"
	"rentme-reservations/internal/app/policies"
	"rentme-reservations/internal/app/uow"
	domainavailability "rentme-reservations/internal/domain/availability"
	domainbooking "rentme-reservations/internal/domain/booking"
)

// setupPostgres starts a PostgreSQL container and returns a migrated GORM DB.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_reservations",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)
	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=test_reservations sslmode=disable", host, port.Port())

	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = Open(dsn)
		if err != nil {
			return false
		}
		return Ping(ctx, db) == nil
	}, 30*time.Second, time.Second, "PostgreSQL not ready for connections")
	require.NoError(t, Migrate(db))
	return db
}

func TestPostgresStorage(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	factory := Factory{DB: db}

	t.Run("bookings use optimistic versions", func(t *testing.T) {
		b := ownerCanceledBooking(t)
		b.Version = 0

		unit, err := factory.Begin(ctx, uow.TxOptions{})
		require.NoError(t, err)
		require.NoError(t, unit.Bookings().Save(ctx, b))
		require.NoError(t, unit.Outbox().Add(ctx, appoutbox.EventRecord{ID: "evt-1", Name: "booking.canceled", Payload: []byte(`{}`), Headers: map[string]string{"source": "test"}}))
		require.NoError(t, unit.Commit(ctx))
		assert.Equal(t, int64(1), b.Version)

		first, err := factory.Begin(ctx, uow.TxOptions{})
		require.NoError(t, err)
		loaded, err := first.Bookings().ByID(ctx, b.ID)
		require.NoError(t, err)
		loaded.Notes = "updated"
		require.NoError(t, first.Bookings().Save(ctx, loaded))
		require.NoError(t, first.Commit(ctx))

		second, err := factory.Begin(ctx, uow.TxOptions{})
		require.NoError(t, err)
		b.Notes = "stale"
		assert.ErrorIs(t, second.Bookings().Save(ctx, b), domainbooking.ErrConcurrentUpdate)
		require.NoError(t, second.Rollback(ctx))

		reader, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
		require.NoError(t, err)
		defer reader.Rollback(ctx)
		overlapping, err := reader.Bookings().ListOverlapping(ctx, b.PropertyID, b.Range)
		require.NoError(t, err)
		require.Len(t, overlapping, 1)
		assert.Equal(t, "updated", overlapping[0].Notes)
		assert.ErrorIs(t, reader.Bookings().Save(ctx, overlapping[0]), ErrReadOnlyUnit)
	})

	t.Run("windows are deleted by id", func(t *testing.T) {
		b := ownerCanceledBooking(t)
		unit, err := factory.Begin(ctx, uow.TxOptions{})
		require.NoError(t, err)
		w := &domainavailability.Window{ID: "win-1", PropertyID: b.PropertyID, Range: b.Range, CreatedBy: "owner-1", CreatedAt: time.Now().UTC()}
		require.NoError(t, unit.Windows().Save(ctx, w))
		require.NoError(t, unit.Windows().Delete(ctx, w.ID))
		assert.ErrorIs(t, unit.Windows().Delete(ctx, w.ID), domainavailability.ErrWindowNotFound)
		require.NoError(t, unit.Commit(ctx))
	})

	t.Run("outbox claims skip locked rows", func(t *testing.T) {
		relay := NewOutboxStore(db)
		now := time.Now().UTC()
		claimed, err := relay.Claim(ctx, "w1", now)
		require.NoError(t, err)
		require.NotNil(t, claimed)
		assert.Equal(t, "test", claimed.Headers["source"])

		again, err := relay.Claim(ctx, "w2", now)
		require.NoError(t, err)
		assert.Nil(t, again)

		require.NoError(t, relay.MarkFailed(ctx, claimed.ID, now.Add(time.Minute), "broker down"))
		retried, err := relay.Claim(ctx, "w2", now.Add(time.Minute))
		require.NoError(t, err)
		require.NotNil(t, retried)
		assert.Equal(t, 1, retried.Attempts)
		require.NoError(t, relay.MarkSent(ctx, retried.ID, now))
	})

	t.Run("idempotency inbox and locks", func(t *testing.T) {
		store := NewIdempotencyStore(db)
		now := time.Now().UTC()
		require.NoError(t, store.Save(ctx, middleware.IdempotencyRecord{Key: "k1", Command: "booking.cancel", Payload: []byte(`{}`), OccurredAt: now, ExpiresAt: now.Add(time.Minute)}))
		_, found, err := store.Get(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, found)
		purged, err := store.Purge(ctx, now.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, purged)

		inbox := NewInbox(db, "property-projection")
		seen, err := inbox.Seen(ctx, "evt-1")
		require.NoError(t, err)
		assert.False(t, seen)
		seen, err = inbox.Seen(ctx, "evt-1")
		require.NoError(t, err)
		assert.True(t, seen)

		locker := NewLocker(db, time.Minute, nil)
		var held atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := locker.Lock(ctx, "property:prop-1"); err == nil {
					held.Add(1)
				} else {
					assert.ErrorIs(t, err, policies.ErrLockUnavailable)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), held.Load())
	})
}
