package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rentme-reservations/internal/app/middleware"
	appoutbox "rentme-reservations/internal/app/outbox"
	"rentme-reservations/internal/app/policies"
	"rentme-reservations/internal/app/uow"
	"rentme-reservations/internal/infra/config"
	mongodb "rentme-reservations/internal/infra/db/mongo"
	"rentme-reservations/internal/infra/db/postgres"
	"rentme-reservations/internal/infra/obs"
	"rentme-reservations/internal/infra/storage/memory"
)

type idempotencyStore interface {
	middleware.IdempotencyStore
	Purge(ctx context.Context, before time.Time) (int, error)
}

// storage bundles everything a driver provides to the application.
type storage struct {
	UoW         uow.UoWFactory
	Relay       appoutbox.RelayStore
	Idempotency idempotencyStore
	Locker      policies.PropertyLocker
	Inbox       policies.Inbox
	Checks      []obs.Check
	Close       func(ctx context.Context) error
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMongo:
		return openMongo(ctx, cfg, logger)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, logger)
	default:
		store := memory.NewStore()
		return storage{
			UoW:         store,
			Relay:       store.Outbox(),
			Idempotency: memory.NewIdempotencyStore(),
			Locker:      memory.NewLocker(),
			Inbox:       memory.NewInbox(),
			Close:       func(context.Context) error { return nil },
		}, nil
	}
}

func openMongo(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return storage{}, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		return storage{}, fmt.Errorf("mongo ping: %w", err)
	}
	if err := client.EnsureIndexes(ctx); err != nil {
		return storage{}, fmt.Errorf("mongo indexes: %w", err)
	}
	logger.Info("mongo connected", "database", cfg.MongoDB)
	return storage{
		UoW:         mongodb.Factory{DB: client.DB},
		Relay:       mongodb.NewOutboxStore(client.DB),
		Idempotency: mongodb.NewIdempotencyStore(client.DB),
		Locker:      mongodb.NewLocker(client.DB, cfg.LockTTL, logger),
		Inbox:       mongodb.NewInbox(client.DB, cfg.KafkaGroupID),
		Checks:      []obs.Check{{Name: "mongo", Ping: client.Ping}},
		Close:       client.Close,
	}, nil
}

func openPostgres(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		return storage{}, fmt.Errorf("postgres open: %w", err)
	}
	if err := postgres.Ping(ctx, db); err != nil {
		return storage{}, fmt.Errorf("postgres ping: %w", err)
	}
	if err := postgres.Migrate(db); err != nil {
		return storage{}, fmt.Errorf("postgres migrate: %w", err)
	}
	logger.Info("postgres connected")
	return storage{
		UoW:         postgres.Factory{DB: db},
		Relay:       postgres.NewOutboxStore(db),
		Idempotency: postgres.NewIdempotencyStore(db),
		Locker:      postgres.NewLocker(db, cfg.LockTTL, logger),
		Inbox:       postgres.NewInbox(db, cfg.KafkaGroupID),
		Checks: []obs.Check{{Name: "postgres", Ping: func(ctx context.Context) error {
			return postgres.Ping(ctx, db)
		}}},
		Close: func(context.Context) error { return postgres.Close(db) },
	}, nil
}
