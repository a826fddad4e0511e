package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"rentme-reservations/internal/app/policies"
	"rentme-reservations/internal/app/service"
	"rentme-reservations/internal/domain/cancellation"
	"rentme-reservations/internal/domain/pricing"
	"rentme-reservations/internal/infra/broker/kafka"
	"rentme-reservations/internal/infra/config"
	ginserver "rentme-reservations/internal/infra/http/gin"
	"rentme-reservations/internal/infra/obs"
	"rentme-reservations/internal/infra/outbox"
	"rentme-reservations/internal/infra/payments"
	"rentme-reservations/internal/infra/scheduler"
	"rentme-reservations/internal/infra/storage/memory"
	"rentme-reservations/internal/infra/validation"
)

const purgeSchedule = "@every 1h"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("dev", "info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("reservations stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("reservations stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Error("storage close failed", "error", err)
		}
	}()

	calc, err := pricing.NewCalculator(cfg.CommissionRate)
	if err != nil {
		return err
	}
	publisher, closePublisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	worker := &outbox.Worker{
		Store:       store.Relay,
		Publisher:   publisher,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Source:      cfg.EventSource,
		Backoff:     cfg.RetryBackoff,
		Logger:      logger,
	}

	app, err := service.New(service.Deps{
		UoW:         store.UoW,
		Locker:      store.Locker,
		Idempotency: store.Idempotency,
		Payments:    newPayments(cfg, logger),
		Pricing:     policies.CommissionPricing{Calculator: calc},
		Engine:      cancellation.NewEngine(cancellation.OwnerPenalty{FixedFee: cfg.OwnerPenaltyFixed, Rate: cfg.OwnerPenaltyRate}),
		Validator:   validation.New(),
		Waker:       worker,
		Logger:      logger,
		IdemTTL:     cfg.IdempotencyTTL,
		LockBackoff: cfg.LockBackoff,
		TxBackoff:   cfg.TxRetryBackoff,
		NewID:       uuid.NewString,
	})
	if err != nil {
		return err
	}

	if err := loadPropertyFixtures(ctx, app.Commands, cfg.PropertyFixtures, cfg.Currency, logger); err != nil {
		logger.Warn("property fixtures load failed", "error", err, "path", cfg.PropertyFixtures)
	}

	cron := scheduler.New(logger)
	if cfg.SweepEnabled {
		if err := cron.Add("complete-bookings", cfg.SweepSchedule, scheduler.Sweep(app.Sweeper, nil)); err != nil {
			return err
		}
	}
	if err := cron.Add("purge-idempotency", purgeSchedule, scheduler.Purge(store.Idempotency, nil, logger)); err != nil {
		return err
	}

	var wg sync.WaitGroup
	background := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("background task failed", "task", name, "error", err)
			}
		}()
	}
	background("outbox", worker.Run)
	background("scheduler", cron.Run)
	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, &kafka.PropertyEventHandler{
			Commands: app.Commands,
			Inbox:    store.Inbox,
			Currency: cfg.Currency,
			Logger:   logger,
		}, logger)
		if err != nil {
			return err
		}
		defer consumer.Close()
		background("property-consumer", func(ctx context.Context) error {
			return consumer.Run(ctx, []string{cfg.PropertyTopic})
		})
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger, Caller: ginserver.CallerID}, obs.HealthHandlers{Checks: store.Checks}, ginserver.Handlers{
		Booking:      ginserver.BookingHandler{Commands: app.Commands, Queries: app.Queries, Logger: logger},
		Availability: ginserver.AvailabilityHandler{Commands: app.Commands, Queries: app.Queries, Logger: logger},
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageDriver)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	wg.Wait()
	return nil
}

func newPublisher(cfg config.Config, logger *slog.Logger) (policies.Publisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("no kafka brokers configured, events are only logged")
		return outbox.LogPublisher{Logger: logger}, func() {}, nil
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		return nil, nil, err
	}
	return producer, func() {
		if err := producer.Close(); err != nil {
			logger.Error("kafka producer close failed", "error", err)
		}
	}, nil
}

func newPayments(cfg config.Config, logger *slog.Logger) policies.PaymentsPort {
	if cfg.PaymentsURL == "" {
		logger.Warn("no payments gateway configured, using in-memory payments")
		return memory.NewPaymentsGateway()
	}
	return payments.NewGateway(cfg.PaymentsURL, cfg.PaymentsTimeout)
}
