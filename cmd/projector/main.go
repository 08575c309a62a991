package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/ec-shop/internal/config"
	"github.com/example/ec-shop/internal/infrastructure/kafka"
	"github.com/example/ec-shop/internal/infrastructure/store"
	"github.com/example/ec-shop/internal/logger"
	"github.com/example/ec-shop/internal/projection"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run consumes order events from Kafka and keeps the Postgres order read
// model current.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New("ec-shop-projector", cfg.LogLevel)

	if !cfg.KafkaEnabled() {
		return errors.New("KAFKA_BROKERS is required")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	if err := store.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	projector := projection.NewProjector(store.NewPostgresReadStore(db), log).
		WithSource(store.NewPostgresEventStore(db, nil, log))

	group := cfg.ConsumerGroup("projector")
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, group, log)
	defer consumer.Close()

	log.Info("projector started",
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", group),
	)
	if err := consumer.Consume(ctx, projector.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume: %w", err)
	}
	log.Info("projector stopped")
	return nil
}
