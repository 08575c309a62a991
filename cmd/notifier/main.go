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
	"github.com/example/ec-shop/internal/email"
	"github.com/example/ec-shop/internal/infrastructure/kafka"
	"github.com/example/ec-shop/internal/logger"
	"github.com/example/ec-shop/internal/notification"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run sends an order confirmation e-mail for every placed order seen on the
// event topic. It uses its own consumer group so it sees every event
// independently of the projector.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New("ec-shop-notifier", cfg.LogLevel)

	if !cfg.KafkaEnabled() {
		return errors.New("KAFKA_BROKERS is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	handler := notification.NewHandler(email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom), log)

	group := cfg.ConsumerGroup("email-notifier")
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, group, log)
	defer consumer.Close()

	log.Info("notifier started",
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", group),
		slog.String("smtp", cfg.SMTPHost+":"+cfg.SMTPPort),
	)
	if err := consumer.Consume(ctx, handler.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume: %w", err)
	}
	log.Info("notifier stopped")
	return nil
}
