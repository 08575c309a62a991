package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/ec-shop/internal/api"
	"github.com/example/ec-shop/internal/auth"
	"github.com/example/ec-shop/internal/config"
	"github.com/example/ec-shop/internal/domain/cart"
	"github.com/example/ec-shop/internal/domain/catalog"
	"github.com/example/ec-shop/internal/domain/checkout"
	"github.com/example/ec-shop/internal/domain/order"
	"github.com/example/ec-shop/internal/domain/review"
	"github.com/example/ec-shop/internal/logger"
	"github.com/example/ec-shop/internal/query"
	"github.com/example/ec-shop/internal/tracing"
)

const serviceName = "ec-shop-api"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(serviceName, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		Enabled:     cfg.OTelEnabled,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error("tracing shutdown failed", slog.Any("error", err))
		}
	}()

	infra, err := newInfrastructure(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	catalogSvc := catalog.NewService(infra.products, infra.categories, log)
	carts := cart.NewEngine(infra.carts, infra.products, log)
	orders := order.NewService(infra.events, infra.products, log)
	confirmer := checkout.NewConfirmer(infra.sessions, orders, infra.products, carts, log)

	router := api.NewRouter(api.Deps{
		JWT:          auth.NewJWTService(cfg.JWTSecret, time.Hour),
		Cart:         carts,
		Catalog:      catalogSvc,
		Reviews:      review.NewService(infra.reviews, catalogSvc, log),
		Orders:       orders,
		OrderQueries: query.NewHandler(infra.readStore),
		Checkout: checkout.NewOrchestrator(carts, infra.products, infra.sessions, checkout.Options{
			SessionTTL:  cfg.CheckoutSessionTTL,
			RedirectURL: cfg.CheckoutRedirectURL,
		}, log),
		Confirmer:      confirmer,
		Webhook:        checkout.NewWebhookHandler(confirmer, cfg.WebhookSecret, log),
		HealthChecks:   infra.healthChecks,
		ServiceName:    serviceName,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, log)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server",
			slog.String("addr", srv.Addr),
			slog.Bool("postgres", cfg.DatabaseURL != ""),
			slog.Bool("redis", cfg.RedisAddr != ""),
			slog.Bool("kafka", cfg.KafkaEnabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", slog.Any("error", err))
	}
	log.Info("api stopped")
	return nil
}
