package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/example/ec-shop/internal/api"
	"github.com/example/ec-shop/internal/config"
	"github.com/example/ec-shop/internal/domain/cart"
	"github.com/example/ec-shop/internal/domain/catalog"
	"github.com/example/ec-shop/internal/domain/checkout"
	"github.com/example/ec-shop/internal/domain/review"
	"github.com/example/ec-shop/internal/infrastructure/kafka"
	"github.com/example/ec-shop/internal/infrastructure/memory"
	"github.com/example/ec-shop/internal/infrastructure/postgres"
	"github.com/example/ec-shop/internal/infrastructure/redis"
	"github.com/example/ec-shop/internal/infrastructure/store"
	"github.com/example/ec-shop/internal/projection"
)

// infrastructure holds the storage and messaging backends selected by
// configuration. Anything left unconfigured runs in process.
type infrastructure struct {
	products   catalog.ProductStore
	categories catalog.CategoryStore
	reviews    review.Store
	carts      cart.Store
	sessions   checkout.SessionStore
	events     store.EventStoreInterface
	readStore  store.ReadStoreInterface

	healthChecks []api.HealthCheck
	closers      []func()
}

func newInfrastructure(ctx context.Context, cfg *config.Config, log *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{}
	if err := infra.initCatalog(ctx, cfg, log); err != nil {
		infra.Close()
		return nil, err
	}
	if err := infra.initSessions(ctx, cfg, log); err != nil {
		infra.Close()
		return nil, err
	}
	if err := infra.initEvents(ctx, cfg, log); err != nil {
		infra.Close()
		return nil, err
	}
	return infra, nil
}

func (i *infrastructure) initCatalog(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		mem := memory.NewCatalogStore()
		i.products = mem
		i.categories = mem
		i.reviews = memory.NewReviewStore()
		log.Warn("DATABASE_URL not set, catalog and reviews are in memory")
		return nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("connect catalog database: %w", err)
	}
	i.closers = append(i.closers, pool.Close)
	if err := postgres.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate catalog schema: %w", err)
	}

	i.products = postgres.NewProductRepository(pool)
	i.categories = postgres.NewCategoryRepository(pool)
	i.reviews = postgres.NewReviewRepository(pool)
	i.healthChecks = append(i.healthChecks, api.HealthCheck{
		Name:  "postgres",
		Check: pingPool(pool),
	})
	return nil
}

func (i *infrastructure) initSessions(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if cfg.RedisAddr == "" {
		i.carts = memory.NewCartStore(cfg.CartTTL)
		i.sessions = memory.NewSessionStore()
		log.Warn("REDIS_ADDR not set, carts and checkout sessions are in memory")
		return nil
	}

	client, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	i.closers = append(i.closers, func() { _ = client.Close() })

	i.carts = redis.NewCartRepository(client, cfg.CartTTL)
	i.sessions = redis.NewSessionRepository(client)
	i.healthChecks = append(i.healthChecks, api.HealthCheck{
		Name:  "redis",
		Check: pingRedis(client),
	})
	return nil
}

// initEvents picks the event store and decides who keeps the order read model
// current: the projector binary via Kafka, or an in-process projector.
func (i *infrastructure) initEvents(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect event database: %w", err)
		}
		i.closers = append(i.closers, func() { _ = db.Close() })
		if err := store.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate event schema: %w", err)
		}
		i.readStore = store.NewPostgresReadStore(db)
	} else {
		i.readStore = store.NewReadStore()
	}

	var (
		publisher store.Publisher
		local     *projection.Projector
	)
	switch {
	case cfg.KafkaEnabled() && db != nil:
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		i.closers = append(i.closers, func() { _ = producer.Close() })
		publisher = producer
	case cfg.KafkaEnabled():
		// The projector binary cannot reach an in-memory read model, so
		// project locally as well as publishing.
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		i.closers = append(i.closers, func() { _ = producer.Close() })
		local = projection.NewProjector(i.readStore, log)
		project := local.Publisher()
		publisher = store.PublisherFunc(func(ctx context.Context, key string, event any) error {
			if err := project.Publish(ctx, key, event); err != nil {
				return err
			}
			return producer.Publish(ctx, key, event)
		})
	default:
		local = projection.NewProjector(i.readStore, log)
		publisher = local.Publisher()
	}

	if db != nil {
		i.events = store.NewPostgresEventStore(db, publisher, log)
	} else {
		i.events = store.NewEventStore(publisher, log)
	}
	if local != nil {
		local.WithSource(i.events)
	}
	return nil
}

// Close releases backends in reverse order of creation.
func (i *infrastructure) Close() {
	for idx := len(i.closers) - 1; idx >= 0; idx-- {
		i.closers[idx]()
	}
}

func pingPool(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}

func pingRedis(client *goredis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
