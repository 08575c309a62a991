package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the runtime configuration shared by the api, projector and
// notifier binaries. Empty DatabaseURL, RedisAddr or KafkaBrokers switch the
// corresponding layer to its in-process implementation.
type Config struct {
	HTTPPort int    `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	JWTSecret string `env:"JWT_SECRET"`

	DatabaseURL string `env:"DATABASE_URL"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"ec-events"`

	// KafkaGroup overrides the consumer group of the projector and notifier.
	KafkaGroup string `env:"KAFKA_CONSUMER_GROUP"`

	CartTTL             time.Duration `env:"CART_TTL" envDefault:"168h"`
	CheckoutSessionTTL  time.Duration `env:"CHECKOUT_SESSION_TTL" envDefault:"30m"`
	CheckoutRedirectURL string        `env:"CHECKOUT_REDIRECT_URL" envDefault:"https://example.com/checkout/success"`
	WebhookSecret       string        `env:"WEBHOOK_SECRET"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint string `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`

	SMTPHost string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort string `env:"SMTP_PORT" envDefault:"1025"`
	SMTPFrom string `env:"SMTP_FROM" envDefault:"noreply@ec-shop.local"`
}

const minJWTSecretLength = 32

var ErrWeakJWTSecret = errors.New("JWT_SECRET must be at least 32 characters long")

// Load parses environment variables into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that only the API server needs.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < minJWTSecretLength {
		return ErrWeakJWTSecret
	}
	return nil
}

func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// ConsumerGroup returns KafkaGroup, or fallback when it is unset.
func (c *Config) ConsumerGroup(fallback string) string {
	if c.KafkaGroup != "" {
		return c.KafkaGroup
	}
	return fallback
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
