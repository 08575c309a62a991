package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/ec-shop/internal/logger"
	"github.com/example/ec-shop/internal/metrics"
)

const correlationHeader = "correlation_id"

// maxReadBackoff caps the pause between failed reads.
const maxReadBackoff = 5 * time.Second

// MessageHandler processes one message. Failures are logged and counted but
// the offset still advances, so handlers must tolerate redelivery and loss.
type MessageHandler func(ctx context.Context, key, value []byte) error

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer feeds one consumer group's messages to a handler, one at a time.
type Consumer struct {
	reader  messageReader
	group   string
	logger  *slog.Logger
	backoff time.Duration
}

func NewConsumer(brokers []string, topic, group string, logger *slog.Logger) *Consumer {
	return newConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  group,
		MinBytes: 1,
		MaxBytes: 10 << 20,
		MaxWait:  500 * time.Millisecond,
	}), group, logger)
}

func newConsumer(r messageReader, group string, l *slog.Logger) *Consumer {
	return &Consumer{
		reader:  r,
		group:   group,
		logger:  l.With(slog.String("component", "consumer"), slog.String("group", group)),
		backoff: 100 * time.Millisecond,
	}
}

// Consume runs until ctx is done, returning its error, or until the reader
// reports io.EOF after Close, returning nil.
func (c *Consumer) Consume(ctx context.Context, handle MessageHandler) error {
	wait := c.backoff
	for {
		msg, err := c.reader.ReadMessage(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, io.EOF):
			return nil
		case err != nil:
			c.logger.ErrorContext(ctx, "read failed", slog.Any("error", err), slog.Duration("retry_in", wait))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			wait = min(wait*2, maxReadBackoff)
			continue
		}
		wait = c.backoff
		c.dispatch(ctx, msg, handle)
	}
}

func (c *Consumer) dispatch(ctx context.Context, msg kafka.Message, handle MessageHandler) {
	if id := headerValue(msg.Headers, correlationHeader); id != "" {
		ctx = logger.WithCorrelationID(ctx, id)
	}
	if err := handle(ctx, msg.Key, msg.Value); err != nil {
		metrics.EventsConsumed.WithLabelValues(c.group, "error").Inc()
		logger.WithContext(ctx, c.logger).ErrorContext(ctx, "handler failed",
			slog.String("key", string(msg.Key)),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Any("error", err),
		)
		return
	}
	metrics.EventsConsumed.WithLabelValues(c.group, "ok").Inc()
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func correlationHeaders(ctx context.Context) []kafka.Header {
	id := logger.CorrelationIDFromContext(ctx)
	if id == "" {
		return nil
	}
	return []kafka.Header{{Key: correlationHeader, Value: []byte(id)}}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
