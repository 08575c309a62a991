// Package metrics registers the domain-level Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders created, by source (checkout or direct)",
		},
		[]string{"source"},
	)

	CheckoutSessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_sessions_started_total",
			Help: "Checkout sessions created",
		},
	)

	StockDecrementFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stock_decrement_failures_total",
			Help: "Stock decrements that did not apply, by reason",
		},
		[]string{"reason"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_webhook_events_total",
			Help: "Payment webhook deliveries, by event type and outcome",
		},
		[]string{"type", "outcome"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Broker messages handled by a consumer group, by outcome",
		},
		[]string{"group", "outcome"},
	)
)
