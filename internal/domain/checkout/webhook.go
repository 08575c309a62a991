package checkout

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"

	"github.com/example/ec-shop/internal/metrics"
)

const (
	EventSessionCompleted = "checkout.session.completed"
	SignatureHeader       = "X-Webhook-Signature"
)

// Webhook outcomes, also used as the metrics label.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

type WebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		SessionID string `json:"sessionId"`
		UserID    string `json:"userId"`
	} `json:"data"`
}

// WebhookHandler is the asynchronous confirmation path. Deliveries are
// at-least-once; every completed event goes through the same idempotent
// ConfirmSession as the polling path.
type WebhookHandler struct {
	confirmer *Confirmer
	secret    []byte
	logger    *slog.Logger
}

// NewWebhookHandler verifies signatures only when secret is non-empty.
func NewWebhookHandler(confirmer *Confirmer, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		confirmer: confirmer,
		secret:    []byte(secret),
		logger:    logger.With(slog.String("component", "webhook")),
	}
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *WebhookHandler) verify(body []byte, signature string) bool {
	if len(h.secret) == 0 {
		return true
	}
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

// Handle never fails the delivery; it returns the outcome for logging and tests.
func (h *WebhookHandler) Handle(ctx context.Context, body []byte, signature string) string {
	var event WebhookEvent
	outcome := h.handle(ctx, body, signature, &event)
	metrics.WebhookEvents.WithLabelValues(typeLabel(event.Type), outcome).Inc()
	return outcome
}

// typeLabel keeps the metric's type label to a fixed set. The body is
// caller-controlled, so arbitrary types share one series.
func typeLabel(eventType string) string {
	if eventType == EventSessionCompleted {
		return eventType
	}
	return "other"
}

func (h *WebhookHandler) handle(ctx context.Context, body []byte, signature string, event *WebhookEvent) string {
	if !h.verify(body, signature) {
		h.logger.WarnContext(ctx, "webhook signature mismatch")
		return OutcomeRejected
	}
	if err := json.Unmarshal(body, event); err != nil {
		h.logger.WarnContext(ctx, "webhook payload unreadable", slog.Any("error", err))
		return OutcomeRejected
	}
	h.logger.InfoContext(ctx, "webhook received", slog.String("type", event.Type), slog.String("session_id", event.Data.SessionID))

	if event.Type != EventSessionCompleted {
		return OutcomeIgnored
	}
	if event.Data.SessionID == "" || event.Data.UserID == "" {
		h.logger.WarnContext(ctx, "webhook missing session or user id")
		return OutcomeRejected
	}

	result, err := h.confirmer.ConfirmSession(ctx, event.Data.UserID, event.Data.SessionID, true)
	if err != nil {
		h.logger.ErrorContext(ctx, "webhook confirmation failed",
			slog.String("session_id", event.Data.SessionID),
			slog.Any("error", err),
		)
		return OutcomeFailed
	}
	if result.AlreadyConfirmed {
		return OutcomeIgnored
	}
	return OutcomeProcessed
}
