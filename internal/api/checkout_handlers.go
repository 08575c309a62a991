package api

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/example/ec-shop/internal/apperror"
	"github.com/example/ec-shop/internal/domain/checkout"
)

// CheckoutHandlers serves session creation, the polling confirmation and the
// payment provider webhook.
type CheckoutHandlers struct {
	orchestrator *checkout.Orchestrator
	confirmer    *checkout.Confirmer
	webhook      *checkout.WebhookHandler
	logger       *slog.Logger
}

func NewCheckoutHandlers(o *checkout.Orchestrator, c *checkout.Confirmer, wh *checkout.WebhookHandler, logger *slog.Logger) *CheckoutHandlers {
	return &CheckoutHandlers{
		orchestrator: o,
		confirmer:    c,
		webhook:      wh,
		logger:       logger,
	}
}

// StartCheckout handles POST /checkout
func (h *CheckoutHandlers) StartCheckout(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	var req checkout.StartInput
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	result, err := h.orchestrator.StartCheckout(r.Context(), user.UserID, user.Email, req)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// ConfirmSession handles GET /checkout/session/{id}?success=bool
func (h *CheckoutHandlers) ConfirmSession(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	confirmed := false
	if v := r.URL.Query().Get("success"); v != "" {
		confirmed, err = strconv.ParseBool(v)
		if err != nil {
			respondError(w, r, h.logger, apperror.Validation("success must be true or false"))
			return
		}
	}

	result, err := h.confirmer.ConfirmSession(r.Context(), user.UserID, chi.URLParam(r, "id"), confirmed)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Webhook handles POST /checkout/webhook. The provider always gets 200;
// outcomes are only logged and counted.
func (h *CheckoutHandlers) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.WarnContext(r.Context(), "webhook body unreadable", slog.Any("error", err))
	} else {
		h.webhook.Handle(r.Context(), body, r.Header.Get(checkout.SignatureHeader))
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
