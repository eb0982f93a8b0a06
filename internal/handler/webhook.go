package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/rekur/backend/internal/domain"
	"github.com/rekur/backend/internal/metrics"
	"github.com/rekur/backend/internal/service"
	"github.com/rs/zerolog/log"
)

const maxWebhookBytes = 1 << 20

// WebhookHandler receives payment provider webhooks.
type WebhookHandler struct {
	billing *service.BillingService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(billing *service.BillingService) *WebhookHandler {
	return &WebhookHandler{billing: billing}
}

// Lemon handles POST /api/lemon/webhook. Responses are plain text.
func (h *WebhookHandler) Lemon(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		observeWebhook(domain.ProviderLemon, "", http.StatusBadRequest)
		text(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	res, err := h.billing.ReconcileLemon(r.Context(), body, r.Header.Get("X-Signature"))
	if err != nil {
		code, msg := errorParts(err)
		observeWebhook(domain.ProviderLemon, "", code)
		text(w, code, msg)
		return
	}

	observeWebhook(domain.ProviderLemon, res.EventType, http.StatusOK)
	switch {
	case res.Duplicate:
		text(w, http.StatusOK, "Duplicate webhook")
	case res.Reason == "No User ID":
		text(w, http.StatusOK, res.Reason)
	default:
		text(w, http.StatusOK, "Webhook received")
	}
}

// Stripe handles POST /api/stripe/webhook.
func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		observeWebhook(domain.ProviderStripe, "", http.StatusBadRequest)
		text(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	res, err := h.billing.ReconcileStripe(r.Context(), body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		code, msg := errorParts(err)
		observeWebhook(domain.ProviderStripe, "", code)
		text(w, code, msg)
		return
	}

	observeWebhook(domain.ProviderStripe, res.EventType, http.StatusOK)
	resp := map[string]bool{"received": true}
	if res.Duplicate {
		resp["duplicate"] = true
	}
	JSON(w, http.StatusOK, resp)
}

func errorParts(err error) (int, string) {
	if appErr, ok := domain.AsAppError(err); ok {
		if appErr.Code >= http.StatusInternalServerError {
			log.Error().Err(err).Int("status", appErr.Code).Msg("webhook processing failed")
		}
		return appErr.Code, appErr.Message
	}
	log.Error().Err(err).Msg("webhook processing failed")
	return http.StatusInternalServerError, "Webhook Error"
}

func observeWebhook(provider domain.Provider, eventType string, status int) {
	if eventType == "" {
		eventType = "unknown"
	}
	metrics.WebhookRequestsTotal.WithLabelValues(string(provider), eventType, strconv.Itoa(status)).Inc()
}

func text(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}
