package handler

import (
	"net/http"

	"github.com/rekur/backend/internal/domain"
	"github.com/rekur/backend/internal/service"
)

// PaymentHandler starts checkouts and opens the billing portal.
type PaymentHandler struct {
	svc *service.CheckoutService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(svc *service.CheckoutService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// StripeCheckout handles POST /api/billing/stripe/checkout.
func (h *PaymentHandler) StripeCheckout(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req domain.StripeCheckoutRequest
	if err := DecodeValid(r, &req); err != nil {
		Error(w, err)
		return
	}

	url, err := h.svc.StripeCheckout(r.Context(), uid, userEmail(r), req.PriceID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, domain.CheckoutResponse{URL: url})
}

// LemonCheckout handles POST /api/billing/lemon/checkout.
func (h *PaymentHandler) LemonCheckout(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req domain.LemonCheckoutRequest
	if err := DecodeValid(r, &req); err != nil {
		Error(w, err)
		return
	}
	email := req.Email
	if email == "" {
		email = userEmail(r)
	}

	url, err := h.svc.LemonCheckout(r.Context(), uid, email, req.VariantID)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, domain.CheckoutResponse{URL: url})
}

// Portal handles POST /api/billing/stripe/portal.
func (h *PaymentHandler) Portal(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	url, err := h.svc.Portal(r.Context(), uid)
	if err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusOK, domain.CheckoutResponse{URL: url})
}
