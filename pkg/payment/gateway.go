package payment

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned when a provider has no credentials.
var ErrNotConfigured = errors.New("payment provider not configured")

// CheckoutRequest describes a hosted checkout for one subscription product.
type CheckoutRequest struct {
	UserID     string
	Email      string
	ProductID  string // Stripe price id or Lemon variant id
	CustomerID string // Stripe only
	SuccessURL string
	CancelURL  string
}

// CheckoutGateway creates hosted checkout links.
type CheckoutGateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error)
}

// WebhookVerifier authenticates a raw webhook body.
type WebhookVerifier interface {
	VerifySignature(payload []byte, signature string) bool
}

// Charge is a provider charge as listed for staff.
type Charge struct {
	ID              string
	PaymentIntentID string
	Customer        string
	Amount          int64
	Currency        string
	Created         time.Time
	Refunded        bool
	ReceiptURL      string
}
