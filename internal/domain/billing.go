package domain

import "time"

// StripeCheckoutRequest starts a Stripe subscription checkout.
type StripeCheckoutRequest struct {
	PriceID string `json:"priceId" validate:"required"`
}

// LemonCheckoutRequest starts a Lemon Squeezy checkout.
type LemonCheckoutRequest struct {
	VariantID string `json:"variantId" validate:"required"`
	Email     string `json:"userEmail" validate:"omitempty,email"`
}

// CheckoutResponse returns the URL to redirect the user to.
type CheckoutResponse struct {
	URL string `json:"url"`
}

// Payment is a charge as shown in the admin panel.
type Payment struct {
	ID         string    `json:"id"` // payment intent id
	Customer   string    `json:"customer"`
	Amount     int64     `json:"amount"` // cents
	Currency   string    `json:"currency"`
	Created    time.Time `json:"created"`
	Refunded   bool      `json:"refunded"`
	ReceiptURL string    `json:"receipt_url"`
}

// RefundRequest is the admin refund input.
type RefundRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required"`
}

// AdminOverview is the admin panel data dump.
type AdminOverview struct {
	Users         []*UserResponse `json:"users"`
	Subscriptions []*Subscription `json:"subs"`
	Payments      []Payment       `json:"payments"`
}

// ReconcileResult describes the outcome of one webhook event.
type ReconcileResult struct {
	EventType string   `json:"-"`
	Applied   bool     `json:"applied"`
	Duplicate bool     `json:"duplicate,omitempty"`
	UserID    string   `json:"userId,omitempty"`
	Plan      PlanTier `json:"plan,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// AdminStats are the headline numbers of the admin dashboard.
type AdminStats struct {
	Users         int              `json:"users"`
	PlanCounts    map[PlanTier]int `json:"planCounts"`
	Subscriptions int              `json:"subscriptions"`
	LastRun       *RunStatus       `json:"lastRun"`
}
