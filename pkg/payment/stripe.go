package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Stripe wraps the Stripe API client and webhook verification.
type Stripe struct {
	api           *client.API
	webhookSecret string
}

// NewStripe creates a Stripe client. An empty secret key leaves the API
// disabled; webhook verification only needs webhookSecret.
func NewStripe(secretKey, webhookSecret string) *Stripe {
	s := &Stripe{webhookSecret: webhookSecret}
	if secretKey != "" {
		s.api = &client.API{}
		s.api.Init(secretKey, nil)
	}
	return s
}

// WebhookConfigured reports whether webhooks can be verified.
func (s *Stripe) WebhookConfigured() bool { return s.webhookSecret != "" }

// APIConfigured reports whether API calls can be made.
func (s *Stripe) APIConfigured() bool { return s.api != nil }

// ConstructEvent verifies the Stripe-Signature header and decodes the event.
func (s *Stripe) ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error) {
	if s.webhookSecret == "" {
		return stripe.Event{}, ErrNotConfigured
	}
	return webhook.ConstructEventWithOptions(payload, sigHeader, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}

// CheckoutSession is the subset of a checkout.session object the app reads.
// Customer and Subscription are unexpanded ids.
type CheckoutSession struct {
	ID              string            `json:"id"`
	Customer        string            `json:"customer"`
	Subscription    string            `json:"subscription"`
	CustomerEmail   string            `json:"customer_email"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails *struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

// Email returns customer_details.email, falling back to customer_email.
func (c *CheckoutSession) Email() string {
	if c.CustomerDetails != nil && c.CustomerDetails.Email != "" {
		return c.CustomerDetails.Email
	}
	return c.CustomerEmail
}

// DecodeCheckoutSession reads a checkout session from a verified event.
func DecodeCheckoutSession(ev stripe.Event) (*CheckoutSession, error) {
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return nil, errors.New("event has no data object")
	}
	var cs CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("invalid checkout session: %w", err)
	}
	return &cs, nil
}

// SubscriptionPriceID returns the price id of the subscription's first item.
func (s *Stripe) SubscriptionPriceID(ctx context.Context, subscriptionID string) (string, error) {
	if s.api == nil {
		return "", ErrNotConfigured
	}
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := s.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return "", fmt.Errorf("retrieve subscription %s: %w", subscriptionID, err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		return "", fmt.Errorf("subscription %s has no price", subscriptionID)
	}
	return sub.Items.Data[0].Price.ID, nil
}

// CustomerUsable reports whether the customer exists and is not deleted.
// Lookup errors count as unusable.
func (s *Stripe) CustomerUsable(ctx context.Context, customerID string) bool {
	if s.api == nil || customerID == "" {
		return false
	}
	params := &stripe.CustomerParams{}
	params.Context = ctx
	cust, err := s.api.Customers.Get(customerID, params)
	return err == nil && cust != nil && !cust.Deleted
}

// CreateCustomer creates a customer tagged with the app user id.
func (s *Stripe) CreateCustomer(ctx context.Context, email, userID string) (string, error) {
	if s.api == nil {
		return "", ErrNotConfigured
	}
	params := &stripe.CustomerParams{Metadata: map[string]string{"user_id": userID}}
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.Context = ctx
	cust, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}
	return cust.ID, nil
}

// CreateCheckout creates a subscription-mode Checkout Session.
func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	if s.api == nil {
		return "", ErrNotConfigured
	}
	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(req.CustomerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.ProductID),
				Quantity: stripe.Int64(1),
			},
		},
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		Metadata:           map[string]string{"user_id": req.UserID},
	}
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// PortalURL creates a billing portal session.
func (s *Stripe) PortalURL(ctx context.Context, customerID, returnURL string) (string, error) {
	if s.api == nil {
		return "", ErrNotConfigured
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return sess.URL, nil
}

// ListCharges returns up to limit of the most recent charges.
func (s *Stripe) ListCharges(ctx context.Context, limit int64) ([]Charge, error) {
	if s.api == nil {
		return nil, ErrNotConfigured
	}
	params := &stripe.ChargeListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(limit)
	params.Single = true

	var out []Charge
	it := s.api.Charges.List(params)
	for it.Next() {
		ch := it.Charge()
		c := Charge{
			ID:         ch.ID,
			Amount:     ch.Amount,
			Currency:   string(ch.Currency),
			Created:    time.Unix(ch.Created, 0).UTC(),
			Refunded:   ch.Refunded,
			ReceiptURL: ch.ReceiptURL,
		}
		if ch.PaymentIntent != nil {
			c.PaymentIntentID = ch.PaymentIntent.ID
		}
		if ch.Customer != nil {
			c.Customer = ch.Customer.ID
		}
		if ch.BillingDetails != nil && ch.BillingDetails.Email != "" {
			c.Customer = ch.BillingDetails.Email
		}
		out = append(out, c)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list charges: %w", err)
	}
	return out, nil
}

// Refund refunds a payment intent in full and returns the refund id.
func (s *Stripe) Refund(ctx context.Context, paymentIntentID string) (string, error) {
	if s.api == nil {
		return "", ErrNotConfigured
	}
	params := &stripe.RefundParams{PaymentIntent: stripe.String(paymentIntentID)}
	params.Context = ctx
	r, err := s.api.Refunds.New(params)
	if err != nil {
		return "", fmt.Errorf("refund %s: %w", paymentIntentID, err)
	}
	return r.ID, nil
}
