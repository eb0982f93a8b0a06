package service

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rekur/backend/internal/domain"
	"github.com/rekur/backend/pkg/payment"
	"github.com/rs/zerolog/log"
)

// StripeBilling is the Stripe API surface used to start checkouts.
type StripeBilling interface {
	CustomerUsable(ctx context.Context, customerID string) bool
	CreateCustomer(ctx context.Context, email, userID string) (string, error)
	CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (string, error)
	PortalURL(ctx context.Context, customerID, returnURL string) (string, error)
}

// CustomerStore persists the Stripe customer id on a profile.
type CustomerStore interface {
	SetStripeCustomer(ctx context.Context, userID, customerID string) error
}

// CheckoutService creates hosted checkout and billing portal links.
type CheckoutService struct {
	billing   *BillingService
	customers CustomerStore
	stripe    StripeBilling
	lemon     payment.CheckoutGateway
	appURL    string
}

// NewCheckoutService creates a CheckoutService.
func NewCheckoutService(billing *BillingService, customers CustomerStore, stripeAPI StripeBilling, lemon payment.CheckoutGateway, appURL string) *CheckoutService {
	return &CheckoutService{
		billing:   billing,
		customers: customers,
		stripe:    stripeAPI,
		lemon:     lemon,
		appURL:    appURL,
	}
}

// StripeCheckout starts a subscription checkout for priceID.
func (s *CheckoutService) StripeCheckout(ctx context.Context, userID, email, priceID string) (string, error) {
	user, err := s.billing.EnsureProfile(ctx, userID, email)
	if err != nil {
		return "", domain.ErrInternal("failed to load profile", err)
	}
	if email == "" {
		email = user.Email
	}

	customerID, err := s.ensureCustomer(ctx, user, email)
	if err != nil {
		return "", checkoutError(err)
	}

	url, err := s.stripe.CreateCheckout(ctx, payment.CheckoutRequest{
		UserID:     userID,
		Email:      email,
		ProductID:  priceID,
		CustomerID: customerID,
		SuccessURL: s.appURL + "/dashboard?success=true",
		CancelURL:  s.appURL + "/pricing",
	})
	if err != nil {
		return "", checkoutError(err)
	}
	return url, nil
}

// ensureCustomer reuses the stored customer when Stripe still knows it.
func (s *CheckoutService) ensureCustomer(ctx context.Context, user *domain.User, email string) (string, error) {
	if user.StripeCustomerID != nil && s.stripe.CustomerUsable(ctx, *user.StripeCustomerID) {
		return *user.StripeCustomerID, nil
	}
	if user.StripeCustomerID != nil {
		log.Warn().Str("user_id", user.ID).Str("customer_id", *user.StripeCustomerID).Msg("stored stripe customer unusable, creating a new one")
	}

	id, err := s.stripe.CreateCustomer(ctx, email, user.ID)
	if err != nil {
		return "", err
	}
	if err := s.customers.SetStripeCustomer(ctx, user.ID, id); err != nil {
		return "", err
	}
	return id, nil
}

// LemonCheckout starts a Lemon Squeezy checkout for variantID.
func (s *CheckoutService) LemonCheckout(ctx context.Context, userID, email, variantID string) (string, error) {
	user, err := s.billing.EnsureProfile(ctx, userID, email)
	if err != nil {
		return "", domain.ErrInternal("failed to load profile", err)
	}
	if email == "" {
		email = user.Email
	}

	url, err := s.lemon.CreateCheckout(ctx, payment.CheckoutRequest{
		UserID:     userID,
		Email:      email,
		ProductID:  strings.TrimSpace(variantID),
		SuccessURL: s.appURL + "/dashboard?success=true",
	})
	if err != nil {
		return "", checkoutError(err)
	}
	return url, nil
}

// Portal returns a Stripe billing portal link for the caller.
func (s *CheckoutService) Portal(ctx context.Context, userID string) (string, error) {
	user, err := s.billing.users.FindByID(ctx, userID)
	if err != nil {
		return "", domain.ErrInternal("failed to load profile", err)
	}
	if user == nil || user.StripeCustomerID == nil {
		return "", domain.ErrBadRequest("no billing account")
	}

	url, err := s.stripe.PortalURL(ctx, *user.StripeCustomerID, s.appURL+"/account")
	if err != nil {
		return "", checkoutError(err)
	}
	return url, nil
}

func checkoutError(err error) error {
	if errors.Is(err, payment.ErrNotConfigured) {
		return &domain.AppError{Code: http.StatusServiceUnavailable, Message: "payment provider not configured", Err: err}
	}
	return domain.ErrInternal("checkout failed", err)
}
