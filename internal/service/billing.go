package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rekur/backend/internal/domain"
	"github.com/rekur/backend/internal/metrics"
	"github.com/rekur/backend/internal/notify"
	"github.com/rekur/backend/pkg/payment"
	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"
)

// Lemon Squeezy events that carry a plan.
const (
	LemonSubscriptionCreated = "subscription_created"
	LemonSubscriptionUpdated = "subscription_updated"
	LemonOrderCreated        = "order_created"
)

// Sentinel causes carried inside the AppErrors returned by reconciliation.
var (
	ErrWebhookNotConfigured = errors.New("webhook secret not configured")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
)

// ProfileStore is the user persistence reconciliation needs.
type ProfileStore interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	CreateIfMissing(ctx context.Context, u *domain.User) (bool, error)
	ApplyPlanUpdate(ctx context.Context, userID string, upd domain.PlanUpdate) (bool, error)
}

// EventLedger remembers processed webhook events.
type EventLedger interface {
	Seen(ctx context.Context, provider domain.Provider, key string) (bool, error)
	// Record reports whether this call inserted the entry.
	Record(ctx context.Context, provider domain.Provider, key, eventType string) (bool, error)
}

// LemonWebhooks verifies Lemon Squeezy deliveries.
type LemonWebhooks interface {
	WebhookConfigured() bool
	VerifySignature(payload []byte, signature string) bool
}

// StripeWebhooks verifies Stripe deliveries and resolves subscription prices.
type StripeWebhooks interface {
	WebhookConfigured() bool
	ConstructEvent(payload []byte, sigHeader string) (stripe.Event, error)
	SubscriptionPriceID(ctx context.Context, subscriptionID string) (string, error)
}

// PlanTable maps provider product ids to plan tiers. Unknown ids map to free.
type PlanTable struct {
	pro      map[string]struct{}
	business map[string]struct{}
}

// NewPlanTable builds a table from allow-lists.
func NewPlanTable(proIDs, businessIDs []string) PlanTable {
	t := PlanTable{pro: map[string]struct{}{}, business: map[string]struct{}{}}
	for _, id := range proIDs {
		t.pro[strings.TrimSpace(id)] = struct{}{}
	}
	for _, id := range businessIDs {
		t.business[strings.TrimSpace(id)] = struct{}{}
	}
	return t
}

// Resolve returns the plan for id and whether id was known.
func (t PlanTable) Resolve(id string) (domain.PlanTier, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.PlanFree, false
	}
	if _, ok := t.pro[id]; ok {
		return domain.PlanPro, true
	}
	if _, ok := t.business[id]; ok {
		return domain.PlanBusiness, true
	}
	return domain.PlanFree, false
}

// BillingService turns verified provider events into plan changes.
type BillingService struct {
	users       ProfileStore
	ledger      EventLedger
	lemon       LemonWebhooks
	stripe      StripeWebhooks
	mailer      notify.EmailSender
	lemonPlans  PlanTable
	stripePlans PlanTable
	appURL      string
	now         func() time.Time
}

// NewBillingService creates a BillingService.
func NewBillingService(
	users ProfileStore,
	ledger EventLedger,
	lemon LemonWebhooks,
	stripeHooks StripeWebhooks,
	mailer notify.EmailSender,
	lemonPlans, stripePlans PlanTable,
	appURL string,
) *BillingService {
	return &BillingService{
		users:       users,
		ledger:      ledger,
		lemon:       lemon,
		stripe:      stripeHooks,
		mailer:      mailer,
		lemonPlans:  lemonPlans,
		stripePlans: stripePlans,
		appURL:      appURL,
		now:         time.Now,
	}
}

// EnsureProfile returns the user's profile, creating a free one when missing.
func (s *BillingService) EnsureProfile(ctx context.Context, userID, email string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if u != nil {
		return u, nil
	}

	now := s.now().UTC()
	fresh := &domain.User{
		ID:        userID,
		Email:     email,
		Plan:      domain.PlanFree,
		Role:      domain.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}
	created, err := s.users.CreateIfMissing(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	if created {
		log.Info().Str("user_id", userID).Msg("auto-healed missing profile")
		return fresh, nil
	}
	// Lost a creation race; read the winner.
	u, err = s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("profile %s vanished during creation", userID)
	}
	return u, nil
}

// ReconcileLemon verifies and applies a Lemon Squeezy webhook body.
func (s *BillingService) ReconcileLemon(ctx context.Context, payload []byte, signature string) (*domain.ReconcileResult, error) {
	if s.lemon == nil || !s.lemon.WebhookConfigured() {
		log.Error().Msg("lemon squeezy webhook secret is missing")
		return nil, &domain.AppError{Code: http.StatusInternalServerError, Message: "Server Config Error", Err: ErrWebhookNotConfigured}
	}
	if !s.lemon.VerifySignature(payload, signature) {
		return nil, &domain.AppError{Code: http.StatusUnauthorized, Message: "Invalid signature", Err: ErrInvalidSignature}
	}

	key := bodyDigest(payload)
	if dup, err := s.ledger.Seen(ctx, domain.ProviderLemon, key); err != nil {
		return nil, domain.ErrInternal("Webhook Error", err)
	} else if dup {
		return &domain.ReconcileResult{Duplicate: true}, nil
	}

	ev, err := payment.ParseLemonEvent(payload)
	if err != nil {
		return nil, &domain.AppError{Code: http.StatusBadRequest, Message: "Invalid payload", Err: err}
	}

	name := ev.Meta.EventName
	switch name {
	case LemonSubscriptionCreated, LemonSubscriptionUpdated, LemonOrderCreated:
	default:
		return &domain.ReconcileResult{EventType: name, Reason: "ignored event " + name}, nil
	}

	userID := ev.UserID()
	if userID == "" {
		log.Warn().Str("event", name).Msg("lemon webhook has no user_id in custom_data")
		return &domain.ReconcileResult{EventType: name, Reason: "No User ID"}, nil
	}

	variantID := ev.VariantID()
	plan, known := s.lemonPlans.Resolve(variantID)
	if !known {
		log.Warn().Str("variant_id", variantID).Str("user_id", userID).Msg("lemon variant matched no paid plan")
		metrics.UnmappedProductsTotal.WithLabelValues(string(domain.ProviderLemon)).Inc()
	}

	email := ev.Data.Attributes.UserEmail
	if _, err := s.EnsureProfile(ctx, userID, email); err != nil {
		return nil, domain.ErrInternal("Webhook Error", err)
	}

	upd := domain.PlanUpdate{
		Plan:           plan,
		Provider:       domain.ProviderLemon,
		CustomerID:     optional(string(ev.Data.Attributes.CustomerID)),
		SubscriptionID: optional(ev.SubscriptionID()),
		UpdatedAt:      s.now().UTC(),
	}
	if err := s.apply(ctx, userID, upd); err != nil {
		return nil, domain.ErrInternal("Webhook Error", err)
	}
	log.Info().Str("user_id", userID).Str("plan", string(plan)).Str("event", name).Msg("plan updated via lemon squeezy")

	first, err := s.record(ctx, domain.ProviderLemon, key, name)
	if err != nil {
		return nil, domain.ErrInternal("Webhook Error", err)
	}
	if first && (name == LemonSubscriptionCreated || name == LemonOrderCreated) && email != "" {
		s.sendMail(ctx, email, "Payment Successful - Welcome to ReKur!", notify.RenderWelcomeEmail, plan)
	}
	return &domain.ReconcileResult{EventType: name, Applied: true, UserID: userID, Plan: plan}, nil
}

// ReconcileStripe verifies and applies a Stripe webhook body.
func (s *BillingService) ReconcileStripe(ctx context.Context, payload []byte, sigHeader string) (*domain.ReconcileResult, error) {
	if s.stripe == nil || !s.stripe.WebhookConfigured() {
		log.Error().Msg("stripe webhook secret is missing")
		return nil, &domain.AppError{Code: http.StatusInternalServerError, Message: "Server Config Error", Err: ErrWebhookNotConfigured}
	}
	event, err := s.stripe.ConstructEvent(payload, sigHeader)
	if err != nil {
		log.Warn().Err(err).Msg("stripe webhook signature verification failed")
		return nil, &domain.AppError{
			Code:    http.StatusBadRequest,
			Message: "Webhook Error: " + err.Error(),
			Err:     errors.Join(ErrInvalidSignature, err),
		}
	}

	if dup, err := s.ledger.Seen(ctx, domain.ProviderStripe, event.ID); err != nil {
		return nil, domain.ErrInternal("Update failed", err)
	} else if dup {
		return &domain.ReconcileResult{EventType: string(event.Type), Duplicate: true}, nil
	}

	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return &domain.ReconcileResult{EventType: string(event.Type), Reason: "ignored event " + string(event.Type)}, nil
	}

	session, err := payment.DecodeCheckoutSession(event)
	if err != nil {
		return nil, domain.ErrInternal("Update failed", err)
	}
	userID := strings.TrimSpace(session.Metadata["user_id"])
	if userID == "" {
		log.Warn().Str("event_id", event.ID).Msg("stripe checkout session has no user_id metadata")
		return nil, domain.ErrBadRequest("Missing UID")
	}

	priceID, err := s.stripe.SubscriptionPriceID(ctx, session.Subscription)
	if err != nil {
		return nil, domain.ErrInternal("Update failed", err)
	}
	plan, known := s.stripePlans.Resolve(priceID)
	if !known {
		log.Warn().Str("price_id", priceID).Str("user_id", userID).Msg("stripe price matched no paid plan")
		metrics.UnmappedProductsTotal.WithLabelValues(string(domain.ProviderStripe)).Inc()
	}

	email := session.Email()
	if _, err := s.EnsureProfile(ctx, userID, email); err != nil {
		return nil, domain.ErrInternal("Update failed", err)
	}

	upd := domain.PlanUpdate{
		Plan:           plan,
		Provider:       domain.ProviderStripe,
		CustomerID:     optional(session.Customer),
		SubscriptionID: optional(session.Subscription),
		UpdatedAt:      s.now().UTC(),
	}
	if err := s.apply(ctx, userID, upd); err != nil {
		return nil, domain.ErrInternal("Update failed", err)
	}
	log.Info().Str("user_id", userID).Str("plan", string(plan)).Str("event_id", event.ID).Msg("plan updated via stripe")

	first, err := s.record(ctx, domain.ProviderStripe, event.ID, string(event.Type))
	if err != nil {
		return nil, domain.ErrInternal("Update failed", err)
	}
	if first && email != "" {
		s.sendMail(ctx, email, "Your ReKur subscription is active", notify.RenderConfirmationEmail, plan)
	}
	return &domain.ReconcileResult{EventType: string(event.Type), Applied: true, UserID: userID, Plan: plan}, nil
}

func (s *BillingService) apply(ctx context.Context, userID string, upd domain.PlanUpdate) error {
	found, err := s.users.ApplyPlanUpdate(ctx, userID, upd)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("profile %s not found", userID)
	}
	metrics.PlanChangesTotal.WithLabelValues(string(upd.Provider), string(upd.Plan)).Inc()
	return nil
}

// record marks an event processed and reports whether this delivery claimed
// it. Only the claiming delivery sends customer email.
func (s *BillingService) record(ctx context.Context, provider domain.Provider, key, eventType string) (bool, error) {
	first, err := s.ledger.Record(ctx, provider, key, eventType)
	if err != nil {
		log.Error().Err(err).Str("provider", string(provider)).Str("event", eventType).Msg("failed to record webhook event")
		return false, err
	}
	if !first {
		log.Info().Str("provider", string(provider)).Str("event", eventType).Msg("webhook event already recorded by a concurrent delivery")
	}
	return first, nil
}

func (s *BillingService) sendMail(ctx context.Context, to, subject string, render func(notify.PlanEmailData) (string, error), plan domain.PlanTier) {
	if s.mailer == nil {
		return
	}
	body, err := render(notify.PlanEmailData{Plan: strings.ToUpper(string(plan)), AppURL: s.appURL})
	if err != nil {
		log.Error().Err(err).Msg("failed to render billing email")
		return
	}
	if err := s.mailer.SendHTML(ctx, to, subject, body); err != nil {
		log.Warn().Err(err).Str("to", to).Msg("failed to send billing email")
	}
}

func bodyDigest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
