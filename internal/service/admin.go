package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rekur/backend/internal/domain"
	"github.com/rekur/backend/internal/metrics"
	"github.com/rekur/backend/pkg/payment"
	"github.com/rs/zerolog/log"
)

const adminChargeLimit = 100

// AdminUserStore is the profile access staff operations need.
type AdminUserStore interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	ListAll(ctx context.Context) ([]*domain.User, error)
	Count(ctx context.Context) (int, error)
	CountByPlan(ctx context.Context) (map[domain.PlanTier]int, error)
	SetPlan(ctx context.Context, userID string, plan domain.PlanTier) (bool, error)
	SetDisabled(ctx context.Context, userID string, disabled bool) (bool, error)
	ResetPlans(ctx context.Context, at time.Time) (int64, error)
}

// AdminSubscriptionStore lists tracked subscriptions for staff.
type AdminSubscriptionStore interface {
	ListAll(ctx context.Context) ([]*domain.Subscription, error)
	Count(ctx context.Context) (int, error)
}

// ChargeSource lists and refunds provider charges.
type ChargeSource interface {
	ListCharges(ctx context.Context, limit int64) ([]payment.Charge, error)
	Refund(ctx context.Context, paymentIntentID string) (string, error)
}

// AdminService implements the staff panel operations.
type AdminService struct {
	users     AdminUserStore
	subs      AdminSubscriptionStore
	charges   ChargeSource
	reminders *ReminderService
	now       func() time.Time
}

// NewAdminService creates an AdminService. reminders may be nil.
func NewAdminService(users AdminUserStore, subs AdminSubscriptionStore, charges ChargeSource, reminders *ReminderService) *AdminService {
	return &AdminService{users: users, subs: subs, charges: charges, reminders: reminders, now: time.Now}
}

// Stats returns dashboard counters and the latest reminder run.
func (s *AdminService) Stats(ctx context.Context) (*domain.AdminStats, error) {
	users, err := s.users.Count(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to count users", err)
	}
	plans, err := s.users.CountByPlan(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to count plans", err)
	}
	subs, err := s.subs.Count(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to count subscriptions", err)
	}

	stats := &domain.AdminStats{Users: users, PlanCounts: plans, Subscriptions: subs}
	if s.reminders != nil {
		st, err := s.reminders.Status(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("failed to load reminder status")
		} else {
			stats.LastRun = st
		}
	}
	return stats, nil
}

// Overview returns users, subscriptions and the most recent charges.
// Charges are omitted when the payment API is unavailable.
func (s *AdminService) Overview(ctx context.Context) (*domain.AdminOverview, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	subs, err := s.subs.ListAll(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list subscriptions", err)
	}

	out := &domain.AdminOverview{Users: users, Subscriptions: subs, Payments: []domain.Payment{}}
	charges, err := s.charges.ListCharges(ctx, adminChargeLimit)
	switch {
	case errors.Is(err, payment.ErrNotConfigured):
	case err != nil:
		return nil, domain.ErrInternal("failed to list charges", err)
	default:
		for _, c := range charges {
			out.Payments = append(out.Payments, domain.Payment{
				ID:         c.PaymentIntentID,
				Customer:   c.Customer,
				Amount:     c.Amount,
				Currency:   c.Currency,
				Created:    c.Created,
				Refunded:   c.Refunded,
				ReceiptURL: c.ReceiptURL,
			})
		}
	}
	if out.Subscriptions == nil {
		out.Subscriptions = []*domain.Subscription{}
	}
	return out, nil
}

// ListUsers returns every profile without credentials.
func (s *AdminService) ListUsers(ctx context.Context) ([]*domain.UserResponse, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to list users", err)
	}
	out := make([]*domain.UserResponse, len(users))
	for i, u := range users {
		out[i] = u.ToResponse()
	}
	return out, nil
}

// ChangePlan overrides a user's plan.
func (s *AdminService) ChangePlan(ctx context.Context, userID, plan string) error {
	tier, ok := domain.ParsePlanTier(plan)
	if !ok {
		return domain.ErrValidation("unknown plan " + plan)
	}
	found, err := s.users.SetPlan(ctx, userID, tier)
	if err != nil {
		return domain.ErrInternal("failed to change plan", err)
	}
	if !found {
		return domain.ErrNotFound("user not found")
	}
	metrics.PlanChangesTotal.WithLabelValues("admin", string(tier)).Inc()
	log.Info().Str("user_id", userID).Str("plan", string(tier)).Msg("plan overridden by admin")
	return nil
}

// DisableUser blocks a user from signing in.
func (s *AdminService) DisableUser(ctx context.Context, userID string) error {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return domain.ErrInternal("failed to find user", err)
	}
	if u == nil {
		return domain.ErrNotFound("user not found")
	}
	if u.Role == domain.RoleAdmin {
		return domain.ErrBadRequest("cannot disable admin user")
	}
	if _, err := s.users.SetDisabled(ctx, userID, true); err != nil {
		return domain.ErrInternal("failed to disable user", err)
	}
	log.Info().Str("user_id", userID).Msg("user disabled by admin")
	return nil
}

// Refund refunds a payment intent in full.
func (s *AdminService) Refund(ctx context.Context, paymentIntentID string) (string, error) {
	id, err := s.charges.Refund(ctx, paymentIntentID)
	if errors.Is(err, payment.ErrNotConfigured) {
		return "", &domain.AppError{Code: http.StatusServiceUnavailable, Message: "payment provider not configured", Err: err}
	}
	if err != nil {
		return "", domain.ErrInternal("refund failed", err)
	}
	log.Info().Str("payment_intent", paymentIntentID).Str("refund_id", id).Msg("payment refunded by admin")
	return id, nil
}

// ResetPlans downgrades every paid or provider-linked profile to free.
func (s *AdminService) ResetPlans(ctx context.Context) (int64, error) {
	n, err := s.users.ResetPlans(ctx, s.now().UTC())
	if err != nil {
		return 0, domain.ErrInternal("failed to reset plans", err)
	}
	log.Warn().Int64("count", n).Msg("plans reset to free")
	return n, nil
}
