package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rekur/backend/internal/domain"
)

// DefaultRemindDays is used when a request names no offsets, and always on the free plan.
var DefaultRemindDays = []int{7}

// SubscriptionStore persists tracked subscriptions.
type SubscriptionStore interface {
	Create(ctx context.Context, sub *domain.Subscription) error
	Update(ctx context.Context, sub *domain.Subscription) (bool, error)
	Delete(ctx context.Context, id, userID string) (bool, error)
	FindByID(ctx context.Context, id, userID string) (*domain.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Subscription, error)
	CountByUser(ctx context.Context, userID string) (int, error)
}

// WorkspaceStore persists categories and team invites.
type WorkspaceStore interface {
	CreateCategory(ctx context.Context, c *domain.UserCategory) error
	ListCategories(ctx context.Context, userID string) ([]*domain.UserCategory, error)
	DeleteCategory(ctx context.Context, id, userID string) (bool, error)
	CreateInvite(ctx context.Context, inv *domain.TeamInvite) error
	ListInvites(ctx context.Context, owner string) ([]*domain.TeamInvite, error)
	DeleteInvite(ctx context.Context, id, owner string) (bool, error)
}

// AccountStore reads and edits the caller's own profile.
type AccountStore interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID, displayName, phone string) (bool, error)
}

// SubscriptionService manages a user's tracked subscriptions and workspace,
// enforcing plan limits.
type SubscriptionService struct {
	subs      SubscriptionStore
	workspace WorkspaceStore
	accounts  AccountStore
	now       func() time.Time
}

// NewSubscriptionService creates a SubscriptionService.
func NewSubscriptionService(subs SubscriptionStore, workspace WorkspaceStore, accounts AccountStore) *SubscriptionService {
	return &SubscriptionService{subs: subs, workspace: workspace, accounts: accounts, now: time.Now}
}

// List returns the caller's subscriptions.
func (s *SubscriptionService) List(ctx context.Context, userID string) ([]*domain.Subscription, error) {
	subs, err := s.subs.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list subscriptions", err)
	}
	if subs == nil {
		subs = []*domain.Subscription{}
	}
	return subs, nil
}

// Create adds a subscription for the caller.
func (s *SubscriptionService) Create(ctx context.Context, userID string, req *domain.SubscriptionRequest) (*domain.Subscription, error) {
	user, err := s.account(ctx, userID)
	if err != nil {
		return nil, err
	}

	if limit := domain.GetPlan(user.Plan).MaxTracked; limit > 0 {
		n, err := s.subs.CountByUser(ctx, userID)
		if err != nil {
			return nil, domain.ErrInternal("failed to count subscriptions", err)
		}
		if n >= limit {
			return nil, domain.ErrForbidden(fmt.Sprintf("your plan tracks up to %d subscriptions; upgrade to add more", limit))
		}
	}

	sub := &domain.Subscription{ID: uuid.New().String(), UserID: userID}
	if err := s.apply(user, sub, req); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sub.CreatedAt, sub.UpdatedAt = now, now

	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, domain.ErrInternal("failed to create subscription", err)
	}
	return sub, nil
}

// Update replaces the editable fields of one of the caller's subscriptions.
func (s *SubscriptionService) Update(ctx context.Context, userID, id string, req *domain.SubscriptionRequest) (*domain.Subscription, error) {
	user, err := s.account(ctx, userID)
	if err != nil {
		return nil, err
	}
	sub, err := s.subs.FindByID(ctx, id, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load subscription", err)
	}
	if sub == nil {
		return nil, domain.ErrNotFound("subscription not found")
	}

	if err := s.apply(user, sub, req); err != nil {
		return nil, err
	}
	sub.UpdatedAt = s.now().UTC()

	found, err := s.subs.Update(ctx, sub)
	if err != nil {
		return nil, domain.ErrInternal("failed to update subscription", err)
	}
	if !found {
		return nil, domain.ErrNotFound("subscription not found")
	}
	return sub, nil
}

// Delete removes one of the caller's subscriptions.
func (s *SubscriptionService) Delete(ctx context.Context, userID, id string) error {
	found, err := s.subs.Delete(ctx, id, userID)
	if err != nil {
		return domain.ErrInternal("failed to delete subscription", err)
	}
	if !found {
		return domain.ErrNotFound("subscription not found")
	}
	return nil
}

// apply copies request fields onto sub after checking the plan allows them.
func (s *SubscriptionService) apply(user *domain.User, sub *domain.Subscription, req *domain.SubscriptionRequest) error {
	if req.Price.IsNegative() {
		return domain.ErrValidation("price must not be negative")
	}
	if (req.SMSReminder || req.WhatsAppReminder) && !user.Plan.AllowsPhoneChannels() {
		return domain.ErrForbidden("SMS and WhatsApp reminders require the Pro or Business plan")
	}
	category := strings.TrimSpace(req.Category)
	if category != "" && !user.Plan.AllowsCategories() {
		return domain.ErrForbidden("categories require the Business plan")
	}

	days := domain.NormalizeRemindDays(req.RemindDays)
	if len(days) == 0 || !user.Plan.Paid() {
		days = append([]int(nil), DefaultRemindDays...)
	}

	sub.Name = strings.TrimSpace(req.Name)
	sub.Price = req.Price.Round(2)
	sub.RenewalDate = req.RenewalDate
	sub.RemindDays = days
	sub.EmailReminder = req.EmailReminder
	sub.SMSReminder = req.SMSReminder
	sub.WhatsAppReminder = req.WhatsAppReminder
	sub.Category = category
	return nil
}

// ListCategories returns the caller's category palette.
func (s *SubscriptionService) ListCategories(ctx context.Context, userID string) ([]*domain.UserCategory, error) {
	cats, err := s.workspace.ListCategories(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list categories", err)
	}
	if cats == nil {
		cats = []*domain.UserCategory{}
	}
	return cats, nil
}

// CreateCategory adds a custom category. Business plan only.
func (s *SubscriptionService) CreateCategory(ctx context.Context, userID string, req *domain.CategoryRequest) (*domain.UserCategory, error) {
	if err := s.requireBusiness(ctx, userID, "categories"); err != nil {
		return nil, err
	}
	color := req.Color
	if color == "" {
		color = "#6366f1"
	}
	cat := &domain.UserCategory{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      strings.TrimSpace(req.Name),
		Color:     color,
		CreatedAt: s.now().UTC(),
	}
	if err := s.workspace.CreateCategory(ctx, cat); err != nil {
		return nil, domain.ErrInternal("failed to create category", err)
	}
	return cat, nil
}

// DeleteCategory removes one of the caller's categories.
func (s *SubscriptionService) DeleteCategory(ctx context.Context, userID, id string) error {
	found, err := s.workspace.DeleteCategory(ctx, id, userID)
	if err != nil {
		return domain.ErrInternal("failed to delete category", err)
	}
	if !found {
		return domain.ErrNotFound("category not found")
	}
	return nil
}

// ListInvites returns the invitations sent from the caller's workspace.
func (s *SubscriptionService) ListInvites(ctx context.Context, userID string) ([]*domain.TeamInvite, error) {
	invites, err := s.workspace.ListInvites(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to list invites", err)
	}
	if invites == nil {
		invites = []*domain.TeamInvite{}
	}
	return invites, nil
}

// Invite records a pending workspace invitation. Business plan only.
func (s *SubscriptionService) Invite(ctx context.Context, userID string, req *domain.InviteRequest) (*domain.TeamInvite, error) {
	if err := s.requireBusiness(ctx, userID, "team members"); err != nil {
		return nil, err
	}
	inv := &domain.TeamInvite{
		ID:             uuid.New().String(),
		WorkspaceOwner: userID,
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Status:         "pending",
		CreatedAt:      s.now().UTC(),
	}
	if err := s.workspace.CreateInvite(ctx, inv); err != nil {
		return nil, domain.ErrInternal("failed to create invite", err)
	}
	return inv, nil
}

// RevokeInvite deletes one of the caller's invitations.
func (s *SubscriptionService) RevokeInvite(ctx context.Context, userID, id string) error {
	found, err := s.workspace.DeleteInvite(ctx, id, userID)
	if err != nil {
		return domain.ErrInternal("failed to delete invite", err)
	}
	if !found {
		return domain.ErrNotFound("invite not found")
	}
	return nil
}

// Account returns the caller's profile.
func (s *SubscriptionService) Account(ctx context.Context, userID string) (*domain.UserResponse, error) {
	u, err := s.account(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.ToResponse(), nil
}

// UpdateAccount edits display name and phone number.
func (s *SubscriptionService) UpdateAccount(ctx context.Context, userID string, req *domain.UpdateAccountRequest) (*domain.UserResponse, error) {
	found, err := s.accounts.UpdateProfile(ctx, userID, strings.TrimSpace(req.DisplayName), strings.TrimSpace(req.Phone))
	if err != nil {
		return nil, domain.ErrInternal("failed to update account", err)
	}
	if !found {
		return nil, domain.ErrNotFound("user not found")
	}
	return s.Account(ctx, userID)
}

func (s *SubscriptionService) account(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.ErrInternal("failed to load account", err)
	}
	if u == nil {
		return nil, domain.ErrNotFound("user not found")
	}
	return u, nil
}

func (s *SubscriptionService) requireBusiness(ctx context.Context, userID, feature string) error {
	u, err := s.account(ctx, userID)
	if err != nil {
		return err
	}
	if !u.Plan.AllowsCategories() {
		return domain.ErrForbidden(feature + " require the Business plan")
	}
	return nil
}
