package service

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rekur/backend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubStore struct {
	mu   sync.Mutex
	subs map[string]*domain.Subscription
}

func newFakeSubStore() *fakeSubStore { return &fakeSubStore{subs: map[string]*domain.Subscription{}} }

func (f *fakeSubStore) Create(_ context.Context, s *domain.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.subs[s.ID] = &cp
	return nil
}

func (f *fakeSubStore) Update(_ context.Context, s *domain.Subscription) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.subs[s.ID]
	if !ok || cur.UserID != s.UserID {
		return false, nil
	}
	cp := *s
	f.subs[s.ID] = &cp
	return true, nil
}

func (f *fakeSubStore) Delete(_ context.Context, id, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.subs[id]
	if !ok || cur.UserID != userID {
		return false, nil
	}
	delete(f.subs, id)
	return true, nil
}

func (f *fakeSubStore) FindByID(_ context.Context, id, userID string) (*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.subs[id]
	if !ok || cur.UserID != userID {
		return nil, nil
	}
	cp := *cur
	return &cp, nil
}

func (f *fakeSubStore) ListByUser(_ context.Context, userID string) ([]*domain.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Subscription
	for _, s := range f.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubStore) CountByUser(ctx context.Context, userID string) (int, error) {
	subs, err := f.ListByUser(ctx, userID)
	return len(subs), err
}

type fakeWorkspace struct {
	mu      sync.Mutex
	cats    []*domain.UserCategory
	invites []*domain.TeamInvite
}

func (f *fakeWorkspace) CreateCategory(_ context.Context, c *domain.UserCategory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cats = append(f.cats, c)
	return nil
}

func (f *fakeWorkspace) ListCategories(_ context.Context, userID string) ([]*domain.UserCategory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.UserCategory
	for _, c := range f.cats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeWorkspace) DeleteCategory(_ context.Context, id, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.cats {
		if c.ID == id && c.UserID == userID {
			f.cats = append(f.cats[:i], f.cats[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWorkspace) CreateInvite(_ context.Context, inv *domain.TeamInvite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invites = append(f.invites, inv)
	return nil
}

func (f *fakeWorkspace) ListInvites(_ context.Context, owner string) ([]*domain.TeamInvite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.TeamInvite
	for _, inv := range f.invites {
		if inv.WorkspaceOwner == owner {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeWorkspace) DeleteInvite(_ context.Context, id, owner string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, inv := range f.invites {
		if inv.ID == id && inv.WorkspaceOwner == owner {
			f.invites = append(f.invites[:i], f.invites[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func newTracker(users ...*domain.User) (*SubscriptionService, *fakeSubStore, *fakeWorkspace) {
	subs, ws := newFakeSubStore(), &fakeWorkspace{}
	svc := NewSubscriptionService(subs, ws, newFakeUsers(users...))
	svc.now = func() time.Time { return testNow }
	return svc, subs, ws
}

func netflixRequest() *domain.SubscriptionRequest {
	return &domain.SubscriptionRequest{
		Name:        " Netflix ",
		Price:       decimal.RequireFromString("15.499"),
		RenewalDate: "2026-03-10",
		RemindDays:  []int{3, 1, 3},
	}
}

func forbidden(t *testing.T, err error) {
	t.Helper()
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, http.StatusForbidden, appErr.Code)
}

func TestTrackerCreate_PaidPlanKeepsOffsets(t *testing.T) {
	svc, store, _ := newTracker(&domain.User{ID: "u-1", Plan: domain.PlanPro})

	sub, err := svc.Create(context.Background(), "u-1", netflixRequest())
	require.NoError(t, err)

	assert.Equal(t, "Netflix", sub.Name)
	assert.Equal(t, "15.5", sub.Price.String())
	assert.Equal(t, []int{1, 3}, sub.RemindDays)
	assert.Equal(t, testNow.UTC(), sub.CreatedAt)
	assert.Len(t, store.subs, 1)
}

func TestTrackerCreate_FreePlanUsesDefaultOffsets(t *testing.T) {
	svc, _, _ := newTracker(&domain.User{ID: "u-1", Plan: domain.PlanFree})

	sub, err := svc.Create(context.Background(), "u-1", netflixRequest())
	require.NoError(t, err)
	assert.Equal(t, DefaultRemindDays, sub.RemindDays)
}

func TestTrackerCreate_FreePlanLimit(t *testing.T) {
	svc, _, _ := newTracker(&domain.User{ID: "u-1", Plan: domain.PlanFree})
	ctx := context.Background()

	for i := 0; i < domain.GetPlan(domain.PlanFree).MaxTracked; i++ {
		_, err := svc.Create(ctx, "u-1", netflixRequest())
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, "u-1", netflixRequest())
	forbidden(t, err)
}

func TestTrackerCreate_PlanGating(t *testing.T) {
	svc, _, _ := newTracker(
		&domain.User{ID: "free", Plan: domain.PlanFree},
		&domain.User{ID: "pro", Plan: domain.PlanPro},
	)
	ctx := context.Background()

	req := netflixRequest()
	req.SMSReminder = true
	_, err := svc.Create(ctx, "free", req)
	forbidden(t, err)

	_, err = svc.Create(ctx, "pro", req)
	require.NoError(t, err)

	req = netflixRequest()
	req.Category = "Streaming"
	_, err = svc.Create(ctx, "pro", req)
	forbidden(t, err)
}

func TestTrackerCreate_NegativePrice(t *testing.T) {
	svc, _, _ := newTracker(&domain.User{ID: "u-1", Plan: domain.PlanPro})
	req := netflixRequest()
	req.Price = decimal.NewFromInt(-1)

	_, err := svc.Create(context.Background(), "u-1", req)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Code)
}

func TestTrackerUpdateAndDelete_OwnerScoped(t *testing.T) {
	svc, _, _ := newTracker(
		&domain.User{ID: "u-1", Plan: domain.PlanBusiness},
		&domain.User{ID: "u-2", Plan: domain.PlanBusiness},
	)
	ctx := context.Background()

	sub, err := svc.Create(ctx, "u-1", netflixRequest())
	require.NoError(t, err)

	req := netflixRequest()
	req.Name = "Netflix Premium"
	req.Category = "Streaming"
	_, err = svc.Update(ctx, "u-2", sub.ID, req)
	assert.Error(t, err, "other users cannot edit")

	updated, err := svc.Update(ctx, "u-1", sub.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "Netflix Premium", updated.Name)
	assert.Equal(t, "Streaming", updated.Category)

	assert.Error(t, svc.Delete(ctx, "u-2", sub.ID))
	require.NoError(t, svc.Delete(ctx, "u-1", sub.ID))

	list, err := svc.List(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)
}

func TestTrackerCategoriesRequireBusiness(t *testing.T) {
	svc, _, ws := newTracker(
		&domain.User{ID: "pro", Plan: domain.PlanPro},
		&domain.User{ID: "biz", Plan: domain.PlanBusiness},
	)
	ctx := context.Background()

	_, err := svc.CreateCategory(ctx, "pro", &domain.CategoryRequest{Name: "Work"})
	forbidden(t, err)

	cat, err := svc.CreateCategory(ctx, "biz", &domain.CategoryRequest{Name: "Work"})
	require.NoError(t, err)
	assert.Equal(t, "#6366f1", cat.Color)
	assert.Len(t, ws.cats, 1)

	require.NoError(t, svc.DeleteCategory(ctx, "biz", cat.ID))
	assert.Error(t, svc.DeleteCategory(ctx, "biz", cat.ID))
}

func TestTrackerInvites(t *testing.T) {
	svc, _, _ := newTracker(&domain.User{ID: "biz", Plan: domain.PlanBusiness})
	ctx := context.Background()

	inv, err := svc.Invite(ctx, "biz", &domain.InviteRequest{Email: " Team@X.io "})
	require.NoError(t, err)
	assert.Equal(t, "team@x.io", inv.Email)
	assert.Equal(t, "pending", inv.Status)

	list, err := svc.ListInvites(ctx, "biz")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.RevokeInvite(ctx, "biz", inv.ID))
}

func TestTrackerUpdateAccount(t *testing.T) {
	svc, _, _ := newTracker(&domain.User{ID: "u-1", Email: "a@x.io", Plan: domain.PlanPro})

	acct, err := svc.UpdateAccount(context.Background(), "u-1", &domain.UpdateAccountRequest{
		DisplayName: " Ada ", Phone: "+15551234567",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", acct.DisplayName)
	assert.Equal(t, "+15551234567", acct.Phone)

	_, err = svc.UpdateAccount(context.Background(), "nobody", &domain.UpdateAccountRequest{})
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, appErr.Code)
}
