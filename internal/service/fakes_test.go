package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rekur/backend/internal/domain"
)

type fakeSubs struct {
	subs []*domain.Subscription
	err  error
}

func (f *fakeSubs) ListAll(context.Context) ([]*domain.Subscription, error) {
	return f.subs, f.err
}

type fakeUsers struct {
	mu      sync.Mutex
	users   map[string]*domain.User
	failIDs map[string]bool
	lookups int
	updates []domain.PlanUpdate
	created []*domain.User
}

func newFakeUsers(users ...*domain.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*domain.User{}, failIDs: map[string]bool{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.failIDs[id] {
		return nil, errors.New("connection reset")
	}
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) CreateIfMissing(_ context.Context, u *domain.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; ok {
		return false, nil
	}
	cp := *u
	f.users[u.ID] = &cp
	f.created = append(f.created, &cp)
	return true, nil
}

func (f *fakeUsers) ApplyPlanUpdate(_ context.Context, userID string, upd domain.PlanUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return false, nil
	}
	u.Plan = upd.Plan
	switch upd.Provider {
	case domain.ProviderStripe:
		u.StripeCustomerID, u.StripeSubscriptionID = upd.CustomerID, upd.SubscriptionID
	case domain.ProviderLemon:
		u.LemonCustomerID, u.LemonSubscriptionID = upd.CustomerID, upd.SubscriptionID
	}
	u.UpdatedAt = upd.UpdatedAt
	f.updates = append(f.updates, upd)
	return true, nil
}

func (f *fakeUsers) get(id string) *domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}

type fakeLogs struct {
	mu        sync.Mutex
	entries   []*domain.ReminderLog
	appendErr error
}

func (f *fakeLogs) Append(_ context.Context, l *domain.ReminderLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.entries = append(f.entries, l)
	return nil
}

func (f *fakeLogs) Latest(context.Context) (*domain.ReminderLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.ReminderLog
	for _, e := range f.entries {
		if latest == nil || e.RunAt.After(latest.RunAt) ||
			(e.RunAt.Equal(latest.RunAt) && e.SentAt.After(latest.SentAt)) {
			latest = e
		}
	}
	return latest, nil
}

func (f *fakeLogs) CountSuccessful(_ context.Context, runAt time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if e.Success && e.RunAt.Equal(runAt) {
			n++
		}
	}
	return n, nil
}

func (f *fakeLogs) HasSuccess(_ context.Context, subID string, ch domain.Channel, days int, from, to time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.SubscriptionID == subID && e.Channel == ch && e.DaysBefore == days && e.Success &&
			!e.SentAt.Before(from) && e.SentAt.Before(to) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLogs) Recent(_ context.Context, limit int) ([]*domain.ReminderLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]*domain.ReminderLog(nil), f.entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeLogs) byChannel(ch domain.Channel) []*domain.ReminderLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.ReminderLog
	for _, e := range f.entries {
		if e.Channel == ch {
			out = append(out, e)
		}
	}
	return out
}

type sentEmail struct {
	to, subject string
	fields      domain.EmailFields
	html        string
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (f *fakeEmail) SendTemplate(_ context.Context, to, subject string, fields domain.EmailFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, fields: fields})
	return f.err
}

func (f *fakeEmail) SendHTML(_ context.Context, to, subject, html string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEmail{to: to, subject: subject, html: html})
	return f.err
}

type sentText struct{ to, body string }

type fakeText struct {
	mu   sync.Mutex
	sent []sentText
	err  error
}

func (f *fakeText) Send(_ context.Context, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentText{to: to, body: body})
	return f.err
}

type fakeLock struct {
	held bool
	err  error
}

func (f *fakeLock) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if f.held {
		return nil, false, nil
	}
	f.held = true
	return func() { f.held = false }, true, nil
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

func (f *fakeUsers) Create(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) Exists(ctx context.Context, email string) (bool, error) {
	u, err := f.FindByEmail(ctx, email)
	return u != nil, err
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	return nil
}

func (f *fakeUsers) ListAll(context.Context) ([]*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.User, 0, len(f.users))
	for _, u := range f.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeUsers) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), nil
}

func (f *fakeUsers) CountByPlan(context.Context) (map[domain.PlanTier]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[domain.PlanTier]int{}
	for _, u := range f.users {
		out[u.Plan]++
	}
	return out, nil
}

func (f *fakeUsers) SetPlan(_ context.Context, id string, plan domain.PlanTier) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if ok {
		u.Plan = plan
	}
	return ok, nil
}

func (f *fakeUsers) SetDisabled(_ context.Context, id string, disabled bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if ok {
		u.Disabled = disabled
	}
	return ok, nil
}

func (f *fakeUsers) SetStripeCustomer(_ context.Context, id, customerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.StripeCustomerID = &customerID
	}
	return nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, id, displayName, phone string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if ok {
		u.DisplayName, u.Phone = displayName, phone
	}
	return ok, nil
}

func (f *fakeUsers) ResetPlans(_ context.Context, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, u := range f.users {
		if u.Plan != domain.PlanFree || u.StripeCustomerID != nil || u.StripeSubscriptionID != nil ||
			u.LemonCustomerID != nil || u.LemonSubscriptionID != nil {
			u.Plan = domain.PlanFree
			u.StripeCustomerID, u.StripeSubscriptionID = nil, nil
			u.LemonCustomerID, u.LemonSubscriptionID = nil, nil
			u.UpdatedAt = at
			n++
		}
	}
	return n, nil
}
