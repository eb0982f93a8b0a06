package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rekur/backend/internal/domain"
	"github.com/rekur/backend/internal/notify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 7, 14, 0, 0, 0, time.UTC)

type reminderFixture struct {
	subs     *fakeSubs
	users    *fakeUsers
	logs     *fakeLogs
	email    *fakeEmail
	sms      *fakeText
	whatsapp *fakeText
	svc      *ReminderService
}

func newReminderFixture(t *testing.T, subs []*domain.Subscription, users ...*domain.User) *reminderFixture {
	t.Helper()
	f := &reminderFixture{
		subs:     &fakeSubs{subs: subs},
		users:    newFakeUsers(users...),
		logs:     &fakeLogs{},
		email:    &fakeEmail{},
		sms:      &fakeText{},
		whatsapp: &fakeText{},
	}
	f.svc = NewReminderService(f.subs, f.users, f.logs, nil, f.email, f.sms, f.whatsapp, ReminderSettings{
		Location:    time.UTC,
		Concurrency: 4,
		AppURL:      "https://app.rekur.test",
	})
	f.svc.now = func() time.Time { return testNow }
	return f
}

func trackedSub(id, userID, renewal string, days ...int) *domain.Subscription {
	return &domain.Subscription{
		ID:          id,
		UserID:      userID,
		Name:        "Sub " + id,
		Price:       decimal.RequireFromString("12.5"),
		RenewalDate: renewal,
		RemindDays:  days,
	}
}

func TestReminderRun_MixedBatch(t *testing.T) {
	pro := &domain.User{ID: "u-pro", Email: "pro@example.com", Phone: "+15550001", Plan: domain.PlanPro}
	free := &domain.User{ID: "u-free", Email: "free@example.com", Phone: "+15550002", Plan: domain.PlanFree}

	allChannels := trackedSub("a", "u-pro", "2026-03-10", 3, 7)
	allChannels.SMSReminder, allChannels.WhatsAppReminder = true, true
	freePhone := trackedSub("b", "u-free", "2026-03-08", 1)
	freePhone.SMSReminder = true

	subs := []*domain.Subscription{
		allChannels,
		freePhone,
		trackedSub("no-days", "u-pro", "2026-03-10"),
		trackedSub("bad-date", "u-pro", "soon", 3),
		trackedSub("orphan", "u-gone", "2026-03-10", 3),
		trackedSub("not-due", "u-pro", "2026-04-10", 3),
	}
	f := newReminderFixture(t, subs, pro, free)

	summary, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ok", summary.Status)
	assert.Equal(t, 6, summary.Processed)
	assert.Equal(t, 2, summary.Sent)
	assert.Equal(t, 3, summary.Skipped)
	assert.Equal(t, 4, summary.Attempts)
	assert.Equal(t, 0, summary.Failures)

	require.Len(t, f.email.sent, 2)
	require.Len(t, f.sms.sent, 1, "free plan never gets SMS")
	require.Len(t, f.whatsapp.sent, 1)
	assert.Equal(t, "+15550001", f.sms.sent[0].to)
	assert.Equal(t, "Reminder: Sub a renews in 3 days on Mar 10, 2026 for $12.50.", f.sms.sent[0].body)

	require.Len(t, f.logs.entries, 4)
	for _, e := range f.logs.entries {
		assert.True(t, e.Success)
		assert.Nil(t, e.Error)
		assert.Equal(t, summary.RunID, e.RunID)
		assert.Equal(t, summary.RunAt, e.RunAt)
	}
}

func TestReminderRun_OwnerLookedUpOncePerUser(t *testing.T) {
	u := &domain.User{ID: "u1", Email: "u1@example.com", Plan: domain.PlanFree}
	f := newReminderFixture(t, []*domain.Subscription{
		trackedSub("a", "u1", "2026-03-08", 1),
		trackedSub("b", "u1", "2026-03-09", 2),
	}, u)

	_, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.users.lookups)
}

func TestReminderRun_DuplicateOffsetsFireOnce(t *testing.T) {
	u := &domain.User{ID: "u1", Email: "u1@example.com"}
	f := newReminderFixture(t, []*domain.Subscription{
		trackedSub("a", "u1", "2026-03-07", 0, 0),
		trackedSub("b", "u1", "2026-03-10", 3),
	}, u)

	summary, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Attempts)
	assert.Equal(t, 2, summary.Sent)
}

func TestReminderRun_FailuresAreLoggedNotFatal(t *testing.T) {
	u := &domain.User{ID: "u1", Email: "u1@example.com", Phone: "+15550001", Plan: domain.PlanBusiness}
	sub := trackedSub("a", "u1", "2026-03-08", 1)
	sub.SMSReminder = true
	f := newReminderFixture(t, []*domain.Subscription{sub}, u)
	f.email.err = errors.New("sendgrid: status 500")

	summary, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Attempts)
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, 1, summary.Sent)

	emails := f.logs.byChannel(domain.ChannelEmail)
	require.Len(t, emails, 1)
	assert.False(t, emails[0].Success)
	require.NotNil(t, emails[0].Error)
	assert.Contains(t, *emails[0].Error, "status 500")

	sms := f.logs.byChannel(domain.ChannelSMS)
	require.Len(t, sms, 1)
	assert.True(t, sms[0].Success)
}

func TestReminderRun_LogAppendFailureDoesNotAbort(t *testing.T) {
	u := &domain.User{ID: "u1", Email: "u1@example.com"}
	f := newReminderFixture(t, []*domain.Subscription{trackedSub("a", "u1", "2026-03-08", 1)}, u)
	f.logs.appendErr = errors.New("disk full")

	summary, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Attempts)
	assert.Len(t, f.email.sent, 1)
}

func TestReminderRun_OwnerLookupErrorSkips(t *testing.T) {
	ok := &domain.User{ID: "u1", Email: "u1@example.com"}
	f := newReminderFixture(t, []*domain.Subscription{
		trackedSub("a", "u-flaky", "2026-03-08", 1),
		trackedSub("b", "u1", "2026-03-08", 1),
	}, ok)
	f.users.failIDs["u-flaky"] = true

	summary, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Sent)
}

func TestReminderRun_ListErrorAborts(t *testing.T) {
	f := newReminderFixture(t, nil)
	f.subs.err = errors.New("db down")

	_, err := f.svc.Run(context.Background())
	require.ErrorContains(t, err, "db down")
	assert.Empty(t, f.logs.entries)
}

func TestReminderRun_LockHeld(t *testing.T) {
	u := &domain.User{ID: "u1", Email: "u1@example.com"}
	f := newReminderFixture(t, []*domain.Subscription{trackedSub("a", "u1", "2026-03-08", 1)}, u)
	f.svc.lock = &fakeLock{held: true}

	_, err := f.svc.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrRunInProgress)
	assert.Empty(t, f.email.sent)
}

func TestReminderRun_LockReleasedAfterRun(t *testing.T) {
	lock := &fakeLock{}
	f := newReminderFixture(t, nil)
	f.svc.lock = lock

	_, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, lock.held)
}

func TestReminderRun_DoubleInvocation(t *testing.T) {
	u := &domain.User{ID: "u1", Email: "u1@example.com"}
	subs := []*domain.Subscription{trackedSub("a", "u1", "2026-03-08", 1)}

	t.Run("duplicates without guard", func(t *testing.T) {
		f := newReminderFixture(t, subs, u)
		_, err := f.svc.Run(context.Background())
		require.NoError(t, err)
		_, err = f.svc.Run(context.Background())
		require.NoError(t, err)
		assert.Len(t, f.email.sent, 2)
	})

	t.Run("guard suppresses repeat", func(t *testing.T) {
		f := newReminderFixture(t, subs, u)
		f.svc.cfg.DedupGuard = true
		_, err := f.svc.Run(context.Background())
		require.NoError(t, err)

		second, err := f.svc.Run(context.Background())
		require.NoError(t, err)
		assert.Len(t, f.email.sent, 1)
		assert.Equal(t, 0, second.Attempts)
		assert.Equal(t, 0, second.Sent)
	})
}

type countingText struct {
	inFlight, peak atomic.Int32
}

func (c *countingText) Send(context.Context, string, string) error {
	n := c.inFlight.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	c.inFlight.Add(-1)
	return nil
}

func TestReminderRun_ConcurrencyIsBounded(t *testing.T) {
	var users []*domain.User
	var subs []*domain.Subscription
	for i := 0; i < 20; i++ {
		id := string(rune('a' + i))
		users = append(users, &domain.User{ID: id, Phone: "+1555000", Plan: domain.PlanPro})
		s := trackedSub(id, id, "2026-03-08", 1)
		s.EmailReminder = boolPtr(false)
		s.SMSReminder = true
		subs = append(subs, s)
	}
	f := newReminderFixture(t, subs, users...)
	counter := &countingText{}
	f.svc.sms = counter
	f.svc.cfg.Concurrency = 3

	summary, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, summary.Attempts)
	assert.LessOrEqual(t, counter.peak.Load(), int32(3))
	assert.Len(t, f.logs.entries, 20)
}

// pickyCarrier refuses numbers starting with +1999 the way Twilio answers an
// invalid To number, and delivers everything else.
type pickyCarrier struct {
	mu        sync.Mutex
	attempts  int
	delivered []string
}

func (c *pickyCarrier) Send(_ context.Context, to, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	if strings.HasPrefix(to, "+1999") {
		return fmt.Errorf("twilio: %w: The 'To' number %s is not a valid phone number", notify.ErrRecipientRejected, to)
	}
	c.delivered = append(c.delivered, to)
	return nil
}

func TestReminderRun_RejectedNumbersDoNotSilenceChannel(t *testing.T) {
	var users []*domain.User
	var subs []*domain.Subscription
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("s%02d", i)
		phone := fmt.Sprintf("+1555000%02d", i)
		if i < 5 {
			phone = fmt.Sprintf("+1999000%02d", i)
		}
		users = append(users, &domain.User{ID: id, Phone: phone, Plan: domain.PlanPro})
		s := trackedSub(id, id, "2026-03-08", 1)
		s.EmailReminder = boolPtr(false)
		s.SMSReminder = true
		subs = append(subs, s)
	}
	f := newReminderFixture(t, subs, users...)
	carrier := &pickyCarrier{}
	f.svc.sms = notify.GuardText(domain.ChannelSMS, carrier, notify.DefaultBreakerSettings(10*time.Second))
	f.svc.cfg.Concurrency = 1

	summary, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Attempts)
	assert.Equal(t, 5, summary.Sent)
	assert.Equal(t, 5, summary.Failures)
	assert.Equal(t, 10, carrier.attempts)
	assert.ElementsMatch(t, []string{"+155500005", "+155500006", "+155500007", "+155500008", "+155500009"}, carrier.delivered)

	for _, l := range f.logs.byChannel(domain.ChannelSMS) {
		if l.Error != nil {
			assert.NotContains(t, *l.Error, "circuit open")
		}
	}
}

func TestReminderStatus(t *testing.T) {
	u := &domain.User{ID: "u1", Email: "u1@example.com", Phone: "+15550001", Plan: domain.PlanPro}
	sub := trackedSub("a", "u1", "2026-03-08", 1)
	sub.SMSReminder = true
	f := newReminderFixture(t, []*domain.Subscription{sub}, u)

	status, err := f.svc.Status(context.Background())
	require.NoError(t, err)
	assert.Nil(t, status.LastRun)
	assert.Equal(t, 0, status.Sent)

	f.sms.err = errors.New("twilio down")
	summary, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	status, err = f.svc.Status(context.Background())
	require.NoError(t, err)
	require.NotNil(t, status.LastRun)
	assert.True(t, summary.RunAt.Equal(*status.LastRun))
	assert.Equal(t, 1, status.Sent, "only successful entries of the latest batch count")
}

func TestReminderRecentLogs_ClampsLimit(t *testing.T) {
	f := newReminderFixture(t, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.logs.Append(context.Background(), &domain.ReminderLog{
			ID:     string(rune('a' + i)),
			SentAt: testNow.Add(time.Duration(i) * time.Minute),
		}))
	}

	logs, err := f.svc.RecentLogs(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "c", logs[0].ID)

	logs, err = f.svc.RecentLogs(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}
