package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rekur/backend/internal/domain"
	"github.com/rekur/backend/internal/metrics"
	"github.com/rekur/backend/internal/notify"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const reminderLockKey = "rekur:reminders:run"

// SubscriptionLister enumerates every tracked subscription.
type SubscriptionLister interface {
	ListAll(ctx context.Context) ([]*domain.Subscription, error)
}

// UserFinder loads a profile by id, returning nil when absent.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// ReminderLogStore is the append-only attempt log.
type ReminderLogStore interface {
	Append(ctx context.Context, l *domain.ReminderLog) error
	Latest(ctx context.Context) (*domain.ReminderLog, error)
	CountSuccessful(ctx context.Context, runAt time.Time) (int, error)
	HasSuccess(ctx context.Context, subscriptionID string, ch domain.Channel, daysBefore int, from, to time.Time) (bool, error)
	Recent(ctx context.Context, limit int) ([]*domain.ReminderLog, error)
}

// RunLocker grants an exclusive lease for a reminder run.
type RunLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// ReminderSettings tunes a ReminderService.
type ReminderSettings struct {
	Location    *time.Location
	Concurrency int
	DedupGuard  bool
	LockTTL     time.Duration
	AppURL      string
}

// ReminderService finds due renewal reminders and dispatches them.
type ReminderService struct {
	subs     SubscriptionLister
	users    UserFinder
	logs     ReminderLogStore
	lock     RunLocker
	email    notify.EmailSender
	sms      notify.TextSender
	whatsapp notify.TextSender
	cfg      ReminderSettings
	now      func() time.Time
}

// NewReminderService creates a ReminderService. lock may be nil.
func NewReminderService(
	subs SubscriptionLister,
	users UserFinder,
	logs ReminderLogStore,
	lock RunLocker,
	email notify.EmailSender,
	sms, whatsapp notify.TextSender,
	cfg ReminderSettings,
) *ReminderService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 15 * time.Minute
	}
	return &ReminderService{
		subs: subs, users: users, logs: logs, lock: lock,
		email: email, sms: sms, whatsapp: whatsapp,
		cfg: cfg, now: time.Now,
	}
}

// dispatch is one (subscription, offset, channel) send.
type dispatch struct {
	sub     *domain.Subscription
	user    *domain.User
	days    int
	renewal time.Time
	channel domain.Channel
}

// Run executes one reminder batch. It returns domain.ErrRunInProgress when
// another run holds the lock.
func (s *ReminderService) Run(ctx context.Context) (*domain.RunSummary, error) {
	start := s.now()

	if s.lock != nil {
		release, ok, err := s.lock.Acquire(ctx, reminderLockKey, s.cfg.LockTTL)
		if err != nil {
			metrics.ReminderRunsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			metrics.ReminderRunsTotal.WithLabelValues("locked").Inc()
			return nil, domain.ErrRunInProgress
		}
		defer release()
	}

	summary := &domain.RunSummary{
		Status: "ok",
		RunID:  uuid.NewString(),
		RunAt:  start.UTC(),
	}
	logger := log.With().Str("run_id", summary.RunID).Logger()
	today := start.In(s.cfg.Location)
	logger.Info().Time("today", today).Msg("reminder run started")

	subs, err := s.subs.ListAll(ctx)
	if err != nil {
		metrics.ReminderRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	summary.Processed = len(subs)

	jobs := s.plan(ctx, subs, today, summary)
	summary.Attempts = len(jobs)

	var (
		mu       sync.Mutex
		failures int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			if !s.send(gctx, job, summary) {
				mu.Lock()
				failures++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	summary.Failures = failures

	metrics.ReminderRunsTotal.WithLabelValues("ok").Inc()
	metrics.ReminderRunDuration.Observe(time.Since(start).Seconds())
	logger.Info().
		Int("processed", summary.Processed).
		Int("sent", summary.Sent).
		Int("attempts", summary.Attempts).
		Int("failures", summary.Failures).
		Int("skipped", summary.Skipped).
		Dur("duration", time.Since(start)).
		Msg("reminder run finished")
	return summary, nil
}

// plan walks subscriptions in order and expands them into dispatches.
// It updates Skipped and Sent on summary.
func (s *ReminderService) plan(ctx context.Context, subs []*domain.Subscription, today time.Time, summary *domain.RunSummary) []dispatch {
	owners := make(map[string]*domain.User)
	dayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var jobs []dispatch
	for _, sub := range subs {
		skip := func(reason SkipReason) {
			summary.Skipped++
			log.Debug().Str("subscription_id", sub.ID).Str("reason", string(reason)).Msg("skipping subscription")
		}

		days := domain.NormalizeRemindDays(sub.RemindDays)
		if len(days) == 0 {
			skip(SkipNoRemindDays)
			continue
		}
		renewal, ok := ParseRenewalDate(sub.RenewalDate, s.cfg.Location)
		if !ok {
			skip(SkipBadRenewalDate)
			continue
		}

		user, cached := owners[sub.UserID]
		if !cached {
			var err error
			user, err = s.users.FindByID(ctx, sub.UserID)
			if err != nil {
				log.Error().Err(err).Str("subscription_id", sub.ID).Str("user_id", sub.UserID).Msg("owner lookup failed")
				skip(SkipOwnerLookup)
				continue
			}
			owners[sub.UserID] = user
		}
		if user == nil {
			skip(SkipOwnerNotFound)
			continue
		}

		fired := false
		channels := EligibleChannels(user, sub)
		for _, d := range DueOffsets(renewal, days, today) {
			for _, ch := range channels {
				if s.cfg.DedupGuard && s.alreadySent(ctx, sub.ID, ch, d, dayStart, dayEnd) {
					continue
				}
				jobs = append(jobs, dispatch{sub: sub, user: user, days: d, renewal: renewal, channel: ch})
				fired = true
			}
		}
		if fired {
			summary.Sent++
		}
	}
	return jobs
}

func (s *ReminderService) alreadySent(ctx context.Context, subID string, ch domain.Channel, days int, from, to time.Time) bool {
	sent, err := s.logs.HasSuccess(ctx, subID, ch, days, from, to)
	if err != nil {
		// Prefer a duplicate over a missed reminder.
		log.Warn().Err(err).Str("subscription_id", subID).Msg("dedup lookup failed")
		return false
	}
	return sent
}

// send performs one channel call and records it. It reports success.
func (s *ReminderService) send(ctx context.Context, job dispatch, summary *domain.RunSummary) bool {
	err := s.deliver(ctx, job)

	entry := &domain.ReminderLog{
		ID:             uuid.NewString(),
		SubscriptionID: job.sub.ID,
		UserID:         job.user.ID,
		Channel:        job.channel,
		DaysBefore:     job.days,
		Success:        err == nil,
		RunID:          summary.RunID,
		RunAt:          summary.RunAt,
		SentAt:         s.now().UTC(),
	}
	outcome := "success"
	if err != nil {
		msg := err.Error()
		entry.Error = &msg
		outcome = "failure"
		if errors.Is(err, notify.ErrChannelDisabled) {
			outcome = "disabled"
		}
		log.Warn().Err(err).
			Str("subscription_id", job.sub.ID).
			Str("channel", string(job.channel)).
			Int("days_before", job.days).
			Msg("reminder send failed")
	}
	metrics.ReminderDispatchTotal.WithLabelValues(string(job.channel), outcome).Inc()

	if aerr := s.logs.Append(ctx, entry); aerr != nil {
		log.Error().Err(aerr).Str("subscription_id", job.sub.ID).Str("channel", string(job.channel)).
			Msg("failed to append reminder log")
	}
	return err == nil
}

func (s *ReminderService) deliver(ctx context.Context, job dispatch) error {
	switch job.channel {
	case domain.ChannelEmail:
		fields := ReminderEmailFields(job.user, job.sub, job.renewal, s.cfg.AppURL)
		return s.email.SendTemplate(ctx, job.user.Email, ReminderSubject(job.sub, job.days), fields)
	case domain.ChannelSMS:
		return s.sms.Send(ctx, job.user.Phone, ReminderMessage(job.sub, job.days, job.renewal))
	case domain.ChannelWhatsApp:
		return s.whatsapp.Send(ctx, job.user.Phone, ReminderMessage(job.sub, job.days, job.renewal))
	}
	return fmt.Errorf("unknown channel %q", job.channel)
}

// Status reports the latest batch time and its successful sends.
func (s *ReminderService) Status(ctx context.Context) (*domain.RunStatus, error) {
	latest, err := s.logs.Latest(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to read reminder status", err)
	}
	if latest == nil {
		return &domain.RunStatus{}, nil
	}
	sent, err := s.logs.CountSuccessful(ctx, latest.RunAt)
	if err != nil {
		return nil, domain.ErrInternal("failed to read reminder status", err)
	}
	runAt := latest.RunAt
	return &domain.RunStatus{LastRun: &runAt, Sent: sent}, nil
}

// RecentLogs returns the newest attempts, newest first.
func (s *ReminderService) RecentLogs(ctx context.Context, limit int) ([]*domain.ReminderLog, error) {
	switch {
	case limit <= 0:
		limit = 50
	case limit > 500:
		limit = 500
	}
	logs, err := s.logs.Recent(ctx, limit)
	if err != nil {
		return nil, domain.ErrInternal("failed to list reminder logs", err)
	}
	if logs == nil {
		logs = []*domain.ReminderLog{}
	}
	return logs, nil
}
