// Package app assembles stores, senders, provider clients and services from
// configuration. Both the HTTP server and rekurctl start from here.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rekur/backend/internal/config"
	"github.com/rekur/backend/internal/domain"
	"github.com/rekur/backend/internal/notify"
	"github.com/rekur/backend/internal/repository"
	"github.com/rekur/backend/internal/service"
	"github.com/rekur/backend/pkg/crypto"
	"github.com/rekur/backend/pkg/payment"
	"github.com/rs/zerolog/log"
)

// App holds the wired dependency graph.
type App struct {
	Config *config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client

	Auth          *service.AuthService
	Billing       *service.BillingService
	Checkout      *service.CheckoutService
	Admin         *service.AdminService
	Reminders     *service.ReminderService
	Subscriptions *service.SubscriptionService
	Monitor       *service.MonitorService
}

// New connects to Postgres (and Redis when configured), runs migrations and
// builds every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := repository.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Msg("database connected and migrated")

	enc, err := crypto.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("encryptor: %w", err)
	}

	rdb, err := repository.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		// The run lock degrades to in-process exclusion.
		log.Warn().Err(err).Msg("redis unavailable, using in-process run lock")
		rdb = nil
	}

	users := repository.NewUserRepository(db, enc)
	subs := repository.NewSubscriptionRepository(db)
	reminderLogs := repository.NewReminderLogRepository(db)
	ledger := repository.NewWebhookEventRepository(db)
	workspace := repository.NewWorkspaceRepository(db)

	breaker := notify.DefaultBreakerSettings(cfg.Reminder.ChannelTimeout)
	smtp := notify.NewSMTP(cfg.SMTP)
	mailer := notify.GuardEmail(smtp, breaker)
	reminderMail := notify.GuardEmail(notify.NewSendGrid(cfg.SendGrid, smtp), breaker)
	sms := notify.GuardText(domain.ChannelSMS, notify.NewTwilio(cfg.Twilio), breaker)
	whatsapp := notify.GuardText(domain.ChannelWhatsApp, notify.NewWhatsApp(cfg.WhatsApp), breaker)

	lemon := payment.NewLemon(cfg.Lemon.APIKey, cfg.Lemon.StoreID, cfg.Lemon.WebhookSecret, "")
	stripeClient := payment.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)

	billing := service.NewBillingService(
		users, ledger, lemon, stripeClient, mailer,
		service.NewPlanTable(cfg.Lemon.ProVariantIDs, cfg.Lemon.BusinessVariantIDs),
		service.NewPlanTable(cfg.Stripe.ProPriceIDs, cfg.Stripe.BusinessPriceIDs),
		cfg.AppURL,
	)

	reminders := service.NewReminderService(
		subs, users, reminderLogs, repository.NewRunLock(rdb),
		reminderMail, sms, whatsapp,
		service.ReminderSettings{
			Location:    cfg.Reminder.Timezone,
			Concurrency: cfg.Reminder.Concurrency,
			DedupGuard:  cfg.Reminder.DedupGuard,
			LockTTL:     cfg.Reminder.LockTTL,
			AppURL:      cfg.AppURL,
		},
	)

	return &App{
		Config:        cfg,
		DB:            db,
		Redis:         rdb,
		Auth:          service.NewAuthService(cfg.JWTSecret, cfg.AdminEmail, cfg.AdminPassword, users),
		Billing:       billing,
		Checkout:      service.NewCheckoutService(billing, users, stripeClient, lemon, cfg.AppURL),
		Admin:         service.NewAdminService(users, subs, stripeClient, reminders),
		Reminders:     reminders,
		Subscriptions: service.NewSubscriptionService(subs, workspace, users),
		Monitor:       service.NewMonitorService(reminders, ledger, cfg.Reminder.Interval, cfg.Reminder.LedgerRetention),
	}, nil
}

// Close releases the database pool and the Redis client.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("redis close")
		}
	}
	a.DB.Close()
}
