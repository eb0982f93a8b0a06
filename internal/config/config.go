package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port          int
	JWTSecret     string
	DatabaseURL   string
	RedisURL      string
	EncryptionKey string
	CORSOrigins   []string
	AdminEmail    string
	AdminPassword string
	CronSecret    string
	AppURL        string
	LogLevel      string
	LogFormat     string

	Reminder ReminderConfig
	Stripe   StripeConfig
	Lemon    LemonConfig
	SendGrid SendGridConfig
	SMTP     SMTPConfig
	Twilio   TwilioConfig
	WhatsApp WhatsAppConfig
}

// ReminderConfig tunes the reminder dispatcher.
type ReminderConfig struct {
	Timezone        *time.Location
	Concurrency     int
	ChannelTimeout  time.Duration
	DedupGuard      bool
	LockTTL         time.Duration
	// Interval enables the in-process trigger; zero leaves scheduling to cron.
	Interval        time.Duration
	LedgerRetention time.Duration
}

// StripeConfig holds Stripe credentials and the price → plan table.
type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	ProPriceIDs      []string
	BusinessPriceIDs []string
}

// LemonConfig holds Lemon Squeezy credentials and the variant → plan allow-lists.
type LemonConfig struct {
	APIKey             string
	StoreID            string
	WebhookSecret      string
	ProVariantIDs      []string
	BusinessVariantIDs []string
}

// SendGridConfig configures templated reminder emails.
type SendGridConfig struct {
	APIKey     string
	FromEmail  string
	FromName   string
	TemplateID string
	ASMGroupID int
}

// SMTPConfig configures transactional emails.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// TwilioConfig configures SMS delivery.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

// WhatsAppConfig configures the WhatsApp Cloud API.
type WhatsAppConfig struct {
	APIVersion string
	PhoneID    string
	Token      string
	BaseURL    string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, _ := strconv.Atoi(getEnv("PORT", "4001"))

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	encKey := getEnv("ENCRYPTION_KEY", "")
	if encKey == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required (must be exactly 32 bytes)")
	}
	if len(encKey) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes, got %d", len(encKey))
	}

	reminder, err := loadReminder()
	if err != nil {
		return nil, err
	}

	smtpPort, _ := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	asmGroup, _ := strconv.Atoi(getEnv("SENDGRID_ASM_GROUP_ID", "0"))

	return &Config{
		Port:          port,
		JWTSecret:     jwtSecret,
		DatabaseURL:   dbURL,
		RedisURL:      getEnv("REDIS_URL", ""),
		EncryptionKey: encKey,
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,https://www.rekur-app.com")),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@rekur-app.com"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		CronSecret:    getEnv("CRON_SECRET", ""),
		AppURL:        strings.TrimRight(getEnv("APP_URL", "https://www.rekur-app.com"), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		Reminder:      reminder,
		Stripe: StripeConfig{
			SecretKey:        getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:    getEnv("STRIPE_WEBHOOK_SECRET", ""),
			ProPriceIDs:      splitList(getEnv("STRIPE_PRO_PRICE_IDS", "")),
			BusinessPriceIDs: splitList(getEnv("STRIPE_BUSINESS_PRICE_IDS", "")),
		},
		Lemon: LemonConfig{
			APIKey:             getEnv("LEMONSQUEEZY_API_KEY", ""),
			StoreID:            getEnv("LEMONSQUEEZY_STORE_ID", ""),
			WebhookSecret:      getEnv("LEMONSQUEEZY_WEBHOOK_SECRET", ""),
			ProVariantIDs:      splitList(getEnv("LEMON_PRO_VARIANT_IDS", "")),
			BusinessVariantIDs: splitList(getEnv("LEMON_BUSINESS_VARIANT_IDS", "")),
		},
		SendGrid: SendGridConfig{
			APIKey:     getEnv("SENDGRID_API_KEY", ""),
			FromEmail:  getEnv("SENDGRID_FROM_EMAIL", ""),
			FromName:   getEnv("SENDGRID_FROM_NAME", "ReKur Team"),
			TemplateID: getEnv("SENDGRID_TEMPLATE_ID", ""),
			ASMGroupID: asmGroup,
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp-relay.brevo.com"),
			Port:     smtpPort,
			Username: getEnv("EMAIL_USER", ""),
			Password: getEnv("EMAIL_PASS", ""),
			From:     getEnv("EMAIL_FROM", getEnv("EMAIL_USER", "")),
		},
		Twilio: TwilioConfig{
			AccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			From:       getEnv("TWILIO_FROM_NUMBER", ""),
		},
		WhatsApp: WhatsAppConfig{
			APIVersion: getEnv("WHATSAPP_VERSION", "v21.0"),
			PhoneID:    getEnv("WHATSAPP_PHONE_ID", ""),
			Token:      getEnv("WHATSAPP_TOKEN", ""),
			BaseURL:    getEnv("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
		},
	}, nil
}

func loadReminder() (ReminderConfig, error) {
	tzName := getEnv("REMINDER_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return ReminderConfig{}, fmt.Errorf("REMINDER_TIMEZONE %q: %w", tzName, err)
	}

	concurrency, err := strconv.Atoi(getEnv("REMINDER_CONCURRENCY", "16"))
	if err != nil || concurrency < 1 {
		return ReminderConfig{}, fmt.Errorf("REMINDER_CONCURRENCY must be a positive integer")
	}

	timeout, err := time.ParseDuration(getEnv("REMINDER_CHANNEL_TIMEOUT", "10s"))
	if err != nil || timeout <= 0 {
		return ReminderConfig{}, fmt.Errorf("REMINDER_CHANNEL_TIMEOUT must be a positive duration")
	}

	lockTTL, err := time.ParseDuration(getEnv("REMINDER_LOCK_TTL", "15m"))
	if err != nil || lockTTL <= 0 {
		return ReminderConfig{}, fmt.Errorf("REMINDER_LOCK_TTL must be a positive duration")
	}

	dedup, _ := strconv.ParseBool(getEnv("REMINDER_DEDUP_GUARD", "false"))

	interval, err := time.ParseDuration(getEnv("REMINDER_INTERVAL", "0"))
	if err != nil || interval < 0 {
		return ReminderConfig{}, fmt.Errorf("REMINDER_INTERVAL must be a non-negative duration")
	}

	retention, err := time.ParseDuration(getEnv("WEBHOOK_LEDGER_RETENTION", "720h"))
	if err != nil || retention <= 0 {
		return ReminderConfig{}, fmt.Errorf("WEBHOOK_LEDGER_RETENTION must be a positive duration")
	}

	return ReminderConfig{
		Timezone:        loc,
		Concurrency:     concurrency,
		ChannelTimeout:  timeout,
		DedupGuard:      dedup,
		LockTTL:         lockTTL,
		Interval:        interval,
		LedgerRetention: retention,
	}, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
