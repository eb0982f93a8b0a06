package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rekur/backend/internal/domain"
	"github.com/shopspring/decimal"
)

const subscriptionColumns = `id, user_id, name, price::text, renewal_date, remind_days,
	email_reminder, sms_reminder, whatsapp_reminder, category, created_at, updated_at`

// SubscriptionRepository stores the recurring charges users track.
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, user_id, name, price, renewal_date, remind_days,
			email_reminder, sms_reminder, whatsapp_reminder, category, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		sub.ID, sub.UserID, sub.Name, sub.Price.StringFixed(2), sub.RenewalDate, toInt32s(sub.RemindDays),
		sub.EmailReminder, sub.SMSReminder, sub.WhatsAppReminder, sub.Category,
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

// Update rewrites an owned subscription. It reports false when nothing matched.
func (r *SubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) (bool, error) {
	query := `
		UPDATE subscriptions SET name = $3, price = $4::numeric, renewal_date = $5, remind_days = $6,
			email_reminder = $7, sms_reminder = $8, whatsapp_reminder = $9, category = $10, updated_at = $11
		WHERE id = $1 AND user_id = $2
	`
	tag, err := r.db.Exec(ctx, query,
		sub.ID, sub.UserID, sub.Name, sub.Price.StringFixed(2), sub.RenewalDate, toInt32s(sub.RemindDays),
		sub.EmailReminder, sub.SMSReminder, sub.WhatsAppReminder, sub.Category, sub.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes an owned subscription.
func (r *SubscriptionRepository) Delete(ctx context.Context, id, userID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete subscription: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FindByID returns an owned subscription, or nil.
func (r *SubscriptionRepository) FindByID(ctx context.Context, id, userID string) (*domain.Subscription, error) {
	row := r.db.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1 AND user_id = $2`, id, userID)
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return sub, nil
}

// ListByUser returns a user's subscriptions, soonest renewal first.
func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Subscription, error) {
	return r.list(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 ORDER BY renewal_date, name`, userID)
}

// ListAll returns every tracked subscription.
func (r *SubscriptionRepository) ListAll(ctx context.Context) ([]*domain.Subscription, error) {
	return r.list(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY user_id, created_at`)
}

// Count returns the number of tracked subscriptions.
func (r *SubscriptionRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM subscriptions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return n, nil
}

// CountByUser returns how many subscriptions a user tracks.
func (r *SubscriptionRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM subscriptions WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return n, nil
}

func (r *SubscriptionRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var (
		sub   domain.Subscription
		price string
		days  []int32
	)
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.Name, &price, &sub.RenewalDate, &days,
		&sub.EmailReminder, &sub.SMSReminder, &sub.WhatsAppReminder, &sub.Category,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Price, err = decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", price, err)
	}
	sub.RemindDays = make([]int, len(days))
	for i, d := range days {
		sub.RemindDays[i] = int(d)
	}
	return &sub, nil
}

func toInt32s(in []int) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}
