package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rekur/backend/internal/domain"
)

const reminderLogColumns = `id, subscription_id, user_id, channel, days_before, success, error, run_id, run_at, sent_at`

// ReminderLogRepository is the append-only reminder attempt log.
type ReminderLogRepository struct {
	db *pgxpool.Pool
}

func NewReminderLogRepository(db *pgxpool.Pool) *ReminderLogRepository {
	return &ReminderLogRepository{db: db}
}

// Append writes one attempt.
func (r *ReminderLogRepository) Append(ctx context.Context, l *domain.ReminderLog) error {
	query := `INSERT INTO reminder_logs (` + reminderLogColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.Exec(ctx, query,
		l.ID, l.SubscriptionID, l.UserID, string(l.Channel), l.DaysBefore, l.Success, l.Error,
		l.RunID, l.RunAt, l.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append reminder log: %w", err)
	}
	return nil
}

// Latest returns the most recent attempt, or nil when the log is empty.
func (r *ReminderLogRepository) Latest(ctx context.Context) (*domain.ReminderLog, error) {
	row := r.db.QueryRow(ctx, `SELECT `+reminderLogColumns+` FROM reminder_logs ORDER BY run_at DESC, sent_at DESC LIMIT 1`)
	l, err := scanReminderLog(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read latest reminder log: %w", err)
	}
	return l, nil
}

// CountSuccessful counts successful attempts stamped with the given batch time.
func (r *ReminderLogRepository) CountSuccessful(ctx context.Context, runAt time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reminder_logs WHERE run_at = $1 AND success`, runAt).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count reminder logs: %w", err)
	}
	return n, nil
}

// HasSuccess reports whether a successful attempt for the same
// (subscription, channel, offset) settled inside [from, to).
func (r *ReminderLogRepository) HasSuccess(ctx context.Context, subscriptionID string, ch domain.Channel, daysBefore int, from, to time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM reminder_logs
			WHERE subscription_id = $1 AND channel = $2 AND days_before = $3
				AND success AND sent_at >= $4 AND sent_at < $5
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, subscriptionID, string(ch), daysBefore, from, to).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check reminder log: %w", err)
	}
	return exists, nil
}

// Recent returns the newest attempts first.
func (r *ReminderLogRepository) Recent(ctx context.Context, limit int) ([]*domain.ReminderLog, error) {
	rows, err := r.db.Query(ctx, `SELECT `+reminderLogColumns+` FROM reminder_logs ORDER BY sent_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.ReminderLog
	for rows.Next() {
		l, err := scanReminderLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func scanReminderLog(row pgx.Row) (*domain.ReminderLog, error) {
	var (
		l  domain.ReminderLog
		ch string
	)
	err := row.Scan(&l.ID, &l.SubscriptionID, &l.UserID, &ch, &l.DaysBefore, &l.Success, &l.Error,
		&l.RunID, &l.RunAt, &l.SentAt)
	if err != nil {
		return nil, err
	}
	l.Channel = domain.Channel(ch)
	return &l, nil
}
