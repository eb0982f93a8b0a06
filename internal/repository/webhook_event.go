package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rekur/backend/internal/domain"
)

// WebhookEventRepository is the ledger of payment events already applied.
type WebhookEventRepository struct {
	db *pgxpool.Pool
}

// NewWebhookEventRepository creates a new WebhookEventRepository.
func NewWebhookEventRepository(db *pgxpool.Pool) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Seen reports whether the event was already processed.
func (r *WebhookEventRepository) Seen(ctx context.Context, provider domain.Provider, key string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM webhook_events WHERE provider = $1 AND event_key = $2)`
	var seen bool
	if err := r.db.QueryRow(ctx, query, string(provider), key).Scan(&seen); err != nil {
		return false, fmt.Errorf("failed to read webhook_events entry: %w", err)
	}
	return seen, nil
}

// Record marks the event processed and reports whether this call inserted the
// row. Recording twice is a no-op that returns false.
func (r *WebhookEventRepository) Record(ctx context.Context, provider domain.Provider, key, eventType string) (bool, error) {
	query := `
		INSERT INTO webhook_events (provider, event_key, event_type, processed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (provider, event_key) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, string(provider), key, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to record webhook_events entry: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Prune drops ledger entries processed before cutoff.
func (r *WebhookEventRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM webhook_events WHERE processed_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune webhook_events: %w", err)
	}
	return tag.RowsAffected(), nil
}
