package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rekur/backend/internal/domain"
	"github.com/rekur/backend/pkg/crypto"
	"github.com/rs/zerolog/log"
)

const userColumns = `id, email, display_name, phone_enc, plan, role, password,
	stripe_customer_id, stripe_subscription_id, lemon_customer_id, lemon_subscription_id,
	disabled, created_at, updated_at`

// UserRepository handles database operations for user profiles.
// Phone numbers are encrypted at rest.
type UserRepository struct {
	db  *pgxpool.Pool
	enc *crypto.Encryptor
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *pgxpool.Pool, enc *crypto.Encryptor) *UserRepository {
	return &UserRepository{db: db, enc: enc}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	phone, err := r.sealPhone(u.Phone)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO users (id, email, display_name, phone_enc, plan, role, password, disabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.Exec(ctx, query,
		u.ID, u.Email, u.DisplayName, phone, string(u.Plan), u.Role, u.Password,
		u.Disabled, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// CreateIfMissing inserts a profile unless one with the same id exists.
// It reports whether a row was written; concurrent callers race safely.
func (r *UserRepository) CreateIfMissing(ctx context.Context, u *domain.User) (bool, error) {
	query := `
		INSERT INTO users (id, email, display_name, plan, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query,
		u.ID, u.Email, u.DisplayName, string(u.Plan), u.Role, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create user profile: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 ORDER BY created_at LIMIT 1`, email)
	return r.scanOne(row)
}

// FindByID returns a user by ID, or nil when absent.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return r.scanOne(row)
}

// Exists checks if a user with the given email already exists.
func (r *UserRepository) Exists(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`
	var exists bool
	err := r.db.QueryRow(ctx, query, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}

// ListAll returns all users ordered by creation date.
func (r *UserRepository) ListAll(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Count returns the number of stored profiles.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// CountByPlan returns profile counts keyed by stored plan value.
func (r *UserRepository) CountByPlan(ctx context.Context) (map[domain.PlanTier]int, error) {
	rows, err := r.db.Query(ctx, `SELECT plan, COUNT(*) FROM users GROUP BY plan`)
	if err != nil {
		return nil, fmt.Errorf("failed to count plans: %w", err)
	}
	defer rows.Close()

	out := map[domain.PlanTier]int{}
	for rows.Next() {
		var plan string
		var n int
		if err := rows.Scan(&plan, &n); err != nil {
			return nil, fmt.Errorf("failed to scan plan count: %w", err)
		}
		out[domain.PlanTier(plan)] += n
	}
	return out, rows.Err()
}

// ApplyPlanUpdate writes the plan and the provider's ids in one statement.
// It reports false when no profile matched.
func (r *UserRepository) ApplyPlanUpdate(ctx context.Context, userID string, upd domain.PlanUpdate) (bool, error) {
	var query string
	switch upd.Provider {
	case domain.ProviderStripe:
		query = `UPDATE users SET plan = $2, stripe_customer_id = $3, stripe_subscription_id = $4, updated_at = $5 WHERE id = $1`
	case domain.ProviderLemon:
		query = `UPDATE users SET plan = $2, lemon_customer_id = $3, lemon_subscription_id = $4, updated_at = $5 WHERE id = $1`
	default:
		return false, fmt.Errorf("unknown provider %q", upd.Provider)
	}
	tag, err := r.db.Exec(ctx, query, userID, string(upd.Plan), upd.CustomerID, upd.SubscriptionID, upd.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to update plan: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetPlan overrides the plan without touching provider ids.
func (r *UserRepository) SetPlan(ctx context.Context, userID string, plan domain.PlanTier) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE users SET plan = $2, updated_at = NOW() WHERE id = $1`, userID, string(plan))
	if err != nil {
		return false, fmt.Errorf("failed to set plan: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetDisabled flips the disabled flag.
func (r *UserRepository) SetDisabled(ctx context.Context, userID string, disabled bool) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE users SET disabled = $2, updated_at = NOW() WHERE id = $1`, userID, disabled)
	if err != nil {
		return false, fmt.Errorf("failed to update disabled flag: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetStripeCustomer records the Stripe customer created for a user.
func (r *UserRepository) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET stripe_customer_id = $2, updated_at = NOW() WHERE id = $1`, userID, customerID)
	if err != nil {
		return fmt.Errorf("failed to set stripe customer: %w", err)
	}
	return nil
}

// UpdateProfile saves the account settings editable by the user.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID, displayName, phone string) (bool, error) {
	sealed, err := r.sealPhone(phone)
	if err != nil {
		return false, err
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET display_name = $2, phone_enc = $3, updated_at = NOW() WHERE id = $1`,
		userID, displayName, sealed,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update profile: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ResetPlans moves every profile back to free and clears all provider ids.
func (r *UserRepository) ResetPlans(ctx context.Context, at time.Time) (int64, error) {
	query := `
		UPDATE users SET plan = 'free',
			stripe_customer_id = NULL, stripe_subscription_id = NULL,
			lemon_customer_id = NULL, lemon_subscription_id = NULL,
			updated_at = $1
		WHERE plan <> 'free'
			OR stripe_customer_id IS NOT NULL OR stripe_subscription_id IS NOT NULL
			OR lemon_customer_id IS NOT NULL OR lemon_subscription_id IS NOT NULL
	`
	tag, err := r.db.Exec(ctx, query, at)
	if err != nil {
		return 0, fmt.Errorf("failed to reset plans: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes a user by ID.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (r *UserRepository) scanOne(row pgx.Row) (*domain.User, error) {
	u, err := r.scan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) scan(row pgx.Row) (*domain.User, error) {
	var (
		u     domain.User
		plan  string
		phone *string
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.DisplayName, &phone, &plan, &u.Role, &u.Password,
		&u.StripeCustomerID, &u.StripeSubscriptionID, &u.LemonCustomerID, &u.LemonSubscriptionID,
		&u.Disabled, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	// Unknown stored values are kept verbatim; they grant no paid features.
	if tier, ok := domain.ParsePlanTier(plan); ok {
		u.Plan = tier
	} else {
		u.Plan = domain.PlanTier(plan)
	}
	if phone != nil {
		u.Phone, err = r.enc.DecryptString(*phone)
		if err != nil {
			// An unreadable phone disables phone channels for this user only.
			log.Warn().Err(err).Str("user_id", u.ID).Msg("failed to decrypt phone")
			u.Phone = ""
		}
	}
	return &u, nil
}

func (r *UserRepository) sealPhone(phone string) (*string, error) {
	if phone == "" {
		return nil, nil
	}
	sealed, err := r.enc.EncryptString(phone)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt phone: %w", err)
	}
	return &sealed, nil
}
