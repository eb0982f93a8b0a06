package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rekur/backend/internal/domain"
)

// WorkspaceRepository stores per-user categories and team invites.
type WorkspaceRepository struct {
	db *pgxpool.Pool
}

func NewWorkspaceRepository(db *pgxpool.Pool) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

func (r *WorkspaceRepository) CreateCategory(ctx context.Context, c *domain.UserCategory) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO user_categories (id, user_id, name, color, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.UserID, c.Name, c.Color, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

func (r *WorkspaceRepository) ListCategories(ctx context.Context, userID string) ([]*domain.UserCategory, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, name, color, created_at FROM user_categories WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []*domain.UserCategory
	for rows.Next() {
		var c domain.UserCategory
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *WorkspaceRepository) DeleteCategory(ctx context.Context, id, userID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM user_categories WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete category: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *WorkspaceRepository) CreateInvite(ctx context.Context, inv *domain.TeamInvite) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO team_invites (id, workspace_owner, email, status, created_at) VALUES ($1, $2, $3, $4, $5)`,
		inv.ID, inv.WorkspaceOwner, inv.Email, inv.Status, inv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

func (r *WorkspaceRepository) ListInvites(ctx context.Context, owner string) ([]*domain.TeamInvite, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, workspace_owner, email, status, created_at FROM team_invites WHERE workspace_owner = $1 ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var out []*domain.TeamInvite
	for rows.Next() {
		var inv domain.TeamInvite
		if err := rows.Scan(&inv.ID, &inv.WorkspaceOwner, &inv.Email, &inv.Status, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		out = append(out, &inv)
	}
	return out, rows.Err()
}

func (r *WorkspaceRepository) DeleteInvite(ctx context.Context, id, owner string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM team_invites WHERE id = $1 AND workspace_owner = $2`, id, owner)
	if err != nil {
		return false, fmt.Errorf("failed to delete invite: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
