package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
)

type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, email, full_name, company, plan, updated_at
FROM profiles
WHERE id = $1
`, id)

	var p domain.Profile
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.Company, &p.Plan, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get profile", fmt.Errorf("profile %s", id))
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}
	return &p, nil
}

func (r *ProfileRepository) Upsert(ctx context.Context, profile *domain.Profile) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO profiles (id, email, full_name, company, plan, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE
SET email = EXCLUDED.email,
	full_name = EXCLUDED.full_name,
	company = EXCLUDED.company,
	plan = EXCLUDED.plan,
	updated_at = EXCLUDED.updated_at
`, profile.ID, profile.Email, profile.FullName, profile.Company, profile.Plan, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
