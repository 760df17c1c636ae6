package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sekurigo/privacy-api/internal/models"
)

const retentionColumns = `data_type, category, retention_days, lawful_basis, description, active, created_at, conditions`

// RetentionRepository persists configured retention policies.
type RetentionRepository struct {
	db *sqlx.DB
}

// NewRetentionRepository constructs the repository.
func NewRetentionRepository(db *sqlx.DB) *RetentionRepository {
	return &RetentionRepository{db: db}
}

// Upsert inserts or replaces the policy keyed by (data_type, category).
func (r *RetentionRepository) Upsert(ctx context.Context, policy *models.RetentionPolicy) error {
	const query = `INSERT INTO retention_policies
	(data_type, category, retention_days, lawful_basis, description, active, created_at, conditions)
	VALUES (:data_type, :category, :retention_days, :lawful_basis, :description, :active, :created_at, :conditions)
	ON CONFLICT (data_type, category) DO UPDATE SET
	 retention_days = EXCLUDED.retention_days,
	 lawful_basis = EXCLUDED.lawful_basis,
	 description = EXCLUDED.description,
	 active = EXCLUDED.active,
	 conditions = EXCLUDED.conditions`
	if _, err := r.db.NamedExecContext(ctx, query, policy); err != nil {
		return fmt.Errorf("upsert retention policy: %w", err)
	}
	return nil
}

// FindActiveByCategory returns the active policies covering the category.
// Multiple data types may share a category; the evaluator takes the longest.
func (r *RetentionRepository) FindActiveByCategory(ctx context.Context, category string) ([]models.RetentionPolicy, error) {
	query := `SELECT ` + retentionColumns + ` FROM retention_policies
	WHERE category = $1 AND active = TRUE`
	var policies []models.RetentionPolicy
	if err := r.db.SelectContext(ctx, &policies, query, category); err != nil {
		return nil, fmt.Errorf("find retention policies: %w", err)
	}
	return policies, nil
}

// List returns every configured policy.
func (r *RetentionRepository) List(ctx context.Context) ([]models.RetentionPolicy, error) {
	query := `SELECT ` + retentionColumns + ` FROM retention_policies ORDER BY category, data_type`
	var policies []models.RetentionPolicy
	if err := r.db.SelectContext(ctx, &policies, query); err != nil {
		return nil, fmt.Errorf("list retention policies: %w", err)
	}
	return policies, nil
}
