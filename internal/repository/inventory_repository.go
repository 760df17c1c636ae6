package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// InventoryRepository reads the data inventory the platform syncs into this
// service: one row per (subject, category) recording the oldest item held.
// The erasure check needs the data's age, not the data itself.
type InventoryRepository struct {
	db *sqlx.DB
}

// NewInventoryRepository constructs the repository.
func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// OldestRecord returns the creation instant of the oldest item held for the
// subject in the given category. The second return is false when the platform
// holds no data there.
func (r *InventoryRepository) OldestRecord(ctx context.Context, subjectID, category string) (time.Time, bool, error) {
	const query = `SELECT oldest_created_at FROM data_inventory
	WHERE subject_id = $1 AND category = $2`
	var created time.Time
	err := r.db.GetContext(ctx, &created, query, subjectID, category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("find inventory record: %w", err)
	}
	return created, true, nil
}

// Upsert records or refreshes the oldest item instant for (subject, category).
func (r *InventoryRepository) Upsert(ctx context.Context, subjectID, category string, oldest time.Time) error {
	const query = `INSERT INTO data_inventory (subject_id, category, oldest_created_at, updated_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (subject_id, category) DO UPDATE SET
	 oldest_created_at = LEAST(data_inventory.oldest_created_at, EXCLUDED.oldest_created_at),
	 updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, subjectID, category, oldest); err != nil {
		return fmt.Errorf("upsert inventory record: %w", err)
	}
	return nil
}

// Delete removes the inventory row after the platform confirms erasure.
func (r *InventoryRepository) Delete(ctx context.Context, subjectID, category string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM data_inventory WHERE subject_id = $1 AND category = $2`,
		subjectID, category); err != nil {
		return fmt.Errorf("delete inventory record: %w", err)
	}
	return nil
}
