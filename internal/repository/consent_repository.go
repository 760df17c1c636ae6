package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sekurigo/privacy-api/internal/models"
)

const consentColumns = `id, subject_id, purpose, lawful_basis, is_given, timestamp, withdrawn_at,
       consent_method, consent_text, metadata, policy_version, version`

// ConsentRepository persists the append-only consent ledger. Rows are never
// updated except for the write-once withdrawn_at column, and never deleted.
type ConsentRepository struct {
	db *sqlx.DB
}

// NewConsentRepository constructs the repository.
func NewConsentRepository(db *sqlx.DB) *ConsentRepository {
	return &ConsentRepository{db: db}
}

// Append inserts a new immutable consent record.
func (r *ConsentRepository) Append(ctx context.Context, record *models.ConsentRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Version == 0 {
		record.Version = 1
	}
	const query = `INSERT INTO consent_records
	(id, subject_id, purpose, lawful_basis, is_given, timestamp, withdrawn_at,
	 consent_method, consent_text, metadata, policy_version, version)
	VALUES (:id, :subject_id, :purpose, :lawful_basis, :is_given, :timestamp, :withdrawn_at,
	 :consent_method, :consent_text, :metadata, :policy_version, :version)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("append consent record: %w", err)
	}
	return nil
}

// FindByID fetches a consent record by identifier.
func (r *ConsentRepository) FindByID(ctx context.Context, id string) (*models.ConsentRecord, error) {
	query := `SELECT ` + consentColumns + ` FROM consent_records WHERE id = $1`
	var record models.ConsentRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// Latest returns the most recent record for (subject, purpose), or
// sql.ErrNoRows when the subject never expressed a decision for the purpose.
func (r *ConsentRepository) Latest(ctx context.Context, subjectID, purpose string) (*models.ConsentRecord, error) {
	query := `SELECT ` + consentColumns + ` FROM consent_records
	WHERE subject_id = $1 AND purpose = $2
	ORDER BY timestamp DESC LIMIT 1`
	var record models.ConsentRecord
	if err := r.db.GetContext(ctx, &record, query, subjectID, purpose); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListBySubject returns the subject's full consent history, newest first.
func (r *ConsentRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.ConsentRecord, error) {
	query := `SELECT ` + consentColumns + ` FROM consent_records
	WHERE subject_id = $1 ORDER BY timestamp DESC`
	var records []models.ConsentRecord
	if err := r.db.SelectContext(ctx, &records, query, subjectID); err != nil {
		return nil, fmt.Errorf("list consent records: %w", err)
	}
	return records, nil
}

// Withdraw writes withdrawn_at exactly once. Zero affected rows means the
// record was already withdrawn (ErrVersionConflict) or does not exist
// (sql.ErrNoRows).
func (r *ConsentRepository) Withdraw(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE consent_records
		SET withdrawn_at = $1, version = version + 1
		WHERE id = $2 AND withdrawn_at IS NULL`, at, id)
	if err != nil {
		return fmt.Errorf("withdraw consent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check withdraw rows: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM consent_records WHERE id = $1)", id); err != nil {
			return fmt.Errorf("check consent existence: %w", err)
		}
		if exists {
			return ErrVersionConflict
		}
		return sql.ErrNoRows
	}
	return nil
}
