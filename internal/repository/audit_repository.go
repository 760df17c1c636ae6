package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sekurigo/privacy-api/internal/models"
)

// AuditRepository persists the compliance audit trail. The event_id primary
// key makes at-least-once delivery idempotent.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append stores an audit event. Redelivered events are dropped on conflict.
func (r *AuditRepository) Append(ctx context.Context, event *models.AuditEvent) error {
	const query = `INSERT INTO audit_events
	(event_id, subject_id, actor_id, action, resource, resource_id, old_values, new_values, occurred_at)
	VALUES (:event_id, :subject_id, :actor_id, :action, :resource, :resource_id, :old_values, :new_values, :occurred_at)
	ON CONFLICT (event_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// ListBySubject returns the audit trail for one data subject, newest first.
func (r *AuditRepository) ListBySubject(ctx context.Context, subjectID string) ([]models.AuditEvent, error) {
	const query = `SELECT event_id, subject_id, actor_id, action, resource, resource_id,
	       old_values, new_values, occurred_at
	FROM audit_events WHERE subject_id = $1 ORDER BY occurred_at DESC`
	var events []models.AuditEvent
	if err := r.db.SelectContext(ctx, &events, query, subjectID); err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}
