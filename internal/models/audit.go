package models

import "time"

// AuditAction constants represent compliance events to be recorded.
const (
	AuditActionRequestCreated    = "REQUEST_CREATED"
	AuditActionRequestTransition = "REQUEST_TRANSITION"
	AuditActionConsentRecorded   = "CONSENT_RECORDED"
	AuditActionConsentWithdrawn  = "CONSENT_WITHDRAWN"
	AuditActionRetentionDeletion = "RETENTION_DELETION"
)

// AuditEvent is one entry in the compliance audit trail. EventID is unique so
// downstream sinks can deduplicate at-least-once delivery.
type AuditEvent struct {
	EventID    string    `db:"event_id" json:"eventId"`
	SubjectID  *string   `db:"subject_id" json:"subjectId,omitempty"`
	ActorID    *string   `db:"actor_id" json:"actorId,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resourceId,omitempty"`
	OldValues  []byte    `db:"old_values" json:"oldValues,omitempty"`
	NewValues  []byte    `db:"new_values" json:"newValues,omitempty"`
	OccurredAt time.Time `db:"occurred_at" json:"occurredAt"`
}
