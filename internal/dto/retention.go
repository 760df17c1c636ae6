package dto

import (
	"encoding/json"
	"time"

	"github.com/sekurigo/privacy-api/internal/models"
)

// RegisterRetentionPolicyPayload upserts a policy row keyed by
// (dataType, category).
type RegisterRetentionPolicyPayload struct {
	DataType      string             `json:"dataType" validate:"required,max=100"`
	Category      string             `json:"category" validate:"required,max=100"`
	RetentionDays int                `json:"retentionDays" validate:"required"`
	LawfulBasis   models.LawfulBasis `json:"lawfulBasis" validate:"required"`
	Description   string             `json:"description" validate:"max=2000"`
	Active        *bool              `json:"active,omitempty"`
	Conditions    json.RawMessage    `json:"conditions,omitempty"`
}

// EvaluateRetentionQuery asks whether one dated item is deletable.
type EvaluateRetentionQuery struct {
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

// EvaluateRetentionBatchPayload evaluates a collection of dated items; the
// external sweep scheduler posts this and deletes whatever comes back
// eligible.
type EvaluateRetentionBatchPayload struct {
	Items []EvaluateRetentionQuery `json:"items" validate:"required,min=1"`
	// RecordDeletions marks the sweep as committed: an audit event is
	// emitted for every eligible item.
	RecordDeletions bool `json:"recordDeletions"`
}
