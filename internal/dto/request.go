package dto

import (
	"encoding/json"
	"time"

	"github.com/sekurigo/privacy-api/internal/models"
)

// SubmitRequestPayload is the body for submitting a data-subject request.
type SubmitRequestPayload struct {
	SubjectID      string           `json:"subjectId"`
	RightType      models.RightType `json:"rightType" validate:"required"`
	Description    string           `json:"description" validate:"max=2000"`
	DataCategories []string         `json:"dataCategories"`
	Urgent         bool             `json:"urgent"`
	RequestPayload json.RawMessage  `json:"requestPayload,omitempty"`
}

// TransitionRequestPayload carries a reviewer's lifecycle decision.
type TransitionRequestPayload struct {
	TargetStatus    models.RequestStatus `json:"targetStatus" validate:"required"`
	Notes           string               `json:"notes" validate:"max=2000"`
	RejectionReason string               `json:"rejectionReason,omitempty" validate:"max=2000"`
	ResponsePayload json.RawMessage      `json:"responsePayload,omitempty"`
}

// RequestQuery mirrors supported listing filters.
type RequestQuery struct {
	SubjectID string
	Status    []models.RequestStatus
	RightType models.RightType
	Urgent    *bool
	Page      int
	PageSize  int
}

// RequestSnapshot is the read model returned by every request operation.
type RequestSnapshot struct {
	ID              string               `json:"id"`
	SubjectID       string               `json:"subjectId"`
	RightType       models.RightType     `json:"rightType"`
	RightLabel      string               `json:"rightLabel"`
	Status          models.RequestStatus `json:"status"`
	StatusLabel     string               `json:"statusLabel"`
	Description     string               `json:"description"`
	DataCategories  []string             `json:"dataCategories"`
	Urgent          bool                 `json:"urgent"`
	CreatedAt       time.Time            `json:"createdAt"`
	Deadline        time.Time            `json:"deadline"`
	DaysRemaining   int                  `json:"daysRemaining"`
	Overdue         bool                 `json:"overdue"`
	ProcessedAt     *time.Time           `json:"processedAt,omitempty"`
	CompletedAt     *time.Time           `json:"completedAt,omitempty"`
	RejectionReason *string              `json:"rejectionReason,omitempty"`
	ProcessingNotes string               `json:"processingNotes"`
	Version         int64                `json:"version"`
}

// NewRequestSnapshot projects the entity plus clock-derived fields.
func NewRequestSnapshot(r *models.DataSubjectRequest, now time.Time) RequestSnapshot {
	return RequestSnapshot{
		ID:              r.ID,
		SubjectID:       r.SubjectID,
		RightType:       r.RightType,
		RightLabel:      RightTypeLabel(r.RightType),
		Status:          r.Status,
		StatusLabel:     StatusLabel(r.Status),
		Description:     r.Description,
		DataCategories:  append([]string{}, r.DataCategories...),
		Urgent:          r.Urgent,
		CreatedAt:       r.CreatedAt,
		Deadline:        r.Deadline,
		DaysRemaining:   r.DaysRemaining(now),
		Overdue:         r.IsOverdue(now),
		ProcessedAt:     r.ProcessedAt,
		CompletedAt:     r.CompletedAt,
		RejectionReason: r.RejectionReason,
		ProcessingNotes: r.ProcessingNotes,
		Version:         r.Version,
	}
}
