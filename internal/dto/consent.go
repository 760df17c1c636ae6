package dto

import (
	"encoding/json"
	"time"

	"github.com/sekurigo/privacy-api/internal/models"
)

// RecordConsentPayload captures a consent decision at the point of collection.
type RecordConsentPayload struct {
	SubjectID     string             `json:"subjectId"`
	Purpose       string             `json:"purpose" validate:"required,max=200"`
	LawfulBasis   models.LawfulBasis `json:"lawfulBasis" validate:"required"`
	IsGiven       bool               `json:"isGiven"`
	ConsentMethod string             `json:"consentMethod" validate:"required,max=100"`
	ConsentText   *string            `json:"consentText,omitempty"`
	Metadata      json.RawMessage    `json:"metadata,omitempty"`
	PolicyVersion string             `json:"policyVersion" validate:"required,max=50"`
}

// WithdrawConsentPayload optionally pins the withdrawal instant; when absent
// the service clock is used.
type WithdrawConsentPayload struct {
	At *time.Time `json:"at,omitempty"`
}
