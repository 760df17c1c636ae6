package models

import "time"

// LawfulBasis enumerates the legal grounds permitting data processing.
// Codes are wire-stable.
type LawfulBasis string

const (
	BasisConsent             LawfulBasis = "consent"
	BasisContract            LawfulBasis = "contract"
	BasisLegalObligation     LawfulBasis = "legal_obligation"
	BasisVitalInterests      LawfulBasis = "vital_interests"
	BasisPublicTask          LawfulBasis = "public_task"
	BasisLegitimateInterests LawfulBasis = "legitimate_interests"
)

// KnownLawfulBasis reports whether the value belongs to the enumerated set.
func KnownLawfulBasis(b LawfulBasis) bool {
	switch b {
	case BasisConsent, BasisContract, BasisLegalObligation,
		BasisVitalInterests, BasisPublicTask, BasisLegitimateInterests:
		return true
	}
	return false
}

// ConsentRecord is one append-only entry in the consent ledger. Records are
// immutable after creation except withdrawn_at, which is written at most once.
// History is never deleted; it is load-bearing for audit.
type ConsentRecord struct {
	ID            string      `db:"id" json:"id"`
	SubjectID     string      `db:"subject_id" json:"subjectId"`
	Purpose       string      `db:"purpose" json:"purpose"`
	LawfulBasis   LawfulBasis `db:"lawful_basis" json:"lawfulBasis"`
	IsGiven       bool        `db:"is_given" json:"isGiven"`
	Timestamp     time.Time   `db:"timestamp" json:"timestamp"`
	WithdrawnAt   *time.Time  `db:"withdrawn_at" json:"withdrawnAt,omitempty"`
	ConsentMethod string      `db:"consent_method" json:"consentMethod"`
	ConsentText   *string     `db:"consent_text" json:"consentText,omitempty"`
	Metadata      []byte      `db:"metadata" json:"metadata,omitempty"`
	PolicyVersion string      `db:"policy_version" json:"policyVersion"`
	Version       int64       `db:"version" json:"version"`
}

// IsValid reports whether the consent currently authorises processing.
func (c *ConsentRecord) IsValid() bool {
	return c.IsGiven && c.WithdrawnAt == nil
}
