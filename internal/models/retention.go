package models

import "time"

// Data categories carrying a statutory retention floor. Floors are legal
// minimums fixed in law, not mutable policy rows; configured policies may
// extend them but never shorten them.
const (
	CategoryCertificates   = "certificates"
	CategoryNationalID     = "national_id"
	CategoryLaborAgreement = "labor_agreement"
)

const day = 24 * time.Hour

// Statutory retention floors per category.
const (
	CertificateRetentionFloor    = 7 * 365 * day
	NationalIDRetentionFloor     = 7 * 365 * day
	LaborAgreementRetentionFloor = 5 * 365 * day
)

// StatutoryFloor returns the legally mandated minimum retention for the
// category, or zero when no floor applies.
func StatutoryFloor(category string) time.Duration {
	switch category {
	case CategoryCertificates:
		return CertificateRetentionFloor
	case CategoryNationalID:
		return NationalIDRetentionFloor
	case CategoryLaborAgreement:
		return LaborAgreementRetentionFloor
	}
	return 0
}

// RetentionPolicy configures how long data of a (dataType, category) pair is
// kept. RetentionDays is the configured period; the effective period is
// max(configured, statutory floor).
type RetentionPolicy struct {
	DataType      string      `db:"data_type" json:"dataType"`
	Category      string      `db:"category" json:"category"`
	RetentionDays int         `db:"retention_days" json:"retentionDays"`
	LawfulBasis   LawfulBasis `db:"lawful_basis" json:"lawfulBasis"`
	Description   string      `db:"description" json:"description"`
	Active        bool        `db:"active" json:"active"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
	Conditions    []byte      `db:"conditions" json:"conditions,omitempty"`
}

// Period converts the configured day count to a duration.
func (p *RetentionPolicy) Period() time.Duration {
	return time.Duration(p.RetentionDays) * day
}

// RetentionEvaluation is the result of evaluating one (category, creation
// date) pair against the effective retention period.
type RetentionEvaluation struct {
	Category     string    `json:"category"`
	CreatedAt    time.Time `json:"createdAt"`
	ExpiryDate   time.Time `json:"expiryDate"`
	ShouldDelete bool      `json:"shouldDelete"`
}
