package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatutoryFloors(t *testing.T) {
	assert.Equal(t, 7*365*24*time.Hour, StatutoryFloor(CategoryCertificates))
	assert.Equal(t, 7*365*24*time.Hour, StatutoryFloor(CategoryNationalID))
	assert.Equal(t, 5*365*24*time.Hour, StatutoryFloor(CategoryLaborAgreement))
	assert.Equal(t, time.Duration(0), StatutoryFloor("preferences"))
	assert.Equal(t, time.Duration(0), StatutoryFloor(""))
}

func TestRetentionPolicyPeriod(t *testing.T) {
	policy := &RetentionPolicy{RetentionDays: 730}
	assert.Equal(t, 730*24*time.Hour, policy.Period())
}

func TestConsentRecordIsValid(t *testing.T) {
	now := time.Now()
	grant := &ConsentRecord{IsGiven: true}
	assert.True(t, grant.IsValid())

	withdrawn := &ConsentRecord{IsGiven: true, WithdrawnAt: &now}
	assert.False(t, withdrawn.IsValid())

	denial := &ConsentRecord{IsGiven: false}
	assert.False(t, denial.IsValid())
}
