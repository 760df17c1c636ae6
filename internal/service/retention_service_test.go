package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekurigo/privacy-api/internal/dto"
	"github.com/sekurigo/privacy-api/internal/models"
	"github.com/sekurigo/privacy-api/pkg/clock"
	appErrors "github.com/sekurigo/privacy-api/pkg/errors"
)

type retentionRepoStub struct {
	policies []models.RetentionPolicy
	upserted []*models.RetentionPolicy
}

func (r *retentionRepoStub) Upsert(ctx context.Context, policy *models.RetentionPolicy) error {
	r.upserted = append(r.upserted, policy)
	return nil
}

func (r *retentionRepoStub) FindActiveByCategory(ctx context.Context, category string) ([]models.RetentionPolicy, error) {
	var matching []models.RetentionPolicy
	for _, policy := range r.policies {
		if policy.Category == category && policy.Active {
			matching = append(matching, policy)
		}
	}
	return matching, nil
}

func (r *retentionRepoStub) List(ctx context.Context) ([]models.RetentionPolicy, error) {
	return r.policies, nil
}

func newRetentionServiceForTest(repo *retentionRepoStub, clk clock.Clock) *RetentionService {
	return NewRetentionService(repo, nil, clk, nil, nil, nil, NewRetryPolicy(1, time.Millisecond))
}

func TestEffectiveRetentionFloorGoverns(t *testing.T) {
	// A 2-year configured policy never shortens the 5-year statutory floor.
	repo := &retentionRepoStub{policies: []models.RetentionPolicy{
		{DataType: "contract", Category: models.CategoryLaborAgreement, RetentionDays: 730, Active: true},
	}}
	svc := newRetentionServiceForTest(repo, clock.NewFixed(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)))

	effective, err := svc.EffectiveRetention(context.Background(), models.CategoryLaborAgreement)
	require.NoError(t, err)
	assert.Equal(t, 5*365*24*time.Hour, effective)
}

func TestEffectiveRetentionPolicyExtendsFloor(t *testing.T) {
	repo := &retentionRepoStub{policies: []models.RetentionPolicy{
		{DataType: "diploma", Category: models.CategoryCertificates, RetentionDays: 10 * 365, Active: true},
	}}
	svc := newRetentionServiceForTest(repo, clock.NewFixed(time.Now()))

	effective, err := svc.EffectiveRetention(context.Background(), models.CategoryCertificates)
	require.NoError(t, err)
	assert.Equal(t, 10*365*24*time.Hour, effective)
}

func TestEvaluateBoundary(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	repo := &retentionRepoStub{policies: []models.RetentionPolicy{
		{DataType: "profile", Category: "preferences", RetentionDays: 365, Active: true},
	}}
	svc := newRetentionServiceForTest(repo, clk)

	created := now.Add(-365 * 24 * time.Hour)

	// Exactly at expiry the item is kept.
	evaluation, err := svc.Evaluate(context.Background(), "preferences", created)
	require.NoError(t, err)
	assert.Equal(t, now, evaluation.ExpiryDate)
	assert.False(t, evaluation.ShouldDelete)

	clk.Advance(time.Second)
	evaluation, err = svc.Evaluate(context.Background(), "preferences", created)
	require.NoError(t, err)
	assert.True(t, evaluation.ShouldDelete)
}

func TestEvaluateWithoutPolicyOrFloorNeverDeletes(t *testing.T) {
	svc := newRetentionServiceForTest(&retentionRepoStub{}, clock.NewFixed(time.Now()))

	evaluation, err := svc.Evaluate(context.Background(), "preferences", time.Now().Add(-20*365*24*time.Hour))
	require.NoError(t, err)
	assert.False(t, evaluation.ShouldDelete)
}

func TestRegisterRejectsNonPositivePeriod(t *testing.T) {
	svc := newRetentionServiceForTest(&retentionRepoStub{}, clock.NewFixed(time.Now()))

	_, err := svc.Register(context.Background(), dto.RegisterRetentionPolicyPayload{
		DataType:      "profile",
		Category:      "preferences",
		RetentionDays: -30,
		LawfulBasis:   models.BasisConsent,
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestRegisterRejectsUnknownBasis(t *testing.T) {
	svc := newRetentionServiceForTest(&retentionRepoStub{}, clock.NewFixed(time.Now()))

	_, err := svc.Register(context.Background(), dto.RegisterRetentionPolicyPayload{
		DataType:      "profile",
		Category:      "preferences",
		RetentionDays: 30,
		LawfulBasis:   "gut_feeling",
	})
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestRegisterNormalisesAndStores(t *testing.T) {
	repo := &retentionRepoStub{}
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	svc := newRetentionServiceForTest(repo, clock.NewFixed(now))

	policy, err := svc.Register(context.Background(), dto.RegisterRetentionPolicyPayload{
		DataType:      "  Diploma ",
		Category:      " Certificates ",
		RetentionDays: 3650,
		LawfulBasis:   models.BasisLegalObligation,
	})
	require.NoError(t, err)
	assert.Equal(t, "diploma", policy.DataType)
	assert.Equal(t, "certificates", policy.Category)
	assert.True(t, policy.Active)
	assert.Equal(t, now, policy.CreatedAt)
	require.Len(t, repo.upserted, 1)
}

func TestEvaluateBatchReturnsEligibleSubset(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	repo := &retentionRepoStub{policies: []models.RetentionPolicy{
		{DataType: "profile", Category: "preferences", RetentionDays: 365, Active: true},
	}}
	svc := newRetentionServiceForTest(repo, clock.NewFixed(now))

	eligible, err := svc.EvaluateBatch(context.Background(), dto.EvaluateRetentionBatchPayload{
		Items: []dto.EvaluateRetentionQuery{
			{Category: "preferences", CreatedAt: now.Add(-2 * 365 * 24 * time.Hour)},
			{Category: "preferences", CreatedAt: now.Add(-30 * 24 * time.Hour)},
			{Category: models.CategoryCertificates, CreatedAt: now.Add(-2 * 365 * 24 * time.Hour)},
		},
	}, "officer-1")
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "preferences", eligible[0].Category)
	assert.True(t, eligible[0].ShouldDelete)
}

func TestBlocksErasure(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	svc := newRetentionServiceForTest(&retentionRepoStub{}, clock.NewFixed(now))

	// Certificate data 2 years old sits inside the 7-year floor.
	created := now.Add(-2 * 365 * 24 * time.Hour)
	blocked, until, err := svc.BlocksErasure(context.Background(), models.CategoryCertificates, created)
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, created.Add(7*365*24*time.Hour), until)

	// Past the floor the same category no longer blocks.
	blocked, _, err = svc.BlocksErasure(context.Background(), models.CategoryCertificates, now.Add(-8*365*24*time.Hour))
	require.NoError(t, err)
	assert.False(t, blocked)

	// Categories without a floor never block, whatever policies exist.
	blocked, _, err = svc.BlocksErasure(context.Background(), "preferences", now.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, blocked)
}
