package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekurigo/privacy-api/internal/dto"
	"github.com/sekurigo/privacy-api/internal/models"
	"github.com/sekurigo/privacy-api/internal/repository"
	"github.com/sekurigo/privacy-api/pkg/clock"
	appErrors "github.com/sekurigo/privacy-api/pkg/errors"
)

type requestRepoStub struct {
	requests      map[string]*models.DataSubjectRequest
	transitionErr error
	lastFilter    models.RequestFilter
}

func newRequestRepoStub() *requestRepoStub {
	return &requestRepoStub{requests: make(map[string]*models.DataSubjectRequest)}
}

func (r *requestRepoStub) Create(ctx context.Context, request *models.DataSubjectRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	clone := *request
	r.requests[request.ID] = &clone
	return nil
}

func (r *requestRepoStub) FindByID(ctx context.Context, id string) (*models.DataSubjectRequest, error) {
	if request, ok := r.requests[id]; ok {
		clone := *request
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (r *requestRepoStub) List(ctx context.Context, filter models.RequestFilter) ([]models.DataSubjectRequest, int, error) {
	r.lastFilter = filter
	var result []models.DataSubjectRequest
	for _, request := range r.requests {
		if filter.SubjectID != "" && request.SubjectID != filter.SubjectID {
			continue
		}
		result = append(result, *request)
	}
	return result, len(result), nil
}

func (r *requestRepoStub) ApplyTransition(ctx context.Context, params repository.TransitionParams) error {
	if r.transitionErr != nil {
		return r.transitionErr
	}
	request, ok := r.requests[params.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if request.Version != params.ExpectedVersion {
		return repository.ErrVersionConflict
	}
	request.Status = params.Status
	request.ProcessingNotes = params.ProcessingNotes
	if params.ProcessedAt != nil {
		request.ProcessedAt = params.ProcessedAt
	}
	if params.CompletedAt != nil {
		request.CompletedAt = params.CompletedAt
	}
	if params.RejectionReason != nil {
		request.RejectionReason = params.RejectionReason
	}
	if len(params.ResponsePayload) > 0 {
		request.ResponsePayload = params.ResponsePayload
	}
	request.Version++
	return nil
}

func (r *requestRepoStub) Stats(ctx context.Context, now time.Time) (*models.RequestStats, error) {
	stats := &models.RequestStats{
		ByRightType: make(map[string]int),
		ByStatus:    make(map[string]int),
		GeneratedAt: now,
	}
	for _, request := range r.requests {
		if request.Status.IsTerminal() {
			continue
		}
		stats.Open++
		stats.ByRightType[string(request.RightType)]++
		stats.ByStatus[string(request.Status)]++
		if now.After(request.Deadline) {
			stats.Overdue++
		}
	}
	return stats, nil
}

type inventoryStub struct {
	oldest map[string]time.Time
}

func (i *inventoryStub) OldestRecord(ctx context.Context, subjectID, category string) (time.Time, bool, error) {
	created, ok := i.oldest[category]
	return created, ok, nil
}

func officer() *models.JWTClaims {
	return &models.JWTClaims{UserID: "officer-1", Role: models.RoleComplianceOfficer}
}

func subject(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleSubject}
}

func newRequestServiceForTest(repo *requestRepoStub, clk clock.Clock, inventory DataInventory) *RequestService {
	retention := newRetentionServiceForTest(&retentionRepoStub{}, clk)
	return NewRequestService(repo, retention, inventory, nil, nil, clk, nil, nil, nil, NewRetryPolicy(1, time.Millisecond))
}

func TestSubmitFixesDeadlineAtCreation(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := newRequestRepoStub()
	svc := newRequestServiceForTest(repo, clock.NewFixed(now), &inventoryStub{})

	snapshot, err := svc.Submit(context.Background(), dto.SubmitRequestPayload{
		SubjectID: "subject-1",
		RightType: models.RightAccess,
	}, officer())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, snapshot.Status)
	assert.Equal(t, now, snapshot.CreatedAt)
	assert.Equal(t, now.Add(30*24*time.Hour), snapshot.Deadline)
	assert.Equal(t, 30, snapshot.DaysRemaining)
	assert.False(t, snapshot.Overdue)
	assert.Equal(t, int64(1), snapshot.Version)
}

func TestSubmitRejectsUnknownRightType(t *testing.T) {
	svc := newRequestServiceForTest(newRequestRepoStub(), clock.NewFixed(time.Now()), &inventoryStub{})

	_, err := svc.Submit(context.Background(), dto.SubmitRequestPayload{
		SubjectID: "subject-1",
		RightType: "deletion",
	}, officer())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))
}

func TestSubmitSubjectAlwaysFilesForSelf(t *testing.T) {
	repo := newRequestRepoStub()
	svc := newRequestServiceForTest(repo, clock.NewFixed(time.Now()), &inventoryStub{})

	snapshot, err := svc.Submit(context.Background(), dto.SubmitRequestPayload{
		SubjectID: "someone-else",
		RightType: models.RightAccess,
	}, subject("subject-7"))
	require.NoError(t, err)
	assert.Equal(t, "subject-7", snapshot.SubjectID)
}

func seedRequest(repo *requestRepoStub, status models.RequestStatus, rightType models.RightType, now time.Time) *models.DataSubjectRequest {
	request := &models.DataSubjectRequest{
		ID:        uuid.NewString(),
		SubjectID: "subject-1",
		RightType: rightType,
		Status:    status,
		CreatedAt: now,
		Deadline:  now.Add(models.RequestDeadline),
		Version:   1,
	}
	repo.requests[request.ID] = request
	return request
}

func TestTransitionReviewPipeline(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	repo := newRequestRepoStub()
	svc := newRequestServiceForTest(repo, clk, &inventoryStub{})
	request := seedRequest(repo, models.StatusPending, models.RightAccess, now)

	snapshot, err := svc.Transition(context.Background(), request.ID, dto.TransitionRequestPayload{
		TargetStatus: models.StatusUnderReview,
	}, officer())
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnderReview, snapshot.Status)
	assert.Nil(t, snapshot.ProcessedAt)
	assert.Equal(t, int64(2), snapshot.Version)

	clk.Advance(time.Hour)
	snapshot, err = svc.Transition(context.Background(), request.ID, dto.TransitionRequestPayload{
		TargetStatus: models.StatusInProgress,
	}, officer())
	require.NoError(t, err)
	require.NotNil(t, snapshot.ProcessedAt)
	assert.Equal(t, clk.Now(), *snapshot.ProcessedAt)
	assert.Nil(t, snapshot.CompletedAt)

	clk.Advance(time.Hour)
	snapshot, err = svc.Transition(context.Background(), request.ID, dto.TransitionRequestPayload{
		TargetStatus: models.StatusCompleted,
	}, officer())
	require.NoError(t, err)
	require.NotNil(t, snapshot.CompletedAt)
	assert.Equal(t, clk.Now(), *snapshot.CompletedAt)

	// The deadline never moved during the pipeline.
	assert.Equal(t, now.Add(30*24*time.Hour), snapshot.Deadline)
}

func TestTransitionIllegalEdgeLeavesRequestUntouched(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := newRequestRepoStub()
	svc := newRequestServiceForTest(repo, clock.NewFixed(now), &inventoryStub{})
	request := seedRequest(repo, models.StatusPending, models.RightAccess, now)

	_, err := svc.Transition(context.Background(), request.ID, dto.TransitionRequestPayload{
		TargetStatus: models.StatusCompleted,
	}, officer())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidStateTransition))

	stored := repo.requests[request.ID]
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, int64(1), stored.Version)
}

func TestTransitionFromTerminalStateRejected(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := newRequestRepoStub()
	svc := newRequestServiceForTest(repo, clock.NewFixed(now), &inventoryStub{})
	request := seedRequest(repo, models.StatusCompleted, models.RightAccess, now)

	_, err := svc.Transition(context.Background(), request.ID, dto.TransitionRequestPayload{
		TargetStatus: models.StatusInProgress,
	}, officer())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidStateTransition))
}

func TestTransitionRejectionRequiresReason(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := newRequestRepoStub()
	svc := newRequestServiceForTest(repo, clock.NewFixed(now), &inventoryStub{})
	request := seedRequest(repo, models.StatusUnderReview, models.RightAccess, now)

	_, err := svc.Transition(context.Background(), request.ID, dto.TransitionRequestPayload{
		TargetStatus: models.StatusRejected,
	}, officer())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrValidation))

	snapshot, err := svc.Transition(context.Background(), request.ID, dto.TransitionRequestPayload{
		TargetStatus:    models.StatusRejected,
		RejectionReason: "identity could not be verified",
	}, officer())
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, snapshot.Status)
	require.NotNil(t, snapshot.RejectionReason)
}

func TestErasureCompletionDowngradedByStatutoryFloor(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := newRequestRepoStub()
	inventory := &inventoryStub{oldest: map[string]time.Time{
		models.CategoryCertificates: now.Add(-2 * 365 * 24 * time.Hour),
		"preferences":               now.Add(-2 * 365 * 24 * time.Hour),
	}}
	svc := newRequestServiceForTest(repo, clock.NewFixed(now), inventory)

	request := seedRequest(repo, models.StatusInProgress, models.RightErasure, now)
	request.DataCategories = []string{models.CategoryCertificates, "preferences"}

	snapshot, err := svc.Transition(context.Background(), request.ID, dto.TransitionRequestPayload{
		TargetStatus: models.StatusCompleted,
	}, officer())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartiallyCompleted, snapshot.Status)
	require.NotNil(t, snapshot.CompletedAt)
	require.NotNil(t, snapshot.RejectionReason)
	assert.Contains(t, *snapshot.RejectionReason, models.CategoryCertificates)
	assert.NotContains(t, *snapshot.RejectionReason, "preferences")
}

func TestErasureCompletesWhenNoFlooredDataHeld(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := newRequestRepoStub()
	// Certificates requested but none held, only unprotected data remains.
	inventory := &inventoryStub{oldest: map[string]time.Time{
		"preferences": now.Add(-time.Hour),
	}}
	svc := newRequestServiceForTest(repo, clock.NewFixed(now), inventory)

	request := seedRequest(repo, models.StatusInProgress, models.RightErasure, now)
	request.DataCategories = []string{models.CategoryCertificates, "preferences"}

	snapshot, err := svc.Transition(context.Background(), request.ID, dto.TransitionRequestPayload{
		TargetStatus: models.StatusCompleted,
	}, officer())
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, snapshot.Status)
	assert.Nil(t, snapshot.RejectionReason)
}

func TestTransitionConcurrencyConflict(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := newRequestRepoStub()
	svc := newRequestServiceForTest(repo, clock.NewFixed(now), &inventoryStub{})
	request := seedRequest(repo, models.StatusPending, models.RightAccess, now)

	// Another reviewer committed between load and write.
	repo.transitionErr = repository.ErrVersionConflict

	_, err := svc.Transition(context.Background(), request.ID, dto.TransitionRequestPayload{
		TargetStatus: models.StatusUnderReview,
	}, officer())
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConcurrencyConflict))
}

func TestTransitionRequiresReviewerRole(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := newRequestRepoStub()
	svc := newRequestServiceForTest(repo, clock.NewFixed(now), &inventoryStub{})
	request := seedRequest(repo, models.StatusPending, models.RightAccess, now)

	_, err := svc.Transition(context.Background(), request.ID, dto.TransitionRequestPayload{
		TargetStatus: models.StatusUnderReview,
	}, subject("subject-1"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))
}

func TestGetEnforcesSubjectScope(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := newRequestRepoStub()
	svc := newRequestServiceForTest(repo, clock.NewFixed(now), &inventoryStub{})
	request := seedRequest(repo, models.StatusPending, models.RightAccess, now)

	_, err := svc.Get(context.Background(), request.ID, subject("intruder"))
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrForbidden))

	snapshot, err := svc.Get(context.Background(), request.ID, subject("subject-1"))
	require.NoError(t, err)
	assert.Equal(t, request.ID, snapshot.ID)
}

func TestListForcesSubjectFilter(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := newRequestRepoStub()
	svc := newRequestServiceForTest(repo, clock.NewFixed(now), &inventoryStub{})
	seedRequest(repo, models.StatusPending, models.RightAccess, now)

	_, _, err := svc.List(context.Background(), dto.RequestQuery{SubjectID: "someone-else"}, subject("subject-1"))
	require.NoError(t, err)
	assert.Equal(t, "subject-1", repo.lastFilter.SubjectID)
}

func TestOverdueVisibleInSnapshot(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	repo := newRequestRepoStub()
	svc := newRequestServiceForTest(repo, clk, &inventoryStub{})
	request := seedRequest(repo, models.StatusPending, models.RightAccess, now)

	clk.Set(request.Deadline)
	snapshot, err := svc.Get(context.Background(), request.ID, officer())
	require.NoError(t, err)
	assert.False(t, snapshot.Overdue)
	assert.Equal(t, 0, snapshot.DaysRemaining)

	clk.Advance(time.Second)
	snapshot, err = svc.Get(context.Background(), request.ID, officer())
	require.NoError(t, err)
	assert.True(t, snapshot.Overdue)
}

func TestDashboardCountsOpenAndOverdue(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	repo := newRequestRepoStub()
	svc := newRequestServiceForTest(repo, clk, &inventoryStub{})

	seedRequest(repo, models.StatusPending, models.RightAccess, now)
	overdue := seedRequest(repo, models.StatusUnderReview, models.RightErasure, now.Add(-40*24*time.Hour))
	overdue.Deadline = overdue.CreatedAt.Add(models.RequestDeadline)
	seedRequest(repo, models.StatusCompleted, models.RightAccess, now)

	stats, err := svc.Dashboard(context.Background(), officer())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Open)
	assert.Equal(t, 1, stats.Overdue)
	assert.Equal(t, 1, stats.ByRightType[string(models.RightErasure)])
}
