package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekurigo/privacy-api/internal/models"
)

func newRequestMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRequestRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRequestMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec("INSERT INTO data_subject_requests").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	now := time.Now()
	request := &models.DataSubjectRequest{
		SubjectID: "subject-1",
		RightType: models.RightAccess,
		Status:    models.StatusPending,
		CreatedAt: now,
		Deadline:  now.Add(models.RequestDeadline),
	}
	err := repo.Create(context.Background(), request)
	require.NoError(t, err)
	assert.NotEmpty(t, request.ID)
	assert.Equal(t, int64(1), request.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRequestMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "subject_id", "right_type", "status", "description", "data_categories", "urgent",
		"created_at", "deadline", "processed_at", "completed_at", "rejection_reason",
		"request_payload", "response_payload", "processing_notes", "version"}).
		AddRow("req-1", "subject-1", "erasure", "pending", "", "{certificates}", false,
			now, now.Add(models.RequestDeadline), nil, nil, nil, nil, nil, "", 1)
	mock.ExpectQuery("SELECT (.+) FROM data_subject_requests WHERE id = \\$1").
		WithArgs("req-1").
		WillReturnRows(rows)

	request, err := repo.FindByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, models.RightErasure, request.RightType)
	assert.Equal(t, []string{"certificates"}, []string(request.DataCategories))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRequestMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM data_subject_requests WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRequestRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newRequestMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "subject_id", "right_type", "status", "description", "data_categories", "urgent",
		"created_at", "deadline", "processed_at", "completed_at", "rejection_reason",
		"request_payload", "response_payload", "processing_notes", "version"}).
		AddRow("req-1", "subject-1", "access", "pending", "", "{}", true,
			now, now.Add(models.RequestDeadline), nil, nil, nil, nil, nil, "", 1)
	mock.ExpectQuery("SELECT (.+) FROM data_subject_requests WHERE subject_id = \\$1 AND status IN \\(\\$2\\) AND urgent = \\$3 ORDER BY created_at DESC LIMIT 50 OFFSET 0").
		WithArgs("subject-1", models.StatusPending, true).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM data_subject_requests WHERE subject_id = $1 AND status IN ($2) AND urgent = $3")).
		WithArgs("subject-1", models.StatusPending, true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	urgent := true
	requests, total, err := repo.List(context.Background(), models.RequestFilter{
		SubjectID: "subject-1",
		Status:    []models.RequestStatus{models.StatusPending},
		Urgent:    &urgent,
	})
	require.NoError(t, err)
	assert.Len(t, requests, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryApplyTransition(t *testing.T) {
	db, mock, cleanup := newRequestMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec("UPDATE data_subject_requests SET status = (.+) WHERE id = (.+) AND version = (.+)").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyTransition(context.Background(), TransitionParams{
		ID:              "req-1",
		Status:          models.StatusUnderReview,
		ExpectedVersion: 1,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryApplyTransitionVersionConflict(t *testing.T) {
	db, mock, cleanup := newRequestMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec("UPDATE data_subject_requests SET status = (.+)").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM data_subject_requests WHERE id = $1)")).
		WithArgs("req-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.ApplyTransition(context.Background(), TransitionParams{
		ID:              "req-1",
		Status:          models.StatusUnderReview,
		ExpectedVersion: 1,
	})
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryApplyTransitionUnknownID(t *testing.T) {
	db, mock, cleanup := newRequestMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec("UPDATE data_subject_requests SET status = (.+)").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM data_subject_requests WHERE id = $1)")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.ApplyTransition(context.Background(), TransitionParams{
		ID:              "missing",
		Status:          models.StatusUnderReview,
		ExpectedVersion: 1,
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRequestRepositoryStats(t *testing.T) {
	db, mock, cleanup := newRequestMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"right_type", "status", "deadline"}).
		AddRow("access", "pending", now.Add(24*time.Hour)).
		AddRow("erasure", "in_progress", now.Add(-time.Hour))
	mock.ExpectQuery("SELECT right_type, status, deadline").
		WithArgs(models.StatusCompleted, models.StatusRejected, models.StatusPartiallyCompleted).
		WillReturnRows(rows)

	stats, err := repo.Stats(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Open)
	assert.Equal(t, 1, stats.Overdue)
	assert.Equal(t, 1, stats.ByRightType["erasure"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
