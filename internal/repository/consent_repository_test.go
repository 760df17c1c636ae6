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

func newConsentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestConsentRepositoryAppend(t *testing.T) {
	db, mock, cleanup := newConsentMock(t)
	defer cleanup()
	repo := NewConsentRepository(db)

	mock.ExpectExec("INSERT INTO consent_records").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.ConsentRecord{
		SubjectID:     "subject-1",
		Purpose:       "marketing",
		LawfulBasis:   models.BasisConsent,
		IsGiven:       true,
		Timestamp:     time.Now(),
		ConsentMethod: "checkbox",
	}
	err := repo.Append(context.Background(), record)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, int64(1), record.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsentRepositoryLatest(t *testing.T) {
	db, mock, cleanup := newConsentMock(t)
	defer cleanup()
	repo := NewConsentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "subject_id", "purpose", "lawful_basis", "is_given", "timestamp",
		"withdrawn_at", "consent_method", "consent_text", "metadata", "policy_version", "version"}).
		AddRow("consent-1", "subject-1", "marketing", "consent", true, now, nil, "checkbox", "", nil, "2026-01", 1)
	mock.ExpectQuery("SELECT (.+) FROM consent_records WHERE subject_id = \\$1 AND purpose = \\$2 ORDER BY timestamp DESC LIMIT 1").
		WithArgs("subject-1", "marketing").
		WillReturnRows(rows)

	record, err := repo.Latest(context.Background(), "subject-1", "marketing")
	require.NoError(t, err)
	assert.True(t, record.IsGiven)
	assert.Nil(t, record.WithdrawnAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsentRepositoryLatestNoHistory(t *testing.T) {
	db, mock, cleanup := newConsentMock(t)
	defer cleanup()
	repo := NewConsentRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM consent_records WHERE subject_id = \\$1 AND purpose = \\$2").
		WithArgs("subject-1", "analytics").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Latest(context.Background(), "subject-1", "analytics")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestConsentRepositoryWithdraw(t *testing.T) {
	db, mock, cleanup := newConsentMock(t)
	defer cleanup()
	repo := NewConsentRepository(db)

	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE consent_records SET withdrawn_at = $1, version = version + 1 WHERE id = $2 AND withdrawn_at IS NULL")).
		WithArgs(at, "consent-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Withdraw(context.Background(), "consent-1", at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsentRepositoryWithdrawAlreadyWithdrawn(t *testing.T) {
	db, mock, cleanup := newConsentMock(t)
	defer cleanup()
	repo := NewConsentRepository(db)

	at := time.Now()
	mock.ExpectExec("UPDATE consent_records SET withdrawn_at = (.+)").
		WithArgs(at, "consent-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM consent_records WHERE id = $1)")).
		WithArgs("consent-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.Withdraw(context.Background(), "consent-1", at)
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsentRepositoryWithdrawUnknownRecord(t *testing.T) {
	db, mock, cleanup := newConsentMock(t)
	defer cleanup()
	repo := NewConsentRepository(db)

	at := time.Now()
	mock.ExpectExec("UPDATE consent_records SET withdrawn_at = (.+)").
		WithArgs(at, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM consent_records WHERE id = $1)")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.Withdraw(context.Background(), "missing", at)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
