package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sekurigo/privacy-api/internal/dto"
	"github.com/sekurigo/privacy-api/internal/models"
	"github.com/sekurigo/privacy-api/internal/repository"
	"github.com/sekurigo/privacy-api/pkg/clock"
	appErrors "github.com/sekurigo/privacy-api/pkg/errors"
)

type consentStore interface {
	Append(ctx context.Context, record *models.ConsentRecord) error
	FindByID(ctx context.Context, id string) (*models.ConsentRecord, error)
	Latest(ctx context.Context, subjectID, purpose string) (*models.ConsentRecord, error)
	ListBySubject(ctx context.Context, subjectID string) ([]models.ConsentRecord, error)
	Withdraw(ctx context.Context, id string, at time.Time) error
}

// ConsentService owns the append-only consent ledger. Decisions are recorded
// as new entries; withdrawal writes the single mutable column exactly once.
type ConsentService struct {
	repo      consentStore
	audit     *AuditService
	clock     clock.Clock
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	retry     RetryPolicy
}

// NewConsentService constructs the ledger service.
func NewConsentService(repo consentStore, audit *AuditService, clk clock.Clock, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, retry RetryPolicy) *ConsentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &ConsentService{
		repo:      repo,
		audit:     audit,
		clock:     clk,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		retry:     retry,
	}
}

// Record appends a consent decision. Both grants and denials are recorded;
// the ledger is evidence either way.
func (s *ConsentService) Record(ctx context.Context, req dto.RecordConsentPayload) (*models.ConsentRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid consent payload")
	}
	if strings.TrimSpace(req.SubjectID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subjectId is required")
	}
	if !models.KnownLawfulBasis(req.LawfulBasis) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown lawful basis: "+string(req.LawfulBasis))
	}

	record := &models.ConsentRecord{
		SubjectID:     strings.TrimSpace(req.SubjectID),
		Purpose:       strings.TrimSpace(req.Purpose),
		LawfulBasis:   req.LawfulBasis,
		IsGiven:       req.IsGiven,
		Timestamp:     s.clock.Now(),
		ConsentMethod: req.ConsentMethod,
		ConsentText:   req.ConsentText,
		Metadata:      append([]byte(nil), req.Metadata...),
		PolicyVersion: req.PolicyVersion,
	}
	err := s.retry.run(ctx, func() error {
		return s.repo.Append(ctx, record)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to append consent record")
	}
	if s.metrics != nil {
		s.metrics.RecordConsentWrite("record")
	}
	s.emitAudit(ctx, record, models.AuditActionConsentRecorded)
	return record, nil
}

// Withdraw revokes an existing consent. The withdrawal instant defaults to
// the service clock; it is written at most once and a second call conflicts.
func (s *ConsentService) Withdraw(ctx context.Context, id string, req dto.WithdrawConsentPayload) (*models.ConsentRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "consent id is required")
	}
	at := s.clock.Now()
	if req.At != nil {
		at = req.At.UTC()
	}

	err := s.retry.run(ctx, func() error {
		return s.repo.Withdraw(ctx, id, at)
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyWithdrawn, "consent record was already withdrawn")
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "consent record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to withdraw consent")
	}
	if s.metrics != nil {
		s.metrics.RecordConsentWrite("withdraw")
	}

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to reload consent record")
	}
	s.emitAudit(ctx, record, models.AuditActionConsentWithdrawn)
	return record, nil
}

// Latest returns the most recent record for (subject, purpose).
func (s *ConsentService) Latest(ctx context.Context, subjectID, purpose string) (*models.ConsentRecord, error) {
	if subjectID == "" || purpose == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subjectId and purpose are required")
	}
	record, err := s.repo.Latest(ctx, subjectID, purpose)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no consent recorded for this purpose")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load consent record")
	}
	return record, nil
}

// IsValid reports whether processing is currently authorised for
// (subject, purpose): the latest entry must be a non-withdrawn grant.
// A subject with no history yields false, not an error.
func (s *ConsentService) IsValid(ctx context.Context, subjectID, purpose string) (bool, error) {
	record, err := s.Latest(ctx, subjectID, purpose)
	if err != nil {
		if appErrors.HasCode(err, appErrors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return record.IsValid(), nil
}

// History returns the subject's full consent trail, newest first.
func (s *ConsentService) History(ctx context.Context, subjectID string) ([]models.ConsentRecord, error) {
	if subjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subjectId is required")
	}
	records, err := s.repo.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list consent history")
	}
	return records, nil
}

func (s *ConsentService) emitAudit(ctx context.Context, record *models.ConsentRecord, action string) {
	if s.audit == nil || record == nil {
		return
	}
	values, err := json.Marshal(record)
	if err != nil {
		s.logger.Warn("failed to encode consent record for audit", zap.Error(err))
		return
	}
	s.audit.Emit(ctx, models.AuditEvent{
		SubjectID:  &record.SubjectID,
		Action:     action,
		Resource:   "consent",
		ResourceID: &record.ID,
		NewValues:  values,
	})
}
