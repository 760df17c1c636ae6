package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sekurigo/privacy-api/internal/dto"
	"github.com/sekurigo/privacy-api/internal/models"
	"github.com/sekurigo/privacy-api/pkg/clock"
	appErrors "github.com/sekurigo/privacy-api/pkg/errors"
)

type retentionStore interface {
	Upsert(ctx context.Context, policy *models.RetentionPolicy) error
	FindActiveByCategory(ctx context.Context, category string) ([]models.RetentionPolicy, error)
	List(ctx context.Context) ([]models.RetentionPolicy, error)
}

// RetentionService evaluates how long data must be kept. The effective period
// for a category is the longest configured active policy, never shorter than
// the statutory floor.
type RetentionService struct {
	repo      retentionStore
	audit     *AuditService
	clock     clock.Clock
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	retry     RetryPolicy
}

// NewRetentionService constructs the evaluator.
func NewRetentionService(repo retentionStore, audit *AuditService, clk clock.Clock, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, retry RetryPolicy) *RetentionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &RetentionService{
		repo:      repo,
		audit:     audit,
		clock:     clk,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		retry:     retry,
	}
}

// Register upserts a policy keyed by (dataType, category). A non-positive
// retention period is rejected; a period shorter than the statutory floor is
// stored as configured but never honoured below the floor.
func (s *RetentionService) Register(ctx context.Context, req dto.RegisterRetentionPolicyPayload) (*models.RetentionPolicy, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid retention policy payload")
	}
	if req.RetentionDays <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "retentionDays must be positive")
	}
	if !models.KnownLawfulBasis(req.LawfulBasis) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown lawful basis: "+string(req.LawfulBasis))
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	policy := &models.RetentionPolicy{
		DataType:      strings.ToLower(strings.TrimSpace(req.DataType)),
		Category:      strings.ToLower(strings.TrimSpace(req.Category)),
		RetentionDays: req.RetentionDays,
		LawfulBasis:   req.LawfulBasis,
		Description:   req.Description,
		Active:        active,
		CreatedAt:     s.clock.Now(),
		Conditions:    append([]byte(nil), req.Conditions...),
	}
	if floor := models.StatutoryFloor(policy.Category); floor > 0 && policy.Period() < floor {
		s.logger.Warn("configured retention below statutory floor, floor will govern",
			zap.String("category", policy.Category),
			zap.Int("retention_days", policy.RetentionDays))
	}

	err := s.retry.run(ctx, func() error {
		return s.repo.Upsert(ctx, policy)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to store retention policy")
	}
	return policy, nil
}

// List returns every configured policy.
func (s *RetentionService) List(ctx context.Context) ([]models.RetentionPolicy, error) {
	policies, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list retention policies")
	}
	return policies, nil
}

// EffectiveRetention resolves the period governing a category: the longest
// active configured policy, raised to the statutory floor when one applies.
// A category with neither policy nor floor yields zero.
func (s *RetentionService) EffectiveRetention(ctx context.Context, category string) (time.Duration, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	policies, err := s.repo.FindActiveByCategory(ctx, category)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load retention policies")
	}
	effective := models.StatutoryFloor(category)
	for i := range policies {
		if period := policies[i].Period(); period > effective {
			effective = period
		}
	}
	return effective, nil
}

// Evaluate decides whether one dated item is past its effective retention.
// shouldDelete is true strictly after the expiry instant.
func (s *RetentionService) Evaluate(ctx context.Context, category string, createdAt time.Time) (models.RetentionEvaluation, error) {
	effective, err := s.EffectiveRetention(ctx, category)
	if err != nil {
		return models.RetentionEvaluation{}, err
	}
	if s.metrics != nil {
		s.metrics.RecordRetentionEvaluation()
	}
	expiry := createdAt.Add(effective)
	return models.RetentionEvaluation{
		Category:     strings.ToLower(strings.TrimSpace(category)),
		CreatedAt:    createdAt,
		ExpiryDate:   expiry,
		ShouldDelete: effective > 0 && s.clock.Now().After(expiry),
	}, nil
}

// EvaluateBatch evaluates a collection of dated items and returns the subset
// eligible for deletion. With recordDeletions set, an audit event is emitted
// per eligible item so the external sweeper's actions leave a trail.
func (s *RetentionService) EvaluateBatch(ctx context.Context, req dto.EvaluateRetentionBatchPayload, actorID string) ([]models.RetentionEvaluation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid retention batch payload")
	}
	eligible := make([]models.RetentionEvaluation, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Category == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "every item needs a category")
		}
		evaluation, err := s.Evaluate(ctx, item.Category, item.CreatedAt)
		if err != nil {
			return nil, err
		}
		if !evaluation.ShouldDelete {
			continue
		}
		eligible = append(eligible, evaluation)
		if req.RecordDeletions {
			s.emitDeletion(ctx, evaluation, actorID)
		}
	}
	return eligible, nil
}

// BlocksErasure reports whether data in the category created at dataCreated
// is still inside a statutory floor. Only floors block erasure; configured
// policies without a floor never override a subject's erasure right.
func (s *RetentionService) BlocksErasure(ctx context.Context, category string, dataCreated time.Time) (bool, time.Time, error) {
	category = strings.ToLower(strings.TrimSpace(category))
	floor := models.StatutoryFloor(category)
	if floor == 0 {
		return false, time.Time{}, nil
	}
	effective, err := s.EffectiveRetention(ctx, category)
	if err != nil {
		return false, time.Time{}, err
	}
	until := dataCreated.Add(effective)
	if s.clock.Now().Before(until) {
		return true, until, nil
	}
	return false, time.Time{}, nil
}

func (s *RetentionService) emitDeletion(ctx context.Context, evaluation models.RetentionEvaluation, actorID string) {
	if s.audit == nil {
		return
	}
	values, err := json.Marshal(evaluation)
	if err != nil {
		s.logger.Warn("failed to encode retention evaluation", zap.Error(err))
		return
	}
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	s.audit.Emit(ctx, models.AuditEvent{
		ActorID:   actor,
		Action:    models.AuditActionRetentionDeletion,
		Resource:  "retention",
		NewValues: values,
	})
}
