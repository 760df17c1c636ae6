package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
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

type requestStore interface {
	Create(ctx context.Context, request *models.DataSubjectRequest) error
	FindByID(ctx context.Context, id string) (*models.DataSubjectRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.DataSubjectRequest, int, error)
	ApplyTransition(ctx context.Context, params repository.TransitionParams) error
	Stats(ctx context.Context, now time.Time) (*models.RequestStats, error)
}

// DataInventory resolves what the platform actually holds for a subject. The
// erasure check needs the age of the oldest item per category, nothing more.
type DataInventory interface {
	OldestRecord(ctx context.Context, subjectID, category string) (time.Time, bool, error)
}

type erasureEvaluator interface {
	BlocksErasure(ctx context.Context, category string, dataCreated time.Time) (bool, time.Time, error)
}

// RequestService drives the data-subject request lifecycle: a linear review
// pipeline with a fixed statutory deadline and optimistic concurrency on
// every transition.
type RequestService struct {
	repo      requestStore
	retention erasureEvaluator
	inventory DataInventory
	audit     *AuditService
	cache     *CacheService
	clock     clock.Clock
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	retry     RetryPolicy
}

// NewRequestService constructs the lifecycle manager.
func NewRequestService(repo requestStore, retention erasureEvaluator, inventory DataInventory, audit *AuditService, cache *CacheService, clk clock.Clock, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, retry RetryPolicy) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &RequestService{
		repo:      repo,
		retention: retention,
		inventory: inventory,
		audit:     audit,
		cache:     cache,
		clock:     clk,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		retry:     retry,
	}
}

// Submit registers a new request. The deadline is fixed at creation time plus
// the statutory window and never moves afterwards.
func (s *RequestService) Submit(ctx context.Context, req dto.SubmitRequestPayload, actor *models.JWTClaims) (*dto.RequestSnapshot, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if !models.KnownRightType(req.RightType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown right type: "+string(req.RightType))
	}

	subjectID := strings.TrimSpace(req.SubjectID)
	if actor.Role == models.RoleSubject {
		// Subjects always file for themselves.
		subjectID = actor.UserID
	}
	if subjectID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "subjectId is required")
	}

	now := s.clock.Now()
	request := &models.DataSubjectRequest{
		SubjectID:      subjectID,
		RightType:      req.RightType,
		Status:         models.StatusPending,
		Description:    strings.TrimSpace(req.Description),
		DataCategories: normalizeCategories(req.DataCategories),
		Urgent:         req.Urgent,
		CreatedAt:      now,
		Deadline:       now.Add(models.RequestDeadline),
		RequestPayload: append([]byte(nil), req.RequestPayload...),
		Version:        1,
	}
	err := s.retry.run(ctx, func() error {
		return s.repo.Create(ctx, request)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to create request")
	}

	s.emitAudit(ctx, request, actor.UserID, models.AuditActionRequestCreated, nil)
	s.invalidateDashboard(ctx)

	snapshot := dto.NewRequestSnapshot(request, now)
	return &snapshot, nil
}

// Get returns a request enforcing subject scoping.
func (s *RequestService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.RequestSnapshot, error) {
	request, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	snapshot := dto.NewRequestSnapshot(request, s.clock.Now())
	return &snapshot, nil
}

// List returns requests matching the query. Subjects only ever see their own.
func (s *RequestService) List(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]dto.RequestSnapshot, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.RequestFilter{
		SubjectID: query.SubjectID,
		Status:    query.Status,
		RightType: query.RightType,
		Urgent:    query.Urgent,
	}
	if actor.Role == models.RoleSubject {
		filter.SubjectID = actor.UserID
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	requests, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list requests")
	}

	now := s.clock.Now()
	snapshots := make([]dto.RequestSnapshot, 0, len(requests))
	for i := range requests {
		snapshots = append(snapshots, dto.NewRequestSnapshot(&requests[i], now))
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	return snapshots, pagination, nil
}

// Transition applies a reviewer's lifecycle decision. The write is guarded by
// the version the reviewer loaded; a concurrent commit surfaces as a conflict
// rather than a lost update.
func (s *RequestService) Transition(ctx context.Context, id string, req dto.TransitionRequestPayload, actor *models.JWTClaims) (*dto.RequestSnapshot, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.CanManageRequests() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}
	target := req.TargetStatus
	if !models.KnownRequestStatus(target) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status: "+string(target))
	}

	request, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(request.Status, target) {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrInvalidStateTransition,
				fmt.Sprintf("cannot transition from %s to %s", request.Status, target)),
			map[string]interface{}{
				"currentStatus": string(request.Status),
				"targetStatus":  string(target),
			})
	}
	if target == models.StatusRejected && strings.TrimSpace(req.RejectionReason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejectionReason is required when rejecting")
	}

	now := s.clock.Now()
	oldStatus := request.Status
	rejectionReason := optionalTrimmed(req.RejectionReason)

	// Erasure cannot complete fully while any requested category sits
	// inside an unexpired statutory floor; the outcome degrades to a
	// partial completion that names the blocker.
	if request.RightType == models.RightErasure && target == models.StatusCompleted {
		blocked, reason, err := s.erasureBlockers(ctx, request)
		if err != nil {
			return nil, err
		}
		if blocked {
			target = models.StatusPartiallyCompleted
			rejectionReason = &reason
		}
	}

	params := repository.TransitionParams{
		ID:              request.ID,
		Status:          target,
		RejectionReason: rejectionReason,
		ProcessingNotes: mergeNotes(request.ProcessingNotes, req.Notes),
		ResponsePayload: append([]byte(nil), req.ResponsePayload...),
		ExpectedVersion: request.Version,
	}
	if target == models.StatusInProgress && request.ProcessedAt == nil {
		params.ProcessedAt = &now
	}
	if target.IsTerminal() {
		params.CompletedAt = &now
	}

	err = s.retry.run(ctx, func() error {
		return s.repo.ApplyTransition(ctx, params)
	})
	if err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, appErrors.WithDetails(
				appErrors.Clone(appErrors.ErrConcurrencyConflict, "request was modified concurrently, reload and retry"),
				map[string]interface{}{"expectedVersion": request.Version})
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to apply transition")
	}

	request.Status = target
	request.ProcessingNotes = params.ProcessingNotes
	request.RejectionReason = params.RejectionReason
	if params.ProcessedAt != nil {
		request.ProcessedAt = params.ProcessedAt
	}
	if params.CompletedAt != nil {
		request.CompletedAt = params.CompletedAt
	}
	if len(params.ResponsePayload) > 0 {
		request.ResponsePayload = params.ResponsePayload
	}
	request.Version++

	if s.metrics != nil {
		s.metrics.RecordTransition(string(request.RightType), string(target))
	}
	oldValues, _ := json.Marshal(map[string]string{"status": string(oldStatus)})
	s.emitAudit(ctx, request, actor.UserID, models.AuditActionRequestTransition, oldValues)
	s.invalidateDashboard(ctx)

	snapshot := dto.NewRequestSnapshot(request, now)
	return &snapshot, nil
}

// Dashboard aggregates open and overdue counts, cached briefly because the
// compliance dashboard polls it.
func (s *RequestService) Dashboard(ctx context.Context, actor *models.JWTClaims) (*models.RequestStats, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.CanManageRequests() {
		return nil, appErrors.ErrForbidden
	}

	var cached models.RequestStats
	if s.cache != nil {
		if hit, _ := s.cache.Get(ctx, CacheKeyDashboard, &cached); hit {
			return &cached, nil
		}
	}

	stats, err := s.repo.Stats(ctx, s.clock.Now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to aggregate request stats")
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, CacheKeyDashboard, stats, 0)
	}
	return stats, nil
}

func (s *RequestService) load(ctx context.Context, id string, actor *models.JWTClaims) (*models.DataSubjectRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request id is required")
	}
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load request")
	}
	if actor.Role == models.RoleSubject && request.SubjectID != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return request, nil
}

// erasureBlockers inspects every requested category against the inventory and
// the statutory floors. Categories with no held data never block.
func (s *RequestService) erasureBlockers(ctx context.Context, request *models.DataSubjectRequest) (bool, string, error) {
	if s.retention == nil || s.inventory == nil {
		return false, "", nil
	}
	blockers := make([]string, 0, len(request.DataCategories))
	for _, category := range request.DataCategories {
		created, held, err := s.inventory.OldestRecord(ctx, request.SubjectID, category)
		if err != nil {
			return false, "", appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to inspect data inventory")
		}
		if !held {
			continue
		}
		blocked, until, err := s.retention.BlocksErasure(ctx, category, created)
		if err != nil {
			return false, "", err
		}
		if blocked {
			blockers = append(blockers,
				fmt.Sprintf("%s retained until %s under statutory retention", category, until.Format("2006-01-02")))
		}
	}
	if len(blockers) == 0 {
		return false, "", nil
	}
	return true, strings.Join(blockers, "; "), nil
}

func (s *RequestService) emitAudit(ctx context.Context, request *models.DataSubjectRequest, actorID, action string, oldValues []byte) {
	if s.audit == nil {
		return
	}
	newValues, err := json.Marshal(request)
	if err != nil {
		s.logger.Warn("failed to encode request for audit", zap.Error(err))
		return
	}
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	s.audit.Emit(ctx, models.AuditEvent{
		SubjectID:  &request.SubjectID,
		ActorID:    actor,
		Action:     action,
		Resource:   "data_subject_request",
		ResourceID: &request.ID,
		OldValues:  oldValues,
		NewValues:  newValues,
	})
}

func (s *RequestService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, CachePatternDashboard); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func normalizeCategories(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	result := make([]string, 0, len(raw))
	for _, category := range raw {
		category = strings.ToLower(strings.TrimSpace(category))
		if category == "" {
			continue
		}
		if _, dup := seen[category]; dup {
			continue
		}
		seen[category] = struct{}{}
		result = append(result, category)
	}
	return result
}

func mergeNotes(existing, addition string) string {
	addition = strings.TrimSpace(addition)
	if addition == "" {
		return existing
	}
	if existing == "" {
		return addition
	}
	return existing + "\n" + addition
}

func optionalTrimmed(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
