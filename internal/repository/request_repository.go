package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sekurigo/privacy-api/internal/models"
)

// ErrVersionConflict signals that a guarded update found a stale version.
// The row exists but someone else committed first.
var ErrVersionConflict = errors.New("stale entity version")

const requestColumns = `id, subject_id, right_type, status, description, data_categories, urgent,
       created_at, deadline, processed_at, completed_at, rejection_reason,
       request_payload, response_payload, processing_notes, version`

// RequestRepository persists data-subject requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request row.
func (r *RequestRepository) Create(ctx context.Context, request *models.DataSubjectRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.Version == 0 {
		request.Version = 1
	}
	const query = `INSERT INTO data_subject_requests
	(id, subject_id, right_type, status, description, data_categories, urgent,
	 created_at, deadline, processed_at, completed_at, rejection_reason,
	 request_payload, response_payload, processing_notes, version)
	VALUES (:id, :subject_id, :right_type, :status, :description, :data_categories, :urgent,
	 :created_at, :deadline, :processed_at, :completed_at, :rejection_reason,
	 :request_payload, :response_payload, :processing_notes, :version)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create data subject request: %w", err)
	}
	return nil
}

// FindByID fetches a request by identifier.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.DataSubjectRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM data_subject_requests WHERE id = $1`
	var request models.DataSubjectRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns requests matching the filter, newest first.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.DataSubjectRequest, int, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + requestColumns + ` FROM data_subject_requests`)

	conditions := make([]string, 0, 4)
	if filter.SubjectID != "" {
		args = append(args, filter.SubjectID)
		conditions = append(conditions, fmt.Sprintf("subject_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.RightType != "" {
		args = append(args, filter.RightType)
		conditions = append(conditions, fmt.Sprintf("right_type = $%d", len(args)))
	}
	if filter.Urgent != nil {
		args = append(args, *filter.Urgent)
		conditions = append(conditions, fmt.Sprintf("urgent = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}
	builder.WriteString(where)
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.DataSubjectRequest
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, 0, fmt.Errorf("list data subject requests: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM data_subject_requests" + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count data subject requests: %w", err)
	}
	return requests, total, nil
}

// TransitionParams groups the mutable columns written by a lifecycle edge.
type TransitionParams struct {
	ID              string
	Status          models.RequestStatus
	ProcessedAt     *time.Time
	CompletedAt     *time.Time
	RejectionReason *string
	ProcessingNotes string
	ResponsePayload []byte
	ExpectedVersion int64
}

// ApplyTransition persists a lifecycle edge conditioned on the version the
// caller loaded. Zero affected rows means either a concurrent commit
// (ErrVersionConflict) or an unknown id (sql.ErrNoRows).
func (r *RequestRepository) ApplyTransition(ctx context.Context, params TransitionParams) error {
	setParts := []string{
		"status = :status",
		"processing_notes = :processing_notes",
		"version = version + 1",
	}
	if params.ProcessedAt != nil {
		setParts = append(setParts, "processed_at = :processed_at")
	}
	if params.CompletedAt != nil {
		setParts = append(setParts, "completed_at = :completed_at")
	}
	if params.RejectionReason != nil {
		setParts = append(setParts, "rejection_reason = :rejection_reason")
	}
	if len(params.ResponsePayload) > 0 {
		setParts = append(setParts, "response_payload = :response_payload")
	}
	query := fmt.Sprintf(
		"UPDATE data_subject_requests SET %s WHERE id = :id AND version = :expected_version",
		strings.Join(setParts, ", "),
	)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               params.ID,
		"status":           params.Status,
		"processed_at":     params.ProcessedAt,
		"completed_at":     params.CompletedAt,
		"rejection_reason": params.RejectionReason,
		"processing_notes": params.ProcessingNotes,
		"response_payload": params.ResponsePayload,
		"expected_version": params.ExpectedVersion,
	})
	if err != nil {
		return fmt.Errorf("apply request transition: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transition rows: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := r.db.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM data_subject_requests WHERE id = $1)", params.ID); err != nil {
			return fmt.Errorf("check request existence: %w", err)
		}
		if exists {
			return ErrVersionConflict
		}
		return sql.ErrNoRows
	}
	return nil
}

// Stats aggregates open and overdue counts for the dashboard.
func (r *RequestRepository) Stats(ctx context.Context, now time.Time) (*models.RequestStats, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT right_type, status, deadline
		FROM data_subject_requests
		WHERE status NOT IN ($1, $2, $3)`,
		models.StatusCompleted, models.StatusRejected, models.StatusPartiallyCompleted)
	if err != nil {
		return nil, fmt.Errorf("query request stats: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	stats := &models.RequestStats{
		ByRightType: make(map[string]int),
		ByStatus:    make(map[string]int),
		GeneratedAt: now,
	}
	for rows.Next() {
		var rightType, status string
		var deadline time.Time
		if err := rows.Scan(&rightType, &status, &deadline); err != nil {
			return nil, fmt.Errorf("scan request stats: %w", err)
		}
		stats.Open++
		stats.ByRightType[rightType]++
		stats.ByStatus[status]++
		if now.After(deadline) {
			stats.Overdue++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request stats: %w", err)
	}
	return stats, nil
}
