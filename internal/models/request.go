package models

import (
	"math"
	"time"

	"github.com/lib/pq"
)

// RightType enumerates the privacy rights a data subject can exercise.
// Values are wire-stable and must round-trip through persistence unchanged.
type RightType string

const (
	RightAccess             RightType = "access"
	RightRectification      RightType = "rectification"
	RightErasure            RightType = "erasure"
	RightRestrictProcessing RightType = "restrict_processing"
	RightDataPortability    RightType = "data_portability"
	RightObject             RightType = "object"
)

// KnownRightType reports whether the value belongs to the enumerated set.
func KnownRightType(r RightType) bool {
	switch r {
	case RightAccess, RightRectification, RightErasure,
		RightRestrictProcessing, RightDataPortability, RightObject:
		return true
	}
	return false
}

// RequestStatus captures lifecycle states for data-subject requests.
type RequestStatus string

const (
	StatusPending            RequestStatus = "pending"
	StatusUnderReview        RequestStatus = "under_review"
	StatusInProgress         RequestStatus = "in_progress"
	StatusCompleted          RequestStatus = "completed"
	StatusRejected           RequestStatus = "rejected"
	StatusPartiallyCompleted RequestStatus = "partially_completed"
)

// KnownRequestStatus reports whether the value belongs to the enumerated set.
func KnownRequestStatus(s RequestStatus) bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusInProgress,
		StatusCompleted, StatusRejected, StatusPartiallyCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is permitted from s.
func (s RequestStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusPartiallyCompleted:
		return true
	}
	return false
}

// requestTransitions is the only source of legal lifecycle edges.
var requestTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:     {StatusUnderReview},
	StatusUnderReview: {StatusInProgress, StatusRejected},
	StatusInProgress:  {StatusCompleted, StatusPartiallyCompleted, StatusRejected},
}

// CanTransition reports whether the edge from -> to is legal.
func CanTransition(from, to RequestStatus) bool {
	for _, next := range requestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RequestDeadline is the statutory response window, fixed at creation.
const RequestDeadline = 30 * 24 * time.Hour

// RequestDeadlineDays mirrors RequestDeadline for day-based arithmetic.
const RequestDeadlineDays = 30

// DataSubjectRequest is one record per exercised privacy right. Requests are
// never physically deleted; they remain audit records governed by their own
// category's retention policy.
type DataSubjectRequest struct {
	ID              string         `db:"id" json:"id"`
	SubjectID       string         `db:"subject_id" json:"subjectId"`
	RightType       RightType      `db:"right_type" json:"rightType"`
	Status          RequestStatus  `db:"status" json:"status"`
	Description     string         `db:"description" json:"description"`
	DataCategories  pq.StringArray `db:"data_categories" json:"dataCategories"`
	Urgent          bool           `db:"urgent" json:"urgent"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
	Deadline        time.Time      `db:"deadline" json:"deadline"`
	ProcessedAt     *time.Time     `db:"processed_at" json:"processedAt,omitempty"`
	CompletedAt     *time.Time     `db:"completed_at" json:"completedAt,omitempty"`
	RejectionReason *string        `db:"rejection_reason" json:"rejectionReason,omitempty"`
	RequestPayload  []byte         `db:"request_payload" json:"requestPayload,omitempty"`
	ResponsePayload []byte         `db:"response_payload" json:"responsePayload,omitempty"`
	ProcessingNotes string         `db:"processing_notes" json:"processingNotes"`
	Version         int64          `db:"version" json:"version"`
}

// IsOverdue reports whether the deadline has passed while the request is
// still open. Exactly at the deadline the request is not yet overdue.
func (r *DataSubjectRequest) IsOverdue(now time.Time) bool {
	if r.Status.IsTerminal() {
		return false
	}
	return now.After(r.Deadline)
}

// DaysRemaining returns the whole days left until the deadline, clamped to
// [0, RequestDeadlineDays].
func (r *DataSubjectRequest) DaysRemaining(now time.Time) int {
	remaining := r.Deadline.Sub(now)
	days := int(math.Ceil(remaining.Hours() / 24))
	if days < 0 {
		return 0
	}
	if days > RequestDeadlineDays {
		return RequestDeadlineDays
	}
	return days
}

// RequestFilter constrains listing queries.
type RequestFilter struct {
	SubjectID string
	Status    []RequestStatus
	RightType RightType
	Urgent    *bool
	Limit     int
	Offset    int
}

// RequestStats aggregates open/overdue counts for the compliance dashboard.
type RequestStats struct {
	Open        int            `json:"open"`
	Overdue     int            `json:"overdue"`
	ByRightType map[string]int `json:"byRightType"`
	ByStatus    map[string]int `json:"byStatus"`
	GeneratedAt time.Time      `json:"generatedAt"`
}
