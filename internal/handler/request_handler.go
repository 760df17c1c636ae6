package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sekurigo/privacy-api/internal/dto"
	"github.com/sekurigo/privacy-api/internal/models"
	appErrors "github.com/sekurigo/privacy-api/pkg/errors"
	"github.com/sekurigo/privacy-api/pkg/response"
)

type requestService interface {
	Submit(ctx context.Context, req dto.SubmitRequestPayload, actor *models.JWTClaims) (*dto.RequestSnapshot, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*dto.RequestSnapshot, error)
	List(ctx context.Context, query dto.RequestQuery, actor *models.JWTClaims) ([]dto.RequestSnapshot, *models.Pagination, error)
	Transition(ctx context.Context, id string, req dto.TransitionRequestPayload, actor *models.JWTClaims) (*dto.RequestSnapshot, error)
	Dashboard(ctx context.Context, actor *models.JWTClaims) (*models.RequestStats, error)
}

// RequestHandler exposes REST endpoints for the data-subject request lifecycle.
type RequestHandler struct {
	service requestService
}

// NewRequestHandler constructs the handler.
func NewRequestHandler(service requestService) *RequestHandler {
	return &RequestHandler{service: service}
}

// Submit godoc
// @Summary Submit a data-subject request
// @Tags Requests
// @Accept json
// @Produce json
// @Param payload body dto.SubmitRequestPayload true "Request payload"
// @Success 201 {object} response.Envelope
// @Router /privacy/requests [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	var req dto.SubmitRequestPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request payload"))
		return
	}
	snapshot, err := h.service.Submit(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, snapshot, nil)
}

// Get godoc
// @Summary Get a data-subject request
// @Tags Requests
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /privacy/requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	snapshot, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// List godoc
// @Summary List data-subject requests
// @Tags Requests
// @Produce json
// @Param subjectId query string false "Subject ID"
// @Param status query string false "Comma separated statuses"
// @Param rightType query string false "Right type"
// @Param urgent query bool false "Urgent only"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /privacy/requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	query := dto.RequestQuery{
		SubjectID: strings.TrimSpace(c.Query("subjectId")),
		RightType: models.RightType(strings.TrimSpace(c.Query("rightType"))),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.RequestStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.RequestStatus(part))
		}
		query.Status = statuses
	}
	if rawUrgent := c.Query("urgent"); rawUrgent != "" {
		urgent, err := strconv.ParseBool(rawUrgent)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "urgent must be a boolean"))
			return
		}
		query.Urgent = &urgent
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "50"))

	snapshots, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshots, pagination)
}

// Transition godoc
// @Summary Apply a lifecycle transition
// @Tags Requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body dto.TransitionRequestPayload true "Transition decision"
// @Success 200 {object} response.Envelope
// @Router /privacy/requests/{id}/transition [post]
func (h *RequestHandler) Transition(c *gin.Context) {
	var req dto.TransitionRequestPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid transition payload"))
		return
	}
	snapshot, err := h.service.Transition(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// Dashboard godoc
// @Summary Compliance dashboard aggregates
// @Tags Requests
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /privacy/requests/dashboard [get]
func (h *RequestHandler) Dashboard(c *gin.Context) {
	stats, err := h.service.Dashboard(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
