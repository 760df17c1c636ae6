package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sekurigo/privacy-api/internal/dto"
	"github.com/sekurigo/privacy-api/internal/models"
	appErrors "github.com/sekurigo/privacy-api/pkg/errors"
	"github.com/sekurigo/privacy-api/pkg/response"
)

type retentionService interface {
	Register(ctx context.Context, req dto.RegisterRetentionPolicyPayload) (*models.RetentionPolicy, error)
	List(ctx context.Context) ([]models.RetentionPolicy, error)
	Evaluate(ctx context.Context, category string, createdAt time.Time) (models.RetentionEvaluation, error)
	EvaluateBatch(ctx context.Context, req dto.EvaluateRetentionBatchPayload, actorID string) ([]models.RetentionEvaluation, error)
}

// RetentionHandler exposes REST endpoints for retention policies and
// evaluation. The external sweep scheduler is its main consumer.
type RetentionHandler struct {
	service retentionService
}

// NewRetentionHandler constructs the handler.
func NewRetentionHandler(service retentionService) *RetentionHandler {
	return &RetentionHandler{service: service}
}

// Register godoc
// @Summary Register or replace a retention policy
// @Tags Retention
// @Accept json
// @Produce json
// @Param payload body dto.RegisterRetentionPolicyPayload true "Policy payload"
// @Success 201 {object} response.Envelope
// @Router /privacy/retention/policies [post]
func (h *RetentionHandler) Register(c *gin.Context) {
	var req dto.RegisterRetentionPolicyPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid policy payload"))
		return
	}
	policy, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, policy, nil)
}

// List godoc
// @Summary List configured retention policies
// @Tags Retention
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /privacy/retention/policies [get]
func (h *RetentionHandler) List(c *gin.Context) {
	policies, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, policies, nil)
}

// Evaluate godoc
// @Summary Evaluate one dated item against its effective retention
// @Tags Retention
// @Produce json
// @Param category query string true "Data category"
// @Param createdAt query string true "Creation instant (RFC 3339)"
// @Success 200 {object} response.Envelope
// @Router /privacy/retention/evaluate [get]
func (h *RetentionHandler) Evaluate(c *gin.Context) {
	category := c.Query("category")
	if category == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "category is required"))
		return
	}
	createdAt, err := time.Parse(time.RFC3339, c.Query("createdAt"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "createdAt must be RFC 3339"))
		return
	}
	evaluation, err := h.service.Evaluate(c.Request.Context(), category, createdAt)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evaluation, nil)
}

// EvaluateBatch godoc
// @Summary Evaluate a batch of dated items, returning those eligible for deletion
// @Tags Retention
// @Accept json
// @Produce json
// @Param payload body dto.EvaluateRetentionBatchPayload true "Items to evaluate"
// @Success 200 {object} response.Envelope
// @Router /privacy/retention/evaluate [post]
func (h *RetentionHandler) EvaluateBatch(c *gin.Context) {
	var req dto.EvaluateRetentionBatchPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid batch payload"))
		return
	}
	actorID := ""
	if claims := claimsFromContext(c); claims != nil {
		actorID = claims.UserID
	}
	eligible, err := h.service.EvaluateBatch(c.Request.Context(), req, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, eligible, nil)
}
