package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sekurigo/privacy-api/internal/dto"
	"github.com/sekurigo/privacy-api/internal/models"
	appErrors "github.com/sekurigo/privacy-api/pkg/errors"
	"github.com/sekurigo/privacy-api/pkg/response"
)

type consentService interface {
	Record(ctx context.Context, req dto.RecordConsentPayload) (*models.ConsentRecord, error)
	Withdraw(ctx context.Context, id string, req dto.WithdrawConsentPayload) (*models.ConsentRecord, error)
	Latest(ctx context.Context, subjectID, purpose string) (*models.ConsentRecord, error)
	IsValid(ctx context.Context, subjectID, purpose string) (bool, error)
	History(ctx context.Context, subjectID string) ([]models.ConsentRecord, error)
}

// ConsentHandler exposes REST endpoints for the consent ledger.
type ConsentHandler struct {
	service consentService
}

// NewConsentHandler constructs the handler.
func NewConsentHandler(service consentService) *ConsentHandler {
	return &ConsentHandler{service: service}
}

// Record godoc
// @Summary Record a consent decision
// @Tags Consent
// @Accept json
// @Produce json
// @Param payload body dto.RecordConsentPayload true "Consent payload"
// @Success 201 {object} response.Envelope
// @Router /privacy/consents [post]
func (h *ConsentHandler) Record(c *gin.Context) {
	var req dto.RecordConsentPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid consent payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if claims.Role == models.RoleSubject {
		req.SubjectID = claims.UserID
	}
	record, err := h.service.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, record, nil)
}

// Withdraw godoc
// @Summary Withdraw a consent
// @Tags Consent
// @Accept json
// @Produce json
// @Param id path string true "Consent record ID"
// @Param payload body dto.WithdrawConsentPayload false "Withdrawal instant"
// @Success 200 {object} response.Envelope
// @Router /privacy/consents/{id}/withdraw [post]
func (h *ConsentHandler) Withdraw(c *gin.Context) {
	var req dto.WithdrawConsentPayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid withdrawal payload"))
			return
		}
	}
	record, err := h.service.Withdraw(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Latest godoc
// @Summary Latest consent for a subject and purpose
// @Tags Consent
// @Produce json
// @Param subjectId query string true "Subject ID"
// @Param purpose query string true "Processing purpose"
// @Success 200 {object} response.Envelope
// @Router /privacy/consents/latest [get]
func (h *ConsentHandler) Latest(c *gin.Context) {
	subjectID, purpose, err := h.scope(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.service.Latest(c.Request.Context(), subjectID, purpose)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Valid godoc
// @Summary Whether processing is currently authorised
// @Tags Consent
// @Produce json
// @Param subjectId query string true "Subject ID"
// @Param purpose query string true "Processing purpose"
// @Success 200 {object} response.Envelope
// @Router /privacy/consents/valid [get]
func (h *ConsentHandler) Valid(c *gin.Context) {
	subjectID, purpose, err := h.scope(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	valid, err := h.service.IsValid(c.Request.Context(), subjectID, purpose)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"valid": valid}, nil)
}

// History godoc
// @Summary Full consent history for a subject
// @Tags Consent
// @Produce json
// @Param subjectId query string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /privacy/consents/history [get]
func (h *ConsentHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	subjectID := strings.TrimSpace(c.Query("subjectId"))
	if claims.Role == models.RoleSubject {
		subjectID = claims.UserID
	}
	records, err := h.service.History(c.Request.Context(), subjectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// scope resolves the (subject, purpose) pair enforcing that subjects only
// query themselves.
func (h *ConsentHandler) scope(c *gin.Context) (string, string, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return "", "", appErrors.ErrUnauthorized
	}
	subjectID := strings.TrimSpace(c.Query("subjectId"))
	if claims.Role == models.RoleSubject {
		subjectID = claims.UserID
	}
	purpose := strings.TrimSpace(c.Query("purpose"))
	return subjectID, purpose, nil
}
