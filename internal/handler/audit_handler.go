package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sekurigo/privacy-api/internal/models"
	appErrors "github.com/sekurigo/privacy-api/pkg/errors"
	"github.com/sekurigo/privacy-api/pkg/response"
)

type auditReader interface {
	ListBySubject(ctx context.Context, subjectID string) ([]models.AuditEvent, error)
}

// AuditHandler exposes the compliance audit trail to reviewers.
type AuditHandler struct {
	service auditReader
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(service auditReader) *AuditHandler {
	return &AuditHandler{service: service}
}

// ListBySubject godoc
// @Summary Audit trail for one data subject
// @Tags Audit
// @Produce json
// @Param subjectId query string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /privacy/audit [get]
func (h *AuditHandler) ListBySubject(c *gin.Context) {
	subjectID := strings.TrimSpace(c.Query("subjectId"))
	if subjectID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "subjectId is required"))
		return
	}
	events, err := h.service.ListBySubject(c.Request.Context(), subjectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}
