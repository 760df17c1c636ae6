package handler

import (
	"context"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/sekurigo/privacy-api/internal/models"
	"github.com/sekurigo/privacy-api/internal/service"
	appErrors "github.com/sekurigo/privacy-api/pkg/errors"
	"github.com/sekurigo/privacy-api/pkg/response"
)

type exportService interface {
	BuildArtifact(ctx context.Context, requestID, format string, actor *models.JWTClaims) (*service.ExportArtifact, error)
	Open(token string) (*os.File, string, error)
}

// ExportHandler exposes fulfilment artifact generation and signed downloads.
type ExportHandler struct {
	service exportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Build godoc
// @Summary Render a fulfilment artifact and return a signed download link
// @Tags Exports
// @Produce json
// @Param id path string true "Request ID"
// @Param format query string true "Artifact format (csv or pdf)"
// @Success 201 {object} response.Envelope
// @Router /privacy/requests/{id}/export [post]
func (h *ExportHandler) Build(c *gin.Context) {
	artifact, err := h.service.BuildArtifact(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, artifact, nil)
}

// Download godoc
// @Summary Download an artifact via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /privacy/exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, filename, err := h.service.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat artifact"))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, nil)
}
