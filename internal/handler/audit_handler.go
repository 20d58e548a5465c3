package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-notice-api/internal/dto"
	"github.com/noah-isme/campus-notice-api/internal/models"
	"github.com/noah-isme/campus-notice-api/internal/service"
	appErrors "github.com/noah-isme/campus-notice-api/pkg/errors"
	"github.com/noah-isme/campus-notice-api/pkg/response"
)

type auditService interface {
	List(ctx context.Context, query dto.AuditLogQuery) ([]models.AuditLog, *models.Pagination, error)
	Export(ctx context.Context, query dto.AuditExportQuery) (*service.AuditExport, error)
}

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(service auditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// List godoc
// @Summary Query the audit trail
// @Tags Audit
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Param action query string false "Action filter"
// @Param actorId query string false "Actor filter"
// @Param targetType query string false "Target type filter"
// @Param from query string false "Window start (YYYY-MM-DD or RFC3339)"
// @Param to query string false "Window end (YYYY-MM-DD or RFC3339)"
// @Success 200 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	var query dto.AuditLogQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}

	entries, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}

// Export godoc
// @Summary Export the audit trail
// @Tags Audit
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /audit-logs/export [get]
func (h *AuditHandler) Export(c *gin.Context) {
	var query dto.AuditExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}

	result, err := h.service.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
