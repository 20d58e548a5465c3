package handler

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-notice-api/internal/dto"
	"github.com/noah-isme/campus-notice-api/internal/models"
	"github.com/noah-isme/campus-notice-api/internal/service"
	appErrors "github.com/noah-isme/campus-notice-api/pkg/errors"
	"github.com/noah-isme/campus-notice-api/pkg/response"
)

type noticeService interface {
	Create(ctx context.Context, req dto.CreateNoticeRequest, upload *service.NoticeUpload, actor *models.JWTClaims) (*models.Notice, error)
	Update(ctx context.Context, id string, patch dto.UpdateNoticeRequest, upload *service.NoticeUpload, actor *models.JWTClaims) (*models.Notice, error)
	SoftDelete(ctx context.Context, id string, actor *models.JWTClaims) error
	Restore(ctx context.Context, ids []string, actor *models.JWTClaims) (int, error)
	Purge(ctx context.Context, ids []string, actor *models.JWTClaims) (*dto.BulkPurgeResponse, error)
	Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Notice, error)
	Download(ctx context.Context, id string, claims *models.JWTClaims) (*service.NoticeDownload, error)
	DownloadLink(ctx context.Context, id string, claims *models.JWTClaims) (*service.NoticeDownloadLink, error)
	DownloadSigned(ctx context.Context, token string) (*service.NoticeDownload, error)
	List(ctx context.Context, query dto.NoticeListQuery, claims *models.JWTClaims) ([]models.Notice, *models.Pagination, error)
	ListDeleted(ctx context.Context) ([]models.Notice, error)
	Counts(ctx context.Context) (*models.NoticeCounts, error)
}

// NoticeHandler exposes the notice lifecycle over HTTP.
type NoticeHandler struct {
	service noticeService
}

// NewNoticeHandler constructs the handler.
func NewNoticeHandler(service noticeService) *NoticeHandler {
	return &NoticeHandler{service: service}
}

// Create godoc
// @Summary Publish a notice
// @Tags Notices
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param categories formData []string false "Category ids (repeated keys, JSON array, or comma-separated)"
// @Param allowedRoles formData []string false "Role names (repeated keys, JSON array, or comma-separated)"
// @Param file formData file true "Attachment"
// @Success 201 {object} response.Envelope
// @Router /notices [post]
func (h *NoticeHandler) Create(c *gin.Context) {
	var req dto.CreateNoticeRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid notice payload"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	upload, closeUpload, err := openUpload(fileHeader)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeUpload()

	notice, err := h.service.Create(c.Request.Context(), req, upload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, notice)
}

// Update godoc
// @Summary Partially update a notice
// @Tags Notices
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Notice ID"
// @Success 200 {object} response.Envelope
// @Router /notices/{id} [patch]
func (h *NoticeHandler) Update(c *gin.Context) {
	patch := dto.UpdateNoticeRequest{}
	// Only fields present in the form are applied; absent fields keep
	// their stored value.
	if title, ok := c.GetPostForm("title"); ok {
		patch.Title = &title
	}
	if description, ok := c.GetPostForm("description"); ok {
		patch.Description = &description
	}
	if categories, ok := c.GetPostFormArray("categories"); ok {
		parsed := dto.ParseStringValues(categories)
		patch.Categories = &parsed
	}
	if roles, ok := c.GetPostFormArray("allowedRoles"); ok {
		parsed := dto.ParseStringValues(roles)
		patch.AllowedRoles = &parsed
	}

	var upload *service.NoticeUpload
	if fileHeader, err := c.FormFile("file"); err == nil && fileHeader != nil {
		opened, closeUpload, openErr := openUpload(fileHeader)
		if openErr != nil {
			response.Error(c, openErr)
			return
		}
		defer closeUpload()
		upload = opened
	}

	notice, err := h.service.Update(c.Request.Context(), c.Param("id"), patch, upload, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notice, nil)
}

// List godoc
// @Summary List visible notices
// @Tags Notices
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Limit"
// @Param search query string false "Title substring"
// @Param category query string false "Category id"
// @Param isDeleted query bool false "Partition selector (admin only)"
// @Success 200 {object} response.Envelope
// @Router /notices [get]
func (h *NoticeHandler) List(c *gin.Context) {
	var query dto.NoticeListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}

	notices, pagination, err := h.service.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notices, pagination)
}

// Get godoc
// @Summary Fetch one notice, counting the view
// @Tags Notices
// @Produce json
// @Param id path string true "Notice ID"
// @Success 200 {object} response.Envelope
// @Router /notices/{id} [get]
func (h *NoticeHandler) Get(c *gin.Context) {
	notice, err := h.service.Get(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		respondAccessError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notice, nil)
}

// Download godoc
// @Summary Stream the notice attachment, counting the download
// @Tags Notices
// @Produce octet-stream
// @Param id path string true "Notice ID"
// @Success 200 {file} binary
// @Router /notices/{id}/download [get]
func (h *NoticeHandler) Download(c *gin.Context) {
	download, err := h.service.Download(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		respondAccessError(c, err)
		return
	}
	defer download.Content.Close()

	contentType := download.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	extraHeaders := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.Filename),
	}
	c.DataFromReader(http.StatusOK, download.SizeBytes, contentType, download.Content, extraHeaders)
}

// DownloadLink godoc
// @Summary Issue an expiring signed download token
// @Tags Notices
// @Produce json
// @Param id path string true "Notice ID"
// @Success 200 {object} response.Envelope
// @Router /notices/{id}/download-link [get]
func (h *NoticeHandler) DownloadLink(c *gin.Context) {
	link, err := h.service.DownloadLink(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		respondAccessError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// DownloadSigned godoc
// @Summary Redeem a signed download token
// @Tags Notices
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /notices/signed-download [get]
func (h *NoticeHandler) DownloadSigned(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	download, err := h.service.DownloadSigned(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.Content.Close()

	contentType := download.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	extraHeaders := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", download.Filename),
	}
	c.DataFromReader(http.StatusOK, download.SizeBytes, contentType, download.Content, extraHeaders)
}

// SoftDelete godoc
// @Summary Move a notice to the trash
// @Tags Notices
// @Produce json
// @Param id path string true "Notice ID"
// @Success 200 {object} response.Envelope
// @Router /notices/{id} [delete]
func (h *NoticeHandler) SoftDelete(c *gin.Context) {
	if err := h.service.SoftDelete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "notice moved to trash"}, nil)
}

// Restore godoc
// @Summary Restore trashed notices
// @Tags Notices
// @Accept json
// @Produce json
// @Param request body dto.BulkIDsRequest true "Notice ids"
// @Success 200 {object} response.Envelope
// @Router /notices/restore [patch]
func (h *NoticeHandler) Restore(c *gin.Context) {
	var req dto.BulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid restore payload"))
		return
	}

	count, err := h.service.Restore(c.Request.Context(), req.IDs, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.BulkRestoreResponse{RestoredCount: count}, nil)
}

// Purge godoc
// @Summary Permanently delete trashed notices
// @Tags Notices
// @Accept json
// @Produce json
// @Param request body dto.BulkIDsRequest true "Notice ids"
// @Success 200 {object} response.Envelope
// @Router /notices/permanent [delete]
func (h *NoticeHandler) Purge(c *gin.Context) {
	var req dto.BulkIDsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid purge payload"))
		return
	}

	result, err := h.service.Purge(c.Request.Context(), req.IDs, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListDeleted godoc
// @Summary List the trash
// @Tags Notices
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notices/deleted [get]
func (h *NoticeHandler) ListDeleted(c *gin.Context) {
	notices, err := h.service.ListDeleted(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notices, nil)
}

// Counts godoc
// @Summary Published vs trashed totals
// @Tags Notices
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notices/counts [get]
func (h *NoticeHandler) Counts(c *gin.Context) {
	counts, err := h.service.Counts(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, counts, nil)
}

// respondAccessError surfaces the granting role names for require-login
// denials; every other error maps through the common taxonomy.
func respondAccessError(c *gin.Context, err error) {
	if roles, ok := service.RequireLoginRoles(err); ok {
		response.ErrorWithMeta(c, err, map[string]interface{}{"allowedRoles": roles})
		return
	}
	response.Error(c, err)
}

func openUpload(fileHeader *multipart.FileHeader) (*service.NoticeUpload, func(), error) {
	src, err := fileHeader.Open()
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	upload := &service.NoticeUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  src,
	}
	return upload, func() { _ = src.Close() }, nil
}
