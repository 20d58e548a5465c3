package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-notice-api/internal/dto"
	"github.com/noah-isme/campus-notice-api/internal/models"
	"github.com/noah-isme/campus-notice-api/internal/service"
	appErrors "github.com/noah-isme/campus-notice-api/pkg/errors"
)

type fakeNoticeSrv struct {
	notice     *models.Notice
	notices    []models.Notice
	counts     *models.NoticeCounts
	download   *service.NoticeDownload
	link       *service.NoticeDownloadLink
	purge      *dto.BulkPurgeResponse
	restored   int
	err        error
	lastReq    dto.CreateNoticeRequest
	lastUpload *service.NoticeUpload
	lastPatch  dto.UpdateNoticeRequest
	lastIDs    []string
}

func (f *fakeNoticeSrv) Create(_ context.Context, req dto.CreateNoticeRequest, upload *service.NoticeUpload, _ *models.JWTClaims) (*models.Notice, error) {
	f.lastReq = req
	f.lastUpload = upload
	return f.notice, f.err
}

func (f *fakeNoticeSrv) Update(_ context.Context, _ string, patch dto.UpdateNoticeRequest, upload *service.NoticeUpload, _ *models.JWTClaims) (*models.Notice, error) {
	f.lastPatch = patch
	f.lastUpload = upload
	return f.notice, f.err
}

func (f *fakeNoticeSrv) SoftDelete(context.Context, string, *models.JWTClaims) error {
	return f.err
}

func (f *fakeNoticeSrv) Restore(_ context.Context, ids []string, _ *models.JWTClaims) (int, error) {
	f.lastIDs = ids
	return f.restored, f.err
}

func (f *fakeNoticeSrv) Purge(_ context.Context, ids []string, _ *models.JWTClaims) (*dto.BulkPurgeResponse, error) {
	f.lastIDs = ids
	return f.purge, f.err
}

func (f *fakeNoticeSrv) Get(context.Context, string, *models.JWTClaims) (*models.Notice, error) {
	return f.notice, f.err
}

func (f *fakeNoticeSrv) Download(context.Context, string, *models.JWTClaims) (*service.NoticeDownload, error) {
	return f.download, f.err
}

func (f *fakeNoticeSrv) DownloadLink(context.Context, string, *models.JWTClaims) (*service.NoticeDownloadLink, error) {
	return f.link, f.err
}

func (f *fakeNoticeSrv) DownloadSigned(context.Context, string) (*service.NoticeDownload, error) {
	return f.download, f.err
}

func (f *fakeNoticeSrv) List(context.Context, dto.NoticeListQuery, *models.JWTClaims) ([]models.Notice, *models.Pagination, error) {
	return f.notices, models.NewPagination(len(f.notices), 1, 10), f.err
}

func (f *fakeNoticeSrv) ListDeleted(context.Context) ([]models.Notice, error) {
	return f.notices, f.err
}

func (f *fakeNoticeSrv) Counts(context.Context) (*models.NoticeCounts, error) {
	return f.counts, f.err
}

func multipartBody(t *testing.T, fields [][2]string, filename string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, field := range fields {
		require.NoError(t, writer.WriteField(field[0], field[1]))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 test"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestNoticeHandlerCreateRequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewNoticeHandler(&fakeNoticeSrv{})

	body, contentType := multipartBody(t, [][2]string{{"title", "Exam schedule"}}, "")
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/notices", body)
	c.Request.Header.Set("Content-Type", contentType)

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file is required")
}

func TestNoticeHandlerCreatePassesUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeNoticeSrv{notice: &models.Notice{ID: "n-1", Title: "Exam schedule"}}
	handler := NewNoticeHandler(srv)

	body, contentType := multipartBody(t, [][2]string{{"title", "Exam schedule"}}, "schedule.pdf")
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/notices", body)
	c.Request.Header.Set("Content-Type", contentType)

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, srv.lastUpload)
	assert.Equal(t, "schedule.pdf", srv.lastUpload.Filename)
}

func TestNoticeHandlerCreateBindsRepeatedFormKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeNoticeSrv{notice: &models.Notice{ID: "n-1"}}
	handler := NewNoticeHandler(srv)

	// categories/allowedRoles as a native array means repeated form keys.
	body, contentType := multipartBody(t, [][2]string{
		{"title", "Exam schedule"},
		{"categories", "c-1"},
		{"categories", "c-2"},
		{"allowedRoles", "teacher"},
		{"allowedRoles", "student"},
	}, "schedule.pdf")
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/notices", body)
	c.Request.Header.Set("Content-Type", contentType)

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"c-1", "c-2"}, srv.lastReq.Categories)
	assert.Equal(t, []string{"teacher", "student"}, srv.lastReq.AllowedRoles)
}

func TestNoticeHandlerUpdateOnlyAppliesPresentFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeNoticeSrv{notice: &models.Notice{ID: "n-1"}}
	handler := NewNoticeHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPatch, "/notices/n-1", strings.NewReader("title=Updated&allowedRoles=teacher,student"))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Params = gin.Params{{Key: "id", Value: "n-1"}}

	handler.Update(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.lastPatch.Title)
	assert.Equal(t, "Updated", *srv.lastPatch.Title)
	assert.Nil(t, srv.lastPatch.Description)
	require.NotNil(t, srv.lastPatch.AllowedRoles)
	assert.Equal(t, []string{"teacher", "student"}, *srv.lastPatch.AllowedRoles)
	assert.Nil(t, srv.lastUpload)
}

func TestNoticeHandlerUpdateMergesRepeatedFormKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeNoticeSrv{notice: &models.Notice{ID: "n-1"}}
	handler := NewNoticeHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPatch, "/notices/n-1", strings.NewReader("categories=c-1&categories=c-2"))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.Params = gin.Params{{Key: "id", Value: "n-1"}}

	handler.Update(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.lastPatch.Categories)
	assert.Equal(t, []string{"c-1", "c-2"}, *srv.lastPatch.Categories)
	assert.Nil(t, srv.lastPatch.AllowedRoles)
}

func TestNoticeHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewNoticeHandler(&fakeNoticeSrv{err: appErrors.Clone(appErrors.ErrNotFound, "notice not found")})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/notices/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "notice not found")
}

func TestNoticeHandlerRestore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeNoticeSrv{restored: 2}
	handler := NewNoticeHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPatch, "/notices/restore", strings.NewReader(`{"ids":["a","b"]}`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Restore(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a", "b"}, srv.lastIDs)

	var envelope struct {
		Data dto.BulkRestoreResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 2, envelope.Data.RestoredCount)
}

func TestNoticeHandlerPurgeInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewNoticeHandler(&fakeNoticeSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/notices/permanent", strings.NewReader("not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Purge(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNoticeHandlerDownloadStreamsAttachment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewNoticeHandler(&fakeNoticeSrv{
		download: &service.NoticeDownload{
			Content:   io.NopCloser(strings.NewReader("attachment bytes")),
			Filename:  "schedule.pdf",
			MimeType:  "application/pdf",
			SizeBytes: int64(len("attachment bytes")),
		},
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/notices/n-1/download", nil)
	c.Params = gin.Params{{Key: "id", Value: "n-1"}}

	handler.Download(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "schedule.pdf")
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
}

func TestNoticeHandlerCounts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewNoticeHandler(&fakeNoticeSrv{counts: &models.NoticeCounts{Published: 5, Trash: 2}})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/notices/counts", nil)

	handler.Counts(c)

	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data models.NoticeCounts `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 5, envelope.Data.Published)
	assert.Equal(t, 2, envelope.Data.Trash)
}

func TestNoticeHandlerDownloadSignedRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewNoticeHandler(&fakeNoticeSrv{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/notices/signed-download", nil)

	handler.DownloadSigned(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "token is required")
}
