package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/campus-notice-api/internal/dto"
	"github.com/noah-isme/campus-notice-api/internal/models"
	"github.com/noah-isme/campus-notice-api/internal/service"
	appErrors "github.com/noah-isme/campus-notice-api/pkg/errors"
)

type fakeAuditSrv struct {
	entries   []models.AuditLog
	export    *service.AuditExport
	err       error
	lastQuery dto.AuditLogQuery
}

func (f *fakeAuditSrv) List(_ context.Context, query dto.AuditLogQuery) ([]models.AuditLog, *models.Pagination, error) {
	f.lastQuery = query
	return f.entries, models.NewPagination(len(f.entries), 1, 10), f.err
}

func (f *fakeAuditSrv) Export(context.Context, dto.AuditExportQuery) (*service.AuditExport, error) {
	return f.export, f.err
}

func TestAuditHandlerListBindsFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAuditSrv{entries: []models.AuditLog{{ID: "a-1", Action: "NOTICE_CREATE"}}}
	handler := NewAuditHandler(srv)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/audit-logs?action=NOTICE_CREATE&from=2026-08-01", nil)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NOTICE_CREATE", srv.lastQuery.Action)
	assert.Equal(t, "2026-08-01", srv.lastQuery.From)
	assert.Contains(t, rec.Body.String(), "a-1")
}

func TestAuditHandlerExportSetsDisposition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuditHandler(&fakeAuditSrv{
		export: &service.AuditExport{
			Content:     []byte("Timestamp,Actor,Action\n"),
			ContentType: "text/csv",
			Filename:    "audit-logs-20260827.csv",
		},
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/audit-logs/export?format=csv", nil)

	handler.Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "audit-logs-20260827.csv")
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Timestamp,Actor,Action\n", rec.Body.String())
}

func TestAuditHandlerExportUnknownFormat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuditHandler(&fakeAuditSrv{err: appErrors.Clone(appErrors.ErrValidation, "unsupported export format")})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/audit-logs/export?format=xlsx", nil)

	handler.Export(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
