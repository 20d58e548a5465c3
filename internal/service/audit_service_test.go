package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-notice-api/internal/dto"
	"github.com/noah-isme/campus-notice-api/internal/models"
	appErrors "github.com/noah-isme/campus-notice-api/pkg/errors"
	"github.com/noah-isme/campus-notice-api/pkg/export"
)

type auditStoreStub struct {
	entries    []*models.AuditLog
	lastFilter models.AuditLogFilter
	createErr  error
}

func (s *auditStoreStub) Create(ctx context.Context, entry *models.AuditLog) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *auditStoreStub) List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error) {
	s.lastFilter = filter
	result := make([]models.AuditLog, 0, len(s.entries))
	for _, entry := range s.entries {
		result = append(result, *entry)
	}
	return result, len(result), nil
}

func (s *auditStoreStub) DailyActionCounts(ctx context.Context, action string, since time.Time) ([]models.DailyCount, error) {
	return []models.DailyCount{{Day: "2026-08-20", Count: 2}}, nil
}

func TestAuditServiceRecordEncodesMeta(t *testing.T) {
	store := &auditStoreStub{}
	svc := NewAuditService(store, export.NewCSVExporter(), export.NewPDFExporter(), nil)

	actor := "u1"
	svc.Record(context.Background(), &actor, models.AuditActionNoticeCreate, models.AuditTargetNotice, "n1", map[string]interface{}{"title": "Routine"})

	require.Len(t, store.entries, 1)
	assert.JSONEq(t, `{"title":"Routine"}`, string(store.entries[0].Meta))
	assert.Equal(t, "u1", *store.entries[0].ActorID)
}

func TestAuditServiceRecordSwallowsFailures(t *testing.T) {
	store := &auditStoreStub{createErr: fmt.Errorf("db down")}
	svc := NewAuditService(store, export.NewCSVExporter(), export.NewPDFExporter(), nil)

	// Must not panic or propagate; the triggering mutation already committed.
	svc.Record(context.Background(), nil, models.AuditActionNoticeView, models.AuditTargetNotice, "n1", nil)
	assert.Empty(t, store.entries)
}

func TestAuditServiceListNormalisesDateWindow(t *testing.T) {
	store := &auditStoreStub{}
	svc := NewAuditService(store, export.NewCSVExporter(), export.NewPDFExporter(), nil)

	_, _, err := svc.List(context.Background(), dto.AuditLogQuery{From: "2026-08-01", To: "2026-08-31"})
	require.NoError(t, err)

	require.NotNil(t, store.lastFilter.From)
	require.NotNil(t, store.lastFilter.To)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), store.lastFilter.From.UTC())
	// The upper bound covers the whole day.
	assert.True(t, store.lastFilter.To.After(time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)))
	assert.True(t, store.lastFilter.To.Before(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)))
}

func TestAuditServiceListRejectsBadDates(t *testing.T) {
	svc := NewAuditService(&auditStoreStub{}, export.NewCSVExporter(), export.NewPDFExporter(), nil)

	_, _, err := svc.List(context.Background(), dto.AuditLogQuery{From: "yesterday"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuditServiceExportCSV(t *testing.T) {
	store := &auditStoreStub{}
	actor := "u1"
	store.entries = append(store.entries, &models.AuditLog{
		ID:         "a1",
		ActorID:    &actor,
		Action:     models.AuditActionNoticeDownload,
		TargetType: models.AuditTargetNotice,
		TargetID:   "n1",
		CreatedAt:  time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	})
	svc := NewAuditService(store, export.NewCSVExporter(), export.NewPDFExporter(), nil)

	result, err := svc.Export(context.Background(), dto.AuditExportQuery{Format: "csv"})
	require.NoError(t, err)

	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))
	content := string(result.Content)
	assert.Contains(t, content, models.AuditActionNoticeDownload)
	assert.Contains(t, content, "n1")
}

func TestAuditServiceExportRejectsUnknownFormat(t *testing.T) {
	svc := NewAuditService(&auditStoreStub{}, export.NewCSVExporter(), export.NewPDFExporter(), nil)

	_, err := svc.Export(context.Background(), dto.AuditExportQuery{Format: "xlsx"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
