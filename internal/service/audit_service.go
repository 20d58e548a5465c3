package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-notice-api/internal/dto"
	"github.com/noah-isme/campus-notice-api/internal/models"
	appErrors "github.com/noah-isme/campus-notice-api/pkg/errors"
	"github.com/noah-isme/campus-notice-api/pkg/export"
)

type auditStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, filter models.AuditLogFilter) ([]models.AuditLog, int, error)
	DailyActionCounts(ctx context.Context, action string, since time.Time) ([]models.DailyCount, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// AuditExport bundles rendered export bytes with response metadata.
type AuditExport struct {
	Content     []byte
	ContentType string
	Filename    string
}

// AuditService appends and queries the audit trail. Appends are side effects
// of business operations and must never fail them: Record swallows errors.
type AuditService struct {
	repo   auditStore
	csv    datasetRenderer
	pdf    datasetRenderer
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(repo auditStore, csv, pdf datasetRenderer, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, csv: csv, pdf: pdf, logger: logger}
}

// Record appends one entry. Failures are logged and swallowed so the
// triggering mutation, already committed, is unaffected.
func (s *AuditService) Record(ctx context.Context, actorID *string, action, targetType, targetID string, meta interface{}) {
	var payload []byte
	if meta != nil {
		encoded, err := json.Marshal(meta)
		if err != nil {
			s.logger.Warn("failed to encode audit metadata", zap.String("action", action), zap.Error(err))
		} else {
			payload = encoded
		}
	}

	entry := &models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Meta:       payload,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log",
			zap.String("action", action),
			zap.String("targetId", targetID),
			zap.Error(err))
	}
}

// List returns a filtered page of the trail, newest first.
func (s *AuditService) List(ctx context.Context, query dto.AuditLogQuery) ([]models.AuditLog, *models.Pagination, error) {
	filter, err := buildAuditFilter(query)
	if err != nil {
		return nil, nil, err
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 20
	}
	return entries, models.NewPagination(total, filter.Page, limit), nil
}

// Export renders the filtered trail as CSV or PDF.
func (s *AuditService) Export(ctx context.Context, query dto.AuditExportQuery) (*AuditExport, error) {
	format := strings.ToLower(strings.TrimSpace(query.Format))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", query.Format))
	}

	filter, err := buildAuditFilter(query.AuditLogQuery)
	if err != nil {
		return nil, err
	}
	// Exports are bounded but not paginated the way listings are.
	filter.Page = 1
	if filter.Limit <= 0 {
		filter.Limit = 500
	}

	entries, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit logs for export")
	}

	dataset := export.Dataset{
		Title:   "Audit Log",
		Headers: []string{"Timestamp", "Actor", "Action", "Target Type", "Target ID", "Metadata"},
		Rows:    make([]map[string]string, 0, len(entries)),
	}
	for _, entry := range entries {
		actor := ""
		if entry.ActorID != nil {
			actor = *entry.ActorID
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Timestamp":   entry.CreatedAt.Format(time.RFC3339),
			"Actor":       actor,
			"Action":      entry.Action,
			"Target Type": entry.TargetType,
			"Target ID":   entry.TargetID,
			"Metadata":    string(entry.Meta),
		})
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	switch format {
	case "pdf":
		content, err := s.pdf.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &AuditExport{Content: content, ContentType: "application/pdf", Filename: fmt.Sprintf("audit-logs-%s.pdf", stamp)}, nil
	default:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &AuditExport{Content: content, ContentType: "text/csv", Filename: fmt.Sprintf("audit-logs-%s.csv", stamp)}, nil
	}
}

// DailyDownloads returns the per-day download series since the cutoff.
func (s *AuditService) DailyDownloads(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	counts, err := s.repo.DailyActionCounts(ctx, models.AuditActionNoticeDownload, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load download series")
	}
	return counts, nil
}

func buildAuditFilter(query dto.AuditLogQuery) (models.AuditLogFilter, error) {
	filter := models.AuditLogFilter{
		Action:     strings.TrimSpace(query.Action),
		ActorID:    strings.TrimSpace(query.ActorID),
		TargetType: strings.TrimSpace(query.TargetType),
		Page:       query.Page,
		Limit:      query.Limit,
	}

	if query.From != "" {
		from, err := parseAuditDate(query.From, false)
		if err != nil {
			return models.AuditLogFilter{}, appErrors.Clone(appErrors.ErrValidation, "invalid from date")
		}
		filter.From = &from
	}
	if query.To != "" {
		to, err := parseAuditDate(query.To, true)
		if err != nil {
			return models.AuditLogFilter{}, appErrors.Clone(appErrors.ErrValidation, "invalid to date")
		}
		filter.To = &to
	}
	return filter, nil
}

// parseAuditDate accepts RFC3339 timestamps or date-only values. Date-only
// inputs normalise to start-of-day, or end-of-day for the upper bound.
func parseAuditDate(raw string, endOfDay bool) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return day.Add(24*time.Hour - time.Nanosecond).UTC(), nil
	}
	return day.UTC(), nil
}
