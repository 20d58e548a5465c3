package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-notice-api/internal/models"
	appErrors "github.com/noah-isme/campus-notice-api/pkg/errors"
)

const dashboardCacheKey = "dashboard:admin"

type dashboardNoticeStats interface {
	Counts(ctx context.Context) (*models.NoticeCounts, error)
	CounterTotals(ctx context.Context) (views int, downloads int, err error)
	TopByCounter(ctx context.Context, counter string) (*models.NoticeStat, error)
}

type dashboardUserCounter interface {
	Count(ctx context.Context) (int, error)
}

type dashboardDownloadSeries interface {
	DailyDownloads(ctx context.Context, since time.Time) ([]models.DailyCount, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// DashboardService aggregates notice-board activity for the admin dashboard
// and caches the payload in Redis.
type DashboardService struct {
	notices   dashboardNoticeStats
	users     dashboardUserCounter
	downloads dashboardDownloadSeries
	cache     dashboardCache
	logger    *zap.Logger
	cacheTTL  time.Duration
}

// NewDashboardService constructs the service.
func NewDashboardService(notices dashboardNoticeStats, users dashboardUserCounter, downloads dashboardDownloadSeries, cache dashboardCache, logger *zap.Logger, cacheTTL time.Duration) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{
		notices:   notices,
		users:     users,
		downloads: downloads,
		cache:     cache,
		logger:    logger,
		cacheTTL:  cacheTTL,
	}
}

// Get assembles the dashboard, serving the cached copy when fresh.
func (s *DashboardService) Get(ctx context.Context) (*models.Dashboard, error) {
	if s.cache != nil {
		var cached models.Dashboard
		err := s.cache.Get(ctx, dashboardCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	dashboard, err := s.build(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, dashboard, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return dashboard, nil
}

// Invalidate drops the cached dashboard after a notice mutation. Safe to
// call on a nil service so callers can wire it unconditionally.
func (s *DashboardService) Invalidate(ctx context.Context) {
	if s == nil || s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, dashboardCacheKey); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func (s *DashboardService) build(ctx context.Context) (*models.Dashboard, error) {
	counts, err := s.notices.Counts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notices")
	}
	views, downloads, err := s.notices.CounterTotals(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum notice counters")
	}
	userTotal, err := s.users.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}

	mostViewed, err := s.notices.TopByCounter(ctx, "view_count")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load most viewed notice")
	}
	mostDownloaded, err := s.notices.TopByCounter(ctx, "download_count")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load most downloaded notice")
	}

	since := time.Now().UTC().AddDate(0, 0, -7)
	series, err := s.downloads.DailyDownloads(ctx, since)
	if err != nil {
		return nil, err
	}
	if series == nil {
		series = []models.DailyCount{}
	}

	dashboard := &models.Dashboard{
		MostDownloaded:     mostDownloaded,
		MostViewed:         mostViewed,
		Last7DaysDownloads: series,
	}
	dashboard.Metrics.Notices.Total = counts.Published + counts.Trash
	dashboard.Metrics.Notices.Active = counts.Published
	dashboard.Metrics.Notices.Deleted = counts.Trash
	dashboard.Metrics.Files.TotalViews = views
	dashboard.Metrics.Files.TotalDownloads = downloads
	dashboard.Metrics.Users.Total = userTotal
	return dashboard, nil
}
