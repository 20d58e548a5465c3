package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-notice-api/internal/models"
	appErrors "github.com/noah-isme/campus-notice-api/pkg/errors"
)

type noticeStatsStub struct {
	counts    models.NoticeCounts
	views     int
	downloads int
	tops      map[string]*models.NoticeStat
	calls     int
}

func (s *noticeStatsStub) Counts(ctx context.Context) (*models.NoticeCounts, error) {
	s.calls++
	counts := s.counts
	return &counts, nil
}

func (s *noticeStatsStub) CounterTotals(ctx context.Context) (int, int, error) {
	return s.views, s.downloads, nil
}

func (s *noticeStatsStub) TopByCounter(ctx context.Context, counter string) (*models.NoticeStat, error) {
	return s.tops[counter], nil
}

type userCounterStub struct {
	total int
}

func (s userCounterStub) Count(ctx context.Context) (int, error) { return s.total, nil }

type downloadSeriesStub struct {
	series []models.DailyCount
}

func (s downloadSeriesStub) DailyDownloads(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	return s.series, nil
}

type dashboardCacheStub struct {
	entries map[string][]byte
	deleted []string
}

func newDashboardCacheStub() *dashboardCacheStub {
	return &dashboardCacheStub{entries: make(map[string][]byte)}
}

func (c *dashboardCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *dashboardCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *dashboardCacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.deleted = append(c.deleted, pattern)
	for key := range c.entries {
		delete(c.entries, key)
	}
	return nil
}

func TestDashboardServiceBuildsMetrics(t *testing.T) {
	stats := &noticeStatsStub{
		counts:    models.NoticeCounts{Published: 8, Trash: 2},
		views:     120,
		downloads: 45,
		tops: map[string]*models.NoticeStat{
			"view_count":     {Title: "Exam schedule", Count: 60},
			"download_count": {Title: "Holiday circular", Count: 30},
		},
	}
	svc := NewDashboardService(stats, userCounterStub{total: 14}, downloadSeriesStub{}, nil, nil, time.Minute)

	dashboard, err := svc.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, dashboard.Metrics.Notices.Total)
	assert.Equal(t, 8, dashboard.Metrics.Notices.Active)
	assert.Equal(t, 2, dashboard.Metrics.Notices.Deleted)
	assert.Equal(t, 120, dashboard.Metrics.Files.TotalViews)
	assert.Equal(t, 45, dashboard.Metrics.Files.TotalDownloads)
	assert.Equal(t, 14, dashboard.Metrics.Users.Total)
	require.NotNil(t, dashboard.MostViewed)
	assert.Equal(t, "Exam schedule", dashboard.MostViewed.Title)
	assert.NotNil(t, dashboard.Last7DaysDownloads)
}

func TestDashboardServiceServesCachedCopy(t *testing.T) {
	stats := &noticeStatsStub{counts: models.NoticeCounts{Published: 1}}
	cache := newDashboardCacheStub()
	svc := NewDashboardService(stats, userCounterStub{}, downloadSeriesStub{}, cache, nil, time.Minute)

	_, err := svc.Get(context.Background())
	require.NoError(t, err)
	_, err = svc.Get(context.Background())
	require.NoError(t, err)

	// Second read is a cache hit, so the stores are queried once.
	assert.Equal(t, 1, stats.calls)
}

func TestDashboardServiceInvalidateDropsCache(t *testing.T) {
	stats := &noticeStatsStub{counts: models.NoticeCounts{Published: 1}}
	cache := newDashboardCacheStub()
	svc := NewDashboardService(stats, userCounterStub{}, downloadSeriesStub{}, cache, nil, time.Minute)

	_, err := svc.Get(context.Background())
	require.NoError(t, err)
	svc.Invalidate(context.Background())

	_, err = svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.calls)
	assert.NotEmpty(t, cache.deleted)
}
