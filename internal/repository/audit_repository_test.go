package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-notice-api/internal/models"
)

func TestAuditCreateAssignsIDAndTimestamp(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	actor := "u1"
	entry := &models.AuditLog{ActorID: &actor, Action: models.AuditActionNoticeCreate, TargetType: models.AuditTargetNotice, TargetID: "n1"}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditListFiltersByActionAndWindow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	now := time.Now()
	from := now.Add(-24 * time.Hour)
	rows := sqlmock.NewRows([]string{"id", "actor_id", "action", "target_type", "target_id", "meta", "created_at"}).
		AddRow("a1", "u1", models.AuditActionNoticeDownload, models.AuditTargetNotice, "n1", []byte(`{}`), now)
	mock.ExpectQuery("SELECT id, actor_id, action, target_type, target_id, meta, created_at\nFROM audit_logs WHERE action = \\$1 AND created_at >= \\$2 ORDER BY created_at DESC LIMIT 20 OFFSET 0").
		WithArgs(models.AuditActionNoticeDownload, from).
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM audit_logs WHERE action = \\$1 AND created_at >= \\$2").
		WithArgs(models.AuditActionNoticeDownload, from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	entries, total, err := repo.List(context.Background(), models.AuditLogFilter{Action: models.AuditActionNoticeDownload, From: &from})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditDailyActionCounts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	since := time.Now().AddDate(0, 0, -7)
	rows := sqlmock.NewRows([]string{"day", "count"}).
		AddRow("2026-08-20", 3).
		AddRow("2026-08-21", 5)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT TO_CHAR(created_at, 'YYYY-MM-DD') AS day, COUNT(*) AS count")).
		WithArgs(models.AuditActionNoticeDownload, since).
		WillReturnRows(rows)

	counts, err := repo.DailyActionCounts(context.Background(), models.AuditActionNoticeDownload, since)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "2026-08-20", counts[0].Day)
	assert.Equal(t, 5, counts[1].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
