package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-notice-api/internal/models"
)

const noticeColumns = `id, title, description, file_name, file_key, file_locator, file_content_type, file_size_bytes,
       archived_file_keys, categories, allowed_roles, view_count, download_count, created_by, is_deleted, deleted_at, created_at, updated_at`

// NoticeRepository provides persistence for notices.
type NoticeRepository struct {
	db *sqlx.DB
}

// NewNoticeRepository creates the repository.
func NewNoticeRepository(db *sqlx.DB) *NoticeRepository {
	return &NoticeRepository{db: db}
}

// Create inserts a new notice.
func (r *NoticeRepository) Create(ctx context.Context, notice *models.Notice) error {
	if notice.ID == "" {
		notice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if notice.CreatedAt.IsZero() {
		notice.CreatedAt = now
	}
	notice.UpdatedAt = now
	if notice.Categories == nil {
		notice.Categories = pq.StringArray{}
	}
	if notice.AllowedRoles == nil {
		notice.AllowedRoles = pq.StringArray{}
	}
	if notice.ArchivedFileKeys == nil {
		notice.ArchivedFileKeys = pq.StringArray{}
	}
	query := `INSERT INTO notices (id, title, description, file_name, file_key, file_locator, file_content_type, file_size_bytes,
archived_file_keys, categories, allowed_roles, view_count, download_count, created_by, is_deleted, deleted_at, created_at, updated_at)
VALUES (:id, :title, :description, :file_name, :file_key, :file_locator, :file_content_type, :file_size_bytes,
:archived_file_keys, :categories, :allowed_roles, :view_count, :download_count, :created_by, :is_deleted, :deleted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notice); err != nil {
		return fmt.Errorf("create notice: %w", err)
	}
	return nil
}

// GetByID returns a notice by identifier regardless of soft-delete state.
func (r *NoticeRepository) GetByID(ctx context.Context, id string) (*models.Notice, error) {
	query := fmt.Sprintf("SELECT %s FROM notices WHERE id = $1", noticeColumns)
	var notice models.Notice
	if err := r.db.GetContext(ctx, &notice, query, id); err != nil {
		return nil, err
	}
	return &notice, nil
}

// Update persists the full notice row.
func (r *NoticeRepository) Update(ctx context.Context, notice *models.Notice) error {
	notice.UpdatedAt = time.Now().UTC()
	query := `UPDATE notices SET title = :title, description = :description, file_name = :file_name, file_key = :file_key,
file_locator = :file_locator, file_content_type = :file_content_type, file_size_bytes = :file_size_bytes,
archived_file_keys = :archived_file_keys, categories = :categories, allowed_roles = :allowed_roles, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, notice); err != nil {
		return fmt.Errorf("update notice: %w", err)
	}
	return nil
}

// List returns notices matching the filter plus the unpaginated total.
func (r *NoticeRepository) List(ctx context.Context, filter models.NoticeFilter) ([]models.Notice, int, error) {
	where := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)

	deleted := false
	if filter.Deleted != nil {
		deleted = *filter.Deleted
	}
	args = append(args, deleted)
	where = append(where, fmt.Sprintf("is_deleted = $%d", len(args)))

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		where = append(where, fmt.Sprintf("$%d = ANY(categories)", len(args)))
	}
	if filter.PublicOnly {
		where = append(where, "allowed_roles = '{}'")
	} else if filter.ViewerRoleID != "" {
		args = append(args, filter.ViewerRoleID)
		where = append(where, fmt.Sprintf("(allowed_roles = '{}' OR $%d = ANY(allowed_roles))", len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(`SELECT %s FROM notices WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		noticeColumns, whereClause, limit, offset)
	var notices []models.Notice
	if err := r.db.SelectContext(ctx, &notices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notices: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM notices WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notices: %w", err)
	}
	return notices, total, nil
}

// ListDeleted returns the trash, most recently deleted first.
func (r *NoticeRepository) ListDeleted(ctx context.Context) ([]models.Notice, error) {
	query := fmt.Sprintf("SELECT %s FROM notices WHERE is_deleted = TRUE ORDER BY deleted_at DESC", noticeColumns)
	var notices []models.Notice
	if err := r.db.SelectContext(ctx, &notices, query); err != nil {
		return nil, fmt.Errorf("list deleted notices: %w", err)
	}
	return notices, nil
}

// SoftDelete marks an active notice as trashed.
func (r *NoticeRepository) SoftDelete(ctx context.Context, id string, deletedAt time.Time) error {
	const query = `UPDATE notices SET is_deleted = TRUE, deleted_at = $2, updated_at = $2 WHERE id = $1 AND is_deleted = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, deletedAt)
	if err != nil {
		return fmt.Errorf("soft delete notice: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check notice delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RestoreMany flips every trashed notice in ids back to active in a single
// statement and returns the affected records for audit emission.
func (r *NoticeRepository) RestoreMany(ctx context.Context, ids []string) ([]models.RestoredNotice, error) {
	const query = `UPDATE notices SET is_deleted = FALSE, deleted_at = NULL, updated_at = $2
WHERE id = ANY($1) AND is_deleted = TRUE
RETURNING id, title`
	var restored []models.RestoredNotice
	if err := r.db.SelectContext(ctx, &restored, query, pq.Array(ids), time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("restore notices: %w", err)
	}
	return restored, nil
}

// PurgeMany removes every trashed notice in ids in a single statement.
// Active notices in the set are left untouched. The returned records carry
// the archived key history so file reclamation can address every copy.
func (r *NoticeRepository) PurgeMany(ctx context.Context, ids []string) ([]models.PurgedNotice, error) {
	const query = `DELETE FROM notices WHERE id = ANY($1) AND is_deleted = TRUE
RETURNING id, title, file_key, file_locator, archived_file_keys`
	var purged []models.PurgedNotice
	if err := r.db.SelectContext(ctx, &purged, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("purge notices: %w", err)
	}
	return purged, nil
}

// IncrementViewCount bumps the view counter atomically at the storage layer.
func (r *NoticeRepository) IncrementViewCount(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE notices SET view_count = view_count + 1 WHERE id = $1", id); err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	return nil
}

// IncrementDownloadCount bumps the download counter atomically.
func (r *NoticeRepository) IncrementDownloadCount(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE notices SET download_count = download_count + 1 WHERE id = $1", id); err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}
	return nil
}

// Counts summarises the published and trashed partitions.
func (r *NoticeRepository) Counts(ctx context.Context) (*models.NoticeCounts, error) {
	const query = `SELECT
       COUNT(*) FILTER (WHERE is_deleted = FALSE) AS published,
       COUNT(*) FILTER (WHERE is_deleted = TRUE) AS trash
FROM notices`
	var counts models.NoticeCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count notices: %w", err)
	}
	return &counts, nil
}

// CounterTotals sums view and download counters over active notices.
func (r *NoticeRepository) CounterTotals(ctx context.Context) (views int, downloads int, err error) {
	const query = `SELECT COALESCE(SUM(view_count), 0) AS views, COALESCE(SUM(download_count), 0) AS downloads
FROM notices WHERE is_deleted = FALSE`
	row := struct {
		Views     int `db:"views"`
		Downloads int `db:"downloads"`
	}{}
	if err := r.db.GetContext(ctx, &row, query); err != nil {
		return 0, 0, fmt.Errorf("sum notice counters: %w", err)
	}
	return row.Views, row.Downloads, nil
}

// TopByCounter returns the active notice with the highest counter value.
// counter must be one of "view_count" or "download_count".
func (r *NoticeRepository) TopByCounter(ctx context.Context, counter string) (*models.NoticeStat, error) {
	if counter != "view_count" && counter != "download_count" {
		return nil, fmt.Errorf("unsupported counter %q", counter)
	}
	query := fmt.Sprintf(`SELECT title, %s AS count FROM notices WHERE is_deleted = FALSE ORDER BY %s DESC LIMIT 1`, counter, counter)
	var stat models.NoticeStat
	if err := r.db.GetContext(ctx, &stat, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("top notice by %s: %w", counter, err)
	}
	return &stat, nil
}
