package models

import (
	"time"

	"github.com/lib/pq"
)

// Notice is the central entity: a published document with one attachment,
// category tags, and an optional role allow-list.
type Notice struct {
	ID          string `db:"id" json:"id"`
	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description,omitempty"`

	FileName        string `db:"file_name" json:"fileName"`
	FileKey         string `db:"file_key" json:"-"`
	FileLocator     string `db:"file_locator" json:"fileLocator"`
	FileContentType string `db:"file_content_type" json:"fileContentType"`
	FileSizeBytes   int64  `db:"file_size_bytes" json:"fileSizeBytes"`

	// ArchivedFileKeys accumulates the keys of attachments replaced by
	// updates. Archives live under the key that was current when the file
	// was archived, so purge reclamation needs the full history.
	ArchivedFileKeys pq.StringArray `db:"archived_file_keys" json:"-"`

	// Categories and AllowedRoles hold referenced ids. An empty AllowedRoles
	// set means the notice is public.
	Categories   pq.StringArray `db:"categories" json:"categories"`
	AllowedRoles pq.StringArray `db:"allowed_roles" json:"allowedRoles"`

	ViewCount     int `db:"view_count" json:"viewCount"`
	DownloadCount int `db:"download_count" json:"downloadCount"`

	CreatedBy string     `db:"created_by" json:"createdBy"`
	IsDeleted bool       `db:"is_deleted" json:"isDeleted"`
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

// Public reports whether the notice has no role restriction.
func (n *Notice) Public() bool {
	return len(n.AllowedRoles) == 0
}

// HasAllowedRole reports membership of roleID in the allow-list.
func (n *Notice) HasAllowedRole(roleID string) bool {
	for _, id := range n.AllowedRoles {
		if id == roleID {
			return true
		}
	}
	return false
}

// NoticeFilter narrows listing queries.
type NoticeFilter struct {
	Search     string
	CategoryID string
	// Deleted selects the soft-delete partition: nil means non-deleted only.
	Deleted *bool
	// ViewerRoleID applies the allow-list filter for non-admin viewers;
	// PublicOnly restricts to unrestricted notices (anonymous viewers).
	ViewerRoleID string
	PublicOnly   bool
	Page         int
	Limit        int
}

// NoticeCounts summarises the soft-delete partitions.
type NoticeCounts struct {
	Published int `db:"published" json:"published"`
	Trash     int `db:"trash" json:"trash"`
}

// RestoredNotice is returned by the bulk restore transition.
type RestoredNotice struct {
	ID    string `db:"id"`
	Title string `db:"title"`
}

// PurgedNotice carries what the purge transition removed, so attachment
// reclamation can run afterwards.
type PurgedNotice struct {
	ID               string         `db:"id"`
	Title            string         `db:"title"`
	FileKey          string         `db:"file_key"`
	FileLocator      string         `db:"file_locator"`
	ArchivedFileKeys pq.StringArray `db:"archived_file_keys"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

// NewPagination derives the page count from the total.
func NewPagination(total, page, limit int) *Pagination {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}
	return &Pagination{Total: total, Page: page, Limit: limit, TotalPages: totalPages}
}
