package dto

// CreateNoticeRequest is the multipart form payload for creating a notice.
// Categories and AllowedRoles bind repeated form keys natively; each value
// may itself be array-ish (see ParseStringValues).
type CreateNoticeRequest struct {
	Title        string   `form:"title" validate:"required"`
	Description  string   `form:"description"`
	Categories   []string `form:"categories"`
	AllowedRoles []string `form:"allowedRoles"`
}

// UpdateNoticeRequest is a partial update: only fields present in the form
// are applied. Presence is detected by the handler, not by zero values.
type UpdateNoticeRequest struct {
	Title        *string
	Description  *string
	Categories   *[]string
	AllowedRoles *[]string
}

// NoticeListQuery captures listing parameters.
type NoticeListQuery struct {
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
	Search   string `form:"search"`
	Category string `form:"category"`
	// Deleted is admin-only; "true"/"false" select a partition explicitly.
	Deleted string `form:"isDeleted"`
}

// BulkRestoreResponse reports the bulk restore outcome.
type BulkRestoreResponse struct {
	RestoredCount int `json:"restoredCount"`
}

// BulkPurgeResponse reports the bulk permanent delete outcome.
type BulkPurgeResponse struct {
	Requested int `json:"requested"`
	Deleted   int `json:"deleted"`
}
