package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionNoticeCreate          = "NOTICE_CREATE"
	AuditActionNoticeUpdate          = "NOTICE_UPDATE"
	AuditActionNoticeDelete          = "NOTICE_DELETE"
	AuditActionNoticeRestore         = "NOTICE_RESTORE"
	AuditActionNoticePermanentDelete = "NOTICE_PERMANENT_DELETE"
	AuditActionNoticeView            = "NOTICE_VIEW"
	AuditActionNoticeDownload        = "NOTICE_DOWNLOAD"
	AuditActionUserRoleChange        = "USER_ROLE_CHANGE"
)

// Audit target types.
const (
	AuditTargetNotice = "Notice"
	AuditTargetUser   = "User"
)

// AuditLog is an append-only record of a mutating or sensitive-read action.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	ActorID    *string   `db:"actor_id" json:"actorId,omitempty"`
	Action     string    `db:"action" json:"action"`
	TargetType string    `db:"target_type" json:"targetType"`
	TargetID   string    `db:"target_id" json:"targetId"`
	Meta       []byte    `db:"meta" json:"meta,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// AuditLogFilter narrows audit queries. From and To are inclusive.
type AuditLogFilter struct {
	Action     string
	ActorID    string
	TargetType string
	From       *time.Time
	To         *time.Time
	Page       int
	Limit      int
}
