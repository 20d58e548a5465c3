package dto

// AuditLogQuery captures audit listing parameters. From and To are
// date-only (YYYY-MM-DD) or RFC3339 values; date-only inputs are normalized
// to start-of-day and end-of-day respectively.
type AuditLogQuery struct {
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
	Action     string `form:"action"`
	ActorID    string `form:"actorId"`
	TargetType string `form:"targetType"`
	From       string `form:"from"`
	To         string `form:"to"`
}

// AuditExportQuery selects the export rendering.
type AuditExportQuery struct {
	AuditLogQuery
	Format string `form:"format"`
}
