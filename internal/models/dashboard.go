package models

// DashboardMetrics aggregates notice-board activity for the admin dashboard.
type DashboardMetrics struct {
	Notices struct {
		Total   int `json:"total"`
		Active  int `json:"active"`
		Deleted int `json:"deleted"`
	} `json:"notices"`
	Files struct {
		TotalDownloads int `json:"totalDownloads"`
		TotalViews     int `json:"totalViews"`
	} `json:"files"`
	Users struct {
		Total int `json:"total"`
	} `json:"users"`
}

// NoticeStat names a notice together with one of its counters.
type NoticeStat struct {
	Title string `db:"title" json:"title"`
	Count int    `db:"count" json:"count"`
}

// DailyCount buckets audit activity per day.
type DailyCount struct {
	Day   string `db:"day" json:"day"`
	Count int    `db:"count" json:"count"`
}

// Dashboard is the cached admin dashboard payload.
type Dashboard struct {
	Metrics            DashboardMetrics `json:"metrics"`
	MostDownloaded     *NoticeStat      `json:"mostDownloaded,omitempty"`
	MostViewed         *NoticeStat      `json:"mostViewed,omitempty"`
	Last7DaysDownloads []DailyCount     `json:"last7DaysDownloads"`
}
