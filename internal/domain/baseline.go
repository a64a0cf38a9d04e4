package domain

import "time"

// BaselineStats holds per-channel aggregates used as the denominator for
// video performance ratios. A row exists even when the third-party source
// had nothing: IsAvailable is false and the window aggregates are nil.
type BaselineStats struct {
	ID        uint   `gorm:"primaryKey" json:"-"`
	ChannelID string `gorm:"type:text;not null;uniqueIndex" json:"channel_id"`

	SubscribersGained14d *int64   `gorm:"column:subscribers_gained_14d" json:"subscribers_gained_14d"`
	Views14d             *int64   `gorm:"column:views_14d" json:"views_14d"`
	VideosPosted14d      *int64   `gorm:"column:videos_posted_14d" json:"videos_posted_14d"`
	UploadDays14d        *int64   `gorm:"column:upload_days_14d" json:"upload_days_14d"`
	AvgViewsPerDay       *float64 `json:"avg_views_per_day"`
	AvgSubsPerDay        *float64 `json:"avg_subs_per_day"`
	GrowthRatePct        *float64 `json:"growth_rate_pct"`

	HistoricalAvgViewsPerVideo *float64 `json:"historical_avg_views_per_video"`

	AllTimeAvgViews    *float64 `json:"all_time_avg_views"`
	AllTimeMedianViews *float64 `json:"all_time_median_views"`
	AvgViews14d        *float64 `gorm:"column:avg_views_14d" json:"avg_views_14d"`
	AvgViews30d        *float64 `gorm:"column:avg_views_30d" json:"avg_views_30d"`
	AvgViews90d        *float64 `gorm:"column:avg_views_90d" json:"avg_views_90d"`

	IsAvailable bool       `gorm:"default:false" json:"is_available"`
	WindowStart *time.Time `json:"window_start,omitempty"`
	WindowEnd   *time.Time `json:"window_end,omitempty"`
	FetchedAt   time.Time  `json:"fetched_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for BaselineStats.
func (BaselineStats) TableName() string {
	return "baseline_stats"
}

// VideoHorizons are the video-derived baselines computed by outlier analysis.
type VideoHorizons struct {
	AllTimeAvg    *float64 `json:"all_time_avg"`
	AllTimeMedian *float64 `json:"all_time_median"`
	Avg14d        *float64 `json:"avg_14d"`
	Avg30d        *float64 `json:"avg_30d"`
	Avg90d        *float64 `json:"avg_90d"`
}
