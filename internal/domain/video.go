package domain

import "time"

// Video is a stored channel video together with its performance ratios.
// Ratio fields are nil when the corresponding baseline was unavailable.
type Video struct {
	ID              uint       `gorm:"primaryKey" json:"-"`
	VideoID         string     `gorm:"type:text;not null;uniqueIndex" json:"video_id"`
	ChannelID       string     `gorm:"type:text;not null;index" json:"channel_id"`
	Title           string     `gorm:"type:text" json:"title"`
	ViewCount       int64      `gorm:"default:0" json:"view_count"`
	LengthText      string     `gorm:"type:text" json:"length_text"`
	DurationSeconds int        `gorm:"default:0" json:"duration_seconds"`
	IsShort         bool       `gorm:"default:false" json:"is_short"`
	PublishedAt     *time.Time `gorm:"index" json:"published_at,omitempty"`
	Listing         VideoSort  `gorm:"type:text" json:"listing"`

	RatioVsAvg    *float64 `json:"ratio_vs_avg,omitempty"`
	RatioVsMedian *float64 `json:"ratio_vs_median,omitempty"`
	RatioVs14d    *float64 `gorm:"column:ratio_vs_14d" json:"ratio_vs_14d,omitempty"`
	RatioVs30d    *float64 `gorm:"column:ratio_vs_30d" json:"ratio_vs_30d,omitempty"`
	RatioVs90d    *float64 `gorm:"column:ratio_vs_90d" json:"ratio_vs_90d,omitempty"`
	OutlierScore  *float64 `gorm:"index" json:"outlier_score,omitempty"`
	IsOutlier     bool     `gorm:"default:false;index" json:"is_outlier"`
	OutlierTier   int      `gorm:"default:0" json:"outlier_tier"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Video.
func (Video) TableName() string {
	return "videos"
}

// VideoRatios is the outlier-analysis output for a single video.
type VideoRatios struct {
	VideoID       string
	RatioVsAvg    *float64
	RatioVsMedian *float64
	RatioVs14d    *float64
	RatioVs30d    *float64
	RatioVs90d    *float64
	OutlierScore  *float64
	IsOutlier     bool
	OutlierTier   int
}
