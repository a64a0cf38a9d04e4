package repository

import (
	"context"
	"time"

	"github.com/timmy/tubebench/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// baselineWindowColumns are the columns owned by metrics aggregation.
// Video-derived horizons are written separately by outlier analysis.
var baselineWindowColumns = []string{
	"subscribers_gained_14d", "views_14d", "videos_posted_14d", "upload_days_14d",
	"avg_views_per_day", "avg_subs_per_day", "growth_rate_pct",
	"historical_avg_views_per_video", "is_available",
	"window_start", "window_end", "fetched_at", "updated_at",
}

// BaselineRepository handles baseline stats persistence, one row per channel.
type BaselineRepository struct {
	db *gorm.DB
}

// NewBaselineRepository creates a new BaselineRepository.
func NewBaselineRepository(db *gorm.DB) *BaselineRepository {
	return &BaselineRepository{db: db}
}

// GetByChannelID retrieves the baseline row for a channel.
func (r *BaselineRepository) GetByChannelID(ctx context.Context, channelID string) (*domain.BaselineStats, error) {
	var stats domain.BaselineStats
	if err := r.db.WithContext(ctx).First(&stats, "channel_id = ?", channelID).Error; err != nil {
		return nil, translate(err)
	}
	return &stats, nil
}

// Upsert writes the window aggregates keyed by channel_id. Nil aggregates overwrite
// stored values, so an unavailable fetch clears stale numbers.
func (r *BaselineRepository) Upsert(ctx context.Context, stats *domain.BaselineStats) error {
	if stats.FetchedAt.IsZero() {
		stats.FetchedAt = time.Now()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}},
		DoUpdates: clause.AssignmentColumns(baselineWindowColumns),
	}).Create(stats).Error
}

// UpdateVideoHorizons stores the video-derived baselines, creating an unavailable
// row first when the channel has none.
func (r *BaselineRepository) UpdateVideoHorizons(ctx context.Context, channelID string, h domain.VideoHorizons) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}},
			DoNothing: true,
		}).Create(&domain.BaselineStats{ChannelID: channelID, FetchedAt: time.Now()}).Error; err != nil {
			return err
		}
		return tx.Model(&domain.BaselineStats{}).
			Where("channel_id = ?", channelID).
			Updates(map[string]interface{}{
				"all_time_avg_views":    h.AllTimeAvg,
				"all_time_median_views": h.AllTimeMedian,
				"avg_views_14d":         h.Avg14d,
				"avg_views_30d":         h.Avg30d,
				"avg_views_90d":         h.Avg90d,
			}).Error
	})
}
