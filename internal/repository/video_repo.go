package repository

import (
	"context"

	"github.com/timmy/tubebench/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VideoRepository handles channel video persistence.
type VideoRepository struct {
	db *gorm.DB
}

// NewVideoRepository creates a new VideoRepository.
func NewVideoRepository(db *gorm.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// UpsertMany inserts or refreshes videos keyed by video_id. Ratio columns are left alone.
// Repeated IDs are collapsed to their first occurrence, since PostgreSQL rejects an
// ON CONFLICT statement that touches the same row twice. Returns the number of rows written.
func (r *VideoRepository) UpsertMany(ctx context.Context, videos []domain.Video) (int, error) {
	videos = uniqueVideos(videos)
	if len(videos) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "video_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "view_count", "length_text", "duration_seconds",
			"is_short", "published_at", "listing", "updated_at",
		}),
	}).CreateInBatches(videos, 100)
	if res.Error != nil {
		return 0, res.Error
	}
	return len(videos), nil
}

func uniqueVideos(videos []domain.Video) []domain.Video {
	seen := make(map[string]struct{}, len(videos))
	out := make([]domain.Video, 0, len(videos))
	for _, v := range videos {
		if _, dup := seen[v.VideoID]; dup {
			continue
		}
		seen[v.VideoID] = struct{}{}
		out = append(out, v)
	}
	return out
}

// ListByChannel retrieves every stored video of a channel, most viewed first.
func (r *VideoRepository) ListByChannel(ctx context.Context, channelID string) ([]domain.Video, error) {
	var videos []domain.Video
	if err := r.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Order("view_count DESC").
		Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}

// UpdateRatios writes outlier-analysis results in one transaction.
func (r *VideoRepository) UpdateRatios(ctx context.Context, ratios []domain.VideoRatios) error {
	if len(ratios) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, vr := range ratios {
			if err := tx.Model(&domain.Video{}).
				Where("video_id = ?", vr.VideoID).
				Updates(map[string]interface{}{
					"ratio_vs_avg":    vr.RatioVsAvg,
					"ratio_vs_median": vr.RatioVsMedian,
					"ratio_vs_14d":    vr.RatioVs14d,
					"ratio_vs_30d":    vr.RatioVs30d,
					"ratio_vs_90d":    vr.RatioVs90d,
					"outlier_score":   vr.OutlierScore,
					"is_outlier":      vr.IsOutlier,
					"outlier_tier":    vr.OutlierTier,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListOutliers retrieves videos whose outlier score is at least minScore, highest first.
func (r *VideoRepository) ListOutliers(ctx context.Context, channelID string, minScore float64, limit int) ([]domain.Video, error) {
	var videos []domain.Video
	query := r.db.WithContext(ctx).
		Where("channel_id = ? AND outlier_score >= ?", channelID, minScore).
		Order("outlier_score DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&videos).Error; err != nil {
		return nil, err
	}
	return videos, nil
}
