package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/tubebench/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChannelRepository handles channel data operations.
type ChannelRepository struct {
	db *gorm.DB
}

// NewChannelRepository creates a new ChannelRepository.
func NewChannelRepository(db *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// GetByChannelID retrieves a channel by its YouTube identifier.
func (r *ChannelRepository) GetByChannelID(ctx context.Context, channelID string) (*domain.Channel, error) {
	var ch domain.Channel
	if err := r.db.WithContext(ctx).First(&ch, "channel_id = ?", channelID).Error; err != nil {
		return nil, translate(err)
	}
	return &ch, nil
}

// Upsert creates the channel or refreshes its descriptive fields.
// Categorization and sync markers are never overwritten here.
func (r *ChannelRepository) Upsert(ctx context.Context, ch *domain.Channel) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "channel_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "keywords",
			"subscriber_count", "total_views", "video_count", "updated_at",
		}),
	}).Create(ch).Error
}

// EnsureExists inserts a bare channel row unless one already exists.
func (r *ChannelRepository) EnsureExists(ctx context.Context, channelID string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}},
		DoNothing: true,
	}).Create(&domain.Channel{ChannelID: channelID}).Error
}

// SetCategorization stores the classifier result on the channel.
func (r *ChannelRepository) SetCategorization(ctx context.Context, channelID string, c *domain.Categorization) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Channel{}).
		Where("channel_id = ?", channelID).
		Update("categorization", c)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("channel %s: %w", channelID, ErrNotFound)
	}
	return nil
}

// MarkVideosSynced records when a listing was last ingested for the channel.
func (r *ChannelRepository) MarkVideosSynced(ctx context.Context, channelID string, listing domain.VideoSort, at time.Time) error {
	column := "recent_videos_synced_at"
	if listing == domain.VideoSortPopular {
		column = "trending_videos_synced_at"
	}
	return r.db.WithContext(ctx).
		Model(&domain.Channel{}).
		Where("channel_id = ?", channelID).
		Update(column, at).Error
}
