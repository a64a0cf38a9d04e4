package domain

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"
)

// Categorization is the taxonomy assigned to a channel by the classifier.
type Categorization struct {
	Niche      string `json:"niche"`
	Subniche   string `json:"subniche"`
	Microniche string `json:"microniche"`
	Category   string `json:"category"`
	Format     string `json:"format"`
}

// IsEmpty reports whether no niche has been assigned.
func (c *Categorization) IsEmpty() bool {
	return c == nil || strings.TrimSpace(c.Niche) == ""
}

// ToMap converts the categorization into a step result payload.
func (c Categorization) ToMap() JSONMap {
	return JSONMap{
		"niche":      c.Niche,
		"subniche":   c.Subniche,
		"microniche": c.Microniche,
		"category":   c.Category,
		"format":     c.Format,
	}
}

// Value implements the driver.Valuer interface for database serialization.
func (c *Categorization) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (c *Categorization) Scan(value interface{}) error {
	bytes, err := scanBytes(value, "Categorization")
	if err != nil {
		return err
	}
	if len(bytes) == 0 {
		*c = Categorization{}
		return nil
	}
	return json.Unmarshal(bytes, c)
}

// Channel is a YouTube channel record. The pipeline reads its descriptive
// fields and writes categorization and sync markers.
type Channel struct {
	ID                     uint            `gorm:"primaryKey" json:"-"`
	ChannelID              string          `gorm:"type:text;not null;uniqueIndex" json:"channel_id"`
	Title                  string          `gorm:"type:text" json:"title"`
	Description            string          `gorm:"type:text" json:"description"`
	Keywords               StringArray     `gorm:"type:text" json:"keywords"`
	SubscriberCount        int64           `gorm:"default:0" json:"subscriber_count"`
	TotalViews             int64           `gorm:"default:0" json:"total_views"`
	VideoCount             int64           `gorm:"default:0" json:"video_count"`
	Categorization         *Categorization `gorm:"type:text" json:"categorization,omitempty"`
	RecentVideosSyncedAt   *time.Time      `json:"recent_videos_synced_at,omitempty"`
	TrendingVideosSyncedAt *time.Time      `json:"trending_videos_synced_at,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

// TableName returns the database table name for Channel.
func (Channel) TableName() string {
	return "channels"
}

// HasCategorization reports whether a non-empty categorization is stored.
func (c *Channel) HasCategorization() bool {
	return c != nil && !c.Categorization.IsEmpty()
}

// ApplyProfile copies descriptive fields from a listing profile.
func (c *Channel) ApplyProfile(p *ChannelProfile) {
	if p == nil {
		return
	}
	if p.Title != "" {
		c.Title = p.Title
	}
	if p.Description != "" {
		c.Description = p.Description
	}
	if len(p.Keywords) > 0 {
		c.Keywords = StringArray(p.Keywords)
	}
	if p.SubscriberCount > 0 {
		c.SubscriberCount = p.SubscriberCount
	}
	if p.TotalViews > 0 {
		c.TotalViews = p.TotalViews
	}
	if p.VideoCount > 0 {
		c.VideoCount = p.VideoCount
	}
}
