package domain

import "time"

// VideoSort selects the ordering requested from the video-listing source.
// Values include VideoSortPopular and VideoSortRecent.
type VideoSort string

const (
	VideoSortPopular VideoSort = "popular"
	VideoSortRecent  VideoSort = "recent"
)

// DailyStat is one day of third-party channel statistics.
type DailyStat struct {
	Date             time.Time `json:"date"`
	SubscribersDelta int64     `json:"subscribers_delta"`
	Views            int64     `json:"views"`
	VideosPosted     int64     `json:"videos_posted"`
	HadUpload        bool      `json:"had_upload"`
}

// ListedVideo is a single entry returned by the video-listing source.
// LengthText is the display duration ("12:34", "1:02:03"); Type is "video" or "shorts".
type ListedVideo struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	ViewCount     int64      `json:"view_count"`
	LengthText    string     `json:"length_text"`
	Type          string     `json:"type"`
	PublishedText string     `json:"published_text,omitempty"`
	PublishDate   *time.Time `json:"publish_date,omitempty"`
}

// IsShort reports whether the listing marks the entry as a short.
func (v ListedVideo) IsShort() bool {
	return v.Type == "shorts" || v.Type == "short"
}

// ChannelProfile is the descriptive metadata of a channel as reported by the listing source.
type ChannelProfile struct {
	ChannelID       string   `json:"channel_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Keywords        []string `json:"keywords"`
	SubscriberCount int64    `json:"subscriber_count"`
	TotalViews      int64    `json:"total_views"`
	VideoCount      int64    `json:"video_count"`
}
