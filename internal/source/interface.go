package source

import (
	"context"
	"errors"
	"sort"

	"github.com/timmy/tubebench/internal/domain"
)

// ErrNoData signals that a source legitimately has nothing for the channel.
var ErrNoData = errors.New("no data available")

// MetricsTotals are sums over a daily statistics window.
type MetricsTotals struct {
	SubscribersDelta int64 `json:"subscribers_delta"`
	Views            int64 `json:"views"`
	VideosPosted     int64 `json:"videos_posted"`
	UploadDays       int64 `json:"upload_days"`
}

// MetricsReport is the normalized output of a third-party metrics source.
type MetricsReport struct {
	Days   []domain.DailyStat `json:"days"` // oldest first
	Totals MetricsTotals      `json:"totals"`
}

// NewMetricsReport sorts days oldest first and computes totals.
func NewMetricsReport(days []domain.DailyStat) *MetricsReport {
	sorted := make([]domain.DailyStat, len(days))
	copy(sorted, days)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	r := &MetricsReport{Days: sorted}
	for _, d := range sorted {
		r.Totals.SubscribersDelta += d.SubscribersDelta
		r.Totals.Views += d.Views
		r.Totals.VideosPosted += d.VideosPosted
		if d.HadUpload {
			r.Totals.UploadDays++
		}
	}
	return r
}

// MetricsSource fetches recent daily channel statistics.
type MetricsSource interface {
	// FetchDailyStats returns the daily series for a channel, or ErrNoData
	// when the source does not index it.
	FetchDailyStats(ctx context.Context, channelID string) (*MetricsReport, error)
}

// VideoSource lists channel videos and descriptive metadata.
type VideoSource interface {
	// ListVideos returns a bounded list of the channel's videos in the requested order.
	ListVideos(ctx context.Context, channelID string, sort domain.VideoSort) ([]domain.ListedVideo, error)

	// ChannelProfile returns descriptive metadata for the channel.
	ChannelProfile(ctx context.Context, channelID string) (*domain.ChannelProfile, error)

	// Transcript returns the plain-text transcript of a video.
	Transcript(ctx context.Context, videoID string) (string, error)
}
