package pipeline

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/timmy/tubebench/internal/domain"
)

// WindowMetrics are the aggregates over the most recent days of a daily series.
type WindowMetrics struct {
	Days              int       `json:"days"`
	WindowStart       time.Time `json:"window_start"`
	WindowEnd         time.Time `json:"window_end"`
	SubscribersGained int64     `json:"subscribers_gained"`
	Views             int64     `json:"views"`
	VideosPosted      int64     `json:"videos_posted"`
	UploadDays        int64     `json:"upload_days"`
	AvgViewsPerDay    float64   `json:"avg_views_per_day"`
	AvgSubsPerDay     float64   `json:"avg_subs_per_day"`
	GrowthRatePct     float64   `json:"growth_rate_pct"`
}

// ComputeWindowMetrics aggregates the last windowDays entries of days, which must be
// sorted oldest first. It returns false when there is nothing to aggregate.
func ComputeWindowMetrics(days []domain.DailyStat, windowDays int) (WindowMetrics, bool) {
	if len(days) == 0 {
		return WindowMetrics{}, false
	}
	if windowDays > 0 && len(days) > windowDays {
		days = days[len(days)-windowDays:]
	}

	m := WindowMetrics{
		Days:        len(days),
		WindowStart: days[0].Date,
		WindowEnd:   days[len(days)-1].Date,
	}
	views := make([]int64, len(days))
	for i, d := range days {
		m.SubscribersGained += d.SubscribersDelta
		m.Views += d.Views
		m.VideosPosted += d.VideosPosted
		if d.HadUpload || d.VideosPosted > 0 {
			m.UploadDays++
		}
		views[i] = d.Views
	}
	n := float64(len(days))
	m.AvgViewsPerDay = round2(float64(m.Views) / n)
	m.AvgSubsPerDay = round2(float64(m.SubscribersGained) / n)
	m.GrowthRatePct = GrowthRate(views)
	return m, true
}

// GrowthRate compares mean daily views of the second half of the series with the
// first half, as a percentage. The middle day of an odd series belongs to the
// second half. A zero first-half mean yields exactly 0.
func GrowthRate(views []int64) float64 {
	if len(views) < 2 {
		return 0
	}
	half := len(views) / 2
	first := mean(views[:half])
	second := mean(views[half:])
	if first == 0 {
		return 0
	}
	rate := (second - first) / first * 100
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0
	}
	return round2(rate)
}

// HistoricalAvgViewsPerVideo divides lifetime views by lifetime uploads.
// It is nil when the channel reports no videos.
func HistoricalAvgViewsPerVideo(totalViews, videoCount int64) *float64 {
	if videoCount <= 0 {
		return nil
	}
	v := round2(float64(totalViews) / float64(videoCount))
	return &v
}

func mean(values []int64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	return sum / float64(len(values))
}

// Median returns the median of values, or 0 for an empty slice.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ParseLength converts display durations such as "4:05" or "1:02:03" to seconds.
func ParseLength(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	parts := strings.Split(text, ":")
	if len(parts) > 3 {
		return 0, false
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0, false
		}
		total = total*60 + n
	}
	return total, true
}

// SelectTopVideos drops shorts, unknown lengths and anything shorter than
// minDuration, then returns at most limit videos by descending view count.
func SelectTopVideos(videos []domain.ListedVideo, minDuration time.Duration, limit int) []domain.ListedVideo {
	kept := make([]domain.ListedVideo, 0, len(videos))
	for _, v := range videos {
		if v.IsShort() {
			continue
		}
		secs, ok := ParseLength(v.LengthText)
		if !ok || time.Duration(secs)*time.Second < minDuration {
			continue
		}
		kept = append(kept, v)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].ViewCount > kept[j].ViewCount
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

var relativeTimePattern = regexp.MustCompile(`(\d+)\s*(second|minute|hour|day|week|month|year)s?\s+ago`)

// ParseRelativeTime turns listing text such as "3 weeks ago" or
// "Streamed 2 days ago" into an approximate timestamp.
func ParseRelativeTime(text string, now time.Time) *time.Time {
	m := relativeTimePattern.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	var t time.Time
	switch m[2] {
	case "second":
		t = now.Add(-time.Duration(n) * time.Second)
	case "minute":
		t = now.Add(-time.Duration(n) * time.Minute)
	case "hour":
		t = now.Add(-time.Duration(n) * time.Hour)
	case "day":
		t = now.AddDate(0, 0, -n)
	case "week":
		t = now.AddDate(0, 0, -7*n)
	case "month":
		t = now.AddDate(0, -n, 0)
	case "year":
		t = now.AddDate(-n, 0, 0)
	}
	return &t
}

// NormalizeVideo converts a listing entry into a stored video row.
func NormalizeVideo(channelID string, v domain.ListedVideo, listing domain.VideoSort, now time.Time) domain.Video {
	secs, _ := ParseLength(v.LengthText)
	published := v.PublishDate
	if published == nil {
		published = ParseRelativeTime(v.PublishedText, now)
	}
	return domain.Video{
		VideoID:         v.ID,
		ChannelID:       channelID,
		Title:           v.Title,
		ViewCount:       v.ViewCount,
		LengthText:      v.LengthText,
		DurationSeconds: secs,
		IsShort:         v.IsShort(),
		PublishedAt:     published,
		Listing:         listing,
	}
}

// ComputeHorizons derives the per-channel baselines that video views are compared
// against. Shorts are excluded. The all-time average prefers the channel's
// lifetime average when known.
func ComputeHorizons(videos []domain.Video, historicalAvg *float64, now time.Time) domain.VideoHorizons {
	var all []float64
	windows := map[int][]float64{14: nil, 30: nil, 90: nil}
	for _, v := range videos {
		if v.IsShort {
			continue
		}
		views := float64(v.ViewCount)
		all = append(all, views)
		if v.PublishedAt == nil {
			continue
		}
		age := now.Sub(*v.PublishedAt)
		for days := range windows {
			if age >= 0 && age <= time.Duration(days)*24*time.Hour {
				windows[days] = append(windows[days], views)
			}
		}
	}

	var h domain.VideoHorizons
	switch {
	case historicalAvg != nil && *historicalAvg > 0:
		h.AllTimeAvg = ptr(round2(*historicalAvg))
	case len(all) > 0:
		h.AllTimeAvg = ptr(round2(meanFloat(all)))
	}
	if len(all) > 0 {
		h.AllTimeMedian = ptr(round2(Median(all)))
	}
	if vs := windows[14]; len(vs) > 0 {
		h.Avg14d = ptr(round2(meanFloat(vs)))
	}
	if vs := windows[30]; len(vs) > 0 {
		h.Avg30d = ptr(round2(meanFloat(vs)))
	}
	if vs := windows[90]; len(vs) > 0 {
		h.Avg90d = ptr(round2(meanFloat(vs)))
	}
	return h
}

// HasPositiveBaseline reports whether any horizon can serve as a denominator.
func HasPositiveBaseline(h domain.VideoHorizons) bool {
	for _, b := range []*float64{h.AllTimeAvg, h.AllTimeMedian, h.Avg14d, h.Avg30d, h.Avg90d} {
		if positive(b) {
			return true
		}
	}
	return false
}

// ScoreVideo computes a video's ratio against every positive horizon. The outlier
// score is the ratio against the all-time average, falling back to the median.
// The tier is the highest breakpoint in tiers (ascending) the score reaches.
func ScoreVideo(v domain.Video, h domain.VideoHorizons, multiple float64, tiers []float64) domain.VideoRatios {
	r := domain.VideoRatios{VideoID: v.VideoID}
	if v.IsShort {
		return r
	}
	views := float64(v.ViewCount)
	ratio := func(base *float64) *float64 {
		if !positive(base) {
			return nil
		}
		return ptr(round2(views / *base))
	}
	r.RatioVsAvg = ratio(h.AllTimeAvg)
	r.RatioVsMedian = ratio(h.AllTimeMedian)
	r.RatioVs14d = ratio(h.Avg14d)
	r.RatioVs30d = ratio(h.Avg30d)
	r.RatioVs90d = ratio(h.Avg90d)

	r.OutlierScore = r.RatioVsAvg
	if r.OutlierScore == nil {
		r.OutlierScore = r.RatioVsMedian
	}
	if r.OutlierScore != nil {
		score := *r.OutlierScore
		r.IsOutlier = score >= multiple
		for _, tier := range tiers {
			if score >= tier {
				r.OutlierTier = int(tier)
			}
		}
	}
	return r
}

func meanFloat(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func positive(v *float64) bool {
	return v != nil && *v > 0
}

func ptr[T any](v T) *T {
	return &v
}
