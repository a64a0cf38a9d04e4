package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/tubebench/internal/config"
	"github.com/timmy/tubebench/internal/domain"
	"github.com/timmy/tubebench/internal/repository"
	"github.com/timmy/tubebench/internal/source"
)

// MetricsStep turns the third-party daily statistics into the channel's baseline row.
// The source does not index every channel, so any failure degrades to an
// unavailable baseline and a skipped step.
type MetricsStep struct {
	deps Deps
	cfg  config.PipelineConfig
}

func (s *MetricsStep) Name() domain.StepName { return domain.StepSocialBlade }

func (s *MetricsStep) Critical() bool { return false }

func (s *MetricsStep) Execute(ctx context.Context, run *Run) Outcome {
	now := s.deps.Now()

	existing, err := s.deps.Baselines.GetByChannelID(ctx, run.ChannelID)
	switch {
	case err == nil && existing.IsAvailable && now.Sub(existing.FetchedAt) < s.cfg.BaselineFreshness:
		return alreadyDone("baseline fetched recently", domain.JSONMap{
			"fetched_at":   existing.FetchedAt,
			"is_available": true,
		})
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		run.Log.WithError(err).Warn("Failed to read existing baseline")
	}

	fetchCtx := ctx
	if s.cfg.CollectorTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.cfg.CollectorTimeout)
		defer cancel()
	}
	report, err := s.deps.Collector.FetchDailyStats(fetchCtx, run.ChannelID)
	switch {
	case errors.Is(err, source.ErrNoData):
		return s.unavailable(ctx, run, "channel is not indexed by the metrics source", nil)
	case errors.Is(err, context.DeadlineExceeded):
		return s.unavailable(ctx, run, fmt.Sprintf("metrics source timed out after %s", s.cfg.CollectorTimeout), err)
	case err != nil:
		return s.unavailable(ctx, run, "metrics source failed", err)
	case report == nil:
		return s.unavailable(ctx, run, "metrics source returned nothing", nil)
	}

	window, ok := ComputeWindowMetrics(report.Days, s.cfg.WindowDays)
	if !ok {
		return s.unavailable(ctx, run, "metrics source returned an empty series", nil)
	}

	var historical *float64
	if ch, err := s.deps.Channels.GetByChannelID(ctx, run.ChannelID); err == nil {
		historical = HistoricalAvgViewsPerVideo(ch.TotalViews, ch.VideoCount)
	} else {
		run.Log.WithError(err).Warn("Channel totals unavailable, historical average left empty")
	}

	stats := &domain.BaselineStats{
		ChannelID:                  run.ChannelID,
		SubscribersGained14d:       ptr(window.SubscribersGained),
		Views14d:                   ptr(window.Views),
		VideosPosted14d:            ptr(window.VideosPosted),
		UploadDays14d:              ptr(window.UploadDays),
		AvgViewsPerDay:             ptr(window.AvgViewsPerDay),
		AvgSubsPerDay:              ptr(window.AvgSubsPerDay),
		GrowthRatePct:              ptr(window.GrowthRatePct),
		HistoricalAvgViewsPerVideo: historical,
		IsAvailable:                true,
		WindowStart:                ptr(window.WindowStart),
		WindowEnd:                  ptr(window.WindowEnd),
		FetchedAt:                  now,
	}
	if err := s.deps.Baselines.Upsert(ctx, stats); err != nil {
		return s.unavailable(ctx, run, "failed to store baseline", err)
	}

	return completed(domain.JSONMap{
		"is_available":                   true,
		"days":                           window.Days,
		"window_start":                   window.WindowStart,
		"window_end":                     window.WindowEnd,
		"subscribers_gained":             window.SubscribersGained,
		"views":                          window.Views,
		"videos_posted":                  window.VideosPosted,
		"upload_days":                    window.UploadDays,
		"avg_views_per_day":              window.AvgViewsPerDay,
		"avg_subs_per_day":               window.AvgSubsPerDay,
		"growth_rate_pct":                window.GrowthRatePct,
		"historical_avg_views_per_video": historical,
	})
}

// Degrade handles a panic the same way as any other collection failure.
func (s *MetricsStep) Degrade(ctx context.Context, run *Run, cause error) Outcome {
	return s.unavailable(ctx, run, "unexpected error during metrics aggregation", cause)
}

// unavailable writes the placeholder baseline row and reports the step skipped.
func (s *MetricsStep) unavailable(ctx context.Context, run *Run, reason string, cause error) Outcome {
	placeholder := &domain.BaselineStats{
		ChannelID:   run.ChannelID,
		IsAvailable: false,
		FetchedAt:   s.deps.Now(),
	}
	if err := s.deps.Baselines.Upsert(context.WithoutCancel(ctx), placeholder); err != nil {
		run.Log.WithError(err).Error("Failed to write unavailable baseline")
	}
	return skipped(reason, cause, domain.JSONMap{"is_available": false})
}

var _ Degrader = (*MetricsStep)(nil)
