package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/tubebench/internal/config"
	"github.com/timmy/tubebench/internal/domain"
	"github.com/timmy/tubebench/internal/repository"
)

// OutliersStep scores every stored video against the channel's baselines.
// It is the last step; the task completes whatever its outcome.
type OutliersStep struct {
	deps Deps
	cfg  config.PipelineConfig
}

func (s *OutliersStep) Name() domain.StepName { return domain.StepOutliers }

func (s *OutliersStep) Critical() bool { return false }

func (s *OutliersStep) Execute(ctx context.Context, run *Run) Outcome {
	videos, err := s.deps.Videos.ListByChannel(ctx, run.ChannelID)
	if err != nil {
		return failed(fmt.Errorf("failed to load videos: %w", err))
	}
	if len(videos) == 0 {
		return skipped("no stored videos", nil, nil)
	}

	var historical *float64
	baselineAvailable := false
	baseline, err := s.deps.Baselines.GetByChannelID(ctx, run.ChannelID)
	switch {
	case err == nil:
		historical = baseline.HistoricalAvgViewsPerVideo
		baselineAvailable = baseline.IsAvailable
	case !errors.Is(err, repository.ErrNotFound):
		return failed(fmt.Errorf("failed to load baseline: %w", err))
	}

	h := ComputeHorizons(videos, historical, s.deps.Now())
	if !HasPositiveBaseline(h) {
		return skipped("no positive baseline to compare against", nil, domain.JSONMap{
			"baseline_available": baselineAvailable,
		})
	}
	if err := s.deps.Baselines.UpdateVideoHorizons(ctx, run.ChannelID, h); err != nil {
		return failed(fmt.Errorf("failed to store video horizons: %w", err))
	}

	ratios := make([]domain.VideoRatios, 0, len(videos))
	outliers := 0
	var topScore float64
	var topVideo string
	for _, v := range videos {
		r := ScoreVideo(v, h, s.cfg.OutlierMultiple, s.cfg.OutlierTiers)
		if r.IsOutlier {
			outliers++
		}
		if r.OutlierScore != nil && *r.OutlierScore > topScore {
			topScore, topVideo = *r.OutlierScore, v.VideoID
		}
		ratios = append(ratios, r)
	}
	if err := s.deps.Videos.UpdateRatios(ctx, ratios); err != nil {
		return failed(fmt.Errorf("failed to store ratios: %w", err))
	}

	return completed(domain.JSONMap{
		"videos_scored":      len(ratios),
		"outliers":           outliers,
		"outlier_multiple":   s.cfg.OutlierMultiple,
		"top_score":          topScore,
		"top_video_id":       topVideo,
		"baseline_available": baselineAvailable,
		"horizons":           h,
	})
}
