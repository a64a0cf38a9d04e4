package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/tubebench/internal/config"
	"github.com/timmy/tubebench/internal/domain"
	"github.com/timmy/tubebench/internal/repository"
)

// VideosStep ingests one listing (recent or popular) of the channel's videos.
type VideosStep struct {
	deps    Deps
	cfg     config.PipelineConfig
	name    domain.StepName
	listing domain.VideoSort
}

func (s *VideosStep) Name() domain.StepName { return s.name }

func (s *VideosStep) Critical() bool { return false }

func (s *VideosStep) Execute(ctx context.Context, run *Run) Outcome {
	now := s.deps.Now()

	ch, err := s.deps.Channels.GetByChannelID(ctx, run.ChannelID)
	if errors.Is(err, repository.ErrNotFound) {
		return failed(fmt.Errorf("%w: %s", ErrChannelNotFound, run.ChannelID))
	}
	if err != nil {
		return failed(fmt.Errorf("failed to load channel: %w", err))
	}

	synced := ch.RecentVideosSyncedAt
	if s.listing == domain.VideoSortPopular {
		synced = ch.TrendingVideosSyncedAt
	}
	if within(synced, now, s.cfg.VideoFreshness) {
		return alreadyDone("videos synced recently", domain.JSONMap{"synced_at": *synced})
	}

	listed, err := s.deps.Lister.ListVideos(ctx, run.ChannelID, s.listing)
	if err != nil {
		return failed(fmt.Errorf("failed to list %s videos: %w", s.listing, err))
	}
	if len(listed) == 0 {
		return skipped("no videos listed", nil, domain.JSONMap{"fetched": 0})
	}

	// continuation pages can overlap; the first listing of an ID wins
	rows := make([]domain.Video, 0, len(listed))
	seen := make(map[string]struct{}, len(listed))
	shorts := 0
	for _, v := range listed {
		if v.ID == "" {
			continue
		}
		if _, dup := seen[v.ID]; dup {
			continue
		}
		seen[v.ID] = struct{}{}
		row := NormalizeVideo(run.ChannelID, v, s.listing, now)
		if row.IsShort {
			shorts++
		}
		rows = append(rows, row)
	}

	stored, err := s.deps.Videos.UpsertMany(ctx, rows)
	if err != nil {
		return failed(fmt.Errorf("failed to store videos: %w", err))
	}
	if err := s.deps.Channels.MarkVideosSynced(ctx, run.ChannelID, s.listing, now); err != nil {
		run.Log.WithError(err).Warn("Failed to record video sync time")
	}

	return completed(domain.JSONMap{
		"listing": string(s.listing),
		"fetched": len(listed),
		"stored":  stored,
		"shorts":  shorts,
	})
}
