package pipeline

import (
	"time"

	"github.com/timmy/tubebench/internal/config"
	"github.com/timmy/tubebench/internal/domain"
	"github.com/timmy/tubebench/internal/source"
)

// Deps are the collaborators the steps read from and write to.
type Deps struct {
	Channels   ChannelStore
	Baselines  BaselineStore
	Videos     VideoStore
	Vocabulary VocabularyStore

	Collector  source.MetricsSource
	Lister     source.VideoSource
	Classifier Classifier

	Now func() time.Time
}

// NewSteps builds every pipeline step in order.
func NewSteps(deps Deps, cfg config.PipelineConfig) []Step {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return []Step{
		&CategorizationStep{deps: deps, cfg: cfg},
		&MetricsStep{deps: deps, cfg: cfg},
		&VideosStep{deps: deps, cfg: cfg, name: domain.StepRecentVideos, listing: domain.VideoSortRecent},
		&VideosStep{deps: deps, cfg: cfg, name: domain.StepTrendingVideos, listing: domain.VideoSortPopular},
		&OutliersStep{deps: deps, cfg: cfg},
	}
}

// within reports whether t is set and less than d before now.
func within(t *time.Time, now time.Time, d time.Duration) bool {
	return t != nil && d > 0 && now.Sub(*t) < d
}
