package pipeline

import (
	"context"
	"time"

	"github.com/timmy/tubebench/internal/domain"
	"github.com/timmy/tubebench/internal/prompts"
	"github.com/timmy/tubebench/internal/repository"
)

// TaskStore persists task step state. Implemented by repository.TaskRepository.
type TaskStore interface {
	GetByID(ctx context.Context, id string) (*domain.EnrichmentTask, error)
	MarkStep(ctx context.Context, taskID string, step domain.StepName, u repository.StepUpdate) error
	MarkOverall(ctx context.Context, taskID string, status domain.JobStatus, lastError string) error
	ResetForRetry(ctx context.Context, taskID string) error
}

// JobStore keeps job counters in line with task outcomes.
type JobStore interface {
	MarkStarted(ctx context.Context, id string) error
	RecordTaskOutcome(ctx context.Context, jobID string) (*domain.EnrichmentJob, error)
}

// ChannelStore reads channel metadata and records step effects on it.
type ChannelStore interface {
	GetByChannelID(ctx context.Context, channelID string) (*domain.Channel, error)
	SetCategorization(ctx context.Context, channelID string, c *domain.Categorization) error
	MarkVideosSynced(ctx context.Context, channelID string, listing domain.VideoSort, at time.Time) error
}

// BaselineStore holds one baseline row per channel.
type BaselineStore interface {
	GetByChannelID(ctx context.Context, channelID string) (*domain.BaselineStats, error)
	Upsert(ctx context.Context, stats *domain.BaselineStats) error
	UpdateVideoHorizons(ctx context.Context, channelID string, h domain.VideoHorizons) error
}

// VideoStore persists channel videos and their outlier ratios.
type VideoStore interface {
	UpsertMany(ctx context.Context, videos []domain.Video) (int, error)
	ListByChannel(ctx context.Context, channelID string) ([]domain.Video, error)
	UpdateRatios(ctx context.Context, ratios []domain.VideoRatios) error
}

// VocabularyStore loads the closed taxonomy.
type VocabularyStore interface {
	Load(ctx context.Context) (domain.Vocabulary, error)
}

// Classifier returns the raw classifier reply for a categorization prompt.
type Classifier interface {
	Categorize(ctx context.Context, input prompts.CategorizationInput) (string, error)
}

var (
	_ TaskStore       = (*repository.TaskRepository)(nil)
	_ JobStore        = (*repository.JobRepository)(nil)
	_ ChannelStore    = (*repository.ChannelRepository)(nil)
	_ BaselineStore   = (*repository.BaselineRepository)(nil)
	_ VideoStore      = (*repository.VideoRepository)(nil)
	_ VocabularyStore = (*repository.VocabularyRepository)(nil)
)
