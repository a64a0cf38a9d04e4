package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/timmy/tubebench/internal/domain"
	"github.com/timmy/tubebench/internal/logger"
	"github.com/timmy/tubebench/internal/repository"
	"github.com/timmy/tubebench/internal/source"
)

// ErrNoChannels is returned when a job request names no usable channel.
var ErrNoChannels = errors.New("at least one channel id is required")

// maxChannelsPerJob bounds a single submission.
const maxChannelsPerJob = 100

// Trigger starts and restarts task pipelines. Implemented by pipeline.Orchestrator.
type Trigger interface {
	Start(ctx context.Context, channelID, taskID string) error
	Retry(ctx context.Context, taskID string) error
}

// EnrichmentService turns channel ids into enrichment jobs.
type EnrichmentService struct {
	jobs     *repository.JobRepository
	tasks    *repository.TaskRepository
	channels *repository.ChannelRepository
	profiles source.VideoSource
	trigger  Trigger
	logger   *logger.Logger
}

// NewEnrichmentService creates a new enrichment service.
// Parameters:
//   - jobs, tasks, channels: repositories backing jobs, tasks and channel rows.
//   - profiles: source of channel metadata; nil skips profile refresh.
//   - trigger: pipeline entry point.
//   - log: logger instance.
//
// Returns:
//   - *EnrichmentService: initialized service.
func NewEnrichmentService(
	jobs *repository.JobRepository,
	tasks *repository.TaskRepository,
	channels *repository.ChannelRepository,
	profiles source.VideoSource,
	trigger Trigger,
	log *logger.Logger,
) *EnrichmentService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &EnrichmentService{
		jobs:     jobs,
		tasks:    tasks,
		channels: channels,
		profiles: profiles,
		trigger:  trigger,
		logger:   log,
	}
}

// Submission is the result of a job submission.
type Submission struct {
	Job   *domain.EnrichmentJob    `json:"job"`
	Tasks []*domain.EnrichmentTask `json:"tasks"`
	// Untriggered lists task ids whose first step could not be dispatched.
	Untriggered []string `json:"untriggered,omitempty"`
}

// Submit seeds channel rows, creates a job with one pending task per channel and
// triggers every task. A task that fails to trigger stays pending and can be retried.
func (s *EnrichmentService) Submit(ctx context.Context, channelIDs []string) (*Submission, error) {
	ids := normalizeChannelIDs(channelIDs)
	if len(ids) == 0 {
		return nil, ErrNoChannels
	}
	if len(ids) > maxChannelsPerJob {
		return nil, fmt.Errorf("too many channels: %d (max %d)", len(ids), maxChannelsPerJob)
	}

	for _, id := range ids {
		if err := s.seedChannel(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to seed channel %s: %w", id, err)
		}
	}

	job := &domain.EnrichmentJob{
		ID:         uuid.New().String(),
		ChannelIDs: ids,
		Status:     domain.JobStatusPending,
	}
	tasks := make([]*domain.EnrichmentTask, 0, len(ids))
	for _, id := range ids {
		tasks = append(tasks, domain.NewEnrichmentTask(uuid.New().String(), job.ID, id))
	}
	if err := s.jobs.CreateWithTasks(ctx, job, tasks); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	log := s.logger.WithField(logger.FieldJobID, job.ID)
	log.WithField(logger.FieldCount, len(tasks)).Info("Enrichment job created")

	sub := &Submission{Job: job, Tasks: tasks}
	for _, task := range tasks {
		if err := s.trigger.Start(ctx, task.ChannelID, task.ID); err != nil {
			log.WithError(err).WithFields(logger.Fields{
				logger.FieldTaskID:    task.ID,
				logger.FieldChannelID: task.ChannelID,
			}).Error("Failed to trigger task")
			sub.Untriggered = append(sub.Untriggered, task.ID)
		}
	}
	return sub, nil
}

// Retry restarts a task from its first step.
func (s *EnrichmentService) Retry(ctx context.Context, taskID string) (*domain.EnrichmentTask, error) {
	if err := s.trigger.Retry(ctx, taskID); err != nil {
		return nil, err
	}
	return s.tasks.GetByID(ctx, taskID)
}

// seedChannel refreshes the channel's descriptive fields from the profile source.
// A profile failure is tolerated as long as a row exists afterwards.
func (s *EnrichmentService) seedChannel(ctx context.Context, channelID string) error {
	if s.profiles != nil {
		profile, err := s.profiles.ChannelProfile(ctx, channelID)
		if err == nil && profile != nil {
			ch := &domain.Channel{ChannelID: channelID}
			ch.ApplyProfile(profile)
			return s.channels.Upsert(ctx, ch)
		}
		if err != nil && !errors.Is(err, source.ErrNoData) {
			s.logger.WithError(err).WithField(logger.FieldChannelID, channelID).
				Warn("Channel profile unavailable, keeping existing row")
		}
	}
	return s.channels.EnsureExists(ctx, channelID)
}

func normalizeChannelIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
