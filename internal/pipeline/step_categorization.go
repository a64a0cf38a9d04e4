package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/tubebench/internal/config"
	"github.com/timmy/tubebench/internal/domain"
	"github.com/timmy/tubebench/internal/prompts"
	"github.com/timmy/tubebench/internal/repository"
)

// CategorizationStep assigns the channel a taxonomy from the closed vocabulary.
// It is the only critical step: everything downstream assumes a category.
type CategorizationStep struct {
	deps Deps
	cfg  config.PipelineConfig
}

func (s *CategorizationStep) Name() domain.StepName { return domain.StepCategorization }

func (s *CategorizationStep) Critical() bool { return true }

func (s *CategorizationStep) Execute(ctx context.Context, run *Run) Outcome {
	ch, err := s.deps.Channels.GetByChannelID(ctx, run.ChannelID)
	if errors.Is(err, repository.ErrNotFound) {
		return failed(fmt.Errorf("%w: %s", ErrChannelNotFound, run.ChannelID))
	}
	if err != nil {
		return failed(fmt.Errorf("failed to load channel: %w", err))
	}
	if ch.HasCategorization() {
		return alreadyDone("already categorized", ch.Categorization.ToMap())
	}

	listed, err := s.deps.Lister.ListVideos(ctx, run.ChannelID, domain.VideoSortPopular)
	if err != nil {
		return failed(fmt.Errorf("failed to list popular videos: %w", err))
	}
	top := SelectTopVideos(listed, s.cfg.MinVideoDuration, s.cfg.TopTitles)
	titles := make([]string, 0, len(top))
	for _, v := range top {
		titles = append(titles, v.Title)
	}

	transcript := ""
	if len(top) > 0 {
		text, err := s.deps.Lister.Transcript(ctx, top[0].ID)
		if err != nil {
			run.Log.WithError(err).WithField("video_id", top[0].ID).Debug("Transcript unavailable")
		} else {
			transcript = truncateRunes(text, s.cfg.TranscriptChars)
		}
	}

	vocab, err := s.deps.Vocabulary.Load(ctx)
	if err != nil {
		return failed(fmt.Errorf("failed to load vocabulary: %w", err))
	}
	if vocab.IsEmpty() {
		run.Log.Warn("Vocabulary is empty, categorization values are not checked")
	}

	raw, err := s.deps.Classifier.Categorize(ctx, prompts.CategorizationInput{
		Title:       ch.Title,
		Description: ch.Description,
		Keywords:    ch.Keywords,
		TopTitles:   titles,
		Transcript:  transcript,
		Niches:      vocab.Niches,
		Subniches:   vocab.Subniches,
		Categories:  vocab.Categories,
		Formats:     vocab.Formats,
	})
	if err != nil {
		return failed(fmt.Errorf("classifier call failed: %w", err))
	}

	decoded, err := DecodeCategorization(raw)
	if err != nil {
		return failed(err)
	}
	cat, err := ApplyVocabulary(*decoded, vocab)
	if err != nil {
		return failed(err)
	}

	if err := s.deps.Channels.SetCategorization(ctx, run.ChannelID, &cat); err != nil {
		return failed(fmt.Errorf("failed to save categorization: %w", err))
	}

	result := cat.ToMap()
	result["titles_used"] = len(titles)
	result["transcript_used"] = transcript != ""
	return completed(result)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
