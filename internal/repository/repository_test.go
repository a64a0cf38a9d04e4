package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/tubebench/internal/config"
	"github.com/timmy/tubebench/internal/domain"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createJob(t *testing.T, db *gorm.DB, channels ...string) (*domain.EnrichmentJob, []*domain.EnrichmentTask) {
	t.Helper()
	job := &domain.EnrichmentJob{ID: uuid.NewString(), ChannelIDs: channels, Status: domain.JobStatusPending}
	tasks := make([]*domain.EnrichmentTask, 0, len(channels))
	for _, ch := range channels {
		tasks = append(tasks, domain.NewEnrichmentTask(uuid.NewString(), job.ID, ch))
	}
	require.NoError(t, NewJobRepository(db).CreateWithTasks(context.Background(), job, tasks))
	return job, tasks
}

func TestTaskRepository_MarkStep(t *testing.T) {
	db := newTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()
	_, tasks := createJob(t, db, "UCa")
	id := tasks[0].ID

	started := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.MarkStep(ctx, id, domain.StepSocialBlade, StepUpdate{
		Status:    domain.StepStatusProcessing,
		StartedAt: &started,
	}))

	reason := "not indexed"
	done := started.Add(2 * time.Second)
	require.NoError(t, repo.MarkStep(ctx, id, domain.StepSocialBlade, StepUpdate{
		Status:      domain.StepStatusSkipped,
		Result:      domain.JSONMap{"is_available": false},
		Error:       &reason,
		CompletedAt: &done,
	}))

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	st := got.StepState(domain.StepSocialBlade)
	assert.Equal(t, domain.StepStatusSkipped, st.Status)
	assert.Equal(t, "not indexed", st.Error)
	assert.Equal(t, false, st.Result["is_available"])
	require.NotNil(t, st.StartedAt)
	assert.True(t, started.Equal(st.StartedAt.UTC()))
	// other steps untouched
	assert.Equal(t, domain.StepStatusPending, got.CategorizationStatus)

	assert.Error(t, repo.MarkStep(ctx, id, "bogus", StepUpdate{Status: domain.StepStatusFailed}))
	err = repo.MarkStep(ctx, "missing", domain.StepOutliers, StepUpdate{Status: domain.StepStatusFailed})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestTaskRepository_ResetForRetry(t *testing.T) {
	db := newTestDB(t)
	repo := NewTaskRepository(db)
	ctx := context.Background()
	_, tasks := createJob(t, db, "UCa")
	id := tasks[0].ID

	msg := "bad response"
	require.NoError(t, repo.MarkStep(ctx, id, domain.StepCategorization, StepUpdate{Status: domain.StepStatusFailed, Error: &msg}))
	require.NoError(t, repo.MarkOverall(ctx, id, domain.JobStatusFailed, msg))

	require.NoError(t, repo.ResetForRetry(ctx, id))
	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, domain.JobStatusPending, got.OverallStatus)
	assert.Empty(t, got.LastError)
	for _, st := range got.Steps() {
		assert.Equal(t, domain.StepStatusPending, st.Status, st.Step)
		assert.Empty(t, st.Error)
	}

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestJobRepository_RecordTaskOutcome(t *testing.T) {
	db := newTestDB(t)
	jobs := NewJobRepository(db)
	tasks := NewTaskRepository(db)
	ctx := context.Background()
	job, ts := createJob(t, db, "UCa", "UCb")

	require.NoError(t, jobs.MarkStarted(ctx, job.ID))
	require.NoError(t, tasks.MarkOverall(ctx, ts[0].ID, domain.JobStatusCompleted, ""))

	got, err := jobs.RecordTaskOutcome(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalTasks)
	assert.Equal(t, 1, got.CompletedTasks)
	assert.Equal(t, domain.JobStatusProcessing, got.Status)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, tasks.MarkOverall(ctx, ts[1].ID, domain.JobStatusFailed, "boom"))
	got, err = jobs.RecordTaskOutcome(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.FailedTasks)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)

	// recounting twice does not double count
	got, err = jobs.RecordTaskOutcome(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.CompletedTasks)
	assert.Equal(t, 1, got.FailedTasks)

	// a retried task reopens the job
	require.NoError(t, tasks.ResetForRetry(ctx, ts[1].ID))
	got, err = jobs.RecordTaskOutcome(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, got.Status)
	assert.Equal(t, 0, got.FailedTasks)

	list, err := jobs.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestJobRepository_AllFailed(t *testing.T) {
	db := newTestDB(t)
	jobs := NewJobRepository(db)
	ctx := context.Background()
	job, ts := createJob(t, db, "UCa")

	require.NoError(t, NewTaskRepository(db).MarkOverall(ctx, ts[0].ID, domain.JobStatusFailed, "x"))
	got, err := jobs.RecordTaskOutcome(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
}

func TestChannelRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewChannelRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.EnsureExists(ctx, "UCa"))
	require.NoError(t, repo.EnsureExists(ctx, "UCa"))

	cat := &domain.Categorization{Niche: "Tech", Subniche: "Reviews", Microniche: "budget phones", Category: "Education", Format: "Review"}
	require.NoError(t, repo.SetCategorization(ctx, "UCa", cat))

	// profile refresh must not clobber the categorization
	ch := &domain.Channel{ChannelID: "UCa", Title: "Gadgets", Keywords: domain.StringArray{"phones"}, TotalViews: 1000, VideoCount: 10}
	require.NoError(t, repo.Upsert(ctx, ch))

	got, err := repo.GetByChannelID(ctx, "UCa")
	require.NoError(t, err)
	assert.Equal(t, "Gadgets", got.Title)
	assert.Equal(t, domain.StringArray{"phones"}, got.Keywords)
	require.True(t, got.HasCategorization())
	assert.Equal(t, "budget phones", got.Categorization.Microniche)

	at := time.Now()
	require.NoError(t, repo.MarkVideosSynced(ctx, "UCa", domain.VideoSortPopular, at))
	got, err = repo.GetByChannelID(ctx, "UCa")
	require.NoError(t, err)
	assert.NotNil(t, got.TrendingVideosSyncedAt)
	assert.Nil(t, got.RecentVideosSyncedAt)

	err = repo.SetCategorization(ctx, "UCmissing", cat)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = repo.GetByChannelID(ctx, "UCmissing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestBaselineRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewBaselineRepository(db)
	ctx := context.Background()

	views := int64(1400)
	rate := 12.5
	require.NoError(t, repo.Upsert(ctx, &domain.BaselineStats{
		ChannelID:     "UCa",
		Views14d:      &views,
		GrowthRatePct: &rate,
		IsAvailable:   true,
	}))

	avg := 250.0
	require.NoError(t, repo.UpdateVideoHorizons(ctx, "UCa", domain.VideoHorizons{AllTimeAvg: &avg}))

	got, err := repo.GetByChannelID(ctx, "UCa")
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)
	require.NotNil(t, got.Views14d)
	assert.Equal(t, int64(1400), *got.Views14d)
	require.NotNil(t, got.AllTimeAvgViews)
	assert.Equal(t, 250.0, *got.AllTimeAvgViews)

	// an unavailable upsert clears window aggregates but keeps the horizons
	require.NoError(t, repo.Upsert(ctx, &domain.BaselineStats{ChannelID: "UCa", IsAvailable: false}))
	got, err = repo.GetByChannelID(ctx, "UCa")
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)
	assert.Nil(t, got.Views14d)
	assert.Nil(t, got.GrowthRatePct)
	assert.NotNil(t, got.AllTimeAvgViews)

	// horizons on a channel with no row create an unavailable one
	require.NoError(t, repo.UpdateVideoHorizons(ctx, "UCb", domain.VideoHorizons{AllTimeMedian: &avg}))
	got, err = repo.GetByChannelID(ctx, "UCb")
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)
	assert.NotNil(t, got.AllTimeMedianViews)
}

func TestVideoRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	n, err := repo.UpsertMany(ctx, []domain.Video{
		{VideoID: "v1", ChannelID: "UCa", Title: "One", ViewCount: 100, Listing: domain.VideoSortRecent},
		{VideoID: "v2", ChannelID: "UCa", Title: "Two", ViewCount: 900, Listing: domain.VideoSortRecent},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	score := 6.0
	require.NoError(t, repo.UpdateRatios(ctx, []domain.VideoRatios{{VideoID: "v2", RatioVsAvg: &score, OutlierScore: &score, IsOutlier: true, OutlierTier: 5}}))

	// refreshing the listing keeps ratios
	_, err = repo.UpsertMany(ctx, []domain.Video{{VideoID: "v2", ChannelID: "UCa", Title: "Two!", ViewCount: 950, Listing: domain.VideoSortPopular}})
	require.NoError(t, err)

	videos, err := repo.ListByChannel(ctx, "UCa")
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "v2", videos[0].VideoID)
	assert.Equal(t, "Two!", videos[0].Title)
	assert.True(t, videos[0].IsOutlier)
	assert.Equal(t, 5, videos[0].OutlierTier)

	outliers, err := repo.ListOutliers(ctx, "UCa", 5, 10)
	require.NoError(t, err)
	require.Len(t, outliers, 1)
	assert.Equal(t, "v2", outliers[0].VideoID)

	n, err = repo.UpsertMany(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestVideoRepository_UpsertManyCollapsesRepeatedIDs(t *testing.T) {
	db := newTestDB(t)
	repo := NewVideoRepository(db)
	ctx := context.Background()

	n, err := repo.UpsertMany(ctx, []domain.Video{
		{VideoID: "v1", ChannelID: "UCa", Title: "First page", ViewCount: 100, Listing: domain.VideoSortRecent},
		{VideoID: "v2", ChannelID: "UCa", Title: "Two", ViewCount: 200, Listing: domain.VideoSortRecent},
		{VideoID: "v1", ChannelID: "UCa", Title: "Second page", ViewCount: 101, Listing: domain.VideoSortRecent},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	videos, err := repo.ListByChannel(ctx, "UCa")
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "v1", videos[1].VideoID)
	assert.Equal(t, "First page", videos[1].Title)
}

func TestVocabularyRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewVocabularyRepository(db)
	ctx := context.Background()

	added, err := repo.ImportTerms(ctx, []domain.TaxonomyTerm{
		{Kind: domain.TaxonomyNiche, Value: "Tech"},
		{Kind: domain.TaxonomyNiche, Value: " Food "},
		{Kind: domain.TaxonomyFormat, Value: "Tutorial"},
		{Kind: domain.TaxonomyFormat, Value: ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	added, err = repo.ImportTerms(ctx, []domain.TaxonomyTerm{{Kind: domain.TaxonomyNiche, Value: "Tech"}})
	require.NoError(t, err)
	assert.Zero(t, added)

	_, err = repo.ImportTerms(ctx, []domain.TaxonomyTerm{{Kind: "genre", Value: "x"}})
	assert.Error(t, err)

	vocab, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tech", "Food"}, vocab.Niches)
	assert.Equal(t, []string{"Tutorial"}, vocab.Formats)
	assert.Empty(t, vocab.Subniches)
}
