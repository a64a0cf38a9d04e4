package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/tubebench/internal/config"
	"github.com/timmy/tubebench/internal/domain"
	"github.com/timmy/tubebench/internal/logger"
	"github.com/timmy/tubebench/internal/metrics"
	"github.com/timmy/tubebench/internal/prompts"
	"github.com/timmy/tubebench/internal/queue"
	"github.com/timmy/tubebench/internal/repository"
	"github.com/timmy/tubebench/internal/source"
	"gorm.io/gorm"
)

const testChannel = "UCexampleID"

const goodReply = `{"niche":"tech","subniche":"Reviews","microniche":"budget phones","category":"Education","format":"Review"}`

type fakeClassifier struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
	last  prompts.CategorizationInput
}

func (f *fakeClassifier) Categorize(_ context.Context, in prompts.CategorizationInput) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = in
	return f.reply, f.err
}

type fakeLister struct {
	videos     map[domain.VideoSort][]domain.ListedVideo
	err        error
	transcript string
	calls      int
}

func (f *fakeLister) ListVideos(_ context.Context, _ string, sort domain.VideoSort) ([]domain.ListedVideo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.videos[sort], nil
}

func (f *fakeLister) ChannelProfile(context.Context, string) (*domain.ChannelProfile, error) {
	return nil, source.ErrNoData
}

func (f *fakeLister) Transcript(context.Context, string) (string, error) {
	if f.transcript == "" {
		return "", source.ErrNoData
	}
	return f.transcript, nil
}

type fakeCollector struct {
	report *source.MetricsReport
	err    error
	block  bool
	panics bool
	calls  int
}

func (f *fakeCollector) FetchDailyStats(ctx context.Context, _ string) (*source.MetricsReport, error) {
	f.calls++
	if f.panics {
		panic("unexpected markup")
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.report, f.err
}

// flakyTasks fails terminal step writes for the configured steps.
type flakyTasks struct {
	TaskStore
	failures map[domain.StepName]int
}

func (f *flakyTasks) MarkStep(ctx context.Context, taskID string, step domain.StepName, u repository.StepUpdate) error {
	if u.Status.IsTerminal() && f.failures[step] != 0 {
		if f.failures[step] > 0 {
			f.failures[step]--
		}
		return errors.New("connection reset by peer")
	}
	return f.TaskStore.MarkStep(ctx, taskID, step, u)
}

type failingDispatcher struct{ calls int }

func (d *failingDispatcher) Dispatch(context.Context, queue.Message) error {
	d.calls++
	return queue.ErrQueueFull
}

type testEnv struct {
	db         *gorm.DB
	now        time.Time
	tasks      *repository.TaskRepository
	jobs       *repository.JobRepository
	channels   *repository.ChannelRepository
	baselines  *repository.BaselineRepository
	videos     *repository.VideoRepository
	vocab      *repository.VocabularyRepository
	classifier *fakeClassifier
	lister     *fakeLister
	collector  *fakeCollector
	cfg        config.PipelineConfig
	registry   *prometheus.Registry
	sleeps     []time.Duration
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
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

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	days := make([]domain.DailyStat, 14)
	for i := range days {
		days[i] = domain.DailyStat{Date: now.AddDate(0, 0, i-14), Views: 1000, SubscribersDelta: 20}
	}

	e := &testEnv{
		db:         db,
		now:        now,
		tasks:      repository.NewTaskRepository(db),
		jobs:       repository.NewJobRepository(db),
		channels:   repository.NewChannelRepository(db),
		baselines:  repository.NewBaselineRepository(db),
		videos:     repository.NewVideoRepository(db),
		vocab:      repository.NewVocabularyRepository(db),
		classifier: &fakeClassifier{reply: goodReply},
		lister: &fakeLister{
			transcript: "today we look at three phones under two hundred dollars",
			videos: map[domain.VideoSort][]domain.ListedVideo{
				domain.VideoSortPopular: {
					{ID: "p1", Title: "I built a PC for $300", ViewCount: 50000, LengthText: "15:00", Type: "video", PublishedText: "2 months ago"},
					{ID: "p2", Title: "Budget phone review", ViewCount: 8000, LengthText: "10:00", Type: "video", PublishedText: "1 year ago"},
					{ID: "s1", Title: "Quick tip", ViewCount: 90000, LengthText: "0:30", Type: "shorts"},
				},
				domain.VideoSortRecent: {
					{ID: "r1", Title: "New phone unboxing", ViewCount: 1500, LengthText: "8:00", Type: "video", PublishedText: "3 days ago"},
					{ID: "r2", Title: "Weekly news", ViewCount: 900, LengthText: "12:00", Type: "video", PublishedText: "10 days ago"},
				},
			},
		},
		collector: &fakeCollector{report: source.NewMetricsReport(days)},
		cfg: config.PipelineConfig{
			MinVideoDuration:  3 * time.Minute,
			TopTitles:         10,
			WindowDays:        14,
			BaselineFreshness: 24 * time.Hour,
			VideoFreshness:    6 * time.Hour,
			CollectorTimeout:  time.Second,
			OutlierMultiple:   5,
			OutlierTiers:      []float64{5, 10},
			TranscriptChars:   20,
		},
		registry: prometheus.NewRegistry(),
	}

	_, err = e.vocab.ImportTerms(context.Background(), []domain.TaxonomyTerm{
		{Kind: domain.TaxonomyNiche, Value: "Tech"},
		{Kind: domain.TaxonomyNiche, Value: "Food"},
		{Kind: domain.TaxonomySubniche, Value: "Reviews"},
		{Kind: domain.TaxonomyCategory, Value: "Education"},
		{Kind: domain.TaxonomyFormat, Value: "Review"},
	})
	require.NoError(t, err)
	require.NoError(t, e.channels.Upsert(context.Background(), &domain.Channel{
		ChannelID:   testChannel,
		Title:       "Gadget Garage",
		Description: "Honest reviews of cheap tech.",
		Keywords:    domain.StringArray{"phones", "pc"},
		TotalViews:  1_000_000,
		VideoCount:  100,
	}))
	return e
}

// orchestrator wires an inline dispatcher so Start runs the whole chain before returning.
func (e *testEnv) orchestrator(tasks TaskStore) *Orchestrator {
	if tasks == nil {
		tasks = e.tasks
	}
	d := queue.NewInline(logger.NewDiscard())
	o := e.orchestratorWith(tasks, d)
	d.SetHandler(o.RunStep)
	return o
}

func (e *testEnv) orchestratorWith(tasks TaskStore, d queue.Dispatcher) *Orchestrator {
	now := func() time.Time { return e.now }
	steps := NewSteps(Deps{
		Channels:   e.channels,
		Baselines:  e.baselines,
		Videos:     e.videos,
		Vocabulary: e.vocab,
		Collector:  e.collector,
		Lister:     e.lister,
		Classifier: e.classifier,
		Now:        now,
	}, e.cfg)
	return NewOrchestrator(Options{
		Tasks:              tasks,
		Jobs:               e.jobs,
		Dispatcher:         d,
		Metrics:            metrics.New(e.registry),
		Logger:             logger.NewDiscard(),
		StatusRetries:      3,
		StatusRetryBackoff: 500 * time.Millisecond,
		Now:                now,
		Sleep:              func(d time.Duration) { e.sleeps = append(e.sleeps, d) },
	}, steps...)
}

func (e *testEnv) newTask(t *testing.T) *domain.EnrichmentTask {
	t.Helper()
	job := &domain.EnrichmentJob{ID: uuid.NewString(), ChannelIDs: domain.StringArray{testChannel}, Status: domain.JobStatusPending}
	task := domain.NewEnrichmentTask(uuid.NewString(), job.ID, testChannel)
	require.NoError(t, e.jobs.CreateWithTasks(context.Background(), job, []*domain.EnrichmentTask{task}))
	return task
}

func (e *testEnv) reload(t *testing.T, id string) *domain.EnrichmentTask {
	t.Helper()
	task, err := e.tasks.GetByID(context.Background(), id)
	require.NoError(t, err)
	return task
}

func TestPipeline_EndToEnd(t *testing.T) {
	e := newTestEnv(t)
	o := e.orchestrator(nil)
	task := e.newTask(t)
	ctx := context.Background()

	require.NoError(t, o.Start(ctx, testChannel, task.ID))

	got := e.reload(t, task.ID)
	assert.Equal(t, domain.JobStatusCompleted, got.OverallStatus)
	for _, st := range got.Steps() {
		assert.Equal(t, domain.StepStatusCompleted, st.Status, st.Step)
		require.NotNil(t, st.StartedAt, st.Step)
		require.NotNil(t, st.CompletedAt, st.Step)
		assert.False(t, st.CompletedAt.Before(*st.StartedAt), st.Step)
		assert.Empty(t, st.Error, st.Step)
	}

	// categorization used the long-form top titles and a truncated transcript
	assert.Equal(t, 1, e.classifier.calls)
	assert.Equal(t, []string{"I built a PC for $300", "Budget phone review"}, e.classifier.last.TopTitles)
	assert.Equal(t, "today we look at thr", e.classifier.last.Transcript)
	assert.Equal(t, []string{"Tech", "Food"}, e.classifier.last.Niches)

	ch, err := e.channels.GetByChannelID(ctx, testChannel)
	require.NoError(t, err)
	require.True(t, ch.HasCategorization())
	assert.Equal(t, "Tech", ch.Categorization.Niche)
	assert.NotNil(t, ch.RecentVideosSyncedAt)
	assert.NotNil(t, ch.TrendingVideosSyncedAt)
	assert.Equal(t, "Tech", got.CategorizationResult["niche"])

	baseline, err := e.baselines.GetByChannelID(ctx, testChannel)
	require.NoError(t, err)
	assert.True(t, baseline.IsAvailable)
	assert.Equal(t, int64(14000), *baseline.Views14d)
	assert.Equal(t, int64(280), *baseline.SubscribersGained14d)
	assert.Equal(t, 10000.0, *baseline.HistoricalAvgViewsPerVideo)
	assert.Equal(t, 10000.0, *baseline.AllTimeAvgViews)

	videos, err := e.videos.ListByChannel(ctx, testChannel)
	require.NoError(t, err)
	assert.Len(t, videos, 5)

	outliers, err := e.videos.ListOutliers(ctx, testChannel, 5, 10)
	require.NoError(t, err)
	require.Len(t, outliers, 1)
	assert.Equal(t, "p1", outliers[0].VideoID)
	assert.Equal(t, 5, outliers[0].OutlierTier)
	assert.EqualValues(t, 1, got.OutliersResult["outliers"])
	assert.Equal(t, "p1", got.OutliersResult["top_video_id"])

	job, err := e.jobs.GetByID(ctx, task.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.CompletedTasks)
}

func TestPipeline_VideosStepSkipsRepeatedIDs(t *testing.T) {
	e := newTestEnv(t)
	recent := e.lister.videos[domain.VideoSortRecent]
	e.lister.videos[domain.VideoSortRecent] = append(recent, recent[0])
	o := e.orchestrator(nil)
	task := e.newTask(t)

	require.NoError(t, o.Start(context.Background(), testChannel, task.ID))

	got := e.reload(t, task.ID)
	assert.Equal(t, domain.StepStatusCompleted, got.RecentVideosStatus)
	assert.EqualValues(t, 3, got.RecentVideosResult["fetched"])
	assert.EqualValues(t, 2, got.RecentVideosResult["stored"])

	videos, err := e.videos.ListByChannel(context.Background(), testChannel)
	require.NoError(t, err)
	assert.Len(t, videos, 5)
}

func TestPipeline_CategorizationIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.channels.SetCategorization(ctx, testChannel, &domain.Categorization{
		Niche: "Food", Subniche: "Recipes", Category: "Education", Format: "Review",
	}))
	o := e.orchestrator(nil)
	task := e.newTask(t)

	require.NoError(t, o.Start(ctx, testChannel, task.ID))

	assert.Zero(t, e.classifier.calls)
	got := e.reload(t, task.ID)
	st := got.StepState(domain.StepCategorization)
	assert.Equal(t, domain.StepStatusCompleted, st.Status)
	assert.Equal(t, "already categorized", st.Result["skipped_reason"])
	assert.Equal(t, "Food", st.Result["niche"])
	require.NotNil(t, st.StartedAt)
	assert.True(t, st.StartedAt.Equal(*st.CompletedAt))
	assert.Equal(t, domain.JobStatusCompleted, got.OverallStatus)
}

func TestPipeline_MetricsFailureIsSoft(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*testEnv)
		wantErr string
	}{
		{"not indexed", func(e *testEnv) { e.collector.report, e.collector.err = nil, source.ErrNoData }, ""},
		{"source error", func(e *testEnv) { e.collector.report, e.collector.err = nil, errors.New("HTTP 503") }, "HTTP 503"},
		{"timeout", func(e *testEnv) {
			e.collector.block = true
			e.cfg.CollectorTimeout = 10 * time.Millisecond
		}, "deadline exceeded"},
		{"empty series", func(e *testEnv) { e.collector.report = source.NewMetricsReport(nil) }, ""},
		{"panic", func(e *testEnv) { e.collector.panics = true }, "panic in socialblade step"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			tt.setup(e)
			o := e.orchestrator(nil)
			task := e.newTask(t)
			ctx := context.Background()

			require.NoError(t, o.Start(ctx, testChannel, task.ID))

			got := e.reload(t, task.ID)
			st := got.StepState(domain.StepSocialBlade)
			assert.Equal(t, domain.StepStatusSkipped, st.Status)
			assert.Equal(t, false, st.Result["is_available"])
			assert.NotEmpty(t, st.Result["reason"])
			if tt.wantErr != "" {
				assert.Contains(t, st.Error, tt.wantErr)
			}

			baseline, err := e.baselines.GetByChannelID(ctx, testChannel)
			require.NoError(t, err)
			assert.False(t, baseline.IsAvailable)
			assert.Nil(t, baseline.Views14d)

			// the chain carried on
			assert.Equal(t, domain.StepStatusCompleted, got.RecentVideosStatus)
			assert.Equal(t, domain.StepStatusCompleted, got.TrendingVideosStatus)
			assert.Equal(t, domain.StepStatusCompleted, got.OutliersStatus)
			assert.Equal(t, domain.JobStatusCompleted, got.OverallStatus)
			assert.Equal(t, false, got.OutliersResult["baseline_available"])
		})
	}
}

func TestPipeline_CategorizationFailureStopsChain(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*testEnv)
		wantErr string
	}{
		{"unparseable reply", func(e *testEnv) { e.classifier.reply = "I am not sure, sorry." }, "unparseable categorization response"},
		{"outside vocabulary", func(e *testEnv) {
			e.classifier.reply = `{"niche":"Gaming","subniche":"Reviews","category":"Education","format":"Review"}`
		}, `niche "Gaming"`},
		{"classifier down", func(e *testEnv) { e.classifier.err = errors.New("HTTP 500") }, "classifier call failed"},
		{"listing down", func(e *testEnv) { e.lister.err = errors.New("quota exceeded") }, "failed to list popular videos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			tt.setup(e)
			o := e.orchestrator(nil)
			task := e.newTask(t)
			ctx := context.Background()

			require.NoError(t, o.Start(ctx, testChannel, task.ID))

			got := e.reload(t, task.ID)
			assert.Equal(t, domain.StepStatusFailed, got.CategorizationStatus)
			assert.Contains(t, got.CategorizationError, tt.wantErr)
			assert.Equal(t, domain.JobStatusFailed, got.OverallStatus)
			assert.Equal(t, got.CategorizationError, got.LastError)
			assert.Equal(t, domain.StepStatusPending, got.SocialBladeStatus)
			assert.Zero(t, e.collector.calls)

			ch, err := e.channels.GetByChannelID(ctx, testChannel)
			require.NoError(t, err)
			assert.False(t, ch.HasCategorization())

			job, err := e.jobs.GetByID(ctx, task.JobID)
			require.NoError(t, err)
			assert.Equal(t, domain.JobStatusFailed, job.Status)
			assert.Equal(t, 1, job.FailedTasks)
		})
	}
}

func TestPipeline_MissingChannelFailsTask(t *testing.T) {
	e := newTestEnv(t)
	o := e.orchestrator(nil)
	ctx := context.Background()
	job := &domain.EnrichmentJob{ID: uuid.NewString(), Status: domain.JobStatusPending}
	task := domain.NewEnrichmentTask(uuid.NewString(), job.ID, "UCnobody")
	require.NoError(t, e.jobs.CreateWithTasks(ctx, job, []*domain.EnrichmentTask{task}))

	require.NoError(t, o.Start(ctx, "UCnobody", task.ID))

	got := e.reload(t, task.ID)
	assert.Equal(t, domain.StepStatusFailed, got.CategorizationStatus)
	assert.Contains(t, got.CategorizationError, ErrChannelNotFound.Error())
	assert.Equal(t, domain.JobStatusFailed, got.OverallStatus)
}

func TestOrchestrator_StatusWriteRetry(t *testing.T) {
	tests := []struct {
		name   string
		step   domain.StepName
		setup  func(*testEnv)
		status domain.StepStatus
	}{
		{"completed", domain.StepCategorization, func(*testEnv) {}, domain.StepStatusCompleted},
		{"skipped", domain.StepSocialBlade, func(e *testEnv) {
			e.collector.report, e.collector.err = nil, source.ErrNoData
		}, domain.StepStatusSkipped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			tt.setup(e)
			flaky := &flakyTasks{TaskStore: e.tasks, failures: map[domain.StepName]int{tt.step: 2}}
			o := e.orchestrator(flaky)
			task := e.newTask(t)

			require.NoError(t, o.Start(context.Background(), testChannel, task.ID))

			got := e.reload(t, task.ID)
			assert.Equal(t, tt.status, got.StepState(tt.step).Status)
			assert.Equal(t, domain.JobStatusCompleted, got.OverallStatus)
			assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, e.sleeps)
		})
	}
}

func TestOrchestrator_StatusWriteExhausted(t *testing.T) {
	e := newTestEnv(t)
	flaky := &flakyTasks{TaskStore: e.tasks, failures: map[domain.StepName]int{domain.StepSocialBlade: -1}}
	o := e.orchestrator(flaky)
	task := e.newTask(t)

	require.NoError(t, o.Start(context.Background(), testChannel, task.ID))

	got := e.reload(t, task.ID)
	// the row is stuck in processing but the chain was handed off
	assert.Equal(t, domain.StepStatusProcessing, got.SocialBladeStatus)
	assert.Equal(t, domain.StepStatusCompleted, got.RecentVideosStatus)
	assert.Equal(t, domain.JobStatusCompleted, got.OverallStatus)
	assert.Len(t, e.sleeps, 2)

	n, err := testutil.GatherAndCount(e.registry, "tubebench_status_write_retries_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestOrchestrator_RetryUsesFastPaths(t *testing.T) {
	e := newTestEnv(t)
	o := e.orchestrator(nil)
	task := e.newTask(t)
	ctx := context.Background()

	require.NoError(t, o.Start(ctx, testChannel, task.ID))
	listCalls := e.lister.calls

	require.NoError(t, o.Retry(ctx, task.ID))

	got := e.reload(t, task.ID)
	assert.Equal(t, 1, got.RetryCount)
	assert.Equal(t, domain.JobStatusCompleted, got.OverallStatus)
	assert.Equal(t, 1, e.classifier.calls)
	assert.Equal(t, 1, e.collector.calls)
	assert.Equal(t, listCalls, e.lister.calls)

	for _, name := range []domain.StepName{domain.StepCategorization, domain.StepSocialBlade, domain.StepRecentVideos, domain.StepTrendingVideos} {
		st := got.StepState(name)
		assert.Equal(t, domain.StepStatusCompleted, st.Status, name)
		assert.NotEmpty(t, st.Result["skipped_reason"], name)
	}
	assert.Equal(t, domain.StepStatusCompleted, got.OutliersStatus)
	assert.Nil(t, got.OutliersResult["skipped_reason"])

	job, err := e.jobs.GetByID(ctx, task.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 1, job.CompletedTasks)
}

func TestOrchestrator_RetryAfterFailure(t *testing.T) {
	e := newTestEnv(t)
	e.classifier.err = errors.New("HTTP 429")
	o := e.orchestrator(nil)
	task := e.newTask(t)
	ctx := context.Background()

	require.NoError(t, o.Start(ctx, testChannel, task.ID))
	require.Equal(t, domain.JobStatusFailed, e.reload(t, task.ID).OverallStatus)

	e.classifier.err = nil
	require.NoError(t, o.Retry(ctx, task.ID))

	got := e.reload(t, task.ID)
	assert.Equal(t, domain.JobStatusCompleted, got.OverallStatus)
	assert.Empty(t, got.CategorizationError)
	assert.Empty(t, got.LastError)
	assert.Equal(t, 2, e.classifier.calls)

	job, err := e.jobs.GetByID(ctx, task.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 0, job.FailedTasks)
}

func TestOrchestrator_DispatchFailureIsLogged(t *testing.T) {
	e := newTestEnv(t)
	d := &failingDispatcher{}
	o := e.orchestratorWith(e.tasks, d)
	task := e.newTask(t)

	err := o.RunStep(context.Background(), queue.Message{Step: domain.StepCategorization, ChannelID: testChannel, TaskID: task.ID})
	require.NoError(t, err)

	got := e.reload(t, task.ID)
	assert.Equal(t, domain.StepStatusCompleted, got.CategorizationStatus)
	assert.Equal(t, domain.StepStatusPending, got.SocialBladeStatus)
	assert.Equal(t, domain.JobStatusProcessing, got.OverallStatus)
	assert.Equal(t, 1, d.calls)

	n, err := testutil.GatherAndCount(e.registry, "tubebench_dispatch_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOrchestrator_RejectsBadMessages(t *testing.T) {
	e := newTestEnv(t)
	o := e.orchestrator(nil)
	ctx := context.Background()
	task := e.newTask(t)

	err := o.RunStep(ctx, queue.Message{Step: domain.StepOutliers, TaskID: "missing"})
	assert.True(t, errors.Is(err, ErrTaskNotFound))

	assert.Error(t, o.RunStep(ctx, queue.Message{Step: "bogus", TaskID: task.ID}))
	assert.Error(t, o.Start(ctx, "UCother", task.ID))
	assert.True(t, errors.Is(o.Start(ctx, testChannel, "missing"), ErrTaskNotFound))
	assert.True(t, errors.Is(o.Retry(ctx, "missing"), ErrTaskNotFound))

	assert.Equal(t, domain.StepStatusPending, e.reload(t, task.ID).CategorizationStatus)
}

type stubStep struct {
	name     domain.StepName
	critical bool
	out      Outcome
	panics   bool
}

func (s *stubStep) Name() domain.StepName { return s.name }
func (s *stubStep) Critical() bool        { return s.critical }
func (s *stubStep) Execute(context.Context, *Run) Outcome {
	if s.panics {
		panic("boom")
	}
	return s.out
}

func TestOrchestrator_StepContract(t *testing.T) {
	tests := []struct {
		name       string
		step       *stubStep
		wantStatus domain.StepStatus
		wantErr    string
	}{
		{"non-terminal status", &stubStep{name: domain.StepOutliers, out: Outcome{Status: domain.StepStatusProcessing}}, domain.StepStatusFailed, "non-terminal"},
		{"panic without degrade", &stubStep{name: domain.StepOutliers, panics: true}, domain.StepStatusFailed, "panic in outliers step: boom"},
		{"skipped with reason", &stubStep{name: domain.StepOutliers, out: skipped("nothing to do", nil, nil)}, domain.StepStatusSkipped, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			o := NewOrchestrator(Options{
				Tasks:      e.tasks,
				Jobs:       e.jobs,
				Dispatcher: &failingDispatcher{},
				Logger:     logger.NewDiscard(),
				Now:        func() time.Time { return e.now },
			}, tt.step)
			task := e.newTask(t)

			require.NoError(t, o.RunStep(context.Background(), queue.Message{Step: domain.StepOutliers, TaskID: task.ID}))

			got := e.reload(t, task.ID)
			assert.Equal(t, tt.wantStatus, got.OutliersStatus)
			if tt.wantErr != "" {
				assert.Contains(t, got.OutliersError, tt.wantErr)
			}
			// outliers is the last step, so the task completes whatever happened
			assert.Equal(t, domain.JobStatusCompleted, got.OverallStatus)
		})
	}
}
