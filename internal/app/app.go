// Package app wires configuration into repositories, collaborators and the
// pipeline. It is shared by the API server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/timmy/tubebench/internal/config"
	"github.com/timmy/tubebench/internal/logger"
	"github.com/timmy/tubebench/internal/metrics"
	"github.com/timmy/tubebench/internal/pipeline"
	"github.com/timmy/tubebench/internal/queue"
	"github.com/timmy/tubebench/internal/repository"
	"github.com/timmy/tubebench/internal/service"
	"github.com/timmy/tubebench/internal/source"
	"github.com/timmy/tubebench/internal/source/socialblade"
	"github.com/timmy/tubebench/internal/source/staging"
	"github.com/timmy/tubebench/internal/source/youtube"
	"github.com/timmy/tubebench/internal/storage"
	"gorm.io/gorm"
)

// Options tweak how collaborators are built.
type Options struct {
	// StagingDir, when set, serves videos, profiles, transcripts and daily stats
	// from pre-collected JSONL files instead of the live APIs.
	StagingDir string
	// Registerer receives the pipeline collectors. Nil disables metrics.
	Registerer prometheus.Registerer
}

// App holds every long-lived dependency of a process.
type App struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *gorm.DB

	Jobs       *repository.JobRepository
	Tasks      *repository.TaskRepository
	Channels   *repository.ChannelRepository
	Baselines  *repository.BaselineRepository
	Videos     *repository.VideoRepository
	Vocabulary *repository.VocabularyRepository

	Lister     source.VideoSource
	Collector  source.MetricsSource
	Classifier pipeline.Classifier
	Metrics    *metrics.Metrics
}

// New opens the database and builds the collaborators described by cfg.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, opts Options) (*App, error) {
	if log == nil {
		log = logger.GetDefault()
	}

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{
		Config:     cfg,
		Logger:     log,
		DB:         db,
		Jobs:       repository.NewJobRepository(db),
		Tasks:      repository.NewTaskRepository(db),
		Channels:   repository.NewChannelRepository(db),
		Baselines:  repository.NewBaselineRepository(db),
		Videos:     repository.NewVideoRepository(db),
		Vocabulary: repository.NewVocabularyRepository(db),
	}
	if opts.Registerer != nil {
		a.Metrics = metrics.New(opts.Registerer)
	}

	if opts.StagingDir != "" {
		adapter := staging.NewAdapter(opts.StagingDir)
		a.Lister = adapter
		a.Collector = adapter
		log.WithField("path", opts.StagingDir).Info("Using staged source data")
	} else {
		a.Lister = youtube.NewClient(youtube.Config{
			BaseURL:  cfg.YouTube.BaseURL,
			APIKey:   cfg.YouTube.APIKey,
			APIHost:  cfg.YouTube.APIHost,
			Timeout:  cfg.YouTube.Timeout,
			MaxItems: cfg.YouTube.MaxItems,
		})

		archive, err := newArchive(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		a.Collector = socialblade.NewCollector(socialblade.Config{
			BaseURL:   cfg.SocialBlade.BaseURL,
			UserAgent: cfg.SocialBlade.UserAgent,
			Timeout:   cfg.SocialBlade.Timeout,
		}, archive)
	}

	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	a.Classifier = service.NewClassifier(&cfg.LLM)

	return a, nil
}

// newArchive returns the raw page archive, or nil when archiving is off.
func newArchive(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage.PageArchive, error) {
	if !cfg.SocialBlade.Archive || !cfg.Storage.Enabled {
		return nil, nil
	}
	objectStorage, err := storage.NewStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.WithField("bucket", cfg.Storage.Bucket).Info("Archiving raw metrics pages")
	return storage.NewPageArchive(objectStorage), nil
}

// Steps builds the pipeline steps.
func (a *App) Steps() []pipeline.Step {
	return pipeline.NewSteps(pipeline.Deps{
		Channels:   a.Channels,
		Baselines:  a.Baselines,
		Videos:     a.Videos,
		Vocabulary: a.Vocabulary,
		Collector:  a.Collector,
		Lister:     a.Lister,
		Classifier: a.Classifier,
	}, a.Config.Pipeline)
}

// Orchestrator builds an orchestrator that hands steps off through d.
func (a *App) Orchestrator(d queue.Dispatcher) *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(pipeline.Options{
		Tasks:              a.Tasks,
		Jobs:               a.Jobs,
		Dispatcher:         d,
		Metrics:            a.Metrics,
		Logger:             a.Logger.WithField(logger.FieldComponent, "pipeline"),
		StatusRetries:      a.Config.Pipeline.StatusRetries,
		StatusRetryBackoff: a.Config.Pipeline.StatusRetryBackoff,
	}, a.Steps()...)
}

// Enrichment builds the job submission service on top of trigger.
func (a *App) Enrichment(trigger service.Trigger) *service.EnrichmentService {
	return service.NewEnrichmentService(a.Jobs, a.Tasks, a.Channels, a.Lister, trigger, a.Logger)
}

// Pipeline is a running orchestrator together with its dispatcher.
type Pipeline struct {
	*pipeline.Orchestrator
	closers []func() error
}

// Close stops consumers and releases the dispatcher.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StartPipeline builds the dispatcher named by driver ("local", "inline" or "rabbitmq")
// and, when consume is true, starts processing step messages until ctx is done.
func (a *App) StartPipeline(ctx context.Context, driver string, consume bool) (*Pipeline, error) {
	qcfg := a.Config.Queue
	log := a.Logger.WithField(logger.FieldComponent, "queue")

	switch driver {
	case "inline":
		d := queue.NewInline(log)
		p := &Pipeline{Orchestrator: a.Orchestrator(d)}
		d.SetHandler(p.RunStep)
		return p, nil

	case "rabbitmq":
		mq, err := queue.NewRabbitMQ(queue.RabbitMQConfig{
			URL:      qcfg.RabbitMQURL,
			Queue:    qcfg.QueueName,
			Prefetch: qcfg.Prefetch,
		}, log)
		if err != nil {
			return nil, err
		}
		p := &Pipeline{Orchestrator: a.Orchestrator(mq), closers: []func() error{mq.Close}}
		if consume {
			consumeCtx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				if err := mq.Consume(consumeCtx, p.RunStep); err != nil && consumeCtx.Err() == nil {
					log.WithError(err).Error("RabbitMQ consumer stopped")
				}
			}()
			p.closers = append(p.closers, func() error {
				cancel()
				<-done
				return nil
			})
		}
		return p, nil

	case "local", "":
		d := queue.NewLocal(qcfg.Workers, qcfg.BufferSize, log)
		p := &Pipeline{Orchestrator: a.Orchestrator(d), closers: []func() error{d.Close}}
		if consume {
			d.Start(ctx, p.RunStep)
		}
		return p, nil

	default:
		return nil, fmt.Errorf("unknown queue driver %q", driver)
	}
}

// Close releases the database connection.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
