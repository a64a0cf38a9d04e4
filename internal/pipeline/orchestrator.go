package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/timmy/tubebench/internal/domain"
	"github.com/timmy/tubebench/internal/logger"
	"github.com/timmy/tubebench/internal/metrics"
	"github.com/timmy/tubebench/internal/queue"
	"github.com/timmy/tubebench/internal/repository"
)

// Step is one stage of the enrichment pipeline.
type Step interface {
	Name() domain.StepName
	// Critical steps stop the chain and fail the task when they fail.
	Critical() bool
	// Execute does the step's work and reports its terminal state. It must not
	// write the step's status columns; the orchestrator owns those.
	Execute(ctx context.Context, run *Run) Outcome
}

// Degrader is implemented by steps with a degraded posture for unexpected
// failures, such as writing a placeholder row before reporting skipped.
type Degrader interface {
	Degrade(ctx context.Context, run *Run, cause error) Outcome
}

// Run is what a step gets to work with.
type Run struct {
	Task      *domain.EnrichmentTask
	ChannelID string
	Log       *logger.Logger
}

// Outcome is a step's terminal state for this run.
type Outcome struct {
	Status domain.StepStatus
	Result domain.JSONMap
	Err    error
	// FastPath marks an idempotent skip; started_at and completed_at get the same instant.
	FastPath bool
}

func completed(result domain.JSONMap) Outcome {
	return Outcome{Status: domain.StepStatusCompleted, Result: result}
}

func alreadyDone(reason string, result domain.JSONMap) Outcome {
	if result == nil {
		result = domain.JSONMap{}
	}
	result["skipped_reason"] = reason
	return Outcome{Status: domain.StepStatusCompleted, Result: result, FastPath: true}
}

func skipped(reason string, cause error, result domain.JSONMap) Outcome {
	if result == nil {
		result = domain.JSONMap{}
	}
	result["reason"] = reason
	return Outcome{Status: domain.StepStatusSkipped, Result: result, Err: cause}
}

func failed(err error) Outcome {
	return Outcome{Status: domain.StepStatusFailed, Err: err}
}

// Options configures an Orchestrator.
type Options struct {
	Tasks      TaskStore
	Jobs       JobStore
	Dispatcher queue.Dispatcher
	Metrics    *metrics.Metrics
	Logger     *logger.Logger

	// StatusRetries is the number of attempts for a terminal status write.
	StatusRetries int
	// StatusRetryBackoff is multiplied by the attempt number between attempts.
	StatusRetryBackoff time.Duration

	Now   func() time.Time
	Sleep func(time.Duration)
}

// Orchestrator runs steps, records their state on the task and hands off to the next step.
type Orchestrator struct {
	tasks      TaskStore
	jobs       JobStore
	dispatcher queue.Dispatcher
	metrics    *metrics.Metrics
	logger     *logger.Logger
	steps      map[domain.StepName]Step

	statusRetries int
	backoff       time.Duration
	now           func() time.Time
	sleep         func(time.Duration)
}

// NewOrchestrator creates an orchestrator serving the given steps.
func NewOrchestrator(opts Options, steps ...Step) *Orchestrator {
	o := &Orchestrator{
		tasks:         opts.Tasks,
		jobs:          opts.Jobs,
		dispatcher:    opts.Dispatcher,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		steps:         make(map[domain.StepName]Step, len(steps)),
		statusRetries: opts.StatusRetries,
		backoff:       opts.StatusRetryBackoff,
		now:           opts.Now,
		sleep:         opts.Sleep,
	}
	if o.logger == nil {
		o.logger = logger.GetDefault()
	}
	if o.statusRetries < 1 {
		o.statusRetries = 3
	}
	if o.backoff <= 0 {
		o.backoff = 500 * time.Millisecond
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.sleep == nil {
		o.sleep = time.Sleep
	}
	for _, s := range steps {
		o.steps[s.Name()] = s
	}
	return o
}

// Start begins (or resumes) a task's pipeline by dispatching its first step.
// The task row must already exist.
func (o *Orchestrator) Start(ctx context.Context, channelID, taskID string) error {
	task, err := o.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if channelID != "" && channelID != task.ChannelID {
		return fmt.Errorf("task %s belongs to channel %s, not %s", taskID, task.ChannelID, channelID)
	}
	if err := o.jobs.MarkStarted(ctx, task.JobID); err != nil {
		o.logger.WithError(err).WithField(logger.FieldJobID, task.JobID).Warn("Failed to mark job started")
	}
	return o.dispatcher.Dispatch(ctx, queue.Message{
		Step:      domain.StepOrder[0],
		ChannelID: task.ChannelID,
		TaskID:    task.ID,
	})
}

// Retry resets every step of the task to pending, bumps retry_count and starts
// the pipeline again. Steps whose effect already exists complete on their fast path.
func (o *Orchestrator) Retry(ctx context.Context, taskID string) error {
	task, err := o.loadTask(ctx, taskID)
	if err != nil {
		return err
	}
	if err := o.tasks.ResetForRetry(ctx, taskID); err != nil {
		return fmt.Errorf("failed to reset task: %w", err)
	}
	if _, err := o.jobs.RecordTaskOutcome(ctx, task.JobID); err != nil {
		o.logger.WithError(err).WithField(logger.FieldJobID, task.JobID).Warn("Failed to reopen job")
	}
	return o.Start(ctx, task.ChannelID, taskID)
}

// RunStep runs one step for one task. It is the queue.Handler of every dispatcher.
// Step failures are recorded on the task; an error is returned only when the
// message could not be processed at all.
func (o *Orchestrator) RunStep(ctx context.Context, msg queue.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	step, ok := o.steps[msg.Step]
	if !ok {
		return fmt.Errorf("no handler registered for step %s", msg.Step)
	}
	task, err := o.loadTask(ctx, msg.TaskID)
	if err != nil {
		return err
	}

	log := o.logger.WithFields(logger.Fields{
		logger.FieldJobID:     task.JobID,
		logger.FieldTaskID:    task.ID,
		logger.FieldChannelID: task.ChannelID,
		logger.FieldStep:      string(msg.Step),
	})
	ctx = log.WithContext(ctx)

	startedAt := o.now()
	if err := o.tasks.MarkStep(ctx, task.ID, step.Name(), repository.StepUpdate{
		Status:    domain.StepStatusProcessing,
		StartedAt: &startedAt,
	}); err != nil {
		return fmt.Errorf("failed to claim step %s: %w", step.Name(), err)
	}
	if task.OverallStatus == domain.JobStatusPending {
		if err := o.tasks.MarkOverall(ctx, task.ID, domain.JobStatusProcessing, ""); err != nil {
			log.WithError(err).Warn("Failed to mark task processing")
		}
	}
	log.Info("Step started")

	run := &Run{Task: task, ChannelID: task.ChannelID, Log: log}
	out := o.execute(ctx, step, run)
	finishedAt := o.now()
	o.metrics.ObserveStep(string(step.Name()), string(out.Status), finishedAt.Sub(startedAt))

	o.finish(ctx, step, run, out, finishedAt, finishedAt.Sub(startedAt))
	return nil
}

func (o *Orchestrator) loadTask(ctx context.Context, taskID string) (*domain.EnrichmentTask, error) {
	task, err := o.tasks.GetByID(ctx, taskID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}
	return task, nil
}

// execute runs the step, converting a panic into the step's failure posture.
func (o *Orchestrator) execute(ctx context.Context, step Step, run *Run) (out Outcome) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		cause := fmt.Errorf("panic in %s step: %v", step.Name(), r)
		run.Log.WithField("stack", string(debug.Stack())).WithError(cause).Error("Step panicked")
		out = failed(cause)
		if d, ok := step.(Degrader); ok {
			out = o.degrade(ctx, d, run, cause)
		}
	}()

	out = step.Execute(ctx, run)
	if !out.Status.IsTerminal() {
		out = failed(fmt.Errorf("step %s returned non-terminal status %q", step.Name(), out.Status))
	}
	return out
}

func (o *Orchestrator) degrade(ctx context.Context, d Degrader, run *Run, cause error) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failed(fmt.Errorf("%v; degrade panicked: %v", cause, r))
		}
	}()
	return d.Degrade(ctx, run, cause)
}

// finish persists the terminal state and decides what happens next. Writes use a
// context detached from cancellation so a shutdown cannot leave the step processing.
func (o *Orchestrator) finish(ctx context.Context, step Step, run *Run, out Outcome, at time.Time, elapsed time.Duration) {
	writeCtx := context.WithoutCancel(ctx)
	name := step.Name()

	update := repository.StepUpdate{
		Status:      out.Status,
		Result:      out.Result,
		CompletedAt: &at,
	}
	if out.FastPath {
		update.StartedAt = &at
	}
	if out.Err != nil {
		msg := out.Err.Error()
		update.Error = &msg
	}

	_ = o.writeWithRetry(writeCtx, run.Log, name, "step status", func(ctx context.Context) error {
		return o.tasks.MarkStep(ctx, run.Task.ID, name, update)
	})

	entry := logger.With(logger.Fields{logger.FieldStatus: string(out.Status)}).
		WithDuration(elapsed).
		WithError(out.Err)
	switch {
	case out.Status == domain.StepStatusFailed:
		entry.Warn(ctx, "Step failed")
	case out.Status == domain.StepStatusSkipped:
		entry.Info(ctx, "Step skipped")
	case out.FastPath:
		entry.Info(ctx, "Step already done: %v", out.Result["skipped_reason"])
	default:
		entry.Info(ctx, "Step completed")
	}

	next, hasNext := name.Next()
	switch {
	case out.Status == domain.StepStatusFailed && step.Critical():
		lastError := fmt.Sprintf("%s failed", name)
		if out.Err != nil {
			lastError = out.Err.Error()
		}
		o.finishTask(writeCtx, run, name, domain.JobStatusFailed, lastError)
	case !hasNext:
		o.finishTask(writeCtx, run, name, domain.JobStatusCompleted, "")
	default:
		o.advance(ctx, run, next)
	}
}

func (o *Orchestrator) finishTask(ctx context.Context, run *Run, step domain.StepName, status domain.JobStatus, lastError string) {
	_ = o.writeWithRetry(ctx, run.Log, step, "overall status", func(ctx context.Context) error {
		return o.tasks.MarkOverall(ctx, run.Task.ID, status, lastError)
	})
	o.metrics.TaskFinished(string(status))

	job, err := o.jobs.RecordTaskOutcome(ctx, run.Task.JobID)
	if err != nil {
		run.Log.WithError(err).Warn("Failed to update job counters")
		return
	}
	run.Log.WithFields(logger.Fields{
		logger.FieldStatus: string(status),
		"job_status":       string(job.Status),
	}).Info("Task finished")
}

// advance hands off to the next step. A failed hand-off is logged and counted,
// never returned: the current step already finished.
func (o *Orchestrator) advance(ctx context.Context, run *Run, next domain.StepName) {
	err := o.dispatcher.Dispatch(ctx, queue.Message{
		Step:      next,
		ChannelID: run.ChannelID,
		TaskID:    run.Task.ID,
	})
	if err != nil {
		o.metrics.DispatchFailed(string(next))
		run.Log.WithError(err).WithField("next_step", string(next)).Error("Failed to dispatch next step")
	}
}

// writeWithRetry attempts write up to statusRetries times, sleeping attempt×backoff
// between attempts. Exhaustion is logged as a possibly stuck task.
func (o *Orchestrator) writeWithRetry(ctx context.Context, log *logger.Logger, step domain.StepName, what string, write func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= o.statusRetries; attempt++ {
		if err = write(ctx); err == nil {
			return nil
		}
		exhausted := attempt == o.statusRetries
		o.metrics.StatusWriteFailed(string(step), exhausted)
		log.WithError(err).WithField(logger.FieldAttempt, attempt).Warnf("Failed to write %s", what)
		if !exhausted {
			o.sleep(time.Duration(attempt) * o.backoff)
		}
	}
	log.WithError(err).WithField(logger.FieldAttempt, o.statusRetries).
		Errorf("Giving up writing %s, task may be stuck", what)
	return err
}
