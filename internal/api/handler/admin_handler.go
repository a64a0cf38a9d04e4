package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/tubebench/internal/domain"
	"github.com/timmy/tubebench/internal/logger"
	"github.com/timmy/tubebench/internal/pipeline"
	"github.com/timmy/tubebench/internal/repository"
	"github.com/timmy/tubebench/internal/service"
)

// AdminHandler handles enrichment job submission and task inspection.
type AdminHandler struct {
	enrichment *service.EnrichmentService
	jobs       *repository.JobRepository
	tasks      *repository.TaskRepository
	logger     *logger.Logger
}

// NewAdminHandler creates a new admin handler.
// Parameters:
//   - enrichment: job submission service.
//   - jobs: job repository for reads.
//   - tasks: task repository for reads.
//   - log: logger instance.
//
// Returns:
//   - *AdminHandler: initialized handler.
func NewAdminHandler(
	enrichment *service.EnrichmentService,
	jobs *repository.JobRepository,
	tasks *repository.TaskRepository,
	log *logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		enrichment: enrichment,
		jobs:       jobs,
		tasks:      tasks,
		logger:     log,
	}
}

// CreateJobRequest represents the job submission request.
type CreateJobRequest struct {
	ChannelIDs []string `json:"channel_ids" binding:"required,min=1,max=100"`
}

// CreateJobResponse represents the job submission response.
type CreateJobResponse struct {
	JobID       string   `json:"job_id"`
	TaskIDs     []string `json:"task_ids"`
	ChannelIDs  []string `json:"channel_ids"`
	Untriggered []string `json:"untriggered,omitempty"`
}

// TaskView is a task with its steps laid out in pipeline order.
type TaskView struct {
	ID            string             `json:"id"`
	JobID         string             `json:"job_id"`
	ChannelID     string             `json:"channel_id"`
	OverallStatus domain.JobStatus   `json:"overall_status"`
	RetryCount    int                `json:"retry_count"`
	LastError     string             `json:"last_error,omitempty"`
	Steps         []domain.StepState `json:"steps"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func newTaskView(t *domain.EnrichmentTask) TaskView {
	return TaskView{
		ID:            t.ID,
		JobID:         t.JobID,
		ChannelID:     t.ChannelID,
		OverallStatus: t.OverallStatus,
		RetryCount:    t.RetryCount,
		LastError:     t.LastError,
		Steps:         t.Steps(),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// CreateJob handles POST /api/v1/enrichment/jobs.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *AdminHandler) CreateJob(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.WithField("client_ip", c.ClientIP()).WithError(err).Warn(ctx, "Invalid job request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	start := time.Now()
	// the pipeline outlives the request
	sub, err := h.enrichment.Submit(context.WithoutCancel(ctx), req.ChannelIDs)
	if errors.Is(err, service.ErrNoChannels) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		logger.WithField(logger.FieldCount, len(req.ChannelIDs)).WithError(err).Error(ctx, "Job submission failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Job submission failed: " + err.Error()})
		return
	}

	resp := CreateJobResponse{
		JobID:       sub.Job.ID,
		ChannelIDs:  sub.Job.ChannelIDs,
		Untriggered: sub.Untriggered,
	}
	for _, t := range sub.Tasks {
		resp.TaskIDs = append(resp.TaskIDs, t.ID)
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		logger.FieldCount:      len(sub.Tasks),
		logger.FieldJobID:      sub.Job.ID,
	}).Info(ctx, "Enrichment job accepted: untriggered=%d", len(sub.Untriggered))

	c.JSON(http.StatusAccepted, resp)
}

// ListJobs handles GET /api/v1/enrichment/jobs.
func (h *AdminHandler) ListJobs(c *gin.Context) {
	limit := queryInt(c, "limit", 20, 1, 100)
	offset := queryInt(c, "offset", 0, 0, 1<<30)

	jobs, err := h.jobs.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobs,
		"limit":  limit,
		"offset": offset,
	})
}

// GetJob handles GET /api/v1/enrichment/jobs/:id.
func (h *AdminHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobTasks handles GET /api/v1/enrichment/jobs/:id/tasks.
func (h *AdminHandler) ListJobTasks(c *gin.Context) {
	ctx := c.Request.Context()
	jobID := c.Param("id")

	if _, err := h.jobs.GetByID(ctx, jobID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job: " + err.Error()})
		return
	}

	tasks, err := h.tasks.ListByJob(ctx, jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tasks: " + err.Error()})
		return
	}
	views := make([]TaskView, 0, len(tasks))
	for i := range tasks {
		views = append(views, newTaskView(&tasks[i]))
	}
	c.JSON(http.StatusOK, gin.H{"job_id": jobID, "tasks": views})
}

// GetTask handles GET /api/v1/enrichment/tasks/:id.
func (h *AdminHandler) GetTask(c *gin.Context) {
	task, err := h.tasks.GetByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get task: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, newTaskView(task))
}

// RetryTask handles POST /api/v1/enrichment/tasks/:id/retry.
func (h *AdminHandler) RetryTask(c *gin.Context) {
	ctx := c.Request.Context()
	taskID := c.Param("id")

	task, err := h.enrichment.Retry(context.WithoutCancel(ctx), taskID)
	if errors.Is(err, pipeline.ErrTaskNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	if err != nil {
		logger.WithField(logger.FieldTaskID, taskID).WithError(err).Error(ctx, "Task retry failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Retry failed: " + err.Error()})
		return
	}

	logger.With(logger.Fields{logger.FieldTaskID: taskID, logger.FieldAttempt: task.RetryCount}).Info(ctx, "Task retry accepted")
	c.JSON(http.StatusAccepted, newTaskView(task))
}

// queryInt reads an integer query parameter clamped to [lo, hi].
func queryInt(c *gin.Context, key string, def, lo, hi int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
