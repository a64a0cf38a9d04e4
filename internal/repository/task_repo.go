package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/tubebench/internal/domain"
	"gorm.io/gorm"
)

// StepUpdate describes a write to one step's columns. Nil fields are left untouched.
type StepUpdate struct {
	Status      domain.StepStatus
	Result      domain.JSONMap
	Error       *string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// TaskRepository handles enrichment task persistence.
// Every status change is a single UPDATE so observers see each transition as a row change.
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *TaskRepository: repository instance bound to db.
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Create inserts a new task record.
func (r *TaskRepository) Create(ctx context.Context, task *domain.EnrichmentTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// GetByID retrieves a task by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: task ID.
//
// Returns:
//   - *domain.EnrichmentTask: task record if found.
//   - error: ErrNotFound when no task has that ID.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*domain.EnrichmentTask, error) {
	var task domain.EnrichmentTask
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &task, nil
}

// ListByJob retrieves all tasks of a job in creation order.
func (r *TaskRepository) ListByJob(ctx context.Context, jobID string) ([]domain.EnrichmentTask, error) {
	var tasks []domain.EnrichmentTask
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// MarkStep writes the given fields of one step in a single UPDATE.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - taskID: task to update.
//   - step: step whose columns are written.
//   - u: values to write; nil pointers are skipped.
//
// Returns:
//   - error: ErrNotFound if the task does not exist, or the database error.
func (r *TaskRepository) MarkStep(ctx context.Context, taskID string, step domain.StepName, u StepUpdate) error {
	if !step.Valid() {
		return fmt.Errorf("unknown step %q", step)
	}
	cols := step.Columns()
	updates := map[string]interface{}{}
	if u.Status != "" {
		updates[cols.Status] = u.Status
	}
	if u.Result != nil {
		updates[cols.Result] = u.Result
	}
	if u.Error != nil {
		updates[cols.Error] = *u.Error
	}
	if u.StartedAt != nil {
		updates[cols.StartedAt] = *u.StartedAt
	}
	if u.CompletedAt != nil {
		updates[cols.CompletedAt] = *u.CompletedAt
	}
	if len(updates) == 0 {
		return nil
	}
	return r.update(ctx, taskID, updates)
}

// MarkOverall sets the task's overall status. A non-empty lastError is recorded alongside.
func (r *TaskRepository) MarkOverall(ctx context.Context, taskID string, status domain.JobStatus, lastError string) error {
	updates := map[string]interface{}{"overall_status": status}
	if lastError != "" {
		updates["last_error"] = lastError
	}
	return r.update(ctx, taskID, updates)
}

// ResetForRetry bumps retry_count and puts every step back to pending so a fresh run can start.
func (r *TaskRepository) ResetForRetry(ctx context.Context, taskID string) error {
	updates := map[string]interface{}{
		"overall_status": domain.JobStatusPending,
		"retry_count":    gorm.Expr("retry_count + 1"),
		"last_error":     "",
	}
	for _, step := range domain.StepOrder {
		cols := step.Columns()
		updates[cols.Status] = domain.StepStatusPending
		updates[cols.Result] = nil
		updates[cols.Error] = ""
		updates[cols.StartedAt] = nil
		updates[cols.CompletedAt] = nil
	}
	return r.update(ctx, taskID, updates)
}

func (r *TaskRepository) update(ctx context.Context, taskID string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&domain.EnrichmentTask{}).
		Where("id = ?", taskID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return nil
}
