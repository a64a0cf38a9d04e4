package repository

import (
	"context"
	"time"

	"github.com/timmy/tubebench/internal/domain"
	"gorm.io/gorm"
)

// JobRepository handles enrichment job persistence.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// CreateWithTasks inserts a job and its tasks in one transaction.
func (r *JobRepository) CreateWithTasks(ctx context.Context, job *domain.EnrichmentJob, tasks []*domain.EnrichmentTask) error {
	job.TotalTasks = len(tasks)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(job).Error; err != nil {
			return err
		}
		for _, task := range tasks {
			if err := tx.Create(task).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetByID retrieves a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.EnrichmentJob, error) {
	var job domain.EnrichmentJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &job, nil
}

// List retrieves the most recent jobs.
func (r *JobRepository) List(ctx context.Context, limit, offset int) ([]domain.EnrichmentJob, error) {
	var jobs []domain.EnrichmentJob
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkStarted moves a pending job to processing.
func (r *JobRepository) MarkStarted(ctx context.Context, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&domain.EnrichmentJob{}).
		Where("id = ? AND status = ?", id, domain.JobStatusPending).
		Updates(map[string]interface{}{
			"status":     domain.JobStatusProcessing,
			"started_at": now,
		}).Error
}

// RecordTaskOutcome recounts the job's finished tasks and finalizes the job once
// every task is terminal. Counting from the task rows keeps retries from double counting.
func (r *JobRepository) RecordTaskOutcome(ctx context.Context, jobID string) (*domain.EnrichmentJob, error) {
	var job domain.EnrichmentJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&job, "id = ?", jobID).Error; err != nil {
			return translate(err)
		}

		var rows []struct {
			OverallStatus domain.JobStatus
			Count         int
		}
		if err := tx.Model(&domain.EnrichmentTask{}).
			Select("overall_status, COUNT(*) AS count").
			Where("job_id = ?", jobID).
			Group("overall_status").
			Scan(&rows).Error; err != nil {
			return err
		}

		completed, failed, total := 0, 0, 0
		for _, row := range rows {
			total += row.Count
			switch row.OverallStatus {
			case domain.JobStatusCompleted:
				completed = row.Count
			case domain.JobStatusFailed:
				failed = row.Count
			}
		}

		updates := map[string]interface{}{
			"completed_tasks": completed,
			"failed_tasks":    failed,
		}
		if total > 0 && completed+failed >= total {
			status := domain.JobStatusCompleted
			if completed == 0 {
				status = domain.JobStatusFailed
			}
			updates["status"] = status
			updates["completed_at"] = time.Now()
		} else if job.Status != domain.JobStatusPending {
			// a retried task reopens a finished job
			updates["status"] = domain.JobStatusProcessing
			updates["completed_at"] = nil
		}
		if err := tx.Model(&job).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&job, "id = ?", jobID).Error
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}
