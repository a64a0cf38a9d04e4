package domain

import "time"

// JobStatus represents the overall status of an enrichment job or task.
// Values include JobStatusPending, JobStatusProcessing, JobStatusCompleted, and JobStatusFailed.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are expected.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// EnrichmentJob is a batch request to enrich one or more channels.
// Counts are informational; the tasks carry the authoritative state.
type EnrichmentJob struct {
	ID             string      `gorm:"type:text;primaryKey" json:"id"`
	ChannelIDs     StringArray `gorm:"type:text" json:"channel_ids"`
	Status         JobStatus   `gorm:"type:text;default:pending;index" json:"status"`
	TotalTasks     int         `gorm:"default:0" json:"total_tasks"`
	CompletedTasks int         `gorm:"default:0" json:"completed_tasks"`
	FailedTasks    int         `gorm:"default:0" json:"failed_tasks"`
	StartedAt      *time.Time  `json:"started_at,omitempty"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// TableName returns the database table name for EnrichmentJob.
func (EnrichmentJob) TableName() string {
	return "enrichment_jobs"
}

// EnrichmentTask is one enrichment attempt for one channel, tracked step by step.
// The dashboard subscribes to row changes, so column names are part of its contract.
type EnrichmentTask struct {
	ID            string    `gorm:"type:text;primaryKey" json:"id"`
	JobID         string    `gorm:"type:text;not null;index" json:"job_id"`
	ChannelID     string    `gorm:"type:text;not null;index" json:"channel_id"`
	OverallStatus JobStatus `gorm:"column:overall_status;type:text;default:pending;index" json:"overall_status"`

	CategorizationStatus      StepStatus `gorm:"column:categorization_status;type:text;default:pending" json:"categorization_status"`
	CategorizationResult      JSONMap    `gorm:"column:categorization_result;type:text" json:"categorization_result,omitempty"`
	CategorizationError       string     `gorm:"column:categorization_error;type:text" json:"categorization_error,omitempty"`
	CategorizationStartedAt   *time.Time `gorm:"column:categorization_started_at" json:"categorization_started_at,omitempty"`
	CategorizationCompletedAt *time.Time `gorm:"column:categorization_completed_at" json:"categorization_completed_at,omitempty"`

	SocialBladeStatus      StepStatus `gorm:"column:socialblade_status;type:text;default:pending" json:"socialblade_status"`
	SocialBladeResult      JSONMap    `gorm:"column:socialblade_result;type:text" json:"socialblade_result,omitempty"`
	SocialBladeError       string     `gorm:"column:socialblade_error;type:text" json:"socialblade_error,omitempty"`
	SocialBladeStartedAt   *time.Time `gorm:"column:socialblade_started_at" json:"socialblade_started_at,omitempty"`
	SocialBladeCompletedAt *time.Time `gorm:"column:socialblade_completed_at" json:"socialblade_completed_at,omitempty"`

	RecentVideosStatus      StepStatus `gorm:"column:recent_videos_status;type:text;default:pending" json:"recent_videos_status"`
	RecentVideosResult      JSONMap    `gorm:"column:recent_videos_result;type:text" json:"recent_videos_result,omitempty"`
	RecentVideosError       string     `gorm:"column:recent_videos_error;type:text" json:"recent_videos_error,omitempty"`
	RecentVideosStartedAt   *time.Time `gorm:"column:recent_videos_started_at" json:"recent_videos_started_at,omitempty"`
	RecentVideosCompletedAt *time.Time `gorm:"column:recent_videos_completed_at" json:"recent_videos_completed_at,omitempty"`

	TrendingVideosStatus      StepStatus `gorm:"column:trending_videos_status;type:text;default:pending" json:"trending_videos_status"`
	TrendingVideosResult      JSONMap    `gorm:"column:trending_videos_result;type:text" json:"trending_videos_result,omitempty"`
	TrendingVideosError       string     `gorm:"column:trending_videos_error;type:text" json:"trending_videos_error,omitempty"`
	TrendingVideosStartedAt   *time.Time `gorm:"column:trending_videos_started_at" json:"trending_videos_started_at,omitempty"`
	TrendingVideosCompletedAt *time.Time `gorm:"column:trending_videos_completed_at" json:"trending_videos_completed_at,omitempty"`

	OutliersStatus      StepStatus `gorm:"column:outliers_status;type:text;default:pending" json:"outliers_status"`
	OutliersResult      JSONMap    `gorm:"column:outliers_result;type:text" json:"outliers_result,omitempty"`
	OutliersError       string     `gorm:"column:outliers_error;type:text" json:"outliers_error,omitempty"`
	OutliersStartedAt   *time.Time `gorm:"column:outliers_started_at" json:"outliers_started_at,omitempty"`
	OutliersCompletedAt *time.Time `gorm:"column:outliers_completed_at" json:"outliers_completed_at,omitempty"`

	RetryCount int       `gorm:"default:0" json:"retry_count"`
	LastError  string    `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for EnrichmentTask.
func (EnrichmentTask) TableName() string {
	return "enrichment_tasks"
}

// StepState is a read-only view of one step's columns.
type StepState struct {
	Step        StepName   `json:"step"`
	Status      StepStatus `json:"status"`
	Result      JSONMap    `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// StepState returns the view of step s. Unknown steps yield a zero state.
func (t *EnrichmentTask) StepState(s StepName) StepState {
	st := StepState{Step: s}
	switch s {
	case StepCategorization:
		st.Status, st.Result, st.Error = t.CategorizationStatus, t.CategorizationResult, t.CategorizationError
		st.StartedAt, st.CompletedAt = t.CategorizationStartedAt, t.CategorizationCompletedAt
	case StepSocialBlade:
		st.Status, st.Result, st.Error = t.SocialBladeStatus, t.SocialBladeResult, t.SocialBladeError
		st.StartedAt, st.CompletedAt = t.SocialBladeStartedAt, t.SocialBladeCompletedAt
	case StepRecentVideos:
		st.Status, st.Result, st.Error = t.RecentVideosStatus, t.RecentVideosResult, t.RecentVideosError
		st.StartedAt, st.CompletedAt = t.RecentVideosStartedAt, t.RecentVideosCompletedAt
	case StepTrendingVideos:
		st.Status, st.Result, st.Error = t.TrendingVideosStatus, t.TrendingVideosResult, t.TrendingVideosError
		st.StartedAt, st.CompletedAt = t.TrendingVideosStartedAt, t.TrendingVideosCompletedAt
	case StepOutliers:
		st.Status, st.Result, st.Error = t.OutliersStatus, t.OutliersResult, t.OutliersError
		st.StartedAt, st.CompletedAt = t.OutliersStartedAt, t.OutliersCompletedAt
	}
	return st
}

// Steps returns the state of every step in pipeline order.
func (t *EnrichmentTask) Steps() []StepState {
	states := make([]StepState, 0, len(StepOrder))
	for _, s := range StepOrder {
		states = append(states, t.StepState(s))
	}
	return states
}

// NewEnrichmentTask returns a task with every step pending.
func NewEnrichmentTask(id, jobID, channelID string) *EnrichmentTask {
	return &EnrichmentTask{
		ID:                   id,
		JobID:                jobID,
		ChannelID:            channelID,
		OverallStatus:        JobStatusPending,
		CategorizationStatus: StepStatusPending,
		SocialBladeStatus:    StepStatusPending,
		RecentVideosStatus:   StepStatusPending,
		TrendingVideosStatus: StepStatusPending,
		OutliersStatus:       StepStatusPending,
	}
}
