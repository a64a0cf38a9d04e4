package domain

// StepName identifies one stage of the channel enrichment pipeline.
// The value doubles as the column prefix on enrichment_tasks.
type StepName string

const (
	StepCategorization StepName = "categorization"
	StepSocialBlade    StepName = "socialblade"
	StepRecentVideos   StepName = "recent_videos"
	StepTrendingVideos StepName = "trending_videos"
	StepOutliers       StepName = "outliers"
)

// StepOrder is the order in which steps hand off to each other.
var StepOrder = []StepName{
	StepCategorization,
	StepSocialBlade,
	StepRecentVideos,
	StepTrendingVideos,
	StepOutliers,
}

// Valid reports whether s is a known step.
func (s StepName) Valid() bool {
	for _, step := range StepOrder {
		if step == s {
			return true
		}
	}
	return false
}

// Next returns the step after s and false when s is the last step.
func (s StepName) Next() (StepName, bool) {
	for i, step := range StepOrder {
		if step == s && i+1 < len(StepOrder) {
			return StepOrder[i+1], true
		}
	}
	return "", false
}

// StepStatus is the per-step status vocabulary observed by the dashboard.
// The literal values are a wire contract and must not change.
type StepStatus string

const (
	StepStatusPending    StepStatus = "pending"
	StepStatusProcessing StepStatus = "processing"
	StepStatusCompleted  StepStatus = "completed"
	StepStatusFailed     StepStatus = "failed"
	StepStatusSkipped    StepStatus = "skipped"
)

// IsTerminal reports whether the status ends a step for the current run.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return true
	}
	return false
}

// StepColumns holds the enrichment_tasks column names for one step.
type StepColumns struct {
	Status      string
	Result      string
	Error       string
	StartedAt   string
	CompletedAt string
}

// Columns returns the column names backing step s.
func (s StepName) Columns() StepColumns {
	p := string(s)
	return StepColumns{
		Status:      p + "_status",
		Result:      p + "_result",
		Error:       p + "_error",
		StartedAt:   p + "_started_at",
		CompletedAt: p + "_completed_at",
	}
}
