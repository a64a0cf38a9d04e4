package logger

// Fields is a set of structured log fields.
type Fields map[string]interface{}

// Identity fields. These ride on the context logger so every line written
// while handling a request or a step carries them.
const (
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldTaskID    = "task_id"
	FieldChannelID = "channel_id"
	FieldStep      = "step"
	FieldComponent = "component"
)

// Per-line fields, usually set through Entry.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldAttempt    = "attempt" // 1-based
	FieldStatus     = "status"
)
