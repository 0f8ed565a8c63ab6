package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeImportCatalog imports a converted record file into a catalog
	// namespace
	TaskTypeImportCatalog TaskType = "import_catalog"
	// TaskTypeIndexCatalog syncs one catalog's search documents
	TaskTypeIndexCatalog TaskType = "index_catalog"
	// TaskTypeRebuildIndex drops and recreates the whole document collection
	TaskTypeRebuildIndex TaskType = "rebuild_index"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task represents a background job to be processed by workers
type Task struct {
	// ID is the unique identifier for this task
	ID string `json:"id"`

	// Type identifies what kind of task this is
	Type TaskType `json:"type"`

	// Payload contains task-specific data
	// For import_catalog: {"catalog_id": ..., "path": ..., "replace": "true"}
	// For index_catalog: {"catalog_id": ..., "embeddings": "true"}
	// For rebuild_index: {"embeddings": "true"}
	Payload map[string]string `json:"payload"`

	// Status is the current state of the task
	Status TaskStatus `json:"status"`

	// Priority determines processing order (higher = more urgent)
	Priority int `json:"priority"`

	// Attempts is how many times this task has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum retry count before giving up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// StartedAt is when processing began (nil if not started)
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when processing finished (nil if not complete)
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the task should be processed (for retry backoff)
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:           GenerateID(),
		Type:         taskType,
		Payload:      payload,
		Status:       TaskStatusPending,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewImportCatalogTask creates a task to import a record file into a catalog
func NewImportCatalogTask(catalogID, path string, replace bool) *Task {
	payload := map[string]string{
		"catalog_id": catalogID,
		"path":       path,
	}
	if replace {
		payload["replace"] = "true"
	}
	return NewTask(TaskTypeImportCatalog, payload)
}

// NewIndexCatalogTask creates a task to sync one catalog's search documents
func NewIndexCatalogTask(catalogID string, embeddings bool) *Task {
	payload := map[string]string{"catalog_id": catalogID}
	if embeddings {
		payload["embeddings"] = "true"
	}
	return NewTask(TaskTypeIndexCatalog, payload)
}

// NewRebuildIndexTask creates a task to rebuild the whole document collection
func NewRebuildIndexTask(embeddings bool) *Task {
	payload := map[string]string{}
	if embeddings {
		payload["embeddings"] = "true"
	}
	return NewTask(TaskTypeRebuildIndex, payload)
}

// CatalogID extracts the catalog_id from the payload
func (t *Task) CatalogID() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload["catalog_id"]
}

// Path extracts the record file path from the payload
func (t *Task) Path() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload["path"]
}

// Flag reports whether a boolean payload field is set
func (t *Task) Flag(name string) bool {
	return t.Payload != nil && t.Payload[name] == "true"
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady returns true if the task is ready to be processed
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && time.Now().After(t.ScheduledFor)
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.UpdatedAt = now
	t.Error = err
}

// Retry resets the task for retry with exponential backoff
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err

	// Exponential backoff: 1s, 2s, 4s, 8s, etc.
	backoff := time.Duration(1<<t.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	t.ScheduledFor = now.Add(backoff)
}

// TaskResult represents the outcome of processing a task
type TaskResult struct {
	TaskID      string        `json:"task_id"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	ItemsCount  int           `json:"items_count,omitempty"`
	ErrorsCount int           `json:"errors_count,omitempty"`
}
