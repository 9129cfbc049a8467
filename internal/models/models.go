package models

import "time"

type LinkStatus string

const (
	LinkPending    LinkStatus = "pending"
	LinkProcessing LinkStatus = "processing"
	LinkDone       LinkStatus = "done"
	LinkError      LinkStatus = "error"
	LinkTimeout    LinkStatus = "timeout"
)

// Terminal reports whether no further transition happens without a retry.
func (s LinkStatus) Terminal() bool {
	return s == LinkDone || s == LinkError || s == LinkTimeout
}

type TaskStatus string

const (
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

type LogEntry struct {
	Message string   `json:"message"`
	Level   LogLevel `json:"level"`
}

// Link is one resolvable URL inside a Task. Index is the correlation id
// across pipeline, stream and persistence.
type Link struct {
	Index       int        `json:"index"`
	Name        string     `json:"name"`
	OriginalURL string     `json:"original_url"`
	FinalURL    string     `json:"final_url,omitempty"`
	Status      LinkStatus `json:"status"`
	Logs        []LogEntry `json:"logs,omitempty"`
	Provider    string     `json:"provider,omitempty"`
}

type Task struct {
	ID          string            `json:"id"`
	SourceURL   string            `json:"source_url"`
	Status      TaskStatus        `json:"status"`
	Links       []Link            `json:"links"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// DeriveTaskStatus computes the task status from its links: completed when
// every link is terminal and at least one is done, failed when every link is
// terminal and none is done, processing otherwise. Task.Status is never set
// except through this rule.
func DeriveTaskStatus(links []Link) TaskStatus {
	if len(links) == 0 {
		return TaskProcessing
	}
	anyDone := false
	for _, l := range links {
		if !l.Status.Terminal() {
			return TaskProcessing
		}
		if l.Status == LinkDone {
			anyDone = true
		}
	}
	if anyDone {
		return TaskCompleted
	}
	return TaskFailed
}

// Retryable reports whether a retry may reset this link back to pending.
// Done links are never touched by retry.
func (l Link) Retryable() bool {
	return l.Status == LinkError || l.Status == LinkTimeout
}

type CreateTaskRequest struct {
	SourceURL string            `json:"source_url"`
	Links     []LinkRequest     `json:"links"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type LinkRequest struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Link string `json:"link"`
}

type ErrorResponse struct {
	Request string `json:"request"`
	Error   string `json:"error"`
}
