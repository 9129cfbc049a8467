package models

// StreamEvent is one NDJSON record on the resolve stream. Exactly one of the
// optional fields is meaningful per event type:
//
//	log:      Message + Level
//	result:   FinalURL (intermediate, may be followed by more logs)
//	status:   Status done|error (terminal outcome)
//	finished: end-of-stream sentinel for the link, emitted exactly once per
//	          link after the terminal event; a finished with no preceding
//	          terminal event means the pipeline exited without an outcome and
//	          consumers must treat it as an implicit error.
type StreamEvent struct {
	Type     string   `json:"type"`
	LinkID   int      `json:"link_id"`
	Message  string   `json:"message,omitempty"`
	Level    LogLevel `json:"level,omitempty"`
	FinalURL string   `json:"final_url,omitempty"`
	Status   string   `json:"status,omitempty"`
	Provider string   `json:"provider,omitempty"`
}

const (
	EventLog      = "log"
	EventResult   = "result"
	EventStatus   = "status"
	EventFinished = "finished"
)

func LogEvent(linkID int, message string, level LogLevel) StreamEvent {
	return StreamEvent{Type: EventLog, LinkID: linkID, Message: message, Level: level}
}

func ResultEvent(linkID int, finalURL, provider string) StreamEvent {
	return StreamEvent{Type: EventResult, LinkID: linkID, FinalURL: finalURL, Provider: provider}
}

func StatusEvent(linkID int, status LinkStatus) StreamEvent {
	return StreamEvent{Type: EventStatus, LinkID: linkID, Status: string(status)}
}

func FinishedEvent(linkID int) StreamEvent {
	return StreamEvent{Type: EventFinished, LinkID: linkID, Status: "finished"}
}
