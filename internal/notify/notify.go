package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"hubresolver/internal/models"
)

// Notifier posts task completion events to a webhook. Delivery is
// best-effort on its own short cap, independent of the request budget; a
// failure is logged and never affects the task outcome.
type Notifier struct {
	webhookURL string
	timeout    time.Duration
	log        *slog.Logger
}

func New(webhookURL string, timeout time.Duration, log *slog.Logger) *Notifier {
	return &Notifier{webhookURL: webhookURL, timeout: timeout, log: log}
}

type payload struct {
	TaskID    string            `json:"task_id"`
	SourceURL string            `json:"source_url"`
	Status    models.TaskStatus `json:"status"`
	Done      int               `json:"done"`
	Failed    int               `json:"failed"`
}

// TaskFinished fires the webhook in the background and returns immediately.
func (n *Notifier) TaskFinished(task models.Task) {
	if n.webhookURL == "" {
		return
	}

	p := payload{TaskID: task.ID, SourceURL: task.SourceURL, Status: task.Status}
	for _, l := range task.Links {
		switch l.Status {
		case models.LinkDone:
			p.Done++
		case models.LinkError, models.LinkTimeout:
			p.Failed++
		}
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		body, err := json.Marshal(p)
		if err != nil {
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := (&http.Client{Timeout: n.timeout}).Do(req)
		if err != nil {
			n.log.Warn("notification delivery failed",
				slog.String("taskID", task.ID),
				slog.String("error", err.Error()))
			return
		}
		resp.Body.Close()
	}()
}
