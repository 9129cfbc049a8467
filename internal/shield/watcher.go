package shield

import (
	"sync"
	"time"

	"hubresolver/internal/models"
)

// DefaultGrace is how long terminal stream results keep overriding stale
// polls after a stream ends. Chosen to cover one poll interval plus WAL
// checkpoint slack; not yet validated against real store latency.
const DefaultGrace = 15 * time.Second

// Watcher is a stateful consumer-side reconciler: feed it polled snapshots
// and live-stream events, read back effective task views that never regress.
// Safe for concurrent use.
type Watcher struct {
	mu     sync.Mutex
	grace  time.Duration
	polled map[string]models.Task
	live   map[string]*LiveView
	now    func() time.Time
}

func NewWatcher(grace time.Duration) *Watcher {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Watcher{
		grace:  grace,
		polled: make(map[string]models.Task),
		live:   make(map[string]*LiveView),
		now:    time.Now,
	}
}

// UpdatePoll replaces the authoritative snapshots with a fresh poll result.
func (w *Watcher) UpdatePoll(tasks []models.Task) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, t := range tasks {
		w.polled[t.ID] = t
	}
}

// StreamOpened registers a live view for the task, seeded from the snapshot
// current at stream start.
func (w *Watcher) StreamOpened(task models.Task) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.live[task.ID] = NewLiveView(task)
}

// StreamEvent folds one stream event into the task's live view.
func (w *Watcher) StreamEvent(taskID string, ev models.StreamEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if v, ok := w.live[taskID]; ok {
		v.Apply(ev)
	}
}

// StreamClosed marks the task's stream as ended, starting the grace window.
func (w *Watcher) StreamClosed(taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if v, ok := w.live[taskID]; ok {
		v.End(w.now())
	}
}

// Effective returns the reconciled view for one task.
func (w *Watcher) Effective(taskID string) (models.Task, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	polled, ok := w.polled[taskID]
	if !ok {
		return models.Task{}, false
	}
	return Reconcile(polled, w.live[taskID], w.now(), w.grace), true
}

// Tasks returns reconciled views for every known task.
func (w *Watcher) Tasks() []models.Task {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	out := make([]models.Task, 0, len(w.polled))
	for id, polled := range w.polled {
		out = append(out, Reconcile(polled, w.live[id], now, w.grace))
	}
	return out
}
