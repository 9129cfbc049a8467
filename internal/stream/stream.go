package stream

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"hubresolver/internal/models"
)

// Writer serializes stream events as newline-delimited JSON and pushes each
// record to the client the moment it is produced. Concurrent emitters are
// serialized; once the receiving side breaks, every further emit is silently
// dropped so pipelines never observe a transport failure.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	flush  func()
	closed bool
}

func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w, flush: func() {}}
	if f, ok := w.(http.Flusher); ok {
		sw.flush = f.Flush
	}
	return sw
}

func (w *Writer) Emit(ev models.StreamEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return
	}
	line = append(line, '\n')
	if _, err := w.w.Write(line); err != nil {
		w.closed = true
		return
	}
	w.flush()
}

// Closed reports whether the receiving side went away.
func (w *Writer) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
