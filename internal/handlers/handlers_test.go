package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hubresolver/internal/fetch"
	"hubresolver/internal/models"
	"hubresolver/internal/pipeline"
	"hubresolver/internal/store"

	"github.com/gin-gonic/gin"
)

type stubService struct {
	task   *models.Task
	events []models.StreamEvent
}

func (s *stubService) CreateTask(_ context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	return s.task, nil
}

func (s *stubService) GetTask(_ context.Context, id string) (*models.Task, error) {
	if s.task == nil || s.task.ID != id {
		return nil, store.ErrNotFound
	}
	return s.task, nil
}

func (s *stubService) ListTasks(_ context.Context) ([]models.Task, error) {
	if s.task == nil {
		return nil, nil
	}
	return []models.Task{*s.task}, nil
}

func (s *stubService) RetryTask(_ context.Context, id string) (*models.Task, error) {
	return s.GetTask(context.Background(), id)
}

func (s *stubService) ResolveTask(_ context.Context, id string, sink pipeline.Sink) (*models.Task, error) {
	for _, ev := range s.events {
		sink.Emit(ev)
	}
	return s.task, nil
}

func (s *stubService) FetchPage(_ context.Context, rawURL string) (*fetch.Result, error) {
	return &fetch.Result{Body: "<html>ok</html>", StatusCode: 200, FinalURL: rawURL}, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func testRouter(s *stubService) *gin.Engine {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(s, log)

	r := gin.New()
	r.POST("task", h.CreateTask)
	r.GET("task/:id", h.GetTask)
	r.POST("task/:id/resolve", h.ResolveTask)
	r.GET("fetch", h.FetchPage)
	r.GET("health", h.Health)
	return r
}

func TestHealth(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	testRouter(&stubService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"hubresolver"`) {
		t.Fatalf("unexpected health body %q", w.Body.String())
	}
}

func TestCreateTaskBadJSON(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/task", bytes.NewBufferString("{broken"))
	testRouter(&stubService{}).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var resp models.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error envelope is not JSON: %v", err)
	}
	if resp.Request != "/task" {
		t.Fatalf("unexpected request path in envelope: %q", resp.Request)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	testRouter(&stubService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/task/ghost", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestResolveTaskStreamsNDJSON(t *testing.T) {
	t.Parallel()

	s := &stubService{
		task: &models.Task{ID: "t1", Status: models.TaskCompleted},
		events: []models.StreamEvent{
			models.LogEvent(0, "fetching page", models.LevelInfo),
			models.ResultEvent(0, "https://fsl.buzz/a.mkv", "FSL Server"),
			models.StatusEvent(0, models.LinkDone),
			models.FinishedEvent(0),
		},
	}

	w := httptest.NewRecorder()
	testRouter(s).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/task/t1/resolve", nil))

	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("expected ndjson content type, got %q", ct)
	}

	scanner := bufio.NewScanner(w.Body)
	var lines []models.StreamEvent
	for scanner.Scan() {
		var ev models.StreamEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("stream line is not JSON: %v", err)
		}
		lines = append(lines, ev)
	}
	if len(lines) != 4 {
		t.Fatalf("expected 4 stream records, got %d", len(lines))
	}
	if lines[3].Type != models.EventFinished {
		t.Fatalf("stream must end with finished, got %+v", lines[3])
	}
}

func TestFetchPageProxy(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	testRouter(&stubService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fetch?url=https://example.com", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("proxy response is not JSON: %v", err)
	}
	if resp["status"] != "success" || resp["html"] == "" {
		t.Fatalf("unexpected proxy response %v", resp)
	}

	w = httptest.NewRecorder()
	testRouter(&stubService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fetch", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing url must be 400, got %d", w.Code)
	}
}
