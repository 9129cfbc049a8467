package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"hubresolver/internal/fetch"
	"hubresolver/internal/models"
	"hubresolver/internal/pipeline"
	"hubresolver/internal/store"
	"hubresolver/internal/stream"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Servicer
	Log     *slog.Logger
}

type Servicer interface {
	CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context) ([]models.Task, error)
	RetryTask(ctx context.Context, id string) (*models.Task, error)
	ResolveTask(ctx context.Context, id string, sink pipeline.Sink) (*models.Task, error)
	FetchPage(ctx context.Context, rawURL string) (*fetch.Result, error)
}

func NewHandler(srv Servicer, log *slog.Logger) *Handler {
	return &Handler{
		service: srv,
		Log:     log,
	}
}

func (h *Handler) CreateTask(c *gin.Context) {
	var req models.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Log.Error("invalid request", slog.String("path", c.Request.URL.Path), slog.String("error", err.Error()))

		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Request: c.Request.URL.Path,
			Error:   err.Error(),
		})
		return
	}

	task, err := h.service.CreateTask(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Request: c.Request.URL.Path,
			Error:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *Handler) GetTask(c *gin.Context) {
	task, err := h.service.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

func (h *Handler) ListTasks(c *gin.Context) {
	tasks, err := h.service.ListTasks(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (h *Handler) RetryTask(c *gin.Context) {
	task, err := h.service.RetryTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// ResolveTask streams progress events as newline-delimited JSON while the
// link pipelines run. Events are flushed as produced; a disconnected client
// stops the stream but never the resolution itself.
func (h *Handler) ResolveTask(c *gin.Context) {
	taskID := c.Param("id")

	// Resolve 404s as plain JSON; once streaming headers go out the error
	// channel is gone.
	if _, err := h.service.GetTask(c.Request.Context(), taskID); err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	sink := stream.NewWriter(c.Writer)

	if _, err := h.service.ResolveTask(c.Request.Context(), taskID, sink); err != nil {
		h.Log.Error("resolve failed", slog.String("taskID", taskID), slog.String("error", err.Error()))
	}
}

// FetchPage proxies a single page fetch, returning the raw HTML. Restores
// the scraper-proxy surface used by the extraction frontend.
func (h *Handler) FetchPage(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "url parameter required"})
		return
	}

	res, err := h.service.FetchPage(c.Request.Context(), rawURL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "success",
		"html":           res.Body,
		"status_code":    res.StatusCode,
		"url":            res.FinalURL,
		"content_length": len(res.Body),
	})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "hubresolver"})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
	}

	c.JSON(status, models.ErrorResponse{
		Request: c.Request.URL.Path,
		Error:   err.Error(),
	})
}
