package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hubresolver/internal/budget"
	"hubresolver/internal/config"
	"hubresolver/internal/fetch"
	"hubresolver/internal/models"
	"hubresolver/internal/notify"
	"hubresolver/internal/pipeline"
	"hubresolver/internal/resolver"
	"hubresolver/internal/store"

	"github.com/google/uuid"
)

type Service struct {
	store     *store.Store
	scheduler *pipeline.Scheduler
	notifier  *notify.Notifier
	client    *fetch.Client
	cfg       *config.Config
	log       *slog.Logger
}

func NewService(cfg *config.Config, log *slog.Logger, st *store.Store) *Service {
	client := fetch.NewClient(cfg.Resolve.StageTimeout)

	stages := pipeline.Stages{
		Bypass:   resolver.NewBypass(client),
		HBLinks:  resolver.NewHBLinks(client),
		HubDrive: resolver.NewHubDrive(client),
		HubCDN:   resolver.NewHubCDN(client),
		HubCloud: resolver.NewHubCloud(cfg.Resolve.SolverURL, cfg.Resolve.StageTimeout),
	}

	return &Service{
		store:     st,
		scheduler: pipeline.NewScheduler(stages, log),
		notifier:  notify.New(cfg.Notify.WebhookURL, cfg.Notify.Timeout, log),
		client:    client,
		cfg:       cfg,
		log:       log,
	}
}

func (s *Service) CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	if len(req.Links) == 0 {
		return nil, fmt.Errorf("task needs at least one link")
	}

	task := models.Task{
		ID:        uuid.New().String(),
		SourceURL: req.SourceURL,
		Status:    models.TaskProcessing,
		Metadata:  req.Metadata,
		CreatedAt: time.Now().UTC(),
	}

	// Clients may omit ids; fall back to list position so the index stays
	// a stable correlation key either way.
	useIDs := false
	for _, lr := range req.Links {
		if lr.ID != 0 {
			useIDs = true
			break
		}
	}

	for i, lr := range req.Links {
		if err := checkURL(lr.Link); err != nil {
			return nil, fmt.Errorf("link %d: %w", i, err)
		}
		index := i
		if useIDs {
			index = lr.ID
		}
		task.Links = append(task.Links, models.Link{
			Index:       index,
			Name:        lr.Name,
			OriginalURL: lr.Link,
			Status:      models.LinkPending,
		})
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	s.log.Info("task created", slog.String("taskID", task.ID), slog.Int("links", len(task.Links)))

	return &task, nil
}

func (s *Service) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return s.store.GetTask(ctx, id)
}

func (s *Service) ListTasks(ctx context.Context) ([]models.Task, error) {
	return s.store.ListTasks(ctx)
}

// RetryTask resets error and timeout links back to pending. Done links are
// never touched.
func (s *Service) RetryTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.store.ResetLinks(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.Info("task reset for retry", slog.String("taskID", id))

	return task, nil
}

// ResolveTask runs the resolution pipelines for every non-terminal link of
// the task, sharing one budget, emitting progress to sink and persisting
// each terminal link as it lands. Persistence and stream emission are
// independent observers of the same terminal event.
func (s *Service) ResolveTask(ctx context.Context, id string, sink pipeline.Sink) (*models.Task, error) {
	task, err := s.store.MarkProcessing(ctx, id)
	if err != nil {
		return nil, err
	}

	var pending []models.Link
	for _, l := range task.Links {
		if !l.Status.Terminal() {
			pending = append(pending, l)
		}
	}
	if len(pending) == 0 {
		return task, nil
	}

	b := budget.New(s.cfg.Resolve.Budget())

	s.log.Info("resolution started",
		slog.String("taskID", id),
		slog.Int("links", len(pending)),
		slog.Duration("budget", b.Remaining()))

	persist := func(link models.Link) {
		// Detached context: the merge must land even when the caller
		// disconnects mid-stream.
		mergeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.store.MergeLinkResult(mergeCtx, id, link); err != nil {
			s.log.Error("link merge failed",
				slog.String("taskID", id),
				slog.Int("link", link.Index),
				slog.String("error", err.Error()))
		}
	}

	s.scheduler.Run(ctx, pending, b, sink, persist)

	final, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if final.Status != models.TaskProcessing {
		s.notifier.TaskFinished(*final)
	}

	s.log.Info("resolution finished",
		slog.String("taskID", id),
		slog.String("status", string(final.Status)),
		slog.Duration("elapsed", b.Elapsed()))

	return final, nil
}

// FetchPage proxies one page fetch with the rotating browser headers, capped
// by a fresh single-call budget.
func (s *Service) FetchPage(ctx context.Context, rawURL string) (*fetch.Result, error) {
	if err := checkURL(rawURL); err != nil {
		return nil, err
	}
	b := budget.New(s.cfg.Resolve.StageTimeout)
	return s.client.Get(ctx, rawURL, b)
}
