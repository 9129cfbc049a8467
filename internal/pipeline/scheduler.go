package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"hubresolver/internal/budget"
	"hubresolver/internal/models"
)

// Run resolves every link concurrently against the one shared budget and
// blocks until all of them are terminal. Guarantees, per link: exactly one
// terminal outcome even on panic, observers called once with that outcome,
// exactly one terminal status event followed by exactly one finished event.
func (s *Scheduler) Run(ctx context.Context, links []models.Link, b *budget.Budget, sink Sink, observers ...Observer) []models.Link {
	results := make([]models.Link, len(links))

	var wg sync.WaitGroup
	for i := range links {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.runOne(ctx, links[i], b, sink, observers)
		}(i)
	}
	wg.Wait()

	return results
}

func (s *Scheduler) runOne(ctx context.Context, link models.Link, b *budget.Budget, sink Sink, observers []Observer) models.Link {
	done := s.safeResolve(ctx, link, b, sink)

	// A pipeline that returned without a terminal status is downgraded to
	// error so the finished sentinel below is never ambiguous.
	if !done.Status.Terminal() {
		done.Status = models.LinkError
	}

	sink.Emit(models.StatusEvent(done.Index, done.Status))
	for _, observe := range observers {
		observe(done)
	}
	sink.Emit(models.FinishedEvent(done.Index))

	s.log.Info("link terminal",
		slog.Int("link", done.Index),
		slog.String("status", string(done.Status)),
		slog.String("provider", done.Provider))

	return done
}

// safeResolve converts a panicking pipeline into a terminal error for that
// link only; sibling links keep running.
func (s *Scheduler) safeResolve(ctx context.Context, link models.Link, b *budget.Budget, sink Sink) (result models.Link) {
	result = link
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("pipeline panic", slog.Int("link", link.Index), slog.Any("panic", r))
			result.Status = models.LinkError
			msg := fmt.Sprintf("internal resolver failure: %v", r)
			result.Logs = append(result.Logs, models.LogEntry{Message: msg, Level: models.LevelError})
			sink.Emit(models.LogEvent(link.Index, msg, models.LevelError))
		}
	}()
	return s.resolveLink(ctx, link, b, sink)
}
