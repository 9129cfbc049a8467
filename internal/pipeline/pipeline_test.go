package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"hubresolver/internal/budget"
	"hubresolver/internal/models"
	"hubresolver/internal/resolver"
)

type stubResolver struct {
	outcome resolver.Outcome
	called  *int
}

func (s stubResolver) Resolve(_ context.Context, _ string, _ *budget.Budget) resolver.Outcome {
	if s.called != nil {
		*s.called++
	}
	return s.outcome
}

type panicResolver struct{}

func (panicResolver) Resolve(_ context.Context, _ string, _ *budget.Budget) resolver.Outcome {
	panic("selector index out of range")
}

type collectSink struct {
	mu     sync.Mutex
	events []models.StreamEvent
}

func (c *collectSink) Emit(ev models.StreamEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collectSink) forLink(id int) []models.StreamEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.StreamEvent
	for _, ev := range c.events {
		if ev.LinkID == id {
			out = append(out, ev)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLink(index int, url string) models.Link {
	return models.Link{Index: index, Name: "episode", OriginalURL: url, Status: models.LinkPending}
}

func TestRunResolvesChainToDone(t *testing.T) {
	t.Parallel()

	stages := Stages{
		HBLinks:  stubResolver{outcome: resolver.Outcome{Status: resolver.StatusSuccess, URL: "https://hubdrive.fit/file/9"}},
		HubDrive: stubResolver{outcome: resolver.Outcome{Status: resolver.StatusSuccess, URL: "https://hubcloud.ink/drive/9"}},
		HubCloud: stubResolver{outcome: resolver.Outcome{Status: resolver.StatusSuccess, URL: "https://fsl.buzz/file/9.mkv", Label: "FSL Server"}},
	}
	s := NewScheduler(stages, discardLogger())
	sink := &collectSink{}

	links := s.Run(context.Background(), []models.Link{newLink(0, "https://hblinks.pro/archives/9")},
		budget.New(30*time.Second), sink)

	got := links[0]
	if got.Status != models.LinkDone {
		t.Fatalf("expected done, got %+v", got)
	}
	if got.FinalURL != "https://fsl.buzz/file/9.mkv" {
		t.Fatalf("unexpected final URL %q", got.FinalURL)
	}
	if got.Provider != "FSL Server" {
		t.Fatalf("expected provider label from last stage, got %q", got.Provider)
	}

	assertEventShape(t, sink.forLink(0), string(models.LinkDone))
}

func TestRunStageFailureEndsLinkAsError(t *testing.T) {
	t.Parallel()

	stages := Stages{
		HBLinks: stubResolver{outcome: resolver.Outcome{Status: resolver.StatusFail, Message: "no provider anchor"}},
	}
	s := NewScheduler(stages, discardLogger())
	sink := &collectSink{}

	links := s.Run(context.Background(), []models.Link{newLink(0, "https://hblinks.pro/archives/1")},
		budget.New(30*time.Second), sink)

	if links[0].Status != models.LinkError {
		t.Fatalf("expected error, got %s", links[0].Status)
	}
	assertEventShape(t, sink.forLink(0), string(models.LinkError))
}

func TestRunUnrecognizedURL(t *testing.T) {
	t.Parallel()

	s := NewScheduler(Stages{}, discardLogger())
	sink := &collectSink{}

	links := s.Run(context.Background(), []models.Link{newLink(0, "https://nobody-knows.example/x")},
		budget.New(30*time.Second), sink)

	if links[0].Status != models.LinkError {
		t.Fatalf("expected error for unrecognized URL, got %s", links[0].Status)
	}
}

func TestRunExpiredBudgetSkipsStages(t *testing.T) {
	t.Parallel()

	calls := 0
	stages := Stages{
		HBLinks: stubResolver{outcome: resolver.Outcome{Status: resolver.StatusSuccess, URL: "x"}, called: &calls},
	}
	s := NewScheduler(stages, discardLogger())
	sink := &collectSink{}
	b := budget.NewAt(time.Now().Add(-time.Minute), 10*time.Second)

	links := s.Run(context.Background(), []models.Link{newLink(0, "https://hblinks.pro/archives/1")}, b, sink)

	if links[0].Status != models.LinkTimeout {
		t.Fatalf("expected timeout, got %s", links[0].Status)
	}
	if calls != 0 {
		t.Fatalf("expected no stage call on expired budget, got %d", calls)
	}
}

func TestRunPanicIsolatedToOneLink(t *testing.T) {
	t.Parallel()

	stages := Stages{
		HBLinks:  panicResolver{},
		HubDrive: stubResolver{outcome: resolver.Outcome{Status: resolver.StatusSuccess, URL: "https://fsl.buzz/file/2.mkv"}},
	}
	s := NewScheduler(stages, discardLogger())
	sink := &collectSink{}

	links := s.Run(context.Background(), []models.Link{
		newLink(0, "https://hblinks.pro/archives/1"),
		newLink(1, "https://hubdrive.fit/file/2"),
	}, budget.New(30*time.Second), sink)

	if links[0].Status != models.LinkError {
		t.Fatalf("panicking link should be error, got %s", links[0].Status)
	}
	if links[1].Status != models.LinkDone {
		t.Fatalf("sibling link should still resolve, got %s", links[1].Status)
	}

	for _, id := range []int{0, 1} {
		events := sink.forLink(id)
		statusCount, finishedCount := 0, 0
		for _, ev := range events {
			switch ev.Type {
			case models.EventStatus:
				statusCount++
			case models.EventFinished:
				finishedCount++
			}
		}
		if statusCount != 1 || finishedCount != 1 {
			t.Fatalf("link %d: expected exactly one status and one finished event, got %d/%d", id, statusCount, finishedCount)
		}
	}
}

func TestRunObserversSeeTerminalLink(t *testing.T) {
	t.Parallel()

	stages := Stages{
		HubDrive: stubResolver{outcome: resolver.Outcome{Status: resolver.StatusSuccess, URL: "https://fsl.buzz/f.mkv"}},
	}
	s := NewScheduler(stages, discardLogger())

	var mu sync.Mutex
	var observed []models.Link
	observer := func(l models.Link) {
		mu.Lock()
		observed = append(observed, l)
		mu.Unlock()
	}

	s.Run(context.Background(), []models.Link{newLink(3, "https://hubdrive.fit/file/3")},
		budget.New(30*time.Second), &collectSink{}, observer)

	if len(observed) != 1 {
		t.Fatalf("expected one observation, got %d", len(observed))
	}
	if observed[0].Index != 3 || observed[0].Status != models.LinkDone {
		t.Fatalf("unexpected observed link %+v", observed[0])
	}
}

// assertEventShape checks the per-link ordering contract: logs and at most
// one result first, then the terminal status, then the finished sentinel.
func assertEventShape(t *testing.T, events []models.StreamEvent, wantStatus string) {
	t.Helper()

	if len(events) < 2 {
		t.Fatalf("expected at least status+finished, got %d events", len(events))
	}
	last := events[len(events)-1]
	if last.Type != models.EventFinished {
		t.Fatalf("last event must be finished, got %+v", last)
	}
	terminal := events[len(events)-2]
	if terminal.Type != models.EventStatus || terminal.Status != wantStatus {
		t.Fatalf("event before finished must be terminal status %q, got %+v", wantStatus, terminal)
	}
	results := 0
	for _, ev := range events[:len(events)-2] {
		switch ev.Type {
		case models.EventResult:
			results++
		case models.EventStatus, models.EventFinished:
			t.Fatalf("status/finished emitted before terminal position: %+v", ev)
		}
	}
	if results > 1 {
		t.Fatalf("expected at most one result event, got %d", results)
	}
}
