package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"hubresolver/internal/budget"
	"hubresolver/internal/models"
	"hubresolver/internal/resolver"
)

// maxHops caps the routing loop across all stages for one link. Every stage
// hop replaces the current URL, so a chain longer than this is circular.
const maxHops = 8

// Resolver is one stage: it takes the current URL and the shared budget and
// returns a typed outcome.
type Resolver interface {
	Resolve(ctx context.Context, url string, b *budget.Budget) resolver.Outcome
}

// Stages holds one resolver per provider family.
type Stages struct {
	Bypass   Resolver
	HBLinks  Resolver
	HubDrive Resolver
	HubCDN   Resolver
	HubCloud Resolver
}

// Sink receives stream events as they are produced. Implementations must
// tolerate a gone receiver by dropping events, never by blocking or raising.
type Sink interface {
	Emit(models.StreamEvent)
}

// Observer is notified once per link when it reaches a terminal state.
// Persistence and any other side effects hang off this hook so they stay
// independent of stream emission.
type Observer func(models.Link)

type Scheduler struct {
	stages Stages
	log    *slog.Logger
}

func NewScheduler(stages Stages, log *slog.Logger) *Scheduler {
	return &Scheduler{stages: stages, log: log}
}

// state tracks one link through the routing loop.
type state struct {
	link models.Link
	sink Sink
}

func (st *state) logf(level models.LogLevel, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	st.link.Logs = append(st.link.Logs, models.LogEntry{Message: msg, Level: level})
	st.sink.Emit(models.LogEvent(st.link.Index, msg, level))
}

func (st *state) terminal(status models.LinkStatus) models.Link {
	st.link.Status = status
	return st.link
}

// resolveLink walks one link through the routing decision tree until a
// terminal outcome or budget exhaustion. Every stage success replaces the
// current URL and routing restarts from the top, because a bypass or hblinks
// hop may land on any downstream provider.
func (s *Scheduler) resolveLink(ctx context.Context, link models.Link, b *budget.Budget, sink Sink) models.Link {
	st := &state{link: link, sink: sink}
	st.link.Status = models.LinkProcessing

	current := link.OriginalURL
	bypassAborted := false

	for hop := 0; hop < maxHops; hop++ {
		provider := resolver.Classify(current)
		if provider == resolver.ProviderBypass && bypassAborted {
			provider = resolver.ClassifyAfterBypass(current)
		}

		if b.Expired() {
			st.logf(models.LevelWarning, "budget exhausted, skipping %s stage", provider)
			return st.terminal(models.LinkTimeout)
		}

		switch provider {
		case resolver.ProviderDirectFile:
			st.link.FinalURL = current
			st.logf(models.LevelInfo, "resolved to direct link")
			sink.Emit(models.ResultEvent(st.link.Index, current, st.link.Provider))
			return st.terminal(models.LinkDone)

		case resolver.ProviderUnknown:
			st.logf(models.LevelError, "unrecognized link format: %s", current)
			return st.terminal(models.LinkError)

		case resolver.ProviderBypass:
			out := s.stages.Bypass.Resolve(ctx, current, b)
			switch out.Status {
			case resolver.StatusSuccess:
				st.logf(models.LevelInfo, "bypass unwrapped ad page")
				current = out.URL
			case resolver.StatusFail:
				// Abort only the bypass loop; remaining patterns still
				// get a shot at the same URL.
				bypassAborted = true
				st.logf(models.LevelWarning, "bypass aborted: %s", out.Message)
			case resolver.StatusTimeout:
				st.logf(models.LevelWarning, "bypass stage timed out: %s", out.Message)
				return st.terminal(models.LinkTimeout)
			default:
				st.logf(models.LevelError, "bypass stage failed: %s", out.Message)
				return st.terminal(models.LinkError)
			}

		default:
			stage, name := s.stageFor(provider)
			out := stage.Resolve(ctx, current, b)
			switch out.Status {
			case resolver.StatusSuccess:
				if out.Label != "" {
					st.link.Provider = out.Label
				}
				if out.Message != "" {
					st.logf(models.LevelInfo, "%s: %s", name, out.Message)
				}
				st.logf(models.LevelInfo, "%s stage extracted next hop", name)
				current = out.URL
			case resolver.StatusTimeout:
				st.logf(models.LevelWarning, "%s stage timed out: %s", name, out.Message)
				return st.terminal(models.LinkTimeout)
			default:
				// fail and error both end this link; the routing order is
				// a decision tree, not an exhaustive provider search.
				st.logf(models.LevelError, "%s stage failed: %s", name, out.Message)
				return st.terminal(models.LinkError)
			}
		}
	}

	st.logf(models.LevelError, "resolver chain exceeded %d hops", maxHops)
	return st.terminal(models.LinkError)
}

func (s *Scheduler) stageFor(p resolver.Provider) (Resolver, string) {
	switch p {
	case resolver.ProviderHBLinks:
		return s.stages.HBLinks, "hblinks"
	case resolver.ProviderHubDrive:
		return s.stages.HubDrive, "hubdrive"
	case resolver.ProviderHubCloud:
		return s.stages.HubCloud, "hubcloud"
	default:
		return s.stages.HubCDN, "hubcdn"
	}
}
