// Package shield merges the periodically polled authoritative task snapshot
// with the locally observed live-stream state, so a refreshing view never
// regresses a link that already finished locally.
package shield

import (
	"time"

	"hubresolver/internal/models"
)

// LiveView is the client-side picture of one task built from stream events.
type LiveView struct {
	Links     map[int]models.Link
	Streaming bool
	EndedAt   time.Time
}

// NewLiveView seeds the view from the task snapshot taken when the stream
// was opened.
func NewLiveView(task models.Task) *LiveView {
	links := make(map[int]models.Link, len(task.Links))
	for _, l := range task.Links {
		links[l.Index] = l
	}
	return &LiveView{Links: links, Streaming: true}
}

// Apply folds one stream event into the view. A finished event for a link
// that never got a terminal status is an implicit error.
func (v *LiveView) Apply(ev models.StreamEvent) {
	link := v.Links[ev.LinkID]
	link.Index = ev.LinkID

	switch ev.Type {
	case models.EventLog:
		link.Logs = append(link.Logs, models.LogEntry{Message: ev.Message, Level: ev.Level})
		if link.Status == models.LinkPending {
			link.Status = models.LinkProcessing
		}
	case models.EventResult:
		link.FinalURL = ev.FinalURL
		if ev.Provider != "" {
			link.Provider = ev.Provider
		}
	case models.EventStatus:
		link.Status = models.LinkStatus(ev.Status)
	case models.EventFinished:
		if !link.Status.Terminal() {
			link.Status = models.LinkError
		}
	}

	v.Links[ev.LinkID] = link
}

// End marks the stream closed; terminal links keep shielding stale polls
// until the grace window passes.
func (v *LiveView) End(now time.Time) {
	v.Streaming = false
	v.EndedAt = now
}

// Reconcile produces the effective task view from a polled snapshot and the
// live state:
//
//   - stream still active: the live view wins wholesale, the poll for this
//     task is discarded;
//   - stream ended within grace: a locally cached terminal link overrides a
//     polled link that is not yet terminal (the store may lag the merge);
//   - otherwise the poll wins.
//
// The aggregate status is always recomputed from the effective links, never
// trusted from the server field.
func Reconcile(polled models.Task, live *LiveView, now time.Time, grace time.Duration) models.Task {
	out := polled
	out.Links = append([]models.Link(nil), polled.Links...)

	if live != nil {
		switch {
		case live.Streaming:
			for i := range out.Links {
				if l, ok := live.Links[out.Links[i].Index]; ok {
					out.Links[i] = l
				}
			}
		case !live.EndedAt.IsZero() && now.Sub(live.EndedAt) <= grace:
			for i := range out.Links {
				if out.Links[i].Status.Terminal() {
					continue
				}
				if l, ok := live.Links[out.Links[i].Index]; ok && l.Status.Terminal() {
					out.Links[i] = l
				}
			}
		}
	}

	out.Status = models.DeriveTaskStatus(out.Links)
	return out
}
