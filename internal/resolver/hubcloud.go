package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"hubresolver/internal/budget"
)

// HubCloud delegates to the external solving service, which renders the
// page and ranks its download buttons. The resolver takes the top-ranked
// button and surfaces the alternatives in the outcome message.
type HubCloud struct {
	solverURL string
	stageMax  time.Duration
}

func NewHubCloud(solverURL string, stageMax time.Duration) *HubCloud {
	return &HubCloud{solverURL: solverURL, stageMax: stageMax}
}

type solverRequest struct {
	URL string `json:"url"`
}

type solverButton struct {
	Label string `json:"label"`
	URL   string `json:"url"`
	Score int    `json:"score"`
}

type solverResponse struct {
	Status  string         `json:"status"`
	Buttons []solverButton `json:"buttons"`
	Message string         `json:"message"`
}

func (r *HubCloud) Resolve(ctx context.Context, rawURL string, b *budget.Budget) Outcome {
	if b.Expired() {
		return timedOut("budget exhausted before solver call")
	}
	allowance := b.AllowanceFor(r.stageMax)
	if allowance == 0 {
		return timedOut("budget exhausted before solver call")
	}

	ctx, cancel := context.WithTimeout(ctx, allowance)
	defer cancel()

	payload, err := json.Marshal(solverRequest{URL: rawURL})
	if err != nil {
		return failure(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.solverURL, bytes.NewReader(payload))
	if err != nil {
		return failure(err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: allowance}
	resp, err := client.Do(req)
	if err != nil {
		return failure(err)
	}
	defer resp.Body.Close()

	var solved solverResponse
	if err := json.NewDecoder(resp.Body).Decode(&solved); err != nil {
		return failure(fmt.Errorf("decode solver response: %w", err))
	}
	if solved.Status != "success" || len(solved.Buttons) == 0 {
		if solved.Message != "" {
			return fail("solver: " + solved.Message)
		}
		return fail("solver returned no buttons")
	}

	best := solved.Buttons[0]
	for _, btn := range solved.Buttons[1:] {
		if btn.Score > best.Score {
			best = btn
		}
	}

	out := success(best.URL, best.Label)
	if len(solved.Buttons) > 1 {
		out.Message = fmt.Sprintf("picked %q among %d buttons", best.Label, len(solved.Buttons))
	}
	return out
}
