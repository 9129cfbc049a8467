package resolver

import (
	"context"

	"hubresolver/internal/budget"
	"hubresolver/internal/fetch"
)

// HubDrive resolves a file page through a prioritized selector chain:
// the labeled download button, then the known element id, then any anchor
// pointing at the cloud host.
type HubDrive struct {
	client *fetch.Client
}

func NewHubDrive(client *fetch.Client) *HubDrive {
	return &HubDrive{client: client}
}

func (r *HubDrive) Resolve(ctx context.Context, rawURL string, b *budget.Budget) Outcome {
	doc, _, err := r.client.Document(ctx, rawURL, b)
	if err == fetch.ErrBudgetExhausted {
		return timedOut("budget exhausted before hubdrive fetch")
	}
	if err != nil {
		return failure(err)
	}

	if href, ok := doc.Find("a.btn.btn-primary.btn-user").First().Attr("href"); ok && href != "" {
		return success(href, "hubdrive")
	}
	if href, ok := doc.Find("#download").First().Attr("href"); ok && href != "" {
		return success(href, "hubdrive")
	}
	if href, ok := firstAnchor(doc, "hubcloud"); ok {
		return success(href, "hubdrive")
	}
	return fail("no download anchor on hubdrive page")
}
