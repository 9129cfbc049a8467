package resolver

import (
	"context"

	"hubresolver/internal/budget"
	"hubresolver/internal/fetch"
)

// hbTargets are the anchor patterns an HBLinks page is searched for, most
// specific sibling domain first, generic provider match last.
var hbTargets = []string{
	"hubdrive.fit",
	"hubdrive.space",
	"hubdrive.site",
	"hubdrive.wales",
	"hubdrive",
	"hubcloud",
}

// HBLinks resolves an episode-list page to the first provider anchor found
// in priority order.
type HBLinks struct {
	client *fetch.Client
}

func NewHBLinks(client *fetch.Client) *HBLinks {
	return &HBLinks{client: client}
}

func (r *HBLinks) Resolve(ctx context.Context, rawURL string, b *budget.Budget) Outcome {
	doc, _, err := r.client.Document(ctx, rawURL, b)
	if err == fetch.ErrBudgetExhausted {
		return timedOut("budget exhausted before hblinks fetch")
	}
	if err != nil {
		return failure(err)
	}

	if href, ok := firstAnchor(doc, hbTargets...); ok {
		return success(href, "hblinks")
	}
	return fail("no provider anchor on hblinks page")
}
