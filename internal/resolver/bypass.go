package resolver

import (
	"context"
	"strings"

	"hubresolver/internal/budget"
	"hubresolver/internal/fetch"

	"github.com/PuerkitoBio/goquery"
)

// maxBypassIterations caps the ad-page unwrap loop. Chains longer than this
// are circular redirects, not real link shorteners.
const maxBypassIterations = 3

// Bypass unwraps timer/ad-wall pages until the chain lands on a recognized
// provider. A chain that stalls is reported as fail; the pipeline treats a
// bypass fail as "skip this stage", not as a pipeline error.
type Bypass struct {
	client *fetch.Client
}

func NewBypass(client *fetch.Client) *Bypass {
	return &Bypass{client: client}
}

func (r *Bypass) Resolve(ctx context.Context, rawURL string, b *budget.Budget) Outcome {
	current := rawURL
	for i := 0; i < maxBypassIterations; i++ {
		if b.Expired() {
			return timedOut("budget exhausted in bypass loop")
		}

		next, ok := encodedParam(current)
		if !ok {
			var err error
			next, err = r.fetchNext(ctx, current, b)
			if err == fetch.ErrBudgetExhausted {
				return timedOut("budget exhausted in bypass loop")
			}
			if err != nil {
				return failure(err)
			}
		}

		if next == "" || next == current {
			return fail("bypass page yielded no next hop")
		}
		current = next

		if Classify(current) != ProviderBypass {
			return success(current, "bypass")
		}
	}
	return fail("bypass chain did not reach a provider within 3 hops")
}

func (r *Bypass) fetchNext(ctx context.Context, rawURL string, b *budget.Budget) (string, error) {
	res, err := r.client.Get(ctx, rawURL, b)
	if err != nil {
		return "", err
	}

	if target, ok := scriptRedirect(res.Body); ok {
		return target, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Body))
	if err != nil {
		return "", err
	}
	if href, ok := firstAnchor(doc, "hblinks", "hubdrive", "hubcloud", "hubcdn"); ok {
		return href, nil
	}
	// Ad pages sometimes hide the hop behind their own unlock button.
	if href, ok := doc.Find("a#vd, a.get-link, a.unlock-btn").First().Attr("href"); ok && href != "" {
		return href, nil
	}
	return "", nil
}
