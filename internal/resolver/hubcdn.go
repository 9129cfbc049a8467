package resolver

import (
	"context"
	"strings"

	"hubresolver/internal/budget"
	"hubresolver/internal/fetch"

	"github.com/PuerkitoBio/goquery"
)

// HubCDN unwraps the two-hop short-link flow: the first page embeds a
// base64 redirect parameter in inline script, the decoded URL's page carries
// the terminal anchor or a script navigation. Both fetches are budgeted and
// budget-checked independently.
type HubCDN struct {
	client *fetch.Client
}

func NewHubCDN(client *fetch.Client) *HubCDN {
	return &HubCDN{client: client}
}

func (r *HubCDN) Resolve(ctx context.Context, rawURL string, b *budget.Budget) Outcome {
	first, err := r.client.Get(ctx, rawURL, b)
	if err == fetch.ErrBudgetExhausted {
		return timedOut("budget exhausted before hubcdn first fetch")
	}
	if err != nil {
		return failure(err)
	}

	intermediate, ok := r.intermediateURL(first.Body)
	if !ok {
		return fail("no redirect parameter in hubcdn script")
	}

	if b.Expired() {
		return timedOut("budget exhausted before hubcdn second fetch")
	}

	second, err := r.client.Get(ctx, intermediate, b)
	if err == fetch.ErrBudgetExhausted {
		return timedOut("budget exhausted before hubcdn second fetch")
	}
	if err != nil {
		return failure(err)
	}

	if target, ok := scriptRedirect(second.Body); ok {
		return success(target, "hubcdn")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(second.Body))
	if err != nil {
		return failure(err)
	}
	if href, ok := doc.Find("a#vd").First().Attr("href"); ok && href != "" {
		return success(href, "hubcdn")
	}
	return fail("no terminal anchor on hubcdn landing page")
}

// intermediateURL digs the encoded hop out of the first page: a reurl script
// variable whose query string carries the base64 target, or the variable
// value itself when it decodes cleanly.
func (r *HubCDN) intermediateURL(body string) (string, bool) {
	m := reurlRe.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	raw := m[1]
	if idx := strings.Index(raw, "r="); idx >= 0 {
		if decoded, ok := decodeBase64Padded(raw[idx+2:]); ok {
			return decoded, true
		}
	}
	if decoded, ok := decodeBase64Padded(raw); ok {
		return decoded, true
	}
	if strings.HasPrefix(raw, "http") {
		return raw, true
	}
	return "", false
}
