package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"hubresolver/internal/budget"

	"github.com/PuerkitoBio/goquery"
)

// ErrBudgetExhausted marks a call that was never attempted because the
// request budget ran out before it could start. Callers map it to a timeout
// outcome, not a transport error.
var ErrBudgetExhausted = errors.New("time budget exhausted before request")

const maxBodySize = 5 << 20

var userAgents = []string{
	"Mozilla/5.0 (Linux; Android 14; SM-S928B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Mobile Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36",
}

var referers = []string{
	"https://www.google.com/",
	"https://www.google.co.in/",
	"https://www.bing.com/",
	"https://duckduckgo.com/",
}

var challengeMarkers = []string{
	"cf-challenge",
	"Just a moment...",
	"Checking your browser",
	"cf-turnstile",
	"challenges.cloudflare.com",
}

// Result is the raw outcome of one page fetch.
type Result struct {
	Body       string
	StatusCode int
	FinalURL   string
}

// Client issues budget-bounded page fetches with rotating browser headers.
// Each call checks the budget before starting and bounds itself with
// AllowanceFor, never with its nominal stage maximum directly.
type Client struct {
	StageMax time.Duration
}

func NewClient(stageMax time.Duration) *Client {
	return &Client{StageMax: stageMax}
}

// Get fetches url within the budget's allowance. A detected Cloudflare
// challenge page is retried once on a fresh transport inside the same
// allowance.
func (c *Client) Get(ctx context.Context, rawURL string, b *budget.Budget) (*Result, error) {
	if b.Expired() {
		return nil, ErrBudgetExhausted
	}
	allowance := b.AllowanceFor(c.StageMax)
	if allowance == 0 {
		return nil, ErrBudgetExhausted
	}

	res, err := c.do(ctx, rawURL, allowance)
	if err != nil {
		return nil, err
	}

	if isChallenge(res.Body) && !b.Expired() {
		retry := b.AllowanceFor(c.StageMax)
		if retry == 0 {
			return res, nil
		}
		fresh, err := c.do(ctx, rawURL, retry)
		if err == nil && !isChallenge(fresh.Body) {
			return fresh, nil
		}
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, rawURL string, timeout time.Duration) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	setBrowserHeaders(req)

	// Fresh transport per call so Cloudflare retries never reuse a
	// fingerprinted connection.
	client := &http.Client{Timeout: timeout}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Result{
		Body:       string(body),
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
	}, nil
}

// Document fetches url and parses the body with goquery.
func (c *Client) Document(ctx context.Context, rawURL string, b *budget.Budget) (*goquery.Document, *Result, error) {
	res, err := c.Get(ctx, rawURL, b)
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.Body))
	if err != nil {
		return nil, res, fmt.Errorf("parse html: %w", err)
	}
	return doc, res, nil
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	req.Header.Set("Referer", referers[rand.Intn(len(referers))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,hi;q=0.8")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

func isChallenge(body string) bool {
	for _, marker := range challengeMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}
