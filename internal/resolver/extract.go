package resolver

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	locationRe    = regexp.MustCompile(`window\.location(?:\.replace)?\s*[=(]\s*["']([^"']+)["']`)
	metaRefreshRe = regexp.MustCompile(`(?i)url\s*=\s*([^"'\s>]+)`)
	reurlRe       = regexp.MustCompile(`var\s+reurl\s*=\s*["']([^"']+)["']`)
)

// decodeBase64Padded decodes s, first restoring any stripped '=' padding.
// Provider pages routinely embed unpadded base64 in query strings.
func decodeBase64Padded(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	out, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		out, err = base64.URLEncoding.DecodeString(s)
		if err != nil {
			return "", false
		}
	}
	decoded := string(out)
	if !strings.HasPrefix(decoded, "http") {
		return "", false
	}
	return decoded, true
}

// encodedParam pulls a base64-encoded URL out of the query string, trying
// the parameter names the ad pages are known to use.
func encodedParam(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	q := u.Query()
	for _, key := range []string{"link", "url", "r", "go", "id"} {
		if v := q.Get(key); v != "" {
			if decoded, ok := decodeBase64Padded(v); ok {
				return decoded, true
			}
		}
	}
	return "", false
}

// scriptRedirect scans inline script and meta-refresh content for a
// navigation target.
func scriptRedirect(body string) (string, bool) {
	if m := locationRe.FindStringSubmatch(body); m != nil {
		return m[1], true
	}
	if strings.Contains(strings.ToLower(body), "http-equiv=\"refresh\"") {
		if m := metaRefreshRe.FindStringSubmatch(body); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// firstAnchor returns the href of the first anchor matching any of the given
// substrings, checked in order.
func firstAnchor(doc *goquery.Document, patterns ...string) (string, bool) {
	for _, pattern := range patterns {
		found := ""
		doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			href, _ := sel.Attr("href")
			if strings.Contains(strings.ToLower(href), pattern) {
				found = href
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}
