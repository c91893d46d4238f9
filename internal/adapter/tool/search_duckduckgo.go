package tool

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sleuth/internal/domain"
)

const ddgLiteURL = "https://lite.duckduckgo.com/lite/"

// ddgLimiter enforces a global limit of 1 query per second across all
// DuckDuckGo backends and goroutines. The lite endpoint bans aggressive
// scrapers, so the limit is process-wide rather than per-instance.
var ddgLimiter = rate.NewLimiter(rate.Every(time.Second), 1)

// DuckDuckGoBackend searches the web by scraping DuckDuckGo's lite HTML
// interface. No API key required; the lite page has a stable structure of
// result links and snippet cells.
type DuckDuckGoBackend struct {
	client    *http.Client
	endpoint  string
	userAgent string
	logger    *slog.Logger
}

// NewDuckDuckGoBackend creates a DuckDuckGo search backend.
func NewDuckDuckGoBackend(userAgent string, logger *slog.Logger) *DuckDuckGoBackend {
	return &DuckDuckGoBackend{
		client:    &http.Client{Timeout: 15 * time.Second},
		endpoint:  ddgLiteURL,
		userAgent: userAgent,
		logger:    logger,
	}
}

func (b *DuckDuckGoBackend) Name() string { return "duckduckgo" }

func (b *DuckDuckGoBackend) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	if err := ddgLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", b.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: duckduckgo request: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: duckduckgo rate limited", domain.ErrRateLimit)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSearchBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
	}

	results := parseLiteResults(string(body), count)
	b.logger.Debug("duckduckgo search completed", "query", query, "results", len(results))
	return results, nil
}

// Lite page structure: result links carry class "result-link", snippets sit
// in <td class="result-snippet"> cells in the same order.
var (
	liteLinkRe     = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	liteLinkAltRe  = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	liteSnippetRe  = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>([^<]+(?:<[^>]+>[^<]*</[^>]+>)*[^<]*)</td>`)
	anyTagRe       = regexp.MustCompile(`<[^>]+>`)
	fallbackLinkRe = regexp.MustCompile(`<a[^>]+href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
)

func parseLiteResults(html string, count int) []SearchResult {
	matches := liteLinkRe.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		matches = liteLinkAltRe.FindAllStringSubmatch(html, -1)
	}
	snippets := liteSnippetRe.FindAllStringSubmatch(html, -1)

	var results []SearchResult
	for i, m := range matches {
		if len(results) >= count {
			break
		}
		u := strings.TrimSpace(m[1])
		title := decodeEntities(m[2])
		if u == "" || title == "" {
			continue
		}
		snippet := ""
		if i < len(snippets) {
			snippet = decodeEntities(snippets[i][1])
		}
		results = append(results, SearchResult{Title: title, URL: u, Snippet: snippet})
	}

	if len(results) == 0 {
		results = parseLiteFallback(html, count)
	}
	return results
}

// parseLiteFallback extracts any external links when the primary patterns
// fail, which happens when DuckDuckGo shuffles the lite markup.
func parseLiteFallback(html string, count int) []SearchResult {
	var results []SearchResult
	seen := make(map[string]bool)

	for _, m := range fallbackLinkRe.FindAllStringSubmatch(html, -1) {
		if len(results) >= count {
			break
		}
		u := strings.TrimSpace(m[1])
		title := decodeEntities(m[2])

		if strings.Contains(u, "duckduckgo.com") ||
			strings.HasPrefix(u, "/") ||
			strings.HasPrefix(u, "#") ||
			strings.HasPrefix(u, "javascript:") {
			continue
		}
		if len(title) < 5 || seen[u] {
			continue
		}
		seen[u] = true
		results = append(results, SearchResult{Title: title, URL: u})
	}
	return results
}

func decodeEntities(s string) string {
	s = anyTagRe.ReplaceAllString(s, "")
	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	return strings.TrimSpace(r.Replace(s))
}
