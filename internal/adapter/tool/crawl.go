package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"

	"sleuth/internal/domain"
	"sleuth/internal/infra/tracer"
)

const (
	defaultCrawlTimeout  = 10 * time.Second
	defaultCrawlMaxChars = 5000
	maxCrawlChars        = 8000
	maxCrawlBodySize     = 4 * 1024 * 1024 // 4MB
)

// CrawlTool fetches a web page and extracts its readable text content.
type CrawlTool struct {
	client    *http.Client
	maxChars  int
	userAgent string
	logger    *slog.Logger
}

// NewCrawlTool creates a page crawler. Zero-valued timeout and maxChars fall
// back to defaults.
func NewCrawlTool(timeout time.Duration, maxChars int, userAgent string, logger *slog.Logger) *CrawlTool {
	if timeout <= 0 {
		timeout = defaultCrawlTimeout
	}
	if maxChars <= 0 {
		maxChars = defaultCrawlMaxChars
	}
	if maxChars > maxCrawlChars {
		maxChars = maxCrawlChars
	}
	return &CrawlTool{
		client:    &http.Client{Timeout: timeout},
		maxChars:  maxChars,
		userAgent: userAgent,
		logger:    logger,
	}
}

func (t *CrawlTool) Name() string { return "crawl_page" }

func (t *CrawlTool) Description() string {
	return "Fetch a web page and extract its main text content. Use after web_search to read a promising result in full."
}

func (t *CrawlTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"url": {"type": "string", "description": "The URL to crawl"},
				"max_chars": {"type": "integer", "minimum": 100, "maximum": 8000, "description": "Maximum characters of extracted text (default: 5000)"}
			},
			"required": ["url"]
		}`),
	}
}

type crawlParams struct {
	URL      string `json:"url"`
	MaxChars int    `json:"max_chars,omitempty"`
}

// crawlResponse is the structured tool output handed back to the LLM.
type crawlResponse struct {
	Success   bool   `json:"success"`
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Content   string `json:"content,omitempty"`
	CharCount int    `json:"char_count,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (t *CrawlTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.crawl_page", t.logger, params,
		func(ctx context.Context, span trace.Span, p crawlParams) (any, error) {
			if err := ValidateAll(
				RequireField("url", p.URL),
				ValidateURL("url", p.URL),
			); err != nil {
				return nil, err
			}

			span.SetAttributes(tracer.StringAttr("tool.url", p.URL))

			maxChars := t.maxChars
			if p.MaxChars > 0 && p.MaxChars < maxChars {
				maxChars = p.MaxChars
			}

			title, text, err := t.fetch(ctx, p.URL)
			if err != nil {
				// Fetch failures come back as a structured non-success payload
				// so the model sees which URL failed and can pick another
				// source instead of aborting the whole step.
				resp := crawlResponse{Success: false, URL: p.URL, Error: err.Error()}
				if classifyToolError(err) {
					out, jerr := JSONResult(resp)
					if jerr != nil {
						return nil, jerr
					}
					out.IsError = true
					out.IsRetryable = true
					return out, nil
				}
				return resp, nil
			}

			text = domain.Truncate(text, maxChars)

			t.logger.Debug("crawl completed", "url", p.URL, "chars", len(text))
			return crawlResponse{
				Success:   true,
				URL:       p.URL,
				Title:     title,
				Content:   text,
				CharCount: len(text),
			}, nil
		},
	)
}

// fetch downloads the URL and extracts title and readable text.
func (t *CrawlTool) fetch(ctx context.Context, pageURL string) (title, text string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", "", fmt.Errorf("%w: request timed out (%s limit) for %s", domain.ErrTimeout, t.client.Timeout, pageURL)
		}
		return "", "", fmt.Errorf("%w: fetch %s: %v", domain.ErrNetwork, pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("%w: fetch %s: HTTP %d", domain.ErrNetwork, pageURL, resp.StatusCode)
	}

	title, text, err = extractText(io.LimitReader(resp.Body, maxCrawlBodySize))
	if err != nil {
		return "", "", fmt.Errorf("%w: parse %s: %v", domain.ErrParse, pageURL, err)
	}
	return title, text, nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// skippedElements are containers whose text is boilerplate, not content.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"noscript": true,
}

// extractText tokenizes HTML and collects visible text, skipping script,
// style, and page-chrome containers. Whitespace is collapsed to single
// spaces the way a text-mode browser would render it.
func extractText(r io.Reader) (title, text string, err error) {
	z := html.NewTokenizer(r)

	var sb strings.Builder
	var inTitle bool
	depth := 0 // nesting depth inside skipped elements

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return title, collapseWhitespace(sb.String()), nil
			}
			return "", "", z.Err()

		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skippedElements[tag] {
				depth++
			}
			if tag == "title" {
				inTitle = true
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skippedElements[tag] && depth > 0 {
				depth--
			}
			if tag == "title" {
				inTitle = false
			}

		case html.TextToken:
			if depth > 0 {
				continue
			}
			chunk := string(z.Text())
			if inTitle {
				title = strings.TrimSpace(chunk)
				continue
			}
			sb.WriteString(chunk)
			sb.WriteByte(' ')
		}
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
