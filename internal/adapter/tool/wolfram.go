package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"sleuth/internal/domain"
	"sleuth/internal/infra/tracer"
)

const (
	wolframAPIURL         = "https://api.wolframalpha.com/v2/query"
	defaultWolframTimeout = 30 * time.Second
	maxWolframBodySize    = 1024 * 1024 // 1MB
)

// WolframTool executes formatted queries against the Wolfram Alpha v2 API.
type WolframTool struct {
	client   *http.Client
	endpoint string
	appID    string
	logger   *slog.Logger
}

// NewWolframTool creates a Wolfram Alpha tool. The appID is required; use
// rewrite_for_wolfram to format queries before calling this tool.
func NewWolframTool(appID string, timeout time.Duration, logger *slog.Logger) *WolframTool {
	if timeout <= 0 {
		timeout = defaultWolframTimeout
	}
	return &WolframTool{
		client:   &http.Client{Timeout: timeout},
		endpoint: wolframAPIURL,
		appID:    appID,
		logger:   logger,
	}
}

func (t *WolframTool) Name() string { return "wolfram_query" }

func (t *WolframTool) Description() string {
	return "Execute a query against Wolfram Alpha with properly formatted mathematical syntax. Only use this with output from rewrite_for_wolfram; do not pass raw natural language."
}

func (t *WolframTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "The Wolfram Alpha formatted query, e.g. \"solve 2x + 10 = 300 for x\""}
			},
			"required": ["query"]
		}`),
	}
}

type wolframParams struct {
	Query string `json:"query"`
}

// wolframResponse models the relevant portion of the v2 JSON API result.
type wolframResponse struct {
	QueryResult struct {
		Success bool `json:"success"`
		Pods    []struct {
			Title   string `json:"title"`
			SubPods []struct {
				Plaintext string `json:"plaintext"`
			} `json:"subpods"`
		} `json:"pods"`
	} `json:"queryresult"`
}

func (t *WolframTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.wolfram_query", t.logger, params,
		func(ctx context.Context, span trace.Span, p wolframParams) (any, error) {
			if err := RequireField("query", p.Query); err != nil {
				return nil, err
			}

			span.SetAttributes(tracer.StringAttr("tool.query", p.Query))

			q := url.Values{}
			q.Set("input", p.Query)
			q.Set("appid", t.appID)
			q.Set("output", "json")

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"?"+q.Encode(), nil)
			if err != nil {
				return nil, fmt.Errorf("create request: %w", err)
			}

			resp, err := t.client.Do(req)
			if err != nil {
				if isTimeout(err) {
					return nil, fmt.Errorf("%w: wolfram alpha request timed out", domain.ErrTimeout)
				}
				return nil, fmt.Errorf("%w: wolfram alpha request: %v", domain.ErrNetwork, err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxWolframBodySize))
			if err != nil {
				return nil, fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
			}
			if resp.StatusCode != http.StatusOK {
				return nil, fmt.Errorf("wolfram alpha http %d: %s", resp.StatusCode, string(body))
			}

			var wolfResp wolframResponse
			if err := json.Unmarshal(body, &wolfResp); err != nil {
				return nil, fmt.Errorf("%w: parse response: %v", domain.ErrParse, err)
			}

			// Success=false means the engine parsed nothing useful. Surface
			// it as an error result naming the query; resubmitting the same
			// syntax won't help, the model has to rewrite it.
			if !wolfResp.QueryResult.Success {
				return ErrResult("Wolfram Alpha could not understand the query: %s", p.Query)
			}

			var lines []string
			for _, pod := range wolfResp.QueryResult.Pods {
				for _, sub := range pod.SubPods {
					if sub.Plaintext != "" {
						lines = append(lines, fmt.Sprintf("%s: %s", pod.Title, sub.Plaintext))
					}
				}
			}
			if len(lines) == 0 {
				return "No plaintext results found", nil
			}

			t.logger.Debug("wolfram query completed", "query", p.Query, "pods", len(lines))
			return strings.Join(lines, "\n"), nil
		},
	)
}
