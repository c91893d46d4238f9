package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"sleuth/internal/domain"
)

// rewritePrompt instructs the model to emit canonical Wolfram Alpha syntax.
const rewritePrompt = `Convert this natural language math question to Wolfram Alpha syntax.

Rules:
- Equations: "solve [equation] for [variable]"
  Example: "solve 2x + 10 = 300 for x"
- Integrals: "integrate [expression] from [a] to [b]"
  Example: "integrate x^2 from 0 to 5"
- Derivatives: "derivative of [expression]"
  Example: "derivative of sin(x)"
- Limits: "limit of [expression] as [variable] approaches [value]"
  Example: "limit of 1/x as x approaches 0"

Question: %s

Output only the Wolfram query with no additional text:`

// RewriteTool converts natural language math questions into Wolfram Alpha
// syntax using a single LLM call. Always meant to run before wolfram_query.
type RewriteTool struct {
	provider domain.LLMProvider
	logger   *slog.Logger
}

func NewRewriteTool(provider domain.LLMProvider, logger *slog.Logger) *RewriteTool {
	return &RewriteTool{provider: provider, logger: logger}
}

func (t *RewriteTool) Name() string { return "rewrite_for_wolfram" }

func (t *RewriteTool) Description() string {
	return "Convert a natural language math question into proper Wolfram Alpha syntax. Always use this BEFORE calling wolfram_query."
}

func (t *RewriteTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"question": {"type": "string", "description": "The natural language math question"}
			},
			"required": ["question"]
		}`),
	}
}

type rewriteParams struct {
	Question string `json:"question"`
}

func (t *RewriteTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.rewrite_for_wolfram", t.logger, params,
		func(ctx context.Context, span trace.Span, p rewriteParams) (any, error) {
			if err := RequireField("question", p.Question); err != nil {
				return nil, err
			}

			resp, err := t.provider.Chat(ctx, domain.ChatRequest{
				Messages: []domain.Message{
					{Role: domain.RoleUser, Content: fmt.Sprintf(rewritePrompt, p.Question)},
				},
			})
			if err != nil {
				return nil, fmt.Errorf("rewrite call: %w", err)
			}

			rewritten := strings.TrimSpace(resp.Message.Content)
			if rewritten == "" {
				return nil, fmt.Errorf("rewrite produced empty query")
			}

			t.logger.Debug("query rewritten", "question", p.Question, "query", rewritten)
			return rewritten, nil
		},
	)
}
