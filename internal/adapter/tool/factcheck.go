package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"sleuth/internal/domain"
	"sleuth/internal/infra/tracer"
)

// FactChecker validates factual claims against independent evidence.
// Implemented by the claim validator in usecase.
type FactChecker interface {
	CheckClaims(ctx context.Context, claims []string) ([]domain.Claim, error)
}

// FactCheckTool exposes the claim validator to the model as a tool. The model
// hands over a list of atomic factual claims and gets back one structured
// verdict block per claim.
type FactCheckTool struct {
	checker FactChecker
	logger  *slog.Logger
}

func NewFactCheckTool(checker FactChecker, logger *slog.Logger) *FactCheckTool {
	return &FactCheckTool{checker: checker, logger: logger}
}

func (t *FactCheckTool) Name() string { return "fact_check" }

func (t *FactCheckTool) Description() string {
	return "Verify a list of factual claims against independent web sources. Each claim should be a single atomic statement."
}

func (t *FactCheckTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"claims": {
					"type": "array",
					"items": {"type": "string"},
					"minItems": 1,
					"description": "Atomic factual claims to verify"
				}
			},
			"required": ["claims"]
		}`),
	}
}

type factCheckParams struct {
	Claims []string `json:"claims"`
}

func (t *FactCheckTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.fact_check", t.logger, params,
		func(ctx context.Context, span trace.Span, p factCheckParams) (any, error) {
			if len(p.Claims) == 0 {
				return nil, fmt.Errorf("'claims' is required and must not be empty")
			}

			span.SetAttributes(tracer.IntAttr("tool.claims", len(p.Claims)))

			claims, err := t.checker.CheckClaims(ctx, p.Claims)
			if err != nil {
				return nil, fmt.Errorf("fact check: %w", err)
			}

			var sb strings.Builder
			for i, c := range claims {
				if i > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(FormatClaim(c))
			}
			return sb.String(), nil
		},
	)
}

// FormatClaim renders a validated claim as the structured verdict block the
// research model is prompted to expect.
func FormatClaim(c domain.Claim) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CLAIM: %s\n", c.Text)
	fmt.Fprintf(&sb, "SUPPORTING: %s\n", formatCitations(c.Supporting))
	fmt.Fprintf(&sb, "CONTRADICTING: %s\n", formatCitations(c.Contradicting))
	fmt.Fprintf(&sb, "CONFIDENCE: %s\n", c.Confidence)
	fmt.Fprintf(&sb, "VERDICT: %s\n", c.Verdict)
	if c.Notes != "" {
		fmt.Fprintf(&sb, "NOTES: %s\n", c.Notes)
	}
	fmt.Fprintf(&sb, "NEEDS_MORE_RESEARCH: %t\n", c.NeedsMoreResearch)
	return sb.String()
}

func formatCitations(cs []domain.Citation) string {
	if len(cs) == 0 {
		return "none"
	}
	parts := make([]string, len(cs))
	for i, c := range cs {
		if c.Snippet != "" {
			parts[i] = fmt.Sprintf("%s (%s)", c.Snippet, c.SourceURL)
		} else {
			parts[i] = c.SourceURL
		}
	}
	return strings.Join(parts, "; ")
}
