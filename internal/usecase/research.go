package usecase

import (
	"context"
	"errors"
	"log/slog"

	"sleuth/internal/domain"
	"sleuth/internal/infra/tracer"
)

// ResearchDeps holds injected dependencies for the research orchestrator.
type ResearchDeps struct {
	Engine       *Engine
	Logger       *slog.Logger
	SystemPrompt string
}

// Research runs a full validated research session: seed the system prompt,
// drive the engine to completion (or budget exhaustion), and extract the
// report from the transcript.
type Research struct {
	deps ResearchDeps
}

// NewResearch creates a research orchestrator.
func NewResearch(deps ResearchDeps) *Research {
	return &Research{deps: deps}
}

// Run researches query and returns the extracted report plus the full
// transcript. Budget exhaustion is not fatal: the transcript survives, so a
// partial report is still extracted and marked by its fallback flag when the
// shape heuristic missed.
func (r *Research) Run(ctx context.Context, query string) (domain.Report, *Conversation, error) {
	ctx, span := tracer.StartSpan(ctx, "research.run")
	defer span.End()

	conv := NewConversation(query)
	if r.deps.SystemPrompt != "" {
		conv.AddMessage(domain.Message{Role: domain.RoleSystem, Content: r.deps.SystemPrompt})
	}

	_, err := r.deps.Engine.Run(ctx, conv, query)
	if err != nil {
		if !errors.Is(err, domain.ErrMaxSteps) {
			tracer.RecordError(span, err)
			return domain.Report{}, conv, err
		}
		r.deps.Logger.Warn("step budget exhausted, extracting partial report",
			"conversation", conv.ID, "query", query)
	}

	report, ok := ExtractReport(conv, r.deps.Logger)
	if !ok {
		err := domain.NewDomainError("Research.Run", domain.ErrMaxSteps, "no assistant output to report")
		tracer.RecordError(span, err)
		return report, conv, err
	}

	tracer.SetOK(span)
	return report, conv, nil
}
