package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"sleuth/internal/domain"
	"sleuth/internal/infra/tracer"
)

// Recovery loop constants.
const (
	defaultMaxSteps = 10

	maxLLMRetries  = 3
	baseRetryDelay = 500 * time.Millisecond
	maxRetryDelay  = 10 * time.Second
)

// EngineDeps holds injected dependencies for the conversation engine.
type EngineDeps struct {
	LLM      domain.LLMProvider
	Tools    domain.ToolExecutor
	Logger   *slog.Logger
	Metrics  *Metrics // optional, nil = no counting
	MaxSteps int      // 0 = default budget
}

// Engine drives the turn-synchronous research loop: exactly one model
// request in flight, tool batches fully reassembled before the next turn.
type Engine struct {
	deps EngineDeps
}

// NewEngine creates an engine with the given dependencies.
func NewEngine(deps EngineDeps) *Engine {
	if deps.MaxSteps <= 0 {
		deps.MaxSteps = defaultMaxSteps
	}
	return &Engine{deps: deps}
}

// Run processes a user message through the engine loop until the model
// produces an assistant message without tool calls, the step budget runs out,
// or ctx is cancelled. On budget exhaustion it returns ErrMaxSteps with the
// conversation transcript intact, so a partial report can still be extracted.
func (e *Engine) Run(ctx context.Context, conv *Conversation, userMsg string) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "engine.run")
	defer span.End()

	ctx = domain.ContextWithConversationID(ctx, conv.ID)

	conv.AddMessage(domain.Message{
		Role:      domain.RoleUser,
		Content:   userMsg,
		Timestamp: time.Now(),
	})

	for step := 0; step < e.deps.MaxSteps; step++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		span.AddEvent("engine.step", trace.WithAttributes(tracer.IntAttr("step", step)))
		if e.deps.Metrics != nil {
			e.deps.Metrics.AddStep()
		}

		chatReq := domain.ChatRequest{
			Messages: conv.Messages(),
			Tools:    e.deps.Tools.Schemas(),
		}

		msg, usage, err := e.callLLMWithRetry(ctx, chatReq)
		if err != nil {
			tracer.RecordError(span, err)
			return "", err
		}
		if e.deps.Metrics != nil {
			e.deps.Metrics.AddModelCall()
		}

		conv.AddMessage(msg)

		e.deps.Logger.Debug("model response",
			"conversation", conv.ID,
			"step", step,
			"tool_calls", len(msg.ToolCalls),
			"tokens", usage.TotalTokens,
		)

		// Assistant message with no tool calls is terminal. Text alongside
		// tool calls does NOT terminate the loop.
		if msg.IsFinal() {
			tracer.SetOK(span)
			return msg.Content, nil
		}

		e.dispatchBatch(ctx, conv, msg.ToolCalls)
	}

	tracer.RecordError(span, domain.ErrMaxSteps)
	return "", domain.NewDomainError("Engine.Run", domain.ErrMaxSteps, conv.ID)
}

// dispatchBatch executes a batch of tool calls concurrently and appends one
// tool message per call to the conversation, in the order the model issued
// the calls. Results are re-associated by call ID, never by position;
// results that answer no known call are dropped with a warning.
func (e *Engine) dispatchBatch(ctx context.Context, conv *Conversation, calls []domain.ToolCall) {
	results := make([]*domain.ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c domain.ToolCall) {
			defer wg.Done()
			results[idx] = e.executeCall(ctx, c)
		}(i, call)
	}
	wg.Wait()

	// Re-key by call ID. Duplicate or unknown IDs cannot silently shadow a
	// real answer: first writer wins, the rest are dropped loudly.
	byID := make(map[string]*domain.ToolResult, len(calls))
	for _, r := range results {
		if r == nil {
			continue
		}
		if _, dup := byID[r.ToolCallID]; dup {
			e.deps.Logger.Warn("dropping duplicate tool result", "call_id", r.ToolCallID)
			continue
		}
		byID[r.ToolCallID] = r
	}

	for _, call := range calls {
		r, ok := byID[call.ID]
		if !ok {
			// A call the batch produced no result for still needs an answer,
			// or the model would stall waiting for it.
			r = &domain.ToolResult{
				ToolCallID: call.ID,
				IsError:    true,
				Content:    "tool produced no result",
			}
			e.deps.Logger.Warn("missing tool result", "call_id", call.ID, "tool", call.Name)
		}
		delete(byID, call.ID)

		conv.AddMessage(domain.Message{
			Role:      domain.RoleTool,
			Name:      call.Name,
			Content:   r.Content,
			ToolCalls: []domain.ToolCall{{ID: call.ID, Name: call.Name}},
			Timestamp: time.Now(),
		})
	}

	for id := range byID {
		e.deps.Logger.Warn("dropping orphaned tool result", "call_id", id)
	}
}

// executeCall runs a single tool call and returns its result keyed by the
// call ID.
func (e *Engine) executeCall(ctx context.Context, call domain.ToolCall) *domain.ToolResult {
	ctx, span := tracer.StartSpan(ctx, "engine.execute_tool",
		trace.WithAttributes(tracer.StringAttr("tool.name", call.Name)),
	)
	defer span.End()

	if e.deps.Metrics != nil {
		e.deps.Metrics.AddToolCall(call.Name)
	}

	t, err := e.deps.Tools.Get(call.Name)
	if err != nil {
		// Unknown tool: the batch continues, the model sees the failure.
		tracer.RecordError(span, err)
		return &domain.ToolResult{
			ToolCallID: call.ID,
			IsError:    true,
			Content:    err.Error(),
		}
	}

	result, err := t.Execute(ctx, call.Arguments)
	if err != nil {
		tracer.RecordError(span, err)
		return &domain.ToolResult{
			ToolCallID: call.ID,
			IsError:    true,
			Content:    err.Error(),
		}
	}

	tracer.SetOK(span)
	result.ToolCallID = call.ID
	return result
}

// callLLMWithRetry performs the model call with exponential backoff on
// retryable errors. Non-retryable errors fail immediately.
func (e *Engine) callLLMWithRetry(ctx context.Context, chatReq domain.ChatRequest) (domain.Message, domain.Usage, error) {
	var lastErr error
	for attempt := 0; attempt < maxLLMRetries; attempt++ {
		llmCtx, llmSpan := tracer.StartSpan(ctx, "engine.llm_call")
		resp, err := e.deps.LLM.Chat(llmCtx, chatReq)
		llmSpan.End()

		if err == nil {
			return resp.Message, resp.Usage, nil
		}
		lastErr = err

		if !isRetryableLLMError(err) {
			return domain.Message{}, domain.Usage{}, lastErr
		}

		if attempt < maxLLMRetries-1 {
			delay := retryBackoff(attempt)
			e.deps.Logger.Info("retrying LLM call after error",
				"attempt", attempt+1, "delay", delay, "error", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return domain.Message{}, domain.Usage{}, ctx.Err()
			}
		}
	}
	return domain.Message{}, domain.Usage{}, lastErr
}

// isRetryableLLMError reports whether the model call may succeed on retry.
func isRetryableLLMError(err error) bool {
	return errors.Is(err, domain.ErrRateLimit) ||
		errors.Is(err, domain.ErrProvider) ||
		errors.Is(err, domain.ErrNetwork) ||
		errors.Is(err, domain.ErrTimeout)
}

// retryBackoff computes exponential backoff with jitter.
func retryBackoff(attempt int) time.Duration {
	delay := baseRetryDelay * time.Duration(1<<uint(attempt))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	// Add 0-25% jitter.
	jitter := time.Duration(rand.Int63n(int64(delay/4) + 1))
	return delay + jitter
}
