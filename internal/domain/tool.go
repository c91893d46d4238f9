package domain

import (
	"context"
	"encoding/json"
	"unicode/utf8"
)

// ToolSchema describes a tool for the LLM function-calling protocol.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall represents an LLM's request to invoke a tool. Immutable once
// dispatched.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of executing a tool, correlated to its
// originating call by ToolCallID.
type ToolResult struct {
	ToolCallID  string `json:"tool_call_id"`
	Content     string `json:"content"`
	IsError     bool   `json:"is_error"`
	IsRetryable bool   `json:"is_retryable,omitempty"`
}

// Tool is the interface every tool must implement.
type Tool interface {
	Name() string
	Description() string
	Schema() ToolSchema
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolExecutor abstracts tool lookup and execution.
type ToolExecutor interface {
	Get(name string) (Tool, error)
	Schemas() []ToolSchema
}

// TruncationMarker is appended to payloads cut at a size bound. Callers must
// assume silent data loss whenever it is present.
const TruncationMarker = "... [truncated]"

// Truncate cuts s to at most max bytes plus the truncation marker, backing
// up to a rune boundary so the payload stays valid UTF-8. Truncating
// already-truncated content is a no-op.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if len(s) <= max+len(TruncationMarker) && len(s) > len(TruncationMarker) &&
		s[len(s)-len(TruncationMarker):] == TruncationMarker {
		return s
	}
	return s[:runeCut(s, max)] + TruncationMarker
}

// runeCut returns the largest cut <= max that does not split a rune in s.
func runeCut(s string, max int) int {
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return max
}
