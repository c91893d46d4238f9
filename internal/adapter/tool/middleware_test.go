package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"sleuth/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type echoParams struct {
	Value string `json:"value"`
}

func TestExecuteStringResult(t *testing.T) {
	result, err := Execute(context.Background(), "tool.test", testLogger(),
		json.RawMessage(`{"value":"hello"}`),
		func(ctx context.Context, span trace.Span, p echoParams) (any, error) {
			return "got: " + p.Value, nil
		},
	)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.IsError {
		t.Errorf("unexpected error result: %s", result.Content)
	}
	if result.Content != "got: hello" {
		t.Errorf("content = %q", result.Content)
	}
}

func TestExecuteStructResult(t *testing.T) {
	type out struct {
		N int `json:"n"`
	}
	result, err := Execute(context.Background(), "tool.test", testLogger(),
		json.RawMessage(`{}`),
		func(ctx context.Context, span trace.Span, p echoParams) (any, error) {
			return out{N: 42}, nil
		},
	)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(result.Content, `"n": 42`) {
		t.Errorf("struct not marshaled: %s", result.Content)
	}
}

func TestExecuteInvalidParams(t *testing.T) {
	result, err := Execute(context.Background(), "tool.test", testLogger(),
		json.RawMessage(`{not json`),
		func(ctx context.Context, span trace.Span, p echoParams) (any, error) {
			t.Fatal("handler must not run on parse failure")
			return nil, nil
		},
	)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result for invalid params")
	}
	if !strings.Contains(result.Content, "invalid params") {
		t.Errorf("content = %q", result.Content)
	}
}

func TestExecuteHandlerError(t *testing.T) {
	result, err := Execute(context.Background(), "tool.test", testLogger(),
		json.RawMessage(`{}`),
		func(ctx context.Context, span trace.Span, p echoParams) (any, error) {
			return nil, fmt.Errorf("backend exploded")
		},
	)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Error("expected error result")
	}
	if result.IsRetryable {
		t.Error("unknown errors must not be marked retryable")
	}
}

func TestExecuteRetryableError(t *testing.T) {
	result, err := Execute(context.Background(), "tool.test", testLogger(),
		json.RawMessage(`{}`),
		func(ctx context.Context, span trace.Span, p echoParams) (any, error) {
			return nil, fmt.Errorf("%w: backend down", domain.ErrNetwork)
		},
	)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError || !result.IsRetryable {
		t.Errorf("expected retryable error result, got %+v", result)
	}
	if !strings.Contains(result.Content, "may succeed on retry") {
		t.Errorf("retry hint missing: %s", result.Content)
	}
}

func TestExecutePassthroughToolResult(t *testing.T) {
	custom := &domain.ToolResult{Content: "custom", IsError: true}
	result, err := Execute(context.Background(), "tool.test", testLogger(),
		json.RawMessage(`{}`),
		func(ctx context.Context, span trace.Span, p echoParams) (any, error) {
			return custom, nil
		},
	)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result != custom {
		t.Error("ToolResult must be passed through unchanged")
	}
}

func TestErrResult(t *testing.T) {
	result, err := ErrResult("bad %s", "input")
	if err != nil {
		t.Fatalf("ErrResult: %v", err)
	}
	if !result.IsError || result.Content != "bad input" {
		t.Errorf("got %+v", result)
	}
}

func TestJoinComma(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"a"}, "a"},
		{[]string{"a", "b", "c"}, "a, b, c"},
	}
	for _, tt := range tests {
		if got := joinComma(tt.in); got != tt.want {
			t.Errorf("joinComma(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
