package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Registry.Get", ErrToolNotFound, "tool 'foo'")
	want := "Registry.Get: tool 'foo': tool not found"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Engine.Run", ErrMaxSteps, "")
	want := "Engine.Run: engine reached step budget"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("Crawl.Fetch", ErrTimeout, "https://example.com")
	if !errors.Is(err, ErrTimeout) {
		t.Error("errors.Is should match ErrTimeout")
	}
}

func TestDomainErrorAs(t *testing.T) {
	err := NewDomainError("LLM.Chat", ErrProviderNotFound, "lmstudio")
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatal("errors.As should match *DomainError")
	}
	if de.Op != "LLM.Chat" {
		t.Errorf("Op = %q, want %q", de.Op, "LLM.Chat")
	}
}

func TestErrorCodeOf_DirectSentinel(t *testing.T) {
	assert.Equal(t, CodeUnknownTool, ErrorCodeOf(ErrToolNotFound))
	assert.Equal(t, CodeBudgetExceeded, ErrorCodeOf(ErrMaxSteps))
	assert.Equal(t, CodeBudgetExceeded, ErrorCodeOf(ErrRoundBudget))
	assert.Equal(t, CodeRateLimit, ErrorCodeOf(ErrRateLimit))
}

func TestErrorCodeOf_DomainError(t *testing.T) {
	err := NewDomainError("Registry.Get", ErrToolNotFound, "tool 'foo'")
	assert.Equal(t, CodeUnknownTool, ErrorCodeOf(err))
}

func TestErrorCodeOf_WrappedError(t *testing.T) {
	err := fmt.Errorf("outer: %w", ErrConfigLoad)
	assert.Equal(t, CodeConfigError, ErrorCodeOf(err))
}

func TestErrorCodeOf_Unknown(t *testing.T) {
	assert.Equal(t, CodeUnknown, ErrorCodeOf(errors.New("mystery")))
	assert.Equal(t, CodeUnknown, ErrorCodeOf(nil))
}

func TestWrapOpNil(t *testing.T) {
	if WrapOp("op", nil) != nil {
		t.Error("WrapOp(nil) should return nil")
	}
}
