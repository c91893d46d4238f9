package tool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"sleuth/internal/domain"
)

type stubChecker struct {
	claims []domain.Claim
	got    []string
}

func (s *stubChecker) CheckClaims(ctx context.Context, claims []string) ([]domain.Claim, error) {
	s.got = claims
	return s.claims, nil
}

func TestFactCheckFormatsVerdictBlocks(t *testing.T) {
	checker := &stubChecker{claims: []domain.Claim{
		{
			Text:       "Go was released in 2009",
			Supporting: []domain.Citation{{SourceURL: "https://go.dev/doc/faq", Snippet: "announced in November 2009"}},
			Confidence: domain.ConfidenceHigh,
			Verdict:    domain.VerdictConfirmed,
		},
		{
			Text:              "Go has no garbage collector",
			Contradicting:     []domain.Citation{{SourceURL: "https://go.dev", Snippet: "garbage-collected language"}},
			Confidence:        domain.ConfidenceLow,
			Verdict:           domain.VerdictUncertain,
			NeedsMoreResearch: true,
		},
	}}
	fc := NewFactCheckTool(checker, testLogger())

	result, err := fc.Execute(context.Background(),
		json.RawMessage(`{"claims":["Go was released in 2009","Go has no garbage collector"]}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", result.Content)
	}
	if len(checker.got) != 2 {
		t.Fatalf("checker received %d claims", len(checker.got))
	}

	for _, want := range []string{
		"CLAIM: Go was released in 2009",
		"SUPPORTING: announced in November 2009 (https://go.dev/doc/faq)",
		"CONTRADICTING: none",
		"CONFIDENCE: HIGH",
		"VERDICT: CONFIRMED",
		"NEEDS_MORE_RESEARCH: false",
		"CLAIM: Go has no garbage collector",
		"VERDICT: UNCERTAIN",
		"NEEDS_MORE_RESEARCH: true",
	} {
		if !strings.Contains(result.Content, want) {
			t.Errorf("output missing %q:\n%s", want, result.Content)
		}
	}
}

func TestFactCheckEmptyClaims(t *testing.T) {
	fc := NewFactCheckTool(&stubChecker{}, testLogger())

	result, err := fc.Execute(context.Background(), json.RawMessage(`{"claims":[]}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Error("empty claims must be rejected")
	}
}
