package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sleuth/internal/domain"
)

func verdictBlock(supporting, contradicting, confidence string) string {
	return "CLAIM: the claim\n" +
		"SUPPORTING: " + supporting + "\n" +
		"CONTRADICTING: " + contradicting + "\n" +
		"CONFIDENCE: " + confidence + "\n" +
		"VERDICT: ignored, policy decides\n" +
		"NEEDS_MORE_RESEARCH: NO"
}

func newTestValidator(llm domain.LLMProvider) *Validator {
	return NewValidator(ValidatorDeps{
		LLM:    llm,
		Tools:  toolMap{},
		Logger: testLogger(),
	})
}

func TestValidatorConfirmsOnHighConfidence(t *testing.T) {
	llm := &scriptedLLM{script: []any{
		finalMsg(verdictBlock("strong evidence (https://example.com/a)", "none", "HIGH")),
	}}
	v := newTestValidator(llm)

	claims, err := v.CheckClaims(context.Background(), []string{"water boils at 100C"})
	require.NoError(t, err)
	require.Len(t, claims, 1)

	c := claims[0]
	assert.Equal(t, domain.VerdictConfirmed, c.Verdict)
	assert.Equal(t, domain.ConfidenceHigh, c.Confidence)
	assert.False(t, c.NeedsMoreResearch)
	assert.Equal(t, 1, c.Rounds, "HIGH confidence stops after one round")
	require.Len(t, c.Supporting, 1)
	assert.Equal(t, "https://example.com/a", c.Supporting[0].SourceURL)
}

func TestValidatorContradictionForcesUncertain(t *testing.T) {
	block := verdictBlock(
		"2019 study (https://example.com/pro)",
		"2021 replication failed (https://example.com/con)",
		"HIGH",
	)
	llm := &scriptedLLM{script: []any{finalMsg(block)}}
	v := newTestValidator(llm)

	claims, err := v.CheckClaims(context.Background(), []string{"the effect replicates"})
	require.NoError(t, err)

	c := claims[0]
	assert.Equal(t, domain.VerdictUncertain, c.Verdict, "contradictions override confidence")
	assert.NotEmpty(t, c.Contradicting)
}

func TestValidatorLowConfidenceExhaustsRounds(t *testing.T) {
	llm := &scriptedLLM{script: []any{
		finalMsg(verdictBlock("weak mention (https://example.com/x)", "none", "LOW")),
	}}
	metrics := NewMetrics()
	v := NewValidator(ValidatorDeps{LLM: llm, Tools: toolMap{}, Logger: testLogger(), Metrics: metrics})

	claims, err := v.CheckClaims(context.Background(), []string{"obscure claim"})
	require.NoError(t, err)

	c := claims[0]
	assert.Equal(t, 3, c.Rounds, "LOW confidence burns the full round budget")
	assert.True(t, c.NeedsMoreResearch)
	assert.Equal(t, domain.VerdictLikelyTrue, c.Verdict)
	assert.Equal(t, int64(3), metrics.Snapshot().ValidatorRounds)
}

func TestValidatorMediumConfidenceFloorsToLowOnExhaustion(t *testing.T) {
	llm := &scriptedLLM{script: []any{
		finalMsg(verdictBlock("partial match (https://example.com/p)", "none", "MEDIUM")),
	}}
	v := newTestValidator(llm)

	claims, err := v.CheckClaims(context.Background(), []string{"middling claim"})
	require.NoError(t, err)

	c := claims[0]
	assert.Equal(t, 3, c.Rounds)
	assert.Equal(t, domain.ConfidenceLow, c.Confidence, "rounds exhausted below HIGH settles at LOW")
	assert.Equal(t, domain.VerdictLikelyTrue, c.Verdict)
	assert.True(t, c.NeedsMoreResearch)
}

func TestValidatorNoEvidenceIsUncertain(t *testing.T) {
	llm := &scriptedLLM{script: []any{
		finalMsg(verdictBlock("none", "none", "MEDIUM")),
	}}
	v := newTestValidator(llm)

	claims, err := v.CheckClaims(context.Background(), []string{"unverifiable claim"})
	require.NoError(t, err)

	c := claims[0]
	assert.Equal(t, domain.VerdictUncertain, c.Verdict)
	assert.Equal(t, domain.ConfidenceLow, c.Confidence)
	assert.True(t, c.NeedsMoreResearch)
}

func TestValidatorUnparseableOutputDoesNotCrash(t *testing.T) {
	llm := &scriptedLLM{script: []any{
		finalMsg("I could not determine anything useful."),
	}}
	v := newTestValidator(llm)

	claims, err := v.CheckClaims(context.Background(), []string{"some claim"})
	require.NoError(t, err)

	c := claims[0]
	assert.Equal(t, domain.ConfidenceLow, c.Confidence)
	assert.Equal(t, domain.VerdictUncertain, c.Verdict)
	assert.True(t, c.NeedsMoreResearch)
}

func TestValidatorPreservesInputOrder(t *testing.T) {
	llm := &scriptedLLM{script: []any{
		finalMsg(verdictBlock("evidence (https://example.com)", "none", "HIGH")),
	}}
	v := newTestValidator(llm)

	input := []string{"claim one", "claim two", "claim three", "claim four"}
	claims, err := v.CheckClaims(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, claims, len(input))
	for i, c := range claims {
		assert.Equal(t, input[i], c.Text)
	}
}

func TestValidatorEmptyInput(t *testing.T) {
	v := newTestValidator(&scriptedLLM{script: []any{finalMsg("unused")}})
	claims, err := v.CheckClaims(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, claims)
}

func TestParseVerdictBlock(t *testing.T) {
	p, ok := parseVerdictBlock(verdictBlock(
		"study A (https://example.com/a); study B (https://example.com/b)",
		"none",
		"MEDIUM",
	))
	require.True(t, ok)
	assert.Equal(t, domain.ConfidenceMedium, p.Confidence)
	require.Len(t, p.Supporting, 2)
	assert.Equal(t, "https://example.com/a", p.Supporting[0].SourceURL)
	assert.Equal(t, "study A", p.Supporting[0].Snippet)
	assert.Nil(t, p.Contradicting)
}

func TestParseVerdictBlockMissingConfidence(t *testing.T) {
	_, ok := parseVerdictBlock("SUPPORTING: something\nVERDICT: CONFIRMED")
	assert.False(t, ok)
}

func TestParseCitations(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		count int
	}{
		{"none", "none", 0},
		{"n/a", "n/a", 0},
		{"none found variant", "None found in any source", 0},
		{"single with url", "snippet (https://example.com)", 1},
		{"two separated", "a (https://x.com); b (https://y.com)", 2},
		{"plain text no url", "press release from the vendor", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, parseCitations(tt.in), tt.count)
		})
	}
}
