package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaimResolveConfirmed(t *testing.T) {
	c := &Claim{
		Text:       "The sky is blue",
		Supporting: []Citation{{SourceURL: "https://example.com", Snippet: "the sky is blue"}},
		Confidence: ConfidenceHigh,
	}
	c.Resolve()

	assert.Equal(t, VerdictConfirmed, c.Verdict)
	assert.False(t, c.NeedsMoreResearch)
}

func TestClaimResolveSupportedButNotHigh(t *testing.T) {
	c := &Claim{
		Text:       "Population exceeds one million",
		Supporting: []Citation{{SourceURL: "https://example.com", Snippet: "1.2M residents"}},
		Confidence: ConfidenceMedium,
	}
	c.Resolve()

	assert.Equal(t, VerdictLikelyTrue, c.Verdict)
	assert.True(t, c.NeedsMoreResearch)
}

func TestClaimResolveContradicted(t *testing.T) {
	// Contradictions force UNCERTAIN regardless of how much supporting
	// evidence accumulated.
	c := &Claim{
		Text:          "Founded in 1920",
		Supporting:    []Citation{{SourceURL: "https://a.example"}, {SourceURL: "https://b.example"}},
		Contradicting: []Citation{{SourceURL: "https://c.example", Snippet: "founded 1922"}},
		Confidence:    ConfidenceHigh,
	}
	c.Resolve()

	assert.Equal(t, VerdictUncertain, c.Verdict)
}

func TestClaimResolveNoEvidence(t *testing.T) {
	c := &Claim{Text: "Unverifiable assertion", Confidence: ConfidenceHigh}
	c.Resolve()

	assert.Equal(t, ConfidenceLow, c.Confidence)
	assert.Equal(t, VerdictUncertain, c.Verdict)
	assert.True(t, c.NeedsMoreResearch)
}
