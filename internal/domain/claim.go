package domain

// Confidence is a discrete verdict-strength label attached to a validated claim.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Verdict is the outcome of validating a single claim.
type Verdict string

const (
	VerdictConfirmed   Verdict = "CONFIRMED"
	VerdictLikelyTrue  Verdict = "LIKELY_TRUE"
	VerdictUncertain   Verdict = "UNCERTAIN"
	VerdictLikelyFalse Verdict = "LIKELY_FALSE"
)

// Citation points at a piece of evidence found during validation.
type Citation struct {
	SourceURL string `json:"source_url"`
	Snippet   string `json:"snippet"`
}

// Claim is an atomic factual assertion extracted from research findings,
// subject to independent verification. A claim is mutated only by successive
// validation rounds and finalized when confidence reaches HIGH or the round
// budget is exhausted.
type Claim struct {
	Text              string     `json:"text"`
	Supporting        []Citation `json:"supporting,omitempty"`
	Contradicting     []Citation `json:"contradicting,omitempty"`
	Confidence        Confidence `json:"confidence"`
	Verdict           Verdict    `json:"verdict"`
	NeedsMoreResearch bool       `json:"needs_more_research"`
	Rounds            int        `json:"rounds"`
	Notes             string     `json:"notes,omitempty"`
}

// Resolve applies the verdict assignment policy to the claim's accumulated
// evidence:
//
//   - CONFIRMED requires supporting evidence, no contradictions, and HIGH
//     confidence.
//   - Unresolved contradictions force UNCERTAIN regardless of evidence volume.
//   - No evidence of either kind forces LOW confidence and UNCERTAIN.
func (c *Claim) Resolve() {
	switch {
	case len(c.Supporting) == 0 && len(c.Contradicting) == 0:
		c.Confidence = ConfidenceLow
		c.Verdict = VerdictUncertain
	case len(c.Contradicting) > 0:
		c.Verdict = VerdictUncertain
	case c.Confidence == ConfidenceHigh:
		c.Verdict = VerdictConfirmed
	default:
		c.Verdict = VerdictLikelyTrue
	}
	if c.Confidence != ConfidenceHigh {
		c.NeedsMoreResearch = true
	}
}
