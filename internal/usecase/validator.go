package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"sleuth/internal/domain"
)

// Validator defaults.
const (
	defaultMaxRounds         = 3
	defaultValidatorMaxSteps = 8
	defaultValidatorParallel = 3
)

// factCheckerPrompt seeds each validation sub-conversation.
const factCheckerPrompt = `Validate claims thoroughly.

For each claim:
- Search for supporting evidence
- Search for contradictions
- Crawl sources if snippets are insufficient
- If you find conflicts, search more to resolve them

Return exactly this format:
CLAIM: [claim]
SUPPORTING: [evidence with sources, or "none"]
CONTRADICTING: [if found, with sources, or "none"]
CONFIDENCE: HIGH / MEDIUM / LOW
VERDICT: CONFIRMED / LIKELY_TRUE / UNCERTAIN / LIKELY_FALSE
NOTES: [important caveats or conflicting details]
NEEDS_MORE_RESEARCH: [YES if LOW confidence or unresolved conflicts, NO otherwise]`

// ValidatorDeps holds injected dependencies for the claim validator.
type ValidatorDeps struct {
	LLM           domain.LLMProvider
	Tools         domain.ToolExecutor // evidence tools only: search + crawl
	Logger        *slog.Logger
	Metrics       *Metrics // optional
	MaxRounds     int      // 0 = default 3
	MaxSteps      int      // per-round engine budget, 0 = default 8
	MaxConcurrent int      // claims validated in parallel, 0 = default 3
}

// Validator checks factual claims against independent evidence. Each claim
// gets its own bounded sub-conversation per round; claims validate
// concurrently under a semaphore, each sub-conversation single-threaded.
type Validator struct {
	deps ValidatorDeps
}

// NewValidator creates a validator with the given dependencies.
func NewValidator(deps ValidatorDeps) *Validator {
	if deps.MaxRounds <= 0 {
		deps.MaxRounds = defaultMaxRounds
	}
	if deps.MaxSteps <= 0 {
		deps.MaxSteps = defaultValidatorMaxSteps
	}
	if deps.MaxConcurrent <= 0 {
		deps.MaxConcurrent = defaultValidatorParallel
	}
	return &Validator{deps: deps}
}

// CheckClaims validates each claim and returns them in input order.
func (v *Validator) CheckClaims(ctx context.Context, claims []string) ([]domain.Claim, error) {
	if len(claims) == 0 {
		return nil, nil
	}

	out := make([]domain.Claim, len(claims))
	sem := make(chan struct{}, v.deps.MaxConcurrent)

	var wg sync.WaitGroup
	for i, text := range claims {
		wg.Add(1)
		go func(idx int, claimText string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				out[idx] = domain.Claim{Text: claimText, Confidence: domain.ConfidenceLow, Verdict: domain.VerdictUncertain, NeedsMoreResearch: true}
				return
			}
			out[idx] = v.validateClaim(ctx, claimText)
		}(i, text)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// validateClaim runs up to MaxRounds validation rounds for one claim. Each
// round is a fresh conversation; evidence accumulates on the claim across
// rounds. Rounds stop early once confidence reaches HIGH with a clean
// verdict; the policy in Claim.Resolve decides the final labels.
func (v *Validator) validateClaim(ctx context.Context, text string) domain.Claim {
	claim := domain.Claim{Text: text}

	for round := 1; round <= v.deps.MaxRounds; round++ {
		claim.Rounds = round
		if v.deps.Metrics != nil {
			v.deps.Metrics.AddValidatorRound()
			v.deps.Metrics.AddSubConversation()
		}

		conv := NewConversation(text)
		conv.AddMessage(domain.Message{Role: domain.RoleSystem, Content: factCheckerPrompt})

		engine := NewEngine(EngineDeps{
			LLM:      v.deps.LLM,
			Tools:    v.deps.Tools,
			Logger:   v.deps.Logger,
			Metrics:  v.deps.Metrics,
			MaxSteps: v.deps.MaxSteps,
		})

		output, err := engine.Run(ctx, conv, roundPrompt(claim, round))
		if err != nil {
			if errors.Is(err, domain.ErrMaxSteps) {
				// Budget ran out mid-round; salvage whatever the model last said.
				output = lastAssistantText(conv)
			} else {
				v.deps.Logger.Warn("validation round failed",
					"claim", text, "round", round, "error", err)
				break
			}
		}

		parsed, ok := parseVerdictBlock(output)
		if !ok {
			v.deps.Logger.Warn("validation output not parseable",
				"claim", text, "round", round)
			continue
		}

		claim.Supporting = append(claim.Supporting, parsed.Supporting...)
		claim.Contradicting = append(claim.Contradicting, parsed.Contradicting...)
		claim.Confidence = parsed.Confidence
		if parsed.Notes != "" {
			claim.Notes = parsed.Notes
		}

		claim.NeedsMoreResearch = false
		claim.Resolve()
		if !claim.NeedsMoreResearch {
			break
		}
	}

	// Round budget exhausted (or never produced a label) without HIGH
	// confidence: floor to LOW so the claim stays actionable, not silently
	// dropped.
	if claim.NeedsMoreResearch || claim.Confidence == "" {
		claim.Confidence = domain.ConfidenceLow
		claim.Resolve()
	}
	return claim
}

// roundPrompt is the user message opening a validation round. Later rounds
// steer the model toward the unresolved part.
func roundPrompt(claim domain.Claim, round int) string {
	if round == 1 {
		return fmt.Sprintf("Validate this claim: %s", claim.Text)
	}
	if len(claim.Contradicting) > 0 {
		return fmt.Sprintf("Validate this claim again and try to resolve the conflicting evidence found so far: %s", claim.Text)
	}
	return fmt.Sprintf("Validate this claim again with different searches; previous evidence was inconclusive: %s", claim.Text)
}

func lastAssistantText(conv *Conversation) string {
	msgs := conv.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == domain.RoleAssistant && strings.TrimSpace(msgs[i].Content) != "" {
			return msgs[i].Content
		}
	}
	return ""
}

// parsedVerdict is the structured portion of a fact-checker reply.
type parsedVerdict struct {
	Supporting    []domain.Citation
	Contradicting []domain.Citation
	Confidence    domain.Confidence
	Notes         string
}

var urlRe = regexp.MustCompile(`https?://[^\s)\]]+`)

// parseVerdictBlock extracts the CLAIM/.../NEEDS_MORE_RESEARCH block from
// model output. Returns ok=false when no CONFIDENCE line is present.
func parseVerdictBlock(output string) (parsedVerdict, bool) {
	var p parsedVerdict
	seen := false

	for _, line := range strings.Split(output, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "SUPPORTING":
			p.Supporting = parseCitations(value)
		case "CONTRADICTING":
			p.Contradicting = parseCitations(value)
		case "CONFIDENCE":
			seen = true
			switch {
			case strings.Contains(strings.ToUpper(value), "HIGH"):
				p.Confidence = domain.ConfidenceHigh
			case strings.Contains(strings.ToUpper(value), "MEDIUM"):
				p.Confidence = domain.ConfidenceMedium
			default:
				p.Confidence = domain.ConfidenceLow
			}
		case "NOTES":
			p.Notes = value
		}
	}

	return p, seen
}

// parseCitations turns an evidence line into citations. "none" (and close
// variants) means no evidence. URLs are pulled out of the text; the
// remainder becomes the snippet.
func parseCitations(value string) []domain.Citation {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" || normalized == "none" || normalized == "n/a" ||
		strings.HasPrefix(normalized, "none found") || strings.HasPrefix(normalized, "none.") {
		return nil
	}

	var citations []domain.Citation
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c := domain.Citation{Snippet: part}
		if url := urlRe.FindString(part); url != "" {
			c.SourceURL = url
			c.Snippet = strings.TrimSpace(strings.Trim(strings.ReplaceAll(part, url, ""), " ()[]"))
		}
		citations = append(citations, c)
	}
	return citations
}
