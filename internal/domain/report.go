package domain

// Report is the single selected final-answer text delivered to the requester.
// Body is non-empty and never a bare tool-invocation echo. MessageIndex is
// the position in the conversation the body was extracted from; Fallback is
// true when no message matched the report-shape heuristic and the extractor
// fell back to the last non-empty assistant text.
type Report struct {
	Query        string `json:"query"`
	Body         string `json:"body"`
	MessageIndex int    `json:"message_index"`
	Fallback     bool   `json:"fallback,omitempty"`
}
