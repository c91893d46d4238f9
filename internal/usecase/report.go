package usecase

import (
	"log/slog"
	"strings"

	"sleuth/internal/domain"
)

// Report-shape heuristic: a message qualifies when it carries at least one
// structural marker and substantial length.
const minReportLength = 200

var reportMarkers = []string{"## ", "Executive Summary", "Introduction", "Sources"}

// ExtractReport selects the final report from a finished conversation.
// Candidates are assistant messages that look report-shaped (marker + min
// length); the longest wins, ties go to the latest. When nothing qualifies,
// the last non-empty assistant text is returned verbatim as a fallback and
// the miss is logged.
func ExtractReport(conv *Conversation, logger *slog.Logger) (domain.Report, bool) {
	msgs := conv.Messages()

	bestIdx := -1
	bestLen := 0
	lastIdx := -1

	for i, msg := range msgs {
		if msg.Role != domain.RoleAssistant || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		lastIdx = i

		if !looksLikeReport(msg.Content) {
			continue
		}
		// Ties go to the latest: a later equal-length candidate replaces
		// the earlier one.
		if len(msg.Content) >= bestLen {
			bestIdx = i
			bestLen = len(msg.Content)
		}
	}

	if bestIdx >= 0 {
		return domain.Report{
			Query:        conv.Query,
			Body:         msgs[bestIdx].Content,
			MessageIndex: bestIdx,
		}, true
	}

	if lastIdx >= 0 {
		logger.Warn("no message matched the report heuristic, using last assistant text",
			"conversation", conv.ID, "message_index", lastIdx)
		return domain.Report{
			Query:        conv.Query,
			Body:         msgs[lastIdx].Content,
			MessageIndex: lastIdx,
			Fallback:     true,
		}, true
	}

	logger.Warn("conversation contains no assistant text", "conversation", conv.ID)
	return domain.Report{Query: conv.Query}, false
}

// looksLikeReport applies the structural-shape test.
func looksLikeReport(content string) bool {
	if len(content) <= minReportLength {
		return false
	}
	for _, marker := range reportMarkers {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}
