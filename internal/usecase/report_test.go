package usecase

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sleuth/internal/domain"
)

func addAssistant(conv *Conversation, content string) {
	conv.AddMessage(domain.Message{
		Role:      domain.RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	})
}

func reportBody(heading string) string {
	return "## " + heading + "\n\n" + strings.Repeat("Findings paragraph. ", 20) + "\n\n## Sources\n- example.com"
}

func TestExtractReportPrefersShapedMessage(t *testing.T) {
	conv := NewConversation("quantum computing")
	addAssistant(conv, "Let me search for that.")
	addAssistant(conv, reportBody("Executive Summary"))
	addAssistant(conv, "Anything else I can help with?")

	report, ok := ExtractReport(conv, testLogger())
	require.True(t, ok)
	assert.Equal(t, 1, report.MessageIndex)
	assert.False(t, report.Fallback)
	assert.Contains(t, report.Body, "## Sources")
}

func TestExtractReportShortMarkerMessageLoses(t *testing.T) {
	conv := NewConversation("q")
	addAssistant(conv, "## Sources") // marker but far below minimum length
	addAssistant(conv, reportBody("Introduction"))

	report, ok := ExtractReport(conv, testLogger())
	require.True(t, ok)
	assert.Equal(t, 1, report.MessageIndex)
}

func TestExtractReportTieGoesToLatest(t *testing.T) {
	body := reportBody("Executive Summary")

	conv := NewConversation("q")
	addAssistant(conv, body)
	addAssistant(conv, body)

	report, ok := ExtractReport(conv, testLogger())
	require.True(t, ok)
	assert.Equal(t, 1, report.MessageIndex)
}

func TestExtractReportLongestWins(t *testing.T) {
	long := reportBody("Executive Summary") + strings.Repeat(" more detail.", 50)

	conv := NewConversation("q")
	addAssistant(conv, long)
	addAssistant(conv, reportBody("Executive Summary"))

	report, ok := ExtractReport(conv, testLogger())
	require.True(t, ok)
	assert.Equal(t, 0, report.MessageIndex)
	assert.Equal(t, long, report.Body)
}

func TestExtractReportFallbackLastAssistantText(t *testing.T) {
	conv := NewConversation("q")
	addAssistant(conv, "first short answer")
	conv.AddMessage(domain.Message{Role: domain.RoleTool, Content: "tool output", Timestamp: time.Now()})
	addAssistant(conv, "the short final answer")

	report, ok := ExtractReport(conv, testLogger())
	require.True(t, ok)
	assert.True(t, report.Fallback)
	assert.Equal(t, "the short final answer", report.Body, "fallback body is verbatim, no synthesis")
}

func TestExtractReportNoAssistantOutput(t *testing.T) {
	conv := NewConversation("q")
	conv.AddMessage(domain.Message{Role: domain.RoleUser, Content: "question", Timestamp: time.Now()})

	_, ok := ExtractReport(conv, testLogger())
	assert.False(t, ok)
}

func TestExtractReportIgnoresToolAndUserMessages(t *testing.T) {
	conv := NewConversation("q")
	// A tool result that happens to look like a report must not be chosen.
	conv.AddMessage(domain.Message{Role: domain.RoleTool, Content: reportBody("Executive Summary"), Timestamp: time.Now()})
	addAssistant(conv, "summary text")

	report, ok := ExtractReport(conv, testLogger())
	require.True(t, ok)
	assert.True(t, report.Fallback)
	assert.Equal(t, "summary text", report.Body)
}
