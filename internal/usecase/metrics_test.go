package usecase

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.AddModelCall()
	m.AddModelCall()
	m.AddStep()
	m.AddValidatorRound()
	m.AddSubConversation()
	m.AddToolCall("web_search")
	m.AddToolCall("web_search")
	m.AddToolCall("crawl_page")

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.ModelCalls)
	assert.Equal(t, int64(1), s.Steps)
	assert.Equal(t, int64(1), s.ValidatorRounds)
	assert.Equal(t, int64(1), s.SubConversations)
	assert.Equal(t, int64(2), s.ToolCalls["web_search"])
	assert.Equal(t, int64(1), s.ToolCalls["crawl_page"])
	assert.Equal(t, int64(3), s.TotalToolCalls)
}

func TestMetricsSnapshotIsCopy(t *testing.T) {
	m := NewMetrics()
	m.AddToolCall("web_search")

	s := m.Snapshot()
	s.ToolCalls["web_search"] = 99

	assert.Equal(t, int64(1), m.Snapshot().ToolCalls["web_search"])
}

func TestMetricsConcurrent(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				m.AddModelCall()
				m.AddToolCall("web_search")
			}
		}()
	}
	wg.Wait()

	s := m.Snapshot()
	assert.Equal(t, int64(1000), s.ModelCalls)
	assert.Equal(t, int64(1000), s.ToolCalls["web_search"])
}

func TestSnapshotSummary(t *testing.T) {
	m := NewMetrics()
	m.AddModelCall()
	m.AddToolCall("wolfram_query")
	m.AddToolCall("web_search")

	out := m.Snapshot().Summary()
	assert.Contains(t, out, "Model calls:")
	assert.Contains(t, out, "wolfram_query: 1")
	// Tool lines render in sorted order.
	assert.Less(t, strings.Index(out, "web_search"), strings.Index(out, "wolfram_query"))
	assert.Contains(t, out, "Total tool calls: 2")
}
