package usecase

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Metrics collects passive counters over a research run. Counters record;
// they never gate behavior. Safe for concurrent use.
type Metrics struct {
	modelCalls       atomic.Int64
	steps            atomic.Int64
	validatorRounds  atomic.Int64
	subConversations atomic.Int64

	mu        sync.Mutex
	toolCalls map[string]int64
}

// NewMetrics creates an empty metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{toolCalls: make(map[string]int64)}
}

func (m *Metrics) AddModelCall()       { m.modelCalls.Add(1) }
func (m *Metrics) AddStep()            { m.steps.Add(1) }
func (m *Metrics) AddValidatorRound()  { m.validatorRounds.Add(1) }
func (m *Metrics) AddSubConversation() { m.subConversations.Add(1) }

// AddToolCall records one invocation of the named tool.
func (m *Metrics) AddToolCall(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolCalls[name]++
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	ModelCalls       int64
	Steps            int64
	ValidatorRounds  int64
	SubConversations int64
	ToolCalls        map[string]int64
	TotalToolCalls   int64
}

// Snapshot returns a consistent copy of the counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	tools := make(map[string]int64, len(m.toolCalls))
	var total int64
	for k, v := range m.toolCalls {
		tools[k] = v
		total += v
	}

	return Snapshot{
		ModelCalls:       m.modelCalls.Load(),
		Steps:            m.steps.Load(),
		ValidatorRounds:  m.validatorRounds.Load(),
		SubConversations: m.subConversations.Load(),
		ToolCalls:        tools,
		TotalToolCalls:   total,
	}
}

// Summary renders the snapshot as a human-readable block for the CLI.
func (s Snapshot) Summary() string {
	var sb strings.Builder
	sb.WriteString("Run metrics:\n")
	fmt.Fprintf(&sb, "  Model calls:      %d\n", s.ModelCalls)
	fmt.Fprintf(&sb, "  Steps:            %d\n", s.Steps)
	fmt.Fprintf(&sb, "  Validator rounds: %d\n", s.ValidatorRounds)
	fmt.Fprintf(&sb, "  Sub-conversations: %d\n", s.SubConversations)

	names := make([]string, 0, len(s.ToolCalls))
	for name := range s.ToolCalls {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "  %s: %d\n", name, s.ToolCalls[name])
	}
	fmt.Fprintf(&sb, "  Total tool calls: %d\n", s.TotalToolCalls)
	return sb.String()
}
