package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// TraceEventType categorizes resolver trace events.
type TraceEventType string

const (
	EventClassify  TraceEventType = "classify"
	EventDecompose TraceEventType = "decompose"
	EventAnswer    TraceEventType = "answer"
	EventCompose   TraceEventType = "compose"
	EventMaxDepth  TraceEventType = "max_depth"
)

// TraceEvent is one structured record of a resolver decision.
type TraceEvent struct {
	ID        string         `json:"id"`
	Type      TraceEventType `json:"type"`
	Question  string         `json:"question"`
	Verdict   Complexity     `json:"verdict,omitempty"`
	Preview   string         `json:"preview,omitempty"`
	Depth     int            `json:"depth"`
	ParentID  string         `json:"parent_id,omitempty"`
	Tokens    int            `json:"tokens"`
	Duration  time.Duration  `json:"duration"`
	Timestamp time.Time      `json:"timestamp"`
	Status    string         `json:"status"`
}

// TraceRecorder receives resolver trace events. Implementations must be
// safe for concurrent use when parallel sibling resolution is enabled.
type TraceRecorder interface {
	RecordEvent(event TraceEvent) error
}

// TraceStats summarizes recorded events.
type TraceStats struct {
	TotalEvents   int
	TotalTokens   int
	MaxDepth      int
	TotalDuration time.Duration
	EventsByType  map[TraceEventType]int
}

// MemoryTrace is an in-memory ring of trace events, the default recorder.
type MemoryTrace struct {
	mu     sync.RWMutex
	events []TraceEvent
	stats  TraceStats
	maxLen int
}

// NewMemoryTrace creates an in-memory recorder retaining up to maxEvents.
func NewMemoryTrace(maxEvents int) *MemoryTrace {
	if maxEvents <= 0 {
		maxEvents = 1000
	}
	return &MemoryTrace{
		events: make([]TraceEvent, 0, maxEvents),
		maxLen: maxEvents,
		stats:  TraceStats{EventsByType: make(map[TraceEventType]int)},
	}
}

// RecordEvent implements TraceRecorder.
func (m *MemoryTrace) RecordEvent(event TraceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, event)
	if len(m.events) > m.maxLen {
		m.events = m.events[len(m.events)-m.maxLen:]
	}

	m.stats.TotalEvents++
	m.stats.TotalTokens += event.Tokens
	m.stats.TotalDuration += event.Duration
	if event.Depth > m.stats.MaxDepth {
		m.stats.MaxDepth = event.Depth
	}
	m.stats.EventsByType[event.Type]++
	return nil
}

// Events returns up to limit most recent events.
func (m *MemoryTrace) Events(limit int) []TraceEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.events) {
		limit = len(m.events)
	}
	result := make([]TraceEvent, limit)
	copy(result, m.events[len(m.events)-limit:])
	return result
}

// Stats returns a copy of the aggregate statistics.
func (m *MemoryTrace) Stats() TraceStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := TraceStats{
		TotalEvents:   m.stats.TotalEvents,
		TotalTokens:   m.stats.TotalTokens,
		MaxDepth:      m.stats.MaxDepth,
		TotalDuration: m.stats.TotalDuration,
		EventsByType:  make(map[TraceEventType]int, len(m.stats.EventsByType)),
	}
	for k, v := range m.stats.EventsByType {
		out.EventsByType[k] = v
	}
	return out
}

// Clear discards all recorded events.
func (m *MemoryTrace) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = m.events[:0]
	m.stats = TraceStats{EventsByType: make(map[TraceEventType]int)}
}

// nopTrace swallows events when no recorder is configured.
type nopTrace struct{}

func (nopTrace) RecordEvent(TraceEvent) error { return nil }

var eventCounter uint64

func nextEventID() string {
	count := atomic.AddUint64(&eventCounter, 1)
	return fmt.Sprintf("evt-%d-%d", time.Now().UnixNano(), count)
}

// preview shortens s to at most max runes, never splitting a rune.
func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// estimateTokens is a coarse 4-bytes-per-token heuristic; exact counts
// would require the backend's tokenizer.
func estimateTokens(text string) int {
	return len(text) / 4
}
