package agent

import (
	"sync"
	"time"
)

// EventType identifies the kind of consumer event.
type EventType string

const (
	EventToolResult  EventType = "tool_result"
	EventFinalAnswer EventType = "final_answer"
	EventConsole     EventType = "console"
)

// Event is delivered incrementally to the host UI. Payload contents depend on
// the type: tool_result carries the tool name, output, and error kind;
// final_answer carries the answer text; console carries free-form progress
// text (including streamed model output).
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// EventSink delivers typed events to the host application over a buffered
// channel. Emission never blocks the loop: when the consumer falls behind,
// events are dropped rather than stalling a run.
type EventSink struct {
	runID  string
	ch     chan Event
	closed bool
	mu     sync.Mutex
}

// NewEventSink creates an EventSink with the given buffer size.
func NewEventSink(runID string, bufferSize int) *EventSink {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventSink{
		runID: runID,
		ch:    make(chan Event, bufferSize),
	}
}

// setRunID stamps the sink once the run identifier is known. Sinks are often
// created by the host before the run starts.
func (s *EventSink) setRunID(id string) {
	s.mu.Lock()
	s.runID = id
	s.mu.Unlock()
}

// Emit sends an event. Emitting on a closed sink is a no-op.
func (s *EventSink) Emit(t EventType, payload map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	ev := Event{
		Type:      t,
		Timestamp: time.Now(),
		RunID:     s.runID,
		Payload:   payload,
	}
	select {
	case s.ch <- ev:
	default:
	}
}

// Events returns the read-only event channel.
func (s *EventSink) Events() <-chan Event {
	return s.ch
}

// Close closes the event channel. Safe to call multiple times.
func (s *EventSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
