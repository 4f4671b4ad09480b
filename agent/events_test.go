package agent

import "testing"

func TestEventSinkDeliversInOrder(t *testing.T) {
	sink := NewEventSink("r1", 8)
	sink.Emit(EventConsole, map[string]any{"text": "a"})
	sink.Emit(EventFinalAnswer, map[string]any{"text": "b"})
	sink.Close()

	var types []EventType
	for ev := range sink.Events() {
		types = append(types, ev.Type)
		if ev.RunID != "r1" {
			t.Errorf("run id = %q", ev.RunID)
		}
		if ev.Timestamp.IsZero() {
			t.Error("missing timestamp")
		}
	}
	if len(types) != 2 || types[0] != EventConsole || types[1] != EventFinalAnswer {
		t.Errorf("types = %v", types)
	}
}

func TestEventSinkDropsWhenFull(t *testing.T) {
	sink := NewEventSink("r1", 1)
	sink.Emit(EventConsole, nil)
	sink.Emit(EventConsole, nil) // buffer full, must not block
	sink.Close()

	count := 0
	for range sink.Events() {
		count++
	}
	if count != 1 {
		t.Errorf("delivered = %d, want 1", count)
	}
}

func TestEventSinkCloseIdempotent(t *testing.T) {
	sink := NewEventSink("r1", 1)
	sink.Close()
	sink.Close()
	sink.Emit(EventConsole, nil) // no panic on a closed sink
}
