package eventlog

import (
	"sync"

	"figgie.com/server/game"
)

// MemorySink records events in order. Used by tests and as the
// default sink when no external backend is configured.
type MemorySink struct {
	mu     sync.Mutex
	events []game.Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Emit(ev game.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// Events returns a copy of the recorded stream.
func (m *MemorySink) Events() []game.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]game.Event, len(m.events))
	copy(out, m.events)
	return out
}

// EventsOfType filters the recorded stream by type.
func (m *MemorySink) EventsOfType(t game.EventType) []game.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []game.Event
	for _, ev := range m.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
