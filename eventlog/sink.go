// Package eventlog provides EventSink implementations: an in-memory
// sink for tests, a Redis list appender, a NATS publisher and a
// Postgres analytics store. Delivery is at-least-once; sinks log and
// drop on backend errors rather than blocking the engine.
package eventlog

import (
	jsoniter "github.com/json-iterator/go"

	"figgie.com/server/game"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MultiSink fans one event out to several sinks.
type MultiSink struct {
	sinks []game.EventSink
}

func NewMultiSink(sinks ...game.EventSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Emit(ev game.Event) {
	for _, s := range m.sinks {
		s.Emit(ev)
	}
}
