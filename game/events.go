package game

import (
	"time"

	"github.com/rs/zerolog/log"

	"figgie.com/server/util"
)

var eventLogger = log.With().Str("logger_name", "game::events").Logger()

type EventType string

const (
	EventPlayerJoined   EventType = "player_joined"
	EventRoundStarted   EventType = "round_started"
	EventOrderRested    EventType = "order_rested"
	EventCancel         EventType = "cancel"
	EventTransaction    EventType = "transaction"
	EventRoundCompleted EventType = "round_completed"
	EventEngineFault    EventType = "engine_fault"
)

// Event is one entry of the structured event stream. Events are
// queued in mutation order under the round lock and dispatched to the
// sink by a single goroutine, so the stream reflects the round's total
// order.
type Event struct {
	Type    EventType   `json:"type"`
	RoundID string      `json:"round_id"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload"`
}

// EventSink receives the event stream. Delivery is at-least-once;
// implementations must not block for long since a slow sink backs up
// the dispatch queue until events are dropped.
type EventSink interface {
	Emit(ev Event)
}

type PlayerJoinedPayload struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

// DealFingerprint identifies the deal without exposing hands.
type DealFingerprint struct {
	SuitCounts map[Suit]int `json:"suit_counts"`
	GoalSuit   Suit         `json:"goal_suit"`
}

type RoundStartedPayload struct {
	Players         map[string]string `json:"players"`
	InitialBalances map[string]int    `json:"initial_balances"`
	DealFingerprint DealFingerprint   `json:"deal_fingerprint"`
	DurationSec     int               `json:"duration_sec"`
}

type OrderRestedPayload struct {
	OrderID  string `json:"order_id"`
	Owner    string `json:"owner"`
	Side     Side   `json:"side"`
	Suit     Suit   `json:"suit"`
	Price    int    `json:"price"`
	TimeLeft int    `json:"time_left"`
}

// CancelPayload reports a removed resting order. NewOwner/NewPrice are
// set only when the cancel was a displacement by a better order.
type CancelPayload struct {
	OrderID  string  `json:"order_id"`
	Suit     Suit    `json:"suit"`
	Side     Side    `json:"side"`
	OldOwner string  `json:"old_owner"`
	OldPrice int     `json:"old_price"`
	NewOwner *string `json:"new_owner,omitempty"`
	NewPrice *int    `json:"new_price,omitempty"`
	TimeLeft int     `json:"time_left"`
}

type TransactionPayload struct {
	Buyer    string `json:"buyer"`
	Seller   string `json:"seller"`
	Suit     Suit   `json:"suit"`
	Price    int    `json:"price"`
	TimeLeft int    `json:"time_left"`
}

type RoundCompletedPayload struct {
	Results         *Results                `json:"results"`
	FinalBalances   map[string]int          `json:"final_balances"`
	InitialHands    map[string]map[Suit]int `json:"initial_hands"`
	FinalHands      map[string]map[Suit]int `json:"final_hands"`
	InitialBalances map[string]int          `json:"initial_balances"`
}

type EngineFaultPayload struct {
	Detail string `json:"detail"`
}

// emitter decouples event production (under the round lock) from sink
// delivery. Queue never blocks: when the buffer is full the event is
// dropped and counted.
type emitter struct {
	ch   chan Event
	done chan struct{}
	sink EventSink
	sync bool
}

func newEmitter(sink EventSink, buffer int) *emitter {
	em := &emitter{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
		sink: sink,
	}
	go em.loop()
	return em
}

// newSyncEmitter delivers events inline. Only safe with non-blocking
// sinks; used where deterministic delivery matters more than latency.
func newSyncEmitter(sink EventSink) *emitter {
	return &emitter{sink: sink, sync: true}
}

func (em *emitter) loop() {
	for ev := range em.ch {
		em.sink.Emit(ev)
	}
	close(em.done)
}

func (em *emitter) queue(ev Event) {
	if em.sync {
		em.sink.Emit(ev)
		return
	}
	select {
	case em.ch <- ev:
	default:
		util.Metrics.EventDropped()
		eventLogger.Warn().
			Str("eventType", string(ev.Type)).
			Str("roundID", ev.RoundID).
			Msg("Event buffer full, dropping event")
	}
}

// stop drains the queue and waits for the dispatch loop to exit.
func (em *emitter) stop() {
	if em.sync {
		return
	}
	close(em.ch)
	<-em.done
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(Event) {}
