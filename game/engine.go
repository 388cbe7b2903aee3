package game

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"

	"figgie.com/server/util"
)

var engineLogger = log.With().Str("logger_name", "game::engine").Logger()

// historySize bounds the in-process archive of completed rounds.
const historySize = 64

// eventBuffer is the emitter queue depth. Sized for a full round of a
// busy lobby; overflow is dropped and counted.
const eventBuffer = 1024

// RoundRecord is the archived summary of a completed round.
type RoundRecord struct {
	RoundID       string
	Results       *Results
	FinalBalances map[string]int
}

// Engine is the facade the transport talks to. It owns the single
// live round, the shared event emitter and the round timer, and
// performs the completed-to-waiting reset on the first join after a
// round settles.
type Engine struct {
	mu sync.RWMutex

	cfg     RoundConfig
	clock   Clock
	em      *emitter
	timer   *RoundTimer
	round   *Round
	history *lru.Cache
}

func NewEngine(cfg RoundConfig, clock Clock, sink EventSink) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	history, err := lru.New(historySize)
	if err != nil {
		panic(err)
	}
	e := &Engine{
		cfg:     cfg,
		clock:   clock,
		em:      newEmitter(sink, eventBuffer),
		history: history,
	}
	e.timer = NewRoundTimer(clock, e.onDeadline)
	e.timer.Run()
	e.round = newRound(cfg, clock, e.em, e.timer, NewRand())
	engineLogger.Info().
		Str("roundID", e.round.ID()).
		Int("numPlayers", cfg.NumPlayers).
		Dur("duration", cfg.TradingDuration).
		Msg("Engine initialized")
	return e
}

// Close stops the timer loop and drains the event queue.
func (e *Engine) Close() {
	e.timer.Destroy()
	e.em.stop()
}

// Join registers a new player. The first join after a completed round
// archives it and resets to a fresh waiting round.
func (e *Engine) Join(name string) (string, error) {
	if name == "" {
		return "", ErrNameRequired
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.round.Phase() == PhaseCompleted {
		e.resetLocked()
	}
	return e.round.Join(name)
}

func (e *Engine) resetLocked() {
	if rec := e.round.Record(); rec != nil {
		e.history.Add(rec.RoundID, rec)
	}
	old := e.round.ID()
	e.round = newRound(e.cfg, e.clock, e.em, e.timer, NewRand())
	util.Metrics.SetActivePlayers(0)
	engineLogger.Info().
		Str("roundID", e.round.ID()).
		Str("previousRoundID", old).
		Msg("Round reset to waiting")
}

// StateFor returns the caller's snapshot of the current round.
func (e *Engine) StateFor(pid string) (*Snapshot, error) {
	return e.currentRound().StateFor(pid)
}

// SubmitAction submits an order or cancel for the current round.
func (e *Engine) SubmitAction(pid string, req ActionRequest) (*ActionResult, error) {
	return e.currentRound().SubmitAction(pid, req)
}

// Phase reports the current round's phase.
func (e *Engine) Phase() Phase {
	return e.currentRound().Phase()
}

// RoundID reports the current round's id.
func (e *Engine) RoundID() string {
	return e.currentRound().ID()
}

// CompletedRounds returns how many settled rounds are in the archive.
func (e *Engine) CompletedRounds() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.history.Len()
}

// RoundRecord looks up an archived round by id.
func (e *Engine) RoundRecord(roundID string) (*RoundRecord, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.history.Get(roundID)
	if !ok {
		return nil, false
	}
	return v.(*RoundRecord), true
}

func (e *Engine) currentRound() *Round {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.round
}

// onDeadline fires from the timer loop; the round ignores it unless
// it is still trading past its deadline.
func (e *Engine) onDeadline() {
	e.currentRound().Expire()
}
