package game

import (
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"
)

var roundTimerLogger = log.With().Str("logger_name", "game::round_timer").Logger()

// reportedScale is the fixed display range for time_left. The real
// trading duration is renormalized so clients always see 240..0.
const reportedScale = 240

// reportedTimeLeft maps the real remaining time onto [0, 240]:
// ceil(240 * remaining / duration).
func reportedTimeLeft(remaining, duration time.Duration) int {
	if remaining <= 0 {
		return 0
	}
	if remaining >= duration {
		return reportedScale
	}
	rep := (reportedScale*remaining + duration - 1) / duration
	return int(rep)
}

// RoundTimer drives the trading deadline. It polls the injected Clock
// so tests control expiry; the callback fires at most once per Reset.
type RoundTimer struct {
	chReset   chan time.Time
	chEndLoop chan bool

	clock    Clock
	callback func()
}

func NewRoundTimer(clock Clock, callback func()) *RoundTimer {
	return &RoundTimer{
		chReset:   make(chan time.Time, 1),
		chEndLoop: make(chan bool, 1),
		clock:     clock,
		callback:  callback,
	}
}

func (t *RoundTimer) Run() {
	go t.loop()
}

func (t *RoundTimer) Destroy() {
	t.chEndLoop <- true
}

// Reset arms the timer for a new deadline. It never blocks: callers
// hold the round lock, and the loop may be stuck behind that same lock
// inside the callback. A stale undelivered deadline is replaced.
func (t *RoundTimer) Reset(deadline time.Time) {
	select {
	case <-t.chReset:
	default:
	}
	t.chReset <- deadline
}

func (t *RoundTimer) loop() {
	defer func() {
		err := recover()
		if err != nil {
			debug.PrintStack()
			roundTimerLogger.Error().
				Msgf("Round timer loop returning due to panic: %s\nStack Trace:\n%s", err, string(debug.Stack()))
		}
	}()

	var deadline time.Time
	paused := true
	for {
		select {
		case <-t.chEndLoop:
			return
		case d := <-t.chReset:
			deadline = d
			paused = false
		default:
			if !paused {
				if !t.clock.Now().Before(deadline) {
					// Deadline passed. Fire once and wait for the
					// next round's Reset.
					t.callback()
					paused = true
				}
			}
			time.Sleep(100 * time.Millisecond)
		}
	}
}
