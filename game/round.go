package game

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/rs/zerolog/log"

	"figgie.com/server/util"
)

var roundLogger = log.With().Str("logger_name", "game::round").Logger()

const (
	eventStart    = "start"
	eventComplete = "complete"
	eventFault    = "fault"
)

// Round is the authoritative state machine of one game: the lobby,
// the deal, the four books, the ledger and the deadline. Every
// mutation is serialized through the round's lock; snapshots take the
// read side.
type Round struct {
	mu sync.RWMutex

	id    string
	cfg   RoundConfig
	clock Clock
	rng   *rand.Rand

	sm     *fsm.FSM
	ledger *Ledger
	books  map[Suit]*Book
	deal   *Deal

	startedAt time.Time
	deadline  time.Time
	results   *Results
	faultErr  error

	em    *emitter
	timer *RoundTimer
}

// NewRound builds a standalone round delivering events synchronously
// to sink. The engine facade uses newRound with its shared emitter and
// timer instead.
func NewRound(cfg RoundConfig, clock Clock, sink EventSink) *Round {
	if sink == nil {
		sink = NopSink{}
	}
	return newRound(cfg, clock, newSyncEmitter(sink), nil, NewRand())
}

func newRound(cfg RoundConfig, clock Clock, em *emitter, timer *RoundTimer, rng *rand.Rand) *Round {
	r := &Round{
		id:     uuid.New().String(),
		cfg:    cfg,
		clock:  clock,
		rng:    rng,
		ledger: NewLedger(),
		books:  make(map[Suit]*Book, len(Suits)),
		em:     em,
		timer:  timer,
	}
	for _, s := range Suits {
		r.books[s] = NewBook(s)
	}
	r.sm = fsm.NewFSM(
		string(PhaseWaiting),
		fsm.Events{
			{Name: eventStart, Src: []string{string(PhaseWaiting)}, Dst: string(PhaseTrading)},
			{Name: eventComplete, Src: []string{string(PhaseTrading)}, Dst: string(PhaseCompleted)},
			{Name: eventFault, Src: []string{string(PhaseWaiting), string(PhaseTrading), string(PhaseCompleted)}, Dst: string(PhaseFaulted)},
		},
		fsm.Callbacks{
			"enter_state": func(e *fsm.Event) {
				roundLogger.Info().
					Str("roundID", r.id).
					Str("phase", e.Dst).
					Msg("Round phase changed")
			},
		},
	)
	return r
}

func (r *Round) ID() string {
	return r.id
}

func (r *Round) Phase() Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.phaseLocked()
}

func (r *Round) phaseLocked() Phase {
	return Phase(r.sm.Current())
}

// Join adds a player in the waiting phase. When the lobby fills, the
// round atomically deals, antes, starts the clock and moves to
// trading.
func (r *Round) Join(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.phaseLocked() {
	case PhaseFaulted:
		return "", ErrRoundFaulted
	case PhaseWaiting:
	default:
		return "", ErrCannotJoin
	}
	if r.ledger.NumPlayers() >= r.cfg.NumPlayers {
		return "", ErrGameFull
	}

	pid := uuid.New().String()
	r.ledger.AddPlayer(pid, name, r.cfg.StartingBalance)
	util.Metrics.SetActivePlayers(r.ledger.NumPlayers())
	roundLogger.Info().
		Str("roundID", r.id).
		Str("playerID", pid).
		Str("playerName", name).
		Msg("Player joined")
	r.queueEvent(EventPlayerJoined, PlayerJoinedPayload{PlayerID: pid, Name: name})

	if r.ledger.NumPlayers() == r.cfg.NumPlayers {
		r.startLocked()
	}
	return pid, nil
}

func (r *Round) startLocked() {
	r.deal = NewDeal(r.cfg.NumPlayers, r.rng)
	r.ledger.SetDeal(r.deal)
	r.ledger.AnteAll(r.cfg.Ante())
	r.startedAt = r.clock.Now()
	r.deadline = r.startedAt.Add(r.cfg.TradingDuration)
	if err := r.sm.Event(eventStart); err != nil {
		r.faultLocked(InvariantError{Detail: err.Error()})
		return
	}
	if r.timer != nil {
		r.timer.Reset(r.deadline)
	}
	util.Metrics.RoundStarted()

	names := make(map[string]string, r.cfg.NumPlayers)
	for _, id := range r.ledger.PlayerIDs() {
		p, _ := r.ledger.Player(id)
		names[id] = p.Name
	}
	roundLogger.Info().
		Str("roundID", r.id).
		Str("goalSuit", string(r.deal.GoalSuit)).
		Int("pot", r.ledger.Pot()).
		Msg("Round started")
	r.queueEvent(EventRoundStarted, RoundStartedPayload{
		Players:         names,
		InitialBalances: r.ledger.InitialBalances(),
		DealFingerprint: DealFingerprint{SuitCounts: r.deal.SuitCounts, GoalSuit: r.deal.GoalSuit},
		DurationSec:     int(r.cfg.TradingDuration / time.Second),
	})
	r.checkLocked()
}

// Expire completes the round if the trading deadline has passed. Safe
// to call at any time; the timer loop and in-flight requests may race
// here.
func (r *Round) Expire() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maybeExpireLocked()
}

func (r *Round) maybeExpireLocked() bool {
	if r.phaseLocked() != PhaseTrading {
		return false
	}
	if r.clock.Now().Before(r.deadline) {
		return false
	}
	r.completeLocked()
	return true
}

func (r *Round) completeLocked() {
	// Resting orders do not survive the trading phase. Book clearing
	// at expiry is not an explicit cancel, so no cancel events here.
	for _, s := range Suits {
		r.books[s].Remove(SideBuy)
		r.books[s].Remove(SideSell)
	}

	r.results = Settle(r.ledger.PlayerIDs(), r.ledger.Hands(), r.ledger.Pot(), r.deal.GoalSuit, r.cfg.GoalBonus)
	for _, id := range r.ledger.PlayerIDs() {
		if b := r.results.Bonuses[id]; b > 0 {
			r.ledger.Credit(id, b)
		}
	}
	for _, id := range r.results.Winners {
		if r.results.ShareEach > 0 {
			r.ledger.Credit(id, r.results.ShareEach)
		}
	}
	r.ledger.CloseOut()

	if err := r.sm.Event(eventComplete); err != nil {
		r.faultLocked(InvariantError{Detail: err.Error()})
		return
	}
	util.Metrics.RoundCompleted()
	roundLogger.Info().
		Str("roundID", r.id).
		Str("goalSuit", string(r.results.GoalSuit)).
		Ints("shares", []int{r.results.ShareEach, r.results.Residue}).
		Msg("Round completed")
	r.queueEvent(EventRoundCompleted, RoundCompletedPayload{
		Results:         r.results,
		FinalBalances:   r.ledger.Balances(),
		InitialHands:    r.ledger.InitialHands(),
		FinalHands:      r.ledger.Hands(),
		InitialBalances: r.ledger.InitialBalances(),
	})
	r.checkLocked()
}

// SubmitAction dispatches an order or cancel for pid. All admission
// rules run under the round lock, so a success result is visible to
// every subsequent snapshot.
func (r *Round) SubmitAction(pid string, req ActionRequest) (*ActionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phaseLocked() == PhaseFaulted {
		return nil, ErrRoundFaulted
	}
	if _, ok := r.ledger.Player(pid); !ok {
		return nil, ErrUnknownPlayer
	}
	if r.phaseLocked() != PhaseTrading {
		return nil, ErrTradingNotActive
	}
	if r.maybeExpireLocked() {
		return nil, ErrRoundEnded
	}

	switch req.ActionType {
	case ActionOrder:
		return r.placeOrderLocked(pid, req)
	case ActionCancel:
		return r.cancelLocked(pid, req)
	}
	return nil, ErrInvalidActionType
}

// placeOrderLocked runs the admission ladder: schema, self-cross,
// match, duplicate, improvement, funds/holdings, rest.
func (r *Round) placeOrderLocked(pid string, req ActionRequest) (*ActionResult, error) {
	side := Side(req.OrderType)
	if !side.Valid() {
		util.Metrics.OrderRejected()
		return nil, ErrInvalidOrderType
	}
	suit := Suit(req.Suit)
	if !suit.Valid() {
		util.Metrics.OrderRejected()
		return nil, ErrInvalidSuit
	}
	if req.Price <= 0 {
		util.Metrics.OrderRejected()
		return nil, ErrInvalidPrice
	}

	book := r.books[suit]

	// A crossing order against your own resting order is rejected
	// outright; it neither trades nor replaces.
	if opp := book.Crosses(side, req.Price); opp != nil && opp.Owner == pid {
		util.Metrics.OrderRejected()
		return nil, ErrSelfStrike
	}

	if resting := book.Crosses(side, req.Price); resting != nil {
		return r.executeLocked(pid, side, suit, resting)
	}

	if best := book.Best(side); best != nil {
		if best.Owner == pid {
			util.Metrics.OrderRejected()
			return nil, ErrDuplicateOrder
		}
		if !book.Improves(side, req.Price) {
			util.Metrics.OrderRejected()
			return nil, ErrNotImproving
		}
	}

	if side == SideBuy && !r.ledger.CanFund(pid, req.Price) {
		util.Metrics.OrderRejected()
		return nil, ErrInsufficientFunds
	}
	if side == SideSell && !r.ledger.CanDeliver(pid, suit) {
		util.Metrics.OrderRejected()
		return nil, ErrNotEnoughCards
	}

	order := &Order{
		ID:    uuid.New().String(),
		Owner: pid,
		Side:  side,
		Suit:  suit,
		Price: req.Price,
	}
	displaced := book.Rest(order)
	if displaced != nil {
		r.queueCancelLocked(displaced, order)
	}
	util.Metrics.OrderAccepted()
	r.queueEvent(EventOrderRested, OrderRestedPayload{
		OrderID:  order.ID,
		Owner:    order.Owner,
		Side:     order.Side,
		Suit:     order.Suit,
		Price:    order.Price,
		TimeLeft: r.timeLeftLocked(),
	})
	r.checkLocked()
	if r.phaseLocked() == PhaseFaulted {
		return nil, ErrRoundFaulted
	}
	return &ActionResult{OrderID: order.ID}, nil
}

// executeLocked strikes the incoming order against the resting one at
// the resting order's price.
func (r *Round) executeLocked(pid string, side Side, suit Suit, resting *Order) (*ActionResult, error) {
	var buyer, seller string
	if side == SideBuy {
		buyer, seller = pid, resting.Owner
	} else {
		buyer, seller = resting.Owner, pid
	}
	if !r.ledger.CanFund(buyer, resting.Price) {
		util.Metrics.OrderRejected()
		return nil, ErrInsufficientFunds
	}
	if !r.ledger.CanDeliver(seller, suit) {
		util.Metrics.OrderRejected()
		return nil, ErrNotEnoughCards
	}

	r.books[suit].Remove(resting.Side)
	tr, err := r.ledger.Transfer(buyer, seller, suit, resting.Price)
	if err != nil {
		r.faultLocked(err)
		return nil, ErrRoundFaulted
	}
	util.Metrics.OrderAccepted()
	util.Metrics.TradeExecuted()
	roundLogger.Info().
		Str("roundID", r.id).
		Str("suit", string(suit)).
		Int("price", tr.Price).
		Str("buyer", buyer).
		Str("seller", seller).
		Msg("Trade executed")
	r.queueEvent(EventTransaction, TransactionPayload{
		Buyer:    buyer,
		Seller:   seller,
		Suit:     suit,
		Price:    tr.Price,
		TimeLeft: r.timeLeftLocked(),
	})

	r.sweepLocked(buyer, seller)
	r.checkLocked()
	if r.phaseLocked() == PhaseFaulted {
		return nil, ErrRoundFaulted
	}
	out := tr
	return &ActionResult{Trade: &out}, nil
}

// sweepLocked cancels any resting order of the given parties that the
// trade made infeasible: bids their owner can no longer fund, asks on
// suits they no longer hold.
func (r *Round) sweepLocked(parties ...string) {
	owned := make(map[string]bool, len(parties))
	for _, p := range parties {
		owned[p] = true
	}
	for _, s := range Suits {
		book := r.books[s]
		if bid := book.Best(SideBuy); bid != nil && owned[bid.Owner] && !r.ledger.CanFund(bid.Owner, bid.Price) {
			book.Remove(SideBuy)
			r.queueCancelLocked(bid, nil)
		}
		if ask := book.Best(SideSell); ask != nil && owned[ask.Owner] && !r.ledger.CanDeliver(ask.Owner, s) {
			book.Remove(SideSell)
			r.queueCancelLocked(ask, nil)
		}
	}
}

// cancelLocked applies the bulk-cancel filter over the cartesian
// product of selected sides and suits.
func (r *Round) cancelLocked(pid string, req ActionRequest) (*ActionResult, error) {
	var sides []Side
	switch req.OrderType {
	case string(SideBuy):
		sides = []Side{SideBuy}
	case string(SideSell):
		sides = []Side{SideSell}
	case CancelBoth:
		sides = []Side{SideBuy, SideSell}
	default:
		return nil, ErrInvalidOrderType
	}

	var suits []Suit
	if req.Suit == CancelAllSuits {
		suits = Suits
	} else {
		suit := Suit(req.Suit)
		if !suit.Valid() {
			return nil, ErrInvalidSuit
		}
		suits = []Suit{suit}
	}

	if req.Price < -1 {
		return nil, ErrInvalidCancelPrice
	}

	canceled := []string{}
	for _, suit := range suits {
		book := r.books[suit]
		for _, side := range sides {
			best := book.Best(side)
			if best == nil || best.Owner != pid {
				continue
			}
			if !cancelMatches(side, best.Price, req.Price) {
				continue
			}
			book.Remove(side)
			canceled = append(canceled, best.ID)
			r.queueCancelLocked(best, nil)
		}
	}
	r.checkLocked()
	if r.phaseLocked() == PhaseFaulted {
		return nil, ErrRoundFaulted
	}
	return &ActionResult{Canceled: canceled}, nil
}

// StateFor returns a deep-copied snapshot for pid. If the deadline has
// passed the round is completed first, so no snapshot ever reports a
// stale trading phase.
func (r *Round) StateFor(pid string) (*Snapshot, error) {
	r.mu.RLock()
	expired := r.phaseLocked() == PhaseTrading && !r.clock.Now().Before(r.deadline)
	if !expired {
		defer r.mu.RUnlock()
		return r.snapshotLocked(pid)
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.maybeExpireLocked()
	return r.snapshotLocked(pid)
}

func (r *Round) snapshotLocked(pid string) (*Snapshot, error) {
	if r.phaseLocked() == PhaseFaulted {
		return nil, ErrRoundFaulted
	}
	p, ok := r.ledger.Player(pid)
	if !ok {
		return nil, ErrUnknownPlayer
	}

	snap := &Snapshot{
		State:    r.phaseLocked(),
		Pot:      r.ledger.Pot(),
		Hand:     copyHand(p.Hand),
		Market:   make(map[Suit]MarketQuote, len(Suits)),
		Balances: r.ledger.Balances(),
	}
	if snap.State == PhaseTrading {
		tl := r.timeLeftLocked()
		snap.TimeLeft = &tl
	}
	for _, s := range Suits {
		snap.Market[s] = r.books[s].Quote()
	}
	trades := r.ledger.Trades()
	snap.Trades = make([]Trade, len(trades))
	copy(snap.Trades, trades)

	if snap.State == PhaseCompleted {
		results := *r.results
		snap.Results = &results
		snap.Hands = r.ledger.Hands()
		snap.InitialBalances = r.ledger.InitialBalances()
	}
	return snap, nil
}

// Record summarizes a completed round for the engine's history cache.
func (r *Round) Record() *RoundRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.phaseLocked() != PhaseCompleted {
		return nil
	}
	results := *r.results
	return &RoundRecord{
		RoundID:       r.id,
		Results:       &results,
		FinalBalances: r.ledger.Balances(),
	}
}

func (r *Round) timeLeftLocked() int {
	if r.phaseLocked() != PhaseTrading {
		return 0
	}
	return reportedTimeLeft(r.deadline.Sub(r.clock.Now()), r.cfg.TradingDuration)
}

func (r *Round) queueEvent(t EventType, payload interface{}) {
	if r.em == nil {
		return
	}
	r.em.queue(Event{
		Type:    t,
		RoundID: r.id,
		At:      r.clock.Now(),
		Payload: payload,
	})
}

func (r *Round) queueCancelLocked(old *Order, replacement *Order) {
	payload := CancelPayload{
		OrderID:  old.ID,
		Suit:     old.Suit,
		Side:     old.Side,
		OldOwner: old.Owner,
		OldPrice: old.Price,
		TimeLeft: r.timeLeftLocked(),
	}
	if replacement != nil {
		payload.NewOwner = &replacement.Owner
		payload.NewPrice = &replacement.Price
	}
	r.queueEvent(EventCancel, payload)
}

// checkLocked re-verifies the engine invariants after a mutation. Any
// violation is fatal to the round.
func (r *Round) checkLocked() {
	if err := r.ledger.Verify(); err != nil {
		r.faultLocked(err)
		return
	}
	for _, s := range Suits {
		if !r.books[s].WellFormed() {
			r.faultLocked(InvariantError{Detail: "crossed book on " + string(s)})
			return
		}
	}
}

func (r *Round) faultLocked(err error) {
	if r.phaseLocked() == PhaseFaulted {
		return
	}
	r.faultErr = err
	roundLogger.Error().
		Str("roundID", r.id).
		Msgf("Invariant violation, freezing round: %v", err)
	_ = r.sm.Event(eventFault)
	r.queueEvent(EventEngineFault, EngineFaultPayload{Detail: err.Error()})
}
