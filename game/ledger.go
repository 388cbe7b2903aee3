package game

import "fmt"

// Ledger owns the money and card state of one round: player balances,
// hands, the pot and the trade log. Every mutation keeps the
// conservation invariants; Verify re-checks them after each accepted
// mutation and any failure faults the round.
type Ledger struct {
	players   map[string]*Player
	joinOrder []string
	pot       int
	trades    []Trade

	initialBalances map[string]int
	initialHands    map[string]map[Suit]int
	suitCounts      map[Suit]int

	// moneyBaseline is the constant sum of balances + pot + residue
	// between deal and settlement.
	moneyBaseline int
	residue       int
}

func NewLedger() *Ledger {
	return &Ledger{
		players: make(map[string]*Player),
	}
}

func (l *Ledger) AddPlayer(id, name string, balance int) *Player {
	p := &Player{
		ID:      id,
		Name:    name,
		Balance: balance,
		Hand:    emptyHand(),
	}
	l.players[id] = p
	l.joinOrder = append(l.joinOrder, id)
	return p
}

func (l *Ledger) Player(id string) (*Player, bool) {
	p, ok := l.players[id]
	return p, ok
}

func (l *Ledger) NumPlayers() int {
	return len(l.players)
}

// PlayerIDs returns the ids in join order.
func (l *Ledger) PlayerIDs() []string {
	ids := make([]string, len(l.joinOrder))
	copy(ids, l.joinOrder)
	return ids
}

func (l *Ledger) Pot() int {
	return l.pot
}

func (l *Ledger) Trades() []Trade {
	return l.trades
}

// SetDeal assigns hands to players in join order and records the
// initial snapshots used at settlement and in analytics events.
func (l *Ledger) SetDeal(deal *Deal) {
	l.suitCounts = deal.SuitCounts
	l.initialHands = make(map[string]map[Suit]int, len(l.joinOrder))
	for i, id := range l.joinOrder {
		l.players[id].Hand = copyHand(deal.Hands[i])
		l.initialHands[id] = copyHand(deal.Hands[i])
	}
}

// AnteAll debits every player and funds the pot, then snapshots the
// post-ante balances.
func (l *Ledger) AnteAll(amount int) {
	l.initialBalances = make(map[string]int, len(l.players))
	for _, id := range l.joinOrder {
		p := l.players[id]
		p.Balance -= amount
		l.pot += amount
		p.InitialBalance = p.Balance
		l.initialBalances[id] = p.Balance
	}
	l.moneyBaseline = 0
	for _, p := range l.players {
		l.moneyBaseline += p.Balance
	}
	l.moneyBaseline += l.pot
}

func (l *Ledger) CanFund(id string, price int) bool {
	p, ok := l.players[id]
	return ok && p.Balance >= price
}

func (l *Ledger) CanDeliver(id string, suit Suit) bool {
	p, ok := l.players[id]
	return ok && p.Hand[suit] >= 1
}

// Transfer moves one card of suit from seller to buyer and price
// dollars from buyer to seller, and appends the trade.
func (l *Ledger) Transfer(buyer, seller string, suit Suit, price int) (Trade, error) {
	b := l.players[buyer]
	s := l.players[seller]
	if b.Balance < price {
		return Trade{}, InvariantError{Detail: fmt.Sprintf("buyer %s cannot fund trade at %d", buyer, price)}
	}
	if s.Hand[suit] < 1 {
		return Trade{}, InvariantError{Detail: fmt.Sprintf("seller %s holds no %s", seller, suit)}
	}
	s.Hand[suit]--
	b.Hand[suit]++
	b.Balance -= price
	s.Balance += price
	tr := Trade{Buyer: buyer, Seller: seller, Suit: suit, Price: price}
	l.trades = append(l.trades, tr)
	return tr, nil
}

// Credit adds amount to one player's balance out of the pot.
func (l *Ledger) Credit(id string, amount int) {
	l.players[id].Balance += amount
	l.pot -= amount
}

// CloseOut zeroes the pot, keeping any unclaimed remainder as residue
// so money conservation still holds.
func (l *Ledger) CloseOut() {
	l.residue += l.pot
	l.pot = 0
}

func (l *Ledger) Balances() map[string]int {
	out := make(map[string]int, len(l.players))
	for id, p := range l.players {
		out[id] = p.Balance
	}
	return out
}

func (l *Ledger) Hands() map[string]map[Suit]int {
	out := make(map[string]map[Suit]int, len(l.players))
	for id, p := range l.players {
		out[id] = copyHand(p.Hand)
	}
	return out
}

func (l *Ledger) InitialBalances() map[string]int {
	out := make(map[string]int, len(l.initialBalances))
	for id, b := range l.initialBalances {
		out[id] = b
	}
	return out
}

func (l *Ledger) InitialHands() map[string]map[Suit]int {
	out := make(map[string]map[Suit]int, len(l.initialHands))
	for id, h := range l.initialHands {
		out[id] = copyHand(h)
	}
	return out
}

// Verify re-checks card conservation, money conservation and solvency.
// Only meaningful after the deal (suitCounts set).
func (l *Ledger) Verify() error {
	if l.suitCounts == nil {
		return nil
	}
	for _, s := range Suits {
		total := 0
		for _, p := range l.players {
			if p.Hand[s] < 0 {
				return InvariantError{Detail: fmt.Sprintf("player %s has negative %s count", p.ID, s)}
			}
			total += p.Hand[s]
		}
		if total != l.suitCounts[s] {
			return InvariantError{Detail: fmt.Sprintf("suit %s count %d != dealt %d", s, total, l.suitCounts[s])}
		}
	}
	money := l.pot + l.residue
	for _, p := range l.players {
		if p.Balance < 0 {
			return InvariantError{Detail: fmt.Sprintf("player %s has negative balance %d", p.ID, p.Balance)}
		}
		money += p.Balance
	}
	if money != l.moneyBaseline {
		return InvariantError{Detail: fmt.Sprintf("money total %d != baseline %d", money, l.moneyBaseline)}
	}
	return nil
}
