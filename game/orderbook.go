package game

// Book is the per-suit order book. Each side holds at most the single
// current best order; if both are present the bid is strictly below
// the ask (crossing prices match at admission instead of resting).
type Book struct {
	Suit Suit
	bid  *Order
	ask  *Order
}

func NewBook(suit Suit) *Book {
	return &Book{Suit: suit}
}

func (b *Book) Best(side Side) *Order {
	if side == SideBuy {
		return b.bid
	}
	return b.ask
}

// Improves reports whether price strictly betters the current best on
// side. An empty side is always improved.
func (b *Book) Improves(side Side, price int) bool {
	best := b.Best(side)
	if best == nil {
		return true
	}
	if side == SideBuy {
		return price > best.Price
	}
	return price < best.Price
}

// Crosses reports whether an incoming order at price would strike the
// resting order on the opposite side.
func (b *Book) Crosses(side Side, price int) *Order {
	opp := b.Best(side.Opposite())
	if opp == nil {
		return nil
	}
	if side == SideBuy && price >= opp.Price {
		return opp
	}
	if side == SideSell && price <= opp.Price {
		return opp
	}
	return nil
}

// Rest places the order on its side, returning the displaced order if
// one was resting there.
func (b *Book) Rest(o *Order) *Order {
	var displaced *Order
	if o.Side == SideBuy {
		displaced = b.bid
		b.bid = o
	} else {
		displaced = b.ask
		b.ask = o
	}
	return displaced
}

// Remove clears one side and returns the removed order, if any.
func (b *Book) Remove(side Side) *Order {
	var o *Order
	if side == SideBuy {
		o, b.bid = b.bid, nil
	} else {
		o, b.ask = b.ask, nil
	}
	return o
}

func (b *Book) Quote() MarketQuote {
	var q MarketQuote
	if b.bid != nil {
		q.HighestBid = &OrderQuote{PlayerID: b.bid.Owner, Price: b.bid.Price}
	}
	if b.ask != nil {
		q.LowestAsk = &OrderQuote{PlayerID: b.ask.Owner, Price: b.ask.Price}
	}
	return q
}

// WellFormed reports whether the book respects the single-level
// invariant: when both sides are present the bid is below the ask.
func (b *Book) WellFormed() bool {
	if b.bid != nil && b.ask != nil {
		return b.bid.Price < b.ask.Price
	}
	return true
}

// cancelMatches implements the bulk-cancel threshold rule: -1 cancels
// unconditionally, otherwise bids at or above and asks at or below the
// threshold are canceled.
func cancelMatches(side Side, restingPrice, threshold int) bool {
	if threshold == -1 {
		return true
	}
	if side == SideBuy {
		return restingPrice >= threshold
	}
	return restingPrice <= threshold
}
