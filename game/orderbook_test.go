package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookRestAndQuote(t *testing.T) {
	b := NewBook(SuitHearts)
	assert.Nil(t, b.Best(SideBuy))
	assert.Nil(t, b.Best(SideSell))

	displaced := b.Rest(&Order{ID: "o1", Owner: "a", Side: SideBuy, Suit: SuitHearts, Price: 5})
	assert.Nil(t, displaced)
	require.NotNil(t, b.Best(SideBuy))
	assert.Equal(t, 5, b.Best(SideBuy).Price)

	q := b.Quote()
	require.NotNil(t, q.HighestBid)
	assert.Equal(t, "a", q.HighestBid.PlayerID)
	assert.Nil(t, q.LowestAsk)
}

func TestBookImproves(t *testing.T) {
	b := NewBook(SuitClubs)
	assert.True(t, b.Improves(SideBuy, 1))
	b.Rest(&Order{ID: "o1", Owner: "a", Side: SideBuy, Price: 5})
	assert.True(t, b.Improves(SideBuy, 6))
	assert.False(t, b.Improves(SideBuy, 5))
	assert.False(t, b.Improves(SideBuy, 4))

	b.Rest(&Order{ID: "o2", Owner: "a", Side: SideSell, Price: 9})
	assert.True(t, b.Improves(SideSell, 8))
	assert.False(t, b.Improves(SideSell, 9))
	assert.False(t, b.Improves(SideSell, 10))
}

func TestBookCrosses(t *testing.T) {
	b := NewBook(SuitSpades)
	b.Rest(&Order{ID: "ask", Owner: "a", Side: SideSell, Price: 8})
	assert.Nil(t, b.Crosses(SideBuy, 7))
	require.NotNil(t, b.Crosses(SideBuy, 8))
	assert.Equal(t, "ask", b.Crosses(SideBuy, 9).ID)

	b2 := NewBook(SuitSpades)
	b2.Rest(&Order{ID: "bid", Owner: "b", Side: SideBuy, Price: 6})
	assert.Nil(t, b2.Crosses(SideSell, 7))
	require.NotNil(t, b2.Crosses(SideSell, 6))
	assert.Equal(t, "bid", b2.Crosses(SideSell, 5).ID)
}

func TestBookDisplacement(t *testing.T) {
	b := NewBook(SuitDiamonds)
	b.Rest(&Order{ID: "o1", Owner: "a", Side: SideBuy, Price: 5})
	displaced := b.Rest(&Order{ID: "o2", Owner: "b", Side: SideBuy, Price: 6})
	require.NotNil(t, displaced)
	assert.Equal(t, "o1", displaced.ID)
	assert.Equal(t, "o2", b.Best(SideBuy).ID)
}

func TestBookRemove(t *testing.T) {
	b := NewBook(SuitHearts)
	b.Rest(&Order{ID: "o1", Owner: "a", Side: SideSell, Price: 7})
	removed := b.Remove(SideSell)
	require.NotNil(t, removed)
	assert.Equal(t, "o1", removed.ID)
	assert.Nil(t, b.Best(SideSell))
	assert.Nil(t, b.Remove(SideSell))
}

func TestBookWellFormed(t *testing.T) {
	b := NewBook(SuitClubs)
	assert.True(t, b.WellFormed())
	b.Rest(&Order{ID: "o1", Owner: "a", Side: SideBuy, Price: 5})
	assert.True(t, b.WellFormed())
	b.Rest(&Order{ID: "o2", Owner: "b", Side: SideSell, Price: 6})
	assert.True(t, b.WellFormed())
	b.Rest(&Order{ID: "o3", Owner: "b", Side: SideSell, Price: 4})
	assert.False(t, b.WellFormed())
}

func TestCancelMatches(t *testing.T) {
	assert.True(t, cancelMatches(SideBuy, 5, -1))
	assert.True(t, cancelMatches(SideSell, 5, -1))
	assert.True(t, cancelMatches(SideBuy, 5, 5))
	assert.True(t, cancelMatches(SideBuy, 6, 5))
	assert.False(t, cancelMatches(SideBuy, 4, 5))
	assert.True(t, cancelMatches(SideSell, 5, 5))
	assert.True(t, cancelMatches(SideSell, 4, 5))
	assert.False(t, cancelMatches(SideSell, 6, 5))
}
