package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dealtLedger(t *testing.T, seed int64) (*Ledger, []string) {
	t.Helper()
	l := NewLedger()
	ids := []string{"p1", "p2", "p3", "p4"}
	for _, id := range ids {
		l.AddPlayer(id, "name-"+id, 350)
	}
	l.SetDeal(NewDeal(4, rand.New(rand.NewSource(seed))))
	l.AnteAll(50)
	return l, ids
}

func TestLedgerAnteAll(t *testing.T) {
	l, ids := dealtLedger(t, 1)
	assert.Equal(t, 200, l.Pot())
	for _, id := range ids {
		p, ok := l.Player(id)
		require.True(t, ok)
		assert.Equal(t, 300, p.Balance)
		assert.Equal(t, 300, p.InitialBalance)
	}
	assert.NoError(t, l.Verify())
}

func TestLedgerTransfer(t *testing.T) {
	l, ids := dealtLedger(t, 2)
	buyer, _ := l.Player(ids[0])
	var suit Suit
	var seller *Player
	for _, id := range ids[1:] {
		p, _ := l.Player(id)
		for _, s := range Suits {
			if p.Hand[s] > 0 {
				seller, suit = p, s
				break
			}
		}
		if seller != nil {
			break
		}
	}
	require.NotNil(t, seller)

	beforeCards := buyer.Hand[suit]
	tr, err := l.Transfer(buyer.ID, seller.ID, suit, 7)
	require.NoError(t, err)
	assert.Equal(t, Trade{Buyer: buyer.ID, Seller: seller.ID, Suit: suit, Price: 7}, tr)
	assert.Equal(t, 293, buyer.Balance)
	assert.Equal(t, 307, seller.Balance)
	assert.Equal(t, beforeCards+1, buyer.Hand[suit])
	assert.Len(t, l.Trades(), 1)
	assert.NoError(t, l.Verify())
}

func TestLedgerTransferPreconditions(t *testing.T) {
	l, ids := dealtLedger(t, 3)
	seller, _ := l.Player(ids[1])
	var suit Suit
	for _, s := range Suits {
		if seller.Hand[s] > 0 {
			suit = s
			break
		}
	}

	_, err := l.Transfer(ids[0], ids[1], suit, 10000)
	require.Error(t, err)
	assert.IsType(t, InvariantError{}, err)

	var empty Suit
	for _, s := range Suits {
		if seller.Hand[s] == 0 {
			empty = s
			break
		}
	}
	if empty != "" {
		_, err = l.Transfer(ids[0], ids[1], empty, 1)
		require.Error(t, err)
	}
}

func TestLedgerCanFundCanDeliver(t *testing.T) {
	l, ids := dealtLedger(t, 4)
	assert.True(t, l.CanFund(ids[0], 300))
	assert.False(t, l.CanFund(ids[0], 301))
	assert.False(t, l.CanFund("nobody", 1))
	p, _ := l.Player(ids[0])
	for _, s := range Suits {
		assert.Equal(t, p.Hand[s] >= 1, l.CanDeliver(ids[0], s))
	}
}

func TestLedgerSettlementFlowConserves(t *testing.T) {
	l, ids := dealtLedger(t, 5)
	l.Credit(ids[0], 120)
	assert.Equal(t, 80, l.Pot())
	l.CloseOut()
	assert.Equal(t, 0, l.Pot())
	assert.NoError(t, l.Verify())

	p, _ := l.Player(ids[0])
	assert.Equal(t, 420, p.Balance)
}

func TestLedgerVerifyDetectsTampering(t *testing.T) {
	l, ids := dealtLedger(t, 6)
	p, _ := l.Player(ids[0])
	p.Balance += 1
	assert.Error(t, l.Verify())
	p.Balance -= 1
	require.NoError(t, l.Verify())

	for _, s := range Suits {
		if p.Hand[s] > 0 {
			p.Hand[s]--
			break
		}
	}
	assert.Error(t, l.Verify())
}

func TestLedgerVerifyBeforeDeal(t *testing.T) {
	l := NewLedger()
	l.AddPlayer("p1", "alice", 350)
	assert.NoError(t, l.Verify())
}
