package game

import (
	"math/rand"

	"figgie.com/server/util/random"
)

// deckSize is fixed by the game: 8 + 10 + 10 + 12.
const deckSize = 40

// Deal is the outcome of shuffling and dealing one round: the suit
// counts, the derived goal suit, and one hand per player slot.
type Deal struct {
	SuitCounts map[Suit]int
	// EightSuit is the rare suit. Its companion receives 12 cards and
	// is the goal suit.
	EightSuit Suit
	GoalSuit  Suit
	Hands     []map[Suit]int
}

// NewRand returns a math/rand generator seeded from crypto/rand.
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(random.NewSeed()))
}

// NewDeal picks the suit counts, derives the goal suit, shuffles the
// 40-card deck and deals it round-robin over numPlayers hands.
//
// The 8-card suit is chosen uniformly; its companion gets 12 cards and
// the opposite-color pair gets 10 each. The goal suit is the companion
// of the 8-card suit.
func NewDeal(numPlayers int, rng *rand.Rand) *Deal {
	eight := Suits[rng.Intn(len(Suits))]
	twelve := eight.Companion()

	counts := make(map[Suit]int, len(Suits))
	counts[eight] = 8
	counts[twelve] = 12
	for _, s := range Suits {
		if s != eight && s != twelve {
			counts[s] = 10
		}
	}

	deck := make([]Suit, 0, deckSize)
	for _, s := range Suits {
		for i := 0; i < counts[s]; i++ {
			deck = append(deck, s)
		}
	}
	for i := range deck {
		loc := int(rng.Uint32() % deckSize)
		deck[i], deck[loc] = deck[loc], deck[i]
	}

	hands := make([]map[Suit]int, numPlayers)
	for i := range hands {
		hands[i] = emptyHand()
	}
	per := deckSize / numPlayers
	idx := 0
	for i := 0; i < per; i++ {
		for p := 0; p < numPlayers; p++ {
			hands[p][deck[idx]]++
			idx++
		}
	}

	return &Deal{
		SuitCounts: counts,
		EightSuit:  eight,
		GoalSuit:   twelve,
		Hands:      hands,
	}
}

func emptyHand() map[Suit]int {
	h := make(map[Suit]int, len(Suits))
	for _, s := range Suits {
		h[s] = 0
	}
	return h
}

func copyHand(h map[Suit]int) map[Suit]int {
	c := make(map[Suit]int, len(h))
	for s, n := range h {
		c[s] = n
	}
	return c
}
