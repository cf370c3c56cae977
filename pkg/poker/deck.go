package poker

import (
	"fmt"
	"math/rand"
)

// Suit represents a card suit
type Suit string

const (
	Spades   Suit = "♠"
	Hearts   Suit = "♥"
	Diamonds Suit = "♦"
	Clubs    Suit = "♣"
)

// Suits lists the four suits in deck construction order.
var Suits = []Suit{Spades, Hearts, Diamonds, Clubs}

// Rank represents a card rank. Aces are high (14); the wheel straight is
// handled by the evaluator.
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// Card represents a playing card. Cards are values: two cards are equal when
// rank and suit match.
type Card struct {
	rank Rank
	suit Suit
}

// NewCard creates a card from its rank and suit
func NewCard(rank Rank, suit Suit) Card {
	return Card{rank: rank, suit: suit}
}

// Rank returns the card's rank
func (c Card) Rank() Rank {
	return c.rank
}

// Suit returns the card's suit
func (c Card) Suit() Suit {
	return c.suit
}

// IsValid reports whether the card is one of the 52 cards of a standard deck.
func (c Card) IsValid() bool {
	if c.rank < Two || c.rank > Ace {
		return false
	}
	switch c.suit {
	case Spades, Hearts, Diamonds, Clubs:
		return true
	}
	return false
}

// String returns a human readable representation, e.g. "T♠".
func (c Card) String() string {
	return string(rankChars[c.rank]) + string(c.suit)
}

// Deck represents a deck of cards
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewDeck creates a new 52-card deck and shuffles it with the given random
// number generator.
func NewDeck(rng *rand.Rand) *Deck {
	deck := &Deck{
		cards: make([]Card, 0, 52),
		rng:   rng,
	}

	for _, suit := range Suits {
		for rank := Two; rank <= Ace; rank++ {
			deck.cards = append(deck.cards, Card{rank: rank, suit: suit})
		}
	}

	deck.Shuffle()

	return deck
}

// NewDeckFromCards creates a deck holding exactly the given cards, in order.
// It is used when restoring a persisted hand.
func NewDeckFromCards(cards []Card, rng *rand.Rand) *Deck {
	deck := &Deck{
		cards: make([]Card, len(cards)),
		rng:   rng,
	}
	copy(deck.cards, cards)
	return deck
}

// Shuffle randomizes the order of the remaining cards in place using
// Fisher-Yates. A nil rng leaves the order unchanged.
func (d *Deck) Shuffle() {
	if d.rng == nil {
		return
	}
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.Intn(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal removes and returns the first n cards of the deck.
func (d *Deck) Deal(n int) ([]Card, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: cannot deal %d cards", ErrInvalidAction, n)
	}
	if n > len(d.cards) {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientCards, n, len(d.cards))
	}
	dealt := make([]Card, n)
	copy(dealt, d.cards[:n])
	d.cards = d.cards[n:]
	return dealt, nil
}

// Size returns the number of cards remaining in the deck
func (d *Deck) Size() int {
	return len(d.cards)
}

// Cards returns a copy of the remaining cards (for persistence)
func (d *Deck) Cards() []Card {
	cards := make([]Card, len(d.cards))
	copy(cards, d.cards)
	return cards
}

func (d *Deck) clone() *Deck {
	if d == nil {
		return nil
	}
	return NewDeckFromCards(d.cards, d.rng)
}
