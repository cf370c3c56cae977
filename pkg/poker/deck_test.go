package poker

import (
	"errors"
	"math/rand"
	"testing"
)

// testRNG creates a deterministic RNG for testing
func testRNG() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestNewDeck(t *testing.T) {
	deck := NewDeck(testRNG())

	// Check deck size
	if deck.Size() != 52 {
		t.Errorf("Expected deck size 52, got %d", deck.Size())
	}

	// Check that all cards are unique and valid
	seen := make(map[Card]bool)
	for _, card := range deck.cards {
		if !card.IsValid() {
			t.Errorf("Invalid card in deck: %v", card)
		}
		if seen[card] {
			t.Errorf("Duplicate card found: %v", card)
		}
		seen[card] = true
	}

	suitCount := make(map[Suit]int)
	rankCount := make(map[Rank]int)
	for _, card := range deck.cards {
		suitCount[card.suit]++
		rankCount[card.rank]++
	}
	if len(suitCount) != 4 || len(rankCount) != 13 {
		t.Fatalf("Expected 4 suits and 13 ranks, got %d and %d", len(suitCount), len(rankCount))
	}
	for suit, count := range suitCount {
		if count != 13 {
			t.Errorf("Expected 13 cards of suit %v, got %d", suit, count)
		}
	}
	for rank, count := range rankCount {
		if count != 4 {
			t.Errorf("Expected 4 cards of rank %v, got %d", rank, count)
		}
	}
}

func TestDeckShuffle(t *testing.T) {
	// Two decks with the same seed have the same order
	deck1 := NewDeck(rand.New(rand.NewSource(42)))
	deck2 := NewDeck(rand.New(rand.NewSource(42)))
	for i := 0; i < 52; i++ {
		if deck1.cards[i] != deck2.cards[i] {
			t.Errorf("Decks with same seed should have same order at position %d", i)
		}
	}

	// A different seed gives a different order
	deck3 := NewDeck(rand.New(rand.NewSource(43)))
	sameOrder := true
	for i := 0; i < 52; i++ {
		if deck1.cards[i] != deck3.cards[i] {
			sameOrder = false
			break
		}
	}
	if sameOrder {
		t.Error("Decks with different seeds should have different orders")
	}
}

func TestShufflePreservesCards(t *testing.T) {
	deck := NewDeck(testRNG())
	before := make(map[Card]int)
	for _, c := range deck.cards {
		before[c]++
	}

	for i := 0; i < 10; i++ {
		deck.Shuffle()
	}

	after := make(map[Card]int)
	for _, c := range deck.cards {
		after[c]++
	}
	if len(before) != len(after) {
		t.Fatalf("Shuffle changed the number of distinct cards: %d -> %d", len(before), len(after))
	}
	for c, n := range before {
		if after[c] != n {
			t.Errorf("Shuffle changed the count of %v: %d -> %d", c, n, after[c])
		}
	}
}

func TestNilRNGKeepsOrder(t *testing.T) {
	cards := MustParseCards("AS KS QS")
	deck := NewDeckFromCards(cards, nil)
	deck.Shuffle()
	for i, c := range deck.Cards() {
		if c != cards[i] {
			t.Errorf("Expected %v at %d, got %v", cards[i], i, c)
		}
	}
}

func TestDeckDealIntegrity(t *testing.T) {
	deck := NewDeck(testRNG())
	dealt := make(map[Card]bool)

	for _, n := range []int{2, 2, 2, 3, 1, 1, 5, 10} {
		cards, err := deck.Deal(n)
		if err != nil {
			t.Fatalf("Deal(%d) failed: %v", n, err)
		}
		if len(cards) != n {
			t.Fatalf("Deal(%d) returned %d cards", n, len(cards))
		}
		for _, c := range cards {
			if dealt[c] {
				t.Errorf("Card %v dealt twice", c)
			}
			dealt[c] = true
		}
		if deck.Size()+len(dealt) != 52 {
			t.Errorf("remaining %d + dealt %d != 52", deck.Size(), len(dealt))
		}
	}

	for _, c := range deck.Cards() {
		if dealt[c] {
			t.Errorf("Card %v both dealt and remaining", c)
		}
	}
}

func TestDeckDealInsufficientCards(t *testing.T) {
	deck := NewDeck(testRNG())
	if _, err := deck.Deal(50); err != nil {
		t.Fatalf("Deal(50) failed: %v", err)
	}

	_, err := deck.Deal(3)
	if !errors.Is(err, ErrInsufficientCards) {
		t.Fatalf("Expected ErrInsufficientCards, got %v", err)
	}
	if !IsStructural(err) {
		t.Errorf("Expected a structural error, got kind %v", KindOf(err))
	}
	if deck.Size() != 2 {
		t.Errorf("Failed deal must not remove cards, size %d", deck.Size())
	}

	if _, err := deck.Deal(-1); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("Expected ErrInvalidAction for a negative deal, got %v", err)
	}
}

func TestDeckCloneIsIndependent(t *testing.T) {
	deck := NewDeck(testRNG())
	clone := deck.clone()
	if _, err := clone.Deal(5); err != nil {
		t.Fatal(err)
	}
	if deck.Size() != 52 || clone.Size() != 47 {
		t.Errorf("Expected sizes 52 and 47, got %d and %d", deck.Size(), clone.Size())
	}
}
