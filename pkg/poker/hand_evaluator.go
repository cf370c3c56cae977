package poker

import (
	"fmt"
	"sort"
)

// HandCategory represents the category of a five card poker hand, ordered
// from weakest (HighCard) to strongest (RoyalFlush).
type HandCategory int

const (
	HighCard HandCategory = iota + 1
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

var categoryNames = map[HandCategory]string{
	HighCard:      "High Card",
	OnePair:       "One Pair",
	TwoPair:       "Two Pair",
	ThreeOfAKind:  "Three of a Kind",
	Straight:      "Straight",
	Flush:         "Flush",
	FullHouse:     "Full House",
	FourOfAKind:   "Four of a Kind",
	StraightFlush: "Straight Flush",
	RoyalFlush:    "Royal Flush",
}

func (c HandCategory) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("HandCategory(%d)", int(c))
}

// HandValue represents a complete evaluation of a hand.
type HandValue struct {
	Category HandCategory
	// Tiebreak holds the ranks that order hands within a category, most
	// significant first: quad rank then kicker, trips rank then pair rank,
	// high pair, low pair, kicker, and so on. Straights carry only their
	// high card, which is Five for the wheel.
	Tiebreak    []Rank
	BestHand    []Card // The 5 cards that make up the best hand
	Description string
}

// EvaluateHand evaluates a player's best 5-card hand from their hole cards and
// the community cards.
func EvaluateHand(holeCards []Card, communityCards []Card) (HandValue, error) {
	allCards := make([]Card, 0, len(holeCards)+len(communityCards))
	allCards = append(allCards, holeCards...)
	allCards = append(allCards, communityCards...)
	return Evaluate(allCards)
}

// Evaluate returns the best five card hand that can be made from cards. At
// least five distinct cards are required.
func Evaluate(cards []Card) (HandValue, error) {
	if len(cards) < 5 {
		return HandValue{}, fmt.Errorf("need at least 5 cards to evaluate, got %d", len(cards))
	}
	seen := make(map[Card]bool, len(cards))
	for _, c := range cards {
		if !c.IsValid() {
			return HandValue{}, fmt.Errorf("invalid card %v", c)
		}
		if seen[c] {
			return HandValue{}, fmt.Errorf("duplicate card %s", c)
		}
		seen[c] = true
	}

	var best HandValue
	for i, combo := range generateCombinations(cards, 5) {
		hv := evaluateFive(combo)
		if i == 0 || CompareHands(hv, best) > 0 {
			best = hv
		}
	}
	best.Description = describe(best)
	return best, nil
}

// CompareHands compares two hand values and returns:
// -1 if handA < handB (handA is worse)
// 0 if handA == handB (tie)
// 1 if handA > handB (handA is better)
func CompareHands(handA, handB HandValue) int {
	if handA.Category != handB.Category {
		if handA.Category < handB.Category {
			return -1
		}
		return 1
	}
	n := len(handA.Tiebreak)
	if len(handB.Tiebreak) > n {
		n = len(handB.Tiebreak)
	}
	for i := 0; i < n; i++ {
		var a, b Rank
		if i < len(handA.Tiebreak) {
			a = handA.Tiebreak[i]
		}
		if i < len(handB.Tiebreak) {
			b = handB.Tiebreak[i]
		}
		if a == b {
			continue
		}
		if a < b {
			return -1
		}
		return 1
	}
	return 0
}

type rankGroup struct {
	rank  Rank
	count int
}

// evaluateFive classifies exactly five distinct cards.
func evaluateFive(cards []Card) HandValue {
	counts := make(map[Rank]int, 5)
	flush := true
	for i, c := range cards {
		counts[c.rank]++
		if i > 0 && c.suit != cards[0].suit {
			flush = false
		}
	}

	groups := make([]rankGroup, 0, len(counts))
	for r, n := range counts {
		groups = append(groups, rankGroup{rank: r, count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})

	// Groups are ordered by size then rank, so their ranks are the
	// tiebreak for every category except straights.
	tiebreak := make([]Rank, len(groups))
	for i, g := range groups {
		tiebreak[i] = g.rank
	}

	high, straight := straightHigh(groups)

	hv := HandValue{BestHand: orderBestHand(cards, counts, high, straight)}
	switch {
	case straight && flush && high == Ace:
		hv.Category, hv.Tiebreak = RoyalFlush, []Rank{Ace}
	case straight && flush:
		hv.Category, hv.Tiebreak = StraightFlush, []Rank{high}
	case groups[0].count == 4:
		hv.Category, hv.Tiebreak = FourOfAKind, tiebreak
	case groups[0].count == 3 && groups[1].count == 2:
		hv.Category, hv.Tiebreak = FullHouse, tiebreak
	case flush:
		hv.Category, hv.Tiebreak = Flush, tiebreak
	case straight:
		hv.Category, hv.Tiebreak = Straight, []Rank{high}
	case groups[0].count == 3:
		hv.Category, hv.Tiebreak = ThreeOfAKind, tiebreak
	case groups[0].count == 2 && groups[1].count == 2:
		hv.Category, hv.Tiebreak = TwoPair, tiebreak
	case groups[0].count == 2:
		hv.Category, hv.Tiebreak = OnePair, tiebreak
	default:
		hv.Category, hv.Tiebreak = HighCard, tiebreak
	}
	return hv
}

// straightHigh reports whether five single-rank groups (sorted high to low)
// form a straight and returns its high card. The wheel A-2-3-4-5 is a
// five-high straight.
func straightHigh(groups []rankGroup) (Rank, bool) {
	if len(groups) != 5 {
		return 0, false
	}
	if groups[0].rank == Ace && groups[1].rank == Five && groups[4].rank == Two {
		return Five, true
	}
	if groups[0].rank-groups[4].rank == 4 {
		return groups[0].rank, true
	}
	return 0, false
}

// orderBestHand sorts the five cards for display: bigger groups first, then
// higher ranks, with the ace of a wheel moved to the end.
func orderBestHand(cards []Card, counts map[Rank]int, high Rank, straight bool) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	wheel := straight && high == Five
	value := func(c Card) int {
		if wheel && c.rank == Ace {
			return 1
		}
		return int(c.rank)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := counts[out[i].rank], counts[out[j].rank]
		if ci != cj {
			return ci > cj
		}
		return value(out[i]) > value(out[j])
	})
	return out
}

// generateCombinations generates all possible k-combinations from a slice of cards
func generateCombinations(cards []Card, k int) [][]Card {
	var combinations [][]Card

	if k > len(cards) || k <= 0 {
		return combinations
	}

	if k == len(cards) {
		return [][]Card{cards}
	}

	var generate func(start int, current []Card)
	generate = func(start int, current []Card) {
		if len(current) == k {
			combination := make([]Card, k)
			copy(combination, current)
			combinations = append(combinations, combination)
			return
		}

		for i := start; i <= len(cards)-(k-len(current)); i++ {
			generate(i+1, append(current, cards[i]))
		}
	}

	generate(0, make([]Card, 0, k))
	return combinations
}

var rankNames = map[Rank][2]string{
	Two: {"Two", "Twos"}, Three: {"Three", "Threes"}, Four: {"Four", "Fours"},
	Five: {"Five", "Fives"}, Six: {"Six", "Sixes"}, Seven: {"Seven", "Sevens"},
	Eight: {"Eight", "Eights"}, Nine: {"Nine", "Nines"}, Ten: {"Ten", "Tens"},
	Jack: {"Jack", "Jacks"}, Queen: {"Queen", "Queens"}, King: {"King", "Kings"},
	Ace: {"Ace", "Aces"},
}

func rankName(r Rank) string   { return rankNames[r][0] }
func rankPlural(r Rank) string { return rankNames[r][1] }

// describe returns a human-readable description of a hand
func describe(hv HandValue) string {
	tb := hv.Tiebreak
	switch hv.Category {
	case RoyalFlush:
		return "Royal Flush"
	case StraightFlush:
		return fmt.Sprintf("Straight Flush, %s high", rankName(tb[0]))
	case FourOfAKind:
		return fmt.Sprintf("Four of a Kind, %s", rankPlural(tb[0]))
	case FullHouse:
		return fmt.Sprintf("Full House, %s full of %s", rankPlural(tb[0]), rankPlural(tb[1]))
	case Flush:
		return fmt.Sprintf("Flush, %s high", rankName(tb[0]))
	case Straight:
		return fmt.Sprintf("Straight, %s high", rankName(tb[0]))
	case ThreeOfAKind:
		return fmt.Sprintf("Three of a Kind, %s", rankPlural(tb[0]))
	case TwoPair:
		return fmt.Sprintf("Two Pair, %s and %s", rankPlural(tb[0]), rankPlural(tb[1]))
	case OnePair:
		return fmt.Sprintf("Pair of %s", rankPlural(tb[0]))
	default:
		return fmt.Sprintf("High Card, %s", rankName(tb[0]))
	}
}
