package poker

import (
	chpoker "github.com/chehsunliu/poker"
)

// worstRank is the number of distinct five card hand classes; the
// chehsunliu evaluator ranks hands from 1 (royal flush) to worstRank.
const worstRank = 7462

// toChehsunliu converts a card to the chehsunliu/poker representation,
// e.g. "Ts" for the ten of spades.
func toChehsunliu(c Card) chpoker.Card {
	code := c.Code()
	return chpoker.NewCard(code[:1] + string(code[1]+('a'-'A')))
}

// HandStrength returns the absolute strength of the best hand in cards as a
// value in [0, 1], where 1 is a royal flush. It accepts 5 to 7 cards and
// returns 0 for any other count.
func HandStrength(cards []Card) float64 {
	if len(cards) < 5 || len(cards) > 7 {
		return 0
	}
	converted := make([]chpoker.Card, len(cards))
	for i, c := range cards {
		converted[i] = toChehsunliu(c)
	}
	rank := chpoker.Evaluate(converted)
	return 1 - float64(rank-1)/float64(worstRank-1)
}
