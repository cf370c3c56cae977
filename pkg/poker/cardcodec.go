package poker

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Compact card codes, e.g. "TS" for the ten of spades, are the storage and
// wire format of a card.

var rankChars = map[Rank]byte{
	Two: '2', Three: '3', Four: '4', Five: '5', Six: '6', Seven: '7', Eight: '8',
	Nine: '9', Ten: 'T', Jack: 'J', Queen: 'Q', King: 'K', Ace: 'A',
}

var suitChars = map[Suit]byte{
	Spades: 'S', Hearts: 'H', Diamonds: 'D', Clubs: 'C',
}

// Code returns the two character code of the card, e.g. "TS".
func (c Card) Code() string {
	return string([]byte{rankChars[c.rank], suitChars[c.suit]})
}

// ParseCard decodes a card code. Ranks accept "10" as well as "T" and suits
// accept the letters in either case or the suit symbols.
func ParseCard(code string) (Card, error) {
	code = strings.TrimSpace(code)
	if len(code) < 2 {
		return Card{}, fmt.Errorf("invalid card code %q", code)
	}

	var rankPart, suitPart string
	if strings.HasPrefix(code, "10") {
		rankPart, suitPart = "10", code[2:]
	} else {
		rankPart, suitPart = code[:1], code[1:]
	}

	rank, err := parseRank(rankPart)
	if err != nil {
		return Card{}, fmt.Errorf("invalid card code %q: %v", code, err)
	}
	suit, err := parseSuit(suitPart)
	if err != nil {
		return Card{}, fmt.Errorf("invalid card code %q: %v", code, err)
	}
	return Card{rank: rank, suit: suit}, nil
}

// MustParseCards decodes a space separated list of card codes and panics on
// malformed input. Intended for tests and fixtures.
func MustParseCards(codes string) []Card {
	fields := strings.Fields(codes)
	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			panic(err)
		}
		cards = append(cards, c)
	}
	return cards
}

// EncodeCards joins card codes with commas, e.g. "TS,AH,2C". An empty slice
// encodes to the empty string.
func EncodeCards(cards []Card) string {
	codes := make([]string, len(cards))
	for i, c := range cards {
		codes[i] = c.Code()
	}
	return strings.Join(codes, ",")
}

// DecodeCards is the inverse of EncodeCards.
func DecodeCards(s string) ([]Card, error) {
	if s == "" {
		return []Card{}, nil
	}
	parts := strings.Split(s, ",")
	cards := make([]Card, 0, len(parts))
	for _, p := range parts {
		c, err := ParseCard(p)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

func parseRank(s string) (Rank, error) {
	switch s {
	case "A", "a":
		return Ace, nil
	case "K", "k":
		return King, nil
	case "Q", "q":
		return Queen, nil
	case "J", "j":
		return Jack, nil
	case "T", "t", "10":
		return Ten, nil
	}
	if len(s) == 1 && s[0] >= '2' && s[0] <= '9' {
		return Rank(s[0] - '0'), nil
	}
	return 0, fmt.Errorf("invalid rank %q", s)
}

func parseSuit(s string) (Suit, error) {
	switch s {
	case "S", "s", string(Spades):
		return Spades, nil
	case "H", "h", string(Hearts):
		return Hearts, nil
	case "D", "d", string(Diamonds):
		return Diamonds, nil
	case "C", "c", string(Clubs):
		return Clubs, nil
	}
	return "", fmt.Errorf("invalid suit %q", s)
}

// cardJSON is the object form older snapshots used for cards.
type cardJSON struct {
	Suit  string `json:"suit"`
	Value string `json:"value"`
}

// MarshalJSON encodes the card as its code string.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Code())
}

// UnmarshalJSON accepts the code string ("TS") or the object form
// {"suit":"♠","value":"10"}.
func (c *Card) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err == nil {
		card, err := ParseCard(code)
		if err != nil {
			return err
		}
		*c = card
		return nil
	}

	var obj cardJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	card, err := ParseCard(obj.Value + obj.Suit)
	if err != nil {
		return err
	}
	*c = card
	return nil
}
