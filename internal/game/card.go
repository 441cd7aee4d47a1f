package game

import "fmt"

type Suit string

const (
	Hearts   Suit = "HEARTS"
	Diamonds Suit = "DIAMONDS"
	Clubs    Suit = "CLUBS"
	Spades   Suit = "SPADES"
)

// Suits is the deck generation order. Seeded draws index into a deck built
// in this order, so it must never change.
var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

func (s Suit) Valid() bool {
	switch s {
	case Hearts, Diamonds, Clubs, Spades:
		return true
	}
	return false
}

func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

func (s Suit) symbol() string {
	switch s {
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	case Spades:
		return "♠"
	}
	return "?"
}

type Rank string

// Ranks in ascending value, Ace high.
var Ranks = []Rank{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

// Value maps a rank label to 2..14. Unknown labels map to 0.
func (r Rank) Value() int {
	for i, rank := range Ranks {
		if rank == r {
			return i + 2
		}
	}
	return 0
}

// RankOf is the inverse of Rank.Value.
func RankOf(value int) (Rank, bool) {
	if value < 2 || value > 14 {
		return "", false
	}
	return Ranks[value-2], true
}

// Card is one drawn card. FaceUp is presentation state only; two cards are
// the same card when suit and rank match.
type Card struct {
	Suit   Suit `json:"suit"`
	Rank   Rank `json:"rank"`
	Value  int  `json:"value"`
	FaceUp bool `json:"face_up"`
}

func NewCard(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank, Value: rank.Value()}
}

// NumericValue falls back to the rank label when Value was not filled in.
func (c Card) NumericValue() int {
	if c.Value != 0 {
		return c.Value
	}
	return c.Rank.Value()
}

func (c Card) SameAs(o Card) bool {
	return c.Suit == o.Suit && c.Rank == o.Rank
}

func (c Card) Valid() bool {
	return c.Suit.Valid() && c.Rank.Value() != 0 && c.Value == c.Rank.Value()
}

func (c Card) String() string {
	return fmt.Sprintf("%s%s", c.Rank, c.Suit.symbol())
}

// GenerateDeck returns the 52 distinct cards, suit-major, all face down.
func GenerateDeck() []Card {
	deck := make([]Card, 0, len(Suits)*len(Ranks))
	for _, s := range Suits {
		for _, r := range Ranks {
			deck = append(deck, NewCard(s, r))
		}
	}
	return deck
}
