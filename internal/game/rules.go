package game

type Guess string

const (
	Red     Guess = "red"
	Black   Guess = "black"
	Higher  Guess = "higher"
	Lower   Guess = "lower"
	Same    Guess = "same"
	Inside  Guess = "inside"
	Outside Guess = "outside"
)

// SuitGuess is the round four guess naming a suit.
func SuitGuess(s Suit) Guess {
	return Guess(s)
}

// ValidateFirstRound: red or black.
func ValidateFirstRound(card Card, guess Guess) bool {
	if guess != Red && guess != Black {
		return false
	}
	return card.Suit.IsRed() == (guess == Red)
}

// ValidateSecondRound compares card2 against card1.
func ValidateSecondRound(card1, card2 Card, guess Guess) bool {
	switch guess {
	case Higher:
		return card2.NumericValue() > card1.NumericValue()
	case Lower:
		return card2.NumericValue() < card1.NumericValue()
	case Same:
		return card2.NumericValue() == card1.NumericValue()
	}
	return false
}

// ValidateThirdRound places card3 against the range of card1 and card2.
// A value equal to either bound only satisfies Same.
func ValidateThirdRound(card1, card2, card3 Card, guess Guess) bool {
	lo, hi := card1.NumericValue(), card2.NumericValue()
	if lo > hi {
		lo, hi = hi, lo
	}
	v := card3.NumericValue()
	switch guess {
	case Inside:
		return lo < v && v < hi
	case Outside:
		return v < lo || v > hi
	case Same:
		return v == card1.NumericValue() || v == card2.NumericValue()
	}
	return false
}

func ValidateFinalRound(card Card, guess Guess) bool {
	return Suit(guess) == card.Suit
}

// ValidGuess reports whether guess is a legal answer for round.
func ValidGuess(round int, guess Guess) bool {
	switch round {
	case 1:
		return guess == Red || guess == Black
	case 2:
		return guess == Higher || guess == Lower || guess == Same
	case 3:
		return guess == Inside || guess == Outside || guess == Same
	case 4:
		return Suit(guess).Valid()
	}
	return false
}

// Evaluate runs the validator for round against a full hand.
func Evaluate(hand []Card, round int, guess Guess) bool {
	if len(hand) < HandSize {
		return false
	}
	switch round {
	case 1:
		return ValidateFirstRound(hand[0], guess)
	case 2:
		return ValidateSecondRound(hand[0], hand[1], guess)
	case 3:
		return ValidateThirdRound(hand[0], hand[1], hand[2], guess)
	case 4:
		return ValidateFinalRound(hand[3], guess)
	}
	return false
}
