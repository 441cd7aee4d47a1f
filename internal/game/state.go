package game

import (
	"errors"
	"fmt"
)

var (
	ErrNoHand          = errors.New("no hand has been drawn")
	ErrGameOver        = errors.New("hand is already finished")
	ErrWrongRound      = errors.New("guess is not for the current round")
	ErrInvalidGuess    = errors.New("guess is not valid for this round")
	ErrInvalidHand     = errors.New("hand must hold four distinct cards")
	ErrResetNotAllowed = errors.New("reset is only allowed after a win")
)

// State is the per-player game state shared by solo, daily and
// multiplayer play. DrinkCount is "timesRedrawn" in solo play and
// "attempts" in the daily challenge.
type State struct {
	Hand         []Card `json:"hand"`
	CurrentRound int    `json:"current_round"`
	IsOver       bool   `json:"is_over"`
	HasWon       bool   `json:"has_won"`
	DrinkCount   int    `json:"drink_count"`
}

// NewState is a fresh session. The counter starts one below zero so the
// first draw lands on zero.
func NewState() State {
	return State{DrinkCount: -1}
}

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePlaying Phase = "playing"
	PhaseWon     Phase = "won"
	PhaseLost    Phase = "lost"
)

func (s State) Phase() Phase {
	switch {
	case len(s.Hand) == 0:
		return PhaseIdle
	case s.HasWon:
		return PhaseWon
	case s.IsOver:
		return PhaseLost
	}
	return PhasePlaying
}

func (s State) Clone() State {
	c := s
	if s.Hand != nil {
		c.Hand = append([]Card(nil), s.Hand...)
	}
	return c
}

// Validate checks the structural invariants of a state received from
// somewhere else.
func (s State) Validate() error {
	if s.HasWon && !s.IsOver {
		return errors.New("won hand must be over")
	}
	if s.DrinkCount < 0 {
		return fmt.Errorf("negative drink count %d", s.DrinkCount)
	}
	if len(s.Hand) == 0 {
		return nil
	}
	if err := validateHand(s.Hand); err != nil {
		return err
	}
	if s.CurrentRound < 1 || s.CurrentRound > HandSize {
		return fmt.Errorf("round %d out of range", s.CurrentRound)
	}
	return nil
}

func validateHand(hand []Card) error {
	if len(hand) != HandSize {
		return ErrInvalidHand
	}
	for i, c := range hand {
		if !c.Valid() {
			return fmt.Errorf("card %d: %w", i, ErrInvalidHand)
		}
		for _, prev := range hand[:i] {
			if prev.SameAs(c) {
				return ErrInvalidHand
			}
		}
	}
	return nil
}

type Event interface {
	isEvent()
}

// DrawEvent replaces the hand. Reset starts a new game after a win and
// zeroes the drink count instead of incrementing it.
type DrawEvent struct {
	Hand  []Card
	Reset bool
}

type GuessEvent struct {
	Round int
	Guess Guess
}

func (DrawEvent) isEvent()  {}
func (GuessEvent) isEvent() {}

// Transition is the pure state machine. On error the input state is
// returned unchanged.
func Transition(s State, ev Event) (State, error) {
	switch e := ev.(type) {
	case DrawEvent:
		return applyDraw(s, e)
	case GuessEvent:
		return applyGuess(s, e)
	}
	return s, fmt.Errorf("unknown event %T", ev)
}

func applyDraw(s State, e DrawEvent) (State, error) {
	if err := validateHand(e.Hand); err != nil {
		return s, err
	}
	if e.Reset && !s.HasWon {
		return s, ErrResetNotAllowed
	}

	next := State{
		Hand:         make([]Card, len(e.Hand)),
		CurrentRound: 1,
		DrinkCount:   s.DrinkCount + 1,
	}
	for i, c := range e.Hand {
		c.FaceUp = false
		next.Hand[i] = c
	}
	if e.Reset {
		next.DrinkCount = 0
	}
	return next, nil
}

func applyGuess(s State, e GuessEvent) (State, error) {
	if len(s.Hand) == 0 {
		return s, ErrNoHand
	}
	if s.IsOver {
		return s, ErrGameOver
	}
	if e.Round != s.CurrentRound {
		return s, ErrWrongRound
	}
	if !ValidGuess(e.Round, e.Guess) {
		return s, ErrInvalidGuess
	}

	next := s.Clone()
	next.Hand[e.Round-1].FaceUp = true

	if !Evaluate(next.Hand, e.Round, e.Guess) {
		next.IsOver = true
		return next, nil
	}
	if e.Round == HandSize {
		for i := range next.Hand {
			next.Hand[i].FaceUp = true
		}
		next.IsOver = true
		next.HasWon = true
		return next, nil
	}
	next.CurrentRound++
	return next, nil
}
