package game

import (
	"errors"
	"sync"
)

var ErrChallengeComplete = errors.New("daily challenge already completed")

// Session owns one player's State and feeds events through Transition.
type Session struct {
	mu       sync.Mutex
	state    State
	shuffler Shuffler
}

func NewSession(shuffler Shuffler) *Session {
	if shuffler == nil {
		shuffler = RandomShuffler{}
	}
	return &Session{state: NewState(), shuffler: shuffler}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *Session) Draw(reset bool) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(DrawEvent{Hand: s.shuffler.Draw(HandSize), Reset: reset})
}

func (s *Session) Guess(round int, guess Guess) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(GuessEvent{Round: round, Guess: guess})
}

func (s *Session) apply(ev Event) (State, error) {
	next, err := Transition(s.state, ev)
	if err != nil {
		return s.state.Clone(), err
	}
	s.state = next
	return next.Clone(), nil
}

// DailyChallenge is the server-issued metadata for one calendar day.
type DailyChallenge struct {
	Seed      int64  `json:"seed"`
	DayNumber int    `json:"day_number"`
	GameDate  string `json:"game_date"`
}

// DailySession plays a seeded challenge. DrinkCount counts attempts, and
// every attempt draws the hand for drawNumber = attempts + 1.
type DailySession struct {
	mu        sync.Mutex
	challenge DailyChallenge
	state     State
}

// NewDailySession resumes a day on which priorAttempts redraws were
// already recorded.
func NewDailySession(challenge DailyChallenge, priorAttempts int) *DailySession {
	if priorAttempts < 0 {
		priorAttempts = 0
	}
	return &DailySession{
		challenge: challenge,
		state:     State{DrinkCount: priorAttempts - 1},
	}
}

func (d *DailySession) Challenge() DailyChallenge {
	return d.challenge
}

func (d *DailySession) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Clone()
}

func (d *DailySession) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return max(d.state.DrinkCount, 0)
}

// DrawNumber of the hand currently on the table, or of the next one when
// nothing has been drawn yet.
func (d *DailySession) DrawNumber() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.state.Hand) == 0 {
		return int64(d.state.DrinkCount) + 2
	}
	return int64(d.state.DrinkCount) + 1
}

func (d *DailySession) Draw() (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.HasWon {
		return d.state.Clone(), ErrChallengeComplete
	}
	attempts := d.state.DrinkCount + 1
	hand := SeededDraw(d.challenge.Seed, int64(attempts)+1)
	next, err := Transition(d.state, DrawEvent{Hand: hand})
	if err != nil {
		return d.state.Clone(), err
	}
	d.state = next
	return next.Clone(), nil
}

func (d *DailySession) Guess(round int, guess Guess) (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	next, err := Transition(d.state, GuessEvent{Round: round, Guess: guess})
	if err != nil {
		return d.state.Clone(), err
	}
	d.state = next
	return next.Clone(), nil
}
