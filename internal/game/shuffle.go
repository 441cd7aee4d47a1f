package game

import "math/rand/v2"

const (
	HandSize = 4

	// drawPrime decorrelates successive draws from the same base seed.
	drawPrime = 7919

	mulberryIncrement = 0x6D2B79F5
)

// Source yields floats in [0, 1).
type Source interface {
	Float64() float64
}

// Mulberry32 is a 32-bit mixing generator. Its output must match other
// implementations bit for bit because every player of a daily challenge
// has to see the same cards, so only uint32 wraparound arithmetic is used.
type Mulberry32 struct {
	state uint32
}

// NewMulberry32 truncates seed to its low 32 bits (two's complement).
func NewMulberry32(seed int64) *Mulberry32 {
	return &Mulberry32{state: uint32(seed)}
}

func (m *Mulberry32) Uint32() uint32 {
	m.state += mulberryIncrement
	t := m.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return t ^ (t >> 14)
}

func (m *Mulberry32) Float64() float64 {
	return float64(m.Uint32()) / 4294967296
}

// Shuffler draws n distinct face-down cards from a fresh deck.
type Shuffler interface {
	Draw(n int) []Card
}

type randSource struct{}

func (randSource) Float64() float64 { return rand.Float64() }

// RandomShuffler draws from a non-reproducible source. Used for solo play
// and multiplayer hands.
type RandomShuffler struct{}

func (RandomShuffler) Draw(n int) []Card {
	return drawFrom(randSource{}, n)
}

// SeededShuffler draws the reproducible hand for (Seed, DrawNumber).
type SeededShuffler struct {
	Seed       int64
	DrawNumber int64
}

func (s SeededShuffler) Draw(n int) []Card {
	return drawFrom(NewMulberry32(DrawSeed(s.Seed, s.DrawNumber)), n)
}

// DrawSeed derives the per-draw PRNG seed.
func DrawSeed(seed, drawNumber int64) int64 {
	return seed + drawNumber*drawPrime
}

// SeededDraw returns the hand for a daily challenge attempt.
func SeededDraw(seed, drawNumber int64) []Card {
	return SeededShuffler{Seed: seed, DrawNumber: drawNumber}.Draw(HandSize)
}

// drawFrom samples without replacement. The order of removals is part of
// the determinism contract.
func drawFrom(src Source, n int) []Card {
	candidates := GenerateDeck()
	if n > len(candidates) {
		n = len(candidates)
	}
	hand := make([]Card, 0, n)
	for i := 0; i < n; i++ {
		idx := int(src.Float64() * float64(len(candidates)))
		card := candidates[idx]
		card.FaceUp = false
		hand = append(hand, card)
		candidates = append(candidates[:idx], candidates[idx+1:]...)
	}
	return hand
}
