package service

import (
	"context"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/models"
)

type CardStatRepository interface {
	RecordCards(ctx context.Context, cards []game.Card) error
	ListStats(ctx context.Context) ([]models.CardStat, error)
}

// TelemetryService counts the cards of finished hands.
type TelemetryService struct {
	store CardStatRepository
}

func NewTelemetryService(store CardStatRepository) *TelemetryService {
	return &TelemetryService{store: store}
}

// RecordDrawnCards counts one finished hand: up to HandSize distinct cards.
func (s *TelemetryService) RecordDrawnCards(ctx context.Context, cards []game.Card) error {
	if len(cards) == 0 || len(cards) > game.HandSize {
		return ErrInvalidCards
	}
	type key struct {
		suit game.Suit
		rank game.Rank
	}
	seen := make(map[key]bool, len(cards))
	clean := make([]game.Card, 0, len(cards))
	for _, c := range cards {
		if !c.Suit.Valid() || c.Rank.Value() == 0 {
			return ErrInvalidCards
		}
		k := key{c.Suit, c.Rank}
		if seen[k] {
			return ErrInvalidCards
		}
		seen[k] = true
		clean = append(clean, game.NewCard(c.Suit, c.Rank))
	}
	return s.store.RecordCards(ctx, clean)
}

func (s *TelemetryService) Stats(ctx context.Context) ([]models.CardStat, error) {
	return s.store.ListStats(ctx)
}
