package service

import (
	"context"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/models"
)

type ScoreRepository interface {
	InsertScore(ctx context.Context, userID *string, drinkCount int) (*models.Score, error)
}

type ScoreService struct {
	store ScoreRepository
}

func NewScoreService(store ScoreRepository) *ScoreService {
	return &ScoreService{store: store}
}

// SubmitScore records a finished solo game. An empty userID is stored as
// an anonymous score.
func (s *ScoreService) SubmitScore(ctx context.Context, drinkCount int, userID string) (*models.Score, error) {
	if drinkCount < 0 {
		return nil, ErrInvalidScore
	}
	var uid *string
	if userID != "" {
		uid = &userID
	}
	return s.store.InsertScore(ctx, uid, drinkCount)
}
