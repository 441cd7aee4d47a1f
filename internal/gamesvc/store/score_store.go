package store

import (
	"context"
	"fmt"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/models"
)

type ScoreStore struct {
	db DB
}

func NewScoreStore(db DB) *ScoreStore {
	return &ScoreStore{db: db}
}

func (s *ScoreStore) InsertScore(ctx context.Context, userID *string, drinkCount int) (*models.Score, error) {
	score := &models.Score{UserID: userID, DrinkCount: drinkCount}
	err := s.db.QueryRow(ctx, `
		INSERT INTO scores (user_id, drink_count)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, userID, drinkCount).Scan(&score.ID, &score.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("could not insert score: %w", err)
	}
	return score, nil
}
