package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/models"
)

type DailyStore struct {
	db DB
}

func NewDailyStore(db DB) *DailyStore {
	return &DailyStore{db: db}
}

// GetOrCreateChallenge returns the challenge row for gameDate, inserting
// the candidate seed only if the day has none yet. Concurrent callers all
// read back the first seed written.
func (s *DailyStore) GetOrCreateChallenge(ctx context.Context, gameDate string, seed int64, dayNumber int) (*models.DailyChallenge, error) {
	if _, err := s.db.Exec(ctx, `
		INSERT INTO daily_challenges (game_date, seed, day_number)
		VALUES ($1::date, $2, $3)
		ON CONFLICT (game_date) DO NOTHING
	`, gameDate, seed, dayNumber); err != nil {
		return nil, fmt.Errorf("insert daily challenge: %w", err)
	}

	ch := &models.DailyChallenge{}
	err := s.db.QueryRow(ctx, `
		SELECT game_date::text, seed, day_number, created_at
		FROM daily_challenges
		WHERE game_date = $1::date
	`, gameDate).Scan(&ch.GameDate, &ch.Seed, &ch.DayNumber, &ch.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get daily challenge: %w", err)
	}
	return ch, nil
}

// EnsureAttempts upserts the one row per (user, day) and returns the
// attempts recorded so far.
func (s *DailyStore) EnsureAttempts(ctx context.Context, userID, gameDate string) (int, error) {
	var attempts int
	err := s.db.QueryRow(ctx, `
		INSERT INTO daily_attempts (user_id, game_date)
		VALUES ($1, $2::date)
		ON CONFLICT (user_id, game_date) DO UPDATE SET updated_at = now()
		RETURNING attempts
	`, userID, gameDate).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("ensure daily attempts: %w", err)
	}
	return attempts, nil
}

// SetAttempts records a redraw. The counter never moves backwards.
func (s *DailyStore) SetAttempts(ctx context.Context, userID, gameDate string, attempts int) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO daily_attempts (user_id, game_date, attempts)
		VALUES ($1, $2::date, $3)
		ON CONFLICT (user_id, game_date) DO UPDATE
		SET attempts = GREATEST(daily_attempts.attempts, EXCLUDED.attempts),
		    updated_at = now()
	`, userID, gameDate, attempts)
	if err != nil {
		return fmt.Errorf("set daily attempts: %w", err)
	}
	return nil
}

// InsertDailyScore stores the first score of the day. It reports false when
// a score already existed and leaves it untouched.
func (s *DailyStore) InsertDailyScore(ctx context.Context, userID, gameDate string, attempts, finalScore int) (bool, error) {
	var inserted string
	err := s.db.QueryRow(ctx, `
		INSERT INTO daily_scores (user_id, game_date, attempts, final_score)
		VALUES ($1, $2::date, $3, $4)
		ON CONFLICT (user_id, game_date) DO NOTHING
		RETURNING user_id
	`, userID, gameDate, attempts, finalScore).Scan(&inserted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert daily score: %w", err)
	}
	return true, nil
}

// GetDailyScore returns nil when the user has not completed gameDate.
func (s *DailyStore) GetDailyScore(ctx context.Context, userID, gameDate string) (*models.DailyScore, error) {
	ds := &models.DailyScore{}
	err := s.db.QueryRow(ctx, `
		SELECT user_id, game_date::text, attempts, final_score, created_at
		FROM daily_scores
		WHERE user_id = $1 AND game_date = $2::date
	`, userID, gameDate).Scan(&ds.UserID, &ds.GameDate, &ds.Attempts, &ds.FinalScore, &ds.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get daily score: %w", err)
	}
	return ds, nil
}

// DailyTotals returns how many players finished gameDate and their summed
// attempts.
func (s *DailyStore) DailyTotals(ctx context.Context, gameDate string) (players, attempts int64, err error) {
	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(attempts), 0)
		FROM daily_scores
		WHERE game_date = $1::date
	`, gameDate).Scan(&players, &attempts)
	if err != nil {
		return 0, 0, fmt.Errorf("daily totals: %w", err)
	}
	return players, attempts, nil
}
