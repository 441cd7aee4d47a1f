package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/models"
)

const (
	dateLayout      = "2006-01-02"
	seedCacheTTL    = 36 * time.Hour
	seedCachePrefix = "daily:seed:"
)

type DailyRepository interface {
	GetOrCreateChallenge(ctx context.Context, gameDate string, seed int64, dayNumber int) (*models.DailyChallenge, error)
	EnsureAttempts(ctx context.Context, userID, gameDate string) (int, error)
	SetAttempts(ctx context.Context, userID, gameDate string, attempts int) error
	InsertDailyScore(ctx context.Context, userID, gameDate string, attempts, finalScore int) (bool, error)
	GetDailyScore(ctx context.Context, userID, gameDate string) (*models.DailyScore, error)
	DailyTotals(ctx context.Context, gameDate string) (players, attempts int64, err error)
}

// DailyService issues the seeded challenge of the day and records results.
type DailyService struct {
	store   DailyRepository
	cache   RedisClient
	epoch   time.Time
	now     func() time.Time
	newSeed func() int64
}

// NewDailyService counts day numbers from epoch. cache may be nil.
func NewDailyService(store DailyRepository, cache RedisClient, epoch time.Time) *DailyService {
	return &DailyService{
		store:   store,
		cache:   cache,
		epoch:   truncateDay(epoch),
		now:     time.Now,
		newSeed: func() int64 { return rand.Int64N(1 << 31) },
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *DailyService) Today() string {
	return s.now().UTC().Format(dateLayout)
}

// DayNumber is 1 on the epoch day.
func (s *DailyService) DayNumber(day time.Time) int {
	return int(truncateDay(day).Sub(s.epoch)/(24*time.Hour)) + 1
}

// GetDailySeed returns today's challenge, creating it on first request.
// Every caller on the same UTC date gets the same seed.
func (s *DailyService) GetDailySeed(ctx context.Context) (game.DailyChallenge, error) {
	now := s.now()
	date := now.UTC().Format(dateLayout)
	key := seedCachePrefix + date

	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			var ch game.DailyChallenge
			if err := json.Unmarshal([]byte(raw), &ch); err == nil {
				return ch, nil
			}
			log.Warnf("discarding malformed cached seed for %s", date)
		case !errors.Is(err, redis.Nil):
			log.Warnf("seed cache read failed: %v", err)
		}
	}

	row, err := s.store.GetOrCreateChallenge(ctx, date, s.newSeed(), s.DayNumber(now))
	if err != nil {
		return game.DailyChallenge{}, fmt.Errorf("get daily challenge: %w", err)
	}
	ch := game.DailyChallenge{Seed: row.Seed, DayNumber: row.DayNumber, GameDate: row.GameDate}

	if s.cache != nil {
		blob, _ := json.Marshal(ch)
		if err := s.cache.Set(ctx, key, string(blob), seedCacheTTL); err != nil {
			log.Warnf("seed cache write failed: %v", err)
		}
	}
	return ch, nil
}

func validDate(date string) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return ErrInvalidDate
	}
	return nil
}

// Status reports whether userID already finished date and how many
// attempts were recorded. The attempts row is created when missing.
func (s *DailyService) Status(ctx context.Context, userID, date string) (models.DailyStatus, error) {
	if userID == "" {
		return models.DailyStatus{}, ErrIdentityRequired
	}
	if err := validDate(date); err != nil {
		return models.DailyStatus{}, err
	}

	score, err := s.store.GetDailyScore(ctx, userID, date)
	if err != nil {
		return models.DailyStatus{}, err
	}
	if score != nil {
		fs := score.FinalScore
		return models.DailyStatus{Completed: true, Score: &fs, Attempts: score.Attempts}, nil
	}

	attempts, err := s.store.EnsureAttempts(ctx, userID, date)
	if err != nil {
		return models.DailyStatus{}, err
	}
	return models.DailyStatus{Attempts: attempts}, nil
}

// RecordAttempts stores the running attempt count so a reconnect resumes
// on the same draw number. Counts never go backwards.
func (s *DailyService) RecordAttempts(ctx context.Context, userID, date string, attempts int) error {
	if userID == "" {
		return nil
	}
	return s.store.SetAttempts(ctx, userID, date, attempts)
}

// SubmitDailyScore saves the first result of today's challenge. The score
// is never lower than the attempts already recorded for the day. A second
// submission reports the score that was already stored.
func (s *DailyService) SubmitDailyScore(ctx context.Context, userID, date string, attempts int) (models.ScoreResult, error) {
	if userID == "" {
		return models.ScoreResult{}, ErrIdentityRequired
	}
	if err := validDate(date); err != nil {
		return models.ScoreResult{}, err
	}
	if date != s.Today() {
		return models.ScoreResult{}, ErrNotToday
	}
	if attempts < 0 {
		return models.ScoreResult{}, ErrInvalidScore
	}

	recorded, err := s.store.EnsureAttempts(ctx, userID, date)
	if err != nil {
		return models.ScoreResult{}, err
	}
	attempts = max(attempts, recorded)

	saved, err := s.store.InsertDailyScore(ctx, userID, date, attempts, attempts)
	if err != nil {
		return models.ScoreResult{}, err
	}
	if saved {
		return models.ScoreResult{Saved: true, FinalScore: attempts}, nil
	}

	existing, err := s.store.GetDailyScore(ctx, userID, date)
	if err != nil {
		return models.ScoreResult{}, err
	}
	if existing == nil {
		return models.ScoreResult{}, fmt.Errorf("daily score for %s on %s vanished", userID, date)
	}
	return models.ScoreResult{FinalScore: existing.FinalScore, AlreadyCompleted: true}, nil
}

func (s *DailyService) Stats(ctx context.Context, date string) (models.DailyStats, error) {
	if date == "" {
		date = s.Today()
	}
	if err := validDate(date); err != nil {
		return models.DailyStats{}, err
	}

	players, attempts, err := s.store.DailyTotals(ctx, date)
	if err != nil {
		return models.DailyStats{}, err
	}
	avg := decimal.Zero
	if players > 0 {
		avg = decimal.NewFromInt(attempts).Div(decimal.NewFromInt(players))
	}
	return models.DailyStats{
		GameDate:        date,
		Players:         players,
		AverageAttempts: avg.StringFixed(2),
	}, nil
}
