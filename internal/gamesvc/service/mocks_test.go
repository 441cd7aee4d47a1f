package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/comm"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/models"
)

type MockRoomRepository struct {
	mock.Mock
}

func (m *MockRoomRepository) CreateRoom(ctx context.Context, id, code, host string) (*models.Room, error) {
	args := m.Called(ctx, id, code, host)
	room, _ := args.Get(0).(*models.Room)
	return room, args.Error(1)
}

func (m *MockRoomRepository) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	args := m.Called(ctx, id)
	room, _ := args.Get(0).(*models.Room)
	return room, args.Error(1)
}

func (m *MockRoomRepository) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	args := m.Called(ctx, code)
	room, _ := args.Get(0).(*models.Room)
	return room, args.Error(1)
}

func (m *MockRoomRepository) AddPlayer(ctx context.Context, roomID, nickname string) (*models.Player, error) {
	args := m.Called(ctx, roomID, nickname)
	p, _ := args.Get(0).(*models.Player)
	return p, args.Error(1)
}

func (m *MockRoomRepository) ListPlayers(ctx context.Context, roomID string) ([]models.Player, error) {
	args := m.Called(ctx, roomID)
	players, _ := args.Get(0).([]models.Player)
	return players, args.Error(1)
}

func (m *MockRoomRepository) UpsertPlayerState(ctx context.Context, roomID, nickname string, state []byte, score int, completed bool) (*models.Player, error) {
	args := m.Called(ctx, roomID, nickname, state, score, completed)
	p, _ := args.Get(0).(*models.Player)
	return p, args.Error(1)
}

func (m *MockRoomRepository) DeletePlayer(ctx context.Context, roomID, nickname string) (bool, error) {
	args := m.Called(ctx, roomID, nickname)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoomRepository) DeleteRoom(ctx context.Context, roomID string) (bool, error) {
	args := m.Called(ctx, roomID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoomRepository) MarkStarted(ctx context.Context, roomID string) error {
	return m.Called(ctx, roomID).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PublishRoomChange(change comm.RoomChange) error {
	return m.Called(change).Error(0)
}

type MockDailyRepository struct {
	mock.Mock
}

func (m *MockDailyRepository) GetOrCreateChallenge(ctx context.Context, gameDate string, seed int64, dayNumber int) (*models.DailyChallenge, error) {
	args := m.Called(ctx, gameDate, seed, dayNumber)
	ch, _ := args.Get(0).(*models.DailyChallenge)
	return ch, args.Error(1)
}

func (m *MockDailyRepository) EnsureAttempts(ctx context.Context, userID, gameDate string) (int, error) {
	args := m.Called(ctx, userID, gameDate)
	return args.Int(0), args.Error(1)
}

func (m *MockDailyRepository) SetAttempts(ctx context.Context, userID, gameDate string, attempts int) error {
	return m.Called(ctx, userID, gameDate, attempts).Error(0)
}

func (m *MockDailyRepository) InsertDailyScore(ctx context.Context, userID, gameDate string, attempts, finalScore int) (bool, error) {
	args := m.Called(ctx, userID, gameDate, attempts, finalScore)
	return args.Bool(0), args.Error(1)
}

func (m *MockDailyRepository) GetDailyScore(ctx context.Context, userID, gameDate string) (*models.DailyScore, error) {
	args := m.Called(ctx, userID, gameDate)
	s, _ := args.Get(0).(*models.DailyScore)
	return s, args.Error(1)
}

func (m *MockDailyRepository) DailyTotals(ctx context.Context, gameDate string) (int64, int64, error) {
	args := m.Called(ctx, gameDate)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

type MockRedis struct {
	mock.Mock
}

func (m *MockRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return m.Called(ctx, key, value, expiration).Error(0)
}

func (m *MockRedis) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

type MockScoreRepository struct {
	mock.Mock
}

func (m *MockScoreRepository) InsertScore(ctx context.Context, userID *string, drinkCount int) (*models.Score, error) {
	args := m.Called(ctx, userID, drinkCount)
	s, _ := args.Get(0).(*models.Score)
	return s, args.Error(1)
}

type MockCardStats struct {
	mock.Mock
}

func (m *MockCardStats) RecordCards(ctx context.Context, cards []game.Card) error {
	return m.Called(ctx, cards).Error(0)
}

func (m *MockCardStats) ListStats(ctx context.Context) ([]models.CardStat, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).([]models.CardStat)
	return s, args.Error(1)
}
