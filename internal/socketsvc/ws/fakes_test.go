package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/comm"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/models"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/service"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/multiplayer"
)

// recorder captures everything written to a socket.
type recorder struct {
	mu   sync.Mutex
	msgs []comm.WSMessage
}

func (r *recorder) WriteJSON(v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var msg comm.WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return err
	}
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
	return nil
}

func (r *recorder) last(msgType string) (comm.WSMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].Type == msgType {
			return r.msgs[i], true
		}
	}
	return comm.WSMessage{}, false
}

func (r *recorder) count(msgType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

type MockDaily struct{ mock.Mock }

func (m *MockDaily) GetDailySeed(ctx context.Context) (game.DailyChallenge, error) {
	args := m.Called()
	return args.Get(0).(game.DailyChallenge), args.Error(1)
}

func (m *MockDaily) Status(ctx context.Context, userID, date string) (models.DailyStatus, error) {
	args := m.Called(userID, date)
	return args.Get(0).(models.DailyStatus), args.Error(1)
}

func (m *MockDaily) RecordAttempts(ctx context.Context, userID, date string, attempts int) error {
	return m.Called(userID, date, attempts).Error(0)
}

func (m *MockDaily) SubmitDailyScore(ctx context.Context, userID, date string, attempts int) (models.ScoreResult, error) {
	args := m.Called(userID, date, attempts)
	return args.Get(0).(models.ScoreResult), args.Error(1)
}

type MockScores struct{ mock.Mock }

func (m *MockScores) SubmitScore(ctx context.Context, drinkCount int, userID string) (*models.Score, error) {
	args := m.Called(drinkCount, userID)
	s, _ := args.Get(0).(*models.Score)
	return s, args.Error(1)
}

type MockTelemetry struct{ mock.Mock }

func (m *MockTelemetry) RecordDrawnCards(ctx context.Context, cards []game.Card) error {
	return m.Called(cards).Error(0)
}

// roomBackend is a single-instance room store. It has no peers, so the
// feed and presence never deliver anything.
type roomBackend struct {
	mu      sync.Mutex
	rooms   map[string]*models.Room
	players map[string]map[string]game.State
	started map[string]bool
}

func newRoomBackend() *roomBackend {
	return &roomBackend{
		rooms:   make(map[string]*models.Room),
		players: make(map[string]map[string]game.State),
		started: make(map[string]bool),
	}
}

func (b *roomBackend) addRoom(id, host string, members ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rooms[id] = &models.Room{ID: id, HostNickname: host, CreatedAt: time.Now()}
	b.players[id] = map[string]game.State{host: {}}
	for _, m := range members {
		b.players[id][m] = game.State{}
	}
}

func (b *roomBackend) hasPlayer(roomID, nickname string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.players[roomID][nickname]
	return ok
}

func (b *roomBackend) hasRoom(roomID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.rooms[roomID]
	return ok
}

func (b *roomBackend) isStarted(roomID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started[roomID]
}

func (b *roomBackend) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rooms[roomID]
	if !ok {
		return nil, service.ErrRoomNotFound
	}
	cp := *r
	cp.GameStarted = b.started[roomID]
	return &cp, nil
}

func (b *roomBackend) ListPlayers(ctx context.Context, roomID string) ([]models.Player, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Player
	for n, st := range b.players[roomID] {
		p := models.Player{RoomID: roomID, Nickname: n, UpdatedAt: time.Now()}
		if len(st.Hand) > 0 {
			p.GameState, _ = json.Marshal(st)
		}
		out = append(out, p)
	}
	return out, nil
}

func (b *roomBackend) SavePlayerState(ctx context.Context, roomID, nickname string, state game.State) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rooms[roomID]; !ok {
		return service.ErrRoomNotFound
	}
	b.players[roomID][nickname] = state.Clone()
	return nil
}

func (b *roomBackend) DeletePlayer(ctx context.Context, roomID, nickname string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.players[roomID], nickname)
	return nil
}

func (b *roomBackend) DeleteRoom(ctx context.Context, roomID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.rooms, roomID)
	delete(b.players, roomID)
	return nil
}

func (b *roomBackend) StartRoom(ctx context.Context, roomID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.rooms[roomID]; !ok {
		return service.ErrRoomNotFound
	}
	b.started[roomID] = true
	return nil
}

type quietNetwork struct{}

type noopSub struct{}

func (noopSub) Unsubscribe() error { return nil }

type noopPresence struct{}

func (noopPresence) Track() error       { return nil }
func (noopPresence) Untrack() error     { return nil }
func (noopPresence) Unsubscribe() error { return nil }

func (quietNetwork) SubscribeRoom(roomID string, onChange func(comm.RoomChange)) (multiplayer.Subscription, error) {
	return noopSub{}, nil
}

func (quietNetwork) JoinPresence(roomID, nickname string, h multiplayer.PresenceHandlers) (multiplayer.PresenceChannel, error) {
	return noopPresence{}, nil
}
