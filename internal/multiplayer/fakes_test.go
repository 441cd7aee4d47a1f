package multiplayer

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/comm"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/models"
)

var errNoRoom = errors.New("room not found")

// fakeBackend is an in-memory room store with change and presence fan-out.
type fakeBackend struct {
	mu       sync.Mutex
	rooms    map[string]*models.Room
	players  map[string]map[string]*models.Player
	subs     map[string]map[*fakeSub]struct{}
	channels map[string]map[*fakePresence]struct{}
	tracked  map[string]map[string]struct{}
	saveErr  error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		rooms:    make(map[string]*models.Room),
		players:  make(map[string]map[string]*models.Player),
		subs:     make(map[string]map[*fakeSub]struct{}),
		channels: make(map[string]map[*fakePresence]struct{}),
		tracked:  make(map[string]map[string]struct{}),
	}
}

func (b *fakeBackend) createRoom(id, host string) {
	b.mu.Lock()
	b.rooms[id] = &models.Room{ID: id, RoomCode: "ABCDEF", HostNickname: host, CreatedAt: time.Now()}
	b.players[id] = map[string]*models.Player{host: {RoomID: id, Nickname: host, UpdatedAt: time.Now()}}
	b.mu.Unlock()
}

// joinRoom inserts a bare player row the way the join endpoint does.
func (b *fakeBackend) joinRoom(roomID, nickname string) {
	b.mu.Lock()
	b.players[roomID][nickname] = &models.Player{RoomID: roomID, Nickname: nickname, UpdatedAt: time.Now()}
	b.mu.Unlock()
	b.publish(comm.RoomChange{Kind: comm.PlayerUpserted, RoomID: roomID, Nickname: nickname})
}

func (b *fakeBackend) setSaveErr(err error) {
	b.mu.Lock()
	b.saveErr = err
	b.mu.Unlock()
}

func (b *fakeBackend) hasPlayer(roomID, nickname string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.players[roomID][nickname]
	return ok
}

func (b *fakeBackend) hasRoom(roomID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.rooms[roomID]
	return ok
}

func (b *fakeBackend) storedState(roomID, nickname string) (game.State, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.players[roomID][nickname]
	if !ok || len(p.GameState) == 0 {
		return game.State{}, false
	}
	var st game.State
	_ = json.Unmarshal(p.GameState, &st)
	return st, true
}

func (b *fakeBackend) listeners(roomID string) (subs, channels int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[roomID]), len(b.channels[roomID])
}

func (b *fakeBackend) publish(ch comm.RoomChange) {
	b.mu.Lock()
	var subs []*fakeSub
	for s := range b.subs[ch.RoomID] {
		subs = append(subs, s)
	}
	b.mu.Unlock()
	for _, s := range subs {
		s.fn(ch)
	}
}

// inject delivers an arbitrary change, bypassing the store.
func (b *fakeBackend) inject(ch comm.RoomChange) {
	b.publish(ch)
}

func (b *fakeBackend) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rooms[roomID]
	if !ok {
		return nil, errNoRoom
	}
	cp := *r
	return &cp, nil
}

func (b *fakeBackend) ListPlayers(ctx context.Context, roomID string) ([]models.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Player
	for _, p := range b.players[roomID] {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nickname < out[j].Nickname })
	return out, nil
}

func (b *fakeBackend) SavePlayerState(ctx context.Context, roomID, nickname string, state game.State) error {
	blob, _ := json.Marshal(state)
	b.mu.Lock()
	if b.saveErr != nil {
		err := b.saveErr
		b.mu.Unlock()
		return err
	}
	if _, ok := b.rooms[roomID]; !ok {
		b.mu.Unlock()
		return errNoRoom
	}
	b.players[roomID][nickname] = &models.Player{
		RoomID:    roomID,
		Nickname:  nickname,
		GameState: blob,
		Score:     max(state.DrinkCount, 0),
		Completed: state.HasWon,
		UpdatedAt: time.Now(),
	}
	b.mu.Unlock()
	b.publish(comm.RoomChange{Kind: comm.PlayerUpserted, RoomID: roomID, Nickname: nickname, State: blob})
	return nil
}

func (b *fakeBackend) DeletePlayer(ctx context.Context, roomID, nickname string) error {
	b.mu.Lock()
	_, ok := b.players[roomID][nickname]
	delete(b.players[roomID], nickname)
	b.mu.Unlock()
	if ok {
		b.publish(comm.RoomChange{Kind: comm.PlayerDeleted, RoomID: roomID, Nickname: nickname})
	}
	return nil
}

func (b *fakeBackend) DeleteRoom(ctx context.Context, roomID string) error {
	b.mu.Lock()
	_, ok := b.rooms[roomID]
	delete(b.rooms, roomID)
	delete(b.players, roomID)
	b.mu.Unlock()
	if ok {
		b.publish(comm.RoomChange{Kind: comm.RoomDeleted, RoomID: roomID})
	}
	return nil
}

func (b *fakeBackend) StartRoom(ctx context.Context, roomID string) error {
	b.mu.Lock()
	r, ok := b.rooms[roomID]
	if ok {
		r.GameStarted = true
	}
	b.mu.Unlock()
	if !ok {
		return errNoRoom
	}
	b.publish(comm.RoomChange{Kind: comm.RoomStarted, RoomID: roomID})
	return nil
}

type fakeSub struct {
	b      *fakeBackend
	roomID string
	fn     func(comm.RoomChange)
}

func (s *fakeSub) Unsubscribe() error {
	s.b.mu.Lock()
	delete(s.b.subs[s.roomID], s)
	s.b.mu.Unlock()
	return nil
}

func (b *fakeBackend) SubscribeRoom(roomID string, fn func(comm.RoomChange)) (Subscription, error) {
	s := &fakeSub{b: b, roomID: roomID, fn: fn}
	b.mu.Lock()
	if b.subs[roomID] == nil {
		b.subs[roomID] = make(map[*fakeSub]struct{})
	}
	b.subs[roomID][s] = struct{}{}
	b.mu.Unlock()
	return s, nil
}

type fakePresence struct {
	b        *fakeBackend
	roomID   string
	nickname string
	h        PresenceHandlers
}

func (b *fakeBackend) JoinPresence(roomID, nickname string, h PresenceHandlers) (PresenceChannel, error) {
	p := &fakePresence{b: b, roomID: roomID, nickname: nickname, h: h}
	b.mu.Lock()
	if b.channels[roomID] == nil {
		b.channels[roomID] = make(map[*fakePresence]struct{})
		b.tracked[roomID] = make(map[string]struct{})
	}
	b.channels[roomID][p] = struct{}{}
	b.mu.Unlock()
	return p, nil
}

func (b *fakeBackend) presenceFanout(roomID string) ([]*fakePresence, []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var chans []*fakePresence
	for p := range b.channels[roomID] {
		chans = append(chans, p)
	}
	var members []string
	for n := range b.tracked[roomID] {
		members = append(members, n)
	}
	sort.Strings(members)
	return chans, members
}

func (p *fakePresence) Track() error {
	p.b.mu.Lock()
	p.b.tracked[p.roomID][p.nickname] = struct{}{}
	p.b.mu.Unlock()
	chans, members := p.b.presenceFanout(p.roomID)
	for _, c := range chans {
		c.h.OnJoin(p.nickname)
		c.h.OnSync(members)
	}
	return nil
}

func (p *fakePresence) Untrack() error {
	p.b.mu.Lock()
	_, ok := p.b.tracked[p.roomID][p.nickname]
	delete(p.b.tracked[p.roomID], p.nickname)
	p.b.mu.Unlock()
	if !ok {
		return nil
	}
	chans, members := p.b.presenceFanout(p.roomID)
	for _, c := range chans {
		if c == p {
			continue
		}
		c.h.OnLeave(p.nickname)
		c.h.OnSync(members)
	}
	return nil
}

func (p *fakePresence) Unsubscribe() error {
	p.b.mu.Lock()
	delete(p.b.channels[p.roomID], p)
	p.b.mu.Unlock()
	return nil
}

// dropPresence forgets nickname without a leave message, the way a
// timed out connection disappears.
func (b *fakeBackend) dropPresence(roomID, nickname string) {
	b.mu.Lock()
	delete(b.tracked[roomID], nickname)
	b.mu.Unlock()
	chans, members := b.presenceFanout(roomID)
	for _, c := range chans {
		c.h.OnSync(members)
	}
}

// retrack brings nickname back, as after a quick reconnect.
func (b *fakeBackend) retrack(roomID, nickname string) {
	b.mu.Lock()
	b.tracked[roomID][nickname] = struct{}{}
	b.mu.Unlock()
	chans, members := b.presenceFanout(roomID)
	for _, c := range chans {
		c.h.OnSync(members)
	}
}

// recorder captures coordinator callbacks.
type recorder struct {
	mu      sync.Mutex
	peers   map[string]game.State
	started int
	closed  []string
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnPeers: func(p map[string]game.State) {
			r.mu.Lock()
			r.peers = p
			r.mu.Unlock()
		},
		OnRoomStarted: func() {
			r.mu.Lock()
			r.started++
			r.mu.Unlock()
		},
		OnRoomClosed: func(reason string) {
			r.mu.Lock()
			r.closed = append(r.closed, reason)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) peer(nickname string) (game.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.peers[nickname]
	return st, ok
}

func (r *recorder) startedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func (r *recorder) closedReasons() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.closed...)
}
