package multiplayer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/comm"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
)

var (
	ErrRoomClosed = errors.New("room has ended")
	ErrNotHost    = errors.New("only the host can start the game")
)

const (
	DefaultPresenceGrace = 2 * time.Second

	eventBuffer = 256

	ReasonRoomDeleted = "room-deleted"
	ReasonHostLeft    = "host-left"
)

type Options struct {
	RoomID   string
	Nickname string
	// Shuffler deals the local hands. Nil deals non-deterministic hands.
	Shuffler      game.Shuffler
	PresenceGrace time.Duration
	Callbacks     Callbacks
}

// Coordinator runs one player's seat in a room. The local state machine
// and the peer map are owned by a single goroutine; everything else talks
// to it through the events channel.
type Coordinator struct {
	roomID   string
	nickname string
	host     string

	store    Store
	feed     Feed
	presence Presence
	shuffler game.Shuffler
	grace    time.Duration
	cb       Callbacks
	log      *log.Entry

	// loop-owned
	state      game.State
	peers      map[string]game.State
	present    map[string]struct{}
	started    bool
	closed     bool
	graceTimer *time.Timer
	sweepGen   int

	events chan event

	pendingMu     sync.Mutex
	pending       *game.State
	persistSignal chan struct{}

	sub        Subscription
	presenceCh PresenceChannel

	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type event interface{}

type changeEvent struct{ change comm.RoomChange }
type syncEvent struct{ present []string }
type joinEvent struct{ nickname string }
type leaveEvent struct{ nickname string }
type sweepEvent struct{ gen int }
type closeRoomEvent struct{ reason string }

type result struct {
	state game.State
	err   error
}

type drawCmd struct {
	reset bool
	reply chan result
}

type guessCmd struct {
	round int
	guess game.Guess
	reply chan result
}

type snapshotCmd struct {
	reply chan snapshot
}

type snapshot struct {
	state   game.State
	peers   map[string]game.State
	started bool
	closed  bool
}

func NewCoordinator(store Store, feed Feed, presence Presence, opts Options) *Coordinator {
	grace := opts.PresenceGrace
	if grace <= 0 {
		grace = DefaultPresenceGrace
	}
	shuffler := opts.Shuffler
	if shuffler == nil {
		shuffler = game.RandomShuffler{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		roomID:        opts.RoomID,
		nickname:      opts.Nickname,
		store:         store,
		feed:          feed,
		presence:      presence,
		shuffler:      shuffler,
		grace:         grace,
		cb:            opts.Callbacks,
		log:           log.WithFields(log.Fields{"room": opts.RoomID, "nickname": opts.Nickname}),
		state:         game.NewState(),
		peers:         make(map[string]game.State),
		present:       make(map[string]struct{}),
		events:        make(chan event, eventBuffer),
		persistSignal: make(chan struct{}, 1),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

func (c *Coordinator) RoomID() string   { return c.roomID }
func (c *Coordinator) Nickname() string { return c.nickname }
func (c *Coordinator) Host() string     { return c.host }
func (c *Coordinator) IsHost() bool     { return c.host == c.nickname }

// Start joins the room. Change notifications are subscribed before the
// player snapshot is read so no peer update falls between the two; the
// local draw happens only after the snapshot, and is persisted before it
// becomes the local state.
func (c *Coordinator) Start(ctx context.Context) (game.State, error) {
	room, err := c.store.GetRoom(ctx, c.roomID)
	if err != nil {
		c.cancel()
		return game.State{}, err
	}
	c.host = room.HostNickname
	c.started = room.GameStarted

	sub, err := c.feed.SubscribeRoom(c.roomID, func(ch comm.RoomChange) {
		c.enqueue(changeEvent{change: ch})
	})
	if err != nil {
		c.cancel()
		return game.State{}, fmt.Errorf("subscribe room %s: %w", c.roomID, err)
	}
	c.sub = sub

	players, err := c.store.ListPlayers(ctx, c.roomID)
	if err != nil {
		c.teardown()
		return game.State{}, fmt.Errorf("list players: %w", err)
	}
	for _, p := range players {
		if p.Nickname == c.nickname {
			continue
		}
		st, err := DecodePeerState(p.GameState)
		if err != nil {
			c.log.Warnf("ignoring state of %s: %v", p.Nickname, err)
			continue
		}
		c.peers[p.Nickname] = st
	}

	presenceCh, err := c.presence.JoinPresence(c.roomID, c.nickname, PresenceHandlers{
		OnSync:  func(present []string) { c.enqueue(syncEvent{present: present}) },
		OnJoin:  func(nickname string) { c.enqueue(joinEvent{nickname: nickname}) },
		OnLeave: func(nickname string) { c.enqueue(leaveEvent{nickname: nickname}) },
	})
	if err != nil {
		c.teardown()
		return game.State{}, fmt.Errorf("join presence: %w", err)
	}
	c.presenceCh = presenceCh
	if err := presenceCh.Track(); err != nil {
		c.log.Warnf("presence track failed: %v", err)
	}

	first, err := game.Transition(c.state, game.DrawEvent{Hand: c.shuffler.Draw(game.HandSize)})
	if err != nil {
		c.teardown()
		return game.State{}, err
	}
	if err := c.store.SavePlayerState(ctx, c.roomID, c.nickname, first); err != nil {
		c.log.Errorf("persist initial hand: %v", err)
	}
	c.state = first

	c.wg.Add(2)
	go c.loop()
	go c.persistLoop()

	return first.Clone(), nil
}

func (c *Coordinator) enqueue(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Coordinator) loop() {
	defer c.wg.Done()
	c.emitPeers()
	for {
		select {
		case <-c.done:
			if c.graceTimer != nil {
				c.graceTimer.Stop()
			}
			return
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *Coordinator) handle(ev event) {
	switch e := ev.(type) {
	case drawCmd:
		if c.closed {
			e.reply <- result{state: c.state.Clone(), err: ErrRoomClosed}
			return
		}
		e.reply <- c.apply(game.DrawEvent{Hand: c.shuffler.Draw(game.HandSize), Reset: e.reset})
	case guessCmd:
		if c.closed {
			e.reply <- result{state: c.state.Clone(), err: ErrRoomClosed}
			return
		}
		e.reply <- c.apply(game.GuessEvent{Round: e.round, Guess: e.guess})
	case snapshotCmd:
		e.reply <- snapshot{
			state:   c.state.Clone(),
			peers:   clonePeers(c.peers),
			started: c.started,
			closed:  c.closed,
		}
	case changeEvent:
		c.handleChange(e.change)
	case syncEvent:
		c.handleSync(e.present)
	case joinEvent:
		c.present[e.nickname] = struct{}{}
	case leaveEvent:
		delete(c.present, e.nickname)
		if e.nickname != c.nickname && !c.closed {
			c.wg.Add(1)
			go func(n string) {
				defer c.wg.Done()
				c.evict([]string{n})
			}(e.nickname)
		}
	case sweepEvent:
		if e.gen != c.sweepGen || c.closed {
			return
		}
		present := make(map[string]struct{}, len(c.present))
		for k := range c.present {
			present[k] = struct{}{}
		}
		c.wg.Add(1)
		go c.sweep(present)
	case closeRoomEvent:
		c.closeRoom(e.reason)
	default:
		c.log.Warnf("unknown event %T", ev)
	}
}

// apply runs a local transition. The new state is kept even if it never
// reaches the store.
func (c *Coordinator) apply(ev game.Event) result {
	next, err := game.Transition(c.state, ev)
	if err != nil {
		return result{state: c.state.Clone(), err: err}
	}
	c.state = next
	c.queuePersist(next)
	return result{state: next.Clone()}
}

func (c *Coordinator) handleChange(ch comm.RoomChange) {
	if ch.RoomID != "" && ch.RoomID != c.roomID {
		return
	}
	switch ch.Kind {
	case comm.PlayerUpserted:
		if ch.Nickname == c.nickname || ch.Nickname == "" {
			return
		}
		st, err := DecodePeerState(ch.State)
		if err != nil {
			c.log.Warnf("ignoring update from %s: %v", ch.Nickname, err)
			return
		}
		c.peers[ch.Nickname] = st
		c.emitPeers()
	case comm.PlayerDeleted:
		if ch.Nickname == c.nickname {
			return
		}
		if _, ok := c.peers[ch.Nickname]; !ok {
			return
		}
		delete(c.peers, ch.Nickname)
		c.emitPeers()
	case comm.RoomStarted:
		if c.started {
			return
		}
		c.started = true
		if c.cb.OnRoomStarted != nil {
			c.cb.OnRoomStarted()
		}
	case comm.RoomDeleted:
		c.closeRoom(ReasonRoomDeleted)
	}
}

// handleSync restarts the grace window. Only the last sync before the
// window expires triggers a sweep.
func (c *Coordinator) handleSync(present []string) {
	c.present = make(map[string]struct{}, len(present))
	for _, n := range present {
		c.present[n] = struct{}{}
	}
	if c.closed {
		return
	}
	if c.graceTimer != nil {
		c.graceTimer.Stop()
	}
	c.sweepGen++
	gen := c.sweepGen
	c.graceTimer = time.AfterFunc(c.grace, func() {
		c.enqueue(sweepEvent{gen: gen})
	})
}

// sweep removes persisted players that are not present.
func (c *Coordinator) sweep(present map[string]struct{}) {
	defer c.wg.Done()
	players, err := c.store.ListPlayers(c.ctx, c.roomID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.log.Errorf("presence sweep: %v", err)
		}
		return
	}
	var absent []string
	for _, p := range players {
		if p.Nickname == c.nickname {
			continue
		}
		// a player who just joined may not be tracked yet
		if time.Since(p.UpdatedAt) < c.grace {
			continue
		}
		if _, ok := present[p.Nickname]; !ok {
			absent = append(absent, p.Nickname)
		}
	}
	if len(absent) == 0 {
		return
	}
	sort.Strings(absent)
	c.evict(absent)
}

// evict deletes the records of players that left. Losing the host ends
// the room for everyone.
func (c *Coordinator) evict(nicknames []string) {
	for _, n := range nicknames {
		if n == c.host {
			c.log.Infof("host %s left, closing room", n)
			if err := c.store.DeleteRoom(c.ctx, c.roomID); err != nil {
				c.log.Errorf("delete room: %v", err)
			}
			c.enqueue(closeRoomEvent{reason: ReasonHostLeft})
			return
		}
		c.log.Infof("removing %s", n)
		if err := c.store.DeletePlayer(c.ctx, c.roomID, n); err != nil {
			c.log.Errorf("delete player %s: %v", n, err)
		}
	}
}

func (c *Coordinator) closeRoom(reason string) {
	if c.closed {
		return
	}
	c.closed = true
	if c.graceTimer != nil {
		c.graceTimer.Stop()
	}
	if c.cb.OnRoomClosed != nil {
		c.cb.OnRoomClosed(reason)
	}
	// Close waits for this goroutine.
	go c.Close()
}

func (c *Coordinator) emitPeers() {
	if c.cb.OnPeers != nil {
		c.cb.OnPeers(clonePeers(c.peers))
	}
}

// queuePersist hands the state to the writer. Only the newest unsaved
// state is written, in order.
func (c *Coordinator) queuePersist(st game.State) {
	st = st.Clone()
	c.pendingMu.Lock()
	c.pending = &st
	c.pendingMu.Unlock()
	select {
	case c.persistSignal <- struct{}{}:
	default:
	}
}

func (c *Coordinator) persistLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case <-c.persistSignal:
		}
		c.pendingMu.Lock()
		st := c.pending
		c.pending = nil
		c.pendingMu.Unlock()
		if st == nil {
			continue
		}
		if err := c.store.SavePlayerState(c.ctx, c.roomID, c.nickname, *st); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Errorf("persist state: %v", err)
		}
	}
}

func (c *Coordinator) call(ctx context.Context, ev event) error {
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) await(ctx context.Context, reply chan result) (game.State, error) {
	select {
	case r := <-reply:
		return r.state, r.err
	case <-c.done:
		return game.State{}, ErrRoomClosed
	case <-ctx.Done():
		return game.State{}, ctx.Err()
	}
}

// Draw deals a new local hand. Reset starts over after a win.
func (c *Coordinator) Draw(ctx context.Context, reset bool) (game.State, error) {
	reply := make(chan result, 1)
	if err := c.call(ctx, drawCmd{reset: reset, reply: reply}); err != nil {
		return game.State{}, err
	}
	return c.await(ctx, reply)
}

func (c *Coordinator) Guess(ctx context.Context, round int, guess game.Guess) (game.State, error) {
	reply := make(chan result, 1)
	if err := c.call(ctx, guessCmd{round: round, guess: guess, reply: reply}); err != nil {
		return game.State{}, err
	}
	return c.await(ctx, reply)
}

func (c *Coordinator) snapshot(ctx context.Context) (snapshot, error) {
	reply := make(chan snapshot, 1)
	if err := c.call(ctx, snapshotCmd{reply: reply}); err != nil {
		return snapshot{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-c.done:
		return snapshot{}, ErrRoomClosed
	case <-ctx.Done():
		return snapshot{}, ctx.Err()
	}
}

func (c *Coordinator) State(ctx context.Context) (game.State, error) {
	s, err := c.snapshot(ctx)
	return s.state, err
}

// Peers is the last known state of every other player.
func (c *Coordinator) Peers(ctx context.Context) (map[string]game.State, error) {
	s, err := c.snapshot(ctx)
	return s.peers, err
}

// StartGame closes the lobby. Host only.
func (c *Coordinator) StartGame(ctx context.Context) error {
	if !c.IsHost() {
		return ErrNotHost
	}
	select {
	case <-c.done:
		return ErrRoomClosed
	default:
	}
	return c.store.StartRoom(ctx, c.roomID)
}

// Leave closes the seat and removes the player's record. A leaving host
// takes the room with them.
func (c *Coordinator) Leave(ctx context.Context) error {
	c.Close()
	if c.IsHost() {
		return c.store.DeleteRoom(ctx, c.roomID)
	}
	return c.store.DeletePlayer(ctx, c.roomID, c.nickname)
}

// Close stops the coordinator and drops its subscriptions. Unsaved state
// is discarded. Safe to call more than once.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
		c.teardown()
		c.wg.Wait()
	})
}

func (c *Coordinator) teardown() {
	c.cancel()
	if c.presenceCh != nil {
		if err := c.presenceCh.Untrack(); err != nil {
			c.log.Warnf("untrack: %v", err)
		}
		if err := c.presenceCh.Unsubscribe(); err != nil {
			c.log.Warnf("presence unsubscribe: %v", err)
		}
		c.presenceCh = nil
	}
	if c.sub != nil {
		if err := c.sub.Unsubscribe(); err != nil {
			c.log.Warnf("unsubscribe: %v", err)
		}
		c.sub = nil
	}
}
