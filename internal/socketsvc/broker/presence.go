package broker

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/comm"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/multiplayer"
)

// members missing this many heartbeats are dropped
const missedHeartbeats = 3

// presenceState is the member table of one room as seen by one channel.
type presenceState struct {
	ttl  time.Duration
	seen map[string]time.Time
}

func newPresenceState(ttl time.Duration) *presenceState {
	return &presenceState{ttl: ttl, seen: make(map[string]time.Time)}
}

// observe applies a presence message and reports membership changes.
func (p *presenceState) observe(msg comm.PresenceMessage, now time.Time) (joined, left bool) {
	if msg.Nickname == "" {
		return false, false
	}
	_, known := p.seen[msg.Nickname]
	switch msg.Kind {
	case comm.PresenceJoin, comm.PresenceHeartbeat:
		p.seen[msg.Nickname] = now
		return !known, false
	case comm.PresenceLeave:
		delete(p.seen, msg.Nickname)
		return false, known
	}
	return false, false
}

// prune drops members not heard from within ttl.
func (p *presenceState) prune(now time.Time) []string {
	var gone []string
	for n, at := range p.seen {
		if now.Sub(at) > p.ttl {
			delete(p.seen, n)
			gone = append(gone, n)
		}
	}
	sort.Strings(gone)
	return gone
}

func (p *presenceState) members() []string {
	out := make([]string, 0, len(p.seen))
	for n := range p.seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// presenceBus is the part of NATS a presence channel talks to.
type presenceBus interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handle func(data []byte)) (multiplayer.Subscription, error)
}

type natsBus struct {
	b *Broker
}

func (n natsBus) Publish(subject string, data []byte) error {
	return n.b.Publish(subject, data)
}

func (n natsBus) Subscribe(subject string, handle func(data []byte)) (multiplayer.Subscription, error) {
	sub, err := n.b.Conn.Subscribe(subject, func(msg *nats.Msg) { handle(msg.Data) })
	if err != nil {
		return nil, err
	}
	return sub, nil
}

type presenceChannel struct {
	bus       presenceBus
	instance  string
	heartbeat time.Duration
	roomID    string
	nickname  string
	h         multiplayer.PresenceHandlers

	// send orders outgoing messages so no heartbeat follows a leave
	send sync.Mutex

	mu       sync.Mutex
	state    *presenceState
	tracking bool
	// sync is held back for one heartbeat so the table can fill up first
	warm bool

	sub  multiplayer.Subscription
	stop chan struct{}
	once sync.Once
}

// JoinPresence subscribes to the room's presence subject. Members announce
// themselves with heartbeats and answer every join with one, so a new
// channel learns the room within a round trip.
func (b *Broker) JoinPresence(roomID, nickname string, h multiplayer.PresenceHandlers) (multiplayer.PresenceChannel, error) {
	c, err := newPresenceChannel(natsBus{b}, b.Instance, b.Heartbeat, roomID, nickname, h)
	if err != nil {
		return nil, err
	}
	go c.run()
	return c, nil
}

func newPresenceChannel(bus presenceBus, instance string, heartbeat time.Duration, roomID, nickname string, h multiplayer.PresenceHandlers) (*presenceChannel, error) {
	c := &presenceChannel{
		bus:       bus,
		instance:  instance,
		heartbeat: heartbeat,
		roomID:    roomID,
		nickname:  nickname,
		h:         h,
		state:     newPresenceState(missedHeartbeats * heartbeat),
		stop:      make(chan struct{}),
	}
	sub, err := bus.Subscribe(comm.RoomPresenceSubject(roomID), c.handleMessage)
	if err != nil {
		return nil, fmt.Errorf("subscribe presence of room %s: %w", roomID, err)
	}
	c.sub = sub
	return c, nil
}

func (c *presenceChannel) publish(kind string) error {
	payload, err := json.Marshal(comm.PresenceMessage{
		Kind:      kind,
		RoomID:    c.roomID,
		Nickname:  c.nickname,
		Instance:  c.instance,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return c.bus.Publish(comm.RoomPresenceSubject(c.roomID), payload)
}

// beat publishes a heartbeat unless the member is no longer tracked.
func (c *presenceChannel) beat() error {
	c.send.Lock()
	defer c.send.Unlock()
	c.mu.Lock()
	tracking := c.tracking
	c.mu.Unlock()
	if !tracking {
		return nil
	}
	return c.publish(comm.PresenceHeartbeat)
}

func (c *presenceChannel) handleMessage(data []byte) {
	var pm comm.PresenceMessage
	if err := json.Unmarshal(data, &pm); err != nil {
		log.Errorf("Error decoding presence of room %s: %s", c.roomID, err)
		return
	}
	if pm.RoomID != c.roomID {
		return
	}

	c.mu.Lock()
	joined, left := c.state.observe(pm, time.Now())
	members := c.state.members()
	warm := c.warm
	answer := pm.Kind == comm.PresenceJoin && pm.Nickname != c.nickname
	c.mu.Unlock()

	if joined && c.h.OnJoin != nil {
		c.h.OnJoin(pm.Nickname)
	}
	if left && c.h.OnLeave != nil {
		c.h.OnLeave(pm.Nickname)
	}
	if (joined || left) && warm && c.h.OnSync != nil {
		c.h.OnSync(members)
	}
	if answer {
		if err := c.beat(); err != nil {
			log.Warnf("presence answer for %s failed: %s", c.roomID, err)
		}
	}
}

func (c *presenceChannel) run() {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.tick(now)
		}
	}
}

func (c *presenceChannel) tick(now time.Time) {
	c.mu.Lock()
	gone := c.state.prune(now)
	emit := !c.warm || len(gone) > 0
	c.warm = true
	members := c.state.members()
	c.mu.Unlock()

	if err := c.beat(); err != nil {
		log.Warnf("presence heartbeat for %s failed: %s", c.roomID, err)
	}
	if emit && c.h.OnSync != nil {
		c.h.OnSync(members)
	}
}

func (c *presenceChannel) Track() error {
	c.send.Lock()
	defer c.send.Unlock()
	c.mu.Lock()
	c.tracking = true
	c.mu.Unlock()
	return c.publish(comm.PresenceJoin)
}

func (c *presenceChannel) Untrack() error {
	c.send.Lock()
	defer c.send.Unlock()
	c.mu.Lock()
	was := c.tracking
	c.tracking = false
	c.mu.Unlock()
	if !was {
		return nil
	}
	return c.publish(comm.PresenceLeave)
}

func (c *presenceChannel) Unsubscribe() error {
	var err error
	c.once.Do(func() {
		close(c.stop)
		err = c.sub.Unsubscribe()
	})
	return err
}
