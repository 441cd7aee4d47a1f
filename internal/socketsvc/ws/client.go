package ws

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/comm"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/multiplayer"
)

// Writer is the outbound half of a websocket connection.
type Writer interface {
	WriteJSON(v interface{}) error
}

// Client is one socket and the games it hosts. A socket plays at most one
// game of each mode at a time.
type Client struct {
	id     string
	userID string

	wmu  sync.Mutex
	conn Writer

	mu    sync.Mutex
	solo  *game.Session
	daily *game.DailySession
	room  *multiplayer.Coordinator
}

func newClient(id string, conn Writer, userID string) *Client {
	return &Client{id: id, conn: conn, userID: userID}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

func (c *Client) send(msgType string, v any) {
	msg, err := comm.NewMessage(msgType, v)
	if err != nil {
		log.Errorf("encode %s for socket %s: %v", msgType, c.id, err)
		return
	}
	msg.SocketId = c.id

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Errorf("write %s to socket %s: %v", msgType, c.id, err)
	}
}

func (c *Client) SendError(err error) {
	c.send(comm.ErrorMsg, comm.ErrorPayload{Code: errorCode(err), Error: err.Error()})
}

func (c *Client) soloSession() *game.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.solo == nil {
		c.solo = game.NewSession(nil)
	}
	return c.solo
}

func (c *Client) dailySession() *game.DailySession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.daily
}

func (c *Client) setDaily(d *game.DailySession) {
	c.mu.Lock()
	c.daily = d
	c.mu.Unlock()
}

func (c *Client) currentRoom() *multiplayer.Coordinator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// claimRoom seats coord unless another room is already held.
func (c *Client) claimRoom(coord *multiplayer.Coordinator) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room != nil {
		return false
	}
	c.room = coord
	return true
}

// releaseRoom clears coord if it is still the seated room.
func (c *Client) releaseRoom(coord *multiplayer.Coordinator) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room != coord {
		return false
	}
	c.room = nil
	return true
}

func (c *Client) takeRoom() *multiplayer.Coordinator {
	c.mu.Lock()
	defer c.mu.Unlock()
	coord := c.room
	c.room = nil
	return coord
}
