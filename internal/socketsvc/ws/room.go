package ws

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/comm"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/service"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/multiplayer"
)

const (
	modeRoom   = "room"
	reasonLeft = "left"
)

// roomEnter seats the socket in a room it already joined over HTTP.
func (s *Ws) roomEnter(ctx context.Context, c *Client, data json.RawMessage) error {
	var req comm.RoomEnterRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return ErrBadPayload
	}
	if req.RoomID == "" {
		return errRoomIDRequired
	}
	nickname, err := service.NormalizeNickname(req.Nickname)
	if err != nil {
		return err
	}
	if c.currentRoom() != nil {
		return errAlreadyInRoom
	}

	players, err := s.rooms.ListPlayers(ctx, req.RoomID)
	if err != nil {
		return err
	}
	member := false
	for _, p := range players {
		if p.Nickname == nickname {
			member = true
			break
		}
	}
	if !member {
		return errNotMember
	}

	var coord *multiplayer.Coordinator
	coord = multiplayer.NewCoordinator(s.rooms, s.network, s.network, multiplayer.Options{
		RoomID:        req.RoomID,
		Nickname:      nickname,
		PresenceGrace: s.grace,
		Callbacks: multiplayer.Callbacks{
			OnPeers: func(peers map[string]game.State) {
				c.send(comm.PeersMsg, comm.PeersPayload{RoomID: req.RoomID, Host: coord.Host(), Peers: peers})
			},
			OnRoomStarted: func() {
				c.send(comm.RoomStartedMsg, comm.RoomStartedPayload{RoomID: req.RoomID})
			},
			OnRoomClosed: func(reason string) {
				c.releaseRoom(coord)
				c.send(comm.RoomEndedMsg, comm.RoomEndedPayload{RoomID: req.RoomID, Reason: reason})
			},
		},
	})
	if !c.claimRoom(coord) {
		return errAlreadyInRoom
	}

	st, err := coord.Start(ctx)
	if err != nil {
		c.releaseRoom(coord)
		return err
	}
	log.Infof("socket %s seated as %s in room %s", c.id, nickname, req.RoomID)
	c.send(comm.StateMsg, comm.StatePayload{Mode: modeRoom, RoomID: req.RoomID, Phase: st.Phase(), State: st})
	return nil
}

func (s *Ws) roomDraw(ctx context.Context, c *Client, data json.RawMessage) error {
	req, err := decodeDraw(data)
	if err != nil {
		return err
	}
	coord := c.currentRoom()
	if coord == nil {
		return errNotInRoom
	}
	st, err := coord.Draw(ctx, req.Reset)
	if err != nil {
		return err
	}
	c.send(comm.StateMsg, comm.StatePayload{Mode: modeRoom, RoomID: coord.RoomID(), Phase: st.Phase(), State: st})
	return nil
}

func (s *Ws) roomGuess(ctx context.Context, c *Client, data json.RawMessage) error {
	req, err := decodeGuess(data)
	if err != nil {
		return err
	}
	coord := c.currentRoom()
	if coord == nil {
		return errNotInRoom
	}
	prev, err := coord.State(ctx)
	if err != nil {
		return err
	}
	st, err := coord.Guess(ctx, req.Round, game.Guess(req.Guess))
	if err != nil {
		return err
	}
	s.finishHand(ctx, prev, st)
	c.send(comm.StateMsg, comm.StatePayload{Mode: modeRoom, RoomID: coord.RoomID(), Phase: st.Phase(), State: st})
	return nil
}

func (s *Ws) roomStart(ctx context.Context, c *Client) error {
	coord := c.currentRoom()
	if coord == nil {
		return errNotInRoom
	}
	return coord.StartGame(ctx)
}

func (s *Ws) roomLeave(ctx context.Context, c *Client) error {
	coord := c.currentRoom()
	if coord == nil {
		return errNotInRoom
	}
	c.releaseRoom(coord)
	if err := coord.Leave(ctx); err != nil {
		log.Errorf("leave room %s: %v", coord.RoomID(), err)
	}
	c.send(comm.RoomEndedMsg, comm.RoomEndedPayload{RoomID: coord.RoomID(), Reason: reasonLeft})
	return nil
}
