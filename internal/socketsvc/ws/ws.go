package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/comm"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/models"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/service"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/multiplayer"
)

const defaultRequestTimeout = 10 * time.Second

var (
	ErrBadPayload     = errors.New("malformed payload")
	errUnknownType    = errors.New("unknown message type")
	errNoSession      = errors.New("no game in progress")
	errNotFinished    = errors.New("daily challenge is not won yet")
	errNotInRoom      = errors.New("not in a room")
	errAlreadyInRoom  = errors.New("already in a room")
	errNotMember      = errors.New("nickname has not joined this room")
	errRoomIDRequired = errors.New("room_id is required")
)

type DailyAPI interface {
	GetDailySeed(ctx context.Context) (game.DailyChallenge, error)
	Status(ctx context.Context, userID, date string) (models.DailyStatus, error)
	RecordAttempts(ctx context.Context, userID, date string, attempts int) error
	SubmitDailyScore(ctx context.Context, userID, date string, attempts int) (models.ScoreResult, error)
}

type ScoreAPI interface {
	SubmitScore(ctx context.Context, drinkCount int, userID string) (*models.Score, error)
}

type TelemetryAPI interface {
	RecordDrawnCards(ctx context.Context, cards []game.Card) error
}

// RoomNetwork is the realtime side of a room: change feed and presence.
type RoomNetwork interface {
	multiplayer.Feed
	multiplayer.Presence
}

type Deps struct {
	Rooms         multiplayer.Store
	Network       RoomNetwork
	Daily         DailyAPI
	Scores        ScoreAPI
	Telemetry     TelemetryAPI
	PresenceGrace time.Duration
}

type Ws struct {
	connMap sync.Map // socketId -> *Client

	rooms     multiplayer.Store
	network   RoomNetwork
	daily     DailyAPI
	scores    ScoreAPI
	telemetry TelemetryAPI
	grace     time.Duration
	timeout   time.Duration
}

func NewWs(d Deps) *Ws {
	return &Ws{
		rooms:     d.Rooms,
		network:   d.Network,
		daily:     d.Daily,
		scores:    d.Scores,
		telemetry: d.Telemetry,
		grace:     d.PresenceGrace,
		timeout:   defaultRequestTimeout,
	}
}

func (s *Ws) StoreConnection(socketId string, conn Writer, userID string) *Client {
	c := newClient(socketId, conn, userID)
	s.connMap.Store(socketId, c)
	return c
}

func (s *Ws) GetConnection(socketId string) (*Client, bool) {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return c.(*Client), true
}

// SocketMessage handles one message from a web client. Messages of a socket
// are handled in the order they were read.
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	c, ok := s.GetConnection(socketId)
	if !ok {
		log.Warnf("message for unknown socket %s", socketId)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var err error
	switch message.Type {
	case comm.SoloDraw:
		err = s.soloDraw(ctx, c, message.Data)
	case comm.SoloGuess:
		err = s.soloGuess(ctx, c, message.Data)
	case comm.DailyStart:
		err = s.dailyStart(ctx, c)
	case comm.DailyDraw:
		err = s.dailyDraw(ctx, c)
	case comm.DailyGuess:
		err = s.dailyGuess(ctx, c, message.Data)
	case comm.DailySubmit:
		err = s.dailySubmit(ctx, c)
	case comm.RoomEnter:
		err = s.roomEnter(ctx, c, message.Data)
	case comm.RoomDraw:
		err = s.roomDraw(ctx, c, message.Data)
	case comm.RoomGuess:
		err = s.roomGuess(ctx, c, message.Data)
	case comm.RoomStart:
		err = s.roomStart(ctx, c)
	case comm.RoomLeave:
		err = s.roomLeave(ctx, c)
	default:
		log.Warnf("unknown event received: %s", message.Type)
		err = errUnknownType
	}

	if err != nil {
		c.SendError(err)
	}
}

// HandleDisconnect drops the socket. A player still seated in a room
// leaves it.
func (s *Ws) HandleDisconnect(socketId string) {
	v, ok := s.connMap.LoadAndDelete(socketId)
	if !ok {
		return
	}
	c := v.(*Client)
	coord := c.takeRoom()
	if coord == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := coord.Leave(ctx); err != nil && !errors.Is(err, service.ErrRoomNotFound) {
		log.Errorf("leave room %s on disconnect of %s: %v", coord.RoomID(), socketId, err)
	}
}

// Close ends every room seat hosted by this instance.
func (s *Ws) Close() {
	s.connMap.Range(func(key, value any) bool {
		s.HandleDisconnect(key.(string))
		return true
	})
}

// finishHand runs once per hand, on the guess that ends it.
func (s *Ws) finishHand(ctx context.Context, prev, next game.State) bool {
	if prev.IsOver || !next.IsOver {
		return false
	}
	if s.telemetry != nil {
		if err := s.telemetry.RecordDrawnCards(ctx, next.Hand); err != nil {
			log.Errorf("record drawn cards: %v", err)
		}
	}
	return true
}

func decodeGuess(data json.RawMessage) (comm.GuessRequest, error) {
	var req comm.GuessRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return req, ErrBadPayload
	}
	return req, nil
}

func decodeDraw(data json.RawMessage) (comm.DrawRequest, error) {
	var req comm.DrawRequest
	if len(data) == 0 || string(data) == "null" {
		return req, nil
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, ErrBadPayload
	}
	return req, nil
}

// errorCode maps an error to the code sent to the client.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrBadPayload):
		return "bad-request"
	case errors.Is(err, errUnknownType):
		return "unknown-type"
	case errors.Is(err, errNoSession):
		return "no-session"
	case errors.Is(err, errNotFinished):
		return "not-finished"
	case errors.Is(err, errNotInRoom):
		return "not-in-room"
	case errors.Is(err, errAlreadyInRoom):
		return "already-in-room"
	case errors.Is(err, errNotMember):
		return "not-a-member"
	case errors.Is(err, errRoomIDRequired):
		return "bad-request"
	case errors.Is(err, game.ErrNoHand):
		return "no-hand"
	case errors.Is(err, game.ErrGameOver):
		return "game-over"
	case errors.Is(err, game.ErrWrongRound):
		return "wrong-round"
	case errors.Is(err, game.ErrInvalidGuess):
		return "invalid-guess"
	case errors.Is(err, game.ErrResetNotAllowed):
		return "reset-not-allowed"
	case errors.Is(err, game.ErrChallengeComplete):
		return "daily-completed"
	case errors.Is(err, multiplayer.ErrRoomClosed):
		return "room-closed"
	case errors.Is(err, multiplayer.ErrNotHost):
		return "not-host"
	case errors.Is(err, service.ErrRoomNotFound):
		return "room-not-found"
	case errors.Is(err, service.ErrIdentityRequired):
		return "identity-required"
	case errors.Is(err, service.ErrNotToday):
		return "day-over"
	case errors.Is(err, service.ErrNicknameTooShort), errors.Is(err, service.ErrNicknameTooLong):
		return "invalid-nickname"
	}
	return "internal"
}
