package multiplayer

import (
	"context"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/comm"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/gamesvc/models"
)

// Store is the durable room/player record. Each client only writes its
// own player row, and the room row when it is the host.
type Store interface {
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	ListPlayers(ctx context.Context, roomID string) ([]models.Player, error)
	SavePlayerState(ctx context.Context, roomID, nickname string, state game.State) error
	DeletePlayer(ctx context.Context, roomID, nickname string) error
	DeleteRoom(ctx context.Context, roomID string) error
	StartRoom(ctx context.Context, roomID string) error
}

type Subscription interface {
	Unsubscribe() error
}

// Feed delivers change notifications for one room's records.
type Feed interface {
	SubscribeRoom(roomID string, onChange func(comm.RoomChange)) (Subscription, error)
}

type PresenceHandlers struct {
	OnSync  func(present []string)
	OnJoin  func(nickname string)
	OnLeave func(nickname string)
}

type PresenceChannel interface {
	Track() error
	Untrack() error
	Unsubscribe() error
}

// Presence is the ephemeral "who is connected" channel of a room.
type Presence interface {
	JoinPresence(roomID, nickname string, handlers PresenceHandlers) (PresenceChannel, error)
}

// Callbacks run on the coordinator goroutine and must not block or call
// back into the coordinator synchronously.
type Callbacks struct {
	OnPeers       func(peers map[string]game.State)
	OnRoomStarted func()
	OnRoomClosed  func(reason string)
}
