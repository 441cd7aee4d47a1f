package comm

import (
	"encoding/json"
	"time"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
)

// WSMessage is the envelope used on the websocket and on NATS.
type WSMessage struct {
	Type     string          `json:"type"` // e.g. "solo-draw", "room-guess"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid,omitempty"`
}

func NewMessage(msgType string, v any) (*WSMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &WSMessage{Type: msgType, Data: data}, nil
}

// client -> server
const (
	SoloDraw    = "solo-draw"
	SoloGuess   = "solo-guess"
	DailyStart  = "daily-start"
	DailyDraw   = "daily-draw"
	DailyGuess  = "daily-guess"
	DailySubmit = "daily-submit"
	RoomEnter   = "room-enter"
	RoomDraw    = "room-draw"
	RoomGuess   = "room-guess"
	RoomStart   = "room-start"
	RoomLeave   = "room-leave"
)

// server -> client
const (
	StateMsg          = "state"
	DailyStateMsg     = "daily-state"
	DailyCompletedMsg = "daily-completed"
	PeersMsg          = "peers"
	RoomStartedMsg    = "room-started"
	RoomEndedMsg      = "room-ended"
	ErrorMsg          = "error"
)

// room change kinds, published on room.<id>.players
const (
	PlayerUpserted = "player-upserted"
	PlayerDeleted  = "player-deleted"
	RoomStarted    = "room-started"
	RoomDeleted    = "room-deleted"
)

// presence kinds, published on room.<id>.presence
const (
	PresenceJoin      = "join"
	PresenceHeartbeat = "heartbeat"
	PresenceLeave     = "leave"
)

type RoomChange struct {
	Kind      string          `json:"kind"`
	RoomID    string          `json:"room_id"`
	Nickname  string          `json:"nickname,omitempty"`
	State     json.RawMessage `json:"state,omitempty"`
	Score     int             `json:"score"`
	Completed bool            `json:"completed"`
}

type PresenceMessage struct {
	Kind      string    `json:"kind"`
	RoomID    string    `json:"room_id"`
	Nickname  string    `json:"nickname"`
	Instance  string    `json:"instance"`
	Timestamp time.Time `json:"timestamp"`
}

type DrawRequest struct {
	Reset bool `json:"reset"`
}

type GuessRequest struct {
	Round int    `json:"round"`
	Guess string `json:"guess"`
}

type RoomEnterRequest struct {
	RoomID   string `json:"room_id"`
	Nickname string `json:"nickname"`
}

type ErrorPayload struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// StatePayload is what a player sees of their own game.
type StatePayload struct {
	Mode   string     `json:"mode"` // solo, room
	RoomID string     `json:"room_id,omitempty"`
	Phase  game.Phase `json:"phase"`
	State  game.State `json:"state"`
}

type DailyCompletedPayload struct {
	GameDate         string `json:"game_date"`
	DayNumber        int    `json:"day_number"`
	Score            int    `json:"score"`
	Attempts         int    `json:"attempts"`
	Saved            bool   `json:"saved"`
	AlreadyCompleted bool   `json:"already_completed"`
}

func RoomPlayersSubject(roomID string) string {
	return "room." + roomID + ".players"
}

func RoomPresenceSubject(roomID string) string {
	return "room." + roomID + ".presence"
}

// EncodeRoomChange wraps a change in the envelope published on NATS.
func EncodeRoomChange(change RoomChange) ([]byte, error) {
	msg, err := NewMessage(change.Kind, change)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

func DecodeRoomChange(data []byte) (RoomChange, error) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return RoomChange{}, err
	}
	var change RoomChange
	if err := json.Unmarshal(msg.Data, &change); err != nil {
		return RoomChange{}, err
	}
	if change.Kind == "" {
		change.Kind = msg.Type
	}
	return change, nil
}

type DailyStatePayload struct {
	GameDate   string     `json:"game_date"`
	DayNumber  int        `json:"day_number"`
	DrawNumber int64      `json:"draw_number"`
	Attempts   int        `json:"attempts"`
	Phase      game.Phase `json:"phase"`
	State      game.State `json:"state"`
}

type PeersPayload struct {
	RoomID string                `json:"room_id"`
	Host   string                `json:"host"`
	Peers  map[string]game.State `json:"peers"`
}

type RoomEndedPayload struct {
	RoomID string `json:"room_id"`
	Reason string `json:"reason"`
}

type RoomStartedPayload struct {
	RoomID string `json:"room_id"`
}
