package models

import (
	"encoding/json"
	"time"
)

type Room struct {
	ID           string    `json:"id"`            // uuid primary key
	RoomCode     string    `json:"room_code"`     // human friendly join code
	HostNickname string    `json:"host_nickname"` // owner of the room row
	GameStarted  bool      `json:"game_started"`
	CreatedAt    time.Time `json:"created_at"`
}

// Player is owned and written by the client playing it. GameState holds the
// serialized game.State blob.
type Player struct {
	ID        int64           `json:"id"`
	RoomID    string          `json:"room_id"` // FK to rooms(id), cascades
	Nickname  string          `json:"nickname"`
	GameState json.RawMessage `json:"game_state"`
	Score     int             `json:"score"`
	Completed bool            `json:"completed"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
