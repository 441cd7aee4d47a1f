package multiplayer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
)

var ErrMalformedPeerState = errors.New("malformed peer state")

type peerState struct {
	Hand         json.RawMessage `json:"hand"`
	CurrentRound *int            `json:"current_round"`
	IsOver       *bool           `json:"is_over"`
	HasWon       *bool           `json:"has_won"`
	DrinkCount   *int            `json:"drink_count"`
}

// DecodePeerState parses a peer's persisted state. An empty payload is a
// player who joined but has not drawn yet. Payloads missing a field or
// breaking a state invariant are rejected.
func DecodePeerState(raw json.RawMessage) (game.State, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return game.State{}, nil
	}

	var p peerState
	if err := json.Unmarshal(raw, &p); err != nil {
		return game.State{}, fmt.Errorf("%w: %v", ErrMalformedPeerState, err)
	}
	if p.Hand == nil || p.CurrentRound == nil || p.IsOver == nil || p.HasWon == nil || p.DrinkCount == nil {
		return game.State{}, fmt.Errorf("%w: missing field", ErrMalformedPeerState)
	}

	var hand []game.Card
	if err := json.Unmarshal(p.Hand, &hand); err != nil {
		return game.State{}, fmt.Errorf("%w: hand: %v", ErrMalformedPeerState, err)
	}
	st := game.State{
		Hand:         hand,
		CurrentRound: *p.CurrentRound,
		IsOver:       *p.IsOver,
		HasWon:       *p.HasWon,
		DrinkCount:   *p.DrinkCount,
	}
	if err := st.Validate(); err != nil {
		return game.State{}, fmt.Errorf("%w: %v", ErrMalformedPeerState, err)
	}
	return st, nil
}

func clonePeers(peers map[string]game.State) map[string]game.State {
	out := make(map[string]game.State, len(peers))
	for k, v := range peers {
		out[k] = v.Clone()
	}
	return out
}
