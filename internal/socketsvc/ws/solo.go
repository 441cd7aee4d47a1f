package ws

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/comm"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
)

const modeSolo = "solo"

func (s *Ws) soloDraw(ctx context.Context, c *Client, data json.RawMessage) error {
	req, err := decodeDraw(data)
	if err != nil {
		return err
	}
	st, err := c.soloSession().Draw(req.Reset)
	if err != nil {
		return err
	}
	c.send(comm.StateMsg, comm.StatePayload{Mode: modeSolo, Phase: st.Phase(), State: st})
	return nil
}

// soloGuess records a won hand as a score; drinks are the redraw count.
func (s *Ws) soloGuess(ctx context.Context, c *Client, data json.RawMessage) error {
	req, err := decodeGuess(data)
	if err != nil {
		return err
	}
	session := c.soloSession()
	prev := session.State()
	st, err := session.Guess(req.Round, game.Guess(req.Guess))
	if err != nil {
		return err
	}

	if s.finishHand(ctx, prev, st) && st.HasWon && s.scores != nil {
		if _, err := s.scores.SubmitScore(ctx, max(st.DrinkCount, 0), c.userID); err != nil {
			log.Errorf("submit score for socket %s: %v", c.id, err)
		}
	}
	c.send(comm.StateMsg, comm.StatePayload{Mode: modeSolo, Phase: st.Phase(), State: st})
	return nil
}
