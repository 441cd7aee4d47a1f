package ws

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/comm"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
)

// dailyStart opens today's challenge. An identity that already finished
// today only gets the stored result; anonymous players can play but
// nothing is saved.
func (s *Ws) dailyStart(ctx context.Context, c *Client) error {
	ch, err := s.daily.GetDailySeed(ctx)
	if err != nil {
		return err
	}

	prior := 0
	if c.userID != "" {
		st, err := s.daily.Status(ctx, c.userID, ch.GameDate)
		if err != nil {
			return err
		}
		if st.Completed {
			c.setDaily(nil)
			score := st.Attempts
			if st.Score != nil {
				score = *st.Score
			}
			c.send(comm.DailyCompletedMsg, comm.DailyCompletedPayload{
				GameDate:         ch.GameDate,
				DayNumber:        ch.DayNumber,
				Score:            score,
				Attempts:         st.Attempts,
				AlreadyCompleted: true,
			})
			return nil
		}
		prior = st.Attempts
	}

	d := game.NewDailySession(ch, prior)
	c.setDaily(d)
	s.sendDailyState(c, d)
	return nil
}

func (s *Ws) dailyDraw(ctx context.Context, c *Client) error {
	d := c.dailySession()
	if d == nil {
		return errNoSession
	}
	if _, err := d.Draw(); err != nil {
		return err
	}
	if err := s.daily.RecordAttempts(ctx, c.userID, d.Challenge().GameDate, d.Attempts()); err != nil {
		log.Errorf("record daily attempts for socket %s: %v", c.id, err)
	}
	s.sendDailyState(c, d)
	return nil
}

func (s *Ws) dailyGuess(ctx context.Context, c *Client, data json.RawMessage) error {
	req, err := decodeGuess(data)
	if err != nil {
		return err
	}
	d := c.dailySession()
	if d == nil {
		return errNoSession
	}
	prev := d.State()
	st, err := d.Guess(req.Round, game.Guess(req.Guess))
	if err != nil {
		return err
	}
	s.sendDailyState(c, d)

	if !s.finishHand(ctx, prev, st) {
		return nil
	}
	if st.HasWon {
		return s.submitDaily(ctx, c, d)
	}
	// a lost hand is spent; a reconnect must not deal it again
	if err := s.daily.RecordAttempts(ctx, c.userID, d.Challenge().GameDate, d.Attempts()+1); err != nil {
		log.Errorf("record lost daily hand for socket %s: %v", c.id, err)
	}
	return nil
}

// dailySubmit retries saving a won challenge.
func (s *Ws) dailySubmit(ctx context.Context, c *Client) error {
	d := c.dailySession()
	if d == nil {
		return errNoSession
	}
	if !d.State().HasWon {
		return errNotFinished
	}
	return s.submitDaily(ctx, c, d)
}

func (s *Ws) submitDaily(ctx context.Context, c *Client, d *game.DailySession) error {
	ch := d.Challenge()
	payload := comm.DailyCompletedPayload{
		GameDate:  ch.GameDate,
		DayNumber: ch.DayNumber,
		Score:     d.Attempts(),
		Attempts:  d.Attempts(),
	}
	if c.userID != "" {
		res, err := s.daily.SubmitDailyScore(ctx, c.userID, ch.GameDate, d.Attempts())
		if err != nil {
			return err
		}
		payload.Score = res.FinalScore
		payload.Saved = res.Saved
		payload.AlreadyCompleted = res.AlreadyCompleted
	}
	c.send(comm.DailyCompletedMsg, payload)
	return nil
}

func (s *Ws) sendDailyState(c *Client, d *game.DailySession) {
	ch := d.Challenge()
	st := d.State()
	c.send(comm.DailyStateMsg, comm.DailyStatePayload{
		GameDate:   ch.GameDate,
		DayNumber:  ch.DayNumber,
		DrawNumber: d.DrawNumber(),
		Attempts:   d.Attempts(),
		Phase:      st.Phase(),
		State:      st,
	})
}
