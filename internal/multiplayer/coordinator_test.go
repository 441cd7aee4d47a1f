package multiplayer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/comm"
	"github.com/marcinlukanus/RideTheBusV2-sub000/internal/game"
)

const (
	testRoom  = "room-1"
	testGrace = 50 * time.Millisecond
	waitFor   = 2 * time.Second
	tick      = 5 * time.Millisecond
)

func startSeat(t *testing.T, b *fakeBackend, nickname string, seed int64) (*Coordinator, *recorder, game.State) {
	t.Helper()
	rec := &recorder{}
	c := NewCoordinator(b, b, b, Options{
		RoomID:        testRoom,
		Nickname:      nickname,
		Shuffler:      game.SeededShuffler{Seed: seed, DrawNumber: 1},
		PresenceGrace: testGrace,
		Callbacks:     rec.callbacks(),
	})
	st, err := c.Start(context.Background())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, rec, st
}

func sameHand(a, b []game.Card) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].SameAs(b[i]) {
			return false
		}
	}
	return true
}

func TestJoinOrderPropagatesHands(t *testing.T) {
	b := newFakeBackend()
	b.createRoom(testRoom, "A")

	a, recA, stA := startSeat(t, b, "A", 1)
	assert.Equal(t, 0, stA.DrinkCount)
	assert.Equal(t, 1, stA.CurrentRound)
	peers, err := a.Peers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, peers)

	// A's first hand is stored before Start returns
	stored, ok := b.storedState(testRoom, "A")
	require.True(t, ok)
	assert.True(t, sameHand(stA.Hand, stored.Hand))

	b.joinRoom(testRoom, "B")
	bc, _, stB := startSeat(t, b, "B", 2)

	peersB, err := bc.Peers(context.Background())
	require.NoError(t, err)
	require.Contains(t, peersB, "A")
	assert.True(t, sameHand(stA.Hand, peersB["A"].Hand))

	assert.Eventually(t, func() bool {
		st, ok := recA.peer("B")
		return ok && sameHand(st.Hand, stB.Hand)
	}, waitFor, tick)
}

func TestLocalMovesReachPeers(t *testing.T) {
	b := newFakeBackend()
	b.createRoom(testRoom, "A")
	a, _, _ := startSeat(t, b, "A", 12345)
	b.joinRoom(testRoom, "B")
	_, recB, _ := startSeat(t, b, "B", 7)

	// seed 12345 deals 2♣ K♥ Q♠ 8♠
	st, err := a.Guess(context.Background(), 1, game.Black)
	require.NoError(t, err)
	assert.Equal(t, 2, st.CurrentRound)
	assert.True(t, st.Hand[0].FaceUp)

	assert.Eventually(t, func() bool {
		p, ok := recB.peer("A")
		return ok && p.CurrentRound == 2 && p.Hand[0].FaceUp
	}, waitFor, tick)
}

func TestRejectedGuessLeavesState(t *testing.T) {
	b := newFakeBackend()
	b.createRoom(testRoom, "A")
	a, _, before := startSeat(t, b, "A", 12345)

	_, err := a.Guess(context.Background(), 2, game.Higher)
	assert.ErrorIs(t, err, game.ErrWrongRound)
	_, err = a.Draw(context.Background(), true)
	assert.ErrorIs(t, err, game.ErrResetNotAllowed)

	st, err := a.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, st)
}

func TestPersistFailureKeepsLocalState(t *testing.T) {
	b := newFakeBackend()
	b.createRoom(testRoom, "A")
	b.setSaveErr(errors.New("network down"))

	a, _, st := startSeat(t, b, "A", 12345)
	require.Len(t, st.Hand, game.HandSize)

	st, err := a.Guess(context.Background(), 1, game.Black)
	require.NoError(t, err)
	assert.Equal(t, 2, st.CurrentRound)

	st, err = a.Guess(context.Background(), 2, game.Higher)
	require.NoError(t, err)
	assert.Equal(t, 3, st.CurrentRound)

	_, ok := b.storedState(testRoom, "A")
	assert.False(t, ok)
}

func TestMalformedPeerStateIgnored(t *testing.T) {
	b := newFakeBackend()
	b.createRoom(testRoom, "A")
	a, _, _ := startSeat(t, b, "A", 1)

	good := game.State{Hand: game.SeededDraw(9, 1), CurrentRound: 1, DrinkCount: 0}
	blob, _ := json.Marshal(good)
	b.inject(comm.RoomChange{Kind: comm.PlayerUpserted, RoomID: testRoom, Nickname: "C", State: blob})
	b.inject(comm.RoomChange{Kind: comm.PlayerUpserted, RoomID: testRoom, Nickname: "C", State: json.RawMessage(`{"hand":"nope"}`)})
	b.inject(comm.RoomChange{Kind: comm.PlayerUpserted, RoomID: testRoom, Nickname: "D", State: json.RawMessage(`{"current_round":1}`)})

	assert.Eventually(t, func() bool {
		peers, err := a.Peers(context.Background())
		if err != nil {
			return false
		}
		c, ok := peers["C"]
		_, hasD := peers["D"]
		return ok && sameHand(c.Hand, good.Hand) && !hasD
	}, waitFor, tick)
}

func TestOwnEchoIgnored(t *testing.T) {
	b := newFakeBackend()
	b.createRoom(testRoom, "A")
	a, _, _ := startSeat(t, b, "A", 1)

	_, err := a.Guess(context.Background(), 1, game.Red)
	require.NoError(t, err)

	time.Sleep(3 * tick)
	peers, err := a.Peers(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, peers, "A")
}

func TestPresenceGraceEvictsAbsentPlayer(t *testing.T) {
	b := newFakeBackend()
	b.createRoom(testRoom, "A")
	_, recA, _ := startSeat(t, b, "A", 1)
	b.joinRoom(testRoom, "B")
	_, _, _ = startSeat(t, b, "B", 2)

	assert.Eventually(t, func() bool {
		_, ok := recA.peer("B")
		return ok
	}, waitFor, tick)

	// let B's row age past the join guard
	time.Sleep(2 * testGrace)
	b.dropPresence(testRoom, "B")

	assert.Eventually(t, func() bool { return !b.hasPlayer(testRoom, "B") }, waitFor, tick)
	assert.Eventually(t, func() bool {
		_, ok := recA.peer("B")
		return !ok
	}, waitFor, tick)
	assert.True(t, b.hasRoom(testRoom))
}

func TestPresenceReconnectWithinGraceKeepsPlayer(t *testing.T) {
	b := newFakeBackend()
	b.createRoom(testRoom, "A")
	startSeat(t, b, "A", 1)
	b.joinRoom(testRoom, "B")
	startSeat(t, b, "B", 2)
	time.Sleep(2 * testGrace)

	b.dropPresence(testRoom, "B")
	b.retrack(testRoom, "B")

	time.Sleep(4 * testGrace)
	assert.True(t, b.hasPlayer(testRoom, "B"))
}

func TestPlayerLeaveRemovesImmediately(t *testing.T) {
	b := newFakeBackend()
	b.createRoom(testRoom, "A")
	_, recA, _ := startSeat(t, b, "A", 1)
	b.joinRoom(testRoom, "B")
	bc, _, _ := startSeat(t, b, "B", 2)

	assert.Eventually(t, func() bool {
		_, ok := recA.peer("B")
		return ok
	}, waitFor, tick)

	require.NoError(t, bc.Leave(context.Background()))
	assert.False(t, b.hasPlayer(testRoom, "B"))
	assert.Eventually(t, func() bool {
		_, ok := recA.peer("B")
		return !ok
	}, waitFor, tick)
	assert.True(t, b.hasRoom(testRoom))

	_, err := bc.Draw(context.Background(), false)
	assert.ErrorIs(t, err, ErrRoomClosed)
}

func TestHostLeaveEndsRoom(t *testing.T) {
	b := newFakeBackend()
	b.createRoom(testRoom, "A")
	a, _, _ := startSeat(t, b, "A", 1)
	b.joinRoom(testRoom, "B")
	bc, recB, _ := startSeat(t, b, "B", 2)

	require.NoError(t, a.Leave(context.Background()))
	assert.False(t, b.hasRoom(testRoom))

	assert.Eventually(t, func() bool { return len(recB.closedReasons()) == 1 }, waitFor, tick)
	assert.Contains(t, []string{ReasonRoomDeleted, ReasonHostLeft}, recB.closedReasons()[0])

	assert.Eventually(t, func() bool {
		_, err := bc.Draw(context.Background(), false)
		return errors.Is(err, ErrRoomClosed)
	}, waitFor, tick)
	assert.Eventually(t, func() bool {
		subs, chans := b.listeners(testRoom)
		return subs == 0 && chans == 0
	}, waitFor, tick)
}

func TestHostDisconnectEndsRoomAfterGrace(t *testing.T) {
	b := newFakeBackend()
	b.createRoom(testRoom, "A")
	startSeat(t, b, "A", 1)
	b.joinRoom(testRoom, "B")
	_, recB, _ := startSeat(t, b, "B", 2)
	time.Sleep(2 * testGrace)

	b.dropPresence(testRoom, "A")

	assert.Eventually(t, func() bool { return !b.hasRoom(testRoom) }, waitFor, tick)
	assert.Eventually(t, func() bool { return len(recB.closedReasons()) == 1 }, waitFor, tick)
}

func TestStartGameHostOnly(t *testing.T) {
	b := newFakeBackend()
	b.createRoom(testRoom, "A")
	a, _, _ := startSeat(t, b, "A", 1)
	b.joinRoom(testRoom, "B")
	bc, recB, _ := startSeat(t, b, "B", 2)

	assert.True(t, a.IsHost())
	assert.False(t, bc.IsHost())
	assert.ErrorIs(t, bc.StartGame(context.Background()), ErrNotHost)

	require.NoError(t, a.StartGame(context.Background()))
	assert.Eventually(t, func() bool { return recB.startedCount() == 1 }, waitFor, tick)
}

func TestStartFailsForMissingRoom(t *testing.T) {
	b := newFakeBackend()
	c := NewCoordinator(b, b, b, Options{RoomID: "nope", Nickname: "A"})
	_, err := c.Start(context.Background())
	assert.ErrorIs(t, err, errNoRoom)
	c.Close()
}

func TestCloseIsIdempotentAndUnsubscribes(t *testing.T) {
	b := newFakeBackend()
	b.createRoom(testRoom, "A")
	a, _, _ := startSeat(t, b, "A", 1)

	subs, chans := b.listeners(testRoom)
	assert.Equal(t, 1, subs)
	assert.Equal(t, 1, chans)

	a.Close()
	a.Close()
	subs, chans = b.listeners(testRoom)
	assert.Zero(t, subs)
	assert.Zero(t, chans)

	_, err := a.State(context.Background())
	assert.ErrorIs(t, err, ErrRoomClosed)
}
