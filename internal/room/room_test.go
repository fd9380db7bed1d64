package room

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/blokus-backend/internal/engine"
	"github.com/DoyleJ11/blokus-backend/internal/timer"
	"github.com/DoyleJ11/blokus-backend/pkg/types"
)

type fakeMember struct {
	name  string
	mu    sync.Mutex
	lines []string
}

func newMember(name string) *fakeMember { return &fakeMember{name: name} }

func (f *fakeMember) Name() string { return f.name }

func (f *fakeMember) Send(line string) {
	f.mu.Lock()
	f.lines = append(f.lines, line)
	f.mu.Unlock()
}

func (f *fakeMember) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

// Last returns the most recent line starting with prefix.
func (f *fakeMember) Last(prefix string) (string, bool) {
	lines := f.Lines()
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(lines[i], prefix) {
			return lines[i], true
		}
	}
	return "", false
}

func (f *fakeMember) Reset() {
	f.mu.Lock()
	f.lines = nil
	f.mu.Unlock()
}

func newTestRoom(t *testing.T, names ...string) (*Room, []*fakeMember, *timer.Manual) {
	t.Helper()
	clock := &timer.Manual{}
	members := make([]*fakeMember, len(names))
	for i, n := range names {
		members[i] = newMember(n)
	}
	r := New(1, "Lounge", members[0], Options{Timers: clock, Logger: zaptest.NewLogger(t)})
	for _, m := range members[1:] {
		require.NoError(t, r.Join(m))
	}
	return r, members, clock
}

func startedRoom(t *testing.T, names ...string) (*Room, []*fakeMember, *timer.Manual) {
	t.Helper()
	r, members, clock := newTestRoom(t, names...)
	require.NoError(t, r.Start(names[0]))
	return r, members, clock
}

func place(id string, x, y, rot int) types.PlaceRequest {
	return types.PlaceRequest{PieceID: id, X: x, Y: y, Rotation: rot}
}

func pieces(t *testing.T, c engine.Color, ids ...string) []engine.Piece {
	t.Helper()
	out := make([]engine.Piece, len(ids))
	for i, id := range ids {
		p, ok := engine.NewPiece(id, c)
		require.True(t, ok, id)
		out[i] = p
	}
	return out
}

func (r *Room) currentColor() engine.Color {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func TestJoin_Rejections(t *testing.T) {
	r, members, _ := newTestRoom(t, "alice", "bob", "carol", "dave")

	assert.ErrorIs(t, r.Join(newMember("eve")), ErrRoomFull)
	assert.ErrorIs(t, r.Join(members[1]), ErrAlreadySeated)

	require.NoError(t, r.Start("alice"))
	_, _ = r.Leave("dave", "left")
	assert.ErrorIs(t, r.Join(newMember("eve")), ErrAlreadyStarted)
}

func TestJoin_BroadcastsRoster(t *testing.T) {
	r, members, _ := newTestRoom(t, "alice", "bob")
	_ = r

	line, ok := members[1].Last(types.MsgJoinSuccess)
	require.True(t, ok)
	assert.Equal(t, "JOIN_SUCCESS:1:Lounge", line)

	roster, ok := members[0].Last(types.MsgRoomUpdate)
	require.True(t, ok)
	assert.Equal(t, "ROOM_UPDATE:[alice,host];[bob,guest]", roster)
}

func TestStart_Rejections(t *testing.T) {
	r, _, _ := newTestRoom(t, "alice", "bob", "carol")

	assert.ErrorIs(t, r.Start("bob"), ErrNotHost)
	assert.ErrorIs(t, r.Start("alice"), ErrSeatCount)

	_, err := r.Leave("carol", "left")
	require.NoError(t, err)
	require.NoError(t, r.Start("alice"))
	assert.ErrorIs(t, r.Start("alice"), ErrAlreadyStarted)

	single, _, _ := newTestRoom(t, "solo")
	assert.ErrorIs(t, single.Start("solo"), ErrSeatCount)
}

func TestStart_TwoSeatsDealsTwoSetsEach(t *testing.T) {
	r, members, clock := startedRoom(t, "alice", "bob")

	start, ok := members[0].Last(types.MsgGameStart)
	require.True(t, ok)
	assert.Equal(t, "GAME_START:2:1,3", start)
	start, _ = members[1].Last(types.MsgGameStart)
	assert.Equal(t, "GAME_START:2:2,4", start)

	r.mu.Lock()
	assert.Len(t, r.hands["alice"], 42)
	assert.Len(t, r.hands["bob"], 42)
	assert.Equal(t, engine.ColorRed, r.current)
	assert.Equal(t, DefaultStartSeconds+DefaultBonusSeconds, r.remaining[engine.ColorRed])
	assert.Equal(t, DefaultStartSeconds, r.remaining[engine.ColorBlue])
	assert.True(t, r.firstMove[engine.ColorGreen])
	r.mu.Unlock()

	turn, ok := members[1].Last(types.MsgTurnChanged)
	require.True(t, ok)
	assert.Equal(t, "TURN_CHANGED:1|alice", turn)
	state, ok := members[1].Last(types.MsgGameState)
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(state, ":alice:1"))
	times, _ := members[0].Last(types.MsgTimeUpdate)
	assert.Equal(t, "TIME_UPDATE:320,300,300,300", times)
	keyed, _ := members[0].Last(types.MsgTimeSync)
	assert.Equal(t, "TIME_SYNC:RED=320;BLUE=300;YELLOW=300;GREEN=300", keyed)

	assert.Equal(t, 1, clock.Created())
}

func TestStart_FourSeatsDealsOneSetEach(t *testing.T) {
	r, members, _ := startedRoom(t, "a", "b", "c", "d")

	for i, m := range members {
		line, ok := m.Last(types.MsgGameStart)
		require.True(t, ok)
		assert.Equal(t, "GAME_START:4:"+string(rune('1'+i)), line)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range members {
		assert.Len(t, r.hands[m.name], 21)
	}
}

func TestPlace_FirstMoveAndAdjacency(t *testing.T) {
	r, members, _ := startedRoom(t, "alice", "bob")

	_, err := r.Place("bob", place("I1", 19, 0, 0))
	assert.ErrorIs(t, err, ErrNotYourTurn)

	_, err = r.Place("alice", place("I1", 1, 1, 0))
	assert.ErrorIs(t, err, engine.ErrHomeCorner)

	finished, err := r.Place("alice", place("I1", 0, 0, 0))
	require.NoError(t, err)
	assert.False(t, finished)

	r.mu.Lock()
	assert.Equal(t, engine.ColorRed, r.board.At(engine.Point{X: 0, Y: 0}))
	assert.False(t, r.firstMove[engine.ColorRed])
	assert.Len(t, r.hands["alice"], 41)
	r.mu.Unlock()
	hand, ok := members[0].Last(types.MsgHandUpdate)
	require.True(t, ok)
	assert.NotContains(t, hand, "I1/1")
	assert.Contains(t, hand, "I1/3")
	assert.Equal(t, engine.ColorBlue, r.currentColor())

	// Cycle back to red.
	for _, name := range []string{"bob", "alice", "bob"} {
		_, err := r.Pass(name)
		require.NoError(t, err)
	}
	require.Equal(t, engine.ColorRed, r.currentColor())

	_, err = r.Place("alice", place("I1", 1, 1, 0))
	assert.ErrorIs(t, err, ErrPieceNotInHand)

	r.mu.Lock()
	before := r.board
	r.mu.Unlock()
	_, err = r.Place("alice", place("I2", 1, 0, 0))
	assert.ErrorIs(t, err, engine.ErrEdgeContact)
	r.mu.Lock()
	assert.Equal(t, before, r.board)
	assert.Len(t, r.hands["alice"], 41)
	r.mu.Unlock()

	_, err = r.Place("alice", place("I2", 1, 1, 0))
	require.NoError(t, err)
	r.mu.Lock()
	assert.Equal(t, engine.ColorRed, r.board.At(engine.Point{X: 1, Y: 1}))
	assert.Equal(t, engine.ColorRed, r.board.At(engine.Point{X: 2, Y: 1}))
	assert.Equal(t, 0, r.passes)
	r.mu.Unlock()
}

func TestPlace_RotationApplied(t *testing.T) {
	r, _, _ := startedRoom(t, "alice", "bob")

	// I2 rotated once is vertical: (0,0) and (0,1).
	_, err := r.Place("alice", place("I2", 0, 0, 1))
	require.NoError(t, err)
	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, engine.ColorRed, r.board.At(engine.Point{X: 0, Y: 1}))
	assert.Equal(t, engine.ColorNone, r.board.At(engine.Point{X: 1, Y: 0}))
}

func TestPass_AllColorsPassEndsGameAsDraw(t *testing.T) {
	r, members, _ := startedRoom(t, "alice", "bob")

	for i, name := range []string{"alice", "bob", "alice"} {
		finished, err := r.Pass(name)
		require.NoError(t, err, "pass %d", i)
		require.False(t, finished)
	}
	_, err := r.Pass("alice")
	assert.ErrorIs(t, err, ErrNotYourTurn)

	finished, err := r.Pass("bob")
	require.NoError(t, err)
	require.True(t, finished)

	res, ok := r.Result()
	require.True(t, ok)
	assert.False(t, res.Forced)
	assert.True(t, res.Outcome.Draw)
	assert.Equal(t, "draw (alice=178, bob=178)", res.Message)
	assert.Equal(t, StateFinished, r.State())

	over, ok := members[1].Last(types.MsgGameOver)
	require.True(t, ok)
	assert.Equal(t, "GAME_OVER:draw (alice=178, bob=178)", over)

	_, err = r.Pass("alice")
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestScoring_TwoSeats(t *testing.T) {
	cases := []struct {
		name    string
		alice   []engine.Piece
		bob     []engine.Piece
		message string
		winner  string
		draw    bool
	}{
		{
			name:    "lower score wins",
			alice:   append(pieces(t, engine.ColorRed, "I5"), pieces(t, engine.ColorYellow, "I5")...),
			bob:     append(pieces(t, engine.ColorBlue, "I5", "I5"), pieces(t, engine.ColorGreen, "I5")...),
			message: "alice wins (alice=10, bob=15)",
			winner:  "alice",
		},
		{
			name:    "equal scores draw",
			alice:   pieces(t, engine.ColorRed, "O4", "O4", "O4"),
			bob:     pieces(t, engine.ColorGreen, "O4", "O4", "O4"),
			message: "draw (alice=12, bob=12)",
			draw:    true,
		},
		{
			name:    "empty hand bonus",
			alice:   nil,
			bob:     pieces(t, engine.ColorBlue, "I1"),
			message: "alice wins (alice=-15, bob=1)",
			winner:  "alice",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, _, _ := startedRoom(t, "alice", "bob")
			r.mu.Lock()
			r.hands["alice"] = tc.alice
			r.hands["bob"] = tc.bob
			r.mu.Unlock()

			for _, name := range []string{"alice", "bob", "alice", "bob"} {
				_, err := r.Pass(name)
				require.NoError(t, err)
			}
			res, ok := r.Result()
			require.True(t, ok)
			assert.Equal(t, tc.message, res.Message)
			assert.Equal(t, tc.winner, res.Outcome.Winner)
			assert.Equal(t, tc.draw, res.Outcome.Draw)
		})
	}
}

func TestScoring_FourSeatsRanksAscending(t *testing.T) {
	r, _, _ := startedRoom(t, "a", "b", "c", "d")
	r.mu.Lock()
	r.hands["a"] = pieces(t, engine.ColorRed, "I5")
	r.hands["b"] = pieces(t, engine.ColorBlue, "I2")
	r.hands["c"] = pieces(t, engine.ColorYellow, "I2")
	r.hands["d"] = nil
	r.mu.Unlock()

	for _, name := range []string{"a", "b", "c", "d"} {
		_, err := r.Pass(name)
		require.NoError(t, err)
	}
	res, ok := r.Result()
	require.True(t, ok)
	assert.Equal(t, "ranking: 1. d=-15, 2. b=2, 3. c=2, 4. a=5", res.Message)
}

func TestAdvanceTurn_SkipsEliminatedColors(t *testing.T) {
	r, _, _ := startedRoom(t, "a", "b", "c", "d")

	r.mu.Lock()
	r.eliminated[engine.ColorBlue] = true
	r.mu.Unlock()

	_, err := r.Pass("a")
	require.NoError(t, err)
	assert.Equal(t, engine.ColorYellow, r.currentColor())
}

func TestAdvanceTurn_AllEliminatedEndsWithoutTimer(t *testing.T) {
	r, _, clock := startedRoom(t, "a", "b", "c", "d")
	created := clock.Created()

	r.mu.Lock()
	for _, c := range engine.Colors {
		r.eliminated[c] = true
	}
	finished := r.advanceTurn()
	r.mu.Unlock()

	assert.True(t, finished)
	assert.Equal(t, created, clock.Created())
	res, ok := r.Result()
	require.True(t, ok)
	assert.False(t, res.Forced)
}

func TestAdvanceTurn_LastActiveColorKeepsPlaying(t *testing.T) {
	r, _, _ := startedRoom(t, "a", "b", "c", "d")

	r.mu.Lock()
	r.eliminated[engine.ColorBlue] = true
	r.eliminated[engine.ColorYellow] = true
	r.eliminated[engine.ColorGreen] = true
	finished := r.advanceTurn()
	r.mu.Unlock()

	assert.False(t, finished)
	assert.Equal(t, engine.ColorRed, r.currentColor())
}

func TestLeave_HostReassignedAndEmptyRoom(t *testing.T) {
	r, members, _ := newTestRoom(t, "alice", "bob", "carol")

	res, err := r.Leave("alice", "left")
	require.NoError(t, err)
	assert.False(t, res.Empty)
	assert.Equal(t, "bob", r.Host())
	notice, ok := members[2].Last(types.MsgSystem)
	require.True(t, ok)
	assert.Equal(t, "SYSTEM_MSG:bob is now the host", notice)
	roster, _ := members[2].Last(types.MsgRoomUpdate)
	assert.Equal(t, "ROOM_UPDATE:[bob,host];[carol,guest]", roster)

	_, err = r.Leave("alice", "left")
	assert.ErrorIs(t, err, ErrNotSeated)

	solo, _, _ := newTestRoom(t, "solo")
	res, err = solo.Leave("solo", "left")
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.Equal(t, StateFinished, solo.State())
}

func TestLeave_TwoSeatGameEndsForced(t *testing.T) {
	r, members, _ := startedRoom(t, "alice", "bob")

	res, err := r.Leave("alice", "disconnected")
	require.NoError(t, err)
	assert.True(t, res.Finished)
	assert.False(t, res.Empty)

	result, ok := r.Result()
	require.True(t, ok)
	assert.True(t, result.Forced)
	assert.Equal(t, "bob", result.Outcome.Winner)

	lines := members[1].Lines()
	assert.Contains(t, lines, "PLAYER_ELIMINATED:1|disconnected")
	assert.Contains(t, lines, "PLAYER_ELIMINATED:3|disconnected")
	assert.Contains(t, lines, "GAME_OVER:bob wins: the other players left")
}

func TestLeave_FourSeatPlayerOnTurnAdvances(t *testing.T) {
	r, members, _ := startedRoom(t, "a", "b", "c", "d")

	res, err := r.Leave("a", "disconnected")
	require.NoError(t, err)
	assert.False(t, res.Finished)
	assert.Equal(t, engine.ColorBlue, r.currentColor())
	assert.Contains(t, members[1].Lines(), "PLAYER_ELIMINATED:1|disconnected")
	turn, _ := members[1].Last(types.MsgTurnChanged)
	assert.Equal(t, "TURN_CHANGED:2|b", turn)

	// Three colors remain, so three passes end the game.
	for _, name := range []string{"b", "c"} {
		finished, err := r.Pass(name)
		require.NoError(t, err)
		require.False(t, finished)
	}
	finished, err := r.Pass("d")
	require.NoError(t, err)
	assert.True(t, finished)
}

func TestKick(t *testing.T) {
	r, members, _ := newTestRoom(t, "alice", "bob", "carol")

	_, err := r.Kick("bob", "carol")
	assert.ErrorIs(t, err, ErrNotHost)
	_, err = r.Kick("alice", "alice")
	assert.ErrorIs(t, err, ErrKickSelf)
	_, err = r.Kick("alice", "zed")
	assert.ErrorIs(t, err, ErrNotSeated)

	kicked, err := r.Kick("alice", "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol", kicked.Name())
	assert.Len(t, r.Members(), 2)
	notice, ok := members[2].Last(types.MsgSystem)
	require.True(t, ok)
	assert.Contains(t, notice, "kicked")

	require.NoError(t, r.Start("alice"))
	_, err = r.Kick("alice", "bob")
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestTick_CountsDownAndForcesPass(t *testing.T) {
	r, members, _ := startedRoom(t, "alice", "bob")

	r.mu.Lock()
	gen := r.timerGen
	r.remaining[engine.ColorRed] = 2
	r.mu.Unlock()

	r.tick(gen)
	times, _ := members[0].Last(types.MsgTimeUpdate)
	assert.Equal(t, "TIME_UPDATE:1,300,300,300", times)
	assert.Equal(t, engine.ColorRed, r.currentColor())

	r.tick(gen)
	assert.Equal(t, engine.ColorBlue, r.currentColor())
	notice, ok := members[1].Last(types.MsgSystem)
	require.True(t, ok)
	assert.Contains(t, notice, "RED ran out of time")

	r.mu.Lock()
	assert.Equal(t, 1, r.passes)
	assert.Equal(t, DefaultStartSeconds+DefaultBonusSeconds, r.remaining[engine.ColorBlue])
	r.mu.Unlock()
}

func TestTick_StaleGenerationIgnored(t *testing.T) {
	r, _, _ := startedRoom(t, "alice", "bob")

	r.mu.Lock()
	stale := r.timerGen
	r.mu.Unlock()

	_, err := r.Place("alice", place("I1", 0, 0, 0))
	require.NoError(t, err)

	r.mu.Lock()
	blueBefore := r.remaining[engine.ColorBlue]
	r.mu.Unlock()

	r.tick(stale)

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, blueBefore, r.remaining[engine.ColorBlue])
	assert.Equal(t, engine.ColorBlue, r.current)
}

func TestTimer_CancelledOnTurnAdvance(t *testing.T) {
	r, _, clock := startedRoom(t, "alice", "bob")
	first := clock.Latest()

	_, err := r.Pass("alice")
	require.NoError(t, err)

	assert.Equal(t, 2, clock.Created())
	assert.Eventually(t, first.Stopped, time.Second, 5*time.Millisecond)
}

func TestTimer_TimeoutsEndGameAndNotify(t *testing.T) {
	var finished atomic.Int32
	members := []*fakeMember{newMember("alice"), newMember("bob")}
	r := New(9, "Fast", members[0], Options{
		StartSeconds: 1,
		BonusSeconds: 1,
		TickInterval: 5 * time.Millisecond,
		Logger:       zaptest.NewLogger(t),
	})
	r.SetOnFinish(func(*Room) { finished.Add(1) })
	require.NoError(t, r.Join(members[1]))
	require.NoError(t, r.Start("alice"))

	assert.Eventually(t, func() bool { return finished.Load() == 1 }, 3*time.Second, 5*time.Millisecond)
	res, ok := r.Result()
	require.True(t, ok)
	assert.True(t, res.Outcome.Draw)
}

func TestChat(t *testing.T) {
	r, members, _ := newTestRoom(t, "alice", "bob")

	require.NoError(t, r.Chat("alice", "hello: all"))
	line, ok := members[1].Last(types.MsgChat)
	require.True(t, ok)
	assert.Equal(t, "CHAT:alice: hello: all", line)
	assert.ErrorIs(t, r.Chat("zed", "hi"), ErrNotSeated)
}
