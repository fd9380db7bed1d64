package room

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/DoyleJ11/blokus-backend/internal/engine"
	"github.com/DoyleJ11/blokus-backend/internal/timer"
	"github.com/DoyleJ11/blokus-backend/pkg/types"
)

type Result struct {
	// Forced is set when the game ended because too few seats remained.
	Forced  bool
	Outcome engine.Outcome
	Message string
}

// Start deals hands and hands the first turn out. Only the host may start.
func (r *Room) Start(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.state == StateFinished:
		return ErrRoomClosed
	case r.state != StateWaiting:
		return ErrAlreadyStarted
	case r.host != name:
		return ErrNotHost
	case len(r.seats) != 2 && len(r.seats) != 4:
		return ErrSeatCount
	}

	r.board.Clear()
	r.passes = 0
	r.current = engine.ColorNone
	r.seatCount = len(r.seats)
	r.owners = [5]string{}
	clear(r.hands)
	for _, c := range engine.Colors {
		r.remaining[c] = r.opts.StartSeconds
		r.eliminated[c] = false
		r.firstMove[c] = true
	}
	for i, m := range r.seats {
		colors := engine.SeatColors(r.seatCount, i)
		hand := make([]engine.Piece, 0, len(colors)*len(engine.PieceIDs()))
		ints := make([]int, len(colors))
		for j, c := range colors {
			r.owners[c] = m.Name()
			hand = append(hand, engine.FullSet(c)...)
			ints[j] = int(c)
		}
		r.hands[m.Name()] = hand
		m.Send(types.EncodeGameStart(r.seatCount, ints))
		m.Send(handLine(hand))
	}
	r.state = StateInProgress
	r.log.Info("game started", zap.Int("seats", r.seatCount))

	r.advanceTurn()
	return nil
}

// Place validates and applies a placement for the seat on turn. It reports whether the
// game ended as a result.
func (r *Room) Place(name string, req types.PlaceRequest) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkTurn(name); err != nil {
		return false, err
	}

	hand := r.hands[name]
	idx := -1
	for i, p := range hand {
		if p.ID == req.PieceID && p.Color == r.current {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, ErrPieceNotInHand
	}

	piece := hand[idx].Rotated(req.Rotation)
	if err := r.board.Place(piece, engine.Point{X: req.X, Y: req.Y}, r.firstMove[r.current]); err != nil {
		return false, err
	}

	hand = append(hand[:idx], hand[idx+1:]...)
	r.hands[name] = hand
	r.firstMove[r.current] = false
	r.passes = 0
	if m := r.member(name); m != nil {
		m.Send(handLine(hand))
	}
	r.log.Debug("piece placed",
		zap.String("user", name),
		zap.String("piece", req.PieceID),
		zap.Int("x", req.X), zap.Int("y", req.Y),
		zap.Int("rotation", req.Rotation),
	)
	return r.advanceTurn(), nil
}

// Pass gives up the current turn. It reports whether the game ended as a result.
func (r *Room) Pass(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkTurn(name); err != nil {
		return false, err
	}
	return r.pass(), nil
}

func (r *Room) checkTurn(name string) error {
	if r.state != StateInProgress {
		return ErrNotStarted
	}
	if r.seatIndex(name) < 0 {
		return ErrNotSeated
	}
	if r.owners[r.current] != name {
		return ErrNotYourTurn
	}
	return nil
}

func (r *Room) pass() bool {
	r.passes++
	if r.passes >= r.activeColors() {
		r.finishNatural()
		return true
	}
	return r.advanceTurn()
}

func (r *Room) activeColors() int {
	n := 0
	for _, c := range engine.Colors {
		if !r.eliminated[c] {
			n++
		}
	}
	return n
}

// advanceTurn moves to the next color still in play, credits it the turn bonus and
// restarts the countdown. With no color left the game ends naturally.
func (r *Room) advanceTurn() bool {
	r.stopTimer()

	next := r.current
	for range engine.Colors {
		next = next.Next()
		if r.eliminated[next] {
			continue
		}
		r.current = next
		r.remaining[next] += r.opts.BonusSeconds
		r.startTimer()
		r.broadcastTurn()
		return false
	}

	r.finishNatural()
	return true
}

func (r *Room) startTimer() {
	r.timerGen++
	gen := r.timerGen
	r.countdown = timer.Start(r.opts.Timers, r.opts.TickInterval, func() { r.tick(gen) })
}

// stopTimer cancels the countdown and invalidates any tick already waiting on the lock.
func (r *Room) stopTimer() {
	r.countdown.Cancel()
	r.countdown = nil
	r.timerGen++
}

func (r *Room) tick(gen uint64) {
	r.mu.Lock()
	if gen != r.timerGen || r.state != StateInProgress {
		r.mu.Unlock()
		return
	}

	c := r.current
	if r.remaining[c] > 0 {
		r.remaining[c]--
	}
	r.broadcastTimes()

	finished := false
	if r.remaining[c] == 0 {
		r.broadcast(types.Line(types.MsgSystem, fmt.Sprintf("%s ran out of time and passes", c)))
		r.log.Info("turn timed out", zap.Stringer("color", c))
		r.stopTimer()
		finished = r.pass()
	}
	onFinish := r.opts.OnFinish
	r.mu.Unlock()

	if finished && onFinish != nil {
		onFinish(r)
	}
}

// eliminate marks every color name controls as out of play. Already eliminated colors are
// skipped.
func (r *Room) eliminate(name, reason string) {
	for _, c := range engine.Colors {
		if r.owners[c] != name || r.eliminated[c] {
			continue
		}
		r.eliminated[c] = true
		r.broadcast(types.EncodeEliminated(int(c), reason))
		r.log.Info("color eliminated", zap.Stringer("color", c), zap.String("reason", reason))
	}
}

func (r *Room) finishForced() {
	res := Result{Forced: true}
	if len(r.seats) == 1 {
		winner := r.seats[0].Name()
		res.Outcome = engine.Outcome{Winner: winner, Standings: []engine.Standing{{Name: winner}}}
		res.Message = winner + " wins: the other players left"
	} else {
		res.Message = "no winner: all players left"
	}
	r.finish(res)
}

func (r *Room) finishNatural() {
	scores := make([]engine.Standing, 0, len(r.seats))
	for _, m := range r.seats {
		var held []engine.Piece
		for _, p := range r.hands[m.Name()] {
			if !r.eliminated[p.Color] {
				held = append(held, p)
			}
		}
		scores = append(scores, engine.Standing{Name: m.Name(), Score: engine.HandScore(held)})
	}
	out := engine.Rank(scores)
	r.finish(Result{Outcome: out, Message: r.describe(out)})
}

func (r *Room) describe(out engine.Outcome) string {
	parts := make([]string, len(out.Standings))
	if r.seatCount == 4 {
		for i, s := range out.Standings {
			parts[i] = fmt.Sprintf("%d. %s=%d", i+1, s.Name, s.Score)
		}
		return "ranking: " + strings.Join(parts, ", ")
	}

	for i, s := range out.Standings {
		parts[i] = fmt.Sprintf("%s=%d", s.Name, s.Score)
	}
	scores := strings.Join(parts, ", ")
	if out.Draw {
		return "draw (" + scores + ")"
	}
	return out.Winner + " wins (" + scores + ")"
}

func (r *Room) finish(res Result) {
	r.stopTimer()
	r.state = StateFinished
	r.result = &res
	r.broadcast(types.Line(types.MsgGameOver, res.Message))
	r.log.Info("game over", zap.Bool("forced", res.Forced), zap.String("result", res.Message))
}

func (r *Room) broadcastTurn() {
	owner := r.owners[r.current]
	r.broadcast(types.EncodeTurnChanged(int(r.current), owner))

	cells := r.board.Cells()
	ints := make([]int, len(cells))
	for i, c := range cells {
		ints[i] = int(c)
	}
	r.broadcast(types.EncodeGameState(ints, owner, int(r.current)))
	r.broadcastTimes()
}

func (r *Room) broadcastTimes() {
	var secs [4]int
	copy(secs[:], r.remaining[1:])
	r.broadcast(types.EncodeTimes(secs))
	r.broadcast(types.EncodeTimesKeyed(secs))
}

func handLine(hand []engine.Piece) string {
	pieces := make([]types.HandPiece, len(hand))
	for i, p := range hand {
		pieces[i] = types.HandPiece{ID: p.ID, Color: int(p.Color)}
	}
	return types.EncodeHand(pieces)
}
