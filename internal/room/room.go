// Package room runs one game instance: its seats, board, hands and turn state machine.
//
// Every exported method takes the room's lock for the whole transition, and so does the
// turn timer's tick. Nothing in this package calls back into the hub while the lock is held;
// callers learn that a game ended from the returned flag, and the timer reports it through
// Options.OnFinish after unlocking.
package room

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/blokus-backend/internal/engine"
	"github.com/DoyleJ11/blokus-backend/internal/timer"
	"github.com/DoyleJ11/blokus-backend/pkg/types"
)

// Member is a connected identity that can receive protocol lines. Send must not block.
type Member interface {
	Name() string
	Send(line string)
}

type State int

const (
	StateWaiting State = iota
	StateInProgress
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateInProgress:
		return "in_progress"
	case StateFinished:
		return "finished"
	}
	return "unknown"
}

const (
	MaxSeats            = 4
	DefaultStartSeconds = 300
	DefaultBonusSeconds = 20
)

type Options struct {
	StartSeconds int
	BonusSeconds int
	TickInterval time.Duration
	Timers       timer.Factory
	Logger       *zap.Logger
	// OnFinish is called without the room lock when the turn timer ends a game.
	OnFinish func(*Room)
}

func (o Options) withDefaults() Options {
	if o.StartSeconds <= 0 {
		o.StartSeconds = DefaultStartSeconds
	}
	if o.BonusSeconds <= 0 {
		o.BonusSeconds = DefaultBonusSeconds
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.Timers == nil {
		o.Timers = timer.System()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

type Room struct {
	id   int
	name string
	opts Options
	log  *zap.Logger

	mu    sync.Mutex
	seats []Member
	host  string
	state State

	board      engine.Board
	seatCount  int
	owners     [5]string
	hands      map[string][]engine.Piece
	firstMove  [5]bool
	current    engine.Color
	passes     int
	remaining  [5]int
	eliminated [5]bool

	countdown *timer.Countdown
	timerGen  uint64
	result    *Result
}

// New creates a waiting room with host in the first seat. Sending JOIN_SUCCESS is left to
// the caller.
func New(id int, name string, host Member, opts Options) *Room {
	opts = opts.withDefaults()
	r := &Room{
		id:    id,
		name:  name,
		opts:  opts,
		log:   opts.Logger.With(zap.Int("room_id", id), zap.String("room", name)),
		seats: []Member{host},
		host:  host.Name(),
		hands: make(map[string][]engine.Piece),
	}
	return r
}

func (r *Room) ID() int      { return r.id }
func (r *Room) Name() string { return r.name }

// SetOnFinish installs the timer end-of-game hook. Call before the game starts.
func (r *Room) SetOnFinish(fn func(*Room)) {
	r.mu.Lock()
	r.opts.OnFinish = fn
	r.mu.Unlock()
}

func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Room) Host() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host
}

func (r *Room) Members() []Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Member(nil), r.seats...)
}

func (r *Room) Summary() types.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return types.RoomSummary{
		ID:      r.id,
		Name:    r.name,
		Players: len(r.seats),
		Started: r.state != StateWaiting,
	}
}

// Result returns how the game ended, if it has.
func (r *Room) Result() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return Result{}, false
	}
	return *r.result, true
}

// Join seats m. The joiner receives JOIN_SUCCESS and everyone the new roster.
func (r *Room) Join(m Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.state == StateFinished:
		return ErrRoomClosed
	case r.state != StateWaiting:
		return ErrAlreadyStarted
	case r.seatIndex(m.Name()) >= 0:
		return ErrAlreadySeated
	case len(r.seats) >= MaxSeats:
		return ErrRoomFull
	}

	r.seats = append(r.seats, m)
	m.Send(r.joinLine())
	r.broadcast(r.rosterLine())
	r.log.Info("player joined", zap.String("user", m.Name()), zap.Int("seats", len(r.seats)))
	return nil
}

func (r *Room) joinLine() string {
	return types.Line(types.MsgJoinSuccess, strconv.Itoa(r.id), r.name)
}

// WelcomeHost sends the creator its JOIN_SUCCESS and the one-seat roster.
func (r *Room) WelcomeHost(m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.Send(r.joinLine())
	m.Send(r.rosterLine())
}

type LeaveResult struct {
	// Empty means no seats remain and the room must be discarded.
	Empty bool
	// Finished means the departure ended a game in progress.
	Finished bool
}

// Leave removes name from the room. During a game its colors are eliminated first with
// reason as the broadcast cause.
func (r *Room) Leave(name, reason string) (LeaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seatIndex(name) < 0 {
		return LeaveResult{}, ErrNotSeated
	}

	var res LeaveResult
	if r.state == StateInProgress {
		r.eliminate(name, reason)
	}
	r.removeSeat(name)

	if len(r.seats) == 0 {
		if r.state == StateInProgress {
			r.finishForced()
			res.Finished = true
		}
		r.state = StateFinished
		res.Empty = true
		return res, nil
	}

	if r.state == StateInProgress {
		switch {
		case len(r.seats) < 2:
			r.finishForced()
			res.Finished = true
		case r.eliminated[r.current]:
			res.Finished = r.advanceTurn()
		}
	}
	return res, nil
}

// Kick removes target on the host's behalf before the game starts.
func (r *Room) Kick(host, target string) (Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.host != host {
		return nil, ErrNotHost
	}
	if r.state != StateWaiting {
		return nil, ErrAlreadyStarted
	}
	if host == target {
		return nil, ErrKickSelf
	}
	i := r.seatIndex(target)
	if i < 0 {
		return nil, ErrNotSeated
	}
	m := r.seats[i]
	r.removeSeat(target)
	m.Send(types.Line(types.MsgSystem, "You were kicked from "+r.name))
	return m, nil
}

// Chat relays text from a seated member to the whole room.
func (r *Room) Chat(from, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seatIndex(from) < 0 {
		return ErrNotSeated
	}
	r.broadcast(types.Line(types.MsgChat, from+": "+text))
	return nil
}

// removeSeat drops name, hands the host role on if needed and announces the new roster.
func (r *Room) removeSeat(name string) {
	i := r.seatIndex(name)
	if i < 0 {
		return
	}
	r.seats = append(r.seats[:i], r.seats[i+1:]...)
	r.log.Info("player left", zap.String("user", name), zap.Int("seats", len(r.seats)))
	if len(r.seats) == 0 {
		r.host = ""
		return
	}
	if r.host == name {
		r.host = r.seats[i%len(r.seats)].Name()
		r.broadcast(types.Line(types.MsgSystem, r.host+" is now the host"))
	}
	r.broadcast(r.rosterLine())
}

func (r *Room) seatIndex(name string) int {
	for i, m := range r.seats {
		if m.Name() == name {
			return i
		}
	}
	return -1
}

func (r *Room) member(name string) Member {
	if i := r.seatIndex(name); i >= 0 {
		return r.seats[i]
	}
	return nil
}

func (r *Room) broadcast(line string) {
	for _, m := range r.seats {
		m.Send(line)
	}
}

func (r *Room) rosterLine() string {
	seats := make([]types.SeatSummary, len(r.seats))
	for i, m := range r.seats {
		seats[i] = types.SeatSummary{Name: m.Name(), Host: m.Name() == r.host}
	}
	return types.EncodeRoomUpdate(seats)
}

// SameName reports whether two room names collide, ignoring case.
func SameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
