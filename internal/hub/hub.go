// Package hub is the server-wide directory of rooms and of identities waiting in the lobby.
//
// Lock order: the hub's lock may be held while calling into a room, never the reverse.
// Rooms report finished games through return values or, for timer-driven endings,
// through Finish called after the room has released its own lock.
package hub

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/DoyleJ11/blokus-backend/internal/room"
	"github.com/DoyleJ11/blokus-backend/pkg/types"
)

var (
	ErrNameInUse     = errors.New("name already logged in")
	ErrRoomNameTaken = errors.New("room name already taken")
	ErrBadRoomName   = errors.New("invalid room name")
	ErrAlreadyInRoom = errors.New("already in a room")
	ErrRoomNotFound  = errors.New("room not found")
	ErrNotInRoom     = errors.New("not in a room")
)

const maxRoomName = 32

// Client is a logged-in connection.
type Client interface {
	room.Member
	// Close terminates the connection; its session runs the disconnect path afterwards.
	Close()
}

type Hub struct {
	log      *zap.Logger
	roomOpts room.Options

	mu     sync.Mutex
	nextID int
	rooms  map[int]*room.Room
	online map[string]Client
	lobby  map[string]Client
	seated map[string]int
}

func NewHub(logger *zap.Logger, roomOpts room.Options) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	roomOpts.Logger = logger
	return &Hub{
		log:      logger,
		roomOpts: roomOpts,
		rooms:    make(map[int]*room.Room),
		online:   make(map[string]Client),
		lobby:    make(map[string]Client),
		seated:   make(map[string]int),
	}
}

// Login registers c as online and puts it in the lobby.
func (h *Hub) Login(c Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.online[c.Name()]; ok {
		return ErrNameInUse
	}
	h.online[c.Name()] = c
	h.lobby[c.Name()] = c
	h.log.Info("user logged in", zap.String("user", c.Name()), zap.Int("online", len(h.online)))
	return nil
}

// Disconnect runs the leave path for name's room, if any, then forgets the identity.
func (h *Hub) Disconnect(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.online[name]; !ok {
		return
	}
	if id, ok := h.seated[name]; ok {
		h.leaveLocked(name, id, "disconnected")
	}
	delete(h.lobby, name)
	delete(h.online, name)
	h.log.Info("user disconnected", zap.String("user", name), zap.Int("online", len(h.online)))
}

func (h *Hub) IsOnline(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.online[name]
	return ok
}

// Client returns the online connection for name.
func (h *Hub) Client(name string) (Client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.online[name]
	return c, ok
}

// CreateRoom opens a room with c as host and seats it there.
func (h *Hub) CreateRoom(c Client, name string) (*room.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxRoomName || strings.ContainsAny(name, "[],;:|/\n\r") {
		return nil, ErrBadRoomName
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.seated[c.Name()]; ok {
		return nil, ErrAlreadyInRoom
	}
	for _, r := range h.rooms {
		if room.SameName(r.Name(), name) {
			return nil, ErrRoomNameTaken
		}
	}

	h.nextID++
	opts := h.roomOpts
	opts.OnFinish = h.Finish
	r := room.New(h.nextID, name, c, opts)
	h.rooms[r.ID()] = r
	delete(h.lobby, c.Name())
	h.seated[c.Name()] = r.ID()
	r.WelcomeHost(c)

	h.log.Info("room created", zap.Int("room_id", r.ID()), zap.String("room", name), zap.String("host", c.Name()))
	h.broadcastRoomListLocked()
	return r, nil
}

// JoinRoom seats c in room id.
func (h *Hub) JoinRoom(c Client, id int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.seated[c.Name()]; ok {
		return ErrAlreadyInRoom
	}
	r, ok := h.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}
	if err := r.Join(c); err != nil {
		return err
	}
	delete(h.lobby, c.Name())
	h.seated[c.Name()] = id
	h.broadcastRoomListLocked()
	return nil
}

// LeaveRoom returns name to the lobby.
func (h *Hub) LeaveRoom(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	id, ok := h.seated[name]
	if !ok {
		return ErrNotInRoom
	}
	h.leaveLocked(name, id, "left the game")
	return nil
}

// Kick removes target from the room host is hosting.
func (h *Hub) Kick(host, target string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	id, ok := h.seated[host]
	if !ok {
		return ErrNotInRoom
	}
	r := h.rooms[id]
	m, err := r.Kick(host, target)
	if err != nil {
		return err
	}
	delete(h.seated, m.Name())
	if c, ok := h.online[m.Name()]; ok {
		h.lobby[m.Name()] = c
	}
	h.broadcastRoomListLocked()
	return nil
}

func (h *Hub) leaveLocked(name string, id int, reason string) {
	r := h.rooms[id]
	delete(h.seated, name)
	if c, ok := h.online[name]; ok {
		h.lobby[name] = c
	}
	if r == nil {
		return
	}

	res, err := r.Leave(name, reason)
	if err != nil {
		h.log.Warn("leave failed", zap.String("user", name), zap.Int("room_id", id), zap.Error(err))
	}
	switch {
	case res.Finished:
		h.finishLocked(r)
	case res.Empty:
		delete(h.rooms, id)
		h.log.Info("room removed", zap.Int("room_id", id), zap.String("room", r.Name()))
		h.broadcastRoomListLocked()
	default:
		h.broadcastRoomListLocked()
	}
}

// RoomOf returns the room name is seated in.
func (h *Hub) RoomOf(name string) (*room.Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.seated[name]
	if !ok {
		return nil, false
	}
	r, ok := h.rooms[id]
	return r, ok
}

// Finish removes a room whose game has ended and returns its seats to the lobby. Calling
// it for a room that is already gone is a no-op.
func (h *Hub) Finish(r *room.Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finishLocked(r)
}

func (h *Hub) finishLocked(r *room.Room) {
	if h.rooms[r.ID()] != r {
		return
	}
	delete(h.rooms, r.ID())
	for _, m := range r.Members() {
		if h.seated[m.Name()] != r.ID() {
			continue
		}
		delete(h.seated, m.Name())
		if c, ok := h.online[m.Name()]; ok {
			h.lobby[m.Name()] = c
		}
	}
	h.log.Info("room finished", zap.Int("room_id", r.ID()), zap.String("room", r.Name()))
	h.broadcastRoomListLocked()
}

// Rooms lists open rooms ordered by id.
func (h *Hub) Rooms() []types.RoomSummary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.roomsLocked()
}

func (h *Hub) roomsLocked() []types.RoomSummary {
	out := make([]types.RoomSummary, 0, len(h.rooms))
	for _, r := range h.rooms {
		out = append(out, r.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SendRoomList pushes the current room list to one client.
func (h *Hub) SendRoomList(c room.Member) {
	h.mu.Lock()
	line := types.EncodeRoomList(h.roomsLocked())
	h.mu.Unlock()
	c.Send(line)
}

// broadcastRoomListLocked sends the room list to every unseated identity.
func (h *Hub) broadcastRoomListLocked() {
	line := types.EncodeRoomList(h.roomsLocked())
	for _, c := range h.lobby {
		c.Send(line)
	}
}

// Users reports every online identity and where it is, sorted by name.
func (h *Hub) Users() []types.UserSummary {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]types.UserSummary, 0, len(h.online))
	for name := range h.online {
		status := types.StatusOnline
		if id, ok := h.seated[name]; ok {
			status = types.StatusInRoom
			if r := h.rooms[id]; r != nil && r.State() == room.StateInProgress {
				status = types.StatusInGame
			}
		}
		out = append(out, types.UserSummary{Name: name, Status: status})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LobbyChat relays a message to every unseated identity.
func (h *Hub) LobbyChat(from, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	line := types.Line(types.MsgChat, from+": "+text)
	for _, c := range h.lobby {
		c.Send(line)
	}
}

// Shutdown closes every online connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]Client, 0, len(h.online))
	for _, c := range h.online {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
