// Package session binds one connection to one identity and turns its lines into hub and
// room operations.
package session

import (
	"context"
	"errors"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DoyleJ11/blokus-backend/internal/auth"
	"github.com/DoyleJ11/blokus-backend/internal/hub"
	"github.com/DoyleJ11/blokus-backend/pkg/types"
)

const (
	DefaultOutboxSize = 256
	requestTimeout    = 5 * time.Second
)

// Authenticator is the identity capability sessions depend on.
type Authenticator interface {
	Login(ctx context.Context, name, password string) error
	Signup(ctx context.Context, name, password string) error
	ChangePassword(ctx context.Context, name, oldPassword, newPassword string) error
	SetBanned(ctx context.Context, actor, target string, banned bool) error
	BannedUsers(ctx context.Context) ([]string, error)
}

type Options struct {
	ChatRate   rate.Limit
	ChatBurst  int
	OutboxSize int
}

// Server runs a session per accepted connection.
type Server struct {
	hub  *hub.Hub
	auth Authenticator
	log  *zap.Logger
	opts Options
}

func NewServer(h *hub.Hub, a Authenticator, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ChatRate <= 0 {
		opts.ChatRate = 2
	}
	if opts.ChatBurst <= 0 {
		opts.ChatBurst = 5
	}
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = DefaultOutboxSize
	}
	return &Server{hub: h, auth: a, log: logger, opts: opts}
}

// ServeTCP accepts line connections until ctx is done, then waits for open sessions.
func (s *Server) ServeTCP(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()
	s.log.Info("tcp listening", zap.String("addr", ln.Addr().String()))
	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Serve(ctx, NewLineConn(c))
		}()
	}
}

// Serve runs one connection to completion. The disconnect path runs before it returns.
func (s *Server) Serve(ctx context.Context, conn Conn) {
	sess := &Session{
		id:      uuid.NewString(),
		srv:     s,
		conn:    conn,
		out:     make(chan string, s.opts.OutboxSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		limiter: rate.NewLimiter(s.opts.ChatRate, s.opts.ChatBurst),
	}
	sess.log = s.log.With(zap.String("session_id", sess.id), zap.String("remote", conn.RemoteAddr()))
	sess.log.Info("connection opened")

	stop := context.AfterFunc(ctx, sess.Close)
	defer stop()

	go sess.writePump(ctx)
	sess.readPump(ctx)

	sess.Close()
	if name := sess.Name(); name != "" {
		s.hub.Disconnect(name)
	}
	<-sess.flushed
	sess.log.Info("connection closed")
}

// Session is one connection's identity and outbound queue. Only the read pump mutates
// the identity.
type Session struct {
	id      string
	srv     *Server
	conn    Conn
	log     *zap.Logger
	limiter *rate.Limiter

	mu   sync.RWMutex
	name string

	out       chan string
	done      chan struct{}
	flushed   chan struct{}
	closeOnce sync.Once
}

func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *Session) setName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// Send queues a line without blocking. Lines for a full or closed queue are dropped.
func (s *Session) Send(line string) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.out <- line:
	default:
		s.log.Warn("outbox full, dropping line", zap.String("line", line))
	}
}

// Close stops the session. Queued lines are flushed before the connection closes.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) writePump(ctx context.Context) {
	defer close(s.flushed)
	defer s.conn.Close()

	write := func(line string) error {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()
		return s.conn.WriteLine(wctx, line)
	}
	for {
		select {
		case line := <-s.out:
			if err := write(line); err != nil {
				s.log.Info("write failed", zap.Error(err))
				s.Close()
				return
			}
		case <-s.done:
			for {
				select {
				case line := <-s.out:
					if write(line) != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (s *Session) readPump(ctx context.Context) {
	for {
		line, err := s.conn.ReadLine(ctx)
		if errors.Is(err, ErrMalformedInput) {
			s.log.Warn("skipping malformed input", zap.Error(err))
			continue
		}
		if err != nil {
			select {
			case <-s.done:
			default:
				s.log.Info("read ended", zap.Error(err))
			}
			return
		}
		s.handle(ctx, line)
	}
}

func (s *Session) handle(ctx context.Context, line string) {
	msg, err := types.Parse(line)
	if err != nil {
		s.log.Debug("ignoring line", zap.String("line", line), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	name := s.Name()
	if name == "" {
		switch msg.Command {
		case types.CmdLogin:
			s.login(ctx, msg.Payload)
		case types.CmdSignup:
			s.signup(ctx, msg.Payload)
		default:
			s.Send(types.Line(types.MsgSystem, "Login required"))
		}
		return
	}

	h := s.srv.hub
	switch msg.Command {
	case types.CmdLogin:
		s.Send(types.Line(types.MsgLoginFail, "already logged in"))
	case types.CmdSignup:
		s.signup(ctx, msg.Payload)
	case types.CmdChangePassword:
		s.changePassword(ctx, name, msg.Payload)
	case types.CmdGetRoomList:
		h.SendRoomList(s)
	case types.CmdGetUserList:
		s.userList(ctx)
	case types.CmdCreateRoom:
		if _, err := h.CreateRoom(s, msg.Payload); err != nil {
			s.Send(types.Line(types.MsgJoinFail, err.Error()))
		}
	case types.CmdJoinRoom:
		id, err := strconv.Atoi(strings.TrimSpace(msg.Payload))
		if err != nil {
			s.Send(types.Line(types.MsgJoinFail, "invalid room id"))
			return
		}
		if err := h.JoinRoom(s, id); err != nil {
			s.Send(types.Line(types.MsgJoinFail, err.Error()))
		}
	case types.CmdLeaveRoom:
		if err := h.LeaveRoom(name); err != nil {
			s.Send(types.Line(types.MsgSystem, err.Error()))
		}
	case types.CmdKick:
		if err := h.Kick(name, strings.TrimSpace(msg.Payload)); err != nil {
			s.Send(types.Line(types.MsgSystem, err.Error()))
		}
	case types.CmdStartGame:
		r, ok := h.RoomOf(name)
		if !ok {
			s.Send(types.Line(types.MsgSystem, hub.ErrNotInRoom.Error()))
			return
		}
		if err := r.Start(name); err != nil {
			s.Send(types.Line(types.MsgSystem, err.Error()))
		}
	case types.CmdPlace:
		req, err := types.ParsePlace(msg.Payload)
		if err != nil {
			s.Send(types.Line(types.MsgInvalidMove, err.Error()))
			return
		}
		r, ok := h.RoomOf(name)
		if !ok {
			s.Send(types.Line(types.MsgInvalidMove, hub.ErrNotInRoom.Error()))
			return
		}
		finished, err := r.Place(name, req)
		if err != nil {
			s.Send(types.Line(types.MsgInvalidMove, err.Error()))
			return
		}
		if finished {
			h.Finish(r)
		}
	case types.CmdPassTurn:
		r, ok := h.RoomOf(name)
		if !ok {
			s.Send(types.Line(types.MsgInvalidMove, hub.ErrNotInRoom.Error()))
			return
		}
		finished, err := r.Pass(name)
		if err != nil {
			s.Send(types.Line(types.MsgInvalidMove, err.Error()))
			return
		}
		if finished {
			h.Finish(r)
		}
	case types.CmdChat:
		s.chat(name, msg.Payload)
	case types.CmdBan:
		s.setBanned(ctx, name, msg.Payload, true)
	case types.CmdUnban:
		s.setBanned(ctx, name, msg.Payload, false)
	default:
		s.log.Debug("unknown command", zap.String("command", msg.Command))
	}
}

func (s *Session) login(ctx context.Context, payload string) {
	name, password, _ := strings.Cut(payload, ":")
	name = strings.TrimSpace(name)

	if err := s.srv.auth.Login(ctx, name, password); err != nil {
		if !errors.Is(err, auth.ErrBadCredentials) && !errors.Is(err, auth.ErrInvalidName) {
			s.log.Info("login rejected", zap.String("user", name), zap.Error(err))
		}
		s.Send(types.Line(types.MsgLoginFail, err.Error()))
		return
	}

	s.setName(name)
	if err := s.srv.hub.Login(s); err != nil {
		s.setName("")
		s.Send(types.Line(types.MsgLoginFail, err.Error()))
		return
	}
	s.log.Info("logged in", zap.String("user", name))
	s.Send(types.MsgLoginSuccess)
	s.srv.hub.SendRoomList(s)
}

func (s *Session) signup(ctx context.Context, payload string) {
	f, ok := types.Fields(payload, 2)
	if !ok {
		s.Send(types.Line(types.MsgSignupFail, "expected username:password"))
		return
	}
	if err := s.srv.auth.Signup(ctx, strings.TrimSpace(f[0]), f[1]); err != nil {
		s.Send(types.Line(types.MsgSignupFail, err.Error()))
		return
	}
	s.Send(types.MsgSignupSuccess)
}

func (s *Session) changePassword(ctx context.Context, name, payload string) {
	f, ok := types.Fields(payload, 2)
	if !ok {
		s.Send(types.Line(types.MsgPasswordFail, "expected old:new"))
		return
	}
	if err := s.srv.auth.ChangePassword(ctx, name, f[0], f[1]); err != nil {
		s.Send(types.Line(types.MsgPasswordFail, err.Error()))
		return
	}
	s.Send(types.MsgPasswordChanged)
}

func (s *Session) userList(ctx context.Context) {
	users := s.srv.hub.Users()
	banned, err := s.srv.auth.BannedUsers(ctx)
	if err != nil {
		s.log.Warn("list banned users", zap.Error(err))
	}
	seen := make(map[string]bool, len(users))
	for _, u := range users {
		seen[u.Name] = true
	}
	for _, b := range banned {
		if !seen[b] {
			users = append(users, types.UserSummary{Name: b, Status: types.StatusBanned})
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	s.Send(types.EncodeUserList(users))
}

func (s *Session) chat(name, text string) {
	text = strings.TrimSpace(types.StripControl(text))
	if text == "" {
		return
	}
	if !s.limiter.Allow() {
		s.Send(types.Line(types.MsgSystem, "You are sending messages too fast"))
		return
	}
	if r, ok := s.srv.hub.RoomOf(name); ok {
		if err := r.Chat(name, text); err == nil {
			return
		}
	}
	s.srv.hub.LobbyChat(name, text)
}

func (s *Session) setBanned(ctx context.Context, actor, payload string, banned bool) {
	target := strings.TrimSpace(payload)
	if err := s.srv.auth.SetBanned(ctx, actor, target, banned); err != nil {
		s.Send(types.Line(types.MsgSystem, err.Error()))
		return
	}
	verb := "unbanned"
	if banned {
		verb = "banned"
	}
	s.log.Info("user "+verb, zap.String("user", actor), zap.String("target", target))
	s.Send(types.Line(types.MsgSystem, target+" "+verb))

	if !banned {
		return
	}
	if c, ok := s.srv.hub.Client(target); ok {
		c.Send(types.Line(types.MsgSystem, "You have been banned"))
		c.Close()
	}
}
