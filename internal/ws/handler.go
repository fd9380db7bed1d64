// Package ws carries the line protocol over WebSocket. Each outbound line is one text
// frame; an inbound frame may hold several lines.
package ws

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/DoyleJ11/blokus-backend/internal/session"
)

const readLimit = 16 * 1024

// Conn adapts a websocket to session.Conn. A text frame holding several lines yields them
// one by one.
type Conn struct {
	c       *websocket.Conn
	remote  string
	pending []string
}

func NewConn(c *websocket.Conn, remote string) *Conn {
	c.SetReadLimit(readLimit)
	return &Conn{c: c, remote: remote}
}

func (w *Conn) ReadLine(ctx context.Context) (string, error) {
	for len(w.pending) == 0 {
		typ, data, err := w.c.Read(ctx)
		if err != nil {
			return "", err
		}
		if typ != websocket.MessageText {
			return "", fmt.Errorf("%w: binary frame", session.ErrMalformedInput)
		}
		w.pending = splitLines(string(data))
	}
	line := w.pending[0]
	w.pending = w.pending[1:]
	return line, nil
}

func splitLines(data string) []string {
	return strings.FieldsFunc(data, func(r rune) bool { return r == '\n' || r == '\r' })
}

func (w *Conn) WriteLine(ctx context.Context, line string) error {
	return w.c.Write(ctx, websocket.MessageText, []byte(line))
}

func (w *Conn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "bye")
}

func (w *Conn) RemoteAddr() string { return w.remote }

// Handler upgrades the request and serves a session on it until either side closes.
func Handler(srv *session.Server, logger *zap.Logger, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Debug("websocket accept failed", zap.Error(err))
			return
		}
		srv.Serve(r.Context(), NewConn(conn, r.RemoteAddr))
	}
}
