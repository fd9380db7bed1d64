package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/DoyleJ11/blokus-backend/internal/auth"
	"github.com/DoyleJ11/blokus-backend/internal/hub"
	"github.com/DoyleJ11/blokus-backend/internal/room"
	"github.com/DoyleJ11/blokus-backend/internal/session"
	"github.com/DoyleJ11/blokus-backend/internal/timer"
	"github.com/DoyleJ11/blokus-backend/pkg/types"
)

type nopClient struct{ name string }

func (n nopClient) Name() string { return n.name }
func (n nopClient) Send(string)  {}
func (n nopClient) Close()       {}

func newTestServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	// Hijacked websocket handlers can outlive the test server, so no zaptest here.
	logger := zap.NewNop()
	h := hub.NewHub(logger, room.Options{Timers: &timer.Manual{}})
	a := auth.NewService(auth.NewMemoryStore(), auth.Options{AllowGuests: true, HashCost: bcrypt.MinCost})
	srv := session.NewServer(h, a, logger, session.Options{})

	ts := httptest.NewServer(SetupRoutes(h, srv, logger, nil))
	t.Cleanup(ts.Close)
	return ts, h
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)

	res, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestListRooms(t *testing.T) {
	ts, h := newTestServer(t)
	host := nopClient{name: "alice"}
	require.NoError(t, h.Login(host))
	_, err := h.CreateRoom(host, "Lounge")
	require.NoError(t, err)

	res, err := http.Get(ts.URL + "/rooms")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

	var body struct {
		Rooms []types.RoomSummary `json:"rooms"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.Equal(t, []types.RoomSummary{{ID: 1, Name: "Lounge", Players: 1}}, body.Rooms)
}

func TestWebsocketSession(t *testing.T) {
	ts, h := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	read := func() string {
		t.Helper()
		typ, data, err := conn.Read(ctx)
		require.NoError(t, err)
		require.Equal(t, websocket.MessageText, typ)
		return string(data)
	}

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("GET_ROOM_LIST")))
	assert.Equal(t, "SYSTEM_MSG:Login required", read())

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("LOGIN:alice")))
	assert.Equal(t, "LOGIN_SUCCESS", read())
	assert.Equal(t, "ROOM_LIST:", read())

	// Binary frames are skipped without dropping the player.
	require.NoError(t, conn.Write(ctx, websocket.MessageBinary, []byte("GAME_OVER:x")))
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("GET_ROOM_LIST")))
	assert.Equal(t, "ROOM_LIST:", read())
	assert.True(t, h.IsOnline("alice"))

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("CREATE_ROOM:Lounge")))
	assert.Equal(t, "JOIN_SUCCESS:1:Lounge", read())
	assert.Equal(t, "ROOM_UPDATE:[alice,host]", read())

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	assert.Eventually(t, func() bool { return !h.IsOnline("alice") && len(h.Rooms()) == 0 },
		2*time.Second, 10*time.Millisecond)
}
