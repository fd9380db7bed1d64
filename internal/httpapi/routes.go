package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/blokus-backend/internal/hub"
	"github.com/DoyleJ11/blokus-backend/internal/session"
	"github.com/DoyleJ11/blokus-backend/internal/ws"
)

// SetupRoutes builds the HTTP surface. originPatterns lists the extra hosts allowed to open
// a websocket from a browser; same-origin requests are always accepted.
func SetupRoutes(h *hub.Hub, srv *session.Server, logger *zap.Logger, originPatterns []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", Healthz)
	r.Get("/rooms", ListRooms(h))
	r.Get("/ws", ws.Handler(srv, logger, originPatterns))
	return r
}
