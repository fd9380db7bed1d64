package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/DoyleJ11/blokus-backend/internal/hub"
	"github.com/DoyleJ11/blokus-backend/pkg/types"
)

// ListRooms reports the open rooms as JSON.
func ListRooms(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Rooms []types.RoomSummary `json:"rooms"`
		}{Rooms: h.Rooms()})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
