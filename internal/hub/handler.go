package hub

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const maxBroadcastBody = 64 * 1024

// Handler exposes the hub over HTTP: the websocket upgrade endpoint and the
// producer-side room broadcast endpoint.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewHandler returns a Handler for the given hub.
func NewHandler(h *Hub, log *slog.Logger) *Handler {
	return &Handler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// ServeWS handles GET /ws: upgrades the connection and hands it to the hub.
// Room membership is driven by join events sent over the socket.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("upgrade error", "error", err)
		return
	}

	NewClient(uuid.New().String(), ws, h.hub, h.log).Start()
}

// BroadcastRoom handles POST /api/v1/rooms/{room}/broadcast. The body is an
// opaque payload fanned out to every member of the room. A room with no
// members is not an error; the response reports zero deliveries.
func (h *Handler) BroadcastRoom(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	if room == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBroadcastBody))
	if err != nil || len(payload) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	delivered := h.hub.Broadcast(room, payload)

	h.log.Debug("room broadcast", "room", room, "delivered", delivered)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]int{"delivered": delivered})
}
