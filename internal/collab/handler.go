package collab

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/bodymap/bodymap/internal/typeid"
)

// ServeRoom upgrades /ws/room/{roomId} requests and attaches the
// connection to the hub. The player id comes from the "player" query
// parameter; a missing one is assigned.
func (h *Hub) ServeRoom(originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := mux.Vars(r)["roomId"]
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		q := r.URL.Query()
		playerID := q.Get("player")
		if playerID == "" {
			playerID = typeid.NewPlayerID()
		}
		displayName := q.Get("name")
		if displayName == "" {
			displayName = "Anonymous"
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			h.log.Error("websocket accept", "error", err)
			return
		}

		clientID := uuid.New().String()
		client := NewClient(h, conn, playerID, displayName, roomID, clientID)

		if !h.Register(client) {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}

		ctx := r.Context()
		go client.WritePump(ctx)
		client.ReadPump(ctx)
	}
}
