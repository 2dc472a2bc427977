package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
)

type Room struct {
	roomID   string
	clients  map[string]*Client // clientID -> client
	presence *PresenceManager
}

func NewRoom(roomID string) *Room {
	return &Room{
		roomID:   roomID,
		clients:  make(map[string]*Client),
		presence: NewPresenceManager(),
	}
}

// RoomInfo summarizes a live room.
type RoomInfo struct {
	ID      string   `json:"id"`
	Clients int      `json:"clients"`
	Players []string `json:"players"`
}

// Hub relays drawing events between the members of each room. It keeps no
// canvas state; late joiners catch up from their peers.
type Hub struct {
	mu         sync.RWMutex
	rooms      map[string]*Room // roomID -> room
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	log        *slog.Logger
	maxMsgSize int64
}

type HubOptions struct {
	Logger *slog.Logger
	// MaxMessageBytes caps inbound frames per client.
	MaxMessageBytes int64
}

func NewHub(opts HubOptions) *Hub {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	limit := opts.MaxMessageBytes
	if limit <= 0 {
		limit = maxMsgSize
	}
	return &Hub{
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
		maxMsgSize: limit,
	}
}

// Run processes joins and leaves until ctx ends or Stop is called.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ctx.Done():
			h.closeAll()
			return
		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Stop disconnects every client and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.RoomID]
	if !ok {
		room = NewRoom(client.RoomID)
		h.rooms[client.RoomID] = room
	}
	room.clients[client.ClientID] = client
	peers := len(room.clients) - 1
	h.mu.Unlock()

	welcome, _ := json.Marshal(WelcomePayload{
		ClientID: client.ClientID,
		PlayerID: client.PlayerID,
		RoomID:   client.RoomID,
		Peers:    peers,
	})
	client.Send(h.stamp(&Message{Type: TypeWelcome, RoomID: client.RoomID, Payload: welcome}))

	// Send current presence state to new client
	if stateMsg := room.presence.StateMessage(); stateMsg != nil {
		client.Send(h.stamp(stateMsg))
	}

	room.presence.Update(client.PlayerID, &PresencePayload{DisplayName: client.DisplayName})

	// Broadcast join to other clients
	joinPayload, _ := json.Marshal(PresenceJoinPayload{
		PlayerID:    client.PlayerID,
		DisplayName: client.DisplayName,
	})
	joinMsg := &Message{
		Type:     TypePresenceJoin,
		RoomID:   client.RoomID,
		PlayerID: client.PlayerID,
		Payload:  joinPayload,
	}
	h.broadcastToRoom(client.RoomID, h.stamp(joinMsg), client.ClientID)

	h.log.Info("client joined", "player", client.PlayerID, "room", client.RoomID, "peers", peers)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.RoomID]
	if !ok || room.clients[client.ClientID] != client {
		h.mu.Unlock()
		return
	}

	delete(room.clients, client.ClientID)
	client.close()
	room.presence.Remove(client.PlayerID)

	if len(room.clients) == 0 {
		delete(h.rooms, client.RoomID)
	}
	h.mu.Unlock()

	// Broadcast leave to remaining clients
	leavePayload, _ := json.Marshal(PresenceLeavePayload{
		PlayerID: client.PlayerID,
	})
	leaveMsg := &Message{
		Type:     TypePresenceLeave,
		RoomID:   client.RoomID,
		PlayerID: client.PlayerID,
		Payload:  leavePayload,
	}
	h.broadcastToRoom(client.RoomID, h.stamp(leaveMsg), "")

	h.log.Info("client left", "player", client.PlayerID, "room", client.RoomID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, room := range h.rooms {
		for _, c := range room.clients {
			c.close()
		}
		delete(h.rooms, id)
	}
	h.log.Info("hub stopped")
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	switch {
	case msg.Type == TypePresenceUpdate:
		h.handlePresenceUpdate(sender, msg)
	case msg.Type == TypeStateSnapshot:
		h.handleStateSnapshot(sender, msg)
	case IsDrawingType(msg.Type):
		h.broadcastToRoom(sender.RoomID, msg, sender.ClientID)
	default:
		h.log.Warn("unknown message type", "type", msg.Type, "player", sender.PlayerID)
	}
}

func (h *Hub) handlePresenceUpdate(sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		h.log.Warn("invalid presence payload", "error", err)
		return
	}

	presence.DisplayName = sender.DisplayName

	h.mu.RLock()
	room, ok := h.rooms[sender.RoomID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	room.presence.Update(sender.PlayerID, &presence)

	// Broadcast to other clients in room
	outPayload, _ := json.Marshal(presence)
	outMsg := &Message{
		ID:       msg.ID,
		Type:     TypePresenceUpdate,
		RoomID:   sender.RoomID,
		ClientID: sender.ClientID,
		PlayerID: sender.PlayerID,
		Payload:  outPayload,
	}
	h.broadcastToRoom(sender.RoomID, outMsg, sender.ClientID)
}

// handleStateSnapshot delivers an addressed snapshot only to the requester.
func (h *Hub) handleStateSnapshot(sender *Client, msg *Message) {
	var addr struct {
		To string `json:"to"`
	}
	if err := json.Unmarshal(msg.Payload, &addr); err != nil || addr.To == "" {
		h.broadcastToRoom(sender.RoomID, msg, sender.ClientID)
		return
	}

	h.mu.RLock()
	var targets []*Client
	if room, ok := h.rooms[sender.RoomID]; ok {
		for _, c := range room.clients {
			if c.PlayerID == addr.To && c.ClientID != sender.ClientID {
				targets = append(targets, c)
			}
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Send(msg)
	}
}

func (h *Hub) broadcastToRoom(roomID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

// stamp gives a server-originated message an id and time.
func (h *Hub) stamp(msg *Message) *Message {
	if msg.ID == "" {
		msg.ID = ksuid.New().String()
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	return msg
}

// Rooms lists the live rooms ordered by id.
func (h *Hub) Rooms() []RoomInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]RoomInfo, 0, len(h.rooms))
	for id, room := range h.rooms {
		info := RoomInfo{ID: id, Clients: len(room.clients)}
		for _, c := range room.clients {
			info.Players = append(info.Players, c.PlayerID)
		}
		sort.Strings(info.Players)
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
