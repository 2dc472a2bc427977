package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// AnyType subscribes a handler to every message type.
const AnyType = "*"

type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
)

var (
	ErrNotConnected   = errors.New("channel not connected")
	ErrSendBufferFull = errors.New("send buffer full")
)

type Handler func(msg *Message)

// Channel is a room broadcast channel as seen by one participant.
type Channel interface {
	// Send broadcasts an event to the other room members.
	Send(typ string, payload any) error
	// OnMessage registers h for messages of type typ (or AnyType) and
	// returns a function that removes it.
	OnMessage(typ string, h Handler) (unsubscribe func())
	State() ConnState
}

// dispatcher fans incoming messages out to subscribed handlers.
type dispatcher struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]Handler
}

func (d *dispatcher) OnMessage(typ string, h Handler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = make(map[string]map[int]Handler)
	}
	if d.handlers[typ] == nil {
		d.handlers[typ] = make(map[int]Handler)
	}
	d.nextID++
	id := d.nextID
	d.handlers[typ][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.handlers[typ], id)
		})
	}
}

func (d *dispatcher) dispatch(msg *Message) {
	d.mu.RLock()
	var targets []Handler
	for _, h := range d.handlers[msg.Type] {
		targets = append(targets, h)
	}
	for _, h := range d.handlers[AnyType] {
		targets = append(targets, h)
	}
	d.mu.RUnlock()

	for _, h := range targets {
		h(msg)
	}
}

// NopChannel is a channel for solo use. Sends succeed and go nowhere.
type NopChannel struct {
	dispatcher
}

func (*NopChannel) Send(string, any) error { return nil }
func (*NopChannel) State() ConnState       { return StateDisconnected }

// WSChannel is a Channel over a websocket connection to the relay server.
type WSChannel struct {
	dispatcher

	conn     *websocket.Conn
	send     chan []byte
	roomID   string
	playerID string
	log      *slog.Logger

	mu       sync.RWMutex
	state    ConnState
	clientID string
	onState  func(ConnState)

	cancel context.CancelFunc
	done   chan struct{}
}

type DialOptions struct {
	DisplayName string
	Logger      *slog.Logger
	// OnState is called on every connection state change.
	OnState func(ConnState)
}

// RoomURL builds the websocket URL of a room on a relay server given as
// http(s):// or ws(s)://.
func RoomURL(server, roomID, playerID, displayName string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/room/" + url.PathEscape(roomID)
	q := u.Query()
	q.Set("player", playerID)
	if displayName != "" {
		q.Set("name", displayName)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DialRoom connects to a room on the relay server. The returned channel
// is connected; it moves to disconnected when the connection drops and is
// not redialed.
func DialRoom(ctx context.Context, server, roomID, playerID string, opts DialOptions) (*WSChannel, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	c := &WSChannel{
		send:     make(chan []byte, 256),
		roomID:   roomID,
		playerID: playerID,
		log:      log.With("room", roomID, "player", playerID),
		state:    StateDisconnected,
		onState:  opts.OnState,
		done:     make(chan struct{}),
	}
	c.setState(StateConnecting)

	target, err := RoomURL(server, roomID, playerID, opts.DisplayName)
	if err != nil {
		c.setState(StateDisconnected)
		return nil, err
	}
	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		c.setState(StateDisconnected)
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	conn.SetReadLimit(maxMsgSize)
	c.conn = conn
	c.setState(StateConnected)

	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.writePump(runCtx)
	go c.readPump(runCtx)
	return c, nil
}

func (c *WSChannel) State() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ClientID is the id the server assigned in its welcome message.
func (c *WSChannel) ClientID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientID
}

func (c *WSChannel) setState(s ConnState) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	cb := c.onState
	c.mu.Unlock()
	if changed && cb != nil {
		cb(s)
	}
}

// Send queues an event for the server without blocking.
func (c *WSChannel) Send(typ string, payload any) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	msg, err := NewMessage(typ, payload)
	if err != nil {
		return err
	}
	msg.RoomID = c.roomID
	msg.PlayerID = c.playerID
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrNotConnected
	default:
		return ErrSendBufferFull
	}
}

// Close leaves the room.
func (c *WSChannel) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.setState(StateDisconnected)
	return c.conn.Close(websocket.StatusNormalClosure, "leaving")
}

// Done is closed once the connection is gone.
func (c *WSChannel) Done() <-chan struct{} {
	return c.done
}

func (c *WSChannel) readPump(ctx context.Context) {
	defer func() {
		c.cancel()
		c.setState(StateDisconnected)
		close(c.done)
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				c.log.Warn("connection lost", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("invalid message", "error", err)
			continue
		}
		if msg.Type == TypeWelcome {
			var w WelcomePayload
			if err := json.Unmarshal(msg.Payload, &w); err == nil {
				c.mu.Lock()
				c.clientID = w.ClientID
				c.mu.Unlock()
			}
		}
		c.dispatch(&msg)
	}
}

func (c *WSChannel) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.log.Debug("write error", "error", err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
