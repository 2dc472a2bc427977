package collab

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bodymap/bodymap/internal/document"
	"github.com/bodymap/bodymap/internal/engine"
	"github.com/bodymap/bodymap/internal/geom"
	"github.com/bodymap/bodymap/internal/history"
	"github.com/bodymap/bodymap/internal/throttle"
	"github.com/bodymap/bodymap/internal/typeid"
)

const (
	DefaultDedupCapacity     = 4096
	DefaultStateRequestDelay = 500 * time.Millisecond
	DefaultCursorInterval    = 50 * time.Millisecond
)

type SessionOptions struct {
	Engine  *engine.Engine
	Channel Channel
	Logger  *slog.Logger
	// StateRequestDelay is the wait between Join and the state request.
	// A negative delay disables the request.
	StateRequestDelay time.Duration
	CursorInterval    time.Duration
	DedupCapacity     int
	DisplayName       string
	// OnChange is called after a remote message changed the canvas, outside
	// the session lock.
	OnChange func(msgType string)
}

// Session connects an Engine to a room channel. Local operations are
// applied and then broadcast; remote messages are decoded, deduplicated and
// applied. All engine access is serialized by the session.
type Session struct {
	mu          sync.Mutex
	engine      *engine.Engine
	channel     Channel
	log         *slog.Logger
	displayName string

	events  *seenSet
	strokes *seenSet
	cursor  *throttle.Limiter
	peers   map[string]*PresencePayload

	requestDelay time.Duration
	requestTimer *time.Timer
	unsubscribe  func()
	onChange     func(string)
}

func NewSession(opts SessionOptions) (*Session, error) {
	if opts.Engine == nil {
		return nil, errors.New("session needs an engine")
	}
	if opts.Engine.PlayerID() == "" {
		opts.Engine.SetPlayerID(typeid.NewPlayerID())
	}
	ch := opts.Channel
	if ch == nil {
		ch = &NopChannel{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	delay := opts.StateRequestDelay
	if delay == 0 {
		delay = DefaultStateRequestDelay
	}
	cursorInterval := opts.CursorInterval
	if cursorInterval == 0 {
		cursorInterval = DefaultCursorInterval
	}
	dedup := opts.DedupCapacity
	if dedup <= 0 {
		dedup = DefaultDedupCapacity
	}

	return &Session{
		engine:       opts.Engine,
		channel:      ch,
		log:          log.With("player", opts.Engine.PlayerID()),
		displayName:  opts.DisplayName,
		events:       newSeenSet(dedup),
		strokes:      newSeenSet(dedup),
		cursor:       throttle.New(cursorInterval),
		peers:        make(map[string]*PresencePayload),
		requestDelay: delay,
		onChange:     opts.OnChange,
	}, nil
}

func (s *Session) PlayerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.PlayerID()
}

func (s *Session) ConnState() ConnState {
	return s.channel.State()
}

// Join starts handling room messages and schedules the state request.
func (s *Session) Join() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		return
	}
	s.unsubscribe = s.channel.OnMessage(AnyType, s.handle)
	if s.requestDelay >= 0 {
		s.requestTimer = time.AfterFunc(s.requestDelay, func() {
			if err := s.RequestState(); err != nil {
				s.log.Warn("state request failed", "error", err)
			}
		})
	}
	s.log.Info("joined room", "state", s.channel.State())
}

// Leave stops handling room messages.
func (s *Session) Leave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requestTimer != nil {
		s.requestTimer.Stop()
		s.requestTimer = nil
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	clear(s.peers)
}

// View runs fn with exclusive access to the engine. fn must not call back
// into the session.
func (s *Session) View(fn func(e *engine.Engine)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.engine)
}

func (s *Session) Snapshot() *document.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Snapshot()
}

// Peers returns the last known presence of every other participant.
func (s *Session) Peers() map[string]PresencePayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]PresencePayload, len(s.peers))
	for id, p := range s.peers {
		out[id] = *p
	}
	return out
}

// broadcast sends an event to the room. A disconnected channel is not an
// error; the local change stands and the connection state tells the UI.
func (s *Session) broadcast(typ string, payload any) error {
	err := s.channel.Send(typ, payload)
	if errors.Is(err, ErrNotConnected) {
		s.log.Debug("not connected, event kept local", "type", typ)
		return nil
	}
	if err != nil {
		return fmt.Errorf("broadcast %s: %w", typ, err)
	}
	return nil
}

// --- Drawing ---

func (s *Session) StartStroke(brushSize float64, color string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.StartStroke(brushSize, color)
}

func (s *Session) Paint(hit geom.Hit) *document.Mark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Paint(hit)
}

// FinishStroke completes the open stroke and broadcasts its compressed form.
func (s *Session) FinishStroke() (*document.Stroke, error) {
	s.mu.Lock()
	st, wire := s.engine.FinishStroke()
	if wire != nil {
		s.strokes.Add(strokeKey(wire.ID, wire.AuthorID))
	}
	s.mu.Unlock()
	if wire == nil {
		return st, nil
	}
	return st, s.broadcast(TypeStroke, wire)
}

// Erase removes content around center and, when anything was removed,
// broadcasts the erase so peers run the same query.
func (s *Session) Erase(center geom.Point, radius float64, surface geom.Surface) (engine.EraseResult, error) {
	s.mu.Lock()
	res := s.engine.EraseDetailed(center, radius, surface)
	player := s.engine.PlayerID()
	s.mu.Unlock()
	if res.Empty() {
		return res, nil
	}
	return res, s.broadcast(TypeErase, ErasePayload{
		Center:   center,
		Radius:   radius,
		Surface:  surface.Normalize(),
		PlayerID: player,
	})
}

func (s *Session) Fill(part, color string) error {
	s.mu.Lock()
	ok := s.engine.Fill(part, color)
	player := s.engine.PlayerID()
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.broadcast(TypeFill, FillPayload{PartName: part, Color: color, PlayerID: player})
}

func (s *Session) PlaceSensation(m document.SensationMark) (document.SensationMark, error) {
	s.mu.Lock()
	placed := s.engine.PlaceSensation(m)
	player := s.engine.PlayerID()
	s.mu.Unlock()
	return placed, s.broadcast(TypeSensation, SensationPayload{SensationMark: placed, PlayerID: player})
}

func (s *Session) PlaceText(t document.TextMark) (document.TextMark, error) {
	s.mu.Lock()
	placed := s.engine.PlaceText(t)
	player := s.engine.PlayerID()
	s.mu.Unlock()
	return placed, s.broadcast(TypeTextPlace, TextPlacePayload{TextMark: placed, PlayerID: player})
}

func (s *Session) EditText(id, text string) error {
	s.mu.Lock()
	ok := s.engine.EditText(id, text)
	player := s.engine.PlayerID()
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.broadcast(TypeTextUpdate, TextUpdatePayload{ID: id, Text: text, PlayerID: player})
}

func (s *Session) DeleteText(id string) error {
	s.mu.Lock()
	ok := s.engine.DeleteText(id)
	player := s.engine.PlayerID()
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.broadcast(TypeTextDelete, TextDeletePayload{ID: id, PlayerID: player})
}

func (s *Session) CreateCustomEffect(fx document.CustomEffect) (document.CustomEffect, error) {
	s.mu.Lock()
	created := s.engine.CreateCustomEffect(fx)
	player := s.engine.PlayerID()
	s.mu.Unlock()
	return created, s.broadcast(TypeEffectCreate, EffectCreatePayload{Effect: created, PlayerID: player})
}

func (s *Session) DeleteCustomEffect(id string) error {
	s.mu.Lock()
	ok := s.engine.DeleteCustomEffect(id)
	player := s.engine.PlayerID()
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.broadcast(TypeEffectDelete, EffectDeletePayload{ID: id, PlayerID: player})
}

// Undo reverts the latest history item locally and asks peers to do the
// same against their own history.
func (s *Session) Undo() (*history.Item, error) {
	return s.step(TypeUndo, (*engine.Engine).Undo)
}

func (s *Session) Redo() (*history.Item, error) {
	return s.step(TypeRedo, (*engine.Engine).Redo)
}

func (s *Session) step(typ string, fn func(*engine.Engine) *history.Item) (*history.Item, error) {
	s.mu.Lock()
	item := fn(s.engine)
	player := s.engine.PlayerID()
	s.mu.Unlock()
	if item == nil {
		return nil, nil
	}
	return item, s.broadcast(typ, ActorPayload{PlayerID: player})
}

func (s *Session) ResetAll() error {
	return s.wipe(TypeResetAll, (*engine.Engine).ResetAll)
}

func (s *Session) ClearAll() error {
	return s.wipe(TypeClearAll, (*engine.Engine).ClearAll)
}

func (s *Session) wipe(typ string, fn func(*engine.Engine) bool) error {
	s.mu.Lock()
	ok := fn(s.engine)
	player := s.engine.PlayerID()
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.broadcast(typ, ActorPayload{PlayerID: player})
}

// SetRotation turns the shared model.
func (s *Session) SetRotation(radians float64) error {
	s.mu.Lock()
	s.engine.SetRotation(radians)
	player := s.engine.PlayerID()
	s.mu.Unlock()
	return s.broadcast(TypeModelRotation, RotationPayload{Rotation: radians, PlayerID: player})
}

// MoveCursor publishes the local pointer position, at most once per cursor
// interval. It reports whether an update was sent.
func (s *Session) MoveCursor(p geom.Point, surface geom.Surface) (bool, error) {
	s.mu.Lock()
	allowed := s.cursor.Allow(time.Now())
	s.mu.Unlock()
	if !allowed {
		return false, nil
	}
	cursor := p
	return true, s.broadcast(TypePresenceUpdate, PresencePayload{
		Cursor:      &cursor,
		Surface:     surface.Normalize(),
		DisplayName: s.displayName,
	})
}

// RequestState asks peers for their full state.
func (s *Session) RequestState() error {
	return s.broadcast(TypeStateRequest, ActorPayload{PlayerID: s.PlayerID()})
}
