package collab

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/bodymap/bodymap/internal/document"
	"github.com/bodymap/bodymap/internal/geom"
)

// Message is the envelope for everything sent over a room channel.
type Message struct {
	ID        string          `json:"id,omitempty"`
	Type      string          `json:"type"`
	RoomID    string          `json:"roomId,omitempty"`
	ClientID  string          `json:"clientId,omitempty"`
	PlayerID  string          `json:"playerId,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

const (
	// Drawing events
	TypeStroke        = "optimizedDrawingStroke"
	TypeErase         = "eraseAction"
	TypeUndo          = "undoAction"
	TypeRedo          = "redoAction"
	TypeFill          = "bodyPartFill"
	TypeSensation     = "sensationPlace"
	TypeResetAll      = "resetAll"
	TypeClearAll      = "clearAll"
	TypeTextPlace     = "textPlace"
	TypeTextUpdate    = "textUpdate"
	TypeTextDelete    = "textDelete"
	TypeEffectCreate  = "customEffectCreate"
	TypeEffectDelete  = "customEffectDelete"
	TypeModelRotation = "modelRotation"

	// Late-joiner catch-up
	TypeStateRequest  = "stateRequest"
	TypeStateSnapshot = "stateSnapshot"

	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"
)

var (
	ErrUnknownType = errors.New("unknown message type")
	ErrMalformed   = errors.New("malformed message")
)

// drawingTypes are relayed between room members unchanged.
var drawingTypes = map[string]bool{
	TypeStroke:        true,
	TypeErase:         true,
	TypeUndo:          true,
	TypeRedo:          true,
	TypeFill:          true,
	TypeSensation:     true,
	TypeResetAll:      true,
	TypeClearAll:      true,
	TypeTextPlace:     true,
	TypeTextUpdate:    true,
	TypeTextDelete:    true,
	TypeEffectCreate:  true,
	TypeEffectDelete:  true,
	TypeModelRotation: true,
	TypeStateRequest:  true,
	TypeStateSnapshot: true,
}

// IsDrawingType reports whether t is a canvas event peers exchange.
func IsDrawingType(t string) bool {
	return drawingTypes[t]
}

// NewMessage wraps payload in an envelope with a fresh event id.
func NewMessage(typ string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return &Message{
		ID:        ksuid.New().String(),
		Type:      typ,
		Timestamp: time.Now().UnixMilli(),
		Payload:   raw,
	}, nil
}

// --- Payloads ---

type StrokePayload = document.OptimizedDrawingStroke

type ErasePayload struct {
	Center   geom.Point   `json:"center"`
	Radius   float64      `json:"radius"`
	Surface  geom.Surface `json:"surface,omitempty"`
	PlayerID string       `json:"playerId"`
}

// ActorPayload carries only the acting player. It is used by undo, redo,
// reset, clear and state requests.
type ActorPayload struct {
	PlayerID string `json:"playerId"`
}

type FillPayload struct {
	PartName string `json:"partName"`
	Color    string `json:"color"`
	PlayerID string `json:"playerId"`
}

type SensationPayload struct {
	document.SensationMark
	PlayerID string `json:"playerId"`
}

type TextPlacePayload struct {
	TextMark document.TextMark `json:"textMark"`
	PlayerID string            `json:"playerId"`
}

type TextUpdatePayload struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	PlayerID string `json:"playerId"`
}

type TextDeletePayload struct {
	ID       string `json:"id"`
	PlayerID string `json:"playerId"`
}

type EffectCreatePayload struct {
	Effect   document.CustomEffect `json:"effect"`
	PlayerID string                `json:"playerId"`
}

type EffectDeletePayload struct {
	ID       string `json:"id"`
	PlayerID string `json:"playerId"`
}

type RotationPayload struct {
	Rotation float64 `json:"rotation"`
	PlayerID string  `json:"playerId"`
}

// StateSnapshotPayload answers a state request. To names the requesting
// player; an empty To is addressed to everyone.
type StateSnapshotPayload struct {
	To       string            `json:"to,omitempty"`
	Snapshot document.Snapshot `json:"snapshot"`
	PlayerID string            `json:"playerId"`
}

type PresencePayload struct {
	Cursor      *geom.Point  `json:"cursor,omitempty"`
	Surface     geom.Surface `json:"surface,omitempty"`
	DisplayName string       `json:"displayName,omitempty"`
	Color       string       `json:"color,omitempty"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	PlayerID string `json:"playerId"`
}

type WelcomePayload struct {
	ClientID string `json:"clientId"`
	PlayerID string `json:"playerId"`
	RoomID   string `json:"roomId"`
	Peers    int    `json:"peers"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Decoding ---

// Event is a decoded, validated message payload.
type Event interface {
	EventType() string
}

type (
	StrokeEvent        struct{ Stroke StrokePayload }
	EraseEvent         ErasePayload
	UndoEvent          ActorPayload
	RedoEvent          ActorPayload
	FillEvent          FillPayload
	SensationEvent     SensationPayload
	ResetEvent         ActorPayload
	ClearEvent         ActorPayload
	TextPlaceEvent     TextPlacePayload
	TextUpdateEvent    TextUpdatePayload
	TextDeleteEvent    TextDeletePayload
	EffectCreateEvent  EffectCreatePayload
	EffectDeleteEvent  EffectDeletePayload
	RotationEvent      RotationPayload
	StateRequestEvent  ActorPayload
	StateSnapshotEvent StateSnapshotPayload
	PresenceEvent      struct {
		PlayerID string
		Presence PresencePayload
	}
	PresenceStateEvent PresenceStatePayload
	PresenceJoinEvent  PresenceJoinPayload
	PresenceLeaveEvent PresenceLeavePayload
	WelcomeEvent       WelcomePayload
	ErrorEvent         ErrorPayload
)

func (*StrokeEvent) EventType() string        { return TypeStroke }
func (*EraseEvent) EventType() string         { return TypeErase }
func (*UndoEvent) EventType() string          { return TypeUndo }
func (*RedoEvent) EventType() string          { return TypeRedo }
func (*FillEvent) EventType() string          { return TypeFill }
func (*SensationEvent) EventType() string     { return TypeSensation }
func (*ResetEvent) EventType() string         { return TypeResetAll }
func (*ClearEvent) EventType() string         { return TypeClearAll }
func (*TextPlaceEvent) EventType() string     { return TypeTextPlace }
func (*TextUpdateEvent) EventType() string    { return TypeTextUpdate }
func (*TextDeleteEvent) EventType() string    { return TypeTextDelete }
func (*EffectCreateEvent) EventType() string  { return TypeEffectCreate }
func (*EffectDeleteEvent) EventType() string  { return TypeEffectDelete }
func (*RotationEvent) EventType() string      { return TypeModelRotation }
func (*StateRequestEvent) EventType() string  { return TypeStateRequest }
func (*StateSnapshotEvent) EventType() string { return TypeStateSnapshot }
func (*PresenceEvent) EventType() string      { return TypePresenceUpdate }
func (*PresenceStateEvent) EventType() string { return TypePresenceState }
func (*PresenceJoinEvent) EventType() string  { return TypePresenceJoin }
func (*PresenceLeaveEvent) EventType() string { return TypePresenceLeave }
func (*WelcomeEvent) EventType() string       { return TypeWelcome }
func (*ErrorEvent) EventType() string         { return TypeError }

// Decode validates a message and returns its typed payload. Unknown types
// yield ErrUnknownType; payloads missing required fields yield ErrMalformed.
// A payload without a player id inherits the envelope's.
func Decode(msg *Message) (Event, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformed)
	}
	switch msg.Type {
	case TypeStroke:
		var p StrokePayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		p.AuthorID = orPlayer(p.AuthorID, msg)
		if p.ID == "" || len(p.KeyPoints) == 0 {
			return nil, malformed(msg, "stroke needs an id and key points")
		}
		for _, kp := range p.KeyPoints {
			if !kp.WorldPosition.IsFinite() {
				return nil, malformed(msg, "non-finite key point")
			}
		}
		if p.Metadata.Size <= 0 {
			p.Metadata.Size = 1
		}
		return &StrokeEvent{Stroke: p}, nil

	case TypeErase:
		var p ErasePayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		p.PlayerID = orPlayer(p.PlayerID, msg)
		if !p.Center.IsFinite() || p.Radius < 0 || math.IsNaN(p.Radius) {
			return nil, malformed(msg, "erase needs a finite center and radius")
		}
		p.Surface = p.Surface.Normalize()
		e := EraseEvent(p)
		return &e, nil

	case TypeUndo, TypeRedo, TypeResetAll, TypeClearAll, TypeStateRequest:
		var p ActorPayload
		if err := unmarshalOptional(msg, &p); err != nil {
			return nil, err
		}
		p.PlayerID = orPlayer(p.PlayerID, msg)
		switch msg.Type {
		case TypeUndo:
			e := UndoEvent(p)
			return &e, nil
		case TypeRedo:
			e := RedoEvent(p)
			return &e, nil
		case TypeResetAll:
			e := ResetEvent(p)
			return &e, nil
		case TypeClearAll:
			e := ClearEvent(p)
			return &e, nil
		default:
			e := StateRequestEvent(p)
			return &e, nil
		}

	case TypeFill:
		var p FillPayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		p.PlayerID = orPlayer(p.PlayerID, msg)
		if p.PartName == "" || p.Color == "" {
			return nil, malformed(msg, "fill needs a part name and color")
		}
		e := FillEvent(p)
		return &e, nil

	case TypeSensation:
		var p SensationPayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		p.PlayerID = orPlayer(p.PlayerID, msg)
		if p.ID == "" || !p.Position.IsFinite() {
			return nil, malformed(msg, "sensation needs an id and position")
		}
		if p.Size <= 0 {
			p.Size = DefaultSensationSize
		}
		if p.MovementBehavior == "" {
			p.MovementBehavior = document.MovementNone
		}
		e := SensationEvent(p)
		return &e, nil

	case TypeTextPlace:
		var p TextPlacePayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		p.PlayerID = orPlayer(p.PlayerID, msg)
		if p.TextMark.ID == "" || !p.TextMark.Position.IsFinite() {
			return nil, malformed(msg, "text needs an id and position")
		}
		if p.TextMark.FontSize <= 0 {
			p.TextMark.FontSize = DefaultFontSize
		}
		if p.TextMark.AuthorID == "" {
			p.TextMark.AuthorID = p.PlayerID
		}
		e := TextPlaceEvent(p)
		return &e, nil

	case TypeTextUpdate:
		var p TextUpdatePayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		p.PlayerID = orPlayer(p.PlayerID, msg)
		if p.ID == "" {
			return nil, malformed(msg, "text update needs an id")
		}
		e := TextUpdateEvent(p)
		return &e, nil

	case TypeTextDelete:
		var p TextDeletePayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		p.PlayerID = orPlayer(p.PlayerID, msg)
		if p.ID == "" {
			return nil, malformed(msg, "text delete needs an id")
		}
		e := TextDeleteEvent(p)
		return &e, nil

	case TypeEffectCreate:
		var p EffectCreatePayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		p.PlayerID = orPlayer(p.PlayerID, msg)
		if p.Effect.ID == "" {
			return nil, malformed(msg, "effect needs an id")
		}
		e := EffectCreateEvent(p)
		return &e, nil

	case TypeEffectDelete:
		var p EffectDeletePayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		p.PlayerID = orPlayer(p.PlayerID, msg)
		if p.ID == "" {
			return nil, malformed(msg, "effect delete needs an id")
		}
		e := EffectDeleteEvent(p)
		return &e, nil

	case TypeModelRotation:
		var p RotationPayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		p.PlayerID = orPlayer(p.PlayerID, msg)
		if math.IsNaN(p.Rotation) || math.IsInf(p.Rotation, 0) {
			return nil, malformed(msg, "non-finite rotation")
		}
		e := RotationEvent(p)
		return &e, nil

	case TypeStateSnapshot:
		var p StateSnapshotPayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		p.PlayerID = orPlayer(p.PlayerID, msg)
		e := StateSnapshotEvent(p)
		return &e, nil

	case TypePresenceUpdate:
		var p PresencePayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		if p.Cursor != nil && !p.Cursor.IsFinite() {
			p.Cursor = nil
		}
		return &PresenceEvent{PlayerID: msg.PlayerID, Presence: p}, nil

	case TypePresenceState:
		var p PresenceStatePayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		e := PresenceStateEvent(p)
		return &e, nil

	case TypePresenceJoin:
		var p PresenceJoinPayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		p.PlayerID = orPlayer(p.PlayerID, msg)
		e := PresenceJoinEvent(p)
		return &e, nil

	case TypePresenceLeave:
		var p PresenceLeavePayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		p.PlayerID = orPlayer(p.PlayerID, msg)
		e := PresenceLeaveEvent(p)
		return &e, nil

	case TypeWelcome:
		var p WelcomePayload
		if err := unmarshal(msg, &p); err != nil {
			return nil, err
		}
		e := WelcomeEvent(p)
		return &e, nil

	case TypeError:
		var p ErrorPayload
		if err := unmarshalOptional(msg, &p); err != nil {
			return nil, err
		}
		e := ErrorEvent(p)
		return &e, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
}

const (
	DefaultSensationSize = 0.05
	DefaultFontSize      = 16
)

func unmarshal(msg *Message, v any) error {
	if len(msg.Payload) == 0 || string(msg.Payload) == "null" {
		return malformed(msg, "missing payload")
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, msg.Type, err)
	}
	return nil
}

// unmarshalOptional accepts an absent payload.
func unmarshalOptional(msg *Message, v any) error {
	if len(msg.Payload) == 0 || string(msg.Payload) == "null" {
		return nil
	}
	return unmarshal(msg, v)
}

func malformed(msg *Message, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformed, msg.Type, reason)
}

func orPlayer(id string, msg *Message) string {
	if id != "" {
		return id
	}
	return msg.PlayerID
}
