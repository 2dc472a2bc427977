package collab

import (
	"errors"

	"github.com/bodymap/bodymap/internal/stroke"
)

type reply struct {
	typ     string
	payload any
}

// handle processes one message from the room. Bad messages are logged and
// dropped.
func (s *Session) handle(msg *Message) {
	s.mu.Lock()
	out, changed := s.applyLocked(msg)
	s.mu.Unlock()

	if out != nil {
		if err := s.broadcast(out.typ, out.payload); err != nil {
			s.log.Warn("reply failed", "type", out.typ, "error", err)
		}
	}
	if changed && s.onChange != nil {
		s.onChange(msg.Type)
	}
}

// applyLocked applies a message to the engine (caller must hold lock).
func (s *Session) applyLocked(msg *Message) (*reply, bool) {
	self := s.engine.PlayerID()
	if IsDrawingType(msg.Type) && msg.PlayerID != "" && msg.PlayerID == self {
		return nil, false
	}
	if !s.events.Add(msg.ID) {
		s.log.Debug("duplicate message", "type", msg.Type, "id", msg.ID)
		return nil, false
	}

	ev, err := Decode(msg)
	if err != nil {
		if errors.Is(err, ErrUnknownType) {
			s.log.Info("ignoring message", "type", msg.Type)
		} else {
			s.log.Warn("dropping message", "type", msg.Type, "error", err)
		}
		return nil, false
	}

	switch ev := ev.(type) {
	case *StrokeEvent:
		return nil, s.applyStroke(ev)

	case *EraseEvent:
		res := s.engine.ApplyRemoteErase(ev.Center, ev.Radius, ev.Surface, ev.PlayerID)
		if res.Empty() {
			// Reconstructed marks sit off the sender's samples, so a replay can
			// miss. Nothing is recorded and a later remote undo steps past it.
			s.log.Debug("remote erase matched nothing", "player", ev.PlayerID, "radius", ev.Radius)
			return nil, false
		}
		return nil, true

	case *UndoEvent:
		return nil, s.engine.Undo() != nil

	case *RedoEvent:
		return nil, s.engine.Redo() != nil

	case *FillEvent:
		return nil, s.engine.ApplyRemoteFill(ev.PartName, ev.Color, ev.PlayerID)

	case *SensationEvent:
		return nil, s.engine.ApplyRemoteSensation(ev.SensationMark, ev.PlayerID)

	case *ResetEvent:
		return nil, s.engine.ApplyRemoteReset(ev.PlayerID)

	case *ClearEvent:
		return nil, s.engine.ApplyRemoteClear(ev.PlayerID)

	case *TextPlaceEvent:
		return nil, s.engine.ApplyRemoteTextPlace(ev.TextMark, ev.PlayerID)

	case *TextUpdateEvent:
		return nil, s.engine.ApplyRemoteTextEdit(ev.ID, ev.Text, ev.PlayerID)

	case *TextDeleteEvent:
		return nil, s.engine.ApplyRemoteTextDelete(ev.ID, ev.PlayerID)

	case *EffectCreateEvent:
		return nil, s.engine.UpsertCustomEffect(ev.Effect)

	case *EffectDeleteEvent:
		return nil, s.engine.DeleteCustomEffect(ev.ID)

	case *RotationEvent:
		s.engine.SetRotation(ev.Rotation)
		return nil, true

	case *StateRequestEvent:
		if ev.PlayerID == self {
			return nil, false
		}
		snap := s.engine.Snapshot()
		if snap.IsEmpty() && snap.ModelRotation == 0 {
			return nil, false
		}
		s.log.Debug("answering state request", "requester", ev.PlayerID, "strokes", len(snap.Strokes))
		return &reply{typ: TypeStateSnapshot, payload: StateSnapshotPayload{
			To:       ev.PlayerID,
			Snapshot: *snap,
			PlayerID: self,
		}}, false

	case *StateSnapshotEvent:
		if ev.To != "" && ev.To != self {
			return nil, false
		}
		for _, st := range ev.Snapshot.Strokes {
			s.strokes.Add(strokeKey(st.ID, st.AuthorID))
		}
		restored := s.engine.ApplySnapshot(&ev.Snapshot)
		s.log.Info("merged state snapshot", "from", ev.PlayerID, "strokes", restored)
		return nil, true

	case *PresenceEvent:
		if ev.PlayerID == "" || ev.PlayerID == self {
			return nil, false
		}
		p := ev.Presence
		if prev, ok := s.peers[ev.PlayerID]; ok && p.DisplayName == "" {
			p.DisplayName = prev.DisplayName
		}
		s.peers[ev.PlayerID] = &p
		return nil, false

	case *PresenceStateEvent:
		clear(s.peers)
		for id, p := range ev.Presences {
			if id != self && p != nil {
				cp := *p
				s.peers[id] = &cp
			}
		}
		return nil, false

	case *PresenceJoinEvent:
		if ev.PlayerID != self {
			s.peers[ev.PlayerID] = &PresencePayload{DisplayName: ev.DisplayName}
		}
		s.log.Info("player joined", "peer", ev.PlayerID)
		return nil, false

	case *PresenceLeaveEvent:
		delete(s.peers, ev.PlayerID)
		s.log.Info("player left", "peer", ev.PlayerID)
		return nil, false

	case *WelcomeEvent:
		s.log.Info("welcome", "room", ev.RoomID, "client", ev.ClientID, "peers", ev.Peers)
		return nil, false

	case *ErrorEvent:
		s.log.Warn("server error", "code", ev.Code, "message", ev.Message)
		return nil, false
	}
	return nil, false
}

// applyStroke restores a remote stroke once per (stroke id, author).
func (s *Session) applyStroke(ev *StrokeEvent) bool {
	key := strokeKey(ev.Stroke.ID, ev.Stroke.AuthorID)
	if s.strokes.Has(key) {
		s.log.Debug("duplicate stroke", "stroke", ev.Stroke.ID, "author", ev.Stroke.AuthorID)
		return false
	}
	t := s.engine.Transform()
	st := stroke.Materialize(&ev.Stroke, t.WorldToLocal)
	if st == nil {
		s.log.Warn("dropping empty stroke", "stroke", ev.Stroke.ID)
		return false
	}
	s.strokes.Add(key)
	return s.engine.ApplyRemoteStroke(st, ev.Stroke.AuthorID)
}
