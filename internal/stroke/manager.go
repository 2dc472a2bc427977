package stroke

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/bodymap/bodymap/internal/document"
	"github.com/bodymap/bodymap/internal/typeid"
)

// Manager owns the completed strokes and at most one open stroke for the
// local actor. It is not safe for concurrent use.
type Manager struct {
	ownerID string
	clock   Clock
	newID   func() string

	order   []string
	strokes map[string]*document.Stroke
	open    *document.Stroke
}

func NewManager(ownerID string, clock Clock) *Manager {
	if clock == nil {
		clock = SystemClock
	}
	return &Manager{
		ownerID: ownerID,
		clock:   clock,
		newID:   typeid.NewStrokeID,
		strokes: make(map[string]*document.Stroke),
	}
}

// SetOwner changes the actor id attributed to new strokes.
func (m *Manager) SetOwner(ownerID string) {
	m.ownerID = ownerID
}

func (m *Manager) Owner() string {
	return m.ownerID
}

// StartStroke opens a new stroke. It fails when no owner is known. An open
// stroke left over from an abandoned gesture is discarded.
func (m *Manager) StartStroke(brushSize float64, color string) (string, bool) {
	if m.ownerID == "" {
		return "", false
	}
	if m.open != nil {
		slog.Debug("discarding abandoned stroke", "stroke", m.open.ID, "marks", len(m.open.Marks))
	}
	now := m.clock()
	m.open = &document.Stroke{
		ID:        m.newID(),
		StartTime: now,
		EndTime:   now,
		BrushSize: brushSize,
		Color:     color,
		AuthorID:  m.ownerID,
	}
	return m.open.ID, true
}

// AddMarkToStroke appends a mark to the open stroke. It returns nil when no
// stroke is open.
func (m *Manager) AddMarkToStroke(in document.MarkInput) *document.Mark {
	if m.open == nil {
		return nil
	}
	if in.ID == "" {
		in.ID = typeid.NewMarkID()
	}
	if in.Timestamp == 0 {
		in.Timestamp = m.clock()
	}
	if n := len(m.open.Marks); n > 0 && in.Timestamp < m.open.Marks[n-1].Timestamp {
		in.Timestamp = m.open.Marks[n-1].Timestamp
	}
	surface := in.Surface.Normalize()
	if len(m.open.Marks) == 0 {
		m.open.Surface = surface
	}
	mark := document.Mark{
		ID:        in.ID,
		Position:  in.Position,
		Color:     in.Color,
		Size:      in.Size,
		Timestamp: in.Timestamp,
		StrokeID:  m.open.ID,
		Surface:   surface,
		AuthorID:  m.ownerID,
	}
	m.open.Marks = append(m.open.Marks, mark)
	m.open.EndTime = mark.Timestamp
	return &mark
}

// FinishStroke completes the open stroke and moves it to the completed set.
// A stroke with no marks is dropped and nil returned.
func (m *Manager) FinishStroke() *document.Stroke {
	s := m.open
	m.open = nil
	if s == nil || len(s.Marks) == 0 {
		return nil
	}
	s.IsComplete = true
	m.insert(s)
	return s.Clone()
}

// OpenStroke returns a copy of the stroke being drawn, if any.
func (m *Manager) OpenStroke() *document.Stroke {
	return m.open.Clone()
}

// RemoveStroke deletes a completed stroke. Removing an unknown id is a no-op.
func (m *Manager) RemoveStroke(id string) bool {
	if _, ok := m.strokes[id]; !ok {
		return false
	}
	delete(m.strokes, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	return true
}

// RestoreStroke re-inserts a completed stroke unless one with the same id is
// already present.
func (m *Manager) RestoreStroke(s *document.Stroke) bool {
	if s == nil || s.ID == "" {
		return false
	}
	if _, ok := m.strokes[s.ID]; ok {
		return false
	}
	if m.open != nil && m.open.ID == s.ID {
		return false
	}
	c := s.Clone()
	c.IsComplete = true
	m.insert(c)
	return true
}

func (m *Manager) insert(s *document.Stroke) {
	m.strokes[s.ID] = s
	m.order = append(m.order, s.ID)
}

// Has reports whether a completed stroke with the id exists.
func (m *Manager) Has(id string) bool {
	_, ok := m.strokes[id]
	return ok
}

// Stroke returns a copy of a completed stroke.
func (m *Manager) Stroke(id string) *document.Stroke {
	return m.strokes[id].Clone()
}

func (m *Manager) Len() int {
	return len(m.strokes)
}

// AllStrokes returns copies of the completed strokes ordered by start time.
func (m *Manager) AllStrokes() []document.Stroke {
	out := make([]document.Stroke, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.strokes[id].Clone())
	}
	slices.SortStableFunc(out, func(a, b document.Stroke) int {
		if c := cmp.Compare(a.StartTime, b.StartTime); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// AllMarks returns completed and open marks in drawing order. Remote strokes
// can arrive out of sequence, so order follows timestamps, not insertion.
func (m *Manager) AllMarks() []document.Mark {
	n := 0
	for _, s := range m.strokes {
		n += len(s.Marks)
	}
	if m.open != nil {
		n += len(m.open.Marks)
	}
	out := make([]document.Mark, 0, n)
	for _, id := range m.order {
		out = append(out, m.strokes[id].Marks...)
	}
	if m.open != nil {
		out = append(out, m.open.Marks...)
	}
	slices.SortStableFunc(out, func(a, b document.Mark) int {
		if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// CompletedMarks returns the marks of completed strokes only.
func (m *Manager) CompletedMarks() []document.Mark {
	var out []document.Mark
	for _, id := range m.order {
		out = append(out, m.strokes[id].Marks...)
	}
	return out
}

// Retain keeps only the marks whose ids are in keep. Strokes left with no
// marks are removed. The open stroke is untouched.
func (m *Manager) Retain(keep map[string]struct{}) int {
	removed := 0
	for _, id := range slices.Clone(m.order) {
		s := m.strokes[id]
		kept := s.Marks[:0:0]
		for _, mk := range s.Marks {
			if _, ok := keep[mk.ID]; ok {
				kept = append(kept, mk)
			}
		}
		removed += len(s.Marks) - len(kept)
		if len(kept) == 0 {
			m.RemoveStroke(id)
			continue
		}
		s.Marks = kept
	}
	return removed
}

// Clear removes every completed stroke and the open stroke.
func (m *Manager) Clear() {
	m.order = nil
	m.strokes = make(map[string]*document.Stroke)
	m.open = nil
}

// Replace swaps the completed set for the given strokes.
func (m *Manager) Replace(strokes []document.Stroke) {
	m.order = nil
	m.strokes = make(map[string]*document.Stroke, len(strokes))
	for i := range strokes {
		m.RestoreStroke(&strokes[i])
	}
}
