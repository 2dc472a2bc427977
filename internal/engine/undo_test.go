package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodymap/bodymap/internal/document"
	"github.com/bodymap/bodymap/internal/geom"
)

// canon normalizes empty collections so snapshots compare by content.
func canon(s *document.Snapshot) *document.Snapshot {
	c := s.Clone()
	if len(c.Strokes) == 0 {
		c.Strokes = nil
	}
	if len(c.BodyPartColors) == 0 {
		c.BodyPartColors = nil
	}
	if len(c.SensationMarks) == 0 {
		c.SensationMarks = nil
	}
	if len(c.TextMarks) == 0 {
		c.TextMarks = nil
	}
	if len(c.CustomEffects) == 0 {
		c.CustomEffects = nil
	}
	return c
}

// seed puts some content on the canvas so every action has something to
// interact with.
func seed(t *testing.T, e *Engine, clock *testClock) {
	t.Helper()
	drawLine(t, e, clock, geom.P(0, 1, 0), 0.05, 3, "torso")
	drawLine(t, e, clock, geom.P(0, 0, 0), 0.05, 3, "whiteboard")
	e.Fill("chest", "#aaaaaa")
	e.PlaceSensation(document.SensationMark{ID: "sens", Position: geom.P(0.5, 1, 0), Icon: "⚡", Size: 0.05})
	e.PlaceText(document.TextMark{ID: "txt", Position: geom.P(0.5, 0, 0), Text: "note", FontSize: 16, Surface: geom.SurfaceWhiteboard})
}

func TestUndoRedoRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		act  func(t *testing.T, e *Engine, clock *testClock)
	}{
		{"draw", func(t *testing.T, e *Engine, clock *testClock) {
			drawLine(t, e, clock, geom.P(1, 1, 0), 0.05, 4, "chest")
		}},
		{"remote draw", func(t *testing.T, e *Engine, _ *testClock) {
			e.ApplyRemoteStroke(&document.Stroke{ID: "remote", Marks: []document.Mark{{ID: "remote:0", StrokeID: "remote"}}}, "p2")
		}},
		{"erase stroke", func(t *testing.T, e *Engine, _ *testClock) {
			require.False(t, e.EraseDetailed(geom.P(0, 1, 0), 0.01, geom.SurfaceBody).Empty())
		}},
		{"erase text and sensation", func(t *testing.T, e *Engine, _ *testClock) {
			require.NotEmpty(t, e.EraseDetailed(geom.P(0.5, 0, 0), 0.01, geom.SurfaceWhiteboard).TextMarks)
			require.NotEmpty(t, e.EraseDetailed(geom.P(0.5, 1, 0), 0.01, geom.SurfaceBody).SensationMarks)
		}},
		{"fill new part", func(t *testing.T, e *Engine, _ *testClock) { e.Fill("head", "#ff0000") }},
		{"fill over part", func(t *testing.T, e *Engine, _ *testClock) { e.Fill("chest", "#ff0000") }},
		{"sensation", func(t *testing.T, e *Engine, _ *testClock) {
			e.PlaceSensation(document.SensationMark{Icon: "🔥", Position: geom.P(0, 2, 0)})
		}},
		{"text place", func(t *testing.T, e *Engine, _ *testClock) {
			e.PlaceText(document.TextMark{Text: "sore", FontSize: 12})
		}},
		{"text edit", func(t *testing.T, e *Engine, _ *testClock) { e.EditText("txt", "edited") }},
		{"text delete", func(t *testing.T, e *Engine, _ *testClock) { e.DeleteText("txt") }},
		{"clear", func(t *testing.T, e *Engine, _ *testClock) { e.ClearAll() }},
		{"reset", func(t *testing.T, e *Engine, _ *testClock) {
			e.SetRotation(0.7)
			e.ResetAll()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, clock := newTestEngine(t, "p1")
			seed(t, e, clock)
			before := canon(e.Snapshot())
			depth := len(e.HistoryItems())

			tt.act(t, e, clock)
			after := canon(e.Snapshot())
			steps := len(e.HistoryItems()) - depth
			require.Positive(t, steps)

			for range steps {
				require.NotNil(t, e.Undo())
			}
			snap := canon(e.Snapshot())
			// Rotation is not an action; undoing a reset brings back whatever
			// rotation preceded it.
			snap.ModelRotation = before.ModelRotation
			assert.Equal(t, before, snap)

			for range steps {
				require.NotNil(t, e.Redo())
			}
			assert.Equal(t, after, canon(e.Snapshot()))
		})
	}
}

func TestUndoRedoMixedSequence(t *testing.T) {
	e, clock := newTestEngine(t, "p1")
	seed(t, e, clock)

	actions := []func(){
		func() { drawLine(t, e, clock, geom.P(1, 1, 0), 0.05, 4, "chest") },
		func() { require.NotEmpty(t, e.EraseDetailed(geom.P(0, 1, 0), 0.01, geom.SurfaceBody).Strokes) },
		func() { e.Fill("head", "#ff0000") },
		func() { require.True(t, e.EditText("txt", "edited")) },
		func() { e.PlaceSensation(document.SensationMark{ID: "s2", Icon: "🔥", Position: geom.P(0, 2, 0)}) },
		func() {
			e.ApplyRemoteStroke(&document.Stroke{ID: "remote", Marks: []document.Mark{{ID: "remote:0", StrokeID: "remote"}}}, "p2")
		},
		func() { e.Fill("chest", "#00ff00") },
		func() { e.PlaceText(document.TextMark{ID: "t2", Text: "sore", FontSize: 12}) },
		func() { require.True(t, e.DeleteText("txt")) },
		func() { drawLine(t, e, clock, geom.P(0, 0, 0), 0.05, 3, "whiteboard") },
		func() { require.NotEmpty(t, e.EraseDetailed(geom.P(0.5, 1, 0), 0.01, geom.SurfaceBody).SensationMarks) },
		func() { e.ResetAll() },
	}

	states := []*document.Snapshot{canon(e.Snapshot())}
	depths := []int{len(e.HistoryItems())}
	for _, act := range actions {
		act()
		states = append(states, canon(e.Snapshot()))
		depths = append(depths, len(e.HistoryItems()))
	}

	// Walk back through every intermediate state, then forward again.
	for i := len(actions); i > 0; i-- {
		for range depths[i] - depths[i-1] {
			require.NotNil(t, e.Undo())
		}
		require.Equal(t, states[i-1], canon(e.Snapshot()), "after undoing action %d", i-1)
	}
	for i := 1; i <= len(actions); i++ {
		for range depths[i] - depths[i-1] {
			require.NotNil(t, e.Redo())
		}
		require.Equal(t, states[i], canon(e.Snapshot()), "after redoing action %d", i-1)
	}
	assert.False(t, e.CanRedo())
}

func TestUndoRebuildsIndex(t *testing.T) {
	e, clock := newTestEngine(t, "p1")
	s, _ := drawLine(t, e, clock, geom.P(0, 1, 0), 0.05, 3, "torso")
	p := s.Marks[1].Position

	require.Len(t, e.QueryRadius(p, 0.001), 1)
	e.Undo()
	assert.Empty(t, e.QueryRadius(p, 0.001))
	e.Redo()
	assert.Len(t, e.QueryRadius(p, 0.001), 1)
}

func TestUndoRedoEmpty(t *testing.T) {
	e, _ := newTestEngine(t, "p1")
	assert.Nil(t, e.Undo())
	assert.Nil(t, e.Redo())
	assert.Equal(t, -1, e.HistoryIndex())
}

func TestNewActionDropsRedo(t *testing.T) {
	e, _ := newTestEngine(t, "p1")
	e.Fill("head", "#111")
	e.Fill("head", "#222")
	e.Undo()
	require.True(t, e.CanRedo())

	e.Fill("chest", "#333")
	assert.False(t, e.CanRedo())
	assert.Equal(t, document.ColorMap{"head": "#111", "chest": "#333"}, e.Colors())
}
