package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodymap/bodymap/internal/document"
	"github.com/bodymap/bodymap/internal/geom"
	"github.com/bodymap/bodymap/internal/history"
	"github.com/bodymap/bodymap/internal/stroke"
)

type testClock struct{ now int64 }

func (c *testClock) Now() int64       { return c.now }
func (c *testClock) Advance(ms int64) { c.now += ms }

func newTestEngine(t *testing.T, playerID string) (*Engine, *testClock) {
	t.Helper()
	clock := &testClock{now: 1_700_000_000_000}
	return New(Options{PlayerID: playerID, Clock: clock.Now}), clock
}

func hit(x, y, z float64, mesh string) geom.Hit {
	return geom.Hit{Point: geom.P(x, y, z), MeshName: mesh}
}

// drawLine paints n samples dx apart on mesh, 10ms apart.
func drawLine(t *testing.T, e *Engine, clock *testClock, from geom.Point, dx float64, n int, mesh string) (*document.Stroke, *document.OptimizedDrawingStroke) {
	t.Helper()
	_, ok := e.StartStroke(3, "#ff0000")
	require.True(t, ok)
	for i := 0; i < n; i++ {
		require.NotNil(t, e.Paint(hit(from.X+float64(i)*dx, from.Y, from.Z, mesh)))
		clock.Advance(10)
	}
	return e.FinishStroke()
}

func TestDrawStrokeEndToEnd(t *testing.T) {
	alice, clock := newTestEngine(t, "alice")
	s, wire := drawLine(t, alice, clock, geom.P(0, 1, 0.1), 0.05, 5, "torso")

	require.NotNil(t, s)
	require.Len(t, s.Marks, 5)
	assert.True(t, s.IsComplete)
	assert.Equal(t, "alice", s.AuthorID)
	assert.Equal(t, geom.SurfaceBody, s.Surface)
	for i, m := range s.Marks {
		assert.Equal(t, stroke.MarkID(s.ID, i), m.ID)
		assert.InDelta(t, 0.012, m.Size, 1e-12)
		assert.Equal(t, "#ff0000", m.Color)
	}

	require.NotNil(t, wire)
	assert.Equal(t, s.ID, wire.ID)
	assert.Len(t, wire.KeyPoints, 5)
	assert.Equal(t, "torso", wire.KeyPoints[0].BodyPart)
	assert.Equal(t, 3.0, wire.Metadata.Size)
	assert.InDelta(t, 0.2, wire.Metadata.TotalLength, 1e-9)

	assert.True(t, alice.HasStroke(s.ID))
	assert.Len(t, alice.AllMarks(), 5)
	assert.True(t, alice.CanUndo())
	assert.Equal(t, history.ActionDraw, alice.HistoryItems()[0].Type)

	// A peer rebuilds the stroke from the wire form alone.
	bob, _ := newTestEngine(t, "bob")
	remote := stroke.Materialize(wire, bob.Transform().WorldToLocal)
	require.True(t, bob.ApplyRemoteStroke(remote, "alice"))
	assert.False(t, bob.ApplyRemoteStroke(remote, "alice"), "already present")

	got := bob.Stroke(s.ID)
	require.NotNil(t, got)
	assert.Greater(t, len(got.Marks), 5, "interpolated between key points")
	assert.Equal(t, "alice", got.AuthorID)
	item := bob.HistoryItems()[0]
	require.NotNil(t, item.Metadata)
	assert.True(t, item.Metadata.IsMultiplayer)
	assert.Equal(t, "alice", item.Metadata.PlayerID)

	// Both ends of the stroke land in the same place on both canvases.
	assert.InDelta(t, s.Marks[0].Position.X, got.Marks[0].Position.X, 1e-9)
	assert.InDelta(t, s.Marks[4].Position.X, got.Marks[len(got.Marks)-1].Position.X, 1e-9)
}

func TestDrawingRequiresPlayer(t *testing.T) {
	e, _ := newTestEngine(t, "")
	_, ok := e.StartStroke(3, "#000")
	assert.False(t, ok)
	assert.Nil(t, e.Paint(hit(0, 0, 0, "torso")))

	e.SetPlayerID("p1")
	assert.Equal(t, "p1", e.PlayerID())
	_, ok = e.StartStroke(3, "#000")
	assert.True(t, ok)
}

func TestPaintFiltering(t *testing.T) {
	e, clock := newTestEngine(t, "p1")
	assert.Nil(t, e.Paint(hit(0, 0, 0, "torso")), "no open stroke")

	e.StartStroke(3, "#000")
	require.NotNil(t, e.Paint(hit(0, 0, 0, "torso")))
	clock.Advance(2)
	assert.Nil(t, e.Paint(hit(0.1, 0, 0, "torso")), "throttled")
	clock.Advance(DefaultPointerInterval.Milliseconds())
	assert.Nil(t, e.Paint(hit(0.1, 0, 0, "floor")), "unknown mesh")
	require.NotNil(t, e.Paint(hit(0.1, 0, 0, "whiteboard")))

	s, _ := e.FinishStroke()
	require.Len(t, s.Marks, 2)
	assert.Equal(t, geom.SurfaceWhiteboard, s.Marks[1].Surface)
}

func TestFinishWithoutMarks(t *testing.T) {
	e, _ := newTestEngine(t, "p1")
	s, wire := e.FinishStroke()
	assert.Nil(t, s)
	assert.Nil(t, wire)

	e.StartStroke(3, "#000")
	s, wire = e.FinishStroke()
	assert.Nil(t, s)
	assert.Nil(t, wire)
	assert.False(t, e.CanUndo())
}

func TestFillsSensationsText(t *testing.T) {
	e, _ := newTestEngine(t, "p1")

	assert.False(t, e.Fill("", "#fff"))
	assert.True(t, e.Fill("chest", "#00ff00"))
	assert.True(t, e.ApplyRemoteFill("chest", "#0000ff", "p2"))
	assert.Equal(t, document.ColorMap{"chest": "#0000ff"}, e.Colors(), "last write wins")

	placed := e.PlaceSensation(document.SensationMark{Position: geom.P(0, 1, 0), Icon: "⚡", Size: 0.05})
	assert.NotEmpty(t, placed.ID)
	assert.False(t, e.ApplyRemoteSensation(placed, "p2"), "duplicate id")
	assert.True(t, e.ApplyRemoteSensation(document.SensationMark{ID: "s2", Icon: "🔥"}, "p2"))
	assert.Len(t, e.Sensations(), 2)

	txt := e.PlaceText(document.TextMark{Text: "ache", Position: geom.P(0, 1, 0), FontSize: 16})
	assert.NotEmpty(t, txt.ID)
	assert.Equal(t, "p1", txt.AuthorID)
	assert.Equal(t, geom.SurfaceBody, e.Texts()[0].Surface)

	assert.True(t, e.EditText(txt.ID, "sharp ache"))
	assert.False(t, e.EditText(txt.ID, "sharp ache"), "unchanged")
	assert.False(t, e.EditText("missing", "x"))
	assert.Equal(t, "sharp ache", e.Texts()[0].Text)

	got, ok := e.PickText(geom.P(0.01, 1, 0), geom.SurfaceBody)
	require.True(t, ok)
	assert.Equal(t, txt.ID, got.ID)
	_, ok = e.PickText(geom.P(0.01, 1, 0), geom.SurfaceWhiteboard)
	assert.False(t, ok)
	_, ok = e.PickText(geom.P(1, 1, 0), geom.SurfaceBody)
	assert.False(t, ok)

	assert.True(t, e.DeleteText(txt.ID))
	assert.False(t, e.DeleteText(txt.ID))
	assert.Empty(t, e.Texts())
}

func TestCustomEffects(t *testing.T) {
	e, _ := newTestEngine(t, "p1")
	fx := e.CreateCustomEffect(document.CustomEffect{Name: "throb", Icon: "💢", MovementBehavior: document.MovementPulse})
	assert.NotEmpty(t, fx.ID)
	assert.Equal(t, "p1", fx.AuthorID)

	fx.Name = "throbbing"
	assert.True(t, e.UpsertCustomEffect(fx))
	assert.False(t, e.UpsertCustomEffect(document.CustomEffect{}))
	require.Len(t, e.CustomEffects(), 1)
	assert.Equal(t, "throbbing", e.CustomEffects()[0].Name)
	assert.False(t, e.CanUndo(), "presets are not undoable")

	assert.True(t, e.DeleteCustomEffect(fx.ID))
	assert.False(t, e.DeleteCustomEffect(fx.ID))
}

func TestClearAndReset(t *testing.T) {
	e, clock := newTestEngine(t, "p1")
	assert.False(t, e.ClearAll(), "nothing to clear")
	assert.False(t, e.ResetAll(), "nothing to reset")

	drawLine(t, e, clock, geom.P(0, 1, 0), 0.05, 3, "torso")
	e.Fill("head", "#123456")
	e.SetRotation(1)

	assert.True(t, e.ClearAll())
	assert.Empty(t, e.AllMarks())
	assert.Equal(t, document.ColorMap{"head": "#123456"}, e.Colors(), "clear keeps fills")
	assert.Equal(t, 1.0, e.Rotation())

	assert.True(t, e.ApplyRemoteReset("p2"))
	assert.Empty(t, e.Colors())
	assert.Zero(t, e.Rotation())

	e.Undo()
	assert.Equal(t, document.ColorMap{"head": "#123456"}, e.Colors())
	assert.Equal(t, 1.0, e.Rotation())
	e.Undo()
	assert.Len(t, e.AllMarks(), 3)
}

func TestSnapshots(t *testing.T) {
	alice, clock := newTestEngine(t, "alice")
	s, _ := drawLine(t, alice, clock, geom.P(0, 1, 0), 0.05, 3, "torso")
	alice.Fill("chest", "#f00")
	alice.PlaceSensation(document.SensationMark{ID: "sens", Icon: "⚡"})
	alice.PlaceText(document.TextMark{ID: "txt", Text: "here", FontSize: 16})
	alice.CreateCustomEffect(document.CustomEffect{ID: "fx", Name: "buzz"})
	alice.SetRotation(0.5)
	snap := alice.Snapshot()

	bob, _ := newTestEngine(t, "bob")
	bob.Fill("head", "#0f0")
	assert.Equal(t, 1, bob.ApplySnapshot(snap))
	assert.Zero(t, bob.ApplySnapshot(snap), "merging twice adds nothing")
	assert.True(t, bob.HasStroke(s.ID))
	assert.Equal(t, document.ColorMap{"head": "#0f0", "chest": "#f00"}, bob.Colors())
	assert.Len(t, bob.Sensations(), 1)
	assert.Len(t, bob.Texts(), 1)
	assert.Len(t, bob.CustomEffects(), 1)
	assert.Equal(t, 0.5, bob.Rotation())
	assert.Len(t, bob.HistoryItems(), 1, "merging is not recorded")
	assert.Len(t, bob.QueryRadius(s.Marks[0].Position, 0.001), 1, "index rebuilt")
	assert.Zero(t, bob.ApplySnapshot(nil))

	carol, _ := newTestEngine(t, "carol")
	carol.Fill("head", "#0f0")
	carol.LoadSnapshot(snap)
	assert.Equal(t, document.ColorMap{"chest": "#f00"}, carol.Colors(), "load replaces")
	assert.False(t, carol.CanUndo())
	assert.Equal(t, canon(snap), canon(carol.Snapshot()))

	carol.LoadSnapshot(nil)
	assert.True(t, carol.Snapshot().IsEmpty())
}

func TestOptimizerThinsOldStrokes(t *testing.T) {
	clock := &testClock{now: 1}
	e := New(Options{
		PlayerID: "p1",
		Clock:    clock.Now,
		Optimizer: stroke.OptimizerConfig{
			HardLimit:  20,
			SoftLimit:  15,
			KeepRecent: 6,
			ThinStride: 3,
		},
	})
	for i := 0; i < 5; i++ {
		drawLine(t, e, clock, geom.P(float64(i), 0, 0), 0.05, 5, "torso")
	}
	// The fifth stroke pushes the count to 25: 19 older marks thin to 7
	// and the newest 6 stay.
	assert.Len(t, e.AllMarks(), 13)
}
