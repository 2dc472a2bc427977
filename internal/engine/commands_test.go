package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodymap/bodymap/internal/document"
	"github.com/bodymap/bodymap/internal/geom"
)

func TestCompileOrder(t *testing.T) {
	e, clock := newTestEngine(t, "p1")
	assert.Empty(t, e.Compile())
	assert.Equal(t, "[]", e.Render())

	e.PlaceText(document.TextMark{ID: "txt", Text: "here", FontSize: 16, FontFamily: "Inter", Rotation: 0.3})
	e.PlaceSensation(document.SensationMark{ID: "sens", Icon: "⚡", Size: 0.05, MovementBehavior: document.MovementPulse})
	s, _ := drawLine(t, e, clock, geom.P(0, 1, 0), 0.05, 2, "torso")
	e.Fill("torso", "#222")
	e.Fill("chest", "#111")

	cmds := e.Compile()
	var ops []string
	for _, c := range cmds {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []string{"fill", "fill", "mark", "mark", "sensation", "text"}, ops)

	assert.Equal(t, "chest", cmds[0].Region, "fills sorted by part")
	assert.Equal(t, s.Marks[0].ID, cmds[2].ID)
	assert.Equal(t, s.ID, cmds[2].Stroke)
	assert.Equal(t, geom.SurfaceBody, cmds[2].Surface)
	assert.Equal(t, "pulse", cmds[4].Motion)
	require.NotNil(t, cmds[5].Text)
	assert.Equal(t, "here", cmds[5].Text.Content)
	assert.Equal(t, 0.3, cmds[5].Text.Rotation)
	assert.Equal(t, 16.0, cmds[5].Size)
}

func TestRender(t *testing.T) {
	e, _ := newTestEngine(t, "p1")
	e.Fill("head", "#abcdef")

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(e.Render()), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, map[string]any{"op": "fill", "region": "head", "color": "#abcdef"}, decoded[0])
}
