package engine

import (
	"encoding/json"
	"slices"

	"github.com/bodymap/bodymap/internal/document"
	"github.com/bodymap/bodymap/internal/geom"
)

// DrawCommand is a single item for the frontend renderer. Positions are in
// model space; the renderer applies the model transform.
type DrawCommand struct {
	Op       string       `json:"op"`                 // "fill", "mark", "sensation", "text"
	ID       string       `json:"id,omitempty"`       // For hit correlation
	Region   string       `json:"region,omitempty"`   // Body part for "fill"
	Position *geom.Point  `json:"position,omitempty"` // Center of marks, icons and text
	Surface  geom.Surface `json:"surface,omitempty"`
	Color    string       `json:"color,omitempty"`
	Size     float64      `json:"size,omitempty"` // Mark radius, icon size or font size
	Icon     string       `json:"icon,omitempty"`
	Motion   string       `json:"motion,omitempty"`
	Text     *TextCommand `json:"text,omitempty"`
	Stroke   string       `json:"stroke,omitempty"` // Owning stroke of a "mark"
}

// TextCommand carries the typography of a "text" op.
type TextCommand struct {
	Content    string  `json:"content"`
	FontFamily string  `json:"fontFamily"`
	FontWeight string  `json:"fontWeight"`
	FontStyle  string  `json:"fontStyle"`
	Rotation   float64 `json:"rotation,omitempty"`
}

// Compile generates the draw command buffer for the current canvas.
// Commands are in painter's order: fills, marks in drawing order,
// sensations, then text on top.
func (e *Engine) Compile() []DrawCommand {
	marks := e.strokes.AllMarks()
	commands := make([]DrawCommand, 0, len(e.colors)+len(marks)+len(e.sensations)+len(e.texts))

	parts := make([]string, 0, len(e.colors))
	for part := range e.colors {
		parts = append(parts, part)
	}
	slices.Sort(parts)
	for _, part := range parts {
		commands = append(commands, DrawCommand{Op: "fill", Region: part, Color: e.colors[part]})
	}

	for _, m := range marks {
		pos := m.Position
		commands = append(commands, DrawCommand{
			Op:       "mark",
			ID:       m.ID,
			Position: &pos,
			Surface:  m.Surface.Normalize(),
			Color:    m.Color,
			Size:     m.Size,
			Stroke:   m.StrokeID,
		})
	}

	for _, s := range e.sensations {
		pos := s.Position
		commands = append(commands, DrawCommand{
			Op:       "sensation",
			ID:       s.ID,
			Position: &pos,
			Surface:  geom.SurfaceBody,
			Color:    s.Color,
			Size:     s.Size,
			Icon:     s.Icon,
			Motion:   string(s.MovementBehavior),
		})
	}

	for _, t := range e.texts {
		commands = append(commands, textCommand(t))
	}
	return commands
}

func textCommand(t document.TextMark) DrawCommand {
	pos := t.Position
	return DrawCommand{
		Op:       "text",
		ID:       t.ID,
		Position: &pos,
		Surface:  t.Surface.Normalize(),
		Color:    t.Color,
		Size:     t.FontSize,
		Text: &TextCommand{
			Content:    t.Text,
			FontFamily: t.FontFamily,
			FontWeight: t.FontWeight,
			FontStyle:  t.FontStyle,
			Rotation:   t.Rotation,
		},
	}
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

// Render compiles and serializes the canvas.
func (e *Engine) Render() string {
	result, _ := DrawCommandsToJSON(e.Compile())
	return result
}
