package document

import (
	"fmt"
	"time"

	"github.com/bodymap/bodymap/internal/geom"
	"github.com/bodymap/bodymap/internal/typeid"
)

// NewSampleSnapshot builds a small demo canvas: a filled torso, one drawn
// stroke across the chest, a sensation on the head and a whiteboard note.
func NewSampleSnapshot(authorID string) *Snapshot {
	now := time.Now().UnixMilli()

	const brushSize = 3
	strokeID := typeid.NewStrokeID()
	marks := make([]Mark, 0, 5)
	for i := 0; i < 5; i++ {
		marks = append(marks, Mark{
			ID:        fmt.Sprintf("%s:%d", strokeID, i),
			Position:  geom.P(-0.1+float64(i)*0.05, 1.35, 0.12),
			Color:     "#e63946",
			Size:      brushSize * 0.004,
			Timestamp: now + int64(i)*16,
			StrokeID:  strokeID,
			Surface:   geom.SurfaceBody,
			AuthorID:  authorID,
		})
	}

	return &Snapshot{
		Strokes: []Stroke{
			{
				ID:         strokeID,
				Marks:      marks,
				Surface:    geom.SurfaceBody,
				StartTime:  marks[0].Timestamp,
				EndTime:    marks[len(marks)-1].Timestamp,
				BrushSize:  brushSize,
				Color:      "#e63946",
				IsComplete: true,
				AuthorID:   authorID,
			},
		},
		BodyPartColors: ColorMap{
			"torso": "#a8dadc",
		},
		SensationMarks: []SensationMark{
			{
				ID:               typeid.NewSensationID(),
				Position:         geom.P(0, 1.7, 0.1),
				Icon:             "zap",
				Color:            "#ffb703",
				Size:             0.05,
				Name:             "Tingling",
				MovementBehavior: MovementPulse,
			},
		},
		TextMarks: []TextMark{
			{
				ID:         typeid.NewTextID(),
				Position:   geom.P(1.5, 1.2, 0),
				Text:       "How does it feel?",
				FontSize:   24,
				FontFamily: "sans-serif",
				Color:      "#1d3557",
				Surface:    geom.SurfaceWhiteboard,
				FontWeight: "normal",
				FontStyle:  "normal",
				AuthorID:   authorID,
				Timestamp:  now,
			},
		},
	}
}
