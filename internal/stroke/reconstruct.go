package stroke

import (
	"fmt"
	"math"

	"github.com/bodymap/bodymap/internal/document"
	"github.com/bodymap/bodymap/internal/geom"
)

const (
	// SpacingPerSize is the target model-space gap between interpolated
	// points per unit of brush size.
	SpacingPerSize = 0.002
	// MarkScale converts a brush size into the model-space radius of a mark.
	MarkScale = 0.004
)

// MarkRadius returns the model-space radius of a mark drawn with the brush.
func MarkRadius(brushSize float64) float64 {
	if brushSize <= 0 {
		brushSize = 1
	}
	return brushSize * MarkScale
}

// maxSteps caps interpolation per key-point pair. Fine brushes get more
// points so they stay continuous; broad brushes already overlap.
func maxSteps(size float64) int {
	switch {
	case size <= 3:
		return 80
	case size <= 6:
		return 60
	case size <= 12:
		return 40
	default:
		return 25
	}
}

// InterpolationSteps returns how many segments a same-region pair of key
// points distance apart is split into.
func InterpolationSteps(size, distance float64) int {
	if size <= 0 {
		size = 1
	}
	if distance <= 0 || math.IsNaN(distance) {
		return 1
	}
	steps := int(math.Ceil(distance / (size * SpacingPerSize)))
	return max(1, min(steps, maxSteps(size)))
}

// Smoothstep eases t in [0, 1] as t²(3−2t).
func Smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

// Reconstruct expands a compressed stroke into a dense point sequence.
// Pairs that cross a region boundary are never interpolated.
func Reconstruct(s *document.OptimizedDrawingStroke) []geom.Point {
	if s == nil || len(s.KeyPoints) == 0 {
		return nil
	}
	kps := s.KeyPoints
	if len(kps) == 1 {
		return []geom.Point{kps[0].WorldPosition}
	}

	out := make([]geom.Point, 0, len(kps)*4)
	for i := 0; i < len(kps)-1; i++ {
		a, b := kps[i], kps[i+1]
		out = append(out, a.WorldPosition)
		if a.RegionID() != b.RegionID() || a.Surface.Normalize() != b.Surface.Normalize() {
			continue
		}
		steps := InterpolationSteps(s.Metadata.Size, a.WorldPosition.Distance(b.WorldPosition))
		for j := 1; j < steps; j++ {
			t := Smoothstep(float64(j) / float64(steps))
			out = append(out, a.WorldPosition.Lerp(b.WorldPosition, t))
		}
	}
	return append(out, kps[len(kps)-1].WorldPosition)
}

// MarkID derives the id of the i-th reconstructed mark. Every participant
// derives the same ids for the same stroke.
func MarkID(strokeID string, i int) string {
	return fmt.Sprintf("%s:%d", strokeID, i)
}

// Materialize turns a wire stroke into a complete stroke in model-local
// space. toLocal converts reconstructed world points; nil keeps them as-is.
func Materialize(s *document.OptimizedDrawingStroke, toLocal func(geom.Point) geom.Point) *document.Stroke {
	points := Reconstruct(s)
	if len(points) == 0 {
		return nil
	}
	if toLocal == nil {
		toLocal = func(p geom.Point) geom.Point { return p }
	}

	surface := s.KeyPoints[0].Surface.Normalize()
	start, end := s.Metadata.StartTime, s.Metadata.EndTime
	if end < start {
		end = start
	}
	out := &document.Stroke{
		ID:         s.ID,
		Marks:      make([]document.Mark, 0, len(points)),
		Surface:    surface,
		StartTime:  start,
		EndTime:    end,
		BrushSize:  s.Metadata.Size,
		Color:      s.Metadata.Color,
		IsComplete: true,
		AuthorID:   s.AuthorID,
	}
	span := end - start
	for i, p := range points {
		ts := start
		if len(points) > 1 {
			ts = start + span*int64(i)/int64(len(points)-1)
		}
		out.Marks = append(out.Marks, document.Mark{
			ID:        MarkID(s.ID, i),
			Position:  toLocal(p),
			Color:     s.Metadata.Color,
			Size:      MarkRadius(s.Metadata.Size),
			Timestamp: ts,
			StrokeID:  s.ID,
			Surface:   surface,
			AuthorID:  s.AuthorID,
		})
	}
	return out
}
