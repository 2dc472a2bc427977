package engine

import (
	"slices"

	"github.com/bodymap/bodymap/internal/document"
	"github.com/bodymap/bodymap/internal/geom"
	"github.com/bodymap/bodymap/internal/history"
)

// TextCollisionScale converts a font size into the model-space radius used
// when erasing text.
const TextCollisionScale = 0.002

// TextCollisionRadius approximates the extent of rendered text.
func TextCollisionRadius(fontSize float64) float64 {
	if fontSize <= 0 {
		fontSize = 16
	}
	return fontSize * TextCollisionScale
}

// EraseResult lists everything one erase removed.
type EraseResult struct {
	Marks          []document.Mark
	Strokes        []document.Stroke
	TextMarks      []document.TextMark
	SensationMarks []document.SensationMark
}

func (r EraseResult) Empty() bool {
	return len(r.Strokes) == 0 && len(r.TextMarks) == 0 && len(r.SensationMarks) == 0
}

// Erase removes content within radius of center on the given surface,
// whoever authored it. Touching any mark of a stroke removes the whole
// stroke. It returns every mark of the removed strokes; when nothing
// matched, no history item is recorded.
func (e *Engine) Erase(center geom.Point, radius float64, surface geom.Surface) []document.Mark {
	return e.erase(center, radius, surface, nil).Marks
}

// EraseDetailed is Erase returning every removed item.
func (e *Engine) EraseDetailed(center geom.Point, radius float64, surface geom.Surface) EraseResult {
	return e.erase(center, radius, surface, nil)
}

// ApplyRemoteErase replays an erase broadcast by another participant.
func (e *Engine) ApplyRemoteErase(center geom.Point, radius float64, surface geom.Surface, playerID string) EraseResult {
	return e.erase(center, radius, surface, remote(playerID))
}

func (e *Engine) erase(center geom.Point, radius float64, surface geom.Surface, meta *history.Metadata) EraseResult {
	var res EraseResult
	if radius < 0 || !center.IsFinite() {
		return res
	}
	surface = surface.Normalize()

	byStroke := make(map[string]struct{})
	var strokeOrder []string
	for _, m := range e.index.QueryRadius(center, radius) {
		if m.Surface.Normalize() != surface {
			continue
		}
		if _, seen := byStroke[m.StrokeID]; !seen {
			byStroke[m.StrokeID] = struct{}{}
			strokeOrder = append(strokeOrder, m.StrokeID)
		}
	}

	for _, t := range e.texts {
		if t.Surface.Normalize() != surface {
			continue
		}
		if center.Distance(t.Position) <= radius+TextCollisionRadius(t.FontSize) {
			res.TextMarks = append(res.TextMarks, t)
		}
	}

	if surface == geom.SurfaceBody {
		for _, s := range e.sensations {
			if center.Distance(s.Position) <= radius+s.Size {
				res.SensationMarks = append(res.SensationMarks, s)
			}
		}
	}

	// Capture whole strokes before removing them. The open stroke is not a
	// completed stroke, so an in-progress gesture is never erased.
	for _, id := range strokeOrder {
		s := e.strokes.Stroke(id)
		if s == nil {
			continue
		}
		res.Strokes = append(res.Strokes, *s)
		res.Marks = append(res.Marks, s.Marks...)
		e.strokes.RemoveStroke(id)
	}
	e.removeTexts(res.TextMarks)
	e.removeSensations(res.SensationMarks)

	if res.Empty() {
		return EraseResult{}
	}
	e.rebuild()
	e.record(history.ActionErase, history.Data{
		Strokes:              slices.Clone(res.Strokes),
		ErasedTextMarks:      slices.Clone(res.TextMarks),
		ErasedSensationMarks: slices.Clone(res.SensationMarks),
	}, meta)
	return res
}

func (e *Engine) removeTexts(marks []document.TextMark) {
	for _, t := range marks {
		if i := e.textIndex(t.ID); i >= 0 {
			e.texts = slices.Delete(e.texts, i, i+1)
		}
	}
}

func (e *Engine) removeSensations(marks []document.SensationMark) {
	for _, s := range marks {
		if i := e.sensationIndex(s.ID); i >= 0 {
			e.sensations = slices.Delete(e.sensations, i, i+1)
		}
	}
}

func (e *Engine) restoreTexts(marks []document.TextMark) {
	for _, t := range marks {
		if e.textIndex(t.ID) < 0 {
			e.texts = append(e.texts, t)
		}
	}
}

func (e *Engine) restoreSensations(marks []document.SensationMark) {
	for _, s := range marks {
		if e.sensationIndex(s.ID) < 0 {
			e.sensations = append(e.sensations, s)
		}
	}
}
