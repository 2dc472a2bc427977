package engine

import (
	"log/slog"
	"slices"

	"github.com/bodymap/bodymap/internal/document"
	"github.com/bodymap/bodymap/internal/history"
)

// Undo reverts the item under the history cursor and returns it, or nil
// when there is nothing to undo.
func (e *Engine) Undo() *history.Item {
	item := e.history.Undo()
	if item == nil {
		return nil
	}
	e.revert(item)
	e.rebuild()
	return item
}

// Redo replays the next undone item and returns it, or nil.
func (e *Engine) Redo() *history.Item {
	item := e.history.Redo()
	if item == nil {
		return nil
	}
	e.replay(item)
	e.rebuild()
	return item
}

// revert applies the inverse effect of an item using only its payload.
func (e *Engine) revert(item *history.Item) {
	d := item.Data
	switch item.Type {
	case history.ActionDraw:
		for _, s := range d.Strokes {
			e.strokes.RemoveStroke(s.ID)
		}
	case history.ActionErase:
		for i := range d.Strokes {
			e.strokes.RestoreStroke(&d.Strokes[i])
		}
		e.restoreTexts(d.ErasedTextMarks)
		e.restoreSensations(d.ErasedSensationMarks)
	case history.ActionFill:
		e.colors = d.PreviousBodyPartColors.Clone()
	case history.ActionClear, history.ActionResetAll:
		e.restore(item.Type, d.Previous)
	case history.ActionSensation:
		e.sensations = slices.Clone(d.PreviousSensationMarks)
	case history.ActionTextPlace:
		if d.TextMark != nil {
			e.removeTexts([]document.TextMark{*d.TextMark})
		}
	case history.ActionTextEdit:
		if d.TextMark != nil {
			e.setText(d.TextMark.ID, d.PreviousText)
		}
	case history.ActionTextDelete:
		e.texts = slices.Clone(d.PreviousTextMarks)
	default:
		slog.Warn("undo of unknown action type", "type", item.Type, "id", item.ID)
	}
}

// replay re-applies the forward effect of an item.
func (e *Engine) replay(item *history.Item) {
	d := item.Data
	switch item.Type {
	case history.ActionDraw:
		for i := range d.Strokes {
			e.strokes.RestoreStroke(&d.Strokes[i])
		}
	case history.ActionErase:
		for _, s := range d.Strokes {
			e.strokes.RemoveStroke(s.ID)
		}
		e.removeTexts(d.ErasedTextMarks)
		e.removeSensations(d.ErasedSensationMarks)
	case history.ActionFill:
		for part, color := range d.BodyPartColors {
			e.colors[part] = color
		}
	case history.ActionClear, history.ActionResetAll:
		e.clearState(item.Type)
	case history.ActionSensation:
		if d.SensationMark != nil {
			e.restoreSensations([]document.SensationMark{*d.SensationMark})
		}
	case history.ActionTextPlace:
		if d.TextMark != nil {
			e.restoreTexts([]document.TextMark{*d.TextMark})
		}
	case history.ActionTextEdit:
		if d.TextMark != nil {
			e.setText(d.TextMark.ID, d.Text)
		}
	case history.ActionTextDelete:
		if d.TextMark != nil {
			e.removeTexts([]document.TextMark{*d.TextMark})
		}
	default:
		slog.Warn("redo of unknown action type", "type", item.Type, "id", item.ID)
	}
}

// restore puts back the collections captured by a clear or reset.
func (e *Engine) restore(kind history.ActionType, prev *document.Snapshot) {
	if prev == nil {
		return
	}
	prev = prev.Clone()
	e.strokes.Replace(prev.Strokes)
	e.sensations = prev.SensationMarks
	e.texts = prev.TextMarks
	if kind == history.ActionResetAll {
		e.colors = prev.BodyPartColors.Clone()
		e.SetRotation(prev.ModelRotation)
	}
}

func (e *Engine) setText(id, text string) {
	if i := e.textIndex(id); i >= 0 {
		e.texts[i].Text = text
	}
}
