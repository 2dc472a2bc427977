package history

import (
	"github.com/bodymap/bodymap/internal/document"
)

// ActionType tags what an Item did and so how it is inverted.
type ActionType string

const (
	ActionDraw       ActionType = "draw"
	ActionErase      ActionType = "erase"
	ActionFill       ActionType = "fill"
	ActionClear      ActionType = "clear"
	ActionSensation  ActionType = "sensation"
	ActionTextPlace  ActionType = "textPlace"
	ActionTextEdit   ActionType = "textEdit"
	ActionTextDelete ActionType = "textDelete"
	ActionResetAll   ActionType = "resetAll"
)

// Item is one user-visible mutation. Items are never modified once added.
type Item struct {
	ID        string     `json:"id"`
	Type      ActionType `json:"type"`
	Timestamp int64      `json:"timestamp"`
	Data      Data       `json:"data"`
	Metadata  *Metadata  `json:"metadata,omitempty"`
}

// Metadata records where an item came from.
type Metadata struct {
	IsMultiplayer bool   `json:"isMultiplayer,omitempty"`
	PlayerID      string `json:"playerId,omitempty"`
}

// Data carries everything needed to reverse and replay an item. Which
// fields are set depends on the item type:
//
//	draw        Strokes
//	erase       Strokes, ErasedTextMarks, ErasedSensationMarks
//	fill        BodyPartColors (delta), PreviousBodyPartColors
//	clear       Previous
//	resetAll    Previous
//	sensation   SensationMark, PreviousSensationMarks
//	textPlace   TextMark
//	textEdit    TextMark, PreviousText, Text
//	textDelete  TextMark, PreviousTextMarks
type Data struct {
	Strokes              []document.Stroke        `json:"strokes,omitempty"`
	ErasedTextMarks      []document.TextMark      `json:"erasedTextMarks,omitempty"`
	ErasedSensationMarks []document.SensationMark `json:"erasedSensationMarks,omitempty"`

	BodyPartColors         document.ColorMap `json:"bodyPartColors,omitempty"`
	PreviousBodyPartColors document.ColorMap `json:"previousBodyPartColors,omitempty"`

	SensationMark          *document.SensationMark  `json:"sensationMark,omitempty"`
	PreviousSensationMarks []document.SensationMark `json:"previousSensationMarks,omitempty"`

	TextMark          *document.TextMark  `json:"textMark,omitempty"`
	PreviousText      string              `json:"previousText,omitempty"`
	Text              string              `json:"text,omitempty"`
	PreviousTextMarks []document.TextMark `json:"previousTextMarks,omitempty"`

	Previous *document.Snapshot `json:"previous,omitempty"`
}
