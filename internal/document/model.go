package document

import (
	"maps"
	"slices"

	"github.com/bodymap/bodymap/internal/geom"
)

// Mark is one rendered dot. Marks are never mutated after creation.
type Mark struct {
	ID        string       `json:"id"`
	Position  geom.Point   `json:"position"`
	Color     string       `json:"color"`
	Size      float64      `json:"size"`
	Timestamp int64        `json:"timestamp"`
	StrokeID  string       `json:"strokeId"`
	Surface   geom.Surface `json:"surface,omitempty"`
	AuthorID  string       `json:"authorId,omitempty"`
}

// MarkInput is a mark as produced by pointer input, before the stroke
// manager assigns it to the open stroke.
type MarkInput struct {
	ID        string
	Position  geom.Point
	Color     string
	Size      float64
	Timestamp int64
	Surface   geom.Surface
}

// Stroke is the set of marks laid down by one continuous drag gesture.
type Stroke struct {
	ID         string       `json:"id"`
	Marks      []Mark       `json:"marks"`
	Surface    geom.Surface `json:"surface"`
	StartTime  int64        `json:"startTime"`
	EndTime    int64        `json:"endTime"`
	BrushSize  float64      `json:"brushSize"`
	Color      string       `json:"color"`
	IsComplete bool         `json:"isComplete"`
	AuthorID   string       `json:"authorId,omitempty"`
}

// Clone returns a deep copy so callers can hold the stroke across mutations.
func (s *Stroke) Clone() *Stroke {
	if s == nil {
		return nil
	}
	c := *s
	c.Marks = slices.Clone(s.Marks)
	return &c
}

// StrokeKeyPoint is one admitted sample of a drag path.
type StrokeKeyPoint struct {
	ID               string       `json:"id"`
	WorldPosition    geom.Point   `json:"worldPosition"`
	BodyPart         string       `json:"bodyPart,omitempty"`
	WhiteboardRegion string       `json:"whiteboardRegion,omitempty"`
	Surface          geom.Surface `json:"surface"`
	Timestamp        int64        `json:"timestamp"`
}

// RegionID returns the body part or whiteboard region the point lies in.
func (kp StrokeKeyPoint) RegionID() string {
	if kp.Surface.Normalize() == geom.SurfaceWhiteboard {
		if kp.WhiteboardRegion != "" {
			return kp.WhiteboardRegion
		}
		return geom.WhiteboardRegion
	}
	return kp.BodyPart
}

type StrokeMetadata struct {
	Color       string  `json:"color"`
	Size        float64 `json:"size"`
	StartTime   int64   `json:"startTime"`
	EndTime     int64   `json:"endTime"`
	TotalLength float64 `json:"totalLength"`
}

// OptimizedDrawingStroke is the compressed wire form of a finished stroke.
type OptimizedDrawingStroke struct {
	ID        string           `json:"id"`
	KeyPoints []StrokeKeyPoint `json:"keyPoints"`
	Metadata  StrokeMetadata   `json:"metadata"`
	AuthorID  string           `json:"playerId"`
}

type MovementBehavior string

const (
	MovementNone    MovementBehavior = "none"
	MovementPulse   MovementBehavior = "pulse"
	MovementFloat   MovementBehavior = "float"
	MovementRadiate MovementBehavior = "radiate"
	MovementSpin    MovementBehavior = "spin"
)

// SensationMark is an icon placed on the body. It does not belong to a stroke.
type SensationMark struct {
	ID               string           `json:"id"`
	Position         geom.Point       `json:"position"`
	Icon             string           `json:"icon"`
	Color            string           `json:"color"`
	Size             float64          `json:"size"`
	Name             string           `json:"name,omitempty"`
	MovementBehavior MovementBehavior `json:"movementBehavior,omitempty"`
	IsCustom         bool             `json:"isCustom,omitempty"`
}

// TextMark is a piece of text stamped onto a surface.
type TextMark struct {
	ID         string       `json:"id"`
	Position   geom.Point   `json:"position"`
	Text       string       `json:"text"`
	FontSize   float64      `json:"fontSize"`
	FontFamily string       `json:"fontFamily"`
	Color      string       `json:"color"`
	Surface    geom.Surface `json:"surface"`
	Rotation   float64      `json:"rotation,omitempty"`
	FontWeight string       `json:"fontWeight"`
	FontStyle  string       `json:"fontStyle"`
	AuthorID   string       `json:"authorId,omitempty"`
	Timestamp  int64        `json:"timestamp,omitempty"`
}

// CustomEffect is a user-defined sensation preset shared with the room.
type CustomEffect struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Icon             string           `json:"icon"`
	Color            string           `json:"color"`
	MovementBehavior MovementBehavior `json:"movementBehavior,omitempty"`
	AuthorID         string           `json:"authorId,omitempty"`
}

// ColorMap maps a body region to its fill color. Writes are last-write-wins.
type ColorMap map[string]string

func (c ColorMap) Clone() ColorMap {
	if c == nil {
		return ColorMap{}
	}
	return maps.Clone(c)
}

// Snapshot is the full shared state of a canvas.
type Snapshot struct {
	Strokes        []Stroke        `json:"strokes"`
	BodyPartColors ColorMap        `json:"bodyPartColors"`
	SensationMarks []SensationMark `json:"sensationMarks"`
	TextMarks      []TextMark      `json:"textMarks"`
	CustomEffects  []CustomEffect  `json:"customEffects,omitempty"`
	ModelRotation  float64         `json:"modelRotation"`
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := &Snapshot{
		Strokes:        make([]Stroke, 0, len(s.Strokes)),
		BodyPartColors: s.BodyPartColors.Clone(),
		SensationMarks: slices.Clone(s.SensationMarks),
		TextMarks:      slices.Clone(s.TextMarks),
		CustomEffects:  slices.Clone(s.CustomEffects),
		ModelRotation:  s.ModelRotation,
	}
	for i := range s.Strokes {
		c.Strokes = append(c.Strokes, *s.Strokes[i].Clone())
	}
	return c
}

// IsEmpty reports whether the snapshot carries no canvas content.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || (len(s.Strokes) == 0 && len(s.BodyPartColors) == 0 &&
		len(s.SensationMarks) == 0 && len(s.TextMarks) == 0 && len(s.CustomEffects) == 0)
}
