package stroke

import (
	"time"

	"github.com/bodymap/bodymap/internal/document"
	"github.com/bodymap/bodymap/internal/geom"
	"github.com/bodymap/bodymap/internal/typeid"
)

const (
	// DistanceThreshold is the minimum model-space travel between key points.
	DistanceThreshold = 0.015
	// TimeGap forces a key point after a pause so timing survives compression.
	TimeGap = 80 * time.Millisecond
)

// Clock returns the current time in Unix milliseconds.
type Clock func() int64

// SystemClock reads the wall clock.
func SystemClock() int64 {
	return time.Now().UnixMilli()
}

// Compressor keeps the significant samples of a live drag. Reset must be
// called before each new stroke.
type Compressor struct {
	clock      Clock
	newID      func() string
	keyPoints  []document.StrokeKeyPoint
	lastRegion string
}

func NewCompressor(clock Clock) *Compressor {
	if clock == nil {
		clock = SystemClock
	}
	return &Compressor{
		clock: clock,
		newID: typeid.NewKeyPointID,
	}
}

// Reset drops all admitted points.
func (c *Compressor) Reset() {
	c.keyPoints = nil
	c.lastRegion = ""
}

// Len returns the number of admitted key points.
func (c *Compressor) Len() int {
	return len(c.keyPoints)
}

// KeyPoints returns a copy of the admitted key points.
func (c *Compressor) KeyPoints() []document.StrokeKeyPoint {
	out := make([]document.StrokeKeyPoint, len(c.keyPoints))
	copy(out, c.keyPoints)
	return out
}

// AddPoint offers a raw pointer sample. It reports whether the sample was
// admitted as a key point.
func (c *Compressor) AddPoint(world geom.Point, region geom.Region) bool {
	return c.AddPointAt(world, region, c.clock())
}

// AddPointAt is AddPoint with an explicit sample time in Unix milliseconds.
func (c *Compressor) AddPointAt(world geom.Point, region geom.Region, now int64) bool {
	if !world.IsFinite() {
		return false
	}
	surface := region.Surface.Normalize()

	if n := len(c.keyPoints); n > 0 {
		last := c.keyPoints[n-1]
		moved := world.Distance(last.WorldPosition) >= DistanceThreshold
		crossed := region.ID != c.lastRegion
		paused := now-last.Timestamp >= TimeGap.Milliseconds()
		if !moved && !crossed && !paused {
			return false
		}
	}

	kp := document.StrokeKeyPoint{
		ID:            c.newID(),
		WorldPosition: world,
		Surface:       surface,
		Timestamp:     now,
	}
	if surface == geom.SurfaceWhiteboard {
		kp.WhiteboardRegion = region.ID
	} else {
		kp.BodyPart = region.ID
	}
	c.keyPoints = append(c.keyPoints, kp)
	c.lastRegion = region.ID
	return true
}

// Finalize closes the stroke and returns its wire form, or nil when no point
// was admitted. The compressor keeps its points until Reset.
func (c *Compressor) Finalize(id, color string, size float64, authorID string) *document.OptimizedDrawingStroke {
	if len(c.keyPoints) == 0 {
		return nil
	}
	kps := c.KeyPoints()
	return &document.OptimizedDrawingStroke{
		ID:        id,
		KeyPoints: kps,
		Metadata: document.StrokeMetadata{
			Color:       color,
			Size:        size,
			StartTime:   kps[0].Timestamp,
			EndTime:     kps[len(kps)-1].Timestamp,
			TotalLength: PathLength(kps),
		},
		AuthorID: authorID,
	}
}

// PathLength sums the distances between consecutive key points.
func PathLength(kps []document.StrokeKeyPoint) float64 {
	total := 0.0
	for i := 1; i < len(kps); i++ {
		total += kps[i].WorldPosition.Distance(kps[i-1].WorldPosition)
	}
	return total
}

// CompressStroke derives the wire form of a stroke whose raw samples were
// not fed through a compressor. Marks are converted to world space with
// toWorld and treated as lying in a single region of the stroke's surface.
func CompressStroke(s *document.Stroke, toWorld func(geom.Point) geom.Point) *document.OptimizedDrawingStroke {
	if s == nil || len(s.Marks) == 0 {
		return nil
	}
	if toWorld == nil {
		toWorld = func(p geom.Point) geom.Point { return p }
	}
	c := NewCompressor(nil)
	region := geom.Region{Surface: s.Surface.Normalize()}
	if region.Surface == geom.SurfaceWhiteboard {
		region.ID = geom.WhiteboardRegion
	}
	for _, m := range s.Marks {
		c.AddPointAt(toWorld(m.Position), region, m.Timestamp)
	}
	return c.Finalize(s.ID, s.Color, s.BrushSize, s.AuthorID)
}
