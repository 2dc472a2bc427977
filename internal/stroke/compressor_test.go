package stroke

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodymap/bodymap/internal/document"
	"github.com/bodymap/bodymap/internal/geom"
)

var (
	torso      = geom.Region{ID: "torso", Surface: geom.SurfaceBody}
	chest      = geom.Region{ID: "chest", Surface: geom.SurfaceBody}
	whiteboard = geom.Region{ID: geom.WhiteboardRegion, Surface: geom.SurfaceWhiteboard}
)

// fakeClock is a settable millisecond clock.
type fakeClock struct{ now int64 }

func (c *fakeClock) Now() int64           { return c.now }
func (c *fakeClock) Advance(ms int64)     { c.now += ms }
func newFakeClock(start int64) *fakeClock { return &fakeClock{now: start} }

func TestCompressorAdmission(t *testing.T) {
	tests := []struct {
		name   string
		next   geom.Point
		region geom.Region
		dt     int64
		want   bool
	}{
		{"below threshold", geom.P(0.01, 0, 0), torso, 10, false},
		{"just over threshold", geom.P(DistanceThreshold+0.0001, 0, 0), torso, 10, true},
		{"far enough", geom.P(0.05, 0, 0), torso, 10, true},
		{"region change", geom.P(0.001, 0, 0), chest, 10, true},
		{"surface change", geom.P(0.001, 0, 0), whiteboard, 10, true},
		{"time gap", geom.P(0.001, 0, 0), torso, TimeGap.Milliseconds(), true},
		{"just before time gap", geom.P(0.001, 0, 0), torso, TimeGap.Milliseconds() - 1, false},
		{"non-finite", geom.P(math.NaN(), 0, 0), chest, 500, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock(1000)
			c := NewCompressor(clock.Now)
			require.True(t, c.AddPoint(geom.P(0, 0, 0), torso), "first point is always admitted")

			clock.Advance(tt.dt)
			assert.Equal(t, tt.want, c.AddPoint(tt.next, tt.region))
			if tt.want {
				assert.Equal(t, 2, c.Len())
			} else {
				assert.Equal(t, 1, c.Len())
			}
		})
	}
}

func TestCompressorComparesAgainstLastAdmitted(t *testing.T) {
	clock := newFakeClock(0)
	c := NewCompressor(clock.Now)
	c.AddPoint(geom.P(0, 0, 0), torso)

	// Many tiny moves add up; each is measured from the last admitted point,
	// not from the previous sample.
	admitted := 0
	for i := 1; i <= 10; i++ {
		clock.Advance(1)
		if c.AddPoint(geom.P(float64(i)*0.004, 0, 0), torso) {
			admitted++
		}
	}
	assert.Equal(t, 2, admitted)
	kps := c.KeyPoints()
	require.Len(t, kps, 3)
	assert.InDelta(t, 0.016, kps[1].WorldPosition.X, 1e-12)
	assert.InDelta(t, 0.032, kps[2].WorldPosition.X, 1e-12)
}

func TestCompressorKeyPointRegions(t *testing.T) {
	c := NewCompressor(newFakeClock(5).Now)
	c.AddPoint(geom.P(0, 0, 0), torso)
	c.AddPoint(geom.P(1, 0, 0), whiteboard)

	kps := c.KeyPoints()
	require.Len(t, kps, 2)
	assert.Equal(t, "torso", kps[0].BodyPart)
	assert.Empty(t, kps[0].WhiteboardRegion)
	assert.Equal(t, geom.SurfaceBody, kps[0].Surface)
	assert.Equal(t, geom.WhiteboardRegion, kps[1].WhiteboardRegion)
	assert.Equal(t, geom.SurfaceWhiteboard, kps[1].Surface)
	assert.NotEqual(t, kps[0].ID, kps[1].ID)
}

func TestCompressorFinalize(t *testing.T) {
	clock := newFakeClock(100)
	c := NewCompressor(clock.Now)
	assert.Nil(t, c.Finalize("s1", "#fff", 3, "p1"), "no points")

	c.AddPoint(geom.P(0, 0, 0), torso)
	clock.Advance(20)
	c.AddPoint(geom.P(0.3, 0.4, 0), torso)
	clock.Advance(20)
	c.AddPoint(geom.P(0.3, 0.4, 1), torso)

	s := c.Finalize("s1", "#ff0000", 3, "p1")
	require.NotNil(t, s)
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, "p1", s.AuthorID)
	assert.Len(t, s.KeyPoints, 3)
	assert.Equal(t, document.StrokeMetadata{
		Color:       "#ff0000",
		Size:        3,
		StartTime:   100,
		EndTime:     140,
		TotalLength: 1.5,
	}, roundLength(s.Metadata))

	c.Reset()
	assert.Zero(t, c.Len())
	assert.Nil(t, c.Finalize("s2", "#fff", 3, "p1"))

	// After a reset the next point is admitted even if it repeats the last one.
	assert.True(t, c.AddPoint(geom.P(0.3, 0.4, 1), torso))
}

func roundLength(m document.StrokeMetadata) document.StrokeMetadata {
	m.TotalLength = math.Round(m.TotalLength*1e9) / 1e9
	return m
}

func TestCompressStroke(t *testing.T) {
	assert.Nil(t, CompressStroke(nil, nil))
	assert.Nil(t, CompressStroke(&document.Stroke{ID: "empty"}, nil))

	s := &document.Stroke{
		ID:        "s1",
		Color:     "#00f",
		BrushSize: 6,
		AuthorID:  "p1",
		Surface:   geom.SurfaceWhiteboard,
		Marks: []document.Mark{
			{Position: geom.P(0, 0, 0), Timestamp: 10},
			{Position: geom.P(0.001, 0, 0), Timestamp: 11},
			{Position: geom.P(0.1, 0, 0), Timestamp: 12},
		},
	}
	shift := func(p geom.Point) geom.Point { return p.Add(geom.P(0, 1, 0)) }
	wire := CompressStroke(s, shift)
	require.NotNil(t, wire)
	require.Len(t, wire.KeyPoints, 2)
	assert.Equal(t, geom.P(0, 1, 0), wire.KeyPoints[0].WorldPosition)
	assert.Equal(t, geom.WhiteboardRegion, wire.KeyPoints[0].WhiteboardRegion)
	assert.Equal(t, int64(10), wire.Metadata.StartTime)
	assert.Equal(t, int64(12), wire.Metadata.EndTime)
	assert.Equal(t, 6.0, wire.Metadata.Size)
}
