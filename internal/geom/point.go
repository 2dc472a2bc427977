package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Point is a position in either world or model-local space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func P(x, y, z float64) Point {
	return Point{X: x, Y: y, Z: z}
}

func FromVec(v mgl64.Vec3) Point {
	return Point{X: v[0], Y: v[1], Z: v[2]}
}

func (p Point) Vec() mgl64.Vec3 {
	return mgl64.Vec3{p.X, p.Y, p.Z}
}

func (p Point) Add(o Point) Point {
	return FromVec(p.Vec().Add(o.Vec()))
}

func (p Point) Sub(o Point) Point {
	return FromVec(p.Vec().Sub(o.Vec()))
}

// Distance returns the Euclidean distance between two points.
func (p Point) Distance(o Point) float64 {
	return p.Vec().Sub(o.Vec()).Len()
}

// Lerp interpolates linearly from p towards o by t in [0, 1].
func (p Point) Lerp(o Point, t float64) Point {
	a := p.Vec()
	return FromVec(a.Add(o.Vec().Sub(a).Mul(t)))
}

// IsFinite reports whether every component is a real number.
func (p Point) IsFinite() bool {
	for _, c := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min Point
	Max Point
}

// EmptyBox returns a box that contains nothing and grows with Expand.
func EmptyBox() Box {
	inf := math.Inf(1)
	return Box{
		Min: Point{X: inf, Y: inf, Z: inf},
		Max: Point{X: -inf, Y: -inf, Z: -inf},
	}
}

func (b Box) IsEmpty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y || b.Max.Z < b.Min.Z
}

// Expand grows the box to include p.
func (b Box) Expand(p Point) Box {
	return Box{
		Min: Point{X: min(b.Min.X, p.X), Y: min(b.Min.Y, p.Y), Z: min(b.Min.Z, p.Z)},
		Max: Point{X: max(b.Max.X, p.X), Y: max(b.Max.Y, p.Y), Z: max(b.Max.Z, p.Z)},
	}
}

// Grow pushes every face of the box outward by d.
func (b Box) Grow(d float64) Box {
	if b.IsEmpty() {
		return b
	}
	return Box{
		Min: Point{X: b.Min.X - d, Y: b.Min.Y - d, Z: b.Min.Z - d},
		Max: Point{X: b.Max.X + d, Y: b.Max.Y + d, Z: b.Max.Z + d},
	}
}

func (b Box) Contains(p Point) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

func (b Box) Intersects(o Box) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	return !(o.Max.X < b.Min.X || o.Min.X > b.Max.X ||
		o.Max.Y < b.Min.Y || o.Min.Y > b.Max.Y ||
		o.Max.Z < b.Min.Z || o.Min.Z > b.Max.Z)
}

// Intersect returns the overlap of two boxes, which may be empty.
func (b Box) Intersect(o Box) Box {
	return Box{
		Min: Point{X: max(b.Min.X, o.Min.X), Y: max(b.Min.Y, o.Min.Y), Z: max(b.Min.Z, o.Min.Z)},
		Max: Point{X: min(b.Max.X, o.Max.X), Y: min(b.Max.Y, o.Max.Y), Z: min(b.Max.Z, o.Max.Z)},
	}
}
