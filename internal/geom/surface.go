package geom

import (
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Surface identifies which drawable object a point lies on.
type Surface string

const (
	SurfaceBody       Surface = "body"
	SurfaceWhiteboard Surface = "whiteboard"
)

// Normalize maps the empty value written by older clients to the body surface.
func (s Surface) Normalize() Surface {
	if s == "" {
		return SurfaceBody
	}
	return s
}

func (s Surface) Valid() bool {
	switch s.Normalize() {
	case SurfaceBody, SurfaceWhiteboard:
		return true
	}
	return false
}

// Region is a named part of a surface: a body part or a whiteboard region.
type Region struct {
	ID      string  `json:"id"`
	Surface Surface `json:"surface"`
}

// RegionMap is a mesh-name to region lookup built once when the model loads.
type RegionMap struct {
	byMesh map[string]Region
}

// NewRegionMap builds a lookup from mesh name to region. Mesh names are
// matched case-insensitively.
func NewRegionMap(entries map[string]Region) *RegionMap {
	rm := &RegionMap{byMesh: make(map[string]Region, len(entries))}
	for mesh, region := range entries {
		region.Surface = region.Surface.Normalize()
		rm.byMesh[strings.ToLower(mesh)] = region
	}
	return rm
}

// Classify returns the region for a mesh.
func (rm *RegionMap) Classify(meshName string) (Region, bool) {
	if rm == nil {
		return Region{}, false
	}
	r, ok := rm.byMesh[strings.ToLower(meshName)]
	return r, ok
}

func (rm *RegionMap) Len() int {
	if rm == nil {
		return 0
	}
	return len(rm.byMesh)
}

// BodyParts lists the region ids of the humanoid model.
var BodyParts = []string{
	"head", "neck", "chest", "torso", "abdomen", "pelvis",
	"leftShoulder", "leftUpperArm", "leftForearm", "leftHand",
	"rightShoulder", "rightUpperArm", "rightForearm", "rightHand",
	"leftThigh", "leftShin", "leftFoot",
	"rightThigh", "rightShin", "rightFoot",
}

// WhiteboardRegion is the single region of the auxiliary whiteboard plane.
const WhiteboardRegion = "whiteboard"

// DefaultRegionMap maps the stock model's mesh names (equal to the body part
// ids) plus the whiteboard plane.
func DefaultRegionMap() *RegionMap {
	entries := make(map[string]Region, len(BodyParts)+1)
	for _, part := range BodyParts {
		entries[part] = Region{ID: part, Surface: SurfaceBody}
	}
	entries[WhiteboardRegion] = Region{ID: WhiteboardRegion, Surface: SurfaceWhiteboard}
	return NewRegionMap(entries)
}

// Hit is the result of ray casting a pointer into the scene.
type Hit struct {
	Point      Point  `json:"point"`
	MeshName   string `json:"meshName"`
	FaceNormal *Point `json:"faceNormal,omitempty"`
}

// SurfaceCoord is a hit expressed in model-local space, independent of the
// current model placement, so it can be stored and re-projected later.
type SurfaceCoord struct {
	Region Region `json:"region"`
	Local  Point  `json:"local"`
	Normal *Point `json:"normal,omitempty"`
}

// Locate converts a world-space hit into a surface coordinate. It reports
// false when the mesh is not a known region.
func Locate(hit Hit, regions *RegionMap, t ModelTransform) (SurfaceCoord, bool) {
	region, ok := regions.Classify(hit.MeshName)
	if !ok || !hit.Point.IsFinite() {
		return SurfaceCoord{}, false
	}
	sc := SurfaceCoord{
		Region: region,
		Local:  t.WorldToLocal(hit.Point),
	}
	if hit.FaceNormal != nil {
		n := t.DirectionToLocal(*hit.FaceNormal)
		sc.Normal = &n
	}
	return sc, true
}

// World re-projects the coordinate using the given model placement.
func (sc SurfaceCoord) World(t ModelTransform) Point {
	return t.LocalToWorld(sc.Local)
}

// ModelTransform is the placement of the model in the world: a translation,
// a rotation about the vertical axis and a uniform scale.
type ModelTransform struct {
	Position Point
	Rotation float64
	Scale    float64

	m   mgl64.Mat4
	inv mgl64.Mat4
}

// NewModelTransform builds the model matrix and caches its inverse.
func NewModelTransform(position Point, rotationY, scale float64) ModelTransform {
	if scale == 0 {
		scale = 1
	}
	m := mgl64.Translate3D(position.X, position.Y, position.Z).
		Mul4(mgl64.HomogRotate3DY(rotationY)).
		Mul4(mgl64.Scale3D(scale, scale, scale))
	return ModelTransform{
		Position: position,
		Rotation: rotationY,
		Scale:    scale,
		m:        m,
		inv:      m.Inv(),
	}
}

// Identity places the model at the origin with no rotation.
func Identity() ModelTransform {
	return NewModelTransform(Point{}, 0, 1)
}

// WithRotation returns a copy rotated to the given angle in radians.
func (t ModelTransform) WithRotation(rotationY float64) ModelTransform {
	return NewModelTransform(t.Position, rotationY, t.Scale)
}

func (t ModelTransform) matrices() (mgl64.Mat4, mgl64.Mat4) {
	if t.m == (mgl64.Mat4{}) {
		id := mgl64.Ident4()
		return id, id
	}
	return t.m, t.inv
}

func (t ModelTransform) LocalToWorld(p Point) Point {
	m, _ := t.matrices()
	return FromVec(mgl64.TransformCoordinate(p.Vec(), m))
}

func (t ModelTransform) WorldToLocal(p Point) Point {
	_, inv := t.matrices()
	return FromVec(mgl64.TransformCoordinate(p.Vec(), inv))
}

// DirectionToLocal rotates a world direction into model space and normalizes it.
func (t ModelTransform) DirectionToLocal(d Point) Point {
	_, inv := t.matrices()
	v := mgl64.TransformNormal(d.Vec(), inv)
	if v.Len() == 0 {
		return FromVec(v)
	}
	return FromVec(v.Normalize())
}
