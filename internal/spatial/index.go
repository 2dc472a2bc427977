package spatial

import (
	"math"
	"slices"

	"github.com/bodymap/bodymap/internal/document"
	"github.com/bodymap/bodymap/internal/geom"
)

// CellKey identifies a grid cell.
type CellKey struct {
	X int
	Y int
	Z int
}

const (
	// DefaultCellSize is roughly one erase-brush diameter in model space.
	DefaultCellSize = 0.05
	// maxCellsPerQuery switches a query to a linear scan when the grid walk
	// would visit more cells than there are marks worth checking.
	maxCellsPerQuery = 4096
	maxCellCoord     = 1 << 52
)

// Index answers proximity queries over a set of marks. It is a derived
// cache: Build replaces its whole content and it is never updated in place.
type Index struct {
	cellSize    float64
	invCellSize float64

	marks   []document.Mark
	bounds  geom.Box
	maxSize float64
	cells   map[CellKey][]int
}

// NewIndex constructs an empty Index. A non-positive cell size selects the
// default.
func NewIndex(cellSize float64) *Index {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Index{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		bounds:      geom.EmptyBox(),
		cells:       make(map[CellKey][]int),
	}
}

// Build rebuilds the index from the authoritative mark list.
func (idx *Index) Build(marks []document.Mark) {
	idx.marks = slices.Clone(marks)
	idx.bounds = geom.EmptyBox()
	idx.maxSize = 0
	idx.cells = make(map[CellKey][]int, len(marks)/4+1)
	for i, m := range idx.marks {
		idx.bounds = idx.bounds.Expand(m.Position)
		idx.maxSize = max(idx.maxSize, m.Size)
		key := idx.cellFor(m.Position)
		idx.cells[key] = append(idx.cells[key], i)
	}
}

func (idx *Index) Len() int {
	return len(idx.marks)
}

// Bounds returns the box around every indexed mark position.
func (idx *Index) Bounds() geom.Box {
	return idx.bounds
}

// QueryRadius returns the marks whose distance to center is at most
// r plus the mark's own size.
func (idx *Index) QueryRadius(center geom.Point, r float64) []document.Mark {
	if len(idx.marks) == 0 || r < 0 {
		return nil
	}
	reach := r + idx.maxSize
	query := geom.Box{Min: center, Max: center}.Grow(reach)
	if !query.Intersects(idx.bounds) {
		return nil
	}
	return idx.collect(query.Intersect(idx.bounds), func(m document.Mark) bool {
		return center.Distance(m.Position) <= r+m.Size
	})
}

// QueryBox returns the marks whose position lies inside [lo, hi].
func (idx *Index) QueryBox(lo, hi geom.Point) []document.Mark {
	if len(idx.marks) == 0 {
		return nil
	}
	query := geom.EmptyBox().Expand(lo).Expand(hi)
	if !query.Intersects(idx.bounds) {
		return nil
	}
	return idx.collect(query.Intersect(idx.bounds), func(m document.Mark) bool {
		return query.Contains(m.Position)
	})
}

func (idx *Index) collect(area geom.Box, match func(document.Mark) bool) []document.Mark {
	var hits []int
	if n := idx.cellSpan(area); !(n <= maxCellsPerQuery && n <= float64(len(idx.cells))) {
		for i, m := range idx.marks {
			if match(m) {
				hits = append(hits, i)
			}
		}
	} else {
		lo, hi := idx.cellFor(area.Min), idx.cellFor(area.Max)
		for x := lo.X; x <= hi.X; x++ {
			for y := lo.Y; y <= hi.Y; y++ {
				for z := lo.Z; z <= hi.Z; z++ {
					for _, i := range idx.cells[CellKey{X: x, Y: y, Z: z}] {
						if match(idx.marks[i]) {
							hits = append(hits, i)
						}
					}
				}
			}
		}
		slices.Sort(hits)
	}

	out := make([]document.Mark, 0, len(hits))
	for _, i := range hits {
		out = append(out, idx.marks[i])
	}
	return out
}

// cellSpan counts the grid cells covering area. It works in float64 so
// wide extents saturate instead of wrapping.
func (idx *Index) cellSpan(area geom.Box) float64 {
	span := func(lo, hi float64) float64 {
		return math.Floor(hi*idx.invCellSize) - math.Floor(lo*idx.invCellSize) + 1
	}
	return span(area.Min.X, area.Max.X) * span(area.Min.Y, area.Max.Y) * span(area.Min.Z, area.Max.Z)
}

func (idx *Index) cellFor(p geom.Point) CellKey {
	return CellKey{
		X: idx.coordToCell(p.X),
		Y: idx.coordToCell(p.Y),
		Z: idx.coordToCell(p.Z),
	}
}

func (idx *Index) coordToCell(value float64) int {
	// Keep far-out coordinates inside the range int can hold exactly.
	return int(max(min(math.Floor(value*idx.invCellSize), maxCellCoord), -maxCellCoord))
}
