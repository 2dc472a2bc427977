package spatial

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodymap/bodymap/internal/document"
	"github.com/bodymap/bodymap/internal/geom"
)

func randomMarks(r *rand.Rand, n int) []document.Mark {
	out := make([]document.Mark, n)
	for i := range out {
		out[i] = document.Mark{
			ID:       fmt.Sprintf("m%d", i),
			Position: geom.P(r.Float64()*2-1, r.Float64()*2, r.Float64()-0.5),
			Size:     r.Float64() * 0.02,
		}
	}
	return out
}

func ids(marks []document.Mark) []string {
	out := make([]string, 0, len(marks))
	for _, m := range marks {
		out = append(out, m.ID)
	}
	return out
}

func TestIndexEmpty(t *testing.T) {
	idx := NewIndex(0)
	assert.Equal(t, DefaultCellSize, idx.cellSize)
	assert.Zero(t, idx.Len())
	assert.True(t, idx.Bounds().IsEmpty())
	assert.Nil(t, idx.QueryRadius(geom.P(0, 0, 0), 1))
	assert.Nil(t, idx.QueryBox(geom.P(-1, -1, -1), geom.P(1, 1, 1)))
}

func TestQueryRadiusIncludesMarkSize(t *testing.T) {
	idx := NewIndex(0.05)
	idx.Build([]document.Mark{
		{ID: "near", Position: geom.P(0.1, 0, 0), Size: 0.05},
		{ID: "far", Position: geom.P(0.2, 0, 0), Size: 0.01},
	})

	assert.Equal(t, []string{"near"}, ids(idx.QueryRadius(geom.P(0, 0, 0), 0.06)))
	assert.Empty(t, idx.QueryRadius(geom.P(0, 0, 0), 0.01))
	assert.Nil(t, idx.QueryRadius(geom.P(0, 0, 0), -1))
	assert.Nil(t, idx.QueryRadius(geom.P(10, 10, 10), 0.5), "outside bounds")
}

func TestQueryBox(t *testing.T) {
	idx := NewIndex(0.05)
	idx.Build([]document.Mark{
		{ID: "a", Position: geom.P(0, 0, 0)},
		{ID: "b", Position: geom.P(0.5, 0.5, 0.5)},
		{ID: "c", Position: geom.P(1, 1, 1)},
	})
	// Corners may be given in any order.
	assert.Equal(t, []string{"b", "c"}, ids(idx.QueryBox(geom.P(1, 1, 1), geom.P(0.25, 0.25, 0.25))))
	assert.Equal(t, geom.Box{Min: geom.P(0, 0, 0), Max: geom.P(1, 1, 1)}, idx.Bounds())
}

func TestIndexMatchesLinearScan(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	marks := randomMarks(r, 2000)

	for _, cellSize := range []float64{0.01, 0.05, 0.5} {
		t.Run(fmt.Sprintf("cell %.2f", cellSize), func(t *testing.T) {
			idx := NewIndex(cellSize)
			idx.Build(marks)
			require.Equal(t, len(marks), idx.Len())

			for q := 0; q < 50; q++ {
				center := geom.P(r.Float64()*2-1, r.Float64()*2, r.Float64()-0.5)
				radius := r.Float64() * 0.3

				var want []string
				for _, m := range marks {
					if center.Distance(m.Position) <= radius+m.Size {
						want = append(want, m.ID)
					}
				}
				assert.Equal(t, want, nilIfEmpty(ids(idx.QueryRadius(center, radius))))

				lo := geom.P(r.Float64()*2-1, r.Float64()*2, r.Float64()-0.5)
				hi := lo.Add(geom.P(0.3, 0.3, 0.3))
				box := geom.Box{Min: lo, Max: hi}
				want = nil
				for _, m := range marks {
					if box.Contains(m.Position) {
						want = append(want, m.ID)
					}
				}
				assert.Equal(t, want, nilIfEmpty(ids(idx.QueryBox(lo, hi))))
			}
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestBuildReplaces(t *testing.T) {
	idx := NewIndex(0.05)
	idx.Build([]document.Mark{{ID: "old", Position: geom.P(0, 0, 0)}})
	idx.Build([]document.Mark{{ID: "new", Position: geom.P(1, 1, 1)}})

	assert.Empty(t, idx.QueryRadius(geom.P(0, 0, 0), 0.1))
	assert.Equal(t, []string{"new"}, ids(idx.QueryRadius(geom.P(1, 1, 1), 0.1)))
}

func TestWideExtentFallsBackToScan(t *testing.T) {
	tests := []struct {
		name  string
		far   geom.Point
		query func(idx *Index) []document.Mark
		want  []string
	}{
		{"radius over 1e6", geom.P(1e6, 1e6, 1e6), func(idx *Index) []document.Mark {
			return idx.QueryRadius(geom.P(5e5, 5e5, 5e5), 1e6)
		}, []string{"origin", "near", "far"}},
		{"box over 1e6", geom.P(1e6, 1e6, 1e6), func(idx *Index) []document.Mark {
			return idx.QueryBox(geom.P(-1, -1, -1), geom.P(2e6, 2e6, 2e6))
		}, []string{"origin", "near", "far"}},
		{"extreme coordinates", geom.P(1e300, -1e300, 1e300), func(idx *Index) []document.Mark {
			return idx.QueryBox(geom.P(-2e300, -2e300, -2e300), geom.P(2e300, 2e300, 2e300))
		}, []string{"origin", "near", "far"}},
		{"small query in a wide index", geom.P(1e6, 1e6, 1e6), func(idx *Index) []document.Mark {
			return idx.QueryRadius(geom.P(5, 5, 5), 0.1)
		}, []string{"near"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := NewIndex(0.05)
			idx.Build([]document.Mark{
				{ID: "origin", Position: geom.P(0, 0, 0)},
				{ID: "near", Position: geom.P(5, 5, 5)},
				{ID: "far", Position: tt.far},
			})

			got := make(chan []string, 1)
			go func() { got <- ids(tt.query(idx)) }()
			select {
			case found := <-got:
				assert.Equal(t, tt.want, found)
			case <-time.After(5 * time.Second):
				t.Fatal("query did not return")
			}
		})
	}
}
