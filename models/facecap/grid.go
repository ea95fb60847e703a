package facecap

// gridRecord holds the decode constants for one scale at one spatial size:
// the cell-offset grid and the stride-scaled anchor grid, both laid out
// (anchor, row, col, 2) in a flat slice. Records are immutable once built;
// a shape change swaps in a fresh record instead of mutating this one, so
// candidates decoded from the old record stay consistent.
type gridRecord struct {
	ny, nx     int
	grid       []float32
	anchorGrid []float32
}

// cellAt returns the (x, y) cell offset for anchor a at cell (y, x). The
// value is (col, row) for every anchor; the grid is materialized per
// anchor so both grids share one indexing scheme.
func (r *gridRecord) cellAt(a, y, x int) (float32, float32) {
	i := ((a*r.ny+y)*r.nx + x) * 2
	return r.grid[i], r.grid[i+1]
}

// anchorAt returns the stride-scaled anchor (w, h) for anchor a at cell
// (y, x). The value is identical across cells of one anchor.
func (r *gridRecord) anchorAt(a, y, x int) (float32, float32) {
	i := ((a*r.ny+y)*r.nx + x) * 2
	return r.anchorGrid[i], r.anchorGrid[i+1]
}

func buildGridRecord(anchors []Anchor, stride, ny, nx int) *gridRecord {
	n := len(anchors) * ny * nx * 2
	rec := &gridRecord{
		ny:         ny,
		nx:         nx,
		grid:       make([]float32, 0, n),
		anchorGrid: make([]float32, 0, n),
	}
	s := float32(stride)
	for _, anchor := range anchors {
		aw, ah := anchor.W*s, anchor.H*s
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				rec.grid = append(rec.grid, float32(x), float32(y))
				rec.anchorGrid = append(rec.anchorGrid, aw, ah)
			}
		}
	}
	return rec
}

// gridCache is an arena of one slot per scale. Slots fill lazily on the
// first decode of each scale and are overwritten whole when that scale's
// spatial size changes, which happens when the session switches input
// resolution. The cache belongs to a single head; heads are not shared
// across concurrent decoders.
type gridCache struct {
	strides []int
	anchors [][]Anchor
	slots   []*gridRecord
}

func newGridCache(strides []int, anchors [][]Anchor) *gridCache {
	return &gridCache{
		strides: strides,
		anchors: anchors,
		slots:   make([]*gridRecord, len(strides)),
	}
}

// get returns the record for the scale at the given spatial size, building
// and publishing a fresh one when the slot is empty or sized differently.
func (g *gridCache) get(scale, ny, nx int) *gridRecord {
	if rec := g.slots[scale]; rec != nil && rec.ny == ny && rec.nx == nx {
		return rec
	}
	rec := buildGridRecord(g.anchors[scale], g.strides[scale], ny, nx)
	g.slots[scale] = rec
	return rec
}
