package facecap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridRecord_CellCoordinates(t *testing.T) {
	anchors := DefaultAnchors()[0]
	rec := buildGridRecord(anchors, 8, 20, 20)

	// Cell at row 5, column 7 decodes with grid offsets x=7, y=5.
	gx, gy := rec.cellAt(0, 5, 7)
	assert.Equal(t, float32(7), gx)
	assert.Equal(t, float32(5), gy)

	// Every anchor shares the same cell coordinates.
	for a := range anchors {
		gx, gy = rec.cellAt(a, 5, 7)
		assert.Equal(t, float32(7), gx)
		assert.Equal(t, float32(5), gy)
	}

	gx, gy = rec.cellAt(2, 0, 0)
	assert.Equal(t, float32(0), gx)
	assert.Equal(t, float32(0), gy)

	gx, gy = rec.cellAt(1, 19, 19)
	assert.Equal(t, float32(19), gx)
	assert.Equal(t, float32(19), gy)
}

func TestGridRecord_AnchorGridIsStrideScaled(t *testing.T) {
	anchors := DefaultAnchors()[0]
	rec := buildGridRecord(anchors, 8, 20, 20)

	for a, anchor := range anchors {
		for y := 0; y < 20; y++ {
			for x := 0; x < 20; x++ {
				aw, ah := rec.anchorAt(a, y, x)
				require.Equal(t, anchor.W*8, aw, "anchor %d cell (%d,%d)", a, y, x)
				require.Equal(t, anchor.H*8, ah, "anchor %d cell (%d,%d)", a, y, x)
			}
		}
	}
}

func TestGridCache_ReusesMatchingShape(t *testing.T) {
	c := newGridCache(DefaultStrides(), DefaultAnchors())

	first := c.get(0, 80, 80)
	second := c.get(0, 80, 80)
	assert.Same(t, first, second)
}

func TestGridCache_RebuildsOnShapeChange(t *testing.T) {
	c := newGridCache(DefaultStrides(), DefaultAnchors())

	first := c.get(0, 80, 80)
	gx, gy := first.cellAt(0, 3, 4)

	replaced := c.get(0, 40, 40)
	assert.NotSame(t, first, replaced)
	assert.Equal(t, 40, replaced.ny)
	assert.Equal(t, 40, replaced.nx)

	// The replaced record is intact for callers still holding it.
	gx2, gy2 := first.cellAt(0, 3, 4)
	assert.Equal(t, gx, gx2)
	assert.Equal(t, gy, gy2)

	// Switching back rebuilds again rather than remembering old shapes.
	back := c.get(0, 80, 80)
	assert.NotSame(t, first, back)
	assert.Equal(t, 80, back.ny)
}

func TestGridCache_ScalesAreIndependent(t *testing.T) {
	c := newGridCache(DefaultStrides(), DefaultAnchors())

	p3 := c.get(0, 80, 80)
	p5 := c.get(2, 20, 20)

	// Rebuilding one scale leaves the others untouched.
	c.get(0, 40, 40)
	assert.Same(t, p5, c.get(2, 20, 20))

	aw, ah := p3.anchorAt(0, 0, 0)
	assert.Equal(t, float32(10*8), aw)
	assert.Equal(t, float32(13*8), ah)

	aw, ah = p5.anchorAt(2, 0, 0)
	assert.Equal(t, float32(373*32), aw)
	assert.Equal(t, float32(326*32), ah)
}

func TestGridCache_LazilyBuilt(t *testing.T) {
	c := newGridCache(DefaultStrides(), DefaultAnchors())

	require.Len(t, c.slots, 3)
	for i, slot := range c.slots {
		assert.Nil(t, slot, "scale %d built before first use", i)
	}

	c.get(1, 40, 40)
	assert.Nil(t, c.slots[0])
	assert.NotNil(t, c.slots[1])
	assert.Nil(t, c.slots[2])
}
