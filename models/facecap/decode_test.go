package facecap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-facecap/models/postprocess"
)

// testHead builds a single-scale head with one anchor: stride 8, anchor
// 10x13, one class, two attributes. Small enough to hand-check indices.
func testHead(t *testing.T) *Head {
	t.Helper()
	h, err := NewHead(Options{
		Strides:       []int{8},
		Anchors:       [][]Anchor{{{W: 10, H: 13}}},
		NumClasses:    1,
		NumAttributes: 2,
	})
	require.NoError(t, err)
	return h
}

// rawTensor builds a raw head output filled with a constant logit.
func rawTensor(l Layout, batch, ny, nx int, fill float32) *tensor.Dense {
	data := make([]float32, batch*l.TotalChannels()*ny*nx)
	for i := range data {
		data[i] = fill
	}
	return tensor.New(
		tensor.WithShape(batch, l.TotalChannels(), ny, nx),
		tensor.WithBacking(data),
	)
}

// logit inverts the sigmoid so tests can pin exact post-activation values.
func logit(p float32) float32 {
	return float32(math.Log(float64(p) / (1 - float64(p))))
}

func TestDecode_ZeroLogits_OrderAndGeometry(t *testing.T) {
	h, err := NewHead(DefaultOptions())
	require.NoError(t, err)

	// Scale sizes for a 32x32 input.
	sizes := [][2]int{{4, 4}, {2, 2}, {1, 1}}
	outputs := make([]*tensor.Dense, len(sizes))
	for i, sz := range sizes {
		outputs[i] = rawTensor(h.Layout(), 1, sz[0], sz[1], 0)
	}

	decoded, err := h.Decode(outputs)
	require.NoError(t, err)
	require.Len(t, decoded, 1)

	cands := decoded[0]
	require.Len(t, cands, 3*(16+4+1))

	// With all logits at zero, every sigmoid is 0.5 and the decode reduces
	// to cx=(x+0.5)*stride, cy=(y+0.5)*stride, w=anchorW*stride,
	// h=anchorH*stride. Walking the expected scale, anchor, row, column
	// order must reproduce the flat list exactly.
	anchors := DefaultAnchors()
	k := 0
	for i, sz := range sizes {
		stride := float32(h.Strides()[i])
		for a := 0; a < 3; a++ {
			for y := 0; y < sz[0]; y++ {
				for x := 0; x < sz[1]; x++ {
					c := cands[k]
					assert.InDelta(t, (float32(x)+0.5)*stride, c.Box.CX, 1e-3, "candidate %d cx", k)
					assert.InDelta(t, (float32(y)+0.5)*stride, c.Box.CY, 1e-3, "candidate %d cy", k)
					assert.InDelta(t, anchors[i][a].W*stride, c.Box.W, 1e-2, "candidate %d w", k)
					assert.InDelta(t, anchors[i][a].H*stride, c.Box.H, 1e-2, "candidate %d h", k)
					assert.InDelta(t, 0.5, c.Objectness, 1e-6)
					k++
				}
			}
		}
	}
}

func TestDecode_KnownCell(t *testing.T) {
	h := testHead(t)
	l := h.Layout()

	data := make([]float32, l.TotalChannels()*2*2)
	set := func(ch int, v float32) {
		data[l.RawOffset(0, 0, ch, 1, 0, 2, 2)] = v
	}
	set(chX, logit(0.75))
	set(chY, logit(0.25))
	set(chW, 0)
	set(chH, logit(0.75))
	set(chObj, logit(0.9))
	set(chClass, logit(0.8))
	set(l.AttributeOffset(), logit(0.6))
	set(l.AttributeOffset()+1, logit(0.4))

	out := tensor.New(tensor.WithShape(1, l.TotalChannels(), 2, 2), tensor.WithBacking(data))
	decoded, err := h.Decode([]*tensor.Dense{out})
	require.NoError(t, err)
	require.Len(t, decoded[0], 4)

	// Row 1, column 0 of a 2x2 grid is the third candidate.
	c := decoded[0][2]

	// cx = (2*0.75 - 0.5 + 0) * 8, cy = (2*0.25 - 0.5 + 1) * 8.
	assert.InDelta(t, 8.0, c.Box.CX, 1e-3)
	assert.InDelta(t, 8.0, c.Box.CY, 1e-3)
	// w = (2*0.5)^2 * 10*8, h = (2*0.75)^2 * 13*8.
	assert.InDelta(t, 80.0, c.Box.W, 1e-2)
	assert.InDelta(t, 234.0, c.Box.H, 1e-2)
	assert.InDelta(t, 0.9, c.Objectness, 1e-4)
	require.Len(t, c.Classes, 1)
	assert.InDelta(t, 0.8, c.Classes[0], 1e-4)
	require.Len(t, c.Attributes, 2)
	assert.InDelta(t, 0.6, c.Attributes[0], 1e-4)
	assert.InDelta(t, 0.4, c.Attributes[1], 1e-4)
}

func TestDecode_BatchItemsIndependent(t *testing.T) {
	h := testHead(t)
	l := h.Layout()

	data := make([]float32, 2*l.TotalChannels()*2*2)
	data[l.RawOffset(1, 0, chObj, 0, 0, 2, 2)] = logit(0.9)

	out := tensor.New(tensor.WithShape(2, l.TotalChannels(), 2, 2), tensor.WithBacking(data))
	decoded, err := h.Decode([]*tensor.Dense{out})
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	require.Len(t, decoded[0], 4)
	require.Len(t, decoded[1], 4)

	assert.InDelta(t, 0.5, decoded[0][0].Objectness, 1e-6)
	assert.InDelta(t, 0.9, decoded[1][0].Objectness, 1e-4)
}

func TestDecode_AdaptsToNewShapes(t *testing.T) {
	h := testHead(t)

	decoded, err := h.Decode([]*tensor.Dense{rawTensor(h.Layout(), 1, 4, 4, 0)})
	require.NoError(t, err)
	require.Len(t, decoded[0], 16)

	// A smaller input rebuilds the grid for the new shape.
	decoded, err = h.Decode([]*tensor.Dense{rawTensor(h.Layout(), 1, 2, 2, 0)})
	require.NoError(t, err)
	require.Len(t, decoded[0], 4)
	assert.InDelta(t, 12.0, decoded[0][3].Box.CX, 1e-3)
	assert.InDelta(t, 12.0, decoded[0][3].Box.CY, 1e-3)
}

func TestDecode_ShapeErrors(t *testing.T) {
	h, err := NewHead(DefaultOptions())
	require.NoError(t, err)
	l := h.Layout()

	tests := []struct {
		name    string
		outputs []*tensor.Dense
		scale   int
	}{
		{
			name:    "wrong output count",
			outputs: []*tensor.Dense{rawTensor(l, 1, 4, 4, 0)},
			scale:   -1,
		},
		{
			name: "wrong rank",
			outputs: []*tensor.Dense{
				tensor.New(
					tensor.WithShape(1, l.TotalChannels(), 16),
					tensor.WithBacking(make([]float32, l.TotalChannels()*16)),
				),
				rawTensor(l, 1, 2, 2, 0),
				rawTensor(l, 1, 1, 1, 0),
			},
			scale: 0,
		},
		{
			name: "wrong channel count",
			outputs: []*tensor.Dense{
				rawTensor(l, 1, 4, 4, 0),
				tensor.New(
					tensor.WithShape(1, l.TotalChannels()+1, 2, 2),
					tensor.WithBacking(make([]float32, (l.TotalChannels()+1)*4)),
				),
				rawTensor(l, 1, 1, 1, 0),
			},
			scale: 1,
		},
		{
			name: "inconsistent batch",
			outputs: []*tensor.Dense{
				rawTensor(l, 1, 4, 4, 0),
				rawTensor(l, 2, 2, 2, 0),
				rawTensor(l, 1, 1, 1, 0),
			},
			scale: 1,
		},
		{
			name: "non-float data",
			outputs: []*tensor.Dense{
				tensor.New(
					tensor.WithShape(1, l.TotalChannels(), 4, 4),
					tensor.WithBacking(make([]int32, l.TotalChannels()*16)),
				),
				rawTensor(l, 1, 2, 2, 0),
				rawTensor(l, 1, 1, 1, 0),
			},
			scale: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Decode(tc.outputs)
			var shapeErr *postprocess.ShapeMismatchError
			require.ErrorAs(t, err, &shapeErr)
			assert.Equal(t, tc.scale, shapeErr.Scale)
		})
	}
}

func TestReshape_RawPassthrough(t *testing.T) {
	h := testHead(t)
	l := h.Layout()

	data := make([]float32, l.TotalChannels()*2*2)
	for i := range data {
		data[i] = float32(i)
	}
	out := tensor.New(tensor.WithShape(1, l.TotalChannels(), 2, 2), tensor.WithBacking(data))

	reshaped, err := h.Reshape([]*tensor.Dense{out})
	require.NoError(t, err)
	require.Len(t, reshaped, 1)
	assert.Equal(t, []int{1, 1, 2, 2, l.ChannelsPerAnchor()}, []int(reshaped[0].Shape()))

	got, ok := reshaped[0].Data().([]float32)
	require.True(t, ok)

	// Raw index ch*4 + y*2 + x lands at cell index (y*2+x)*8 + ch. Values
	// above 1 prove no activation ran.
	assert.Equal(t, float32(0), got[0])  // ch 0, cell (0,0)
	assert.Equal(t, float32(4), got[1])  // ch 1, cell (0,0)
	assert.Equal(t, float32(28), got[7]) // ch 7, cell (0,0)
	assert.Equal(t, float32(1), got[8])  // ch 0, cell (0,1)
	assert.Equal(t, float32(31), got[31])
}

func TestExport_SigmoidAndFlatten(t *testing.T) {
	h := testHead(t)
	l := h.Layout()

	data := make([]float32, l.TotalChannels()*2*2)
	for i := range data {
		data[i] = float32(i) - 4
	}
	out := tensor.New(tensor.WithShape(1, l.TotalChannels(), 2, 2), tensor.WithBacking(data))

	exported, err := h.Export([]*tensor.Dense{out})
	require.NoError(t, err)
	require.Len(t, exported, 1)
	assert.Equal(t, []int{1, l.TotalChannels(), 4}, []int(exported[0].Shape()))

	got, ok := exported[0].Data().([]float32)
	require.True(t, ok)
	require.Len(t, got, len(data))
	for i, v := range data {
		assert.InDelta(t, float64(sigmoid(v)), float64(got[i]), 1e-6, "element %d", i)
	}

	// The source tensor is untouched.
	src, ok := out.Data().([]float32)
	require.True(t, ok)
	assert.Equal(t, float32(-4), src[0])
}

func TestScaledAnchors(t *testing.T) {
	h, err := NewHead(DefaultOptions())
	require.NoError(t, err)

	scaled := h.ScaledAnchors()
	require.Len(t, scaled, 18)

	// First anchor of the stride-8 scale.
	assert.Equal(t, float32(80), scaled[0])
	assert.Equal(t, float32(104), scaled[1])
	// First anchor of the stride-16 scale.
	assert.Equal(t, float32(480), scaled[6])
	assert.Equal(t, float32(976), scaled[7])
	// Last anchor of the stride-32 scale.
	assert.Equal(t, float32(11936), scaled[16])
	assert.Equal(t, float32(10432), scaled[17])
}
