package facecap

import (
	"fmt"

	"github.com/chewxy/math32"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-facecap/images"
	"github.com/nvr-ai/go-facecap/models/postprocess"
)

// sigmoid is the head's output activation, applied to every channel before
// the box transform.
func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// Head decodes the facecap network's raw per-scale outputs into candidate
// detections. It owns the anchor constants and the lazily built grid
// cache; apart from that cache it is stateless, and the cache is the
// reason one Head serves one decode session at a time. Callers that need
// concurrency construct one Head each; two sessions never share a cache.
type Head struct {
	layout  Layout
	strides []int
	anchors [][]Anchor
	grids   *gridCache
}

// NewHead builds a Head from options, rejecting any configuration the
// decode could not execute: mismatched stride and anchor counts, uneven
// anchor groups, non-positive sizes, an unknown activation.
func NewHead(opts Options) (*Head, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	h := &Head{
		layout: Layout{
			Anchors:    len(opts.Anchors[0]),
			Classes:    opts.NumClasses,
			Attributes: opts.NumAttributes,
		},
		strides: opts.Strides,
		anchors: opts.Anchors,
	}
	h.grids = newGridCache(h.strides, h.anchors)
	return h, nil
}

// Layout returns the head's channel layout.
func (h *Head) Layout() Layout { return h.layout }

// Strides returns the head's scale strides.
func (h *Head) Strides() []int { return h.strides }

// ScaledAnchors returns the stride-scaled anchor sizes flattened in scale,
// anchor, (w, h) order. Conversion tooling embeds these constants to
// rebuild the box decode outside this library.
func (h *Head) ScaledAnchors() []float32 {
	out := make([]float32, 0, len(h.anchors)*h.layout.Anchors*2)
	for i, group := range h.anchors {
		s := float32(h.strides[i])
		for _, a := range group {
			out = append(out, a.W*s, a.H*s)
		}
	}
	return out
}

// validate checks the raw outputs against the configured scales and
// layout, returning the shared batch size. Shape problems surface here, on
// first use, as *postprocess.ShapeMismatchError.
func (h *Head) validate(outputs []*tensor.Dense) (int, error) {
	if len(outputs) != len(h.strides) {
		return 0, &postprocess.ShapeMismatchError{
			Scale: -1,
			Want:  fmt.Sprintf("%d outputs, one per stride", len(h.strides)),
			Got:   fmt.Sprintf("%d outputs", len(outputs)),
		}
	}
	batch := 0
	for i, out := range outputs {
		shape := out.Shape()
		if len(shape) != 4 {
			return 0, &postprocess.ShapeMismatchError{
				Scale: i,
				Want:  "rank 4 (batch, channels, rows, cols)",
				Got:   fmt.Sprintf("rank %d %v", len(shape), shape),
			}
		}
		if shape[1] != h.layout.TotalChannels() {
			return 0, &postprocess.ShapeMismatchError{
				Scale: i,
				Want:  fmt.Sprintf("%d channels (%s)", h.layout.TotalChannels(), h.layout),
				Got:   fmt.Sprintf("%d channels", shape[1]),
			}
		}
		if i == 0 {
			batch = shape[0]
		} else if shape[0] != batch {
			return 0, &postprocess.ShapeMismatchError{
				Scale: i,
				Want:  fmt.Sprintf("batch %d", batch),
				Got:   fmt.Sprintf("batch %d", shape[0]),
			}
		}
	}
	return batch, nil
}

// floats returns a raw output's float32 backing.
func floats(scale int, out *tensor.Dense) ([]float32, error) {
	data, ok := out.Data().([]float32)
	if !ok {
		return nil, &postprocess.ShapeMismatchError{
			Scale: scale,
			Want:  "float32 data",
			Got:   fmt.Sprintf("%T", out.Data()),
		}
	}
	return data, nil
}

// Decode turns raw per-scale outputs into candidate lists, one per batch
// item. Every channel passes through the sigmoid; box channels are then
// mapped to input-image pixels:
//
//	cx = (2*sig(tx) - 0.5 + gridX) * stride
//	cy = (2*sig(ty) - 0.5 + gridY) * stride
//	w  = (2*sig(tw))^2 * anchorW * stride
//	h  = (2*sig(th))^2 * anchorH * stride
//
// The center transform can reach half a cell outside the cell, and the
// size transform spans 0 to 4 anchor sizes; both ranges are what the
// facecap training target assumes.
//
// Candidates are appended in a fixed order: scales in stride order, then
// anchors, then rows, then columns. Runs over identical inputs produce
// identical lists, and downstream tie-breaking relies on this order, so it
// is part of the contract.
//
// Decode's only side effect is grid maintenance: a scale whose spatial
// size differs from its cached grid gets a freshly built grid and anchor
// grid before decoding.
func (h *Head) Decode(outputs []*tensor.Dense) ([][]postprocess.Candidate, error) {
	batch, err := h.validate(outputs)
	if err != nil {
		return nil, err
	}

	perImage := 0
	for _, out := range outputs {
		shape := out.Shape()
		perImage += h.layout.Anchors * shape[2] * shape[3]
	}
	decoded := make([][]postprocess.Candidate, batch)
	for n := range decoded {
		decoded[n] = make([]postprocess.Candidate, 0, perImage)
	}

	attrOffset := h.layout.AttributeOffset()
	for i, out := range outputs {
		data, err := floats(i, out)
		if err != nil {
			return nil, err
		}
		shape := out.Shape()
		ny, nx := shape[2], shape[3]
		stride := float32(h.strides[i])
		rec := h.grids.get(i, ny, nx)

		for n := 0; n < batch; n++ {
			for a := 0; a < h.layout.Anchors; a++ {
				for y := 0; y < ny; y++ {
					for x := 0; x < nx; x++ {
						sx := sigmoid(data[h.layout.RawOffset(n, a, chX, y, x, ny, nx)])
						sy := sigmoid(data[h.layout.RawOffset(n, a, chY, y, x, ny, nx)])
						sw := sigmoid(data[h.layout.RawOffset(n, a, chW, y, x, ny, nx)])
						sh := sigmoid(data[h.layout.RawOffset(n, a, chH, y, x, ny, nx)])
						obj := sigmoid(data[h.layout.RawOffset(n, a, chObj, y, x, ny, nx)])

						gx, gy := rec.cellAt(a, y, x)
						aw, ah := rec.anchorAt(a, y, x)

						box := images.CenterRect{
							CX: (sx*2 - 0.5 + gx) * stride,
							CY: (sy*2 - 0.5 + gy) * stride,
							W:  (sw * 2) * (sw * 2) * aw,
							H:  (sh * 2) * (sh * 2) * ah,
						}

						var classes []float32
						if h.layout.Classes > 0 {
							classes = make([]float32, h.layout.Classes)
							for c := range classes {
								classes[c] = sigmoid(data[h.layout.RawOffset(n, a, chClass+c, y, x, ny, nx)])
							}
						}
						var attrs []float32
						if h.layout.Attributes > 0 {
							attrs = make([]float32, h.layout.Attributes)
							for c := range attrs {
								attrs[c] = sigmoid(data[h.layout.RawOffset(n, a, attrOffset+c, y, x, ny, nx)])
							}
						}

						decoded[n] = append(decoded[n], postprocess.Candidate{
							Box:        box,
							Objectness: obj,
							Classes:    classes,
							Attributes: attrs,
						})
					}
				}
			}
		}
	}

	return decoded, nil
}

// Reshape restructures each raw (batch, anchors*channels, ny, nx) output
// into (batch, anchors, ny, nx, channels) with the activations untouched,
// the layout training losses consume. This is the training-mode
// passthrough: no sigmoid, no grid work, no candidates.
func (h *Head) Reshape(outputs []*tensor.Dense) ([]*tensor.Dense, error) {
	batch, err := h.validate(outputs)
	if err != nil {
		return nil, err
	}

	cp := h.layout.ChannelsPerAnchor()
	reshaped := make([]*tensor.Dense, len(outputs))
	for i, out := range outputs {
		data, err := floats(i, out)
		if err != nil {
			return nil, err
		}
		shape := out.Shape()
		ny, nx := shape[2], shape[3]

		dst := make([]float32, len(data))
		for n := 0; n < batch; n++ {
			for a := 0; a < h.layout.Anchors; a++ {
				for y := 0; y < ny; y++ {
					for x := 0; x < nx; x++ {
						for ch := 0; ch < cp; ch++ {
							dst[h.layout.cellOffset(n, a, ch, y, x, ny, nx)] =
								data[h.layout.RawOffset(n, a, ch, y, x, ny, nx)]
						}
					}
				}
			}
		}
		reshaped[i] = tensor.New(
			tensor.WithShape(batch, h.layout.Anchors, ny, nx, cp),
			tensor.WithBacking(dst),
		)
	}
	return reshaped, nil
}

// Export applies the output sigmoid to every channel and flattens each
// scale's spatial dimensions, producing (batch, anchors*channels, ny*nx)
// tensors. Conversion pipelines consume these together with ScaledAnchors
// to port the head to runtimes that re-implement the box decode.
func (h *Head) Export(outputs []*tensor.Dense) ([]*tensor.Dense, error) {
	batch, err := h.validate(outputs)
	if err != nil {
		return nil, err
	}

	exported := make([]*tensor.Dense, len(outputs))
	for i, out := range outputs {
		data, err := floats(i, out)
		if err != nil {
			return nil, err
		}
		shape := out.Shape()
		ny, nx := shape[2], shape[3]

		// A contiguous (N, C, H, W) block flattens to (N, C, H*W) without
		// reordering; only the values change.
		dst := make([]float32, len(data))
		for j, v := range data {
			dst[j] = sigmoid(v)
		}
		exported[i] = tensor.New(
			tensor.WithShape(batch, h.layout.TotalChannels(), ny*nx),
			tensor.WithBacking(dst),
		)
	}
	return exported, nil
}
