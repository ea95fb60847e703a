// Package facecap - Anchor-based face detection with per-face quality
// attributes.
//
// The facecap family runs a YOLO-style backbone over three feature scales
// and decodes each scale against fixed anchor boxes. Beyond the usual box,
// objectness, and class channels, every anchor carries quality attribute
// channels (yaw, pitch, blur, occlusion in the v2 models) that downstream
// capture logic uses to pick the best crop of a face across a track.
//
// The package implements the network head only: channel layout, grid and
// anchor-grid caching, the three output modes (Decode for inference,
// Reshape for training, Export for porting), and the scoring of decoded
// faces. Backbone execution lives in the inference package.
package facecap

import (
	"fmt"

	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-facecap/models/model"
	"github.com/nvr-ai/go-facecap/models/postprocess"
)

// Anchor is one prior box size in input-image pixels. The head scales it
// by the owning scale's stride before use.
type Anchor struct {
	W float32 `json:"w" yaml:"w"`
	H float32 `json:"h" yaml:"h"`
}

// DefaultStrides returns the downsampling factor of each facecap output
// scale, finest first.
func DefaultStrides() []int { return []int{8, 16, 32} }

// DefaultAnchors returns the facecap v2 anchor boxes, three per scale,
// matched to DefaultStrides.
func DefaultAnchors() [][]Anchor {
	return [][]Anchor{
		{{W: 10, H: 13}, {W: 16, H: 30}, {W: 33, H: 23}},
		{{W: 30, H: 61}, {W: 62, H: 45}, {W: 59, H: 119}},
		{{W: 116, H: 90}, {W: 156, H: 198}, {W: 373, H: 326}},
	}
}

// Options configures a facecap head.
type Options struct {
	// Strides are the per-scale downsampling factors.
	Strides []int `json:"strides" yaml:"strides"`
	// Anchors are the per-scale prior boxes. Every scale must carry the
	// same number of anchors.
	Anchors [][]Anchor `json:"anchors" yaml:"anchors"`
	// NumClasses is the number of class channels per anchor. Zero is
	// valid: single-purpose heads encode "face" in objectness alone.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// NumAttributes is the number of quality attribute channels per
	// anchor.
	NumAttributes int `json:"num_attributes" yaml:"num_attributes"`
	// Activation selects the backbone activation baked into the exported
	// network. Empty means ActivationReLU6.
	Activation ActivationKind `json:"activation" yaml:"activation"`
}

// IsOptions marks Options as model options.
func (Options) IsOptions() {}

// DefaultOptions returns the facecap v2 head configuration: three scales,
// one face class, and the four quality attributes.
func DefaultOptions() Options {
	return Options{
		Strides:       DefaultStrides(),
		Anchors:       DefaultAnchors(),
		NumClasses:    1,
		NumAttributes: 4,
		Activation:    ActivationReLU6,
	}
}

// Validate checks every structural invariant of the options. A head
// constructed from options that pass Validate cannot fail on
// configuration grounds afterwards.
func (o Options) Validate() error {
	if len(o.Strides) == 0 {
		return &postprocess.ConfigurationError{
			Field:  "strides",
			Reason: "at least one scale is required",
		}
	}
	for i, s := range o.Strides {
		if s <= 0 {
			return &postprocess.ConfigurationError{
				Field:  "strides",
				Reason: fmt.Sprintf("stride %d at scale %d must be positive", s, i),
			}
		}
	}
	if len(o.Anchors) != len(o.Strides) {
		return &postprocess.ConfigurationError{
			Field:  "anchors",
			Reason: fmt.Sprintf("%d anchor groups for %d strides", len(o.Anchors), len(o.Strides)),
		}
	}
	na := len(o.Anchors[0])
	for i, group := range o.Anchors {
		if len(group) == 0 {
			return &postprocess.ConfigurationError{
				Field:  "anchors",
				Reason: fmt.Sprintf("scale %d has no anchors", i),
			}
		}
		if len(group) != na {
			return &postprocess.ConfigurationError{
				Field:  "anchors",
				Reason: fmt.Sprintf("scale %d has %d anchors, scale 0 has %d; counts must match", i, len(group), na),
			}
		}
		for j, a := range group {
			if a.W <= 0 || a.H <= 0 {
				return &postprocess.ConfigurationError{
					Field:  "anchors",
					Reason: fmt.Sprintf("anchor %d at scale %d must have positive width and height", j, i),
				}
			}
		}
	}
	if o.NumClasses < 0 {
		return &postprocess.ConfigurationError{
			Field:  "num_classes",
			Reason: "must not be negative",
		}
	}
	if o.NumAttributes < 0 {
		return &postprocess.ConfigurationError{
			Field:  "num_attributes",
			Reason: "must not be negative",
		}
	}
	if o.Activation != "" {
		if err := o.Activation.Valid(); err != nil {
			return err
		}
	}
	return nil
}

// Facecap is a facecap family model: the decode head plus the suppression
// settings and tensor bindings it runs with.
type Facecap struct {
	base model.BaseModel
	head *Head
	nms  *postprocess.NMSConfig
}

var _ model.Model = (*Facecap)(nil)

// NewModel constructs a facecap model. Missing args fall back to the v2
// defaults: DefaultOptions for the head, DefaultNMSConfig for
// suppression, "images" for the input binding, and p3/p4/p5 style names
// for the outputs, one per scale.
func NewModel(args model.NewModelArgs) (*Facecap, error) {
	opts := DefaultOptions()
	if args.Options != nil {
		var ok bool
		opts, ok = args.Options.(Options)
		if !ok {
			return nil, &postprocess.ConfigurationError{
				Field:  "options",
				Reason: fmt.Sprintf("facecap models take facecap.Options, got %T", args.Options),
			}
		}
	}
	head, err := NewHead(opts)
	if err != nil {
		return nil, err
	}

	nms := args.NMS
	if nms == nil {
		nms = postprocess.DefaultNMSConfig()
	}
	if err := nms.Validate(); err != nil {
		return nil, err
	}

	inputs := args.Inputs
	if len(inputs) == 0 {
		inputs = []string{"images"}
	}
	outputs := args.Outputs
	if len(outputs) == 0 {
		outputs = make([]string, len(opts.Strides))
		for i := range outputs {
			outputs[i] = fmt.Sprintf("p%d", i+3)
		}
	}
	if len(outputs) != len(opts.Strides) {
		return nil, &postprocess.ConfigurationError{
			Field:  "outputs",
			Reason: fmt.Sprintf("%d output names for %d scales", len(outputs), len(opts.Strides)),
		}
	}

	name := args.Name
	if name == "" {
		name = model.ModelNameFacecapV2N
	}

	return &Facecap{
		base: model.BaseModel{
			Name:    name,
			Family:  model.ModelFamilyFacecap,
			Path:    args.Path,
			Inputs:  inputs,
			Outputs: outputs,
		},
		head: head,
		nms:  nms,
	}, nil
}

// Options returns the model's identity and tensor bindings.
func (f *Facecap) Options() model.BaseModel { return f.base }

// Head exposes the decode head for callers that run the stages
// separately, such as export tooling and the benchmark harness.
func (f *Facecap) Head() *Head { return f.head }

// NMS returns the model's suppression settings.
func (f *Facecap) NMS() *postprocess.NMSConfig { return f.nms }

// PostProcess decodes the raw per-scale outputs and suppresses the
// decoded candidates, returning final detections per batch item.
func (f *Facecap) PostProcess(outputs []*tensor.Dense) ([][]postprocess.Result, error) {
	batches, err := f.head.Decode(outputs)
	if err != nil {
		return nil, err
	}
	results := make([][]postprocess.Result, len(batches))
	for i, candidates := range batches {
		results[i] = postprocess.Suppress(candidates, f.nms)
	}
	return results, nil
}
