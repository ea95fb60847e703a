package facecap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-facecap/models/model"
	"github.com/nvr-ai/go-facecap/models/postprocess"
)

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		field  string
	}{
		{
			name:   "defaults are valid",
			mutate: func(o *Options) {},
		},
		{
			name:   "no strides",
			mutate: func(o *Options) { o.Strides = nil },
			field:  "strides",
		},
		{
			name:   "zero stride",
			mutate: func(o *Options) { o.Strides[1] = 0 },
			field:  "strides",
		},
		{
			name:   "anchor group count mismatch",
			mutate: func(o *Options) { o.Anchors = o.Anchors[:2] },
			field:  "anchors",
		},
		{
			name:   "empty anchor group",
			mutate: func(o *Options) { o.Anchors[0] = nil },
			field:  "anchors",
		},
		{
			name:   "uneven anchor groups",
			mutate: func(o *Options) { o.Anchors[2] = o.Anchors[2][:1] },
			field:  "anchors",
		},
		{
			name:   "non-positive anchor",
			mutate: func(o *Options) { o.Anchors[1][0].H = 0 },
			field:  "anchors",
		},
		{
			name:   "negative classes",
			mutate: func(o *Options) { o.NumClasses = -1 },
			field:  "num_classes",
		},
		{
			name:   "negative attributes",
			mutate: func(o *Options) { o.NumAttributes = -3 },
			field:  "num_attributes",
		},
		{
			name:   "unknown activation",
			mutate: func(o *Options) { o.Activation = "swish" },
			field:  "activation",
		},
		{
			name:   "empty activation is the default",
			mutate: func(o *Options) { o.Activation = "" },
		},
		{
			name:   "zero classes are valid",
			mutate: func(o *Options) { o.NumClasses = 0 },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			tc.mutate(&opts)
			err := opts.Validate()
			if tc.field == "" {
				require.NoError(t, err)
				return
			}
			var cfgErr *postprocess.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestActivationKind(t *testing.T) {
	for _, kind := range []ActivationKind{
		ActivationReLU6, ActivationReLU, ActivationLeakyReLU, ActivationHardswish,
	} {
		assert.NoError(t, kind.Valid(), string(kind))
	}

	var cfgErr *postprocess.ConfigurationError
	require.ErrorAs(t, ActivationKind("gelu").Valid(), &cfgErr)
	assert.Equal(t, "activation", cfgErr.Field)

	assert.Equal(t, float32(0), ActivationReLU6.Apply(-2))
	assert.Equal(t, float32(3), ActivationReLU6.Apply(3))
	assert.Equal(t, float32(6), ActivationReLU6.Apply(9))
	assert.Equal(t, float32(0), ActivationReLU.Apply(-1))
	assert.Equal(t, float32(7), ActivationReLU.Apply(7))
	assert.InDelta(t, -0.02, ActivationLeakyReLU.Apply(-2), 1e-6)
	assert.Equal(t, float32(0), ActivationHardswish.Apply(-3))
	assert.Equal(t, float32(6), ActivationHardswish.Apply(6))
	assert.InDelta(t, 0.666667, ActivationHardswish.Apply(1), 1e-5)
}

func TestNewModel_Defaults(t *testing.T) {
	m, err := NewModel(model.NewModelArgs{Path: "facecap-v2-n.onnx"})
	require.NoError(t, err)

	base := m.Options()
	assert.Equal(t, model.ModelNameFacecapV2N, base.Name)
	assert.Equal(t, model.ModelFamilyFacecap, base.Family)
	assert.Equal(t, "facecap-v2-n.onnx", base.Path)
	assert.Equal(t, []string{"images"}, base.Inputs)
	assert.Equal(t, []string{"p3", "p4", "p5"}, base.Outputs)

	require.NotNil(t, m.NMS())
	assert.Equal(t, float32(0.01), m.NMS().ConfidenceThreshold)
	assert.Equal(t, float32(0.6), m.NMS().IoUThreshold)

	assert.Equal(t, DefaultStrides(), m.Head().Strides())
	assert.Equal(t, "3 anchors x (5+1+4) channels", m.Head().Layout().String())
}

func TestNewModel_RejectsForeignOptions(t *testing.T) {
	type otherOptions struct{ model.Options }
	_, err := NewModel(model.NewModelArgs{Options: otherOptions{}})

	var cfgErr *postprocess.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "options", cfgErr.Field)
}

func TestNewModel_RejectsInvalidNMS(t *testing.T) {
	_, err := NewModel(model.NewModelArgs{
		NMS: &postprocess.NMSConfig{
			ConfidenceThreshold: 2,
			IoUThreshold:        0.5,
			MaxDetections:       10,
		},
	})

	var cfgErr *postprocess.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestNewModel_RejectsOutputCountMismatch(t *testing.T) {
	_, err := NewModel(model.NewModelArgs{
		Outputs: []string{"p3", "p4"},
	})

	var cfgErr *postprocess.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "outputs", cfgErr.Field)
}

func TestPostProcess_EndToEnd(t *testing.T) {
	m, err := NewModel(model.NewModelArgs{
		Options: Options{
			Strides:       []int{8},
			Anchors:       [][]Anchor{{{W: 10, H: 13}}},
			NumClasses:    1,
			NumAttributes: 2,
		},
		NMS: &postprocess.NMSConfig{
			ConfidenceThreshold: 0.6,
			IoUThreshold:        0.5,
			MaxDetections:       10,
		},
	})
	require.NoError(t, err)

	l := m.Head().Layout()
	data := make([]float32, l.TotalChannels()*2*2)
	// Background cells decode to objectness*class = 0.25 and fall below
	// the 0.6 confidence threshold. One boosted cell survives.
	data[l.RawOffset(0, 0, chObj, 1, 1, 2, 2)] = logit(0.95)
	data[l.RawOffset(0, 0, chClass, 1, 1, 2, 2)] = logit(0.9)
	data[l.RawOffset(0, 0, l.AttributeOffset(), 1, 1, 2, 2)] = logit(0.8)

	out := tensor.New(tensor.WithShape(1, l.TotalChannels(), 2, 2), tensor.WithBacking(data))
	results, err := m.PostProcess([]*tensor.Dense{out})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0], 1)

	face := results[0][0]
	assert.InDelta(t, 0.95*0.9, face.Score, 1e-3)
	assert.Equal(t, 0, face.Class)
	require.Len(t, face.Attributes, 2)
	assert.InDelta(t, 0.8, face.Attributes[0], 1e-4)

	// Cell (1,1) at stride 8 centers on (12,12) with the anchor's scaled
	// size, reported in corner form.
	assert.InDelta(t, 12.0-40.0, face.Box.X1, 1e-2)
	assert.InDelta(t, 12.0-52.0, face.Box.Y1, 1e-2)
	assert.InDelta(t, 12.0+40.0, face.Box.X2, 1e-2)
	assert.InDelta(t, 12.0+52.0, face.Box.Y2, 1e-2)
}

func TestPostProcess_PropagatesShapeErrors(t *testing.T) {
	m, err := NewModel(model.NewModelArgs{})
	require.NoError(t, err)

	_, err = m.PostProcess(nil)
	var shapeErr *postprocess.ShapeMismatchError
	require.ErrorAs(t, err, &shapeErr)
}
