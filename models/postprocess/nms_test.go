package postprocess

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-facecap/images"
)

// cand builds a candidate at (cx,cy) with the given size, objectness and
// class scores.
func cand(cx, cy, w, h, obj float32, classes ...float32) Candidate {
	if classes == nil {
		classes = []float32{1}
	}
	return Candidate{
		Box:        images.CenterRect{CX: cx, CY: cy, W: w, H: h},
		Objectness: obj,
		Classes:    classes,
	}
}

func TestNMSConfigValidate(t *testing.T) {
	cases := []struct {
		name      string
		config    NMSConfig
		wantField string
	}{
		{
			name:   "defaults are valid",
			config: *DefaultNMSConfig(),
		},
		{
			name: "negative confidence",
			config: NMSConfig{
				ConfidenceThreshold: -0.1, IoUThreshold: 0.5, MaxDetections: 10,
			},
			wantField: "confidence_threshold",
		},
		{
			name: "confidence above one",
			config: NMSConfig{
				ConfidenceThreshold: 1.5, IoUThreshold: 0.5, MaxDetections: 10,
			},
			wantField: "confidence_threshold",
		},
		{
			name: "NaN confidence",
			config: NMSConfig{
				ConfidenceThreshold: float32(math.NaN()), IoUThreshold: 0.5, MaxDetections: 10,
			},
			wantField: "confidence_threshold",
		},
		{
			name: "iou above one",
			config: NMSConfig{
				ConfidenceThreshold: 0.5, IoUThreshold: 1.01, MaxDetections: 10,
			},
			wantField: "iou_threshold",
		},
		{
			name: "zero max detections",
			config: NMSConfig{
				ConfidenceThreshold: 0.5, IoUThreshold: 0.5, MaxDetections: 0,
			},
			wantField: "max_detections",
		},
		{
			name: "unknown score mode",
			config: NMSConfig{
				ConfidenceThreshold: 0.5, IoUThreshold: 0.5, MaxDetections: 10,
				ScoreMode: ScoreMode("softmax"),
			},
			wantField: "score_mode",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "expected *ConfigurationError, got %T", err)
			assert.Equal(t, tc.wantField, cfgErr.Field)
		})
	}
}

func TestSuppress_EmptyInput(t *testing.T) {
	assert.Nil(t, Suppress(nil, DefaultNMSConfig()))
	assert.Nil(t, Suppress([]Candidate{}, DefaultNMSConfig()))
}

func TestSuppress_AllBelowThreshold(t *testing.T) {
	config := &NMSConfig{ConfidenceThreshold: 0.5, IoUThreshold: 0.6, MaxDetections: 100}
	candidates := []Candidate{
		cand(100, 100, 50, 50, 0.2),
		cand(300, 300, 50, 50, 0.49),
		cand(500, 100, 50, 50, 0.1),
	}
	assert.Empty(t, Suppress(candidates, config))
}

func TestSuppress_SingleAboveThreshold(t *testing.T) {
	config := &NMSConfig{ConfidenceThreshold: 0.5, IoUThreshold: 0.6, MaxDetections: 100}
	results := Suppress([]Candidate{cand(100, 100, 50, 50, 0.9)}, config)

	require.Len(t, results, 1)
	assert.InDelta(t, 0.9, results[0].Score, 1e-5)
	assert.Equal(t, 0, results[0].Class)
	// Corner conversion of (100,100,50,50).
	assert.InDelta(t, 75, results[0].Box.X1, 1e-4)
	assert.InDelta(t, 75, results[0].Box.Y1, 1e-4)
	assert.InDelta(t, 125, results[0].Box.X2, 1e-4)
	assert.InDelta(t, 125, results[0].Box.Y2, 1e-4)
}

func TestSuppress_OverlappingPair(t *testing.T) {
	config := &NMSConfig{ConfidenceThreshold: 0.5, IoUThreshold: 0.6, MaxDetections: 100}
	// Two nearly coincident boxes: IoU well above 0.6.
	candidates := []Candidate{
		cand(100, 100, 50, 50, 0.8),
		cand(101, 100, 50, 50, 0.9),
	}
	results := Suppress(candidates, config)

	require.Len(t, results, 1)
	assert.InDelta(t, 0.9, results[0].Score, 1e-5, "the higher-scored box must win")
}

func TestSuppress_DisjointBoxesAllKept(t *testing.T) {
	config := &NMSConfig{ConfidenceThreshold: 0.5, IoUThreshold: 0.6, MaxDetections: 100}
	candidates := []Candidate{
		cand(100, 100, 40, 40, 0.9),
		cand(300, 100, 40, 40, 0.7),
		cand(100, 300, 40, 40, 0.8),
	}
	results := Suppress(candidates, config)

	require.Len(t, results, 3)
	// Selection order is best first.
	assert.InDelta(t, 0.9, results[0].Score, 1e-5)
	assert.InDelta(t, 0.8, results[1].Score, 1e-5)
	assert.InDelta(t, 0.7, results[2].Score, 1e-5)
}

func TestSuppress_ClassSeparation(t *testing.T) {
	// Identical boxes, different winning classes.
	candidates := []Candidate{
		cand(100, 100, 50, 50, 0.9, 0.95, 0.05),
		cand(100, 100, 50, 50, 0.85, 0.05, 0.95),
	}

	classAware := &NMSConfig{
		ConfidenceThreshold: 0.5, IoUThreshold: 0.6, MaxDetections: 100,
		ScoreMode: ScoreObjectness,
	}
	results := Suppress(candidates, classAware)
	require.Len(t, results, 2, "different classes must not suppress each other")
	assert.Equal(t, 0, results[0].Class)
	assert.Equal(t, 1, results[1].Class)

	agnostic := &NMSConfig{
		ConfidenceThreshold: 0.5, IoUThreshold: 0.6, MaxDetections: 100,
		Agnostic: true, ScoreMode: ScoreObjectness,
	}
	results = Suppress(candidates, agnostic)
	require.Len(t, results, 1, "agnostic mode suppresses across classes")
	assert.Equal(t, 0, results[0].Class)
}

func TestSuppress_OffsetNeverLeaks(t *testing.T) {
	// A class-1 candidate's suppression box is shifted by classOffset, but
	// the reported coordinates must be the original ones.
	config := &NMSConfig{ConfidenceThreshold: 0.5, IoUThreshold: 0.6, MaxDetections: 100}
	candidates := []Candidate{cand(100, 100, 50, 50, 0.9, 0.1, 0.9)}
	results := Suppress(candidates, config)

	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Class)
	assert.InDelta(t, 75, results[0].Box.X1, 1e-4)
	assert.InDelta(t, 125, results[0].Box.X2, 1e-4)
}

func TestSuppress_ScoreModes(t *testing.T) {
	// Objectness 0.9 but best class only 0.5: the product mode drops it at
	// threshold 0.6, the objectness mode keeps it.
	candidates := []Candidate{cand(100, 100, 50, 50, 0.9, 0.5)}

	productMode := &NMSConfig{
		ConfidenceThreshold: 0.6, IoUThreshold: 0.6, MaxDetections: 100,
		ScoreMode: ScoreObjectnessClass,
	}
	assert.Empty(t, Suppress(candidates, productMode))

	objMode := &NMSConfig{
		ConfidenceThreshold: 0.6, IoUThreshold: 0.6, MaxDetections: 100,
		ScoreMode: ScoreObjectness,
	}
	results := Suppress(candidates, objMode)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.9, results[0].Score, 1e-5)

	// Empty mode behaves as the product mode.
	defaultMode := &NMSConfig{
		ConfidenceThreshold: 0.6, IoUThreshold: 0.6, MaxDetections: 100,
	}
	assert.Empty(t, Suppress(candidates, defaultMode))
}

func TestSuppress_MaxDetectionsCap(t *testing.T) {
	config := &NMSConfig{ConfidenceThreshold: 0.1, IoUThreshold: 0.6, MaxDetections: 2}
	candidates := []Candidate{
		cand(100, 100, 40, 40, 0.9),
		cand(300, 100, 40, 40, 0.8),
		cand(500, 100, 40, 40, 0.7),
		cand(700, 100, 40, 40, 0.6),
	}
	results := Suppress(candidates, config)

	require.Len(t, results, 2)
	assert.InDelta(t, 0.9, results[0].Score, 1e-5)
	assert.InDelta(t, 0.8, results[1].Score, 1e-5)
}

func TestSuppress_TieBreakIsCandidateOrder(t *testing.T) {
	config := &NMSConfig{ConfidenceThreshold: 0.1, IoUThreshold: 0.6, MaxDetections: 100}
	// Equal scores, disjoint boxes: output order must follow input order.
	candidates := []Candidate{
		cand(100, 100, 40, 40, 0.75),
		cand(300, 100, 40, 40, 0.75),
		cand(500, 100, 40, 40, 0.75),
	}
	results := Suppress(candidates, config)

	require.Len(t, results, 3)
	assert.InDelta(t, 100, results[0].Box.ToCenter().CX, 1e-4)
	assert.InDelta(t, 300, results[1].Box.ToCenter().CX, 1e-4)
	assert.InDelta(t, 500, results[2].Box.ToCenter().CX, 1e-4)
}

// TestSuppress_Monotonicity checks the two threshold monotonicity
// properties: a higher confidence threshold never yields more detections,
// and a higher IoU threshold never yields fewer.
func TestSuppress_Monotonicity(t *testing.T) {
	candidates := []Candidate{
		cand(100, 100, 50, 50, 0.9),
		cand(110, 104, 52, 48, 0.82),
		cand(118, 96, 48, 50, 0.74),
		cand(300, 300, 60, 60, 0.66),
		cand(306, 306, 58, 62, 0.58),
		cand(520, 140, 40, 40, 0.5),
		cand(526, 138, 44, 38, 0.42),
		cand(700, 420, 80, 80, 0.34),
	}

	prevKept := len(candidates) + 1
	for _, conf := range []float32{0.0, 0.2, 0.4, 0.6, 0.8, 0.99} {
		config := &NMSConfig{
			ConfidenceThreshold: conf, IoUThreshold: 0.5, MaxDetections: 100,
			ScoreMode: ScoreObjectness,
		}
		kept := len(Suppress(candidates, config))
		assert.LessOrEqual(t, kept, prevKept,
			"raising confidence threshold to %v increased detections", conf)
		prevKept = kept
	}

	prevKept = -1
	for _, iou := range []float32{0.0, 0.2, 0.4, 0.6, 0.8, 1.0} {
		config := &NMSConfig{
			ConfidenceThreshold: 0.1, IoUThreshold: iou, MaxDetections: 100,
			ScoreMode: ScoreObjectness,
		}
		kept := len(Suppress(candidates, config))
		assert.GreaterOrEqual(t, kept, prevKept,
			"raising IoU threshold to %v decreased detections", iou)
		prevKept = kept
	}
}

func TestSuppress_Deterministic(t *testing.T) {
	candidates := []Candidate{
		cand(100, 100, 50, 50, 0.9, 0.8, 0.2),
		cand(104, 98, 48, 52, 0.85, 0.3, 0.7),
		cand(300, 300, 60, 60, 0.7, 0.9, 0.1),
		cand(302, 304, 62, 58, 0.7, 0.2, 0.8),
		cand(512, 512, 30, 30, 0.55, 0.5, 0.5),
	}
	config := DefaultNMSConfig()

	first := Suppress(candidates, config)
	for run := 0; run < 5; run++ {
		assert.Equal(t, first, Suppress(candidates, config))
	}
}

func TestSuppress_AttributesCarriedThrough(t *testing.T) {
	config := &NMSConfig{ConfidenceThreshold: 0.5, IoUThreshold: 0.6, MaxDetections: 100}
	c := cand(100, 100, 50, 50, 0.9)
	c.Attributes = []float32{0.7, 0.2, 0.9, 0.4}

	results := Suppress([]Candidate{c}, config)
	require.Len(t, results, 1)
	assert.Equal(t, []float32{0.7, 0.2, 0.9, 0.4}, results[0].Attributes)
}

func TestApplyGreedyNMS(t *testing.T) {
	config := &NMSConfig{IoUThreshold: 0.5, Agnostic: true}
	detections := []Result{
		{Box: images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}, Score: 0.9, Class: 0},
		{Box: images.Rect{X1: 5, Y1: 5, X2: 105, Y2: 105}, Score: 0.8, Class: 0},
		{Box: images.Rect{X1: 300, Y1: 300, X2: 400, Y2: 400}, Score: 0.7, Class: 0},
	}

	filtered := ApplyGreedyNMS(detections, config)
	require.Len(t, filtered, 2)
	assert.InDelta(t, 0.9, filtered[0].Score, 1e-5)
	assert.InDelta(t, 0.7, filtered[1].Score, 1e-5)
}

func TestApplyGreedyNMS_ClassAware(t *testing.T) {
	config := &NMSConfig{IoUThreshold: 0.5, Agnostic: false}
	detections := []Result{
		{Box: images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}, Score: 0.9, Class: 0},
		{Box: images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}, Score: 0.8, Class: 1},
	}

	filtered := ApplyGreedyNMS(detections, config)
	assert.Len(t, filtered, 2, "different classes must survive class-aware NMS")
}
