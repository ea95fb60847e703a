// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-facecap/images"
)

// ScoreMode selects how a candidate's effective confidence is computed
// before filtering and ranking.
type ScoreMode string

const (
	// ScoreObjectness ranks candidates by their objectness alone.
	ScoreObjectness ScoreMode = "objectness"
	// ScoreObjectnessClass ranks candidates by objectness multiplied by the
	// best class score. This is the default: for single-class face heads the
	// class channel acts as a learned sharpener on the objectness.
	ScoreObjectnessClass ScoreMode = "objectness*class"
)

// classOffset shifts boxes by class id during class-aware suppression so
// boxes of different classes can never overlap. Must exceed any supported
// input side length.
const classOffset float32 = 4096

// NMSConfig defines parameters for candidate filtering and Non-Maximum
// Suppression.
type NMSConfig struct {
	// Candidates whose effective confidence is not above this are dropped
	// before suppression. Range [0,1].
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// Overlap above which the lower-scored box is suppressed. Range [0,1].
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// If true, boxes suppress each other regardless of class.
	Agnostic bool `json:"agnostic" yaml:"agnostic"`
	// Upper bound on returned detections.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
	// How effective confidence is computed. Empty selects
	// ScoreObjectnessClass.
	ScoreMode ScoreMode `json:"score_mode" yaml:"score_mode"`
}

// DefaultNMSConfig returns the evaluation defaults of the facecap head:
// a near-zero confidence floor, IoU 0.6, and at most 300 faces per image.
func DefaultNMSConfig() *NMSConfig {
	return &NMSConfig{
		ConfidenceThreshold: 0.01,
		IoUThreshold:        0.6,
		Agnostic:            false,
		MaxDetections:       300,
		ScoreMode:           ScoreObjectnessClass,
	}
}

// Validate checks the configuration, returning a *ConfigurationError for
// the first malformed field. Call it at construction; Suppress assumes a
// validated config and never re-checks mid-call.
func (c *NMSConfig) Validate() error {
	// The comparisons are written so NaN fails them too.
	if !(c.ConfidenceThreshold >= 0 && c.ConfidenceThreshold <= 1) {
		return &ConfigurationError{
			Field:  "confidence_threshold",
			Reason: "must be within [0, 1]",
		}
	}
	if !(c.IoUThreshold >= 0 && c.IoUThreshold <= 1) {
		return &ConfigurationError{
			Field:  "iou_threshold",
			Reason: "must be within [0, 1]",
		}
	}
	if c.MaxDetections < 1 {
		return &ConfigurationError{
			Field:  "max_detections",
			Reason: "must be at least 1",
		}
	}
	switch c.ScoreMode {
	case "", ScoreObjectness, ScoreObjectnessClass:
	default:
		return &ConfigurationError{
			Field:  "score_mode",
			Reason: "unknown mode " + string(c.ScoreMode),
		}
	}
	return nil
}

// mode resolves the empty ScoreMode to its default.
func (c *NMSConfig) mode() ScoreMode {
	if c.ScoreMode == "" {
		return ScoreObjectnessClass
	}
	return c.ScoreMode
}

// Suppress turns decoded candidates into final detections:
//
//  1. Compute each candidate's effective confidence per the score mode and
//     drop those not above the confidence threshold. All dropped means an
//     empty result, immediately.
//  2. Attach the argmax class id and convert the box to corner form.
//  3. Unless agnostic, offset each box by classOffset * class id so boxes
//     of different classes never suppress each other.
//  4. Stable-sort by effective confidence descending. Ties keep candidate
//     order, which together with the deterministic decode order makes the
//     whole pipeline reproducible.
//  5. Greedily keep the best box and suppress every remaining box whose
//     IoU with it exceeds the IoU threshold, until MaxDetections are kept.
//
// Returned results are in selection order (best first) and carry the
// original un-offset coordinates, the effective confidence, the class id,
// and the candidate's attribute scores.
//
// Suppress is stateless and safe for concurrent use with distinct inputs.
// NaN or Inf scores and coordinates are a precondition violation; behavior
// on such inputs is undefined.
//
// Arguments:
//   - candidates: Decoded predictions for one image, in decode order.
//   - config: A validated suppression config.
//
// Returns:
//   - Final detections, best first. Nil when nothing survives the filter.
func Suppress(candidates []Candidate, config *NMSConfig) []Result {
	if len(candidates) == 0 {
		return nil
	}

	mode := config.mode()

	// Filter and prepare. The suppression box is kept separate from the
	// reported box so the class offset never leaks into results.
	type entry struct {
		box    images.Rect
		result Result
	}
	entries := make([]entry, 0, len(candidates))
	for _, c := range candidates {
		classID, classScore := argmaxClass(c.Classes)
		score := c.Objectness
		if mode == ScoreObjectnessClass {
			score *= classScore
		}
		if score <= config.ConfidenceThreshold {
			continue
		}

		corners := c.Box.ToCorners()
		box := corners
		if !config.Agnostic {
			shift := float32(classID) * classOffset
			box.X1 += shift
			box.Y1 += shift
			box.X2 += shift
			box.Y2 += shift
		}
		entries = append(entries, entry{
			box: box,
			result: Result{
				Box:        corners,
				Score:      score,
				Class:      classID,
				Attributes: c.Attributes,
			},
		})
	}
	if len(entries) == 0 {
		return nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].result.Score > entries[j].result.Score
	})

	maxDetections := config.MaxDetections
	if maxDetections <= 0 {
		// Only reachable with an unvalidated config; treat as uncapped.
		maxDetections = len(entries)
	}

	kept := make([]Result, 0, min(maxDetections, len(entries)))
	used := make([]bool, len(entries))
	for i := 0; i < len(entries) && len(kept) < maxDetections; i++ {
		if used[i] {
			continue
		}
		kept = append(kept, entries[i].result)
		used[i] = true

		for j := i + 1; j < len(entries); j++ {
			if used[j] {
				continue
			}
			if images.CalculateIoU(entries[i].box, entries[j].box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return kept
}

// argmaxClass returns the index and score of the best class, first index
// winning ties. Candidates with no class channels act as a single implicit
// class with score 1, so objectness*class degenerates to plain objectness.
func argmaxClass(scores []float32) (int, float32) {
	if len(scores) == 0 {
		return 0, 1
	}
	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}
	return best, scores[best]
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression on
// already-scored detections. Suppress covers the full candidate pipeline;
// this primitive is for re-suppressing merged result sets, such as
// detections gathered from multiple crops of one frame.
//
// Arguments:
//   - detections: Slice of detections sorted by descending confidence.
//   - config: Supplies IoUThreshold and Agnostic. When not agnostic, only
//     detections of the same class suppress each other.
//
// Returns:
//   - Filtered slice of detections.
func ApplyGreedyNMS(detections []Result, config *NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	filtered := make([]Result, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := detections[i]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if !config.Agnostic && anchor.Class != detections[j].Class {
				continue
			}
			if images.CalculateIoU(anchor.Box, detections[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
