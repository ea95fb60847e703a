// Package postprocess - Postprocessing utilities for models.
package postprocess

import "github.com/nvr-ai/go-facecap/images"

// Candidate is one decoded anchor prediction before suppression: a
// center-form box plus the sigmoided objectness, class and attribute
// channels. Candidates arrive in decode order and Suppress relies on that
// order to break score ties deterministically.
type Candidate struct {
	// The predicted box in center form, in input-image pixels.
	Box images.CenterRect
	// The sigmoided object-presence score.
	Objectness float32
	// Per-class scores. Usually length 1 for face heads.
	Classes []float32
	// Per-attribute quality scores. Empty for heads without attributes.
	Attributes []float32
}

// Result represents a single detection result.
type Result struct {
	// The bounding box of the result, in corner form.
	Box images.Rect
	// The confidence score of the result.
	Score float32
	// The predicted class index of the result.
	Class int
	// Attribute scores carried through from the winning candidate.
	Attributes []float32
}
