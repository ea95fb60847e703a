// Package images - Motion gating for capture pipelines, using OpenCV (via
// gocv).
//
// Running a detector on every frame of a live stream wastes most of its
// budget on static scenes. MotionGate keeps a persistent MOG2 background
// model and answers one question per frame: did enough change to be worth a
// detector pass? The pipeline is the classic one:
//
//  1. Background subtraction (MOG2).
//  2. Thresholding to a binary motion mask.
//  3. Dilation to connect fragmented blobs.
//  4. External contour extraction and an area gate.
//
// Usage:
//
//	gate := images.NewMotionGate(images.DefaultMotionGateConfig())
//	defer gate.Close()
//
//	for {
//	    frame := getNextFrame()
//	    if gate.Triggered(frame) {
//	        runDetector(frame)
//	    }
//	}
//
// Note: You must call Close() when finished to release native resources.
package images

import (
	"image"

	"gocv.io/x/gocv"
)

// MotionGateConfig tunes the sensitivity of the gate.
type MotionGateConfig struct {
	// Pixel intensity threshold applied to the foreground mask.
	Threshold float32 `json:"threshold" yaml:"threshold"`
	// Contour area, in pixels, below which motion is ignored.
	MinimumArea float64 `json:"minimum_area" yaml:"minimum_area"`
	// Side length of the square dilation kernel.
	KernelSize int `json:"kernel_size" yaml:"kernel_size"`
}

// DefaultMotionGateConfig returns settings tuned for indoor face capture:
// sensitive enough for a person walking through the frame, coarse enough to
// ignore compression noise.
func DefaultMotionGateConfig() MotionGateConfig {
	return MotionGateConfig{
		Threshold:   25,
		MinimumArea: 3000,
		KernelSize:  3,
	}
}

// MotionGate decides whether a frame contains enough motion to run
// detection on. It is stateful: the MOG2 background model adapts across
// frames, so one gate serves one stream. Always call Close() when done to
// release native resources.
type MotionGate struct {
	config     MotionGateConfig
	delta      gocv.Mat // Foreground mask from background subtraction
	mask       gocv.Mat // Binary mask after thresholding and dilation
	kernel     gocv.Mat
	subtractor gocv.BackgroundSubtractorMOG2
}

// NewMotionGate constructs a gate with an initialized background model and
// dilation kernel. It is ready for Triggered() immediately; the first few
// frames will read as motion while the background model warms up.
func NewMotionGate(config MotionGateConfig) *MotionGate {
	size := config.KernelSize
	if size <= 0 {
		size = DefaultMotionGateConfig().KernelSize
	}
	return &MotionGate{
		config:     config,
		delta:      gocv.NewMat(),
		mask:       gocv.NewMat(),
		kernel:     gocv.GetStructuringElement(gocv.MorphRect, image.Pt(size, size)),
		subtractor: gocv.NewBackgroundSubtractorMOG2(),
	}
}

// update runs subtraction, thresholding and dilation, leaving the binary
// motion mask in m.mask.
func (m *MotionGate) update(frame gocv.Mat) error {
	if err := m.subtractor.Apply(frame, &m.delta); err != nil {
		return err
	}
	gocv.Threshold(m.delta, &m.mask, m.config.Threshold, 255, gocv.ThresholdBinary)
	return gocv.Dilate(m.mask, &m.mask, m.kernel)
}

// Regions returns the bounding rectangles of motion blobs in the frame that
// clear the minimum-area gate, in contour discovery order.
//
// Arguments:
//   - frame: The input frame to process.
//
// Returns:
//   - []image.Rectangle: One rectangle per qualifying motion blob.
func (m *MotionGate) Regions(frame gocv.Mat) []image.Rectangle {
	if err := m.update(frame); err != nil {
		return nil
	}
	contours := gocv.FindContours(m.mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var regions []image.Rectangle
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		if gocv.ContourArea(contour) >= m.config.MinimumArea {
			regions = append(regions, gocv.BoundingRect(contour))
		}
	}
	return regions
}

// Triggered reports whether the frame contains at least one motion blob
// larger than the configured minimum area.
func (m *MotionGate) Triggered(frame gocv.Mat) bool {
	return len(m.Regions(frame)) > 0
}

// Close releases all OpenCV native resources used by the gate.
func (m *MotionGate) Close() {
	m.delta.Close()
	m.mask.Close()
	m.kernel.Close()
	m.subtractor.Close()
}
