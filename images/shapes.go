// Package images - Image processing utilities
package images

import (
	"image"

	"github.com/chewxy/math32"
)

// Rect is a lightweight bounding box in corner form.
type Rect struct {
	// X2,Y2 are the far edge, so a box with X2 <= X1 or Y2 <= Y1 is
	// degenerate and has zero area.
	X1, Y1, X2, Y2 float32
}

// CenterRect is the same box in center form (center point plus width and
// height), the shape anchor heads predict before corner conversion.
type CenterRect struct {
	CX, CY, W, H float32
}

// ToCorners converts a center-form box to corner form:
//
//	x1 = cx - w/2, y1 = cy - h/2, x2 = cx + w/2, y2 = cy + h/2
func (c CenterRect) ToCorners() Rect {
	return Rect{
		X1: c.CX - c.W/2,
		Y1: c.CY - c.H/2,
		X2: c.CX + c.W/2,
		Y2: c.CY + c.H/2,
	}
}

// ToCenter converts a corner-form box back to center form. ToCorners and
// ToCenter are inverses of each other up to float rounding.
func (r Rect) ToCenter() CenterRect {
	return CenterRect{
		CX: (r.X1 + r.X2) / 2,
		CY: (r.Y1 + r.Y2) / 2,
		W:  r.X2 - r.X1,
		H:  r.Y2 - r.Y1,
	}
}

// Width returns the horizontal extent. Negative for malformed boxes.
func (r Rect) Width() float32 { return r.X2 - r.X1 }

// Height returns the vertical extent. Negative for malformed boxes.
func (r Rect) Height() float32 { return r.Y2 - r.Y1 }

// Area returns the box area. Degenerate boxes (non-positive extent in
// either dimension) have area 0.
func (r Rect) Area() float32 {
	w := r.Width()
	h := r.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Clip bounds the box to a frame of the given size, returning the part of
// the box that lies inside [0,width) x [0,height).
func (r Rect) Clip(width, height float32) Rect {
	return Rect{
		X1: min(max(r.X1, 0), width),
		Y1: min(max(r.Y1, 0), height),
		X2: min(max(r.X2, 0), width),
		Y2: min(max(r.Y2, 0), height),
	}
}

// ToImageRect rounds the box to an image.Rectangle for cropping and
// drawing. Callers should Clip first when the box may extend past the
// frame.
func (r Rect) ToImageRect() image.Rectangle {
	return image.Rect(
		int(math32.Round(r.X1)),
		int(math32.Round(r.Y1)),
		int(math32.Round(r.X2)),
		int(math32.Round(r.Y2)),
	)
}

// CalculateIoU computes the Intersection over Union of two boxes, the
// standard overlap metric in object detection.
//
// See also:
//   - http://ronny.rest/tutorials/module/localization_001/iou
//
// IoU is a number between 0.0 and 1.0 answering "how much do these two
// rectangles overlap?":
//
//	IoU = Area of Intersection / Area of Union
//
//	- 1.0 means the rectangles are identical.
//	- 0.0 means they do not overlap at all.
//
// Non-maximum suppression is built on this value: two detections whose IoU
// exceeds a threshold are treated as the same object, and the weaker one is
// discarded.
//
// The calculation runs in three steps:
//
//  1. Intersection. The overlap's top-left corner is the maximum of the two
//     top-left corners, and its bottom-right corner is the minimum of the two
//     bottom-right corners. If the resulting width or height is zero or
//     negative the rectangles do not overlap and the result is 0.0
//     immediately, which also keeps degenerate (zero-area) boxes from ever
//     reaching the division below.
//
//  2. Union, by inclusion-exclusion: Area(A) + Area(B) - Intersection. Adding
//     the areas alone would double-count the overlap.
//
//  3. Divide. A union of zero (possible only with degenerate inputs) returns
//     0.0 rather than NaN.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//
//	iouScore := CalculateIoU(rect1, rect2) // 25 / (100 + 100 - 25) = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return interArea / unionArea
}
