package images

import (
	"image"
	"math"
	"testing"
)

// TestIoU_Correctness validates the IoU implementation against known test cases
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		r1       Rect
		r2       Rect
		expected float32
		epsilon  float32
	}{
		{
			name:     "Identical rectangles",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{0, 0, 100, 100},
			expected: 1.0,
			epsilon:  0.001,
		},
		{
			name:     "No overlap",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{200, 200, 300, 300},
			expected: 0.0,
			epsilon:  0.001,
		},
		{
			name:     "Touching edges",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{100, 0, 200, 100},
			expected: 0.0,
			epsilon:  0.001,
		},
		{
			name:     "Half overlap",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{50, 50, 150, 150},
			expected: 0.142857, // intersection=2500, union=10000+10000-2500=17500, iou=1/7
			epsilon:  0.001,
		},
		{
			name:     "Small overlap",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{90, 90, 190, 190},
			expected: 0.005025, // intersection=100, union=19900
			epsilon:  0.001,
		},
		{
			name:     "One inside other",
			r1:       Rect{0, 0, 100, 100},
			r2:       Rect{25, 25, 75, 75},
			expected: 0.25, // intersection=2500, union=10000
			epsilon:  0.001,
		},
		{
			name:     "Subpixel boxes",
			r1:       Rect{0, 0, 1.5, 1.5},
			r2:       Rect{0.5, 0.5, 2, 2},
			expected: 0.2857, // intersection=1, union=2.25+2.25-1=3.5
			epsilon:  0.001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			if math.Abs(float64(result-tt.expected)) > float64(tt.epsilon) {
				t.Errorf("IoU() = %v, expected %v (±%v)", result, tt.expected, tt.epsilon)
			}

			// Symmetry: IoU(A, B) should equal IoU(B, A)
			reverse := CalculateIoU(tt.r2, tt.r1)
			if math.Abs(float64(result-reverse)) > float64(tt.epsilon) {
				t.Errorf("IoU not symmetric: IoU(A,B)=%v != IoU(B,A)=%v", result, reverse)
			}
		})
	}
}

// TestIoU_vs_ImageRectangle compares our implementation against image.Rectangle
// for integer-valued boxes.
func TestIoU_vs_ImageRectangle(t *testing.T) {
	testCases := []struct {
		name string
		r1   Rect
		r2   Rect
	}{
		{"No overlap", Rect{0, 0, 100, 100}, Rect{200, 200, 300, 300}},
		{"Partial overlap", Rect{0, 0, 100, 100}, Rect{50, 50, 150, 150}},
		{"Full overlap", Rect{50, 50, 150, 150}, Rect{50, 50, 150, 150}},
		{"One inside other", Rect{0, 0, 100, 100}, Rect{25, 25, 75, 75}},
		{"Large boxes", Rect{0, 0, 1920, 1080}, Rect{960, 540, 1920, 1080}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			customResult := CalculateIoU(tc.r1, tc.r2)

			ir1 := image.Rect(int(tc.r1.X1), int(tc.r1.Y1), int(tc.r1.X2), int(tc.r1.Y2))
			ir2 := image.Rect(int(tc.r2.X1), int(tc.r2.Y1), int(tc.r2.X2), int(tc.r2.Y2))
			imageResult := imageRectangleIoU(ir1, ir2)

			if math.Abs(float64(customResult-imageResult)) > 0.0001 {
				t.Errorf("Results differ: custom=%v, image.Rectangle=%v", customResult, imageResult)
			}
		})
	}
}

// imageRectangleIoU implements IoU using Go's standard library image.Rectangle
func imageRectangleIoU(r1, r2 image.Rectangle) float32 {
	intersect := r1.Intersect(r2)
	if intersect.Empty() {
		return 0.0
	}

	intersectArea := intersect.Dx() * intersect.Dy()
	r1Area := r1.Dx() * r1.Dy()
	r2Area := r2.Dx() * r2.Dy()
	union := r1Area + r2Area - intersectArea

	return float32(intersectArea) / float32(union)
}

// TestIoU_EdgeCases tests degenerate and boundary inputs. None may panic,
// produce NaN, or leave [0,1].
func TestIoU_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		r1   Rect
		r2   Rect
	}{
		{"Zero area rectangle 1", Rect{0, 0, 0, 0}, Rect{0, 0, 100, 100}},
		{"Zero area rectangle 2", Rect{0, 0, 100, 100}, Rect{50, 50, 50, 50}},
		{"Both zero area, apart", Rect{0, 0, 0, 0}, Rect{10, 10, 10, 10}},
		{"Both zero area, coincident", Rect{10, 10, 10, 10}, Rect{10, 10, 10, 10}},
		{"Inverted box", Rect{100, 100, 0, 0}, Rect{0, 0, 100, 100}},
		{"Negative coordinates", Rect{-100, -100, 0, 0}, Rect{-50, -50, 50, 50}},
		{"Single pixel", Rect{0, 0, 1, 1}, Rect{0, 0, 1, 1}},
		{"Very large coordinates", Rect{0, 0, 999999, 999999}, Rect{500000, 500000, 999999, 999999}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			if math.IsNaN(float64(result)) {
				t.Errorf("IoU returned NaN")
			}
			if result < 0.0 || result > 1.0 {
				t.Errorf("IoU result %v is outside valid range [0.0, 1.0]", result)
			}

			reverseResult := CalculateIoU(tt.r2, tt.r1)
			if math.Abs(float64(result-reverseResult)) > 0.0001 {
				t.Errorf("IoU not symmetric on edge case: %v vs %v", result, reverseResult)
			}
		})
	}
}

// TestCenterCornerRoundTrip verifies that converting a box from center form
// to corners and back reproduces the original within float tolerance.
func TestCenterCornerRoundTrip(t *testing.T) {
	boxes := []CenterRect{
		{CX: 50, CY: 50, W: 100, H: 100},
		{CX: 0, CY: 0, W: 10, H: 6},
		{CX: 13.25, CY: 811.5, W: 3.5, H: 97},
		{CX: 1920, CY: 1080, W: 0.25, H: 0.75},
		{CX: -12.5, CY: 4, W: 7, H: 7},
	}

	const epsilon = 1e-4
	for _, box := range boxes {
		got := box.ToCorners().ToCenter()
		if math.Abs(float64(got.CX-box.CX)) > epsilon ||
			math.Abs(float64(got.CY-box.CY)) > epsilon ||
			math.Abs(float64(got.W-box.W)) > epsilon ||
			math.Abs(float64(got.H-box.H)) > epsilon {
			t.Errorf("round trip changed box: %+v -> %+v", box, got)
		}
	}

	// And the reverse direction.
	rects := []Rect{
		{0, 0, 100, 100},
		{5.5, 2.25, 9.75, 3},
		{-20, -20, 20, 20},
	}
	for _, r := range rects {
		got := r.ToCenter().ToCorners()
		if math.Abs(float64(got.X1-r.X1)) > epsilon ||
			math.Abs(float64(got.Y1-r.Y1)) > epsilon ||
			math.Abs(float64(got.X2-r.X2)) > epsilon ||
			math.Abs(float64(got.Y2-r.Y2)) > epsilon {
			t.Errorf("round trip changed rect: %+v -> %+v", r, got)
		}
	}
}

// TestCenterToCorners_KnownValues pins the exact corner arithmetic.
func TestCenterToCorners_KnownValues(t *testing.T) {
	c := CenterRect{CX: 100, CY: 60, W: 40, H: 20}
	r := c.ToCorners()
	want := Rect{X1: 80, Y1: 50, X2: 120, Y2: 70}
	if r != want {
		t.Errorf("ToCorners() = %+v, want %+v", r, want)
	}
}

func TestRectArea_Degenerate(t *testing.T) {
	cases := []struct {
		name string
		r    Rect
		want float32
	}{
		{"normal", Rect{0, 0, 10, 10}, 100},
		{"zero width", Rect{5, 0, 5, 10}, 0},
		{"zero height", Rect{0, 5, 10, 5}, 0},
		{"inverted", Rect{10, 10, 0, 0}, 0},
	}
	for _, tc := range cases {
		if got := tc.r.Area(); got != tc.want {
			t.Errorf("%s: Area() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRectClip(t *testing.T) {
	r := Rect{-10, -5, 700, 500}
	got := r.Clip(640, 480)
	want := Rect{0, 0, 640, 480}
	if got != want {
		t.Errorf("Clip() = %+v, want %+v", got, want)
	}

	// Fully inside the frame passes through unchanged.
	inside := Rect{10, 10, 20, 20}
	if got := inside.Clip(640, 480); got != inside {
		t.Errorf("Clip() altered interior box: %+v", got)
	}
}

func TestRectToImageRect(t *testing.T) {
	r := Rect{10.4, 10.6, 99.5, 100.2}
	got := r.ToImageRect()
	want := image.Rect(10, 11, 100, 100)
	if got != want {
		t.Errorf("ToImageRect() = %v, want %v", got, want)
	}
}
