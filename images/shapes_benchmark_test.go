package images

import (
	"math/rand"
	"testing"
)

// Benchmark cases covering the IoU paths NMS exercises most: the early-out
// for disjoint boxes and the full calculation for overlapping ones.

// BenchmarkIoU_NonOverlapping tests rectangles that don't overlap. This is
// the fastest path as it returns as soon as the intersection collapses.
func BenchmarkIoU_NonOverlapping(b *testing.B) {
	rect1 := Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	rect2 := Rect{X1: 200, Y1: 200, X2: 300, Y2: 300}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(rect1, rect2)
	}
}

// BenchmarkIoU_PartialOverlap tests the common detection scenario with
// moderate IoU, exercising the full calculation.
func BenchmarkIoU_PartialOverlap(b *testing.B) {
	rect1 := Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	rect2 := Rect{X1: 50, Y1: 50, X2: 150, Y2: 150}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(rect1, rect2)
	}
}

// BenchmarkIoU_RandomPairs simulates a varied NMS workload with
// pre-generated random rectangle pairs.
func BenchmarkIoU_RandomPairs(b *testing.B) {
	rng := rand.New(rand.NewSource(42))
	pairs := make([]struct{ r1, r2 Rect }, 1000)
	for i := range pairs {
		x1 := float32(rng.Intn(1920))
		y1 := float32(rng.Intn(1080))
		w1 := float32(rng.Intn(300) + 20)
		h1 := float32(rng.Intn(300) + 20)
		x2 := float32(rng.Intn(1920))
		y2 := float32(rng.Intn(1080))
		w2 := float32(rng.Intn(300) + 20)
		h2 := float32(rng.Intn(300) + 20)

		pairs[i].r1 = Rect{X1: x1, Y1: y1, X2: x1 + w1, Y2: y1 + h1}
		pairs[i].r2 = Rect{X1: x2, Y1: y2, X2: x2 + w2, Y2: y2 + h2}
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		pair := pairs[i%len(pairs)]
		_ = CalculateIoU(pair.r1, pair.r2)
	}
}

// BenchmarkIoU_BatchProcessing compares every detection against every other,
// the quadratic pattern greedy NMS produces in the worst case.
func BenchmarkIoU_BatchProcessing(b *testing.B) {
	const numDetections = 100
	rng := rand.New(rand.NewSource(7))
	detections := make([]Rect, numDetections)

	clusterCenters := [][2]int{{500, 300}, {1200, 600}, {300, 800}}
	for i := range detections {
		center := clusterCenters[i%len(clusterCenters)]
		cx := float32(center[0] + rng.Intn(400) - 200)
		cy := float32(center[1] + rng.Intn(400) - 200)
		w := float32(rng.Intn(200) + 50)
		h := float32(rng.Intn(200) + 50)
		detections[i] = CenterRect{CX: cx, CY: cy, W: w, H: h}.ToCorners()
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		var totalIoU float32
		for j := range detections {
			for k := j + 1; k < len(detections); k++ {
				totalIoU += CalculateIoU(detections[j], detections[k])
			}
		}
		_ = totalIoU
	}
}
