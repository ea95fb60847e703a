// Package benchmark - Functionality for running benchmarks.
package benchmark

import (
	"sort"
	"time"
)

// PerformanceMetrics captures detailed performance data for one scenario.
type PerformanceMetrics struct {
	Scenario          Scenario      `json:"scenario"`
	Timestamp         time.Time     `json:"timestamp"`
	TotalDuration     time.Duration `json:"total_duration"`
	DecodeStats       LatencyStats  `json:"decode_stats"`
	SuppressStats     LatencyStats  `json:"suppress_stats"`
	RunsPerSecond     float64       `json:"runs_per_second"`
	CandidatesPerRun  int           `json:"candidates_per_run"`
	AverageDetections float64       `json:"average_detections"`
	MemoryStats       MemoryMetrics `json:"memory_stats"`
	CPUStats          CPUMetrics    `json:"cpu_stats"`
}

// LatencyStats summarizes one pipeline stage's measured durations.
type LatencyStats struct {
	Count int           `json:"count"`
	Min   time.Duration `json:"min"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P90   time.Duration `json:"p90"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}

// newLatencyStats reduces raw per-iteration durations to summary stats.
func newLatencyStats(timings []time.Duration) LatencyStats {
	if len(timings) == 0 {
		return LatencyStats{}
	}

	sorted := make([]time.Duration, len(timings))
	copy(sorted, timings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	percentile := func(p float64) time.Duration {
		idx := int(p * float64(len(sorted)-1))
		return sorted[idx]
	}

	return LatencyStats{
		Count: len(sorted),
		Min:   sorted[0],
		Mean:  total / time.Duration(len(sorted)),
		P50:   percentile(0.50),
		P90:   percentile(0.90),
		P99:   percentile(0.99),
		Max:   sorted[len(sorted)-1],
	}
}

// MemoryMetrics captures memory usage statistics.
type MemoryMetrics struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	SysBytes        uint64 `json:"sys_bytes"`
	NumGC           uint32 `json:"num_gc"`
	HeapAllocBytes  uint64 `json:"heap_alloc_bytes"`
	HeapSysBytes    uint64 `json:"heap_sys_bytes"`
}

// CPUMetrics captures CPU usage statistics.
type CPUMetrics struct {
	NumCPU     int `json:"num_cpu"`
	GoMaxProcs int `json:"go_max_procs"`
}
