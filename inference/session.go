// Package inference - Profiled inference sessions.
package inference

import (
	"fmt"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-facecap/inference/providers"
)

// ProfiledSession wraps an ONNX session with performance profiling capabilities
//
// This wrapper provides detailed performance metrics for optimization and debugging,
// tracking inference times and input shape utilization.
type ProfiledSession struct {
	session          *ort.AdvancedSession
	config           providers.OptimizationConfig
	shapes           *providers.DynamicShapeOptimizer
	inputName        string
	inputShape       []int64
	inferenceCount   int64
	totalTime        float64
	mu               sync.RWMutex
	profilingEnabled bool
}

// NewProfiledSession creates a new profiled ONNX session with optimization
//
// Arguments:
//   - modelPath: Path to the ONNX model file
//   - inputNames: Names of input tensors
//   - outputNames: Names of output tensors
//   - inputTensors: Input tensor objects
//   - outputTensors: Output tensor objects
//   - config: Optimization configuration
//
// Returns:
//   - *ProfiledSession: Configured profiled session
//   - error: Session creation error if any
func NewProfiledSession(
	modelPath string,
	inputNames []string,
	outputNames []string,
	inputTensors []ort.ArbitraryTensor,
	outputTensors []ort.ArbitraryTensor,
	config providers.OptimizationConfig,
) (*ProfiledSession, error) {
	if err := providers.InitializeRuntime(); err != nil {
		return nil, err
	}

	options, err := providers.OptimizedSessionOptions(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create optimized session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(
		modelPath,
		inputNames,
		outputNames,
		inputTensors,
		outputTensors,
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	ps := &ProfiledSession{
		session:          session,
		config:           config,
		shapes:           providers.NewDynamicShapeOptimizer(config.ShapeProfiles),
		profilingEnabled: config.UseProfilingOptions,
	}
	if len(inputNames) > 0 {
		ps.inputName = inputNames[0]
	}
	if len(inputTensors) > 0 {
		ps.inputShape = append([]int64(nil), inputTensors[0].GetShape()...)
	}

	return ps, nil
}

// Run executes the model with performance tracking
//
// Returns:
//   - error: Execution error if any
func (ps *ProfiledSession) Run() error {
	start := time.Now()

	err := ps.session.Run()

	duration := float64(time.Since(start).Nanoseconds()) / 1e6 // Convert to milliseconds

	ps.mu.Lock()
	ps.inferenceCount++
	ps.totalTime += duration
	ps.mu.Unlock()

	if ps.inputShape != nil {
		ps.shapes.ObserveShape(ps.inputName, ps.inputShape, duration)
	}

	return err
}

// GetPerformanceMetrics returns comprehensive performance statistics
//
// Returns:
//   - map[string]interface{}: Performance metrics and statistics
func (ps *ProfiledSession) GetPerformanceMetrics() map[string]interface{} {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	metrics := map[string]interface{}{
		"inference_count":    ps.inferenceCount,
		"total_time_ms":      ps.totalTime,
		"profiling_enabled":  ps.profilingEnabled,
		"optimization_level": ps.config.GraphOptimizationLevel,
	}

	if ps.inferenceCount > 0 {
		metrics["average_time_ms"] = ps.totalTime / float64(ps.inferenceCount)
		metrics["throughput_fps"] = 1000.0 / (ps.totalTime / float64(ps.inferenceCount))
	}

	return metrics
}

// GetShapeStats returns input-shape utilization statistics.
//
// Returns:
//   - map[string]interface{}: Shape observation statistics
func (ps *ProfiledSession) GetShapeStats() map[string]interface{} {
	return ps.shapes.GetOptimizationStats()
}

// Destroy releases all session resources
func (ps *ProfiledSession) Destroy() {
	if ps.session != nil {
		ps.session.Destroy()
		ps.session = nil
	}
}

// ResetMetrics clears all performance counters
func (ps *ProfiledSession) ResetMetrics() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.inferenceCount = 0
	ps.totalTime = 0.0
}
