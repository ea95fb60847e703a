// Package providers - Session configuration and presets.
package providers

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
)

// Config represents the configuration for an inference session.
//
// It selects the execution provider backend, carries the provider-specific
// options, and holds the optimization settings applied to the session.
type Config struct {
	// Backend specifies the execution provider backend to use.
	Backend ProviderBackend `json:"backend" yaml:"backend"`

	// Options contains provider-specific configuration options.
	Options ProviderOptions `json:"-" yaml:"-"`

	// Optimization holds graph and threading settings for the session.
	Optimization *OptimizationConfig `json:"optimization,omitempty" yaml:"optimization,omitempty"`

	// MinShape defines minimum allowed input dimensions for dynamic shapes.
	MinShape image.Point `json:"min_shape" yaml:"min_shape"`

	// MaxShape defines maximum allowed input dimensions for dynamic shapes.
	MaxShape image.Point `json:"max_shape" yaml:"max_shape"`

	// Warmup defines how many inference runs to perform during initialization.
	Warmup int `json:"warmup" yaml:"warmup"`
}

// ExecutionProviderConfig contains configuration for a specific execution
// provider inside an OptimizationConfig.
type ExecutionProviderConfig struct {
	// Provider specifies which execution provider to use.
	Provider ProviderBackend `json:"provider" yaml:"provider"`

	// Options contains provider-specific configuration options.
	Options map[string]string `json:"options" yaml:"options"`

	// Priority determines the order in which providers are tried (higher = first).
	Priority int `json:"priority" yaml:"priority"`

	// Enabled toggles whether this provider should be used.
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// NewConfig validates and completes a session configuration.
//
// Arguments:
//   - args: The configuration to validate.
//
// Returns:
//   - *Config: The validated configuration with defaults filled in.
//   - error: An error if the configuration is invalid.
func NewConfig(args Config) (*Config, error) {
	if args.Backend == "" {
		return nil, fmt.Errorf("backend is required")
	}

	if args.MaxShape.X < 320 {
		return nil, fmt.Errorf(
			"max_shape.x must be greater than or equal to 320, got %d",
			args.MaxShape.X,
		)
	}
	if args.MaxShape.Y < 320 {
		return nil, fmt.Errorf(
			"max_shape.y must be greater than or equal to 320, got %d",
			args.MaxShape.Y,
		)
	}
	if args.MinShape.X < 320 {
		return nil, fmt.Errorf(
			"min_shape.x must be greater than or equal to 320, got %d",
			args.MinShape.X,
		)
	}
	if args.MinShape.Y < 320 {
		return nil, fmt.Errorf(
			"min_shape.y must be greater than or equal to 320, got %d",
			args.MinShape.Y,
		)
	}

	config := args
	if config.Optimization == nil {
		optimization := DefaultOptimizationConfig()
		config.Optimization = &optimization
	}
	return &config, nil
}

// DefaultConfig returns a production-ready configuration with sensible defaults.
//
// This configuration is optimized for typical detection workloads with
// balanced performance and resource usage characteristics.
//
// Returns:
//   - Config: Production-ready configuration
//
// @example
// config := DefaultConfig()
// provider, err := NewBackendProvider(config.Backend)
func DefaultConfig() Config {
	optimization := DefaultOptimizationConfig()

	return Config{
		Backend:      CPUProviderBackend,
		Optimization: &optimization,
		MinShape:     image.Point{X: 320, Y: 320},
		MaxShape:     image.Point{X: 1024, Y: 1024},
		Warmup:       3,
	}
}

// DevelopmentConfig returns a configuration optimized for development and
// debugging.
//
// This configuration enables profiling and disables graph rewrites so that
// traces map back to the original model graph.
//
// Returns:
//   - Config: Development-optimized configuration
func DevelopmentConfig() Config {
	config := DefaultConfig()
	config.Warmup = 5
	config.Optimization.UseProfilingOptions = true
	config.Optimization.ProfilingOutputPath = "./profiling_results"
	config.Optimization.GraphOptimizationLevel = ort.GraphOptimizationLevelDisableAll
	return config
}

// HighPerformanceConfig returns a configuration optimized for maximum
// throughput.
//
// This configuration prioritizes inference speed over memory usage and
// initialization time, suitable for high-load environments.
//
// Returns:
//   - Config: High-performance optimized configuration
func HighPerformanceConfig() Config {
	config := DefaultConfig()
	config.Warmup = 10

	config.Optimization.GraphOptimizationLevel = ort.GraphOptimizationLevelEnableExtended
	config.Optimization.ExecutionMode = ort.ExecutionModeParallel
	config.Optimization.EnableMemoryOptimization = true
	config.Optimization.EnableGraphFusion = true

	// Enable every accelerated provider the platform ships with.
	for i := range config.Optimization.ExecutionProviders {
		config.Optimization.ExecutionProviders[i].Enabled = true
	}

	return config
}

// LowLatencyConfig returns a configuration optimized for minimal inference
// latency.
//
// This configuration prioritizes predictable response time over throughput,
// suitable for real-time applications.
//
// Returns:
//   - Config: Low-latency optimized configuration
func LowLatencyConfig() Config {
	config := DefaultConfig()

	// More warmup for consistent performance.
	config.Warmup = 15

	// Sequential execution for predictable timing.
	config.Optimization.ExecutionMode = ort.ExecutionModeSequential
	config.Optimization.IntraOpNumThreads = 1
	config.Optimization.InterOpNumThreads = 1

	// Disable memory pattern optimization for consistent timing.
	config.Optimization.EnableMemoryPattern = false

	return config
}
