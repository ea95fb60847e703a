package benchmark

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nvr-ai/go-facecap/models/postprocess"
)

// Resolution represents input dimensions for benchmarking.
type Resolution struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Name   string `json:"name"`
}

// CommonResolutions are the input sizes the sweeps cover. All are
// multiples of the coarsest head stride.
var CommonResolutions = []Resolution{
	{Width: 224, Height: 224, Name: "224x224"},
	{Width: 416, Height: 416, Name: "416x416"},
	{Width: 512, Height: 512, Name: "512x512"},
	{Width: 640, Height: 640, Name: "640x640"},
	{Width: 1024, Height: 1024, Name: "1024x1024"},
}

// Scenario defines a specific head-evaluation configuration.
//
// CandidateDensity is the fraction of grid cells whose synthetic
// objectness is pushed above the confidence gate; it controls how much
// work suppression sees independent of decode, which always touches
// every cell.
type Scenario struct {
	Name             string     `json:"name"              yaml:"name"`
	Resolution       Resolution `json:"resolution"        yaml:"resolution"`
	CandidateDensity float64    `json:"candidate_density" yaml:"candidate_density"`
	Iterations       int        `json:"iterations"        yaml:"iterations"`
	WarmupRuns       int        `json:"warmup_runs"       yaml:"warmup_runs"`
	Seed             int64      `json:"seed"              yaml:"seed"`
}

// Validate checks that the scenario can be executed.
func (s Scenario) Validate() error {
	if s.Resolution.Width <= 0 || s.Resolution.Height <= 0 {
		return fmt.Errorf("scenario %s: resolution must be positive, got %dx%d",
			s.Name, s.Resolution.Width, s.Resolution.Height)
	}
	if s.Resolution.Width%32 != 0 || s.Resolution.Height%32 != 0 {
		return fmt.Errorf("scenario %s: resolution %dx%d must be a multiple of 32",
			s.Name, s.Resolution.Width, s.Resolution.Height)
	}
	if s.CandidateDensity < 0 || s.CandidateDensity > 1 {
		return fmt.Errorf("scenario %s: candidate density %f must be in [0, 1]",
			s.Name, s.CandidateDensity)
	}
	if s.Iterations <= 0 {
		return fmt.Errorf("scenario %s: iterations must be positive", s.Name)
	}
	if s.WarmupRuns < 0 {
		return fmt.Errorf("scenario %s: warmup runs must not be negative", s.Name)
	}
	return nil
}

// ScenarioBuilder helps build test scenarios with fluent API.
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder.
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:             name,
			Resolution:       Resolution{Width: 640, Height: 640, Name: "640x640"},
			CandidateDensity: 0.01,
			Iterations:       100,
			WarmupRuns:       10,
			Seed:             1,
		},
	}
}

// WithResolution sets the input resolution.
func (sb *ScenarioBuilder) WithResolution(width, height int) *ScenarioBuilder {
	sb.scenario.Resolution = Resolution{
		Width:  width,
		Height: height,
		Name:   fmt.Sprintf("%dx%d", width, height),
	}
	return sb
}

// WithCandidateDensity sets the fraction of cells that pass the
// confidence gate.
func (sb *ScenarioBuilder) WithCandidateDensity(density float64) *ScenarioBuilder {
	sb.scenario.CandidateDensity = density
	return sb
}

// WithIterations sets the number of test iterations.
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of warmup runs.
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// WithSeed sets the synthetic tensor seed.
func (sb *ScenarioBuilder) WithSeed(seed int64) *ScenarioBuilder {
	sb.scenario.Seed = seed
	return sb
}

// Build returns the configured test scenario.
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ScenarioSet represents a collection of related test scenarios.
type ScenarioSet struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Scenarios   []Scenario `json:"scenarios"`
}

// PredefinedScenarios contains common benchmark scenario sets.
type PredefinedScenarios struct{}

// GetQuickScenarios returns a smaller set for quick testing.
func (ps *PredefinedScenarios) GetQuickScenarios() *ScenarioSet {
	scenarios := make([]Scenario, 0)

	quickResolutions := []Resolution{
		{Width: 416, Height: 416, Name: "416x416"},
		{Width: 640, Height: 640, Name: "640x640"},
	}
	for _, resolution := range quickResolutions {
		scenario := NewScenarioBuilder(fmt.Sprintf("quick_%s", resolution.Name)).
			WithResolution(resolution.Width, resolution.Height).
			WithIterations(50).
			WithWarmupRuns(5).
			Build()

		scenarios = append(scenarios, scenario)
	}

	return &ScenarioSet{
		Name:        "Quick Performance Test",
		Description: "Quick test with common configurations",
		Scenarios:   scenarios,
	}
}

// GetComprehensiveScenarios returns every resolution and density
// combination.
func (ps *PredefinedScenarios) GetComprehensiveScenarios() *ScenarioSet {
	scenarios := make([]Scenario, 0)

	densities := []float64{0.001, 0.01, 0.05}
	for _, resolution := range CommonResolutions {
		for _, density := range densities {
			scenario := NewScenarioBuilder(fmt.Sprintf("%s_density_%g", resolution.Name, density)).
				WithResolution(resolution.Width, resolution.Height).
				WithCandidateDensity(density).
				WithIterations(100).
				WithWarmupRuns(10).
				Build()

			scenarios = append(scenarios, scenario)
		}
	}

	return &ScenarioSet{
		Name:        "Comprehensive Performance Test",
		Description: "Tests all combinations of input resolutions and candidate densities",
		Scenarios:   scenarios,
	}
}

// GetResolutionComparisonScenarios tests different resolutions at the
// same candidate density.
func (ps *PredefinedScenarios) GetResolutionComparisonScenarios(density float64) *ScenarioSet {
	scenarios := make([]Scenario, 0)

	for _, resolution := range CommonResolutions {
		scenario := NewScenarioBuilder(fmt.Sprintf("resolution_%s", resolution.Name)).
			WithResolution(resolution.Width, resolution.Height).
			WithCandidateDensity(density).
			WithIterations(100).
			WithWarmupRuns(10).
			Build()

		scenarios = append(scenarios, scenario)
	}

	return &ScenarioSet{
		Name:        "Resolution Comparison",
		Description: fmt.Sprintf("Compares input resolutions at density %g", density),
		Scenarios:   scenarios,
	}
}

// GetDensityComparisonScenarios tests suppression load at a fixed
// resolution.
func (ps *PredefinedScenarios) GetDensityComparisonScenarios(resolution Resolution) *ScenarioSet {
	scenarios := make([]Scenario, 0)

	densities := []float64{0.0, 0.001, 0.01, 0.05, 0.2}
	for _, density := range densities {
		scenario := NewScenarioBuilder(fmt.Sprintf("density_%s_%g", resolution.Name, density)).
			WithResolution(resolution.Width, resolution.Height).
			WithCandidateDensity(density).
			WithIterations(100).
			WithWarmupRuns(10).
			Build()

		scenarios = append(scenarios, scenario)
	}

	return &ScenarioSet{
		Name:        fmt.Sprintf("Density Comparison @ %s", resolution.Name),
		Description: fmt.Sprintf("Compares candidate densities at %s input", resolution.Name),
		Scenarios:   scenarios,
	}
}

// SaveScenarioSet saves a scenario set to a JSON file.
func SaveScenarioSet(scenarioSet *ScenarioSet, filename string) error {
	data, err := json.MarshalIndent(scenarioSet, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal scenario set: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scenario file: %w", err)
	}

	return nil
}

// LoadScenarioSet loads a scenario set from a JSON file.
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenarioSet ScenarioSet
	if err := json.Unmarshal(data, &scenarioSet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenario set: %w", err)
	}

	return &scenarioSet, nil
}

// Config represents the overall benchmark configuration.
type Config struct {
	OutputDir           string  `json:"output_dir"`
	ConfidenceThreshold float32 `json:"confidence_threshold"`
	IoUThreshold        float32 `json:"iou_threshold"`
	TimeoutSeconds      int     `json:"timeout_seconds"`
	PrintTimings        bool    `json:"print_timings"`
}

// DefaultConfig returns a default benchmark configuration using the
// head-evaluation suppression defaults.
func DefaultConfig() *Config {
	nms := postprocess.DefaultNMSConfig()
	return &Config{
		OutputDir:           "./benchmark_results",
		ConfidenceThreshold: nms.ConfidenceThreshold,
		IoUThreshold:        nms.IoUThreshold,
		TimeoutSeconds:      3600,
		PrintTimings:        true,
	}
}

// SaveConfig saves the benchmark configuration to a JSON file.
func (bc *Config) SaveConfig(filename string) error {
	data, err := json.MarshalIndent(bc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadConfig loads benchmark configuration from a JSON file.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return config, nil
}
