// Package detectors - Face detection pipeline on ONNX Runtime.
package detectors

import (
	"image"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-facecap/inference/providers"
	"github.com/nvr-ai/go-facecap/models/model"
)

// Config represents the configuration for a face detector.
//
// It binds a model file to an execution provider and carries the pipeline
// thresholds applied on top of the model's own suppression defaults.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string `json:"model_path" yaml:"model_path"`

	// ModelName selects the model variant.
	ModelName model.Name `json:"model_name" yaml:"model_name"`

	// Provider is the execution provider configuration.
	Provider providers.Config `json:"provider" yaml:"provider"`

	// InputShape defines the model input dimensions (width, height).
	InputShape image.Point `json:"input_shape" yaml:"input_shape"`

	// KeepAspectRatio letterboxes frames instead of stretching them.
	KeepAspectRatio bool `json:"keep_aspect_ratio" yaml:"keep_aspect_ratio"`

	// ConfidenceThreshold filters detections below this confidence level.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// NMSThreshold controls Non-Maximum Suppression IoU threshold.
	NMSThreshold float32 `json:"nms_threshold" yaml:"nms_threshold"`

	// MaxDetections caps the number of reported faces per frame.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
}

// DefaultConfig returns a production-ready configuration with sensible defaults
//
// This configuration is optimized for typical face capture workloads with
// balanced precision and recall characteristics.
//
// Returns:
//   - Config: Production-ready configuration
//
// @example
// config := DefaultConfig()
// config.ModelPath = "path/to/facecap-v2-n.onnx"
// detector, err := NewDetector(provider, faceModel, config)
func DefaultConfig() Config {
	return Config{
		ModelName:           model.ModelNameFacecapV2N,
		Provider:            providers.DefaultConfig(),
		InputShape:          image.Point{X: 640, Y: 640},
		KeepAspectRatio:     true,
		ConfidenceThreshold: 0.5,
		NMSThreshold:        0.7,
		MaxDetections:       300,
	}
}

// LoadConfig reads a detector configuration from a YAML file, applying
// defaults for any field the file omits.
//
// Arguments:
//   - path: Path to the YAML configuration file.
//
// Returns:
//   - Config: The loaded configuration.
//   - error: An error if the file cannot be read, parsed, or validated.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrap(err, "reading detector config")
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, errors.Wrapf(err, "parsing detector config %s", path)
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Validate checks the configuration for values the pipeline cannot run with.
//
// Returns:
//   - error: An error naming the first invalid field, nil otherwise.
func (c Config) Validate() error {
	if c.InputShape.X <= 0 || c.InputShape.Y <= 0 {
		return errors.Errorf(
			"input_shape must be positive, got %dx%d", c.InputShape.X, c.InputShape.Y)
	}
	if !(c.ConfidenceThreshold >= 0 && c.ConfidenceThreshold <= 1) {
		return errors.Errorf(
			"confidence_threshold must be within [0, 1], got %v", c.ConfidenceThreshold)
	}
	if !(c.NMSThreshold >= 0 && c.NMSThreshold <= 1) {
		return errors.Errorf(
			"nms_threshold must be within [0, 1], got %v", c.NMSThreshold)
	}
	if c.MaxDetections <= 0 {
		return errors.Errorf(
			"max_detections must be positive, got %d", c.MaxDetections)
	}
	return nil
}
