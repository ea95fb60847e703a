// Package inference - Inference engine interface and implementations.
package inference

import (
	"context"
	"errors"
	"image"

	"github.com/nvr-ai/go-facecap/inference/detectors"
	"github.com/nvr-ai/go-facecap/inference/providers"
	"github.com/nvr-ai/go-facecap/models"
	"github.com/nvr-ai/go-facecap/models/model"
)

// Engine defines the interface for face detection engines.
type Engine interface {
	Predict(ctx context.Context, img image.Image) ([]detectors.Detection, error)
	Type() EngineType
	Close() error
}

// EngineBuilder assembles an engine from its parts with a fluent API.
//
// Calls accumulate into the builder; the first error short-circuits the
// remaining steps and is reported by Build.
type EngineBuilder struct {
	provider providers.ExecutionProvider
	model    model.Model
	session  *providers.Session
	detector *detectors.Detector
	err      error
}

// NewEngineBuilder creates a new engine builder.
//
// Returns:
//   - *EngineBuilder: The engine builder.
//
// @example
//
//	engine, err := inference.NewEngineBuilder().
//	    WithProvider(providers.DefaultConfig()).
//	    WithModel(model.NewModelArgs{Path: "facecap-v2-n.onnx"}).
//	    WithDetector(detectors.DefaultConfig()).
//	    Build()
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{}
}

// WithProvider sets the execution provider for the engine.
//
// Arguments:
//   - args: The provider configuration.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithProvider(args providers.Config) *EngineBuilder {
	if b.HasError() {
		return b
	}

	var (
		provider providers.ExecutionProvider
		err      error
	)
	if args.Options != nil {
		provider, err = providers.NewProvider(args.Options)
	} else {
		provider, err = providers.NewBackendProvider(args.Backend)
	}
	if err != nil {
		b.err = err
		return b
	}
	b.provider = provider
	return b
}

// WithModel sets the model for the engine.
//
// Arguments:
//   - args: The model arguments.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithModel(args model.NewModelArgs) *EngineBuilder {
	if b.HasError() {
		return b
	}
	m, err := models.NewModel(args)
	if err != nil {
		b.err = err
		return b
	}
	b.model = m
	return b
}

// WithSession binds a raw session to the engine, for callers that drive
// the input and output tensors directly instead of going through a
// detector.
//
// Arguments:
//   - args: The session arguments.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithSession(args providers.NewSessionArgs) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if b.provider == nil {
		b.err = errors.New("provider must be configured before the session")
		return b
	}

	session, err := providers.NewSession(b.provider, args)
	if err != nil {
		b.err = err
		return b
	}
	b.session = session
	return b
}

// WithDetector sets the detector for the engine. The detector owns its
// session, built from the model's head and the detector configuration.
//
// Arguments:
//   - cfg: The detector configuration.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithDetector(cfg detectors.Config) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if b.provider == nil {
		b.err = errors.New("provider must be configured before the detector")
		return b
	}
	if b.model == nil {
		b.err = errors.New("model must be configured before the detector")
		return b
	}

	detector, err := detectors.NewDetector(b.provider, b.model, cfg)
	if err != nil {
		b.err = err
		return b
	}
	b.detector = detector
	return b
}

// HasError checks if the engine builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *EngineBuilder) HasError() bool {
	return b.err != nil
}

// engine implements the Engine interface.
type engine struct {
	provider providers.ExecutionProvider
	model    model.Model
	session  *providers.Session
	detector *detectors.Detector
}

// Predict detects faces in a frame.
//
// Arguments:
//   - ctx: The context for the prediction.
//   - img: The frame to detect faces in.
//
// Returns:
//   - []detectors.Detection: Detected faces in frame coordinates.
//   - error: The error if any.
func (e *engine) Predict(ctx context.Context, img image.Image) ([]detectors.Detection, error) {
	return e.detector.Predict(ctx, img)
}

// Type reports which engine runs the model. CoreML and OpenVINO are their
// own engines; every other backend executes through ONNX Runtime proper.
func (e *engine) Type() EngineType {
	switch e.provider.Backend() {
	case providers.CoreMLProviderBackend:
		return EngineCoreML
	case providers.OpenVINOProviderBackend:
		return EngineOpenVINO
	default:
		return EngineONNX
	}
}

// Close releases the engine's resources.
func (e *engine) Close() error {
	var err error
	if e.detector != nil {
		err = e.detector.Close()
	}
	if e.session != nil {
		if closeErr := e.session.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

// MustBuild builds the engine and panics if there is an error.
//
// Returns:
//   - Engine: The engine.
func (b *EngineBuilder) MustBuild() Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// Build builds the engine.
//
// Returns:
//   - Engine: The engine.
//   - error: The error if any.
func (b *EngineBuilder) Build() (Engine, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.provider == nil {
		return nil, errors.New("provider not configured")
	}
	if b.model == nil {
		return nil, errors.New("model not configured")
	}
	if b.detector == nil {
		return nil, errors.New("detector not configured")
	}

	return &engine{
		provider: b.provider,
		model:    b.model,
		session:  b.session,
		detector: b.detector,
	}, nil
}
