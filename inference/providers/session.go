// Package providers - Inference sessions.
package providers

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// InitializeRuntime loads the native ONNX Runtime library and initializes
// the environment. Safe to call from every session constructor; the native
// layer is set up once per process.
//
// Returns:
//   - error: An error if the shared library is missing or initialization fails.
func InitializeRuntime() error {
	runtimeOnce.Do(func() {
		libPath := GetSharedLibPath()
		if _, err := os.Stat(libPath); os.IsNotExist(err) {
			runtimeErr = fmt.Errorf("ONNX Runtime library not found at %s: %w", libPath, err)
			return
		}

		// Point ONNX Runtime to the exact shared library path (overrides default search).
		ort.SetSharedLibraryPath(libPath)

		// Initialize the ONNX Runtime environment (native layer setup).
		if err := ort.InitializeEnvironment(); err != nil {
			runtimeErr = fmt.Errorf("error initializing ORT environment: %w", err)
		}
	})
	return runtimeErr
}

// NewSessionArgs represents the arguments for creating a new detector session.
type NewSessionArgs struct {
	// The path to the ONNX model file.
	ModelPath string
	// The input node name expected by the model.
	InputName string
	// The output node names expected by the model, one per detection scale.
	OutputNames []string
	// The input tensor shape, [batch, channels, height, width].
	InputShape []int64
	// The output tensor shapes, one per detection scale.
	OutputShapes [][]int64
	// Optimization settings applied to the session. Nil uses defaults.
	Optimization *OptimizationConfig
}

// Session represents a model session from the onnxruntime.
//
// The session owns one preallocated input tensor and one output tensor per
// detection scale. Callers fill the input via Input.GetData, call Run, and
// read the per-scale outputs via OutputTensors.
type Session struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Outputs []*ort.Tensor[float32]

	outputShapes [][]int64
}

// NewSession creates a new ONNX detector session.
//
// This function creates a new ONNX Runtime session with preallocated input
// and output tensors, sets up session options, and execution providers (EPs).
//
// Order of operations:
//  1. Library path check: Ensures native runtime is accessible.
//  2. Environment setup: Required to prepare ONNX Runtime internals.
//  3. Tensor allocation: Prepares fixed-shape buffers for input/output data.
//  4. Session options: Controls performance and hardware acceleration
//     (threading, optimization level).
//  5. Execution providers: Enables GPU or optimized CPU paths if configured
//     (e.g., CoreML, OpenVINO, CUDA).
//  6. Session creation: Loads model and binds resources, creating the
//     runnable inference engine.
//
// Arguments:
//   - provider: The execution provider for the session.
//   - args: The arguments for the session.
//
// Returns:
//   - *Session: Wrapped Session struct that holds the native session and tensors.
//   - error: An error if the session creation fails.
func NewSession(provider ExecutionProvider, args NewSessionArgs) (*Session, error) {
	if err := InitializeRuntime(); err != nil {
		return nil, err
	}
	if len(args.InputShape) != 4 {
		return nil, fmt.Errorf("input shape must have 4 dimensions, got %d", len(args.InputShape))
	}
	if len(args.OutputShapes) != len(args.OutputNames) {
		return nil, fmt.Errorf(
			"output shape count %d does not match output name count %d",
			len(args.OutputShapes), len(args.OutputNames),
		)
	}

	// Allocate the input tensor following the common deep learning format
	// [batch, channels, height, width]. The shape is copied, and is no
	// longer needed after this function returns.
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(args.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	// Allocate one output tensor per detection scale. Dimensions depend on
	// the head layout: [batch, anchors*channels, gridH, gridW].
	outputs := make([]*ort.Tensor[float32], 0, len(args.OutputShapes))
	destroyAll := func() {
		input.Destroy()
		for _, output := range outputs {
			output.Destroy()
		}
	}
	for _, shape := range args.OutputShapes {
		output, err := ort.NewEmptyTensor[float32](ort.NewShape(shape...))
		if err != nil {
			destroyAll()
			return nil, fmt.Errorf("error creating output tensor: %w", err)
		}
		outputs = append(outputs, output)
	}

	// Create session options that control execution behavior and optimizations.
	optimization := DefaultOptimizationConfig()
	if args.Optimization != nil {
		optimization = *args.Optimization
	}
	options, err := ort.NewSessionOptions()
	if err != nil {
		destroyAll()
		return nil, fmt.Errorf("error creating ORT session options: %w", err)
	}
	defer options.Destroy()

	options.SetIntraOpNumThreads(optimization.IntraOpNumThreads)
	options.SetInterOpNumThreads(optimization.InterOpNumThreads)
	options.SetExecutionMode(optimization.ExecutionMode)
	// Enables advanced graph rewrites (e.g., fusion, constant folding) to
	// improve performance during graph loading.
	options.SetGraphOptimizationLevel(optimization.GraphOptimizationLevel)

	// Execution Providers (EPs) let ONNX Runtime leverage specialized
	// hardware or optimized libraries. Proper EP setup can dramatically
	// accelerate inference.
	switch provider.Backend() {
	case CoreMLProviderBackend:
		err = options.AppendExecutionProviderCoreML(0)
		if err != nil {
			destroyAll()
			return nil, fmt.Errorf("error enabling CoreML: %w", err)
		}
	case OpenVINOProviderBackend:
		opts, ok := provider.Options().(OpenVINOOptions)
		if !ok {
			destroyAll()
			return nil, fmt.Errorf("invalid options type for OpenVINO: %T", provider.Options())
		}
		precision := opts.Precision
		if precision == "" {
			precision = PrecisionAccuracy
		}
		// See:
		// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
		config := map[string]string{
			"device_id":              opts.DeviceID,
			"device_type":            opts.DeviceType,
			"precision":              string(precision),
			"num_of_threads":         fmt.Sprintf("%d", opts.NumOfThreads),
			"disable_dynamic_shapes": fmt.Sprintf("%t", opts.DisableDynamicShapes),
			"model_priority":         fmt.Sprintf("%d", opts.ModelPriority),
		}
		err = options.AppendExecutionProviderOpenVINO(config)
		if err != nil {
			destroyAll()
			return nil, fmt.Errorf("error enabling OpenVINO: %w", err)
		}
	case CUDAProviderBackend:
		opts, ok := provider.Options().(CUDAOptions)
		if !ok {
			destroyAll()
			return nil, fmt.Errorf("invalid options type for CUDA: %T", provider.Options())
		}
		cuda, err := opts.ToNativeProviderOptions()
		if err != nil {
			destroyAll()
			return nil, fmt.Errorf("error converting CUDA options: %w", err)
		}
		err = options.AppendExecutionProviderCUDA(cuda)
		cuda.Destroy()
		if err != nil {
			destroyAll()
			return nil, fmt.Errorf("error enabling CUDA: %w", err)
		}
	}

	// Finally, create an advanced ONNX Runtime session binding input/output
	// tensors with options. Preallocated tensors give zero-copy data
	// exchange between Go and the native runtime.
	inputTensors := []ort.ArbitraryTensor{input}
	outputTensors := make([]ort.ArbitraryTensor, len(outputs))
	for i, output := range outputs {
		outputTensors[i] = output
	}

	session, err := ort.NewAdvancedSession(
		args.ModelPath,
		[]string{args.InputName},
		args.OutputNames,
		inputTensors,
		outputTensors,
		options,
	)
	if err != nil {
		destroyAll()
		return nil, fmt.Errorf("error creating ORT session: %w", err)
	}

	shapes := make([][]int64, len(args.OutputShapes))
	for i, shape := range args.OutputShapes {
		shapes[i] = append([]int64(nil), shape...)
	}

	return &Session{
		Session:      session,
		Input:        input,
		Outputs:      outputs,
		outputShapes: shapes,
	}, nil
}

// Run executes the model on the current input tensor contents.
//
// Returns:
//   - error: An error if inference fails.
func (s *Session) Run() error {
	return s.Session.Run()
}

// OutputTensors returns the per-scale output data as dense tensors.
//
// The returned tensors share backing memory with the session's output
// buffers: they are views, valid until the next Run and freed by Close.
//
// Returns:
//   - []*tensor.Dense: One rank-4 tensor per detection scale.
func (s *Session) OutputTensors() []*tensor.Dense {
	views := make([]*tensor.Dense, len(s.Outputs))
	for i, output := range s.Outputs {
		dims := make([]int, len(s.outputShapes[i]))
		for d, v := range s.outputShapes[i] {
			dims[d] = int(v)
		}
		views[i] = tensor.New(
			tensor.WithShape(dims...),
			tensor.WithBacking(output.GetData()),
		)
	}
	return views
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	if s.Input != nil {
		s.Input.Destroy()
		s.Input = nil
	}
	for _, output := range s.Outputs {
		output.Destroy()
	}
	s.Outputs = nil

	if s.Session != nil {
		err := s.Session.Destroy()
		if err != nil {
			return fmt.Errorf("error destroying ORT session: %w", err)
		}
		s.Session = nil
	}

	return nil
}
