// Package detectors - Face detection pipeline on ONNX Runtime.
package detectors

import (
	"context"
	"image"

	"github.com/8ff/prettyTimer"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-facecap/images"
	"github.com/nvr-ai/go-facecap/inference/providers"
	"github.com/nvr-ai/go-facecap/models"
	"github.com/nvr-ai/go-facecap/models/facecap"
	"github.com/nvr-ai/go-facecap/models/model"
	"github.com/nvr-ai/go-facecap/models/model/preprocess"
	"github.com/nvr-ai/go-facecap/models/postprocess"
)

// Detection is one detected face mapped into original frame coordinates.
type Detection struct {
	// Box is the face box in frame pixels.
	Box images.Rect `json:"box"`
	// Score is the detection confidence.
	Score float32 `json:"score"`
	// Class is the predicted class index.
	Class int `json:"class"`
	// Label is the class name.
	Label string `json:"label"`
	// Quality is the capture quality score in [0, 1], computed from the
	// detection score and the attribute channels in network input space.
	Quality float32 `json:"quality"`
	// Attributes maps quality attribute names to their scores.
	Attributes map[string]float32 `json:"attributes,omitempty"`
}

// headModel is satisfied by model families exposing an anchor head whose
// per-scale output shapes the session must preallocate.
type headModel interface {
	model.Model
	Head() *facecap.Head
	NMS() *postprocess.NMSConfig
}

// Detector runs the full detection pipeline: frame preprocessing, an ONNX
// Runtime session, head decoding, suppression, and mapping boxes back to
// frame coordinates.
//
// A Detector owns its session and preprocessor; it is not safe for
// concurrent Predict calls because the session's input tensor is shared.
type Detector struct {
	config   Config
	provider providers.ExecutionProvider
	model    model.Model
	head     *facecap.Head
	session  *providers.Session
	pre      *preprocess.Preprocessor
	attrs    *models.AttributeManager
	quality  *facecap.QualityAnalyzer
	labels   []string
	timings  *prettyTimer.TimingStats
	logger   *logrus.Logger
}

// NewDetector creates a detector binding a model to an execution provider.
//
// The model must expose an anchor head so the session can preallocate one
// output tensor per detection scale. The config's thresholds override the
// model's suppression defaults.
//
// Arguments:
//   - provider: The execution provider for the session.
//   - m: The detection model.
//   - config: Pipeline configuration.
//
// Returns:
//   - *Detector: The configured detector.
//   - error: An error if the configuration is invalid or the session
//     cannot be created.
func NewDetector(provider providers.ExecutionProvider, m model.Model, config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	hm, ok := m.(headModel)
	if !ok {
		return nil, errors.Errorf(
			"model %s does not expose an anchor head", m.Options().Name)
	}
	head := hm.Head()

	if config.ModelName == "" {
		config.ModelName = m.Options().Name
	}

	// The pipeline thresholds take precedence over the head's evaluation
	// defaults.
	if nms := hm.NMS(); nms != nil {
		nms.ConfidenceThreshold = config.ConfidenceThreshold
		nms.IoUThreshold = config.NMSThreshold
		nms.MaxDetections = config.MaxDetections
	}

	pre, err := preprocess.NewPreprocessor(preprocess.Config{
		InputWidth:      config.InputShape.X,
		InputHeight:     config.InputShape.Y,
		KeepAspectRatio: config.KeepAspectRatio,
	})
	if err != nil {
		return nil, err
	}

	opts := m.Options()
	if len(opts.Inputs) == 0 {
		return nil, errors.Errorf("model %s declares no input tensors", opts.Name)
	}
	if len(opts.Outputs) != len(head.Strides()) {
		return nil, errors.Errorf(
			"model %s declares %d output tensors, head has %d scales",
			opts.Name, len(opts.Outputs), len(head.Strides()),
		)
	}

	modelPath := config.ModelPath
	if modelPath == "" {
		modelPath = opts.Path
	}

	layout := head.Layout()
	inputShape := []int64{1, 3, int64(config.InputShape.Y), int64(config.InputShape.X)}
	outputShapes := make([][]int64, 0, len(head.Strides()))
	for _, stride := range head.Strides() {
		outputShapes = append(outputShapes, []int64{
			1,
			int64(layout.TotalChannels()),
			int64(config.InputShape.Y / stride),
			int64(config.InputShape.X / stride),
		})
	}

	session, err := providers.NewSession(provider, providers.NewSessionArgs{
		ModelPath:    modelPath,
		InputName:    opts.Inputs[0],
		OutputNames:  opts.Outputs,
		InputShape:   inputShape,
		OutputShapes: outputShapes,
		Optimization: config.Provider.Optimization,
	})
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return &Detector{
		config:   config,
		provider: provider,
		model:    m,
		head:     head,
		session:  session,
		pre:      pre,
		attrs:    models.DefaultAttributeManager(),
		quality:  facecap.NewQualityAnalyzer(facecap.DefaultQualityConfig()),
		labels:   []string{"face"},
		timings:  prettyTimer.NewTimingStats(),
		logger:   logger,
	}, nil
}

// SetLogger replaces the detector's logger.
func (d *Detector) SetLogger(logger *logrus.Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// Predict detects faces in a frame.
//
// The frame is letterboxed (or stretched) into the input tensor, the model
// runs, the head output is decoded and suppressed, and the surviving boxes
// are mapped back into frame coordinates.
//
// Arguments:
//   - ctx: Context checked before the (non-interruptible) session run.
//   - img: The frame to detect faces in.
//
// Returns:
//   - []Detection: Detected faces in frame coordinates, best first.
//   - error: An error if any pipeline stage fails.
func (d *Detector) Predict(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frame, err := d.pre.Process(img)
	if err != nil {
		return nil, errors.Wrap(err, "preprocessing frame")
	}
	defer d.pre.Release(frame)

	input := d.session.Input.GetData()
	if len(input) != len(frame.Data) {
		return nil, errors.Errorf(
			"input tensor holds %d floats, preprocessor produced %d",
			len(input), len(frame.Data),
		)
	}
	copy(input, frame.Data)

	d.timings.Start()
	err = d.session.Run()
	d.timings.Finish()
	if err != nil {
		return nil, errors.Wrap(err, "running inference")
	}

	batches, err := d.model.PostProcess(d.session.OutputTensors())
	if err != nil {
		return nil, errors.Wrap(err, "postprocessing outputs")
	}
	if len(batches) == 0 {
		return nil, nil
	}

	detections := make([]Detection, 0, len(batches[0]))
	for _, result := range batches[0] {
		annotated, err := d.attrs.Annotate(d.config.ModelName, result)
		if err != nil {
			return nil, errors.Wrap(err, "annotating attributes")
		}
		detections = append(detections, Detection{
			Box:        frame.MapRect(result.Box),
			Score:      result.Score,
			Class:      result.Class,
			Label:      d.label(result.Class),
			Quality:    d.quality.Score(result),
			Attributes: annotated,
		})
	}

	d.logger.WithFields(logrus.Fields{
		"faces":  len(detections),
		"width":  frame.OriginalWidth,
		"height": frame.OriginalHeight,
	}).Debug("frame processed")

	return detections, nil
}

// WarmUp runs inference on a zeroed input to let the runtime finish lazy
// initialization (kernel selection, memory arenas) before real frames
// arrive.
//
// Arguments:
//   - runs: Number of warmup inferences to perform.
//
// Returns:
//   - error: An error if a warmup run fails.
func (d *Detector) WarmUp(runs int) error {
	input := d.session.Input.GetData()
	for i := range input {
		input[i] = 0
	}
	for i := 0; i < runs; i++ {
		if err := d.session.Run(); err != nil {
			return errors.Wrapf(err, "warmup run %d", i+1)
		}
	}
	d.logger.WithField("runs", runs).Info("detector warmed up")
	return nil
}

// PrintStats prints timing percentiles for the session runs so far.
func (d *Detector) PrintStats() {
	d.timings.PrintStats()
}

// Model returns the detector's model.
func (d *Detector) Model() model.Model {
	return d.model
}

// Close releases the detector's session resources.
func (d *Detector) Close() error {
	return d.session.Close()
}

// label returns the class name for an index.
func (d *Detector) label(class int) string {
	if class >= 0 && class < len(d.labels) {
		return d.labels[class]
	}
	return "unknown"
}
