package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-facecap/images"
	"github.com/nvr-ai/go-facecap/inference/detectors"
	"github.com/nvr-ai/go-facecap/inference/providers"
	"github.com/nvr-ai/go-facecap/models"
	"github.com/nvr-ai/go-facecap/models/model"
	"github.com/nvr-ai/go-facecap/profiler"
	"github.com/nvr-ai/go-facecap/util"
)

const (
	// deviceID is the ID of the video capture device to use.
	deviceID = 0
	// DefaultModelPath is the ONNX model loaded when neither flag nor config overrides it.
	DefaultModelPath = "facecap-v2-n.onnx"
	// DefaultOutputDir receives the saved face crops.
	DefaultOutputDir = "captures"
)

// Supported file extensions
var supportedVideoExtensions = []string{".mp4", ".avi", ".mov"}

// InputType represents the type of input being processed
type InputType int

const (
	InputCamera InputType = iota
	InputVideo
	InputImage
)

// InputConfig holds the input configuration
type InputConfig struct {
	Type     InputType
	Path     string
	DeviceID int
}

// CaptureConfig is the full configuration of the capture tool. It embeds
// the detector pipeline configuration and adds the capture policy on top:
// which faces are worth keeping and where they go.
type CaptureConfig struct {
	// Detector configures the detection pipeline.
	Detector detectors.Config `json:"detector" yaml:"detector"`

	// Motion configures the motion gate used on live streams.
	Motion images.MotionGateConfig `json:"motion" yaml:"motion"`

	// MotionGating skips detection on frames without motion.
	MotionGating bool `json:"motion_gating" yaml:"motion_gating"`

	// OutputDir is where face crops and annotated frames are written.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// SaveCrops toggles writing face crops to disk.
	SaveCrops bool `json:"save_crops" yaml:"save_crops"`

	// MinQuality is the capture quality floor. Faces scoring below it are
	// reported but not saved.
	MinQuality float32 `json:"min_quality" yaml:"min_quality"`

	// MaxCropsPerFrame caps how many crops one frame may produce.
	MaxCropsPerFrame int `json:"max_crops_per_frame" yaml:"max_crops_per_frame"`

	// CropPadding expands the face box by this fraction of its size on
	// each side before cropping, so crops keep some context around the face.
	CropPadding float32 `json:"crop_padding" yaml:"crop_padding"`

	// WebPQuality is the encoder quality for saved crops.
	WebPQuality float32 `json:"webp_quality" yaml:"webp_quality"`

	// WarmupRuns is how many synthetic inferences to run before the first frame.
	WarmupRuns int `json:"warmup_runs" yaml:"warmup_runs"`
}

// DefaultCaptureConfig returns the capture policy used when no config file
// is given: save everything above middling quality, padded by 20%, as
// WebP at quality 80.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Detector:         detectors.DefaultConfig(),
		Motion:           images.DefaultMotionGateConfig(),
		MotionGating:     false,
		OutputDir:        DefaultOutputDir,
		SaveCrops:        true,
		MinQuality:       0.5,
		MaxCropsPerFrame: 4,
		CropPadding:      0.2,
		WebPQuality:      80,
		WarmupRuns:       3,
	}
}

// LoadCaptureConfig reads a YAML capture configuration. Missing fields keep
// their defaults.
func LoadCaptureConfig(path string) (CaptureConfig, error) {
	config := DefaultCaptureConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return config, nil
}

// Capture owns the detection pipeline and the crop sink. One Capture serves
// one input source.
type Capture struct {
	config   CaptureConfig
	detector *detectors.Detector
	gate     *images.MotionGate
	prof     *profiler.RuntimeProfiler
	logger   *logrus.Logger

	lastChecksum string
	saved        int
}

// NewCapture builds the provider, model and detector from the configuration
// and warms the session up. The profiler may be nil.
func NewCapture(
	config CaptureConfig,
	prof *profiler.RuntimeProfiler,
	logger *logrus.Logger,
) (*Capture, error) {
	var provider providers.ExecutionProvider
	var err error
	if config.Detector.Provider.Options != nil {
		provider, err = providers.NewProvider(config.Detector.Provider.Options)
	} else {
		provider, err = providers.NewBackendProvider(config.Detector.Provider.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create execution provider: %w", err)
	}

	faceModel, err := models.NewModel(model.NewModelArgs{
		Name: config.Detector.ModelName,
		Path: config.Detector.ModelPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	detector, err := detectors.NewDetector(provider, faceModel, config.Detector)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}
	detector.SetLogger(logger)

	if config.WarmupRuns > 0 {
		if err := detector.WarmUp(config.WarmupRuns); err != nil {
			detector.Close()
			return nil, fmt.Errorf("warmup failed: %w", err)
		}
	}

	capture := &Capture{
		config:   config,
		detector: detector,
		prof:     prof,
		logger:   logger,
	}
	if config.MotionGating {
		capture.gate = images.NewMotionGate(config.Motion)
	}
	return capture, nil
}

// ProcessFrame runs detection on one frame, saves the qualifying face crops
// and draws the detections onto the frame. Crops are taken before drawing so
// the saved faces stay clean. Returns the number of faces found.
func (c *Capture) ProcessFrame(ctx context.Context, frame *gocv.Mat, frameIndex int) (int, error) {
	img, err := images.MatToImage(*frame)
	if err != nil {
		return 0, err
	}

	stopTiming := func() {}
	if c.prof != nil {
		stopTiming = c.prof.StartOperation("detect")
	}
	detections, err := c.detector.Predict(ctx, img)
	stopTiming()
	if err != nil {
		return 0, err
	}

	if c.prof != nil {
		c.prof.RecordMetric("faces_per_frame", float64(len(detections)))
	}

	// Best faces first, so the crop rank reflects capture quality.
	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Quality > detections[j].Quality
	})

	if c.config.SaveCrops {
		savedThisFrame := 0
		for rank, det := range detections {
			if det.Quality < c.config.MinQuality {
				break
			}
			if c.config.MaxCropsPerFrame > 0 && savedThisFrame >= c.config.MaxCropsPerFrame {
				break
			}
			saved, err := c.saveCrop(*frame, det, frameIndex, rank)
			if err != nil {
				c.logger.WithError(err).Warn("failed to save face crop")
				continue
			}
			if saved {
				savedThisFrame++
			}
		}
	}

	for _, det := range detections {
		c.draw(frame, det)
	}
	return len(detections), nil
}

// saveCrop writes one padded face crop as WebP. A crop whose pixels match
// the previously saved one is skipped. Reports whether a file was written.
func (c *Capture) saveCrop(
	frame gocv.Mat,
	det detectors.Detection,
	frameIndex int,
	rank int,
) (bool, error) {
	crop, err := images.CropMat(frame, c.paddedBox(det.Box))
	if err != nil {
		return false, err
	}
	defer crop.Close()

	checksum := images.ComputeMatChecksum(crop)
	if checksum == c.lastChecksum {
		c.logger.WithField("checksum", checksum).Debug("skipping duplicate crop")
		return false, nil
	}

	img, err := images.MatToImage(crop)
	if err != nil {
		return false, err
	}
	data, err := images.EncodeWebP(img, c.config.WebPQuality)
	if err != nil {
		return false, err
	}

	name := fmt.Sprintf("face_%06d_%d_q%03d.webp", frameIndex, rank, int(det.Quality*100))
	path := filepath.Join(c.config.OutputDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, err
	}

	c.lastChecksum = checksum
	c.saved++
	c.logger.WithFields(logrus.Fields{
		"path":    path,
		"quality": det.Quality,
		"score":   det.Score,
	}).Info("saved face crop")
	return true, nil
}

// paddedBox grows the face box by the configured padding fraction on each
// side. CropMat clips the result to the frame.
func (c *Capture) paddedBox(box images.Rect) images.Rect {
	padX := box.Width() * c.config.CropPadding
	padY := box.Height() * c.config.CropPadding
	return images.Rect{
		X1: box.X1 - padX,
		Y1: box.Y1 - padY,
		X2: box.X2 + padX,
		Y2: box.Y2 + padY,
	}
}

// draw renders one detection box with its score and quality. Faces below
// the quality floor are drawn red instead of green.
func (c *Capture) draw(frame *gocv.Mat, det detectors.Detection) {
	rect := det.Box.ToImageRect()
	clr := color.RGBA{0, 255, 0, 0}
	if det.Quality < c.config.MinQuality {
		clr = color.RGBA{255, 0, 0, 0}
	}
	gocv.Rectangle(frame, rect, clr, 2)
	label := fmt.Sprintf("%s %.2f q%.2f", det.Label, det.Score, det.Quality)
	gocv.PutText(frame, label, image.Pt(rect.Min.X, rect.Min.Y-6),
		gocv.FontHersheyPlain, 0.8, clr, 2)
}

// PrintStats prints the detector's inference timing statistics.
func (c *Capture) PrintStats() {
	c.detector.PrintStats()
}

// Close releases the detector session and the motion gate.
func (c *Capture) Close() {
	if c.gate != nil {
		c.gate.Close()
	}
	if err := c.detector.Close(); err != nil {
		c.logger.WithError(err).Warn("failed to close detector")
	}
}

func main() {
	// Parse command line arguments
	var (
		configPath          string
		modelPath           string
		backendName         string
		confidenceThreshold float64
		minQuality          float64
		outputDir           string
		enableMotionGating  bool
		videoPath           string
		imagePath           string
		resolutionName      string
		showVisualization   bool
		enableProfiling     bool
		warmupRuns          int
	)
	defaults := DefaultCaptureConfig()
	flag.StringVar(&configPath, "config", "", "Path to YAML capture configuration")
	flag.StringVar(&modelPath, "model", DefaultModelPath, "Path to facecap ONNX model file")
	flag.StringVar(&backendName, "backend", string(providers.CPUProviderBackend),
		"Execution provider backend (cpu, coreml, cuda, dnnl, openvino)")
	flag.Float64Var(&confidenceThreshold, "confidence",
		float64(defaults.Detector.ConfidenceThreshold), "Face detection confidence threshold")
	flag.Float64Var(&minQuality, "min-quality",
		float64(defaults.MinQuality), "Minimum capture quality for saving a face crop")
	flag.StringVar(&outputDir, "output-dir", defaults.OutputDir, "Output directory for face crops")
	flag.BoolVar(&enableMotionGating, "motion", defaults.MotionGating,
		"Skip detection on frames without motion")
	flag.StringVar(&videoPath, "video", "", "Path to video file (.mp4, .avi, .mov)")
	flag.StringVar(&imagePath, "image", "", "Path to an image file or a directory of frames")
	flag.StringVar(&resolutionName, "resolution", "",
		"Requested camera capture mode (e.g. 720p, 1080p, 4k)")
	flag.BoolVar(&showVisualization, "show-window", false, "Show visualization window")
	flag.BoolVar(&enableProfiling, "profile", false, "Emit periodic runtime profiling reports")
	flag.IntVar(&warmupRuns, "warmup", defaults.WarmupRuns, "Warmup inference runs before capture")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Load config file first, then let explicitly set flags override it.
	config := defaults
	if configPath != "" {
		var err error
		config, err = LoadCaptureConfig(configPath)
		if err != nil {
			logger.WithError(err).Fatal("failed to load config")
		}
	}
	setFlags := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	if setFlags["model"] || config.Detector.ModelPath == "" {
		config.Detector.ModelPath = modelPath
	}
	if setFlags["backend"] {
		backend, err := providers.ParseBackend(backendName)
		if err != nil {
			logger.WithError(err).Fatal("invalid backend")
		}
		config.Detector.Provider.Backend = backend
	}
	if setFlags["confidence"] {
		config.Detector.ConfidenceThreshold = float32(confidenceThreshold)
	}
	if setFlags["min-quality"] {
		config.MinQuality = float32(minQuality)
	}
	if setFlags["output-dir"] {
		config.OutputDir = outputDir
	}
	if setFlags["motion"] {
		config.MotionGating = enableMotionGating
	}
	if setFlags["warmup"] {
		config.WarmupRuns = warmupRuns
	}

	// Validate input flags
	inputConfig, err := validateInputFlags(videoPath, imagePath)
	if err != nil {
		logger.Fatal(err)
	}

	var cameraMode *images.CameraMode
	if resolutionName != "" {
		if inputConfig.Type != InputCamera {
			logger.Fatal("-resolution only applies to camera input")
		}
		mode, err := images.ParseCameraMode(resolutionName)
		if err != nil {
			logger.Fatal(err)
		}
		cameraMode = &mode
	}

	if err := os.MkdirAll(config.OutputDir, 0o755); err != nil {
		logger.WithError(err).Fatal("failed to create output directory")
	}

	var prof *profiler.RuntimeProfiler
	if enableProfiling {
		prof = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
			ReportInterval: 2 * time.Second,
			SampleInterval: 100 * time.Millisecond,
			MaxSamples:     600,
		})
		prof.Start()
		defer prof.Stop()
	}

	capture, err := NewCapture(config, prof, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize capture pipeline")
	}
	defer capture.Close()

	fmt.Printf("\n🚀 Face Capture Started\n")
	fmt.Printf("=====================================\n")
	fmt.Printf("⚙️  Configuration:\n")
	fmt.Printf("   🎯 Model: %s (%s)\n", config.Detector.ModelPath, config.Detector.ModelName)
	fmt.Printf("   🔌 Backend: %s\n", config.Detector.Provider.Backend)
	fmt.Printf("   📐 Input shape: %dx%d\n", config.Detector.InputShape.X, config.Detector.InputShape.Y)
	fmt.Printf("   📊 Confidence threshold: %.2f\n", config.Detector.ConfidenceThreshold)
	fmt.Printf("   ✨ Minimum quality: %.2f\n", config.MinQuality)
	fmt.Printf("   🎥 Input: %s\n", func() string {
		switch inputConfig.Type {
		case InputCamera:
			return fmt.Sprintf("Camera (Device %d)", inputConfig.DeviceID)
		case InputVideo:
			return fmt.Sprintf("Video: %s", inputConfig.Path)
		case InputImage:
			return fmt.Sprintf("Image: %s", inputConfig.Path)
		default:
			return "Unknown"
		}
	}())
	fmt.Printf("   🏃 Motion gating: %t\n", config.MotionGating)
	fmt.Printf("   💾 Output directory: %s\n", config.OutputDir)
	fmt.Printf("   📈 Profiling: %t\n", enableProfiling)
	fmt.Printf("   🖼️  Show window: %t\n", showVisualization)
	fmt.Printf("=====================================\n\n")

	ctx := context.Background()

	if inputConfig.Type == InputImage {
		if err := processImages(ctx, capture, inputConfig.Path); err != nil {
			logger.WithError(err).Fatal("image processing failed")
		}
		capture.PrintStats()
		logger.WithField("saved", capture.saved).Info("capture finished")
		return
	}

	// Initialize video capture based on input type
	var webcam *gocv.VideoCapture
	switch inputConfig.Type {
	case InputCamera:
		webcam, err = gocv.OpenVideoCapture(inputConfig.DeviceID)
		if err != nil {
			logger.WithError(err).Fatalf("error opening video capture device: %v", inputConfig.DeviceID)
		}
		if cameraMode != nil {
			webcam.Set(gocv.VideoCaptureFrameWidth, float64(cameraMode.Width))
			webcam.Set(gocv.VideoCaptureFrameHeight, float64(cameraMode.Height))
			logger.WithField("mode", cameraMode.String()).Info("requested camera capture mode")
		}
	case InputVideo:
		webcam, err = gocv.OpenVideoCapture(inputConfig.Path)
		if err != nil {
			logger.WithError(err).Fatalf("error opening video file: %v", inputConfig.Path)
		}
	}
	defer webcam.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	var window *gocv.Window
	if showVisualization {
		window = gocv.NewWindow("Face Capture")
		defer window.Close()
	}

	frameCounter := 0
	windowFrames := 0
	windowStart := time.Now()
	currentFPS := 0.0

	for {
		frameStart := time.Now()

		if ok := webcam.Read(&frame); !ok {
			if inputConfig.Type == InputVideo {
				logger.WithField("path", inputConfig.Path).Info("end of video file")
			} else {
				logger.WithField("device", inputConfig.DeviceID).Info("capture device closed")
			}
			break
		}
		if frame.Empty() {
			continue
		}

		frameCounter++
		windowFrames++
		if elapsed := time.Since(windowStart); elapsed >= time.Second {
			currentFPS = float64(windowFrames) / elapsed.Seconds()
			windowFrames = 0
			windowStart = time.Now()
		}

		gated := capture.gate != nil && !capture.gate.Triggered(frame)
		faces := 0
		if !gated {
			faces, err = capture.ProcessFrame(ctx, &frame, frameCounter)
			if err != nil {
				logger.WithError(err).Error("frame processing failed")
				continue
			}
		}

		processingMs := float64(time.Since(frameStart).Microseconds()) / 1000.0
		if gated {
			fmt.Printf("[Frame %d] FPS: %.1f | Processing: %.2fms | Motion: none, detector skipped\n",
				frameCounter, currentFPS, processingMs)
		} else {
			fmt.Printf("[Frame %d] FPS: %.1f | Processing: %.2fms | Faces: %d | Saved: %d\n",
				frameCounter, currentFPS, processingMs, faces, capture.saved)
		}

		if window != nil {
			statusText := fmt.Sprintf("Faces: %d | Saved: %d", faces, capture.saved)
			gocv.PutText(&frame, statusText, image.Pt(10, 30),
				gocv.FontHersheyPlain, 1.2, color.RGBA{0, 255, 0, 0}, 2)
			fpsText := fmt.Sprintf("FPS: %.1f", currentFPS)
			gocv.PutText(&frame, fpsText, image.Pt(10, 60),
				gocv.FontHersheyPlain, 1.2, color.RGBA{255, 255, 255, 0}, 2)
			window.IMShow(frame)
			if window.WaitKey(1) == 27 {
				logger.Info("escape pressed, stopping capture")
				break
			}
		}
	}

	capture.PrintStats()
	logger.WithFields(logrus.Fields{
		"frames": frameCounter,
		"saved":  capture.saved,
	}).Info("capture finished")
}

// processImages runs the capture pipeline over a single image file or a
// directory of frames. Annotated copies are written next to the crops.
func processImages(ctx context.Context, capture *Capture, path string) error {
	files, err := util.LoadImageFiles(path)
	if err != nil {
		return err
	}
	capture.logger.WithFields(logrus.Fields{
		"path":  path,
		"count": len(files),
	}).Info("loaded image files")

	for i, file := range files {
		frame, err := gocv.IMDecode(file.Data, gocv.IMReadColor)
		if err != nil {
			capture.logger.WithError(err).WithField("path", file.Path).Warn("failed to decode image")
			continue
		}
		if frame.Empty() {
			frame.Close()
			capture.logger.WithField("path", file.Path).Warn("skipping empty image")
			continue
		}

		frameIndex := file.Frame
		if frameIndex < 0 {
			frameIndex = i
		}
		faces, err := capture.ProcessFrame(ctx, &frame, frameIndex)
		if err != nil {
			frame.Close()
			return err
		}

		annotated := filepath.Join(capture.config.OutputDir, "processed_"+filepath.Base(file.Path))
		if !gocv.IMWrite(annotated, frame) {
			capture.logger.WithField("path", annotated).Warn("failed to write annotated image")
		}
		capture.logger.WithFields(logrus.Fields{
			"path":  file.Path,
			"faces": faces,
		}).Info("processed image")
		frame.Close()
	}
	return nil
}

// validateInputFlags validates the input flags and returns the input configuration
func validateInputFlags(videoPath, imagePath string) (*InputConfig, error) {
	// Check if both or neither are provided
	if videoPath != "" && imagePath != "" {
		return nil, fmt.Errorf("error: cannot specify both --video and --image flags")
	}
	if videoPath == "" && imagePath == "" {
		// Default to camera
		return &InputConfig{Type: InputCamera, DeviceID: deviceID}, nil
	}

	// Validate video input
	if videoPath != "" {
		if err := validateFile(videoPath, supportedVideoExtensions); err != nil {
			return nil, fmt.Errorf("video validation error: %w", err)
		}
		return &InputConfig{Type: InputVideo, Path: videoPath}, nil
	}

	// Image input may be a single file or a directory of frames.
	info, err := os.Stat(imagePath)
	if err != nil {
		return nil, fmt.Errorf("image validation error: %w", err)
	}
	if !info.IsDir() && !util.IsImageFile(imagePath) {
		return nil, fmt.Errorf(
			"image validation error: unsupported file extension: %s", filepath.Ext(imagePath))
	}
	return &InputConfig{Type: InputImage, Path: imagePath}, nil
}

// validateFile checks if the file exists and has a supported extension
func validateFile(filePath string, supportedExtensions []string) error {
	// Check if file exists
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("file not found: %s", filePath)
	}

	// Check file extension
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, supportedExt := range supportedExtensions {
		if ext == supportedExt {
			return nil
		}
	}

	return fmt.Errorf("unsupported file extension: %s. Supported extensions: %v", ext, supportedExtensions)
}
