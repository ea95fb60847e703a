// Package preprocess - Frame-to-tensor conversion for detector input.
package preprocess

import (
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-facecap/images"
)

// PadValue is the letterbox fill intensity. Detection heads are trained
// with neutral gray padding rather than black.
const PadValue uint8 = 114

// Config defines how frames are converted to model input tensors.
type Config struct {
	// InputWidth is the width of the model input in pixels.
	InputWidth int `json:"input_width" yaml:"input_width"`
	// InputHeight is the height of the model input in pixels.
	InputHeight int `json:"input_height" yaml:"input_height"`
	// KeepAspectRatio letterboxes the frame instead of stretching it.
	KeepAspectRatio bool `json:"keep_aspect_ratio" yaml:"keep_aspect_ratio"`
}

// DefaultConfig returns the preprocessing configuration used by the
// capture pipeline: 640x640 letterboxed input.
//
// Returns:
// - A Config with pipeline defaults applied.
func DefaultConfig() Config {
	return Config{
		InputWidth:      640,
		InputHeight:     640,
		KeepAspectRatio: true,
	}
}

// Result contains the prepared tensor data plus the geometry needed to map
// detector output back to the original frame.
type Result struct {
	// Data is the CHW float32 tensor data, scaled to [0, 1].
	Data []float32
	// ScaleX is the horizontal scaling factor applied to the frame.
	ScaleX float32
	// ScaleY is the vertical scaling factor applied to the frame.
	ScaleY float32
	// PadX is the left letterbox padding in input pixels.
	PadX float32
	// PadY is the top letterbox padding in input pixels.
	PadY float32
	// InputWidth is the model input width the frame was fitted to.
	InputWidth int
	// InputHeight is the model input height the frame was fitted to.
	InputHeight int
	// OriginalWidth is the frame width before preprocessing.
	OriginalWidth int
	// OriginalHeight is the frame height before preprocessing.
	OriginalHeight int
}

// MapRect maps a box from model input coordinates back to original frame
// coordinates, undoing the letterbox padding and scaling. The result is
// clipped to the frame.
//
// Arguments:
// - box: A box in input-tensor pixel coordinates.
//
// Returns:
// - The box in original frame coordinates.
func (r *Result) MapRect(box images.Rect) images.Rect {
	mapped := images.Rect{
		X1: (box.X1 - r.PadX) / r.ScaleX,
		Y1: (box.Y1 - r.PadY) / r.ScaleY,
		X2: (box.X2 - r.PadX) / r.ScaleX,
		Y2: (box.Y2 - r.PadY) / r.ScaleY,
	}
	return mapped.Clip(float32(r.OriginalWidth), float32(r.OriginalHeight))
}

// Preprocessor converts frames into normalized CHW tensors. Buffers are
// pooled, so results must be released back via Release once the tensor
// data has been consumed.
type Preprocessor struct {
	config     Config
	bufferPool *sync.Pool
}

// NewPreprocessor creates a preprocessor for the given configuration.
//
// Arguments:
// - config: Input dimensions and resize behavior.
//
// Returns:
// - A configured Preprocessor instance.
// - An error if the configuration is invalid.
//
// @example
//
//	p, err := preprocess.NewPreprocessor(preprocess.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := p.Process(frame)
func NewPreprocessor(config Config) (*Preprocessor, error) {
	if config.InputWidth <= 0 || config.InputHeight <= 0 {
		return nil, errors.Errorf(
			"invalid input dimensions: %dx%d", config.InputWidth, config.InputHeight)
	}

	size := 3 * config.InputWidth * config.InputHeight
	return &Preprocessor{
		config: config,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]float32, size)
				return &buf
			},
		},
	}, nil
}

// Config returns the preprocessing configuration.
func (p *Preprocessor) Config() Config {
	return p.config
}

// Process converts a frame into a normalized CHW float32 tensor.
//
// With KeepAspectRatio set, the frame is scaled by a single factor to fit
// inside the input and centered on a gray canvas; otherwise it is
// stretched to the input dimensions. Pixels are converted to RGB planes
// scaled to [0, 1].
//
// Arguments:
// - img: The frame to convert.
//
// Returns:
// - A Result holding the tensor data and the applied geometry.
// - An error if the frame is empty.
func (p *Preprocessor) Process(img image.Image) (*Result, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}

	bounds := img.Bounds()
	originalWidth := bounds.Dx()
	originalHeight := bounds.Dy()
	if originalWidth <= 0 || originalHeight <= 0 {
		return nil, errors.Errorf(
			"invalid image dimensions: %dx%d", originalWidth, originalHeight)
	}

	inputWidth := p.config.InputWidth
	inputHeight := p.config.InputHeight

	result := &Result{
		InputWidth:     inputWidth,
		InputHeight:    inputHeight,
		OriginalWidth:  originalWidth,
		OriginalHeight: originalHeight,
	}

	canvas := image.NewRGBA(image.Rect(0, 0, inputWidth, inputHeight))

	if p.config.KeepAspectRatio {
		scale := min(
			float32(inputWidth)/float32(originalWidth),
			float32(inputHeight)/float32(originalHeight))
		scaledWidth := int(float32(originalWidth) * scale)
		scaledHeight := int(float32(originalHeight) * scale)
		padX := (inputWidth - scaledWidth) / 2
		padY := (inputHeight - scaledHeight) / 2

		result.ScaleX = scale
		result.ScaleY = scale
		result.PadX = float32(padX)
		result.PadY = float32(padY)

		pad := image.NewUniform(color.RGBA{PadValue, PadValue, PadValue, 255})
		draw.Draw(canvas, canvas.Bounds(), pad, image.Point{}, draw.Src)

		scaled := resize.Resize(
			uint(scaledWidth), uint(scaledHeight), img, resize.Lanczos3)
		region := image.Rect(padX, padY, padX+scaledWidth, padY+scaledHeight)
		draw.Draw(canvas, region, scaled, image.Point{}, draw.Src)
	} else {
		result.ScaleX = float32(inputWidth) / float32(originalWidth)
		result.ScaleY = float32(inputHeight) / float32(originalHeight)

		scaled := resize.Resize(
			uint(inputWidth), uint(inputHeight), img, resize.Lanczos3)
		draw.Draw(canvas, canvas.Bounds(), scaled, image.Point{}, draw.Src)
	}

	result.Data = p.toPlanes(canvas)
	return result, nil
}

// Release returns a result's tensor buffer to the pool. The result's Data
// must not be used afterwards.
//
// Arguments:
// - result: The result to release.
func (p *Preprocessor) Release(result *Result) {
	if result == nil || result.Data == nil {
		return
	}
	buf := result.Data
	result.Data = nil
	p.bufferPool.Put(&buf)
}

// toPlanes splits the canvas into normalized R, G, B planes in CHW order.
func (p *Preprocessor) toPlanes(canvas *image.RGBA) []float32 {
	channelSize := p.config.InputWidth * p.config.InputHeight
	data := *p.bufferPool.Get().(*[]float32)
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	i := 0
	for y := 0; y < p.config.InputHeight; y++ {
		row := canvas.Pix[y*canvas.Stride : y*canvas.Stride+p.config.InputWidth*4]
		for x := 0; x < p.config.InputWidth; x++ {
			red[i] = float32(row[x*4]) / 255.0
			green[i] = float32(row[x*4+1]) / 255.0
			blue[i] = float32(row[x*4+2]) / 255.0
			i++
		}
	}
	return data
}
