package images

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/cshum/vipsgen/vips"
	"gocv.io/x/gocv"
)

// DecodeToImage decodes encoded image bytes into a Go-native image.Image.
//
// Arguments:
//   - data: The encoded image bytes.
//   - format: The encoding of data (jpeg, png or webp).
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the bytes cannot be decoded as the given format.
func DecodeToImage(data []byte, format ImageFormat) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	switch format {
	case FormatJPEG:
		return jpeg.Decode(bytes.NewReader(data))
	case FormatPNG:
		return png.Decode(bytes.NewReader(data))
	case FormatWebP:
		return webp.Decode(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unsupported image format: %s", format)
	}
}

// Thumbnail resizes encoded image bytes to the given dimensions using vips,
// returning bytes re-encoded in the requested format. vips sniffs the source
// format from the buffer, so the input encoding does not have to match the
// output format.
//
// Arguments:
//   - data: The encoded image bytes to resize.
//   - width: The width to resize the image to.
//   - height: The height to resize the image to.
//   - format: The encoding of the returned bytes.
//
// Returns:
//   - []byte: The resized, re-encoded image.
//   - error: An error if loading, resizing or encoding fails.
func Thumbnail(data []byte, width, height int, format ImageFormat) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}

	// Load the image from buffer.
	img, err := vips.NewImageFromBuffer(data, &vips.LoadOptions{
		Access: vips.AccessSequential,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	defer img.Close()

	// Resize the image in-place.
	err = img.ThumbnailImage(width, &vips.ThumbnailImageOptions{
		Height: height,
		FailOn: vips.FailOnError,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resize image: %w", err)
	}

	// Export in the requested encoding.
	var resized []byte
	switch format {
	case FormatJPEG:
		resized, err = img.JpegsaveBuffer(&vips.JpegsaveBufferOptions{})
	case FormatPNG:
		resized, err = img.PngsaveBuffer(&vips.PngsaveBufferOptions{})
	case FormatWebP:
		resized, err = img.WebpsaveBuffer(&vips.WebpsaveBufferOptions{})
	default:
		return nil, fmt.Errorf("unsupported image format: %s", format)
	}
	if err != nil || len(resized) == 0 {
		return nil, fmt.Errorf("failed to encode resized image")
	}
	return resized, nil
}

// ResizeToImage resizes encoded image bytes to the given dimensions,
// returning a Go-native image.Image.
func ResizeToImage(data []byte, width, height int, format ImageFormat) (image.Image, error) {
	resized, err := Thumbnail(data, width, height, format)
	if err != nil {
		return nil, err
	}
	return DecodeToImage(resized, format)
}

// ResizeToMat resizes encoded image bytes to the given dimensions, returning
// a gocv.Mat so the result can be used with OpenCV.
func ResizeToMat(data []byte, width, height int) (gocv.Mat, error) {
	resized, err := Thumbnail(data, width, height, FormatJPEG)
	if err != nil {
		return gocv.NewMat(), err
	}
	mat, err := gocv.IMDecode(resized, gocv.IMReadColor)
	if err != nil || mat.Empty() {
		return gocv.NewMat(), fmt.Errorf("failed to decode resized image")
	}
	return mat, nil
}

// EncodeWebP encodes an image.Image as lossy WebP. Saved face crops use
// this; quality 80 is a reasonable default for archival crops.
func EncodeWebP(img image.Image, quality float32) ([]byte, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode webp: %w", err)
	}
	return buf.Bytes(), nil
}
