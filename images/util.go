package images

import (
	"crypto/md5"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ComputeMatChecksum generates a deterministic checksum for a Mat. Capture
// pipelines use it to skip saving a crop identical to the previous one.
//
// Arguments:
// - mat: The Mat to compute checksum for.
//
// Returns:
// - A hex-encoded MD5 checksum string.
//
// Example:
//
// ```go
//
//	checksum := ComputeMatChecksum(crop)
//	if checksum != lastChecksum {
//	    saveCrop(crop)
//	}
//
// ```
func ComputeMatChecksum(mat gocv.Mat) string {
	if mat.Empty() {
		return "empty"
	}

	data, _ := mat.DataPtrUint8()
	hash := md5.New()
	hash.Write(data)
	return fmt.Sprintf("%x", hash.Sum(nil))
}

// CropMat extracts the region of frame covered by box, clipped to the frame
// bounds. The returned Mat is a copy, safe to keep after the frame is
// reused.
//
// Arguments:
// - frame: The source frame.
// - box: The region to extract, in frame coordinates.
//
// Returns:
// - gocv.Mat: The cropped copy. Close it when done.
// - error: If the clipped region is empty.
func CropMat(frame gocv.Mat, box Rect) (gocv.Mat, error) {
	clipped := box.Clip(float32(frame.Cols()), float32(frame.Rows())).ToImageRect()
	if clipped.Dx() <= 0 || clipped.Dy() <= 0 {
		return gocv.NewMat(), fmt.Errorf("crop region %v is empty", clipped)
	}

	region := frame.Region(clipped)
	defer region.Close()
	return region.Clone(), nil
}

// MatToImage converts a BGR Mat to a Go-native image.Image.
func MatToImage(mat gocv.Mat) (image.Image, error) {
	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert mat: %w", err)
	}
	return img, nil
}
