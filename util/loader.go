// Package util - Filesystem helpers for loading image sequences.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Frame is the frame number parsed from the file name, or -1 when the
	// name carries no frame number.
	Frame int
}

// IsImageFile reports whether the path has a supported image extension.
//
// Arguments:
// - path: File path to test.
//
// Returns:
// - bool: True for .jpg, .jpeg, .png, and .bmp files.
func IsImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".bmp":
		return true
	}
	return false
}

// frameNumber parses the frame number out of names like frame-42.jpg.
func frameNumber(name string) int {
	ext := filepath.Ext(name)
	frame, err := strconv.Atoi(strings.TrimSuffix(strings.ReplaceAll(name, "frame-", ""), ext))
	if err != nil {
		return -1
	}
	return frame
}

// LoadImageFiles reads image files from a path that may be a single file
// or a directory of frames.
//
// Arguments:
// - path: Image file or directory containing image files.
//
// Returns:
// - []ImageFile: Loaded image files in playback order.
// - error: Error if loading fails.
func LoadImageFiles(path string) ([]ImageFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "statting %s", path)
	}

	if info.IsDir() {
		return LoadDirectoryImageFiles(path)
	}

	if !IsImageFile(path) {
		return nil, errors.Errorf("%s is not a supported image file", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}

	return []ImageFile{{
		Path:  path,
		Data:  data,
		Frame: frameNumber(filepath.Base(path)),
	}}, nil
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Files named frame-N.<ext> are ordered by frame number; everything else
// is ordered lexically after the numbered frames.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Slice of ImageFile, each containing the raw bytes of an image file.
// - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading directory %s", dir)
	}

	var images []ImageFile
	for _, file := range files {
		if file.IsDir() || !IsImageFile(file.Name()) {
			continue
		}

		imgPath := filepath.Join(dir, file.Name())
		data, readErr := os.ReadFile(imgPath)
		if readErr != nil {
			return nil, errors.Wrapf(readErr, "reading %s", imgPath)
		}
		images = append(images, ImageFile{
			Path:  imgPath,
			Data:  data,
			Frame: frameNumber(file.Name()),
		})
	}

	sort.Slice(images, func(i, j int) bool {
		a, b := images[i], images[j]
		if a.Frame >= 0 && b.Frame >= 0 {
			return a.Frame < b.Frame
		}
		if (a.Frame >= 0) != (b.Frame >= 0) {
			return a.Frame >= 0
		}
		return a.Path < b.Path
	})

	return images, nil
}
