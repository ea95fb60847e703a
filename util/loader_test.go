package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadDirectoryImageFilesOrdersByFrame(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "frame-10.jpg", 64)
	writeFile(t, dir, "frame-2.jpg", 32)
	writeFile(t, dir, "frame-1.jpg", 16)
	writeFile(t, dir, "notes.txt", 8)

	images, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, images, 3)

	assert.Equal(t, []int{1, 2, 10}, []int{images[0].Frame, images[1].Frame, images[2].Frame})
	assert.Equal(t, 16, len(images[0].Data))
	assert.Equal(t, 32, len(images[1].Data))
	assert.Equal(t, 64, len(images[2].Data))
}

func TestLoadDirectoryImageFilesLexicalFallback(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sunset.png", 10)
	writeFile(t, dir, "frame-3.png", 10)
	writeFile(t, dir, "beach.png", 10)

	images, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, images, 3)

	// Numbered frames first, then the rest in path order.
	assert.Equal(t, "frame-3.png", filepath.Base(images[0].Path))
	assert.Equal(t, "beach.png", filepath.Base(images[1].Path))
	assert.Equal(t, "sunset.png", filepath.Base(images[2].Path))
	assert.Equal(t, -1, images[1].Frame)
}

func TestLoadDirectoryImageFilesSkipsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.jpg"), 0o755))
	writeFile(t, dir, "frame-0.bmp", 4)

	images, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "frame-0.bmp", filepath.Base(images[0].Path))
}

func TestLoadImageFilesSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "frame-7.jpeg", 24)

	images, err := LoadImageFiles(path)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, path, images[0].Path)
	assert.Equal(t, 7, images[0].Frame)
	assert.Equal(t, 24, len(images[0].Data))
}

func TestLoadImageFilesRejectsUnsupportedFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "clip.mp4", 24)

	_, err := LoadImageFiles(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a supported image file")
}

func TestLoadImageFilesMissingPath(t *testing.T) {
	_, err := LoadImageFiles(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("a/b/frame-1.JPG"))
	assert.True(t, IsImageFile("x.png"))
	assert.False(t, IsImageFile("x.webp"))
	assert.False(t, IsImageFile("x"))
}
