package images

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// getTestImage builds a small gradient image so encoders have real content
// to work with.
func getTestImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 128, A: 255})
		}
	}
	return img
}

func TestFormatFromPath(t *testing.T) {
	cases := []struct {
		path    string
		want    ImageFormat
		wantErr bool
	}{
		{"frame-1.jpg", FormatJPEG, false},
		{"frame-1.JPEG", FormatJPEG, false},
		{"/tmp/captures/face.png", FormatPNG, false},
		{"crop.webp", FormatWebP, false},
		{"clip.mp4", "", true},
		{"noextension", "", true},
	}

	for _, tc := range cases {
		got, err := FormatFromPath(tc.path)
		if tc.wantErr {
			if err == nil {
				t.Errorf("FormatFromPath(%q): expected error, got %q", tc.path, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("FormatFromPath(%q): unexpected error: %v", tc.path, err)
			continue
		}
		if got != tc.want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestDecodeToImage_JPEG(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, getTestImage(), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	img, err := DecodeToImage(buf.Bytes(), FormatJPEG)
	if err != nil {
		t.Fatalf("DecodeToImage: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Errorf("decoded bounds = %v, want 64x48", img.Bounds())
	}
}

func TestDecodeToImage_PNG(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, getTestImage()); err != nil {
		t.Fatalf("encode: %v", err)
	}

	img, err := DecodeToImage(buf.Bytes(), FormatPNG)
	if err != nil {
		t.Fatalf("DecodeToImage: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Errorf("decoded bounds = %v, want 64x48", img.Bounds())
	}
}

func TestDecodeToImage_WebPRoundTrip(t *testing.T) {
	data, err := EncodeWebP(getTestImage(), 80)
	if err != nil {
		t.Fatalf("EncodeWebP: %v", err)
	}

	img, err := DecodeToImage(data, FormatWebP)
	if err != nil {
		t.Fatalf("DecodeToImage: %v", err)
	}
	if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 48 {
		t.Errorf("decoded bounds = %v, want 64x48", img.Bounds())
	}
}

func TestDecodeToImage_Errors(t *testing.T) {
	if _, err := DecodeToImage(nil, FormatJPEG); err == nil {
		t.Error("expected error for empty data")
	}
	if _, err := DecodeToImage([]byte{1, 2, 3}, ImageFormat("tiff")); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, err := DecodeToImage([]byte("not an image"), FormatPNG); err == nil {
		t.Error("expected error for garbage bytes")
	}
}

func TestThumbnail_Validation(t *testing.T) {
	if _, err := Thumbnail(nil, 10, 10, FormatJPEG); err == nil {
		t.Error("expected error for empty data")
	}
	if _, err := Thumbnail([]byte{1}, 0, 10, FormatJPEG); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := Thumbnail([]byte{1}, 10, -1, FormatJPEG); err == nil {
		t.Error("expected error for negative height")
	}
}
