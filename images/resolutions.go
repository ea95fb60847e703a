// Package images - Camera capture modes.
//
// Surveillance cameras negotiate their stream resolution from a small set of
// industry-standard modes. The capture tool asks the device for one of these
// by name; the catalog keeps the name → dimensions mapping in one place.
package images

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// CameraMode is one capture resolution a camera can be asked for.
type CameraMode struct {
	// Name is the short mode name used on the command line (e.g. "1080p").
	Name string `json:"name" yaml:"name"`
	// Width in pixels.
	Width int `json:"width" yaml:"width"`
	// Height in pixels.
	Height int `json:"height" yaml:"height"`
	// AspectRatio by name (e.g. "16:9").
	AspectRatio string `json:"aspect_ratio" yaml:"aspect_ratio"`
}

// MegaPixels returns the sensor area of the mode in megapixels, rounded to
// two decimal places.
func (m CameraMode) MegaPixels() float64 {
	if m.Width <= 0 || m.Height <= 0 {
		return 0
	}
	mp := float64(m.Width*m.Height) / 1_000_000.0
	return math.Round(mp*100) / 100
}

// String returns a human-readable summary of the mode.
func (m CameraMode) String() string {
	return fmt.Sprintf("%s (%dx%d, %.2fMP)", m.Name, m.Width, m.Height, m.MegaPixels())
}

// cameraModes holds the supported capture modes keyed by lowercase name.
var cameraModes = map[string]CameraMode{
	"360p":  {Name: "360p", Width: 640, Height: 360, AspectRatio: "16:9"},
	"480p":  {Name: "480p", Width: 854, Height: 480, AspectRatio: "16:9"},
	"540p":  {Name: "540p", Width: 960, Height: 540, AspectRatio: "16:9"},
	"720p":  {Name: "720p", Width: 1280, Height: 720, AspectRatio: "16:9"},
	"1080p": {Name: "1080p", Width: 1920, Height: 1080, AspectRatio: "16:9"},
	"1440p": {Name: "1440p", Width: 2560, Height: 1440, AspectRatio: "16:9"},
	"3mp":   {Name: "3mp", Width: 2048, Height: 1536, AspectRatio: "4:3"},
	"4mp":   {Name: "4mp", Width: 2688, Height: 1520, AspectRatio: "16:9"},
	"4k":    {Name: "4k", Width: 3840, Height: 2160, AspectRatio: "16:9"},
	"12mp":  {Name: "12mp", Width: 4000, Height: 3000, AspectRatio: "4:3"},
}

// CameraModes returns the supported capture modes ordered by pixel count,
// smallest first.
func CameraModes() []CameraMode {
	modes := make([]CameraMode, 0, len(cameraModes))
	for _, mode := range cameraModes {
		modes = append(modes, mode)
	}
	sort.Slice(modes, func(i, j int) bool {
		return modes[i].Width*modes[i].Height < modes[j].Width*modes[j].Height
	})
	return modes
}

// ParseCameraMode resolves a mode name, case-insensitively.
//
// Arguments:
//   - name: The mode name, e.g. "1080p" or "4K".
//
// Returns:
//   - CameraMode: The resolved mode.
//   - error: An error naming the supported modes if the name is unknown.
func ParseCameraMode(name string) (CameraMode, error) {
	mode, ok := cameraModes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		names := make([]string, 0, len(cameraModes))
		for _, m := range CameraModes() {
			names = append(names, m.Name)
		}
		return CameraMode{}, fmt.Errorf(
			"unknown camera mode %q, supported: %s", name, strings.Join(names, ", "))
	}
	return mode, nil
}

// BestModeUnder returns the largest mode fitting inside the given
// dimensions. Reports false when even the smallest mode does not fit.
//
// Arguments:
//   - width: The maximum width in pixels.
//   - height: The maximum height in pixels.
//
// Returns:
//   - CameraMode: The largest fitting mode.
//   - bool: Whether any mode fits.
func BestModeUnder(width, height int) (CameraMode, bool) {
	var best CameraMode
	var found bool
	for _, mode := range cameraModes {
		if mode.Width > width || mode.Height > height {
			continue
		}
		if !found || mode.Width*mode.Height > best.Width*best.Height {
			best = mode
			found = true
		}
	}
	return best, found
}
