package filter

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// BrightnessTransform adjusts image brightness.
type BrightnessTransform struct {
	percentage float64 // -100 to +100
}

// NewBrightnessTransform creates a brightness adjustment.
// percentage: -100 (black) to +100 (white), 0 = no change
func NewBrightnessTransform(percentage float64) *BrightnessTransform {
	if percentage < -100 {
		percentage = -100
	}
	if percentage > 100 {
		percentage = 100
	}
	return &BrightnessTransform{percentage: percentage}
}

// Apply adjusts the brightness of every channel except alpha.
func (bt *BrightnessTransform) Apply(src image.Image) (image.Image, error) {
	if src == nil {
		return nil, fmt.Errorf("input image cannot be nil")
	}
	return imaging.AdjustBrightness(src, bt.percentage), nil
}

// GetName returns the transform name.
func (bt *BrightnessTransform) GetName() string {
	return fmt.Sprintf("Brightness(%+.0f)", bt.percentage)
}

// ContrastTransform adjusts image contrast.
type ContrastTransform struct {
	percentage float64 // -100 to +100
}

// NewContrastTransform creates a contrast adjustment.
// percentage: -100 (flat gray) to +100 (maximum contrast), 0 = no change
func NewContrastTransform(percentage float64) *ContrastTransform {
	if percentage < -100 {
		percentage = -100
	}
	if percentage > 100 {
		percentage = 100
	}
	return &ContrastTransform{percentage: percentage}
}

// Apply adjusts the contrast around the midpoint.
func (ct *ContrastTransform) Apply(src image.Image) (image.Image, error) {
	if src == nil {
		return nil, fmt.Errorf("input image cannot be nil")
	}
	return imaging.AdjustContrast(src, ct.percentage), nil
}

// GetName returns the transform name.
func (ct *ContrastTransform) GetName() string {
	return fmt.Sprintf("Contrast(%+.0f)", ct.percentage)
}

// GrayscaleTransform desaturates images.
type GrayscaleTransform struct{}

// Apply converts the image to grayscale.
func (GrayscaleTransform) Apply(src image.Image) (image.Image, error) {
	if src == nil {
		return nil, fmt.Errorf("input image cannot be nil")
	}
	return imaging.Grayscale(src), nil
}

// GetName returns the transform name.
func (GrayscaleTransform) GetName() string {
	return "Grayscale"
}
