package filter

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Transform is a color transform that can be applied to frames.
type Transform interface {
	// Apply maps src to a filtered image. src is never modified.
	Apply(src image.Image) (image.Image, error)
	// GetName returns the transform name for identification
	GetName() string
}

// Identity passes images through unmodified.
type Identity struct{}

// Apply returns src itself.
func (Identity) Apply(src image.Image) (image.Image, error) {
	if src == nil {
		return nil, fmt.Errorf("input image cannot be nil")
	}
	return src, nil
}

// GetName returns the transform name.
func (Identity) GetName() string {
	return "identity"
}

// IsPassthrough reports whether t leaves images unchanged.
func IsPassthrough(t Transform) bool {
	switch v := t.(type) {
	case nil, Identity, *Identity:
		return true
	case *Chain:
		for _, inner := range v.transforms {
			if !IsPassthrough(inner) {
				return false
			}
		}
		return true
	}
	return false
}

// Chain applies several transforms in sequence.
type Chain struct {
	name       string
	transforms []Transform
}

// NewChain creates a chain applying transforms in order.
func NewChain(name string, transforms ...Transform) *Chain {
	return &Chain{name: name, transforms: transforms}
}

// Apply processes an image through every transform in the chain.
func (c *Chain) Apply(src image.Image) (image.Image, error) {
	if src == nil {
		return nil, fmt.Errorf("input image cannot be nil")
	}
	current := src
	for i, t := range c.transforms {
		next, err := t.Apply(current)
		if err != nil {
			return nil, fmt.Errorf("transform %d (%s) failed: %w", i, t.GetName(), err)
		}
		current = next
	}
	return current, nil
}

// Len returns the number of transforms in the chain.
func (c *Chain) Len() int {
	return len(c.transforms)
}

// GetName returns the chain name.
func (c *Chain) GetName() string {
	return c.name
}

// ColorSpace selects the working space a LUT is evaluated in.
type ColorSpace uint8

const (
	// SRGB samples the table with gamma-encoded values.
	SRGB ColorSpace = iota
	// Linear decodes sRGB to linear light before sampling and re-encodes after.
	Linear
)

// String returns the color space name.
func (cs ColorSpace) String() string {
	switch cs {
	case SRGB:
		return "srgb"
	case Linear:
		return "linear"
	default:
		return fmt.Sprintf("ColorSpace(%d)", uint8(cs))
	}
}

// ParseColorSpace returns the color space for a configuration name.
func ParseColorSpace(s string) (ColorSpace, error) {
	switch s {
	case "", "srgb":
		return SRGB, nil
	case "linear":
		return Linear, nil
	}
	return 0, fmt.Errorf("unknown color space %q", s)
}

var srgbToLinear [256]float64

func init() {
	for i := range srgbToLinear {
		v := float64(i) / 255
		if v <= 0.04045 {
			srgbToLinear[i] = v / 12.92
		} else {
			srgbToLinear[i] = math.Pow((v+0.055)/1.055, 2.4)
		}
	}
}

func linearToSRGB(v float64) float64 {
	if v <= 0.0031308 {
		return v * 12.92
	}
	return 1.055*math.Pow(v, 1/2.4) - 0.055
}

// LUTTransform grades images through a 3-D lookup table.
type LUTTransform struct {
	name  string
	lut   *LUT
	space ColorSpace
}

// NewLUTTransform wraps lut as a Transform evaluated in space.
func NewLUTTransform(name string, lut *LUT, space ColorSpace) (*LUTTransform, error) {
	if lut == nil {
		return nil, fmt.Errorf("lut cannot be nil")
	}
	if err := lut.Validate(); err != nil {
		return nil, err
	}
	return &LUTTransform{name: name, lut: lut, space: space}, nil
}

// LUT returns the underlying table.
func (t *LUTTransform) LUT() *LUT {
	return t.lut
}

// ColorSpace returns the working color space.
func (t *LUTTransform) ColorSpace() ColorSpace {
	return t.space
}

// Apply grades every pixel of src into a new image. Alpha is preserved. The
// result depends only on src and the table.
func (t *LUTTransform) Apply(src image.Image) (image.Image, error) {
	if src == nil {
		return nil, fmt.Errorf("input image cannot be nil")
	}
	in, ok := src.(*image.NRGBA)
	if !ok || in.Rect.Min != (image.Point{}) {
		in = imaging.Clone(src)
	}
	w, h := in.Rect.Dx(), in.Rect.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		si := in.PixOffset(0, y)
		di := out.PixOffset(0, y)
		for x := 0; x < w; x++ {
			r, g, b := t.sample(in.Pix[si], in.Pix[si+1], in.Pix[si+2])
			out.Pix[di], out.Pix[di+1], out.Pix[di+2] = r, g, b
			out.Pix[di+3] = in.Pix[si+3]
			si += 4
			di += 4
		}
	}
	return out, nil
}

func (t *LUTTransform) sample(r, g, b uint8) (uint8, uint8, uint8) {
	var fr, fg, fb float64
	if t.space == Linear {
		fr, fg, fb = srgbToLinear[r], srgbToLinear[g], srgbToLinear[b]
	} else {
		fr, fg, fb = float64(r)/255, float64(g)/255, float64(b)/255
	}
	or, og, ob := t.lut.Sample(fr, fg, fb)
	if t.space == Linear {
		or, og, ob = linearToSRGB(clamp01(or)), linearToSRGB(clamp01(og)), linearToSRGB(clamp01(ob))
	}
	return toByte(or), toByte(og), toByte(ob)
}

// GetName returns the transform name.
func (t *LUTTransform) GetName() string {
	return fmt.Sprintf("LUT(%s, %d³, %s)", t.name, t.lut.Size, t.space)
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func toByte(v float64) uint8 {
	return uint8(clamp01(v)*255 + 0.5)
}
