package media

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/crypto/blake2b"
)

// PixelFormat identifies the memory layout of a PixelBuffer.
type PixelFormat uint8

const (
	// PixelFormatBGRA32 is 8-bit blue, green, red, alpha; the capture output format.
	PixelFormatBGRA32 PixelFormat = iota + 1
	// PixelFormatRGBA32 is 8-bit red, green, blue, alpha.
	PixelFormatRGBA32
)

// String returns the format name.
func (f PixelFormat) String() string {
	switch f {
	case PixelFormatBGRA32:
		return "BGRA32"
	case PixelFormatRGBA32:
		return "RGBA32"
	default:
		return fmt.Sprintf("PixelFormat(%d)", uint8(f))
	}
}

// BytesPerPixel returns the pixel size, or 0 for an unknown format.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormatBGRA32, PixelFormatRGBA32:
		return 4
	}
	return 0
}

var (
	// ErrUnknownPixelFormat is returned for buffers with an unsupported layout.
	ErrUnknownPixelFormat = errors.New("unknown pixel format")

	// ErrSizeMismatch is returned when an image does not match the buffer size.
	ErrSizeMismatch = errors.New("image size does not match buffer")
)

// PixelBuffer is an uncompressed image in one of the packed PixelFormats.
type PixelBuffer struct {
	Width  int
	Height int
	Stride int
	Format PixelFormat
	Pix    []byte
}

// NewPixelBuffer allocates a tightly packed buffer.
func NewPixelBuffer(width, height int, format PixelFormat) (*PixelBuffer, error) {
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return nil, ErrUnknownPixelFormat
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid buffer dimensions: %dx%d", width, height)
	}
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Stride: width * bpp,
		Format: format,
		Pix:    make([]byte, width*height*bpp),
	}, nil
}

// Bounds returns the rectangle covered by the buffer.
func (b *PixelBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

// Image copies the buffer into a non-premultiplied RGBA image.
func (b *PixelBuffer) Image() *image.NRGBA {
	img := image.NewNRGBA(b.Bounds())
	for y := 0; y < b.Height; y++ {
		src := b.Pix[y*b.Stride : y*b.Stride+b.Width*4]
		dst := img.Pix[y*img.Stride : y*img.Stride+b.Width*4]
		if b.Format == PixelFormatRGBA32 {
			copy(dst, src)
			continue
		}
		for i := 0; i < len(src); i += 4 {
			dst[i+0] = src[i+2]
			dst[i+1] = src[i+1]
			dst[i+2] = src[i+0]
			dst[i+3] = src[i+3]
		}
	}
	return img
}

// Render draws img into the buffer. The image must be exactly the buffer
// size; anything else returns ErrSizeMismatch and leaves the buffer as is.
func (b *PixelBuffer) Render(img image.Image) error {
	if b.Format.BytesPerPixel() == 0 {
		return ErrUnknownPixelFormat
	}
	bounds := img.Bounds()
	if bounds.Dx() != b.Width || bounds.Dy() != b.Height {
		return fmt.Errorf("%w: %dx%d into %dx%d", ErrSizeMismatch, bounds.Dx(), bounds.Dy(), b.Width, b.Height)
	}
	w, h := b.Width, b.Height

	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < h; y++ {
			so := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			b.putRow(y, src.Pix[so:so+w*4])
		}
		return nil
	}

	row := make([]byte, w*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			row[x*4+0], row[x*4+1], row[x*4+2], row[x*4+3] = c.R, c.G, c.B, c.A
		}
		b.putRow(y, row)
	}
	return nil
}

// putRow stores one row of RGBA bytes in the buffer's layout.
func (b *PixelBuffer) putRow(y int, rgba []byte) {
	dst := b.Pix[y*b.Stride : y*b.Stride+len(rgba)]
	if b.Format == PixelFormatRGBA32 {
		copy(dst, rgba)
		return
	}
	for i := 0; i < len(rgba); i += 4 {
		dst[i+0] = rgba[i+2]
		dst[i+1] = rgba[i+1]
		dst[i+2] = rgba[i+0]
		dst[i+3] = rgba[i+3]
	}
}

// Digest returns the blake2b-256 hash of the pixel data.
func (b *PixelBuffer) Digest() [32]byte {
	return blake2b.Sum256(b.Pix)
}

// Clone returns a deep copy of the buffer.
func (b *PixelBuffer) Clone() *PixelBuffer {
	c := *b
	c.Pix = append([]byte(nil), b.Pix...)
	return &c
}

// RawFrame is one frame as delivered by the capture device. The buffer must
// not be modified by consumers.
type RawFrame struct {
	Buffer *PixelBuffer
	PTS    Time
}

// Dimensions returns the frame size, or zeros for an empty frame.
func (f RawFrame) Dimensions() (width, height int) {
	if f.Buffer == nil {
		return 0, 0
	}
	return f.Buffer.Width, f.Buffer.Height
}

// FilteredFrame is a renderable frame produced from a RawFrame; it carries
// the timestamp of its source.
type FilteredFrame struct {
	Image image.Image
	PTS   Time
}

// Transform is the orientation metadata of a video track.
type Transform struct {
	// Rotation in degrees clockwise: 0, 90, 180 or 270.
	Rotation int
	// Mirrored flips the image horizontally after rotation.
	Mirrored bool
}

// Validate reports whether the rotation is a right angle.
func (t Transform) Validate() error {
	switch t.Rotation {
	case 0, 90, 180, 270:
		return nil
	}
	return fmt.Errorf("unsupported rotation %d", t.Rotation)
}

// IsIdentity reports whether the transform leaves images unchanged.
func (t Transform) IsIdentity() bool {
	return t.Rotation == 0 && !t.Mirrored
}
