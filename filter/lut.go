package filter

import (
	"errors"
	"fmt"
	"math"
)

// Maximum edge length accepted for a 3-D table.
const maxLUTSize = 256

var (
	// ErrLUTSize indicates a table edge length outside [2, 256].
	ErrLUTSize = errors.New("invalid LUT size")
	// ErrLUTGeometry indicates an image whose layout does not match the LUT dimension.
	ErrLUTGeometry = errors.New("image geometry does not match LUT dimension")
)

// LUT is a three-dimensional color lookup table of Size³ RGB entries.
//
// Entries are stored with red varying fastest, then green, then blue, the
// same order as the .cube format.
type LUT struct {
	Title     string
	Size      int
	DomainMin [3]float32
	DomainMax [3]float32
	Data      []float32
}

// NewLUT allocates an all-black table.
func NewLUT(size int) (*LUT, error) {
	if size < 2 || size > maxLUTSize {
		return nil, fmt.Errorf("%w: %d", ErrLUTSize, size)
	}
	return &LUT{
		Size:      size,
		DomainMax: [3]float32{1, 1, 1},
		Data:      make([]float32, size*size*size*3),
	}, nil
}

// NewIdentityLUT returns a table that maps every color to itself.
func NewIdentityLUT(size int) (*LUT, error) {
	l, err := NewLUT(size)
	if err != nil {
		return nil, err
	}
	scale := float32(size - 1)
	for b := 0; b < size; b++ {
		for g := 0; g < size; g++ {
			for r := 0; r < size; r++ {
				l.Set(r, g, b, float32(r)/scale, float32(g)/scale, float32(b)/scale)
			}
		}
	}
	return l, nil
}

func (l *LUT) index(r, g, b int) int {
	return ((b*l.Size+g)*l.Size + r) * 3
}

// Set stores the output color for grid point (r, g, b).
func (l *LUT) Set(r, g, b int, or, og, ob float32) {
	i := l.index(r, g, b)
	l.Data[i], l.Data[i+1], l.Data[i+2] = or, og, ob
}

// At returns the output color for grid point (r, g, b).
func (l *LUT) At(r, g, b int) (float32, float32, float32) {
	i := l.index(r, g, b)
	return l.Data[i], l.Data[i+1], l.Data[i+2]
}

// Validate checks the table size and domain.
func (l *LUT) Validate() error {
	if l.Size < 2 || l.Size > maxLUTSize {
		return fmt.Errorf("%w: %d", ErrLUTSize, l.Size)
	}
	if len(l.Data) != l.Size*l.Size*l.Size*3 {
		return fmt.Errorf("%w: %d entries for size %d", ErrLUTSize, len(l.Data)/3, l.Size)
	}
	for c := 0; c < 3; c++ {
		if !(l.DomainMax[c] > l.DomainMin[c]) {
			return fmt.Errorf("invalid LUT domain [%g, %g]", l.DomainMin[c], l.DomainMax[c])
		}
	}
	return nil
}

// Sample maps an input color through the table with trilinear
// interpolation. Inputs are clamped to the table domain.
func (l *LUT) Sample(r, g, b float64) (float64, float64, float64) {
	n := l.Size - 1
	x, x0, x1 := l.axis(r, 0, n)
	y, y0, y1 := l.axis(g, 1, n)
	z, z0, z1 := l.axis(b, 2, n)

	var out [3]float64
	for c := 0; c < 3; c++ {
		c000 := float64(l.Data[l.index(x0, y0, z0)+c])
		c100 := float64(l.Data[l.index(x1, y0, z0)+c])
		c010 := float64(l.Data[l.index(x0, y1, z0)+c])
		c110 := float64(l.Data[l.index(x1, y1, z0)+c])
		c001 := float64(l.Data[l.index(x0, y0, z1)+c])
		c101 := float64(l.Data[l.index(x1, y0, z1)+c])
		c011 := float64(l.Data[l.index(x0, y1, z1)+c])
		c111 := float64(l.Data[l.index(x1, y1, z1)+c])

		c00 := c000 + (c100-c000)*x
		c10 := c010 + (c110-c010)*x
		c01 := c001 + (c101-c001)*x
		c11 := c011 + (c111-c011)*x
		c0 := c00 + (c10-c00)*y
		c1 := c01 + (c11-c01)*y
		out[c] = c0 + (c1-c0)*z
	}
	return out[0], out[1], out[2]
}

// axis converts a channel value to a grid cell and the fraction within it.
func (l *LUT) axis(v float64, c, n int) (frac float64, lo, hi int) {
	min, max := float64(l.DomainMin[c]), float64(l.DomainMax[c])
	pos := (v - min) / (max - min) * float64(n)
	if math.IsNaN(pos) || pos <= 0 {
		return 0, 0, 0
	}
	if pos >= float64(n) {
		return 0, n, n
	}
	lo = int(pos)
	return pos - float64(lo), lo, lo + 1
}
