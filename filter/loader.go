package filter

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for LUT images
	_ "image/png"
	"io"
	"strconv"
	"strings"

	_ "golang.org/x/image/webp"
)

// ErrCubeSyntax indicates a malformed .cube file.
var ErrCubeSyntax = errors.New("invalid cube file")

// ParseCube reads an Adobe .cube 3-D table.
func ParseCube(r io.Reader) (*LUT, error) {
	var (
		lut   *LUT
		title string
		dmin  = [3]float32{0, 0, 0}
		dmax  = [3]float32{1, 1, 1}
		n     int
	)
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		switch strings.ToUpper(fields[0]) {
		case "TITLE":
			title = strings.Trim(strings.TrimSpace(text[len(fields[0]):]), `"`)
			continue
		case "LUT_1D_SIZE":
			return nil, fmt.Errorf("%w: line %d: 1-D tables are not supported", ErrCubeSyntax, line)
		case "LUT_3D_SIZE":
			if len(fields) != 2 {
				return nil, fmt.Errorf("%w: line %d: LUT_3D_SIZE needs one value", ErrCubeSyntax, line)
			}
			size, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrCubeSyntax, line, err)
			}
			if lut, err = NewLUT(size); err != nil {
				return nil, err
			}
			continue
		case "DOMAIN_MIN", "DOMAIN_MAX":
			v, err := parseTriple(fields[1:])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrCubeSyntax, line, err)
			}
			if strings.ToUpper(fields[0]) == "DOMAIN_MIN" {
				dmin = v
			} else {
				dmax = v
			}
			continue
		}

		if lut == nil {
			return nil, fmt.Errorf("%w: line %d: data before LUT_3D_SIZE", ErrCubeSyntax, line)
		}
		v, err := parseTriple(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCubeSyntax, line, err)
		}
		if n >= lut.Size*lut.Size*lut.Size {
			return nil, fmt.Errorf("%w: line %d: too many entries", ErrCubeSyntax, line)
		}
		copy(lut.Data[n*3:n*3+3], v[:])
		n++
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if lut == nil {
		return nil, fmt.Errorf("%w: missing LUT_3D_SIZE", ErrCubeSyntax)
	}
	if want := lut.Size * lut.Size * lut.Size; n != want {
		return nil, fmt.Errorf("%w: %d entries, want %d", ErrCubeSyntax, n, want)
	}
	lut.Title = title
	lut.DomainMin, lut.DomainMax = dmin, dmax
	if err := lut.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCubeSyntax, err)
	}
	return lut, nil
}

func parseTriple(fields []string) ([3]float32, error) {
	var v [3]float32
	if len(fields) != 3 {
		return v, fmt.Errorf("expected 3 values, got %d", len(fields))
	}
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return v, err
		}
		v[i] = float32(x)
	}
	return v, nil
}

// DecodeImageLUT reads a table of edge length dimension laid out as tiles in
// an image. Each dimension×dimension tile holds one blue slice with red along
// x and green along y; tiles advance left to right, then top to bottom. This
// covers 8×8 tiled squares (512×512 for 64) and single-row strips.
func DecodeImageLUT(img image.Image, dimension int) (*LUT, error) {
	lut, err := NewLUT(dimension)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w%dimension != 0 || h%dimension != 0 || (w/dimension)*(h/dimension) != dimension {
		return nil, fmt.Errorf("%w: %dx%d for dimension %d", ErrLUTGeometry, w, h, dimension)
	}
	cols := w / dimension

	for blue := 0; blue < dimension; blue++ {
		ox := b.Min.X + (blue%cols)*dimension
		oy := b.Min.Y + (blue/cols)*dimension
		for g := 0; g < dimension; g++ {
			for r := 0; r < dimension; r++ {
				cr, cg, cb, _ := img.At(ox+r, oy+g).RGBA()
				lut.Set(r, g, blue, float32(cr)/0xffff, float32(cg)/0xffff, float32(cb)/0xffff)
			}
		}
	}
	return lut, nil
}

// ReadImageLUT decodes a PNG, JPEG or WebP stream and then calls DecodeImageLUT.
func ReadImageLUT(r io.Reader, dimension int) (*LUT, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode LUT image: %w", err)
	}
	lut, err := DecodeImageLUT(img, dimension)
	if err != nil {
		return nil, fmt.Errorf("%s LUT: %w", format, err)
	}
	return lut, nil
}
