package ingest

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/opd-ai/film24/media"
)

// Orient applies a clockwise rotation and then an optional horizontal flip.
// The identity transform returns img itself.
func Orient(img image.Image, t media.Transform) *image.NRGBA {
	var out *image.NRGBA
	switch t.Rotation {
	case 90:
		out = imaging.Rotate270(img) // imaging rotates counter-clockwise
	case 180:
		out = imaging.Rotate180(img)
	case 270:
		out = imaging.Rotate90(img)
	default:
		if n, ok := img.(*image.NRGBA); ok && !t.Mirrored {
			return n
		}
		out = imaging.Clone(img)
	}
	if t.Mirrored {
		out = imaging.FlipH(out)
	}
	return out
}
