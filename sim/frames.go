package sim

import (
	"github.com/opd-ai/film24/media"
)

// Frame builds a BGRA test pattern: a diagonal gradient with a vertical bar
// whose position advances with index.
func Frame(width, height, index int, pts media.Time) (media.RawFrame, error) {
	buf, err := media.NewPixelBuffer(width, height, media.PixelFormatBGRA32)
	if err != nil {
		return media.RawFrame{}, err
	}
	bar := index % width
	for y := 0; y < height; y++ {
		row := buf.Pix[y*buf.Stride:]
		for x := 0; x < width; x++ {
			o := x * 4
			row[o+0] = uint8(y * 255 / height) // blue
			row[o+1] = uint8((x + y) % 256)    // green
			row[o+2] = uint8(x * 255 / width)  // red
			row[o+3] = 0xFF
			if x == bar {
				row[o+0], row[o+1], row[o+2] = 0xFF, 0xFF, 0xFF
			}
		}
	}
	return media.RawFrame{Buffer: buf, PTS: pts}, nil
}

// Silence returns a PCM16 buffer of samples zero frames.
func Silence(sampleRate uint32, channels uint8, samples int, pts media.Time) media.AudioBuffer {
	return media.AudioBuffer{
		Format:      media.AudioFormat{Codec: media.AudioCodecPCM16, SampleRate: sampleRate, Channels: channels},
		PTS:         pts,
		Data:        make([]byte, samples*int(channels)*2),
		SampleCount: samples,
	}
}
