package ingest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/opd-ai/film24/media"
	"github.com/pion/opus"
	"github.com/sirupsen/logrus"
)

// Largest Opus packet: 120 ms at 48 kHz, stereo, 16-bit.
const maxDecodedBytes = 5760 * 2 * 2

var (
	// ErrEmptyPacket indicates an audio buffer with no payload.
	ErrEmptyPacket = errors.New("empty audio packet")
	// ErrUnsupportedCodec indicates an audio buffer the stage cannot decode.
	ErrUnsupportedCodec = errors.New("unsupported audio codec")
)

// AudioDecoder converts Opus buffers to PCM16.
type AudioDecoder struct {
	mu      sync.Mutex
	decoder *opus.Decoder
	out     []byte
}

// NewAudioDecoder creates a decoder.
func NewAudioDecoder() *AudioDecoder {
	decoder := opus.NewDecoder()
	return &AudioDecoder{decoder: &decoder, out: make([]byte, maxDecodedBytes)}
}

// Decode returns buf as PCM16. PCM16 buffers are returned unchanged.
func (d *AudioDecoder) Decode(buf media.AudioBuffer) (media.AudioBuffer, error) {
	switch buf.Format.Codec {
	case media.AudioCodecPCM16:
		return buf, nil
	case media.AudioCodecOpus:
	default:
		return media.AudioBuffer{}, fmt.Errorf("%w: %s", ErrUnsupportedCodec, buf.Format.Codec)
	}
	if len(buf.Data) == 0 {
		return media.AudioBuffer{}, ErrEmptyPacket
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	bandwidth, isStereo, err := d.decoder.Decode(buf.Data, d.out)
	if err != nil {
		return media.AudioBuffer{}, fmt.Errorf("opus decode failed: %w", err)
	}

	channels := uint8(1)
	if isStereo {
		channels = 2
	}
	rate := uint32(bandwidth.SampleRate())
	samples := int(PacketDuration(buf.Data).Seconds() * float64(rate))
	size := samples * int(channels) * 2
	if size == 0 || size > len(d.out) {
		return media.AudioBuffer{}, fmt.Errorf("opus packet of %d samples out of range", samples)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "AudioDecoder.Decode",
		"input_size":  len(buf.Data),
		"bandwidth":   bandwidth.String(),
		"is_stereo":   isStereo,
		"sample_rate": rate,
		"samples":     samples,
	}).Debug("Decoded opus packet")

	return media.AudioBuffer{
		Format:      media.AudioFormat{Codec: media.AudioCodecPCM16, SampleRate: rate, Channels: channels},
		PTS:         buf.PTS,
		Data:        append([]byte(nil), d.out[:size]...),
		SampleCount: samples,
	}, nil
}

// Frame durations in units of 2.5 ms, indexed by TOC configuration.
var opusFrameUnits = [32]int{
	4, 8, 16, 24, 4, 8, 16, 24, 4, 8, 16, 24, // SILK 10, 20, 40, 60 ms
	4, 8, 4, 8, // hybrid 10, 20 ms
	1, 2, 4, 8, 1, 2, 4, 8, 1, 2, 4, 8, 1, 2, 4, 8, // CELT 2.5, 5, 10, 20 ms
}

// PacketDuration returns the audio duration of an Opus packet from its TOC
// byte, or an invalid time for an empty or malformed packet.
func PacketDuration(packet []byte) media.Time {
	if len(packet) == 0 {
		return media.InvalidTime
	}
	toc := packet[0]
	frames := 1
	switch toc & 0x3 {
	case 1, 2:
		frames = 2
	case 3:
		if len(packet) < 2 {
			return media.InvalidTime
		}
		frames = int(packet[1] & 0x3F)
	}
	// Ticks of 2.5 ms at timescale 400.
	return media.NewTime(int64(opusFrameUnits[toc>>3]*frames), 400)
}
