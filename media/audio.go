package media

import "fmt"

// AudioCodec identifies the encoding of an AudioBuffer payload.
type AudioCodec uint8

const (
	// AudioCodecPCM16 is interleaved signed 16-bit little-endian PCM.
	AudioCodecPCM16 AudioCodec = iota + 1
	// AudioCodecOpus is a single Opus packet.
	AudioCodecOpus
)

// String returns the codec name.
func (c AudioCodec) String() string {
	switch c {
	case AudioCodecPCM16:
		return "pcm_s16le"
	case AudioCodecOpus:
		return "opus"
	default:
		return fmt.Sprintf("AudioCodec(%d)", uint8(c))
	}
}

// AudioFormat describes the samples carried by an AudioBuffer.
type AudioFormat struct {
	Codec      AudioCodec
	SampleRate uint32
	Channels   uint8
}

// IsValid reports whether the format can be written.
func (f AudioFormat) IsValid() bool {
	return f.Codec != 0 && f.SampleRate > 0 && f.Channels > 0
}

// AudioBuffer is one discrete buffer of audio from the microphone.
type AudioBuffer struct {
	Format      AudioFormat
	PTS         Time
	Data        []byte
	SampleCount int
}

// Duration returns the buffer length derived from its sample count.
func (b AudioBuffer) Duration() Time {
	if b.Format.SampleRate == 0 {
		return InvalidTime
	}
	return NewTime(int64(b.SampleCount), int32(b.Format.SampleRate))
}
