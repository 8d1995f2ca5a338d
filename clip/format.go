package clip

import (
	"errors"
	"fmt"

	"github.com/opd-ai/film24/media"
)

// FileExtension is appended to every clip path.
const FileExtension = ".f24"

const (
	version        uint16 = 1
	maxPayloadSize        = 1 << 28
)

var magic = [4]byte{'F', '2', '4', 'C'}

// Kind tags a record.
type Kind uint8

const (
	// KindVideo is one frame of packed pixels.
	KindVideo Kind = 1
	// KindAudio is one buffer of interleaved PCM16 samples.
	KindAudio Kind = 2

	kindTrailer Kind = 0xFF
)

// Container errors.
var (
	// ErrInvalidMagic indicates the data is not a clip file.
	ErrInvalidMagic = errors.New("not a clip file")
	// ErrUnsupportedVersion indicates a clip written by a newer format revision.
	ErrUnsupportedVersion = errors.New("unsupported clip version")
	// ErrInputAfterStart indicates a track was added after writing began.
	ErrInputAfterStart = errors.New("cannot add track after writing started")
	// ErrDuplicateTrack indicates a second track of the same kind was added.
	ErrDuplicateTrack = errors.New("track already added")
	// ErrNoVideoTrack indicates Begin was called without a video track.
	ErrNoVideoTrack = errors.New("no video track")
	// ErrNotStarted indicates a write before Begin.
	ErrNotStarted = errors.New("writing not started")
	// ErrFinished indicates a write after Finish.
	ErrFinished = errors.New("writing already finished")
	// ErrBeforeStart indicates a sample earlier than the session start.
	ErrBeforeStart = errors.New("sample precedes session start")
	// ErrPayloadSize indicates a payload that does not match the track geometry.
	ErrPayloadSize = errors.New("payload size mismatch")
	// ErrNoAudioTrack indicates an audio write on a clip without audio.
	ErrNoAudioTrack = errors.New("no audio track")
	// ErrDigestMismatch indicates the trailer digest does not match the video payloads.
	ErrDigestMismatch = errors.New("video digest mismatch")
)

// VideoTrack describes the video track geometry.
type VideoTrack struct {
	Width     int
	Height    int
	Format    media.PixelFormat
	Transform media.Transform
}

// FrameSize returns the payload size of one frame.
func (v VideoTrack) FrameSize() int {
	return v.Width * v.Height * v.Format.BytesPerPixel()
}

func (v VideoTrack) validate() error {
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("invalid video dimensions %dx%d", v.Width, v.Height)
	}
	if v.Format.BytesPerPixel() == 0 {
		return media.ErrUnknownPixelFormat
	}
	return v.Transform.Validate()
}

// AudioTrack describes the audio track. Only PCM16 is stored.
type AudioTrack struct {
	SampleRate uint32
	Channels   uint8
}

// Format returns the media format of the stored samples.
func (a AudioTrack) Format() media.AudioFormat {
	return media.AudioFormat{Codec: media.AudioCodecPCM16, SampleRate: a.SampleRate, Channels: a.Channels}
}

// Header is the clip preamble.
type Header struct {
	Video     VideoTrack
	Audio     *AudioTrack
	Timescale int32
}

// Trailer closes a finished clip.
type Trailer struct {
	Duration     media.Time
	VideoFrames  uint32
	AudioBuffers uint32
	Digest       [32]byte
}

// Record is one sample read back from a clip.
type Record struct {
	Kind    Kind
	PTS     media.Time
	Payload []byte
}
