package clip

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash"
	"io"

	"github.com/opd-ai/film24/media"
	"golang.org/x/crypto/blake2b"
)

// Encoder writes a clip. Tracks are added first, then Begin fixes the session
// start; samples follow and Finish writes the trailer.
//
// Encoder is not safe for concurrent use.
type Encoder struct {
	w         *bufio.Writer
	timescale int32

	video *VideoTrack
	audio *AudioTrack

	begun    bool
	finished bool
	start    media.Time
	last     media.Time

	digest      hash.Hash
	videoFrames uint32
	audioBufs   uint32
	scratch     [13]byte
}

// NewEncoder creates an encoder writing at the given timescale. A
// non-positive timescale selects media.DefaultTimescale.
func NewEncoder(w io.Writer, timescale int32) *Encoder {
	if timescale <= 0 {
		timescale = media.DefaultTimescale
	}
	digest, _ := blake2b.New256(nil) // only fails for oversized keys
	return &Encoder{
		w:         bufio.NewWriterSize(w, 64*1024),
		timescale: timescale,
		digest:    digest,
	}
}

// AddVideoTrack declares the video track.
func (e *Encoder) AddVideoTrack(track VideoTrack) error {
	if e.begun {
		return ErrInputAfterStart
	}
	if e.video != nil {
		return fmt.Errorf("video: %w", ErrDuplicateTrack)
	}
	if err := track.validate(); err != nil {
		return err
	}
	e.video = &track
	return nil
}

// AddAudioTrack declares the audio track.
func (e *Encoder) AddAudioTrack(track AudioTrack) error {
	if e.begun {
		return ErrInputAfterStart
	}
	if e.audio != nil {
		return fmt.Errorf("audio: %w", ErrDuplicateTrack)
	}
	if track.SampleRate == 0 || track.Channels == 0 {
		return fmt.Errorf("invalid audio track %d Hz x%d", track.SampleRate, track.Channels)
	}
	e.audio = &track
	return nil
}

// HasAudio reports whether an audio track was added.
func (e *Encoder) HasAudio() bool {
	return e.audio != nil
}

// Begin writes the header and starts the session at start. Sample times are
// stored relative to start.
func (e *Encoder) Begin(start media.Time) error {
	if e.begun {
		return nil
	}
	if e.video == nil {
		return ErrNoVideoTrack
	}
	if !start.IsValid() {
		return fmt.Errorf("%w: invalid start time", ErrBeforeStart)
	}
	if err := e.writeHeader(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	e.begun = true
	e.start = start.ConvertScale(e.timescale)
	e.last = e.start
	return nil
}

// Start returns the absolute session start, or an invalid time before Begin.
func (e *Encoder) Start() media.Time {
	if !e.begun {
		return media.InvalidTime
	}
	return e.start
}

func (e *Encoder) writeHeader() error {
	hdr := make([]byte, 0, 32)
	hdr = append(hdr, magic[:]...)
	hdr = binary.LittleEndian.AppendUint16(hdr, version)
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(e.video.Width))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(e.video.Height))
	hdr = append(hdr, byte(e.video.Format))
	hdr = binary.LittleEndian.AppendUint16(hdr, uint16(e.video.Transform.Rotation))
	hdr = append(hdr, boolByte(e.video.Transform.Mirrored))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(e.timescale))
	if e.audio == nil {
		hdr = append(hdr, 0)
	} else {
		hdr = append(hdr, 1)
		hdr = binary.LittleEndian.AppendUint32(hdr, e.audio.SampleRate)
		hdr = append(hdr, e.audio.Channels)
	}
	_, err := e.w.Write(hdr)
	return err
}

// WriteVideo appends one frame of packed pixels at absolute time pts.
func (e *Encoder) WriteVideo(pts media.Time, pix []byte) error {
	if err := e.checkWritable(pts); err != nil {
		return err
	}
	if len(pix) != e.video.FrameSize() {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrPayloadSize, len(pix), e.video.FrameSize())
	}
	if err := e.writeRecord(KindVideo, pts, pix); err != nil {
		return err
	}
	e.digest.Write(pix)
	e.videoFrames++
	return nil
}

// WriteAudio appends interleaved PCM16 samples at absolute time pts.
func (e *Encoder) WriteAudio(pts media.Time, pcm []byte) error {
	if e.audio == nil {
		return ErrNoAudioTrack
	}
	if err := e.checkWritable(pts); err != nil {
		return err
	}
	if len(pcm)%(2*int(e.audio.Channels)) != 0 {
		return fmt.Errorf("%w: %d bytes is not a whole number of frames", ErrPayloadSize, len(pcm))
	}
	if err := e.writeRecord(KindAudio, pts, pcm); err != nil {
		return err
	}
	e.audioBufs++
	return nil
}

func (e *Encoder) checkWritable(pts media.Time) error {
	switch {
	case e.finished:
		return ErrFinished
	case !e.begun:
		return ErrNotStarted
	case !pts.IsValid() || pts.Before(e.start):
		return fmt.Errorf("%w: %s < %s", ErrBeforeStart, pts, e.start)
	}
	return nil
}

func (e *Encoder) writeRecord(kind Kind, pts media.Time, payload []byte) error {
	rel := pts.ConvertScale(e.timescale).Value - e.start.Value
	e.scratch[0] = byte(kind)
	binary.LittleEndian.PutUint64(e.scratch[1:9], uint64(rel))
	binary.LittleEndian.PutUint32(e.scratch[9:13], uint32(len(payload)))
	if _, err := e.w.Write(e.scratch[:]); err != nil {
		return err
	}
	if _, err := e.w.Write(payload); err != nil {
		return err
	}
	if abs := pts.ConvertScale(e.timescale); abs.After(e.last) {
		e.last = abs
	}
	return nil
}

// Finish writes the trailer with the session ending at absolute time end and
// flushes buffered data. An invalid or early end falls back to the latest
// sample time.
func (e *Encoder) Finish(end media.Time) (Trailer, error) {
	if e.finished {
		return Trailer{}, ErrFinished
	}
	if !e.begun {
		return Trailer{}, ErrNotStarted
	}
	e.finished = true

	end = end.ConvertScale(e.timescale)
	if !end.IsValid() || end.Before(e.last) {
		end = e.last
	}
	t := Trailer{
		Duration:     media.NewTime(end.Value-e.start.Value, e.timescale),
		VideoFrames:  e.videoFrames,
		AudioBuffers: e.audioBufs,
	}
	copy(t.Digest[:], e.digest.Sum(nil))

	buf := make([]byte, 0, 1+8+4+4+32)
	buf = append(buf, byte(kindTrailer))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(t.Duration.Value))
	buf = binary.LittleEndian.AppendUint32(buf, t.VideoFrames)
	buf = binary.LittleEndian.AppendUint32(buf, t.AudioBuffers)
	buf = append(buf, t.Digest[:]...)
	if _, err := e.w.Write(buf); err != nil {
		return Trailer{}, fmt.Errorf("write trailer: %w", err)
	}
	if err := e.w.Flush(); err != nil {
		return Trailer{}, fmt.Errorf("flush: %w", err)
	}
	return t, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
