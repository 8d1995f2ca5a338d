package ingest

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/opd-ai/film24/camera"
	"github.com/opd-ai/film24/filter"
	"github.com/opd-ai/film24/media"
	"github.com/opd-ai/film24/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ camera.SampleSink = (*Stage)(nil)

type captureRecorder struct {
	mu     sync.Mutex
	frames []Frame
	audio  []media.AudioBuffer
}

func (r *captureRecorder) AppendVideo(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *captureRecorder) AppendAudio(b media.AudioBuffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audio = append(r.audio, b)
}

type failingTransform struct{}

func (failingTransform) Apply(image.Image) (image.Image, error) { return nil, errors.New("boom") }
func (failingTransform) GetName() string                        { return "failing" }

func deliver(t *testing.T, s *Stage, w, h, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		f, err := sim.Frame(w, h, i, media.NewTime(int64(i*20), 600))
		require.NoError(t, err)
		s.HandleVideo(f)
	}
}

func TestOrient(t *testing.T) {
	a := color.NRGBA{R: 255, A: 255}
	b := color.NRGBA{B: 255, A: 255}
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, a)
	src.SetNRGBA(1, 0, b)

	assert.Same(t, src, Orient(src, media.Transform{}))

	cw := Orient(src, media.Transform{Rotation: 90})
	assert.Equal(t, image.Rect(0, 0, 1, 2), cw.Bounds())
	assert.Equal(t, a, cw.NRGBAAt(0, 0))
	assert.Equal(t, b, cw.NRGBAAt(0, 1))

	ccw := Orient(src, media.Transform{Rotation: 270})
	assert.Equal(t, b, ccw.NRGBAAt(0, 0))
	assert.Equal(t, a, ccw.NRGBAAt(0, 1))

	half := Orient(src, media.Transform{Rotation: 180})
	assert.Equal(t, b, half.NRGBAAt(0, 0))

	mirrored := Orient(src, media.Transform{Mirrored: true})
	assert.Equal(t, b, mirrored.NRGBAAt(0, 0))
	assert.Equal(t, a, src.NRGBAAt(0, 0), "source untouched")
}

func TestStagePassthrough(t *testing.T) {
	s, err := NewStage(Options{})
	require.NoError(t, err)
	rec := &captureRecorder{}
	s.AttachRecorder(rec)

	deliver(t, s, 8, 4, 30)

	require.Len(t, rec.frames, 30)
	first := rec.frames[0]
	assert.False(t, first.Filtering())
	assert.Same(t, first.Original, first.Filtered)
	assert.Equal(t, media.NewTime(0, 600), first.PTS)

	w, h := s.Dimensions()
	assert.Equal(t, 8, w)
	assert.Equal(t, 4, h)
	assert.InDelta(t, 30, s.FrameRate(), 1e-6)
	assert.Equal(t, uint64(30), s.Frames())
	assert.Equal(t, media.NewTime(29*20, 600), s.LastPTS())

	preview := s.Preview().Get()
	assert.Equal(t, media.NewTime(29*20, 600), preview.PTS)
	assert.Equal(t, image.Rect(0, 0, 8, 4), preview.Image.Bounds())
}

func TestStageFiltersAndOrients(t *testing.T) {
	s, err := NewStage(Options{Orientation: media.Transform{Rotation: 90}})
	require.NoError(t, err)
	s.SetTransform(filter.GrayscaleTransform{})
	rec := &captureRecorder{}
	s.AttachRecorder(rec)

	deliver(t, s, 8, 4, 2)

	w, h := s.Dimensions()
	assert.Equal(t, 4, w, "rotated")
	assert.Equal(t, 8, h)

	require.Len(t, rec.frames, 2)
	f := rec.frames[1]
	assert.True(t, f.Filtering())
	c := color.NRGBAModel.Convert(f.Filtered.At(1, 2)).(color.NRGBA)
	assert.Equal(t, c.R, c.G)
	assert.Equal(t, c.G, c.B)
	assert.Equal(t, "Grayscale", s.Transform().GetName())

	s.SetTransform(nil)
	assert.IsType(t, filter.Identity{}, s.Transform())
}

func TestStageTransformFailurePassesThrough(t *testing.T) {
	s, err := NewStage(Options{})
	require.NoError(t, err)
	s.SetTransform(failingTransform{})
	rec := &captureRecorder{}
	s.AttachRecorder(rec)

	deliver(t, s, 4, 4, 1)
	require.Len(t, rec.frames, 1)
	assert.False(t, rec.frames[0].Filtering())
	assert.Equal(t, uint64(1), s.Stats().FilterErrors)
}

func TestStageDropsInvalidFrames(t *testing.T) {
	s, err := NewStage(Options{})
	require.NoError(t, err)
	rec := &captureRecorder{}
	s.AttachRecorder(rec)

	s.HandleVideo(media.RawFrame{})
	f, err := sim.Frame(4, 4, 0, media.InvalidTime)
	require.NoError(t, err)
	s.HandleVideo(f)

	assert.Empty(t, rec.frames)
	assert.Equal(t, uint64(2), s.Stats().Dropped)
	assert.Equal(t, uint64(0), s.Frames())
}

func TestStageDetachRecorder(t *testing.T) {
	s, err := NewStage(Options{})
	require.NoError(t, err)
	rec := &captureRecorder{}
	s.AttachRecorder(rec)
	deliver(t, s, 4, 4, 1)
	s.DetachRecorder()
	deliver(t, s, 4, 4, 1)
	assert.Len(t, rec.frames, 1)
	assert.Equal(t, uint64(2), s.Frames())
}

func TestStageAudio(t *testing.T) {
	s, err := NewStage(Options{})
	require.NoError(t, err)
	_, ok := s.AudioFormat()
	assert.False(t, ok)

	rec := &captureRecorder{}
	s.AttachRecorder(rec)
	s.HandleAudio(sim.Silence(44100, 2, 1470, media.NewTime(0, 600)))

	format, ok := s.AudioFormat()
	require.True(t, ok)
	assert.Equal(t, media.AudioFormat{Codec: media.AudioCodecPCM16, SampleRate: 44100, Channels: 2}, format)
	require.Len(t, rec.audio, 1)
	assert.Len(t, rec.audio[0].Data, 1470*4)

	s.HandleAudio(media.AudioBuffer{
		Format: media.AudioFormat{Codec: media.AudioCodecOpus, SampleRate: 48000, Channels: 1},
		Data:   []byte{0x01, 0x02, 0x03, 0x04},
	})
	s.HandleAudio(media.AudioBuffer{Format: media.AudioFormat{Codec: 99}, Data: []byte{1}})
	assert.Len(t, rec.audio, 1, "undecodable buffers are not routed")
	assert.Equal(t, uint64(2), s.Stats().AudioErrors)
}

func TestNewStageRejectsBadOrientation(t *testing.T) {
	_, err := NewStage(Options{Orientation: media.Transform{Rotation: 45}})
	assert.Error(t, err)
}

func TestAudioDecoderErrors(t *testing.T) {
	d := NewAudioDecoder()

	_, err := d.Decode(media.AudioBuffer{Format: media.AudioFormat{Codec: media.AudioCodecOpus}})
	assert.ErrorIs(t, err, ErrEmptyPacket)

	_, err = d.Decode(media.AudioBuffer{Format: media.AudioFormat{Codec: media.AudioCodecOpus}, Data: []byte{0x01, 0x02, 0x03, 0x04}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opus decode failed")

	_, err = d.Decode(media.AudioBuffer{})
	assert.ErrorIs(t, err, ErrUnsupportedCodec)

	pcm := sim.Silence(48000, 1, 960, media.NewTime(0, 600))
	out, err := d.Decode(pcm)
	require.NoError(t, err)
	assert.Equal(t, pcm, out)
}

func TestPacketDuration(t *testing.T) {
	tests := []struct {
		name   string
		packet []byte
		want   float64
	}{
		{"silk 10ms x2", []byte{0x01, 0x00}, 0.020},
		{"hybrid 20ms", []byte{0x78}, 0.020},
		{"celt 20ms stereo", []byte{0xFC}, 0.020},
		{"celt 2.5ms", []byte{0x80}, 0.0025},
		{"silk 60ms", []byte{0x18}, 0.060},
		{"arbitrary count", []byte{0x03, 0x03}, 0.030},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PacketDuration(tt.packet).Seconds(), 1e-9)
		})
	}
	assert.False(t, PacketDuration(nil).IsValid())
	assert.False(t, PacketDuration([]byte{0x03}).IsValid())
}
