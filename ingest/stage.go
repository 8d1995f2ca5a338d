package ingest

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/film24/filter"
	"github.com/opd-ai/film24/fps"
	"github.com/opd-ai/film24/media"
	"github.com/opd-ai/film24/observe"
	"github.com/sirupsen/logrus"
)

// Frame is one processed video frame handed to a Recorder.
type Frame struct {
	// Original is the orientation-corrected, unfiltered image.
	Original *image.NRGBA
	// Filtered is Original after the active transform; it is Original itself
	// when no transform is active.
	Filtered image.Image
	PTS      media.Time
}

// Filtering reports whether Filtered differs from Original.
func (f Frame) Filtering() bool {
	n, ok := f.Filtered.(*image.NRGBA)
	return !ok || n != f.Original
}

// Recorder consumes the processed stream while a recording is active. Its
// methods are called on the capture delivery goroutine and must not block.
type Recorder interface {
	AppendVideo(frame Frame)
	AppendAudio(buf media.AudioBuffer)
}

// Options configures a Stage.
type Options struct {
	// Orientation corrects frames before filtering.
	Orientation media.Transform
	// FPSWindow is the number of timestamps in the rate estimate.
	FPSWindow int
}

// Stats counts stage activity.
type Stats struct {
	Frames       uint64
	AudioBuffers uint64
	Dropped      uint64
	FilterErrors uint64
	AudioErrors  uint64
}

// Stage turns raw capture samples into filtered frames. It implements
// camera.SampleSink and keeps no frame history, only the latest format
// metadata and the rolling frame-rate estimate.
type Stage struct {
	opts    Options
	decoder *AudioDecoder
	preview *observe.Value[media.FilteredFrame]

	transform atomic.Pointer[transformBox]
	recorder  atomic.Pointer[recorderBox]

	mu          sync.Mutex
	estimator   *fps.Estimator
	width       int
	height      int
	audioFormat media.AudioFormat
	lastPTS     media.Time

	frames       atomic.Uint64
	audioBuffers atomic.Uint64
	dropped      atomic.Uint64
	filterErrors atomic.Uint64
	audioErrors  atomic.Uint64
}

type transformBox struct{ t filter.Transform }

type recorderBox struct{ r Recorder }

// NewStage creates a stage with no active transform.
func NewStage(opts Options) (*Stage, error) {
	if err := opts.Orientation.Validate(); err != nil {
		return nil, err
	}
	s := &Stage{
		opts:      opts,
		decoder:   NewAudioDecoder(),
		preview:   observe.NewValue(media.FilteredFrame{}),
		estimator: fps.NewEstimator(opts.FPSWindow),
	}
	s.transform.Store(&transformBox{t: filter.Identity{}})
	return s, nil
}

// SetTransform replaces the active transform. nil selects the identity.
func (s *Stage) SetTransform(t filter.Transform) {
	if t == nil {
		t = filter.Identity{}
	}
	s.transform.Store(&transformBox{t: t})
	logrus.WithFields(logrus.Fields{
		"function":  "Stage.SetTransform",
		"transform": t.GetName(),
	}).Info("Active transform changed")
}

// Transform returns the active transform.
func (s *Stage) Transform() filter.Transform {
	return s.transform.Load().t
}

// AttachRecorder routes subsequent frames and audio to r.
func (s *Stage) AttachRecorder(r Recorder) {
	s.recorder.Store(&recorderBox{r: r})
}

// DetachRecorder stops routing to the current recorder.
func (s *Stage) DetachRecorder() {
	s.recorder.Store(nil)
}

func (s *Stage) currentRecorder() Recorder {
	if b := s.recorder.Load(); b != nil {
		return b.r
	}
	return nil
}

// Preview returns the observable of the latest filtered frame.
func (s *Stage) Preview() *observe.Value[media.FilteredFrame] {
	return s.preview
}

// Dimensions returns the size of the last processed frame after orientation.
func (s *Stage) Dimensions() (width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// AudioFormat returns the format of the last audio buffer as delivered to
// the recorder, and whether one has arrived.
func (s *Stage) AudioFormat() (media.AudioFormat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.audioFormat, s.audioFormat.IsValid()
}

// FrameRate returns the current frame-rate estimate.
func (s *Stage) FrameRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.estimator.Rate()
}

// LastPTS returns the timestamp of the last processed frame.
func (s *Stage) LastPTS() media.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPTS
}

// Frames returns the number of video frames processed.
func (s *Stage) Frames() uint64 {
	return s.frames.Load()
}

// Stats returns the stage counters.
func (s *Stage) Stats() Stats {
	return Stats{
		Frames:       s.frames.Load(),
		AudioBuffers: s.audioBuffers.Load(),
		Dropped:      s.dropped.Load(),
		FilterErrors: s.filterErrors.Load(),
		AudioErrors:  s.audioErrors.Load(),
	}
}

// HandleVideo processes one raw frame.
func (s *Stage) HandleVideo(raw media.RawFrame) {
	if raw.Buffer == nil || !raw.PTS.IsValid() {
		s.dropped.Add(1)
		logrus.WithFields(logrus.Fields{
			"function": "Stage.HandleVideo",
			"pts":      raw.PTS.String(),
		}).Debug("Dropping frame without buffer or timestamp")
		return
	}

	original := Orient(raw.Buffer.Image(), s.opts.Orientation)
	bounds := original.Bounds()

	s.mu.Lock()
	s.estimator.Observe(raw.PTS)
	s.width, s.height = bounds.Dx(), bounds.Dy()
	s.lastPTS = raw.PTS
	s.mu.Unlock()

	var filtered image.Image = original
	if t := s.Transform(); !filter.IsPassthrough(t) {
		out, err := t.Apply(original)
		if err != nil {
			s.filterErrors.Add(1)
			logrus.WithFields(logrus.Fields{
				"function":  "Stage.HandleVideo",
				"transform": t.GetName(),
				"error":     err.Error(),
			}).Warn("Transform failed, passing frame through")
		} else {
			filtered = out
		}
	}

	s.frames.Add(1)
	s.preview.Set(media.FilteredFrame{Image: filtered, PTS: raw.PTS})
	if r := s.currentRecorder(); r != nil {
		r.AppendVideo(Frame{Original: original, Filtered: filtered, PTS: raw.PTS})
	}
}

// HandleAudio caches the buffer's format and routes it, decoded to PCM16,
// to the recorder.
func (s *Stage) HandleAudio(buf media.AudioBuffer) {
	pcm, err := s.decoder.Decode(buf)
	if err != nil {
		s.audioErrors.Add(1)
		logrus.WithFields(logrus.Fields{
			"function": "Stage.HandleAudio",
			"codec":    buf.Format.Codec.String(),
			"error":    err.Error(),
		}).Warn("Dropping undecodable audio buffer")
		return
	}
	if !pcm.Format.IsValid() {
		s.audioErrors.Add(1)
		return
	}

	s.mu.Lock()
	s.audioFormat = pcm.Format
	s.mu.Unlock()

	s.audioBuffers.Add(1)
	if r := s.currentRecorder(); r != nil {
		r.AppendAudio(pcm)
	}
}
