package film24

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/opd-ai/film24/ingest"
	"github.com/opd-ai/film24/media"
	"github.com/opd-ai/film24/record"
	"github.com/sirupsen/logrus"
)

// RecordingState is the pipeline-level recording status.
type RecordingState uint8

const (
	// RecordingIdle has no recording in flight.
	RecordingIdle RecordingState = iota
	// RecordingActive is appending frames.
	RecordingActive
	// RecordingFinishing is finalizing the output files.
	RecordingFinishing
	// RecordingExporting is time-scaling the finished output.
	RecordingExporting
)

// String returns the state name.
func (s RecordingState) String() string {
	switch s {
	case RecordingIdle:
		return "idle"
	case RecordingActive:
		return "active"
	case RecordingFinishing:
		return "finishing"
	case RecordingExporting:
		return "exporting"
	default:
		return fmt.Sprintf("RecordingState(%d)", uint8(s))
	}
}

// Result reports a finished recording.
type Result struct {
	// Output is the filtered clip, or the time-scaled clip when Scaled.
	Output string
	// Original is the unfiltered clip. It is empty when no filter was active,
	// since both streams were the same, and after time scaling.
	Original string
	Duration media.Time
	Frames   uint32
	Scaled   bool
	Err      error
}

// recording routes the ingest stream into one or two sessions. The
// sessions are created on the first frame so they match its dimensions.
type recording struct {
	p         *Pipeline
	filterID  string
	filtering bool

	mu       sync.Mutex
	filtered *record.Session
	original *record.Session
	stopped  bool
	failed   bool
}

// AppendVideo implements ingest.Recorder.
func (r *recording) AppendVideo(f ingest.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.failed {
		return
	}
	if r.filtered == nil {
		b := f.Original.Bounds()
		if err := r.start(b.Dx(), b.Dy()); err != nil {
			r.failed = true
			r.p.report("recording.AppendVideo", err)
			return
		}
	}
	r.append(r.filtered, f.Filtered, f.PTS)
	if r.original != nil {
		r.append(r.original, f.Original, f.PTS)
	}
}

func (r *recording) append(s *record.Session, img image.Image, pts media.Time) {
	err := s.AppendVideo(img, pts)
	if err == nil {
		return
	}
	var werr *record.WriterError
	if errors.As(err, &werr) {
		r.p.report("recording.append", err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "recording.append",
		"pts":      pts.String(),
		"error":    err.Error(),
	}).Debug("Frame not appended")
}

// AppendAudio implements ingest.Recorder. Audio goes to every session; it
// is soft-dropped until the first frame has started them.
func (r *recording) AppendAudio(buf media.AudioBuffer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.failed || r.filtered == nil {
		return
	}
	_ = r.filtered.AppendAudio(buf)
	if r.original != nil {
		_ = r.original.AppendAudio(buf)
	}
}

// start creates and starts the sessions. Called with r.mu held.
func (r *recording) start(width, height int) error {
	var audio *media.AudioFormat
	if r.p.opts.Audio {
		format, ok := r.p.stage.AudioFormat()
		if !ok || format.Codec != media.AudioCodecPCM16 {
			format = r.p.opts.AudioFormat
		}
		if format.IsValid() {
			audio = &format
		}
	}
	cfg := record.Config{
		Store:               r.p.store,
		Width:               width,
		Height:              height,
		Format:              media.PixelFormatBGRA32,
		Timescale:           r.p.opts.Timescale,
		Audio:               audio,
		Pools:               r.p.pools,
		QueueDepth:          r.p.opts.QueueDepth,
		MaxConsecutiveDrops: r.p.opts.MaxConsecutiveDrops,
		FinishFailure:       r.p.opts.FinishFailure,
	}

	filteredCfg := cfg
	filteredCfg.Name, filteredCfg.Prefix = "filtered", "filtered"
	filtered, err := record.NewSession(filteredCfg)
	if err != nil {
		return err
	}
	if err := filtered.Start(); err != nil {
		return err
	}

	var original *record.Session
	if r.filtering {
		originalCfg := cfg
		originalCfg.Name, originalCfg.Prefix = "original", "original"
		if original, err = record.NewSession(originalCfg); err == nil {
			err = original.Start()
		}
		if err != nil {
			filtered.Abort()
			return err
		}
	}

	r.filtered, r.original = filtered, original
	logrus.WithFields(logrus.Fields{
		"function": "recording.start",
		"filter":   r.filterID,
		"size":     fmt.Sprintf("%dx%d", width, height),
		"sessions": 1 + btoi(original != nil),
	}).Info("Recording sessions started")
	return nil
}

// stop stops accepting frames and returns the sessions to finish.
func (r *recording) stop() (filtered, original *record.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	return r.filtered, r.original
}

// abort cancels the sessions and waits until their files are deleted.
func (r *recording) abort() {
	filtered, original := r.stop()
	for _, s := range []*record.Session{filtered, original} {
		if s != nil {
			s.Abort()
			<-s.Done()
		}
	}
}

func (r *recording) seconds() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.filtered == nil {
		return 0
	}
	return r.filtered.RecordingSeconds()
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}
