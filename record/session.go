package record

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/opd-ai/film24/clip"
	"github.com/opd-ai/film24/media"
	"github.com/opd-ai/film24/pool"
	"github.com/opd-ai/film24/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Defaults applied by NewSession.
const (
	DefaultQueueDepth          = 8
	DefaultMaxConsecutiveDrops = 30
	DefaultPrefix              = "clip"
)

// Config describes one recording session.
type Config struct {
	// Name labels the session in logs.
	Name string
	// Store holds the output file.
	Store *store.Store
	// Path is the output file. Empty means a fresh temporary path.
	Path string
	// Prefix names generated temporary files.
	Prefix string

	Width, Height int
	// Format of the stored frames. Zero means BGRA32.
	Format media.PixelFormat
	// Transform is the orientation metadata stored with the video track.
	Transform media.Transform
	// Timescale of the output. Zero means media.DefaultTimescale.
	Timescale int32
	// Audio adds a PCM16 track of this format. Nil records video only.
	Audio *media.AudioFormat

	// Pools supplies pixel buffers. Nil gives the session its own registry.
	Pools *pool.Registry
	// QueueDepth bounds the writer queue; a full queue drops frames.
	QueueDepth int
	// MaxConsecutiveDrops aborts the session after that many dropped frames
	// in a row. Negative disables the limit.
	MaxConsecutiveDrops int
	// FinishFailure decides the fate of the output when finishing fails.
	FinishFailure FinishFailurePolicy
}

func (c *Config) defaults() {
	if c.Format == 0 {
		c.Format = media.PixelFormatBGRA32
	}
	if c.Timescale <= 0 {
		c.Timescale = media.DefaultTimescale
	}
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	if c.MaxConsecutiveDrops == 0 {
		c.MaxConsecutiveDrops = DefaultMaxConsecutiveDrops
	}
	if c.Name == "" {
		c.Name = c.Prefix
	}
}

func (c *Config) validate() error {
	if c.Store == nil {
		return errors.New("store cannot be nil")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", c.Width, c.Height)
	}
	if c.Audio != nil && c.Audio.Codec != media.AudioCodecPCM16 {
		return fmt.Errorf("audio track must be %s, got %s", media.AudioCodecPCM16, c.Audio.Codec)
	}
	return nil
}

// Outcome is the result of a finished session.
type Outcome struct {
	Path         string
	Duration     media.Time
	Frames       uint32
	AudioBuffers uint32
	Size         int64
	// Err is nil only for a Completed session.
	Err error
}

// Stats counts appended and dropped samples.
type Stats struct {
	Frames       uint64
	Dropped      uint64
	AudioBuffers uint64
	AudioDropped uint64
}

type job struct {
	kind  clip.Kind
	pts   media.Time
	buf   *media.PixelBuffer
	pcm   []byte
	begin bool
}

// Session writes one output file. Appends come from the capture delivery
// goroutine, Start, Stop and Abort from the owner; the encoder itself is
// confined to the session's writer goroutine.
type Session struct {
	cfg   Config
	pools *pool.Registry
	owned bool

	mu               sync.Mutex
	state            State
	path             string
	pool             *pool.Pool
	jobs             chan job
	jobsClosed       bool
	hasAudio         bool
	startPTS         media.Time
	currentPTS       media.Time
	endPTS           media.Time
	consecutiveDrops int
	stats            Stats
	err              error
	finalizing       bool
	outcome          Outcome

	cancelled atomic.Bool
	done      chan struct{}
}

// NewSession creates an idle session.
func NewSession(cfg Config) (*Session, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s := &Session{cfg: cfg, pools: cfg.Pools, done: make(chan struct{})}
	if s.pools == nil {
		s.pools = pool.NewRegistry(cfg.QueueDepth + 2)
		s.owned = true
	}
	return s, nil
}

func (s *Session) log(function string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"function": function,
		"session":  s.cfg.Name,
		"path":     s.path,
	})
}

// Start opens a fresh output file (replacing any stale file at its path)
// and waits for the first frame.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, s.state)
	}
	s.path = s.cfg.Path
	if s.path == "" {
		s.path = s.cfg.Store.TempPath(s.cfg.Prefix, clip.FileExtension)
	}

	file, err := s.cfg.Store.Create(s.path)
	if err != nil {
		return s.failStartLocked(&WriterError{Kind: ErrStartFailed, Path: s.path, Err: err}, nil)
	}
	enc := clip.NewEncoder(file, s.cfg.Timescale)
	track := clip.VideoTrack{Width: s.cfg.Width, Height: s.cfg.Height, Format: s.cfg.Format, Transform: s.cfg.Transform}
	if err := enc.AddVideoTrack(track); err != nil {
		return s.failStartLocked(&WriterError{Kind: ErrCannotAddInput, Path: s.path, Err: err}, file)
	}
	if a := s.cfg.Audio; a != nil {
		if err := enc.AddAudioTrack(clip.AudioTrack{SampleRate: a.SampleRate, Channels: a.Channels}); err != nil {
			s.log("Session.Start").WithField("error", err.Error()).Warn("Recording without audio track")
		}
	}
	p, err := s.pools.Get(pool.Key{Width: s.cfg.Width, Height: s.cfg.Height, Format: s.cfg.Format})
	if err != nil {
		return s.failStartLocked(&WriterError{Kind: ErrStartFailed, Path: s.path, Err: err}, file)
	}

	s.pool = p
	s.hasAudio = enc.HasAudio()
	s.jobs = make(chan job, s.cfg.QueueDepth)
	s.state = StateAwaitingFirstFrame
	go s.run(enc, file)

	s.log("Session.Start").WithFields(logrus.Fields{
		"size":  fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height),
		"audio": s.hasAudio,
	}).Info("Recording session started")
	return nil
}

func (s *Session) failStartLocked(err error, file afero.File) error {
	if file != nil {
		_ = file.Close()
		_ = s.cfg.Store.Remove(s.path)
	}
	s.state = StateFailed
	s.err = err
	s.outcome = Outcome{Path: s.path, Err: err}
	close(s.done)
	s.log("Session.Start").WithField("error", err.Error()).Error("Recording session failed to start")
	return err
}

// AppendVideo renders img into a pooled buffer and queues it at pts. The
// first accepted frame begins the session at its timestamp. A full writer
// queue drops the frame and returns ErrNotReady; pool exhaustion, or too many
// drops in a row, aborts the session and returns a *WriterError.
func (s *Session) AppendVideo(img image.Image, pts media.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAwaitingFirstFrame && s.state != StateWriting {
		return ErrNotRecording
	}
	if !pts.IsValid() {
		s.stats.Dropped++
		return ErrInvalidTimestamp
	}
	if s.state == StateWriting && !pts.After(s.currentPTS) {
		s.stats.Dropped++
		return fmt.Errorf("%w: %s after %s", ErrNonMonotonic, pts, s.currentPTS)
	}

	buf, err := s.pool.Acquire()
	if err != nil {
		werr := &WriterError{Kind: ErrPoolExhausted, Path: s.path, Err: err}
		s.abortLocked(werr)
		return werr
	}
	if err := buf.Render(img); err != nil {
		_ = s.pool.Release(buf)
		s.stats.Dropped++
		return err
	}

	first := s.state == StateAwaitingFirstFrame
	select {
	case s.jobs <- job{kind: clip.KindVideo, pts: pts, buf: buf, begin: first}:
	default:
		_ = s.pool.Release(buf)
		if !first {
			s.currentPTS = pts
		}
		return s.dropLocked()
	}

	s.consecutiveDrops = 0
	s.stats.Frames++
	s.currentPTS = pts
	if first {
		s.state = StateWriting
		s.startPTS = pts
		s.log("Session.AppendVideo").WithField("start", pts.String()).Info("Recording session began writing")
	}
	return nil
}

func (s *Session) dropLocked() error {
	s.stats.Dropped++
	s.consecutiveDrops++
	if max := s.cfg.MaxConsecutiveDrops; max > 0 && s.consecutiveDrops >= max {
		werr := &WriterError{
			Kind: ErrAppendFailed,
			Path: s.path,
			Err:  fmt.Errorf("writer not ready for %d consecutive frames", s.consecutiveDrops),
		}
		s.abortLocked(werr)
		return werr
	}
	s.log("Session.AppendVideo").WithField("consecutive", s.consecutiveDrops).Debug("Writer not ready, frame dropped")
	return ErrNotReady
}

// AppendAudio queues a PCM16 buffer. Audio is accepted only while writing,
// from the session start onward.
func (s *Session) AppendAudio(buf media.AudioBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateWriting {
		return ErrNotRecording
	}
	if !s.hasAudio {
		return clip.ErrNoAudioTrack
	}
	if !buf.PTS.IsValid() || buf.PTS.Before(s.startPTS) {
		s.stats.AudioDropped++
		return ErrInvalidTimestamp
	}
	if buf.Format.Codec != media.AudioCodecPCM16 ||
		buf.Format.SampleRate != s.cfg.Audio.SampleRate || buf.Format.Channels != s.cfg.Audio.Channels {
		s.stats.AudioDropped++
		return fmt.Errorf("audio %s %d Hz x%d does not match the track", buf.Format.Codec, buf.Format.SampleRate, buf.Format.Channels)
	}
	select {
	case s.jobs <- job{kind: clip.KindAudio, pts: buf.PTS, pcm: buf.Data}:
		s.stats.AudioBuffers++
		return nil
	default:
		s.stats.AudioDropped++
		return ErrNotReady
	}
}

// Stop ends the session at the last observed frame and finishes the output
// asynchronously. The returned channel receives the outcome once. A session
// stopped before its first frame is aborted with ErrNoFrames.
func (s *Session) Stop() <-chan Outcome {
	out := make(chan Outcome, 1)
	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.mu.Unlock()
		out <- Outcome{Err: ErrNotRecording}
		close(out)
		return out
	case StateAwaitingFirstFrame:
		s.abortLocked(ErrNoFrames)
	case StateWriting:
		s.state = StateFinalizing
		s.endPTS = s.currentPTS
		s.closeJobsLocked()
		s.log("Session.Stop").WithField("end", s.endPTS.String()).Info("Finalizing recording session")
	}
	s.mu.Unlock()

	go func() {
		<-s.done
		out <- s.Outcome()
		close(out)
	}()
	return out
}

// Abort cancels the session from any non-terminal state and deletes its output.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortLocked(ErrAborted)
}

func (s *Session) abortLocked(cause error) {
	switch s.state {
	case StateIdle:
		s.state = StateAborted
		s.err = cause
		s.outcome = Outcome{Err: cause}
		close(s.done)
		return
	case StateAwaitingFirstFrame, StateWriting:
	case StateFinalizing:
		if s.finalizing {
			return
		}
	default:
		return
	}
	s.state = StateAborted
	s.err = cause
	s.cancelled.Store(true)
	s.closeJobsLocked()
	s.log("Session.abort").WithField("cause", cause.Error()).Warn("Recording session aborted")
}

func (s *Session) closeJobsLocked() {
	if !s.jobsClosed {
		s.jobsClosed = true
		close(s.jobs)
	}
}

// writerFailed moves the session to a terminal state after an encoder error.
func (s *Session) writerFailed(state State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.IsTerminal() || s.finalizing {
		return
	}
	s.state = state
	s.err = err
	s.cancelled.Store(true)
	s.closeJobsLocked()
	s.log("Session.run").WithField("error", err.Error()).Error("Writer failed")
}

// run is the writer goroutine. It owns the encoder and the file.
func (s *Session) run(enc *clip.Encoder, file afero.File) {
	defer close(s.done)
	for j := range s.jobs {
		if !s.cancelled.Load() {
			s.encode(enc, j)
		}
		if j.buf != nil {
			_ = s.pool.Release(j.buf)
		}
	}
	s.finalize(enc, file)
}

func (s *Session) encode(enc *clip.Encoder, j job) {
	if j.begin {
		if err := enc.Begin(j.pts); err != nil {
			s.writerFailed(StateFailed, &WriterError{Kind: ErrStartFailed, Path: s.path, Err: err})
			return
		}
	}
	var err error
	if j.kind == clip.KindAudio {
		err = enc.WriteAudio(j.pts, j.pcm)
	} else {
		err = enc.WriteVideo(j.pts, j.buf.Pix)
	}
	if err != nil {
		s.writerFailed(StateAborted, &WriterError{Kind: ErrAppendFailed, Path: s.path, Err: err})
	}
}

func (s *Session) finalize(enc *clip.Encoder, file afero.File) {
	s.mu.Lock()
	s.finalizing = true
	state, end, cause := s.state, s.endPTS, s.err
	s.mu.Unlock()

	out := Outcome{Path: s.path}
	final := state
	if state == StateFinalizing {
		trailer, err := enc.Finish(end)
		if cerr := file.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			werr := &WriterError{Kind: ErrFinishFailed, Path: s.path, Err: err}
			if s.cfg.FinishFailure == RemovePartial {
				_ = s.cfg.Store.Remove(s.path)
			}
			out.Err = werr
			final = StateFailed
			s.log("Session.finalize").WithFields(logrus.Fields{
				"error":  err.Error(),
				"policy": s.cfg.FinishFailure.String(),
			}).Error("Recording session failed to finish")
		} else {
			out.Duration = trailer.Duration
			out.Frames = trailer.VideoFrames
			out.AudioBuffers = trailer.AudioBuffers
			out.Size, _ = s.cfg.Store.Size(s.path)
			final = StateCompleted
			s.log("Session.finalize").WithFields(logrus.Fields{
				"duration": trailer.Duration.String(),
				"frames":   trailer.VideoFrames,
				"size":     humanize.Bytes(uint64(out.Size)),
			}).Info("Recording session completed")
		}
	} else {
		_ = file.Close()
		if err := s.cfg.Store.Remove(s.path); err != nil {
			s.log("Session.finalize").WithField("error", err.Error()).Warn("Could not delete aborted output")
		}
		out.Err = cause
	}

	s.mu.Lock()
	s.state = final
	s.err = out.Err
	s.outcome = out
	s.mu.Unlock()
	if s.owned {
		s.pools.Close()
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Path returns the output file, empty before Start.
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Stats returns the append counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Err returns the terminal cause, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the session reaches a terminal state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Outcome returns the result, valid once Done is closed.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// RecordingSeconds returns the time from the first written frame to the
// latest observed one. It is zero before writing begins and is never
// negative, NaN or infinite.
func (s *Session) RecordingSeconds() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.startPTS.IsValid() || !s.currentPTS.IsValid() {
		return 0
	}
	sec := s.currentPTS.Sub(s.startPTS).Seconds()
	if math.IsNaN(sec) || math.IsInf(sec, 0) || sec < 0 {
		return 0
	}
	return sec
}
