package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/opd-ai/film24/camera"
	"github.com/opd-ai/film24/media"
	"github.com/sirupsen/logrus"
)

// Stage names a backend step that can be made to fail.
type Stage uint8

// Backend steps.
const (
	StageOpen Stage = iota + 1
	StageInput
	StageOutput
	StageAudio
	StageStart
)

// ErrInputBusy is returned when an input is attached to a session that
// already has one.
var ErrInputBusy = errors.New("session already has an input")

// Backend is an in-process camera.Backend. Frames are pushed with
// DeliverVideo, DeliverAudio or Run.
type Backend struct {
	mu      sync.Mutex
	status  map[camera.MediaType]camera.AuthorizationStatus
	answers map[camera.MediaType]bool
	pending map[camera.MediaType][]func(bool)
	devices []camera.Device
	faults  map[Stage]error

	input      camera.Device
	output     *camera.OutputConfig
	videoSink  camera.SampleSink
	audioSink  camera.SampleSink
	streaming  bool
	starts     int
	overlapped int
	requests   int
}

// NewBackend creates a backend with camera and microphone access granted
// and no devices.
func NewBackend() *Backend {
	logrus.WithFields(logrus.Fields{
		"function": "sim.NewBackend",
	}).Debug("Creating simulated capture backend")
	return &Backend{
		status: map[camera.MediaType]camera.AuthorizationStatus{
			camera.MediaVideo: camera.AuthorizationAuthorized,
			camera.MediaAudio: camera.AuthorizationAuthorized,
		},
		answers: make(map[camera.MediaType]bool),
		pending: make(map[camera.MediaType][]func(bool)),
		faults:  make(map[Stage]error),
	}
}

// NewPhoneBackend returns a backend with a rear dual-wide camera and a front
// wide-angle camera, both with DefaultDeviceConfig.
func NewPhoneBackend() (*Backend, *Device, *Device) {
	b := NewBackend()
	back := NewDevice(camera.DeviceInfo{ID: "back-dual-wide", Type: camera.DeviceDualWide, Position: camera.PositionBack}, DefaultDeviceConfig())
	front := NewDevice(camera.DeviceInfo{ID: "front-wide", Type: camera.DeviceWideAngle, Position: camera.PositionFront}, DefaultDeviceConfig())
	b.AddDevice(back)
	b.AddDevice(front)
	return b, back, front
}

// AddDevice makes dev discoverable.
func (b *Backend) AddDevice(dev camera.Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = append(b.devices, dev)
}

// SetAuthorization sets the permission status for m.
func (b *Backend) SetAuthorization(m camera.MediaType, status camera.AuthorizationStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status[m] = status
}

// AutoAnswer makes RequestAccess for m answer granted asynchronously
// instead of waiting for Answer.
func (b *Backend) AutoAnswer(m camera.MediaType, granted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answers[m] = granted
}

// SetFault makes stage fail with err; nil clears it.
func (b *Backend) SetFault(stage Stage, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.faults, stage)
		return
	}
	b.faults[stage] = err
}

// AuthorizationStatus implements camera.Backend.
func (b *Backend) AuthorizationStatus(m camera.MediaType) camera.AuthorizationStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status[m]
}

// RequestAccess implements camera.Backend.
func (b *Backend) RequestAccess(m camera.MediaType, done func(bool)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests++
	if granted, ok := b.answers[m]; ok {
		go b.resolve(m, granted, done)
		return
	}
	b.pending[m] = append(b.pending[m], done)
}

// Pending returns the number of unanswered permission requests for m.
func (b *Backend) Pending(m camera.MediaType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending[m])
}

// Requests returns the number of permission prompts shown.
func (b *Backend) Requests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests
}

// Answer resolves every pending request for m.
func (b *Backend) Answer(m camera.MediaType, granted bool) {
	b.mu.Lock()
	waiting := b.pending[m]
	delete(b.pending, m)
	b.mu.Unlock()
	for _, done := range waiting {
		b.resolve(m, granted, done)
	}
}

func (b *Backend) resolve(m camera.MediaType, granted bool, done func(bool)) {
	status := camera.AuthorizationDenied
	if granted {
		status = camera.AuthorizationAuthorized
	}
	b.SetAuthorization(m, status)
	done(granted)
}

// Devices implements camera.Backend.
func (b *Backend) Devices(position camera.Position) []camera.DeviceInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []camera.DeviceInfo
	for _, d := range b.devices {
		if d.Info().Position == position {
			out = append(out, d.Info())
		}
	}
	return out
}

// Open implements camera.Backend.
func (b *Backend) Open(info camera.DeviceInfo) (camera.Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults[StageOpen]; err != nil {
		return nil, err
	}
	for _, d := range b.devices {
		if d.Info().ID == info.ID {
			return d, nil
		}
	}
	return nil, fmt.Errorf("device %q not found", info.ID)
}

// AttachInput implements camera.Backend.
func (b *Backend) AttachInput(dev camera.Device) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults[StageInput]; err != nil {
		return err
	}
	if b.input != nil {
		b.overlapped++
		return ErrInputBusy
	}
	b.input = dev
	return nil
}

// AttachVideoOutput implements camera.Backend.
func (b *Backend) AttachVideoOutput(cfg camera.OutputConfig, sink camera.SampleSink) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults[StageOutput]; err != nil {
		return err
	}
	b.output = &cfg
	b.videoSink = sink
	return nil
}

// AttachAudio implements camera.Backend.
func (b *Backend) AttachAudio(sink camera.SampleSink) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults[StageAudio]; err != nil {
		return err
	}
	b.audioSink = sink
	return nil
}

// DetachAll implements camera.Backend.
func (b *Backend) DetachAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.input = nil
	b.output = nil
	b.videoSink = nil
	b.audioSink = nil
}

// StartStream implements camera.Backend.
func (b *Backend) StartStream() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.faults[StageStart]; err != nil {
		return err
	}
	if b.input == nil || b.videoSink == nil {
		return errors.New("session has no input or output")
	}
	b.streaming = true
	b.starts++
	return nil
}

// StopStream implements camera.Backend.
func (b *Backend) StopStream() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streaming = false
}

// Snapshot describes the session wiring.
type Snapshot struct {
	Input      *camera.DeviceInfo
	Output     *camera.OutputConfig
	Audio      bool
	Streaming  bool
	Starts     int
	Overlapped int
}

// Snapshot returns the current session wiring.
func (b *Backend) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Snapshot{
		Output:     b.output,
		Audio:      b.audioSink != nil,
		Streaming:  b.streaming,
		Starts:     b.starts,
		Overlapped: b.overlapped,
	}
	if b.input != nil {
		info := b.input.Info()
		s.Input = &info
	}
	return s
}

// DeliverVideo hands frame to the attached sink. It reports false when the
// stream is not running.
func (b *Backend) DeliverVideo(frame media.RawFrame) bool {
	b.mu.Lock()
	sink := b.videoSink
	ok := b.streaming && sink != nil
	b.mu.Unlock()
	if ok {
		sink.HandleVideo(frame)
	}
	return ok
}

// DeliverAudio hands buf to the attached microphone sink.
func (b *Backend) DeliverAudio(buf media.AudioBuffer) bool {
	b.mu.Lock()
	sink := b.audioSink
	ok := b.streaming && sink != nil
	b.mu.Unlock()
	if ok {
		sink.HandleAudio(buf)
	}
	return ok
}

// RunOptions configures a synthetic stream.
type RunOptions struct {
	Width, Height int
	FPS           int
	Frames        int
	// Start is the timestamp of the first frame. Invalid means zero at
	// media.DefaultTimescale.
	Start media.Time
	// Audio interleaves one PCM16 buffer per frame.
	Audio      bool
	SampleRate uint32
	// Pace sleeps one frame interval between frames.
	Pace bool
}

func (o *RunOptions) defaults() {
	if o.Width <= 0 {
		o.Width = 64
	}
	if o.Height <= 0 {
		o.Height = 48
	}
	if o.FPS <= 0 {
		o.FPS = 30
	}
	if !o.Start.IsValid() {
		o.Start = media.NewTime(0, media.DefaultTimescale)
	}
	if o.SampleRate == 0 {
		o.SampleRate = 48000
	}
}

// Run delivers opts.Frames synthetic frames at exact 1/FPS timestamps on
// the calling goroutine and returns the number the stream accepted.
func (b *Backend) Run(ctx context.Context, opts RunOptions) (int, error) {
	opts.defaults()
	logrus.WithFields(logrus.Fields{
		"function": "Backend.Run",
		"frames":   opts.Frames,
		"fps":      opts.FPS,
		"size":     fmt.Sprintf("%dx%d", opts.Width, opts.Height),
	}).Debug("Simulating capture stream")

	interval := time.Second / time.Duration(opts.FPS)
	delivered := 0
	for i := 0; i < opts.Frames; i++ {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		pts := opts.Start.Add(media.NewTime(int64(i), int32(opts.FPS)))
		frame, err := Frame(opts.Width, opts.Height, i, pts)
		if err != nil {
			return delivered, err
		}
		if b.DeliverVideo(frame) {
			delivered++
		}
		if opts.Audio {
			b.DeliverAudio(Silence(opts.SampleRate, 1, int(opts.SampleRate)/opts.FPS, pts))
		}
		if opts.Pace {
			select {
			case <-ctx.Done():
				return delivered, ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return delivered, nil
}
