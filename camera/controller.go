package camera

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/opd-ai/film24/dispatch"
	"github.com/opd-ai/film24/media"
	"github.com/opd-ai/film24/observe"
	"github.com/sirupsen/logrus"
)

// Options configures a Controller.
type Options struct {
	// Position is the camera used by the first Configure. Unspecified means back.
	Position Position
	// Audio attaches the microphone when its permission is granted.
	Audio bool
	// Orientation of the video output connection.
	Orientation Orientation
}

// Controller owns the capture device session. All configuration runs in
// submission order on one dispatch queue; device controls may be called from
// any goroutine.
type Controller struct {
	backend Backend
	sink    SampleSink
	opts    Options
	queue   *dispatch.Queue

	// Permission answers, written by RequestAccess callbacks.
	authMu    sync.Mutex
	videoAuth AuthorizationStatus
	audioAuth AuthorizationStatus

	// Guards the open device. Held for the whole of every control operation
	// so teardown cannot release a device mid-configuration. position is
	// written only on the queue.
	devMu       sync.Mutex
	device      Device
	info        DeviceInfo
	position    Position
	defaultZoom float64

	state  *observe.Value[SessionState]
	errs   *observe.Value[error]
	closed atomic.Bool
}

// NewController creates a controller delivering samples to sink. No device
// is touched until Configure.
func NewController(backend Backend, sink SampleSink, opts Options) (*Controller, error) {
	if backend == nil {
		return nil, errors.New("backend cannot be nil")
	}
	if sink == nil {
		return nil, errors.New("sample sink cannot be nil")
	}
	if opts.Position == PositionUnspecified {
		opts.Position = PositionBack
	}
	c := &Controller{
		backend:     backend,
		sink:        sink,
		opts:        opts,
		queue:       dispatch.NewQueue("film24.camera.session"),
		position:    opts.Position,
		defaultZoom: 1,
		state:       observe.NewValue(StateUnconfigured),
		errs:        observe.NewValue[error](nil),
	}
	logrus.WithFields(logrus.Fields{
		"function": "NewController",
		"position": opts.Position.String(),
		"audio":    opts.Audio,
	}).Info("Camera controller created")
	return c, nil
}

// Configure checks capture permission, asking the user if needed, and then
// attaches and starts the preferred device. While the permission prompt is
// open the session queue is suspended, so any configuration submitted in the
// meantime waits for the answer.
func (c *Controller) Configure() error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.checkAuthorization()

	var err error
	if qerr := c.queue.Sync(func() { err = c.configureSession(c.Position()) }); qerr != nil {
		return ErrClosed
	}
	return err
}

// Reconfigure tears the session down and configures the camera at position.
// Calls are serialised, so a call made while a teardown is in flight runs
// after it.
func (c *Controller) Reconfigure(position Position) error {
	if position == PositionUnspecified {
		position = PositionBack
	}
	var err error
	if qerr := c.queue.Sync(func() {
		c.teardown()
		err = c.configureSession(position)
	}); qerr != nil {
		return ErrClosed
	}
	return err
}

// SwitchPosition reconfigures for the opposite camera. The new position is
// computed on the session queue, so concurrent switches alternate.
func (c *Controller) SwitchPosition() error {
	var err error
	if qerr := c.queue.Sync(func() {
		next := c.Position().Opposite()
		c.teardown()
		err = c.configureSession(next)
	}); qerr != nil {
		return ErrClosed
	}
	return err
}

// Flush waits until all previously submitted configuration has run.
func (c *Controller) Flush() error {
	if err := c.queue.Sync(func() {}); err != nil {
		return ErrClosed
	}
	return nil
}

// Close stops the stream, detaches the device and stops the session queue.
func (c *Controller) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	// Close waits for the running function only, so a queue suspended on a
	// permission prompt cannot hold up the teardown.
	c.queue.Close()
	c.teardown()
	logrus.WithFields(logrus.Fields{
		"function": "Controller.Close",
	}).Info("Camera controller closed")
	return nil
}

// State returns the current session state.
func (c *Controller) State() SessionState {
	return c.state.Get()
}

// States returns the observable session state.
func (c *Controller) States() *observe.Value[SessionState] {
	return c.state
}

// Errors returns the observable of the latest configuration error.
func (c *Controller) Errors() *observe.Value[error] {
	return c.errs
}

// Position returns the position of the attached device, or of the last
// configuration attempt.
func (c *Controller) Position() Position {
	c.devMu.Lock()
	defer c.devMu.Unlock()
	return c.position
}

// Device returns the description of the attached device.
func (c *Controller) Device() (DeviceInfo, bool) {
	c.devMu.Lock()
	defer c.devMu.Unlock()
	return c.info, c.device != nil
}

// DefaultZoom returns the zoom factor applied when the device was attached.
func (c *Controller) DefaultZoom() float64 {
	c.devMu.Lock()
	defer c.devMu.Unlock()
	return c.defaultZoom
}

func (c *Controller) checkAuthorization() {
	wanted := []MediaType{MediaVideo}
	if c.opts.Audio {
		wanted = append(wanted, MediaAudio)
	}
	for _, m := range wanted {
		m := m
		status := c.backend.AuthorizationStatus(m)
		if status != AuthorizationNotDetermined {
			c.setAuthorization(m, status)
			continue
		}
		logrus.WithFields(logrus.Fields{
			"function": "Controller.checkAuthorization",
			"media":    m.String(),
		}).Info("Requesting capture permission")
		c.queue.Suspend()
		c.backend.RequestAccess(m, func(granted bool) {
			status := AuthorizationDenied
			if granted {
				status = AuthorizationAuthorized
			}
			c.setAuthorization(m, status)
			c.queue.Resume()
		})
	}
}

func (c *Controller) setAuthorization(m MediaType, status AuthorizationStatus) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	if m == MediaAudio {
		c.audioAuth = status
		return
	}
	c.videoAuth = status
}

func (c *Controller) authorization() (video, audio AuthorizationStatus) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	return c.videoAuth, c.audioAuth
}

// configureSession attaches the device at position. It runs on the queue.
func (c *Controller) configureSession(position Position) error {
	video, audio := c.authorization()
	if video != AuthorizationAuthorized {
		err := &PermissionError{Media: MediaVideo, Status: video}
		c.state.Set(StateUnauthorized)
		c.report("Controller.configureSession", err)
		return err
	}
	if c.state.Get() == StateConfigured {
		if c.Position() == position {
			return nil
		}
		c.teardown()
	}
	c.devMu.Lock()
	c.position = position
	c.devMu.Unlock()

	info, ok := SelectDevice(c.backend.Devices(position), position)
	if !ok {
		return c.fail(&ConfigurationError{Kind: ErrDeviceUnavailable, Device: DeviceInfo{Position: position}})
	}
	dev, err := c.backend.Open(info)
	if err != nil {
		return c.fail(&ConfigurationError{Kind: ErrCreateInputFailed, Device: info, Err: err})
	}
	if err := c.backend.AttachInput(dev); err != nil {
		return c.fail(&ConfigurationError{Kind: ErrCannotAddInput, Device: info, Err: err})
	}
	out := OutputConfig{
		Format:            media.PixelFormatBGRA32,
		Orientation:       c.opts.Orientation,
		Mirrored:          position == PositionBack,
		DiscardLateFrames: true,
	}
	if err := c.backend.AttachVideoOutput(out, c.sink); err != nil {
		return c.fail(&ConfigurationError{Kind: ErrCannotAddOutput, Device: info, Err: err})
	}
	if c.opts.Audio {
		c.attachAudio(audio)
	}

	c.devMu.Lock()
	c.device = dev
	c.info = info
	c.defaultZoom = DefaultZoom(info)
	if z, ok := dev.(Zoomer); ok {
		c.applyZoom(dev, z, c.defaultZoom)
	}
	if f, ok := dev.(Focuser); ok {
		c.applyAutoFocus(dev, f)
	}
	c.devMu.Unlock()

	if err := c.backend.StartStream(); err != nil {
		return c.fail(&ConfigurationError{Kind: ErrStreamFailed, Device: info, Err: err})
	}
	c.state.Set(StateConfigured)
	logrus.WithFields(logrus.Fields{
		"function":     "Controller.configureSession",
		"device":       info.String(),
		"default_zoom": DefaultZoom(info),
		"mirrored":     out.Mirrored,
	}).Info("Capture session configured")
	return nil
}

func (c *Controller) attachAudio(status AuthorizationStatus) {
	if status != AuthorizationAuthorized {
		logrus.WithFields(logrus.Fields{
			"function": "Controller.attachAudio",
			"status":   status.String(),
		}).Info("Recording without audio")
		return
	}
	if err := c.backend.AttachAudio(c.sink); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Controller.attachAudio",
			"error":    err.Error(),
		}).Warn("Microphone unavailable, recording without audio")
	}
}

// fail detaches everything attached so far and records err. It runs on the queue.
func (c *Controller) fail(err error) error {
	c.devMu.Lock()
	c.device = nil
	c.devMu.Unlock()
	c.backend.StopStream()
	c.backend.DetachAll()
	c.state.Set(StateFailed)
	c.report("Controller.configureSession", err)
	return err
}

// teardown stops the stream and detaches everything. It runs on the queue,
// or directly once the queue is closed.
// The device is released before the backend detaches it, so no control
// reaches a detached device.
func (c *Controller) teardown() {
	c.devMu.Lock()
	had := c.device != nil
	c.device = nil
	position := c.position
	c.devMu.Unlock()
	c.backend.StopStream()
	c.backend.DetachAll()
	if c.state.Get() != StateUnauthorized {
		c.state.Set(StateUnconfigured)
	}
	if had {
		logrus.WithFields(logrus.Fields{
			"function": "Controller.teardown",
			"position": position.String(),
		}).Info("Capture session torn down")
	}
}

func (c *Controller) report(function string, err error) {
	logrus.WithFields(logrus.Fields{
		"function": function,
		"error":    err.Error(),
	}).Error("Capture session configuration failed")
	c.errs.Set(err)
}

// withDevice runs fn with the attached device while holding the device lock.
func (c *Controller) withDevice(fn func(dev Device) error) error {
	c.devMu.Lock()
	defer c.devMu.Unlock()
	if c.device == nil {
		return ErrNoDevice
	}
	return fn(c.device)
}

// configureDevice applies fn under exclusive configuration access. Failures
// are logged and dropped; they never stop the stream.
func configureDevice(dev Device, function string, fn func() error) {
	if err := dev.Lock(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": function,
			"device":   dev.Info().String(),
			"error":    err.Error(),
		}).Warn("Could not lock device for configuration")
		return
	}
	defer dev.Unlock()
	if err := fn(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": function,
			"device":   dev.Info().String(),
			"error":    err.Error(),
		}).Warn("Device configuration failed")
	}
}

// Zoom sets the zoom factor, clamped to the device range. Devices whose
// widest lens is ultra-wide never zoom below 1.
func (c *Controller) Zoom(factor float64) error {
	return c.withDevice(func(dev Device) error {
		z, ok := dev.(Zoomer)
		if !ok {
			return &UnsupportedError{Op: "zoom", Device: dev.Info().Type}
		}
		c.applyZoom(dev, z, factor)
		return nil
	})
}

func (c *Controller) applyZoom(dev Device, z Zoomer, factor float64) {
	lo, hi := z.ZoomRange()
	if dev.Info().Type.hasUltraWideBase() {
		lo = math.Max(lo, 1)
	}
	v := clamp(factor, lo, hi)
	configureDevice(dev, "Controller.Zoom", func() error {
		return z.SetZoom(v)
	})
}

// Focus focuses on a point of the preview. view is in the coordinates of a
// portrait preview of size bounds. The exposure point follows when the device
// supports it.
func (c *Controller) Focus(view Point, bounds Size) error {
	return c.withDevice(func(dev Device) error {
		f, ok := dev.(Focuser)
		if !ok {
			return &UnsupportedError{Op: "focus", Device: dev.Info().Type}
		}
		poi := FocusPoint(view, bounds, dev.Info().Position)
		configureDevice(dev, "Controller.Focus", func() error {
			var errs []error
			if f.SupportsFocusPoint() {
				errs = append(errs, f.SetFocusPoint(poi))
			}
			if f.SupportsFocusMode(FocusAuto) {
				errs = append(errs, f.SetFocusMode(FocusAuto))
			}
			if ep, ok := dev.(ExposurePointer); ok {
				errs = append(errs, ep.SetExposurePoint(poi))
			}
			return errors.Join(errs...)
		})
		return nil
	})
}

// AutoFocus restores continuous autofocus, or locks focus on devices without it.
func (c *Controller) AutoFocus() error {
	return c.withDevice(func(dev Device) error {
		f, ok := dev.(Focuser)
		if !ok {
			return &UnsupportedError{Op: "autofocus", Device: dev.Info().Type}
		}
		c.applyAutoFocus(dev, f)
		return nil
	})
}

func (c *Controller) applyAutoFocus(dev Device, f Focuser) {
	mode := FocusLocked
	if f.SupportsFocusMode(FocusContinuous) {
		mode = FocusContinuous
	}
	configureDevice(dev, "Controller.AutoFocus", func() error {
		return f.SetFocusMode(mode)
	})
}

// Exposure sets the exposure bias in EV, clamped to the device range.
func (c *Controller) Exposure(bias float64) error {
	return c.withDevice(func(dev Device) error {
		e, ok := dev.(ExposureBiaser)
		if !ok {
			return &UnsupportedError{Op: "exposure", Device: dev.Info().Type}
		}
		lo, hi := e.ExposureBiasRange()
		v := clamp(bias, lo, hi)
		configureDevice(dev, "Controller.Exposure", func() error {
			return e.SetExposureBias(v)
		})
		return nil
	})
}

// Stabilization selects a stabilization mode.
func (c *Controller) Stabilization(mode StabilizationMode) error {
	return c.withDevice(func(dev Device) error {
		s, ok := dev.(Stabilizer)
		if !ok || !s.SupportsStabilization(mode) {
			return &UnsupportedError{Op: "stabilization " + mode.String(), Device: dev.Info().Type}
		}
		configureDevice(dev, "Controller.Stabilization", func() error {
			return s.SetStabilization(mode)
		})
		return nil
	})
}

// FrameRate sets the capture frame rate, clamped to the device range.
func (c *Controller) FrameRate(fps float64) error {
	return c.withDevice(func(dev Device) error {
		r, ok := dev.(FrameRater)
		if !ok {
			return &UnsupportedError{Op: "frame rate", Device: dev.Info().Type}
		}
		lo, hi := r.FrameRateRange()
		v := clamp(fps, lo, hi)
		configureDevice(dev, "Controller.FrameRate", func() error {
			return r.SetFrameRate(v)
		})
		return nil
	})
}
