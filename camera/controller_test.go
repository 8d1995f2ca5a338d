package camera_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opd-ai/film24/camera"
	"github.com/opd-ai/film24/media"
	"github.com/opd-ai/film24/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSink struct {
	video atomic.Int64
	audio atomic.Int64
}

func (s *countingSink) HandleVideo(media.RawFrame)    { s.video.Add(1) }
func (s *countingSink) HandleAudio(media.AudioBuffer) { s.audio.Add(1) }

func newController(t *testing.T, backend camera.Backend, opts camera.Options) (*camera.Controller, *countingSink) {
	t.Helper()
	sink := &countingSink{}
	c, err := camera.NewController(backend, sink, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, sink
}

func TestNewControllerValidation(t *testing.T) {
	_, err := camera.NewController(nil, &countingSink{}, camera.Options{})
	assert.Error(t, err)
	_, err = camera.NewController(sim.NewBackend(), nil, camera.Options{})
	assert.Error(t, err)
}

func TestConfigureAttachesPreferredDevice(t *testing.T) {
	backend, back, _ := sim.NewPhoneBackend()
	c, sink := newController(t, backend, camera.Options{})

	require.NoError(t, c.Configure())
	assert.Equal(t, camera.StateConfigured, c.State())
	assert.Equal(t, camera.PositionBack, c.Position())
	assert.Equal(t, 2.0, c.DefaultZoom())
	info, ok := c.Device()
	require.True(t, ok)
	assert.Equal(t, camera.DeviceDualWide, info.Type)

	snap := backend.Snapshot()
	require.NotNil(t, snap.Input)
	assert.Equal(t, "back-dual-wide", snap.Input.ID)
	require.NotNil(t, snap.Output)
	assert.Equal(t, media.PixelFormatBGRA32, snap.Output.Format)
	assert.True(t, snap.Output.Mirrored)
	assert.True(t, snap.Streaming)
	assert.False(t, snap.Audio, "microphone not requested")

	settings := back.Settings()
	assert.Equal(t, 2.0, settings.Zoom)
	assert.Equal(t, camera.FocusContinuous, settings.FocusMode)
	assert.False(t, settings.Locked, "device unlocked after configuration")

	frame, err := sim.Frame(4, 4, 0, media.NewTime(0, 600))
	require.NoError(t, err)
	assert.True(t, backend.DeliverVideo(frame))
	assert.Equal(t, int64(1), sink.video.Load())

	require.NoError(t, c.Configure(), "configure is idempotent")
	assert.Equal(t, 1, backend.Snapshot().Starts)
}

func TestConfigureWaitsForPermission(t *testing.T) {
	backend, _, _ := sim.NewPhoneBackend()
	backend.SetAuthorization(camera.MediaVideo, camera.AuthorizationNotDetermined)
	c, _ := newController(t, backend, camera.Options{})

	done := make(chan error, 1)
	go func() { done <- c.Configure() }()

	require.Eventually(t, func() bool { return backend.Pending(camera.MediaVideo) == 1 }, time.Second, time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("configure returned before the user answered: %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	assert.Equal(t, camera.StateUnconfigured, c.State())
	assert.Nil(t, backend.Snapshot().Input, "no discovery while the prompt is open")

	backend.Answer(camera.MediaVideo, true)
	require.NoError(t, <-done)
	assert.Equal(t, camera.StateConfigured, c.State())
}

func TestConfigurePermissionRefused(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(b *sim.Backend)
		target error
	}{
		{"denied", func(b *sim.Backend) { b.SetAuthorization(camera.MediaVideo, camera.AuthorizationDenied) }, camera.ErrPermissionDenied},
		{"restricted", func(b *sim.Backend) { b.SetAuthorization(camera.MediaVideo, camera.AuthorizationRestricted) }, camera.ErrPermissionRestricted},
		{"prompt refused", func(b *sim.Backend) {
			b.SetAuthorization(camera.MediaVideo, camera.AuthorizationNotDetermined)
			b.AutoAnswer(camera.MediaVideo, false)
		}, camera.ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, _, _ := sim.NewPhoneBackend()
			tt.setup(backend)
			c, _ := newController(t, backend, camera.Options{})

			err := c.Configure()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			var perm *camera.PermissionError
			assert.ErrorAs(t, err, &perm)
			assert.Equal(t, camera.StateUnauthorized, c.State())
			assert.Equal(t, err, c.Errors().Get(), "error is observable")
			assert.Nil(t, backend.Snapshot().Input, "no device discovered")

			assert.ErrorIs(t, c.Zoom(2), camera.ErrNoDevice)
		})
	}
}

func TestConfigureFailureDetachesEverything(t *testing.T) {
	tests := []struct {
		stage sim.Stage
		want  error
	}{
		{sim.StageOpen, camera.ErrCreateInputFailed},
		{sim.StageInput, camera.ErrCannotAddInput},
		{sim.StageOutput, camera.ErrCannotAddOutput},
		{sim.StageStart, camera.ErrStreamFailed},
	}
	for _, tt := range tests {
		t.Run(tt.want.Error(), func(t *testing.T) {
			backend, _, _ := sim.NewPhoneBackend()
			cause := errors.New("injected")
			backend.SetFault(tt.stage, cause)
			c, _ := newController(t, backend, camera.Options{})

			err := c.Configure()
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, cause)
			var cfgErr *camera.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, camera.StateFailed, c.State())

			snap := backend.Snapshot()
			assert.Nil(t, snap.Input)
			assert.Nil(t, snap.Output)
			assert.False(t, snap.Streaming)
			_, ok := c.Device()
			assert.False(t, ok)

			backend.SetFault(tt.stage, nil)
			require.NoError(t, c.Reconfigure(camera.PositionBack), "recovers once the fault clears")
			assert.Equal(t, camera.StateConfigured, c.State())
		})
	}
}

func TestConfigureNoDevice(t *testing.T) {
	c, _ := newController(t, sim.NewBackend(), camera.Options{})
	err := c.Configure()
	assert.ErrorIs(t, err, camera.ErrDeviceUnavailable)
	assert.Equal(t, camera.StateFailed, c.State())
}

func TestMicrophoneIsOptional(t *testing.T) {
	backend, _, _ := sim.NewPhoneBackend()
	c, _ := newController(t, backend, camera.Options{Audio: true})
	require.NoError(t, c.Configure())
	assert.True(t, backend.Snapshot().Audio)

	backend.SetFault(sim.StageAudio, errors.New("no mic"))
	require.NoError(t, c.Reconfigure(camera.PositionBack))
	assert.Equal(t, camera.StateConfigured, c.State())
	assert.False(t, backend.Snapshot().Audio)

	backend.SetFault(sim.StageAudio, nil)
	backend.SetAuthorization(camera.MediaAudio, camera.AuthorizationDenied)
	require.NoError(t, c.Configure())
	require.NoError(t, c.Reconfigure(camera.PositionBack))
	assert.False(t, backend.Snapshot().Audio)
}

func TestSwitchPosition(t *testing.T) {
	backend, _, front := sim.NewPhoneBackend()
	c, _ := newController(t, backend, camera.Options{})
	require.NoError(t, c.Configure())

	require.NoError(t, c.SwitchPosition())
	assert.Equal(t, camera.PositionFront, c.Position())
	assert.Equal(t, 1.0, c.DefaultZoom())
	snap := backend.Snapshot()
	require.NotNil(t, snap.Input)
	assert.Equal(t, "front-wide", snap.Input.ID)
	assert.False(t, snap.Output.Mirrored)
	assert.Equal(t, 1.0, front.Settings().Zoom)

	require.NoError(t, c.SwitchPosition())
	assert.Equal(t, camera.PositionBack, c.Position())
}

func TestRapidSwitchingLeavesOneSession(t *testing.T) {
	backend, _, _ := sim.NewPhoneBackend()
	c, _ := newController(t, backend, camera.Options{})
	require.NoError(t, c.Configure())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.SwitchPosition())
		}()
	}
	wg.Wait()
	require.NoError(t, c.Flush())

	assert.Equal(t, camera.StateConfigured, c.State())
	assert.Equal(t, camera.PositionBack, c.Position(), "an even number of switches")
	snap := backend.Snapshot()
	assert.Zero(t, snap.Overlapped, "never two inputs attached")
	assert.Equal(t, 21, snap.Starts)
	assert.True(t, snap.Streaming)
}

func TestDeviceControls(t *testing.T) {
	backend, back, _ := sim.NewPhoneBackend()
	c, _ := newController(t, backend, camera.Options{})
	require.NoError(t, c.Configure())

	require.NoError(t, c.Zoom(0.5))
	assert.Equal(t, 1.0, back.Settings().Zoom, "ultra-wide base never zooms below 1")
	require.NoError(t, c.Zoom(50))
	assert.Equal(t, 10.0, back.Settings().Zoom)
	require.NoError(t, c.Zoom(3))
	assert.Equal(t, 3.0, back.Settings().Zoom)

	require.NoError(t, c.Exposure(100))
	assert.Equal(t, 8.0, back.Settings().ExposureBias)
	require.NoError(t, c.Exposure(-1.5))
	assert.Equal(t, -1.5, back.Settings().ExposureBias)

	require.NoError(t, c.FrameRate(240))
	assert.Equal(t, 60.0, back.Settings().FrameRate)
	require.NoError(t, c.FrameRate(24))
	assert.Equal(t, 24.0, back.Settings().FrameRate)

	require.NoError(t, c.Stabilization(camera.StabilizationCinematic))
	assert.Equal(t, camera.StabilizationCinematic, back.Settings().Stabilization)
	assert.ErrorIs(t, c.Stabilization(camera.StabilizationAuto), camera.ErrUnsupported)

	require.NoError(t, c.Focus(camera.Point{X: 50, Y: 100}, camera.Size{Width: 200, Height: 400}))
	s := back.Settings()
	assert.Equal(t, camera.FocusAuto, s.FocusMode)
	require.NotNil(t, s.FocusPoint)
	assert.InDelta(t, 0.25, s.FocusPoint.X, 1e-9)
	assert.InDelta(t, 0.75, s.FocusPoint.Y, 1e-9)
	require.NotNil(t, s.ExposurePoint)
	assert.Equal(t, *s.FocusPoint, *s.ExposurePoint)

	require.NoError(t, c.AutoFocus())
	assert.Equal(t, camera.FocusContinuous, back.Settings().FocusMode)
	assert.False(t, back.Settings().Locked)
}

func TestAutoFocusLocksWithoutContinuous(t *testing.T) {
	backend := sim.NewBackend()
	cfg := sim.DefaultDeviceConfig()
	cfg.FocusModes = []camera.FocusMode{camera.FocusLocked}
	dev := sim.NewDevice(camera.DeviceInfo{ID: "wide", Type: camera.DeviceWideAngle, Position: camera.PositionBack}, cfg)
	backend.AddDevice(dev)
	c, _ := newController(t, backend, camera.Options{})
	require.NoError(t, c.Configure())
	assert.Equal(t, 1.0, c.DefaultZoom())

	require.NoError(t, c.AutoFocus())
	assert.Equal(t, camera.FocusLocked, dev.Settings().FocusMode)
}

func TestControlsWithoutDevice(t *testing.T) {
	backend, _, _ := sim.NewPhoneBackend()
	c, _ := newController(t, backend, camera.Options{})

	assert.ErrorIs(t, c.Zoom(2), camera.ErrNoDevice)
	assert.ErrorIs(t, c.Focus(camera.Point{}, camera.Size{}), camera.ErrNoDevice)
	assert.ErrorIs(t, c.AutoFocus(), camera.ErrNoDevice)
	assert.ErrorIs(t, c.Exposure(1), camera.ErrNoDevice)
	assert.ErrorIs(t, c.Stabilization(camera.StabilizationOff), camera.ErrNoDevice)
	assert.ErrorIs(t, c.FrameRate(30), camera.ErrNoDevice)
}

func TestControlsOnFixedDevice(t *testing.T) {
	backend := sim.NewBackend()
	backend.AddDevice(sim.NewFixedDevice(camera.DeviceInfo{ID: "fixed", Type: camera.DeviceWideAngle, Position: camera.PositionBack}))
	c, _ := newController(t, backend, camera.Options{})
	require.NoError(t, c.Configure())

	for name, err := range map[string]error{
		"zoom":          c.Zoom(2),
		"focus":         c.Focus(camera.Point{}, camera.Size{Width: 1, Height: 1}),
		"autofocus":     c.AutoFocus(),
		"exposure":      c.Exposure(1),
		"stabilization": c.Stabilization(camera.StabilizationStandard),
		"frame rate":    c.FrameRate(30),
	} {
		var unsupported *camera.UnsupportedError
		assert.ErrorAs(t, err, &unsupported, name)
		assert.ErrorIs(t, err, camera.ErrUnsupported, name)
	}
}

func TestControlFailuresAreSwallowed(t *testing.T) {
	for name, mutate := range map[string]func(*sim.DeviceConfig){
		"lock":  func(cfg *sim.DeviceConfig) { cfg.LockErr = errors.New("busy") },
		"apply": func(cfg *sim.DeviceConfig) { cfg.ApplyErr = errors.New("rejected") },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := sim.DefaultDeviceConfig()
			mutate(&cfg)
			backend := sim.NewBackend()
			dev := sim.NewDevice(camera.DeviceInfo{ID: "d", Type: camera.DeviceTriple, Position: camera.PositionBack}, cfg)
			backend.AddDevice(dev)
			c, _ := newController(t, backend, camera.Options{})

			require.NoError(t, c.Configure())
			assert.NoError(t, c.Zoom(4))
			assert.NoError(t, c.Exposure(1))
			assert.NoError(t, c.Focus(camera.Point{X: 1, Y: 1}, camera.Size{Width: 2, Height: 2}))
			assert.Equal(t, camera.StateConfigured, c.State())
			assert.True(t, backend.Snapshot().Streaming)
			assert.Equal(t, 1.0, dev.Settings().Zoom, "nothing applied")
		})
	}
}

func TestControlsRaceTeardown(t *testing.T) {
	backend, _, _ := sim.NewPhoneBackend()
	c, _ := newController(t, backend, camera.Options{})
	require.NoError(t, c.Configure())

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			err := c.Zoom(2)
			if err != nil {
				assert.ErrorIs(t, err, camera.ErrNoDevice)
			}
		}
	}()
	for i := 0; i < 10; i++ {
		require.NoError(t, c.SwitchPosition())
	}
	close(stop)
	wg.Wait()
}

// detachTracker records whether an input is attached and counts zoom calls
// that reach a device after it was detached.
type detachTracker struct {
	*sim.Backend
	attached atomic.Bool
	late     atomic.Int64
	applied  atomic.Int64
}

type trackedDevice struct {
	*sim.Device
	tracker *detachTracker
}

func (d *trackedDevice) SetZoom(factor float64) error {
	if !d.tracker.attached.Load() {
		d.tracker.late.Add(1)
	}
	d.tracker.applied.Add(1)
	return d.Device.SetZoom(factor)
}

func (b *detachTracker) Open(info camera.DeviceInfo) (camera.Device, error) {
	dev, err := b.Backend.Open(info)
	if err != nil {
		return nil, err
	}
	return &trackedDevice{Device: dev.(*sim.Device), tracker: b}, nil
}

func (b *detachTracker) AttachInput(dev camera.Device) error {
	if err := b.Backend.AttachInput(dev); err != nil {
		return err
	}
	b.attached.Store(true)
	return nil
}

func (b *detachTracker) DetachAll() {
	b.attached.Store(false)
	b.Backend.DetachAll()
}

func TestControlsNeverReachDetachedDevice(t *testing.T) {
	inner, _, _ := sim.NewPhoneBackend()
	backend := &detachTracker{Backend: inner}
	c, _ := newController(t, backend, camera.Options{})
	require.NoError(t, c.Configure())

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_ = c.Zoom(2)
			}
		}()
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, c.SwitchPosition())
	}
	require.NoError(t, c.Close())
	close(stop)
	wg.Wait()

	assert.Greater(t, backend.applied.Load(), int64(0))
	assert.Zero(t, backend.late.Load(), "zoom applied after DetachAll")
}

func TestCloseWhilePermissionPending(t *testing.T) {
	backend, _, _ := sim.NewPhoneBackend()
	backend.SetAuthorization(camera.MediaVideo, camera.AuthorizationNotDetermined)
	c, _ := newController(t, backend, camera.Options{})

	configured := make(chan error, 1)
	go func() { configured <- c.Configure() }()
	require.Eventually(t, func() bool { return backend.Pending(camera.MediaVideo) == 1 }, time.Second, time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- c.Close() }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on the suspended session queue")
	}

	select {
	case err := <-configured:
		assert.ErrorIs(t, err, camera.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Configure did not return after Close")
	}
	assert.Nil(t, backend.Snapshot().Input)

	// A late answer must not start a session on the closed controller.
	backend.Answer(camera.MediaVideo, true)
	assert.Nil(t, backend.Snapshot().Input)
}

func TestClose(t *testing.T) {
	backend, _, _ := sim.NewPhoneBackend()
	c, _ := newController(t, backend, camera.Options{})
	require.NoError(t, c.Configure())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Configure(), camera.ErrClosed)
	assert.ErrorIs(t, c.SwitchPosition(), camera.ErrClosed)
	assert.ErrorIs(t, c.Flush(), camera.ErrClosed)
	assert.ErrorIs(t, c.Zoom(2), camera.ErrNoDevice)
	assert.False(t, backend.Snapshot().Streaming)
	assert.Nil(t, backend.Snapshot().Input)
}
