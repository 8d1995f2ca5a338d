package sim

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/opd-ai/film24/camera"
)

// ErrNotLocked is returned by Device setters called without Lock.
var ErrNotLocked = errors.New("device not locked for configuration")

// DeviceConfig describes the ranges and capabilities of a simulated device.
type DeviceConfig struct {
	ZoomMin, ZoomMax           float64
	BiasMin, BiasMax           float64
	FrameRateMin, FrameRateMax float64
	FocusModes                 []camera.FocusMode
	FocusPoint                 bool
	ExposurePoint              bool
	Stabilization              []camera.StabilizationMode

	// LockErr makes Lock fail.
	LockErr error
	// ApplyErr makes every setter fail.
	ApplyErr error
}

// DefaultDeviceConfig returns the ranges of a typical phone camera.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		ZoomMin: 0.5, ZoomMax: 10,
		BiasMin: -8, BiasMax: 8,
		FrameRateMin: 1, FrameRateMax: 60,
		FocusModes:    []camera.FocusMode{camera.FocusLocked, camera.FocusAuto, camera.FocusContinuous},
		FocusPoint:    true,
		ExposurePoint: true,
		Stabilization: []camera.StabilizationMode{camera.StabilizationOff, camera.StabilizationStandard, camera.StabilizationCinematic},
	}
}

// Device is a simulated camera implementing every capability interface.
type Device struct {
	info camera.DeviceInfo
	cfg  DeviceConfig

	mu            sync.Mutex
	locked        bool
	locks         int
	zoom          float64
	bias          float64
	frameRate     float64
	focusMode     camera.FocusMode
	focusPoint    *camera.Point
	exposurePoint *camera.Point
	stabilization camera.StabilizationMode
}

// NewDevice creates a simulated device.
func NewDevice(info camera.DeviceInfo, cfg DeviceConfig) *Device {
	return &Device{info: info, cfg: cfg, zoom: 1, frameRate: 30}
}

// Info returns the device description.
func (d *Device) Info() camera.DeviceInfo { return d.info }

// Lock acquires configuration access.
func (d *Device) Lock() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cfg.LockErr != nil {
		return d.cfg.LockErr
	}
	if d.locked {
		return fmt.Errorf("device %s already locked", d.info.ID)
	}
	d.locked = true
	d.locks++
	return nil
}

// Unlock releases configuration access.
func (d *Device) Unlock() {
	d.mu.Lock()
	d.locked = false
	d.mu.Unlock()
}

// set runs fn with the state mutex held, after checking the lock.
func (d *Device) set(fn func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.locked {
		return ErrNotLocked
	}
	if d.cfg.ApplyErr != nil {
		return d.cfg.ApplyErr
	}
	fn()
	return nil
}

// ZoomRange returns the device zoom range.
func (d *Device) ZoomRange() (float64, float64) { return d.cfg.ZoomMin, d.cfg.ZoomMax }

// SetZoom stores the zoom factor.
func (d *Device) SetZoom(factor float64) error {
	return d.set(func() { d.zoom = factor })
}

// SupportsFocusMode reports whether mode is in the config.
func (d *Device) SupportsFocusMode(mode camera.FocusMode) bool {
	return slices.Contains(d.cfg.FocusModes, mode)
}

// SetFocusMode stores the focus mode.
func (d *Device) SetFocusMode(mode camera.FocusMode) error {
	return d.set(func() { d.focusMode = mode })
}

// SupportsFocusPoint reports whether the config enables focus points.
func (d *Device) SupportsFocusPoint() bool { return d.cfg.FocusPoint }

// SetFocusPoint stores the focus point.
func (d *Device) SetFocusPoint(p camera.Point) error {
	return d.set(func() { d.focusPoint = &p })
}

// SetExposurePoint stores the exposure point when the config enables it.
func (d *Device) SetExposurePoint(p camera.Point) error {
	if !d.cfg.ExposurePoint {
		return nil
	}
	return d.set(func() { d.exposurePoint = &p })
}

// ExposureBiasRange returns the device bias range.
func (d *Device) ExposureBiasRange() (float64, float64) { return d.cfg.BiasMin, d.cfg.BiasMax }

// SetExposureBias stores the bias.
func (d *Device) SetExposureBias(bias float64) error {
	return d.set(func() { d.bias = bias })
}

// SupportsStabilization reports whether mode is in the config.
func (d *Device) SupportsStabilization(mode camera.StabilizationMode) bool {
	return slices.Contains(d.cfg.Stabilization, mode)
}

// SetStabilization stores the mode.
func (d *Device) SetStabilization(mode camera.StabilizationMode) error {
	return d.set(func() { d.stabilization = mode })
}

// FrameRateRange returns the device frame-rate range.
func (d *Device) FrameRateRange() (float64, float64) { return d.cfg.FrameRateMin, d.cfg.FrameRateMax }

// SetFrameRate stores the frame rate.
func (d *Device) SetFrameRate(fps float64) error {
	return d.set(func() { d.frameRate = fps })
}

// Settings is a snapshot of the applied controls.
type Settings struct {
	Zoom          float64
	ExposureBias  float64
	FrameRate     float64
	FocusMode     camera.FocusMode
	FocusPoint    *camera.Point
	ExposurePoint *camera.Point
	Stabilization camera.StabilizationMode
	Locks         int
	Locked        bool
}

// Settings returns the applied controls.
func (d *Device) Settings() Settings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Settings{
		Zoom:          d.zoom,
		ExposureBias:  d.bias,
		FrameRate:     d.frameRate,
		FocusMode:     d.focusMode,
		FocusPoint:    d.focusPoint,
		ExposurePoint: d.exposurePoint,
		Stabilization: d.stabilization,
		Locks:         d.locks,
		Locked:        d.locked,
	}
}

// FixedDevice is a simulated camera with no adjustable controls.
type FixedDevice struct {
	info camera.DeviceInfo
}

// NewFixedDevice creates a device offering no optional capabilities.
func NewFixedDevice(info camera.DeviceInfo) *FixedDevice {
	return &FixedDevice{info: info}
}

// Info returns the device description.
func (d *FixedDevice) Info() camera.DeviceInfo { return d.info }

// Lock always succeeds.
func (d *FixedDevice) Lock() error { return nil }

// Unlock does nothing.
func (d *FixedDevice) Unlock() {}
