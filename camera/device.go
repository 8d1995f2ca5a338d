package camera

import "github.com/opd-ai/film24/media"

// SampleSink receives the capture stream. Both methods are called on the
// backend's delivery goroutine and must not block on the session queue.
type SampleSink interface {
	HandleVideo(frame media.RawFrame)
	HandleAudio(buf media.AudioBuffer)
}

// Backend is the platform capture stack: permissions, enumeration and the
// session that wires a device to outputs.
type Backend interface {
	// AuthorizationStatus returns the current permission for m.
	AuthorizationStatus(m MediaType) AuthorizationStatus
	// RequestAccess asks the user for permission and calls done with the
	// answer, possibly on another goroutine.
	RequestAccess(m MediaType, done func(granted bool))
	// Devices enumerates the devices at position.
	Devices(position Position) []DeviceInfo
	// Open returns a handle for a device found by Devices.
	Open(info DeviceInfo) (Device, error)

	// AttachInput adds the device as the session's video input.
	AttachInput(dev Device) error
	// AttachVideoOutput adds an uncompressed video output delivering to sink.
	AttachVideoOutput(cfg OutputConfig, sink SampleSink) error
	// AttachAudio adds the microphone and delivers its buffers to sink.
	AttachAudio(sink SampleSink) error
	// DetachAll removes every input and output.
	DetachAll()

	StartStream() error
	StopStream()
}

// Device is an open capture device. Optional controls are exposed through
// the capability interfaces below; callers type-assert for them.
type Device interface {
	Info() DeviceInfo
	// Lock acquires exclusive configuration access.
	Lock() error
	Unlock()
}

// Zoomer is a device with a variable zoom factor.
type Zoomer interface {
	ZoomRange() (min, max float64)
	SetZoom(factor float64) error
}

// Focuser is a device with a controllable lens.
type Focuser interface {
	SupportsFocusMode(mode FocusMode) bool
	SetFocusMode(mode FocusMode) error
	// SupportsFocusPoint reports whether SetFocusPoint has an effect.
	SupportsFocusPoint() bool
	// SetFocusPoint sets the point of interest in normalised device space.
	SetFocusPoint(p Point) error
}

// ExposurePointer is a device with a metering point of interest.
type ExposurePointer interface {
	SetExposurePoint(p Point) error
}

// ExposureBiaser is a device with exposure compensation in EV.
type ExposureBiaser interface {
	ExposureBiasRange() (min, max float64)
	SetExposureBias(bias float64) error
}

// Stabilizer is a device with video stabilization modes.
type Stabilizer interface {
	SupportsStabilization(mode StabilizationMode) bool
	SetStabilization(mode StabilizationMode) error
}

// FrameRater is a device with a variable capture frame rate.
type FrameRater interface {
	FrameRateRange() (min, max float64)
	SetFrameRate(fps float64) error
}
