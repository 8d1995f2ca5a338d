package camera

import (
	"errors"
	"fmt"
)

// Permission errors.
var (
	// ErrPermissionDenied indicates the user refused camera access.
	ErrPermissionDenied = errors.New("camera permission denied")

	// ErrPermissionRestricted indicates policy prevents camera access.
	ErrPermissionRestricted = errors.New("camera permission restricted")

	// ErrPermissionUnknown indicates the backend reported an unrecognised status.
	ErrPermissionUnknown = errors.New("camera permission unknown")
)

// Device configuration errors.
var (
	// ErrDeviceUnavailable indicates no device matches the requested position.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrCreateInputFailed indicates the selected device could not be opened.
	ErrCreateInputFailed = errors.New("cannot create device input")

	// ErrCannotAddInput indicates the session rejected the device input.
	ErrCannotAddInput = errors.New("cannot add device input")

	// ErrCannotAddOutput indicates the session rejected the video output.
	ErrCannotAddOutput = errors.New("cannot add video output")

	// ErrStreamFailed indicates the stream could not be started.
	ErrStreamFailed = errors.New("cannot start capture stream")
)

// Device control errors.
var (
	// ErrNoDevice indicates a control was invoked with no device attached.
	ErrNoDevice = errors.New("no capture device attached")

	// ErrUnsupported indicates the attached device lacks a capability.
	ErrUnsupported = errors.New("operation not supported by device")

	// ErrClosed indicates the controller has been closed.
	ErrClosed = errors.New("camera controller closed")
)

// PermissionError reports a refused or unknown capture permission.
type PermissionError struct {
	Media  MediaType
	Status AuthorizationStatus
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s permission %s", e.Media, e.Status)
}

// Unwrap returns the sentinel for the status.
func (e *PermissionError) Unwrap() error {
	switch e.Status {
	case AuthorizationDenied:
		return ErrPermissionDenied
	case AuthorizationRestricted:
		return ErrPermissionRestricted
	}
	return ErrPermissionUnknown
}

// ConfigurationError reports a failure to attach the capture device.
type ConfigurationError struct {
	Kind   error      // one of the device configuration sentinels
	Device DeviceInfo // zero when discovery failed
	Err    error      // backend cause, may be nil
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configure %s: %v: %v", e.Device, e.Kind, e.Err)
	}
	return fmt.Sprintf("configure %s: %v", e.Device, e.Kind)
}

// Unwrap returns the kind sentinel and the backend cause.
func (e *ConfigurationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// UnsupportedError reports a control the attached device does not offer.
type UnsupportedError struct {
	Op     string
	Device DeviceType
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s: %v on %s", e.Op, ErrUnsupported, e.Device)
}

// Unwrap returns ErrUnsupported.
func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}
