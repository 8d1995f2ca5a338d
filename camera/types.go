package camera

import (
	"fmt"

	"github.com/opd-ai/film24/media"
)

// Position identifies which side of the device a camera faces.
type Position uint8

const (
	// PositionUnspecified is the zero position.
	PositionUnspecified Position = iota
	// PositionBack is the rear camera.
	PositionBack
	// PositionFront is the selfie camera.
	PositionFront
)

// String returns the position name.
func (p Position) String() string {
	switch p {
	case PositionUnspecified:
		return "unspecified"
	case PositionBack:
		return "back"
	case PositionFront:
		return "front"
	default:
		return fmt.Sprintf("Position(%d)", uint8(p))
	}
}

// ParsePosition returns the position for a configuration name. Empty means back.
func ParsePosition(s string) (Position, error) {
	switch s {
	case "", "back":
		return PositionBack, nil
	case "front":
		return PositionFront, nil
	}
	return PositionUnspecified, fmt.Errorf("unknown camera position %q", s)
}

// Opposite returns the other camera position. Unspecified maps to back.
func (p Position) Opposite() Position {
	if p == PositionBack {
		return PositionFront
	}
	return PositionBack
}

// DeviceType identifies the lens configuration of a capture device.
type DeviceType uint8

const (
	// DeviceWideAngle is a single wide-angle lens.
	DeviceWideAngle DeviceType = iota + 1
	// DeviceUltraWide is a single ultra-wide lens.
	DeviceUltraWide
	// DeviceTelephoto is a single telephoto lens.
	DeviceTelephoto
	// DeviceDual combines wide and telephoto lenses.
	DeviceDual
	// DeviceDualWide combines ultra-wide and wide lenses.
	DeviceDualWide
	// DeviceTriple combines ultra-wide, wide and telephoto lenses.
	DeviceTriple
)

// String returns the device type name.
func (t DeviceType) String() string {
	switch t {
	case DeviceWideAngle:
		return "wide-angle"
	case DeviceUltraWide:
		return "ultra-wide"
	case DeviceTelephoto:
		return "telephoto"
	case DeviceDual:
		return "dual"
	case DeviceDualWide:
		return "dual-wide"
	case DeviceTriple:
		return "triple"
	default:
		return fmt.Sprintf("DeviceType(%d)", uint8(t))
	}
}

// IsMultiLens reports whether the device switches between physical lenses.
func (t DeviceType) IsMultiLens() bool {
	return t == DeviceDual || t == DeviceDualWide || t == DeviceTriple
}

// hasUltraWideBase reports whether zoom factor 1 selects an ultra-wide lens,
// in which case the controller never zooms out past 1.
func (t DeviceType) hasUltraWideBase() bool {
	return t == DeviceDualWide || t == DeviceTriple || t == DeviceUltraWide
}

// MediaType distinguishes the capture permissions.
type MediaType uint8

const (
	// MediaVideo is camera access.
	MediaVideo MediaType = iota + 1
	// MediaAudio is microphone access.
	MediaAudio
)

// String returns the media type name.
func (m MediaType) String() string {
	switch m {
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	default:
		return fmt.Sprintf("MediaType(%d)", uint8(m))
	}
}

// AuthorizationStatus is the user's answer to a capture permission.
type AuthorizationStatus uint8

const (
	// AuthorizationNotDetermined means the user has not been asked yet.
	AuthorizationNotDetermined AuthorizationStatus = iota
	// AuthorizationAuthorized means access was granted.
	AuthorizationAuthorized
	// AuthorizationDenied means the user refused access.
	AuthorizationDenied
	// AuthorizationRestricted means policy prevents access.
	AuthorizationRestricted
)

// String returns the status name.
func (s AuthorizationStatus) String() string {
	switch s {
	case AuthorizationNotDetermined:
		return "not-determined"
	case AuthorizationAuthorized:
		return "authorized"
	case AuthorizationDenied:
		return "denied"
	case AuthorizationRestricted:
		return "restricted"
	default:
		return fmt.Sprintf("AuthorizationStatus(%d)", uint8(s))
	}
}

// SessionState is the lifecycle state of the device session.
type SessionState uint8

const (
	// StateUnconfigured means no device is attached.
	StateUnconfigured SessionState = iota
	// StateConfigured means a device is attached and streaming.
	StateConfigured
	// StateUnauthorized means the user refused camera access.
	StateUnauthorized
	// StateFailed means the device could not be attached.
	StateFailed
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateUnauthorized:
		return "unauthorized"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("SessionState(%d)", uint8(s))
	}
}

// FocusMode selects how the lens focuses.
type FocusMode uint8

const (
	// FocusLocked keeps the lens position fixed.
	FocusLocked FocusMode = iota
	// FocusAuto focuses once and then locks.
	FocusAuto
	// FocusContinuous refocuses whenever the scene changes.
	FocusContinuous
)

// String returns the mode name.
func (m FocusMode) String() string {
	switch m {
	case FocusLocked:
		return "locked"
	case FocusAuto:
		return "auto"
	case FocusContinuous:
		return "continuous"
	default:
		return fmt.Sprintf("FocusMode(%d)", uint8(m))
	}
}

// StabilizationMode selects video stabilization.
type StabilizationMode uint8

const (
	// StabilizationOff disables stabilization.
	StabilizationOff StabilizationMode = iota
	// StabilizationStandard is the default stabilization.
	StabilizationStandard
	// StabilizationCinematic trades latency for smoother motion.
	StabilizationCinematic
	// StabilizationAuto lets the device pick.
	StabilizationAuto
)

// String returns the mode name.
func (m StabilizationMode) String() string {
	switch m {
	case StabilizationOff:
		return "off"
	case StabilizationStandard:
		return "standard"
	case StabilizationCinematic:
		return "cinematic"
	case StabilizationAuto:
		return "auto"
	default:
		return fmt.Sprintf("StabilizationMode(%d)", uint8(m))
	}
}

// Orientation is the orientation of the video output connection.
type Orientation uint8

const (
	// OrientationPortrait is upright portrait.
	OrientationPortrait Orientation = iota
	// OrientationPortraitUpsideDown is portrait rotated by 180°.
	OrientationPortraitUpsideDown
	// OrientationLandscapeRight is the home side on the right.
	OrientationLandscapeRight
	// OrientationLandscapeLeft is the home side on the left.
	OrientationLandscapeLeft
)

// String returns the orientation name.
func (o Orientation) String() string {
	switch o {
	case OrientationPortrait:
		return "portrait"
	case OrientationPortraitUpsideDown:
		return "portrait-upside-down"
	case OrientationLandscapeRight:
		return "landscape-right"
	case OrientationLandscapeLeft:
		return "landscape-left"
	default:
		return fmt.Sprintf("Orientation(%d)", uint8(o))
	}
}

// ParseOrientation returns the orientation for a configuration name. Empty
// means portrait.
func ParseOrientation(s string) (Orientation, error) {
	for _, o := range []Orientation{OrientationPortrait, OrientationPortraitUpsideDown, OrientationLandscapeRight, OrientationLandscapeLeft} {
		if s == o.String() {
			return o, nil
		}
	}
	if s == "" {
		return OrientationPortrait, nil
	}
	return OrientationPortrait, fmt.Errorf("unknown orientation %q", s)
}

// Rotation returns the clockwise rotation from sensor to display, in degrees.
func (o Orientation) Rotation() int {
	switch o {
	case OrientationPortrait:
		return 90
	case OrientationPortraitUpsideDown:
		return 270
	case OrientationLandscapeLeft:
		return 180
	}
	return 0
}

// Point is a 2-D coordinate.
type Point struct {
	X, Y float64
}

// Size is a 2-D extent.
type Size struct {
	Width, Height float64
}

// DeviceInfo describes a capture device found by enumeration.
type DeviceInfo struct {
	ID       string
	Type     DeviceType
	Position Position
}

// String returns a short description for logs.
func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s %s (%s)", d.Position, d.Type, d.ID)
}

// OutputConfig describes the video output attached to the session.
type OutputConfig struct {
	Format      media.PixelFormat
	Orientation Orientation
	Mirrored    bool
	// DiscardLateFrames drops frames the sink is too slow to take.
	DiscardLateFrames bool
}
