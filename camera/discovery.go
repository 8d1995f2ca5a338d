package camera

import "math"

// Lens preference per position, best first.
var (
	backPreference  = []DeviceType{DeviceDualWide, DeviceTriple, DeviceDual, DeviceWideAngle}
	frontPreference = []DeviceType{DeviceWideAngle}
)

// Preference returns the device types tried at position, best first.
func Preference(position Position) []DeviceType {
	if position == PositionFront {
		return frontPreference
	}
	return backPreference
}

// SelectDevice picks the preferred device at position from an enumeration.
func SelectDevice(devices []DeviceInfo, position Position) (DeviceInfo, bool) {
	for _, want := range Preference(position) {
		for _, d := range devices {
			if d.Position == position && d.Type == want {
				return d, true
			}
		}
	}
	return DeviceInfo{}, false
}

// DefaultZoom is 2× for rear multi-lens devices, where 1× selects the
// ultra-wide lens, and 1× otherwise.
func DefaultZoom(info DeviceInfo) float64 {
	if info.Position == PositionBack && info.Type.IsMultiLens() {
		return 2
	}
	return 1
}

// FocusPoint converts a point in portrait view coordinates to the
// normalised device point of interest. The axes are transposed for the
// landscape sensor and x is mirrored for the rear camera. A degenerate view
// maps to the centre.
func FocusPoint(view Point, bounds Size, position Position) Point {
	if !(bounds.Width > 0) || !(bounds.Height > 0) {
		return Point{X: 0.5, Y: 0.5}
	}
	nx := clampUnit(view.X / bounds.Width)
	ny := clampUnit(view.Y / bounds.Height)
	if position == PositionFront {
		return Point{X: ny, Y: nx}
	}
	return Point{X: ny, Y: 1 - nx}
}

func clampUnit(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
