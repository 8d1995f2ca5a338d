package media

import (
	"fmt"
	"math"
	"time"
)

// DefaultTimescale is the number of ticks per second used when no explicit
// timescale is requested. 600 divides evenly by the common frame rates
// (24, 25, 30, 60).
const DefaultTimescale int32 = 600

// Time is a rational presentation timestamp: Value ticks at Timescale ticks
// per second.
//
// The zero value is an invalid time. Invalid times never compare equal to a
// valid one and report NaN from Seconds.
type Time struct {
	Value     int64
	Timescale int32
}

// InvalidTime is the zero Time.
var InvalidTime = Time{}

// NewTime creates a timestamp of value ticks at the given timescale.
func NewTime(value int64, timescale int32) Time {
	return Time{Value: value, Timescale: timescale}
}

// TimeFromSeconds converts seconds to a timestamp at the given timescale,
// rounding to the nearest tick. NaN and infinite inputs yield InvalidTime.
func TimeFromSeconds(seconds float64, timescale int32) Time {
	if timescale <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return InvalidTime
	}
	return Time{Value: int64(math.Round(seconds * float64(timescale))), Timescale: timescale}
}

// TimeFromDuration converts a time.Duration to a timestamp at the given timescale.
func TimeFromDuration(d time.Duration, timescale int32) Time {
	return TimeFromSeconds(d.Seconds(), timescale)
}

// IsValid reports whether t carries a usable timescale.
func (t Time) IsValid() bool {
	return t.Timescale > 0
}

// Seconds returns t in seconds, or NaN for an invalid time.
func (t Time) Seconds() float64 {
	if !t.IsValid() {
		return math.NaN()
	}
	return float64(t.Value) / float64(t.Timescale)
}

// Duration returns t as a time.Duration. Invalid times return 0.
func (t Time) Duration() time.Duration {
	if !t.IsValid() {
		return 0
	}
	return time.Duration(float64(t.Value) / float64(t.Timescale) * float64(time.Second))
}

// ConvertScale re-expresses t at a new timescale, rounding to the nearest tick.
func (t Time) ConvertScale(timescale int32) Time {
	if !t.IsValid() || timescale <= 0 {
		return InvalidTime
	}
	if t.Timescale == timescale {
		return t
	}
	num := float64(t.Value) * float64(timescale) / float64(t.Timescale)
	return Time{Value: int64(math.Round(num)), Timescale: timescale}
}

// Add returns t+u expressed at the larger of the two timescales.
func (t Time) Add(u Time) Time {
	if !t.IsValid() || !u.IsValid() {
		return InvalidTime
	}
	scale := commonScale(t, u)
	return Time{Value: t.ConvertScale(scale).Value + u.ConvertScale(scale).Value, Timescale: scale}
}

// Sub returns t-u expressed at the larger of the two timescales.
func (t Time) Sub(u Time) Time {
	if !t.IsValid() || !u.IsValid() {
		return InvalidTime
	}
	scale := commonScale(t, u)
	return Time{Value: t.ConvertScale(scale).Value - u.ConvertScale(scale).Value, Timescale: scale}
}

// MulFloat scales t by k, keeping its timescale.
func (t Time) MulFloat(k float64) Time {
	if !t.IsValid() || math.IsNaN(k) || math.IsInf(k, 0) {
		return InvalidTime
	}
	return Time{Value: int64(math.Round(float64(t.Value) * k)), Timescale: t.Timescale}
}

// Compare returns -1, 0 or +1. Invalid times sort before every valid time.
func (t Time) Compare(u Time) int {
	switch {
	case !t.IsValid() && !u.IsValid():
		return 0
	case !t.IsValid():
		return -1
	case !u.IsValid():
		return 1
	}
	// Cross-multiply to avoid rounding.
	l := float64(t.Value) * float64(u.Timescale)
	r := float64(u.Value) * float64(t.Timescale)
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	}
	return 0
}

// Before reports whether t is strictly earlier than u.
func (t Time) Before(u Time) bool { return t.Compare(u) < 0 }

// After reports whether t is strictly later than u.
func (t Time) After(u Time) bool { return t.Compare(u) > 0 }

// String renders t as seconds with its tick representation.
func (t Time) String() string {
	if !t.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("%.4fs(%d/%d)", t.Seconds(), t.Value, t.Timescale)
}

func commonScale(t, u Time) int32 {
	if t.Timescale >= u.Timescale {
		return t.Timescale
	}
	return u.Timescale
}

// TimeRange is a half-open span [Start, Start+Duration).
type TimeRange struct {
	Start    Time
	Duration Time
}

// End returns Start+Duration.
func (r TimeRange) End() Time {
	return r.Start.Add(r.Duration)
}

// IsValid reports whether both endpoints are valid and the duration is not negative.
func (r TimeRange) IsValid() bool {
	return r.Start.IsValid() && r.Duration.IsValid() && r.Duration.Value >= 0
}
