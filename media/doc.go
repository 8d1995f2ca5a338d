// Package media defines the value types shared by the capture, filter,
// recording and export stages of film24.
//
// # Timestamps
//
// [Time] is a rational timestamp (ticks over a timescale), the same
// representation the capture device uses for presentation times. Arithmetic
// keeps the larger timescale of its operands so frame-accurate values such as
// 1/30 s survive round trips:
//
//	start := media.NewTime(0, 600)
//	next := start.Add(media.NewTime(20, 600)) // +1/30 s
//
// # Frames
//
// A [RawFrame] wraps an immutable [PixelBuffer] delivered by the device. A
// [FilteredFrame] is the renderable result of the color transform and keeps
// the source timestamp. Audio arrives as discrete [AudioBuffer] values
// described by an [AudioFormat].
package media
