// Package fps estimates the cadence of the incoming video stream from frame
// presentation timestamps.
//
// The estimate is diagnostic only: it confirms that a frame-rate switch took
// effect and feeds health logging. It has no side effects and cannot fail.
package fps
