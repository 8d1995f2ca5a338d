// Package main provides film24-sim, which records a clip from a simulated
// camera through the full capture, filter and record pipeline.
//
// It is useful for checking a LUT directory, a configuration file or the
// slow-motion export without a capture device:
//
//	film24-sim -config film24.yaml -filter kodak-2383 -lut-dir ./luts -frames 90 -slowmo 2
package main
