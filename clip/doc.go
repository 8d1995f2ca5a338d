// Package clip implements the film24 media container.
//
// A clip file holds one uncompressed video track and an optional PCM16 audio
// track. The layout is:
//
//	header  : magic "F24C", version, video geometry, pixel format,
//	          orientation transform, timescale, optional audio format
//	records : kind, presentation time (ticks relative to session start),
//	          payload length, payload
//	trailer : session duration, record counts, blake2b-256 digest of
//	          every video payload in order
//
// Presentation times are stored relative to the first written frame, so a
// clip always starts at zero. The trailer is only written by a successful
// Finish; a file without one is a partial recording and the Reader reports
// io.ErrUnexpectedEOF when it reaches the end.
//
// The video digest depends on frame content only, so a time-scaled export of
// a clip carries the same digest as its source.
package clip
