// Package ingest is the frame ingest and filter stage. It receives raw video
// frames and audio buffers on the capture delivery goroutine, corrects frame
// orientation, applies the active color transform and hands the results to
// the live preview and, while recording, to a [Recorder].
//
// The stage is purely per-frame: nothing but the latest dimensions, audio
// format and the rolling frame-rate estimate survives a call. Opus audio is
// decoded to PCM16 with pion/opus before it reaches the recorder.
package ingest
