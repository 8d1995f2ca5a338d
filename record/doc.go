// Package record implements the recording session: one output file written
// from a stream of oriented frames and optional PCM16 audio.
//
// # Lifecycle
//
// A [Session] moves through Idle, AwaitingFirstFrame, Writing and
// Finalizing to one of Completed, Failed or Aborted. The first appended
// frame fixes the session start, so the output begins at that frame's
// timestamp rather than at Start. Stop ends the session at the last
// observed frame and reports an [Outcome] asynchronously. A session
// stopped before any frame is aborted with [ErrNoFrames] and leaves no file.
//
// # Writer
//
// Frames are rendered into pooled pixel buffers and handed to a writer
// goroutine over a bounded queue. A full queue drops the frame with
// [ErrNotReady]; too many drops in a row, pool exhaustion or an encoder
// error abort the session with a [*WriterError].
package record
