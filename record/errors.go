package record

import (
	"errors"
	"fmt"
)

// Writer failure kinds, carried by WriterError.
var (
	// ErrCannotAddInput indicates the writer rejected the video track.
	ErrCannotAddInput = errors.New("cannot add writer input")

	// ErrStartFailed indicates the output could not be created or begun.
	ErrStartFailed = errors.New("writer failed to start")

	// ErrAppendFailed indicates a required append failed irrecoverably.
	ErrAppendFailed = errors.New("writer append failed")

	// ErrPoolExhausted indicates no pixel buffer was available for a frame.
	ErrPoolExhausted = errors.New("pixel buffer pool exhausted")

	// ErrFinishFailed indicates the output could not be finalised.
	ErrFinishFailed = errors.New("writer failed to finish")
)

// Session errors.
var (
	// ErrNoFrames indicates a session stopped before any frame was written.
	ErrNoFrames = errors.New("recording stopped before the first frame")

	// ErrAborted indicates the session was aborted by its owner.
	ErrAborted = errors.New("recording aborted")

	// ErrNotRecording indicates an operation on a session that is not accepting input.
	ErrNotRecording = errors.New("session is not recording")

	// ErrInvalidTransition indicates Start on a session that is not idle.
	ErrInvalidTransition = errors.New("invalid session state transition")

	// ErrNotReady indicates the writer queue was full and the sample was dropped.
	ErrNotReady = errors.New("writer not ready for more data")

	// ErrInvalidTimestamp indicates a sample without a usable timestamp.
	ErrInvalidTimestamp = errors.New("invalid sample timestamp")

	// ErrNonMonotonic indicates a frame not later than the previous one.
	ErrNonMonotonic = errors.New("non-monotonic frame timestamp")
)

// WriterError reports a terminal writer failure.
type WriterError struct {
	Kind error  // one of the writer failure kinds
	Path string // output file
	Err  error  // underlying cause, may be nil
}

func (e *WriterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("record %s: %v: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("record %s: %v", e.Path, e.Kind)
}

// Unwrap returns the kind and the cause.
func (e *WriterError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
