package film24

import "errors"

var (
	// ErrRecordingInProgress indicates StartRecording while a previous
	// recording is still writing, finishing or exporting.
	ErrRecordingInProgress = errors.New("recording already in progress")

	// ErrNotRecording indicates StopRecording with no active recording.
	ErrNotRecording = errors.New("no active recording")

	// ErrClosed indicates an operation on a closed pipeline.
	ErrClosed = errors.New("pipeline closed")

	// ErrInvalidSlowMotion indicates a negative or non-finite time-scale factor.
	ErrInvalidSlowMotion = errors.New("slow-motion factor must be zero or positive")
)
