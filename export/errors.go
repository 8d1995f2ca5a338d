package export

import (
	"errors"
	"fmt"
)

// Export failure kinds, carried by Error.
var (
	// ErrCompositionInsert indicates the source could not be loaded into a composition.
	ErrCompositionInsert = errors.New("composition insert failed")

	// ErrExportFailed indicates the output could not be produced.
	ErrExportFailed = errors.New("export failed")
)

var (
	// ErrInvalidFactor indicates a time-scale factor that is not a positive number.
	ErrInvalidFactor = errors.New("time-scale factor must be positive")

	// ErrScaleRange indicates a scale range that does not match an inserted segment.
	ErrScaleRange = errors.New("scale range does not match a composition segment")

	// ErrNilTransform indicates a re-filter export without a transform.
	ErrNilTransform = errors.New("transform cannot be nil")

	// ErrTrimTooShort indicates a trim range below MinTrimDuration.
	ErrTrimTooShort = errors.New("trim range is too short")
)

// Error reports a failed export job.
type Error struct {
	Kind  error  // ErrCompositionInsert or ErrExportFailed
	Input string // source clip
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("export %s: %v: %v", e.Input, e.Kind, e.Err)
	}
	return fmt.Sprintf("export %s: %v", e.Input, e.Kind)
}

// Unwrap returns the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
