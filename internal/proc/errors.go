package proc

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed record read.
type ErrorKind int

const (
	// KindRecordUnavailable means the record could not be opened or read.
	KindRecordUnavailable ErrorKind = iota
	// KindMalformedRecord means the parent pid field was missing.
	KindMalformedRecord
	// KindInvalidParentID means the parent pid field was not an integer.
	KindInvalidParentID
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindRecordUnavailable:
		return "record unavailable"
	case KindMalformedRecord:
		return "malformed record"
	case KindInvalidParentID:
		return "invalid parent id"
	default:
		return "unknown"
	}
}

// Sentinel errors for errors.Is checks.
var (
	ErrRecordUnavailable = errors.New("process record unavailable")
	ErrMalformedRecord   = errors.New("malformed process record")
	ErrInvalidParentID   = errors.New("invalid parent id in process record")
)

// ProcessError describes why the parent of PID could not be determined.
type ProcessError struct {
	PID   int
	Kind  ErrorKind
	Value string // offending field for KindInvalidParentID
	Err   error  // underlying I/O error for KindRecordUnavailable
}

func (e *ProcessError) Error() string {
	switch e.Kind {
	case KindMalformedRecord:
		return fmt.Sprintf("malformed /proc/%d/stat: missing fields", e.PID)
	case KindInvalidParentID:
		return fmt.Sprintf("invalid parent id in /proc/%d/stat: %q", e.PID, e.Value)
	default:
		return fmt.Sprintf("cannot read /proc/%d/stat: %v", e.PID, e.Err)
	}
}

// Unwrap returns the underlying I/O error, if any.
func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *ProcessError) Is(target error) bool {
	switch target {
	case ErrRecordUnavailable:
		return e.Kind == KindRecordUnavailable
	case ErrMalformedRecord:
		return e.Kind == KindMalformedRecord
	case ErrInvalidParentID:
		return e.Kind == KindInvalidParentID
	}
	return false
}
