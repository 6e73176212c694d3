package scribe

import (
	"fmt"
	"reflect"
)

// Result reports whether a transcribe call succeeded. Failures caused by the
// data (as opposed to the client code) are reported this way rather than by
// panicking, because archives written by other versions of a program are
// expected to be partially incompatible.
type Result int

const (
	Success Result = iota

	// Incompatible means a tag was missing, the stored object had the wrong
	// kind, or a numeric value didn't fit the client type.
	Incompatible

	// UnknownType means a polymorphic object names a type that is not
	// registered for export.
	UnknownType

	// Incomplete means the transcription references objects that were never
	// transcribed.
	Incomplete
)

func (r Result) OK() bool {
	return r == Success
}

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Incompatible:
		return "incompatible"
	case UnknownType:
		return "unknown type"
	case Incomplete:
		return "incomplete"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Failure describes the first data-level failure of a Scribe.
type Failure struct {
	Result Result
	Path   string
	Type   reflect.Type
	Msg    string
}

func (f *Failure) Error() string {
	if f.Type != nil {
		return fmt.Sprintf("scribe: %v at %s (%v): %s", f.Result, f.Path, f.Type, f.Msg)
	}
	return fmt.Sprintf("scribe: %v at %s: %s", f.Result, f.Path, f.Msg)
}
