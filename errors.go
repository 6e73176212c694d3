package scribe

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Programming errors. They are raised as panics carrying a *UsageError that
// wraps one of these, so recover-based tests can use errors.Is.
var (
	ErrEmptyObjectTag                         = errors.New("empty object tag")
	ErrArraySizeNotLast                       = errors.New("array size section must be the last section of an object tag")
	ErrInvalidArrayIndex                      = errors.New("invalid array index")
	ErrScopeCategoryConflict                  = errors.New("object transcribed as both primitive and composite")
	ErrConflictingOptions                     = errors.New("conflicting transcribe options")
	ErrOwnershipViolation                     = errors.New("ownership violation")
	ErrUntrackedPointerBeforeReferencedObject = errors.New("untracked pointer transcribed before the referenced object")
	ErrUnsupportedType                        = errors.New("unsupported type")
	ErrUnregisteredType                       = errors.New("type not registered for export")
	ErrConflictingRegistration                = errors.New("conflicting export registration")
	ErrInvalidInheritance                     = errors.New("invalid inheritance registration")
	ErrRegistryFrozen                         = errors.New("registry is frozen")
	ErrWrongMode                              = errors.New("operation not valid in this transcription mode")
	ErrUnbalancedScopes                       = errors.New("unbalanced transcription scopes")
	ErrInvalidLoadRef                         = errors.New("load reference is not valid")
)

// Cast errors, returned by Registry.UpCast and Registry.DownCast.
var (
	ErrUnregisteredCast = errors.New("no registered inheritance path")
	ErrAmbiguousCast    = errors.New("ambiguous inheritance path")
	ErrCastMismatch     = errors.New("dynamic type does not match")
)

// ErrUnresolvedReferences is returned by Finish when loaded pointers still wait
// for objects that were never loaded.
var ErrUnresolvedReferences = errors.New("unresolved references")

// UsageError describes a programming error in the client's transcribe code.
// Location is the first caller outside this package.
type UsageError struct {
	Err      error
	Location string
	Type     reflect.Type
	Tag      string
	Msg      string
}

func usageErrf(err error, typ reflect.Type, tag string, format string, args ...any) *UsageError {
	return &UsageError{
		Err:      err,
		Location: callerLocation(),
		Type:     typ,
		Tag:      tag,
		Msg:      fmt.Sprintf(format, args...),
	}
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

func (e *UsageError) Error() string {
	var buf strings.Builder
	buf.WriteString("scribe: ")
	if e.Location != "" {
		buf.WriteString(e.Location)
		buf.WriteString(": ")
	}
	buf.WriteString(e.Err.Error())
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
	}
	if e.Type != nil || e.Tag != "" {
		buf.WriteString(" (")
		if e.Type != nil {
			buf.WriteString("type ")
			buf.WriteString(e.Type.String())
		}
		if e.Tag != "" {
			if e.Type != nil {
				buf.WriteString(", ")
			}
			buf.WriteString("tag ")
			buf.WriteString(e.Tag)
		}
		buf.WriteByte(')')
	}
	return buf.String()
}

const pkgPrefix = "github.com/andreyvit/scribe."

func callerLocation() string {
	var pcs [32]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		internal := strings.HasPrefix(f.Function, pkgPrefix) && !strings.HasSuffix(f.File, "_test.go") ||
			strings.HasPrefix(f.Function, "reflect.") || strings.HasPrefix(f.Function, "runtime.")
		if !internal {
			if f.File == "" {
				return ""
			}
			return fmt.Sprintf("%s:%d", f.File, f.Line)
		}
		if !more {
			return ""
		}
	}
}

// CastError is returned when a void cast cannot be performed.
type CastError struct {
	From reflect.Type
	To   reflect.Type
	Err  error
}

func (e *CastError) Unwrap() error {
	return e.Err
}

func (e *CastError) Error() string {
	return fmt.Sprintf("scribe: cannot cast %v to %v: %v", e.From, e.To, e.Err)
}
