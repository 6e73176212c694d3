package transcription

import (
	"errors"
	"fmt"
)

// ErrIncomplete is reported when a composite refers to an object id that was
// never stored.
var ErrIncomplete = errors.New("transcription incomplete")

// LibraryError reports misuse of a Transcription that correct scribe code
// never produces, like storing two entries under one id.
type LibraryError struct {
	ID  ObjectID
	Msg string
}

func libraryErrf(id ObjectID, format string, args ...any) error {
	return &LibraryError{id, fmt.Sprintf(format, args...)}
}

func (e *LibraryError) Error() string {
	return "transcription: " + e.Msg
}

type IncompleteError struct {
	Parent  ObjectID
	Key     string
	Version uint32
	Index   int
	Child   ObjectID
}

func (e *IncompleteError) Unwrap() error {
	return ErrIncomplete
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%v: object %d refers to missing object %d via %s@%d[%d]", ErrIncomplete, e.Parent, e.Child, e.Key, e.Version, e.Index)
}
