package archive

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("archive not found")
	ErrIncomplete = errors.New("refusing to store an incomplete transcription")
)

// DataError reports malformed archive data. Off is the offset of the problem
// within Data, or -1 if it doesn't apply.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	msg := e.Msg
	if e.Off >= 0 {
		msg = fmt.Sprintf("%s at offset %d", e.Msg, e.Off)
	}
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", msg, n, p, s)
		}
	}
}
