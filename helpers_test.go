package scribe

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/andreyvit/scribe/transcription"
)

func eq[T comparable](t testing.TB, a, e T) {
	if a != e {
		t.Helper()
		t.Fatalf("** got %v, wanted %v", a, e)
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func success(t testing.TB, s *Scribe, r Result) {
	if !r.OK() {
		t.Helper()
		t.Fatalf("** got %v (%v), wanted success", r, s.Failure())
	}
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

func expectPanic(t testing.TB, target error, f func()) {
	t.Helper()
	defer func() {
		t.Helper()
		e := recover()
		if e == nil {
			t.Fatalf("** expected panic with %v", target)
		}
		err, ok := e.(error)
		if !ok || !errors.Is(err, target) {
			t.Fatalf("** got panic %v, wanted %v", e, target)
		}
	}()
	f()
}

type logWriter struct {
	t testing.TB
}

func (w *logWriter) Write(b []byte) (int, error) {
	w.t.Log(strings.TrimSuffix(string(b), "\n"))
	return len(b), nil
}

func testOptions(t testing.TB) Options {
	return Options{
		Logger: slog.New(slog.NewTextHandler(&logWriter{t}, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})),
		Verbose: true,
	}
}

// roundTrip saves with save, then returns a loader over the result.
func roundTrip(t testing.TB, reg *Registry, save func(s *Scribe)) *Scribe {
	t.Helper()
	s := NewSaver(reg, testOptions(t))
	save(s)
	ensure(s.Finish())
	return NewLoader(reg, s.Transcription(), testOptions(t))
}

func loader(t testing.TB, reg *Registry, tr *transcription.Transcription) *Scribe {
	return NewLoader(reg, tr, testOptions(t))
}
