package archive

import (
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/andreyvit/scribe/transcription"
)

func eq[T comparable](t testing.TB, a, e T) {
	if a != e {
		t.Helper()
		t.Fatalf("** got %v, wanted %v", a, e)
	}
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

func expectErr(t testing.TB, err, target error) {
	if !errors.Is(err, target) {
		t.Helper()
		t.Fatalf("** got error %v, wanted %v", err, target)
	}
}

func expectDataError(t testing.TB, err error) *DataError {
	t.Helper()
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("** got error %v, wanted a DataError", err)
	}
	return de
}

type logWriter struct {
	t testing.TB
}

func (w *logWriter) Write(b []byte) (int, error) {
	w.t.Log(strings.TrimSuffix(string(b), "\n"))
	return len(b), nil
}

var testTime = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func testOptions(t testing.TB, format Format) Options {
	return Options{
		Logger: slog.New(slog.NewTextHandler(&logWriter{t}, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})),
		Format:    format,
		IsTesting: true,
		Now:       func() time.Time { return testTime },
	}
}

// sampleTranscription covers every object type, array children and a shared
// child.
func sampleTranscription() *transcription.Transcription {
	tr := transcription.New()
	root := tr.AddCompositeObject(transcription.RootObjectID)
	root.SetChild(tr.GetOrCreateObjectKey("name", 0), 2)
	root.SetChild(tr.GetOrCreateObjectKey("plate", 0), 3)
	root.SetChild(tr.GetOrCreateObjectKey("plate", 2), 3)
	root.SetChild(tr.GetOrCreateObjectKey("empty", 0), transcription.NullObjectID)
	tr.AddString(2, "Ridge-12")

	plate := tr.AddCompositeObject(3)
	plate.SetChild(tr.GetOrCreateObjectKey("plate_id", 0), 4)
	plate.SetChild(tr.GetOrCreateObjectKey("offset", 0), 5)
	plate.SetChild(tr.GetOrCreateObjectKey("age", 0), 6)
	plate.SetChild(tr.GetOrCreateObjectKey("spread", 0), 7)
	tr.AddUnsignedInteger(4, 701)
	tr.AddSignedInteger(5, -42)
	tr.AddDouble(6, 183.25)
	tr.AddFloat(7, 0.5)

	points := tr.AddCompositeObject(8)
	root.SetChild(tr.GetOrCreateObjectKey("points", 0), 8)
	item := tr.GetOrCreateObjectKey("item", 0)
	points.SetChild(tr.GetOrCreateObjectKey("size", 0), 9)
	tr.AddSignedInteger(9, 3)
	points.SetArrayChild(item, 10, 0)
	points.SetArrayChild(item, 11, 1)
	points.SetArrayChild(item, 12, 2)
	tr.AddDouble(10, math.Pi)
	tr.AddDouble(11, -1e300)
	tr.AddSignedInteger(12, math.MinInt64)
	return tr
}
