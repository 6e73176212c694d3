package scribe

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"

	"github.com/andreyvit/scribe/transcription"
)

// Scribe saves an object graph into a Transcription, or loads one back.
//
// The same client code drives both directions: every Transcribe call either
// writes the object to the transcription or reads it, depending on the mode.
// A Scribe is used by a single goroutine; the Registry can be shared.
type Scribe struct {
	reg          *Registry
	ctx          *Context
	logger       *slog.Logger
	verbose      bool
	strictArrays bool

	objects  tracker
	path     []string
	failure  *Failure
	finished bool
}

// NewSaver returns a Scribe that saves into a new Transcription.
func NewSaver(reg *Registry, opt Options) *Scribe {
	return newScribe(reg, NewSaveContext(transcription.New()), opt)
}

// NewLoader returns a Scribe that loads from tr.
func NewLoader(reg *Registry, tr *transcription.Transcription, opt Options) *Scribe {
	return newScribe(reg, NewLoadContext(tr), opt)
}

func newScribe(reg *Registry, ctx *Context, o Options) *Scribe {
	if reg == nil {
		reg = NewRegistry()
	}
	reg.Freeze()
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Scribe{
		reg:          reg,
		ctx:          ctx,
		logger:       o.Logger,
		verbose:      o.Verbose,
		strictArrays: o.StrictArrays,
		objects:      newTracker(),
	}
}

func (s *Scribe) IsSaving() bool {
	return s.ctx.saving
}

func (s *Scribe) IsLoading() bool {
	return !s.ctx.saving
}

func (s *Scribe) Registry() *Registry {
	return s.reg
}

func (s *Scribe) Context() *Context {
	return s.ctx
}

func (s *Scribe) Transcription() *transcription.Transcription {
	return s.ctx.tr
}

// Failure returns the first data-level failure, if any. A failed Transcribe
// call returns a Result; this explains where and why.
func (s *Scribe) Failure() *Failure {
	return s.failure
}

// Finish ends the transcription. When saving, it verifies that every
// referenced object was saved. When loading, it verifies that every pointer
// found its object.
func (s *Scribe) Finish() error {
	s.checkActive()
	if s.ctx.Depth() != 1 {
		panic(usageErrf(ErrUnbalancedScopes, nil, "", "%d scopes still open", s.ctx.Depth()-1))
	}
	s.ctx.PopTranscribedObject()
	s.finished = true

	if s.IsSaving() {
		if err := s.ctx.tr.CheckComplete(); err != nil {
			s.fail(Incomplete, ObjectTag{}, nil, "%v", err)
			if missing := s.objects.unsaved(); len(missing) > 0 {
				return fmt.Errorf("scribe: objects referenced but never saved: %s: %w", strings.Join(missing, ", "), err)
			}
			return fmt.Errorf("scribe: %w", err)
		}
		if s.verbose {
			s.logger.LogAttrs(context.Background(), slog.LevelDebug, "scribe: saved", slog.Int("objects", s.ctx.tr.Len()), slog.Int("keys", s.ctx.tr.ObjectKeyCount()))
		}
		return nil
	}

	if ids := s.objects.pendingIDs(); len(ids) > 0 {
		s.fail(Incomplete, ObjectTag{}, nil, "%d objects never loaded", len(ids))
		return fmt.Errorf("scribe: pointers refer to objects that were never loaded (ids %v): %w", ids, ErrUnresolvedReferences)
	}
	return nil
}

func (s *Scribe) checkActive() {
	if s.finished {
		panic(usageErrf(ErrWrongMode, nil, "", "scribe already finished"))
	}
}

func (s *Scribe) enter(id ObjectID, tag ObjectTag) {
	s.ctx.PushTranscribedObject(id)
	s.path = append(s.path, tag.String())
}

func (s *Scribe) leave() {
	s.ctx.PopTranscribedObject()
	s.path = s.path[:len(s.path)-1]
}

func (s *Scribe) pathString(tag ObjectTag) string {
	parts := s.path
	if !tag.IsEmpty() {
		parts = append(slices.Clip(parts), tag.String())
	}
	if len(parts) == 0 {
		return "/"
	}
	return strings.Join(parts, "/")
}

// fail records the first failure and returns r.
func (s *Scribe) fail(r Result, tag ObjectTag, typ reflect.Type, format string, args ...any) Result {
	f := &Failure{
		Result: r,
		Path:   s.pathString(tag),
		Type:   typ,
		Msg:    fmt.Sprintf(format, args...),
	}
	if s.failure == nil {
		s.failure = f
	}
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "scribe: failed", slog.String("result", r.String()), slog.String("path", f.Path), slog.String("msg", f.Msg))
	return r
}

func (s *Scribe) trace(op string, tag ObjectTag, id ObjectID, typ reflect.Type) {
	if !s.verbose {
		return
	}
	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "scribe: "+op, slog.String("path", s.pathString(tag)), slog.Uint64("id", uint64(id)), slog.String("type", typ.String()))
}
