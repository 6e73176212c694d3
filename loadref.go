package scribe

import (
	"reflect"
	"unsafe"
)

// LoadRef is an object constructed by Load. The object lives in memory owned
// by the LoadRef until the client moves it to its final location with MoveTo,
// which keeps pointers to it valid.
type LoadRef[T any] struct {
	s      *Scribe
	obj    *T
	result Result
}

// Load constructs a new T from the object at tag. Types implementing
// ConstructTranscriber get TranscribeConstruct called before Transcribe.
func Load[T any](s *Scribe, tag ObjectTag, opts ...Option) LoadRef[T] {
	s.checkActive()
	if !s.IsLoading() {
		panic(usageErrf(ErrWrongMode, reflect.TypeFor[T](), tag.String(), "Load called on a saving scribe"))
	}
	obj := new(T)
	r := s.transcribe(reflect.ValueOf(obj).Elem(), tag, makeOptions(opts), true)
	return LoadRef[T]{s: s, obj: obj, result: r}
}

func (r LoadRef[T]) IsValid() bool {
	return r.obj != nil && r.result.OK()
}

func (r LoadRef[T]) Result() Result {
	return r.result
}

// Get returns a copy of the loaded object. Pointers to the object keep
// pointing at the LoadRef's copy; use MoveTo if that matters.
func (r LoadRef[T]) Get() T {
	return *r.Ptr()
}

func (r LoadRef[T]) Ptr() *T {
	if !r.IsValid() {
		panic(usageErrf(ErrInvalidLoadRef, reflect.TypeFor[T](), "", "result %v", r.result))
	}
	return r.obj
}

// MoveTo copies the loaded object into *dst and relocates it there.
func (r LoadRef[T]) MoveTo(dst *T) {
	src := r.Ptr()
	*dst = *src
	Relocated(r.s, src, dst)
}

// Relocated tells the scribe that the loaded object at from has been copied
// to to. Pointers to it (and to anything inside it) are updated, as are
// pointers inside it that are still waiting for their objects. Objects that
// are saved, or loaded untracked, need no relocation.
func Relocated[T any](s *Scribe, from, to *T) {
	if from == nil || to == nil {
		panic(usageErrf(ErrUnsupportedType, reflect.TypeFor[T](), "", "nil relocation address"))
	}
	if s.IsSaving() || from == to {
		return
	}
	s.relocate(unsafe.Pointer(from), unsafe.Pointer(to), reflect.TypeFor[T]().Size())
}

func (s *Scribe) relocate(from, to unsafe.Pointer, size uintptr) {
	t := &s.objects

	// pointer variables living inside the moved object
	for _, e := range t.byID {
		for _, ref := range e.refs {
			if p, ok := rebase(ref.addr, from, to, size); ok {
				ref.addr = p
			}
		}
	}
	for _, refs := range t.pending {
		for _, ref := range refs {
			if p, ok := rebase(ref.addr, from, to, size); ok {
				ref.addr = p
			}
		}
	}

	// objects inside the moved object, and the pointers to them
	for _, e := range t.byID {
		p, ok := rebase(e.addr, from, to, size)
		if !ok {
			continue
		}
		e.addr = p
		for _, ref := range e.refs {
			val, err := s.refValue(ref, e)
			if err != nil {
				s.fail(Incompatible, ObjectTag{}, ref.typ, "relocating object #%d: %v", e.id, err)
				continue
			}
			ref.variable().Set(val)
		}
	}
}
