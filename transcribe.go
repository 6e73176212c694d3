package scribe

import (
	"encoding"
	"reflect"
)

// Transcriber is implemented by types that transcribe their own fields,
// usually with Transcribe calls for child objects relative to themselves.
//
// constructed is true when TranscribeConstruct has already transcribed the
// constructor data of the object, so those fields must not be transcribed
// again.
type Transcriber interface {
	Transcribe(s *Scribe, constructed bool) Result
}

// ConstructTranscriber is implemented by types that need some of their
// fields before the rest of the object can be loaded. It is called on
// construct paths: Load, owning pointers, container items and polymorphic
// values.
type ConstructTranscriber interface {
	TranscribeConstruct(s *Scribe) Result
}

var (
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// Transcribe saves or loads *obj at tag relative to the object currently
// being transcribed.
func Transcribe[T any](s *Scribe, obj *T, tag ObjectTag, opts ...Option) Result {
	s.checkActive()
	if obj == nil {
		panic(usageErrf(ErrUnsupportedType, reflect.TypeFor[T](), tag.String(), "nil object pointer"))
	}
	return s.transcribe(reflect.ValueOf(obj).Elem(), tag, makeOptions(opts), false)
}

// TranscribeConstruct is Transcribe for objects that go through the
// construct path, which calls TranscribeConstruct before Transcribe.
func TranscribeConstruct[T any](s *Scribe, obj *T, tag ObjectTag, opts ...Option) Result {
	s.checkActive()
	if obj == nil {
		panic(usageErrf(ErrUnsupportedType, reflect.TypeFor[T](), tag.String(), "nil object pointer"))
	}
	return s.transcribe(reflect.ValueOf(obj).Elem(), tag, makeOptions(opts), true)
}

// Save saves an object that will be loaded with Load.
func Save[T any](s *Scribe, obj *T, tag ObjectTag, opts ...Option) Result {
	if !s.IsSaving() {
		panic(usageErrf(ErrWrongMode, reflect.TypeFor[T](), tag.String(), "Save called on a loading scribe"))
	}
	return TranscribeConstruct(s, obj, tag, opts...)
}

// IsInTranscription reports whether anything was saved at tag relative to the
// current object.
func IsInTranscription(s *Scribe, tag ObjectTag) bool {
	return s.ctx.IsInTranscription(tag)
}

func (s *Scribe) transcribe(v reflect.Value, tag ObjectTag, o options, construct bool) Result {
	tag = o.tag(tag)
	if tag.IsEmpty() {
		panic(usageErrf(ErrEmptyObjectTag, v.Type(), "", "cannot transcribe at an empty tag"))
	}
	if o.optional && s.IsLoading() && !s.ctx.IsInTranscription(tag) {
		return Success
	}
	switch v.Kind() {
	case reflect.Pointer:
		return s.transcribePointer(v, tag, o)
	case reflect.Interface:
		return s.transcribeInterface(v, tag, o)
	default:
		return s.transcribeObject(v, tag, o, construct)
	}
}

// transcribeObject transcribes a value object: one whose storage is owned by
// its parent.
func (s *Scribe) transcribeObject(v reflect.Value, tag ObjectTag, o options, construct bool) Result {
	typ := v.Type()
	tracked := !o.untracked && v.CanAddr()

	if s.IsSaving() {
		var id ObjectID
		if tracked {
			e := s.trackValue(v.Addr().UnsafePointer(), typ)
			if e.owner == ownedExclusively || e.owner == ownedShared {
				panic(usageErrf(ErrOwnershipViolation, typ, s.pathString(tag), "object #%d is owned by a %v and cannot also be transcribed as a value", e.id, e.owner))
			}
			e.owner = ownedByValue
			id = e.id
			if e.done {
				s.ctx.TranscribeObjectID(&id, tag)
				return Success
			}
			e.done = true
		} else {
			id = s.ctx.AllocateObjectID()
		}
		s.ctx.TranscribeObjectID(&id, tag)
		s.trace("save", tag, id, typ)
		return s.transcribeScope(id, v, tag, o, construct)
	}

	var id ObjectID
	if !s.ctx.TranscribeObjectID(&id, tag) {
		return s.fail(Incompatible, tag, typ, "not found")
	}
	if id == NullObjectID {
		return s.fail(Incompatible, tag, typ, "null reference where a value was expected")
	}
	if tracked {
		addr := v.Addr().UnsafePointer()
		if e := s.objects.byID[id]; e != nil {
			if e.owner != ownedByValue {
				return s.fail(Incompatible, tag, typ, "object #%d is owned by a %v and cannot also be loaded as a value", e.id, e.owner)
			}
			if e.addr == addr && e.typ == typ {
				return Success
			}
			// the same object was saved under two tags; load an independent copy
		} else {
			s.locate(id, addr, typ, ownedByValue)
		}
	}
	s.trace("load", tag, id, typ)
	return s.transcribeScope(id, v, tag, o, construct)
}

func (s *Scribe) transcribeScope(id ObjectID, v reflect.Value, tag ObjectTag, o options, construct bool) Result {
	s.enter(id, tag)
	defer s.leave()
	return s.transcribeContent(v, o, construct)
}

// transcribeContent transcribes v into the current scope.
func (s *Scribe) transcribeContent(v reflect.Value, o options, construct bool) Result {
	typ := v.Type()
	if v.CanAddr() {
		ptr := v.Addr()
		if t, ok := ptr.Interface().(Transcriber); ok {
			constructed := false
			if ct, ok := t.(ConstructTranscriber); ok && construct {
				if r := ct.TranscribeConstruct(s); !r.OK() {
					return r
				}
				constructed = true
			}
			return t.Transcribe(s, constructed)
		}
		if typ.Implements(textMarshalerType) && ptr.Type().Implements(textUnmarshalerType) {
			return s.transcribeText(ptr)
		}
	}

	switch typ.Kind() {
	case reflect.Slice:
		return s.transcribeSlice(v, o)
	case reflect.Array:
		return s.transcribeArray(v, o)
	case reflect.Map:
		return s.transcribeMap(v, o)
	case reflect.Struct:
		return s.transcribeStruct(v)
	default:
		if !isPrimitiveKind(typ.Kind()) {
			panic(usageErrf(ErrUnsupportedType, typ, s.pathString(ObjectTag{}), "%v values cannot be transcribed", typ.Kind()))
		}
		if !s.ctx.TranscribePrimitive(v) {
			return s.fail(Incompatible, ObjectTag{}, typ, "stored %v does not fit", s.ctx.tr.ObjectType(s.ctx.CurrentObjectID()))
		}
		return Success
	}
}

// transcribeText stores types like time.Time through their text form.
func (s *Scribe) transcribeText(ptr reflect.Value) Result {
	var text string
	if s.IsSaving() {
		b, err := ptr.Elem().Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			panic(usageErrf(ErrUnsupportedType, ptr.Type().Elem(), s.pathString(ObjectTag{}), "MarshalText: %v", err))
		}
		text = string(b)
		s.ctx.TranscribePrimitivePtr(&text)
		return Success
	}
	if !s.ctx.TranscribePrimitivePtr(&text) {
		return s.fail(Incompatible, ObjectTag{}, ptr.Type().Elem(), "expected a string")
	}
	if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(text)); err != nil {
		return s.fail(Incompatible, ObjectTag{}, ptr.Type().Elem(), "%v", err)
	}
	return Success
}
