package scribe

import (
	"fmt"
	"reflect"

	"github.com/andreyvit/scribe/transcription"
)

// Polymorphic values are composites holding the export name of the dynamic
// type under "type", and the object itself under "pointer" (when the
// interface holds a pointer) or "value".
const (
	polymorphicTypeName    = "type"
	polymorphicPointerName = "pointer"
	polymorphicValueName   = "value"
)

func (s *Scribe) transcribeInterface(v reflect.Value, tag ObjectTag, o options) Result {
	if s.IsSaving() {
		return s.saveInterface(v, tag, o)
	}
	return s.loadInterface(v, tag, o)
}

func (s *Scribe) saveInterface(v reflect.Value, tag ObjectTag, o options) Result {
	if v.IsNil() || v.Elem().Kind() == reflect.Pointer && v.Elem().IsNil() {
		id := NullObjectID
		s.ctx.TranscribeObjectID(&id, tag)
		return Success
	}
	dyn := v.Elem()
	ect, ok := s.reg.ClassTypeOf(dyn.Type())
	if !ok {
		panic(usageErrf(ErrUnregisteredType, dyn.Type(), s.pathString(tag), "register it with RegisterClassType to transcribe it through %v", v.Type()))
	}

	id := s.ctx.AllocateObjectID()
	s.ctx.TranscribeObjectID(&id, tag)
	s.trace("save polymorphic", tag, id, dyn.Type())
	s.enter(id, tag)
	defer s.leave()

	name := ect.Name
	if r := s.transcribeObject(reflect.ValueOf(&name).Elem(), Tag(polymorphicTypeName), options{untracked: true}, false); !r.OK() {
		return r
	}
	if dyn.Kind() == reflect.Pointer {
		return ect.save(s, dyn, Tag(polymorphicPointerName), o.elem())
	}
	return ect.save(s, dyn, Tag(polymorphicValueName), o.elem())
}

func (s *Scribe) loadInterface(v reflect.Value, tag ObjectTag, o options) Result {
	var id ObjectID
	if !s.ctx.TranscribeObjectID(&id, tag) {
		return s.fail(Incompatible, tag, v.Type(), "not found")
	}
	if id == NullObjectID {
		v.SetZero()
		return Success
	}
	if s.ctx.tr.ObjectType(id) != transcription.Composite {
		return s.fail(Incompatible, tag, v.Type(), "stored %v instead of a polymorphic object", s.ctx.tr.ObjectType(id))
	}

	val, target, r := s.loadPolymorphic(id, v.Type(), tag, o)
	if !r.OK() {
		return r
	}
	if val.Type().AssignableTo(v.Type()) {
		v.Set(val)
	} else if cast, err := s.upCastPointer(val, v.Type()); err == nil {
		v.Set(cast)
	} else {
		return s.fail(Incompatible, tag, v.Type(), "stored %v cannot be used as %v", val.Type(), v.Type())
	}

	// An interface holding a tracked pointer follows the object when it
	// is relocated, like a *T variable does.
	if target != nil && !o.untracked && v.CanAddr() {
		ref := newPointerRef(v, val.Type().Elem(), target.id)
		ref.target = target
		target.refs = append(target.refs, ref)
	}
	return Success
}

func (s *Scribe) upCastPointer(val reflect.Value, to reflect.Type) (reflect.Value, error) {
	if val.Kind() != reflect.Pointer {
		return reflect.Value{}, fmt.Errorf("%v is not a pointer", val.Type())
	}
	return s.reg.UpCast(val.Type().Elem(), to, val)
}

// loadPolymorphic returns the loaded value, and for pointers, the tracked
// object it points to.
func (s *Scribe) loadPolymorphic(id ObjectID, ifaceType reflect.Type, tag ObjectTag, o options) (reflect.Value, *trackedObject, Result) {
	s.enter(id, tag)
	defer s.leave()

	var name string
	if r := s.transcribeObject(reflect.ValueOf(&name).Elem(), Tag(polymorphicTypeName), options{untracked: true}, false); !r.OK() {
		return reflect.Value{}, nil, r
	}
	ect, ok := s.reg.ClassTypeByName(name)
	if !ok {
		return reflect.Value{}, nil, s.fail(UnknownType, ObjectTag{}, ifaceType, "type %q is not registered", name)
	}
	s.trace("load polymorphic", tag, id, ect.Type)
	if !s.ctx.IsInTranscription(Tag(polymorphicPointerName)) {
		val, r := ect.load(s, false, Tag(polymorphicValueName), o.elem())
		return val, nil, r
	}
	val, r := ect.load(s, true, Tag(polymorphicPointerName), o.elem())
	if !r.OK() || val.IsNil() {
		return val, nil, r
	}
	var pid ObjectID
	s.ctx.TranscribeObjectID(&pid, Tag(polymorphicPointerName))
	return val, s.objects.byID[pid], r
}
