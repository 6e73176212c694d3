package scribe

import (
	"fmt"
	"reflect"
)

// transcribePointer transcribes a pointer variable. Owning pointers
// (ExclusiveOwner, SharedOwner) transcribe their pointee the first time it
// is reached; other pointers only store the id of an object that is
// transcribed somewhere else.
func (s *Scribe) transcribePointer(v reflect.Value, tag ObjectTag, o options) Result {
	elem := v.Type().Elem()
	switch elem.Kind() {
	case reflect.Pointer, reflect.Interface:
		panic(usageErrf(ErrUnsupportedType, v.Type(), s.pathString(tag), "pointers to pointers and interfaces are not supported"))
	}
	if s.IsSaving() {
		return s.savePointer(v, tag, o)
	}
	return s.loadPointer(v, tag, o)
}

// ownershipConflict describes why an owning pointer cannot own e, or returns
// "" if it can.
func ownershipConflict(e *trackedObject, own Ownership) string {
	switch {
	case e.owner == ownedByValue:
		return fmt.Sprintf("%v pointer to object #%d, which is owned by value", own, e.id)
	case e.owner == ownedExclusively:
		return fmt.Sprintf("%v pointer to object #%d, which already has an exclusive owner", own, e.id)
	case e.owner == ownedShared && own == ExclusiveOwner:
		return fmt.Sprintf("exclusive pointer to object #%d, which has shared owners", e.id)
	}
	return ""
}

func (s *Scribe) savePointer(v reflect.Value, tag ObjectTag, o options) Result {
	if v.IsNil() {
		id := NullObjectID
		s.ctx.TranscribeObjectID(&id, tag)
		return Success
	}
	elem := v.Type().Elem()
	addr := v.UnsafePointer()

	if o.isOwner() {
		e := s.track(addr, elem)
		if e.typ != elem && !e.done {
			panic(usageErrf(ErrOwnershipViolation, elem, s.pathString(tag), "%v pointer into object #%d, a %v that must be saved first", o.ownership, e.id, e.typ))
		}
		if msg := ownershipConflict(e, o.ownership); msg != "" {
			panic(usageErrf(ErrOwnershipViolation, e.typ, s.pathString(tag), "%s", msg))
		}
		e.owner = ownerFor(o.ownership)
		id := e.id
		s.ctx.TranscribeObjectID(&id, tag)
		if e.done {
			return Success
		}
		e.done = true
		s.trace("save owned", tag, id, elem)
		return s.transcribeScope(id, v.Elem(), tag, o.elem(), true)
	}

	e := s.objects.find(addr, elem)
	if o.untracked && (e == nil || !e.done) {
		panic(usageErrf(ErrUntrackedPointerBeforeReferencedObject, elem, s.pathString(tag), "the pointee must be saved first"))
	}
	if e == nil {
		e = s.track(addr, elem)
	}
	id := e.id
	s.ctx.TranscribeObjectID(&id, tag)
	return Success
}

func (s *Scribe) loadPointer(v reflect.Value, tag ObjectTag, o options) Result {
	var id ObjectID
	if !s.ctx.TranscribeObjectID(&id, tag) {
		return s.fail(Incompatible, tag, v.Type(), "not found")
	}
	if id == NullObjectID {
		v.SetZero()
		return Success
	}
	elem := v.Type().Elem()
	e := s.objects.byID[id]

	if o.isOwner() {
		if e == nil {
			obj := reflect.New(elem)
			e = s.locate(id, obj.UnsafePointer(), elem, ownerFor(o.ownership))
			s.trace("load owned", tag, id, elem)
			if r := s.transcribeScope(id, obj.Elem(), tag, o.elem(), true); !r.OK() {
				return r
			}
		} else if msg := ownershipConflict(e, o.ownership); msg != "" {
			return s.fail(Incompatible, tag, v.Type(), "%s", msg)
		}
		return s.pointTo(v, e, tag, o)
	}

	if e != nil {
		return s.pointTo(v, e, tag, o)
	}
	if o.untracked || !v.CanAddr() {
		panic(usageErrf(ErrUntrackedPointerBeforeReferencedObject, elem, s.pathString(tag), "object #%d has not been loaded yet", id))
	}
	s.objects.addPending(newPointerRef(v, elem, id))
	return Success
}

func (s *Scribe) pointTo(v reflect.Value, e *trackedObject, tag ObjectTag, o options) Result {
	if o.untracked || !v.CanAddr() {
		val, err := s.pointerTo(e, v.Type().Elem())
		if err != nil {
			return s.fail(Incompatible, tag, v.Type(), "object #%d: %v", e.id, err)
		}
		v.Set(val)
		return Success
	}
	if !s.resolve(newPointerRef(v, v.Type().Elem(), e.id), e) {
		return Incompatible
	}
	return Success
}
