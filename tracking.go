package scribe

import (
	"fmt"
	"reflect"
	"slices"
	"unsafe"
)

type owner byte

const (
	ownedByNone owner = iota
	ownedByValue
	ownedExclusively
	ownedShared
)

func ownerFor(v Ownership) owner {
	switch v {
	case ExclusiveOwner:
		return ownedExclusively
	case SharedOwner:
		return ownedShared
	default:
		return ownedByNone
	}
}

func (o owner) String() string {
	switch o {
	case ownedByValue:
		return "value"
	case ownedExclusively:
		return "exclusive pointer"
	case ownedShared:
		return "shared pointer"
	default:
		return "nobody"
	}
}

// trackedObject is an object whose address is known, so that pointers can
// refer to it.
type trackedObject struct {
	id    ObjectID
	addr  unsafe.Pointer
	typ   reflect.Type
	owner owner
	done  bool // save: content has been written

	refs []*pointerRef // load: tracked pointers that point to this object
}

// pointerRef is a variable written during load that refers to an object:
// either a *T, or an interface holding a *T.
type pointerRef struct {
	addr   unsafe.Pointer // address of the variable
	typ    reflect.Type   // type of the variable
	elem   reflect.Type   // T
	id     ObjectID
	target *trackedObject
}

func newPointerRef(v reflect.Value, elem reflect.Type, id ObjectID) *pointerRef {
	return &pointerRef{
		addr: v.Addr().UnsafePointer(),
		typ:  v.Type(),
		elem: elem,
		id:   id,
	}
}

// refValue returns what the variable must hold to refer to e.
func (s *Scribe) refValue(ref *pointerRef, e *trackedObject) (reflect.Value, error) {
	val, err := s.pointerTo(e, ref.elem)
	if err != nil || ref.typ.Kind() != reflect.Interface || val.Type().AssignableTo(ref.typ) {
		return val, err
	}
	return s.reg.UpCast(ref.elem, ref.typ, val)
}

func (r *pointerRef) variable() reflect.Value {
	return reflect.NewAt(r.typ, r.addr).Elem()
}

type addrKey struct {
	addr unsafe.Pointer
	typ  reflect.Type
}

type tracker struct {
	byAddr  map[addrKey]*trackedObject // save; includes embedding aliases
	shadow  map[addrKey]*trackedObject // save; embedded values hidden behind an alias
	byID    map[ObjectID]*trackedObject
	pending map[ObjectID][]*pointerRef // load
}

func newTracker() tracker {
	return tracker{
		byAddr:  make(map[addrKey]*trackedObject),
		shadow:  make(map[addrKey]*trackedObject),
		byID:    make(map[ObjectID]*trackedObject),
		pending: make(map[ObjectID][]*pointerRef),
	}
}

// find returns the object at (addr, typ). The result may be an alias: an
// object of another type that embeds typ at addr.
func (t *tracker) find(addr unsafe.Pointer, typ reflect.Type) *trackedObject {
	return t.byAddr[addrKey{addr, typ}]
}

// track returns the object a pointer to (addr, typ) refers to, allocating an
// id if it hasn't been seen yet. A pointer to an embedded base of a tracked
// object refers to the embedding object.
func (s *Scribe) track(addr unsafe.Pointer, typ reflect.Type) *trackedObject {
	if e := s.objects.find(addr, typ); e != nil {
		return e
	}
	return s.newTracked(addr, typ)
}

// trackValue is track for an object transcribed by value. An embedded base
// transcribed as a field of its embedding object gets an entry of its own,
// while pointers to it keep referring to the embedding object.
func (s *Scribe) trackValue(addr unsafe.Pointer, typ reflect.Type) *trackedObject {
	t := &s.objects
	key := addrKey{addr, typ}
	e := t.byAddr[key]
	if e != nil && e.typ == typ {
		return e
	}
	if e == nil {
		return s.newTracked(addr, typ)
	}
	if v := t.shadow[key]; v != nil {
		return v
	}
	v := &trackedObject{
		id:   s.ctx.AllocateObjectID(),
		addr: addr,
		typ:  typ,
	}
	t.shadow[key] = v
	t.byID[v.id] = v
	return v
}

// newTracked allocates an id for the object at (addr, typ). Registered
// embedded bases become aliases of the new object, so that pointers to them
// share its id.
func (s *Scribe) newTracked(addr unsafe.Pointer, typ reflect.Type) *trackedObject {
	t := &s.objects
	e := &trackedObject{
		id:   s.ctx.AllocateObjectID(),
		addr: addr,
		typ:  typ,
	}
	t.byAddr[addrKey{addr, typ}] = e
	t.byID[e.id] = e

	if typ.Kind() == reflect.Struct {
		for _, base := range s.reg.Ancestors(typ) {
			if base.Kind() != reflect.Struct {
				continue
			}
			ref, err := s.reg.UpCast(typ, base, reflect.NewAt(typ, addr))
			if err != nil {
				continue
			}
			key := addrKey{ref.UnsafePointer(), base}
			prev := t.byAddr[key]
			if prev == nil {
				t.byAddr[key] = e
				continue
			}
			if prev.owner == ownedExclusively || prev.owner == ownedShared {
				panic(usageErrf(ErrOwnershipViolation, typ, "", "the embedded %v was saved as object #%d through an owning pointer before the %v that embeds it", base, prev.id, typ))
			}
		}
	}
	return e
}

// unsaved describes objects that pointers referred to but that were never
// saved themselves.
func (t *tracker) unsaved() []string {
	var result []string
	for _, e := range t.byID {
		if !e.done {
			result = append(result, fmt.Sprintf("#%d %v", e.id, e.typ))
		}
	}
	slices.Sort(result)
	return result
}

// locate records where a loaded object lives and resolves pointers that were
// waiting for it.
func (s *Scribe) locate(id ObjectID, addr unsafe.Pointer, typ reflect.Type, own owner) *trackedObject {
	e := &trackedObject{
		id:    id,
		addr:  addr,
		typ:   typ,
		owner: own,
		done:  true,
	}
	s.objects.byID[id] = e
	if waiting := s.objects.pending[id]; len(waiting) > 0 {
		delete(s.objects.pending, id)
		for _, ref := range waiting {
			s.resolve(ref, e)
		}
	}
	return e
}

// pointerTo returns a pointer of type *elem to the object, casting through
// the registered inheritance graph when the object is a derived type.
func (s *Scribe) pointerTo(e *trackedObject, elem reflect.Type) (reflect.Value, error) {
	ptr := reflect.NewAt(e.typ, e.addr)
	if e.typ == elem {
		return ptr, nil
	}
	return s.reg.UpCast(e.typ, elem, ptr)
}

func (s *Scribe) resolve(ref *pointerRef, e *trackedObject) bool {
	val, err := s.refValue(ref, e)
	if err != nil {
		s.fail(Incompatible, ObjectTag{}, ref.typ, "object #%d: %v", e.id, err)
		return false
	}
	ref.variable().Set(val)
	ref.target = e
	e.refs = append(e.refs, ref)
	return true
}

func (t *tracker) addPending(ref *pointerRef) {
	t.pending[ref.id] = append(t.pending[ref.id], ref)
}

// hasPendingWithin reports whether any waiting pointer variable lives inside
// [addr, addr+size).
func (t *tracker) hasPendingWithin(addr unsafe.Pointer, size uintptr) bool {
	for _, refs := range t.pending {
		for _, ref := range refs {
			if _, ok := rebase(ref.addr, addr, addr, size); ok {
				return true
			}
		}
	}
	return false
}

func (t *tracker) pendingIDs() []ObjectID {
	var ids []ObjectID
	for id := range t.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// rebase maps p from the object at from to the same offset in the object at
// to. A zero-sized object only contains its own address.
func rebase(p, from, to unsafe.Pointer, size uintptr) (unsafe.Pointer, bool) {
	if uintptr(p) < uintptr(from) {
		return nil, false
	}
	off := uintptr(p) - uintptr(from)
	if off >= size && !(size == 0 && off == 0) {
		return nil, false
	}
	return unsafe.Add(to, off), true
}
