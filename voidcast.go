package scribe

import (
	"reflect"
	"unsafe"
)

type typePair struct {
	derived reflect.Type
	base    reflect.Type
}

type inheritanceKind byte

const (
	embedsStruct inheritanceKind = iota
	implementsInterface
)

// inheritance is a registered derived -> base edge. Struct embedding casts
// move the pointer by the field offset; interface edges convert or assert.
type inheritance struct {
	derived reflect.Type
	base    reflect.Type
	kind    inheritanceKind
	offset  uintptr
}

type castPath struct {
	edges []*inheritance
	err   error
}

// refType is the type through which objects of typ are referenced: a pointer
// for concrete types, the interface itself for interfaces.
func refType(typ reflect.Type) reflect.Type {
	if typ.Kind() == reflect.Interface {
		return typ
	}
	return reflect.PointerTo(typ)
}

// RegisterInheritance records that Derived can be used as Base. Base must be
// either an interface implemented by *Derived (or by Derived, when Derived is
// itself an interface), or a struct embedded directly in Derived.
// Registering the same pair again is a no-op.
func RegisterInheritance[Derived, Base any](reg *Registry) {
	d, b := reflect.TypeFor[Derived](), reflect.TypeFor[Base]()
	pair := typePair{d, b}
	if reg.edges[pair] != nil {
		return
	}
	if d == b {
		panic(usageErrf(ErrInvalidInheritance, d, "", "type cannot inherit from itself"))
	}
	reg.ensureMutable("inheritance " + d.String() + " -> " + b.String())

	edge := &inheritance{derived: d, base: b}
	switch {
	case b.Kind() == reflect.Interface:
		if !refType(d).Implements(b) {
			panic(usageErrf(ErrInvalidInheritance, d, "", "%v does not implement %v", refType(d), b))
		}
		edge.kind = implementsInterface
	case b.Kind() == reflect.Struct && d.Kind() == reflect.Struct:
		f, ok := embeddedField(d, b)
		if !ok {
			panic(usageErrf(ErrInvalidInheritance, d, "", "%v is not embedded in %v", b, d))
		}
		edge.kind = embedsStruct
		edge.offset = f.Offset
	default:
		panic(usageErrf(ErrInvalidInheritance, d, "", "%v cannot be a base of %v", b, d))
	}

	reg.edges[pair] = edge
	reg.bases[d] = append(reg.bases[d], edge)
	reg.castPaths.Clear()
}

func embeddedField(d, b reflect.Type) (reflect.StructField, bool) {
	for i := range d.NumField() {
		f := d.Field(i)
		if f.Anonymous && f.Type == b {
			return f, true
		}
	}
	return reflect.StructField{}, false
}

func (e *inheritance) up(ref reflect.Value) (reflect.Value, error) {
	switch e.kind {
	case embedsStruct:
		if ref.IsNil() {
			return reflect.Zero(refType(e.base)), nil
		}
		return reflect.NewAt(e.base, unsafe.Add(ref.UnsafePointer(), e.offset)), nil
	default:
		out := reflect.New(e.base).Elem()
		if ref.Kind() == reflect.Interface && ref.IsNil() {
			return out, nil
		}
		out.Set(ref)
		return out, nil
	}
}

func (e *inheritance) down(ref reflect.Value) (reflect.Value, error) {
	switch e.kind {
	case embedsStruct:
		if ref.IsNil() {
			return reflect.Zero(refType(e.derived)), nil
		}
		return reflect.NewAt(e.derived, unsafe.Add(ref.UnsafePointer(), -int(e.offset))), nil
	default:
		if ref.IsNil() {
			return reflect.Zero(refType(e.derived)), nil
		}
		dyn := ref.Elem()
		if e.derived.Kind() == reflect.Interface {
			if !dyn.Type().Implements(e.derived) {
				return reflect.Value{}, &CastError{e.base, e.derived, ErrCastMismatch}
			}
			out := reflect.New(e.derived).Elem()
			out.Set(dyn)
			return out, nil
		}
		if dyn.Type() != refType(e.derived) {
			return reflect.Value{}, &CastError{e.base, e.derived, ErrCastMismatch}
		}
		return dyn, nil
	}
}

func (reg *Registry) castPath(derived, base reflect.Type) castPath {
	pair := typePair{derived, base}
	if v, ok := reg.castPaths.Load(pair); ok {
		return v.(castPath)
	}
	var found [][]*inheritance
	reg.findPaths(derived, base, nil, map[reflect.Type]bool{derived: true}, &found)

	var cp castPath
	switch len(found) {
	case 0:
		cp.err = &CastError{derived, base, ErrUnregisteredCast}
	case 1:
		cp.edges = found[0]
	default:
		cp.err = &CastError{derived, base, ErrAmbiguousCast}
	}
	actual, _ := reg.castPaths.LoadOrStore(pair, cp)
	return actual.(castPath)
}

// findPaths collects up to two distinct paths, which is enough to tell a
// unique path from an ambiguous one.
func (reg *Registry) findPaths(from, to reflect.Type, prefix []*inheritance, visiting map[reflect.Type]bool, found *[][]*inheritance) {
	for _, edge := range reg.bases[from] {
		if len(*found) >= 2 {
			return
		}
		if visiting[edge.base] {
			continue
		}
		path := append(prefix[:len(prefix):len(prefix)], edge)
		if edge.base == to {
			*found = append(*found, path)
			continue
		}
		visiting[edge.base] = true
		reg.findPaths(edge.base, to, path, visiting, found)
		delete(visiting, edge.base)
	}
}

// UpCast converts ref, a reference to a derived object (*Derived, or a
// Derived interface value), into a reference to its base.
func (reg *Registry) UpCast(derived, base reflect.Type, ref reflect.Value) (reflect.Value, error) {
	if ref.Type() != refType(derived) {
		return reflect.Value{}, &CastError{ref.Type(), refType(base), ErrCastMismatch}
	}
	if derived == base {
		return ref, nil
	}
	cp := reg.castPath(derived, base)
	if cp.err != nil {
		return reflect.Value{}, cp.err
	}
	var err error
	for _, edge := range cp.edges {
		ref, err = edge.up(ref)
		if err != nil {
			return reflect.Value{}, err
		}
	}
	return ref, nil
}

// DownCast converts a reference to base back into a reference to derived.
// Struct embedding down-casts are static: ref must really point into a
// Derived. Interface down-casts check the dynamic type.
func (reg *Registry) DownCast(derived, base reflect.Type, ref reflect.Value) (reflect.Value, error) {
	if ref.Type() != refType(base) {
		return reflect.Value{}, &CastError{ref.Type(), refType(derived), ErrCastMismatch}
	}
	if derived == base {
		return ref, nil
	}
	cp := reg.castPath(derived, base)
	if cp.err != nil {
		return reflect.Value{}, cp.err
	}
	var err error
	for i := len(cp.edges) - 1; i >= 0; i-- {
		ref, err = cp.edges[i].down(ref)
		if err != nil {
			return reflect.Value{}, err
		}
	}
	return ref, nil
}

// CanCast reports whether exactly one inheritance path leads from derived to
// base.
func (reg *Registry) CanCast(derived, base reflect.Type) bool {
	return derived == base || reg.castPath(derived, base).err == nil
}

// Ancestors returns the bases reachable from typ through exactly one path.
func (reg *Registry) Ancestors(typ reflect.Type) []reflect.Type {
	var result []reflect.Type
	seen := map[reflect.Type]bool{typ: true}
	queue := []reflect.Type{typ}
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		for _, edge := range reg.bases[t] {
			if seen[edge.base] {
				continue
			}
			seen[edge.base] = true
			queue = append(queue, edge.base)
			if reg.castPath(typ, edge.base).err == nil {
				result = append(result, edge.base)
			}
		}
	}
	return result
}
