package scribe

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// Registry holds the types that can be transcribed polymorphically (through
// interface values) and the inheritance relationships used to cast between
// them. Register everything at startup; a Registry is frozen when the first
// Scribe uses it and is read-only from then on, so it can be shared by
// concurrent transcriptions.
type Registry struct {
	frozen atomic.Bool

	classesByName map[string]*ExportClassType
	classesByType map[reflect.Type]*ExportClassType

	bases     map[reflect.Type][]*inheritance // derived type -> direct bases
	edges     map[typePair]*inheritance
	castPaths sync.Map // typePair -> castPath
}

func NewRegistry() *Registry {
	return &Registry{
		classesByName: make(map[string]*ExportClassType),
		classesByType: make(map[reflect.Type]*ExportClassType),
		bases:         make(map[reflect.Type][]*inheritance),
		edges:         make(map[typePair]*inheritance),
	}
}

// Freeze makes the registry read-only.
func (reg *Registry) Freeze() {
	reg.frozen.Store(true)
}

func (reg *Registry) IsFrozen() bool {
	return reg.frozen.Load()
}

func (reg *Registry) ensureMutable(what string) {
	if reg.frozen.Load() {
		panic(usageErrf(ErrRegistryFrozen, nil, "", "cannot register %s", what))
	}
}

// ExportClassType is a type registered for polymorphic transcription under a
// stable name. The name is what gets stored in archives.
type ExportClassType struct {
	Name string
	Type reflect.Type

	save func(s *Scribe, dyn reflect.Value, tag ObjectTag, o options) Result
	load func(s *Scribe, pointer bool, tag ObjectTag, o options) (reflect.Value, Result)
}

func (ect *ExportClassType) String() string {
	return fmt.Sprintf("%s (%v)", ect.Name, ect.Type)
}

// RegisterClassType exports T under name. Registering the same pair again is a
// no-op; reusing a name for another type or another name for the same type
// panics. T must be a concrete non-pointer type; interface values holding
// either T or *T can then be transcribed.
func RegisterClassType[T any](reg *Registry, name string) *ExportClassType {
	typ := reflect.TypeFor[T]()
	switch typ.Kind() {
	case reflect.Interface, reflect.Pointer:
		panic(usageErrf(ErrUnsupportedType, typ, "", "register the concrete pointee type instead"))
	}
	if name == "" {
		panic(usageErrf(ErrConflictingRegistration, typ, "", "empty export name"))
	}

	if ect := reg.classesByName[name]; ect != nil {
		if ect.Type != typ {
			panic(usageErrf(ErrConflictingRegistration, typ, "", "name %q already exported for %v", name, ect.Type))
		}
		return ect
	}
	if ect := reg.classesByType[typ]; ect != nil {
		panic(usageErrf(ErrConflictingRegistration, typ, "", "already exported as %q, cannot export as %q", ect.Name, name))
	}
	reg.ensureMutable("class type " + name)

	ptrType := reflect.PointerTo(typ)
	ect := &ExportClassType{
		Name: name,
		Type: typ,
		save: func(s *Scribe, dyn reflect.Value, tag ObjectTag, o options) Result {
			if dyn.Type() == ptrType {
				holder := reflect.New(ptrType).Elem()
				holder.Set(dyn)
				o.untracked = true
				return s.transcribePointer(holder, tag, o)
			}
			holder := reflect.New(typ).Elem()
			holder.Set(dyn)
			o.untracked = true
			return s.transcribeObject(holder, tag, o, true)
		},
		load: func(s *Scribe, pointer bool, tag ObjectTag, o options) (reflect.Value, Result) {
			o.untracked = true
			if pointer {
				holder := reflect.New(ptrType).Elem()
				r := s.transcribePointer(holder, tag, o)
				return holder, r
			}
			holder := reflect.New(typ).Elem()
			r := s.transcribeObject(holder, tag, o, true)
			return holder, r
		},
	}
	reg.classesByName[name] = ect
	reg.classesByType[typ] = ect
	return ect
}

func (reg *Registry) ClassTypeByName(name string) (*ExportClassType, bool) {
	ect := reg.classesByName[name]
	return ect, ect != nil
}

// ClassTypeOf looks up the export registration of typ. Pointer types resolve
// to their pointee.
func (reg *Registry) ClassTypeOf(typ reflect.Type) (*ExportClassType, bool) {
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	ect := reg.classesByType[typ]
	return ect, ect != nil
}

func ClassTypeFor[T any](reg *Registry) (*ExportClassType, bool) {
	return reg.ClassTypeOf(reflect.TypeFor[T]())
}

// ClassTypes returns the number of exported types.
func (reg *Registry) ClassTypes() int {
	return len(reg.classesByName)
}
