package scribe

import (
	"reflect"

	"github.com/andreyvit/scribe/transcription"
)

type ObjectID = transcription.ObjectID

const (
	NullObjectID = transcription.NullObjectID
	RootObjectID = transcription.RootObjectID
)

type scopeCategory byte

const (
	uncategorized scopeCategory = iota
	compositeScope
	primitiveScope
)

type transcribedObject struct {
	id       ObjectID
	category scopeCategory
	comp     *transcription.CompositeObject
}

// Context connects object tags to a Transcription. It keeps the stack of
// objects currently being transcribed; tags are resolved relative to the top
// of the stack. The bottom of the stack is the emulated root object.
//
// Scribe drives a Context; clients only need it for hand-written primitive
// transcription.
type Context struct {
	tr     *transcription.Transcription
	saving bool
	scopes []transcribedObject
	nextID ObjectID
}

func NewSaveContext(tr *transcription.Transcription) *Context {
	return newContext(tr, true)
}

func NewLoadContext(tr *transcription.Transcription) *Context {
	return newContext(tr, false)
}

func newContext(tr *transcription.Transcription, saving bool) *Context {
	c := &Context{
		tr:     tr,
		saving: saving,
		nextID: max(transcription.FirstObjectID, tr.MaxObjectID()+1),
	}
	c.PushTranscribedObject(RootObjectID)
	return c
}

func (c *Context) IsSaving() bool {
	return c.saving
}

func (c *Context) Transcription() *transcription.Transcription {
	return c.tr
}

// Depth returns the number of open scopes, including the root.
func (c *Context) Depth() int {
	return len(c.scopes)
}

func (c *Context) CurrentObjectID() ObjectID {
	return c.top().id
}

func (c *Context) top() *transcribedObject {
	if len(c.scopes) == 0 {
		panic(usageErrf(ErrUnbalancedScopes, nil, "", "no open scope"))
	}
	return &c.scopes[len(c.scopes)-1]
}

// PushTranscribedObject makes id the scope for subsequent tags.
func (c *Context) PushTranscribedObject(id ObjectID) {
	c.scopes = append(c.scopes, transcribedObject{id: id})
}

// PopTranscribedObject closes the current scope. When saving, a scope that
// never had anything transcribed into it becomes an empty composite, so that
// objects with no fields are still present.
func (c *Context) PopTranscribedObject() {
	top := c.top()
	if c.saving && top.category == uncategorized && !c.tr.Has(top.id) {
		c.tr.AddCompositeObject(top.id)
	}
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *Context) AllocateObjectID() ObjectID {
	if !c.saving {
		panic(usageErrf(ErrWrongMode, nil, "", "object ids are only allocated when saving"))
	}
	id := c.nextID
	c.nextID++
	return id
}

// composite returns the composite of the current scope, categorizing the
// scope on first use. Returns false on load if the scope isn't a composite.
func (c *Context) composite() (*transcription.CompositeObject, bool) {
	top := c.top()
	switch top.category {
	case compositeScope:
		return top.comp, true
	case primitiveScope:
		panic(usageErrf(ErrScopeCategoryConflict, nil, "", "object %d already holds a primitive", top.id))
	}
	switch c.tr.ObjectType(top.id) {
	case transcription.Composite:
		top.comp = c.tr.GetCompositeObject(top.id)
	case transcription.Unknown:
		if !c.saving {
			return nil, false
		}
		top.comp = c.tr.AddCompositeObject(top.id)
	default:
		if c.saving {
			panic(usageErrf(ErrScopeCategoryConflict, nil, "", "object %d already holds %v", top.id, c.tr.ObjectType(top.id)))
		}
		return nil, false
	}
	top.category = compositeScope
	return top.comp, true
}

// TranscribeObjectID stores (save) or retrieves (load) the id of the object
// at tag. Intermediate tag sections are composites of their own; they are
// created on save. On load, returns false if any part of the path is
// missing.
func (c *Context) TranscribeObjectID(id *ObjectID, tag ObjectTag) bool {
	sections := tag.Sections()
	comp, ok := c.composite()
	if !ok {
		return false
	}
	for i, sec := range sections {
		last := (i == len(sections)-1)
		if c.saving {
			key := c.tr.GetOrCreateObjectKey(sec.Name, sec.Version)
			if last {
				comp.SetArrayChild(key, *id, sec.Index)
				return true
			}
			if child, ok := comp.HasValidChild(key, sec.Index); ok {
				switch c.tr.ObjectType(child) {
				case transcription.Composite:
					comp = c.tr.GetCompositeObject(child)
				case transcription.Unknown:
					comp = c.tr.AddCompositeObject(child)
				default:
					panic(usageErrf(ErrScopeCategoryConflict, nil, tag.String(), "section %s holds %v", sec.String(), c.tr.ObjectType(child)))
				}
			} else {
				childID := c.AllocateObjectID()
				child := c.tr.AddCompositeObject(childID)
				comp.SetArrayChild(key, childID, sec.Index)
				comp = child
			}
		} else {
			key, ok := c.tr.ObjectKey(sec.Name, sec.Version)
			if !ok {
				return false
			}
			child, ok := comp.HasValidChild(key, sec.Index)
			if !ok {
				return false
			}
			if last {
				*id = child
				return true
			}
			if c.tr.ObjectType(child) != transcription.Composite {
				return false
			}
			comp = c.tr.GetCompositeObject(child)
		}
	}
	panic("unreachable")
}

// lookupParent walks to the composite holding the last section of tag
// without modifying anything.
func (c *Context) lookupParent(tag ObjectTag) (*transcription.CompositeObject, Section, bool) {
	sections := tag.Sections()
	top := c.top()
	if top.category == primitiveScope || c.tr.ObjectType(top.id) != transcription.Composite {
		return nil, Section{}, false
	}
	comp := c.tr.GetCompositeObject(top.id)
	for _, sec := range sections[:len(sections)-1] {
		key, ok := c.tr.ObjectKey(sec.Name, sec.Version)
		if !ok {
			return nil, Section{}, false
		}
		child, ok := comp.HasValidChild(key, sec.Index)
		if !ok || c.tr.ObjectType(child) != transcription.Composite {
			return nil, Section{}, false
		}
		comp = c.tr.GetCompositeObject(child)
	}
	return comp, sections[len(sections)-1], true
}

// IsInTranscription reports whether anything is stored at tag relative to the
// current scope. It never modifies the transcription.
func (c *Context) IsInTranscription(tag ObjectTag) bool {
	comp, sec, ok := c.lookupParent(tag)
	if !ok {
		return false
	}
	key, ok := c.tr.ObjectKey(sec.Name, sec.Version)
	if !ok {
		return false
	}
	_, ok = comp.HasValidChild(key, sec.Index)
	return ok
}

// ArrayItemCount returns the number of slots stored under the key of the last
// section of tag, which is normally an array item tag.
func (c *Context) ArrayItemCount(tag ObjectTag) int {
	comp, sec, ok := c.lookupParent(tag)
	if !ok {
		return 0
	}
	key, ok := c.tr.ObjectKey(sec.Name, sec.Version)
	if !ok {
		return 0
	}
	return comp.NumChildrenWithKey(key)
}

func (c *Context) primitiveID() ObjectID {
	top := c.top()
	switch top.category {
	case compositeScope:
		panic(usageErrf(ErrScopeCategoryConflict, nil, "", "object %d already holds a composite", top.id))
	case primitiveScope:
		if c.saving {
			panic(usageErrf(ErrScopeCategoryConflict, nil, "", "object %d already holds a primitive", top.id))
		}
	case uncategorized:
		if c.saving && c.tr.Has(top.id) {
			panic(usageErrf(ErrScopeCategoryConflict, nil, "", "object %d already holds %v", top.id, c.tr.ObjectType(top.id)))
		}
	}
	top.category = primitiveScope
	return top.id
}

// TranscribePrimitivePtr is TranscribePrimitive for a pointer to a primitive.
func (c *Context) TranscribePrimitivePtr(ptr any) bool {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		panic(usageErrf(ErrUnsupportedType, v.Type(), "", "expected a non-nil pointer"))
	}
	return c.TranscribePrimitive(v.Elem())
}

// TranscribePrimitive saves or loads v as the value of the current scope.
// Load converts between numeric kinds when the value fits the client type and
// returns false otherwise. Booleans are stored as 0 and 1 and load from any
// numeric value.
func (c *Context) TranscribePrimitive(v reflect.Value) bool {
	id := c.primitiveID()
	if c.saving {
		c.savePrimitive(id, v)
		return true
	}
	return c.loadPrimitive(id, v)
}

func (c *Context) savePrimitive(id ObjectID, v reflect.Value) {
	switch v.Kind() {
	case reflect.Bool:
		var u uint64
		if v.Bool() {
			u = 1
		}
		c.tr.AddUnsignedInteger(id, u)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		c.tr.AddSignedInteger(id, v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		c.tr.AddUnsignedInteger(id, v.Uint())
	case reflect.Float32:
		c.tr.AddFloat(id, float32(v.Float()))
	case reflect.Float64:
		c.tr.AddDouble(id, v.Float())
	case reflect.String:
		c.tr.AddString(id, v.String())
	default:
		panic(usageErrf(ErrUnsupportedType, v.Type(), "", "not a primitive"))
	}
}

func (c *Context) loadPrimitive(id ObjectID, v reflect.Value) bool {
	typ := c.tr.ObjectType(id)
	switch v.Kind() {
	case reflect.Bool:
		switch typ {
		case transcription.SignedInteger:
			v.SetBool(c.tr.GetSignedInteger(id) != 0)
		case transcription.UnsignedInteger:
			v.SetBool(c.tr.GetUnsignedInteger(id) != 0)
		case transcription.Float:
			v.SetBool(c.tr.GetFloat(id) != 0)
		case transcription.Double:
			v.SetBool(c.tr.GetDouble(id) != 0)
		default:
			return false
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		switch typ {
		case transcription.SignedInteger:
			n = c.tr.GetSignedInteger(id)
		case transcription.UnsignedInteger:
			u := c.tr.GetUnsignedInteger(id)
			if u > 1<<63-1 {
				return false
			}
			n = int64(u)
		default:
			return false
		}
		if v.OverflowInt(n) {
			return false
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		var u uint64
		switch typ {
		case transcription.UnsignedInteger:
			u = c.tr.GetUnsignedInteger(id)
		case transcription.SignedInteger:
			n := c.tr.GetSignedInteger(id)
			if n < 0 {
				return false
			}
			u = uint64(n)
		default:
			return false
		}
		if v.OverflowUint(u) {
			return false
		}
		v.SetUint(u)
	case reflect.Float32, reflect.Float64:
		var f float64
		switch typ {
		case transcription.Float:
			f = float64(c.tr.GetFloat(id))
		case transcription.Double:
			f = c.tr.GetDouble(id)
		case transcription.SignedInteger:
			f = float64(c.tr.GetSignedInteger(id))
		case transcription.UnsignedInteger:
			f = float64(c.tr.GetUnsignedInteger(id))
		default:
			return false
		}
		if v.OverflowFloat(f) {
			return false
		}
		v.SetFloat(f)
	case reflect.String:
		if typ != transcription.String {
			return false
		}
		v.SetString(c.tr.GetString(id))
	default:
		panic(usageErrf(ErrUnsupportedType, v.Type(), "", "not a primitive"))
	}
	return true
}

func isPrimitiveKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}
