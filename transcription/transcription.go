// Package transcription implements the flat, versioned store that an object
// graph is transcribed into.
//
// A Transcription maps integer object ids to typed entries. An entry is either
// a primitive (signed integer, unsigned integer, float, double or string) or a
// composite object, which is a set of child object ids keyed by object keys.
// Object keys are compact integers assigned to (name, version) pairs so that
// composites don't repeat field names.
//
// Object id 0 is reserved for the null pointer and is never stored. Object id 1
// is the emulated root scope that top-level objects are attached to.
//
// The package knows nothing about the client types that were transcribed; see
// the scribe package for that.
package transcription

import (
	"fmt"
	"iter"
)

type ObjectID uint32

const (
	NullObjectID  ObjectID = 0
	RootObjectID  ObjectID = 1
	FirstObjectID ObjectID = 2

	// invalidObjectID marks unset array slots inside composites.
	invalidObjectID ObjectID = ^ObjectID(0)
)

type ObjectKey uint32

type ObjectType byte

const (
	Unknown ObjectType = iota
	SignedInteger
	UnsignedInteger
	Float
	Double
	String
	Composite
)

var objectTypeNames = [...]string{
	Unknown:         "unknown",
	SignedInteger:   "signed_integer",
	UnsignedInteger: "unsigned_integer",
	Float:           "float",
	Double:          "double",
	String:          "string",
	Composite:       "composite",
}

func (t ObjectType) String() string {
	if int(t) < len(objectTypeNames) {
		return objectTypeNames[t]
	}
	return fmt.Sprintf("ObjectType(%d)", int(t))
}

func (t ObjectType) IsNumeric() bool {
	return t >= SignedInteger && t <= Double
}

type keyName struct {
	name    string
	version uint32
}

type object struct {
	typ  ObjectType
	word uint64 // int64, uint64, float32 and float64 bits
	str  string
	comp *CompositeObject
}

// Transcription is the save/load intermediate representation of an object
// graph. It is not safe for concurrent mutation.
type Transcription struct {
	objects []object // indexed by ObjectID
	count   int

	keys       []keyName
	keysByName map[keyName]ObjectKey
}

func New() *Transcription {
	return &Transcription{
		keysByName: make(map[keyName]ObjectKey),
	}
}

func (tr *Transcription) Len() int {
	return tr.count
}

// MaxObjectID returns the largest id present, or NullObjectID if empty.
func (tr *Transcription) MaxObjectID() ObjectID {
	for i := len(tr.objects) - 1; i > 0; i-- {
		if tr.objects[i].typ != Unknown {
			return ObjectID(i)
		}
	}
	return NullObjectID
}

// IDs yields the ids of all stored entries in ascending order.
func (tr *Transcription) IDs() iter.Seq[ObjectID] {
	return func(yield func(ObjectID) bool) {
		for i, o := range tr.objects {
			if o.typ != Unknown {
				if !yield(ObjectID(i)) {
					return
				}
			}
		}
	}
}

func (tr *Transcription) Has(id ObjectID) bool {
	return tr.ObjectType(id) != Unknown
}

// ObjectType returns the type of the entry at id, or Unknown if there is none.
func (tr *Transcription) ObjectType(id ObjectID) ObjectType {
	return denseMapGet(tr.objects, id).typ
}

func (tr *Transcription) add(id ObjectID, o object) {
	if id == NullObjectID || id == invalidObjectID {
		panic(libraryErrf(id, "cannot add %v at reserved object id %d", o.typ, id))
	}
	if prev := denseMapGet(tr.objects, id); prev.typ != Unknown {
		panic(libraryErrf(id, "cannot add %v: object id %d already holds %v", o.typ, id, prev.typ))
	}
	denseMapSet(&tr.objects, id, o)
	tr.count++
}

func (tr *Transcription) AddSignedInteger(id ObjectID, v int64) {
	tr.add(id, object{typ: SignedInteger, word: uint64(v)})
}

func (tr *Transcription) AddUnsignedInteger(id ObjectID, v uint64) {
	tr.add(id, object{typ: UnsignedInteger, word: v})
}

func (tr *Transcription) AddFloat(id ObjectID, v float32) {
	tr.add(id, object{typ: Float, word: float32ToWord(v)})
}

func (tr *Transcription) AddDouble(id ObjectID, v float64) {
	tr.add(id, object{typ: Double, word: float64ToWord(v)})
}

func (tr *Transcription) AddString(id ObjectID, v string) {
	tr.add(id, object{typ: String, str: v})
}

// AddCompositeObject creates an empty composite at id and returns it.
func (tr *Transcription) AddCompositeObject(id ObjectID) *CompositeObject {
	comp := &CompositeObject{}
	tr.add(id, object{typ: Composite, comp: comp})
	return comp
}

func (tr *Transcription) get(id ObjectID, typ ObjectType) object {
	o := denseMapGet(tr.objects, id)
	if o.typ != typ {
		if o.typ == Unknown {
			panic(libraryErrf(id, "object id %d not found, wanted %v", id, typ))
		}
		panic(libraryErrf(id, "object id %d holds %v, wanted %v", id, o.typ, typ))
	}
	return o
}

func (tr *Transcription) GetSignedInteger(id ObjectID) int64 {
	return int64(tr.get(id, SignedInteger).word)
}

func (tr *Transcription) GetUnsignedInteger(id ObjectID) uint64 {
	return tr.get(id, UnsignedInteger).word
}

func (tr *Transcription) GetFloat(id ObjectID) float32 {
	return wordToFloat32(tr.get(id, Float).word)
}

func (tr *Transcription) GetDouble(id ObjectID) float64 {
	return wordToFloat64(tr.get(id, Double).word)
}

func (tr *Transcription) GetString(id ObjectID) string {
	return tr.get(id, String).str
}

func (tr *Transcription) GetCompositeObject(id ObjectID) *CompositeObject {
	return tr.get(id, Composite).comp
}

// GetOrCreateObjectKey returns the key of (name, version), registering it on
// first use.
func (tr *Transcription) GetOrCreateObjectKey(name string, version uint32) ObjectKey {
	kn := keyName{name, version}
	if key, ok := tr.keysByName[kn]; ok {
		return key
	}
	key := ObjectKey(len(tr.keys))
	tr.keys = append(tr.keys, kn)
	tr.keysByName[kn] = key
	return key
}

// ObjectKey returns the key of (name, version) if it was ever registered. When
// loading, a missing key means no composite anywhere can have such a child.
func (tr *Transcription) ObjectKey(name string, version uint32) (ObjectKey, bool) {
	key, ok := tr.keysByName[keyName{name, version}]
	return key, ok
}

func (tr *Transcription) ObjectKeyInfo(key ObjectKey) (name string, version uint32) {
	if int(key) >= len(tr.keys) {
		panic(libraryErrf(NullObjectID, "object key %d not registered", key))
	}
	kn := tr.keys[key]
	return kn.name, kn.version
}

func (tr *Transcription) ObjectKeyCount() int {
	return len(tr.keys)
}
