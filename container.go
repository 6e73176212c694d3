package scribe

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
)

// Sequences are stored as a "size" child plus "item" array children, maps as
// "size" plus parallel "item_key" and "item_value" arrays. A client type that
// transcribes the same names by hand is interchangeable with the generic
// containers.

func (s *Scribe) transcribeSize(n *int) Result {
	return s.transcribeObject(reflect.ValueOf(n).Elem(), ObjectTag{}.SequenceSize(), options{untracked: true}, false)
}

// loadSize reads the size of an array whose items are stored under itemTag.
// A size larger than the number of stored items can never load, so it is
// rejected before anything is allocated; with StrictArrays, a smaller size is
// rejected too.
func (s *Scribe) loadSize(typ reflect.Type, itemTags ...ObjectTag) (int, Result) {
	var n int
	if r := s.transcribeSize(&n); !r.OK() {
		return 0, r
	}
	if n < 0 {
		return 0, s.fail(Incompatible, ObjectTag{}.SequenceSize(), typ, "negative size %d", n)
	}
	for _, itemTag := range itemTags {
		stored := s.ctx.ArrayItemCount(itemTag)
		if n > stored || s.strictArrays && n != stored {
			return 0, s.fail(Incompatible, ObjectTag{}.SequenceSize(), typ, "size %d, but %d %s items stored", n, stored, itemTag.Last().Name)
		}
	}
	return n, Success
}

func (s *Scribe) transcribeItems(v reflect.Value, n int, o options) Result {
	for i := range n {
		if r := s.transcribe(v.Index(i), ObjectTag{}.SequenceItem(i), o, true); !r.OK() {
			return r
		}
	}
	return Success
}

func (s *Scribe) transcribeSlice(v reflect.Value, o options) Result {
	eo := o.elem()
	if s.IsSaving() {
		n := v.Len()
		if r := s.transcribeSize(&n); !r.OK() {
			return r
		}
		return s.transcribeItems(v, n, eo)
	}

	n, r := s.loadSize(v.Type(), ObjectTag{}.SequenceItem(0))
	if !r.OK() {
		return r
	}
	if n == 0 {
		v.SetZero()
		return Success
	}
	// items are loaded in place, so their addresses are final
	v.Set(reflect.MakeSlice(v.Type(), n, n))
	return s.transcribeItems(v, n, eo)
}

func (s *Scribe) transcribeArray(v reflect.Value, o options) Result {
	eo := o.elem()
	n := v.Len()
	if s.IsSaving() {
		if r := s.transcribeSize(&n); !r.OK() {
			return r
		}
		return s.transcribeItems(v, n, eo)
	}

	stored, r := s.loadSize(v.Type(), ObjectTag{}.SequenceItem(0))
	if !r.OK() {
		return r
	}
	if stored != n {
		return s.fail(Incompatible, ObjectTag{}.SequenceSize(), v.Type(), "stored %d items, array holds %d", stored, n)
	}
	return s.transcribeItems(v, n, eo)
}

// Map entries are copies, so they are never tracked. Pointers inside them
// must refer to objects that were transcribed earlier.
func (s *Scribe) transcribeMap(v reflect.Value, o options) Result {
	typ := v.Type()
	eo := o.elem()
	eo.untracked = true

	if s.IsSaving() {
		keys := v.MapKeys()
		sortMapKeys(keys)
		n := len(keys)
		if r := s.transcribeSize(&n); !r.OK() {
			return r
		}
		for i, k := range keys {
			kv := reflect.New(typ.Key()).Elem()
			kv.Set(k)
			if r := s.transcribe(kv, ObjectTag{}.MapItemKey(i), eo, true); !r.OK() {
				return r
			}
			vv := reflect.New(typ.Elem()).Elem()
			vv.Set(v.MapIndex(k))
			if r := s.transcribe(vv, ObjectTag{}.MapItemValue(i), eo, true); !r.OK() {
				return r
			}
		}
		return Success
	}

	n, r := s.loadSize(typ, ObjectTag{}.MapItemKey(0), ObjectTag{}.MapItemValue(0))
	if !r.OK() {
		return r
	}
	m := reflect.MakeMapWithSize(typ, n)
	for i := range n {
		kp := reflect.New(typ.Key())
		if r := s.transcribe(kp.Elem(), ObjectTag{}.MapItemKey(i), eo, true); !r.OK() {
			return r
		}
		vp := reflect.New(typ.Elem())
		if r := s.transcribe(vp.Elem(), ObjectTag{}.MapItemValue(i), eo, true); !r.OK() {
			return r
		}
		if s.objects.hasPendingWithin(kp.UnsafePointer(), typ.Key().Size()) || s.objects.hasPendingWithin(vp.UnsafePointer(), typ.Elem().Size()) {
			panic(usageErrf(ErrUntrackedPointerBeforeReferencedObject, typ, s.pathString(ObjectTag{}.MapItemValue(i)), "map entries cannot wait for objects loaded later"))
		}
		m.SetMapIndex(kp.Elem(), vp.Elem())
	}
	v.Set(m)
	return Success
}

func sortMapKeys(keys []reflect.Value) {
	if len(keys) == 0 {
		return
	}
	switch keys[0].Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Int(), b.Int()) })
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Uint(), b.Uint()) })
	case reflect.Float32, reflect.Float64:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.Float(), b.Float()) })
	case reflect.String:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(a.String(), b.String()) })
	case reflect.Bool:
		slices.SortFunc(keys, func(a, b reflect.Value) int { return cmp.Compare(boolInt(a.Bool()), boolInt(b.Bool())) })
	default:
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			return cmp.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
		})
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
