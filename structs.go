package scribe

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

var structLayoutCache sync.Map

type fieldInfo struct {
	name    string
	version uint32
	index   int
	opts    options
}

type structLayout struct {
	fields []fieldInfo
}

func layoutOf(typ reflect.Type) *structLayout {
	if v, ok := structLayoutCache.Load(typ); ok {
		return v.(*structLayout)
	}
	layout := layoutWithoutCache(typ)
	actual, _ := structLayoutCache.LoadOrStore(typ, layout)
	return actual.(*structLayout)
}

// layoutWithoutCache reads the exported fields of a struct and their scribe
// tags:
//
//	Plates []*Plate `scribe:"plates,shared"`
//	Note   string   `scribe:",optional,version=2"`
//	Cache  []byte   `scribe:"-"`
//
// Embedded structs are transcribed as fields named after their type.
func layoutWithoutCache(typ reflect.Type) *structLayout {
	layout := &structLayout{}
	for i := range typ.NumField() {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("scribe")
		if tag == "-" {
			continue
		}
		name, rest, _ := splitByte(tag, ',')
		if name == "" {
			name = f.Name
		}
		fi := fieldInfo{name: name, index: i}
		for rest != "" {
			var opt string
			opt, rest, _ = splitByte(rest, ',')
			switch opt {
			case "exclusive":
				fi.opts.ownership = fieldOwnership(typ, f, fi.opts.ownership, ExclusiveOwner)
			case "shared":
				fi.opts.ownership = fieldOwnership(typ, f, fi.opts.ownership, SharedOwner)
			case "untracked":
				fi.opts.untracked = true
			case "optional":
				fi.opts.optional = true
			case "":
			default:
				if v, ok := strings.CutPrefix(opt, "version="); ok {
					n, err := strconv.ParseUint(v, 10, 32)
					if err != nil {
						panic(fmt.Errorf("%v.%s: invalid scribe version %q", typ, f.Name, v))
					}
					fi.version = uint32(n)
				} else {
					panic(fmt.Errorf("%v.%s: unknown scribe option %q", typ, f.Name, opt))
				}
			}
		}
		layout.fields = append(layout.fields, fi)
	}
	return layout
}

func fieldOwnership(typ reflect.Type, f reflect.StructField, prev, v Ownership) Ownership {
	if prev != noOwner && prev != v {
		panic(usageErrf(ErrConflictingOptions, typ, f.Name, "both %v and %v ownership requested", prev, v))
	}
	return v
}

func (s *Scribe) transcribeStruct(v reflect.Value) Result {
	for _, f := range layoutOf(v.Type()).fields {
		if r := s.transcribe(v.Field(f.index), TagVersion(f.name, f.version), f.opts, false); !r.OK() {
			return r
		}
	}
	return Success
}

func splitByte(s string, sep byte) (string, string, bool) {
	i := strings.IndexByte(s, sep)
	if i < 0 {
		return s, "", false
	} else {
		return s[:i], s[i+1:], true
	}
}
