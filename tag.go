package scribe

import (
	"slices"
	"strconv"
	"strings"
)

type SectionType byte

const (
	TagSection SectionType = iota
	ArrayIndexSection
	ArraySizeSection
)

// Names used by the sequence and mapping protocols. Generic containers and
// hand-written loops that use the same names are interchangeable in archives.
const (
	SequenceItemName = "item"
	MapItemKeyName   = "item_key"
	MapItemValueName = "item_value"
	ArraySizeName    = "size"
)

// Section is one step of an ObjectTag path.
type Section struct {
	Type    SectionType
	Name    string
	Version uint32
	Index   int // only for ArrayIndexSection
}

func (sec Section) String() string {
	var buf strings.Builder
	sec.appendTo(&buf)
	return buf.String()
}

func (sec Section) appendTo(buf *strings.Builder) {
	buf.WriteString(sec.Name)
	if sec.Version != 0 {
		buf.WriteByte('@')
		buf.WriteString(strconv.FormatUint(uint64(sec.Version), 10))
	}
	if sec.Type == ArrayIndexSection {
		buf.WriteByte('[')
		buf.WriteString(strconv.Itoa(sec.Index))
		buf.WriteByte(']')
	}
}

// ObjectTag addresses a child object relative to the object currently being
// transcribed, e.g. Tag("plates").SequenceItem(3).Tag("name").
//
// ObjectTags are immutable: every method returns a new tag, so prefixes can be
// shared and extended freely. The zero ObjectTag is an empty prefix; it can be
// extended but not transcribed.
type ObjectTag struct {
	sections []Section
}

func Tag(name string) ObjectTag {
	return ObjectTag{}.TagVersion(name, 0)
}

func TagVersion(name string, version uint32) ObjectTag {
	return ObjectTag{}.TagVersion(name, version)
}

func (t ObjectTag) extend(sec Section) ObjectTag {
	if n := len(t.sections); n > 0 && t.sections[n-1].Type == ArraySizeSection {
		panic(usageErrf(ErrArraySizeNotLast, nil, t.String(), "cannot append %s", sec.String()))
	}
	return ObjectTag{append(slices.Clip(t.sections), sec)}
}

func (t ObjectTag) Tag(name string) ObjectTag {
	return t.TagVersion(name, 0)
}

func (t ObjectTag) TagVersion(name string, version uint32) ObjectTag {
	return t.extend(Section{Type: TagSection, Name: name, Version: version})
}

// SequenceItem addresses the i'th item of a sequence (the "item" array).
func (t ObjectTag) SequenceItem(i int) ObjectTag {
	return t.ArrayItem(i, SequenceItemName, 0)
}

func (t ObjectTag) MapItemKey(i int) ObjectTag {
	return t.ArrayItem(i, MapItemKeyName, 0)
}

func (t ObjectTag) MapItemValue(i int) ObjectTag {
	return t.ArrayItem(i, MapItemValueName, 0)
}

func (t ObjectTag) ArrayItem(i int, name string, version uint32) ObjectTag {
	if i < 0 {
		panic(usageErrf(ErrInvalidArrayIndex, nil, t.String(), "negative array index %d", i))
	}
	return t.extend(Section{Type: ArrayIndexSection, Name: name, Version: version, Index: i})
}

// SequenceSize addresses the length of a sequence. Nothing can be appended
// after it.
func (t ObjectTag) SequenceSize() ObjectTag {
	return t.ArraySize(ArraySizeName, 0)
}

func (t ObjectTag) MapSize() ObjectTag {
	return t.ArraySize(ArraySizeName, 0)
}

func (t ObjectTag) ArraySize(name string, version uint32) ObjectTag {
	return t.extend(Section{Type: ArraySizeSection, Name: name, Version: version})
}

// WithVersion returns a copy of t with the version of its last section
// replaced.
func (t ObjectTag) WithVersion(version uint32) ObjectTag {
	n := len(t.sections)
	if n == 0 {
		panic(usageErrf(ErrEmptyObjectTag, nil, "", "cannot set version %d", version))
	}
	sections := slices.Clone(t.sections)
	sections[n-1].Version = version
	return ObjectTag{sections}
}

func (t ObjectTag) IsEmpty() bool {
	return len(t.sections) == 0
}

func (t ObjectTag) Len() int {
	return len(t.sections)
}

// Sections returns the path. An empty tag must never be transcribed, so this
// panics with ErrEmptyObjectTag if t is empty.
func (t ObjectTag) Sections() []Section {
	if len(t.sections) == 0 {
		panic(usageErrf(ErrEmptyObjectTag, nil, "", "empty object tag"))
	}
	return slices.Clone(t.sections)
}

func (t ObjectTag) Last() Section {
	if len(t.sections) == 0 {
		panic(usageErrf(ErrEmptyObjectTag, nil, "", "empty object tag"))
	}
	return t.sections[len(t.sections)-1]
}

func (t ObjectTag) String() string {
	if len(t.sections) == 0 {
		return "<empty>"
	}
	var buf strings.Builder
	for i, sec := range t.sections {
		if i > 0 {
			buf.WriteByte('.')
		}
		sec.appendTo(&buf)
	}
	return buf.String()
}
