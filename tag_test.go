package scribe

import "testing"

func TestObjectTag_string(t *testing.T) {
	eq(t, Tag("plates").SequenceItem(3).Tag("name").String(), "plates.item[3].name")
	eq(t, TagVersion("name", 2).String(), "name@2")
	eq(t, Tag("m").MapItemValue(1).String(), "m.item_value[1]")
	eq(t, Tag("xs").SequenceSize().String(), "xs.size")
	eq(t, ObjectTag{}.String(), "<empty>")
}

func TestObjectTag_prefixes_are_not_shared(t *testing.T) {
	base := Tag("a").Tag("b")
	x := base.Tag("x")
	y := base.Tag("y")
	eq(t, x.String(), "a.b.x")
	eq(t, y.String(), "a.b.y")
	eq(t, base.String(), "a.b")
	eq(t, base.Len(), 2)
}

func TestObjectTag_sections(t *testing.T) {
	secs := Tag("plates").SequenceItem(3).Sections()
	eq(t, len(secs), 2)
	eq(t, secs[0].Type, TagSection)
	eq(t, secs[1].Type, ArrayIndexSection)
	eq(t, secs[1].Name, SequenceItemName)
	eq(t, secs[1].Index, 3)

	last := Tag("xs").SequenceSize().Last()
	eq(t, last.Type, ArraySizeSection)
	eq(t, last.Name, ArraySizeName)
}

func TestObjectTag_with_version(t *testing.T) {
	tag := Tag("a").Tag("b")
	v := tag.WithVersion(3)
	eq(t, v.String(), "a.b@3")
	eq(t, tag.String(), "a.b")
}

func TestObjectTag_empty_panics(t *testing.T) {
	expectPanic(t, ErrEmptyObjectTag, func() { ObjectTag{}.Sections() })
	expectPanic(t, ErrEmptyObjectTag, func() { ObjectTag{}.WithVersion(1) })
	eq(t, ObjectTag{}.IsEmpty(), true)
}

func TestObjectTag_nothing_after_size(t *testing.T) {
	expectPanic(t, ErrArraySizeNotLast, func() { Tag("xs").SequenceSize().Tag("oops") })
	expectPanic(t, ErrArraySizeNotLast, func() { Tag("xs").SequenceSize().SequenceItem(0) })
}

func TestObjectTag_negative_index_panics(t *testing.T) {
	expectPanic(t, ErrInvalidArrayIndex, func() { Tag("xs").SequenceItem(-1) })
	expectPanic(t, ErrInvalidArrayIndex, func() { Tag("m").MapItemKey(-3) })
}
