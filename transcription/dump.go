package transcription

import (
	"strconv"
	"strings"
)

// Dump renders the tree reachable from RootObjectID, one entry per line.
// Objects reachable via several paths are printed once and referenced as
// "@id" afterwards.
func (tr *Transcription) Dump() string {
	var buf strings.Builder
	seen := make(map[ObjectID]bool)
	tr.dump(&buf, seen, RootObjectID, "", "")
	return buf.String()
}

// DumpObject is like Dump, but starts at the given object.
func (tr *Transcription) DumpObject(id ObjectID) string {
	var buf strings.Builder
	tr.dump(&buf, make(map[ObjectID]bool), id, "", "")
	return buf.String()
}

func (tr *Transcription) dump(buf *strings.Builder, seen map[ObjectID]bool, id ObjectID, indent, label string) {
	buf.WriteString(indent)
	if label != "" {
		buf.WriteString(label)
		buf.WriteString(" = ")
	}
	buf.WriteString("#")
	buf.WriteString(strconv.FormatUint(uint64(id), 10))
	buf.WriteByte(' ')

	if id == NullObjectID {
		buf.WriteString("null\n")
		return
	}
	if seen[id] {
		buf.WriteString("@\n")
		return
	}
	seen[id] = true

	switch typ := tr.ObjectType(id); typ {
	case Unknown:
		buf.WriteString("<missing>\n")
	case SignedInteger:
		buf.WriteString(strconv.FormatInt(tr.GetSignedInteger(id), 10))
		buf.WriteByte('\n')
	case UnsignedInteger:
		buf.WriteString(strconv.FormatUint(tr.GetUnsignedInteger(id), 10))
		buf.WriteString("u\n")
	case Float:
		buf.WriteString(strconv.FormatFloat(float64(tr.GetFloat(id)), 'g', -1, 32))
		buf.WriteString("f\n")
	case Double:
		buf.WriteString(strconv.FormatFloat(tr.GetDouble(id), 'g', -1, 64))
		buf.WriteByte('\n')
	case String:
		buf.WriteString(strconv.Quote(tr.GetString(id)))
		buf.WriteByte('\n')
	case Composite:
		comp := tr.GetCompositeObject(id)
		if comp.IsEmpty() {
			buf.WriteString("{}\n")
			return
		}
		buf.WriteString("{\n")
		for slot, child := range comp.Children() {
			tr.dump(buf, seen, child, indent+indentStep, tr.slotLabel(comp, slot))
		}
		buf.WriteString(indent)
		buf.WriteString("}\n")
	}
}

func (tr *Transcription) slotLabel(comp *CompositeObject, slot Slot) string {
	name, ver := tr.ObjectKeyInfo(slot.Key)
	s := name
	if ver != 0 {
		s += "@" + strconv.FormatUint(uint64(ver), 10)
	}
	if comp.NumChildrenWithKey(slot.Key) > 1 || slot.Index > 0 {
		s += "[" + strconv.Itoa(slot.Index) + "]"
	}
	return s
}

const indentStep = "  "
