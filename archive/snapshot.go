package archive

import (
	"fmt"
	"math"

	"github.com/andreyvit/scribe/transcription"
)

// snapshot is the self-describing form of a Transcription that gets encoded
// into a record payload.
type snapshot struct {
	Keys    []snapshotKey    `msgpack:"k" json:"keys"`
	Objects []snapshotObject `msgpack:"o" json:"objects"`
}

type snapshotKey struct {
	Name    string `msgpack:"n" json:"name"`
	Version uint32 `msgpack:"v,omitempty" json:"version,omitempty"`
}

type snapshotObject struct {
	ID       uint32                   `msgpack:"id" json:"id"`
	Type     transcription.ObjectType `msgpack:"t" json:"type"`
	Int      int64                    `msgpack:"i,omitempty" json:"int,omitempty"`
	Uint     uint64                   `msgpack:"u,omitempty" json:"uint,omitempty"`
	Float    float64                  `msgpack:"f,omitempty" json:"float,omitempty"`
	Str      string                   `msgpack:"s,omitempty" json:"str,omitempty"`
	Children []snapshotChild          `msgpack:"c,omitempty" json:"children,omitempty"`
}

type snapshotChild struct {
	Key   uint32 `msgpack:"k" json:"key"`
	Index int    `msgpack:"x,omitempty" json:"index,omitempty"`
	ID    uint32 `msgpack:"id" json:"id"`
}

func makeSnapshot(tr *transcription.Transcription) *snapshot {
	snap := &snapshot{
		Keys:    make([]snapshotKey, tr.ObjectKeyCount()),
		Objects: make([]snapshotObject, 0, tr.Len()),
	}
	for i := range snap.Keys {
		name, ver := tr.ObjectKeyInfo(transcription.ObjectKey(i))
		snap.Keys[i] = snapshotKey{name, ver}
	}
	for id := range tr.IDs() {
		o := snapshotObject{ID: uint32(id), Type: tr.ObjectType(id)}
		switch o.Type {
		case transcription.SignedInteger:
			o.Int = tr.GetSignedInteger(id)
		case transcription.UnsignedInteger:
			o.Uint = tr.GetUnsignedInteger(id)
		case transcription.Float:
			o.Float = float64(tr.GetFloat(id))
		case transcription.Double:
			o.Float = tr.GetDouble(id)
		case transcription.String:
			o.Str = tr.GetString(id)
		case transcription.Composite:
			for slot, child := range tr.GetCompositeObject(id).Children() {
				o.Children = append(o.Children, snapshotChild{uint32(slot.Key), slot.Index, uint32(child)})
			}
		}
		snap.Objects = append(snap.Objects, o)
	}
	return snap
}

// checkDensity bounds the memory a snapshot can expand into. Object ids may
// not run past the object count, and array slots, holes included, may not
// outnumber the objects and children listed.
func (snap *snapshot) checkDensity() error {
	limit := uint64(len(snap.Objects)) + uint64(transcription.FirstObjectID)
	budget := len(snap.Objects)
	for _, o := range snap.Objects {
		budget += len(o.Children)
	}

	var slots int
	lens := make(map[uint32]int)
	for _, o := range snap.Objects {
		if uint64(o.ID) >= limit {
			return fmt.Errorf("object id %d out of range for %d objects", o.ID, len(snap.Objects))
		}
		clear(lens)
		for _, c := range o.Children {
			if c.Index < 0 || c.Index >= budget {
				return fmt.Errorf("object %d: invalid array index %d", o.ID, c.Index)
			}
			lens[c.Key] = max(lens[c.Key], c.Index+1)
		}
		for _, n := range lens {
			slots += n
		}
		if slots > budget {
			return fmt.Errorf("object %d: array holes exceed the record size", o.ID)
		}
	}
	return nil
}

// transcription rebuilds a Transcription, validating everything the
// Transcription itself would panic on.
func (snap *snapshot) transcription(data []byte) (*transcription.Transcription, error) {
	if err := snap.checkDensity(); err != nil {
		return nil, dataErrf(data, -1, nil, "%v", err)
	}
	tr := transcription.New()
	for i, k := range snap.Keys {
		if _, dup := tr.ObjectKey(k.Name, k.Version); dup {
			return nil, dataErrf(data, -1, nil, "duplicate object key %q@%d", k.Name, k.Version)
		}
		if key := tr.GetOrCreateObjectKey(k.Name, k.Version); int(key) != i {
			panic("unreachable")
		}
	}

	for _, o := range snap.Objects {
		id := transcription.ObjectID(o.ID)
		if id == transcription.NullObjectID || o.ID == math.MaxUint32 {
			return nil, dataErrf(data, -1, nil, "invalid object id %d", o.ID)
		}
		if tr.Has(id) {
			return nil, dataErrf(data, -1, nil, "duplicate object id %d", o.ID)
		}
		if o.Type != transcription.Composite && len(o.Children) > 0 {
			return nil, dataErrf(data, -1, nil, "object %d: %v with children", o.ID, o.Type)
		}
		switch o.Type {
		case transcription.SignedInteger:
			tr.AddSignedInteger(id, o.Int)
		case transcription.UnsignedInteger:
			tr.AddUnsignedInteger(id, o.Uint)
		case transcription.Float:
			tr.AddFloat(id, float32(o.Float))
		case transcription.Double:
			tr.AddDouble(id, o.Float)
		case transcription.String:
			tr.AddString(id, o.Str)
		case transcription.Composite:
			comp := tr.AddCompositeObject(id)
			for _, c := range o.Children {
				if int(c.Key) >= len(snap.Keys) {
					return nil, dataErrf(data, -1, nil, "object %d: unknown object key %d", o.ID, c.Key)
				}
				if c.ID == math.MaxUint32 {
					return nil, dataErrf(data, -1, nil, "object %d: invalid child id", o.ID)
				}
				comp.SetArrayChild(transcription.ObjectKey(c.Key), transcription.ObjectID(c.ID), c.Index)
			}
		default:
			return nil, dataErrf(data, -1, nil, "object %d: unknown object type %d", o.ID, o.Type)
		}
	}
	return tr, nil
}
