package scribe

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/andreyvit/scribe/transcription"
)

type plate struct {
	ID   int64  `scribe:"plate_id"`
	Name string `scribe:"name"`
}

type feature interface {
	FeatureName() string
}

type isochron struct {
	Age   float64 `scribe:"age"`
	Plate *plate  `scribe:"plate"`
}

func (iso *isochron) FeatureName() string { return "isochron" }

type coastline struct {
	Points int `scribe:"points"`
}

func (c coastline) FeatureName() string { return "coastline" }

type ridge struct {
	Name     string    `scribe:"name"`
	Plates   []*plate  `scribe:"plates,shared"`
	Left     *plate    `scribe:"left,shared"`
	Feature  feature   `scribe:"feature,exclusive"`
	Outline  feature   `scribe:"outline"`
	Spreads  bool      `scribe:"spreads"`
	Surveyed time.Time `scribe:"surveyed"`
	scratch  int
}

func newTestRegistry() *Registry {
	reg := NewRegistry()
	RegisterClassType[isochron](reg, "Isochron")
	RegisterClassType[coastline](reg, "Coastline")
	return reg
}

func TestScribe_ridge_round_trip(t *testing.T) {
	reg := newTestRegistry()
	p701 := &plate{ID: 701, Name: "North America"}
	p702 := &plate{ID: 702, Name: "Pacific"}
	orig := ridge{
		Name:     "Ridge-12",
		Plates:   []*plate{p701, p702},
		Left:     p701,
		Feature:  &isochron{Age: 10.5, Plate: p702},
		Outline:  coastline{Points: 3},
		Spreads:  true,
		Surveyed: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		scratch:  42,
	}

	l := roundTrip(t, reg, func(s *Scribe) {
		success(t, s, Save(s, &orig, Tag("ridge")))
		if !strings.Contains(s.Transcription().Dump(), "plate_id = ") {
			t.Errorf("** dump lacks plate_id:\n%s", s.Transcription().Dump())
		}
	})
	ref := Load[ridge](l, Tag("ridge"))
	success(t, l, ref.Result())
	ensure(l.Finish())

	got := ref.Ptr()
	eq(t, got.Name, "Ridge-12")
	eq(t, len(got.Plates), 2)
	eq(t, got.Plates[0].ID, 701)
	eq(t, got.Plates[1].Name, "Pacific")
	eq(t, got.Left, got.Plates[0])
	eq(t, got.Spreads, true)
	eq(t, got.Surveyed.Equal(orig.Surveyed), true)
	eq(t, got.scratch, 0)

	iso, ok := got.Feature.(*isochron)
	eq(t, ok, true)
	eq(t, iso.Age, 10.5)
	eq(t, iso.Plate, got.Plates[1])
	eq(t, got.Outline, feature(coastline{Points: 3}))
}

func TestScribe_forward_reference(t *testing.T) {
	type catalog struct {
		Current *plate  `scribe:"current"`
		All     []plate `scribe:"all"`
	}
	orig := catalog{All: []plate{{ID: 1}, {ID: 2}}}
	orig.Current = &orig.All[1]

	l := roundTrip(t, nil, func(s *Scribe) {
		success(t, s, Transcribe(s, &orig, Tag("catalog")))
	})
	var got catalog
	success(t, l, Transcribe(l, &got, Tag("catalog")))
	ensure(l.Finish())
	eq(t, got.Current, &got.All[1])
	eq(t, got.Current.ID, 2)
}

func TestScribe_cycle(t *testing.T) {
	type node struct {
		Name string `scribe:"name"`
		Next *node  `scribe:"next,shared"`
	}
	a := &node{Name: "a"}
	b := &node{Name: "b", Next: a}
	a.Next = b

	l := roundTrip(t, nil, func(s *Scribe) {
		success(t, s, Transcribe(s, &a, Tag("head"), SharedOwner))
	})
	var head *node
	success(t, l, Transcribe(l, &head, Tag("head"), SharedOwner))
	ensure(l.Finish())
	eq(t, head.Name, "a")
	eq(t, head.Next.Name, "b")
	eq(t, head.Next.Next, head)
}

func TestScribe_relocation(t *testing.T) {
	type node struct {
		Name string `scribe:"name"`
		Next *node  `scribe:"next"`
	}
	a := node{Name: "a"}
	b := node{Name: "b", Next: &a}
	reg := NewRegistry()

	save := func(s *Scribe) {
		success(t, s, Save(s, &a, Tag("a")))
		success(t, s, Save(s, &b, Tag("b")))
	}

	t.Run("referenced first", func(t *testing.T) {
		l := roundTrip(t, reg, save)
		var nodes [2]node
		Load[node](l, Tag("a")).MoveTo(&nodes[0])
		Load[node](l, Tag("b")).MoveTo(&nodes[1])
		ensure(l.Finish())
		eq(t, nodes[1].Next, &nodes[0])
	})

	t.Run("referencing first", func(t *testing.T) {
		l := roundTrip(t, reg, save)
		var nodes [2]node
		Load[node](l, Tag("b")).MoveTo(&nodes[1])
		Load[node](l, Tag("a")).MoveTo(&nodes[0])
		ensure(l.Finish())
		eq(t, nodes[1].Next, &nodes[0])
		eq(t, nodes[1].Next.Name, "a")
	})
}

func TestScribe_relocation_through_interface(t *testing.T) {
	type holder struct {
		Shape shape `scribe:"shape"`
	}
	reg := NewRegistry()
	RegisterClassType[square](reg, "Square")

	l := roundTrip(t, reg, func(s *Scribe) {
		sq := square{Side: 3}
		h := holder{Shape: &sq}
		success(t, s, Save(s, &sq, Tag("sq")))
		success(t, s, Save(s, &h, Tag("h")))
	})
	sqRef := Load[square](l, Tag("sq"))
	var h holder
	Load[holder](l, Tag("h")).MoveTo(&h)
	var final square
	sqRef.MoveTo(&final)
	ensure(l.Finish())

	got, ok := h.Shape.(*square)
	if !ok {
		t.Fatalf("** got %T, wanted *square", h.Shape)
	}
	eq(t, got, &final)
	eq(t, h.Shape.Area(), 9.0)
}

func TestScribe_untracked_pointer_before_object(t *testing.T) {
	x := plate{ID: 5}

	t.Run("save", func(t *testing.T) {
		s := NewSaver(nil, testOptions(t))
		p := &x
		expectPanic(t, ErrUntrackedPointerBeforeReferencedObject, func() { Transcribe(s, &p, Tag("p"), Untracked) })
	})

	t.Run("load", func(t *testing.T) {
		l := roundTrip(t, nil, func(s *Scribe) {
			p := &x
			success(t, s, Transcribe(s, &p, Tag("p")))
			success(t, s, Transcribe(s, &x, Tag("x")))
		})
		var q *plate
		expectPanic(t, ErrUntrackedPointerBeforeReferencedObject, func() { Transcribe(l, &q, Tag("p"), DontTrack) })
	})

	t.Run("untracked after object", func(t *testing.T) {
		l := roundTrip(t, nil, func(s *Scribe) {
			p := &x
			success(t, s, Transcribe(s, &x, Tag("x")))
			success(t, s, Transcribe(s, &p, Tag("p"), Untracked))
		})
		var y plate
		var q *plate
		success(t, l, Transcribe(l, &y, Tag("x")))
		success(t, l, Transcribe(l, &q, Tag("p"), Untracked))
		eq(t, q, &y)
	})
}

func TestScribe_ownership_violations(t *testing.T) {
	x := plate{ID: 1}
	p1, p2 := &x, &x

	s := NewSaver(nil, testOptions(t))
	success(t, s, Transcribe(s, &p1, Tag("a"), ExclusiveOwner))
	expectPanic(t, ErrOwnershipViolation, func() { Transcribe(s, &p2, Tag("b"), ExclusiveOwner) })
	expectPanic(t, ErrOwnershipViolation, func() { Transcribe(s, &p2, Tag("c"), SharedOwner) })

	y := plate{ID: 2}
	p3 := &y
	s = NewSaver(nil, testOptions(t))
	success(t, s, Transcribe(s, &y, Tag("y")))
	expectPanic(t, ErrOwnershipViolation, func() { Transcribe(s, &p3, Tag("p"), SharedOwner) })

	expectPanic(t, ErrConflictingOptions, func() { Transcribe(s, &p3, Tag("q"), ExclusiveOwner, SharedOwner) })
}

func TestScribe_shared_owners(t *testing.T) {
	x := &plate{ID: 9}
	byName := map[string]*plate{"x": x}
	l := roundTrip(t, nil, func(s *Scribe) {
		success(t, s, Transcribe(s, &x, Tag("x"), SharedOwner))
		success(t, s, Transcribe(s, &byName, Tag("by_name"), SharedOwner))
	})
	var y *plate
	var m map[string]*plate
	success(t, l, Transcribe(l, &y, Tag("x"), SharedOwner))
	success(t, l, Transcribe(l, &m, Tag("by_name"), SharedOwner))
	ensure(l.Finish())
	eq(t, m["x"], y)
	eq(t, y.ID, 9)
}

func TestScribe_incomplete_save(t *testing.T) {
	x := plate{ID: 1}
	p := &x
	s := NewSaver(nil, testOptions(t))
	success(t, s, Transcribe(s, &p, Tag("p")))
	err := s.Finish()
	if !errors.Is(err, transcription.ErrIncomplete) {
		t.Fatalf("** got %v, wanted %v", err, transcription.ErrIncomplete)
	}
	eq(t, s.Failure().Result, Incomplete)

	l := loader(t, nil, s.Transcription())
	var q *plate
	success(t, l, Transcribe(l, &q, Tag("p")))
	if err := l.Finish(); !errors.Is(err, ErrUnresolvedReferences) {
		t.Fatalf("** got %v, wanted %v", err, ErrUnresolvedReferences)
	}
}

func TestScribe_null_pointers(t *testing.T) {
	type holder struct {
		P *plate  `scribe:"p,exclusive"`
		F feature `scribe:"f"`
	}
	l := roundTrip(t, nil, func(s *Scribe) {
		var h holder
		success(t, s, Transcribe(s, &h, Tag("h")))
	})
	h := holder{P: &plate{}, F: coastline{}}
	success(t, l, Transcribe(l, &h, Tag("h")))
	eq(t, h.P, nil)
	eq(t, h.F, nil)
}

func TestScribe_backward_compatibility(t *testing.T) {
	type v1 struct {
		Name string `scribe:"name"`
	}
	type v2 struct {
		Name string `scribe:"name"`
		Note string `scribe:"note,optional"`
	}
	type v3 struct {
		Name string `scribe:"name"`
		Note string `scribe:"note"`
	}
	l := roundTrip(t, nil, func(s *Scribe) {
		old := v1{Name: "old"}
		success(t, s, Transcribe(s, &old, Tag("obj")))
	})

	got2 := v2{Note: "default"}
	success(t, l, Transcribe(l, &got2, Tag("obj")))
	eq(t, got2.Name, "old")
	eq(t, got2.Note, "default")

	var got3 v3
	eq(t, Transcribe(l, &got3, Tag("obj")), Incompatible)
	eq(t, l.Failure().Path, "obj/note")

	var missing v1
	eq(t, Transcribe(l, &missing, Tag("other")), Incompatible)
	success(t, l, Transcribe(l, &missing, Tag("other"), Optional))
}

type renamedName struct {
	Name string
}

// Transcribe reads the name from either of its historical tags.
func (r *renamedName) Transcribe(s *Scribe, constructed bool) Result {
	if s.IsLoading() && !IsInTranscription(s, TagVersion("name", 2)) {
		return Transcribe(s, &r.Name, Tag("name"))
	}
	return Transcribe(s, &r.Name, Tag("name"), Version(2))
}

func TestScribe_versioned_tags(t *testing.T) {
	l := roundTrip(t, nil, func(s *Scribe) {
		oldName, newName := "v1", renamedName{"v2"}
		success(t, s, Transcribe(s, &oldName, Tag("a").Tag("name")))
		success(t, s, Transcribe(s, &newName, Tag("b")))
	})
	var a, b renamedName
	success(t, l, Transcribe(l, &a, Tag("a")))
	success(t, l, Transcribe(l, &b, Tag("b")))
	eq(t, a.Name, "v1")
	eq(t, b.Name, "v2")
}

type handList struct {
	items []string
}

func (h *handList) Transcribe(s *Scribe, constructed bool) Result {
	n := len(h.items)
	if r := Transcribe(s, &n, ObjectTag{}.SequenceSize()); !r.OK() {
		return r
	}
	if s.IsLoading() {
		h.items = make([]string, n)
	}
	for i := range h.items {
		if r := Transcribe(s, &h.items[i], ObjectTag{}.SequenceItem(i)); !r.OK() {
			return r
		}
	}
	return Success
}

func TestScribe_sequence_protocol_is_shared(t *testing.T) {
	l := roundTrip(t, nil, func(s *Scribe) {
		generic := []string{"a", "b", "c"}
		hand := handList{items: []string{"x", "y"}}
		success(t, s, Transcribe(s, &generic, Tag("generic")))
		success(t, s, Transcribe(s, &hand, Tag("hand")))
	})

	var hand handList
	success(t, l, Transcribe(l, &hand, Tag("generic")))
	deepEqual(t, hand.items, []string{"a", "b", "c"})

	var generic []string
	success(t, l, Transcribe(l, &generic, Tag("hand")))
	deepEqual(t, generic, []string{"x", "y"})

	var arr [2]string
	success(t, l, Transcribe(l, &arr, Tag("hand")))
	eq(t, arr, [2]string{"x", "y"})
	var wrong [3]string
	eq(t, Transcribe(l, &wrong, Tag("hand")), Incompatible)
}

type sizedList struct {
	size  int
	items []int
}

func (h *sizedList) Transcribe(s *Scribe, constructed bool) Result {
	Transcribe(s, &h.size, ObjectTag{}.SequenceSize())
	for i := range h.items {
		Transcribe(s, &h.items[i], ObjectTag{}.SequenceItem(i))
	}
	return Success
}

func TestScribe_array_size_consistency(t *testing.T) {
	save := func(s *Scribe) {
		short := sizedList{size: 2, items: []int{1, 2, 3}}
		long := sizedList{size: 5, items: []int{1, 2, 3}}
		success(t, s, Transcribe(s, &short, Tag("short")))
		success(t, s, Transcribe(s, &long, Tag("long")))
	}

	l := roundTrip(t, nil, save)
	var xs []int
	success(t, l, Transcribe(l, &xs, Tag("short")))
	deepEqual(t, xs, []int{1, 2})
	eq(t, Transcribe(l, &xs, Tag("long")), Incompatible)

	s := NewSaver(nil, Options{})
	save(s)
	ensure(s.Finish())
	strict := NewLoader(nil, s.Transcription(), Options{StrictArrays: true})
	eq(t, Transcribe(strict, &xs, Tag("short")), Incompatible)
}

func TestScribe_maps(t *testing.T) {
	orig := map[string]int{"b": 2, "a": 1, "c": 3}
	empty := map[int]bool{}
	l := roundTrip(t, nil, func(s *Scribe) {
		success(t, s, Transcribe(s, &orig, Tag("m")))
		success(t, s, Transcribe(s, &empty, Tag("empty")))
	})
	var got map[string]int
	success(t, l, Transcribe(l, &got, Tag("m")))
	deepEqual(t, got, orig)
	var gotEmpty map[int]bool
	success(t, l, Transcribe(l, &gotEmpty, Tag("empty")))
	deepEqual(t, gotEmpty, empty)

	var keys []string
	var id ObjectID
	l.Context().TranscribeObjectID(&id, Tag("m"))
	l.Context().PushTranscribedObject(id)
	for i := range 3 {
		var k string
		success(t, l, Transcribe(l, &k, ObjectTag{}.MapItemKey(i)))
		keys = append(keys, k)
	}
	l.Context().PopTranscribedObject()
	deepEqual(t, keys, []string{"a", "b", "c"})
}

func TestScribe_unknown_type(t *testing.T) {
	saveReg := newTestRegistry()
	var f feature = coastline{Points: 1}
	s := NewSaver(saveReg, testOptions(t))
	success(t, s, Transcribe(s, &f, Tag("f")))
	ensure(s.Finish())

	l := NewLoader(NewRegistry(), s.Transcription(), testOptions(t))
	var got feature
	eq(t, Transcribe(l, &got, Tag("f")), UnknownType)
	eq(t, got, nil)

	s = NewSaver(NewRegistry(), testOptions(t))
	expectPanic(t, ErrUnregisteredType, func() { Transcribe(s, &f, Tag("f")) })
}

type account struct {
	ID          string
	Balance     int
	constructed bool
}

func (a *account) TranscribeConstruct(s *Scribe) Result {
	return Transcribe(s, &a.ID, Tag("id"))
}

func (a *account) Transcribe(s *Scribe, constructed bool) Result {
	if !constructed {
		if r := Transcribe(s, &a.ID, Tag("id")); !r.OK() {
			return r
		}
	}
	a.constructed = constructed
	return Transcribe(s, &a.Balance, Tag("balance"))
}

func TestScribe_construct_on_load(t *testing.T) {
	orig := account{ID: "acc-1", Balance: 100}
	l := roundTrip(t, nil, func(s *Scribe) {
		success(t, s, Save(s, &orig, Tag("acc")))
	})

	ref := Load[account](l, Tag("acc"))
	eq(t, ref.IsValid(), true)
	got := ref.Get()
	eq(t, got.ID, "acc-1")
	eq(t, got.Balance, 100)
	eq(t, got.constructed, true)

	var inPlace account
	success(t, l, Transcribe(l, &inPlace, Tag("acc2"), Optional))
	success(t, l, Transcribe(l, &inPlace, Tag("acc")))
	eq(t, inPlace.ID, "acc-1")
	eq(t, inPlace.constructed, false)

	bad := Load[account](l, Tag("nope"))
	eq(t, bad.IsValid(), false)
	eq(t, bad.Result(), Incompatible)
	expectPanic(t, ErrInvalidLoadRef, func() { bad.Get() })
}

type flatRecord struct {
	baseRecord
	Extra int
}

func (f *flatRecord) Transcribe(s *Scribe, constructed bool) Result {
	if r := Transcribe(s, &f.Name, Tag("name")); !r.OK() {
		return r
	}
	return Transcribe(s, &f.Extra, Tag("extra"))
}

func TestScribe_pointer_to_embedded_base(t *testing.T) {
	reg := NewRegistry()
	RegisterInheritance[flatRecord, baseRecord](reg)

	f := &flatRecord{baseRecord: baseRecord{Name: "f"}, Extra: 3}
	bp := &f.baseRecord
	l := roundTrip(t, reg, func(s *Scribe) {
		success(t, s, Transcribe(s, &f, Tag("f"), ExclusiveOwner))
		success(t, s, Transcribe(s, &bp, Tag("bp")))
	})
	var gf *flatRecord
	var gbp *baseRecord
	success(t, l, Transcribe(l, &gbp, Tag("bp")))
	success(t, l, Transcribe(l, &gf, Tag("f"), ExclusiveOwner))
	ensure(l.Finish())
	eq(t, gbp, &gf.baseRecord)
	eq(t, gbp.Name, "f")

	// without the registration the base is a separate, unsaved object
	s := NewSaver(NewRegistry(), testOptions(t))
	success(t, s, Transcribe(s, &f, Tag("f"), ExclusiveOwner))
	success(t, s, Transcribe(s, &bp, Tag("bp")))
	if err := s.Finish(); !errors.Is(err, transcription.ErrIncomplete) {
		t.Fatalf("** got %v, wanted %v", err, transcription.ErrIncomplete)
	}
}

func TestScribe_shared_pointer_to_embedded_base(t *testing.T) {
	reg := NewRegistry()
	RegisterInheritance[flatRecord, baseRecord](reg)

	d := &flatRecord{baseRecord: baseRecord{Name: "d"}, Extra: 7}
	b := &d.baseRecord
	s := NewSaver(reg, testOptions(t))
	success(t, s, Transcribe(s, &d, Tag("d"), SharedOwner))
	success(t, s, Transcribe(s, &b, Tag("b"), SharedOwner))
	ensure(s.Finish())

	tr := s.Transcription()
	root := tr.GetCompositeObject(RootObjectID)
	dkey, _ := tr.ObjectKey("d", 0)
	bkey, _ := tr.ObjectKey("b", 0)
	eq(t, root.Child(bkey), root.Child(dkey))

	l := loader(t, reg, tr)
	var gd *flatRecord
	var gb *baseRecord
	success(t, l, Transcribe(l, &gd, Tag("d"), SharedOwner))
	success(t, l, Transcribe(l, &gb, Tag("b"), SharedOwner))
	ensure(l.Finish())
	eq(t, gb, &gd.baseRecord)
	eq(t, gb.Name, "d")
	eq(t, gd.Extra, 7)

	// the base cannot become an object of its own before the derived one
	s = NewSaver(reg, testOptions(t))
	success(t, s, Transcribe(s, &b, Tag("b"), SharedOwner))
	expectPanic(t, ErrOwnershipViolation, func() { Transcribe(s, &d, Tag("d"), SharedOwner) })
}

func TestScribe_value_sharing_id_with_owned_object(t *testing.T) {
	// a malformed transcription where "v" names the object owned through "p"
	aliased := func(t *testing.T) *transcription.Transcription {
		x := &plate{ID: 4, Name: "x"}
		s := NewSaver(nil, testOptions(t))
		success(t, s, Transcribe(s, &x, Tag("p"), SharedOwner))
		ensure(s.Finish())
		tr := s.Transcription()
		root := tr.GetCompositeObject(RootObjectID)
		pkey, _ := tr.ObjectKey("p", 0)
		root.SetChild(tr.GetOrCreateObjectKey("v", 0), root.Child(pkey))
		return tr
	}

	t.Run("pointer first", func(t *testing.T) {
		l := loader(t, nil, aliased(t))
		var p *plate
		var v plate
		success(t, l, Transcribe(l, &p, Tag("p"), SharedOwner))
		eq(t, Transcribe(l, &v, Tag("v")), Incompatible)
		eq(t, l.Failure().Result, Incompatible)
	})

	t.Run("value first", func(t *testing.T) {
		l := loader(t, nil, aliased(t))
		var p *plate
		var v plate
		success(t, l, Transcribe(l, &v, Tag("v")))
		eq(t, Transcribe(l, &p, Tag("p"), SharedOwner), Incompatible)
	})
}

func TestScribe_usage_errors(t *testing.T) {
	s := NewSaver(nil, Options{})
	ch := make(chan int)
	expectPanic(t, ErrUnsupportedType, func() { Transcribe(s, &ch, Tag("ch")) })

	var n int
	expectPanic(t, ErrEmptyObjectTag, func() { Transcribe(s, &n, ObjectTag{}) })
	expectPanic(t, ErrWrongMode, func() { Load[int](s, Tag("n")) })

	defer func() {
		e := recover()
		ue, ok := e.(*UsageError)
		if !ok {
			t.Fatalf("** got %v, wanted *UsageError", e)
		}
		if !strings.Contains(ue.Location, "scribe_test.go") {
			t.Errorf("** location %q", ue.Location)
		}
		eq(t, errors.Is(ue, ErrWrongMode), true)
	}()
	ensure(s.Finish())
	Transcribe(s, &n, Tag("n"))
}
