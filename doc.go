/*
Package scribe saves and loads arbitrary object graphs through a generic,
versioned intermediate form called a transcription.

Client code describes each object once, with Transcribe calls that work in both
directions:

	func (r *Ridge) Transcribe(s *scribe.Scribe, constructed bool) scribe.Result {
		if r := scribe.Transcribe(s, &r.Name, scribe.Tag("name")); !r.OK() {
			return r
		}
		return scribe.Transcribe(s, &r.Plates, scribe.Tag("plates"), scribe.SharedOwner)
	}

Types that don't implement Transcriber are transcribed by reflection: structs
field by field (see the scribe struct tag), slices, arrays and maps as
sequences, interfaces polymorphically through the Registry.

# Object model

**Transcription.**
A flat table of objects keyed by integer ids (see the transcription package).
An object is either a primitive (integer, float, string) or a composite holding
child ids under (name, version) keys. Id 0 is the null pointer, id 1 is the
root that top-level objects hang off.

**Tags.**
An ObjectTag is a path relative to the object currently being transcribed:
Tag("plates").SequenceItem(3).Tag("name"). Versioned tag sections let new code
store a changed field under a new key while still reading the old one.

**Tracking.**
Every object transcribed in place is tracked by its address and type. Reaching
the same object again stores the same id, so sharing and cycles survive a
round trip. Objects loaded into temporary memory must be announced with
Relocated (or LoadRef.MoveTo) once moved, so pointers can be patched.

**Ownership.**
A pointer transcribed with ExclusiveOwner or SharedOwner owns its pointee: the
pointee is saved through it and constructed on load. Any other pointer refers
to an object owned elsewhere and only stores its id; on load it is patched when
the object appears. An object can have one exclusive owner, any number of
shared owners, or be owned by value, never a mix.

# Errors

Problems with the data (missing tags, mismatched kinds, out-of-range numbers,
unknown type names) are returned as Result values, and the first one is kept in
Scribe.Failure. Mistakes in the client code panic with *UsageError.
*/
package scribe
