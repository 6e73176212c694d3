package scribe

import (
	"fmt"
	"log/slog"
)

// Options configure a Scribe.
type Options struct {
	Logger *slog.Logger

	// Verbose logs every transcribed object at Debug level.
	Verbose bool

	// StrictArrays makes the generic sequence and mapping loaders verify that
	// the number of stored items matches the stored size.
	StrictArrays bool
}

// Option modifies a single transcribe call.
type Option interface {
	apply(o *options)
}

type options struct {
	ownership  Ownership
	untracked  bool
	optional   bool
	version    uint32
	hasVersion bool
}

func makeOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt.apply(&o)
	}
	return o
}

// elem returns the options that apply to the items of a container.
func (o options) elem() options {
	o.optional = false
	o.hasVersion = false
	o.version = 0
	return o
}

func (o options) tag(tag ObjectTag) ObjectTag {
	if o.hasVersion && !tag.IsEmpty() {
		return tag.WithVersion(o.version)
	}
	return tag
}

func (o options) isOwner() bool {
	return o.ownership != noOwner
}

// Ownership marks a pointer as owning its pointee. Pointers without an
// ownership option only reference objects owned elsewhere.
type Ownership int

const (
	noOwner Ownership = iota

	// ExclusiveOwner is the only owner of the pointee (like a unique_ptr).
	ExclusiveOwner

	// SharedOwner is one of several owners of the pointee.
	SharedOwner
)

func (v Ownership) String() string {
	switch v {
	case noOwner:
		return "none"
	case ExclusiveOwner:
		return "exclusive"
	case SharedOwner:
		return "shared"
	default:
		return fmt.Sprintf("Ownership(%d)", int(v))
	}
}

func (v Ownership) apply(o *options) {
	if o.ownership != noOwner && o.ownership != v {
		panic(usageErrf(ErrConflictingOptions, nil, "", "both %v and %v ownership requested", o.ownership, v))
	}
	o.ownership = v
}

type Tracking int

const (
	Tracked Tracking = iota

	// Untracked objects cannot be referenced by pointers; untracked pointers
	// must be transcribed after the object they point to and are not updated
	// by Relocated.
	Untracked
)

const DontTrack = Untracked

func (v Tracking) apply(o *options) {
	o.untracked = v == Untracked
}

// Version overrides the version of the last section of the tag.
type Version uint32

func (v Version) apply(o *options) {
	o.version = uint32(v)
	o.hasVersion = true
}

type optionalOption struct{}

func (optionalOption) apply(o *options) {
	o.optional = true
}

// Optional makes a missing tag on load succeed, leaving the value untouched.
var Optional Option = optionalOption{}
