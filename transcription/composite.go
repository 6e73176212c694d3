package transcription

import (
	"iter"
	"slices"
)

// CompositeObject holds the children of a composite entry. Each object key
// maps either to a single child or to an array of children indexed from 0;
// a single child is simply the array item at index 0.
type CompositeObject struct {
	keys     []ObjectKey // sorted
	children [][]ObjectID
}

func (c *CompositeObject) find(key ObjectKey) (int, bool) {
	return slices.BinarySearch(c.keys, key)
}

func (c *CompositeObject) SetChild(key ObjectKey, id ObjectID) {
	c.SetArrayChild(key, id, 0)
}

// SetArrayChild stores id as the index'th item under key. Slots below index
// that were never set remain invalid until they are set.
func (c *CompositeObject) SetArrayChild(key ObjectKey, id ObjectID, index int) {
	if index < 0 {
		panic(libraryErrf(id, "negative array index %d", index))
	}
	if id == invalidObjectID {
		panic(libraryErrf(id, "invalid child object id"))
	}
	i, found := c.find(key)
	if !found {
		c.keys = slices.Insert(c.keys, i, key)
		c.children = slices.Insert(c.children, i, nil)
	}
	items := c.children[i]
	for len(items) <= index {
		items = append(items, invalidObjectID)
	}
	items[index] = id
	c.children[i] = items
}

// Child returns the single child under key. Panics if there's none; use
// HasValidChild when the child might be missing.
func (c *CompositeObject) Child(key ObjectKey) ObjectID {
	return c.ArrayChild(key, 0)
}

func (c *CompositeObject) ArrayChild(key ObjectKey, index int) ObjectID {
	id, ok := c.HasValidChild(key, index)
	if !ok {
		panic(libraryErrf(NullObjectID, "no child with key %d at index %d", key, index))
	}
	return id
}

// NumChildrenWithKey returns the length of the child array under key, counting
// slots that were never set.
func (c *CompositeObject) NumChildrenWithKey(key ObjectKey) int {
	i, found := c.find(key)
	if !found {
		return 0
	}
	return len(c.children[i])
}

// HasValidChild returns the child at (key, index) if that slot was set.
// A slot set to NullObjectID is valid.
func (c *CompositeObject) HasValidChild(key ObjectKey, index int) (ObjectID, bool) {
	i, found := c.find(key)
	if !found || index < 0 || index >= len(c.children[i]) {
		return NullObjectID, false
	}
	id := c.children[i][index]
	if id == invalidObjectID {
		return NullObjectID, false
	}
	return id, true
}

func (c *CompositeObject) Keys() []ObjectKey {
	return slices.Clone(c.keys)
}

func (c *CompositeObject) KeyCount() int {
	return len(c.keys)
}

func (c *CompositeObject) IsEmpty() bool {
	return len(c.keys) == 0
}

// Children yields every valid (key, index, child) triple in key order.
func (c *CompositeObject) Children() iter.Seq2[Slot, ObjectID] {
	return func(yield func(Slot, ObjectID) bool) {
		for i, key := range c.keys {
			for index, id := range c.children[i] {
				if id == invalidObjectID {
					continue
				}
				if !yield(Slot{key, index}, id) {
					return
				}
			}
		}
	}
}

// Slot addresses one child position inside a composite.
type Slot struct {
	Key   ObjectKey
	Index int
}
