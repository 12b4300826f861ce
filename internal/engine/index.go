package engine

import (
	"bytes"
	"sync/atomic"

	"github.com/google/btree"
)

// btreeDegree controls the branching factor of the underlying B-tree.
// It is not a correctness knob, only a cache-locality tuning constant.
const btreeDegree = 32

// keyItem is the btree.Item stored in the index: a key together with
// the location of the record that currently defines it.
type keyItem struct {
	key []byte
	loc location
}

func (a *keyItem) Less(than btree.Item) bool {
	return bytes.Compare(a.key, than.(*keyItem).key) < 0
}

// index is the Key Index: an ordered, concurrent map from key to
// location. Reads are lock-free: they load an immutable *btree.BTree
// snapshot through an atomic pointer and traverse it without taking any
// lock. Mutations clone the current snapshot (an O(1) copy-on-write
// operation), mutate the clone, and publish it with a single atomic
// store. Because every mutating engine operation (Set, Remove,
// Compaction) runs under the Writer's single mutex, mutations never
// race with each other; they only ever race with readers, which the
// copy-on-write discipline already makes safe: a reader that loaded the
// pointer before a swap keeps traversing the old, now-orphaned tree,
// whose nodes are never mutated again.
type index struct {
	tree atomic.Pointer[btree.BTree]
}

func newIndex() *index {
	idx := &index{}
	idx.tree.Store(btree.New(btreeDegree))
	return idx
}

// get returns the location currently defining key, if any.
func (idx *index) Get(key []byte) (location, bool) {
	t := idx.tree.Load()
	item := t.Get(&keyItem{key: key})
	if item == nil {
		return location{}, false
	}
	return item.(*keyItem).loc, true
}

// Insert maps key to loc, replacing any previous mapping, and reports
// the previous location if one existed.
func (idx *index) Insert(key []byte, loc location) (location, bool) {
	owned := append([]byte(nil), key...)
	old := idx.tree.Load()
	next := old.Clone()
	prev := next.ReplaceOrInsert(&keyItem{key: owned, loc: loc})
	idx.tree.Store(next)
	if prev == nil {
		return location{}, false
	}
	return prev.(*keyItem).loc, true
}

// Remove deletes key from the index and reports the location it used
// to map to, if any.
func (idx *index) Remove(key []byte) (location, bool) {
	old := idx.tree.Load()
	next := old.Clone()
	prev := next.Delete(&keyItem{key: key})
	idx.tree.Store(next)
	if prev == nil {
		return location{}, false
	}
	return prev.(*keyItem).loc, true
}

// CompareAndSwap replaces key's mapping with next only if its current
// mapping is still exactly old. It is used by Compaction to redirect an
// index entry to its rewritten location without disturbing an entry
// that a concurrent mutation (impossible today under the writer lock,
// but kept for the replace-under-lock contract §4.3 describes) has
// already moved elsewhere.
func (idx *index) CompareAndSwap(key []byte, old, next location) bool {
	current := idx.tree.Load()
	item := current.Get(&keyItem{key: key})
	if item == nil || item.(*keyItem).loc != old {
		return false
	}
	clone := current.Clone()
	clone.ReplaceOrInsert(&keyItem{key: append([]byte(nil), key...), loc: next})
	idx.tree.Store(clone)
	return true
}

// Len returns the number of keys currently in the index.
func (idx *index) Len() int {
	return idx.tree.Load().Len()
}

// ForEach calls fn for every (key, location) pair in ascending key
// order, stopping early if fn returns false. It operates against a
// single immutable snapshot, so it never observes a torn view even if
// mutations happen concurrently.
func (idx *index) ForEach(fn func(key []byte, loc location) bool) {
	idx.tree.Load().Ascend(func(item btree.Item) bool {
		ki := item.(*keyItem)
		return fn(ki.key, ki.loc)
	})
}
