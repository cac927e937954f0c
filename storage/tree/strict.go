package tree

import (
	"github.com/jrife/sertree/storage/kv"
)

// StrictTree is a tree handle with fixed key and value
// types. Its methods forward to the package level functions.
type StrictTree[K, V any] struct {
	tree *RelaxedTree
	_    [0]func(K) V
}

// Strict views a relaxed tree as a StrictTree[K, V]
// without checking type tags
func Strict[K, V any](t *RelaxedTree) *StrictTree[K, V] {
	return &StrictTree[K, V]{tree: t}
}

// Relaxed returns the untyped handle for this tree
func (t *StrictTree[K, V]) Relaxed() *RelaxedTree {
	return t.tree
}

// Name returns the name of the tree
func (t *StrictTree[K, V]) Name() string {
	return t.tree.Name()
}

// Get is Get[K, V]
func (t *StrictTree[K, V]) Get(key K) (V, bool, error) {
	return Get[K, V](t.tree, key)
}

// Insert is Insert[K, V]
func (t *StrictTree[K, V]) Insert(key K, value V) (V, bool, error) {
	return Insert(t.tree, key, value)
}

// Remove is Remove[K, V]
func (t *StrictTree[K, V]) Remove(key K) (V, bool, error) {
	return Remove[K, V](t.tree, key)
}

// ContainsKey is ContainsKey[K]
func (t *StrictTree[K, V]) ContainsKey(key K) (bool, error) {
	return ContainsKey(t.tree, key)
}

// Len returns the number of entries in the tree
func (t *StrictTree[K, V]) Len() (int, error) {
	return t.tree.Len()
}

// Clear removes every entry from the tree
func (t *StrictTree[K, V]) Clear() error {
	return t.tree.Clear()
}

// First is First[K, V]
func (t *StrictTree[K, V]) First() (K, V, bool, error) {
	return First[K, V](t.tree)
}

// Last is Last[K, V]
func (t *StrictTree[K, V]) Last() (K, V, bool, error) {
	return Last[K, V](t.tree)
}

// PopMax is PopMax[K, V]
func (t *StrictTree[K, V]) PopMax() (K, V, bool, error) {
	return PopMax[K, V](t.tree)
}

// PopMin is PopMin[K, V]
func (t *StrictTree[K, V]) PopMin() (K, V, bool, error) {
	return PopMin[K, V](t.tree)
}

// Range is Range[K, V]
func (t *StrictTree[K, V]) Range(start, end Bound[K], order kv.SortOrder) (*Iterator[K, V], error) {
	return Range[K, V](t.tree, start, end, order)
}

// RangeKeyBytes is RangeKeyBytes[V]
func (t *StrictTree[K, V]) RangeKeyBytes(start, end Bound[[]byte], order kv.SortOrder) (*Iterator[[]byte, V], error) {
	return RangeKeyBytes[V](t.tree, start, end, order)
}

// Iter is Iter[K, V]
func (t *StrictTree[K, V]) Iter() (*Iterator[K, V], error) {
	return Iter[K, V](t.tree)
}

// GetOrInit is GetOrInit[K, V]
func (t *StrictTree[K, V]) GetOrInit(key K, init func() V) (V, error) {
	return GetOrInit(t.tree, key, init)
}
