package tree

import (
	"github.com/jrife/sertree/storage/kv"
	"github.com/jrife/sertree/utils/stream"
)

// Entry is a decoded key value pair
type Entry[K, V any] struct {
	Key   K
	Value V
}

// Iterator yields decoded entries of a tree. The first
// entry that cannot be decoded or the first store error
// ends iteration and is returned by Error. It must only
// be used by one goroutine at a time.
type Iterator[K, V any] struct {
	tree    *RelaxedTree
	iter    kv.Iterator
	current Entry[K, V]
	err     error
	done    bool
}

func newIterator[K, V any](t *RelaxedTree, iter kv.Iterator) *Iterator[K, V] {
	return &Iterator[K, V]{tree: t, iter: iter}
}

// Next advances to the next entry. It returns false
// when iteration is done or stopped by an error.
func (iter *Iterator[K, V]) Next() bool {
	iter.current = Entry[K, V]{}

	if iter.done {
		return false
	}

	if !iter.iter.Next() {
		if err := iter.iter.Error(); err != nil {
			iter.err = iter.tree.storeError("iterate", err)
		}

		iter.finish()

		return false
	}

	key, err := decode[K](iter.tree, "iterate", iter.iter.Key())

	if err != nil {
		iter.err = err
		iter.finish()

		return false
	}

	value, err := decode[V](iter.tree, "iterate", iter.iter.Value())

	if err != nil {
		iter.err = err
		iter.finish()

		return false
	}

	iter.current = Entry[K, V]{Key: key, Value: value}

	return true
}

// Key returns the current key
func (iter *Iterator[K, V]) Key() K {
	return iter.current.Key
}

// Value returns the current value
func (iter *Iterator[K, V]) Value() V {
	return iter.current.Value
}

// Entry returns the current entry
func (iter *Iterator[K, V]) Entry() Entry[K, V] {
	return iter.current
}

// Error returns the error that stopped iteration, if any
func (iter *Iterator[K, V]) Error() error {
	return iter.err
}

// Close releases the iterator. Next returns false afterwards.
func (iter *Iterator[K, V]) Close() error {
	if iter.done {
		return nil
	}

	iter.done = true

	return iter.iter.Close()
}

// Stream adapts the iterator to a stream of entries
func (iter *Iterator[K, V]) Stream() stream.Stream[Entry[K, V]] {
	return &entryStream[K, V]{iter}
}

// Collect reads every remaining entry and closes the iterator
func (iter *Iterator[K, V]) Collect() ([]Entry[K, V], error) {
	defer iter.Close()

	return stream.Collect(iter.Stream())
}

func (iter *Iterator[K, V]) finish() {
	if !iter.done {
		iter.done = true
		iter.iter.Close()
	}
}

type entryStream[K, V any] struct {
	iter *Iterator[K, V]
}

func (s *entryStream[K, V]) Next() bool {
	return s.iter.Next()
}

func (s *entryStream[K, V]) Value() Entry[K, V] {
	return s.iter.Entry()
}

func (s *entryStream[K, V]) Error() error {
	return s.iter.Error()
}
