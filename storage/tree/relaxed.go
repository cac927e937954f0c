package tree

import (
	"fmt"

	"github.com/jrife/sertree/storage/codec"
	"github.com/jrife/sertree/storage/kv"
	"github.com/jrife/sertree/storage/kv/keys"
	"go.uber.org/zap"
)

// RelaxedTree is a handle to a tree that holds no type
// information. Use the package level functions to access it.
type RelaxedTree struct {
	db     *DB
	name   string
	bucket kv.Bucket
	logger *zap.Logger
}

// Name returns the name of the tree
func (t *RelaxedTree) Name() string {
	return t.name
}

// Len returns the number of entries in the tree
func (t *RelaxedTree) Len() (int, error) {
	n, err := t.bucket.Len()

	if err != nil {
		return 0, t.storeError("len", err)
	}

	return n, nil
}

// Clear removes every entry from the tree
func (t *RelaxedTree) Clear() error {
	if err := t.bucket.Clear(); err != nil {
		return t.storeError("clear", err)
	}

	return nil
}

// Get returns the value stored under key
func Get[K, V any](t *RelaxedTree, key K) (V, bool, error) {
	var zero V

	k, err := encodeKey(t, "get", key)

	if err != nil {
		return zero, false, err
	}

	data, ok, err := t.bucket.Get(k)

	if err != nil {
		return zero, false, t.storeError("get", err)
	}

	if !ok {
		return zero, false, nil
	}

	value, err := decode[V](t, "get", data)

	if err != nil {
		return zero, false, err
	}

	return value, true, nil
}

// Insert stores value under key and returns the value it
// replaced. If the replaced value cannot be decoded as V
// the write has still happened.
func Insert[K, V any](t *RelaxedTree, key K, value V) (V, bool, error) {
	var zero V

	k, err := encodeKey(t, "insert", key)

	if err != nil {
		return zero, false, err
	}

	v, err := encodeValue(t, "insert", value)

	if err != nil {
		return zero, false, err
	}

	prev, ok, err := t.bucket.Put(k, v)

	if err != nil {
		return zero, false, t.storeError("insert", err)
	}

	return decodePrevious[V](t, "insert", prev, ok)
}

// Remove deletes key and returns the value it held
func Remove[K, V any](t *RelaxedTree, key K) (V, bool, error) {
	var zero V

	k, err := encodeKey(t, "remove", key)

	if err != nil {
		return zero, false, err
	}

	prev, ok, err := t.bucket.Delete(k)

	if err != nil {
		return zero, false, t.storeError("remove", err)
	}

	return decodePrevious[V](t, "remove", prev, ok)
}

// ContainsKey returns true if key is in the tree
func ContainsKey[K any](t *RelaxedTree, key K) (bool, error) {
	k, err := encodeKey(t, "contains key", key)

	if err != nil {
		return false, err
	}

	ok, err := t.bucket.Has(k)

	if err != nil {
		return false, t.storeError("contains key", err)
	}

	return ok, nil
}

// First returns the entry with the lowest encoded key
func First[K, V any](t *RelaxedTree) (K, V, bool, error) {
	return entry[K, V](t, "first", t.bucket.First)
}

// Last returns the entry with the highest encoded key
func Last[K, V any](t *RelaxedTree) (K, V, bool, error) {
	return entry[K, V](t, "last", t.bucket.Last)
}

// PopMax atomically removes and returns the entry with the
// highest encoded key. If it cannot be decoded it is still
// removed.
func PopMax[K, V any](t *RelaxedTree) (K, V, bool, error) {
	return entry[K, V](t, "pop max", t.bucket.PopLast)
}

// PopMin atomically removes and returns the entry with the
// lowest encoded key
func PopMin[K, V any](t *RelaxedTree) (K, V, bool, error) {
	return entry[K, V](t, "pop min", t.bucket.PopFirst)
}

// GetOrInit returns the value stored under key. If there
// is none it stores init() unless another writer gets there
// first, in which case the other writer's value is returned.
// init is not called if key exists when GetOrInit starts.
func GetOrInit[K, V any](t *RelaxedTree, key K, init func() V) (V, error) {
	var zero V

	value, ok, err := Get[K, V](t, key)

	if err != nil || ok {
		return value, err
	}

	k, err := encodeKey(t, "get or init", key)

	if err != nil {
		return zero, err
	}

	value = init()
	v, err := encodeValue(t, "get or init", value)

	if err != nil {
		return zero, err
	}

	current, loaded, err := t.bucket.PutIfAbsent(k, v)

	if err != nil {
		return zero, t.storeError("get or init", err)
	}

	if !loaded {
		return value, nil
	}

	return decode[V](t, "get or init", current)
}

// Iter iterates over the whole tree in ascending
// order of encoded keys
func Iter[K, V any](t *RelaxedTree) (*Iterator[K, V], error) {
	return Range[K, V](t, Unbounded[K](), Unbounded[K](), kv.SortOrderAsc)
}

// Range iterates over the entries between start and end.
// Bounds other than Unbounded need an ordered key codec.
func Range[K, V any](t *RelaxedTree, start, end Bound[K], order kv.SortOrder) (*Iterator[K, V], error) {
	keyCodec := codec.For[K]()

	if (!start.IsUnbounded() || !end.IsUnbounded()) && !keyCodec.Ordered() {
		return nil, fmt.Errorf("range over %s keys of tree %q: %w", keyCodec.Name(), t.name, ErrUnorderedKeys)
	}

	startBytes, err := encodeBound(t, start)

	if err != nil {
		return nil, err
	}

	endBytes, err := encodeBound(t, end)

	if err != nil {
		return nil, err
	}

	return rangeBytes[K, V](t, startBytes, endBytes, order)
}

// RangeKeyBytes iterates over the entries between two
// raw encoded keys
func RangeKeyBytes[V any](t *RelaxedTree, start, end Bound[[]byte], order kv.SortOrder) (*Iterator[[]byte, V], error) {
	return rangeBytes[[]byte, V](t, start, end, order)
}

func rangeBytes[K, V any](t *RelaxedTree, start, end Bound[[]byte], order kv.SortOrder) (*Iterator[K, V], error) {
	if start.kind != unbounded && end.kind != unbounded && keys.Compare(start.key, end.key) > 0 {
		return nil, fmt.Errorf("range of tree %q from %x to %x: %w", t.name, start.key, end.key, ErrInvalidRange)
	}

	r := keys.All()

	switch start.kind {
	case included:
		// every key is non-empty so this adds nothing
		if len(start.key) > 0 {
			r = r.Gte(start.key)
		}
	case excluded:
		r = r.Gt(start.key)
	}

	switch end.kind {
	case included:
		r = r.Lte(end.key)
	case excluded:
		r = r.Lt(end.key)
	}

	iter, err := t.bucket.Keys(r, order)

	if err != nil {
		return nil, t.storeError("range", err)
	}

	return newIterator[K, V](t, iter), nil
}

func entry[K, V any](t *RelaxedTree, op string, read func() (kv.KV, bool, error)) (K, V, bool, error) {
	var zeroK K
	var zeroV V

	e, ok, err := read()

	if err != nil {
		return zeroK, zeroV, false, t.storeError(op, err)
	}

	if !ok {
		return zeroK, zeroV, false, nil
	}

	key, err := decode[K](t, op, e.Key)

	if err != nil {
		return zeroK, zeroV, false, err
	}

	value, err := decode[V](t, op, e.Value)

	if err != nil {
		return zeroK, zeroV, false, err
	}

	return key, value, true, nil
}

func decodePrevious[V any](t *RelaxedTree, op string, prev []byte, ok bool) (V, bool, error) {
	var zero V

	if !ok {
		return zero, false, nil
	}

	value, err := decode[V](t, op, prev)

	if err != nil {
		return zero, false, err
	}

	return value, true, nil
}

func encodeKey[K any](t *RelaxedTree, op string, key K) ([]byte, error) {
	keyCodec := codec.For[K]()
	data, err := keyCodec.Encode(key)

	if err != nil {
		return nil, t.encodeError(op, err)
	}

	if len(data) == 0 {
		return nil, t.encodeError(op, &codec.EncodeError{Type: keyCodec.Name(), Reason: "encoded key is empty", Err: kv.ErrEmptyKey})
	}

	return data, nil
}

func encodeValue[V any](t *RelaxedTree, op string, value V) ([]byte, error) {
	data, err := codec.For[V]().Encode(value)

	if err != nil {
		return nil, t.encodeError(op, err)
	}

	return data, nil
}

func encodeBound[K any](t *RelaxedTree, bound Bound[K]) (Bound[[]byte], error) {
	if bound.kind == unbounded {
		return Unbounded[[]byte](), nil
	}

	data, err := codec.For[K]().Encode(bound.key)

	if err != nil {
		return Bound[[]byte]{}, t.encodeError("range", err)
	}

	return Bound[[]byte]{kind: bound.kind, key: data}, nil
}

func decode[T any](t *RelaxedTree, op string, data []byte) (T, error) {
	value, err := codec.For[T]().Decode(data)

	if err != nil {
		t.db.metrics.decodeError(t.name)
		t.logger.Debug("could not decode", zap.String("op", op), zap.Int("len", len(data)), zap.Error(err))

		return value, err
	}

	return value, nil
}

func (t *RelaxedTree) encodeError(op string, err error) error {
	t.db.metrics.encodeError(t.name)
	t.logger.Debug("could not encode", zap.String("op", op), zap.Error(err))

	return err
}

func (t *RelaxedTree) storeError(op string, err error) error {
	t.db.metrics.storeError(t.name)

	return &StoreError{Op: op, Tree: t.name, Err: err}
}
