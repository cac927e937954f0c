package badger

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/jrife/sertree/storage/kv"
	"github.com/jrife/sertree/storage/kv/keys"
)

var _ kv.Bucket = (*BadgerBucket)(nil)

// BadgerBucket is a handle for a bucket in a BadgerStore
type BadgerBucket struct {
	store *BadgerStore
	name  []byte
	ns    kv.Namespace
}

// exists reads the registry key inside txn so that a
// concurrent DeleteBucket makes the transaction conflict
func (bucket *BadgerBucket) exists(txn *badger.Txn) error {
	_, ok, err := get(txn, kv.RegistryKey(bucket.name))

	if err != nil {
		return err
	}

	if !ok {
		return kv.ErrNoSuchBucket
	}

	return nil
}

func (bucket *BadgerBucket) view(fn func(txn *badger.Txn) error) error {
	return bucket.store.view(func(txn *badger.Txn) error {
		if err := bucket.exists(txn); err != nil {
			return err
		}

		return fn(txn)
	})
}

func (bucket *BadgerBucket) update(fn func(txn *badger.Txn) error) error {
	return bucket.store.update(func(txn *badger.Txn) error {
		if err := bucket.exists(txn); err != nil {
			return err
		}

		return fn(txn)
	})
}

// Name implements kv.Bucket.Name
func (bucket *BadgerBucket) Name() []byte {
	return keys.Copy(bucket.name)
}

// Get implements kv.Bucket.Get
func (bucket *BadgerBucket) Get(key []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var value []byte
	var ok bool

	err := bucket.view(func(txn *badger.Txn) error {
		var err error
		value, ok, err = get(txn, bucket.ns.Key(key))

		return err
	})

	return value, ok, err
}

// Has implements kv.Bucket.Has
func (bucket *BadgerBucket) Has(key []byte) (bool, error) {
	_, ok, err := bucket.Get(key)

	return ok, err
}

// Put implements kv.Bucket.Put
func (bucket *BadgerBucket) Put(key, value []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var prev []byte
	var ok bool

	err := bucket.update(func(txn *badger.Txn) error {
		var err error

		if prev, ok, err = get(txn, bucket.ns.Key(key)); err != nil {
			return err
		}

		return txn.Set(bucket.ns.Key(key), nonNil(value))
	})

	if err != nil {
		return nil, false, err
	}

	return prev, ok, nil
}

// PutIfAbsent implements kv.Bucket.PutIfAbsent
func (bucket *BadgerBucket) PutIfAbsent(key, value []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var current []byte
	var loaded bool

	err := bucket.update(func(txn *badger.Txn) error {
		var err error

		if current, loaded, err = get(txn, bucket.ns.Key(key)); err != nil || loaded {
			return err
		}

		return txn.Set(bucket.ns.Key(key), nonNil(value))
	})

	if err != nil {
		return nil, false, err
	}

	return current, loaded, nil
}

// Delete implements kv.Bucket.Delete
func (bucket *BadgerBucket) Delete(key []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var prev []byte
	var ok bool

	err := bucket.update(func(txn *badger.Txn) error {
		var err error

		if prev, ok, err = get(txn, bucket.ns.Key(key)); err != nil || !ok {
			return err
		}

		return txn.Delete(bucket.ns.Key(key))
	})

	if err != nil {
		return nil, false, err
	}

	return prev, ok, nil
}

// Len implements kv.Bucket.Len
func (bucket *BadgerBucket) Len() (int, error) {
	var n int

	err := bucket.view(func(txn *badger.Txn) error {
		page, err := scan(txn, bucket.ns.Range(keys.All()), kv.SortOrderAsc, -1, true)
		n = len(page)

		return err
	})

	return n, err
}

// Clear implements kv.Bucket.Clear
func (bucket *BadgerBucket) Clear() error {
	if err := bucket.view(func(txn *badger.Txn) error { return nil }); err != nil {
		return err
	}

	return bucket.store.dropPrefix(bucket.ns)
}

// First implements kv.Bucket.First
func (bucket *BadgerBucket) First() (kv.KV, bool, error) {
	return kv.Edge(bucket.scan, kv.SortOrderAsc)
}

// Last implements kv.Bucket.Last
func (bucket *BadgerBucket) Last() (kv.KV, bool, error) {
	return kv.Edge(bucket.scan, kv.SortOrderDesc)
}

// PopFirst implements kv.Bucket.PopFirst
func (bucket *BadgerBucket) PopFirst() (kv.KV, bool, error) {
	return bucket.pop(kv.SortOrderAsc)
}

// PopLast implements kv.Bucket.PopLast
func (bucket *BadgerBucket) PopLast() (kv.KV, bool, error) {
	return bucket.pop(kv.SortOrderDesc)
}

// pop reads and deletes the edge entry in one transaction. Two
// concurrent pops of the same entry conflict and one is retried.
func (bucket *BadgerBucket) pop(order kv.SortOrder) (kv.KV, bool, error) {
	var popped kv.KV
	var ok bool

	err := bucket.update(func(txn *badger.Txn) error {
		ok = false
		page, err := scan(txn, bucket.ns.Range(keys.All()), order, 1, false)

		if err != nil || len(page) == 0 {
			return err
		}

		if err := txn.Delete(page[0].Key); err != nil {
			return err
		}

		popped = kv.KV{Key: bucket.ns.StripKey(page[0].Key), Value: page[0].Value}
		ok = true

		return nil
	})

	if err != nil {
		return kv.KV{}, false, err
	}

	return popped, ok, nil
}

// Keys implements kv.Bucket.Keys
func (bucket *BadgerBucket) Keys(keys keys.Range, order kv.SortOrder) (kv.Iterator, error) {
	return kv.Paginate(bucket.scan, keys, order, kv.DefaultPageSize), nil
}

func (bucket *BadgerBucket) scan(r keys.Range, order kv.SortOrder, limit int) ([]kv.KV, error) {
	var page []kv.KV

	err := bucket.view(func(txn *badger.Txn) error {
		var err error

		if page, err = scan(txn, bucket.ns.Range(r), order, limit, false); err != nil {
			return err
		}

		for i := range page {
			page[i].Key = bucket.ns.StripKey(page[i].Key)
		}

		return nil
	})

	return page, err
}
