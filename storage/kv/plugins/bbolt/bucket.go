package bbolt

import (
	"bytes"

	"github.com/jrife/sertree/storage/kv"
	"github.com/jrife/sertree/storage/kv/keys"
	bolt "go.etcd.io/bbolt"
)

var _ kv.Bucket = (*BBoltBucket)(nil)

// BBoltBucket is a handle for a top level bbolt bucket
type BBoltBucket struct {
	store *BBoltStore
	name  []byte
}

func (bucket *BBoltBucket) view(fn func(b *bolt.Bucket) error) error {
	return bucket.store.view(func(txn *bolt.Tx) error {
		b := txn.Bucket(bucket.name)

		if b == nil {
			return kv.ErrNoSuchBucket
		}

		return fn(b)
	})
}

func (bucket *BBoltBucket) update(fn func(b *bolt.Bucket) error) error {
	return bucket.store.update(func(txn *bolt.Tx) error {
		b := txn.Bucket(bucket.name)

		if b == nil {
			return kv.ErrNoSuchBucket
		}

		return fn(b)
	})
}

// Name implements kv.Bucket.Name
func (bucket *BBoltBucket) Name() []byte {
	return keys.Copy(bucket.name)
}

// Get implements kv.Bucket.Get
func (bucket *BBoltBucket) Get(key []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var value []byte
	var ok bool

	err := bucket.view(func(b *bolt.Bucket) error {
		value, ok = get(b, key)

		return nil
	})

	return value, ok, err
}

// Has implements kv.Bucket.Has
func (bucket *BBoltBucket) Has(key []byte) (bool, error) {
	_, ok, err := bucket.Get(key)

	return ok, err
}

// Put implements kv.Bucket.Put
func (bucket *BBoltBucket) Put(key, value []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var prev []byte
	var ok bool

	err := bucket.update(func(b *bolt.Bucket) error {
		prev, ok = get(b, key)

		return b.Put(key, nonNil(value))
	})

	if err != nil {
		return nil, false, err
	}

	return prev, ok, nil
}

// PutIfAbsent implements kv.Bucket.PutIfAbsent
func (bucket *BBoltBucket) PutIfAbsent(key, value []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var current []byte
	var loaded bool

	err := bucket.update(func(b *bolt.Bucket) error {
		if current, loaded = get(b, key); loaded {
			return nil
		}

		return b.Put(key, nonNil(value))
	})

	if err != nil {
		return nil, false, err
	}

	return current, loaded, nil
}

// Delete implements kv.Bucket.Delete
func (bucket *BBoltBucket) Delete(key []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var prev []byte
	var ok bool

	err := bucket.update(func(b *bolt.Bucket) error {
		if prev, ok = get(b, key); !ok {
			return nil
		}

		return b.Delete(key)
	})

	if err != nil {
		return nil, false, err
	}

	return prev, ok, nil
}

// Len implements kv.Bucket.Len
func (bucket *BBoltBucket) Len() (int, error) {
	var n int

	err := bucket.view(func(b *bolt.Bucket) error {
		n = b.Stats().KeyN

		return nil
	})

	return n, err
}

// Clear implements kv.Bucket.Clear
func (bucket *BBoltBucket) Clear() error {
	return bucket.store.update(func(txn *bolt.Tx) error {
		if txn.Bucket(bucket.name) == nil {
			return kv.ErrNoSuchBucket
		}

		if err := txn.DeleteBucket(bucket.name); err != nil {
			return err
		}

		_, err := txn.CreateBucket(bucket.name)

		return err
	})
}

// First implements kv.Bucket.First
func (bucket *BBoltBucket) First() (kv.KV, bool, error) {
	return kv.Edge(bucket.scan, kv.SortOrderAsc)
}

// Last implements kv.Bucket.Last
func (bucket *BBoltBucket) Last() (kv.KV, bool, error) {
	return kv.Edge(bucket.scan, kv.SortOrderDesc)
}

// PopFirst implements kv.Bucket.PopFirst
func (bucket *BBoltBucket) PopFirst() (kv.KV, bool, error) {
	return bucket.pop((*bolt.Cursor).First)
}

// PopLast implements kv.Bucket.PopLast
func (bucket *BBoltBucket) PopLast() (kv.KV, bool, error) {
	return bucket.pop((*bolt.Cursor).Last)
}

func (bucket *BBoltBucket) pop(edge func(c *bolt.Cursor) ([]byte, []byte)) (kv.KV, bool, error) {
	var popped kv.KV
	var ok bool

	err := bucket.update(func(b *bolt.Bucket) error {
		cursor := b.Cursor()
		k, v := edge(cursor)

		if k == nil {
			return nil
		}

		popped = kv.KV{Key: keys.Copy(k), Value: copyValue(v)}
		ok = true

		return cursor.Delete()
	})

	if err != nil {
		return kv.KV{}, false, err
	}

	return popped, ok, nil
}

// Keys implements kv.Bucket.Keys
func (bucket *BBoltBucket) Keys(keys keys.Range, order kv.SortOrder) (kv.Iterator, error) {
	return kv.Paginate(bucket.scan, keys, order, kv.DefaultPageSize), nil
}

func (bucket *BBoltBucket) scan(r keys.Range, order kv.SortOrder, limit int) ([]kv.KV, error) {
	page := []kv.KV{}

	err := bucket.view(func(b *bolt.Bucket) error {
		cursor := b.Cursor()

		if order == kv.SortOrderDesc {
			var k, v []byte

			if r.Max == nil {
				k, v = cursor.Last()
			} else if k, v = cursor.Seek(r.Max); k == nil {
				k, v = cursor.Last()
			} else {
				// Max is exclusive. Seek lands on the first key >= Max
				k, v = cursor.Prev()
			}

			for ; k != nil && len(page) < limit; k, v = cursor.Prev() {
				if r.Min != nil && bytes.Compare(k, r.Min) < 0 {
					break
				}

				page = append(page, kv.KV{Key: keys.Copy(k), Value: copyValue(v)})
			}

			return nil
		}

		var k, v []byte

		if r.Min == nil {
			k, v = cursor.First()
		} else {
			k, v = cursor.Seek(r.Min)
		}

		for ; k != nil && len(page) < limit; k, v = cursor.Next() {
			if r.Max != nil && bytes.Compare(k, r.Max) >= 0 {
				break
			}

			page = append(page, kv.KV{Key: keys.Copy(k), Value: copyValue(v)})
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return page, nil
}

// get looks the key up with a cursor so that a present
// empty value is never confused with a missing key
func get(b *bolt.Bucket, key []byte) ([]byte, bool) {
	k, v := b.Cursor().Seek(key)

	if k == nil || !bytes.Equal(k, key) {
		return nil, false
	}

	return copyValue(v), true
}

func copyValue(value []byte) []byte {
	return append([]byte{}, value...)
}

func nonNil(value []byte) []byte {
	if value == nil {
		return []byte{}
	}

	return value
}
