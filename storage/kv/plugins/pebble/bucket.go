package pebble

import (
	"github.com/cockroachdb/pebble"
	"github.com/jrife/sertree/storage/kv"
	"github.com/jrife/sertree/storage/kv/keys"
)

var _ kv.Bucket = (*PebbleBucket)(nil)

// PebbleBucket is a handle for a bucket in a PebbleStore
type PebbleBucket struct {
	store *PebbleStore
	name  []byte
	ns    kv.Namespace
}

func (bucket *PebbleBucket) exists() error {
	_, ok, err := bucket.store.get(kv.RegistryKey(bucket.name))

	if err != nil {
		return err
	}

	if !ok {
		return kv.ErrNoSuchBucket
	}

	return nil
}

func (bucket *PebbleBucket) read(fn func() error) error {
	return bucket.store.do(func() error {
		if err := bucket.exists(); err != nil {
			return err
		}

		return fn()
	})
}

func (bucket *PebbleBucket) write(fn func() error) error {
	return bucket.store.doWrite(func() error {
		if err := bucket.exists(); err != nil {
			return err
		}

		return fn()
	})
}

// Name implements kv.Bucket.Name
func (bucket *PebbleBucket) Name() []byte {
	return keys.Copy(bucket.name)
}

// Get implements kv.Bucket.Get
func (bucket *PebbleBucket) Get(key []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var value []byte
	var ok bool

	err := bucket.read(func() error {
		var err error
		value, ok, err = bucket.store.get(bucket.ns.Key(key))

		return err
	})

	return value, ok, err
}

// Has implements kv.Bucket.Has
func (bucket *PebbleBucket) Has(key []byte) (bool, error) {
	_, ok, err := bucket.Get(key)

	return ok, err
}

// Put implements kv.Bucket.Put
func (bucket *PebbleBucket) Put(key, value []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var prev []byte
	var ok bool

	err := bucket.write(func() error {
		var err error

		if prev, ok, err = bucket.store.get(bucket.ns.Key(key)); err != nil {
			return err
		}

		return bucket.store.db.Set(bucket.ns.Key(key), value, pebble.Sync)
	})

	if err != nil {
		return nil, false, err
	}

	return prev, ok, nil
}

// PutIfAbsent implements kv.Bucket.PutIfAbsent
func (bucket *PebbleBucket) PutIfAbsent(key, value []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var current []byte
	var loaded bool

	err := bucket.write(func() error {
		var err error

		if current, loaded, err = bucket.store.get(bucket.ns.Key(key)); err != nil || loaded {
			return err
		}

		return bucket.store.db.Set(bucket.ns.Key(key), value, pebble.Sync)
	})

	if err != nil {
		return nil, false, err
	}

	return current, loaded, nil
}

// Delete implements kv.Bucket.Delete
func (bucket *PebbleBucket) Delete(key []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var prev []byte
	var ok bool

	err := bucket.write(func() error {
		var err error

		if prev, ok, err = bucket.store.get(bucket.ns.Key(key)); err != nil || !ok {
			return err
		}

		return bucket.store.db.Delete(bucket.ns.Key(key), pebble.Sync)
	})

	if err != nil {
		return nil, false, err
	}

	return prev, ok, nil
}

// Len implements kv.Bucket.Len
func (bucket *PebbleBucket) Len() (int, error) {
	var n int

	err := bucket.read(func() error {
		r := bucket.ns.Range(keys.All())
		iter, err := bucket.store.db.NewIter(&pebble.IterOptions{LowerBound: r.Min, UpperBound: r.Max})

		if err != nil {
			return err
		}

		defer iter.Close()

		for valid := iter.First(); valid; valid = iter.Next() {
			n++
		}

		return iter.Error()
	})

	return n, err
}

// Clear implements kv.Bucket.Clear
func (bucket *PebbleBucket) Clear() error {
	r := bucket.ns.Range(keys.All())

	return bucket.write(func() error {
		return bucket.store.db.DeleteRange(r.Min, r.Max, pebble.Sync)
	})
}

// First implements kv.Bucket.First
func (bucket *PebbleBucket) First() (kv.KV, bool, error) {
	return kv.Edge(bucket.scan, kv.SortOrderAsc)
}

// Last implements kv.Bucket.Last
func (bucket *PebbleBucket) Last() (kv.KV, bool, error) {
	return kv.Edge(bucket.scan, kv.SortOrderDesc)
}

// PopFirst implements kv.Bucket.PopFirst
func (bucket *PebbleBucket) PopFirst() (kv.KV, bool, error) {
	return bucket.pop(kv.SortOrderAsc)
}

// PopLast implements kv.Bucket.PopLast
func (bucket *PebbleBucket) PopLast() (kv.KV, bool, error) {
	return bucket.pop(kv.SortOrderDesc)
}

func (bucket *PebbleBucket) pop(order kv.SortOrder) (kv.KV, bool, error) {
	var popped kv.KV
	var ok bool

	err := bucket.write(func() error {
		page, err := bucket.store.scan(bucket.ns.Range(keys.All()), order, 1)

		if err != nil || len(page) == 0 {
			return err
		}

		if err := bucket.store.db.Delete(page[0].Key, pebble.Sync); err != nil {
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
func (bucket *PebbleBucket) Keys(keys keys.Range, order kv.SortOrder) (kv.Iterator, error) {
	return kv.Paginate(bucket.scan, keys, order, kv.DefaultPageSize), nil
}

func (bucket *PebbleBucket) scan(r keys.Range, order kv.SortOrder, limit int) ([]kv.KV, error) {
	var page []kv.KV

	err := bucket.read(func() error {
		var err error

		if page, err = bucket.store.scan(bucket.ns.Range(r), order, limit); err != nil {
			return err
		}

		for i := range page {
			page[i].Key = bucket.ns.StripKey(page[i].Key)
		}

		return nil
	})

	return page, err
}
