package lmdb

import (
	"github.com/PowerDNS/lmdb-go/lmdb"
	"github.com/jrife/sertree/storage/kv"
	"github.com/jrife/sertree/storage/kv/keys"
)

var _ kv.Bucket = (*LMDBBucket)(nil)

// LMDBBucket is a handle for a named LMDB database
type LMDBBucket struct {
	store *LMDBStore
	name  []byte
}

func (bucket *LMDBBucket) view(fn func(txn *lmdb.Txn, dbi lmdb.DBI) error) error {
	bucket.store.dbiMu.RLock()
	defer bucket.store.dbiMu.RUnlock()

	dbi, err := bucket.store.dbi(bucket.name)

	if err != nil {
		return err
	}

	return bucket.store.view(func(txn *lmdb.Txn) error {
		return fn(txn, dbi)
	})
}

func (bucket *LMDBBucket) update(fn func(txn *lmdb.Txn, dbi lmdb.DBI) error) error {
	bucket.store.dbiMu.RLock()
	defer bucket.store.dbiMu.RUnlock()

	dbi, err := bucket.store.dbi(bucket.name)

	if err != nil {
		return err
	}

	return bucket.store.update(func(txn *lmdb.Txn) error {
		return fn(txn, dbi)
	})
}

// Name implements kv.Bucket.Name
func (bucket *LMDBBucket) Name() []byte {
	return keys.Copy(bucket.name)
}

// Get implements kv.Bucket.Get
func (bucket *LMDBBucket) Get(key []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var value []byte
	var ok bool

	err := bucket.view(func(txn *lmdb.Txn, dbi lmdb.DBI) error {
		var err error
		value, ok, err = get(txn, dbi, key)

		return err
	})

	return value, ok, err
}

// Has implements kv.Bucket.Has
func (bucket *LMDBBucket) Has(key []byte) (bool, error) {
	_, ok, err := bucket.Get(key)

	return ok, err
}

// Put implements kv.Bucket.Put
func (bucket *LMDBBucket) Put(key, value []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var prev []byte
	var ok bool

	err := bucket.update(func(txn *lmdb.Txn, dbi lmdb.DBI) error {
		var err error

		if prev, ok, err = get(txn, dbi, key); err != nil {
			return err
		}

		return txn.Put(dbi, key, value, 0)
	})

	if err != nil {
		return nil, false, err
	}

	return prev, ok, nil
}

// PutIfAbsent implements kv.Bucket.PutIfAbsent
func (bucket *LMDBBucket) PutIfAbsent(key, value []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var current []byte
	var loaded bool

	err := bucket.update(func(txn *lmdb.Txn, dbi lmdb.DBI) error {
		err := txn.Put(dbi, key, value, lmdb.NoOverwrite)

		if !lmdb.IsErrno(err, lmdb.KeyExist) {
			return err
		}

		current, loaded, err = get(txn, dbi, key)

		return err
	})

	if err != nil {
		return nil, false, err
	}

	return current, loaded, nil
}

// Delete implements kv.Bucket.Delete
func (bucket *LMDBBucket) Delete(key []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var prev []byte
	var ok bool

	err := bucket.update(func(txn *lmdb.Txn, dbi lmdb.DBI) error {
		var err error

		if prev, ok, err = get(txn, dbi, key); err != nil || !ok {
			return err
		}

		return txn.Del(dbi, key, nil)
	})

	if err != nil {
		return nil, false, err
	}

	return prev, ok, nil
}

// Len implements kv.Bucket.Len
func (bucket *LMDBBucket) Len() (int, error) {
	var n int

	err := bucket.view(func(txn *lmdb.Txn, dbi lmdb.DBI) error {
		stat, err := txn.Stat(dbi)

		if err != nil {
			return err
		}

		n = int(stat.Entries)

		return nil
	})

	return n, err
}

// Clear implements kv.Bucket.Clear
func (bucket *LMDBBucket) Clear() error {
	return bucket.update(func(txn *lmdb.Txn, dbi lmdb.DBI) error {
		return txn.Drop(dbi, false)
	})
}

// First implements kv.Bucket.First
func (bucket *LMDBBucket) First() (kv.KV, bool, error) {
	return kv.Edge(bucket.scan, kv.SortOrderAsc)
}

// Last implements kv.Bucket.Last
func (bucket *LMDBBucket) Last() (kv.KV, bool, error) {
	return kv.Edge(bucket.scan, kv.SortOrderDesc)
}

// PopFirst implements kv.Bucket.PopFirst
func (bucket *LMDBBucket) PopFirst() (kv.KV, bool, error) {
	return bucket.pop(kv.SortOrderAsc)
}

// PopLast implements kv.Bucket.PopLast
func (bucket *LMDBBucket) PopLast() (kv.KV, bool, error) {
	return bucket.pop(kv.SortOrderDesc)
}

func (bucket *LMDBBucket) pop(order kv.SortOrder) (kv.KV, bool, error) {
	var popped kv.KV
	var ok bool

	err := bucket.update(func(txn *lmdb.Txn, dbi lmdb.DBI) error {
		page, err := scan(txn, dbi, keys.All(), order, 1)

		if err != nil || len(page) == 0 {
			return err
		}

		if err := txn.Del(dbi, page[0].Key, nil); err != nil {
			return err
		}

		popped = page[0]
		ok = true

		return nil
	})

	if err != nil {
		return kv.KV{}, false, err
	}

	return popped, ok, nil
}

// Keys implements kv.Bucket.Keys
func (bucket *LMDBBucket) Keys(keys keys.Range, order kv.SortOrder) (kv.Iterator, error) {
	return kv.Paginate(bucket.scan, keys, order, kv.DefaultPageSize), nil
}

func (bucket *LMDBBucket) scan(r keys.Range, order kv.SortOrder, limit int) ([]kv.KV, error) {
	var page []kv.KV

	err := bucket.view(func(txn *lmdb.Txn, dbi lmdb.DBI) error {
		var err error
		page, err = scan(txn, dbi, r, order, limit)

		return err
	})

	return page, err
}

func get(txn *lmdb.Txn, dbi lmdb.DBI, key []byte) ([]byte, bool, error) {
	value, err := txn.Get(dbi, key)

	if lmdb.IsNotFound(err) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}

	return append([]byte{}, value...), true, nil
}
