// Package memory implements an in-memory kv store on
// top of ordered red-black trees. Nothing is persisted.
package memory

import (
	"bytes"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	rbt "github.com/emirpasic/gods/trees/redblacktree"
	"github.com/jrife/sertree/storage/kv"
	"github.com/jrife/sertree/storage/kv/keys"
)

const (
	// DriverName is the plugin name
	DriverName = "memory"
)

// Plugins returns the plugins provided by this package
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&MemoryPlugin{},
	}
}

// MemoryPlugin creates in-memory stores
type MemoryPlugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *MemoryPlugin) Name() string {
	return DriverName
}

// NewStore implements kv.Plugin.NewStore. It takes no options.
func (plugin *MemoryPlugin) NewStore(options kv.PluginOptions) (kv.Store, error) {
	return New(), nil
}

// NewTempStore implements kv.Plugin.NewTempStore
func (plugin *MemoryPlugin) NewTempStore() (kv.Store, error) {
	return New(), nil
}

func compareBytes(a, b interface{}) int {
	return bytes.Compare(a.([]byte), b.([]byte))
}

var _ kv.Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory kv.Store. One lock guards
// every bucket so each operation is atomic.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets *treemap.Map
	closed  bool
}

// New creates an empty MemoryStore
func New() *MemoryStore {
	return &MemoryStore{buckets: treemap.NewWithStringComparator()}
}

// Bucket implements kv.Store.Bucket
func (store *MemoryStore) Bucket(name []byte) (kv.Bucket, error) {
	if err := kv.CheckBucketName(name); err != nil {
		return nil, err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return nil, kv.ErrClosed
	}

	if _, ok := store.buckets.Get(string(name)); !ok {
		store.buckets.Put(string(name), rbt.NewWith(compareBytes))
	}

	return &MemoryBucket{store: store, name: keys.Copy(name)}, nil
}

// Buckets implements kv.Store.Buckets
func (store *MemoryStore) Buckets() ([][]byte, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if store.closed {
		return nil, kv.ErrClosed
	}

	names := make([][]byte, 0, store.buckets.Size())

	for _, name := range store.buckets.Keys() {
		names = append(names, []byte(name.(string)))
	}

	return names, nil
}

// DeleteBucket implements kv.Store.DeleteBucket
func (store *MemoryStore) DeleteBucket(name []byte) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return kv.ErrClosed
	}

	store.buckets.Remove(string(name))

	return nil
}

// Close implements kv.Store.Close
func (store *MemoryStore) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.closed = true
	store.buckets.Clear()

	return nil
}

// Delete implements kv.Store.Delete
func (store *MemoryStore) Delete() error {
	return store.Close()
}

// tree returns the tree for the bucket. The caller must hold mu.
func (store *MemoryStore) tree(name []byte) (*rbt.Tree, error) {
	if store.closed {
		return nil, kv.ErrClosed
	}

	tree, ok := store.buckets.Get(string(name))

	if !ok {
		return nil, kv.ErrNoSuchBucket
	}

	return tree.(*rbt.Tree), nil
}

func (store *MemoryStore) read(name []byte, fn func(tree *rbt.Tree) error) error {
	store.mu.RLock()
	defer store.mu.RUnlock()

	tree, err := store.tree(name)

	if err != nil {
		return err
	}

	return fn(tree)
}

func (store *MemoryStore) write(name []byte, fn func(tree *rbt.Tree) error) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	tree, err := store.tree(name)

	if err != nil {
		return err
	}

	return fn(tree)
}

var _ kv.Bucket = (*MemoryBucket)(nil)

// MemoryBucket is a handle for a bucket in a MemoryStore
type MemoryBucket struct {
	store *MemoryStore
	name  []byte
}

// Name implements kv.Bucket.Name
func (bucket *MemoryBucket) Name() []byte {
	return keys.Copy(bucket.name)
}

// Get implements kv.Bucket.Get
func (bucket *MemoryBucket) Get(key []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var value []byte
	var ok bool

	err := bucket.store.read(bucket.name, func(tree *rbt.Tree) error {
		value, ok = get(tree, key)

		return nil
	})

	return value, ok, err
}

// Has implements kv.Bucket.Has
func (bucket *MemoryBucket) Has(key []byte) (bool, error) {
	_, ok, err := bucket.Get(key)

	return ok, err
}

// Put implements kv.Bucket.Put
func (bucket *MemoryBucket) Put(key, value []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var prev []byte
	var ok bool

	err := bucket.store.write(bucket.name, func(tree *rbt.Tree) error {
		prev, ok = get(tree, key)
		tree.Put(keys.Copy(key), copyValue(value))

		return nil
	})

	return prev, ok, err
}

// PutIfAbsent implements kv.Bucket.PutIfAbsent
func (bucket *MemoryBucket) PutIfAbsent(key, value []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var current []byte
	var loaded bool

	err := bucket.store.write(bucket.name, func(tree *rbt.Tree) error {
		if current, loaded = get(tree, key); !loaded {
			tree.Put(keys.Copy(key), copyValue(value))
		}

		return nil
	})

	return current, loaded, err
}

// Delete implements kv.Bucket.Delete
func (bucket *MemoryBucket) Delete(key []byte) ([]byte, bool, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, false, err
	}

	var prev []byte
	var ok bool

	err := bucket.store.write(bucket.name, func(tree *rbt.Tree) error {
		if prev, ok = get(tree, key); ok {
			tree.Remove(key)
		}

		return nil
	})

	return prev, ok, err
}

// Len implements kv.Bucket.Len
func (bucket *MemoryBucket) Len() (int, error) {
	var n int

	err := bucket.store.read(bucket.name, func(tree *rbt.Tree) error {
		n = tree.Size()

		return nil
	})

	return n, err
}

// Clear implements kv.Bucket.Clear
func (bucket *MemoryBucket) Clear() error {
	return bucket.store.write(bucket.name, func(tree *rbt.Tree) error {
		tree.Clear()

		return nil
	})
}

// First implements kv.Bucket.First
func (bucket *MemoryBucket) First() (kv.KV, bool, error) {
	return kv.Edge(bucket.scan, kv.SortOrderAsc)
}

// Last implements kv.Bucket.Last
func (bucket *MemoryBucket) Last() (kv.KV, bool, error) {
	return kv.Edge(bucket.scan, kv.SortOrderDesc)
}

// PopFirst implements kv.Bucket.PopFirst
func (bucket *MemoryBucket) PopFirst() (kv.KV, bool, error) {
	return bucket.pop(func(tree *rbt.Tree) *rbt.Node { return tree.Left() })
}

// PopLast implements kv.Bucket.PopLast
func (bucket *MemoryBucket) PopLast() (kv.KV, bool, error) {
	return bucket.pop(func(tree *rbt.Tree) *rbt.Node { return tree.Right() })
}

func (bucket *MemoryBucket) pop(edge func(tree *rbt.Tree) *rbt.Node) (kv.KV, bool, error) {
	var popped kv.KV
	var ok bool

	err := bucket.store.write(bucket.name, func(tree *rbt.Tree) error {
		node := edge(tree)

		if node == nil {
			return nil
		}

		popped = kv.KV{Key: node.Key.([]byte), Value: node.Value.([]byte)}
		ok = true
		tree.Remove(node.Key)

		return nil
	})

	return popped, ok, err
}

// Keys implements kv.Bucket.Keys
func (bucket *MemoryBucket) Keys(keys keys.Range, order kv.SortOrder) (kv.Iterator, error) {
	return kv.Paginate(bucket.scan, keys, order, kv.DefaultPageSize), nil
}

func (bucket *MemoryBucket) scan(r keys.Range, order kv.SortOrder, limit int) ([]kv.KV, error) {
	var page []kv.KV

	err := bucket.store.read(bucket.name, func(tree *rbt.Tree) error {
		if order == kv.SortOrderDesc {
			page = scanDesc(tree, r, limit)
		} else {
			page = scanAsc(tree, r, limit)
		}

		return nil
	})

	return page, err
}

func scanAsc(tree *rbt.Tree, r keys.Range, limit int) []kv.KV {
	var start *rbt.Node

	if r.Min == nil {
		start = tree.Left()
	} else {
		start, _ = tree.Ceiling(r.Min)
	}

	if start == nil {
		return nil
	}

	page := []kv.KV{}
	iter := tree.IteratorAt(start)

	for ok := true; ok && len(page) < limit; ok = iter.Next() {
		key := iter.Key().([]byte)

		if r.Max != nil && keys.Compare(key, r.Max) >= 0 {
			break
		}

		page = append(page, kv.KV{Key: keys.Copy(key), Value: copyValue(iter.Value().([]byte))})
	}

	return page
}

func scanDesc(tree *rbt.Tree, r keys.Range, limit int) []kv.KV {
	var start *rbt.Node

	if r.Max == nil {
		start = tree.Right()
	} else {
		start, _ = tree.Floor(r.Max)
	}

	if start == nil {
		return nil
	}

	page := []kv.KV{}
	iter := tree.IteratorAt(start)

	// Max is exclusive
	if r.Max != nil && keys.Compare(iter.Key().([]byte), r.Max) >= 0 && !iter.Prev() {
		return page
	}

	for ok := true; ok && len(page) < limit; ok = iter.Prev() {
		key := iter.Key().([]byte)

		if r.Min != nil && keys.Compare(key, r.Min) < 0 {
			break
		}

		page = append(page, kv.KV{Key: keys.Copy(key), Value: copyValue(iter.Value().([]byte))})
	}

	return page
}

func get(tree *rbt.Tree, key []byte) ([]byte, bool) {
	value, ok := tree.Get(key)

	if !ok {
		return nil, false
	}

	return copyValue(value.([]byte)), true
}

// copyValue copies a value, keeping empty values non-nil
func copyValue(value []byte) []byte {
	return append([]byte{}, value...)
}
