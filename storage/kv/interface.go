package kv

import (
	"github.com/jrife/sertree/storage/kv/keys"
)

// PluginOptions are engine specific options passed
// to Plugin.NewStore.
type PluginOptions map[string]interface{}

// Plugin represents a kv storage plugin
type Plugin interface {
	// Name returns the name of the storage plugin
	Name() string
	// NewStore returns an instance of the plugin store
	NewStore(options PluginOptions) (Store, error)
	// NewTempStore returns an instance of the plugin store
	// initialized with some sane defaults. It is meant for
	// tests that need an initialized instance of the plugin's
	// store without knowing how to initialize it
	NewTempStore() (Store, error)
}

// Store is a collection of named buckets
type Store interface {
	// Bucket opens the bucket with this name, creating it
	// if it does not exist yet. It must return ErrClosed if
	// its invocation starts after Close() returns.
	Bucket(name []byte) (Bucket, error)
	// Buckets lists the names of all buckets in ascending
	// lexicographical order.
	Buckets() ([][]byte, error)
	// DeleteBucket deletes the bucket and all its contents. It
	// has no effect if the bucket does not exist. Handles for the
	// deleted bucket return ErrNoSuchBucket from then on.
	DeleteBucket(name []byte) error
	// Close closes the store. Calls to any bucket or iterator
	// descended from this store made after Close returns must have
	// no effect and return ErrClosed.
	Close() error
	// Delete closes then deletes this store and all its contents.
	Delete() error
}

// Bucket is a handle for a named bucket. Keys passed to
// any method must be non-empty or it returns ErrEmptyKey.
// Slices returned by a bucket are owned by the caller and
// slices passed to a bucket may be reused once the call returns.
type Bucket interface {
	// Name returns the name of this bucket
	Name() []byte
	// Get returns the value stored under key. ok is false
	// if the key does not exist.
	Get(key []byte) (value []byte, ok bool, err error)
	// Has returns true if the key exists
	Has(key []byte) (bool, error)
	// Put stores value under key and returns the value
	// it replaced, if any.
	Put(key, value []byte) (prev []byte, ok bool, err error)
	// PutIfAbsent stores value under key only if the key
	// does not exist. If it exists its current value is
	// returned with loaded = true and nothing is written.
	PutIfAbsent(key, value []byte) (current []byte, loaded bool, err error)
	// Delete removes key and returns the value it held, if any.
	Delete(key []byte) (prev []byte, ok bool, err error)
	// Len returns the number of keys in the bucket
	Len() (int, error)
	// Clear removes every key in the bucket
	Clear() error
	// First returns the entry with the lowest key
	First() (KV, bool, error)
	// Last returns the entry with the highest key
	Last() (KV, bool, error)
	// PopFirst atomically removes and returns the entry
	// with the lowest key
	PopFirst() (KV, bool, error)
	// PopLast atomically removes and returns the entry
	// with the highest key
	PopLast() (KV, bool, error)
	// Keys creates an iterator that iterates over the range
	// of keys in the given order
	Keys(keys keys.Range, order SortOrder) (Iterator, error)
}

// Iterator iterates over a set of keys. It must only be
// used by one goroutine at a time.
type Iterator interface {
	// Next advances the iterator to the next key
	// A fresh iterator must call Next once to
	// advance to the first key. Next returns false
	// if there is no next key or if it encounters an
	// error.
	Next() bool
	// Key returns the current key
	Key() []byte
	// Value returns the current value
	Value() []byte
	// Error returns the error, if any.
	Error() error
	// Close releases the iterator. Next returns false
	// after Close.
	Close() error
}
