// Package pebble implements a kv store on pebble. Pebble has
// no named key spaces so every bucket lives under its own
// kv.Namespace prefix of a single LSM.
package pebble

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/jrife/sertree/storage/kv"
	"github.com/jrife/sertree/storage/kv/keys"
	"github.com/jrife/sertree/utils/uuid"
	"go.uber.org/zap"
)

const (
	// DriverName is the plugin name
	DriverName = "pebble"
)

// Plugins returns the plugins provided by this package
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&PebblePlugin{},
	}
}

// PebblePlugin creates pebble stores
type PebblePlugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *PebblePlugin) Name() string {
	return DriverName
}

// NewStore implements kv.Plugin.NewStore.
// Options:
//   "path" (string, required): database directory
//   "logger" (*zap.Logger)
func (plugin *PebblePlugin) NewStore(options kv.PluginOptions) (kv.Store, error) {
	path, err := options.StringOption("path", true)

	if err != nil {
		return nil, err
	}

	return New(PebbleStoreConfig{Path: path, Logger: options.Logger()})
}

// NewTempStore implements kv.Plugin.NewTempStore
func (plugin *PebblePlugin) NewTempStore() (kv.Store, error) {
	return plugin.NewStore(kv.PluginOptions{
		"path": uuid.TempPath("pebble"),
	})
}

// PebbleStoreConfig configures a PebbleStore
type PebbleStoreConfig struct {
	Path   string
	Logger *zap.Logger
}

var _ kv.Store = (*PebbleStore)(nil)

// PebbleStore is a kv.Store backed by a pebble database.
// Pebble has no read-modify-write transactions so writeMu
// serializes every operation that reads before it writes.
type PebbleStore struct {
	db      *pebble.DB
	path    string
	logger  *zap.Logger
	closeMu sync.RWMutex
	closed  bool
	writeMu sync.Mutex
}

// New opens or creates the pebble database in config.Path
func New(config PebbleStoreConfig) (*PebbleStore, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	logger := config.Logger.With(zap.String("driver", DriverName))
	db, err := pebble.Open(config.Path, &pebble.Options{Logger: logger.Sugar()})

	if err != nil {
		return nil, fmt.Errorf("could not open pebble store at %s: %w", config.Path, err)
	}

	logger.Debug("opened pebble store", zap.String("path", config.Path))

	return &PebbleStore{db: db, path: config.Path, logger: logger}, nil
}

// do runs fn unless the store is closed. Close waits for fn to return.
func (store *PebbleStore) do(fn func() error) error {
	store.closeMu.RLock()
	defer store.closeMu.RUnlock()

	if store.closed {
		return kv.ErrClosed
	}

	return fn()
}

// doWrite is like do but also holds writeMu
func (store *PebbleStore) doWrite(fn func() error) error {
	return store.do(func() error {
		store.writeMu.Lock()
		defer store.writeMu.Unlock()

		return fn()
	})
}

// Bucket implements kv.Store.Bucket
func (store *PebbleStore) Bucket(name []byte) (kv.Bucket, error) {
	if err := kv.CheckBucketName(name); err != nil {
		return nil, err
	}

	err := store.doWrite(func() error {
		if _, ok, err := store.get(kv.RegistryKey(name)); err != nil || ok {
			return err
		}

		return store.db.Set(kv.RegistryKey(name), []byte{}, pebble.Sync)
	})

	if err != nil {
		return nil, err
	}

	return &PebbleBucket{store: store, name: keys.Copy(name), ns: kv.NewNamespace(name)}, nil
}

// Buckets implements kv.Store.Buckets
func (store *PebbleStore) Buckets() ([][]byte, error) {
	var names [][]byte

	err := store.do(func() error {
		page, err := store.scan(kv.RegistryRange(), kv.SortOrderAsc, -1)

		if err != nil {
			return err
		}

		for _, entry := range page {
			names = append(names, kv.BucketName(entry.Key))
		}

		return nil
	})

	return names, err
}

// DeleteBucket implements kv.Store.DeleteBucket
func (store *PebbleStore) DeleteBucket(name []byte) error {
	r := kv.NewNamespace(name).Range(keys.All())

	return store.doWrite(func() error {
		batch := store.db.NewBatch()
		defer batch.Close()

		if err := batch.Delete(kv.RegistryKey(name), nil); err != nil {
			return err
		}

		if err := batch.DeleteRange(r.Min, r.Max, nil); err != nil {
			return err
		}

		return batch.Commit(pebble.Sync)
	})
}

// Close implements kv.Store.Close
func (store *PebbleStore) Close() error {
	store.closeMu.Lock()
	defer store.closeMu.Unlock()

	if store.closed {
		return nil
	}

	store.closed = true
	store.logger.Debug("closing pebble store", zap.String("path", store.path))

	return store.db.Close()
}

// Delete implements kv.Store.Delete
func (store *PebbleStore) Delete() error {
	if err := store.Close(); err != nil {
		return fmt.Errorf("could not close store: %w", err)
	}

	if err := os.RemoveAll(store.path); err != nil {
		return fmt.Errorf("could not remove path %s: %w", store.path, err)
	}

	return nil
}

func (store *PebbleStore) get(key []byte) ([]byte, bool, error) {
	value, closer, err := store.db.Get(key)

	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}

	defer closer.Close()

	return append([]byte{}, value...), true, nil
}

// scan reads up to limit entries of r from an iterator,
// which sees a consistent point in time view of the
// database. limit < 0 means no limit.
func (store *PebbleStore) scan(r keys.Range, order kv.SortOrder, limit int) ([]kv.KV, error) {
	iter, err := store.db.NewIter(&pebble.IterOptions{LowerBound: r.Min, UpperBound: r.Max})

	if err != nil {
		return nil, err
	}

	defer iter.Close()

	page := []kv.KV{}
	next := iter.Next
	var valid bool

	if order == kv.SortOrderDesc {
		next = iter.Prev
		valid = iter.Last()
	} else {
		valid = iter.First()
	}

	for ; valid && (limit < 0 || len(page) < limit); valid = next() {
		value, err := iter.ValueAndErr()

		if err != nil {
			return nil, err
		}

		page = append(page, kv.KV{Key: keys.Copy(iter.Key()), Value: append([]byte{}, value...)})
	}

	if err := iter.Error(); err != nil {
		return nil, err
	}

	return page, nil
}
