// Package badger implements a kv store on badger. Every bucket
// lives under its own kv.Namespace prefix and read-modify-write
// operations run in optimistic transactions that are retried on
// conflict.
package badger

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/jrife/sertree/storage/kv"
	"github.com/jrife/sertree/storage/kv/keys"
	"github.com/jrife/sertree/utils/uuid"
	"go.uber.org/zap"
)

const (
	// DriverName is the plugin name
	DriverName = "badger"
	// MaxConflictRetries bounds how many times a conflicting
	// read-write transaction is retried
	MaxConflictRetries = 1024
)

// Plugins returns the plugins provided by this package
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&BadgerPlugin{},
	}
}

// BadgerPlugin creates badger stores
type BadgerPlugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *BadgerPlugin) Name() string {
	return DriverName
}

// NewStore implements kv.Plugin.NewStore.
// Options:
//   "path" (string, required): database directory
//   "logger" (*zap.Logger)
func (plugin *BadgerPlugin) NewStore(options kv.PluginOptions) (kv.Store, error) {
	path, err := options.StringOption("path", true)

	if err != nil {
		return nil, err
	}

	return New(BadgerStoreConfig{Path: path, Logger: options.Logger()})
}

// NewTempStore implements kv.Plugin.NewTempStore
func (plugin *BadgerPlugin) NewTempStore() (kv.Store, error) {
	return plugin.NewStore(kv.PluginOptions{
		"path": uuid.TempPath("badger"),
	})
}

// BadgerStoreConfig configures a BadgerStore
type BadgerStoreConfig struct {
	Path   string
	Logger *zap.Logger
}

// zapLogger adapts a sugared zap logger to badger.Logger
type zapLogger struct {
	*zap.SugaredLogger
}

func (logger zapLogger) Warningf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

var _ kv.Store = (*BadgerStore)(nil)

// BadgerStore is a kv.Store backed by a badger database
type BadgerStore struct {
	db     *badger.DB
	path   string
	logger *zap.Logger
}

// New opens or creates the badger database in config.Path
func New(config BadgerStoreConfig) (*BadgerStore, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	logger := config.Logger.With(zap.String("driver", DriverName))
	db, err := badger.Open(badger.DefaultOptions(config.Path).WithLogger(zapLogger{logger.Sugar()}))

	if err != nil {
		return nil, fmt.Errorf("could not open badger store at %s: %w", config.Path, err)
	}

	logger.Debug("opened badger store", zap.String("path", config.Path))

	return &BadgerStore{db: db, path: config.Path, logger: logger}, nil
}

// Bucket implements kv.Store.Bucket
func (store *BadgerStore) Bucket(name []byte) (kv.Bucket, error) {
	if err := kv.CheckBucketName(name); err != nil {
		return nil, err
	}

	err := store.update(func(txn *badger.Txn) error {
		if _, ok, err := get(txn, kv.RegistryKey(name)); err != nil || ok {
			return err
		}

		return txn.Set(kv.RegistryKey(name), []byte{})
	})

	if err != nil {
		return nil, err
	}

	return &BadgerBucket{store: store, name: keys.Copy(name), ns: kv.NewNamespace(name)}, nil
}

// Buckets implements kv.Store.Buckets
func (store *BadgerStore) Buckets() ([][]byte, error) {
	var names [][]byte

	err := store.view(func(txn *badger.Txn) error {
		page, err := scan(txn, kv.RegistryRange(), kv.SortOrderAsc, -1, false)

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
func (store *BadgerStore) DeleteBucket(name []byte) error {
	if err := store.update(func(txn *badger.Txn) error {
		return txn.Delete(kv.RegistryKey(name))
	}); err != nil {
		return err
	}

	return store.dropPrefix(kv.NewNamespace(name))
}

// Close implements kv.Store.Close
func (store *BadgerStore) Close() error {
	if store.db.IsClosed() {
		return nil
	}

	store.logger.Debug("closing badger store", zap.String("path", store.path))

	return store.db.Close()
}

// Delete implements kv.Store.Delete
func (store *BadgerStore) Delete() error {
	if err := store.Close(); err != nil {
		return fmt.Errorf("could not close store: %w", err)
	}

	if err := os.RemoveAll(store.path); err != nil {
		return fmt.Errorf("could not remove path %s: %w", store.path, err)
	}

	return nil
}

func (store *BadgerStore) view(fn func(txn *badger.Txn) error) error {
	return wrapError(store.db.View(fn))
}

// update runs fn in a read-write transaction, retrying
// it when the commit conflicts with another transaction
func (store *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	var err error

	for attempt := 0; attempt < MaxConflictRetries; attempt++ {
		if err = store.db.Update(fn); !errors.Is(err, badger.ErrConflict) {
			return wrapError(err)
		}

		store.logger.Debug("retrying conflicting transaction", zap.Int("attempt", attempt))
	}

	return fmt.Errorf("gave up after %d conflicting attempts: %w", MaxConflictRetries, err)
}

func (store *BadgerStore) dropPrefix(prefix []byte) error {
	if store.db.IsClosed() {
		return kv.ErrClosed
	}

	return wrapError(store.db.DropPrefix(prefix))
}

func wrapError(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return kv.ErrClosed
	}

	return err
}

func get(txn *badger.Txn, key []byte) ([]byte, bool, error) {
	item, err := txn.Get(key)

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}

	value, err := item.ValueCopy(nil)

	if err != nil {
		return nil, false, err
	}

	return nonNil(value), true, nil
}

// scan reads up to limit entries of r. limit < 0 means no limit.
// Values are skipped when keysOnly is set.
func scan(txn *badger.Txn, r keys.Range, order kv.SortOrder, limit int, keysOnly bool) ([]kv.KV, error) {
	options := badger.DefaultIteratorOptions
	options.Reverse = order == kv.SortOrderDesc
	options.PrefetchValues = !keysOnly

	iter := txn.NewIterator(options)
	defer iter.Close()

	if options.Reverse {
		if r.Max == nil {
			iter.Rewind()
		} else if iter.Seek(r.Max); iter.Valid() && keys.Compare(iter.Item().Key(), r.Max) == 0 {
			// Max is exclusive. A reverse Seek lands on the last key <= Max
			iter.Next()
		}
	} else if r.Min == nil {
		iter.Rewind()
	} else {
		iter.Seek(r.Min)
	}

	page := []kv.KV{}

	for ; iter.Valid() && (limit < 0 || len(page) < limit); iter.Next() {
		item := iter.Item()
		key := item.KeyCopy(nil)

		if !r.Contains(key) {
			break
		}

		entry := kv.KV{Key: key}

		if !keysOnly {
			value, err := item.ValueCopy(nil)

			if err != nil {
				return nil, err
			}

			entry.Value = nonNil(value)
		}

		page = append(page, entry)
	}

	return page, nil
}

func nonNil(value []byte) []byte {
	if value == nil {
		return []byte{}
	}

	return value
}
